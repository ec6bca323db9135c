package domain

import "time"

// TransportType enumerates the supported feed transports.
type TransportType string

const (
	TransportSyndication TransportType = "syndication"
	TransportAPI         TransportType = "api"
)

// EntityHint pre-associates every item of a feed with a known entity.
type EntityHint struct {
	ToolID  string `json:"toolId,omitempty" yaml:"toolId"`
	ModelID string `json:"modelId,omitempty" yaml:"modelId"`
}

// FieldPaths maps API response fields onto RawFeedItem fields (gjson syntax).
type FieldPaths struct {
	ID          string `json:"id,omitempty" yaml:"id"`
	Title       string `json:"title,omitempty" yaml:"title"`
	Link        string `json:"link,omitempty" yaml:"link"`
	PublishedAt string `json:"publishedAt,omitempty" yaml:"publishedAt"`
	Summary     string `json:"summary,omitempty" yaml:"summary"`
	Body        string `json:"body,omitempty" yaml:"body"`
}

// TransportOptions carries endpoint details for API transports.
type TransportOptions struct {
	Endpoint  string            `json:"endpoint,omitempty" yaml:"endpoint"`
	Method    string            `json:"method,omitempty" yaml:"method"`
	Headers   map[string]string `json:"headers,omitempty" yaml:"headers"`
	Body      string            `json:"body,omitempty" yaml:"body"`
	ItemsPath string            `json:"itemsPath,omitempty" yaml:"itemsPath"`
	Fields    FieldPaths        `json:"fields,omitempty" yaml:"fields"`
}

// FeedSource is a configured external endpoint together with its sync bookkeeping.
type FeedSource struct {
	ID               string
	URL              string
	SourceLabel      string
	TransportType    TransportType
	EntityHint       EntityHint
	TransportOptions *TransportOptions
	Enabled          bool
	ErrorCount       uint
	LastError        *string
	LastSyncedAt     *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// RawFeedItem is the uniform shape every parser produces.
type RawFeedItem struct {
	Title        string
	Link         string
	PublishedAt  *time.Time
	Summary      string
	BodyRaw      string
	SourceItemID string
}
