package parser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/tidwall/gjson"

	"FeedAggregator/internal/domain"
	"FeedAggregator/internal/scanner"
)

var defaultFieldPaths = map[string][]string{
	"id":          {"id", "guid", "uuid"},
	"title":       {"title", "name", "headline"},
	"link":        {"link", "url", "html_url", "permalink"},
	"publishedAt": {"published_at", "publishedAt", "pubDate", "date", "created_at", "createdAt"},
	"summary":     {"summary", "description", "excerpt"},
	"body":        {"content", "body", "text", "content_html"},
}

// APIParser pulls items from a provider JSON API and maps them with gjson paths.
type APIParser struct {
	fetcher *Fetcher
	opts    domain.TransportOptions
}

var _ scanner.Parser = (*APIParser)(nil)

// NewAPIParser validates the method and keeps the transport options.
func NewAPIParser(fetcher *Fetcher, opts domain.TransportOptions) (*APIParser, error) {
	if strings.TrimSpace(opts.Endpoint) == "" {
		return nil, errors.New("api transport: endpoint is required")
	}
	method := strings.ToUpper(strings.TrimSpace(opts.Method))
	switch method {
	case "":
		method = http.MethodGet
	case http.MethodGet, http.MethodPost:
	default:
		return nil, fmt.Errorf("api transport: unsupported method %q", opts.Method)
	}
	opts.Method = method
	return &APIParser{fetcher: fetcher, opts: opts}, nil
}

// Parse calls the configured endpoint; the feed url only identifies the source.
func (p *APIParser) Parse(ctx context.Context, _ string) ([]domain.RawFeedItem, error) {
	payload, err := p.fetcher.Fetch(ctx, p.opts.Method, p.opts.Endpoint, p.opts.Headers, p.opts.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch api: %w", err)
	}

	return MapAPIResponse(payload, p.opts)
}

// MapAPIResponse converts a JSON payload into raw items.
func MapAPIResponse(payload []byte, opts domain.TransportOptions) ([]domain.RawFeedItem, error) {
	if !gjson.ValidBytes(payload) {
		return nil, fmt.Errorf("api response is not valid json")
	}

	list := gjson.ParseBytes(payload)
	if opts.ItemsPath != "" {
		list = list.Get(opts.ItemsPath)
	}
	if !list.IsArray() {
		return nil, fmt.Errorf("api response: %q does not hold an array", opts.ItemsPath)
	}

	elements := list.Array()
	items := make([]domain.RawFeedItem, 0, len(elements))
	for _, el := range elements {
		if !el.IsObject() {
			continue
		}
		item := domain.RawFeedItem{
			Title:        lookup(el, opts.Fields.Title, "title").String(),
			Link:         lookup(el, opts.Fields.Link, "link").String(),
			Summary:      lookup(el, opts.Fields.Summary, "summary").String(),
			BodyRaw:      lookup(el, opts.Fields.Body, "body").String(),
			SourceItemID: lookup(el, opts.Fields.ID, "id").String(),
			PublishedAt:  parseTimestamp(lookup(el, opts.Fields.PublishedAt, "publishedAt")),
		}
		item.Title = strings.TrimSpace(item.Title)
		item.Link = strings.TrimSpace(item.Link)
		items = append(items, item)
	}

	return items, nil
}

func lookup(el gjson.Result, configured, field string) gjson.Result {
	if configured != "" {
		return el.Get(configured)
	}
	for _, path := range defaultFieldPaths[field] {
		if res := el.Get(path); res.Exists() && res.String() != "" {
			return res
		}
	}
	return gjson.Result{}
}

func parseTimestamp(res gjson.Result) *time.Time {
	switch res.Type {
	case gjson.Number:
		secs := res.Int()
		if secs <= 0 {
			return nil
		}
		if secs > 1e12 {
			t := time.UnixMilli(secs).UTC()
			return &t
		}
		t := time.Unix(secs, 0).UTC()
		return &t
	case gjson.String:
		t, err := dateparse.ParseAny(strings.TrimSpace(res.String()))
		if err != nil {
			return nil
		}
		t = t.UTC()
		return &t
	default:
		return nil
	}
}
