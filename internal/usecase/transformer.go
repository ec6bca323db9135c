package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"time"

	"FeedAggregator/internal/domain"
	"FeedAggregator/internal/textclean"
)

const (
	summaryLimit        = 500
	derivedSummaryLimit = 280
	dedupKeySeparator   = "\x00"
	trackingParamPrefix = "utm_"
)

// Transformer converts raw feed items into canonical updates.
type Transformer struct {
	now func() time.Time
}

// NewTransformer uses now as ingestion time for undated items; nil means time.Now.
func NewTransformer(now func() time.Time) *Transformer {
	if now == nil {
		now = time.Now
	}
	return &Transformer{now: now}
}

// Transform returns false when the item has neither a title nor a link.
func (t *Transformer) Transform(item domain.RawFeedItem, source domain.FeedSource) (domain.CanonicalUpdate, bool) {
	title := textclean.PlainText(item.Title)
	link := strings.TrimSpace(item.Link)
	if title == "" && link == "" {
		return domain.CanonicalUpdate{}, false
	}
	if title == "" {
		title = link
	}

	label := sourceLabel(source)
	published := t.now().UTC()
	if item.PublishedAt != nil && !item.PublishedAt.IsZero() {
		published = item.PublishedAt.UTC()
	}

	content := textclean.Markdown(item.BodyRaw)
	description := textclean.Truncate(textclean.PlainText(item.Summary), summaryLimit)
	if description == "" {
		description = textclean.Truncate(textclean.PlainText(item.BodyRaw), derivedSummaryLimit)
	}

	return domain.CanonicalUpdate{
		DedupKey:      DedupKey(label, item),
		Title:         title,
		Description:   optional(description),
		Content:       optional(content),
		Link:          link,
		PublishedAt:   published,
		SourceLabel:   label,
		ToolID:        optional(strings.TrimSpace(source.EntityHint.ToolID)),
		ModelID:       optional(strings.TrimSpace(source.EntityHint.ModelID)),
		RelatedTools:  []string{},
		RelatedModels: []string{},
	}, true
}

// DedupKey derives a source-qualified key from the item's link, falling back
// to its transport id and finally its title.
func DedupKey(label string, item domain.RawFeedItem) string {
	kind, identity := "link", NormalizeLink(item.Link)
	if identity == "" {
		kind, identity = "id", strings.TrimSpace(item.SourceItemID)
	}
	if identity == "" {
		kind, identity = "title", strings.ToLower(strings.Join(strings.Fields(item.Title), " "))
	}

	sum := sha256.Sum256([]byte(strings.TrimSpace(label) + dedupKeySeparator + kind + dedupKeySeparator + identity))
	return hex.EncodeToString(sum[:])
}

// NormalizeLink lowercases scheme and host, drops the fragment and utm_*
// parameters. Unparseable or relative links are only trimmed.
func NormalizeLink(link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}

	parsed, err := url.Parse(link)
	if err != nil || !parsed.IsAbs() {
		return link
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	parsed.RawFragment = ""

	if parsed.RawQuery != "" {
		query := parsed.Query()
		for key := range query {
			if strings.HasPrefix(strings.ToLower(key), trackingParamPrefix) {
				query.Del(key)
			}
		}
		parsed.RawQuery = query.Encode()
	}

	return parsed.String()
}

func sourceLabel(source domain.FeedSource) string {
	if label := strings.TrimSpace(source.SourceLabel); label != "" {
		return label
	}
	return strings.TrimSpace(source.URL)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
