package parser

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mmcdole/gofeed"

	"FeedAggregator/internal/domain"
	"FeedAggregator/internal/scanner"
)

// SyndicationParser reads RSS, Atom and JSON Feed documents.
type SyndicationParser struct {
	fetcher *Fetcher
}

var _ scanner.Parser = (*SyndicationParser)(nil)

// NewSyndicationParser wires the shared fetcher.
func NewSyndicationParser(fetcher *Fetcher) *SyndicationParser {
	return &SyndicationParser{fetcher: fetcher}
}

// Parse fetches the feed at url and maps every entry to a raw item.
func (p *SyndicationParser) Parse(ctx context.Context, url string) ([]domain.RawFeedItem, error) {
	payload, err := p.fetcher.Fetch(ctx, http.MethodGet, url, nil, "")
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}

	return ParseSyndication(payload)
}

// ParseSyndication maps an already fetched feed document.
func ParseSyndication(payload []byte) ([]domain.RawFeedItem, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	items := make([]domain.RawFeedItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		if entry == nil {
			continue
		}
		item := domain.RawFeedItem{
			Title:        strings.TrimSpace(entry.Title),
			Link:         entryLink(entry),
			Summary:      entry.Description,
			BodyRaw:      entry.Content,
			SourceItemID: strings.TrimSpace(entry.GUID),
		}
		switch {
		case entry.PublishedParsed != nil:
			item.PublishedAt = entry.PublishedParsed
		case entry.UpdatedParsed != nil:
			item.PublishedAt = entry.UpdatedParsed
		}
		if item.BodyRaw == "" {
			item.BodyRaw = entry.Description
		}
		items = append(items, item)
	}

	return items, nil
}

// entryLink prefers the explicit link, then any alternate link, then a URL-looking GUID.
func entryLink(entry *gofeed.Item) string {
	if link := strings.TrimSpace(entry.Link); link != "" {
		return link
	}
	for _, link := range entry.Links {
		if link = strings.TrimSpace(link); link != "" {
			return link
		}
	}
	if strings.HasPrefix(entry.GUID, "http") {
		return strings.TrimSpace(entry.GUID)
	}
	return ""
}
