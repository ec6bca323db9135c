package parser

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"FeedAggregator/internal/domain"
	"FeedAggregator/internal/scanner"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Acme Blog</title>
    <item>
      <title>Acme Model v2 launches faster inference</title>
      <link>https://acme.example/blog/v2</link>
      <guid>acme-v2-launch</guid>
      <pubDate>Sat, 08 Nov 2025 10:00:00 GMT</pubDate>
      <description><![CDATA[<p>Faster <b>inference</b>.</p>]]></description>
    </item>
    <item>
      <title>No date here</title>
      <guid>https://acme.example/blog/undated</guid>
    </item>
  </channel>
</rss>`

func newTestFetcher(client *http.Client) *Fetcher {
	return NewFetcher(client, FetchOptions{Timeout: 2 * time.Second}, nil)
}

func TestSyndicationParserParse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != defaultUserAgent {
			t.Errorf("unexpected user agent %q", ua)
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = io.WriteString(w, rssFixture)
	}))
	defer server.Close()

	p := NewSyndicationParser(newTestFetcher(server.Client()))
	items, err := p.Parse(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	first := items[0]
	if first.Title != "Acme Model v2 launches faster inference" {
		t.Fatalf("unexpected title: %s", first.Title)
	}
	if first.Link != "https://acme.example/blog/v2" {
		t.Fatalf("unexpected link: %s", first.Link)
	}
	if first.SourceItemID != "acme-v2-launch" {
		t.Fatalf("unexpected guid: %s", first.SourceItemID)
	}
	if first.PublishedAt == nil || first.PublishedAt.Year() != 2025 {
		t.Fatalf("unexpected published date: %v", first.PublishedAt)
	}
	if !strings.Contains(first.BodyRaw, "<b>inference</b>") {
		t.Fatalf("expected raw body to keep markup, got %q", first.BodyRaw)
	}

	second := items[1]
	if second.Link != "https://acme.example/blog/undated" {
		t.Fatalf("expected guid link fallback, got %q", second.Link)
	}
	if second.PublishedAt != nil {
		t.Fatalf("expected nil published date, got %v", second.PublishedAt)
	}
}

func TestSyndicationParserRejectsMalformedPayload(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "this is not a feed")
	}))
	defer server.Close()

	p := NewSyndicationParser(newTestFetcher(server.Client()))
	if _, err := p.Parse(context.Background(), server.URL); err == nil {
		t.Fatal("expected parse error for malformed payload")
	}
}

func TestFetcherReportsHTTPStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestFetcher(server.Client()).Fetch(context.Background(), http.MethodGet, server.URL, nil, "")
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("expected 502 error, got %v", err)
	}
}

func TestFetcherAppliesTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	f := NewFetcher(server.Client(), FetchOptions{Timeout: 50 * time.Millisecond}, nil)
	_, err := f.Fetch(context.Background(), http.MethodGet, server.URL, nil, "")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, context.DeadlineExceeded) && !strings.Contains(err.Error(), "deadline") {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestFetcherCapsBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, strings.Repeat("x", 64))
	}))
	defer server.Close()

	f := NewFetcher(server.Client(), FetchOptions{MaxBodyBytes: 16}, nil)
	if _, err := f.Fetch(context.Background(), http.MethodGet, server.URL, nil, ""); err == nil {
		t.Fatal("expected oversized body error")
	}
}

func TestAPIParserSendsHeadersAndMapsItems(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("X-Api-Key"); got != "secret" {
			t.Errorf("expected api key header, got %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"limit":10}` {
			t.Errorf("unexpected body %s", body)
		}
		_, _ = io.WriteString(w, `{"data":{"posts":[
			{"id":42,"headline":"Widget 3 ships","permalink":"https://w.example/3","published_at":"2025-11-08T10:00:00Z","content":"<p>hi</p>"},
			{"id":43,"headline":"Epoch item","permalink":"https://w.example/4","published_at":1762596000},
			"not-an-object"
		]}}`)
	}))
	defer server.Close()

	p, err := NewAPIParser(newTestFetcher(server.Client()), domain.TransportOptions{
		Endpoint:  server.URL,
		Method:    "post",
		Headers:   map[string]string{"X-Api-Key": "secret"},
		Body:      `{"limit":10}`,
		ItemsPath: "data.posts",
	})
	if err != nil {
		t.Fatalf("NewAPIParser error: %v", err)
	}

	items, err := p.Parse(context.Background(), "https://ignored.example/feed")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Title != "Widget 3 ships" || items[0].Link != "https://w.example/3" {
		t.Fatalf("unexpected first item: %+v", items[0])
	}
	if items[0].SourceItemID != "42" {
		t.Fatalf("unexpected id: %s", items[0].SourceItemID)
	}
	if items[0].PublishedAt == nil || !items[0].PublishedAt.Equal(time.Date(2025, 11, 8, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected published date: %v", items[0].PublishedAt)
	}
	if items[1].PublishedAt == nil || items[1].PublishedAt.Unix() != 1762596000 {
		t.Fatalf("unexpected epoch date: %v", items[1].PublishedAt)
	}
}

func TestMapAPIResponseCustomFields(t *testing.T) {
	t.Parallel()

	payload := []byte(`[{"meta":{"ref":"r1"},"attrs":{"t":"Custom","u":"https://c.example/1","when":"not a date"}}]`)
	items, err := MapAPIResponse(payload, domain.TransportOptions{
		Fields: domain.FieldPaths{ID: "meta.ref", Title: "attrs.t", Link: "attrs.u", PublishedAt: "attrs.when"},
	})
	if err != nil {
		t.Fatalf("MapAPIResponse error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].SourceItemID != "r1" || items[0].Title != "Custom" || items[0].Link != "https://c.example/1" {
		t.Fatalf("unexpected item: %+v", items[0])
	}
	if items[0].PublishedAt != nil {
		t.Fatalf("expected unparseable date to be dropped, got %v", items[0].PublishedAt)
	}
}

func TestMapAPIResponseRejectsBadPayloads(t *testing.T) {
	t.Parallel()

	if _, err := MapAPIResponse([]byte(`{"items":`), domain.TransportOptions{}); err == nil {
		t.Fatal("expected invalid json error")
	}
	if _, err := MapAPIResponse([]byte(`{"items":{}}`), domain.TransportOptions{ItemsPath: "items"}); err == nil {
		t.Fatal("expected non-array error")
	}
}

func TestNewAPIParserRejectsMethod(t *testing.T) {
	t.Parallel()

	if _, err := NewAPIParser(nil, domain.TransportOptions{Endpoint: "https://x.example", Method: "DELETE"}); err == nil {
		t.Fatal("expected unsupported method error")
	}
}

func TestNewAPIParserRequiresEndpoint(t *testing.T) {
	t.Parallel()

	if _, err := NewAPIParser(nil, domain.TransportOptions{Endpoint: "  "}); err == nil {
		t.Fatal("expected missing endpoint error")
	}
}

func TestFactoryThroughSelector(t *testing.T) {
	t.Parallel()

	sel := scanner.NewSelector(NewFactory(newTestFetcher(nil)))

	p, err := sel.CreateParser(domain.TransportSyndication, nil)
	if err != nil {
		t.Fatalf("syndication: %v", err)
	}
	if _, ok := p.(*SyndicationParser); !ok {
		t.Fatalf("expected *SyndicationParser, got %T", p)
	}

	p, err = sel.CreateParser(domain.TransportAPI, &domain.TransportOptions{Endpoint: "https://api.example/items"})
	if err != nil {
		t.Fatalf("api: %v", err)
	}
	if _, ok := p.(*APIParser); !ok {
		t.Fatalf("expected *APIParser, got %T", p)
	}

	if _, err := sel.CreateParser("graphql", nil); !errors.Is(err, domain.ErrUnknownTransport) {
		t.Fatalf("expected ErrUnknownTransport, got %v", err)
	}
	if _, err := sel.CreateParser(domain.TransportAPI, nil); err == nil {
		t.Fatal("expected error for api transport without endpoint")
	}
}
