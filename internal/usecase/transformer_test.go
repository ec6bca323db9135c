package usecase

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FeedAggregator/internal/domain"
)

var ingestion = time.Date(2025, 11, 8, 9, 30, 0, 0, time.UTC)

func fixedTransformer() *Transformer {
	return NewTransformer(func() time.Time { return ingestion })
}

func TestTransformRejectsItemsWithoutTitleAndLink(t *testing.T) {
	t.Parallel()

	tr := fixedTransformer()
	_, ok := tr.Transform(domain.RawFeedItem{Summary: "orphan", BodyRaw: "<p>body</p>"}, domain.FeedSource{URL: "https://a.example/rss"})
	assert.False(t, ok)

	_, ok = tr.Transform(domain.RawFeedItem{Title: "  <b></b> "}, domain.FeedSource{URL: "https://a.example/rss"})
	assert.False(t, ok, "markup-only title counts as missing")
}

func TestTransformBuildsCanonicalUpdate(t *testing.T) {
	t.Parallel()

	published := time.Date(2025, 11, 7, 18, 0, 0, 0, time.FixedZone("CET", 3600))
	source := domain.FeedSource{
		URL:         "https://acme.example/rss",
		SourceLabel: "acme-blog",
		EntityHint:  domain.EntityHint{ModelID: "acme-v2"},
	}
	item := domain.RawFeedItem{
		Title:       "Acme &amp; <em>friends</em> ship v2",
		Link:        " https://acme.example/posts/v2 ",
		PublishedAt: &published,
		BodyRaw:     `<p>New <strong>release</strong></p><script>alert(1)</script>`,
	}

	update, ok := fixedTransformer().Transform(item, source)
	require.True(t, ok)

	assert.Equal(t, "Acme & friends ship v2", update.Title)
	assert.Equal(t, "https://acme.example/posts/v2", update.Link)
	assert.Equal(t, "acme-blog", update.SourceLabel)
	assert.True(t, update.PublishedAt.Equal(published))
	assert.Equal(t, time.UTC, update.PublishedAt.Location())
	require.NotNil(t, update.Content)
	assert.Contains(t, *update.Content, "**release**")
	assert.NotContains(t, *update.Content, "<")
	assert.NotContains(t, *update.Content, "alert")
	require.NotNil(t, update.Description)
	assert.Equal(t, "New release", *update.Description)
	require.NotNil(t, update.ModelID)
	assert.Equal(t, "acme-v2", *update.ModelID)
	assert.Nil(t, update.ToolID)
	assert.Nil(t, update.MatchConfidence)
	assert.Empty(t, update.RelatedTools)
	assert.NotNil(t, update.RelatedTools)
}

func TestTransformNeutralizesEscapedMarkup(t *testing.T) {
	t.Parallel()

	item := domain.RawFeedItem{
		Title:   "Patch &lt;script&gt;alert(1)&lt;/script&gt;notes",
		Link:    "https://api.example/changes/9",
		Summary: "&lt;img src=x onerror=alert(1)&gt;Bug fixes",
		BodyRaw: "&lt;p&gt;Fixed &lt;b&gt;crash&lt;/b&gt;&lt;script&gt;steal()&lt;/script&gt;&lt;/p&gt;",
	}

	update, ok := fixedTransformer().Transform(item, domain.FeedSource{URL: "https://api.example/feed", SourceLabel: "api"})
	require.True(t, ok)

	assert.Equal(t, "Patch notes", update.Title)
	require.NotNil(t, update.Description)
	assert.Equal(t, "Bug fixes", *update.Description)
	require.NotNil(t, update.Content)
	assert.Equal(t, "Fixed **crash**", *update.Content)
	for _, field := range []string{update.Title, *update.Description, *update.Content} {
		assert.NotContains(t, field, "<")
		assert.NotContains(t, field, "alert")
		assert.NotContains(t, field, "steal")
	}
}

func TestTransformFallbacks(t *testing.T) {
	t.Parallel()

	tr := fixedTransformer()
	source := domain.FeedSource{URL: "https://acme.example/rss"}

	update, ok := tr.Transform(domain.RawFeedItem{Link: "https://acme.example/p/1"}, source)
	require.True(t, ok)
	assert.Equal(t, "https://acme.example/p/1", update.Title, "link stands in for a missing title")
	assert.True(t, update.PublishedAt.Equal(ingestion), "undated items take ingestion time")
	assert.Equal(t, "https://acme.example/rss", update.SourceLabel, "url stands in for a missing label")
	assert.Nil(t, update.Description)
	assert.Nil(t, update.Content)

	long := strings.Repeat("word ", 200)
	update, ok = tr.Transform(domain.RawFeedItem{Title: "t", Summary: long}, source)
	require.True(t, ok)
	require.NotNil(t, update.Description)
	assert.LessOrEqual(t, len(*update.Description), summaryLimit+len("..."))
}

func TestDedupKeyStableAndSourceQualified(t *testing.T) {
	t.Parallel()

	item := domain.RawFeedItem{Title: "Same", Link: "https://news.example/a"}

	assert.Equal(t, DedupKey("acme", item), DedupKey("acme", item))
	assert.NotEqual(t, DedupKey("acme", item), DedupKey("other", item))

	retitled := item
	retitled.Title = "Edited title"
	assert.Equal(t, DedupKey("acme", item), DedupKey("acme", retitled), "title edits keep the key")

	tracked := item
	tracked.Link = "HTTPS://News.Example/a?utm_source=rss#comments"
	assert.Equal(t, DedupKey("acme", item), DedupKey("acme", tracked))
	assert.Len(t, DedupKey("acme", item), 64)
}

func TestDedupKeyFallbacks(t *testing.T) {
	t.Parallel()

	byID := domain.RawFeedItem{Title: "A", SourceItemID: "guid-1"}
	sameID := domain.RawFeedItem{Title: "B", SourceItemID: "guid-1"}
	assert.Equal(t, DedupKey("acme", byID), DedupKey("acme", sameID))

	byTitle := domain.RawFeedItem{Title: "  Hello   World "}
	sameTitle := domain.RawFeedItem{Title: "hello world"}
	assert.Equal(t, DedupKey("acme", byTitle), DedupKey("acme", sameTitle))

	// an id equal to some title must not collide with it
	assert.NotEqual(t,
		DedupKey("acme", domain.RawFeedItem{SourceItemID: "hello world"}),
		DedupKey("acme", sameTitle))
}

func TestNormalizeLink(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "  ", want: ""},
		{name: "relative kept", in: "/posts/1", want: "/posts/1"},
		{name: "host lowercased", in: "https://EXAMPLE.com/Path", want: "https://example.com/Path"},
		{name: "fragment dropped", in: "https://example.com/a#top", want: "https://example.com/a"},
		{name: "tracking dropped", in: "https://example.com/a?utm_medium=x&id=7", want: "https://example.com/a?id=7"},
		{name: "only tracking", in: "https://example.com/a?UTM_Source=x", want: "https://example.com/a"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, NormalizeLink(tc.in))
		})
	}
}
