// Package textclean turns feed markup into plain text or a small markdown subset.
package textclean

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html/atom"
)

var (
	strictPolicy = bluemonday.StrictPolicy()
	ugcPolicy    = newContentPolicy()

	blockTag    = regexp.MustCompile(`(?i)<(/?(?:p|div|br|li|h[1-6]|tr|td|th|section|article|blockquote|ul|ol|pre)\b)`)
	spaceRun    = regexp.MustCompile(`[ \t\f\v\r\x{00a0}]+`)
	newlineRun  = regexp.MustCompile(`\n{3,}`)
	anySpaceRun = regexp.MustCompile(`[\s\x{00a0}]+`)
	leftoverTag = regexp.MustCompile(`</?[a-zA-Z][^<>]*>`)
)

// Escaped markup is decoded and sanitized again, at most this many times.
const maxDecodePasses = 3

func newContentPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("article", "section", "div", "span")
	p.AllowAttrs("href").OnElements("a")
	return p
}

// PlainText strips every tag and entity and collapses whitespace to single spaces.
func PlainText(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	text := stripMarkup(raw)
	return strings.TrimSpace(anySpaceRun.ReplaceAllString(text, " "))
}

// stripMarkup removes tags and decodes entities until the decoded text holds
// no markup, so escaped tags never come back out as live ones.
func stripMarkup(s string) string {
	for pass := 0; pass < maxDecodePasses; pass++ {
		spaced := blockTag.ReplaceAllString(s, " <$1")
		next := html.UnescapeString(strictPolicy.Sanitize(spaced))
		if !strings.Contains(next, "<") || next == s {
			return leftoverTag.ReplaceAllString(next, "")
		}
		s = next
	}
	return leftoverTag.ReplaceAllString(s, "")
}

// Markdown converts markup to paragraphs, headings, lists, links and emphasis.
// Anything else is reduced to its text.
func Markdown(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "<") {
		decoded := html.UnescapeString(raw)
		if !strings.Contains(decoded, "<") {
			return tidy(decoded)
		}
		raw = decoded
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(ugcPolicy.Sanitize(raw)))
	if err != nil {
		return PlainText(raw)
	}

	var b strings.Builder
	doc.Find("body").Contents().Each(func(_ int, s *goquery.Selection) {
		writeNode(&b, s)
	})
	return tidy(b.String())
}

// Truncate shortens s to at most n runes, cutting on a word boundary when possible.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	cut := string(runes[:n])
	if idx := strings.LastIndexAny(cut, " \n"); idx > n/2 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut) + "..."
}

func writeNode(b *strings.Builder, s *goquery.Selection) {
	node := s.Get(0)
	if node == nil {
		return
	}

	switch goquery.NodeName(s) {
	case "#text":
		text := node.Data
		if strings.ContainsAny(text, "<>") {
			text = stripMarkup(text)
		}
		b.WriteString(anySpaceRun.ReplaceAllString(text, " "))
		return
	case "#comment":
		return
	}

	switch node.DataAtom {
	case atom.P, atom.Div, atom.Section, atom.Article, atom.Table, atom.Tr:
		b.WriteString("\n\n")
		writeChildren(b, s)
		b.WriteString("\n\n")
	case atom.Br:
		b.WriteString("\n")
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		level := int(node.Data[1] - '0')
		b.WriteString("\n\n" + strings.Repeat("#", level) + " " + inline(s) + "\n\n")
	case atom.Ul, atom.Ol:
		b.WriteString("\n")
		writeChildren(b, s)
		b.WriteString("\n")
	case atom.Li:
		b.WriteString("\n- " + inline(s))
	case atom.A:
		text := inline(s)
		href, _ := s.Attr("href")
		if text == "" {
			return
		}
		if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
			b.WriteString("[" + text + "](" + href + ")")
			return
		}
		b.WriteString(text)
	case atom.Strong, atom.B:
		wrap(b, "**", inline(s))
	case atom.Em, atom.I:
		wrap(b, "_", inline(s))
	case atom.Code:
		wrap(b, "`", strings.TrimSpace(s.Text()))
	case atom.Pre:
		b.WriteString("\n\n```\n" + strings.TrimSpace(s.Text()) + "\n```\n\n")
	case atom.Blockquote:
		b.WriteString("\n\n> " + inline(s) + "\n\n")
	case atom.Img, atom.Hr:
	default:
		writeChildren(b, s)
	}
}

func writeChildren(b *strings.Builder, s *goquery.Selection) {
	s.Contents().Each(func(_ int, child *goquery.Selection) {
		writeNode(b, child)
	})
}

func inline(s *goquery.Selection) string {
	var b strings.Builder
	writeChildren(&b, s)
	return strings.TrimSpace(anySpaceRun.ReplaceAllString(b.String(), " "))
}

func wrap(b *strings.Builder, marker, text string) {
	if text == "" {
		return
	}
	b.WriteString(marker + text + marker)
}

func tidy(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
	}
	out := newlineRun.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(out)
}
