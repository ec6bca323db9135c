package textclean

import (
	"strings"
	"testing"
)

func TestPlainText(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		in   string
		want string
	}{
		"empty":        {in: "   ", want: ""},
		"plain":        {in: "already plain", want: "already plain"},
		"inline tags":  {in: "<p>Faster <b>inference</b>.</p>", want: "Faster inference."},
		"blocks split": {in: "<p>one</p><p>two</p><ul><li>a</li><li>b</li></ul>", want: "one two a b"},
		"entities":     {in: "Tom &amp; Jerry&nbsp;return", want: "Tom & Jerry return"},
		"script":       {in: "<p>ok</p><script>alert(1)</script>", want: "ok"},
	}

	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if got := PlainText(tc.in); got != tc.want {
				t.Fatalf("PlainText(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestMarkdown(t *testing.T) {
	t.Parallel()

	in := `<h2>Release notes</h2>
<p>Version <strong>2.0</strong> is <em>out</em>. Read the <a href="https://acme.example/v2">announcement</a>.</p>
<ul><li>Faster</li><li>Cheaper</li></ul>
<p>Use <code>acme run</code> now.<img src="x.png"></p>
<script>steal()</script>
<a href="javascript:alert(1)">bad link</a>`

	got := Markdown(in)
	want := strings.Join([]string{
		"## Release notes",
		"",
		"Version **2.0** is _out_. Read the [announcement](https://acme.example/v2).",
		"",
		"- Faster",
		"- Cheaper",
		"",
		"Use `acme run` now.",
		"",
		"bad link",
	}, "\n")

	if got != want {
		t.Fatalf("Markdown mismatch\n got: %q\nwant: %q", got, want)
	}
	if strings.Contains(got, "steal") || strings.Contains(got, "<") {
		t.Fatalf("markup leaked into output: %q", got)
	}
}

func TestMarkdownPlainInput(t *testing.T) {
	t.Parallel()

	if got := Markdown("  line one\n\n\n\nline  two  "); got != "line one\n\nline two" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	if got := Truncate("short", 10); got != "short" {
		t.Fatalf("unexpected %q", got)
	}
	if got := Truncate("the quick brown fox jumps", 12); got != "the quick..." {
		t.Fatalf("unexpected %q", got)
	}
	if got := Truncate("ééééééééé", 3); got != "ééé..." {
		t.Fatalf("unexpected %q", got)
	}
}

func TestEscapedMarkupStaysInert(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		in       string
		plain    string
		markdown string
	}{
		"escaped document": {
			in:       "&lt;p&gt;Hello &lt;script&gt;alert(1)&lt;/script&gt;&lt;/p&gt;",
			plain:    "Hello",
			markdown: "Hello",
		},
		"escaped tag inside markup": {
			in:       "<p>Intro &lt;img src=x onerror=alert(1)&gt; end</p>",
			plain:    "Intro end",
			markdown: "Intro end",
		},
		"double escaped": {
			in:       "&amp;lt;b&amp;gt;bold&amp;lt;/b&amp;gt; claim",
			plain:    "&lt;b&gt;bold&lt;/b&gt; claim",
			markdown: "&lt;b&gt;bold&lt;/b&gt; claim",
		},
		"comparison survives": {
			in:       "<p>latency &lt; 5ms &amp; cost &gt; 0</p>",
			plain:    "latency < 5ms & cost > 0",
			markdown: "latency < 5ms & cost > 0",
		},
	}

	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if got := PlainText(tc.in); got != tc.plain {
				t.Fatalf("PlainText(%q) = %q, want %q", tc.in, got, tc.plain)
			}
			if got := Markdown(tc.in); got != tc.markdown {
				t.Fatalf("Markdown(%q) = %q, want %q", tc.in, got, tc.markdown)
			}
		})
	}
}
