package markdown

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestFormatInline(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"**bold**", "<strong>bold</strong>"},
		{"__bold__", "<strong>bold</strong>"},
		{"*italic*", "<em>italic</em>"},
		{"_italic_", "<em>italic</em>"},
		{"~~gone~~", "<del>gone</del>"},
		{"text **bold** more", "text <strong>bold</strong> more"},
		{"**bold *italic* text**", "<strong>bold <em>italic</em> text</strong>"},
		{"use `a **b**` here", "use <code>a **b**</code> here"},
		{"1 < 2 & 3", "1 &lt; 2 &amp; 3"},
	}
	for _, tt := range tests {
		if got := FormatInline(tt.input); got != tt.expected {
			t.Errorf("FormatInline(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestFormatInlineLinks(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"[home](/)", `<a href="/">home</a>`},
		{"[docs](https://example.com/a_b_c)", `<a href="https://example.com/a_b_c" rel="noopener noreferrer">docs</a>`},
		{`[t](/x "Title")`, `<a href="/x" title="Title">t</a>`},
		{"[bad](javascript:void)", "bad"},
		{"[mail](mailto:me@example.com)", `<a href="mailto:me@example.com">mail</a>`},
	}
	for _, tt := range tests {
		if got := FormatInline(tt.input); got != tt.expected {
			t.Errorf("FormatInline(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestFormatInlineImage(t *testing.T) {
	got := FormatInline("![a cat](/api/images/cat-1-abc123.png)")
	want := `<img src="/api/images/cat-1-abc123.png" alt="a cat" loading="lazy" decoding="async"/>`
	if got != want {
		t.Errorf("FormatInline image = %q, want %q", got, want)
	}
	if got := FormatInline("![x](data:text/html,boom)"); strings.Contains(got, "<img") {
		t.Errorf("unsafe image source rendered: %q", got)
	}
}

func TestSafeURL(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"/posts/a", "/posts/a"},
		{"#intro", "#intro"},
		{"https://example.com?a=1&b=2", "https://example.com?a=1&amp;b=2"},
		{"relative/path", "relative/path"},
		{"javascript:alert(1)", ""},
		{"JavaScript:alert(1)", ""},
		{"vbscript:x", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := SafeURL(tt.input); got != tt.want {
			t.Errorf("SafeURL(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestRenderMarkdownBlocks(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"paragraph", "one\ntwo\n\nthree", []string{"<p>one two</p>", "<p>three</p>"}},
		{"heading", "## Getting Started", []string{`<h2 id="getting-started">Getting Started</h2>`}},
		{"list", "- a\n- **b**", []string{"<ul><li>a</li><li><strong>b</strong></li></ul>"}},
		{"ordered", "1. first\n2. second\n\nafter", []string{"<ol><li>first</li><li>second</li></ol>", "<p>after</p>"}},
		{"ordered start", "3. third", []string{`<ol start="3"><li>third</li></ol>`}},
		{"quote", "> wise\n> words", []string{"<blockquote>wise words</blockquote>"}},
		{"rule", "---", []string{"<hr/>"}},
		{"rule stars", "* * *", []string{"<hr/>"}},
		{"rule underscores", "_____", []string{"<hr/>"}},
		{"rule spaced dashes", "  - - -  ", []string{"<hr/>"}},
		{"code", "```go\nfmt.Println(\"<hi>\")\n```", []string{
			`<pre class="code-block"><code class="language-go">fmt.Println(&#34;&lt;hi&gt;&#34;)` + "\n</code></pre>",
		}},
		{"code no lang", "```\nx\n```", []string{`<pre class="code-block"><code>x` + "\n</code></pre>"}},
		{"table", "| A | B |\n|---|---|\n| 1 | 2 |", []string{
			"<table><thead><tr><th>A</th><th>B</th></tr></thead><tbody><tr><td>1</td><td>2</td></tr></tbody></table>",
		}},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		RenderMarkdown(&buf, tt.input)
		got := buf.String()
		for _, w := range tt.want {
			if !strings.Contains(got, w) {
				t.Errorf("%s: RenderMarkdown(%q) = %q, want to contain %q", tt.name, tt.input, got, w)
			}
		}
	}
}

func TestRenderMarkdownHeadingIDsUnique(t *testing.T) {
	got := RenderString("# Setup\n\n## Setup\n\n### !!!")
	for _, want := range []string{`id="setup"`, `id="setup-1"`, `id="section"`} {
		if !strings.Contains(got, want) {
			t.Errorf("RenderString = %q, want to contain %q", got, want)
		}
	}
}

func TestRenderMarkdownSkipsMDX(t *testing.T) {
	src := strings.Join([]string{
		"import Chart from '../components/Chart'",
		"export const meta = {}",
		"",
		"Intro text",
		"",
		"<Chart data={[1, 2]} />",
		"",
		"<Callout",
		"  type=\"info\"",
		">",
		"inside",
		"</Callout>",
		"",
		"Outro text",
	}, "\n")
	got := RenderString(src)
	for _, bad := range []string{"import", "export", "Chart", "Callout", "inside"} {
		if strings.Contains(got, bad) {
			t.Errorf("RenderString kept MDX fragment %q: %q", bad, got)
		}
	}
	if !strings.Contains(got, "<p>Intro text</p>") || !strings.Contains(got, "<p>Outro text</p>") {
		t.Errorf("RenderString lost prose: %q", got)
	}
}

func TestRenderMarkdownEscapesHTML(t *testing.T) {
	got := RenderString("<div onclick=\"x()\">hi</div>")
	if strings.Contains(got, "<div") {
		t.Errorf("raw HTML was not escaped: %q", got)
	}
}

func TestMarkdownComponent(t *testing.T) {
	var buf bytes.Buffer
	if err := Markdown("**hi**").Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if buf.String() != "<p><strong>hi</strong></p>" {
		t.Errorf("Render = %q", buf.String())
	}
}

func TestRenderMarkdownCRLF(t *testing.T) {
	if got := RenderString("a\r\nb"); got != "<p>a b</p>" {
		t.Errorf("RenderString = %q", got)
	}
}

func TestRenderMarkdownRuleNeedsOneMarker(t *testing.T) {
	for _, in := range []string{"-*-", "--", "*_*", "-- x"} {
		var buf bytes.Buffer
		RenderMarkdown(&buf, in)
		if strings.Contains(buf.String(), "<hr/>") {
			t.Errorf("RenderMarkdown(%q) = %q, want no rule", in, buf.String())
		}
	}
}
