// Package markdown renders post bodies written in Markdown/MDX to HTML.
//
// It understands the subset used by the blog: ATX headings, paragraphs,
// emphasis, inline and fenced code, lists, blockquotes, tables, rules, links
// and images. MDX module statements (import/export) and JSX component lines
// are dropped, since components are a presentation concern of the front end.
package markdown

import (
	"bytes"
	"context"
	"html"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/eringen/lilac/content"
)

var (
	reStrong       = regexp.MustCompile(`\*\*(.+?)\*\*|__(.+?)__`)
	reEmphasis     = regexp.MustCompile(`\*([^*]+)\*|\b_([^_]+)_\b`)
	reStrike       = regexp.MustCompile(`~~(.+?)~~`)
	reCodeSpan     = regexp.MustCompile("`([^`]+)`")
	reLink         = regexp.MustCompile(`\[([^\]]*)\]\(([^)\s]*)(?:\s+&#34;([^&]*)&#34;)?\)`)
	reImage        = regexp.MustCompile(`!\[([^\]]*)\]\(([^)\s]*)\)`)
	reOrderedItem  = regexp.MustCompile(`^\s*(\d+)[.)]\s+`)
	reBulletItem   = regexp.MustCompile(`^\s*[-*+]\s+`)
	reHeading      = regexp.MustCompile(`^(#{1,6})\s+(.*?)\s*#*\s*$`)
	reRule         = regexp.MustCompile(`^\s*(?:(?:-\s*){3,}|(?:\*\s*){3,}|(?:_\s*){3,})$`)
	reMDXStatement = regexp.MustCompile(`^(import|export)\s`)
	reJSXOpen      = regexp.MustCompile(`^\s*<([A-Z][A-Za-z0-9.]*)\b`)
)

// Markdown returns a templ.Component that renders src as HTML.
func Markdown(src string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		RenderMarkdown(&buf, src)
		_, err := w.Write(buf.Bytes())
		return err
	})
}

// RenderString renders src to an HTML string.
func RenderString(src string) string {
	var buf bytes.Buffer
	RenderMarkdown(&buf, src)
	return buf.String()
}

type block int

const (
	blockNone block = iota
	blockPara
	blockList
	blockOrderedList
	blockQuote
	blockTable
	blockCode
	blockJSX
)

// renderer tracks which block is open while lines are consumed.
type renderer struct {
	buf      *bytes.Buffer
	open     block
	tableRow int
	jsxTag   string
	headings map[string]int
}

// RenderMarkdown writes the HTML representation of src to buf.
func RenderMarkdown(buf *bytes.Buffer, src string) {
	r := &renderer{buf: buf, headings: make(map[string]int)}
	src = strings.ReplaceAll(src, "\r\n", "\n")
	for _, line := range strings.Split(src, "\n") {
		r.line(line)
	}
	r.close()
}

func (r *renderer) close() {
	switch r.open {
	case blockPara:
		r.buf.WriteString("</p>")
	case blockList:
		r.buf.WriteString("</ul>")
	case blockOrderedList:
		r.buf.WriteString("</ol>")
	case blockQuote:
		r.buf.WriteString("</blockquote>")
	case blockTable:
		if r.tableRow > 0 {
			r.buf.WriteString("</tbody>")
		}
		r.buf.WriteString("</table>")
	case blockCode:
		r.buf.WriteString("</code></pre>")
	}
	r.open = blockNone
	r.tableRow = 0
	r.jsxTag = ""
}

// enter closes the current block unless it is already b, and reports whether
// a new block was opened.
func (r *renderer) enter(b block) bool {
	if r.open == b {
		return false
	}
	r.close()
	r.open = b
	return true
}

func (r *renderer) line(line string) {
	trimmed := strings.TrimSpace(line)

	switch r.open {
	case blockCode:
		if strings.HasPrefix(trimmed, "```") {
			r.close()
			return
		}
		r.buf.WriteString(html.EscapeString(line))
		r.buf.WriteByte('\n')
		return
	case blockJSX:
		if strings.Contains(line, "</"+r.jsxTag+">") || strings.HasSuffix(trimmed, "/>") && !strings.Contains(trimmed, "<") {
			r.open = blockNone
			r.jsxTag = ""
		}
		return
	}

	switch {
	case trimmed == "":
		r.close()
	case strings.HasPrefix(trimmed, "```"):
		r.close()
		r.open = blockCode
		if lang := strings.TrimSpace(trimmed[3:]); lang != "" {
			r.buf.WriteString(`<pre class="code-block"><code class="language-` + html.EscapeString(lang) + `">`)
		} else {
			r.buf.WriteString(`<pre class="code-block"><code>`)
		}
	case r.open == blockNone && reMDXStatement.MatchString(trimmed):
	case reJSXOpen.MatchString(line):
		r.jsx(trimmed)
	case reRule.MatchString(line):
		r.close()
		r.buf.WriteString("<hr/>")
	case reHeading.MatchString(trimmed):
		r.close()
		m := reHeading.FindStringSubmatch(trimmed)
		level := strconv.Itoa(len(m[1]))
		r.buf.WriteString("<h" + level + ` id="` + r.headingID(m[2]) + `">`)
		r.buf.WriteString(FormatInline(m[2]))
		r.buf.WriteString("</h" + level + ">")
	case strings.HasPrefix(trimmed, "|"):
		r.tableLine(trimmed)
	case reBulletItem.MatchString(line):
		if r.enter(blockList) {
			r.buf.WriteString("<ul>")
		}
		r.buf.WriteString("<li>" + FormatInline(reBulletItem.ReplaceAllString(line, "")) + "</li>")
	case reOrderedItem.MatchString(line):
		if r.enter(blockOrderedList) {
			start := reOrderedItem.FindStringSubmatch(line)[1]
			if start != "1" {
				r.buf.WriteString(`<ol start="` + start + `">`)
			} else {
				r.buf.WriteString("<ol>")
			}
		}
		r.buf.WriteString("<li>" + FormatInline(reOrderedItem.ReplaceAllString(line, "")) + "</li>")
	case strings.HasPrefix(trimmed, ">"):
		if r.enter(blockQuote) {
			r.buf.WriteString("<blockquote>")
		} else {
			r.buf.WriteByte(' ')
		}
		r.buf.WriteString(FormatInline(strings.TrimSpace(strings.TrimPrefix(trimmed, ">"))))
	default:
		if r.enter(blockPara) {
			r.buf.WriteString("<p>")
		} else {
			r.buf.WriteByte(' ')
		}
		r.buf.WriteString(FormatInline(trimmed))
	}
}

// jsx skips a component line, remembering the tag when the element spans
// several lines.
func (r *renderer) jsx(trimmed string) {
	r.close()
	tag := reJSXOpen.FindStringSubmatch(trimmed)[1]
	if strings.HasSuffix(trimmed, "/>") || strings.Contains(trimmed, "</"+tag+">") {
		return
	}
	r.open = blockJSX
	r.jsxTag = tag
}

func (r *renderer) tableLine(trimmed string) {
	if r.enter(blockTable) {
		r.buf.WriteString("<table><thead><tr>")
		for _, cell := range tableCells(trimmed) {
			r.buf.WriteString("<th>" + FormatInline(cell) + "</th>")
		}
		r.buf.WriteString("</tr></thead>")
		return
	}
	if isTableSeparator(trimmed) {
		return
	}
	if r.tableRow == 0 {
		r.buf.WriteString("<tbody>")
	}
	r.tableRow++
	r.buf.WriteString("<tr>")
	for _, cell := range tableCells(trimmed) {
		r.buf.WriteString("<td>" + FormatInline(cell) + "</td>")
	}
	r.buf.WriteString("</tr>")
}

// headingID derives a unique anchor for a heading.
func (r *renderer) headingID(text string) string {
	id := content.Slugify(text)
	if id == "" {
		id = "section"
	}
	n := r.headings[id]
	r.headings[id] = n + 1
	if n > 0 {
		id += "-" + strconv.Itoa(n)
	}
	return id
}

func tableCells(line string) []string {
	parts := strings.Split(strings.Trim(line, "|"), "|")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

func isTableSeparator(line string) bool {
	for _, cell := range tableCells(line) {
		if strings.Trim(cell, "-: ") != "" {
			return false
		}
	}
	return true
}

// FormatInline escapes s and applies inline Markdown: images, links, code
// spans, strong, emphasis and strikethrough.
func FormatInline(s string) string {
	escaped := html.EscapeString(strings.TrimSpace(s))

	// Code spans are swapped for placeholders so emphasis never applies
	// inside them.
	var spans []string
	escaped = reCodeSpan.ReplaceAllStringFunc(escaped, func(m string) string {
		spans = append(spans, "<code>"+reCodeSpan.FindStringSubmatch(m)[1]+"</code>")
		return "\x00" + strconv.Itoa(len(spans)-1) + "\x00"
	})

	escaped = reImage.ReplaceAllStringFunc(escaped, func(m string) string {
		match := reImage.FindStringSubmatch(m)
		src := SafeURL(match[2])
		if src == "" {
			return match[1]
		}
		return `<img src="` + src + `" alt="` + match[1] + `" loading="lazy" decoding="async"/>`
	})
	escaped = reLink.ReplaceAllStringFunc(escaped, func(m string) string {
		match := reLink.FindStringSubmatch(m)
		href := SafeURL(match[2])
		if href == "" {
			return match[1]
		}
		attrs := ""
		if match[3] != "" {
			attrs += ` title="` + match[3] + `"`
		}
		if strings.HasPrefix(href, "http") {
			attrs += ` rel="noopener noreferrer"`
		}
		return `<a href="` + href + `"` + attrs + `>` + match[1] + `</a>`
	})

	escaped = outsideTags(escaped, func(seg string) string {
		seg = reStrong.ReplaceAllString(seg, "<strong>$1$2</strong>")
		seg = reEmphasis.ReplaceAllString(seg, "<em>$1$2</em>")
		return reStrike.ReplaceAllString(seg, "<del>$1</del>")
	})

	for i, span := range spans {
		escaped = strings.Replace(escaped, "\x00"+strconv.Itoa(i)+"\x00", span, 1)
	}
	return escaped
}

// outsideTags applies fn to the text between HTML tags only, leaving
// attribute values such as URLs untouched.
func outsideTags(s string, fn func(string) string) string {
	var b strings.Builder
	for s != "" {
		lt := strings.IndexByte(s, '<')
		if lt < 0 {
			b.WriteString(fn(s))
			break
		}
		b.WriteString(fn(s[:lt]))
		gt := strings.IndexByte(s[lt:], '>')
		if gt < 0 {
			b.WriteString(s[lt:])
			break
		}
		b.WriteString(s[lt : lt+gt+1])
		s = s[lt+gt+1:]
	}
	return b.String()
}

// SafeURL returns raw escaped for an HTML attribute, or "" when its scheme
// is not one of http, https, mailto or tel. Relative paths and fragments are
// allowed.
func SafeURL(raw string) string {
	val := strings.TrimSpace(html.UnescapeString(raw))
	if val == "" {
		return ""
	}
	if strings.HasPrefix(val, "/") || strings.HasPrefix(val, "#") || strings.HasPrefix(val, "./") {
		return html.EscapeString(val)
	}
	u, err := url.Parse(val)
	if err != nil {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "mailto", "tel":
		return html.EscapeString(val)
	case "":
		if !strings.Contains(val, ":") {
			return html.EscapeString(val)
		}
	}
	return ""
}
