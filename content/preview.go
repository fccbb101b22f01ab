package content

import (
	"regexp"
	"strings"
)

// DefaultPreviewLength is the excerpt length used by the public API.
const DefaultPreviewLength = 200

var (
	rePreviewFrontmatter = regexp.MustCompile(`^---[\s\S]*?---`)
	rePreviewCodeBlock   = regexp.MustCompile("(?s)```.*?```")
	rePreviewInlineCode  = regexp.MustCompile("`[^`]*`")
	rePreviewImage       = regexp.MustCompile(`!\[.*?\]\(.*?\)`)
	rePreviewLink        = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	rePreviewMarkup      = regexp.MustCompile("[#*_~`]")
	rePreviewNewlines    = regexp.MustCompile(`[\r\n]+`)
)

// Preview returns a plain-text excerpt of Markdown content at most maxLen
// runes long, followed by "..." when truncated.
func Preview(md string, maxLen int) string {
	text := rePreviewFrontmatter.ReplaceAllString(md, "")
	text = rePreviewCodeBlock.ReplaceAllString(text, "")
	text = rePreviewInlineCode.ReplaceAllString(text, "")
	text = rePreviewImage.ReplaceAllString(text, "")
	text = rePreviewLink.ReplaceAllString(text, "$1")
	text = rePreviewMarkup.ReplaceAllString(text, "")
	text = rePreviewNewlines.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	runes := []rune(text)
	if maxLen <= 0 || len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen]) + "..."
}
