package content

import "regexp"

var (
	reScript        = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	reJavaScriptURI = regexp.MustCompile(`(?i)javascript:`)
	reEventHandler  = regexp.MustCompile(`(?i)\bon[a-z]+\s*=`)
)

// SanitizeContent strips <script> elements, javascript: URIs and inline event
// handler attributes from submitted Markdown/MDX. It is a blocklist, not an
// HTML parser. Removal repeats until nothing matches so that fragments cannot
// reassemble into a new match.
func SanitizeContent(s string) string {
	for {
		out := reScript.ReplaceAllString(s, "")
		out = reJavaScriptURI.ReplaceAllString(out, "")
		out = reEventHandler.ReplaceAllString(out, "")
		if out == s {
			return out
		}
		s = out
	}
}
