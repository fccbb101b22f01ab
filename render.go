package lilac

import (
	"bytes"
	"context"

	"github.com/a-h/templ"

	"github.com/eringen/lilac/markdown"
)

// RenderString renders a templ component to a string.
func RenderString(ctx context.Context, cmp templ.Component) (string, error) {
	var buf bytes.Buffer
	if err := cmp.Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderPostHTML renders a post body to HTML.
func RenderPostHTML(ctx context.Context, body string) (string, error) {
	return RenderString(ctx, markdown.Markdown(body))
}
