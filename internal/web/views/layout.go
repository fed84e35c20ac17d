// Package views renders the admin pages.
package views

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// Nav entries, in display order.
var navItems = []struct{ Key, Label, Href string }{
	{"products", "Products", "/"},
	{"template", "Review template", "/template"},
	{"audit", "Audit log", "/audit-log"},
}

// Layout wraps body in the page shell. active is the nav key to highlight.
func Layout(title, active string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		b.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		fmt.Fprintf(&b, `<title>%s · catalogdesk</title>`, esc(title))
		b.WriteString(`<script src="https://unpkg.com/htmx.org@2.0.4"></script>`)
		b.WriteString(`</head><body><nav class="sidebar"><ul>`)
		for _, item := range navItems {
			class := ""
			if item.Key == active {
				class = ` class="active"`
			}
			fmt.Fprintf(&b, `<li%s><a href="%s">%s</a></li>`, class, item.Href, esc(item.Label))
		}
		fmt.Fprintf(&b, `</ul></nav><main><h1>%s</h1>`, esc(title))
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</main></body></html>`)
		return err
	})
}

// ErrorAlert is the fragment htmx swaps in when a request fails.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<div class="alert alert-error" role="alert"><strong>%s</strong>`+
				`<p>%s</p><small>Code: %s</small></div>`,
			esc(message), esc(action), esc(code))
		return err
	})
}

// Notice is a success fragment.
func Notice(message string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<div class="alert alert-success" role="status">%s</div>`, esc(message))
		return err
	})
}

func esc(s string) string {
	return templ.EscapeString(s)
}
