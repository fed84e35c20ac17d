package views

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/catalogdesk/internal/audit"
)

// TemplateParams feeds the review template editor.
type TemplateParams struct {
	Text         string
	Preview      string
	Placeholders []string
	Selected     int
}

// TemplatePage is the review template editor.
func TemplatePage(p TemplateParams) templ.Component {
	return Layout("Review template", "template", templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		fmt.Fprintf(&b, `<p>%d products selected for the post.</p>`, p.Selected)
		b.WriteString(`<form id="template-form" hx-post="/partials/template/preview" hx-target="#preview">`)
		b.WriteString(`<input type="text" name="postTitle" placeholder="Post title">`)
		fmt.Fprintf(&b, `<textarea name="text" rows="20" cols="80">%s</textarea>`, esc(p.Text))
		b.WriteString(`<button type="submit">Preview</button>`)
		b.WriteString(`<button hx-put="/api/template" hx-include="#template-form" hx-target="#preview">Save</button>`)
		b.WriteString(`<button hx-delete="/api/template" hx-confirm="Discard your template and restore the default?">Reset</button>`)
		b.WriteString(`</form>`)

		if len(p.Placeholders) > 0 {
			b.WriteString(`<p class="placeholders">Placeholders: `)
			for i, name := range p.Placeholders {
				if i > 0 {
					b.WriteString(", ")
				}
				fmt.Fprintf(&b, `<code>{{%s}}</code>`, esc(name))
			}
			b.WriteString(`</p>`)
		}
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
		return TemplatePreview(p.Preview).Render(ctx, w)
	}))
}

// TemplatePreview shows rendered template text verbatim.
func TemplatePreview(text string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<pre id="preview">%s</pre>`, esc(text))
		return err
	})
}

// AuditLogPage lists audit entries, newest first.
func AuditLogPage(entries []audit.Entry) templ.Component {
	return Layout("Audit log", "audit", templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		if len(entries) == 0 {
			b.WriteString(`<p class="empty">Nothing has happened yet.</p>`)
		} else {
			b.WriteString(`<table><thead><tr><th>When</th><th>Event</th><th>Details</th><th>Severity</th><th>IP</th></tr></thead><tbody>`)
			for _, e := range entries {
				fmt.Fprintf(&b, `<tr class="kind-%s"><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>`,
					esc(string(e.Kind)), e.CreatedAt.Format("2006-01-02 15:04:05"),
					esc(e.Title), esc(e.Details), esc(string(e.Severity)), esc(e.IPAddress))
			}
			b.WriteString(`</tbody></table>`)
		}
		_, err := io.WriteString(w, b.String())
		return err
	}))
}
