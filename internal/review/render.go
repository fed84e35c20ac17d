// Package review renders the review blog post from a saved text template.
//
// The template syntax is a placeholder convention, not a template language:
// {{name}} is replaced literally (no escaping) and one level of
// {{#each products}} ... {{/each}} repeats its body per product. Unknown
// placeholders are left as written so a typo is visible in the preview.
package review

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/JonMunkholm/catalogdesk/internal/catalog"
)

const (
	eachOpen  = "{{#each products}}"
	eachClose = "{{/each}}"
)

var placeholderRegex = regexp.MustCompile(`\{\{\s*([A-Za-z][A-Za-z0-9_.]*)\s*\}\}`)

// Data is what a template is rendered against.
type Data struct {
	Vars     map[string]string
	Products []catalog.Product
}

// Render expands tmpl against d.
func Render(tmpl string, d Data) string {
	var b strings.Builder
	rest := tmpl

	for {
		open := strings.Index(rest, eachOpen)
		if open < 0 {
			break
		}
		end := strings.Index(rest[open+len(eachOpen):], eachClose)
		if end < 0 {
			// Unterminated loop renders as plain text.
			break
		}

		b.WriteString(substitute(rest[:open], d.Vars, nil))

		body := rest[open+len(eachOpen) : open+len(eachOpen)+end]
		for i, p := range d.Products {
			b.WriteString(substitute(body, d.Vars, productVars(i, p)))
		}

		rest = rest[open+len(eachOpen)+end+len(eachClose):]
	}

	b.WriteString(substitute(rest, d.Vars, nil))
	return b.String()
}

// substitute replaces known placeholders; inner takes precedence over outer.
func substitute(s string, outer, inner map[string]string) string {
	return placeholderRegex.ReplaceAllStringFunc(s, func(m string) string {
		name := placeholderRegex.FindStringSubmatch(m)[1]
		if v, ok := inner[name]; ok {
			return v
		}
		if v, ok := outer[name]; ok {
			return v
		}
		return m
	})
}

func productVars(i int, p catalog.Product) map[string]string {
	return map[string]string{
		"index":       strconv.Itoa(i + 1),
		"id":          p.ID,
		"title":       p.Title,
		"subtitle":    p.Subtitle,
		"brand":       p.Brand,
		"price":       p.Price.String(),
		"rating":      formatNumber(p.Rating, "N/A"),
		"reviewCount": formatNumber(p.ReviewCount, "0"),
		"url":         p.URL,
		"imageUrl":    p.ImageURL,
	}
}

func formatNumber(n catalog.Number, missing string) string {
	if !n.Valid {
		return missing
	}
	return strconv.FormatFloat(n.Value, 'f', -1, 64)
}

// Placeholders lists the distinct placeholder names used in tmpl, in order
// of first appearance.
func Placeholders(tmpl string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range placeholderRegex.FindAllStringSubmatch(tmpl, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}
