package views

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/catalogdesk/internal/catalog"
)

// ProductsParams feeds the product grid page.
type ProductsParams struct {
	View     catalog.View[catalog.Product]
	Spec     catalog.FilterSpec
	Selected map[string]bool
	// Columns are the saved export columns; Available is every column.
	Columns   []string
	Available []string
}

var categoryLabels = map[catalog.Category]string{
	catalog.CategoryAll:          "All",
	catalog.CategoryBestSeller:   "Best sellers",
	catalog.CategoryPrime:        "Prime",
	catalog.CategoryEcoFriendly:  "Eco friendly",
	catalog.CategoryAmazonChoice: "Amazon's Choice",
	catalog.CategoryDeals:        "Deals",
}

var priceLabels = map[catalog.PriceRange]string{
	catalog.PriceAll:     "Any price",
	catalog.PriceUnder25: "Under $25",
	catalog.Price25To50:  "$25 to $50",
	catalog.Price50To100: "$50 to $100",
	catalog.PriceOver100: "Over $100",
}

var sortLabels = map[catalog.SortKey]string{
	catalog.SortRatingDesc:   "Top rated",
	catalog.SortRatingAsc:    "Lowest rated",
	catalog.SortPriceAsc:     "Price: low to high",
	catalog.SortPriceDesc:    "Price: high to low",
	catalog.SortReviewsDesc:  "Most reviewed",
	catalog.SortAlphabetical: "A to Z",
}

// ProductsPage is the full grid page.
func ProductsPage(p ProductsParams) templ.Component {
	return Layout("Products", "products", templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		writeFilterForm(&b, p.Spec)
		writeBulkBar(&b, len(p.Selected))
		writeColumnPicker(&b, p.Columns, p.Available)
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
		return ProductGrid(p).Render(ctx, w)
	}))
}

// ProductGrid is the table fragment that filter changes swap.
func ProductGrid(p ProductsParams) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		fmt.Fprintf(&b, `<section id="grid"><p class="count">Showing %d of %d products</p>`,
			p.View.FilteredCount, p.View.TotalCount)

		if len(p.View.Items) == 0 {
			b.WriteString(`<p class="empty">No products match these filters.</p></section>`)
			_, err := io.WriteString(w, b.String())
			return err
		}

		b.WriteString(`<table><thead><tr><th></th><th>Title</th><th>Price</th><th>Rating</th><th>Reviews</th><th>Badges</th></tr></thead><tbody>`)
		for _, item := range p.View.Items {
			writeProductRow(&b, item, p.Selected[item.ID])
		}
		b.WriteString(`</tbody></table></section>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func writeProductRow(b *strings.Builder, item catalog.Product, selected bool) {
	checked := ""
	if selected {
		checked = " checked"
	}
	fmt.Fprintf(b, `<tr id="row-%s"><td><input type="checkbox"%s hx-post="/api/selection/toggle/%s" hx-swap="none"></td>`,
		esc(item.ID), checked, esc(item.ID))

	title := esc(item.Title)
	if item.URL != "" {
		title = fmt.Sprintf(`<a href="%s" rel="noopener" target="_blank">%s</a>`, esc(item.URL), title)
	}
	if item.Subtitle != "" {
		title += `<br><small>` + esc(item.Subtitle) + `</small>`
	}
	fmt.Fprintf(b, `<td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>`,
		title, esc(item.Price.String()), rating(item.Rating), reviews(item.ReviewCount), badges(item.Flags))
}

func writeFilterForm(b *strings.Builder, spec catalog.FilterSpec) {
	b.WriteString(`<form id="filters" hx-get="/partials/grid" hx-target="#grid" hx-swap="outerHTML" hx-trigger="input delay:300ms, change">`)
	fmt.Fprintf(b, `<input type="search" name="search" placeholder="Search title or description" value="%s">`, esc(spec.Search))

	b.WriteString(`<select name="category">`)
	for _, c := range catalog.Categories {
		writeOption(b, string(c), categoryLabels[c], c == spec.Category)
	}
	b.WriteString(`</select><select name="price">`)
	for _, pr := range catalog.PriceRanges {
		writeOption(b, string(pr), priceLabels[pr], pr == spec.PriceRange)
	}
	b.WriteString(`</select><select name="sort">`)
	writeOption(b, "", "Newest first", spec.Sort == "")
	for _, k := range catalog.SortKeys {
		writeOption(b, string(k), sortLabels[k], k == spec.Sort)
	}
	b.WriteString(`</select></form>`)
}

func writeBulkBar(b *strings.Builder, selected int) {
	fmt.Fprintf(b, `<div class="bulk-bar"><span id="selected-count">%d selected</span>`, selected)
	b.WriteString(`<button hx-post="/api/selection/select-all" hx-include="#filters">Select visible</button>`)
	b.WriteString(`<button hx-post="/api/selection/invert" hx-include="#filters">Invert visible</button>`)
	b.WriteString(`<button hx-post="/api/selection/clear">Clear</button>`)
	b.WriteString(`<form method="post" action="/api/bulk/export"><button type="submit">Export</button></form>`)
	b.WriteString(`<button hx-post="/api/bulk/save">Save for later</button>`)
	b.WriteString(`<button hx-post="/api/bulk/delete" hx-confirm="Delete the selected products from the catalog?">Delete</button>`)
	b.WriteString(`<form hx-post="/api/bulk/import" hx-encoding="multipart/form-data"><input type="file" name="file" accept=".xlsx,.csv"><button type="submit">Import</button></form>`)
	b.WriteString(`</div>`)
}

func writeColumnPicker(b *strings.Builder, columns, available []string) {
	chosen := make(map[string]bool, len(columns))
	for _, c := range columns {
		chosen[c] = true
	}
	b.WriteString(`<details class="columns"><summary>Export columns</summary><form hx-put="/api/columns" hx-ext="json-enc">`)
	for _, name := range available {
		checked := ""
		if chosen[name] {
			checked = " checked"
		}
		fmt.Fprintf(b, `<label><input type="checkbox" name="columns" value="%s"%s> %s</label>`, esc(name), checked, esc(name))
	}
	b.WriteString(`<button type="submit">Save columns</button></form></details>`)
}

func writeOption(b *strings.Builder, value, label string, selected bool) {
	attr := ""
	if selected {
		attr = " selected"
	}
	fmt.Fprintf(b, `<option value="%s"%s>%s</option>`, esc(value), attr, esc(label))
}

func rating(n catalog.Number) string {
	if !n.Valid {
		return "N/A"
	}
	return fmt.Sprintf("%.1f", n.Value)
}

func reviews(n catalog.Number) string {
	if !n.Valid {
		return "0"
	}
	return fmt.Sprintf("%.0f", n.Value)
}

func badges(f catalog.Flags) string {
	var out []string
	for _, c := range catalog.Categories[1:] {
		if f.Has(c) {
			out = append(out, `<span class="badge">`+esc(categoryLabels[c])+`</span>`)
		}
	}
	return strings.Join(out, " ")
}
