package views

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/catalogdesk/internal/audit"
	"github.com/JonMunkholm/catalogdesk/internal/catalog"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	if err := c.Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	return buf.String()
}

func TestProductsPage(t *testing.T) {
	items := []catalog.Product{
		{ID: "A", Title: "Sony <XM5>", Price: catalog.PriceFromString("$348"), Rating: catalog.NewNumber(4.6),
			ReviewCount: catalog.NewNumber(12034), Flags: catalog.Flags{IsPrime: true}},
		{ID: "B", Title: "Kettle", Price: catalog.PriceFromFloat(24.5)},
	}
	out := render(t, ProductsPage(ProductsParams{
		View:      catalog.View[catalog.Product]{Items: items, FilteredCount: 2, TotalCount: 5},
		Spec:      catalog.FilterSpec{Search: `"q"`, Category: catalog.CategoryPrime, PriceRange: catalog.PriceAll},
		Selected:  map[string]bool{"A": true},
		Columns:   []string{"title"},
		Available: []string{"id", "title"},
	}))

	for _, want := range []string{
		"<title>Products · catalogdesk</title>",
		"Showing 2 of 5 products",
		"Sony &lt;XM5&gt;",
		"$24.50",
		"4.6", "12034", "N/A",
		`<span class="badge">Prime</span>`,
		`<option value="prime" selected>`,
		`value="&#34;q&#34;"`,
		"1 selected",
		`<input type="checkbox" checked hx-post="/api/selection/toggle/A"`,
		`value="title" checked`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(out, "<XM5>") {
		t.Error("title was not escaped")
	}
}

func TestProductGrid_Empty(t *testing.T) {
	out := render(t, ProductGrid(ProductsParams{View: catalog.View[catalog.Product]{TotalCount: 3}}))
	if !strings.Contains(out, "No products match") {
		t.Errorf("empty grid = %q", out)
	}
}

func TestTemplatePage(t *testing.T) {
	out := render(t, TemplatePage(TemplateParams{
		Text:         "# {{postTitle}}",
		Preview:      "# <Picks>",
		Placeholders: []string{"postTitle"},
		Selected:     2,
	}))
	for _, want := range []string{"2 products selected", "<code>{{postTitle}}</code>", `<pre id="preview"># &lt;Picks&gt;</pre>`} {
		if !strings.Contains(out, want) {
			t.Errorf("template page missing %q", want)
		}
	}
}

func TestAuditLogPage(t *testing.T) {
	out := render(t, AuditLogPage([]audit.Entry{{Title: "Deleted 2 products", Kind: audit.KindSuccess, IPAddress: "10.0.0.1"}}))
	for _, want := range []string{"Deleted 2 products", "10.0.0.1", `class="kind-success"`} {
		if !strings.Contains(out, want) {
			t.Errorf("audit page missing %q", want)
		}
	}
	if !strings.Contains(render(t, AuditLogPage(nil)), "Nothing has happened yet") {
		t.Error("empty audit page missing placeholder text")
	}
}

func TestErrorAlert(t *testing.T) {
	out := render(t, ErrorAlert("No <products>", "Select one", "SEL001"))
	if !strings.Contains(out, "No &lt;products&gt;") || !strings.Contains(out, "Code: SEL001") {
		t.Errorf("ErrorAlert = %q", out)
	}
}
