package sheet

import (
	"fmt"
	"strings"
	"time"

	"github.com/iancoleman/strcase"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/JonMunkholm/catalogdesk/internal/catalog"
)

// Column is one exportable/importable product field.
type Column struct {
	Name  string // JSON field name, e.g. "reviewCount"
	Label string // Header text, e.g. "Review Count"

	get func(p catalog.Product) any
	set func(p *catalog.Product, cell string) error
}

// labelOverrides covers acronyms that title-casing would mangle.
var labelOverrides = map[string]string{
	"id":       "ID",
	"url":      "URL",
	"imageUrl": "Image URL",
}

var titleCaser = cases.Title(language.English)

func label(name string) string {
	if l, ok := labelOverrides[name]; ok {
		return l
	}
	return titleCaser.String(strcase.ToDelimited(name, ' '))
}

func textColumn(name string, get func(catalog.Product) string, set func(*catalog.Product, string)) Column {
	return Column{
		Name:  name,
		Label: label(name),
		get:   func(p catalog.Product) any { return get(p) },
		set: func(p *catalog.Product, cell string) error {
			set(p, cell)
			return nil
		},
	}
}

func numberColumn(name string, get func(catalog.Product) catalog.Number, set func(*catalog.Product, catalog.Number)) Column {
	return Column{
		Name:  name,
		Label: label(name),
		get: func(p catalog.Product) any {
			n := get(p)
			if !n.Valid {
				return ""
			}
			return n.Value
		},
		set: func(p *catalog.Product, cell string) error {
			// Malformed numbers become null rather than failing the row.
			set(p, catalog.ParseNumber(cell))
			return nil
		},
	}
}

func flagColumn(name string, get func(catalog.Flags) bool, set func(*catalog.Flags, bool)) Column {
	return Column{
		Name:  name,
		Label: label(name),
		get:   func(p catalog.Product) any { return get(p.Flags) },
		set: func(p *catalog.Product, cell string) error {
			if cell == "" {
				return nil
			}
			b, ok := parseBool(cell)
			if !ok {
				return fmt.Errorf("not a boolean: %q", cell)
			}
			set(&p.Flags, b)
			return nil
		},
	}
}

// Columns lists every known column in default display order.
var Columns = []Column{
	textColumn("id", func(p catalog.Product) string { return p.ID }, func(p *catalog.Product, v string) { p.ID = v }),
	textColumn("title", func(p catalog.Product) string { return p.Title }, func(p *catalog.Product, v string) { p.Title = v }),
	textColumn("subtitle", func(p catalog.Product) string { return p.Subtitle }, func(p *catalog.Product, v string) { p.Subtitle = v }),
	textColumn("brand", func(p catalog.Product) string { return p.Brand }, func(p *catalog.Product, v string) { p.Brand = v }),
	textColumn("price", func(p catalog.Product) string { return p.Price.String() }, func(p *catalog.Product, v string) {
		if v != "" {
			p.Price = catalog.PriceFromString(v)
		}
	}),
	numberColumn("rating", func(p catalog.Product) catalog.Number { return p.Rating }, func(p *catalog.Product, n catalog.Number) { p.Rating = n }),
	numberColumn("reviewCount", func(p catalog.Product) catalog.Number { return p.ReviewCount }, func(p *catalog.Product, n catalog.Number) { p.ReviewCount = n }),
	textColumn("url", func(p catalog.Product) string { return p.URL }, func(p *catalog.Product, v string) { p.URL = v }),
	textColumn("imageUrl", func(p catalog.Product) string { return p.ImageURL }, func(p *catalog.Product, v string) { p.ImageURL = v }),
	textColumn("source", func(p catalog.Product) string { return p.Source }, func(p *catalog.Product, v string) { p.Source = v }),
	flagColumn("isBestSeller", func(f catalog.Flags) bool { return f.IsBestSeller }, func(f *catalog.Flags, b bool) { f.IsBestSeller = b }),
	flagColumn("isPrime", func(f catalog.Flags) bool { return f.IsPrime }, func(f *catalog.Flags, b bool) { f.IsPrime = b }),
	flagColumn("isEcoFriendly", func(f catalog.Flags) bool { return f.IsEcoFriendly }, func(f *catalog.Flags, b bool) { f.IsEcoFriendly = b }),
	flagColumn("isAmazonChoice", func(f catalog.Flags) bool { return f.IsAmazonChoice }, func(f *catalog.Flags, b bool) { f.IsAmazonChoice = b }),
	flagColumn("isDeal", func(f catalog.Flags) bool { return f.IsDeal }, func(f *catalog.Flags, b bool) { f.IsDeal = b }),
	{
		Name:  "createdAt",
		Label: label("createdAt"),
		get: func(p catalog.Product) any {
			if p.CreatedAt.IsZero() {
				return ""
			}
			return p.CreatedAt.UTC().Format(time.RFC3339)
		},
		set: func(p *catalog.Product, cell string) error {
			if cell == "" {
				return nil
			}
			t, ok := parseTime(cell)
			if !ok {
				return fmt.Errorf("not a date: %q", cell)
			}
			p.CreatedAt = t
			return nil
		},
	},
}

// DefaultColumns is the export column set used until the operator saves one.
var DefaultColumns = []string{"id", "title", "price", "rating", "reviewCount", "url"}

var columnsByKey = func() map[string]Column {
	m := make(map[string]Column, len(Columns)*2)
	for _, c := range Columns {
		m[headerKey(c.Name)] = c
		m[headerKey(c.Label)] = c
	}
	return m
}()

// ColumnNames returns the names of every known column.
func ColumnNames() []string {
	names := make([]string, len(Columns))
	for i, c := range Columns {
		names[i] = c.Name
	}
	return names
}

// Lookup finds a column by name or header label, ignoring case, spaces,
// dashes and underscores.
func Lookup(nameOrLabel string) (Column, bool) {
	c, ok := columnsByKey[headerKey(nameOrLabel)]
	return c, ok
}

// Resolve maps names to columns, failing on the first unknown one.
func Resolve(names []string) ([]Column, error) {
	cols := make([]Column, 0, len(names))
	for _, n := range names {
		c, ok := Lookup(n)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, n)
		}
		cols = append(cols, c)
	}
	return cols, nil
}

func headerKey(s string) string {
	s = strings.ToLower(cleanCell(s))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s)
}
