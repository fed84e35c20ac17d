package catalog

import (
	"cmp"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Accessor is the capability record the engine reads records through.
// Title, Price and Flag are required; the rest may be nil.
type Accessor[T any] struct {
	Title       func(T) string
	Subtitle    func(T) string
	Price       func(T) decimal.Decimal
	Rating      func(T) Number
	ReviewCount func(T) Number
	Flag        func(T, Category) bool
}

// View is the derived, visible slice of a collection.
type View[T any] struct {
	Items         []T `json:"items"`
	FilteredCount int `json:"filteredCount"`
	TotalCount    int `json:"totalCount"`
}

// Engine derives views over records of type T.
type Engine[T any] struct {
	acc    Accessor[T]
	locale language.Tag
}

// NewEngine returns an engine that reads records through acc and sorts
// alphabetically using the collation rules of locale.
func NewEngine[T any](acc Accessor[T], locale language.Tag) *Engine[T] {
	return &Engine[T]{acc: acc, locale: locale}
}

// Derive filters and sorts items according to spec.
//
// The input slice is never modified; the returned View always holds a fresh
// slice, even when nothing was filtered out.
func (e *Engine[T]) Derive(items []T, spec FilterSpec) View[T] {
	term := strings.ToLower(strings.TrimSpace(spec.Search))
	category := spec.Category.normalize()
	bucket, byPrice := priceBuckets[spec.PriceRange]

	out := make([]T, 0, len(items))
	for _, item := range items {
		if term != "" && !e.matchesTerm(item, term) {
			continue
		}
		if category != CategoryAll && !e.acc.Flag(item, category) {
			continue
		}
		if byPrice && !bucket.contains(e.acc.Price(item)) {
			continue
		}
		out = append(out, item)
	}

	e.sort(out, spec.Sort)

	return View[T]{
		Items:         out,
		FilteredCount: len(out),
		TotalCount:    len(items),
	}
}

func (e *Engine[T]) matchesTerm(item T, term string) bool {
	if strings.Contains(strings.ToLower(e.acc.Title(item)), term) {
		return true
	}
	if e.acc.Subtitle == nil {
		return false
	}
	return strings.Contains(strings.ToLower(e.acc.Subtitle(item)), term)
}

func (e *Engine[T]) sort(items []T, key SortKey) {
	var less func(a, b T) int

	switch key {
	case SortRatingDesc:
		less = func(a, b T) int { return cmp.Compare(e.rating(b), e.rating(a)) }
	case SortRatingAsc:
		less = func(a, b T) int { return cmp.Compare(e.rating(a), e.rating(b)) }
	case SortPriceAsc:
		less = func(a, b T) int { return e.acc.Price(a).Cmp(e.acc.Price(b)) }
	case SortPriceDesc:
		less = func(a, b T) int { return e.acc.Price(b).Cmp(e.acc.Price(a)) }
	case SortReviewsDesc:
		less = func(a, b T) int { return cmp.Compare(e.reviews(b), e.reviews(a)) }
	case SortAlphabetical:
		// Collators keep internal buffers and are not safe to share.
		c := collate.New(e.locale, collate.IgnoreCase)
		less = func(a, b T) int { return c.CompareString(e.acc.Title(a), e.acc.Title(b)) }
	default:
		return
	}

	slices.SortStableFunc(items, less)
}

func (e *Engine[T]) rating(item T) float64 {
	if e.acc.Rating == nil {
		return 0
	}
	return e.acc.Rating(item).OrZero()
}

func (e *Engine[T]) reviews(item T) float64 {
	if e.acc.ReviewCount == nil {
		return 0
	}
	return e.acc.ReviewCount(item).OrZero()
}

// ProductAccessor reads catalog products.
var ProductAccessor = Accessor[Product]{
	Title:       func(p Product) string { return p.Title },
	Subtitle:    func(p Product) string { return p.Subtitle },
	Price:       func(p Product) decimal.Decimal { return p.Price.Amount },
	Rating:      func(p Product) Number { return p.Rating },
	ReviewCount: func(p Product) Number { return p.ReviewCount },
	Flag:        func(p Product, c Category) bool { return p.Has(c) },
}

// NewProductEngine returns an engine over catalog products.
func NewProductEngine(locale language.Tag) *Engine[Product] {
	return NewEngine(ProductAccessor, locale)
}

// Derive is a convenience for deriving products with English collation.
func Derive(items []Product, spec FilterSpec) View[Product] {
	return NewProductEngine(language.English).Derive(items, spec)
}

// Subset returns the records of items whose id is in ids, preserving the
// order of items. Unknown ids are ignored.
func Subset(items []Product, ids []string) []Product {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	out := make([]Product, 0, len(ids))
	for _, p := range items {
		if _, ok := want[p.ID]; ok {
			out = append(out, p)
		}
	}
	return out
}
