package catalog

import (
	"net/url"
	"strings"
)

// Category selects products by a single feature flag.
type Category string

const (
	CategoryAll          Category = "all"
	CategoryBestSeller   Category = "best-seller"
	CategoryPrime        Category = "prime"
	CategoryEcoFriendly  Category = "eco-friendly"
	CategoryAmazonChoice Category = "amazon-choice"
	CategoryDeals        Category = "deals"
)

// Categories lists the selectable categories in display order.
var Categories = []Category{
	CategoryAll, CategoryBestSeller, CategoryPrime,
	CategoryEcoFriendly, CategoryAmazonChoice, CategoryDeals,
}

// normalize maps unknown values to CategoryAll.
func (c Category) normalize() Category {
	switch c {
	case CategoryBestSeller, CategoryPrime, CategoryEcoFriendly, CategoryAmazonChoice, CategoryDeals:
		return c
	default:
		return CategoryAll
	}
}

// PriceRange selects products whose parsed price falls in a fixed bucket.
type PriceRange string

const (
	PriceAll     PriceRange = "all"
	PriceUnder25 PriceRange = "under-25"
	Price25To50  PriceRange = "25-50"
	Price50To100 PriceRange = "50-100"
	PriceOver100 PriceRange = "over-100"
)

// PriceRanges lists the selectable buckets in display order.
var PriceRanges = []PriceRange{PriceAll, PriceUnder25, Price25To50, Price50To100, PriceOver100}

// SortKey names one comparator.
type SortKey string

const (
	SortRatingDesc   SortKey = "rating-desc"
	SortRatingAsc    SortKey = "rating-asc"
	SortPriceAsc     SortKey = "price-asc"
	SortPriceDesc    SortKey = "price-desc"
	SortReviewsDesc  SortKey = "reviews-desc"
	SortAlphabetical SortKey = "alphabetical"
)

// SortKeys lists the selectable sort orders in display order.
var SortKeys = []SortKey{
	SortRatingDesc, SortRatingAsc, SortPriceAsc,
	SortPriceDesc, SortReviewsDesc, SortAlphabetical,
}

// FilterSpec is the UI filter state. It is never persisted.
type FilterSpec struct {
	Search     string     `json:"search"`
	Category   Category   `json:"category"`
	PriceRange PriceRange `json:"price"`
	Sort       SortKey    `json:"sort"`
}

// DefaultFilterSpec matches everything and keeps source order.
func DefaultFilterSpec() FilterSpec {
	return FilterSpec{Category: CategoryAll, PriceRange: PriceAll}
}

// ParseFilterSpec reads a FilterSpec from query parameters
// (search, category, price, sort). Missing values fall back to "all".
func ParseFilterSpec(q url.Values) FilterSpec {
	spec := DefaultFilterSpec()
	spec.Search = q.Get("search")
	if c := strings.TrimSpace(q.Get("category")); c != "" {
		spec.Category = Category(strings.ToLower(c))
	}
	if p := strings.TrimSpace(q.Get("price")); p != "" {
		spec.PriceRange = PriceRange(strings.ToLower(p))
	}
	spec.Sort = SortKey(strings.ToLower(strings.TrimSpace(q.Get("sort"))))
	return spec
}
