package catalog

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func sampleProducts(t *testing.T) []Product {
	t.Helper()

	raw := `[
		{"id":"A","title":"Sony Headphones","price":"$348","rating":"4.6"},
		{"id":"B","title":"Theragun","price":"$399","rating":"4.7"}
	]`
	var products []Product
	require.NoError(t, json.Unmarshal([]byte(raw), &products))
	return products
}

func ids(products []Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.ID
	}
	return out
}

func TestDerive_Scenarios(t *testing.T) {
	products := sampleProducts(t)

	tests := []struct {
		name string
		spec FilterSpec
		want []string
	}{
		{
			name: "price ascending",
			spec: FilterSpec{Category: CategoryAll, PriceRange: PriceAll, Sort: SortPriceAsc},
			want: []string{"A", "B"},
		},
		{
			name: "search theragun",
			spec: FilterSpec{Search: "theragun", Category: CategoryAll, PriceRange: PriceAll, Sort: SortPriceAsc},
			want: []string{"B"},
		},
		{
			name: "under 25 matches nothing",
			spec: FilterSpec{Category: CategoryAll, PriceRange: PriceUnder25, Sort: SortPriceAsc},
			want: []string{},
		},
		{
			name: "rating descending",
			spec: FilterSpec{Sort: SortRatingDesc},
			want: []string{"B", "A"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := Derive(products, tt.spec)
			assert.Equal(t, tt.want, ids(view.Items))
			assert.Equal(t, len(tt.want), view.FilteredCount)
			assert.Equal(t, 2, view.TotalCount)
		})
	}
}

func TestDerive_EmptySearchIsNoOp(t *testing.T) {
	products := sampleProducts(t)

	all := Derive(products, FilterSpec{Search: ""})
	none := Derive(products, FilterSpec{Search: "no such product"})
	blank := Derive(products, FilterSpec{Search: "   "})

	assert.Equal(t, []string{"A", "B"}, ids(all.Items))
	assert.Empty(t, none.Items)
	assert.NotNil(t, none.Items)
	assert.Equal(t, 2, none.TotalCount)
	assert.Equal(t, ids(all.Items), ids(blank.Items))
}

func TestDerive_SearchMatchesSubtitle(t *testing.T) {
	products := []Product{
		{ID: "1", Title: "Massage Gun", Subtitle: "Percussive THERAPY device"},
		{ID: "2", Title: "Yoga Mat"},
	}

	view := Derive(products, FilterSpec{Search: "therapy"})
	assert.Equal(t, []string{"1"}, ids(view.Items))
}

func TestDerive_Category(t *testing.T) {
	products := []Product{
		{ID: "1", Title: "a", Flags: Flags{IsPrime: true}},
		{ID: "2", Title: "b", Flags: Flags{IsBestSeller: true}},
		{ID: "3", Title: "c", Flags: Flags{IsPrime: true, IsEcoFriendly: true}},
	}

	tests := []struct {
		category Category
		want     []string
	}{
		{CategoryAll, []string{"1", "2", "3"}},
		{CategoryPrime, []string{"1", "3"}},
		{CategoryBestSeller, []string{"2"}},
		{CategoryEcoFriendly, []string{"3"}},
		{CategoryDeals, []string{}},
		{Category("not-a-category"), []string{"1", "2", "3"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			view := Derive(products, FilterSpec{Category: tt.category})
			assert.Equal(t, tt.want, ids(view.Items))
		})
	}
}

func TestDerive_PriceBuckets(t *testing.T) {
	products := []Product{
		{ID: "p0", Price: PriceFromString("$0")},
		{ID: "p24", Price: PriceFromString("$24.99")},
		{ID: "p25", Price: PriceFromFloat(25)},
		{ID: "p50", Price: PriceFromString("50")},
		{ID: "p99", Price: PriceFromString("$99.99")},
		{ID: "p100", Price: PriceFromString("$100")},
		{ID: "p1299", Price: PriceFromString("$1,299.00")},
	}

	tests := []struct {
		bucket PriceRange
		want   []string
	}{
		{PriceUnder25, []string{"p0", "p24"}},
		{Price25To50, []string{"p25"}},
		{Price50To100, []string{"p50", "p99"}},
		{PriceOver100, []string{"p100", "p1299"}},
		{PriceAll, []string{"p0", "p24", "p25", "p50", "p99", "p100", "p1299"}},
		{PriceRange("bogus"), []string{"p0", "p24", "p25", "p50", "p99", "p100", "p1299"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.bucket), func(t *testing.T) {
			view := Derive(products, FilterSpec{PriceRange: tt.bucket})
			assert.Equal(t, tt.want, ids(view.Items))
		})
	}
}

func TestDerive_NullRatingSortsAsZero(t *testing.T) {
	products := []Product{
		{ID: "rated", Rating: NewNumber(1.5)},
		{ID: "unrated"},
		{ID: "top", Rating: NewNumber(4.9)},
	}

	desc := Derive(products, FilterSpec{Sort: SortRatingDesc})
	assert.Equal(t, []string{"top", "rated", "unrated"}, ids(desc.Items))

	asc := Derive(products, FilterSpec{Sort: SortRatingAsc})
	assert.Equal(t, []string{"unrated", "rated", "top"}, ids(asc.Items))
}

func TestDerive_ReviewsDescIsStable(t *testing.T) {
	products := []Product{
		{ID: "a", ReviewCount: NewNumber(10)},
		{ID: "b"},
		{ID: "c", ReviewCount: NewNumber(10)},
		{ID: "d", ReviewCount: NewNumber(500)},
	}

	view := Derive(products, FilterSpec{Sort: SortReviewsDesc})
	assert.Equal(t, []string{"d", "a", "c", "b"}, ids(view.Items))
}

func TestDerive_Alphabetical(t *testing.T) {
	products := []Product{
		{ID: "3", Title: "zebra"},
		{ID: "1", Title: "Apple"},
		{ID: "2", Title: "Éclair"},
		{ID: "4", Title: "banana"},
	}

	view := NewProductEngine(language.English).Derive(products, FilterSpec{Sort: SortAlphabetical})
	assert.Equal(t, []string{"1", "4", "2", "3"}, ids(view.Items))
}

func TestDerive_DoesNotMutateInput(t *testing.T) {
	products := []Product{
		{ID: "b", Price: PriceFromFloat(20)},
		{ID: "a", Price: PriceFromFloat(10)},
	}

	view := Derive(products, FilterSpec{Sort: SortPriceAsc})
	assert.Equal(t, []string{"a", "b"}, ids(view.Items))
	assert.Equal(t, []string{"b", "a"}, ids(products), "input order must be preserved")

	view.Items[0].Title = "changed"
	assert.Empty(t, products[1].Title)
}

func TestDerive_DeterministicAndIdempotent(t *testing.T) {
	products := []Product{
		{ID: "1", Title: "Desk Lamp", Price: PriceFromString("$30"), Flags: Flags{IsPrime: true}},
		{ID: "2", Title: "Desk Fan", Price: PriceFromString("$45"), Flags: Flags{IsPrime: true}},
		{ID: "3", Title: "Desk Chair", Price: PriceFromString("$145")},
	}
	spec := FilterSpec{Search: "desk", Category: CategoryPrime, PriceRange: Price25To50, Sort: SortPriceDesc}

	first := Derive(products, spec)
	second := Derive(products, spec)
	again := Derive(first.Items, spec)

	assert.Equal(t, ids(first.Items), ids(second.Items))
	assert.Equal(t, ids(first.Items), ids(again.Items))
	assert.Equal(t, []string{"2", "1"}, ids(first.Items))
}

func TestEngine_CustomAccessor(t *testing.T) {
	type row struct {
		name  string
		cents int64
	}
	acc := Accessor[row]{
		Title: func(r row) string { return r.name },
		Price: func(r row) decimal.Decimal { return decimal.New(r.cents, -2) },
		Flag:  func(row, Category) bool { return false },
	}
	rows := []row{{"pricey", 12000}, {"cheap", 999}}

	view := NewEngine(acc, language.English).Derive(rows, FilterSpec{PriceRange: PriceUnder25, Sort: SortReviewsDesc})
	require.Len(t, view.Items, 1)
	assert.Equal(t, "cheap", view.Items[0].name)
}

func TestSubset(t *testing.T) {
	products := sampleProducts(t)

	assert.Equal(t, []string{"A", "B"}, ids(Subset(products, []string{"B", "A", "missing"})))
	assert.Empty(t, Subset(products, nil))
}

func TestParseFilterSpec(t *testing.T) {
	q := url.Values{
		"search":   {"Sony"},
		"category": {"PRIME"},
		"price":    {"over-100"},
		"sort":     {"price-desc"},
	}

	spec := ParseFilterSpec(q)
	assert.Equal(t, FilterSpec{Search: "Sony", Category: CategoryPrime, PriceRange: PriceOver100, Sort: SortPriceDesc}, spec)

	assert.Equal(t, DefaultFilterSpec(), ParseFilterSpec(url.Values{}))
}
