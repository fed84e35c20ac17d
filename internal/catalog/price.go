package catalog

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// priceGroupRegex matches one numeric group: digits with optional thousands
// commas and an optional fractional part, or a bare fraction like ".99".
var priceGroupRegex = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?|\.\d+`)

// ParsePrice extracts an amount from a currency string.
//
// Only the first numeric group counts, so a range such as "$10 - $20" parses
// as 10 rather than concatenating into 1020. Text with no digits parses as 0.
func ParsePrice(s string) decimal.Decimal {
	m := priceGroupRegex.FindString(s)
	if m == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(m, ",", ""))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// priceBucket is a half-open interval [min, max). An unbounded bucket has no
// upper limit.
type priceBucket struct {
	min       decimal.Decimal
	max       decimal.Decimal
	unbounded bool
}

func (b priceBucket) contains(p decimal.Decimal) bool {
	if p.LessThan(b.min) {
		return false
	}
	return b.unbounded || p.LessThan(b.max)
}

var priceBuckets = map[PriceRange]priceBucket{
	PriceUnder25: {min: decimal.Zero, max: decimal.NewFromInt(25)},
	Price25To50:  {min: decimal.NewFromInt(25), max: decimal.NewFromInt(50)},
	Price50To100: {min: decimal.NewFromInt(50), max: decimal.NewFromInt(100)},
	PriceOver100: {min: decimal.NewFromInt(100), unbounded: true},
}
