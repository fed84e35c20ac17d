package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog record as shown in the grid, exported to a
// spreadsheet, or fed into a review template.
type Product struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Subtitle    string    `json:"subtitle,omitempty"`
	Brand       string    `json:"brand,omitempty"`
	Price       Price     `json:"price"`
	Rating      Number    `json:"rating"`
	ReviewCount Number    `json:"reviewCount"`
	URL         string    `json:"url,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	Source      string    `json:"source,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	Flags
}

// Flags are the boolean features a category filter selects on.
type Flags struct {
	IsBestSeller   bool `json:"isBestSeller"`
	IsPrime        bool `json:"isPrime"`
	IsEcoFriendly  bool `json:"isEcoFriendly"`
	IsAmazonChoice bool `json:"isAmazonChoice"`
	IsDeal         bool `json:"isDeal"`
}

// Has reports whether the flag mapped to c is set.
// CategoryAll and unknown categories always match.
func (f Flags) Has(c Category) bool {
	switch c {
	case CategoryBestSeller:
		return f.IsBestSeller
	case CategoryPrime:
		return f.IsPrime
	case CategoryEcoFriendly:
		return f.IsEcoFriendly
	case CategoryAmazonChoice:
		return f.IsAmazonChoice
	case CategoryDeals:
		return f.IsDeal
	default:
		return true
	}
}

// Price is a product price that arrives either as a pre-formatted currency
// string ("$348") or as a plain number. Raw keeps the original text so the
// grid shows exactly what the source sent.
type Price struct {
	Raw    string
	Amount decimal.Decimal
}

// PriceFromString parses a currency string. See [ParsePrice].
func PriceFromString(s string) Price {
	return Price{Raw: s, Amount: ParsePrice(s)}
}

// PriceFromFloat builds a numeric price.
func PriceFromFloat(f float64) Price {
	return Price{Amount: decimal.NewFromFloat(f)}
}

// String formats the price for display.
func (p Price) String() string {
	if p.Raw != "" {
		return p.Raw
	}
	return "$" + p.Amount.StringFixed(2)
}

// Float returns the amount as a float64 for spreadsheet cells.
func (p Price) Float() float64 {
	f, _ := p.Amount.Float64()
	return f
}

func (p Price) MarshalJSON() ([]byte, error) {
	if p.Raw != "" {
		return json.Marshal(p.Raw)
	}
	return []byte(p.Amount.String()), nil
}

func (p *Price) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*p = Price{}
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = PriceFromString(s)
	default:
		d, err := decimal.NewFromString(string(data))
		if err != nil {
			return fmt.Errorf("price: %w", err)
		}
		*p = Price{Amount: d}
	}
	return nil
}

// Number is a nullable numeric field. Ratings and review counts come from
// sources that send them as numbers, as strings ("4.6", "1,204"), or not at
// all; Valid is false for the last case.
type Number struct {
	Value float64
	Valid bool
}

// NewNumber returns a valid Number. NaN and infinities have no JSON form
// and come back null.
func NewNumber(v float64) Number {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Number{}
	}
	return Number{Value: v, Valid: true}
}

// ParseNumber reads a number from loosely formatted text. Thousands
// separators are ignored; empty or unparseable text yields an invalid Number.
func ParseNumber(s string) Number {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return Number{}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Number{}
	}
	return NewNumber(f)
}

// OrZero returns the value, or 0 when the number is null.
func (n Number) OrZero() float64 {
	if !n.Valid {
		return 0
	}
	return n.Value
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid || math.IsNaN(n.Value) || math.IsInf(n.Value, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = Number{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = ParseNumber(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("number: %w", err)
	}
	*n = NewNumber(f)
	return nil
}
