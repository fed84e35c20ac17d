package deals

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"golang.org/x/text/language"

	"github.com/JonMunkholm/catalogdesk/internal/catalog"
)

// Deal is a time-bounded discount on one product.
type Deal struct {
	ID          string         `json:"id"`
	ASIN        string         `json:"asin"`
	Title       string         `json:"title"`
	ImageURL    string         `json:"imageUrl,omitempty"`
	URL         string         `json:"url,omitempty"`
	Price       catalog.Price  `json:"price"`
	ListPrice   catalog.Price  `json:"listPrice"`
	Discount    int            `json:"discount"`
	Rating      catalog.Number `json:"rating"`
	ReviewCount catalog.Number `json:"reviewCount"`
	Badge       string         `json:"badge,omitempty"`
	IsPrime     bool           `json:"isPrime"`
	StartsAt    time.Time      `json:"startsAt"`
	EndsAt      time.Time      `json:"endsAt"`
	Active      bool           `json:"active"`
}

// IsLive reports whether the deal is active and now falls inside its
// window. A zero start or end leaves that side of the window open.
func (d Deal) IsLive(now time.Time) bool {
	if !d.Active {
		return false
	}
	if !d.StartsAt.IsZero() && now.Before(d.StartsAt) {
		return false
	}
	if !d.EndsAt.IsZero() && !now.Before(d.EndsAt) {
		return false
	}
	return true
}

// ToProduct converts the deal into a catalog product flagged as a deal.
func (d Deal) ToProduct() catalog.Product {
	id := d.ASIN
	if id == "" {
		id = d.ID
	}
	return catalog.Product{
		ID:          id,
		Title:       d.Title,
		Subtitle:    d.Badge,
		Price:       d.Price,
		Rating:      d.Rating,
		ReviewCount: d.ReviewCount,
		URL:         d.URL,
		ImageURL:    d.ImageURL,
		Source:      "deals",
		CreatedAt:   d.StartsAt,
		Flags: catalog.Flags{
			IsPrime: d.IsPrime,
			IsDeal:  true,
		},
	}
}

// Accessor lets a catalog.Engine filter and sort deals directly.
var Accessor = catalog.Accessor[Deal]{
	Title:       func(d Deal) string { return d.Title },
	Subtitle:    func(d Deal) string { return d.Badge },
	Price:       func(d Deal) decimal.Decimal { return d.Price.Amount },
	Rating:      func(d Deal) catalog.Number { return d.Rating },
	ReviewCount: func(d Deal) catalog.Number { return d.ReviewCount },
	Flag: func(d Deal, c catalog.Category) bool {
		switch c {
		case catalog.CategoryDeals:
			return true
		case catalog.CategoryPrime:
			return d.IsPrime
		case catalog.CategoryBestSeller, catalog.CategoryEcoFriendly, catalog.CategoryAmazonChoice:
			return false
		default:
			return true
		}
	},
}

// NewEngine returns a deal engine collating titles by locale.
func NewEngine(locale language.Tag) *catalog.Engine[Deal] {
	return catalog.NewEngine(Accessor, locale)
}

func parseDeal(r gjson.Result) Deal {
	d := Deal{
		ID:          r.Get("deal_id").String(),
		ASIN:        r.Get("product_asin").String(),
		Title:       r.Get("deal_title").String(),
		ImageURL:    r.Get("deal_photo").String(),
		URL:         r.Get("deal_url").String(),
		Price:       priceOf(r.Get("deal_price")),
		ListPrice:   priceOf(r.Get("list_price")),
		Discount:    int(r.Get("savings_percentage").Int()),
		Rating:      numberOf(r.Get("product_star_rating")),
		ReviewCount: numberOf(r.Get("product_num_ratings")),
		Badge:       r.Get("deal_badge").String(),
		IsPrime:     r.Get("is_prime").Bool() || r.Get("deal_type").String() == "PRIME_EARLY_ACCESS",
		StartsAt:    timeOf(r.Get("deal_starts_at")),
		EndsAt:      timeOf(r.Get("deal_ends_at")),
		Active:      r.Get("deal_state").String() == "AVAILABLE",
	}
	if d.URL == "" {
		d.URL = r.Get("canonical_deal_url").String()
	}
	return d
}

func parseProduct(r gjson.Result, source string) catalog.Product {
	return catalog.Product{
		ID:          r.Get("asin").String(),
		Title:       r.Get("product_title").String(),
		Price:       priceOf(r.Get("product_price")),
		Rating:      numberOf(r.Get("product_star_rating")),
		ReviewCount: numberOf(r.Get("product_num_ratings")),
		URL:         r.Get("product_url").String(),
		ImageURL:    r.Get("product_photo").String(),
		Source:      source,
		Flags: catalog.Flags{
			IsBestSeller:   source == "best-sellers" || r.Get("is_best_seller").Bool(),
			IsPrime:        r.Get("is_prime").Bool(),
			IsEcoFriendly:  r.Get("climate_pledge_friendly").Bool(),
			IsAmazonChoice: r.Get("is_amazon_choice").Bool(),
		},
	}
}

// priceOf accepts "$12.99", 12.99 or {"amount": 12.99, "currency": "USD"}.
func priceOf(r gjson.Result) catalog.Price {
	switch {
	case !r.Exists() || r.Type == gjson.Null:
		return catalog.Price{}
	case r.IsObject():
		return priceOf(r.Get("amount"))
	case r.Type == gjson.Number:
		d, err := decimal.NewFromString(r.Raw)
		if err != nil {
			return catalog.PriceFromFloat(r.Float())
		}
		return catalog.Price{Amount: d}
	default:
		return catalog.PriceFromString(r.String())
	}
}

func numberOf(r gjson.Result) catalog.Number {
	switch {
	case !r.Exists() || r.Type == gjson.Null:
		return catalog.Number{}
	case r.Type == gjson.Number:
		return catalog.NewNumber(r.Float())
	default:
		return catalog.ParseNumber(r.String())
	}
}

func timeOf(r gjson.Result) time.Time {
	if r.String() == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, r.String())
	if err != nil {
		return time.Time{}
	}
	return t
}
