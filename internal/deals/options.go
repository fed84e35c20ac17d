package deals

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidOptions wraps an Options validation failure.
var ErrInvalidOptions = errors.New("invalid deal options")

// Options narrow a deal query. Zero values mean "no constraint".
type Options struct {
	Country     string  `json:"country" validate:"omitempty,len=2,alpha"`
	MinRating   float64 `json:"minRating" validate:"gte=0,lte=5"`
	MaxPrice    float64 `json:"maxPrice" validate:"gte=0"`
	MinDiscount int     `json:"minDiscount" validate:"gte=0,lte=100"`
	OnlyPrime   bool    `json:"onlyPrime"`
}

func newValidator() *validator.Validate {
	v := validator.New()

	// Report json names (minRating) instead of Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validate checks o and reports the first failing field.
func (o Options) validate(v *validator.Validate) error {
	err := v.Struct(o)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		first := verrs[0]
		return fmt.Errorf("%w: %s (rule: %s, got %v)", ErrInvalidOptions, first.Field(), first.Tag(), first.Value())
	}
	return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
}

// query encodes o as deal-endpoint parameters. defaultCountry fills in an
// unset Country.
func (o Options) query(defaultCountry string) url.Values {
	q := url.Values{}

	country := strings.ToUpper(strings.TrimSpace(o.Country))
	if country == "" {
		country = defaultCountry
	}
	if country != "" {
		q.Set("country", country)
	}
	if o.MinRating > 0 {
		q.Set("min_product_star_rating", strconv.FormatFloat(o.MinRating, 'f', -1, 64))
	}
	if o.MaxPrice > 0 {
		q.Set("price_range", "0-"+strconv.FormatFloat(o.MaxPrice, 'f', -1, 64))
	}
	if o.MinDiscount > 0 {
		q.Set("discount_range", strconv.Itoa(o.MinDiscount)+"-100")
	}
	if o.OnlyPrime {
		q.Set("prime_early_access", "true")
	}
	return q
}

// ParseOptions reads Options from query parameters (country, minRating,
// maxPrice, minDiscount, onlyPrime). Unparseable numbers are an error;
// range checks happen when the options are used.
func ParseOptions(q url.Values) (Options, error) {
	var o Options
	o.Country = strings.TrimSpace(q.Get("country"))

	var err error
	if o.MinRating, err = parseFloat(q, "minRating"); err != nil {
		return Options{}, err
	}
	if o.MaxPrice, err = parseFloat(q, "maxPrice"); err != nil {
		return Options{}, err
	}
	if s := strings.TrimSpace(q.Get("minDiscount")); s != "" {
		if o.MinDiscount, err = strconv.Atoi(s); err != nil {
			return Options{}, fmt.Errorf("%w: minDiscount %q is not a whole number", ErrInvalidOptions, s)
		}
	}
	if s := strings.TrimSpace(q.Get("onlyPrime")); s != "" {
		if o.OnlyPrime, err = strconv.ParseBool(s); err != nil {
			return Options{}, fmt.Errorf("%w: onlyPrime %q is not a boolean", ErrInvalidOptions, s)
		}
	}
	return o, nil
}

func parseFloat(q url.Values, name string) (float64, error) {
	s := strings.TrimSpace(q.Get(name))
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not a number", ErrInvalidOptions, name, s)
	}
	return f, nil
}
