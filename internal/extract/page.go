package extract

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"

	"github.com/JonMunkholm/catalogdesk/internal/catalog"
)

var (
	titleSelectors = []string{"#productTitle", "h1[itemprop=name]", ".product-title", "h1"}
	priceSelectors = []string{
		"#corePrice_feature_div .a-offscreen",
		".a-price .a-offscreen",
		"#priceblock_ourprice",
		"#priceblock_dealprice",
		"[itemprop=price]",
		".price",
	}
	brandSelectors = []string{"#bylineInfo", "[itemprop=brand]", ".product-brand"}
	imageSelectors = []string{"#landingImage", "#imgBlkFront", "[itemprop=image]"}

	ratingRegex = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*out of\s*5`)
	numberRegex = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
)

// ldProduct is the first schema.org Product found in JSON-LD, if any.
type ldProduct struct {
	gjson.Result
}

func findLDProduct(doc *goquery.Document) ldProduct {
	var found gjson.Result
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		root := gjson.Parse(s.Text())
		candidates := append([]gjson.Result{root}, root.Array()...)
		candidates = append(candidates, key(root, "@graph").Array()...)
		for _, c := range candidates {
			if c.IsObject() && key(c, "@type").String() == "Product" {
				found = c
				return false
			}
		}
		return true
	})
	return ldProduct{found}
}

// key reads a top-level member by exact name; gjson paths treat a leading
// '@' as a modifier.
func key(r gjson.Result, name string) gjson.Result {
	var out gjson.Result
	r.ForEach(func(k, v gjson.Result) bool {
		if k.String() == name {
			out = v
			return false
		}
		return true
	})
	return out
}

func (l ldProduct) str(path string) string {
	if !l.Exists() {
		return ""
	}
	v := l.Get(path)
	if v.IsObject() || v.IsArray() {
		return ""
	}
	return strings.TrimSpace(v.String())
}

func parsePage(doc *goquery.Document, base *url.URL, now time.Time) (*catalog.Product, error) {
	ld := findLDProduct(doc)
	canonical, _ := doc.Find(`link[rel="canonical"]`).Attr("href")

	title := firstNonEmpty(
		meta(doc, "og:title"),
		ld.str("name"),
		firstText(doc, titleSelectors),
		strings.TrimSpace(doc.Find("title").First().Text()),
	)
	if title == "" {
		return nil, ErrNoProductData
	}

	p := &catalog.Product{
		ID:       productID(base, canonical),
		Title:    title,
		Subtitle: firstNonEmpty(meta(doc, "og:description"), ld.str("description"), meta(doc, "description")),
		Brand: firstNonEmpty(
			meta(doc, "product:brand"),
			ld.str("brand.name"),
			ld.str("brand"),
			cleanBrand(firstText(doc, brandSelectors)),
		),
		URL:       firstNonEmpty(resolve(base, canonical), resolve(base, meta(doc, "og:url")), base.String()),
		Source:    "extract",
		CreatedAt: now.UTC(),
	}

	if raw := firstNonEmpty(
		meta(doc, "product:price:amount"),
		meta(doc, "og:price:amount"),
		ld.str("offers.price"),
		ld.str("offers.0.price"),
		firstText(doc, priceSelectors),
	); raw != "" {
		if !strings.ContainsAny(raw, "$€£¥") {
			if cur := firstNonEmpty(meta(doc, "product:price:currency"), ld.str("offers.priceCurrency")); cur == "" || cur == "USD" {
				raw = "$" + raw
			}
		}
		p.Price = catalog.PriceFromString(raw)
	}

	p.Rating = parseRating(doc, ld)
	p.ReviewCount = parseReviewCount(doc, ld)

	if img := firstNonEmpty(meta(doc, "og:image"), ld.str("image.0"), ld.str("image"), firstAttr(doc, imageSelectors, "src")); img != "" {
		p.ImageURL = resolve(base, img)
	}

	p.Flags = catalog.Flags{
		IsPrime:        doc.Find("#primeBadge, .a-icon-prime, i.a-icon-prime").Length() > 0,
		IsAmazonChoice: doc.Find("#acBadge_feature_div .ac-badge-wrapper, .ac-badge-rectangle").Length() > 0,
		IsBestSeller: doc.Find("#zeitgeistBadge_feature_div .badge-wrapper, .p13n-best-seller-badge").Length() > 0 ||
			strings.Contains(strings.ToLower(doc.Find(".badge-label, .a-badge-text").Text()), "best seller"),
		IsEcoFriendly: doc.Find("#climatePledgeFriendly, .climate-pledge-friendly").Length() > 0,
		IsDeal:        doc.Find("#dealBadge_feature_div .a-badge-text, #priceblock_dealprice").Length() > 0,
	}

	return p, nil
}

func parseRating(doc *goquery.Document, ld ldProduct) catalog.Number {
	if s := firstNonEmpty(meta(doc, "product:rating:value"), ld.str("aggregateRating.ratingValue")); s != "" {
		return catalog.ParseNumber(s)
	}
	text := firstNonEmpty(
		firstAttr(doc, []string{"#acrPopover"}, "title"),
		firstText(doc, []string{"#acrPopover .a-icon-alt", "[itemprop=ratingValue]", ".rating"}),
	)
	if m := ratingRegex.FindStringSubmatch(text); m != nil {
		return catalog.ParseNumber(m[1])
	}
	return numberIn(text)
}

func parseReviewCount(doc *goquery.Document, ld ldProduct) catalog.Number {
	if s := firstNonEmpty(ld.str("aggregateRating.reviewCount"), ld.str("aggregateRating.ratingCount")); s != "" {
		return catalog.ParseNumber(s)
	}
	return numberIn(firstText(doc, []string{"#acrCustomerReviewText", "[itemprop=reviewCount]", ".review-count"}))
}

// numberIn reads the first number in text such as "1,204 ratings".
func numberIn(text string) catalog.Number {
	return catalog.ParseNumber(numberRegex.FindString(text))
}

// meta reads a <meta> tag by property or name.
func meta(doc *goquery.Document, key string) string {
	for _, attr := range []string{"property", "name", "itemprop"} {
		if v, ok := doc.Find(`meta[` + attr + `="` + key + `"]`).First().Attr("content"); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

func firstText(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		if t := strings.Join(strings.Fields(doc.Find(sel).First().Text()), " "); t != "" {
			return t
		}
	}
	return ""
}

func firstAttr(doc *goquery.Document, selectors []string, attr string) string {
	for _, sel := range selectors {
		if v, ok := doc.Find(sel).First().Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return base.ResolveReference(u).String()
}

// cleanBrand strips storefront byline noise ("Visit the Sony Store",
// "Brand: Sony").
func cleanBrand(s string) string {
	s = strings.TrimPrefix(s, "Brand:")
	s = strings.TrimPrefix(s, "Visit the ")
	s = strings.TrimSuffix(s, " Store")
	return strings.TrimSpace(s)
}
