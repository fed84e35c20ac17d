package store

// convert.go maps catalog fields to pgtype values and back. Empty strings
// and null numbers become SQL NULL.

import (
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/catalogdesk/internal/catalog"
)

func toText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func toNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	if err := n.Scan(d.String()); err != nil {
		return pgtype.Numeric{}
	}
	return n
}

func toFloat8(n catalog.Number) pgtype.Float8 {
	return pgtype.Float8{Float64: n.Value, Valid: n.Valid}
}

func fromFloat8(f pgtype.Float8) catalog.Number {
	if !f.Valid {
		return catalog.Number{}
	}
	return catalog.NewNumber(f.Float64)
}

// fromPrice prefers the stored display text and falls back to the numeric
// column.
func fromPrice(raw, amount pgtype.Text) catalog.Price {
	if raw.Valid && raw.String != "" {
		return catalog.PriceFromString(raw.String)
	}
	if !amount.Valid {
		return catalog.Price{}
	}
	d, err := decimal.NewFromString(amount.String)
	if err != nil {
		return catalog.Price{}
	}
	return catalog.Price{Amount: d}
}
