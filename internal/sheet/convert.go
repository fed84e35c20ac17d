package sheet

// convert.go turns messy spreadsheet cells into product fields:
//   - Excel formula prefixes (="value") and stray quotes
//   - yes/no, y/n, t/f, 1/0 booleans
//   - ISO timestamps and the common US / ISO date layouts

import (
	"strings"
	"time"
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"1/2/2006",
	"01/02/2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// cleanCell trims whitespace, the Excel ="..." wrapper and surrounding quotes.
func cleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "1", "x":
		return true, true
	case "false", "f", "no", "n", "0":
		return false, true
	default:
		return false, false
	}
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
