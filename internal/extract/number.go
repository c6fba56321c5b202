package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// currencySymbols lists glyphs stripped before numeric parsing.
// Multi-character symbols come first so "R$" is not left as "R".
var currencySymbols = []string{
	"R$", "A$", "C$", "HK$", "S$",
	"$", "€", "£", "¥", "₹", "₩", "₽", "₺", "₫", "฿", "₦", "₪", "₴",
}

var nonNumeric = regexp.MustCompile(`[^0-9.\-]`)

// ParseNumber extracts a float from a formatted amount string. Thousands
// separators and currency symbols are stripped; degenerate remainders
// ("", "-", ".", "--") and anything unparseable return nil.
func ParseNumber(text string) *float64 {
	s := strings.ReplaceAll(text, ",", "")
	for _, sym := range currencySymbols {
		s = strings.ReplaceAll(s, sym, "")
	}
	cleaned := strings.TrimSpace(nonNumeric.ReplaceAllString(s, ""))
	switch cleaned {
	case "", "-", ".", "--":
		return nil
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &f
}
