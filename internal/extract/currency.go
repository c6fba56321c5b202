package extract

import (
	"regexp"
	"strings"

	"golang.org/x/text/currency"
)

// isoCodes is the curated set matched on word boundaries. Every entry
// must be a valid ISO 4217 code; see TestISOCodesAreValid.
var isoCodes = []string{
	"USD", "EUR", "GBP", "JPY", "INR", "CAD", "AUD", "NZD", "HKD", "SGD",
	"CHF", "KRW", "RUB", "BRL", "MXN", "TRY", "VND", "THB", "UAH", "ZAR",
	"SEK", "NOK", "DKK", "PLN", "CZK", "HUF", "AED", "SAR", "QAR", "BHD",
	"OMR", "KWD", "ILS", "MYR", "IDR", "PHP", "EGP", "NGN", "KES", "GHS",
	"TZS", "UGX",
}

type symbolMapping struct {
	marker string
	code   string
}

// labelTable maps symbols and common textual labels to ISO codes, in
// lookup order. Consulted only when no ISO code appears in the text.
var labelTable = []symbolMapping{
	{"$", "USD"}, {"US$", "USD"}, {"U.S. Dollars", "USD"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"¥", "JPY"}, {"円", "JPY"},
	{"₹", "INR"}, {"Rs.", "INR"}, {"Rs", "INR"},
	{"C$", "CAD"},
	{"A$", "AUD"},
	{"NZ$", "NZD"},
	{"HK$", "HKD"},
	{"S$", "SGD"},
	{"₩", "KRW"},
	{"₽", "RUB"},
	{"R$", "BRL"},
	{"MX$", "MXN"},
	{"₺", "TRY"},
	{"₫", "VND"},
	{"฿", "THB"},
	{"₴", "UAH"},
	{"₪", "ILS"},
}

// displaySymbols resolves the visible symbol once a code is known.
var displaySymbols = []symbolMapping{
	{"$", "USD"}, {"€", "EUR"}, {"£", "GBP"}, {"¥", "JPY"}, {"₹", "INR"},
	{"₩", "KRW"}, {"₽", "RUB"}, {"₺", "TRY"}, {"₫", "VND"}, {"฿", "THB"},
	{"₪", "ILS"}, {"R$", "BRL"}, {"A$", "AUD"}, {"C$", "CAD"},
	{"HK$", "HKD"}, {"S$", "SGD"},
}

var (
	isoPatterns = compileISOPatterns()

	dollarWords = regexp.MustCompile(`(?i)\b(dollars|usd)\b`)
	euroWords   = regexp.MustCompile(`(?i)\b(eur|euro|euros)\b`)
	poundWords  = regexp.MustCompile(`(?i)\b(pounds|gbp)\b`)
)

func compileISOPatterns() map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp, len(isoCodes))
	for _, code := range isoCodes {
		out[code] = regexp.MustCompile(`(?i)\b` + code + `\b`)
	}
	return out
}

// detectCurrency resolves an ISO code and display symbol from text.
// Precedence: explicit ISO code, then symbol/label lookup, then currency
// keywords. The symbol is set only when it occurs in the text and maps
// to the resolved code, so a document naming USD but showing only "€"
// reports code USD with no symbol. No currency is ever guessed.
func detectCurrency(text string) (code, symbol string) {
	code = detectCode(text)
	if code != "" {
		for _, m := range displaySymbols {
			if m.code == code && strings.Contains(text, m.marker) {
				return code, m.marker
			}
		}
		return code, ""
	}
	for _, m := range displaySymbols {
		if strings.Contains(text, m.marker) {
			return m.code, m.marker
		}
	}
	return "", ""
}

func detectCode(text string) string {
	for _, iso := range isoCodes {
		if !isoPatterns[iso].MatchString(text) {
			continue
		}
		if _, err := currency.ParseISO(iso); err == nil {
			return iso
		}
	}
	for _, m := range labelTable {
		if strings.Contains(text, m.marker) {
			return m.code
		}
	}
	switch {
	case dollarWords.MatchString(text):
		return "USD"
	case euroWords.MatchString(text):
		return "EUR"
	case poundWords.MatchString(text):
		return "GBP"
	}
	return ""
}
