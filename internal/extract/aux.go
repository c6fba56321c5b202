package extract

import (
	"regexp"
	"strings"
)

var (
	poPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)purchase\s*order\s*(no\.|number|#)?\s*:?\s*([A-Z0-9\-/]+)`),
		regexp.MustCompile(`(?i)\bPO\s*(no\.|number|#)?\s*:?\s*([A-Z0-9\-/]+)`),
	}
	paymentTermsPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)payment\s*terms\s*:?\s*([^\n]+)`),
		regexp.MustCompile(`(?i)\bNet\s*(\d{1,3})\b`),
		regexp.MustCompile(`(?i)due\s*in\s*(\d{1,3})\s*days`),
	}

	billToRe = regexp.MustCompile(`(?i)\b(bill\s*to|billed\s*to|sold\s*to|invoice\s*to)\b`)
	shipToRe = regexp.MustCompile(`(?i)\b(ship\s*to|deliver\s*to)\b`)
	buyerRe  = regexp.MustCompile(`(?i)\b(customer|buyer|client)\b`)
	// blockStop ends a party/address block at the next labeled section.
	blockStop = regexp.MustCompile(`^(invoice|date|due|total|amount|tax|subtotal|payment|po\b|gst|vat)`)

	gstinRe = regexp.MustCompile(`(?i)\bGSTIN\b\s*:?\s*([0-9A-Z]{15})`)
	vatRe   = regexp.MustCompile(`(?i)\bVAT\b\s*(?:ID|No\.?|Number)?\s*:?\s*([A-Z0-9-]+)`)
	panRe   = regexp.MustCompile(`(?i)\bPAN\b\s*:?\s*([A-Z]{5}\d{4}[A-Z])`)

	emailRe   = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	phoneRe   = regexp.MustCompile(`(?i)(?:phone|tel|mobile)\s*:?\s*(\+?[\d\s()\-]{7,})`)
	addressRe = regexp.MustCompile(`(?i)\b(address|addr\.)\b`)
	addrStop  = regexp.MustCompile(`^(invoice|date|due|total|tax|gst|vat|po\b)`)
	taxIDRe   = regexp.MustCompile(`(?i)(tax\s*id|tin)\s*:?\s*([A-Z0-9-]+)`)

	accountRe = regexp.MustCompile(`(?i)\bAccount\s*(?:No\.?|Number|#)?\s*:?\s*(\d[\dA-Z-]*)`)
	ifscRe    = regexp.MustCompile(`\bIFSC\b\s*:?\s*([A-Z]{4}0[A-Z0-9]{6})`)
	ibanRe    = regexp.MustCompile(`\bIBAN\b\s*:?\s*([A-Z0-9]{15,34})`)
	swiftRe   = regexp.MustCompile(`\bSWIFT\b\s*:?\s*([A-Z0-9]{8,11})`)

	discountRe = []*regexp.Regexp{regexp.MustCompile(`(?i)discount\s*:?\s*\$?\s*([0-9,]+\.?\d*)`)}
	shippingRe = []*regexp.Regexp{regexp.MustCompile(`(?i)(shipping|delivery|freight)\s*:?\s*\$?\s*([0-9,]+\.?\d*)`)}
	handlingRe = []*regexp.Regexp{regexp.MustCompile(`(?i)handling\s*:?\s*\$?\s*([0-9,]+\.?\d*)`)}
	otherRe    = []*regexp.Regexp{regexp.MustCompile(`(?i)(other\s*charges|misc\.|surcharges?)\s*:?\s*([0-9,]+\.?\d*)`)}

	taxRateRe = regexp.MustCompile(`(?i)(tax|vat)[^\n%]*?(\d{1,3}\.?\d*)\s*%`)

	labelValueRe = regexp.MustCompile(`^([A-Za-z][A-Za-z\s\-/&]+?)\s*[:\-]\s*(.+)$`)
)

// claimedLabels are label substrings excluded from the additional-fields
// pass because a dedicated extraction already owns them.
var claimedLabels = []string{
	"total", "subtotal", "tax", "amount", "date", "invoice", "bill to",
	"ship to", "payment terms", "po", "gst", "vat", "pan", "account",
	"iban", "swift", "ifsc",
}

func extractPONumber(text string) string {
	return matchCascade(poPatterns, text)
}

func extractPaymentTerms(text string) string {
	return matchCascade(paymentTermsPatterns, text)
}

// nonBlankLines splits text into trimmed non-empty lines.
func nonBlankLines(text string) []string {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if t := strings.TrimSpace(l); t != "" {
			lines = append(lines, t)
		}
	}
	return lines
}

// collectBlock gathers up to max lines after start, stopping at the next
// labeled section.
func collectBlock(lines []string, start, max int, stop *regexp.Regexp) string {
	var blk []string
	for j := start + 1; j < len(lines) && j <= start+max; j++ {
		if stop.MatchString(strings.ToLower(lines[j])) {
			break
		}
		blk = append(blk, lines[j])
	}
	return strings.TrimSpace(strings.Join(blk, "\n"))
}

// extractPartyBlocks finds bill-to / ship-to address blocks and a buyer
// name.
func extractPartyBlocks(text string) (billTo, shipTo, buyer string) {
	lines := nonBlankLines(text)
	for i, l := range lines {
		if billTo == "" && billToRe.MatchString(l) {
			billTo = collectBlock(lines, i, 5, blockStop)
		}
		if shipTo == "" && shipToRe.MatchString(l) {
			shipTo = collectBlock(lines, i, 5, blockStop)
		}
		if buyer == "" && buyerRe.MatchString(l) {
			buyer = collectBlock(lines, i, 5, blockStop)
			if buyer == "" {
				buyer = l
			}
		}
	}
	return billTo, shipTo, buyer
}

type taxIDs struct {
	gstin, vatID, pan string
}

func extractTaxIDs(text string) taxIDs {
	var out taxIDs
	if m := gstinRe.FindStringSubmatch(text); m != nil {
		out.gstin = m[1]
	}
	if m := vatRe.FindStringSubmatch(text); m != nil {
		out.vatID = m[len(m)-1]
	}
	if m := panRe.FindStringSubmatch(text); m != nil {
		out.pan = m[1]
	}
	return out
}

type supplierDetails struct {
	address, email, phone, taxID string
}

func extractSupplierDetails(text string) supplierDetails {
	var out supplierDetails
	if m := emailRe.FindString(text); m != "" {
		out.email = m
	}
	if m := phoneRe.FindStringSubmatch(text); m != nil {
		out.phone = strings.TrimSpace(m[1])
	}
	lines := nonBlankLines(text)
	limit := len(lines)
	if limit > 20 {
		limit = 20
	}
	for i := 0; i < limit; i++ {
		if !addressRe.MatchString(strings.ToLower(lines[i])) {
			continue
		}
		if blk := collectBlock(lines, i, 4, addrStop); blk != "" {
			out.address = blk
		}
		break
	}
	if m := taxIDRe.FindStringSubmatch(text); m != nil {
		out.taxID = m[len(m)-1]
	}
	return out
}

type bankDetails struct {
	account, ifsc, iban, swift string
}

func extractBankDetails(text string) bankDetails {
	var out bankDetails
	if m := accountRe.FindStringSubmatch(text); m != nil {
		out.account = m[len(m)-1]
	}
	if m := ifscRe.FindStringSubmatch(text); m != nil {
		out.ifsc = m[1]
	}
	if m := ibanRe.FindStringSubmatch(text); m != nil {
		out.iban = m[1]
	}
	if m := swiftRe.FindStringSubmatch(text); m != nil {
		out.swift = m[1]
	}
	return out
}

type charges struct {
	discount, shipping, handling, other *float64
}

func extractCharges(text string) charges {
	num := func(pats []*regexp.Regexp) *float64 {
		if v := matchCascade(pats, text); v != "" {
			return ParseNumber(v)
		}
		return nil
	}
	return charges{
		discount: num(discountRe),
		shipping: num(shippingRe),
		handling: num(handlingRe),
		other:    num(otherRe),
	}
}

// extractTaxRate finds an overall tax percentage.
func extractTaxRate(text string) *float64 {
	if m := taxRateRe.FindStringSubmatch(text); m != nil {
		return ParseNumber(m[2])
	}
	return nil
}

// extractAdditionalFields captures every label:value line not already
// claimed by a dedicated field, as an open-ended map.
func extractAdditionalFields(text string) map[string]any {
	fields := make(map[string]any)
	for _, line := range nonBlankLines(text) {
		m := labelValueRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		label := strings.ToLower(strings.TrimSpace(m[1]))
		claimed := false
		for _, k := range claimedLabels {
			if strings.Contains(label, k) {
				claimed = true
				break
			}
		}
		if claimed {
			continue
		}
		fields[label] = strings.TrimSpace(m[2])
	}
	return fields
}
