package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"

	"github.com/sells-group/docintel/internal/classify"
	"github.com/sells-group/docintel/internal/config"
	"github.com/sells-group/docintel/internal/model"
)

func word(text string, x, y int, conf float64) model.Word {
	return model.Word{Text: text, Confidence: conf, BBox: model.BBox{X: x, Y: y, Width: 30, Height: 12}}
}

func TestParseNumber(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"1,234.56", 1234.56},
		{"$110.00", 110},
		{"€120.00", 120},
		{"₹5,000", 5000},
		{"R$99.90", 99.90},
		{"-42.5", -42.5},
	}
	for _, tc := range cases {
		got := ParseNumber(tc.in)
		require.NotNil(t, got, "input %q", tc.in)
		assert.InDelta(t, tc.want, *got, 1e-9, "input %q", tc.in)
	}
}

func TestParseNumber_Idempotent(t *testing.T) {
	first := ParseNumber("$1,234.50")
	require.NotNil(t, first)

	again := ParseNumber("1234.5")
	require.NotNil(t, again)
	assert.Equal(t, *first, *again)
}

func TestParseNumber_Degenerate(t *testing.T) {
	for _, in := range []string{"", "-", ".", "--", "N/A", "$"} {
		assert.Nil(t, ParseNumber(in), "input %q", in)
	}
}

func TestCascadeOrdering(t *testing.T) {
	cascades, err := loadCascades("")
	require.NoError(t, err)

	// No "INV-" prefix, so the first pattern cannot match and the
	// labeled form must win.
	got := matchCascade(cascades["invoice_number"], "Invoice Number: ABC-99\n")
	assert.Equal(t, "ABC-99", got)

	got = matchCascade(cascades["invoice_number"], "Ref INV-2024-001\n")
	assert.Equal(t, "2024-001", got)
}

func TestCascade_TotalIgnoresSubtotal(t *testing.T) {
	cascades, err := loadCascades("")
	require.NoError(t, err)

	text := "Subtotal: $100.00\nTotal: $110.00\n"
	assert.Equal(t, "110.00", matchCascade(cascades["total"], text))
	assert.Equal(t, "100.00", matchCascade(cascades["subtotal"], text))
}

func TestLoadCascades_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.yaml")
	override := "invoice_number:\n  - 'Ref\\s+(\\d+)'\n"
	require.NoError(t, os.WriteFile(path, []byte(override), 0o644))

	cascades, err := loadCascades(path)
	require.NoError(t, err)

	// Built-ins still run first; the override only catches what they
	// cannot.
	assert.Equal(t, "2024-001", matchCascade(cascades["invoice_number"], "INV-2024-001"))
	assert.Equal(t, "7781", matchCascade(cascades["invoice_number"], "Ref 7781"))
}

func TestLoadCascades_UnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bogus_field:\n  - 'x'\n"), 0o644))

	_, err := loadCascades(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown field")
}

func TestLoadCascades_BadPattern(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.yaml")
	require.NoError(t, os.WriteFile(path, []byte("total:\n  - '(unclosed'\n"), 0o644))

	_, err := loadCascades(path)
	require.Error(t, err)
}

func TestISOCodesAreValid(t *testing.T) {
	for _, code := range isoCodes {
		_, err := currency.ParseISO(code)
		assert.NoError(t, err, "code %s", code)
	}
}

func TestDetectCurrency_SymbolOnly(t *testing.T) {
	code, symbol := detectCurrency("Amount: €120.00")
	assert.Equal(t, "EUR", code)
	assert.Equal(t, "€", symbol)
}

func TestDetectCurrency_ISOWinsOverForeignSymbol(t *testing.T) {
	// The ISO path resolves USD; € does not map to USD, so no symbol is
	// attached.
	code, symbol := detectCurrency("Total USD 100 (was €120)")
	assert.Equal(t, "USD", code)
	assert.Empty(t, symbol)
}

func TestDetectCurrency_None(t *testing.T) {
	code, symbol := detectCurrency("no money mentioned here")
	assert.Empty(t, code)
	assert.Empty(t, symbol)
}

func TestExtractLineItems_TokenCounts(t *testing.T) {
	words := []model.Word{
		word("Item", 0, 0, 0.9), word("Description", 40, 0, 0.9), word("Here", 120, 0, 0.9),
		word("Widget", 0, 25, 0.9), word("3", 100, 25, 0.9), word("45.00", 200, 25, 0.9),
		word("Gadget", 0, 45, 0.8), word("3", 100, 45, 0.8), word("15.00", 150, 45, 0.8), word("45.00", 200, 45, 0.8),
		word("Thank", 0, 65, 0.9), word("you", 40, 65, 0.9),
	}

	items := extractLineItems(words)
	require.Len(t, items, 2)

	two := items[0]
	require.NotNil(t, two.Quantity)
	require.NotNil(t, two.Amount)
	assert.Equal(t, 3.0, *two.Quantity)
	assert.Nil(t, two.UnitPrice)
	assert.Equal(t, 45.0, *two.Amount)
	require.NotNil(t, two.Description)
	assert.Equal(t, "Widget", *two.Description)

	three := items[1]
	require.NotNil(t, three.UnitPrice)
	assert.Equal(t, 3.0, *three.Quantity)
	assert.Equal(t, 15.0, *three.UnitPrice)
	assert.Equal(t, 45.0, *three.Amount)
}

func TestExtractLineItems_TooFewWords(t *testing.T) {
	words := []model.Word{
		word("Widget", 0, 0, 0.9), word("3", 100, 0, 0.9), word("45.00", 200, 0, 0.9),
	}
	assert.Nil(t, extractLineItems(words))
}

func TestExtractSupplier_Layout(t *testing.T) {
	words := []model.Word{
		word("INVOICE", 0, 0, 0.9),
		word("Acme", 0, 20, 0.95), word("Co", 60, 20, 0.95), word("Inc", 95, 20, 0.95),
		word("Date:", 0, 120, 0.9), word("01/02/2024", 60, 120, 0.9),
		word("Total:", 0, 200, 0.9), word("$110.00", 60, 200, 0.9),
	}
	assert.Equal(t, "Acme Co Inc", extractSupplier("", words))
}

func TestExtractSupplier_TextFallback(t *testing.T) {
	text := "Invoice\nGlobex Corporation Ltd\n123 Main St\n"
	assert.Equal(t, "Globex Corporation Ltd", extractSupplier(text, nil))
}

func TestExtractPartyBlocks(t *testing.T) {
	text := "Bill To:\nJane Smith\n742 Evergreen Terrace\nSpringfield\nTotal: $50.00\n"
	billTo, shipTo, _ := extractPartyBlocks(text)
	assert.Equal(t, "Jane Smith\n742 Evergreen Terrace\nSpringfield", billTo)
	assert.Empty(t, shipTo)
}

func TestExtractTaxIDs(t *testing.T) {
	ids := extractTaxIDs("GSTIN: 22AAAAA0000A1Z5\nVAT Number: GB123456789\nPAN: ABCDE1234F\n")
	assert.Equal(t, "22AAAAA0000A1Z5", ids.gstin)
	assert.Equal(t, "GB123456789", ids.vatID)
	assert.Equal(t, "ABCDE1234F", ids.pan)
}

func TestExtractBankDetails(t *testing.T) {
	b := extractBankDetails("Account No: 12345678\nIFSC: HDFC0004321\nSWIFT: DEUTDEFF\n")
	assert.Equal(t, "12345678", b.account)
	assert.Equal(t, "HDFC0004321", b.ifsc)
	assert.Equal(t, "DEUTDEFF", b.swift)
}

func TestExtractAdditionalFields(t *testing.T) {
	text := "Project: Apollo\nTotal: $10.00\nDelivery Window: Q3\n"
	fields := extractAdditionalFields(text)
	assert.Equal(t, "Apollo", fields["project"])
	assert.Equal(t, "Q3", fields["delivery window"])
	assert.NotContains(t, fields, "total")
}

func TestExtract_EndToEnd(t *testing.T) {
	fullText := "INVOICE\nAcme Co Inc\nInvoice Number: INV-2024-001\nDate: 01/02/2024\nSubtotal: $100.00\nTax: $10.00\nTotal: $110.00"

	words := []model.Word{
		word("INVOICE", 0, 0, 0.9),
		word("Acme", 0, 20, 0.95), word("Co", 60, 20, 0.95), word("Inc", 95, 20, 0.95),
		word("Invoice", 0, 100, 0.9), word("Number:", 70, 100, 0.9), word("INV-2024-001", 150, 100, 0.9),
		word("Date:", 0, 120, 0.9), word("01/02/2024", 60, 120, 0.9),
		word("Subtotal:", 0, 140, 0.9), word("$100.00", 100, 140, 0.9),
		word("Total:", 0, 160, 0.9), word("$110.00", 100, 160, 0.9),
	}

	res := &model.OCRResult{
		Pages:      1,
		FullText:   fullText,
		Words:      words,
		TotalWords: len(words),
	}

	docType := classify.Classify(res)
	assert.Contains(t, []model.DocumentType{model.DocTypeStructured, model.DocTypeSemiStructured}, docType)

	ex, err := New(config.ExtractConfig{})
	require.NoError(t, err)

	data, additional := ex.Extract(res, docType)
	require.NotNil(t, data)

	require.NotNil(t, data.InvoiceNumber)
	assert.Equal(t, "2024-001", *data.InvoiceNumber)

	require.NotNil(t, data.Total)
	assert.Equal(t, 110.00, *data.Total)

	require.NotNil(t, data.Subtotal)
	assert.Equal(t, 100.00, *data.Subtotal)

	require.NotNil(t, data.Tax)
	assert.Equal(t, 10.00, *data.Tax)

	require.NotNil(t, data.Date)
	assert.Equal(t, "01/02/2024", *data.Date)

	require.NotNil(t, data.Supplier)
	assert.Contains(t, *data.Supplier, "Acme Co Inc")

	assert.Empty(t, additional)
}
