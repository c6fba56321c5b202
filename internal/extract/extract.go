// Package extract turns OCR output into structured invoice fields. Each
// field is resolved by an ordered regex cascade; layout-aware heuristics
// handle the supplier name and line items, and an open-ended pass captures
// any remaining label:value pairs.
package extract

import (
	"regexp"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/docintel/internal/config"
	"github.com/sells-group/docintel/internal/model"
)

// Extractor resolves invoice fields from OCR text and word geometry. The
// pattern cascades are fixed at construction; overrides from the configured
// YAML file are appended after the built-ins so they act as fallbacks.
type Extractor struct {
	cascades map[string][]*regexp.Regexp
}

// New builds an Extractor, loading pattern overrides when cfg.PatternsPath
// is set.
func New(cfg config.ExtractConfig) (*Extractor, error) {
	cascades, err := loadCascades(cfg.PatternsPath)
	if err != nil {
		return nil, eris.Wrap(err, "extract: load pattern cascades")
	}
	return &Extractor{cascades: cascades}, nil
}

// field runs the named cascade against text and returns a *string, nil when
// no pattern matched.
func (e *Extractor) field(name, text string) *string {
	if v := matchCascade(e.cascades[name], text); v != "" {
		return model.Str(v)
	}
	return nil
}

// numField runs the named cascade and parses the match as a number.
func (e *Extractor) numField(name, text string) *float64 {
	if v := matchCascade(e.cascades[name], text); v != "" {
		return ParseNumber(v)
	}
	return nil
}

// Extract produces candidate fields from an OCR result. Line items are only
// attempted for documents classified as having tabular structure. The second
// return value is the open-ended additional-fields map.
func (e *Extractor) Extract(res *model.OCRResult, docType model.DocumentType) (*model.ExtractedData, map[string]any) {
	text := res.FullText
	data := &model.ExtractedData{
		InvoiceNumber: e.field("invoice_number", text),
		Date:          e.field("date", text),
		DueDate:       e.field("due_date", text),
		Subtotal:      e.numField("subtotal", text),
		Tax:           e.numField("tax", text),
		Total:         e.numField("total", text),
	}

	if s := extractSupplier(text, res.Words); s != "" {
		data.Supplier = model.Str(s)
	}

	if code, symbol := detectCurrency(text); code != "" {
		data.Currency = model.Str(code)
		if symbol != "" {
			data.CurrencySymbol = model.Str(symbol)
		}
	}

	if docType == model.DocTypeStructured || docType == model.DocTypeSemiStructured {
		data.LineItems = extractLineItems(res.Words)
	}

	if v := extractPONumber(text); v != "" {
		data.PONumber = model.Str(v)
	}
	if v := extractPaymentTerms(text); v != "" {
		data.PaymentTerms = model.Str(v)
	}

	billTo, shipTo, buyer := extractPartyBlocks(text)
	if billTo != "" {
		data.BillTo = model.Str(billTo)
	}
	if shipTo != "" {
		data.ShipTo = model.Str(shipTo)
	}
	if buyer != "" {
		data.Buyer = model.Str(buyer)
	}

	ids := extractTaxIDs(text)
	if ids.gstin != "" {
		data.GSTIN = model.Str(ids.gstin)
	}
	if ids.vatID != "" {
		data.VATID = model.Str(ids.vatID)
	}
	if ids.pan != "" {
		data.PAN = model.Str(ids.pan)
	}

	det := extractSupplierDetails(text)
	if det.address != "" {
		data.SupplierAddress = model.Str(det.address)
	}
	if det.email != "" {
		data.SupplierEmail = model.Str(det.email)
	}
	if det.phone != "" {
		data.SupplierPhone = model.Str(det.phone)
	}
	if det.taxID != "" {
		data.SupplierTaxID = model.Str(det.taxID)
	}

	bank := extractBankDetails(text)
	if bank.account != "" {
		data.BankAccount = model.Str(bank.account)
	}
	if bank.ifsc != "" {
		data.IFSC = model.Str(bank.ifsc)
	}
	if bank.iban != "" {
		data.IBAN = model.Str(bank.iban)
	}
	if bank.swift != "" {
		data.SWIFT = model.Str(bank.swift)
	}

	chg := extractCharges(text)
	data.Discount = chg.discount
	data.Shipping = chg.shipping
	data.Handling = chg.handling
	data.OtherCharges = chg.other

	if data.TaxRate == nil {
		data.TaxRate = extractTaxRate(text)
	}

	additional := extractAdditionalFields(text)

	zap.L().Debug("extraction complete",
		zap.Bool("invoice_number", data.InvoiceNumber != nil),
		zap.Bool("total", data.Total != nil),
		zap.Int("line_items", len(data.LineItems)),
		zap.Int("additional_fields", len(additional)))

	return data, additional
}
