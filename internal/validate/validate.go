// Package validate normalizes extracted fields into the canonical result
// shape and checks completed results against the result schema.
package validate

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/sells-group/docintel/internal/model"
)

// Normalize cleans an extracted field set in place and returns it. String
// fields are whitespace-trimmed and dropped entirely when blank, so a
// matched-but-empty capture can never masquerade as data. Line items get a
// floor of zero confidence and the overall confidence is the mean of the
// line-item confidences, 0.5 when there are none.
func Normalize(data *model.ExtractedData) *model.ExtractedData {
	if data == nil {
		data = &model.ExtractedData{}
	}

	for _, f := range []**string{
		&data.Supplier, &data.SupplierAddress, &data.SupplierTaxID,
		&data.SupplierEmail, &data.SupplierPhone,
		&data.InvoiceNumber, &data.Date, &data.DueDate,
		&data.Currency, &data.CurrencySymbol,
		&data.PONumber, &data.PaymentTerms,
		&data.BillTo, &data.ShipTo, &data.Buyer,
		&data.GSTIN, &data.VATID, &data.PAN,
		&data.BankAccount, &data.IFSC, &data.IBAN, &data.SWIFT,
		&data.Notes,
	} {
		cleanString(f)
	}

	for i := range data.LineItems {
		item := &data.LineItems[i]
		cleanString(&item.Description)
		cleanString(&item.ItemCode)
		if item.Confidence < 0 {
			item.Confidence = 0
		}
	}

	data.Confidence = model.F64(overallConfidence(data.LineItems))
	return data
}

func cleanString(f **string) {
	if *f == nil {
		return
	}
	t := strings.TrimSpace(**f)
	if t == "" {
		*f = nil
		return
	}
	*f = &t
}

func overallConfidence(items []model.LineItem) float64 {
	if len(items) == 0 {
		return 0.5
	}
	var sum float64
	for _, it := range items {
		sum += it.Confidence
	}
	return sum / float64(len(items))
}

// resultSchema constrains the completed-result document: identity fields
// are required, every extracted field is nullable, and numeric fields must
// be numbers when present.
const resultSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["job_id", "status", "document_type", "processing_time"],
  "properties": {
    "job_id": {"type": "string", "minLength": 1},
    "status": {"enum": ["pending", "processing", "completed", "failed"]},
    "document_type": {"enum": ["structured", "semi_structured", "unstructured", ""]},
    "processing_time": {"type": "number", "minimum": 0},
    "extracted_data": {
      "type": ["object", "null"],
      "properties": {
        "supplier": {"type": ["string", "null"]},
        "invoice_number": {"type": ["string", "null"]},
        "date": {"type": ["string", "null"]},
        "due_date": {"type": ["string", "null"]},
        "currency": {"type": ["string", "null"]},
        "subtotal": {"type": ["number", "null"]},
        "tax": {"type": ["number", "null"]},
        "tax_rate": {"type": ["number", "null"]},
        "total": {"type": ["number", "null"]},
        "confidence": {"type": ["number", "null"], "minimum": 0, "maximum": 1},
        "line_items": {
          "type": ["array", "null"],
          "items": {
            "type": "object",
            "properties": {
              "quantity": {"type": ["number", "null"]},
              "unit_price": {"type": ["number", "null"]},
              "amount": {"type": ["number", "null"]},
              "tax_rate": {"type": ["number", "null"]},
              "confidence": {"type": "number", "minimum": 0}
            }
          }
        }
      }
    }
  }
}`

var compiledSchema = jsonschema.MustCompileString("result.schema.json", resultSchema)

// CheckResult verifies a result document against the result schema. The
// caller logs violations; they are never fatal.
func CheckResult(res *model.Result) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return eris.Wrap(err, "validate: marshal result")
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return eris.Wrap(err, "validate: decode result")
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return eris.Wrap(err, "validate: result schema violation")
	}
	return nil
}
