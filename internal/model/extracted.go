package model

// LineItem is one row of an invoice table. Numeric fields are nil when the
// row did not yield them.
type LineItem struct {
	Description *string  `json:"description"`
	Quantity    *float64 `json:"quantity"`
	UnitPrice   *float64 `json:"unit_price"`
	Amount      *float64 `json:"amount"`
	TaxRate     *float64 `json:"tax_rate"`
	ItemCode    *string  `json:"item_code"`
	Confidence  float64  `json:"confidence"`
}

// ExtractedData is the flat candidate field set produced by the extraction
// engine and cleaned by the validator. Every field is optional; absence is
// nil, never a zero that could be mistaken for data.
type ExtractedData struct {
	Supplier        *string    `json:"supplier"`
	SupplierAddress *string    `json:"supplier_address"`
	SupplierTaxID   *string    `json:"supplier_tax_id"`
	SupplierEmail   *string    `json:"supplier_email"`
	SupplierPhone   *string    `json:"supplier_phone"`
	InvoiceNumber   *string    `json:"invoice_number"`
	Date            *string    `json:"date"`
	DueDate         *string    `json:"due_date"`
	Currency        *string    `json:"currency"`
	CurrencySymbol  *string    `json:"currency_symbol"`
	Subtotal        *float64   `json:"subtotal"`
	Tax             *float64   `json:"tax"`
	TaxRate         *float64   `json:"tax_rate"`
	Discount        *float64   `json:"discount"`
	Shipping        *float64   `json:"shipping"`
	Handling        *float64   `json:"handling"`
	OtherCharges    *float64   `json:"other_charges"`
	Total           *float64   `json:"total"`
	PONumber        *string    `json:"po_number"`
	PaymentTerms    *string    `json:"payment_terms"`
	BillTo          *string    `json:"bill_to"`
	ShipTo          *string    `json:"ship_to"`
	Buyer           *string    `json:"buyer"`
	GSTIN           *string    `json:"gstin"`
	VATID           *string    `json:"vat_id"`
	PAN             *string    `json:"pan"`
	BankAccount     *string    `json:"bank_account"`
	IFSC            *string    `json:"ifsc"`
	IBAN            *string    `json:"iban"`
	SWIFT           *string    `json:"swift"`
	Notes           *string    `json:"notes"`
	LineItems       []LineItem `json:"line_items"`
	Confidence      *float64   `json:"confidence"`
}

// AgentAnalysis is the optional narrative-analysis collaborator output.
type AgentAnalysis struct {
	Summary         string   `json:"summary"`
	Flags           []string `json:"flags"`
	Recommendations []string `json:"recommendations"`
	Model           string   `json:"model,omitempty"`
	ExecutionTime   float64  `json:"execution_time,omitempty"`
}

// Result is the immutable record written exactly once when a job completes.
type Result struct {
	JobID            string         `json:"job_id"`
	Status           JobStatus      `json:"status"`
	DocumentType     DocumentType   `json:"document_type"`
	ExtractedData    *ExtractedData `json:"extracted_data"`
	ProcessingTime   float64        `json:"processing_time"`
	RawText          string         `json:"raw_text,omitempty"`
	AdditionalFields map[string]any `json:"additional_fields,omitempty"`
	AgentAnalysis    *AgentAnalysis `json:"agent_analysis,omitempty"`
	Error            string         `json:"error,omitempty"`
}

// Str and F64 build optional field values in place.
func Str(s string) *string   { return &s }
func F64(f float64) *float64 { return &f }
