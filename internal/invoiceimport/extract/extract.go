// Package extract turns a supplier document's raw bytes into structured invoice lines. An
// Extractor implementation is a pure function of (filename, content type, bytes) -> lines;
// the caller is responsible for persisting them as SupplierInvoiceImportLine rows.
package extract

import "context"

// Line is one detected invoice line, in the shape the extractor reports it — not yet matched
// against the catalog.
type Line struct {
	SupplierItemCode string  `json:"supplier_item_code" jsonschema_description:"The supplier's own code/SKU for this line item, exactly as printed. Empty string if absent."`
	SupplierItemName string  `json:"supplier_item_name" jsonschema_description:"The line item's description, exactly as printed."`
	Qty              string  `json:"qty" jsonschema_description:"The quantity invoiced, as a plain decimal string (e.g. '12', '3.5')."`
	UnitCostUSD      string  `json:"unit_cost_usd" jsonschema_description:"The unit cost in US dollars as a plain decimal string. '0' if the line is priced only in Lebanese pounds."`
	UnitCostLBP      string  `json:"unit_cost_lbp" jsonschema_description:"The unit cost in Lebanese pounds as a plain decimal string. '0' if the line is priced only in US dollars."`
}

// Invoice is the extractor's full structured read of one document.
type Invoice struct {
	SupplierNameGuess string `json:"supplier_name_guess" jsonschema_description:"The supplier/vendor name as printed on the document header, best effort. Empty string if illegible."`
	InvoiceNoGuess    string `json:"invoice_no_guess" jsonschema_description:"The supplier's own invoice/reference number, best effort. Empty string if illegible."`
	Lines             []Line `json:"lines" jsonschema_description:"Every line item detected on the document, in the order printed."`
}

// Extractor reads a supplier document and returns its structured content plus the raw
// provider response (for the audit trail) — raw may be nil for extractors that don't have
// one (e.g. a test fixture).
type Extractor interface {
	Extract(ctx context.Context, filename, contentType string, raw []byte) (*Invoice, []byte, error)
}
