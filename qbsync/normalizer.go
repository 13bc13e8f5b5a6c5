package qbsync

import (
	"encoding/json"
	"strings"

	"bitbucket.org/mmdatafocus/docsync_backend/models"
)

// LineExtraction is one extracted line item. Numeric fields stay
// pointers so downstream derivation can tell absent from zero.
type LineExtraction struct {
	Description string   `json:"Description"`
	Quantity    *float64 `json:"Quantity"`
	UnitPrice   *float64 `json:"UnitPrice"`
	TotalAmount *float64 `json:"TotalAmount"`
}

type InvoiceExtraction struct {
	CustomerName    string           `json:"CustomerName"`
	CustomerEmail   string           `json:"CustomerEmail"`
	CustomerPhone   string           `json:"CustomerPhone"`
	CustomerAddress string           `json:"CustomerAddress"`
	InvoiceNumber   string           `json:"InvoiceNumber"`
	InvoiceDate     string           `json:"InvoiceDate"`
	DueDate         string           `json:"DueDate"`
	Currency        string           `json:"Currency"`
	Subtotal        *float64         `json:"Subtotal"`
	DiscountTotal   *float64         `json:"DiscountTotal"`
	TaxTotal        *float64         `json:"TaxTotal"`
	TotalAmount     *float64         `json:"TotalAmount"`
	Items           []LineExtraction `json:"Items"`
}

type ReceiptExtraction struct {
	VendorName    string           `json:"VendorName"`
	VendorEmail   string           `json:"VendorEmail"`
	VendorPhone   string           `json:"VendorPhone"`
	VendorAddress string           `json:"VendorAddress"`
	ReceiptNumber string           `json:"ReceiptNumber"`
	ReceiptDate   string           `json:"ReceiptDate"`
	PaymentType   string           `json:"PaymentType"`
	Currency      string           `json:"Currency"`
	DiscountTotal *float64         `json:"DiscountTotal"`
	TotalAmount   *float64         `json:"TotalAmount"`
	Items         []LineExtraction `json:"Items"`
}

// ExtractedRecord is the tagged normalizer output: exactly one of the
// two variants is set, matching the requested document type.
type ExtractedRecord struct {
	Invoice *InvoiceExtraction
	Receipt *ReceiptExtraction
}

// Normalize coerces raw extraction JSON into the requested variant. It
// performs no business validation and never fails on missing optional
// fields; only an absent items array is a schema mismatch.
func Normalize(raw json.RawMessage, documentType models.DocumentType) (*ExtractedRecord, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, &SchemaMismatchError{Detail: "payload is not a JSON object"}
	}
	itemsRaw, ok := probe["Items"]
	if !ok || strings.TrimSpace(string(itemsRaw)) == "null" {
		return nil, &SchemaMismatchError{Detail: "items array is absent"}
	}
	var itemsProbe []json.RawMessage
	if err := json.Unmarshal(itemsRaw, &itemsProbe); err != nil {
		return nil, &SchemaMismatchError{Detail: "items is not an array"}
	}

	switch documentType {
	case models.DocumentTypeReceipt:
		var receipt ReceiptExtraction
		if err := json.Unmarshal(raw, &receipt); err != nil {
			return nil, &SchemaMismatchError{Detail: err.Error()}
		}
		if receipt.Items == nil {
			receipt.Items = []LineExtraction{}
		}
		receipt.VendorName = strings.TrimSpace(receipt.VendorName)
		receipt.Currency = strings.ToUpper(strings.TrimSpace(receipt.Currency))
		return &ExtractedRecord{Receipt: &receipt}, nil
	default:
		var invoice InvoiceExtraction
		if err := json.Unmarshal(raw, &invoice); err != nil {
			return nil, &SchemaMismatchError{Detail: err.Error()}
		}
		if invoice.Items == nil {
			invoice.Items = []LineExtraction{}
		}
		invoice.CustomerName = strings.TrimSpace(invoice.CustomerName)
		invoice.Currency = strings.ToUpper(strings.TrimSpace(invoice.Currency))
		return &ExtractedRecord{Invoice: &invoice}, nil
	}
}
