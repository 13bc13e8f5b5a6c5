package qbsync

import (
	"encoding/json"
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/docsync_backend/models"
)

func TestNormalize_InvoiceVariant(t *testing.T) {
	raw := json.RawMessage(`{
		"CustomerName": "  Acme Corp  ",
		"InvoiceNumber": "INV-001",
		"Currency": "usd",
		"TotalAmount": 100,
		"Items": [
			{"Description": "Widget", "Quantity": 2, "UnitPrice": 50}
		]
	}`)

	record, err := Normalize(raw, models.DocumentTypeInvoice)
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if record.Invoice == nil || record.Receipt != nil {
		t.Fatalf("expected invoice variant, got %+v", record)
	}
	if record.Invoice.CustomerName != "Acme Corp" {
		t.Fatalf("expected trimmed customer name, got %q", record.Invoice.CustomerName)
	}
	if record.Invoice.Currency != "USD" {
		t.Fatalf("expected uppercased currency, got %q", record.Invoice.Currency)
	}
	if len(record.Invoice.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(record.Invoice.Items))
	}
	item := record.Invoice.Items[0]
	if item.Quantity == nil || *item.Quantity != 2 || item.UnitPrice == nil || *item.UnitPrice != 50 {
		t.Fatalf("unexpected item values: %+v", item)
	}
	if item.TotalAmount != nil {
		t.Fatalf("absent TotalAmount must stay nil, got %v", *item.TotalAmount)
	}
}

func TestNormalize_ReceiptVariant(t *testing.T) {
	raw := json.RawMessage(`{
		"VendorName": "Office Depot",
		"PaymentType": "visa",
		"Items": []
	}`)

	record, err := Normalize(raw, models.DocumentTypeReceipt)
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if record.Receipt == nil || record.Invoice != nil {
		t.Fatalf("expected receipt variant, got %+v", record)
	}
	if record.Receipt.VendorName != "Office Depot" {
		t.Fatalf("unexpected vendor name %q", record.Receipt.VendorName)
	}
	if len(record.Receipt.Items) != 0 {
		t.Fatalf("expected empty item list, got %d", len(record.Receipt.Items))
	}
}

func TestNormalize_EmptyItemsIsNotMismatch(t *testing.T) {
	record, err := Normalize(json.RawMessage(`{"Items": []}`), models.DocumentTypeInvoice)
	if err != nil {
		t.Fatalf("empty items array must pass normalization, got %v", err)
	}
	if record.Invoice.Items == nil || len(record.Invoice.Items) != 0 {
		t.Fatalf("expected non-nil empty items, got %v", record.Invoice.Items)
	}
}

func TestNormalize_MissingOptionalFieldsTolerated(t *testing.T) {
	record, err := Normalize(json.RawMessage(`{"Items": [{"Description": "thing"}]}`), models.DocumentTypeInvoice)
	if err != nil {
		t.Fatalf("missing optional fields must not fail normalization, got %v", err)
	}
	if record.Invoice.CustomerName != "" || record.Invoice.TotalAmount != nil {
		t.Fatalf("unexpected defaults: %+v", record.Invoice)
	}
}

func TestNormalize_SchemaMismatch(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"items key absent", `{"CustomerName": "Acme"}`},
		{"items null", `{"Items": null}`},
		{"items not an array", `{"Items": {"Description": "x"}}`},
		{"payload not an object", `[1, 2, 3]`},
	}
	for _, tc := range cases {
		_, err := Normalize(json.RawMessage(tc.raw), models.DocumentTypeInvoice)
		var mismatch *SchemaMismatchError
		if !errors.As(err, &mismatch) {
			t.Fatalf("%s: expected SchemaMismatchError, got %v", tc.name, err)
		}
	}
}
