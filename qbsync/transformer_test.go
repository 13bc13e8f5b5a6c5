package qbsync

import (
	"testing"

	"bitbucket.org/mmdatafocus/docsync_backend/models"
	"github.com/shopspring/decimal"
)

func floatPtr(v float64) *float64 { return &v }

func TestDeriveLineAmounts_QuantityTimesUnitPrice(t *testing.T) {
	qty, unitPrice, amount := DeriveLineAmounts(LineExtraction{
		Quantity:  floatPtr(2),
		UnitPrice: floatPtr(50),
	})
	if !amount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected amount 100, got %s", amount.String())
	}
	if !qty.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("expected qty 2, got %s", qty.String())
	}
	if !unitPrice.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected unit price 50, got %s", unitPrice.String())
	}
}

func TestDeriveLineAmounts_TotalOnly(t *testing.T) {
	qty, unitPrice, amount := DeriveLineAmounts(LineExtraction{
		TotalAmount: floatPtr(75),
	})
	if !amount.Equal(decimal.NewFromInt(75)) {
		t.Fatalf("expected amount 75, got %s", amount.String())
	}
	if !unitPrice.Equal(decimal.NewFromInt(75)) {
		t.Fatalf("expected unit price to collapse to 75, got %s", unitPrice.String())
	}
	if !qty.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected qty to default to 1, got %s", qty.String())
	}
}

func TestDeriveLineAmounts_StatedTotalWins(t *testing.T) {
	_, _, amount := DeriveLineAmounts(LineExtraction{
		Quantity:    floatPtr(3),
		UnitPrice:   floatPtr(10),
		TotalAmount: floatPtr(28.5),
	})
	if !amount.Equal(decimal.NewFromFloat(28.5)) {
		t.Fatalf("expected stated total 28.5 to win, got %s", amount.String())
	}
}

func TestTruncateDocNumber(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"INV-001", "INV-001"},
		{"1234567890123456789012345", "67890123456789012345"},
		{"  INV-002  ", "INV-002"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := TruncateDocNumber(tc.in); got != tc.expected {
			t.Fatalf("TruncateDocNumber(%q) expected %q, got %q", tc.in, tc.expected, got)
		}
	}
}

func TestNormalizePaymentType(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"VISA", "CreditCard"},
		{"credit card", "CreditCard"},
		{"cheque", "Check"},
		{"cash", "Cash"},
		{"", "Cash"},
		{"something weird", "Cash"},
	}
	for _, tc := range cases {
		if got := NormalizePaymentType(tc.in); got != tc.expected {
			t.Fatalf("NormalizePaymentType(%q) expected %q, got %q", tc.in, tc.expected, got)
		}
	}
}

func TestBuildInvoicePayload(t *testing.T) {
	invoice := &models.Invoice{
		InvoiceNumber: "1234567890123456789012345",
		DiscountTotal: decimal.NewFromInt(5),
		Details: []*models.InvoiceDetail{
			{
				Description:    "Widget",
				DetailQty:      decimal.NewFromInt(2),
				DetailUnitRate: decimal.NewFromInt(50),
				DetailAmount:   decimal.NewFromInt(100),
			},
		},
	}

	payload := BuildInvoicePayload(invoice, models.IntegrationSettings{ItemRef: "42"})

	if payload.DocNumber != "67890123456789012345" {
		t.Fatalf("expected truncated doc number, got %q", payload.DocNumber)
	}
	if payload.CurrencyRef == nil || payload.CurrencyRef.Value != "USD" {
		t.Fatalf("expected currency to default to USD, got %+v", payload.CurrencyRef)
	}
	if payload.TxnTaxDetail == nil || payload.TxnTaxDetail.TotalTax != 0 {
		t.Fatalf("expected tax total 0, got %+v", payload.TxnTaxDetail)
	}
	if payload.CustomerRef != nil {
		t.Fatalf("customer ref must not be set by transformation, got %+v", payload.CustomerRef)
	}
	if len(payload.Line) != 2 {
		t.Fatalf("expected 1 sales line + trailing discount line, got %d lines", len(payload.Line))
	}

	sales := payload.Line[0]
	if sales.SalesItemLineDetail == nil {
		t.Fatalf("expected first line to be a sales line")
	}
	if sales.Amount != 100 || sales.SalesItemLineDetail.Qty != 2 || sales.SalesItemLineDetail.UnitPrice != 50 {
		t.Fatalf("unexpected sales line values: %+v", sales)
	}
	if sales.SalesItemLineDetail.ItemRef == nil || sales.SalesItemLineDetail.ItemRef.Value != "42" {
		t.Fatalf("expected item ref from settings, got %+v", sales.SalesItemLineDetail.ItemRef)
	}

	discount := payload.Line[len(payload.Line)-1]
	if discount.DiscountLineDetail == nil {
		t.Fatalf("expected trailing discount line")
	}
	if discount.DiscountLineDetail.PercentBased {
		t.Fatalf("discount line must not be percent based")
	}
	if discount.Amount != 5 {
		t.Fatalf("expected discount amount 5, got %v", discount.Amount)
	}
}

func TestBuildInvoicePayload_ZeroDiscountStillAppended(t *testing.T) {
	payload := BuildInvoicePayload(&models.Invoice{}, models.IntegrationSettings{})
	if len(payload.Line) != 1 {
		t.Fatalf("expected exactly the discount line, got %d lines", len(payload.Line))
	}
	if payload.Line[0].DiscountLineDetail == nil || payload.Line[0].Amount != 0 {
		t.Fatalf("expected zero discount line, got %+v", payload.Line[0])
	}
}

func TestBuildPurchasePayload(t *testing.T) {
	receipt := &models.Receipt{
		ReceiptNumber: "RCPT-9",
		PaymentType:   "visa",
		Currency:      "eur",
		DiscountTotal: decimal.NewFromInt(2),
		Details: []*models.ReceiptDetail{
			{
				Description:    "Lunch",
				DetailQty:      decimal.NewFromInt(1),
				DetailUnitRate: decimal.NewFromInt(30),
				DetailAmount:   decimal.NewFromInt(30),
			},
		},
	}

	payload := BuildPurchasePayload(receipt, models.IntegrationSettings{
		ExpenseAccountRef: "80",
		PaymentAccountRef: "35",
	})

	if payload.PaymentType != "CreditCard" {
		t.Fatalf("expected payment type CreditCard, got %q", payload.PaymentType)
	}
	if payload.CurrencyRef == nil || payload.CurrencyRef.Value != "EUR" {
		t.Fatalf("expected currency EUR, got %+v", payload.CurrencyRef)
	}
	if payload.AccountRef == nil || payload.AccountRef.Value != "35" {
		t.Fatalf("expected payment account ref 35, got %+v", payload.AccountRef)
	}
	if payload.EntityRef != nil {
		t.Fatalf("entity ref must not be set by transformation")
	}
	if len(payload.Line) != 2 {
		t.Fatalf("expected 1 expense line + trailing discount line, got %d", len(payload.Line))
	}
	expense := payload.Line[0]
	if expense.AccountBasedExpenseLineDetail == nil ||
		expense.AccountBasedExpenseLineDetail.AccountRef == nil ||
		expense.AccountBasedExpenseLineDetail.AccountRef.Value != "80" {
		t.Fatalf("expected expense account ref 80, got %+v", expense.AccountBasedExpenseLineDetail)
	}
}

func TestParseExtractionDate(t *testing.T) {
	if got := ParseExtractionDate("2026-03-15"); got == nil || got.Year() != 2026 || got.Month() != 3 || got.Day() != 15 {
		t.Fatalf("expected 2026-03-15 to parse, got %v", got)
	}
	if got := ParseExtractionDate("03/15/2026"); got == nil || got.Month() != 3 {
		t.Fatalf("expected US format to parse, got %v", got)
	}
	if got := ParseExtractionDate("not a date"); got != nil {
		t.Fatalf("expected unparseable date to yield nil, got %v", got)
	}
	if got := ParseExtractionDate(""); got != nil {
		t.Fatalf("expected empty date to yield nil, got %v", got)
	}
}

func TestSetRefs(t *testing.T) {
	invoice := BuildInvoicePayload(&models.Invoice{}, models.IntegrationSettings{})
	SetInvoiceCustomerRef(invoice, "77", "Acme Corp")
	if invoice.CustomerRef == nil || invoice.CustomerRef.Value != "77" || invoice.CustomerRef.Name != "Acme Corp" {
		t.Fatalf("unexpected customer ref: %+v", invoice.CustomerRef)
	}

	purchase := BuildPurchasePayload(&models.Receipt{}, models.IntegrationSettings{})
	SetPurchaseEntityRef(purchase, "88", "Office Depot")
	if purchase.EntityRef == nil || purchase.EntityRef.Value != "88" {
		t.Fatalf("unexpected entity ref: %+v", purchase.EntityRef)
	}
}
