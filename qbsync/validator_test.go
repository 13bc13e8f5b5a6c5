package qbsync

import (
	"errors"
	"strings"
	"testing"

	"bitbucket.org/mmdatafocus/docsync_backend/qbo"
)

func TestValidateInvoicePayload_CollectsAllReasons(t *testing.T) {
	payload := &qbo.Invoice{
		Line: []qbo.Line{
			{Amount: 0, DetailType: qbo.DetailTypeDiscountLine, DiscountLineDetail: &qbo.DiscountLineDetail{}},
		},
	}

	err := ValidateInvoicePayload(payload)
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(validation.Reasons) != 2 {
		t.Fatalf("expected 2 reasons, got %d: %v", len(validation.Reasons), validation.Reasons)
	}

	joined := validation.Error()
	if !strings.Contains(joined, "Missing required field: CustomerRef") {
		t.Fatalf("expected CustomerRef reason, got %q", joined)
	}
	if !strings.Contains(joined, "Missing required field: Line") {
		t.Fatalf("expected Line reason, got %q", joined)
	}
}

func TestValidateInvoicePayload_Valid(t *testing.T) {
	payload := &qbo.Invoice{
		CustomerRef: &qbo.RefValue{Value: "77"},
		Line: []qbo.Line{
			{
				Amount:     100,
				DetailType: qbo.DetailTypeSalesItemLine,
				SalesItemLineDetail: &qbo.SalesItemLineDetail{
					Qty:       2,
					UnitPrice: 50,
				},
			},
			{DetailType: qbo.DetailTypeDiscountLine, DiscountLineDetail: &qbo.DiscountLineDetail{}},
		},
	}
	if err := ValidateInvoicePayload(payload); err != nil {
		t.Fatalf("expected valid payload, got %v", err)
	}
}

func TestValidateInvoicePayload_ToleranceIsNotFatal(t *testing.T) {
	cases := []struct {
		name   string
		amount float64
	}{
		{"within tolerance", 30.01},
		{"beyond tolerance warns only", 30.02},
	}
	for _, tc := range cases {
		payload := &qbo.Invoice{
			CustomerRef: &qbo.RefValue{Value: "77"},
			Line: []qbo.Line{
				{
					Amount:     tc.amount,
					DetailType: qbo.DetailTypeSalesItemLine,
					SalesItemLineDetail: &qbo.SalesItemLineDetail{
						Qty:       3,
						UnitPrice: 10,
					},
				},
			},
		}
		if err := ValidateInvoicePayload(payload); err != nil {
			t.Fatalf("%s: amount mismatch must never fail validation, got %v", tc.name, err)
		}
	}
}

func TestValidateInvoicePayload_MissingAmountOnLine(t *testing.T) {
	payload := &qbo.Invoice{
		CustomerRef: &qbo.RefValue{Value: "77"},
		Line: []qbo.Line{
			{DetailType: qbo.DetailTypeSalesItemLine, SalesItemLineDetail: &qbo.SalesItemLineDetail{}},
		},
	}
	err := ValidateInvoicePayload(payload)
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.Contains(validation.Error(), "Missing amount on line 1") {
		t.Fatalf("expected missing amount reason, got %q", validation.Error())
	}
}

func TestValidatePurchasePayload_CollectsAllReasons(t *testing.T) {
	err := ValidatePurchasePayload(&qbo.Purchase{})
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	joined := validation.Error()
	for _, want := range []string{
		"Missing required field: EntityRef",
		"Missing required field: AccountRef",
		"Missing required field: Line",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected %q in %q", want, joined)
		}
	}
}

func TestValidatePurchasePayload_Valid(t *testing.T) {
	payload := &qbo.Purchase{
		EntityRef:  &qbo.RefValue{Value: "88"},
		AccountRef: &qbo.RefValue{Value: "35"},
		Line: []qbo.Line{
			{
				Amount:     30,
				DetailType: qbo.DetailTypeAccountBasedExpenseLine,
				AccountBasedExpenseLineDetail: &qbo.AccountBasedExpenseLineDetail{
					AccountRef: &qbo.RefValue{Value: "80"},
				},
			},
		},
	}
	if err := ValidatePurchasePayload(payload); err != nil {
		t.Fatalf("expected valid payload, got %v", err)
	}
}
