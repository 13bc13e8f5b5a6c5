package qbsync

import (
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/docsync_backend/config"
	"bitbucket.org/mmdatafocus/docsync_backend/qbo"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const defaultAmountTolerance = "0.01"

// amountTolerance is the allowed gap between a line's declared amount
// and quantity times unit price. Configurable because extraction noise
// varies by document quality.
func amountTolerance() decimal.Decimal {
	raw := os.Getenv("SYNC_AMOUNT_TOLERANCE")
	if raw == "" {
		raw = defaultAmountTolerance
	}
	tolerance, err := decimal.NewFromString(raw)
	if err != nil || tolerance.IsNegative() {
		tolerance, _ = decimal.NewFromString(defaultAmountTolerance)
	}
	return tolerance
}

func missingField(field string) string {
	return "Missing required field: " + field
}

// checkLineArithmetic warns when declared and computed amounts drift
// beyond tolerance. Never a failure; extraction rounding noise is
// tolerated rather than blocking submission.
func checkLineArithmetic(lineIndex int, qty, unitPrice, amount float64) {
	computed := decimal.NewFromFloat(qty).Mul(decimal.NewFromFloat(unitPrice))
	declared := decimal.NewFromFloat(amount)
	delta := computed.Sub(declared).Abs()
	if delta.GreaterThan(amountTolerance()) {
		config.GetLogger().WithFields(logrus.Fields{
			"line":     lineIndex + 1,
			"declared": declared.String(),
			"computed": computed.String(),
			"delta":    delta.String(),
		}).Warn("line amount differs from quantity times unit price")
	}
}

// ValidateInvoicePayload checks the transformed invoice before any
// external write. All violations are collected; the caller gets every
// reason at once.
func ValidateInvoicePayload(payload *qbo.Invoice) error {
	var reasons []string

	if payload.CustomerRef == nil || payload.CustomerRef.Value == "" {
		reasons = append(reasons, missingField("CustomerRef"))
	}

	salesLines := 0
	for i, line := range payload.Line {
		if line.SalesItemLineDetail == nil {
			continue
		}
		salesLines++
		if line.Amount == 0 && line.SalesItemLineDetail.Qty*line.SalesItemLineDetail.UnitPrice == 0 {
			reasons = append(reasons, fmt.Sprintf("Missing amount on line %d", i+1))
			continue
		}
		checkLineArithmetic(i, line.SalesItemLineDetail.Qty, line.SalesItemLineDetail.UnitPrice, line.Amount)
	}
	if salesLines == 0 {
		reasons = append(reasons, missingField("Line"))
	}

	if len(reasons) > 0 {
		return &ValidationError{Reasons: reasons}
	}
	return nil
}

// ValidatePurchasePayload checks the transformed expense before any
// external write, with the same collect-everything policy.
func ValidatePurchasePayload(payload *qbo.Purchase) error {
	var reasons []string

	if payload.EntityRef == nil || payload.EntityRef.Value == "" {
		reasons = append(reasons, missingField("EntityRef"))
	}
	if payload.AccountRef == nil || payload.AccountRef.Value == "" {
		reasons = append(reasons, missingField("AccountRef"))
	}

	expenseLines := 0
	for i, line := range payload.Line {
		if line.AccountBasedExpenseLineDetail == nil {
			continue
		}
		expenseLines++
		if line.AccountBasedExpenseLineDetail.AccountRef == nil || line.AccountBasedExpenseLineDetail.AccountRef.Value == "" {
			reasons = append(reasons, fmt.Sprintf("Missing expense account on line %d", i+1))
		}
		if line.Amount == 0 {
			reasons = append(reasons, fmt.Sprintf("Missing amount on line %d", i+1))
		}
	}
	if expenseLines == 0 {
		reasons = append(reasons, missingField("Line"))
	}

	if len(reasons) > 0 {
		return &ValidationError{Reasons: reasons}
	}
	return nil
}
