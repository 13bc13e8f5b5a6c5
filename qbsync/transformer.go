package qbsync

import (
	"os"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/docsync_backend/models"
	"bitbucket.org/mmdatafocus/docsync_backend/qbo"
	"github.com/shopspring/decimal"
)

const (
	defaultCurrency  = "USD"
	docNumberMaxLen  = 20
	dateLayout       = "2006-01-02"
	paymentTypeCash  = "Cash"
	paymentTypeCard  = "CreditCard"
	paymentTypeCheck = "Check"
)

// DeriveLineAmounts resolves one extracted line's numbers. Amount is
// the stated total when present, else quantity times unit price.
// Quantity defaults to 1; a missing unit price collapses to the
// resolved amount, so a total-only line yields qty 1 at that price.
func DeriveLineAmounts(item LineExtraction) (qty, unitPrice, amount decimal.Decimal) {
	qty = decimal.NewFromInt(1)
	if item.Quantity != nil && *item.Quantity > 0 {
		qty = decimal.NewFromFloat(*item.Quantity)
	}

	if item.TotalAmount != nil {
		amount = decimal.NewFromFloat(*item.TotalAmount)
	} else if item.UnitPrice != nil {
		amount = qty.Mul(decimal.NewFromFloat(*item.UnitPrice))
	}

	if item.UnitPrice != nil {
		unitPrice = decimal.NewFromFloat(*item.UnitPrice)
	} else {
		unitPrice = amount
	}
	return qty, unitPrice, amount
}

// TruncateDocNumber keeps the last 20 characters. The platform caps
// the field length; the suffix is the discriminating part of most
// numbering schemes.
func TruncateDocNumber(number string) string {
	number = strings.TrimSpace(number)
	if len(number) <= docNumberMaxLen {
		return number
	}
	return number[len(number)-docNumberMaxLen:]
}

func currencyOrDefault(currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return defaultCurrency
	}
	return currency
}

func formatTxnDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

// ParseExtractionDate tolerates the common formats the extraction
// service emits; unparseable dates come back nil, never an error.
func ParseExtractionDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range []string{dateLayout, "01/02/2006", "2006/01/02", time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}

// NormalizePaymentType maps free-form extracted payment wording onto
// the platform's accepted values. Unknown wording falls back to Cash.
func NormalizePaymentType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "creditcard", "credit card", "credit", "card", "debit", "debit card", "visa", "mastercard", "amex":
		return paymentTypeCard
	case "check", "cheque":
		return paymentTypeCheck
	default:
		return paymentTypeCash
	}
}

func itemRefFromSettings(settings models.IntegrationSettings) *qbo.RefValue {
	itemRef := settings.ItemRef
	if itemRef == "" {
		itemRef = os.Getenv("QBO_DEFAULT_ITEM_REF")
	}
	if itemRef == "" {
		return nil
	}
	return &qbo.RefValue{Value: itemRef}
}

func expenseAccountRefFromSettings(settings models.IntegrationSettings) *qbo.RefValue {
	accountRef := settings.ExpenseAccountRef
	if accountRef == "" {
		accountRef = os.Getenv("QBO_DEFAULT_EXPENSE_ACCOUNT_REF")
	}
	if accountRef == "" {
		return nil
	}
	return &qbo.RefValue{Value: accountRef}
}

func paymentAccountRefFromSettings(settings models.IntegrationSettings) *qbo.RefValue {
	accountRef := settings.PaymentAccountRef
	if accountRef == "" {
		accountRef = os.Getenv("QBO_DEFAULT_PAYMENT_ACCOUNT_REF")
	}
	if accountRef == "" {
		return nil
	}
	return &qbo.RefValue{Value: accountRef}
}

// BuildInvoicePayload transforms the local invoice into the platform
// payload. The customer reference is injected separately once identity
// resolution completes; transformation never waits for it.
func BuildInvoicePayload(invoice *models.Invoice, settings models.IntegrationSettings) *qbo.Invoice {
	itemRef := itemRefFromSettings(settings)

	lines := make([]qbo.Line, 0, len(invoice.Details)+1)
	for _, detail := range invoice.Details {
		lines = append(lines, qbo.Line{
			Amount:      detail.DetailAmount.InexactFloat64(),
			DetailType:  qbo.DetailTypeSalesItemLine,
			Description: detail.Description,
			SalesItemLineDetail: &qbo.SalesItemLineDetail{
				ItemRef:   itemRef,
				Qty:       detail.DetailQty.InexactFloat64(),
				UnitPrice: detail.DetailUnitRate.InexactFloat64(),
			},
		})
	}
	// Trailing discount line is always present, zero when no discount
	// was extracted.
	lines = append(lines, qbo.Line{
		Amount:             invoice.DiscountTotal.InexactFloat64(),
		DetailType:         qbo.DetailTypeDiscountLine,
		DiscountLineDetail: &qbo.DiscountLineDetail{PercentBased: false},
	})

	return &qbo.Invoice{
		DocNumber:   TruncateDocNumber(invoice.InvoiceNumber),
		TxnDate:     formatTxnDate(invoice.InvoiceDate),
		DueDate:     formatTxnDate(invoice.DueDate),
		CurrencyRef: &qbo.RefValue{Value: currencyOrDefault(invoice.Currency)},
		Line:        lines,
		// Tax is computed by the platform; the payload always states 0.
		TxnTaxDetail: &qbo.TxnTaxDetail{TotalTax: 0},
	}
}

// BuildPurchasePayload transforms the local receipt into the platform
// expense payload. The vendor reference is injected separately.
func BuildPurchasePayload(receipt *models.Receipt, settings models.IntegrationSettings) *qbo.Purchase {
	expenseRef := expenseAccountRefFromSettings(settings)

	lines := make([]qbo.Line, 0, len(receipt.Details)+1)
	for _, detail := range receipt.Details {
		lines = append(lines, qbo.Line{
			Amount:      detail.DetailAmount.InexactFloat64(),
			DetailType:  qbo.DetailTypeAccountBasedExpenseLine,
			Description: detail.Description,
			AccountBasedExpenseLineDetail: &qbo.AccountBasedExpenseLineDetail{
				AccountRef: expenseRef,
			},
		})
	}
	lines = append(lines, qbo.Line{
		Amount:             receipt.DiscountTotal.InexactFloat64(),
		DetailType:         qbo.DetailTypeDiscountLine,
		DiscountLineDetail: &qbo.DiscountLineDetail{PercentBased: false},
	})

	return &qbo.Purchase{
		PaymentType: NormalizePaymentType(receipt.PaymentType),
		AccountRef:  paymentAccountRefFromSettings(settings),
		TxnDate:     formatTxnDate(receipt.ReceiptDate),
		DocNumber:   TruncateDocNumber(receipt.ReceiptNumber),
		CurrencyRef: &qbo.RefValue{Value: currencyOrDefault(receipt.Currency)},
		Line:        lines,
	}
}

// SetInvoiceCustomerRef merges the identity-resolution result into the
// transformed payload.
func SetInvoiceCustomerRef(payload *qbo.Invoice, externalId string, displayName string) {
	payload.CustomerRef = &qbo.RefValue{Value: externalId, Name: displayName}
}

// SetPurchaseEntityRef merges the resolved vendor into the payload.
func SetPurchaseEntityRef(payload *qbo.Purchase, externalId string, displayName string) {
	payload.EntityRef = &qbo.RefValue{Value: externalId, Name: displayName}
}
