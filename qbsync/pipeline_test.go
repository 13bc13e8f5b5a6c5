package qbsync

import (
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/docsync_backend/models"
	"bitbucket.org/mmdatafocus/docsync_backend/qbo"
)

func TestStatusTable(t *testing.T) {
	cases := []struct {
		documentType models.DocumentType
		outcome      syncOutcome
		expected     models.DocumentStatus
	}{
		{models.DocumentTypeInvoice, outcomeSuccess, models.DocumentStatusProcessed},
		{models.DocumentTypeInvoice, outcomeInvalid, models.DocumentStatusValidationError},
		{models.DocumentTypeInvoice, outcomeError, models.DocumentStatusError},
		{models.DocumentTypeReceipt, outcomeSuccess, models.DocumentStatusReady},
		{models.DocumentTypeReceipt, outcomeInvalid, models.DocumentStatusMissingData},
		{models.DocumentTypeReceipt, outcomeError, models.DocumentStatusError},
	}
	for _, tc := range cases {
		got, ok := statusTable[tc.documentType][tc.outcome]
		if !ok {
			t.Fatalf("no status defined for %s/%d", tc.documentType, tc.outcome)
		}
		if got != tc.expected {
			t.Fatalf("status for %s/%d expected %s, got %s", tc.documentType, tc.outcome, tc.expected, got)
		}
	}
}

func TestTerminalStatus_UnknownTypeNeverUndefined(t *testing.T) {
	for _, outcome := range []syncOutcome{outcomeSuccess, outcomeInvalid, outcomeError} {
		if got := terminalStatus(models.DocumentType("statement"), outcome); got != models.DocumentStatusError {
			t.Fatalf("unknown document type with outcome %d must land on error, got %q", outcome, got)
		}
	}
	if got := terminalStatus(models.DocumentTypeInvoice, outcomeSuccess); got != models.DocumentStatusProcessed {
		t.Fatalf("known type must keep its table entry, got %q", got)
	}
}

func TestClassifyOutcome(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		expected syncOutcome
	}{
		{"nil", nil, outcomeSuccess},
		{"local validation", &ValidationError{Reasons: []string{"Missing required field: Line"}}, outcomeInvalid},
		{"platform rejection", &qbo.ValidationFaultError{Detail: "Invalid Reference Id"}, outcomeInvalid},
		{"transport", &qbo.TransportError{StatusCode: 502, Message: "bad gateway"}, outcomeError},
		{"schema mismatch", &SchemaMismatchError{Detail: "items array is absent"}, outcomeError},
		{"anything else", errors.New("boom"), outcomeError},
	}
	for _, tc := range cases {
		if got := classifyOutcome(tc.err); got != tc.expected {
			t.Fatalf("%s: expected outcome %d, got %d", tc.name, tc.expected, got)
		}
	}
}

func TestStatusMessage_FaultDetailVerbatim(t *testing.T) {
	err := &qbo.ValidationFaultError{Detail: "Duplicate Document Number Error: You must specify a different number."}
	if got := statusMessage(err); got != "Duplicate Document Number Error: You must specify a different number." {
		t.Fatalf("expected fault detail verbatim, got %q", got)
	}
	if got := statusMessage(errors.New("dial tcp: timeout")); got != "dial tcp: timeout" {
		t.Fatalf("expected plain message, got %q", got)
	}
	if got := statusMessage(nil); got != "" {
		t.Fatalf("expected empty message for nil error, got %q", got)
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		expected bool
	}{
		{"local validation", &ValidationError{Reasons: []string{"x"}}, false},
		{"platform rejection", &qbo.ValidationFaultError{Detail: "x"}, false},
		{"schema mismatch", &SchemaMismatchError{Detail: "x"}, false},
		{"mapping barrier", &MappingNotFoundError{EntityType: models.EntityTypeCustomer, InternalId: 7}, false},
		{"integration missing", ErrIntegrationMissing, false},
		{"transport", &qbo.TransportError{StatusCode: 500, Message: "x"}, true},
		{"unknown", errors.New("boom"), true},
	}
	for _, tc := range cases {
		if got := isRetryable(tc.err); got != tc.expected {
			t.Fatalf("%s: expected retryable=%v, got %v", tc.name, tc.expected, got)
		}
	}
}

func TestDecimalFromPtr(t *testing.T) {
	if !decimalFromPtr(nil).IsZero() {
		t.Fatalf("nil pointer must map to zero")
	}
	v := 12.5
	if got := decimalFromPtr(&v); got.String() != "12.5" {
		t.Fatalf("expected 12.5, got %s", got.String())
	}
}
