package qbo

import (
	"errors"
	"testing"
)

func TestFaultFromResponse_ValidationFault(t *testing.T) {
	body := []byte(`{
		"Fault": {
			"type": "ValidationFault",
			"Error": [
				{
					"Message": "Invalid Reference Id",
					"Detail": "Invalid Reference Id : Something you're trying to use has been made inactive.",
					"code": "2500"
				}
			]
		}
	}`)

	err := faultFromResponse(400, body)
	var fault *ValidationFaultError
	if !errors.As(err, &fault) {
		t.Fatalf("expected ValidationFaultError, got %v", err)
	}
	if fault.Detail != "Invalid Reference Id : Something you're trying to use has been made inactive." {
		t.Fatalf("expected verbatim platform detail, got %q", fault.Detail)
	}
}

func TestFaultFromResponse_ValidationFaultDetailFallsBackToMessage(t *testing.T) {
	body := []byte(`{"Fault": {"type": "VALIDATION", "Error": [{"Message": "Required param missing"}]}}`)
	err := faultFromResponse(400, body)
	var fault *ValidationFaultError
	if !errors.As(err, &fault) {
		t.Fatalf("expected ValidationFaultError, got %v", err)
	}
	if fault.Detail != "Required param missing" {
		t.Fatalf("expected message fallback, got %q", fault.Detail)
	}
}

func TestFaultFromResponse_AuthFaultIsTransport(t *testing.T) {
	body := []byte(`{"Fault": {"type": "AUTHENTICATION", "Error": [{"Message": "Token expired", "Detail": "AuthenticationFailed", "code": "3200"}]}}`)
	err := faultFromResponse(401, body)
	var transport *TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if transport.StatusCode != 401 || transport.Message != "AuthenticationFailed" {
		t.Fatalf("unexpected transport error: %+v", transport)
	}
}

func TestFaultFromResponse_UnparseableBody(t *testing.T) {
	err := faultFromResponse(502, []byte("  <html>Bad Gateway</html>\n"))
	var transport *TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if transport.StatusCode != 502 || transport.Message != "<html>Bad Gateway</html>" {
		t.Fatalf("unexpected transport error: %+v", transport)
	}
}
