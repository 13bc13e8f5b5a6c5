package utils

import "testing"

func TestExtractObjectKeyFromURL(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"gs://my-bucket/biz-1/documents/scan.pdf", "biz-1/documents/scan.pdf"},
		{"https://storage.googleapis.com/my-bucket/biz-1/documents/scan.pdf", "biz-1/documents/scan.pdf"},
		{"https://my-bucket.storage.googleapis.com/biz-1/documents/scan.pdf", "biz-1/documents/scan.pdf"},
		{"biz-1/documents/scan.pdf", "biz-1/documents/scan.pdf"},
		{"biz-1/../secrets", ""},
		{"", ""},
		{"gs://bucket-only", ""},
	}
	for _, tc := range cases {
		if got := ExtractObjectKeyFromURL(tc.in); got != tc.expected {
			t.Fatalf("ExtractObjectKeyFromURL(%q) expected %q, got %q", tc.in, tc.expected, got)
		}
	}
}

func TestBuildObjectAccessURL_Templates(t *testing.T) {
	t.Setenv("GCS_URL", "")
	t.Setenv("GCS_BUCKET", "")

	t.Setenv("STORAGE_ACCESS_BASE_URL", "https://cdn.example.com/files")
	if got := BuildObjectAccessURL("biz-1/documents/scan.pdf"); got != "https://cdn.example.com/files/biz-1/documents/scan.pdf" {
		t.Fatalf("unexpected URL %q", got)
	}

	t.Setenv("STORAGE_ACCESS_BASE_URL", "https://cdn.example.com/get?key=")
	if got := BuildObjectAccessURL("biz-1/documents/scan.pdf"); got != "https://cdn.example.com/get?key=biz-1%2Fdocuments%2Fscan.pdf" {
		t.Fatalf("unexpected URL %q", got)
	}

	t.Setenv("STORAGE_ACCESS_BASE_URL", "")
	t.Setenv("GCS_URL", "storage.googleapis.com")
	t.Setenv("GCS_BUCKET", "my-bucket")
	if got := BuildObjectAccessURL("biz-1/documents/scan.pdf"); got != "https://storage.googleapis.com/my-bucket/biz-1/documents/scan.pdf" {
		t.Fatalf("unexpected URL %q", got)
	}
}

func TestBuildThenExtractRoundTrip(t *testing.T) {
	t.Setenv("STORAGE_ACCESS_BASE_URL", "")
	t.Setenv("GCS_URL", "storage.googleapis.com")
	t.Setenv("GCS_BUCKET", "my-bucket")

	key := "biz-1/documents/abc123.pdf"
	if got := ExtractObjectKeyFromURL(BuildObjectAccessURL(key)); got != key {
		t.Fatalf("round trip expected %q, got %q", key, got)
	}
}
