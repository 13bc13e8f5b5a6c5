package qbo

import "testing"

func TestEscapeQueryValue(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"Acme Corp", "Acme Corp"},
		{"O'Brien Ltd", `O\'Brien Ltd`},
		{`Back\slash`, `Back\\slash`},
		{`Both\'s`, `Both\\\'s`},
	}
	for _, tc := range cases {
		if got := escapeQueryValue(tc.in); got != tc.expected {
			t.Fatalf("escapeQueryValue(%q) expected %q, got %q", tc.in, tc.expected, got)
		}
	}
}

func TestBuildSelectByName(t *testing.T) {
	got := BuildSelectByName("Customer", "Acme Corp", 1, 1)
	expected := "SELECT * FROM Customer WHERE DisplayName = 'Acme Corp' STARTPOSITION 1 MAXRESULTS 1"
	if got != expected {
		t.Fatalf("expected %q, got %q", expected, got)
	}

	got = BuildSelectByName("Vendor", "O'Brien Ltd", 0, 0)
	expected = `SELECT * FROM Vendor WHERE DisplayName = 'O\'Brien Ltd' STARTPOSITION 1 MAXRESULTS 1`
	if got != expected {
		t.Fatalf("expected %q, got %q", expected, got)
	}
}
