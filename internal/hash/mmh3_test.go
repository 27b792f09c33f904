package hash

import (
	"net/http"
	"testing"
)

func TestCalculateMMH3(t *testing.T) {
	if CalculateMMH3([]byte("hello")) != CalculateMMH3([]byte("hello")) {
		t.Error("same data produced different hashes")
	}
	if CalculateMMH3([]byte("hello")) == CalculateMMH3([]byte("world")) {
		t.Error("different data should produce different hashes")
	}
	if got := CalculateMMH3(nil); got != "0" {
		t.Errorf("murmur3 of empty input = %q, want 0", got)
	}
	for _, c := range CalculateMMH3([]byte("test")) {
		if c < '0' || c > '9' {
			t.Fatalf("hash contains non-digit %q", c)
		}
	}
}

func TestCalculateHeaderMMH3_OrderIndependent(t *testing.T) {
	h1 := CalculateHeaderMMH3(http.Header{"A-Header": {"1"}, "B-Header": {"2"}})
	h2 := CalculateHeaderMMH3(http.Header{"B-Header": {"2"}, "A-Header": {"1"}})
	if h1 != h2 {
		t.Errorf("header order should not affect hash: %q vs %q", h1, h2)
	}
	if h1 == CalculateHeaderMMH3(http.Header{"A-Header": {"1"}}) {
		t.Error("different headers should produce different hashes")
	}
}

func TestCalculatePolicyMMH3(t *testing.T) {
	a := CalculatePolicyMMH3("default-src 'self';  script-src https://a.com")
	b := CalculatePolicyMMH3("default-src 'self'; script-src\thttps://a.com ")
	if a == "" || a != b {
		t.Errorf("whitespace variants should hash equal: %q vs %q", a, b)
	}
	if CalculatePolicyMMH3("   ") != "" {
		t.Error("blank policy should have no fingerprint")
	}
}

func TestNew(t *testing.T) {
	fp := New(http.Header{"Server": {"nginx"}}, []byte("<html></html>"))
	if fp.BodyMMH3 == "" || fp.HeaderMMH3 == "" {
		t.Errorf("incomplete fingerprint: %+v", fp)
	}
	if fp.PolicyMMH3 != "" {
		t.Error("policy fingerprint is filled by the caller")
	}
}
