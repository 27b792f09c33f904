package parser

import (
	"reflect"
	"strings"
	"testing"
)

func TestIsValidURL(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"https://x.com/a", true},
		{"http://x.com", true},
		{"mailto:someone@example.com", true},
		{"not a url", false},
		{"", false},
		{"https://", false},
		{"/relative/path", false},
		{"://missing-scheme", false},
	}
	for _, tt := range tests {
		if got := IsValidURL(tt.in); got != tt.want {
			t.Errorf("IsValidURL(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeInput(t *testing.T) {
	tests := []struct{ in, want string }{
		{"example.com", "https://example.com"},
		{"  example.com/path ", "https://example.com/path"},
		{"http://example.com", "http://example.com"},
		{"https://example.com", "https://example.com"},
	}
	for _, tt := range tests {
		if got := NormalizeInput(tt.in); got != tt.want {
			t.Errorf("NormalizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		allowPrivate bool
		wantErr      bool
	}{
		{"valid https", "https://example.com/page", false, false},
		{"valid with port", "http://example.com:8080", false, false},
		{"ftp refused", "ftp://example.com", false, true},
		{"no host", "https:///path", false, true},
		{"localhost refused", "http://localhost", false, true},
		{"localhost allowed", "http://localhost:3000", true, false},
		{"loopback refused", "http://127.0.0.1", false, true},
		{"private refused", "http://192.168.1.10", false, true},
		{"private allowed", "http://10.0.0.1", true, false},
		{"too long", "https://example.com/" + strings.Repeat("a", 2049), false, true},
		{"null byte", "https://example.com/\x00", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.input, tt.allowPrivate)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestSplitURLList(t *testing.T) {
	got := SplitURLList("https://a.com/x.js, https://b.com/y.css\n\n  https://c.com ,\r\n")
	want := []string{"https://a.com/x.js", "https://b.com/y.css", "https://c.com"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitURLList() = %v, want %v", got, want)
	}
}

func TestReadURLs(t *testing.T) {
	input := "# pages to audit\nhttps://a.com\n\n  https://b.com  \n#https://skipped.com\n"
	got, err := ReadURLs(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"https://a.com", "https://b.com"}) {
		t.Errorf("ReadURLs() = %v", got)
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct{ in, want string }{
		{"http://example.com:80/a", "http://example.com/a"},
		{"https://example.com:443", "https://example.com"},
		{"https://example.com:8443", "https://example.com:8443"},
		{"http://example.com:443", "http://example.com:443"},
	}
	for _, tt := range tests {
		if got := NormalizeURL(tt.in); got != tt.want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDeduplicateURLs(t *testing.T) {
	got := DeduplicateURLs([]string{
		"https://example.com",
		"https://example.com:443",
		"http://example.com",
		"https://example.com/about",
	})
	want := []string{"https://example.com", "http://example.com", "https://example.com/about"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DeduplicateURLs() = %v, want %v", got, want)
	}
}

func TestExcludeFilter(t *testing.T) {
	f, err := NewExcludeFilter("*/wp-admin/*, *.pdf")
	if err != nil {
		t.Fatalf("NewExcludeFilter: %v", err)
	}
	urls := []string{
		"https://a.com/",
		"https://a.com/wp-admin/index.php",
		"https://a.com/files/report.pdf",
		"https://a.com/blog",
	}
	got := f.Filter(urls)
	want := []string{"https://a.com/", "https://a.com/blog"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Filter() = %v, want %v", got, want)
	}
}

func TestExcludeFilter_Empty(t *testing.T) {
	f, err := NewExcludeFilter("")
	if err != nil {
		t.Fatal(err)
	}
	if f.Excluded("https://anything.com") {
		t.Error("empty filter should exclude nothing")
	}
	var nilFilter *ExcludeFilter
	if nilFilter.Excluded("https://anything.com") {
		t.Error("nil filter should exclude nothing")
	}
}

func TestNewExcludeFilter_Invalid(t *testing.T) {
	if _, err := NewExcludeFilter("[unclosed"); err == nil {
		t.Error("expected error for invalid pattern")
	}
}
