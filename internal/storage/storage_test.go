package storage

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPageFilename(t *testing.T) {
	a := PageFilename("https://example.com")
	if len(a) != 40 {
		t.Errorf("filename %q is not a sha1 hex digest", a)
	}
	if a == PageFilename("https://example.com/path") {
		t.Error("different URLs should produce different filenames")
	}
	if a != PageFilename("https://example.com") {
		t.Error("same URL should produce the same filename")
	}
}

func TestSanitizeHost(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"example.com", "example.com"},
		{"example.com:8080", "example.com_8080"},
		{"[::1]:443", "___1__443"},
		{"sub-domain.example_site.com", "sub-domain.example_site.com"},
	}
	for _, tt := range tests {
		if got := SanitizeHost(tt.in); got != tt.want {
			t.Errorf("SanitizeHost(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStorePage(t *testing.T) {
	dir := t.TempDir()
	u, _ := url.Parse("https://example.com:8443/about")

	path, err := StorePage(dir, u, "200 OK",
		http.Header{"Content-Security-Policy": {"default-src 'self'"}},
		"default-src 'self'", "header", []byte("<html></html>"))
	if err != nil {
		t.Fatalf("StorePage: %v", err)
	}

	wantPrefix := filepath.Join(dir, "pages", "example.com_8443")
	if !strings.HasPrefix(path, wantPrefix) {
		t.Errorf("path = %q, want prefix %q", path, wantPrefix)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read stored page: %v", err)
	}
	content := string(data)
	for _, want := range []string{
		"=== URL ===\nhttps://example.com:8443/about",
		"Content-Security-Policy: default-src 'self'",
		"[header] default-src 'self'",
		"=== RESPONSE BODY ===\n<html></html>",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("stored page missing %q", want)
		}
	}
}

func TestWriteExport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	path, err := WriteExport(dir, "report.csv", []byte("a,b"))
	if err != nil {
		t.Fatalf("WriteExport: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "a,b" {
		t.Errorf("export content = %q", data)
	}
}
