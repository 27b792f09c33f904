package storage

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// PageFilename is SHA1(url) in hex, so the same page always lands in the same file.
func PageFilename(pageURL string) string {
	sum := sha1.Sum([]byte(pageURL))
	return hex.EncodeToString(sum[:])
}

// SanitizeHost makes a host safe for use as a directory name
// (example.com:8080 -> example.com_8080).
func SanitizeHost(host string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		}
		return '_'
	}, host)
}

// PagePath returns {baseDir}/pages/{host}/{sha1}.txt.
func PagePath(baseDir string, u *url.URL) string {
	return filepath.Join(baseDir, "pages", SanitizeHost(u.Host), PageFilename(u.String())+".txt")
}

// StorePage writes a fetched page (status, headers, detected policy and body)
// below baseDir and returns the file path.
func StorePage(baseDir string, u *url.URL, status string, headers http.Header, policy, policySource string, body []byte) (string, error) {
	path := PagePath(baseDir, u)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create storage directory: %w", err)
	}
	data := FormatPage(u.String(), status, headers, policy, policySource, body)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write page: %w", err)
	}
	return path, nil
}

// FormatPage renders the stored page file.
func FormatPage(pageURL, status string, headers http.Header, policy, policySource string, body []byte) []byte {
	var b strings.Builder

	b.WriteString("=== URL ===\n")
	b.WriteString(pageURL)
	b.WriteString("\n\n=== STATUS ===\n")
	b.WriteString(status)
	b.WriteString("\n\n=== RESPONSE HEADERS ===\n")

	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range headers[k] {
			fmt.Fprintf(&b, "%s: %s\n", k, v)
		}
	}

	b.WriteString("\n=== CONTENT SECURITY POLICY ===\n")
	fmt.Fprintf(&b, "[%s] %s\n", policySource, policy)

	b.WriteString("\n=== RESPONSE BODY ===\n")
	b.Write(body)
	return []byte(b.String())
}

// WriteExport writes an export file into dir, creating it if needed.
func WriteExport(dir, filename string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	return path, nil
}
