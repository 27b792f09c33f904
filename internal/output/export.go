package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"cspAudit/internal/csp"
)

// csvHeader is the first row of the CSV export.
var csvHeader = []string{"URL", "CSP Source", "Content Security Policy", "Error", "Status"}

// Metadata describes an exported run.
type Metadata struct {
	Timestamp string `json:"timestamp"`
	TotalURLs int    `json:"totalUrls"`
	Domain    string `json:"domain"`
}

// Report is the JSON export of a run.
type Report struct {
	Metadata        Metadata                `json:"metadata"`
	Results         []PageResult            `json:"results,omitempty"`
	ConsolidatedCSP *csp.ConsolidatedPolicy `json:"consolidatedCSP"`
}

// Domain returns the hostname of the run's first URL, or "unknown".
func Domain(urls []string) string {
	if len(urls) == 0 {
		return "unknown"
	}
	u, err := url.Parse(urls[0])
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return u.Hostname()
}

// FileTimestamp formats t as an ISO-8601 UTC timestamp safe for filenames:
// "2024-05-01T12-30-45".
func FileTimestamp(t time.Time) string {
	ts := t.UTC().Format("2006-01-02T15:04:05.000Z")
	ts = strings.NewReplacer(":", "-", ".", "-").Replace(ts)
	return ts[:19]
}

// ExportFilename returns "<prefix>-<domain>-<timestamp>.<ext>".
func ExportFilename(prefix, domain string, t time.Time, ext string) string {
	return fmt.Sprintf("%s-%s-%s.%s", prefix, domain, FileTimestamp(t), ext)
}

// CSV renders results as CSV. Every field is quoted, embedded quotes are
// doubled, absent values are written as N/A and rows end with \n except the last.
func CSV(results []PageResult) []byte {
	rows := make([]string, 0, len(results)+1)
	rows = append(rows, strings.Join(csvHeader, ","))
	for _, r := range results {
		fields := []string{
			r.URL,
			orNA(r.Source),
			orNA(r.Policy()),
			orNA(r.Error),
			orNA(r.Status),
		}
		for i, f := range fields {
			fields[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
		}
		rows = append(rows, strings.Join(fields, ","))
	}
	return []byte(strings.Join(rows, "\n"))
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// JSON renders the full report indented by two spaces.
func JSON(meta Metadata, results []PageResult, consolidated csp.ConsolidatedPolicy) ([]byte, error) {
	if results == nil {
		results = []PageResult{}
	}
	return marshalIndent(Report{
		Metadata:        meta,
		Results:         results,
		ConsolidatedCSP: &consolidated,
	})
}

// ConsolidatedJSON renders only the metadata and consolidated policy.
func ConsolidatedJSON(meta Metadata, consolidated csp.ConsolidatedPolicy) ([]byte, error) {
	return marshalIndent(Report{
		Metadata:        meta,
		ConsolidatedCSP: &consolidated,
	})
}

func marshalIndent(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// NewMetadata builds export metadata for a run started with urls.
func NewMetadata(urls []string, now time.Time) Metadata {
	return Metadata{
		Timestamp: now.UTC().Format("2006-01-02T15:04:05.000Z"),
		TotalURLs: len(urls),
		Domain:    Domain(urls),
	}
}
