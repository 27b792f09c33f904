package output

import (
	"cspAudit/internal/csp"
	"cspAudit/internal/hash"
)

// Result status values
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// PageResult is the audit outcome for one page. A failed page carries
// csp:null, an error message and status "error".
type PageResult struct {
	URL      string        `json:"url"`
	CSP      *string       `json:"csp"`
	Source   string        `json:"source,omitempty"`
	Status   string        `json:"status"`
	Analysis *csp.Analysis `json:"analysis,omitempty"`
	Error    string        `json:"error,omitempty"`

	// Enrichment, present only in CLI output and when the matching flag is set
	Timestamp    string            `json:"timestamp,omitempty"`
	FinalURL     string            `json:"final_url,omitempty"`
	StatusCode   int               `json:"status_code,omitempty"`
	Protocol     string            `json:"protocol,omitempty"`
	Strategy     string            `json:"fetch_strategy,omitempty"`
	Hash         *hash.Fingerprint `json:"hash,omitempty"`
	PolicyHosts  []string          `json:"policy_hosts,omitempty"`
	Technologies []string          `json:"tech,omitempty"`
	CDN          bool              `json:"cdn,omitempty"`
	CDNName      string            `json:"cdn_name,omitempty"`
	StoredPath   string            `json:"stored_response_path,omitempty"`
}

// Success builds the result for a page that was fetched and analyzed.
func Success(url, policy, source string, analysis csp.Analysis) PageResult {
	return PageResult{
		URL:      url,
		CSP:      &policy,
		Source:   source,
		Status:   StatusSuccess,
		Analysis: &analysis,
	}
}

// Failure builds the result for a page that could not be fetched.
func Failure(url, message string) PageResult {
	return PageResult{
		URL:    url,
		Status: StatusError,
		Error:  message,
	}
}

// OK reports whether the page was fetched.
func (r PageResult) OK() bool {
	return r.Status == StatusSuccess
}

// Policy returns the discovered policy text, or "" for failed pages.
func (r PageResult) Policy() string {
	if r.CSP == nil {
		return ""
	}
	return *r.CSP
}
