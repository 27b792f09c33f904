// Package session tracks one audit run: the URLs to visit, the results
// gathered so far and where the run currently stands.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"cspAudit/internal/csp"
	"cspAudit/internal/output"
)

// NoCSP is the policy text reported for pages without a policy.
const NoCSP = "No CSP found"

// Run is one audit run over a list of URLs.
type Run struct {
	mu           sync.Mutex
	ID           string
	URLs         []string
	Results      []output.PageResult
	CurrentIndex int
	TotalURLs    int
	StartTime    time.Time
}

// Progress is a snapshot of a run.
type Progress struct {
	ID        string        `json:"id"`
	Completed int           `json:"completed"`
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Elapsed   time.Duration `json:"elapsed"`
}

// New starts a run over urls.
func New(urls []string) *Run {
	return &Run{
		ID:        uuid.NewString(),
		URLs:      urls,
		Results:   make([]output.PageResult, 0, len(urls)),
		TotalURLs: len(urls),
		StartTime: time.Now(),
	}
}

// Next returns the next URL to audit and false once all have been handed out.
func (r *Run) Next() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CurrentIndex >= len(r.URLs) {
		return "", false
	}
	u := r.URLs[r.CurrentIndex]
	r.CurrentIndex++
	return u, true
}

// Record appends a result.
func (r *Run) Record(result output.PageResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Results = append(r.Results, result)
}

// Snapshot returns a copy of the results recorded so far.
func (r *Run) Snapshot() []output.PageResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]output.PageResult, len(r.Results))
	copy(out, r.Results)
	return out
}

// Progress reports how far the run has come.
func (r *Run) Progress() Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := Progress{
		ID:        r.ID,
		Completed: len(r.Results),
		Total:     r.TotalURLs,
		Elapsed:   time.Since(r.StartTime),
	}
	for _, res := range r.Results {
		if res.OK() {
			p.Succeeded++
		} else {
			p.Failed++
		}
	}
	return p
}

// Reset discards the run's URLs and results.
func (r *Run) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.URLs = nil
	r.Results = nil
	r.CurrentIndex = 0
	r.TotalURLs = 0
}

// PolicyStrings returns the policies of successful results that found one,
// in result order.
func (r *Run) PolicyStrings() []string {
	var policies []string
	for _, res := range r.Snapshot() {
		p := res.Policy()
		if res.OK() && p != "" && p != NoCSP {
			policies = append(policies, p)
		}
	}
	return policies
}

// Consolidate merges every discovered policy of the run.
func (r *Run) Consolidate() csp.ConsolidatedPolicy {
	return csp.MergePolicies(r.PolicyStrings()...)
}

// Stats summarizes directives across the run's policies.
func (r *Run) Stats() []csp.DirectiveStat {
	return csp.Stats(r.PolicyStrings())
}
