// Package tech fingerprints the software stack of an audited page. Frameworks
// and tag managers explain many of the third-party origins a policy must admit.
package tech

import (
	"net/http"
	"slices"
	"strings"

	wappalyzer "github.com/projectdiscovery/wappalyzergo"
)

// Detector matches pages against the wappalyzer fingerprint database.
type Detector struct {
	fingerprints *wappalyzer.Wappalyze
}

// NewDetector loads the fingerprint database.
func NewDetector() (*Detector, error) {
	fp, err := wappalyzer.New()
	if err != nil {
		return nil, err
	}
	return &Detector{fingerprints: fp}, nil
}

// Detect lists the technologies seen in a page, by product name without
// version and in sorted order. A nil Detector detects nothing.
func (d *Detector) Detect(headers http.Header, body []byte) []string {
	if d == nil || d.fingerprints == nil {
		return nil
	}
	return productNames(d.fingerprints.Fingerprint(headers, body))
}

// productNames folds "Name:version" matches onto their product.
func productNames(matches map[string]struct{}) []string {
	if len(matches) == 0 {
		return nil
	}
	names := make([]string, 0, len(matches))
	for match := range matches {
		product, _, _ := strings.Cut(match, ":")
		names = append(names, product)
	}
	slices.Sort(names)
	return slices.Compact(names)
}
