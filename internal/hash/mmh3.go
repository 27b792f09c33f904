package hash

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/twmb/murmur3"
)

// Fingerprint identifies what a page served, so identical pages and policies
// can be grouped across a run.
type Fingerprint struct {
	BodyMMH3   string `json:"body_mmh3"`
	HeaderMMH3 string `json:"header_mmh3"`
	PolicyMMH3 string `json:"policy_mmh3,omitempty"`
}

// CalculateMMH3 returns the 32-bit murmur3 of data as a decimal string.
func CalculateMMH3(data []byte) string {
	return strconv.FormatUint(uint64(murmur3.Sum32(data)), 10)
}

// CalculateHeaderMMH3 hashes headers as sorted "Key: value" lines.
func CalculateHeaderMMH3(headers http.Header) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, v := range headers[k] {
			b.WriteString(k)
			b.WriteString(": ")
			b.WriteString(v)
			b.WriteByte('\n')
		}
	}
	return CalculateMMH3([]byte(b.String()))
}

// CalculatePolicyMMH3 hashes a policy after collapsing whitespace, so
// formatting differences between pages do not split otherwise equal policies.
// An empty policy has no fingerprint.
func CalculatePolicyMMH3(policy string) string {
	normalized := strings.Join(strings.Fields(policy), " ")
	if normalized == "" {
		return ""
	}
	return CalculateMMH3([]byte(normalized))
}

// New fingerprints a fetched page.
func New(headers http.Header, body []byte) Fingerprint {
	return Fingerprint{
		BodyMMH3:   CalculateMMH3(body),
		HeaderMMH3: CalculateHeaderMMH3(headers),
	}
}
