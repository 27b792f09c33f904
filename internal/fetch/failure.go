package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"

	"github.com/pkg/errors"
)

// Kind categorizes why a fetch failed.
type Kind int

const (
	KindOther Kind = iota
	KindTimeout
	KindDNS
	KindRefused
	KindHTTP
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindDNS:
		return "dns"
	case KindRefused:
		return "refused"
	case KindHTTP:
		return "http"
	}
	return "other"
}

// Failure is a classified fetch error. Message returns the text shown to users.
type Failure struct {
	Kind       Kind
	StatusCode int
	StatusText string
	Err        error
}

// Message returns the user-facing description of the failure.
func (f *Failure) Message() string {
	switch f.Kind {
	case KindHTTP:
		return fmt.Sprintf("HTTP %d: %s", f.StatusCode, f.StatusText)
	case KindTimeout:
		return "Request timeout"
	case KindDNS:
		return "Domain not found"
	case KindRefused:
		return "Connection refused"
	}
	return "Failed to fetch page"
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return f.Message() + ": " + f.Err.Error()
	}
	return f.Message()
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func httpFailure(resp *http.Response) *Failure {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return &Failure{Kind: KindHTTP, StatusCode: resp.StatusCode, StatusText: text}
}

// Classify maps any fetch error to a Failure. Errors that already are a
// Failure are returned as is.
func Classify(err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Failure{Kind: KindTimeout, Err: err}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &Failure{Kind: KindDNS, Err: err}
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return &Failure{Kind: KindRefused, Err: err}
	}
	return &Failure{Kind: KindOther, Err: err}
}

// Message is shorthand for Classify(err).Message().
func Message(err error) string {
	if err == nil {
		return ""
	}
	return Classify(err).Message()
}
