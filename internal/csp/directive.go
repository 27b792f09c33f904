package csp

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// ErrInvalidInput is returned when a policy is missing entirely (as opposed to empty).
var ErrInvalidInput = errors.New("invalid input: policy is nil")

// Directive names used across the auditor.
const (
	DefaultSrc = "default-src"
	ScriptSrc  = "script-src"
	StyleSrc   = "style-src"
	ImgSrc     = "img-src"
	FontSrc    = "font-src"
	ConnectSrc = "connect-src"
	MediaSrc   = "media-src"
	FrameSrc   = "frame-src"
	ObjectSrc  = "object-src"
)

// Source keywords
const (
	KeywordSelf         = "'self'"
	KeywordUnsafeInline = "'unsafe-inline'"
	KeywordUnsafeEval   = "'unsafe-eval'"
)

// Directive is one named rule of a policy with its source expressions in first-seen order.
type Directive struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// Model maps directive names to directives while remembering insertion order.
// The zero value is ready to use.
type Model struct {
	order  []string
	byName map[string]*Directive
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{byName: make(map[string]*Directive)}
}

// Parse splits a policy string into a Model.
//
// Segments are separated by ';'. Each trimmed segment is split at its first
// whitespace run into a name and whitespace-separated values. Segments without
// values (e.g. "upgrade-insecure-requests") cannot be represented and are dropped.
// A repeated directive name is ignored after its first occurrence, as browsers do.
func Parse(policy string) *Model {
	return parse(policy, false)
}

// parse keeps the values of repeated directives when unionRepeats is set.
func parse(policy string, unionRepeats bool) *Model {
	m := NewModel()
	for _, segment := range strings.Split(policy, ";") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		idx := strings.IndexAny(segment, " \t\n\r\f")
		if idx <= 0 {
			continue
		}
		name := segment[:idx]
		if m.Has(name) && !unionRepeats {
			continue
		}
		m.Add(name, strings.Fields(segment[idx:])...)
	}
	return m
}

// ParseRaw is Parse for callers holding an optional policy; nil yields ErrInvalidInput.
func ParseRaw(policy *string) (*Model, error) {
	if policy == nil {
		return nil, ErrInvalidInput
	}
	return Parse(*policy), nil
}

// Add appends values to the named directive, creating it if needed.
// Values already present are skipped so first-seen order is kept.
func (m *Model) Add(name string, values ...string) {
	if m.byName == nil {
		m.byName = make(map[string]*Directive)
	}
	d, ok := m.byName[name]
	if !ok {
		d = &Directive{Name: name, Values: make([]string, 0, len(values))}
		m.byName[name] = d
		m.order = append(m.order, name)
	}
	for _, v := range values {
		if !containsString(d.Values, v) {
			d.Values = append(d.Values, v)
		}
	}
}

// Get returns the directive with the given name.
func (m *Model) Get(name string) (Directive, bool) {
	if m == nil || m.byName == nil {
		return Directive{}, false
	}
	d, ok := m.byName[name]
	if !ok {
		return Directive{}, false
	}
	return *d, true
}

// Has reports whether the directive is present.
func (m *Model) Has(name string) bool {
	_, ok := m.Get(name)
	return ok
}

// Values returns the source expressions of a directive, or nil.
func (m *Model) Values(name string) []string {
	d, ok := m.Get(name)
	if !ok {
		return nil
	}
	return d.Values
}

// Names returns directive names in insertion order.
func (m *Model) Names() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Directives returns copies of all directives in insertion order.
func (m *Model) Directives() []Directive {
	if m == nil {
		return nil
	}
	out := make([]Directive, 0, len(m.order))
	for _, name := range m.order {
		d := m.byName[name]
		out = append(out, Directive{Name: d.Name, Values: append([]string(nil), d.Values...)})
	}
	return out
}

// Len returns the number of directives.
func (m *Model) Len() int {
	if m == nil {
		return 0
	}
	return len(m.order)
}

// String serializes the model as "name v1 v2; name2 v3;".
func (m *Model) String() string {
	if m == nil {
		return ""
	}
	clauses := make([]string, 0, len(m.order))
	for _, name := range m.order {
		clauses = append(clauses, formatClause(name, m.byName[name].Values))
	}
	return strings.Join(clauses, " ")
}

// MarshalJSON writes the model as an object of name -> values, keeping directive order.
func (m *Model) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if m != nil {
		for i, name := range m.order {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(name)
			if err != nil {
				return nil, err
			}
			vals, err := json.Marshal(nonNil(m.byName[name].Values))
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(vals)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object of name -> values. Go maps do not keep key
// order, so the decoder walks tokens to preserve it.
func (m *Model) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("directives must be a JSON object")
	}
	*m = Model{byName: make(map[string]*Directive)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return errors.New("directive name must be a string")
		}
		var values []string
		if err := dec.Decode(&values); err != nil {
			return err
		}
		m.Add(name, values...)
	}
	_, err = dec.Token()
	return err
}

func formatClause(name string, values []string) string {
	if len(values) == 0 {
		return name + ";"
	}
	return name + " " + strings.Join(values, " ") + ";"
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
