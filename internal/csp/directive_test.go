package csp

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		policy string
		want   []Directive
	}{
		{
			name:   "two directives",
			policy: "default-src 'self'; script-src 'self' https://cdn.example.com",
			want: []Directive{
				{Name: "default-src", Values: []string{"'self'"}},
				{Name: "script-src", Values: []string{"'self'", "https://cdn.example.com"}},
			},
		},
		{
			name:   "value-less segment dropped",
			policy: "upgrade-insecure-requests; script-src 'self'",
			want: []Directive{
				{Name: "script-src", Values: []string{"'self'"}},
			},
		},
		{
			name:   "extra whitespace and empty segments",
			policy: "  img-src   https://a.com\thttps://b.com ;; ;font-src data:  ",
			want: []Directive{
				{Name: "img-src", Values: []string{"https://a.com", "https://b.com"}},
				{Name: "font-src", Values: []string{"data:"}},
			},
		},
		{
			name:   "repeated directive keeps first",
			policy: "script-src https://a.com; script-src https://b.com",
			want: []Directive{
				{Name: "script-src", Values: []string{"https://a.com"}},
			},
		},
		{
			name:   "unknown directive passes through",
			policy: "future-src https://x.com",
			want: []Directive{
				{Name: "future-src", Values: []string{"https://x.com"}},
			},
		},
		{
			name:   "duplicate values collapse",
			policy: "style-src 'self' 'self' https://a.com",
			want: []Directive{
				{Name: "style-src", Values: []string{"'self'", "https://a.com"}},
			},
		},
		{
			name:   "empty policy",
			policy: "",
			want:   []Directive{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.policy).Directives()
			if len(got) != len(tt.want) {
				t.Fatalf("Parse(%q) = %d directives %v, want %d", tt.policy, len(got), got, len(tt.want))
			}
			for i := range tt.want {
				if !reflect.DeepEqual(got[i], tt.want[i]) {
					t.Errorf("directive[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseRaw_Nil(t *testing.T) {
	m, err := ParseRaw(nil)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("ParseRaw(nil) error = %v, want ErrInvalidInput", err)
	}
	if m != nil {
		t.Errorf("ParseRaw(nil) model = %v, want nil", m)
	}

	policy := "img-src https://a.com"
	m, err = ParseRaw(&policy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.Has("img-src") {
		t.Error("expected img-src to be parsed")
	}
}

func TestModel_String(t *testing.T) {
	m := Parse("default-src 'self'; script-src 'self' https://cdn.example.com")
	want := "default-src 'self'; script-src 'self' https://cdn.example.com;"
	if got := m.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestModel_JSONKeepsOrder(t *testing.T) {
	m := Parse("style-src https://b.com; img-src https://a.com")
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"style-src":["https://b.com"],"img-src":["https://a.com"]}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}

	var back Model
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(back.Names(), []string{"style-src", "img-src"}) {
		t.Errorf("names after round trip = %v", back.Names())
	}
}

func TestModel_NilSafe(t *testing.T) {
	var m *Model
	if m.Has("script-src") {
		t.Error("nil model should have no directives")
	}
	if m.Len() != 0 || m.String() != "" || m.Names() != nil {
		t.Error("nil model should be empty")
	}
}
