package csp

import (
	"encoding/json"
	"sort"
	"testing"
)

func TestMerge_OrderIndependentValueSets(t *testing.T) {
	a := Parse("script-src 'self'")
	b := Parse("script-src https://a.com")

	for _, order := range [][]*Model{{a, b}, {b, a}} {
		got := Merge(order...).Directives.Values("script-src")
		sorted := append([]string(nil), got...)
		sort.Strings(sorted)
		if len(sorted) != 2 || sorted[0] != "'self'" || sorted[1] != "https://a.com" {
			t.Errorf("script-src = %v, want {'self', https://a.com}", got)
		}
	}
}

func TestMerge_Idempotent(t *testing.T) {
	m := Parse("default-src 'self'; img-src https://i.com")
	once := Merge(m)
	twice := Merge(m, m)
	if once.Rule != twice.Rule {
		t.Errorf("merge not idempotent: %q vs %q", once.Rule, twice.Rule)
	}
}

func TestMerge_FirstSeenOrderAndRule(t *testing.T) {
	got := MergePolicies(
		"style-src 'self'; script-src https://a.com",
		"script-src https://b.com; img-src data:",
		"No CSP found here",
	)
	want := "style-src 'self'; script-src https://a.com https://b.com; img-src data:; No CSP found here;"
	if got.Rule != want {
		t.Errorf("rule = %q\nwant   %q", got.Rule, want)
	}
}

func TestMergePolicies_RepeatedDirective(t *testing.T) {
	got := MergePolicies("script-src 'self'; script-src https://a.com; script-src 'self'")
	if want := "script-src 'self' https://a.com;"; got.Rule != want {
		t.Errorf("rule = %q, want %q", got.Rule, want)
	}
	if vals := Parse("script-src 'self'; script-src https://a.com").Values(ScriptSrc); len(vals) != 1 {
		t.Errorf("Parse must keep the first occurrence only, got %v", vals)
	}
}

func TestMerge_Empty(t *testing.T) {
	got := Merge()
	if got.Rule != "" {
		t.Errorf("rule = %q, want empty", got.Rule)
	}
	data, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"rule":"","directives":{}}` {
		t.Errorf("json = %s", data)
	}
}

func TestMergeFromObservedOrigins(t *testing.T) {
	tests := []struct {
		name     string
		existing string
		origins  map[string][]string
		want     string
	}{
		{
			name:     "empty policy gains default-src and sorted directives",
			existing: "",
			origins: map[string][]string{
				"script-src": {"cdn.x.com", "https://cdn.y.com"},
				"img-src":    {"img.z.com"},
			},
			want: "default-src 'self'; img-src 'self' https://img.z.com; script-src 'self' https://cdn.x.com https://cdn.y.com;",
		},
		{
			name:     "existing directive seeded with self",
			existing: "script-src https://a.com; default-src 'none'",
			origins:  map[string][]string{"script-src": {"a.com", "b.com"}},
			want:     "default-src 'none'; script-src https://a.com 'self' https://b.com;",
		},
		{
			name:     "no observations keeps policy sorted",
			existing: "style-src 'self'; connect-src https://api.com",
			origins:  nil,
			want:     "connect-src https://api.com; default-src 'self'; style-src 'self';",
		},
		{
			name:     "other schemes untouched",
			existing: "",
			origins:  map[string][]string{"connect-src": {"wss://ws.x.com"}},
			want:     "connect-src 'self' wss://ws.x.com; default-src 'self';",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MergeFromObservedOrigins(tt.existing, tt.origins); got != tt.want {
				t.Errorf("got  %q\nwant %q", got, tt.want)
			}
		})
	}
}
