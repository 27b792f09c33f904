package csp

import (
	"reflect"
	"testing"
)

func TestStats(t *testing.T) {
	stats := Stats([]string{
		"script-src 'self' https://a.com; img-src *",
		"script-src https://b.com 'self'",
	})

	want := []DirectiveStat{
		{Directive: "script-src", Pages: 2, Values: []string{"'self'", "https://a.com", "https://b.com"}},
		{Directive: "img-src", Pages: 1, Values: []string{"*"}},
	}
	if !reflect.DeepEqual(stats, want) {
		t.Errorf("Stats() =\n%+v\nwant\n%+v", stats, want)
	}
}

func TestCompareRule(t *testing.T) {
	existing := "default-src 'self'; frame-ancestors 'none'"
	pages := []string{
		"default-src 'self'; script-src https://a.com",
		"script-src https://b.com; img-src data:",
	}

	cmp := CompareRule(existing, pages)

	wantMissing := []Directive{
		{Name: "script-src", Values: []string{"https://a.com"}},
		{Name: "img-src", Values: []string{"data:"}},
	}
	if !reflect.DeepEqual(cmp.Missing, wantMissing) {
		t.Errorf("missing = %+v, want %+v", cmp.Missing, wantMissing)
	}
	wantRemoved := []Directive{{Name: "frame-ancestors", Values: []string{"'none'"}}}
	if !reflect.DeepEqual(cmp.Removed, wantRemoved) {
		t.Errorf("removed = %+v, want %+v", cmp.Removed, wantRemoved)
	}
	wantRule := existing + " script-src https://a.com; img-src data:;"
	if cmp.UpdatedRule != wantRule {
		t.Errorf("updatedRule = %q, want %q", cmp.UpdatedRule, wantRule)
	}
}

func TestCompareRule_NothingToAdd(t *testing.T) {
	cmp := CompareRule("script-src 'self'", []string{"script-src https://x.com"})
	if len(cmp.Missing) != 0 || len(cmp.Removed) != 0 {
		t.Errorf("unexpected diff: %+v", cmp)
	}
	if cmp.UpdatedRule != "script-src 'self'" {
		t.Errorf("updatedRule = %q", cmp.UpdatedRule)
	}
}
