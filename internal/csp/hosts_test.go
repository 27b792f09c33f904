package csp

import (
	"reflect"
	"sort"
	"testing"
)

func TestModel_Hosts(t *testing.T) {
	tests := []struct {
		name   string
		policy string
		want   []string
	}{
		{
			name:   "bare hosts",
			policy: "default-src 'self' cdn.example.com; script-src scripts.example.com 'unsafe-inline'; img-src images.example.com data:",
			want:   []string{"cdn.example.com", "images.example.com", "scripts.example.com"},
		},
		{
			name:   "keywords filtered",
			policy: "default-src 'self' 'unsafe-inline' 'unsafe-eval' data: blob: https: http: 'none' 'strict-dynamic' actual.example.com",
			want:   []string{"actual.example.com"},
		},
		{
			name:   "url sources",
			policy: "script-src https://cdn.example.com/path; connect-src wss://ws.example.com:8080",
			want:   []string{"cdn.example.com", "ws.example.com"},
		},
		{
			name:   "deduplicated",
			policy: "default-src cdn.example.com; script-src cdn.example.com; style-src cdn.example.com",
			want:   []string{"cdn.example.com"},
		},
		{
			name:   "wildcard kept",
			policy: "img-src *.example.com",
			want:   []string{"*.example.com"},
		},
		{
			name:   "nonce and hash skipped",
			policy: "script-src 'nonce-abc' 'sha256-xyz=' good.example.com",
			want:   []string{"good.example.com"},
		},
		{
			name:   "non-fetch directive ignored",
			policy: "report-uri https://report.example.com; sandbox allow-scripts",
			want:   nil,
		},
		{
			name:   "port stripped from bare host",
			policy: "connect-src api.example.com:8443",
			want:   []string{"api.example.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.policy).Hosts()
			sort.Strings(got)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Hosts() = %v, want %v", got, tt.want)
			}
		})
	}
}
