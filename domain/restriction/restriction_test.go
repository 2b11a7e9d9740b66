package restriction_test

import (
	"testing"

	"github.com/tollgate/tollgate/domain/restriction"
)

func domains(values ...string) []restriction.Domain {
	var out []restriction.Domain
	for _, v := range values {
		out = append(out, restriction.Domain{Value: v})
	}
	return out
}

func ips(values ...string) []restriction.IP {
	var out []restriction.IP
	for _, v := range values {
		out = append(out, restriction.IP{Value: v})
	}
	return out
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name      string
		domains   []restriction.Domain
		ips       []restriction.IP
		reqDomain string
		reqIP     string
		want      bool
	}{
		{
			name:      "no restrictions admits everything",
			reqDomain: "evil.example",
			reqIP:     "203.0.113.9",
			want:      true,
		},
		{
			name: "no restrictions admits even without signals",
			want: true,
		},
		{
			name:    "ip only, matching ip",
			ips:     ips("10.0.0.1"),
			reqIP:   "10.0.0.1",
			want:    true,
		},
		{
			name:      "ip only, matching ip ignores domain",
			ips:       ips("10.0.0.1"),
			reqDomain: "anything.example",
			reqIP:     "10.0.0.1",
			want:      true,
		},
		{
			name:  "ip only, non-matching ip",
			ips:   ips("10.0.0.1"),
			reqIP: "10.0.0.2",
			want:  false,
		},
		{
			name: "ip only, no remote address signal",
			ips:  ips("10.0.0.1"),
			want: false,
		},
		{
			name:      "domain only, matching referrer",
			domains:   domains("app.example.com"),
			reqDomain: "app.example.com",
			want:      true,
		},
		{
			name:    "domain only, missing referrer is a deny not an error",
			domains: domains("app.example.com"),
			reqIP:   "10.0.0.1",
			want:    false,
		},
		{
			name:      "both kinds, domain matches",
			domains:   domains("app.example.com"),
			ips:       ips("10.0.0.1"),
			reqDomain: "app.example.com",
			reqIP:     "203.0.113.9",
			want:      true,
		},
		{
			name:      "both kinds, ip matches",
			domains:   domains("app.example.com"),
			ips:       ips("10.0.0.1"),
			reqDomain: "other.example",
			reqIP:     "10.0.0.1",
			want:      true,
		},
		{
			name:      "both kinds, neither matches",
			domains:   domains("app.example.com"),
			ips:       ips("10.0.0.1"),
			reqDomain: "other.example",
			reqIP:     "203.0.113.9",
			want:      false,
		},
		{
			name:      "multiple entries, second matches",
			domains:   domains("a.example", "b.example"),
			reqDomain: "b.example",
			want:      true,
		},
		{
			name:      "exact match only, no subdomain logic",
			domains:   domains("example.com"),
			reqDomain: "api.example.com",
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := restriction.Evaluate(tt.domains, tt.ips, tt.reqDomain, tt.reqIP)
			if got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}
