package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPolicyRequiredRole(t *testing.T) {
	policy := NewDefaultPolicy([]string{"/healthz"}, []string{"/debug/"})
	cases := []struct {
		method string
		path   string
		want   Role
		ok     bool
	}{
		{http.MethodGet, "/api/v1/reports/consolidated", RoleViewer, true},
		{http.MethodPost, "/api/v1/reports/participation", RoleViewer, true},
		{http.MethodPost, "/api/v1/reconciliations/machines", RoleAdmin, true},
		{http.MethodGet, "/api/v1/balances/casino/3", RoleViewer, true},
		{http.MethodPost, "/api/v1/balances/casino/3/lock", RoleAdmin, true},
		{http.MethodGet, "/api/v1/counters", RoleViewer, true},
		{http.MethodPost, "/api/v1/counters/corrections", RoleAdmin, true},
		{http.MethodGet, "/metrics", "", false},
	}
	for _, tc := range cases {
		got, ok := policy.RequiredRole(httptest.NewRequest(tc.method, tc.path, nil))
		if got != tc.want || ok != tc.ok {
			t.Errorf("%s %s: got (%q, %v), want (%q, %v)", tc.method, tc.path, got, ok, tc.want, tc.ok)
		}
	}
}

func TestPolicyIsExempt(t *testing.T) {
	policy := NewDefaultPolicy([]string{"/healthz"}, []string{"/debug/"})
	if !policy.IsExempt(httptest.NewRequest(http.MethodGet, "/healthz", nil)) {
		t.Fatal("expected /healthz exempt")
	}
	if !policy.IsExempt(httptest.NewRequest(http.MethodGet, "/debug/pprof", nil)) {
		t.Fatal("expected /debug prefix exempt")
	}
	if policy.IsExempt(httptest.NewRequest(http.MethodGet, "/api/v1/counters", nil)) {
		t.Fatal("api paths must not be exempt")
	}
}
