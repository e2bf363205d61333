package auth

import (
	"net/http"
	"strings"
)

// rule maps a path prefix to the role needed for writes. Reads need viewer.
type rule struct {
	prefix string
	suffix string
	write  Role
	read   Role
}

var cuadreRules = []rule{
	// participation takes its machine set in a POST body but never persists
	{prefix: "/api/v1/reports/", write: RoleViewer, read: RoleViewer},
	{prefix: "/api/v1/reconciliations/", write: RoleAdmin, read: RoleAdmin},
	{prefix: "/api/v1/balances/", suffix: "/lock", write: RoleAdmin, read: RoleAdmin},
	{prefix: "/api/v1/counters", write: RoleAdmin, read: RoleViewer},
	{prefix: "/api/", write: RoleAdmin, read: RoleViewer},
}

// Policy decides which requests skip authentication and which role the rest need.
type Policy struct {
	exempt   map[string]struct{}
	prefixes []string
	rules    []rule
}

// NewDefaultPolicy builds the cuadre API policy. Paths in exemptPaths and
// anything under exemptPrefixes bypass authentication.
func NewDefaultPolicy(exemptPaths []string, exemptPrefixes []string) Policy {
	set := make(map[string]struct{}, len(exemptPaths))
	for _, path := range exemptPaths {
		set[path] = struct{}{}
	}
	return Policy{exempt: set, prefixes: exemptPrefixes, rules: cuadreRules}
}

// IsExempt reports whether r skips authentication.
func (p Policy) IsExempt(r *http.Request) bool {
	if r == nil {
		return true
	}
	if _, ok := p.exempt[r.URL.Path]; ok {
		return true
	}
	for _, prefix := range p.prefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// RequiredRole returns the role r needs. ok is false for paths outside the API.
func (p Policy) RequiredRole(r *http.Request) (Role, bool) {
	if r == nil {
		return "", false
	}
	path := r.URL.Path
	for _, rl := range p.rules {
		if !strings.HasPrefix(path, rl.prefix) || !strings.HasSuffix(path, rl.suffix) {
			continue
		}
		if isRead(r.Method) {
			return rl.read, true
		}
		return rl.write, true
	}
	return "", false
}

func isRead(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
