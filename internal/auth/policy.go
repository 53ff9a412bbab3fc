package auth

import (
	"net/http"
	"strings"
)

// Policy determines required roles by request.
type Policy struct {
	ExemptPaths    map[string]struct{}
	ExemptPrefixes []string
}

// NewDefaultPolicy builds a default policy with exemptions.
func NewDefaultPolicy(exemptPaths []string, exemptPrefixes []string) Policy {
	set := make(map[string]struct{}, len(exemptPaths))
	for _, path := range exemptPaths {
		set[path] = struct{}{}
	}
	return Policy{ExemptPaths: set, ExemptPrefixes: exemptPrefixes}
}

// IsExempt returns true when a request should skip auth/RBAC.
func (p Policy) IsExempt(r *http.Request) bool {
	if r == nil {
		return true
	}
	if _, ok := p.ExemptPaths[r.URL.Path]; ok {
		return true
	}
	for _, prefix := range p.ExemptPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// RequiredRole resolves required role for the request.
func (p Policy) RequiredRole(r *http.Request) (Role, bool) {
	if r == nil {
		return "", false
	}
	path := r.URL.Path
	method := r.Method

	switch {
	case path == "/api/v1/earnings":
		if method == http.MethodPost {
			return RoleManager, true
		}
		return RoleDriver, true
	case path == "/api/v1/settlements":
		if method == http.MethodPost {
			return RoleManager, true
		}
		return RoleDriver, true
	case strings.HasPrefix(path, "/api/v1/settlements/"):
		switch {
		case method == http.MethodGet:
			return RoleDriver, true
		case strings.HasSuffix(path, "/confirm"), strings.HasSuffix(path, "/dispute"):
			return RoleDriver, true
		}
		return RoleManager, true
	case path == "/api/v1/exports/settlements.csv":
		return RoleManager, true
	case strings.HasPrefix(path, "/api/v1/expenses"):
		return RoleManager, true
	case path == "/api/v1/dashboard":
		return RoleManager, true
	case strings.HasPrefix(path, "/api/v1/admin/"):
		return RoleAdmin, true
	}

	if strings.HasPrefix(path, "/api/") {
		if method == http.MethodGet || method == http.MethodHead {
			return RoleDriver, true
		}
		return RoleManager, true
	}
	return "", false
}
