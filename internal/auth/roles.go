package auth

import (
	"slices"
	"strings"
)

// Role is the position of a caller inside a fleet company.
type Role string

const (
	// RoleDriver sees and confirms or disputes settlements of the contracts in
	// the token.
	RoleDriver Role = "driver"
	// RoleManager ingests earnings, runs settlements and records expenses for
	// the whole company.
	RoleManager Role = "manager"
	// RoleAdmin can also inspect dead-lettered events.
	RoleAdmin Role = "admin"
)

// roleLadder orders roles from least to most privileged.
var roleLadder = []Role{RoleDriver, RoleManager, RoleAdmin}

// NormalizeRole parses a role claim; case and surrounding spaces are ignored.
func NormalizeRole(value string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if !slices.Contains(roleLadder, role) {
		return "", false
	}
	return role, true
}

// RoleAtLeast reports whether role sits at or above required on the ladder.
// Unknown roles satisfy nothing.
func RoleAtLeast(role Role, required Role) bool {
	have := slices.Index(roleLadder, role)
	need := slices.Index(roleLadder, required)
	return have >= 0 && need >= 0 && have >= need
}
