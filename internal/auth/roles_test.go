package auth

import "testing"

func TestRoleLadder(t *testing.T) {
	cases := []struct {
		role     Role
		required Role
		want     bool
	}{
		{RoleDriver, RoleDriver, true},
		{RoleDriver, RoleManager, false},
		{RoleManager, RoleDriver, true},
		{RoleAdmin, RoleManager, true},
		{RoleManager, RoleAdmin, false},
		{Role("owner"), RoleDriver, false},
		{RoleAdmin, Role("owner"), false},
	}
	for _, tc := range cases {
		if got := RoleAtLeast(tc.role, tc.required); got != tc.want {
			t.Fatalf("RoleAtLeast(%s, %s) = %v want %v", tc.role, tc.required, got, tc.want)
		}
	}
	if role, ok := NormalizeRole(" Manager "); !ok || role != RoleManager {
		t.Fatalf("NormalizeRole = %q %v", role, ok)
	}
	if _, ok := NormalizeRole("viewer"); ok {
		t.Fatalf("viewer must not be a fleet role")
	}
}
