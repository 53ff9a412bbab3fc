package auth

import (
	"context"
	"slices"
)

type contextKey string

const contextKeyIdentity contextKey = "auth.identity"

// Identity is the authenticated caller.
type Identity struct {
	CompanyID   string
	Role        Role
	Subject     string
	ContractIDs []string
}

// WithIdentity stores auth identity details in context.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, contextKeyIdentity, identity)
}

// IdentityFromContext extracts the caller identity.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	identity, ok := ctx.Value(contextKeyIdentity).(Identity)
	return identity, ok
}

// CompanyIDFromContext extracts company id from context.
func CompanyIDFromContext(ctx context.Context) string {
	identity, _ := IdentityFromContext(ctx)
	return identity.CompanyID
}

// RoleFromContext extracts role from context.
func RoleFromContext(ctx context.Context) Role {
	identity, _ := IdentityFromContext(ctx)
	return identity.Role
}

// SubjectFromContext extracts subject from context.
func SubjectFromContext(ctx context.Context) string {
	identity, _ := IdentityFromContext(ctx)
	return identity.Subject
}

// IsConfirmingDriver reports whether the caller is the driver holding contractID.
func IsConfirmingDriver(ctx context.Context, contractID string) bool {
	identity, ok := IdentityFromContext(ctx)
	if !ok || identity.Role != RoleDriver || contractID == "" {
		return false
	}
	return slices.Contains(identity.ContractIDs, contractID)
}

// CanAccessContract reports whether the caller may read data of contractID.
// Drivers see only their own contracts; managers and admins see every
// contract of their company.
func CanAccessContract(ctx context.Context, contractID string) bool {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return false
	}
	if identity.Role != RoleDriver {
		return true
	}
	return slices.Contains(identity.ContractIDs, contractID)
}

// EnsureCompany verifies a resource belongs to the caller's company.
func EnsureCompany(ctx context.Context, companyID string) error {
	caller := CompanyIDFromContext(ctx)
	if caller == "" || companyID == "" {
		return nil
	}
	if caller != companyID {
		return ErrCompanyMismatch
	}
	return nil
}
