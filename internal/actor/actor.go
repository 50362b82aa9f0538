// Package actor resolves who is calling and which branch they act for.
//
// Resolution happens at the HTTP edge. Services receive a Context as an explicit
// argument and never read it from a context.Context themselves.
package actor

import (
	"context"

	id "caredesk/pkg/domain"
)

type Role string

const (
	RoleSuperAdmin Role = "superadmin"
	RoleStaff      Role = "staff"
)

// Context describes the caller of a core operation.
type Context struct {
	Authorized bool
	SuperAdmin bool
	BranchID   id.BranchID
	BranchName string
	Subject    string
}

// HasBranch reports whether the actor is bound to a branch.
func (a Context) HasBranch() bool {
	return !a.BranchID.IsNil()
}

// CanAccessBranch reports whether the actor may read or write records of branchID.
func (a Context) CanAccessBranch(branchID id.BranchID) bool {
	if !a.Authorized {
		return false
	}
	return a.SuperAdmin || (a.HasBranch() && a.BranchID == branchID)
}

// Anonymous is the actor for requests that carried no valid credentials.
var Anonymous = Context{}

type ctxKey struct{}

// WithContext stores a in ctx.
func WithContext(ctx context.Context, a Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// FromContext returns the actor stored by the middleware, or Anonymous.
func FromContext(ctx context.Context) Context {
	a, ok := ctx.Value(ctxKey{}).(Context)
	if !ok {
		return Anonymous
	}
	return a
}
