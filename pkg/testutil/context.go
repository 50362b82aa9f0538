package testutil

import (
	"net/http"

	"caredesk/internal/actor"
	id "caredesk/pkg/domain"
)

// WithActor stores a in the request context, as the actor middleware would.
func WithActor(req *http.Request, a actor.Context) *http.Request {
	return req.WithContext(actor.WithContext(req.Context(), a))
}

// AsStaff attaches an authorized staff actor bound to branchID.
func AsStaff(req *http.Request, branchID id.BranchID, branchName string) *http.Request {
	return WithActor(req, actor.Context{
		Authorized: true,
		BranchID:   branchID,
		BranchName: branchName,
		Subject:    "staff-" + branchName,
	})
}

// AsSuperAdmin attaches an authorized superadmin actor with no branch.
func AsSuperAdmin(req *http.Request) *http.Request {
	return WithActor(req, actor.Context{Authorized: true, SuperAdmin: true, Subject: "superadmin"})
}
