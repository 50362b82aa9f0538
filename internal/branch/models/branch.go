package models

import (
	"strings"
	"time"

	id "caredesk/pkg/domain"
	dErrors "caredesk/pkg/domain-errors"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

func (s Status) IsValid() bool {
	return s == StatusActive || s == StatusInactive
}

// CanTransitionTo reports whether moving from s to target is a real change.
func (s Status) CanTransitionTo(target Status) bool {
	return s.IsValid() && target.IsValid() && s != target
}

// Branch is a physical office that owns beneficiary records.
//
// Invariants:
//   - Code is non-empty, at most 32 characters and unique case-insensitively
//   - Name is non-empty and at most 128 characters
//   - Status transitions: active ↔ inactive only
//   - Beneficiaries keep the branch name they were created under; renames are not propagated
type Branch struct {
	ID        id.BranchID `json:"id"`
	Code      string      `json:"code"`
	Name      string      `json:"name"`
	Status    Status      `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func (b *Branch) IsActive() bool {
	return b.Status == StatusActive
}

// CanDeactivate checks if the branch can transition to inactive status.
func (b *Branch) CanDeactivate() error {
	if !b.Status.CanTransitionTo(StatusInactive) {
		return dErrors.New(dErrors.CodeInvariantViolation, "branch is already inactive")
	}
	return nil
}

func (b *Branch) ApplyDeactivation(now time.Time) {
	b.Status = StatusInactive
	b.UpdatedAt = now
}

// CanReactivate checks if the branch can transition to active status.
func (b *Branch) CanReactivate() error {
	if !b.Status.CanTransitionTo(StatusActive) {
		return dErrors.New(dErrors.CodeInvariantViolation, "branch is already active")
	}
	return nil
}

func (b *Branch) ApplyReactivation(now time.Time) {
	b.Status = StatusActive
	b.UpdatedAt = now
}

func NewBranch(branchID id.BranchID, code, name string, now time.Time) (*Branch, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	name = strings.TrimSpace(name)
	if code == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "branch code cannot be empty")
	}
	if len(code) > 32 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "branch code must be 32 characters or less")
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "branch name cannot be empty")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "branch name must be 128 characters or less")
	}
	return &Branch{
		ID:        branchID,
		Code:      code,
		Name:      name,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
