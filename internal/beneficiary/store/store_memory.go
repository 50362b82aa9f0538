// Package store persists beneficiary records.
//
// Both implementations enforce the same storage facts: InternalNumber is unique
// within a branch (sentinel.ErrAlreadyUsed), and a linked relationship edge is
// unique per (record, relation, linked record) so reciprocal appends are idempotent.
package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"caredesk/internal/beneficiary/models"
	id "caredesk/pkg/domain"
	"caredesk/pkg/platform/sentinel"
	"caredesk/pkg/requestcontext"
)

// InMemory is a process-local store used by tests and single-node development.
type InMemory struct {
	mu      sync.RWMutex
	records map[id.BeneficiaryID]*models.Beneficiary
	order   []id.BeneficiaryID
}

func NewInMemory() *InMemory {
	return &InMemory{records: make(map[id.BeneficiaryID]*models.Beneficiary)}
}

func (s *InMemory) Insert(_ context.Context, b *models.Beneficiary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[b.ID]; exists {
		return fmt.Errorf("insert beneficiary %s: %w", b.ID, sentinel.ErrAlreadyUsed)
	}
	if s.internalNumberTakenLocked(b.BranchID, b.InternalNumber, b.ID) {
		return fmt.Errorf("insert beneficiary %s: %w", b.InternalNumber, sentinel.ErrAlreadyUsed)
	}
	s.records[b.ID] = clone(b)
	s.order = append(s.order, b.ID)
	return nil
}

func (s *InMemory) Update(_ context.Context, b *models.Beneficiary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.records[b.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if s.internalNumberTakenLocked(b.BranchID, b.InternalNumber, b.ID) {
		return fmt.Errorf("update beneficiary %s: %w", b.InternalNumber, sentinel.ErrAlreadyUsed)
	}
	next := clone(b)
	// Reciprocal edges appended after the caller read the record survive the update.
	for _, e := range current.Relationships {
		if e.Reciprocal && !next.HasEdge(e) {
			next.Relationships = append(next.Relationships, e)
		}
	}
	s.records[b.ID] = next
	return nil
}

func (s *InMemory) FindByID(_ context.Context, beneficiaryID id.BeneficiaryID) (*models.Beneficiary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.records[beneficiaryID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(b), nil
}

// FindByInternalNumber returns every record carrying number in the given
// branches. A nil branchIDs searches all branches.
func (s *InMemory) FindByInternalNumber(_ context.Context, number string, branchIDs []id.BranchID) ([]*models.Beneficiary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Beneficiary
	for _, beneficiaryID := range s.order {
		b := s.records[beneficiaryID]
		if b.InternalNumber != number {
			continue
		}
		if branchIDs != nil && !slices.Contains(branchIDs, b.BranchID) {
			continue
		}
		out = append(out, clone(b))
	}
	return out, nil
}

func (s *InMemory) FindByCivilIDs(_ context.Context, branchID id.BranchID, civilIDs []string) ([]*models.Beneficiary, error) {
	if len(civilIDs) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Beneficiary
	for _, beneficiaryID := range s.order {
		b := s.records[beneficiaryID]
		if b.BranchID == branchID && slices.Contains(civilIDs, b.CivilID) {
			out = append(out, clone(b))
		}
	}
	return out, nil
}

// ListByBranches returns records newest first. A nil branchIDs lists all branches.
func (s *InMemory) ListByBranches(_ context.Context, branchIDs []id.BranchID) ([]*models.Beneficiary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Beneficiary, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		b := s.records[s.order[i]]
		if branchIDs != nil && !slices.Contains(branchIDs, b.BranchID) {
			continue
		}
		out = append(out, clone(b))
	}
	return out, nil
}

// AppendRelationship adds edge to the record unless an edge with the same
// relation and linked record already exists.
func (s *InMemory) AppendRelationship(ctx context.Context, beneficiaryID id.BeneficiaryID, edge models.RelationshipEdge) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.records[beneficiaryID]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	return b.AppendEdge(edge, requestcontext.Now(ctx)), nil
}

func (s *InMemory) internalNumberTakenLocked(branchID id.BranchID, number string, self id.BeneficiaryID) bool {
	for _, b := range s.records {
		if b.ID != self && b.BranchID == branchID && b.InternalNumber == number {
			return true
		}
	}
	return false
}

func clone(b *models.Beneficiary) *models.Beneficiary {
	cp := *b
	cp.Profile = b.Profile.Clone()
	return &cp
}
