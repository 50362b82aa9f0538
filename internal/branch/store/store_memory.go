// Package store persists branches. Code and name are unique case-insensitively;
// a second branch with either returns sentinel.ErrAlreadyUsed.
package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"caredesk/internal/branch/models"
	id "caredesk/pkg/domain"
	"caredesk/pkg/platform/sentinel"
)

// InMemory is a process-local branch store.
type InMemory struct {
	mu       sync.RWMutex
	branches map[id.BranchID]*models.Branch
}

func NewInMemory() *InMemory {
	return &InMemory{branches: make(map[id.BranchID]*models.Branch)}
}

// CreateIfAvailable inserts b unless its code or name is taken.
func (s *InMemory) CreateIfAvailable(_ context.Context, b *models.Branch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.branches[b.ID]; exists {
		return fmt.Errorf("branch %s: %w", b.ID, sentinel.ErrAlreadyUsed)
	}
	for _, existing := range s.branches {
		if strings.EqualFold(existing.Code, b.Code) {
			return fmt.Errorf("branch code %s: %w", b.Code, sentinel.ErrAlreadyUsed)
		}
		if strings.EqualFold(existing.Name, b.Name) {
			return fmt.Errorf("branch name %s: %w", b.Name, sentinel.ErrAlreadyUsed)
		}
	}
	cp := *b
	s.branches[b.ID] = &cp
	return nil
}

func (s *InMemory) FindByID(_ context.Context, branchID id.BranchID) (*models.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.branches[branchID]
	if !ok {
		return nil, fmt.Errorf("branch %s: %w", branchID, sentinel.ErrNotFound)
	}
	cp := *b
	return &cp, nil
}

// FindByName matches case-insensitively.
func (s *InMemory) FindByName(_ context.Context, name string) (*models.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.branches {
		if strings.EqualFold(b.Name, name) {
			cp := *b
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("branch %q: %w", name, sentinel.ErrNotFound)
}

// List returns every branch ordered by name.
func (s *InMemory) List(_ context.Context) ([]*models.Branch, error) {
	return s.collect(func(*models.Branch) bool { return true }), nil
}

// ListActive returns active branches ordered by name.
func (s *InMemory) ListActive(_ context.Context) ([]*models.Branch, error) {
	return s.collect((*models.Branch).IsActive), nil
}

func (s *InMemory) collect(keep func(*models.Branch) bool) []*models.Branch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Branch, 0, len(s.branches))
	for _, b := range s.branches {
		if keep(b) {
			cp := *b
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *models.Branch) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// Execute validates and mutates a branch under the store lock.
func (s *InMemory) Execute(_ context.Context, branchID id.BranchID, validate func(*models.Branch) error, mutate func(*models.Branch)) (*models.Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.branches[branchID]
	if !ok {
		return nil, fmt.Errorf("branch %s: %w", branchID, sentinel.ErrNotFound)
	}
	if err := validate(b); err != nil {
		return nil, err
	}
	mutate(b)
	cp := *b
	return &cp, nil
}
