// Package service manages branches and serves as the branch directory for the
// beneficiary module.
package service

import (
	"context"
	"errors"
	"log/slog"

	"caredesk/internal/actor"
	"caredesk/internal/branch/metrics"
	"caredesk/internal/branch/models"
	id "caredesk/pkg/domain"
	dErrors "caredesk/pkg/domain-errors"
	audit "caredesk/pkg/platform/audit"
	"caredesk/pkg/platform/sentinel"
	"caredesk/pkg/requestcontext"
)

// Store persists branches. Implementations return sentinel.ErrAlreadyUsed when
// the code or name is taken and sentinel.ErrNotFound for unknown ids.
type Store interface {
	CreateIfAvailable(ctx context.Context, b *models.Branch) error
	FindByID(ctx context.Context, branchID id.BranchID) (*models.Branch, error)
	FindByName(ctx context.Context, name string) (*models.Branch, error)
	List(ctx context.Context) ([]*models.Branch, error)
	ListActive(ctx context.Context) ([]*models.Branch, error)
	Execute(ctx context.Context, branchID id.BranchID, validate func(*models.Branch) error, mutate func(*models.Branch)) (*models.Branch, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	branches       Store
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = p
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(branches Store, opts ...Option) *Service {
	s := &Service{branches: branches, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListActive returns active branches ordered by name.
func (s *Service) ListActive(ctx context.Context) ([]*models.Branch, error) {
	branches, err := s.branches.ListActive(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list branches")
	}
	return branches, nil
}

func (s *Service) FindByID(ctx context.Context, branchID id.BranchID) (*models.Branch, error) {
	if branchID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "branch id is required")
	}
	b, err := s.branches.FindByID(ctx, branchID)
	if err != nil {
		return nil, wrapBranchErr(err)
	}
	return b, nil
}

// FindByName looks a branch up by name, ignoring case.
func (s *Service) FindByName(ctx context.Context, name string) (*models.Branch, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "branch name is required")
	}
	b, err := s.branches.FindByName(ctx, name)
	if err != nil {
		return nil, wrapBranchErr(err)
	}
	return b, nil
}

// List returns the branches visible to a: every branch for a superadmin, the
// actor's own branch otherwise.
func (s *Service) List(ctx context.Context, a actor.Context) ([]*models.Branch, error) {
	if !a.Authorized {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if a.SuperAdmin {
		branches, err := s.branches.List(ctx)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list branches")
		}
		return branches, nil
	}
	if !a.HasBranch() {
		return nil, dErrors.New(dErrors.CodeForbidden, "actor has no branch")
	}
	b, err := s.branches.FindByID(ctx, a.BranchID)
	if err != nil {
		return nil, wrapBranchErr(err)
	}
	return []*models.Branch{b}, nil
}

// Create registers a new active branch. Superadmin only.
func (s *Service) Create(ctx context.Context, a actor.Context, code, name string) (*models.Branch, error) {
	if err := requireSuperAdmin(a); err != nil {
		return nil, err
	}
	b, err := models.NewBranch(id.NewBranchID(), code, name, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		return nil, err
	}
	if err := s.branches.CreateIfAvailable(ctx, b); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "branch code and name must be unique")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create branch")
	}
	s.logAudit(ctx, a, audit.EventBranchCreated, b.ID, "code", b.Code)
	if s.metrics != nil {
		s.metrics.IncrementBranchCreated()
	}
	return b, nil
}

// Deactivate stops a branch from receiving replicated records. Existing records
// stay where they are.
func (s *Service) Deactivate(ctx context.Context, a actor.Context, branchID id.BranchID) (*models.Branch, error) {
	if err := requireSuperAdmin(a); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	b, err := s.branches.Execute(ctx, branchID,
		func(b *models.Branch) error {
			if err := b.CanDeactivate(); err != nil {
				return dErrors.New(dErrors.CodeConflict, "branch is already inactive")
			}
			return nil
		},
		func(b *models.Branch) { b.ApplyDeactivation(now) },
	)
	if err != nil {
		return nil, wrapBranchErr(err)
	}
	s.logAudit(ctx, a, audit.EventBranchDeactivated, b.ID)
	return b, nil
}

func (s *Service) Reactivate(ctx context.Context, a actor.Context, branchID id.BranchID) (*models.Branch, error) {
	if err := requireSuperAdmin(a); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	b, err := s.branches.Execute(ctx, branchID,
		func(b *models.Branch) error {
			if err := b.CanReactivate(); err != nil {
				return dErrors.New(dErrors.CodeConflict, "branch is already active")
			}
			return nil
		},
		func(b *models.Branch) { b.ApplyReactivation(now) },
	)
	if err != nil {
		return nil, wrapBranchErr(err)
	}
	s.logAudit(ctx, a, audit.EventBranchReactivated, b.ID)
	return b, nil
}

func (s *Service) logAudit(ctx context.Context, a actor.Context, event audit.AuditEvent, branchID id.BranchID, attributes ...any) {
	requestID := requestcontext.RequestID(ctx)
	args := append(attributes,
		"event", string(event),
		"log_type", "audit",
		"branch_id", branchID.String(),
		"request_id", requestID,
	)
	s.logger.InfoContext(ctx, string(event), args...)
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		Subject:   branchID.String(),
		Action:    string(event),
		BranchID:  branchID.String(),
		RequestID: requestID,
		ActorID:   a.Subject,
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "event", string(event), "error", err, "request_id", requestID)
	}
}

func requireSuperAdmin(a actor.Context) error {
	if !a.Authorized {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if !a.SuperAdmin {
		return dErrors.New(dErrors.CodeForbidden, "superadmin role required")
	}
	return nil
}

func wrapBranchErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "branch not found")
	}
	if _, ok := dErrors.As(err); ok {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load branch")
}
