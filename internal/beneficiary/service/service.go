// Package service creates, edits and reads beneficiary records. It owns the
// branch replication rules: single-branch creates with a per-branch uniqueness
// check, and organization-wide replication into every active branch.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"

	"caredesk/internal/actor"
	"caredesk/internal/beneficiary/metrics"
	"caredesk/internal/beneficiary/models"
	"caredesk/internal/beneficiary/priority"
	"caredesk/internal/beneficiary/sanitize"
	branchmodels "caredesk/internal/branch/models"
	id "caredesk/pkg/domain"
	dErrors "caredesk/pkg/domain-errors"
	audit "caredesk/pkg/platform/audit"
	"caredesk/pkg/platform/sentinel"
	"caredesk/pkg/requestcontext"
)

// Store persists beneficiaries. Insert and Update return sentinel.ErrAlreadyUsed
// when the internal number is taken in the branch.
type Store interface {
	Insert(ctx context.Context, b *models.Beneficiary) error
	Update(ctx context.Context, b *models.Beneficiary) error
	FindByID(ctx context.Context, beneficiaryID id.BeneficiaryID) (*models.Beneficiary, error)
	FindByInternalNumber(ctx context.Context, number string, branchIDs []id.BranchID) ([]*models.Beneficiary, error)
	ListByBranches(ctx context.Context, branchIDs []id.BranchID) ([]*models.Beneficiary, error)
}

// BranchDirectory is the read side of the branch module.
type BranchDirectory interface {
	ListActive(ctx context.Context) ([]*branchmodels.Branch, error)
	FindByID(ctx context.Context, branchID id.BranchID) (*branchmodels.Branch, error)
	FindByName(ctx context.Context, name string) (*branchmodels.Branch, error)
}

// RelationshipResolver links declared relatives within one branch.
type RelationshipResolver interface {
	ResolveFor(ctx context.Context, branchID id.BranchID, self id.BeneficiaryID, edges []models.RelationshipEdge) ([]models.RelationshipEdge, error)
}

// Propagator schedules reciprocal edges for a stored record. It never fails the caller.
type Propagator interface {
	Propagate(ctx context.Context, b *models.Beneficiary)
}

type Sanitizer interface {
	Sanitize(raw sanitize.Raw, lang language.Tag) (models.Profile, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Creation modes, also used as metric labels.
const (
	ModeSingle     = "single"
	ModeReplicated = "replicated"
)

// BranchFailure records a branch the replication loop could not write.
type BranchFailure struct {
	BranchID   id.BranchID
	BranchName string
	Reason     string
}

// CreateResult is the outcome of Create. Created is ordered like the branches
// were visited; Failed is only ever non-empty in replicated mode.
type CreateResult struct {
	Mode    string
	Created []*models.Beneficiary
	Failed  []BranchFailure
}

// Partial reports a replication that wrote some branches but not all.
func (r *CreateResult) Partial() bool {
	return len(r.Created) > 0 && len(r.Failed) > 0
}

// First returns the first created record.
func (r *CreateResult) First() *models.Beneficiary {
	if len(r.Created) == 0 {
		return nil
	}
	return r.Created[0]
}

type Service struct {
	store          Store
	branches       BranchDirectory
	resolver       RelationshipResolver
	propagator     Propagator
	sanitizer      Sanitizer
	locker         Locker
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
	tracer         trace.Tracer
	concurrency    int
	lockTTL        time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = p
	}
}

// WithLocker guards a replication batch. Without one, batches run unlocked and
// the storage constraint alone rejects duplicates.
func WithLocker(l Locker, ttl time.Duration) Option {
	return func(s *Service) {
		s.locker = l
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithReplicationConcurrency bounds parallel branch writes. 1 keeps them sequential.
func WithReplicationConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func New(store Store, branches BranchDirectory, resolver RelationshipResolver, propagator Propagator, opts ...Option) *Service {
	s := &Service{
		store:       store,
		branches:    branches,
		resolver:    resolver,
		propagator:  propagator,
		sanitizer:   sanitize.New(),
		locker:      NoopLocker{},
		logger:      slog.Default(),
		tracer:      otel.Tracer("caredesk/beneficiary/service"),
		concurrency: 1,
		lockTTL:     30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new beneficiary. A superadmin who names no branch replicates
// the record into every active branch; everyone else creates in one branch.
// Authorization and validation finish before any read of beneficiary data.
func (s *Service) Create(ctx context.Context, a actor.Context, raw sanitize.Raw) (*CreateResult, error) {
	if err := authorizeCreate(a, raw); err != nil {
		return nil, err
	}
	profile, err := s.sanitize(ctx, raw)
	if err != nil {
		return nil, err
	}
	if a.SuperAdmin && raw.Branch == "" && raw.BranchName == "" {
		return s.replicate(ctx, a, profile)
	}
	branch, err := s.targetBranch(ctx, a, raw)
	if err != nil {
		return nil, err
	}
	b, err := s.createSingle(ctx, a, branch, profile)
	if err != nil {
		return nil, err
	}
	return &CreateResult{Mode: ModeSingle, Created: []*models.Beneficiary{b}}, nil
}

func authorizeCreate(a actor.Context, raw sanitize.Raw) error {
	if !a.Authorized {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if a.SuperAdmin {
		return nil
	}
	if !a.HasBranch() {
		return dErrors.New(dErrors.CodeForbidden, "actor has no branch")
	}
	if raw.Branch != "" && raw.Branch != a.BranchID.String() {
		return dErrors.New(dErrors.CodeForbidden, "cannot create beneficiaries in another branch")
	}
	return nil
}

// targetBranch resolves the single branch a create is aimed at.
func (s *Service) targetBranch(ctx context.Context, a actor.Context, raw sanitize.Raw) (*branchmodels.Branch, error) {
	var (
		branch *branchmodels.Branch
		err    error
	)
	switch {
	case !a.SuperAdmin:
		branch, err = s.branches.FindByID(ctx, a.BranchID)
	case raw.Branch != "":
		branchID, parseErr := id.ParseBranchID(raw.Branch)
		if parseErr != nil {
			return nil, dErrors.New(dErrors.CodeValidation, "branch is not a valid id")
		}
		branch, err = s.branches.FindByID(ctx, branchID)
	default:
		branch, err = s.branches.FindByName(ctx, raw.BranchName)
	}
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, dErrors.New(dErrors.CodeValidation, "branch not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve branch")
	}
	if !branch.IsActive() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "branch %s is inactive", branch.Name)
	}
	return branch, nil
}

func (s *Service) createSingle(ctx context.Context, a actor.Context, branch *branchmodels.Branch, profile models.Profile) (*models.Beneficiary, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "beneficiary.Create", trace.WithAttributes(
		attrBranch(branch.ID),
		attrNumber(profile.InternalNumber),
	))
	defer span.End()

	existing, err := s.store.FindByInternalNumber(ctx, profile.InternalNumber, []id.BranchID{branch.ID})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check internal number")
	}
	if len(existing) > 0 {
		s.incrementConflict(ModeSingle)
		return nil, conflictError(profile.InternalNumber, []string{branch.Name})
	}

	b, err := s.place(ctx, branch, profile)
	if err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			s.incrementConflict(ModeSingle)
			return nil, conflictError(profile.InternalNumber, []string{branch.Name})
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store beneficiary")
	}

	s.logAudit(ctx, a, audit.EventBeneficiaryCreated, b, "")
	if s.metrics != nil {
		s.metrics.IncrementCreated(ModeSingle, 1)
		s.metrics.ObserveCreate(ModeSingle, start)
	}
	return b, nil
}

// place resolves relationships within branch, scores, inserts and propagates.
// A failed relative lookup is not fatal: the edges are kept unlinked.
func (s *Service) place(ctx context.Context, branch *branchmodels.Branch, profile models.Profile) (*models.Beneficiary, error) {
	profile = profile.Clone()
	beneficiaryID := id.NewBeneficiaryID()

	resolved, err := s.resolver.ResolveFor(ctx, branch.ID, beneficiaryID, profile.Relationships)
	if err != nil {
		s.logger.WarnContext(ctx, "relationship resolution failed, storing relatives unlinked",
			"request_id", requestcontext.RequestID(ctx),
			"branch_id", branch.ID.String(),
			"error", err,
		)
	}
	profile.Relationships = resolved
	profile.Priority = score(profile)

	b, err := models.NewBeneficiary(beneficiaryID, branch.ID, branch.Name, profile, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.Insert(ctx, b); err != nil {
		return nil, err
	}
	s.propagator.Propagate(ctx, b)
	return b, nil
}

func (s *Service) sanitize(ctx context.Context, raw sanitize.Raw) (models.Profile, error) {
	lang := sanitize.MatchLanguage(requestcontext.AcceptLanguage(ctx))
	return s.sanitizer.Sanitize(raw, lang)
}

// score applies the operator's manual priority when flagged, the computed one otherwise.
func score(p models.Profile) int {
	signals := priority.SignalsFrom(p)
	if p.PriorityManual {
		manual := p.Priority
		return priority.Resolve(signals, &manual)
	}
	return priority.Resolve(signals, nil)
}

func (s *Service) logAudit(ctx context.Context, a actor.Context, event audit.AuditEvent, b *models.Beneficiary, reason string) {
	requestID := requestcontext.RequestID(ctx)
	s.logger.InfoContext(ctx, string(event),
		"event", string(event),
		"log_type", "audit",
		"beneficiary_id", b.ID.String(),
		"branch_id", b.BranchID.String(),
		"request_id", requestID,
	)
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		Subject:   b.ID.String(),
		Action:    string(event),
		BranchID:  b.BranchID.String(),
		Reason:    reason,
		RequestID: requestID,
		ActorID:   a.Subject,
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "event", string(event), "error", err, "request_id", requestID)
	}
}

func (s *Service) incrementConflict(mode string) {
	if s.metrics != nil {
		s.metrics.IncrementConflict(mode)
	}
}

func conflictError(number string, branchNames []string) error {
	if len(branchNames) == 1 {
		return dErrors.Newf(dErrors.CodeConflict,
			"beneficiary with internal number %s already exists in branch %s", number, branchNames[0])
	}
	return dErrors.Newf(dErrors.CodeConflict,
		"beneficiary with internal number %s already exists in branches %s", number, strings.Join(branchNames, ", "))
}

func lockKey(number string) string {
	return fmt.Sprintf("replicate:%s", number)
}
