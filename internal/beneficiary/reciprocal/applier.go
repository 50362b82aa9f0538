package reciprocal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"caredesk/internal/beneficiary/metrics"
	"caredesk/internal/beneficiary/models"
	id "caredesk/pkg/domain"
	audit "caredesk/pkg/platform/audit"
	"caredesk/pkg/platform/sentinel"
)

// EdgeStore appends a relationship edge, reporting whether the record changed.
type EdgeStore interface {
	AppendRelationship(ctx context.Context, beneficiaryID id.BeneficiaryID, edge models.RelationshipEdge) (bool, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Applier writes one reciprocal edge. Applying the same task twice leaves a
// single edge on the target.
type Applier struct {
	store          EdgeStore
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
}

type ApplierOption func(*Applier)

func WithApplierLogger(logger *slog.Logger) ApplierOption {
	return func(a *Applier) {
		a.logger = logger
	}
}

func WithApplierMetrics(m *metrics.Metrics) ApplierOption {
	return func(a *Applier) {
		a.metrics = m
	}
}

func WithAuditPublisher(p AuditPublisher) ApplierOption {
	return func(a *Applier) {
		a.auditPublisher = p
	}
}

func NewApplier(store EdgeStore, opts ...ApplierOption) *Applier {
	a := &Applier{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Apply appends the task's edge to its target. A target that no longer exists
// is not retryable and is reported as skipped rather than as an error.
func (a *Applier) Apply(ctx context.Context, task Task) error {
	appended, err := a.store.AppendRelationship(ctx, task.TargetID, task.Edge)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			a.logger.WarnContext(ctx, "reciprocal target no longer exists",
				"request_id", task.RequestID,
				"target_id", task.TargetID.String(),
			)
			a.count(metrics.EdgeSkipped)
			return nil
		}
		return fmt.Errorf("append reciprocal edge to %s: %w", task.TargetID, err)
	}
	if !appended {
		a.count(metrics.EdgeSkipped)
		return nil
	}

	a.count(metrics.EdgeWritten)
	if a.auditPublisher != nil {
		// Audit is best-effort; the edge is already stored.
		_ = a.auditPublisher.Emit(ctx, audit.Event{
			Subject:   task.TargetID.String(),
			Action:    string(audit.EventReciprocalEdgeWritten),
			BranchID:  task.BranchID.String(),
			Reason:    string(task.Edge.RelationType),
			RequestID: task.RequestID,
		})
	}
	return nil
}

func (a *Applier) count(outcome string) {
	if a.metrics != nil {
		a.metrics.IncrementReciprocalEdge(outcome)
	}
}
