// Package reciprocal keeps family links symmetric: when a record declares a
// relative that resolved to another record, the inverse edge is written onto
// that record.
//
// Propagation is an at-least-once task. The Engine plans tasks and hands them to
// a Dispatcher; the Applier writes each edge through the store, whose edge
// uniqueness makes a repeated task a no-op.
package reciprocal

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"caredesk/internal/beneficiary/models"
	id "caredesk/pkg/domain"
	"caredesk/pkg/requestcontext"
)

// Task writes Edge onto the record TargetID.
type Task struct {
	TargetID  id.BeneficiaryID        `json:"targetId"`
	BranchID  id.BranchID             `json:"branchId"`
	Edge      models.RelationshipEdge `json:"edge"`
	RequestID string                  `json:"requestId,omitempty"`
}

// Plan derives one task per linked, operator-declared edge of b. The inverse
// edge names b and links back to it. Duplicate (target, relation) pairs collapse.
func Plan(b *models.Beneficiary) []Task {
	var tasks []Task
	seen := make(map[Task]struct{})
	for _, e := range b.LinkedEdges() {
		if *e.LinkedBeneficiaryID == b.ID {
			continue
		}
		self := b.ID
		task := Task{
			TargetID: *e.LinkedBeneficiaryID,
			BranchID: b.BranchID,
			Edge: models.RelationshipEdge{
				RelationType:        e.ReciprocalRelation(),
				RelativeName:        b.Name,
				RelativeCivilID:     b.CivilID,
				LinkedBeneficiaryID: &self,
				Reciprocal:          true,
			},
		}
		key := task
		key.Edge.LinkedBeneficiaryID = nil
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		tasks = append(tasks, task)
	}
	return tasks
}

// Dispatcher delivers tasks to an Applier, now or later.
type Dispatcher interface {
	Dispatch(ctx context.Context, tasks []Task) error
}

type Engine struct {
	dispatcher Dispatcher
	logger     *slog.Logger
	tracer     trace.Tracer
}

type EngineOption func(*Engine)

func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

func NewEngine(dispatcher Dispatcher, opts ...EngineOption) *Engine {
	e := &Engine{
		dispatcher: dispatcher,
		logger:     slog.Default(),
		tracer:     otel.Tracer("caredesk/beneficiary/reciprocal"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Propagate schedules the reciprocal edges of a newly written record. It never
// fails the caller: the record is already stored, so a dispatch failure is
// logged and left to reconciliation.
func (e *Engine) Propagate(ctx context.Context, b *models.Beneficiary) {
	tasks := Plan(b)
	if len(tasks) == 0 {
		return
	}
	ctx, span := e.tracer.Start(ctx, "reciprocal.Propagate", trace.WithAttributes(
		attribute.String("beneficiary.id", b.ID.String()),
		attribute.Int("reciprocal.tasks", len(tasks)),
	))
	defer span.End()

	requestID := requestcontext.RequestID(ctx)
	for i := range tasks {
		tasks[i].RequestID = requestID
	}

	if err := e.dispatcher.Dispatch(ctx, tasks); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dispatch failed")
		e.logger.ErrorContext(ctx, "reciprocal propagation failed",
			"request_id", requestID,
			"beneficiary_id", b.ID.String(),
			"tasks", len(tasks),
			"error", err,
		)
	}
}
