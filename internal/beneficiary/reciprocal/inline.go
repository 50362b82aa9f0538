package reciprocal

import (
	"context"
	"errors"

	"caredesk/internal/beneficiary/metrics"
)

// TaskApplier applies a single task.
type TaskApplier interface {
	Apply(ctx context.Context, task Task) error
}

// InlineDispatcher applies tasks synchronously on the caller's goroutine.
type InlineDispatcher struct {
	applier TaskApplier
	metrics *metrics.Metrics
}

func NewInlineDispatcher(applier TaskApplier, m *metrics.Metrics) *InlineDispatcher {
	return &InlineDispatcher{applier: applier, metrics: m}
}

// Dispatch applies every task and joins the failures.
func (d *InlineDispatcher) Dispatch(ctx context.Context, tasks []Task) error {
	var errs []error
	for _, t := range tasks {
		if err := d.applier.Apply(ctx, t); err != nil {
			if d.metrics != nil {
				d.metrics.IncrementReciprocalEdge(metrics.EdgeFailed)
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
