package service

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"caredesk/internal/actor"
	"caredesk/internal/beneficiary/models"
	branchmodels "caredesk/internal/branch/models"
	id "caredesk/pkg/domain"
	dErrors "caredesk/pkg/domain-errors"
	audit "caredesk/pkg/platform/audit"
	"caredesk/pkg/platform/sentinel"
	"caredesk/pkg/requestcontext"
)

// Failure reasons reported per branch.
const (
	reasonDuplicate = "internal number already exists in branch"
	reasonStorage   = "failed to store beneficiary"
	reasonCancelled = "replication cancelled before this branch was written"
)

// replicate clones profile into every active branch.
//
// Phases:
//  1. List active branches; none is an error
//  2. Check the internal number across all of them in one query; any hit
//     aborts the batch before a single write
//  3. Write each branch independently; a failed branch does not undo the others
func (s *Service) replicate(ctx context.Context, a actor.Context, profile models.Profile) (*CreateResult, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "beneficiary.Replicate", trace.WithAttributes(attrNumber(profile.InternalNumber)))
	defer span.End()

	branches, err := s.branches.ListActive(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list active branches")
	}
	if len(branches) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "no active branches")
	}
	span.SetAttributes(attribute.Int("replication.branches", len(branches)))

	release, err := s.lock(ctx, profile.InternalNumber)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.precheck(ctx, profile.InternalNumber, branches); err != nil {
		return nil, err
	}

	result := s.writeAll(ctx, a, branches, profile)
	span.SetAttributes(
		attribute.Int("replication.created", len(result.Created)),
		attribute.Int("replication.failed", len(result.Failed)),
	)

	if s.metrics != nil {
		s.metrics.IncrementCreated(ModeReplicated, len(result.Created))
		s.metrics.IncrementReplicationFailures(len(result.Failed))
		s.metrics.ObserveCreate(ModeReplicated, start)
	}

	if len(result.Created) == 0 {
		span.SetStatus(codes.Error, "no branch written")
		if err := ctx.Err(); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "replication cancelled")
		}
		return nil, dErrors.New(dErrors.CodeInternal, "replication failed in every branch")
	}
	for _, b := range result.Created {
		s.logAudit(ctx, a, audit.EventBeneficiaryReplicated, b, "")
	}
	if result.Partial() {
		s.logger.WarnContext(ctx, "replication partially failed",
			"request_id", requestcontext.RequestID(ctx),
			"internal_number", profile.InternalNumber,
			"created", len(result.Created),
			"failed", len(result.Failed),
		)
		s.logAudit(ctx, a, audit.EventReplicationPartialFailed, result.First(), failedNames(result.Failed))
	}
	return result, nil
}

// precheck rejects the batch when any branch already holds number, naming every
// such branch in name order.
func (s *Service) precheck(ctx context.Context, number string, branches []*branchmodels.Branch) error {
	ids := make([]id.BranchID, 0, len(branches))
	names := make(map[id.BranchID]string, len(branches))
	for _, b := range branches {
		ids = append(ids, b.ID)
		names[b.ID] = b.Name
	}
	existing, err := s.store.FindByInternalNumber(ctx, number, ids)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check internal number")
	}
	if len(existing) == 0 {
		return nil
	}
	var conflicting []string
	for _, b := range existing {
		name := names[b.BranchID]
		if name == "" {
			name = b.BranchName
		}
		conflicting = append(conflicting, name)
	}
	slices.Sort(conflicting)
	s.incrementConflict(ModeReplicated)
	return conflictError(number, slices.Compact(conflicting))
}

// writeAll writes one record per branch. With concurrency 1 branches are
// written in order; otherwise at most s.concurrency writes run at once. Either
// way a cancelled ctx stops branches that have not started.
func (s *Service) writeAll(ctx context.Context, a actor.Context, branches []*branchmodels.Branch, profile models.Profile) *CreateResult {
	created := make([]*models.Beneficiary, len(branches))
	failures := make([]*BranchFailure, len(branches))

	write := func(i int) {
		branch := branches[i]
		if ctx.Err() != nil {
			failures[i] = &BranchFailure{BranchID: branch.ID, BranchName: branch.Name, Reason: reasonCancelled}
			return
		}
		b, err := s.place(ctx, branch, profile)
		if err != nil {
			failures[i] = s.branchFailure(ctx, branch, err)
			return
		}
		created[i] = b
	}

	if s.concurrency <= 1 {
		for i := range branches {
			write(i)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(s.concurrency)
		for i := range branches {
			g.Go(func() error {
				write(i)
				return nil
			})
		}
		_ = g.Wait()
	}

	result := &CreateResult{Mode: ModeReplicated}
	for i := range branches {
		if created[i] != nil {
			result.Created = append(result.Created, created[i])
		}
		if failures[i] != nil {
			result.Failed = append(result.Failed, *failures[i])
		}
	}
	return result
}

func (s *Service) branchFailure(ctx context.Context, branch *branchmodels.Branch, err error) *BranchFailure {
	reason := reasonStorage
	if errors.Is(err, sentinel.ErrAlreadyUsed) {
		reason = reasonDuplicate
	}
	s.logger.ErrorContext(ctx, "replication write failed",
		"request_id", requestcontext.RequestID(ctx),
		"branch_id", branch.ID.String(),
		"branch_name", branch.Name,
		"error", err,
	)
	return &BranchFailure{BranchID: branch.ID, BranchName: branch.Name, Reason: reason}
}

// lock takes the batch lock for number. A lock held by another batch is a
// conflict; an unavailable lock backend is not, since the storage constraint
// still guards the writes.
func (s *Service) lock(ctx context.Context, number string) (func(), error) {
	release, err := s.locker.Lock(ctx, lockKey(number), s.lockTTL)
	if err == nil {
		return release, nil
	}
	if errors.Is(err, ErrLockHeld) {
		return nil, dErrors.Newf(dErrors.CodeConflict,
			"replication of internal number %s is already in progress", number)
	}
	s.logger.WarnContext(ctx, "replication lock unavailable, continuing without it",
		"request_id", requestcontext.RequestID(ctx),
		"internal_number", number,
		"error", err,
	)
	return func() {}, nil
}

func failedNames(failed []BranchFailure) string {
	names := make([]string, 0, len(failed))
	for _, f := range failed {
		names = append(names, f.BranchName)
	}
	return "failed branches: " + strings.Join(names, ", ")
}

func attrBranch(branchID id.BranchID) attribute.KeyValue {
	return attribute.String("branch.id", branchID.String())
}

func attrNumber(number string) attribute.KeyValue {
	return attribute.String("beneficiary.internal_number", number)
}
