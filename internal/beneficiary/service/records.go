package service

import (
	"context"
	"errors"

	"caredesk/internal/actor"
	"caredesk/internal/beneficiary/models"
	"caredesk/internal/beneficiary/sanitize"
	id "caredesk/pkg/domain"
	dErrors "caredesk/pkg/domain-errors"
	audit "caredesk/pkg/platform/audit"
	"caredesk/pkg/platform/sentinel"
	"caredesk/pkg/requestcontext"
)

// List returns the records visible to a. A staff actor sees their own branch;
// naming another branch is forbidden. A superadmin sees branchID when given and
// every branch otherwise.
func (s *Service) List(ctx context.Context, a actor.Context, branchID *id.BranchID) ([]*models.Beneficiary, error) {
	if !a.Authorized {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	var scope []id.BranchID
	switch {
	case a.SuperAdmin && branchID != nil:
		scope = []id.BranchID{*branchID}
	case a.SuperAdmin:
		scope = nil
	case !a.HasBranch():
		return nil, dErrors.New(dErrors.CodeForbidden, "actor has no branch")
	case branchID != nil && *branchID != a.BranchID:
		return nil, dErrors.New(dErrors.CodeForbidden, "cannot list another branch")
	default:
		scope = []id.BranchID{a.BranchID}
	}
	records, err := s.store.ListByBranches(ctx, scope)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list beneficiaries")
	}
	return records, nil
}

// Get returns one record under the same visibility rules as List.
func (s *Service) Get(ctx context.Context, a actor.Context, beneficiaryID id.BeneficiaryID) (*models.Beneficiary, error) {
	if !a.Authorized {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	b, err := s.load(ctx, beneficiaryID)
	if err != nil {
		return nil, err
	}
	if !a.CanAccessBranch(b.BranchID) {
		return nil, dErrors.New(dErrors.CodeForbidden, "beneficiary belongs to another branch")
	}
	return b, nil
}

// Update re-sanitizes an edited record, relinks its relatives within its
// branch and rescores it. Reciprocal edges written by other records survive
// the edit. Ownership never changes.
func (s *Service) Update(ctx context.Context, a actor.Context, beneficiaryID id.BeneficiaryID, raw sanitize.Raw) (*models.Beneficiary, error) {
	ctx, span := s.tracer.Start(ctx, "beneficiary.Update")
	defer span.End()

	existing, err := s.Get(ctx, a, beneficiaryID)
	if err != nil {
		return nil, err
	}
	profile, err := s.sanitize(ctx, raw)
	if err != nil {
		return nil, err
	}

	if profile.InternalNumber != existing.InternalNumber {
		holders, err := s.store.FindByInternalNumber(ctx, profile.InternalNumber, []id.BranchID{existing.BranchID})
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check internal number")
		}
		for _, h := range holders {
			if h.ID != existing.ID {
				return nil, conflictError(profile.InternalNumber, []string{existing.BranchName})
			}
		}
	}

	resolved, err := s.resolver.ResolveFor(ctx, existing.BranchID, existing.ID, profile.Relationships)
	if err != nil {
		s.logger.WarnContext(ctx, "relationship resolution failed, storing relatives unlinked",
			"request_id", requestcontext.RequestID(ctx),
			"beneficiary_id", existing.ID.String(),
			"error", err,
		)
	}
	profile.Relationships = resolved
	profile.Priority = score(profile)

	existing.ApplyEdit(profile, requestcontext.Now(ctx))
	if err := s.store.Update(ctx, existing); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrAlreadyUsed):
			return nil, conflictError(profile.InternalNumber, []string{existing.BranchName})
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "beneficiary not found")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update beneficiary")
		}
	}

	s.propagator.Propagate(ctx, existing)
	s.logAudit(ctx, a, audit.EventBeneficiaryUpdated, existing, "")
	return existing, nil
}

// PreviewPriority scores a possibly incomplete form with the sanitizer's
// coercions but without validation.
func (s *Service) PreviewPriority(_ context.Context, a actor.Context, raw sanitize.Raw) (int, error) {
	if !a.Authorized {
		return 0, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return score(sanitize.Coerce(raw)), nil
}

func (s *Service) load(ctx context.Context, beneficiaryID id.BeneficiaryID) (*models.Beneficiary, error) {
	b, err := s.store.FindByID(ctx, beneficiaryID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "beneficiary not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load beneficiary")
	}
	return b, nil
}
