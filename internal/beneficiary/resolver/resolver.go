// Package resolver links declared relatives to existing beneficiary records in
// the same branch by civil id.
package resolver

import (
	"context"
	"fmt"

	"caredesk/internal/beneficiary/models"
	id "caredesk/pkg/domain"
	pstrings "caredesk/pkg/platform/strings"
)

// Finder is the one store query the resolver needs.
type Finder interface {
	FindByCivilIDs(ctx context.Context, branchID id.BranchID, civilIDs []string) ([]*models.Beneficiary, error)
}

type Resolver struct {
	finder Finder
}

func New(finder Finder) *Resolver {
	return &Resolver{finder: finder}
}

// Resolve returns a copy of edges where every relative whose civil id matches a
// record in branchID carries that record's id. Unmatched relatives stay as free
// text. Lookups never cross branches.
//
// Linking is advisory: on a lookup error the caller may keep the edges unresolved.
func (r *Resolver) Resolve(ctx context.Context, branchID id.BranchID, edges []models.RelationshipEdge) ([]models.RelationshipEdge, error) {
	return r.ResolveFor(ctx, branchID, id.BeneficiaryID{}, edges)
}

// ResolveFor is Resolve for an existing record: a relative matching self is
// left unlinked so a record never links to itself.
func (r *Resolver) ResolveFor(ctx context.Context, branchID id.BranchID, self id.BeneficiaryID, edges []models.RelationshipEdge) ([]models.RelationshipEdge, error) {
	out := make([]models.RelationshipEdge, len(edges))
	copy(out, edges)

	civilIDs := make([]string, 0, len(edges))
	for _, e := range edges {
		if !e.Reciprocal {
			civilIDs = append(civilIDs, e.RelativeCivilID)
		}
	}
	civilIDs = pstrings.DedupeAndTrim(civilIDs)
	if len(civilIDs) == 0 {
		return out, nil
	}

	matches, err := r.finder.FindByCivilIDs(ctx, branchID, civilIDs)
	if err != nil {
		return out, fmt.Errorf("resolve relatives: %w", err)
	}

	byCivilID := make(map[string]id.BeneficiaryID, len(matches))
	for _, m := range matches {
		if m.BranchID != branchID || m.ID == self {
			continue
		}
		if _, seen := byCivilID[m.CivilID]; !seen {
			byCivilID[m.CivilID] = m.ID
		}
	}

	for i, e := range out {
		if e.Reciprocal {
			continue
		}
		e.LinkedBeneficiaryID = nil
		if linked, ok := byCivilID[e.RelativeCivilID]; ok {
			e.LinkedBeneficiaryID = &linked
		}
		out[i] = e
	}
	return out, nil
}
