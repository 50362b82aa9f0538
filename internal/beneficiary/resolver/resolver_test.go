package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caredesk/internal/beneficiary/models"
	id "caredesk/pkg/domain"
)

type stubFinder struct {
	records []*models.Beneficiary
	calls   [][]string
	err     error
}

func (f *stubFinder) FindByCivilIDs(_ context.Context, branchID id.BranchID, civilIDs []string) ([]*models.Beneficiary, error) {
	f.calls = append(f.calls, civilIDs)
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.Beneficiary
	for _, r := range f.records {
		for _, c := range civilIDs {
			if r.BranchID == branchID && r.CivilID == c {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func record(branchID id.BranchID, civilID string) *models.Beneficiary {
	return &models.Beneficiary{
		ID:       id.NewBeneficiaryID(),
		BranchID: branchID,
		Profile:  models.Profile{CivilID: civilID},
	}
}

func TestResolveLinksMatchesInOneQuery(t *testing.T) {
	branch := id.NewBranchID()
	father := record(branch, "1000000001")
	finder := &stubFinder{records: []*models.Beneficiary{father}}

	edges := []models.RelationshipEdge{
		{RelationType: models.RelationFather, RelativeName: "Father", RelativeCivilID: "1000000001"},
		{RelationType: models.RelationSibling, RelativeName: "Sibling", RelativeCivilID: "1000000001"},
		{RelationType: models.RelationOther, RelativeName: "Neighbour"},
	}
	out, err := New(finder).Resolve(context.Background(), branch, edges)
	require.NoError(t, err)

	require.Len(t, finder.calls, 1)
	assert.Equal(t, []string{"1000000001"}, finder.calls[0], "civil ids are deduped and empties dropped")
	require.NotNil(t, out[0].LinkedBeneficiaryID)
	assert.Equal(t, father.ID, *out[0].LinkedBeneficiaryID)
	assert.Equal(t, father.ID, *out[1].LinkedBeneficiaryID)
	assert.Nil(t, out[2].LinkedBeneficiaryID)
	assert.Nil(t, edges[0].LinkedBeneficiaryID, "input edges are not modified")
}

func TestResolveUnmatchedRelativeStaysUnlinked(t *testing.T) {
	branch := id.NewBranchID()
	finder := &stubFinder{}
	edges := []models.RelationshipEdge{
		{RelationType: models.RelationMother, RelativeName: "Unknown", RelativeCivilID: "9999999999"},
	}
	out, err := New(finder).Resolve(context.Background(), branch, edges)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.False(t, out[0].IsLinked())
	assert.Equal(t, "Unknown", out[0].RelativeName)
}

func TestResolveNeverCrossesBranches(t *testing.T) {
	branchA, branchB := id.NewBranchID(), id.NewBranchID()
	finder := &stubFinder{records: []*models.Beneficiary{record(branchB, "1000000001")}}
	edges := []models.RelationshipEdge{{RelationType: models.RelationFather, RelativeName: "F", RelativeCivilID: "1000000001"}}

	out, err := New(finder).Resolve(context.Background(), branchA, edges)
	require.NoError(t, err)
	assert.False(t, out[0].IsLinked())
}

func TestResolveForSkipsSelf(t *testing.T) {
	branch := id.NewBranchID()
	self := record(branch, "1000000001")
	finder := &stubFinder{records: []*models.Beneficiary{self}}
	edges := []models.RelationshipEdge{{RelationType: models.RelationBrother, RelativeName: "Me", RelativeCivilID: "1000000001"}}

	out, err := New(finder).ResolveFor(context.Background(), branch, self.ID, edges)
	require.NoError(t, err)
	assert.False(t, out[0].IsLinked())
}

func TestResolveKeepsReciprocalEdges(t *testing.T) {
	branch := id.NewBranchID()
	linked := id.NewBeneficiaryID()
	finder := &stubFinder{}
	edges := []models.RelationshipEdge{{RelationType: models.RelationChild, RelativeName: "C", LinkedBeneficiaryID: &linked, Reciprocal: true}}

	out, err := New(finder).Resolve(context.Background(), branch, edges)
	require.NoError(t, err)
	assert.Empty(t, finder.calls, "no lookup when nothing needs resolving")
	assert.Equal(t, linked, *out[0].LinkedBeneficiaryID)
}

func TestResolveLookupFailureReturnsUnresolvedEdges(t *testing.T) {
	finder := &stubFinder{err: errors.New("connection refused")}
	edges := []models.RelationshipEdge{{RelationType: models.RelationFather, RelativeName: "F", RelativeCivilID: "1000000001"}}

	out, err := New(finder).Resolve(context.Background(), id.NewBranchID(), edges)
	require.Error(t, err)
	require.Len(t, out, 1)
	assert.False(t, out[0].IsLinked())
}
