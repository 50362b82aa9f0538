package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"caredesk/internal/beneficiary/models"
	id "caredesk/pkg/domain"
	"caredesk/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func newBeneficiary(t *testing.T, branchID id.BranchID, number, civilID string) *models.Beneficiary {
	b, err := models.NewBeneficiary(id.NewBeneficiaryID(), branchID, "Branch", models.Profile{
		Name:           "Test Person",
		InternalNumber: number,
		CivilID:        civilID,
		FamilyMembers:  1,
		Marital:        models.Unmarried{Status: models.MaritalSingle},
		Health:         models.Healthy{},
		Income:         decimal.Zero,
		Priority:       models.DefaultPriority,
		Category:       models.DefaultCategory,
		Status:         models.StatusActive,
		ListNames:      []string{models.DefaultListName},
	}, time.Now())
	require.NoError(t, err)
	return b
}

func (s *InMemoryStoreSuite) TestInsertAndFind() {
	branch := id.NewBranchID()
	b := newBeneficiary(s.T(), branch, "100", "1234567890")
	s.Require().NoError(s.store.Insert(s.ctx, b))

	s.Run("finds by id", func() {
		found, err := s.store.FindByID(s.ctx, b.ID)
		s.Require().NoError(err)
		s.Equal(b.InternalNumber, found.InternalNumber)
	})

	s.Run("returns ErrNotFound for unknown id", func() {
		_, err := s.store.FindByID(s.ctx, id.NewBeneficiaryID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returned records are copies", func() {
		found, err := s.store.FindByID(s.ctx, b.ID)
		s.Require().NoError(err)
		found.Name = "Mutated"
		again, err := s.store.FindByID(s.ctx, b.ID)
		s.Require().NoError(err)
		s.Equal("Test Person", again.Name)
	})
}

func (s *InMemoryStoreSuite) TestInternalNumberUniqueness() {
	branchA, branchB := id.NewBranchID(), id.NewBranchID()
	s.Require().NoError(s.store.Insert(s.ctx, newBeneficiary(s.T(), branchA, "7", "1111111111")))

	s.Run("rejects the same number in the same branch", func() {
		err := s.store.Insert(s.ctx, newBeneficiary(s.T(), branchA, "7", "2222222222"))
		s.ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("accepts the same number in another branch", func() {
		s.NoError(s.store.Insert(s.ctx, newBeneficiary(s.T(), branchB, "7", "1111111111")))
	})

	s.Run("finds the number across requested branches", func() {
		found, err := s.store.FindByInternalNumber(s.ctx, "7", []id.BranchID{branchA, branchB})
		s.Require().NoError(err)
		s.Len(found, 2)

		found, err = s.store.FindByInternalNumber(s.ctx, "7", []id.BranchID{branchB})
		s.Require().NoError(err)
		s.Require().Len(found, 1)
		s.Equal(branchB, found[0].BranchID)

		found, err = s.store.FindByInternalNumber(s.ctx, "7", nil)
		s.Require().NoError(err)
		s.Len(found, 2)
	})

	s.Run("update cannot take a number used in the branch", func() {
		other := newBeneficiary(s.T(), branchA, "8", "3333333333")
		s.Require().NoError(s.store.Insert(s.ctx, other))
		other.InternalNumber = "7"
		s.ErrorIs(s.store.Update(s.ctx, other), sentinel.ErrAlreadyUsed)
	})
}

func (s *InMemoryStoreSuite) TestFindByCivilIDsStaysInBranch() {
	branchA, branchB := id.NewBranchID(), id.NewBranchID()
	inA := newBeneficiary(s.T(), branchA, "1", "1000000001")
	inB := newBeneficiary(s.T(), branchB, "1", "1000000001")
	s.Require().NoError(s.store.Insert(s.ctx, inA))
	s.Require().NoError(s.store.Insert(s.ctx, inB))

	found, err := s.store.FindByCivilIDs(s.ctx, branchA, []string{"1000000001", "9999999999"})
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.Equal(inA.ID, found[0].ID)

	found, err = s.store.FindByCivilIDs(s.ctx, branchA, nil)
	s.Require().NoError(err)
	s.Empty(found)
}

func (s *InMemoryStoreSuite) TestListByBranches() {
	branchA, branchB := id.NewBranchID(), id.NewBranchID()
	first := newBeneficiary(s.T(), branchA, "1", "1000000001")
	second := newBeneficiary(s.T(), branchA, "2", "1000000002")
	third := newBeneficiary(s.T(), branchB, "3", "1000000003")
	for _, b := range []*models.Beneficiary{first, second, third} {
		s.Require().NoError(s.store.Insert(s.ctx, b))
	}

	all, err := s.store.ListByBranches(s.ctx, nil)
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal(third.ID, all[0].ID, "newest first")

	onlyA, err := s.store.ListByBranches(s.ctx, []id.BranchID{branchA})
	s.Require().NoError(err)
	s.Len(onlyA, 2)
}

func (s *InMemoryStoreSuite) TestAppendRelationshipIsIdempotent() {
	branch := id.NewBranchID()
	target := newBeneficiary(s.T(), branch, "1", "1000000001")
	s.Require().NoError(s.store.Insert(s.ctx, target))

	linked := id.NewBeneficiaryID()
	edge := models.RelationshipEdge{
		RelationType:        models.RelationChild,
		RelativeName:        "Child",
		LinkedBeneficiaryID: &linked,
		Reciprocal:          true,
	}

	appended, err := s.store.AppendRelationship(s.ctx, target.ID, edge)
	s.Require().NoError(err)
	s.True(appended)

	appended, err = s.store.AppendRelationship(s.ctx, target.ID, edge)
	s.Require().NoError(err)
	s.False(appended)

	found, err := s.store.FindByID(s.ctx, target.ID)
	s.Require().NoError(err)
	s.Len(found.Relationships, 1)

	_, err = s.store.AppendRelationship(s.ctx, id.NewBeneficiaryID(), edge)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestUpdateKeepsLateReciprocalEdges() {
	branch := id.NewBranchID()
	b := newBeneficiary(s.T(), branch, "1", "1000000001")
	s.Require().NoError(s.store.Insert(s.ctx, b))

	stale, err := s.store.FindByID(s.ctx, b.ID)
	s.Require().NoError(err)

	linked := id.NewBeneficiaryID()
	_, err = s.store.AppendRelationship(s.ctx, b.ID, models.RelationshipEdge{
		RelationType: models.RelationParent, RelativeName: "Parent", LinkedBeneficiaryID: &linked, Reciprocal: true,
	})
	s.Require().NoError(err)

	stale.Address = "New address line"
	s.Require().NoError(s.store.Update(s.ctx, stale))

	found, err := s.store.FindByID(s.ctx, b.ID)
	s.Require().NoError(err)
	s.Equal("New address line", found.Address)
	s.Require().Len(found.Relationships, 1)
	s.True(found.Relationships[0].Reciprocal)

	s.ErrorIs(s.store.Update(s.ctx, newBeneficiary(s.T(), branch, "99", "1000000099")), sentinel.ErrNotFound)
}
