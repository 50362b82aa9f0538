package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "caredesk/pkg/domain"
	dErrors "caredesk/pkg/domain-errors"
)

func linkedEdge(rel RelationType, target id.BeneficiaryID) RelationshipEdge {
	return RelationshipEdge{RelationType: rel, RelativeName: "Relative", LinkedBeneficiaryID: &target}
}

func validProfile() Profile {
	return Profile{
		Name:           "Amal Hassan",
		InternalNumber: "1001",
		CivilID:        "2870112345",
		ContactPhone:   "96550001234",
		Address:        "Block 4, Street 12",
		FamilyMembers:  3,
		Marital:        Unmarried{Status: MaritalWidowed},
		Health:         Healthy{},
		Priority:       DefaultPriority,
		Category:       CategoryC,
		Status:         StatusActive,
		ListNames:      []string{DefaultListName},
	}
}

func TestRelationInverse(t *testing.T) {
	tests := map[RelationType]RelationType{
		RelationFather:      RelationChild,
		RelationMother:      RelationChild,
		RelationSon:         RelationParent,
		RelationDaughter:    RelationParent,
		RelationBrother:     RelationSibling,
		RelationSister:      RelationSibling,
		RelationSpouse:      RelationSpouse,
		RelationGrandfather: RelationGrandchild,
		RelationGrandmother: RelationGrandchild,
		RelationGrandchild:  RelationGrandparent,
		RelationOther:       RelationOther,
	}
	for rel, want := range tests {
		assert.Equal(t, want, rel.Inverse(), "inverse of %s", rel)
	}

	t.Run("explicit inverse wins", func(t *testing.T) {
		e := RelationshipEdge{RelationType: RelationFather, InverseRelationType: RelationDaughter}
		assert.Equal(t, RelationDaughter, e.ReciprocalRelation())
	})

	t.Run("unknown relation parses as other", func(t *testing.T) {
		rel, ok := ParseRelationType("cousin")
		assert.False(t, ok)
		assert.Equal(t, RelationOther, rel)

		rel, ok = ParseRelationType(" Father ")
		assert.True(t, ok)
		assert.Equal(t, RelationFather, rel)
	})
}

func TestNewBeneficiaryInvariants(t *testing.T) {
	now := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)

	t.Run("requires a branch", func(t *testing.T) {
		_, err := NewBeneficiary(id.NewBeneficiaryID(), id.BranchID{}, "", validProfile(), now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("rejects out of range priority", func(t *testing.T) {
		p := validProfile()
		p.Priority = 11
		_, err := NewBeneficiary(id.NewBeneficiaryID(), id.NewBranchID(), "North", p, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("stamps timestamps", func(t *testing.T) {
		b, err := NewBeneficiary(id.NewBeneficiaryID(), id.NewBranchID(), "North", validProfile(), now)
		require.NoError(t, err)
		assert.Equal(t, now, b.CreatedAt)
		assert.Equal(t, now, b.StatusDate)
	})
}

func TestAppendEdgeIsIdempotent(t *testing.T) {
	now := time.Now()
	b, err := NewBeneficiary(id.NewBeneficiaryID(), id.NewBranchID(), "North", validProfile(), now)
	require.NoError(t, err)

	target := id.NewBeneficiaryID()
	edge := linkedEdge(RelationChild, target)
	edge.Reciprocal = true

	assert.True(t, b.AppendEdge(edge, now))
	assert.False(t, b.AppendEdge(edge, now))
	assert.Len(t, b.Relationships, 1)

	other := linkedEdge(RelationSibling, target)
	assert.True(t, b.AppendEdge(other, now), "different relation is a different key")
}

func TestApplyEditKeepsReciprocalEdges(t *testing.T) {
	now := time.Now()
	b, err := NewBeneficiary(id.NewBeneficiaryID(), id.NewBranchID(), "North", validProfile(), now)
	require.NoError(t, err)

	reciprocal := linkedEdge(RelationChild, id.NewBeneficiaryID())
	reciprocal.Reciprocal = true
	b.AppendEdge(reciprocal, now)

	edited := validProfile()
	edited.Status = StatusPending
	edited.Relationships = []RelationshipEdge{{RelationType: RelationOther, RelativeName: "Neighbour"}}
	later := now.Add(time.Hour)
	b.ApplyEdit(edited, later)

	require.Len(t, b.Relationships, 2)
	assert.True(t, b.HasEdge(reciprocal))
	assert.Equal(t, later, b.StatusDate, "status change moves the status date")
	assert.Empty(t, b.LinkedEdges(), "reciprocal edges are not re-propagated")
}

func TestDocumentCollapsesSumTypes(t *testing.T) {
	p := validProfile()
	p.Marital = Married{Spouse: Spouse{Name: "Omar", Income: decimal.NewFromInt(150), Health: Sick{CertificationImage: "img/1.png"}}}
	p.Health = Sick{CertificationImage: "img/2.png"}
	p.Children = []Child{
		{Name: "Sara", Marital: Married{Spouse: Spouse{Name: "Ali", Health: Healthy{}}}, Health: Healthy{}},
		{Name: "Yousef", Marital: Unmarried{Status: MaritalSingle}, Health: Sick{}},
	}
	b, err := NewBeneficiary(id.NewBeneficiaryID(), id.NewBranchID(), "North", p, time.Now().UTC())
	require.NoError(t, err)

	raw, err := json.Marshal(b)
	require.NoError(t, err)

	var flat map[string]any
	require.NoError(t, json.Unmarshal(raw, &flat))
	assert.Equal(t, "married", flat["maritalStatus"])
	assert.Equal(t, "sick", flat["healthStatus"])
	assert.Equal(t, "img/2.png", flat["healthCertificationImage"])

	var decoded Beneficiary
	require.NoError(t, json.Unmarshal(raw, &decoded))
	spouse, ok := SpouseOf(decoded.Marital)
	require.True(t, ok)
	assert.Equal(t, "Omar", spouse.Name)
	assert.Equal(t, "img/1.png", CertificationImageOf(spouse.Health))
	assert.True(t, decoded.Children[0].Marital.MaritalStatus() == MaritalMarried)
	assert.True(t, IsSick(decoded.Children[1].Health))
}

func TestDocumentDropsSpouseForUnmarried(t *testing.T) {
	raw := []byte(`{"maritalStatus":"divorced","spouse":{"name":"Ghost"},"healthStatus":"healthy","healthCertificationImage":"x.png"}`)
	var b Beneficiary
	require.NoError(t, json.Unmarshal(raw, &b))
	_, married := SpouseOf(b.Marital)
	assert.False(t, married)
	assert.Equal(t, "", CertificationImageOf(b.Health))

	doc := b.ToDocument()
	assert.Nil(t, doc.Spouse)
	assert.Equal(t, CategoryC, doc.Category, "category defaults to C")
}
