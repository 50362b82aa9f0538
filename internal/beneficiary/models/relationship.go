package models

import (
	id "caredesk/pkg/domain"
)

// RelationType describes how a relative relates to the record holding the edge:
// an edge {father, X} on record R reads "X is R's father".
type RelationType string

const (
	RelationFather      RelationType = "father"
	RelationMother      RelationType = "mother"
	RelationSon         RelationType = "son"
	RelationDaughter    RelationType = "daughter"
	RelationBrother     RelationType = "brother"
	RelationSister      RelationType = "sister"
	RelationSpouse      RelationType = "spouse"
	RelationGrandfather RelationType = "grandfather"
	RelationGrandmother RelationType = "grandmother"
	RelationOther       RelationType = "other"

	// Gender-neutral types written as inverses when the relative's gender is unknown.
	RelationParent      RelationType = "parent"
	RelationChild       RelationType = "child"
	RelationSibling     RelationType = "sibling"
	RelationGrandparent RelationType = "grandparent"
	RelationGrandchild  RelationType = "grandchild"
)

var relationTypes = map[RelationType]struct{}{
	RelationFather: {}, RelationMother: {}, RelationSon: {}, RelationDaughter: {},
	RelationBrother: {}, RelationSister: {}, RelationSpouse: {}, RelationGrandfather: {},
	RelationGrandmother: {}, RelationOther: {}, RelationParent: {}, RelationChild: {},
	RelationSibling: {}, RelationGrandparent: {}, RelationGrandchild: {},
}

// ParseRelationType returns the relation and whether s was recognized.
// Unrecognized values map to RelationOther.
func ParseRelationType(s string) (RelationType, bool) {
	r := RelationType(normalizeEnum(s))
	if _, ok := relationTypes[r]; ok {
		return r, true
	}
	return RelationOther, false
}

// Inverse is the relation the linked relative holds towards the declaring
// record. Gendered relations invert to their gender-neutral counterpart.
func (r RelationType) Inverse() RelationType {
	switch r {
	case RelationFather, RelationMother, RelationParent:
		return RelationChild
	case RelationSon, RelationDaughter, RelationChild:
		return RelationParent
	case RelationBrother, RelationSister, RelationSibling:
		return RelationSibling
	case RelationSpouse:
		return RelationSpouse
	case RelationGrandfather, RelationGrandmother, RelationGrandparent:
		return RelationGrandchild
	case RelationGrandchild:
		return RelationGrandparent
	default:
		return RelationOther
	}
}

// RelationshipEdge links a record to a named relative and, when resolved, to the
// relative's own beneficiary record in the same branch.
type RelationshipEdge struct {
	RelationType RelationType `json:"relationType"`
	// InverseRelationType, when set by the operator, overrides RelationType.Inverse
	// for the reciprocal edge.
	InverseRelationType RelationType      `json:"inverseRelationType,omitempty"`
	RelativeName        string            `json:"relativeName"`
	RelativeCivilID     string            `json:"relativeCivilId,omitempty"`
	LinkedBeneficiaryID *id.BeneficiaryID `json:"linkedBeneficiaryId,omitempty"`
	// Reciprocal marks edges written by propagation rather than declared by an operator.
	Reciprocal bool `json:"reciprocal,omitempty"`
}

// IsLinked reports whether the edge resolved to another record.
func (e RelationshipEdge) IsLinked() bool {
	return e.LinkedBeneficiaryID != nil && !e.LinkedBeneficiaryID.IsNil()
}

// ReciprocalRelation is the relation to store on the linked relative's record.
func (e RelationshipEdge) ReciprocalRelation() RelationType {
	if e.InverseRelationType != "" {
		return e.InverseRelationType
	}
	return e.RelationType.Inverse()
}

// SameEdge reports whether two edges share the idempotency key
// (relation, linked record). Unlinked edges never match.
func (e RelationshipEdge) SameEdge(other RelationshipEdge) bool {
	if !e.IsLinked() || !other.IsLinked() {
		return false
	}
	return e.RelationType == other.RelationType && *e.LinkedBeneficiaryID == *other.LinkedBeneficiaryID
}
