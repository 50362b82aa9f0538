package models

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	id "caredesk/pkg/domain"
	dErrors "caredesk/pkg/domain-errors"
)

const (
	MinPriority     = 1
	MaxPriority     = 10
	DefaultPriority = 5
)

// Profile is the sanitized, branch-independent content of a beneficiary record.
// The sanitizer produces it; replication copies one Profile into every branch.
type Profile struct {
	Name           string
	InternalNumber string
	CivilID        string
	ContactPhone   string
	WhatsApp       string
	Address        string
	FamilyMembers  int
	Marital        MaritalState
	Income         decimal.Decimal
	RentalCost     decimal.Decimal
	HousingType    HousingType
	Employment     string
	Health         HealthState
	Children       []Child
	Relationships  []RelationshipEdge

	Priority       int
	PriorityManual bool
	Category       Category
	Status         Status
	StatusReason   string
	ListNames      []string

	ReceivesMonthlyAllowance bool
	MonthlyAllowanceAmount   decimal.Decimal
}

// Clone returns a deep copy so per-branch relationship resolution never aliases
// another branch's slices.
func (p Profile) Clone() Profile {
	out := p
	out.Children = slices.Clone(p.Children)
	out.ListNames = slices.Clone(p.ListNames)
	out.Relationships = make([]RelationshipEdge, len(p.Relationships))
	for i, e := range p.Relationships {
		if e.LinkedBeneficiaryID != nil {
			linked := *e.LinkedBeneficiaryID
			e.LinkedBeneficiaryID = &linked
		}
		out.Relationships[i] = e
	}
	return out
}

// IsMarried reports whether the profile carries a spouse.
func (p Profile) IsMarried() bool {
	_, ok := p.Marital.(Married)
	return ok
}

// Beneficiary is a household record owned by exactly one branch.
//
// Invariants:
//   - InternalNumber is unique among records sharing BranchID (enforced by the store)
//   - Priority is within [MinPriority, MaxPriority]
//   - A spouse exists only for Married, a certificate image only for Sick
//   - Every relationship has a relative name
type Beneficiary struct {
	ID         id.BeneficiaryID
	BranchID   id.BranchID
	BranchName string
	Profile
	StatusDate time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewBeneficiary places a sanitized profile in a branch.
func NewBeneficiary(beneficiaryID id.BeneficiaryID, branchID id.BranchID, branchName string, p Profile, now time.Time) (*Beneficiary, error) {
	if branchID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "beneficiary must belong to a branch")
	}
	if p.InternalNumber == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "internal number cannot be empty")
	}
	if p.Priority < MinPriority || p.Priority > MaxPriority {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "priority must be between 1 and 10")
	}
	for _, e := range p.Relationships {
		if e.RelativeName == "" {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "relationship requires a relative name")
		}
	}
	return &Beneficiary{
		ID:         beneficiaryID,
		BranchID:   branchID,
		BranchName: branchName,
		Profile:    p,
		StatusDate: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// ApplyEdit replaces the editable profile while keeping identity, ownership and
// the reciprocal edges other records wrote onto this one.
func (b *Beneficiary) ApplyEdit(p Profile, now time.Time) {
	var kept []RelationshipEdge
	for _, e := range b.Relationships {
		if e.Reciprocal && !containsEdge(p.Relationships, e) {
			kept = append(kept, e)
		}
	}
	if p.Status != b.Status {
		b.StatusDate = now
	}
	p.Relationships = append(p.Relationships, kept...)
	b.Profile = p
	b.UpdatedAt = now
}

// HasEdge reports whether an edge with the same idempotency key is present.
func (b *Beneficiary) HasEdge(edge RelationshipEdge) bool {
	return containsEdge(b.Relationships, edge)
}

// AppendEdge adds edge unless an equivalent one exists. It reports whether the
// record changed.
func (b *Beneficiary) AppendEdge(edge RelationshipEdge, now time.Time) bool {
	if b.HasEdge(edge) {
		return false
	}
	b.Relationships = append(b.Relationships, edge)
	b.UpdatedAt = now
	return true
}

// LinkedEdges returns the relationships that resolved to another record.
func (b *Beneficiary) LinkedEdges() []RelationshipEdge {
	var out []RelationshipEdge
	for _, e := range b.Relationships {
		if e.IsLinked() && !e.Reciprocal {
			out = append(out, e)
		}
	}
	return out
}

func containsEdge(edges []RelationshipEdge, edge RelationshipEdge) bool {
	return slices.ContainsFunc(edges, edge.SameEdge)
}
