// Package domain holds typed identifiers shared across modules.
//
// Each identifier is a distinct named type over uuid.UUID so a branch id can never
// be passed where a beneficiary id is expected.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "caredesk/pkg/domain-errors"
)

type (
	BranchID      uuid.UUID
	BeneficiaryID uuid.UUID
)

func NewBranchID() BranchID           { return BranchID(uuid.New()) }
func NewBeneficiaryID() BeneficiaryID { return BeneficiaryID(uuid.New()) }

func (id BranchID) String() string      { return uuid.UUID(id).String() }
func (id BeneficiaryID) String() string { return uuid.UUID(id).String() }

func (id BranchID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id BeneficiaryID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id BranchID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *BranchID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id BeneficiaryID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *BeneficiaryID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

// ParseBranchID parses a non-nil branch id.
func ParseBranchID(s string) (BranchID, error) {
	u, err := parseUUID(s, "branch id")
	return BranchID(u), err
}

// ParseBeneficiaryID parses a non-nil beneficiary id.
func ParseBeneficiaryID(s string) (BeneficiaryID, error) {
	u, err := parseUUID(s, "beneficiary id")
	return BeneficiaryID(u), err
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	if len(s) > 64 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is malformed")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is malformed")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" must not be nil")
	}
	return u, nil
}
