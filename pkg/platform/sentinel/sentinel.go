package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (optionally wrapped) and
// services translate them into domain errors:
//   - ErrNotFound: record does not exist
//   - ErrAlreadyUsed: a uniqueness constraint rejected the write (internal number
//     within a branch, branch code)
//   - ErrInvalidState: record in the wrong state for the operation
//   - ErrUnavailable: backing service temporarily unavailable
//
// Validation failures do not belong here; use pkg/domain-errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
