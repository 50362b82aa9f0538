package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "caredesk/pkg/domain"
	dErrors "caredesk/pkg/domain-errors"
)

func TestCreateRequestValidate(t *testing.T) {
	req := CreateRequest{Code: "  hw ", Name: " Hawalli  "}
	require.NoError(t, req.Validate())
	assert.Equal(t, "hw", req.Code)
	assert.Equal(t, "Hawalli", req.Name)

	for _, bad := range []CreateRequest{{Name: "Hawalli"}, {Code: "HW", Name: "  "}} {
		err := bad.Validate()
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	}
}

func mustBranchID(t *testing.T, s string) id.BranchID {
	t.Helper()
	branchID, err := id.ParseBranchID(s)
	require.NoError(t, err)
	return branchID
}
