package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "caredesk/pkg/domain"
	dErrors "caredesk/pkg/domain-errors"
)

func TestNewBranch(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("normalizes code and name", func(t *testing.T) {
		b, err := NewBranch(id.NewBranchID(), " kw-01 ", "  Hawalli ", now)
		require.NoError(t, err)
		assert.Equal(t, "KW-01", b.Code)
		assert.Equal(t, "Hawalli", b.Name)
		assert.True(t, b.IsActive())
		assert.Equal(t, now, b.CreatedAt)
	})

	tests := []struct {
		name string
		code string
		bn   string
	}{
		{"empty code", "", "Hawalli"},
		{"long code", strings.Repeat("x", 33), "Hawalli"},
		{"empty name", "KW", " "},
		{"long name", "KW", strings.Repeat("n", 129)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBranch(id.NewBranchID(), tt.code, tt.bn, now)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		})
	}
}

func TestBranchTransitions(t *testing.T) {
	now := time.Now()
	b, err := NewBranch(id.NewBranchID(), "KW", "Hawalli", now)
	require.NoError(t, err)

	require.Error(t, b.CanReactivate())
	require.NoError(t, b.CanDeactivate())

	later := now.Add(time.Hour)
	b.ApplyDeactivation(later)
	assert.False(t, b.IsActive())
	assert.Equal(t, later, b.UpdatedAt)
	require.Error(t, b.CanDeactivate())

	b.ApplyReactivation(later)
	assert.True(t, b.IsActive())
}
