package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{"nil slice", nil, nil},
		{"empty slice", []string{}, []string{}},
		{"civil ids with padding and repeats", []string{" 1234567890 ", "1234567890", "9876543210"}, []string{"1234567890", "9876543210"}},
		{"drops blanks", []string{"", "   ", "general"}, []string{"general"}},
		{"keeps first occurrence order", []string{"b", "a", "b"}, []string{"b", "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}
