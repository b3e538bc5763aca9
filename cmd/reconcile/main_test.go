package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acadix/reconcile/internal/types"
)

func TestParseEntityType(t *testing.T) {
	tests := []struct {
		arg  string
		want types.EntityType
	}{
		{"person", types.EntityPerson},
		{"people", types.EntityPerson},
		{"section", types.EntitySection},
		{"schedules", types.EntitySection},
		{"room", types.EntitySpace},
		{"spaces", types.EntitySpace},
	}
	for _, tt := range tests {
		got, err := parseEntityType(tt.arg)
		require.NoError(t, err, tt.arg)
		assert.Equal(t, tt.want, got, tt.arg)
	}

	_, err := parseEntityType("course")
	assert.Error(t, err)
}

func TestFieldLinesSorted(t *testing.T) {
	lines := fieldLines(map[string]interface{}{
		"lastName":  "Smith",
		"email":     "jsmith@example.edu",
		"firstName": "John",
	})
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "email")
	assert.Contains(t, lines[1], "firstName")
	assert.Contains(t, lines[2], "lastName")
}
