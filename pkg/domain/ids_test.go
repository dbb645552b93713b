package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "usersapi/pkg/domain-errors"
)

func TestParseUserID(t *testing.T) {
	t.Run("valid uuid", func(t *testing.T) {
		raw := uuid.NewString()
		got, err := ParseUserID(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, got.String())
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ParseUserID("")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := ParseUserID("not-a-uuid")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestIdentityValid(t *testing.T) {
	assert.True(t, Identity{ID: NewUserID(), Email: "a@example.com"}.Valid())
	assert.False(t, Identity{ID: NewUserID(), Email: "  "}.Valid())
	assert.False(t, Identity{Email: "a@example.com"}.Valid())
}
