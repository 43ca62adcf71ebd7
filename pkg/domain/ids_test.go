package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "findmyid/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// IDs must be valid, non-empty, non-nil UUIDs.
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseMatchID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseMatchID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseMatchID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		id, err := ParseMatchID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, MatchID(valid), id)
	})
}

func TestRoleCapabilities(t *testing.T) {
	assert.True(t, RolePlatformAdmin.Has(CapabilityEscalateVerification))
	assert.True(t, RolePlatformAdmin.Has(CapabilityModerateMatches))
	assert.False(t, RolePlatformAdmin.Has(CapabilityDecideVerification))

	assert.True(t, RolePublicAdmin.Has(CapabilityDecideVerification))
	assert.False(t, RolePublicAdmin.Has(CapabilityEscalateVerification))

	assert.False(t, RoleCitizen.Has(CapabilityDecideVerification))
	assert.False(t, RoleCitizen.Has(CapabilityModerateMatches))
}

func TestParseRole(t *testing.T) {
	for _, raw := range []string{"citizen", "public_admin", "platform_admin"} {
		role, ok := ParseRole(raw)
		assert.True(t, ok, raw)
		assert.True(t, role.Valid())
	}
	_, ok := ParseRole("superuser")
	assert.False(t, ok)
}
