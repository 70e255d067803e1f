package models

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddRefreshTokenEvictsOldest(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := &Account{}
	for i := 0; i < 6; i++ {
		a.AddRefreshToken(RefreshToken{
			TokenHash: fmt.Sprintf("h%d", i),
			CreatedAt: now.Add(time.Duration(i) * time.Minute),
			ExpiresAt: now.Add(7 * 24 * time.Hour),
		})
	}

	require.Len(t, a.RefreshTokens, MaxRefreshTokens)
	assert.Equal(t, "h1", a.RefreshTokens[0].TokenHash)
	assert.Equal(t, "h5", a.RefreshTokens[4].TokenHash)
	assert.False(t, a.HasRefreshToken("h0", now))
}

func TestRefreshTokenLifecycle(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := &Account{}
	a.AddRefreshToken(RefreshToken{TokenHash: "live", CreatedAt: now, ExpiresAt: now.Add(time.Hour)})
	a.AddRefreshToken(RefreshToken{TokenHash: "stale", CreatedAt: now, ExpiresAt: now.Add(-time.Minute)})

	assert.True(t, a.HasRefreshToken("live", now))
	assert.False(t, a.HasRefreshToken("stale", now))

	assert.Equal(t, 1, a.PruneRefreshTokens(now))
	assert.Len(t, a.RefreshTokens, 1)

	assert.True(t, a.RemoveRefreshToken("live"))
	assert.False(t, a.RemoveRefreshToken("live"))
	assert.Empty(t, a.RefreshTokens)
}

func TestNormalizeRequiresCredential(t *testing.T) {
	a := &Account{Email: "  Artist@Example.COM ", Role: RoleAgent}
	assert.ErrorIs(t, a.Normalize(), ErrNoCredential)

	a.PasswordHash = "hash"
	require.NoError(t, a.Normalize())
	assert.Equal(t, "artist@example.com", a.Email)
	assert.ElementsMatch(t, PermissionsForRole(RoleAgent), a.Permissions)
	assert.Equal(t, "UTC", a.Timezone)

	empty := ""
	provider := &Account{Email: "g@example.com", GoogleID: &empty}
	assert.ErrorIs(t, provider.Normalize(), ErrNoCredential)

	gid := "google-123"
	provider.GoogleID = &gid
	assert.NoError(t, provider.Normalize())
}

func TestSetRoleResetsPermissions(t *testing.T) {
	a := &Account{Role: RoleViewer, Permissions: []Permission{PermSettingsRead}}
	a.SetRole(RoleManager)

	assert.Equal(t, RoleManager, a.Role)
	assert.ElementsMatch(t, PermissionsForRole(RoleManager), a.Permissions)
}

func TestRecordLoginAndTokens(t *testing.T) {
	now := time.Now()
	a := &Account{FirstName: "nina", LastName: "simone"}
	a.RecordLogin(now)
	a.RecordLogin(now)

	assert.Equal(t, 2, a.LoginCount)
	assert.Equal(t, now, *a.LastLogin)
	assert.Equal(t, "NS", a.Initials())
	assert.Equal(t, "nina simone", a.FullName())

	expires := now.Add(10 * time.Minute)
	a.PasswordResetHash = "abc"
	a.PasswordResetExpires = &expires
	assert.True(t, a.PasswordResetValid(now))
	assert.False(t, a.PasswordResetValid(expires.Add(time.Second)))
	a.ClearPasswordReset()
	assert.False(t, a.PasswordResetValid(now))
}

func TestAccountCloneIsDeep(t *testing.T) {
	a := &Account{Permissions: PermissionsForRole(RoleAgent)}
	a.AddRefreshToken(RefreshToken{TokenHash: "x"})

	cp := a.Clone()
	cp.Permissions[0] = PermSettingsWrite
	cp.RefreshTokens[0].TokenHash = "y"

	assert.Equal(t, PermLeadsRead, a.Permissions[0])
	assert.Equal(t, "x", a.RefreshTokens[0].TokenHash)
}
