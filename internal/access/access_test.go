package access

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mdmc/internal/auth"
	"mdmc/internal/config"
	"mdmc/internal/errs"
	"mdmc/internal/models"
	"mdmc/internal/store/memory"
)

func seedAccount(t *testing.T, accounts *memory.AccountStore, role models.Role, active bool) *models.Account {
	t.Helper()
	a := &models.Account{
		FirstName: "Test", LastName: string(role), Email: string(role) + "@example.com",
		PasswordHash: "hash", IsActive: active,
	}
	a.SetRole(role)
	require.NoError(t, accounts.Create(context.Background(), a))
	return a
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	accounts := memory.NewAccountStore()
	tokens := auth.NewTokens(config.LoadTestConfig().JWT)
	authn := NewAuthenticator(accounts, tokens)

	active := seedAccount(t, accounts, models.RoleAgent, true)
	inactive := seedAccount(t, accounts, models.RoleViewer, false)

	token, err := tokens.IssueAccessToken(active.ID)
	require.NoError(t, err)

	got, err := authn.Authenticate(ctx, "Bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, active.ID, got.ID)
	require.NotNil(t, got.LastActivity)

	stored, err := accounts.Get(ctx, active.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastActivity)

	_, err = authn.Authenticate(ctx, "")
	assert.Equal(t, errs.CodeNoToken, errs.CodeOf(err))

	_, err = authn.Authenticate(ctx, "Token "+token)
	assert.True(t, errs.Is(err, errs.KindUnauthorized))

	token, err = tokens.IssueAccessToken(inactive.ID)
	require.NoError(t, err)
	_, err = authn.Authenticate(ctx, "Bearer "+token)
	assert.Equal(t, errs.CodeAccountInactive, errs.CodeOf(err))

	token, err = tokens.IssueAccessToken("missing")
	require.NoError(t, err)
	_, err = authn.Authenticate(ctx, "Bearer "+token)
	assert.True(t, errs.Is(err, errs.KindUnauthorized))

	refresh, _, err := tokens.IssueRefreshToken(active.ID)
	require.NoError(t, err)
	_, err = authn.Authenticate(ctx, "Bearer "+refresh)
	assert.True(t, errs.Is(err, errs.KindUnauthorized))
}

func TestAuthenticateThrottlesActivityWrites(t *testing.T) {
	ctx := context.Background()
	accounts := memory.NewAccountStore()
	tokens := auth.NewTokens(config.LoadTestConfig().JWT)
	authn := NewAuthenticator(accounts, tokens)

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	authn.now = func() time.Time { return now }

	a := seedAccount(t, accounts, models.RoleAgent, true)
	token, err := tokens.IssueAccessToken(a.ID)
	require.NoError(t, err)

	_, err = authn.Authenticate(ctx, "Bearer "+token)
	require.NoError(t, err)
	first := now

	now = now.Add(ActivityInterval / 2)
	got, err := authn.Authenticate(ctx, "Bearer "+token)
	require.NoError(t, err)
	assert.True(t, got.LastActivity.Equal(first))
	stored, err := accounts.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, stored.LastActivity.Equal(first))

	now = now.Add(ActivityInterval)
	_, err = authn.Authenticate(ctx, "Bearer "+token)
	require.NoError(t, err)
	stored, err = accounts.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, stored.LastActivity.Equal(now))
}

func TestAdminPassesEveryRequirement(t *testing.T) {
	admin := &models.Account{Role: models.RoleAdmin}
	for _, p := range models.AllPermissions {
		assert.NoError(t, Authorize(admin, RequirePermission(p)))
	}
	assert.NoError(t, Authorize(admin, RequireRoles(models.RoleViewer)))
	assert.NoError(t, Authorize(admin, Requirement{Permission: "made.up", Roles: []models.Role{models.RoleAgent}}))
}

func TestAuthorize(t *testing.T) {
	agent := &models.Account{}
	agent.SetRole(models.RoleAgent)

	assert.NoError(t, Authorize(agent, RequirePermission(models.PermLeadsWrite)))
	assert.True(t, errs.Is(Authorize(agent, RequirePermission(models.PermLeadsDelete)), errs.KindForbidden))
	assert.NoError(t, Authorize(agent, RequireRoles(models.RoleAgent, models.RoleManager)))
	assert.True(t, errs.Is(Authorize(agent, RequireRoles(models.RoleManager)), errs.KindForbidden))
	assert.True(t, errs.Is(Authorize(agent, Requirement{Permission: models.PermLeadsRead, Roles: []models.Role{models.RoleManager}}), errs.KindForbidden))
	assert.True(t, errs.Is(Authorize(nil, RequirePermission(models.PermLeadsRead)), errs.KindUnauthorized))
}

func TestCheckOwnership(t *testing.T) {
	agent := &models.Account{Role: models.RoleAgent}
	agent.ID = "agent-1"

	assert.NoError(t, CheckOwnership(agent, "agent-1"))
	assert.True(t, errs.Is(CheckOwnership(agent, "agent-2"), errs.KindForbidden))
	assert.NoError(t, CheckOwnership(&models.Account{Role: models.RoleAdmin}, "agent-2"))
}

func TestMemoryLimiterSlidingWindow(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(3, time.Minute)
	l.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, "a")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 2-i, d.Remaining)
		clock = clock.Add(10 * time.Second)
	}

	d, err := l.Allow(ctx, "a")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 30*time.Second, d.RetryAfter)

	// Other keys have their own window.
	d, err = l.Allow(ctx, "b")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	// Once the first request slides out a slot frees up.
	clock = clock.Add(30 * time.Second)
	d, err = l.Allow(ctx, "a")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	clock = clock.Add(2 * time.Minute)
	l.Cleanup()
	assert.Empty(t, l.attempts)
}

func TestMemoryLimiterConcurrent(t *testing.T) {
	l := NewMemoryLimiter(50, time.Minute)
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := l.Allow(context.Background(), "k")
			if err == nil && d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}

func TestRedisLimiterKey(t *testing.T) {
	l := NewRedisLimiter(nil, 100, 15*time.Minute)
	assert.Equal(t, "rate_limit:account:acct-1", l.key("acct-1"))
}
