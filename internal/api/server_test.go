package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mdmc/internal/access"
	"mdmc/internal/auth"
	"mdmc/internal/config"
	"mdmc/internal/models"
	"mdmc/internal/services"
	"mdmc/internal/store/memory"
)

type testServer struct {
	t      *testing.T
	srv    *Server
	stores *memory.Stores
	tokens *auth.Tokens
}

func newTestServer(t *testing.T, limiter access.RateLimiter) *testServer {
	t.Helper()
	cfg := config.LoadTestConfig()
	stores := memory.New()
	tokens := auth.NewTokens(cfg.JWT)
	if limiter == nil {
		limiter = access.NewMemoryLimiter(cfg.RateLimit.Max, cfg.RateLimit.Window)
	}
	srv, err := NewServer(Deps{
		Config: cfg,
		Services: services.NewRegistry(services.Stores{
			Accounts:  stores.Accounts,
			Leads:     stores.Leads,
			Campaigns: stores.Campaigns,
		}, tokens, nil),
		Authenticator: access.NewAuthenticator(stores.Accounts, tokens),
		Limiter:       limiter,
	})
	require.NoError(t, err)
	return &testServer{t: t, srv: srv, stores: stores, tokens: tokens}
}

// account stores an active account with role and returns a bearer header for it.
func (ts *testServer) account(role models.Role, email string) string {
	ts.t.Helper()
	a := &models.Account{
		FirstName:    "Test",
		LastName:     string(role),
		Email:        email,
		PasswordHash: "unused",
		IsActive:     true,
	}
	a.SetRole(role)
	require.NoError(ts.t, ts.stores.Accounts.Create(context.Background(), a))
	token, err := ts.tokens.IssueAccessToken(a.ID)
	require.NoError(ts.t, err)
	return "Bearer " + token
}

func (ts *testServer) do(method, path, bearer, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	ts.t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, bearer)
	}
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)

	var out map[string]interface{}
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(ts.t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestNewServerRequiresDependencies(t *testing.T) {
	_, err := NewServer(Deps{Config: config.LoadTestConfig()})
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	rec, body := ts.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
}

func TestRegisterThenProfile(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, body := ts.do(http.MethodPost, "/api/v1/auth/register", "", `{
		"firstName": "Ada", "lastName": "Lovelace",
		"email": "ada@example.com", "password": "Sup3r$ecret"
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["success"])

	data := body["data"].(map[string]interface{})
	tokens := data["tokens"].(map[string]interface{})
	accessToken := tokens["accessToken"].(string)
	require.NotEmpty(t, accessToken)

	rec, body = ts.do(http.MethodGet, "/api/v1/auth/profile", "Bearer "+accessToken, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	profile := body["data"].(map[string]interface{})
	assert.Equal(t, "ada@example.com", profile["email"])
	assert.Equal(t, "agent", profile["role"])

	rec, body = ts.do(http.MethodPost, "/api/v1/auth/register", "", `{
		"firstName": "Eve", "lastName": "Root",
		"email": "eve@example.com", "password": "Sup3r$ecret", "role": "admin"
	}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, false, body["success"])
}

func TestUnauthenticatedRequests(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{"missing header", "", "NO_TOKEN"},
		{"wrong scheme", "Basic abc", "INVALID_TOKEN"},
		{"garbage token", "Bearer not-a-jwt", "INVALID_TOKEN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := ts.do(http.MethodGet, "/api/v1/leads", tt.header, "")
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.code, body["code"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestDeactivatedAccountIsRejected(t *testing.T) {
	ts := newTestServer(t, nil)
	bearer := ts.account(models.RoleAgent, "gone@example.com")

	found, err := ts.stores.Accounts.FindBy(context.Background(), "email", "gone@example.com")
	require.NoError(t, err)
	_, err = ts.stores.Accounts.Mutate(context.Background(), found.ID, func(a *models.Account) error {
		a.IsActive = false
		return nil
	})
	require.NoError(t, err)

	rec, body := ts.do(http.MethodGet, "/api/v1/auth/profile", bearer, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "ACCOUNT_INACTIVE", body["code"])
}

func TestPermissionGates(t *testing.T) {
	ts := newTestServer(t, nil)
	viewer := ts.account(models.RoleViewer, "viewer@example.com")
	agent := ts.account(models.RoleAgent, "agent@example.com")
	admin := ts.account(models.RoleAdmin, "admin@example.com")

	rec, _ := ts.do(http.MethodGet, "/api/v1/leads", viewer, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body := ts.do(http.MethodPost, "/api/v1/leads", viewer, `{}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, false, body["success"])

	rec, _ = ts.do(http.MethodGet, "/api/v1/users", agent, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = ts.do(http.MethodGet, "/api/v1/users/stats", admin, "")
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestValidationErrorsListFields(t *testing.T) {
	ts := newTestServer(t, nil)
	agent := ts.account(models.RoleAgent, "agent@example.com")

	rec, body := ts.do(http.MethodPost, "/api/v1/leads", agent, `{"email": "not-an-email"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])

	fields := body["errors"].(map[string]interface{})
	assert.Contains(t, fields, "firstName")
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "source")
}

func TestCreateLeadEnvelope(t *testing.T) {
	ts := newTestServer(t, nil)
	agent := ts.account(models.RoleAgent, "agent@example.com")

	rec, body := ts.do(http.MethodPost, "/api/v1/leads", agent, `{
		"firstName": "Nina", "lastName": "Simone",
		"email": "nina@example.com", "source": "website"
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["success"])

	rec, body = ts.do(http.MethodGet, "/api/v1/leads?page=1&limit=10", agent, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["data"], 1)
	pagination := body["pagination"].(map[string]interface{})
	assert.EqualValues(t, 1, pagination["total"])
}

func TestBulkEndpointsTakeResourceIDKeys(t *testing.T) {
	ts := newTestServer(t, nil)
	admin := ts.account(models.RoleAdmin, "admin@example.com")
	ts.account(models.RoleAgent, "agent@example.com")
	ctx := context.Background()

	adminAccount, err := ts.stores.Accounts.FindBy(ctx, "email", "admin@example.com")
	require.NoError(t, err)
	agentAccount, err := ts.stores.Accounts.FindBy(ctx, "email", "agent@example.com")
	require.NoError(t, err)

	rec, body := ts.do(http.MethodPost, "/api/v1/leads", admin, `{
		"firstName": "Nina", "lastName": "Simone",
		"email": "nina@example.com", "source": "website"
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	leadID := body["data"].(map[string]interface{})["id"].(string)

	start := time.Now()
	campaign := &models.Campaign{
		Name:      "Spring push",
		Type:      "meta_ads",
		StartDate: start,
		EndDate:   start.Add(30 * 24 * time.Hour),
		ManagerID: adminAccount.ID,
		Budget:    models.CampaignBudget{Total: 1000},
	}
	require.NoError(t, ts.stores.Campaigns.Create(ctx, campaign))

	tests := []struct {
		name string
		path string
		body string
	}{
		{"leads", "/api/v1/leads/bulk", `{"leadIds":["` + leadID + `"],"updates":{"status":"contacted"}}`},
		{"campaigns", "/api/v1/campaigns/bulk", `{"campaignIds":["` + campaign.ID + `"],"updates":{"status":"paused"}}`},
		{"users", "/api/v1/users/bulk", `{"userIds":["` + agentAccount.ID + `"],"updates":{"isActive":false}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := ts.do(http.MethodPatch, tt.path, admin, tt.body)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, true, body["success"])
			assert.Len(t, body["data"], 1)
		})
	}

	rec, body = ts.do(http.MethodPatch, "/api/v1/leads/bulk", admin, `{"ids":["`+leadID+`"],"updates":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["errors"], "leadIds")
}

func TestAccountRateLimit(t *testing.T) {
	ts := newTestServer(t, access.NewMemoryLimiter(2, time.Minute))
	agent := ts.account(models.RoleAgent, "agent@example.com")

	for i := 0; i < 2; i++ {
		rec, _ := ts.do(http.MethodGet, "/api/v1/auth/check", agent, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec, body := ts.do(http.MethodGet, "/api/v1/auth/check", agent, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body["code"])
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderRetryAfter))
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	ts := newTestServer(t, nil)
	rec, body := ts.do(http.MethodGet, "/nowhere", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["message"])
}
