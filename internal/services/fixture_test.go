package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mdmc/internal/auth"
	"mdmc/internal/config"
	"mdmc/internal/errs"
	"mdmc/internal/models"
	"mdmc/internal/store/memory"
)

const testPassword = "Sup3r$ecret"

type fixture struct {
	ctx       context.Context
	stores    *memory.Stores
	tokens    *auth.Tokens
	auth      *AuthService
	accounts  *AccountService
	leads     *LeadService
	campaigns *CampaignService
	reports   *ReportService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	stores := memory.New()
	tokens := auth.NewTokens(config.LoadTestConfig().JWT)
	return &fixture{
		ctx:       context.Background(),
		stores:    stores,
		tokens:    tokens,
		auth:      NewAuthService(stores.Accounts, tokens, nil),
		accounts:  NewAccountService(stores.Accounts, stores.Leads, stores.Campaigns),
		leads:     NewLeadService(stores.Leads, stores.Accounts, stores.Campaigns),
		campaigns: NewCampaignService(stores.Campaigns, stores.Accounts, stores.Leads),
		reports:   NewReportService(stores.Leads, stores.Campaigns),
	}
}

// account inserts an active account straight into the store. The password
// hash is a placeholder; use register when a real login is needed.
func (f *fixture) account(t *testing.T, role models.Role, email string) *models.Account {
	t.Helper()
	a := &models.Account{
		FirstName:    "Test",
		LastName:     string(role),
		Email:        email,
		PasswordHash: "unused",
		IsActive:     true,
	}
	a.SetRole(role)
	require.NoError(t, f.stores.Accounts.Create(f.ctx, a))
	return a
}

func (f *fixture) register(t *testing.T, email string) *Session {
	t.Helper()
	session, err := f.auth.Register(f.ctx, RegisterInput{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     email,
		Password:  testPassword,
	})
	require.NoError(t, err)
	return session
}

func (f *fixture) lead(t *testing.T, email, assignee string, score int) *models.Lead {
	t.Helper()
	l := &models.Lead{
		FirstName:  "Lead",
		LastName:   "Person",
		Email:      email,
		Source:     "website",
		Score:      score,
		AssignedTo: assignee,
	}
	require.NoError(t, f.stores.Leads.Create(f.ctx, l))
	return l
}

func (f *fixture) campaign(t *testing.T, name, managerID string, team ...string) *models.Campaign {
	t.Helper()
	start := time.Now().Add(-24 * time.Hour)
	c := &models.Campaign{
		Name:      name,
		Type:      "meta_ads",
		StartDate: start,
		EndDate:   start.Add(30 * 24 * time.Hour),
		ManagerID: managerID,
		Budget:    models.CampaignBudget{Total: 1000},
	}
	for _, id := range team {
		c.Team = append(c.Team, models.TeamMember{AccountID: id, Role: models.TeamRoleAnalyst})
	}
	require.NoError(t, f.stores.Campaigns.Create(f.ctx, c))
	return c
}

func requireKind(t *testing.T, err error, kind errs.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, errs.KindOf(err), err.Error())
}
