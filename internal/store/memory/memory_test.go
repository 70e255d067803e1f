package memory

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mdmc/internal/models"
	"mdmc/internal/store"
)

func newLead(email, assignee string, score int) *models.Lead {
	return &models.Lead{
		FirstName: "Test", LastName: "Lead", Email: email,
		Source: "website", AssignedTo: assignee, Score: score,
	}
}

func TestCreateAssignsIDAndDerivedFields(t *testing.T) {
	ctx := context.Background()
	leads := NewLeadStore()

	l := newLead("Ada@Example.com", "", 85)
	require.NoError(t, leads.Create(ctx, l))

	assert.NotEmpty(t, l.ID)
	assert.False(t, l.CreatedAt.IsZero())
	assert.Equal(t, "ada@example.com", l.Email)
	assert.Equal(t, models.TemperatureHot, l.Temperature)

	got, err := leads.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, l.Email, got.Email)
}

func TestLeadEmailUniqueAmongLiveRows(t *testing.T) {
	ctx := context.Background()
	leads := NewLeadStore()

	first := newLead("dup@example.com", "", 0)
	require.NoError(t, leads.Create(ctx, first))
	assert.ErrorIs(t, leads.Create(ctx, newLead("DUP@example.com", "", 0)), store.ErrDuplicate)

	_, err := leads.Mutate(ctx, first.ID, func(l *models.Lead) error {
		l.SoftDelete("admin", time.Now())
		return nil
	})
	require.NoError(t, err)

	_, err = leads.Get(ctx, first.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, leads.Create(ctx, newLead("dup@example.com", "", 0)))
}

func TestListFiltersScopeSortAndPaging(t *testing.T) {
	ctx := context.Background()
	leads := NewLeadStore()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, spec := range []struct {
		email, owner string
		score        int
		tags         []string
	}{
		{"a@x.io", "agent-1", 10, []string{"vip"}},
		{"b@x.io", "agent-1", 70, nil},
		{"c@x.io", "agent-2", 90, []string{"rock"}},
		{"d@x.io", "", 40, []string{"vip", "rock"}},
	} {
		l := newLead(spec.email, spec.owner, spec.score)
		l.Tags = spec.tags
		l.CreatedAt = base.AddDate(0, 0, i)
		require.NoError(t, leads.Create(ctx, l))
	}

	all, total, err := leads.List(ctx, store.Query{})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Equal(t, "d@x.io", all[0].Email, "default sort is newest first")

	scoped, total, err := leads.List(ctx, store.Query{Scope: &store.Scope{AccountID: "agent-1"}})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	for _, l := range scoped {
		assert.Equal(t, "agent-1", l.AssignedTo)
	}

	tagged, _, err := leads.List(ctx, store.Query{Tags: []string{"vip"}, Sort: "score", Order: store.Asc})
	require.NoError(t, err)
	require.Len(t, tagged, 2)
	assert.Equal(t, "a@x.io", tagged[0].Email)

	minScore := 50.0
	hot, _, err := leads.List(ctx, store.Query{Numbers: []store.NumberRange{{Field: "score", Min: &minScore}}})
	require.NoError(t, err)
	assert.Len(t, hot, 2)

	page, total, err := leads.List(ctx, store.Query{Sort: "created_at", Order: store.Asc, Page: 2, Limit: 3})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	require.Len(t, page, 1)
	assert.Equal(t, "d@x.io", page[0].Email)

	beyond, total, err := leads.List(ctx, store.Query{Page: math.MaxInt, Limit: 100})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Empty(t, beyond)

	search, _, err := leads.List(ctx, store.Query{Search: "C@X", SearchFields: []string{"email", "first_name"}})
	require.NoError(t, err)
	require.Len(t, search, 1)
	assert.Equal(t, "c@x.io", search[0].Email)

	n, err := leads.Count(ctx, store.Query{NotIn: map[string][]string{"assigned_to": {"agent-1"}}})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestCampaignScopeIncludesTeam(t *testing.T) {
	ctx := context.Background()
	campaigns := NewCampaignStore()

	owned := &models.Campaign{Name: "Owned", Type: "meta_ads", ManagerID: "agent-1"}
	team := &models.Campaign{Name: "Team", Type: "meta_ads", ManagerID: "mgr",
		Team: []models.TeamMember{{AccountID: "agent-1", Role: models.TeamRoleAnalyst}}}
	other := &models.Campaign{Name: "Other", Type: "meta_ads", ManagerID: "mgr"}
	for _, c := range []*models.Campaign{owned, team, other} {
		require.NoError(t, campaigns.Create(ctx, c))
	}

	list, total, err := campaigns.List(ctx, store.Query{Scope: &store.Scope{AccountID: "agent-1"}})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	names := []string{list[0].Name, list[1].Name}
	assert.ElementsMatch(t, []string{"Owned", "Team"}, names)
}

func TestMutateIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	leads := NewLeadStore()

	l := newLead("m@x.io", "", 50)
	require.NoError(t, leads.Create(ctx, l))

	boom := errors.New("boom")
	_, err := leads.Mutate(ctx, l.ID, func(l *models.Lead) error {
		l.Score = 99
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := leads.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, got.Score)

	_, err = leads.Mutate(ctx, "missing", func(*models.Lead) error { return nil })
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMutateManyRollsBackOnMissingID(t *testing.T) {
	ctx := context.Background()
	leads := NewLeadStore()

	a := newLead("a@x.io", "", 0)
	b := newLead("b@x.io", "", 0)
	require.NoError(t, leads.Create(ctx, a))
	require.NoError(t, leads.Create(ctx, b))

	setWon := func(l *models.Lead) error {
		l.Status = models.LeadStatusWon
		return nil
	}
	_, err := leads.MutateMany(ctx, []string{a.ID, "missing", b.ID}, setWon)
	assert.ErrorIs(t, err, store.ErrNotFound)

	n, err := leads.Count(ctx, store.Query{}.Where("status", models.LeadStatusWon))
	require.NoError(t, err)
	assert.Zero(t, n)

	updated, err := leads.MutateMany(ctx, []string{a.ID, b.ID}, setWon)
	require.NoError(t, err)
	assert.Len(t, updated, 2)

	n, err = leads.Count(ctx, store.Query{}.Where("status", models.LeadStatusWon))
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestAggregate(t *testing.T) {
	ctx := context.Background()
	campaigns := NewCampaignStore()

	jan := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	for _, c := range []*models.Campaign{
		{Name: "a", Type: "meta_ads", Status: models.CampaignStatusActive, Budget: models.CampaignBudget{Spent: 100}, Metrics: models.CampaignMetrics{Revenue: 300}},
		{Name: "b", Type: "meta_ads", Status: models.CampaignStatusActive, Budget: models.CampaignBudget{Spent: 50}, Metrics: models.CampaignMetrics{Revenue: 50}},
		{Name: "c", Type: "tiktok_ads", Status: models.CampaignStatusPaused, Budget: models.CampaignBudget{Spent: 10}},
	} {
		c.CreatedAt = jan
		if c.Name == "c" {
			c.CreatedAt = feb
		}
		require.NoError(t, campaigns.Create(ctx, c))
	}

	totals, err := campaigns.Aggregate(ctx, store.Query{}, store.Aggregation{Sum: []string{"budget_spent", "metrics_revenue"}})
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.EqualValues(t, 3, totals[0].Count)
	assert.Equal(t, 160.0, totals[0].Sum["budget_spent"])
	assert.Equal(t, 350.0, totals[0].Sum["metrics_revenue"])

	byStatus, err := campaigns.Aggregate(ctx, store.Query{}, store.Aggregation{GroupBy: "status"})
	require.NoError(t, err)
	require.Len(t, byStatus, 2)
	assert.Equal(t, "active", byStatus[0].Key)
	assert.EqualValues(t, 2, byStatus[0].Count)

	byMonth, err := campaigns.Aggregate(ctx, store.Query{}, store.Aggregation{
		TimeField: "created_at", Granularity: store.Month, Avg: []string{"budget_spent"},
	})
	require.NoError(t, err)
	require.Len(t, byMonth, 2)
	assert.Equal(t, "2026-01", byMonth[0].Key)
	assert.Equal(t, 75.0, byMonth[0].Avg["budget_spent"])
	assert.Equal(t, "2026-02", byMonth[1].Key)

	empty, err := campaigns.Aggregate(ctx, store.Query{}.Where("status", "draft"), store.Aggregation{Sum: []string{"budget_spent"}})
	require.NoError(t, err)
	require.Len(t, empty, 1)
	assert.Zero(t, empty[0].Count)
}

func TestAccountFindByAndUniqueness(t *testing.T) {
	ctx := context.Background()
	accounts := NewAccountStore()

	gid := "google-1"
	a := &models.Account{FirstName: "A", LastName: "B", Email: "Owner@Example.com", PasswordHash: "x", Role: models.RoleAgent}
	g := &models.Account{FirstName: "G", LastName: "H", Email: "g@example.com", GoogleID: &gid, Role: models.RoleViewer}
	require.NoError(t, accounts.Create(ctx, a))
	require.NoError(t, accounts.Create(ctx, g))

	found, err := accounts.FindBy(ctx, store.ByEmail, " OWNER@example.com")
	require.NoError(t, err)
	assert.Equal(t, a.ID, found.ID)
	assert.Equal(t, models.PermissionsForRole(models.RoleAgent), []models.Permission(found.Permissions))

	found, err = accounts.FindBy(ctx, store.ByGoogleID, "google-1")
	require.NoError(t, err)
	assert.Equal(t, g.ID, found.ID)

	_, err = accounts.FindBy(ctx, store.ByResetHash, "")
	assert.ErrorIs(t, err, store.ErrNotFound)

	clash := &models.Account{FirstName: "C", LastName: "D", Email: "owner@example.com", PasswordHash: "y"}
	assert.ErrorIs(t, accounts.Create(ctx, clash), store.ErrDuplicate)

	noCred := &models.Account{FirstName: "N", LastName: "C", Email: "nc@example.com"}
	assert.ErrorIs(t, accounts.Create(ctx, noCred), models.ErrNoCredential)
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	ctx := context.Background()
	leads := NewLeadStore()

	l := newLead("copy@x.io", "", 0)
	l.Tags = []string{"one"}
	require.NoError(t, leads.Create(ctx, l))

	got, err := leads.Get(ctx, l.ID)
	require.NoError(t, err)
	got.Tags[0] = "changed"

	again, err := leads.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "one", again.Tags[0])
}
