package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mdmc/internal/errs"
	"mdmc/internal/models"
	"mdmc/internal/store"
)

func TestCompareRequiresEveryBoundary(t *testing.T) {
	f := newFixture(t)
	admin := f.account(t, models.RoleAdmin, "admin@example.com")
	now := time.Now()

	_, err := f.reports.Compare(f.ctx, ComparisonParams{
		Metric: MetricLeads, Period1Start: &now, Period1End: &now, Period2Start: &now,
	}, admin)
	requireKind(t, err, errs.KindValidation)
	assert.Equal(t, "All period dates are required for comparison", err.Error())

	_, err = f.reports.Compare(f.ctx, ComparisonParams{
		Metric: "vibes", Period1Start: &now, Period1End: &now, Period2Start: &now, Period2End: &now,
	}, admin)
	requireKind(t, err, errs.KindValidation)
}

func TestCompareLeadCounts(t *testing.T) {
	f := newFixture(t)
	admin := f.account(t, models.RoleAdmin, "admin@example.com")
	f.lead(t, "a@example.com", "", 0)
	f.lead(t, "b@example.com", "", 0)

	now := time.Now()
	p1Start, p1End := now.Add(-72*time.Hour), now.Add(-48*time.Hour)
	p2Start, p2End := now.Add(-time.Hour), now.Add(time.Hour)

	c, err := f.reports.Compare(f.ctx, ComparisonParams{
		Metric: MetricLeads, Period1Start: &p1Start, Period1End: &p1End, Period2Start: &p2Start, Period2End: &p2End,
	}, admin)
	require.NoError(t, err)
	assert.Zero(t, c.Period1.Value)
	assert.Equal(t, 2.0, c.Period2.Value)
	assert.Equal(t, 2.0, c.Change.Absolute)
	assert.Zero(t, c.Change.Percentage)

	c, err = f.reports.Compare(f.ctx, ComparisonParams{
		Metric: MetricLeads, Period1Start: &p2Start, Period1End: &p2End, Period2Start: &p1Start, Period2End: &p1End,
	}, admin)
	require.NoError(t, err)
	assert.Equal(t, -100.0, c.Change.Percentage)
}

func TestLeadAnalyticsBucketsAndFunnel(t *testing.T) {
	f := newFixture(t)
	agent := f.account(t, models.RoleAgent, "agent@example.com")
	f.lead(t, "a@example.com", agent.ID, 10)
	f.lead(t, "b@example.com", agent.ID, 30)
	won := f.lead(t, "c@example.com", agent.ID, 60)
	f.lead(t, "d@example.com", "", 99)

	_, err := f.leads.Convert(f.ctx, won.ID, 500, agent)
	require.NoError(t, err)

	a, err := f.reports.LeadAnalytics(f.ctx, ReportParams{}, LeadFilters{}, agent)
	require.NoError(t, err)
	assert.EqualValues(t, 3, a.Total)
	assert.Equal(t, []ScoreBucket{
		{Range: "0-25", Count: 1},
		{Range: "26-50", Count: 1},
		{Range: "51-75", Count: 0},
		{Range: "76-100", Count: 1},
	}, a.ByScore)

	require.Len(t, a.Funnel, len(models.LeadStatuses))
	assert.Equal(t, models.LeadStatuses[0], a.Funnel[0].Status)
	for _, stage := range a.Funnel {
		switch stage.Status {
		case models.LeadStatusNew:
			assert.EqualValues(t, 2, stage.Count)
		case models.LeadStatusWon:
			assert.EqualValues(t, 1, stage.Count)
		default:
			assert.Zero(t, stage.Count, stage.Status)
		}
	}

	require.Len(t, a.Trend, 1)
	assert.EqualValues(t, 3, a.Trend[0].Count)
	assert.EqualValues(t, 1, a.Trend[0].Converted)

	_, err = f.reports.LeadAnalytics(f.ctx, ReportParams{GroupBy: "hour"}, LeadFilters{}, agent)
	requireKind(t, err, errs.KindValidation)
}

func TestDashboardScopesAgents(t *testing.T) {
	f := newFixture(t)
	admin := f.account(t, models.RoleAdmin, "admin@example.com")
	agent := f.account(t, models.RoleAgent, "agent@example.com")
	mine := f.lead(t, "mine@example.com", agent.ID, 40)
	f.lead(t, "other@example.com", "", 80)
	f.campaign(t, "Shared", admin.ID, agent.ID)
	f.campaign(t, "Hidden", admin.ID)

	_, err := f.leads.Convert(f.ctx, mine.ID, 100, agent)
	require.NoError(t, err)

	d, err := f.reports.Dashboard(f.ctx, ReportParams{}, agent)
	require.NoError(t, err)
	assert.EqualValues(t, 1, d.Leads.Total)
	assert.EqualValues(t, 1, d.Leads.New)
	assert.EqualValues(t, 1, d.Leads.Converted)
	assert.Equal(t, 100.0, d.Leads.ConversionRate)
	assert.EqualValues(t, 1, d.Campaigns.Total)

	d, err = f.reports.Dashboard(f.ctx, ReportParams{GroupBy: store.Month}, admin)
	require.NoError(t, err)
	assert.EqualValues(t, 2, d.Leads.Total)
	assert.Equal(t, 50.0, d.Leads.ConversionRate)
	assert.EqualValues(t, 2, d.Campaigns.Total)
	require.Len(t, d.Leads.Trend, 1)
	assert.Equal(t, store.Month.BucketKey(time.Now()), d.Leads.Trend[0].Key)
}

func TestRevenueUsesConversionDate(t *testing.T) {
	f := newFixture(t)
	admin := f.account(t, models.RoleAdmin, "admin@example.com")
	a := f.lead(t, "a@example.com", "", 0)
	b := f.lead(t, "b@example.com", "", 0)
	f.lead(t, "c@example.com", "", 0)

	_, err := f.leads.Convert(f.ctx, a.ID, 300, admin)
	require.NoError(t, err)
	_, err = f.leads.Convert(f.ctx, b.ID, 100, admin)
	require.NoError(t, err)

	r, err := f.reports.Revenue(f.ctx, ReportParams{}, admin)
	require.NoError(t, err)
	assert.Equal(t, 400.0, r.Leads.Total)
	assert.EqualValues(t, 2, r.Leads.Deals)
	assert.Equal(t, 200.0, r.Leads.AverageDealSize)
	require.Len(t, r.BySource, 1)
	assert.Equal(t, "website", r.BySource[0].Key)

	past := time.Now().Add(-48 * time.Hour)
	pastEnd := past.Add(time.Hour)
	r, err = f.reports.Revenue(f.ctx, ReportParams{DateRange: DateRange{From: &past, To: &pastEnd}}, admin)
	require.NoError(t, err)
	assert.Zero(t, r.Leads.Deals)

	end := past.Add(-time.Hour)
	_, err = f.reports.Revenue(f.ctx, ReportParams{DateRange: DateRange{From: &past, To: &end}}, admin)
	requireKind(t, err, errs.KindValidation)
}
