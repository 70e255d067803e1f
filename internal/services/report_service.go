package services

import (
	"context"
	"time"

	"mdmc/internal/errs"
	"mdmc/internal/models"
	"mdmc/internal/store"
	"mdmc/internal/utils/logger"
)

// ReportParams scopes a report to a date range and picks the trend bucket size.
type ReportParams struct {
	DateRange
	GroupBy store.Granularity `query:"groupBy"`
}

func (p ReportParams) granularity() (store.Granularity, error) {
	if p.GroupBy == "" {
		return store.Day, nil
	}
	if !p.GroupBy.Valid() {
		return "", errs.Validation("groupBy must be day, week or month")
	}
	return p.GroupBy, nil
}

type Dashboard struct {
	Leads struct {
		Total          int64         `json:"total"`
		New            int64         `json:"new"`
		Converted      int64         `json:"converted"`
		ConversionRate float64       `json:"conversionRate"`
		AverageScore   float64       `json:"averageScore"`
		ByStatus       []store.Group `json:"byStatus"`
		BySource       []store.Group `json:"bySource"`
		Trend          []store.Group `json:"trend"`
		Recent         []models.Lead `json:"recent"`
	} `json:"leads"`
	Campaigns struct {
		Total        int64         `json:"total"`
		Active       int64         `json:"active"`
		ByStatus     []store.Group `json:"byStatus"`
		ByType       []store.Group `json:"byType"`
		TotalSpent   float64       `json:"totalSpent"`
		TotalRevenue float64       `json:"totalRevenue"`
	} `json:"campaigns"`
}

type TrendPoint struct {
	Key       string  `json:"key"`
	Count     int64   `json:"count"`
	Converted int64   `json:"converted"`
	AvgScore  float64 `json:"avgScore"`
}

type ScoreBucket struct {
	Range string `json:"range"`
	Count int64  `json:"count"`
}

type FunnelStage struct {
	Status models.LeadStatus `json:"status"`
	Count  int64             `json:"count"`
}

type LeadAnalytics struct {
	Total    int64         `json:"totalLeads"`
	ByStatus []store.Group `json:"byStatus"`
	BySource []store.Group `json:"bySource"`
	ByGenre  []store.Group `json:"byGenre"`
	ByScore  []ScoreBucket `json:"byScore"`
	Funnel   []FunnelStage `json:"funnel"`
	Trend    []TrendPoint  `json:"trends"`
}

type CampaignTotals struct {
	Budget      float64 `json:"totalBudget"`
	Spent       float64 `json:"totalSpent"`
	Revenue     float64 `json:"totalRevenue"`
	Impressions float64 `json:"totalImpressions"`
	Clicks      float64 `json:"totalClicks"`
	Conversions float64 `json:"totalConversions"`
}

type TypePerformance struct {
	Type        string  `json:"type"`
	Count       int64   `json:"count"`
	Spent       float64 `json:"spent"`
	Revenue     float64 `json:"revenue"`
	AverageCTR  float64 `json:"avgCtr"`
	AverageROAS float64 `json:"avgRoas"`
}

type CampaignAnalytics struct {
	Total             int64             `json:"totalCampaigns"`
	ByStatus          []store.Group     `json:"byStatus"`
	ByType            []store.Group     `json:"byType"`
	Totals            CampaignTotals    `json:"totals"`
	ByTypePerformance []TypePerformance `json:"performanceByType"`
	Trend             []store.Group     `json:"trends"`
}

type RevenueReport struct {
	Leads struct {
		Total           float64 `json:"totalRevenue"`
		Deals           int64   `json:"deals"`
		AverageDealSize float64 `json:"averageDealSize"`
	} `json:"leadRevenue"`
	Campaigns struct {
		Revenue     float64 `json:"totalRevenue"`
		Spent       float64 `json:"totalSpent"`
		AverageROAS float64 `json:"averageRoas"`
	} `json:"campaignRevenue"`
	BySource []store.Group `json:"bySource"`
	ByType   []store.Group `json:"byType"`
	Trend    []store.Group `json:"trends"`
}

// Comparison metrics.
const (
	MetricRevenue     = "revenue"
	MetricLeads       = "leads"
	MetricCampaigns   = "campaigns"
	MetricConversions = "conversions"
)

type ComparisonParams struct {
	Metric       string     `query:"metric"`
	Period1Start *time.Time
	Period1End   *time.Time
	Period2Start *time.Time
	Period2End   *time.Time
}

type PeriodValue struct {
	Start   time.Time          `json:"start"`
	End     time.Time          `json:"end"`
	Value   float64            `json:"value"`
	Details map[string]float64 `json:"details"`
}

type Comparison struct {
	Metric  string      `json:"metric"`
	Period1 PeriodValue `json:"period1"`
	Period2 PeriodValue `json:"period2"`
	Change  struct {
		Absolute   float64 `json:"absolute"`
		Percentage float64 `json:"percentage"`
	} `json:"change"`
}

// ReportService aggregates leads and campaigns under the same role scoping
// as the repositories.
type ReportService struct {
	leads     store.LeadStore
	campaigns store.CampaignStore
	now       func() time.Time
	log       *logger.Logger
}

func NewReportService(leads store.LeadStore, campaigns store.CampaignStore) *ReportService {
	return &ReportService{
		leads:     leads,
		campaigns: campaigns,
		now:       time.Now,
		log:       logger.New("REPORTS"),
	}
}

func (s *ReportService) leadGroups(ctx context.Context, q store.Query, agg store.Aggregation) ([]store.Group, error) {
	groups, err := s.leads.Aggregate(ctx, q, agg)
	if err != nil {
		return nil, storeError(s.log, err, "Lead")
	}
	return groups, nil
}

func (s *ReportService) campaignGroups(ctx context.Context, q store.Query, agg store.Aggregation) ([]store.Group, error) {
	groups, err := s.campaigns.Aggregate(ctx, q, agg)
	if err != nil {
		return nil, storeError(s.log, err, "Campaign")
	}
	return groups, nil
}

func (s *ReportService) scoped(actor *models.Account, r DateRange, field string) store.Query {
	return store.Query{Scope: scopeFor(actor)}.Between(field, r.From, r.To)
}

func (s *ReportService) Dashboard(ctx context.Context, p ReportParams, actor *models.Account) (*Dashboard, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	g, err := p.granularity()
	if err != nil {
		return nil, err
	}
	leadQ := s.scoped(actor, p.DateRange, "created_at")
	campaignQ := s.scoped(actor, p.DateRange, "created_at")
	d := &Dashboard{}

	totals, err := s.leadGroups(ctx, leadQ, store.Aggregation{Avg: []string{"score"}})
	if err != nil {
		return nil, err
	}
	d.Leads.Total = totals[0].Count
	d.Leads.AverageScore = totals[0].Avg["score"]

	since := s.now().AddDate(0, 0, -30)
	if p.From != nil {
		since = *p.From
	}
	newQ := store.Query{Scope: scopeFor(actor)}.Between("created_at", &since, p.To)
	if d.Leads.New, err = s.leads.Count(ctx, newQ); err != nil {
		return nil, storeError(s.log, err, "Lead")
	}
	if d.Leads.Converted, err = s.leads.Count(ctx, leadQ.Where("status", string(models.LeadStatusWon))); err != nil {
		return nil, storeError(s.log, err, "Lead")
	}
	d.Leads.ConversionRate = ratio(float64(d.Leads.Converted), float64(d.Leads.Total)) * 100
	if d.Leads.ByStatus, err = s.leadGroups(ctx, leadQ, store.Aggregation{GroupBy: "status"}); err != nil {
		return nil, err
	}
	if d.Leads.BySource, err = s.leadGroups(ctx, leadQ, store.Aggregation{GroupBy: "source"}); err != nil {
		return nil, err
	}
	if d.Leads.Trend, err = s.leadGroups(ctx, leadQ, store.Aggregation{TimeField: "created_at", Granularity: g}); err != nil {
		return nil, err
	}
	recent := leadQ
	recent.Limit = 5
	if d.Leads.Recent, _, err = s.leads.List(ctx, recent); err != nil {
		return nil, storeError(s.log, err, "Lead")
	}

	ctotals, err := s.campaignGroups(ctx, campaignQ, store.Aggregation{Sum: []string{"budget_spent", "metrics_revenue"}})
	if err != nil {
		return nil, err
	}
	d.Campaigns.Total = ctotals[0].Count
	d.Campaigns.TotalSpent = ctotals[0].Sum["budget_spent"]
	d.Campaigns.TotalRevenue = ctotals[0].Sum["metrics_revenue"]
	if d.Campaigns.Active, err = s.campaigns.Count(ctx, campaignQ.Where("status", string(models.CampaignStatusActive))); err != nil {
		return nil, storeError(s.log, err, "Campaign")
	}
	if d.Campaigns.ByStatus, err = s.campaignGroups(ctx, campaignQ, store.Aggregation{GroupBy: "status"}); err != nil {
		return nil, err
	}
	if d.Campaigns.ByType, err = s.campaignGroups(ctx, campaignQ, store.Aggregation{GroupBy: "type"}); err != nil {
		return nil, err
	}
	return d, nil
}

var scoreBuckets = []struct {
	label    string
	min, max float64
}{
	{"0-25", 0, 25},
	{"26-50", 26, 50},
	{"51-75", 51, 75},
	{"76-100", 76, 100},
}

// LeadFilters narrows lead analytics beyond the role scope.
type LeadFilters struct {
	Source     string `query:"source"`
	Status     string `query:"status"`
	AssignedTo string `query:"assignedTo"`
}

func (s *ReportService) LeadAnalytics(ctx context.Context, p ReportParams, f LeadFilters, actor *models.Account) (*LeadAnalytics, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	g, err := p.granularity()
	if err != nil {
		return nil, err
	}
	q := s.scoped(actor, p.DateRange, "created_at")
	if f.Source != "" {
		q = q.Where("source", f.Source)
	}
	if f.Status != "" {
		q = q.Where("status", f.Status)
	}
	if f.AssignedTo != "" {
		q = q.Where("assigned_to", f.AssignedTo)
	}

	a := &LeadAnalytics{}
	if a.ByStatus, err = s.leadGroups(ctx, q, store.Aggregation{GroupBy: "status"}); err != nil {
		return nil, err
	}
	if a.BySource, err = s.leadGroups(ctx, q, store.Aggregation{GroupBy: "source"}); err != nil {
		return nil, err
	}
	if a.ByGenre, err = s.leadGroups(ctx, q, store.Aggregation{GroupBy: "genre"}); err != nil {
		return nil, err
	}
	for _, b := range a.ByStatus {
		a.Total += b.Count
	}

	for _, b := range scoreBuckets {
		lo, hi := b.min, b.max
		sq := q
		sq.Numbers = append(append([]store.NumberRange{}, q.Numbers...), store.NumberRange{Field: "score", Min: &lo, Max: &hi})
		n, err := s.leads.Count(ctx, sq)
		if err != nil {
			return nil, storeError(s.log, err, "Lead")
		}
		a.ByScore = append(a.ByScore, ScoreBucket{Range: b.label, Count: n})
	}

	counts := make(map[string]int64, len(a.ByStatus))
	for _, b := range a.ByStatus {
		counts[b.Key] = b.Count
	}
	for _, st := range models.LeadStatuses {
		a.Funnel = append(a.Funnel, FunnelStage{Status: st, Count: counts[string(st)]})
	}

	created, err := s.leadGroups(ctx, q, store.Aggregation{TimeField: "created_at", Granularity: g, Avg: []string{"score"}})
	if err != nil {
		return nil, err
	}
	won, err := s.leadGroups(ctx, q.Where("status", string(models.LeadStatusWon)), store.Aggregation{TimeField: "created_at", Granularity: g})
	if err != nil {
		return nil, err
	}
	converted := make(map[string]int64, len(won))
	for _, w := range won {
		converted[w.Key] = w.Count
	}
	a.Trend = make([]TrendPoint, 0, len(created))
	for _, c := range created {
		a.Trend = append(a.Trend, TrendPoint{Key: c.Key, Count: c.Count, Converted: converted[c.Key], AvgScore: c.Avg["score"]})
	}
	return a, nil
}

func (s *ReportService) CampaignAnalytics(ctx context.Context, p ReportParams, actor *models.Account) (*CampaignAnalytics, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	g, err := p.granularity()
	if err != nil {
		return nil, err
	}
	q := s.scoped(actor, p.DateRange, "created_at")
	a := &CampaignAnalytics{}

	if a.ByStatus, err = s.campaignGroups(ctx, q, store.Aggregation{GroupBy: "status"}); err != nil {
		return nil, err
	}
	if a.ByType, err = s.campaignGroups(ctx, q, store.Aggregation{GroupBy: "type"}); err != nil {
		return nil, err
	}
	sums := []string{"budget_total", "budget_spent", "metrics_revenue", "metrics_impressions", "metrics_clicks", "metrics_conversions"}
	totals, err := s.campaignGroups(ctx, q, store.Aggregation{Sum: sums})
	if err != nil {
		return nil, err
	}
	t := totals[0]
	a.Total = t.Count
	a.Totals = CampaignTotals{
		Budget:      t.Sum["budget_total"],
		Spent:       t.Sum["budget_spent"],
		Revenue:     t.Sum["metrics_revenue"],
		Impressions: t.Sum["metrics_impressions"],
		Clicks:      t.Sum["metrics_clicks"],
		Conversions: t.Sum["metrics_conversions"],
	}

	perType, err := s.campaignGroups(ctx, q, store.Aggregation{
		GroupBy: "type",
		Sum:     []string{"budget_spent", "metrics_revenue"},
		Avg:     []string{"metrics_ctr", "metrics_roas"},
	})
	if err != nil {
		return nil, err
	}
	for _, pt := range perType {
		a.ByTypePerformance = append(a.ByTypePerformance, TypePerformance{
			Type:        pt.Key,
			Count:       pt.Count,
			Spent:       pt.Sum["budget_spent"],
			Revenue:     pt.Sum["metrics_revenue"],
			AverageCTR:  pt.Avg["metrics_ctr"],
			AverageROAS: pt.Avg["metrics_roas"],
		})
	}

	if a.Trend, err = s.campaignGroups(ctx, q, store.Aggregation{
		TimeField:   "created_at",
		Granularity: g,
		Sum:         []string{"budget_spent", "metrics_revenue"},
	}); err != nil {
		return nil, err
	}
	return a, nil
}

// Revenue reports won-lead revenue by conversion date alongside campaign revenue.
func (s *ReportService) Revenue(ctx context.Context, p ReportParams, actor *models.Account) (*RevenueReport, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	g, err := p.granularity()
	if err != nil {
		return nil, err
	}
	won := s.scoped(actor, p.DateRange, "converted_at").Where("status", string(models.LeadStatusWon))
	campaignQ := s.scoped(actor, p.DateRange, "created_at")
	r := &RevenueReport{}

	leadTotals, err := s.leadGroups(ctx, won, store.Aggregation{Sum: []string{"conversion_value"}})
	if err != nil {
		return nil, err
	}
	r.Leads.Total = leadTotals[0].Sum["conversion_value"]
	r.Leads.Deals = leadTotals[0].Count
	r.Leads.AverageDealSize = ratio(r.Leads.Total, float64(r.Leads.Deals))

	campaignTotals, err := s.campaignGroups(ctx, campaignQ, store.Aggregation{
		Sum: []string{"metrics_revenue", "budget_spent"},
		Avg: []string{"metrics_roas"},
	})
	if err != nil {
		return nil, err
	}
	r.Campaigns.Revenue = campaignTotals[0].Sum["metrics_revenue"]
	r.Campaigns.Spent = campaignTotals[0].Sum["budget_spent"]
	r.Campaigns.AverageROAS = campaignTotals[0].Avg["metrics_roas"]

	if r.BySource, err = s.leadGroups(ctx, won, store.Aggregation{GroupBy: "source", Sum: []string{"conversion_value"}}); err != nil {
		return nil, err
	}
	if r.ByType, err = s.campaignGroups(ctx, campaignQ, store.Aggregation{GroupBy: "type", Sum: []string{"metrics_revenue", "budget_spent"}}); err != nil {
		return nil, err
	}
	if r.Trend, err = s.leadGroups(ctx, won, store.Aggregation{TimeField: "converted_at", Granularity: g, Sum: []string{"conversion_value"}}); err != nil {
		return nil, err
	}
	return r, nil
}

// Compare evaluates metric over two periods. All four boundaries are required.
func (s *ReportService) Compare(ctx context.Context, p ComparisonParams, actor *models.Account) (*Comparison, error) {
	if p.Period1Start == nil || p.Period1End == nil || p.Period2Start == nil || p.Period2End == nil {
		return nil, errs.Validation("All period dates are required for comparison")
	}
	if p.Metric == "" {
		p.Metric = MetricRevenue
	}
	switch p.Metric {
	case MetricRevenue, MetricLeads, MetricCampaigns, MetricConversions:
	default:
		return nil, errs.Validationf("Unknown comparison metric %q", p.Metric)
	}
	for _, r := range []DateRange{{From: p.Period1Start, To: p.Period1End}, {From: p.Period2Start, To: p.Period2End}} {
		if err := r.validate(); err != nil {
			return nil, err
		}
	}

	p1, err := s.periodValue(ctx, p.Metric, *p.Period1Start, *p.Period1End, actor)
	if err != nil {
		return nil, err
	}
	p2, err := s.periodValue(ctx, p.Metric, *p.Period2Start, *p.Period2End, actor)
	if err != nil {
		return nil, err
	}

	c := &Comparison{Metric: p.Metric, Period1: *p1, Period2: *p2}
	c.Change.Absolute = p2.Value - p1.Value
	if p1.Value > 0 {
		c.Change.Percentage = (p2.Value - p1.Value) / p1.Value * 100
	}
	return c, nil
}

func (s *ReportService) periodValue(ctx context.Context, metric string, from, to time.Time, actor *models.Account) (*PeriodValue, error) {
	q := store.Query{Scope: scopeFor(actor)}.Between("created_at", &from, &to)
	pv := &PeriodValue{Start: from, End: to, Details: map[string]float64{}}

	switch metric {
	case MetricRevenue:
		leads, err := s.leadGroups(ctx, q.Where("status", string(models.LeadStatusWon)), store.Aggregation{Sum: []string{"conversion_value"}})
		if err != nil {
			return nil, err
		}
		campaigns, err := s.campaignGroups(ctx, q, store.Aggregation{Sum: []string{"metrics_revenue"}})
		if err != nil {
			return nil, err
		}
		pv.Details["leadRevenue"] = leads[0].Sum["conversion_value"]
		pv.Details["campaignRevenue"] = campaigns[0].Sum["metrics_revenue"]
		pv.Value = pv.Details["leadRevenue"] + pv.Details["campaignRevenue"]
	case MetricLeads:
		n, err := s.leads.Count(ctx, q)
		if err != nil {
			return nil, storeError(s.log, err, "Lead")
		}
		pv.Value = float64(n)
		pv.Details["count"] = pv.Value
	case MetricCampaigns:
		n, err := s.campaigns.Count(ctx, q)
		if err != nil {
			return nil, storeError(s.log, err, "Campaign")
		}
		pv.Value = float64(n)
		pv.Details["count"] = pv.Value
	case MetricConversions:
		n, err := s.leads.Count(ctx, q.Where("status", string(models.LeadStatusWon)))
		if err != nil {
			return nil, storeError(s.log, err, "Lead")
		}
		pv.Value = float64(n)
		pv.Details["conversions"] = pv.Value
	}
	return pv, nil
}
