package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"mdmc/internal/errs"
	"mdmc/internal/events"
	"mdmc/internal/models"
	"mdmc/internal/store"
	"mdmc/internal/utils/logger"
)

var campaignSortable = map[string]string{
	"createdAt":   "created_at",
	"name":        "name",
	"status":      "status",
	"type":        "type",
	"startDate":   "start_date",
	"endDate":     "end_date",
	"budget":      "budget_total",
	"spent":       "budget_spent",
	"revenue":     "metrics_revenue",
	"impressions": "metrics_impressions",
	"clicks":      "metrics_clicks",
	"conversions": "metrics_conversions",
	"ctr":         "metrics_ctr",
	"roas":        "metrics_roas",
}

var campaignSearchFields = []string{"name", "description", "tags"}

type CampaignListParams struct {
	PageParams
	Status    string `query:"status"`
	Type      string `query:"type"`
	Manager   string `query:"manager"`
	Category  string `query:"category"`
	Search    string `query:"search"`
	Tags      string `query:"tags"`
	MinBudget *float64
	MaxBudget *float64
	// DateRange selects campaigns whose run overlaps it.
	DateRange
}

type CampaignInput struct {
	Name        string                `json:"name" validate:"required,max=100"`
	Description string                `json:"description" validate:"omitempty,max=500"`
	Type        models.CampaignType   `json:"type" validate:"required,campaign_type"`
	Category    string                `json:"category" validate:"omitempty,max=32"`
	Status      models.CampaignStatus `json:"status" validate:"omitempty,campaign_status"`
	StartDate   time.Time             `json:"startDate" validate:"required"`
	EndDate     time.Time             `json:"endDate" validate:"required,gtfield=StartDate"`
	Timezone    string                `json:"timezone" validate:"omitempty,max=64"`
	Budget      models.CampaignBudget `json:"budget"`
	Platforms   []string              `json:"platforms"`
	Objectives  []string              `json:"objectives"`
	Tags        []string              `json:"tags"`
	ManagerID   string                `json:"manager" validate:"omitempty,uuid"`
	Team        []models.TeamMember   `json:"team" validate:"omitempty,dive"`
	ClientID    string                `json:"client" validate:"omitempty,uuid"`
}

// CampaignPatch is a partial campaign update. Metrics go through UpdateMetrics.
type CampaignPatch struct {
	Name        *string                `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string                `json:"description" validate:"omitempty,max=500"`
	Type        *models.CampaignType   `json:"type" validate:"omitempty,campaign_type"`
	Category    *string                `json:"category" validate:"omitempty,max=32"`
	Status      *models.CampaignStatus `json:"status" validate:"omitempty,campaign_status"`
	StartDate   *time.Time             `json:"startDate"`
	EndDate     *time.Time             `json:"endDate"`
	Timezone    *string                `json:"timezone" validate:"omitempty,max=64"`
	Budget      *models.CampaignBudget `json:"budget"`
	Platforms   []string               `json:"platforms"`
	Objectives  []string               `json:"objectives"`
	Tags        []string               `json:"tags"`
	ManagerID   *string                `json:"manager" validate:"omitempty,uuid"`
	Team        []models.TeamMember    `json:"team" validate:"omitempty,dive"`
	ClientID    *string                `json:"client" validate:"omitempty,uuid"`
}

type OptimizationInput struct {
	Type        models.OptimizationType `json:"type" validate:"required,optimization_type"`
	Description string                  `json:"description" validate:"required,max=500"`
	Impact      string                  `json:"impact" validate:"omitempty,max=200"`
}

type CampaignPerformance struct {
	CampaignID   string               `json:"campaignId"`
	Name         string               `json:"name"`
	Type         models.CampaignType  `json:"type"`
	DailyMetrics []models.DailyMetric `json:"dailyMetrics"`
	Totals       PerformanceTotals    `json:"totals"`
}

type PerformanceTotals struct {
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Spend       float64 `json:"spend"`
	Conversions int64   `json:"conversions"`
	Revenue     float64 `json:"revenue"`
	CTR         float64 `json:"ctr"`
	CPC         float64 `json:"cpc"`
	ROAS        float64 `json:"roas"`
}

type CampaignStats struct {
	Total        int64             `json:"totalCampaigns"`
	Active       int64             `json:"activeCampaigns"`
	ByStatus     []store.Group     `json:"statusDistribution"`
	ByType       []store.Group     `json:"typeDistribution"`
	TotalBudget  float64           `json:"totalBudget"`
	TotalSpent   float64           `json:"totalSpent"`
	TotalRevenue float64           `json:"totalRevenue"`
	AverageROAS  float64           `json:"averageRoas"`
	Recent       []models.Campaign `json:"recentCampaigns"`
}

type CampaignService struct {
	campaigns store.CampaignStore
	accounts  store.AccountStore
	leads     store.LeadStore
	now       func() time.Time
	log       *logger.Logger
}

func NewCampaignService(campaigns store.CampaignStore, accounts store.AccountStore, leads store.LeadStore) *CampaignService {
	return &CampaignService{
		campaigns: campaigns,
		accounts:  accounts,
		leads:     leads,
		now:       time.Now,
		log:       logger.New("CAMPAIGNS"),
	}
}

func (p CampaignListParams) query(actor *models.Account) (store.Query, error) {
	if err := p.DateRange.validate(); err != nil {
		return store.Query{}, err
	}
	if p.Status != "" && !models.CampaignStatus(p.Status).Valid() {
		return store.Query{}, errs.Validationf("Unknown campaign status %q", p.Status)
	}
	q := store.Query{Scope: scopeFor(actor)}
	for col, v := range map[string]string{
		"status":     p.Status,
		"type":       p.Type,
		"manager_id": p.Manager,
		"category":   p.Category,
	} {
		if v != "" {
			q = q.Where(col, v)
		}
	}
	if p.MinBudget != nil || p.MaxBudget != nil {
		q.Numbers = append(q.Numbers, store.NumberRange{Field: "budget_total", Min: p.MinBudget, Max: p.MaxBudget})
	}
	if p.Search != "" {
		q.Search = p.Search
		q.SearchFields = campaignSearchFields
	}
	if p.Tags != "" {
		q.Tags = models.NormalizeTags(strings.Split(p.Tags, ","))
	}
	// Overlap: starts before the range ends and ends after it starts.
	q = q.Between("start_date", nil, p.To)
	q = q.Between("end_date", p.From, nil)
	return q, nil
}

func (s *CampaignService) List(ctx context.Context, p CampaignListParams, actor *models.Account) ([]models.Campaign, Pagination, error) {
	q, err := p.query(actor)
	if err != nil {
		return nil, Pagination{}, err
	}
	if q, err = p.PageParams.apply(q, campaignSortable); err != nil {
		return nil, Pagination{}, err
	}
	campaigns, total, err := s.campaigns.List(ctx, q)
	if err != nil {
		return nil, Pagination{}, storeError(s.log, err, "Campaign")
	}
	return campaigns, NewPagination(q.Page, q.Limit, total), nil
}

func isMember(c *models.Campaign, accountID string) bool {
	return c.IsManagedBy(accountID) || c.HasTeamMember(accountID)
}

func (s *CampaignService) Get(ctx context.Context, id string, actor *models.Account) (*models.Campaign, error) {
	campaign, err := s.campaigns.Get(ctx, id)
	if err != nil {
		return nil, storeError(s.log, err, "Campaign")
	}
	if isAgent(actor) && !isMember(campaign, actor.ID) {
		return nil, errs.Forbidden("You can only view campaigns you manage or are part of")
	}
	return campaign, nil
}

func (s *CampaignService) checkRefs(ctx context.Context, managerID, clientID string, team []models.TeamMember) error {
	ids := make([]string, 0, len(team)+1)
	if managerID != "" {
		ids = append(ids, managerID)
	}
	for _, m := range team {
		if m.AccountID == "" {
			return errs.Validation("Team members need an account id")
		}
		ids = append(ids, m.AccountID)
	}
	if len(ids) > 0 {
		want := dedupeIDs(ids)
		found, err := s.accounts.Count(ctx, store.Query{IDs: want})
		if err != nil {
			return storeError(s.log, err, "User")
		}
		if int(found) != len(want) {
			return errs.NotFound("Manager or team member")
		}
	}
	if clientID != "" {
		if _, err := s.leads.Get(ctx, clientID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return errs.NotFound("Client lead")
			}
			return storeError(s.log, err, "Lead")
		}
	}
	return nil
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// Create is open to admins and managers. The manager defaults to the caller.
func (s *CampaignService) Create(ctx context.Context, in CampaignInput, actor *models.Account) (*models.Campaign, error) {
	if err := requireRoles(actor, "Only administrators and managers can create campaigns", models.RoleManager); err != nil {
		return nil, err
	}
	if !in.EndDate.After(in.StartDate) {
		return nil, errs.Validation("End date must be after start date")
	}
	if in.Status != "" && !in.Status.Valid() {
		return nil, errs.Validationf("Unknown campaign status %q", in.Status)
	}
	if in.ManagerID == "" {
		in.ManagerID = actor.ID
	}
	if err := s.checkRefs(ctx, in.ManagerID, in.ClientID, in.Team); err != nil {
		return nil, err
	}

	campaign := &models.Campaign{
		Name:        in.Name,
		Description: in.Description,
		Type:        in.Type,
		Category:    in.Category,
		Status:      in.Status,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Timezone:    in.Timezone,
		Budget:      in.Budget,
		Platforms:   in.Platforms,
		Objectives:  in.Objectives,
		Tags:        in.Tags,
		ManagerID:   in.ManagerID,
		Team:        in.Team,
		ClientID:    in.ClientID,
		CreatedBy:   actor.ID,
	}
	campaign.Budget.Spent = 0
	if err := s.campaigns.Create(ctx, campaign); err != nil {
		return nil, storeError(s.log, err, "Campaign")
	}
	events.Emit(events.CampaignSaved, events.RecordChange{ID: campaign.ID, ActorID: actor.ID, Detail: "created"})
	return campaign, nil
}

// mutate runs fn under the agent membership rule and stamps updatedBy.
func (s *CampaignService) mutate(ctx context.Context, id string, actor *models.Account, msg string, fn func(*models.Campaign) error) (*models.Campaign, error) {
	campaign, err := s.campaigns.Mutate(ctx, id, memberOnly(actor, msg, fn))
	if err != nil {
		return nil, storeError(s.log, err, "Campaign")
	}
	return campaign, nil
}

func memberOnly(actor *models.Account, msg string, fn func(*models.Campaign) error) func(*models.Campaign) error {
	return func(c *models.Campaign) error {
		if isAgent(actor) && !isMember(c, actor.ID) {
			return errs.Forbidden(msg)
		}
		if err := fn(c); err != nil {
			return err
		}
		c.UpdatedBy = actor.ID
		return nil
	}
}

func (s *CampaignService) Update(ctx context.Context, id string, p CampaignPatch, actor *models.Account) (*models.Campaign, error) {
	if p.Status != nil && !p.Status.Valid() {
		return nil, errs.Validationf("Unknown campaign status %q", *p.Status)
	}
	if p.ManagerID != nil && isAgent(actor) {
		return nil, errs.Forbidden("Agents cannot change the campaign manager")
	}
	if err := s.checkRefs(ctx, strPtrValue(p.ManagerID), strPtrValue(p.ClientID), p.Team); err != nil {
		return nil, err
	}

	campaign, err := s.mutate(ctx, id, actor, "You can only update campaigns you manage or are part of", func(c *models.Campaign) error {
		p.applyTo(c)
		if !c.EndDate.After(c.StartDate) {
			return errs.Validation("End date must be after start date")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	events.Emit(events.CampaignSaved, events.RecordChange{ID: id, ActorID: actor.ID, Detail: "updated"})
	return campaign, nil
}

func (p CampaignPatch) applyTo(c *models.Campaign) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.Type != nil {
		c.Type = *p.Type
	}
	if p.Category != nil {
		c.Category = *p.Category
	}
	if p.Status != nil {
		c.Status = *p.Status
	}
	if p.StartDate != nil {
		c.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		c.EndDate = *p.EndDate
	}
	if p.Timezone != nil {
		c.Timezone = *p.Timezone
	}
	if p.Budget != nil {
		c.Budget.Total = p.Budget.Total
		c.Budget.DailyBudget = p.Budget.DailyBudget
		if p.Budget.Currency != "" {
			c.Budget.Currency = p.Budget.Currency
		}
	}
	if p.Platforms != nil {
		c.Platforms = p.Platforms
	}
	if p.Objectives != nil {
		c.Objectives = p.Objectives
	}
	if p.Tags != nil {
		c.Tags = p.Tags
	}
	if p.ManagerID != nil && *p.ManagerID != "" {
		c.ManagerID = *p.ManagerID
	}
	if p.Team != nil {
		c.Team = p.Team
	}
	if p.ClientID != nil {
		c.ClientID = *p.ClientID
	}
}

func (s *CampaignService) setStatus(ctx context.Context, id string, actor *models.Account, verb string, change func(*models.Campaign)) (*models.Campaign, error) {
	campaign, err := s.mutate(ctx, id, actor, "You can only "+verb+" campaigns you manage or are part of", func(c *models.Campaign) error {
		change(c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	events.Emit(events.CampaignStatus, events.RecordChange{ID: id, ActorID: actor.ID, Detail: string(campaign.Status)})
	return campaign, nil
}

func (s *CampaignService) Pause(ctx context.Context, id string, actor *models.Account) (*models.Campaign, error) {
	return s.setStatus(ctx, id, actor, "pause", (*models.Campaign).Pause)
}

func (s *CampaignService) Resume(ctx context.Context, id string, actor *models.Account) (*models.Campaign, error) {
	return s.setStatus(ctx, id, actor, "resume", (*models.Campaign).Resume)
}

func (s *CampaignService) Complete(ctx context.Context, id string, actor *models.Account) (*models.Campaign, error) {
	return s.setStatus(ctx, id, actor, "complete", (*models.Campaign).Complete)
}

// UpdateMetrics overwrites raw counters; the ratios are recomputed on save.
func (s *CampaignService) UpdateMetrics(ctx context.Context, id string, p models.MetricsPatch, actor *models.Account) (*models.Campaign, error) {
	return s.mutate(ctx, id, actor, "You can only update metrics for campaigns you manage or are part of", func(c *models.Campaign) error {
		c.ApplyMetrics(p)
		return nil
	})
}

func (s *CampaignService) AddDailyMetric(ctx context.Context, id string, dm models.DailyMetric, actor *models.Account) (*models.Campaign, error) {
	if dm.Date.IsZero() {
		return nil, errs.Validation("Date is required")
	}
	if dm.Impressions < 0 || dm.Clicks < 0 || dm.Conversions < 0 || dm.Spend < 0 || dm.Revenue < 0 {
		return nil, errs.Validation("Daily metrics must not be negative")
	}
	now := s.now()
	return s.mutate(ctx, id, actor, "You can only add metrics to campaigns you manage or are part of", func(c *models.Campaign) error {
		c.AddDailyMetric(dm, now)
		return nil
	})
}

func (s *CampaignService) AddOptimization(ctx context.Context, id string, in OptimizationInput, actor *models.Account) (*models.Campaign, error) {
	if strings.TrimSpace(in.Description) == "" {
		return nil, errs.Validation("Optimization description is required")
	}
	now := s.now()
	return s.mutate(ctx, id, actor, "You can only optimize campaigns you manage or are part of", func(c *models.Campaign) error {
		c.AddOptimization(models.Optimization{
			Type:        in.Type,
			Description: in.Description,
			Impact:      in.Impact,
			CreatedBy:   actor.ID,
		}, now)
		return nil
	})
}

// Duplicate copies the campaign's configuration into a new draft managed by
// the caller. An empty name gives "<name> (Copy)".
func (s *CampaignService) Duplicate(ctx context.Context, id, name string, actor *models.Account) (*models.Campaign, error) {
	if err := requireRoles(actor, "Only administrators and managers can duplicate campaigns", models.RoleManager); err != nil {
		return nil, err
	}
	source, err := s.campaigns.Get(ctx, id)
	if err != nil {
		return nil, storeError(s.log, err, "Campaign")
	}
	dup := source.Duplicate(actor.ID)
	if name = strings.TrimSpace(name); name != "" {
		dup.Name = name
	}
	if err := s.campaigns.Create(ctx, dup); err != nil {
		return nil, storeError(s.log, err, "Campaign")
	}
	events.Emit(events.CampaignSaved, events.RecordChange{ID: dup.ID, ActorID: actor.ID, Detail: "duplicated from " + id})
	return dup, nil
}

// Performance returns the daily series inside r with its totals.
func (s *CampaignService) Performance(ctx context.Context, id string, r DateRange, actor *models.Account) (*CampaignPerformance, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	campaign, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	out := &CampaignPerformance{
		CampaignID:   campaign.ID,
		Name:         campaign.Name,
		Type:         campaign.Type,
		DailyMetrics: []models.DailyMetric{},
	}
	for _, dm := range campaign.DailyMetrics {
		if r.From != nil && dm.Date.Before(models.StartOfDay(*r.From)) {
			continue
		}
		if r.To != nil && dm.Date.After(*r.To) {
			continue
		}
		out.DailyMetrics = append(out.DailyMetrics, dm)
		t := &out.Totals
		t.Impressions += dm.Impressions
		t.Clicks += dm.Clicks
		t.Spend += dm.Spend
		t.Conversions += dm.Conversions
		t.Revenue += dm.Revenue
	}
	t := &out.Totals
	t.CTR = ratio(float64(t.Clicks), float64(t.Impressions)) * 100
	t.CPC = ratio(t.Spend, float64(t.Clicks))
	t.ROAS = ratio(t.Revenue, t.Spend)
	return out, nil
}

func (s *CampaignService) Stats(ctx context.Context, actor *models.Account) (*CampaignStats, error) {
	base := store.Query{Scope: scopeFor(actor)}
	stats := &CampaignStats{}
	var err error

	if stats.ByStatus, err = s.campaigns.Aggregate(ctx, base, store.Aggregation{GroupBy: "status"}); err != nil {
		return nil, storeError(s.log, err, "Campaign")
	}
	if stats.ByType, err = s.campaigns.Aggregate(ctx, base, store.Aggregation{GroupBy: "type"}); err != nil {
		return nil, storeError(s.log, err, "Campaign")
	}
	totals, err := s.campaigns.Aggregate(ctx, base, store.Aggregation{
		Sum: []string{"budget_total", "budget_spent", "metrics_revenue"},
		Avg: []string{"metrics_roas"},
	})
	if err != nil {
		return nil, storeError(s.log, err, "Campaign")
	}
	if stats.Active, err = s.campaigns.Count(ctx, base.Where("status", string(models.CampaignStatusActive))); err != nil {
		return nil, storeError(s.log, err, "Campaign")
	}
	recent := base
	recent.Limit = 5
	if stats.Recent, _, err = s.campaigns.List(ctx, recent); err != nil {
		return nil, storeError(s.log, err, "Campaign")
	}

	t := totals[0]
	stats.Total = t.Count
	stats.TotalBudget = t.Sum["budget_total"]
	stats.TotalSpent = t.Sum["budget_spent"]
	stats.TotalRevenue = t.Sum["metrics_revenue"]
	stats.AverageROAS = t.Avg["metrics_roas"]
	return stats, nil
}

// BulkUpdate applies p to every campaign in ids or to none.
func (s *CampaignService) BulkUpdate(ctx context.Context, ids []string, p CampaignPatch, actor *models.Account) ([]models.Campaign, error) {
	if len(ids) == 0 {
		return nil, errs.Validation("campaignIds must be a non-empty array")
	}
	if p.Status != nil && !p.Status.Valid() {
		return nil, errs.Validationf("Unknown campaign status %q", *p.Status)
	}
	if p.ManagerID != nil && isAgent(actor) {
		return nil, errs.Forbidden("Agents cannot change the campaign manager")
	}
	if err := s.checkRefs(ctx, strPtrValue(p.ManagerID), strPtrValue(p.ClientID), p.Team); err != nil {
		return nil, err
	}

	updated, err := s.campaigns.MutateMany(ctx, ids, memberOnly(actor, "You can only update campaigns you manage or are part of", func(c *models.Campaign) error {
		p.applyTo(c)
		if !c.EndDate.After(c.StartDate) {
			return errs.Validation("End date must be after start date")
		}
		return nil
	}))
	if err != nil {
		return nil, storeError(s.log, err, "Campaign")
	}
	s.log.Info("%s bulk updated %d campaigns", actor.Email, len(updated))
	return updated, nil
}

// Archive hides the campaign from every read. Admins and managers only.
func (s *CampaignService) Archive(ctx context.Context, id string, actor *models.Account) error {
	if err := requireRoles(actor, "Only administrators and managers can archive campaigns", models.RoleManager); err != nil {
		return err
	}
	now := s.now()
	_, err := s.campaigns.Mutate(ctx, id, func(c *models.Campaign) error {
		c.Archive(actor.ID, now)
		c.UpdatedBy = actor.ID
		return nil
	})
	if err != nil {
		return storeError(s.log, err, "Campaign")
	}
	events.Emit(events.CampaignStatus, events.RecordChange{ID: id, ActorID: actor.ID, Detail: "archived"})
	return nil
}
