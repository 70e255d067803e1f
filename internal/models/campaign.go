package models

import (
	"math"
	"sort"
	"time"

	"gorm.io/datatypes"
)

type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

var CampaignStatuses = []CampaignStatus{
	CampaignStatusDraft, CampaignStatusScheduled, CampaignStatusActive,
	CampaignStatusPaused, CampaignStatusCompleted, CampaignStatusCancelled,
}

func (s CampaignStatus) Valid() bool {
	for _, known := range CampaignStatuses {
		if s == known {
			return true
		}
	}
	return false
}

type CampaignType string

var CampaignTypes = []CampaignType{
	"youtube_promotion", "meta_ads", "tiktok_ads", "spotify_promotion",
	"playlist_placement", "influencer_marketing", "pr_campaign",
	"social_media", "email_marketing", "content_marketing",
	"paid_search", "display_ads", "retargeting", "other",
}

func (t CampaignType) Valid() bool {
	for _, known := range CampaignTypes {
		if t == known {
			return true
		}
	}
	return false
}

type TeamRole string

const (
	TeamRoleManager    TeamRole = "manager"
	TeamRoleAnalyst    TeamRole = "analyst"
	TeamRoleCreative   TeamRole = "creative"
	TeamRoleStrategist TeamRole = "strategist"
)

type OptimizationType string

var OptimizationTypes = []OptimizationType{"budget", "targeting", "creative", "bidding", "schedule"}

// DailyMetricsRetention is how far back daily metric entries are kept.
const DailyMetricsRetention = 90 * day

// Campaign is a marketing initiative with budget, counters and lifecycle.
type Campaign struct {
	Base
	Name        string         `gorm:"size:100;not null" json:"name"`
	Description string         `gorm:"size:500" json:"description,omitempty"`
	Type        CampaignType   `gorm:"size:32;index;not null" json:"type"`
	Category    string         `gorm:"size:32" json:"category,omitempty"`
	Status      CampaignStatus `gorm:"size:16;index;not null" json:"status"`
	StartDate   time.Time      `gorm:"not null" json:"startDate"`
	EndDate     time.Time      `gorm:"not null" json:"endDate"`
	Timezone    string         `gorm:"size:64" json:"timezone"`

	Budget        CampaignBudget                    `gorm:"embedded;embeddedPrefix:budget_" json:"budget"`
	Metrics       CampaignMetrics                   `gorm:"embedded;embeddedPrefix:metrics_" json:"metrics"`
	DailyMetrics  datatypes.JSONSlice[DailyMetric]  `gorm:"type:jsonb" json:"dailyMetrics"`
	Optimizations datatypes.JSONSlice[Optimization] `gorm:"type:jsonb" json:"optimizations"`
	Platforms     datatypes.JSONSlice[string]       `gorm:"type:jsonb" json:"platforms"`
	Objectives    datatypes.JSONSlice[string]       `gorm:"type:jsonb" json:"objectives"`
	Tags          datatypes.JSONSlice[string]       `gorm:"type:jsonb" json:"tags"`

	ManagerID string                          `gorm:"size:36;index;not null" json:"manager"`
	Team      datatypes.JSONSlice[TeamMember] `gorm:"type:jsonb" json:"team"`
	ClientID  string                          `gorm:"size:36" json:"client,omitempty"`

	IsArchived bool       `gorm:"index;not null;default:false" json:"isArchived"`
	ArchivedAt *time.Time `json:"archivedAt,omitempty"`
	ArchivedBy string     `gorm:"size:36" json:"archivedBy,omitempty"`
	CreatedBy  string     `gorm:"size:36" json:"createdBy,omitempty"`
	UpdatedBy  string     `gorm:"size:36" json:"updatedBy,omitempty"`
}

type CampaignBudget struct {
	Total       float64  `json:"total"`
	Spent       float64  `json:"spent"`
	Currency    Currency `gorm:"size:3" json:"currency"`
	DailyBudget float64  `json:"dailyBudget"`
}

// CampaignMetrics holds raw counters plus the ratios derived from them and the budget.
type CampaignMetrics struct {
	Impressions int64   `json:"impressions"`
	Reach       int64   `json:"reach"`
	Clicks      int64   `json:"clicks"`
	Views       int64   `json:"views"`
	Engagements int64   `json:"engagements"`
	Shares      int64   `json:"shares"`
	Comments    int64   `json:"comments"`
	Likes       int64   `json:"likes"`
	Saves       int64   `json:"saves"`
	Conversions int64   `json:"conversions"`
	Leads       int64   `json:"leads"`
	Revenue     float64 `json:"revenue"`

	CTR            float64 `gorm:"column:ctr" json:"ctr"`
	CPC            float64 `gorm:"column:cpc" json:"cpc"`
	CPM            float64 `gorm:"column:cpm" json:"cpm"`
	CPA            float64 `gorm:"column:cpa" json:"cpa"`
	ROAS           float64 `gorm:"column:roas" json:"roas"`
	ROI            float64 `gorm:"column:roi" json:"roi"`
	ConversionRate float64 `json:"conversionRate"`
}

// MetricsPatch carries raw counter updates; nil fields are left alone.
type MetricsPatch struct {
	Impressions *int64   `json:"impressions,omitempty" validate:"omitempty,min=0"`
	Reach       *int64   `json:"reach,omitempty" validate:"omitempty,min=0"`
	Clicks      *int64   `json:"clicks,omitempty" validate:"omitempty,min=0"`
	Views       *int64   `json:"views,omitempty" validate:"omitempty,min=0"`
	Engagements *int64   `json:"engagements,omitempty" validate:"omitempty,min=0"`
	Shares      *int64   `json:"shares,omitempty" validate:"omitempty,min=0"`
	Comments    *int64   `json:"comments,omitempty" validate:"omitempty,min=0"`
	Likes       *int64   `json:"likes,omitempty" validate:"omitempty,min=0"`
	Saves       *int64   `json:"saves,omitempty" validate:"omitempty,min=0"`
	Conversions *int64   `json:"conversions,omitempty" validate:"omitempty,min=0"`
	Leads       *int64   `json:"leads,omitempty" validate:"omitempty,min=0"`
	Revenue     *float64 `json:"revenue,omitempty" validate:"omitempty,min=0"`
	Spent       *float64 `json:"spent,omitempty" validate:"omitempty,min=0"`
}

type DailyMetric struct {
	Date        time.Time `json:"date"`
	Impressions int64     `json:"impressions"`
	Clicks      int64     `json:"clicks"`
	Spend       float64   `json:"spend"`
	Conversions int64     `json:"conversions"`
	Revenue     float64   `json:"revenue"`
	CTR         float64   `json:"ctr"`
	CPC         float64   `json:"cpc"`
	CPM         float64   `json:"cpm"`
}

type Optimization struct {
	Date        time.Time        `json:"date"`
	Type        OptimizationType `json:"type"`
	Description string           `json:"description"`
	Impact      string           `json:"impact,omitempty"`
	CreatedBy   string           `json:"createdBy,omitempty"`
}

type TeamMember struct {
	AccountID string   `json:"accountId"`
	Role      TeamRole `json:"role"`
}

// RecomputeMetrics derives the ratio metrics from the stored raw counters and
// budget. A ratio whose denominator is zero keeps its previous value.
func (c *Campaign) RecomputeMetrics() {
	m := &c.Metrics
	spent := c.Budget.Spent

	if m.Impressions > 0 {
		m.CTR = float64(m.Clicks) / float64(m.Impressions) * 100
		m.CPM = spent / float64(m.Impressions) * 1000
	}
	if m.Clicks > 0 {
		m.CPC = spent / float64(m.Clicks)
	}
	if m.Conversions > 0 {
		m.CPA = spent / float64(m.Conversions)
		if m.Clicks > 0 {
			m.ConversionRate = float64(m.Conversions) / float64(m.Clicks) * 100
		}
	}
	if spent > 0 {
		m.ROAS = m.Revenue / spent
		m.ROI = (m.Revenue - spent) / spent * 100
	}
}

// Refresh recomputes every derived field. Stores call it before each write.
func (c *Campaign) Refresh() {
	if c.Status == "" {
		c.Status = CampaignStatusDraft
	}
	if c.Budget.Currency == "" {
		c.Budget.Currency = CurrencyUSD
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	c.Tags = NormalizeTags(c.Tags)
	if c.Tags == nil {
		c.Tags = datatypes.JSONSlice[string]{}
	}
	if c.DailyMetrics == nil {
		c.DailyMetrics = datatypes.JSONSlice[DailyMetric]{}
	}
	if c.Optimizations == nil {
		c.Optimizations = datatypes.JSONSlice[Optimization]{}
	}
	if c.Team == nil {
		c.Team = datatypes.JSONSlice[TeamMember]{}
	}
	if c.Platforms == nil {
		c.Platforms = datatypes.JSONSlice[string]{}
	}
	if c.Objectives == nil {
		c.Objectives = datatypes.JSONSlice[string]{}
	}
	c.RecomputeMetrics()
}

// ApplyMetrics overwrites the raw counters present in p.
func (c *Campaign) ApplyMetrics(p MetricsPatch) {
	set := func(dst *int64, v *int64) {
		if v != nil {
			*dst = *v
		}
	}
	m := &c.Metrics
	set(&m.Impressions, p.Impressions)
	set(&m.Reach, p.Reach)
	set(&m.Clicks, p.Clicks)
	set(&m.Views, p.Views)
	set(&m.Engagements, p.Engagements)
	set(&m.Shares, p.Shares)
	set(&m.Comments, p.Comments)
	set(&m.Likes, p.Likes)
	set(&m.Saves, p.Saves)
	set(&m.Conversions, p.Conversions)
	set(&m.Leads, p.Leads)
	if p.Revenue != nil {
		m.Revenue = *p.Revenue
	}
	if p.Spent != nil {
		c.Budget.Spent = *p.Spent
	}
}

// AddDailyMetric upserts the entry for dm's calendar date, drops entries older
// than the retention window and keeps the list sorted by date.
func (c *Campaign) AddDailyMetric(dm DailyMetric, now time.Time) {
	dm.Date = StartOfDay(dm.Date)
	if dm.Impressions > 0 {
		dm.CTR = float64(dm.Clicks) / float64(dm.Impressions) * 100
		dm.CPM = dm.Spend / float64(dm.Impressions) * 1000
	}
	if dm.Clicks > 0 {
		dm.CPC = dm.Spend / float64(dm.Clicks)
	}

	cutoff := StartOfDay(now).Add(-DailyMetricsRetention)
	kept := make(datatypes.JSONSlice[DailyMetric], 0, len(c.DailyMetrics)+1)
	for _, existing := range c.DailyMetrics {
		if StartOfDay(existing.Date).Equal(dm.Date) {
			continue
		}
		if existing.Date.Before(cutoff) {
			continue
		}
		kept = append(kept, existing)
	}
	if !dm.Date.Before(cutoff) {
		kept = append(kept, dm)
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Date.Before(kept[j].Date) })
	c.DailyMetrics = kept
}

func (c *Campaign) AddOptimization(o Optimization, now time.Time) {
	if o.Date.IsZero() {
		o.Date = now
	}
	c.Optimizations = append(c.Optimizations, o)
}

func (c *Campaign) Pause()    { c.Status = CampaignStatusPaused }
func (c *Campaign) Resume()   { c.Status = CampaignStatusActive }
func (c *Campaign) Complete() { c.Status = CampaignStatusCompleted }

func (c *Campaign) Archive(actorID string, now time.Time) {
	c.IsArchived = true
	c.ArchivedAt = timePtr(now)
	c.ArchivedBy = actorID
}

func (c *Campaign) IsManagedBy(accountID string) bool {
	return c.ManagerID == accountID
}

func (c *Campaign) HasTeamMember(accountID string) bool {
	for _, member := range c.Team {
		if member.AccountID == accountID {
			return true
		}
	}
	return false
}

// IsLive is true when the campaign is active and now falls within its dates.
func (c *Campaign) IsLive(now time.Time) bool {
	return c.Status == CampaignStatusActive && !now.Before(c.StartDate) && !now.After(c.EndDate)
}

func (c *Campaign) DaysRemaining(now time.Time) int {
	return max(0, int(math.Ceil(daysBetween(now, c.EndDate))))
}

func (c *Campaign) DurationDays() int {
	return int(math.Ceil(daysBetween(c.StartDate, c.EndDate)))
}

func (c *Campaign) BudgetUtilization() float64 {
	if c.Budget.Total <= 0 {
		return 0
	}
	return c.Budget.Spent / c.Budget.Total * 100
}

func (c *Campaign) AverageDailySpend(now time.Time) float64 {
	running := max(1, int(math.Floor(daysBetween(c.StartDate, now))))
	return c.Budget.Spent / float64(running)
}

// Duplicate copies the configuration into a fresh draft owned by actorID.
func (c *Campaign) Duplicate(actorID string) *Campaign {
	cp := c.Clone()
	cp.Base = Base{}
	cp.Name = c.Name + " (Copy)"
	cp.Status = CampaignStatusDraft
	cp.Budget.Spent = 0
	cp.Metrics = CampaignMetrics{}
	cp.DailyMetrics = datatypes.JSONSlice[DailyMetric]{}
	cp.Optimizations = datatypes.JSONSlice[Optimization]{}
	cp.ManagerID = actorID
	cp.CreatedBy = actorID
	cp.UpdatedBy = ""
	cp.IsArchived = false
	cp.ArchivedAt = nil
	cp.ArchivedBy = ""
	return cp
}

// Clone returns a deep copy safe to mutate independently.
func (c *Campaign) Clone() *Campaign {
	cp := *c
	cp.DailyMetrics = append(datatypes.JSONSlice[DailyMetric]{}, c.DailyMetrics...)
	cp.Optimizations = append(datatypes.JSONSlice[Optimization]{}, c.Optimizations...)
	cp.Platforms = append(datatypes.JSONSlice[string]{}, c.Platforms...)
	cp.Objectives = append(datatypes.JSONSlice[string]{}, c.Objectives...)
	cp.Tags = append(datatypes.JSONSlice[string]{}, c.Tags...)
	cp.Team = append(datatypes.JSONSlice[TeamMember]{}, c.Team...)
	return &cp
}
