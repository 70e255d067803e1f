package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"mdmc/internal/errs"
	"mdmc/internal/events"
	"mdmc/internal/models"
	"mdmc/internal/store"
	"mdmc/internal/utils/logger"
)

var leadSortable = map[string]string{
	"createdAt":       "created_at",
	"status":          "status",
	"score":           "score",
	"priority":        "priority",
	"source":          "source",
	"genre":           "genre",
	"temperature":     "temperature",
	"firstName":       "first_name",
	"lastName":        "last_name",
	"email":           "email",
	"nextFollowUp":    "next_follow_up",
	"convertedAt":     "converted_at",
	"conversionValue": "conversion_value",
}

var leadSearchFields = []string{"first_name", "last_name", "email", "artist_name", "phone"}

// LeadFilter holds the list and export filters.
type LeadFilter struct {
	Status      string `query:"status"`
	Source      string `query:"source"`
	AssignedTo  string `query:"assignedTo"`
	Priority    string `query:"priority"`
	Genre       string `query:"genre"`
	Temperature string `query:"temperature"`
	CampaignID  string `query:"campaignId"`
	Search      string `query:"search"`
	// Score is "min-max" or "min".
	Score string `query:"score"`
	// Tags is comma separated; a lead matches when it has any of them.
	Tags string `query:"tags"`
	DateRange
}

type LeadListParams struct {
	PageParams
	LeadFilter
}

type LeadInput struct {
	FirstName              string            `json:"firstName" validate:"required,max=50"`
	LastName               string            `json:"lastName" validate:"required,max=50"`
	Email                  string            `json:"email" validate:"required,email"`
	Phone                  string            `json:"phone" validate:"omitempty,max=32"`
	ArtistName             string            `json:"artistName" validate:"omitempty,max=100"`
	Genre                  string            `json:"genre" validate:"omitempty,genre"`
	MusicLinks             models.MusicLinks `json:"musicLinks"`
	Source                 models.LeadSource `json:"source" validate:"required,lead_source"`
	SourceDetails          string            `json:"sourceDetails" validate:"omitempty,max=200"`
	CampaignID             string            `json:"campaignId" validate:"omitempty,uuid"`
	Status                 models.LeadStatus `json:"status" validate:"omitempty,lead_status"`
	Priority               models.Priority   `json:"priority" validate:"omitempty,priority"`
	Score                  int               `json:"score" validate:"min=0,max=100"`
	Budget                 models.LeadBudget `json:"budget"`
	ServicesInterested     []string          `json:"servicesInterested"`
	ProjectDescription     string            `json:"projectDescription" validate:"omitempty,max=1000"`
	PreferredContactMethod string            `json:"preferredContactMethod" validate:"omitempty,oneof=email phone text social_media"`
	Timezone               string            `json:"timezone" validate:"omitempty,max=64"`
	Urgency                string            `json:"urgency" validate:"omitempty,oneof=immediate within_week within_month flexible"`
	Location               models.Location   `json:"location"`
	AssignedTo             string            `json:"assignedTo" validate:"omitempty,uuid"`
	Tags                   []string          `json:"tags"`
	DealProbability        int               `json:"dealProbability" validate:"min=0,max=100"`
	NextFollowUp           *time.Time        `json:"nextFollowUp"`
}

// LeadPatch is a partial lead update; nil fields are left alone.
type LeadPatch struct {
	FirstName              *string            `json:"firstName" validate:"omitempty,min=1,max=50"`
	LastName               *string            `json:"lastName" validate:"omitempty,min=1,max=50"`
	Email                  *string            `json:"email" validate:"omitempty,email"`
	Phone                  *string            `json:"phone" validate:"omitempty,max=32"`
	ArtistName             *string            `json:"artistName" validate:"omitempty,max=100"`
	Genre                  *string            `json:"genre" validate:"omitempty,genre"`
	MusicLinks             *models.MusicLinks `json:"musicLinks"`
	Source                 *models.LeadSource `json:"source" validate:"omitempty,lead_source"`
	SourceDetails          *string            `json:"sourceDetails" validate:"omitempty,max=200"`
	CampaignID             *string            `json:"campaignId" validate:"omitempty,uuid"`
	Status                 *models.LeadStatus `json:"status" validate:"omitempty,lead_status"`
	Priority               *models.Priority   `json:"priority" validate:"omitempty,priority"`
	Score                  *int               `json:"score" validate:"omitempty,min=0,max=100"`
	Budget                 *models.LeadBudget `json:"budget"`
	ServicesInterested     []string           `json:"servicesInterested"`
	ProjectDescription     *string            `json:"projectDescription" validate:"omitempty,max=1000"`
	PreferredContactMethod *string            `json:"preferredContactMethod" validate:"omitempty,oneof=email phone text social_media"`
	Timezone               *string            `json:"timezone" validate:"omitempty,max=64"`
	Urgency                *string            `json:"urgency" validate:"omitempty,oneof=immediate within_week within_month flexible"`
	Location               *models.Location   `json:"location"`
	AssignedTo             *string            `json:"assignedTo" validate:"omitempty,uuid"`
	Tags                   []string           `json:"tags"`
	DealProbability        *int               `json:"dealProbability" validate:"omitempty,min=0,max=100"`
}

type InteractionInput struct {
	Type           models.InteractionType `json:"type" validate:"required,interaction_type"`
	Description    string                 `json:"description" validate:"required,max=1000"`
	Outcome        models.Outcome         `json:"outcome" validate:"omitempty,interaction_outcome"`
	NextAction     string                 `json:"nextAction" validate:"omitempty,max=200"`
	NextActionDate *time.Time             `json:"nextActionDate"`
}

type LeadStats struct {
	Total          int64         `json:"totalLeads"`
	ByStatus       []store.Group `json:"statusDistribution"`
	BySource       []store.Group `json:"sourceDistribution"`
	ByTemperature  []store.Group `json:"temperatureDistribution"`
	Converted      int64         `json:"converted"`
	ConversionRate float64       `json:"conversionRate"`
	AverageScore   float64       `json:"averageScore"`
	TotalValue     float64       `json:"totalConversionValue"`
	OverdueCount   int64         `json:"overdueCount"`
	Recent         []models.Lead `json:"recentLeads"`
}

type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportCSV  ExportFormat = "csv"
)

// Export is a rendered lead export. URL is set instead of Data when the file
// was uploaded to object storage.
type Export struct {
	Format      ExportFormat `json:"format"`
	Filename    string       `json:"filename"`
	ContentType string       `json:"-"`
	Count       int          `json:"count"`
	Data        []byte       `json:"-"`
	URL         string       `json:"url,omitempty"`
}

// FileStore keeps export files and hands out time-limited download links.
type FileStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type LeadService struct {
	leads     store.LeadStore
	accounts  store.AccountStore
	campaigns store.CampaignStore
	files     FileStore
	urlTTL    time.Duration
	now       func() time.Time
	log       *logger.Logger
}

func NewLeadService(leads store.LeadStore, accounts store.AccountStore, campaigns store.CampaignStore) *LeadService {
	return &LeadService{
		leads:     leads,
		accounts:  accounts,
		campaigns: campaigns,
		urlTTL:    15 * time.Minute,
		now:       time.Now,
		log:       logger.New("LEADS"),
	}
}

// WithFileStore makes CSV exports upload to files and return a link valid for ttl.
func (s *LeadService) WithFileStore(files FileStore, ttl time.Duration) *LeadService {
	s.files = files
	if ttl > 0 {
		s.urlTTL = ttl
	}
	return s
}

func (f LeadFilter) query(actor *models.Account) (store.Query, error) {
	if err := f.validate(); err != nil {
		return store.Query{}, err
	}
	q := store.Query{Scope: scopeFor(actor)}
	eq := map[string]string{
		"status":      f.Status,
		"source":      f.Source,
		"assigned_to": f.AssignedTo,
		"priority":    f.Priority,
		"genre":       f.Genre,
		"temperature": f.Temperature,
		"campaign_id": f.CampaignID,
	}
	for col, v := range eq {
		if v != "" {
			q = q.Where(col, v)
		}
	}
	if f.Status != "" && !models.LeadStatus(f.Status).Valid() {
		return q, errs.Validationf("Unknown lead status %q", f.Status)
	}
	if f.Search != "" {
		q.Search = f.Search
		q.SearchFields = leadSearchFields
	}
	if f.Score != "" {
		r, err := parseScoreRange(f.Score)
		if err != nil {
			return q, err
		}
		q.Numbers = append(q.Numbers, r)
	}
	if f.Tags != "" {
		q.Tags = models.NormalizeTags(strings.Split(f.Tags, ","))
	}
	return q.Between("created_at", f.From, f.To), nil
}

func parseScoreRange(s string) (store.NumberRange, error) {
	lo, hi, found := strings.Cut(s, "-")
	low, err := strconv.ParseFloat(strings.TrimSpace(lo), 64)
	if err != nil {
		return store.NumberRange{}, errs.Validation("score must look like min-max")
	}
	high := float64(models.MaxScore)
	if found && strings.TrimSpace(hi) != "" {
		if high, err = strconv.ParseFloat(strings.TrimSpace(hi), 64); err != nil {
			return store.NumberRange{}, errs.Validation("score must look like min-max")
		}
	}
	return store.NumberRange{Field: "score", Min: &low, Max: &high}, nil
}

// List returns the caller's page of leads. Agents only ever see leads
// assigned to them.
func (s *LeadService) List(ctx context.Context, p LeadListParams, actor *models.Account) ([]models.Lead, Pagination, error) {
	q, err := p.LeadFilter.query(actor)
	if err != nil {
		return nil, Pagination{}, err
	}
	if q, err = p.PageParams.apply(q, leadSortable); err != nil {
		return nil, Pagination{}, err
	}
	leads, total, err := s.leads.List(ctx, q)
	if err != nil {
		return nil, Pagination{}, storeError(s.log, err, "Lead")
	}
	return leads, NewPagination(q.Page, q.Limit, total), nil
}

func (s *LeadService) Get(ctx context.Context, id string, actor *models.Account) (*models.Lead, error) {
	lead, err := s.leads.Get(ctx, id)
	if err != nil {
		return nil, storeError(s.log, err, "Lead")
	}
	if isAgent(actor) && lead.AssignedTo != actor.ID {
		return nil, errs.Forbidden("You can only view leads assigned to you")
	}
	return lead, nil
}

// Create inserts a lead. An agent's lead is assigned to the agent unless they
// name no one else; naming someone else is forbidden.
func (s *LeadService) Create(ctx context.Context, in LeadInput, actor *models.Account) (*models.Lead, error) {
	if in.Status != "" && !in.Status.Valid() {
		return nil, errs.Validationf("Unknown lead status %q", in.Status)
	}
	if isAgent(actor) {
		if in.AssignedTo != "" && in.AssignedTo != actor.ID {
			return nil, errs.Forbidden("Agents can only create leads assigned to themselves")
		}
		in.AssignedTo = actor.ID
	}
	if in.AssignedTo != "" {
		if err := s.checkAssignee(ctx, in.AssignedTo); err != nil {
			return nil, err
		}
	}
	if in.CampaignID != "" {
		if err := s.checkCampaign(ctx, in.CampaignID); err != nil {
			return nil, err
		}
	}

	now := s.now()
	lead := &models.Lead{
		FirstName:              in.FirstName,
		LastName:               in.LastName,
		Email:                  in.Email,
		Phone:                  in.Phone,
		ArtistName:             in.ArtistName,
		Genre:                  in.Genre,
		MusicLinks:             in.MusicLinks,
		Source:                 in.Source,
		SourceDetails:          in.SourceDetails,
		CampaignID:             in.CampaignID,
		Status:                 in.Status,
		Priority:               in.Priority,
		Score:                  in.Score,
		Budget:                 in.Budget,
		ServicesInterested:     in.ServicesInterested,
		ProjectDescription:     in.ProjectDescription,
		PreferredContactMethod: in.PreferredContactMethod,
		Timezone:               in.Timezone,
		Urgency:                in.Urgency,
		Location:               in.Location,
		Tags:                   in.Tags,
		DealProbability:        in.DealProbability,
		NextFollowUp:           in.NextFollowUp,
		CreatedBy:              actor.ID,
	}
	if in.AssignedTo != "" {
		lead.Assign(in.AssignedTo, now)
	}
	if err := s.leads.Create(ctx, lead); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, errs.Conflict("Lead with this email already exists")
		}
		return nil, storeError(s.log, err, "Lead")
	}

	events.Emit(events.LeadCreated, events.RecordChange{ID: lead.ID, ActorID: actor.ID})
	return lead, nil
}

func (s *LeadService) checkAssignee(ctx context.Context, accountID string) error {
	assignee, err := s.accounts.Get(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return errs.NotFound("User to assign")
	}
	if err != nil {
		return storeError(s.log, err, "User")
	}
	if !assignee.IsActive {
		return errs.Validation("Cannot assign leads to an inactive user")
	}
	return nil
}

func (s *LeadService) checkCampaign(ctx context.Context, campaignID string) error {
	_, err := s.campaigns.Get(ctx, campaignID)
	if errors.Is(err, store.ErrNotFound) {
		return errs.NotFound("Campaign")
	}
	return storeError(s.log, err, "Campaign")
}

// owned returns fn wrapped with the agent ownership check so the check and the
// write see the same record version.
func owned(actor *models.Account, msg string, fn func(*models.Lead) error) func(*models.Lead) error {
	return func(l *models.Lead) error {
		if isAgent(actor) && l.AssignedTo != actor.ID {
			return errs.Forbidden(msg)
		}
		if err := fn(l); err != nil {
			return err
		}
		l.UpdatedBy = actor.ID
		return nil
	}
}

func (s *LeadService) mutate(ctx context.Context, id string, actor *models.Account, msg string, fn func(*models.Lead) error) (*models.Lead, error) {
	lead, err := s.leads.Mutate(ctx, id, owned(actor, msg, fn))
	if errors.Is(err, store.ErrDuplicate) {
		return nil, errs.Conflict("Lead with this email already exists")
	}
	if err != nil {
		return nil, storeError(s.log, err, "Lead")
	}
	return lead, nil
}

// Update applies p. Changing the assignee this way is reserved to admins;
// restating the current assignee is a no-op for anyone.
func (s *LeadService) Update(ctx context.Context, id string, p LeadPatch, actor *models.Account) (*models.Lead, error) {
	if p.Status != nil && !p.Status.Valid() {
		return nil, errs.Validationf("Unknown lead status %q", *p.Status)
	}
	if p.AssignedTo != nil && *p.AssignedTo != "" {
		switch {
		case isAdmin(actor):
			if err := s.checkAssignee(ctx, *p.AssignedTo); err != nil {
				return nil, err
			}
		case *p.AssignedTo != actor.ID:
			return nil, errs.Forbidden("Only administrators can reassign leads")
		}
	}
	if p.CampaignID != nil && *p.CampaignID != "" {
		if err := s.checkCampaign(ctx, *p.CampaignID); err != nil {
			return nil, err
		}
	}

	now := s.now()
	lead, err := s.mutate(ctx, id, actor, "You can only update leads assigned to you", func(l *models.Lead) error {
		if p.AssignedTo != nil && *p.AssignedTo != l.AssignedTo {
			if !isAdmin(actor) {
				return errs.Forbidden("Only administrators can reassign leads")
			}
			l.Assign(*p.AssignedTo, now)
		}
		p.applyTo(l)
		return nil
	})
	if err != nil {
		return nil, err
	}
	events.Emit(events.LeadUpdated, events.RecordChange{ID: id, ActorID: actor.ID})
	return lead, nil
}

func (p LeadPatch) applyTo(l *models.Lead) {
	setString := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	setString(&l.FirstName, p.FirstName)
	setString(&l.LastName, p.LastName)
	setString(&l.Email, p.Email)
	setString(&l.Phone, p.Phone)
	setString(&l.ArtistName, p.ArtistName)
	setString(&l.Genre, p.Genre)
	setString(&l.SourceDetails, p.SourceDetails)
	setString(&l.CampaignID, p.CampaignID)
	setString(&l.ProjectDescription, p.ProjectDescription)
	setString(&l.PreferredContactMethod, p.PreferredContactMethod)
	setString(&l.Timezone, p.Timezone)
	setString(&l.Urgency, p.Urgency)
	if p.MusicLinks != nil {
		l.MusicLinks = *p.MusicLinks
	}
	if p.Source != nil {
		l.Source = *p.Source
	}
	if p.Status != nil {
		l.Status = *p.Status
	}
	if p.Priority != nil {
		l.Priority = *p.Priority
	}
	if p.Score != nil {
		l.Score = *p.Score
	}
	if p.Budget != nil {
		l.Budget = *p.Budget
	}
	if p.ServicesInterested != nil {
		l.ServicesInterested = p.ServicesInterested
	}
	if p.Location != nil {
		l.Location = *p.Location
	}
	if p.Tags != nil {
		l.Tags = p.Tags
	}
	if p.DealProbability != nil {
		l.DealProbability = *p.DealProbability
	}
}

// Delete soft-deletes the lead. Agents may not delete.
func (s *LeadService) Delete(ctx context.Context, id string, actor *models.Account) error {
	if err := requireRoles(actor, "Agents cannot delete leads", models.RoleManager); err != nil {
		return err
	}
	now := s.now()
	_, err := s.leads.Mutate(ctx, id, func(l *models.Lead) error {
		l.SoftDelete(actor.ID, now)
		l.UpdatedBy = actor.ID
		return nil
	})
	if err != nil {
		return storeError(s.log, err, "Lead")
	}
	events.Emit(events.LeadDeleted, events.RecordChange{ID: id, ActorID: actor.ID})
	return nil
}

func (s *LeadService) AddInteraction(ctx context.Context, id string, in InteractionInput, actor *models.Account) (*models.Lead, error) {
	if strings.TrimSpace(in.Description) == "" {
		return nil, errs.Validation("Interaction description is required")
	}
	now := s.now()
	return s.mutate(ctx, id, actor, "You can only add interactions to leads assigned to you", func(l *models.Lead) error {
		l.AddInteraction(models.Interaction{
			Type:           in.Type,
			Description:    in.Description,
			Outcome:        in.Outcome,
			NextAction:     in.NextAction,
			NextActionDate: in.NextActionDate,
			CreatedBy:      actor.ID,
		}, now)
		return nil
	})
}

// Reassign hands the lead to assigneeID and notes the change in its log.
func (s *LeadService) Reassign(ctx context.Context, id, assigneeID string, actor *models.Account) (*models.Lead, error) {
	if !isAdmin(actor) {
		return nil, errs.Forbidden("Only administrators can reassign leads")
	}
	if assigneeID == "" {
		return nil, errs.Validation("assignedTo is required")
	}
	if err := s.checkAssignee(ctx, assigneeID); err != nil {
		return nil, err
	}
	now := s.now()
	lead, err := s.mutate(ctx, id, actor, "", func(l *models.Lead) error {
		l.Assign(assigneeID, now)
		l.AddInteraction(models.Interaction{
			Type:        models.InteractionNote,
			Description: "Lead reassigned",
			CreatedBy:   actor.ID,
		}, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	events.Emit(events.LeadAssigned, events.RecordChange{ID: id, ActorID: actor.ID, Detail: assigneeID})
	return lead, nil
}

func (s *LeadService) SetFollowUp(ctx context.Context, id string, at time.Time, reason string, actor *models.Account) (*models.Lead, error) {
	if at.IsZero() {
		return nil, errs.Validation("Follow-up date is required")
	}
	return s.mutate(ctx, id, actor, "You can only set follow-ups for leads assigned to you", func(l *models.Lead) error {
		l.SetFollowUp(at, reason)
		return nil
	})
}

// Convert closes the lead as won with value.
func (s *LeadService) Convert(ctx context.Context, id string, value float64, actor *models.Account) (*models.Lead, error) {
	if value < 0 {
		return nil, errs.Validation("conversionValue must not be negative")
	}
	now := s.now()
	lead, err := s.mutate(ctx, id, actor, "You can only convert leads assigned to you", func(l *models.Lead) error {
		l.Convert(value, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	events.Emit(events.LeadConverted, events.RecordChange{ID: id, ActorID: actor.ID, Detail: strconv.FormatFloat(value, 'f', 2, 64)})
	return lead, nil
}

func (s *LeadService) MarkLost(ctx context.Context, id, reason string, actor *models.Account) (*models.Lead, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, errs.Validation("A reason is required")
	}
	now := s.now()
	lead, err := s.mutate(ctx, id, actor, "You can only update leads assigned to you", func(l *models.Lead) error {
		l.MarkAsLost(reason, actor.ID, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	events.Emit(events.LeadLost, events.RecordChange{ID: id, ActorID: actor.ID, Detail: reason})
	return lead, nil
}

// BulkUpdate applies p to every lead in ids. For agents one foreign lead
// fails the whole call and nothing is written.
func (s *LeadService) BulkUpdate(ctx context.Context, ids []string, p LeadPatch, actor *models.Account) ([]models.Lead, error) {
	if len(ids) == 0 {
		return nil, errs.Validation("leadIds must be a non-empty array")
	}
	if p.Status != nil && !p.Status.Valid() {
		return nil, errs.Validationf("Unknown lead status %q", *p.Status)
	}
	if p.Email != nil {
		return nil, errs.Validation("email cannot be bulk updated")
	}
	if p.AssignedTo != nil {
		if *p.AssignedTo == "" {
			return nil, errs.ValidationFields("Validation failed", map[string]string{"assignedTo": "assignedTo cannot be empty"})
		}
		if !isAdmin(actor) {
			return nil, errs.Forbidden("Only administrators can reassign leads")
		}
		if err := s.checkAssignee(ctx, *p.AssignedTo); err != nil {
			return nil, err
		}
	}

	now := s.now()
	updated, err := s.leads.MutateMany(ctx, ids, owned(actor, "You can only update leads assigned to you", func(l *models.Lead) error {
		if p.AssignedTo != nil && *p.AssignedTo != l.AssignedTo {
			l.Assign(*p.AssignedTo, now)
		}
		p.applyTo(l)
		return nil
	}))
	if err != nil {
		return nil, storeError(s.log, err, "Lead")
	}
	s.log.Info("%s bulk updated %d leads", actor.Email, len(updated))
	return updated, nil
}

func (s *LeadService) overdueQuery(actor *models.Account) store.Query {
	now := s.now()
	q := store.Query{
		Scope: scopeFor(actor),
		NotIn: map[string][]string{"status": statusStrings(models.ClosedLeadStatuses)},
	}
	return q.Between("next_follow_up", nil, &now)
}

// Overdue lists open leads whose follow-up date has passed, soonest first.
func (s *LeadService) Overdue(ctx context.Context, actor *models.Account) ([]models.Lead, error) {
	q := s.overdueQuery(actor)
	q.Sort = "next_follow_up"
	q.Order = store.Asc
	leads, _, err := s.leads.List(ctx, q)
	if err != nil {
		return nil, storeError(s.log, err, "Lead")
	}
	return leads, nil
}

func statusStrings(statuses []models.LeadStatus) []string {
	out := make([]string, len(statuses))
	for i, st := range statuses {
		out[i] = string(st)
	}
	return out
}

func (s *LeadService) Stats(ctx context.Context, actor *models.Account) (*LeadStats, error) {
	base := store.Query{Scope: scopeFor(actor)}
	stats := &LeadStats{}
	var err error

	if stats.ByStatus, err = s.leads.Aggregate(ctx, base, store.Aggregation{GroupBy: "status"}); err != nil {
		return nil, storeError(s.log, err, "Lead")
	}
	if stats.BySource, err = s.leads.Aggregate(ctx, base, store.Aggregation{GroupBy: "source"}); err != nil {
		return nil, storeError(s.log, err, "Lead")
	}
	if stats.ByTemperature, err = s.leads.Aggregate(ctx, base, store.Aggregation{GroupBy: "temperature"}); err != nil {
		return nil, storeError(s.log, err, "Lead")
	}
	totals, err := s.leads.Aggregate(ctx, base, store.Aggregation{Avg: []string{"score"}})
	if err != nil {
		return nil, storeError(s.log, err, "Lead")
	}
	won, err := s.leads.Aggregate(ctx, base.Where("status", string(models.LeadStatusWon)), store.Aggregation{Sum: []string{"conversion_value"}})
	if err != nil {
		return nil, storeError(s.log, err, "Lead")
	}
	if stats.OverdueCount, err = s.leads.Count(ctx, s.overdueQuery(actor)); err != nil {
		return nil, storeError(s.log, err, "Lead")
	}
	recent := base
	recent.Limit = 5
	if stats.Recent, _, err = s.leads.List(ctx, recent); err != nil {
		return nil, storeError(s.log, err, "Lead")
	}

	stats.Total = totals[0].Count
	stats.AverageScore = totals[0].Avg["score"]
	stats.Converted = won[0].Count
	stats.TotalValue = won[0].Sum["conversion_value"]
	stats.ConversionRate = ratio(float64(stats.Converted), float64(stats.Total)) * 100
	return stats, nil
}

var exportHeader = []string{
	"ID", "First Name", "Last Name", "Email", "Phone", "Artist Name",
	"Genre", "Status", "Score", "Source", "Assigned To", "Created At",
}

// Export renders the caller's scoped, filtered leads as CSV or JSON.
func (s *LeadService) Export(ctx context.Context, f LeadFilter, format ExportFormat, actor *models.Account) (*Export, error) {
	if format == "" {
		format = ExportJSON
	}
	if format != ExportJSON && format != ExportCSV {
		return nil, errs.Validation("format must be csv or json")
	}
	q, err := f.query(actor)
	if err != nil {
		return nil, err
	}
	leads, _, err := s.leads.List(ctx, q)
	if err != nil {
		return nil, storeError(s.log, err, "Lead")
	}

	stamp := s.now().UTC().Format("20060102-150405")
	out := &Export{Format: format, Count: len(leads)}
	switch format {
	case ExportCSV:
		names, err := s.assigneeNames(ctx, leads)
		if err != nil {
			return nil, err
		}
		if out.Data, err = leadsCSV(leads, names); err != nil {
			return nil, errs.Internal("Failed to render export", err)
		}
		out.Filename = "leads-" + stamp + ".csv"
		out.ContentType = "text/csv"
	default:
		for i := range leads {
			leads[i].Interactions = nil
		}
		if out.Data, err = json.Marshal(leads); err != nil {
			return nil, errs.Internal("Failed to render export", err)
		}
		out.Filename = "leads-" + stamp + ".json"
		out.ContentType = "application/json"
	}

	if s.files != nil && format == ExportCSV {
		key := fmt.Sprintf("exports/%s/%s", actor.ID, out.Filename)
		if err := s.files.Put(ctx, key, out.Data, out.ContentType); err != nil {
			return nil, errs.Internal("Failed to store export", err)
		}
		if out.URL, err = s.files.SignedURL(ctx, key, s.urlTTL); err != nil {
			return nil, errs.Internal("Failed to sign export link", err)
		}
		out.Data = nil
	}

	events.Emit(events.LeadsExported, events.RecordChange{ActorID: actor.ID, Detail: fmt.Sprintf("%d %s", out.Count, format)})
	return out, nil
}

func (s *LeadService) assigneeNames(ctx context.Context, leads []models.Lead) (map[string]string, error) {
	var ids []string
	seen := map[string]bool{}
	for _, l := range leads {
		if l.AssignedTo != "" && !seen[l.AssignedTo] {
			seen[l.AssignedTo] = true
			ids = append(ids, l.AssignedTo)
		}
	}
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	accounts, _, err := s.accounts.List(ctx, store.Query{IDs: ids})
	if err != nil {
		return nil, storeError(s.log, err, "User")
	}
	for _, a := range accounts {
		names[a.ID] = a.FullName()
	}
	return names, nil
}

func leadsCSV(leads []models.Lead, assignees map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, l := range leads {
		row := []string{
			l.ID, l.FirstName, l.LastName, l.Email, l.Phone, l.ArtistName,
			l.Genre, string(l.Status), strconv.Itoa(l.Score), string(l.Source),
			assignees[l.AssignedTo], l.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// OverdueByAssignee counts overdue open leads per assignee.
func (s *LeadService) OverdueByAssignee(ctx context.Context) (map[string]int64, error) {
	q := s.overdueQuery(&models.Account{Role: models.RoleAdmin})
	groups, err := s.leads.Aggregate(ctx, q, store.Aggregation{GroupBy: "assigned_to"})
	if err != nil {
		return nil, storeError(s.log, err, "Lead")
	}
	out := make(map[string]int64, len(groups))
	for _, g := range groups {
		if g.Key != "" {
			out[g.Key] = g.Count
		}
	}
	return out, nil
}
