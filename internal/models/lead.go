package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type LeadStatus string

const (
	LeadStatusNew          LeadStatus = "new"
	LeadStatusContacted    LeadStatus = "contacted"
	LeadStatusQualified    LeadStatus = "qualified"
	LeadStatusProposalSent LeadStatus = "proposal_sent"
	LeadStatusNegotiating  LeadStatus = "negotiating"
	LeadStatusWon          LeadStatus = "won"
	LeadStatusLost         LeadStatus = "lost"
	LeadStatusUnqualified  LeadStatus = "unqualified"
)

// LeadStatuses is the pipeline in funnel order.
var LeadStatuses = []LeadStatus{
	LeadStatusNew, LeadStatusContacted, LeadStatusQualified, LeadStatusProposalSent,
	LeadStatusNegotiating, LeadStatusWon, LeadStatusLost, LeadStatusUnqualified,
}

// ClosedLeadStatuses no longer need follow-up.
var ClosedLeadStatuses = []LeadStatus{LeadStatusWon, LeadStatusLost, LeadStatusUnqualified}

func (s LeadStatus) Valid() bool {
	for _, known := range LeadStatuses {
		if s == known {
			return true
		}
	}
	return false
}

func (s LeadStatus) Closed() bool {
	for _, closed := range ClosedLeadStatuses {
		if s == closed {
			return true
		}
	}
	return false
}

type LeadSource string

var LeadSources = []LeadSource{
	"website", "social_media", "email", "referral", "advertising", "event", "cold_outreach", "organic", "other",
}

func (s LeadSource) Valid() bool {
	for _, known := range LeadSources {
		if s == known {
			return true
		}
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type Temperature string

const (
	TemperatureCold Temperature = "cold"
	TemperatureWarm Temperature = "warm"
	TemperatureHot  Temperature = "hot"
)

var Genres = []string{
	"Pop", "Rock", "Hip-Hop", "R&B", "Country", "Electronic", "Jazz",
	"Classical", "Folk", "Blues", "Reggae", "Punk", "Metal", "Alternative",
	"Indie", "Soul", "Funk", "Gospel", "Latin", "World", "Other",
}

type InteractionType string

const (
	InteractionCall     InteractionType = "call"
	InteractionEmail    InteractionType = "email"
	InteractionMeeting  InteractionType = "meeting"
	InteractionProposal InteractionType = "proposal"
	InteractionFollowUp InteractionType = "follow_up"
	InteractionNote     InteractionType = "note"
)

type Outcome string

const (
	OutcomePositive   Outcome = "positive"
	OutcomeNeutral    Outcome = "neutral"
	OutcomeNegative   Outcome = "negative"
	OutcomeNoResponse Outcome = "no_response"
)

// Score bounds and per-outcome adjustments.
const (
	MinScore            = 0
	MaxScore            = 100
	PositiveOutcomeGain = 10
	NegativeOutcomeLoss = 5
)

// Lead is a prospective client tracked through the sales pipeline.
type Lead struct {
	Base
	FirstName  string     `gorm:"size:50;not null" json:"firstName"`
	LastName   string     `gorm:"size:50;not null" json:"lastName"`
	Email      string     `gorm:"size:255;not null;uniqueIndex:idx_leads_email_live,where:is_deleted = false" json:"email"`
	Phone      string     `gorm:"size:32" json:"phone,omitempty"`
	ArtistName string     `gorm:"size:100" json:"artistName,omitempty"`
	Genre      string     `gorm:"size:32;index" json:"genre"`
	MusicLinks MusicLinks `gorm:"embedded;embeddedPrefix:music_" json:"musicLinks"`

	Source        LeadSource `gorm:"size:32;index;not null" json:"source"`
	SourceDetails string     `gorm:"size:200" json:"sourceDetails,omitempty"`
	CampaignID    string     `gorm:"size:36;index" json:"campaignId,omitempty"`

	Status           LeadStatus  `gorm:"size:32;index;not null" json:"status"`
	Priority         Priority    `gorm:"size:16" json:"priority"`
	Score            int         `gorm:"not null;default:0" json:"score"`
	Temperature      Temperature `gorm:"size:8;index" json:"temperature"`
	DataQualityScore int         `json:"dataQualityScore"`

	Budget                 LeadBudget                  `gorm:"embedded;embeddedPrefix:budget_" json:"budget"`
	ServicesInterested     datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"servicesInterested"`
	ProjectDescription     string                      `gorm:"size:1000" json:"projectDescription,omitempty"`
	PreferredContactMethod string                      `gorm:"size:16" json:"preferredContactMethod,omitempty"`
	Timezone               string                      `gorm:"size:64" json:"timezone,omitempty"`
	Urgency                string                      `gorm:"size:16" json:"urgency,omitempty"`
	Location               Location                    `gorm:"embedded;embeddedPrefix:location_" json:"location"`

	AssignedTo string     `gorm:"size:36;index" json:"assignedTo,omitempty"`
	AssignedAt *time.Time `json:"assignedAt,omitempty"`

	Interactions   datatypes.JSONSlice[Interaction] `gorm:"type:jsonb" json:"interactions"`
	NextFollowUp   *time.Time                       `gorm:"index" json:"nextFollowUp,omitempty"`
	FollowUpReason string                           `gorm:"size:200" json:"followUpReason,omitempty"`
	Tags           datatypes.JSONSlice[string]      `gorm:"type:jsonb" json:"tags"`

	ConvertedAt     *time.Time `gorm:"index" json:"convertedAt,omitempty"`
	ConversionValue float64    `json:"conversionValue"`
	DealProbability int        `json:"dealProbability"`

	IsDeleted bool       `gorm:"index;not null;default:false" json:"-"`
	DeletedAt *time.Time `json:"-"`
	DeletedBy string     `gorm:"size:36" json:"-"`
	CreatedBy string     `gorm:"size:36" json:"createdBy,omitempty"`
	UpdatedBy string     `gorm:"size:36" json:"updatedBy,omitempty"`
}

type MusicLinks struct {
	YouTube    string `gorm:"size:512" json:"youtube,omitempty"`
	Spotify    string `gorm:"size:512" json:"spotify,omitempty"`
	SoundCloud string `gorm:"size:512" json:"soundcloud,omitempty"`
	AppleMusic string `gorm:"size:512" json:"appleMusic,omitempty"`
}

type LeadBudget struct {
	Min      float64  `json:"min"`
	Max      float64  `json:"max"`
	Currency Currency `gorm:"size:3" json:"currency"`
}

type Location struct {
	City    string `gorm:"size:100" json:"city,omitempty"`
	State   string `gorm:"size:100" json:"state,omitempty"`
	Country string `gorm:"size:100" json:"country,omitempty"`
}

type Interaction struct {
	ID             string          `json:"id"`
	Type           InteractionType `json:"type"`
	Date           time.Time       `json:"date"`
	Description    string          `json:"description"`
	Outcome        Outcome         `json:"outcome,omitempty"`
	NextAction     string          `json:"nextAction,omitempty"`
	NextActionDate *time.Time      `json:"nextActionDate,omitempty"`
	CreatedBy      string          `json:"createdBy,omitempty"`
}

// TemperatureFor derives lead temperature from score and interaction count.
func TemperatureFor(score, interactions int) Temperature {
	switch {
	case score >= 80 || interactions >= 3:
		return TemperatureHot
	case score >= 60 || interactions >= 1:
		return TemperatureWarm
	default:
		return TemperatureCold
	}
}

// dataQuality rates how complete the lead record is, 0-100.
func (l *Lead) dataQuality() int {
	score := 0
	for _, v := range []string{l.FirstName, l.LastName, l.Email, l.Phone, l.ArtistName, l.Genre} {
		if strings.TrimSpace(v) != "" {
			score += 15
		}
	}
	if l.ProjectDescription != "" {
		score += 5
	}
	if l.Budget.Min > 0 {
		score += 5
	}
	if len(l.ServicesInterested) > 0 {
		score += 5
	}
	if l.MusicLinks.YouTube != "" || l.MusicLinks.Spotify != "" || l.MusicLinks.SoundCloud != "" {
		score += 10
	}
	return clampInt(score, 0, 100)
}

// Refresh recomputes every derived field. Stores call it before each write.
func (l *Lead) Refresh() {
	l.Email = NormalizeEmail(l.Email)
	l.Score = clampInt(l.Score, MinScore, MaxScore)
	l.DealProbability = clampInt(l.DealProbability, 0, 100)
	l.Tags = NormalizeTags(l.Tags)
	if l.Tags == nil {
		l.Tags = datatypes.JSONSlice[string]{}
	}
	if l.Interactions == nil {
		l.Interactions = datatypes.JSONSlice[Interaction]{}
	}
	if l.ServicesInterested == nil {
		l.ServicesInterested = datatypes.JSONSlice[string]{}
	}
	if l.Status == "" {
		l.Status = LeadStatusNew
	}
	if l.Priority == "" {
		l.Priority = PriorityMedium
	}
	if l.Genre == "" {
		l.Genre = "Other"
	}
	if l.Budget.Currency == "" {
		l.Budget.Currency = CurrencyUSD
	}
	l.DataQualityScore = l.dataQuality()
	l.Temperature = TemperatureFor(l.Score, len(l.Interactions))
}

// AddInteraction appends to the log and applies the outcome's score adjustment.
func (l *Lead) AddInteraction(in Interaction, now time.Time) Interaction {
	if in.ID == "" {
		in.ID = uuid.New().String()
	}
	if in.Date.IsZero() {
		in.Date = now
	}
	l.Interactions = append(l.Interactions, in)

	switch in.Outcome {
	case OutcomePositive:
		l.Score = min(l.Score+PositiveOutcomeGain, MaxScore)
	case OutcomeNegative:
		l.Score = max(l.Score-NegativeOutcomeLoss, MinScore)
	}
	return in
}

// Convert closes the lead as won.
func (l *Lead) Convert(value float64, now time.Time) {
	l.Status = LeadStatusWon
	l.ConvertedAt = timePtr(now)
	l.ConversionValue = value
	l.Score = MaxScore
}

// MarkAsLost closes the lead as lost and records why in the interaction log.
func (l *Lead) MarkAsLost(reason, actorID string, now time.Time) {
	l.Status = LeadStatusLost
	l.AddInteraction(Interaction{
		Type:        InteractionNote,
		Description: fmt.Sprintf("Lead marked as lost: %s", reason),
		Outcome:     OutcomeNegative,
		CreatedBy:   actorID,
	}, now)
}

func (l *Lead) SetFollowUp(at time.Time, reason string) {
	l.NextFollowUp = timePtr(at)
	l.FollowUpReason = reason
}

func (l *Lead) Assign(accountID string, now time.Time) {
	l.AssignedTo = accountID
	l.AssignedAt = timePtr(now)
}

func (l *Lead) SoftDelete(actorID string, now time.Time) {
	l.IsDeleted = true
	l.DeletedAt = timePtr(now)
	l.DeletedBy = actorID
}

func (l *Lead) FullName() string {
	return strings.TrimSpace(l.FirstName + " " + l.LastName)
}

func (l *Lead) IsOverdue(now time.Time) bool {
	return l.NextFollowUp != nil && l.NextFollowUp.Before(now)
}

func (l *Lead) DaysSinceCreated(now time.Time) int {
	return int(daysBetween(l.CreatedAt, now))
}

func (l *Lead) InteractionCount() int {
	return len(l.Interactions)
}

func (l *Lead) LastInteraction() *Interaction {
	if len(l.Interactions) == 0 {
		return nil
	}
	last := l.Interactions[len(l.Interactions)-1]
	return &last
}

// Clone returns a deep copy safe to mutate independently.
func (l *Lead) Clone() *Lead {
	cp := *l
	cp.Interactions = append(datatypes.JSONSlice[Interaction]{}, l.Interactions...)
	cp.Tags = append(datatypes.JSONSlice[string]{}, l.Tags...)
	cp.ServicesInterested = append(datatypes.JSONSlice[string]{}, l.ServicesInterested...)
	return &cp
}
