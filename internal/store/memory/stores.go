package memory

import (
	"context"
	"time"

	"mdmc/internal/models"
	"mdmc/internal/store"
)

// Stores bundles one table per entity.
type Stores struct {
	Accounts  *AccountStore
	Leads     *LeadStore
	Campaigns *CampaignStore
}

func New() *Stores {
	return &Stores{
		Accounts:  NewAccountStore(),
		Leads:     NewLeadStore(),
		Campaigns: NewCampaignStore(),
	}
}

type AccountStore struct {
	*table[models.Account]
}

var _ store.AccountStore = (*AccountStore)(nil)

func NewAccountStore() *AccountStore {
	return &AccountStore{newTable(entity[models.Account]{
		id: func(a *models.Account) string { return a.ID },
		prepare: func(a *models.Account, now time.Time) error {
			a.EnsureID()
			a.Stamp(now)
			return a.Normalize()
		},
		clone: func(a *models.Account) *models.Account { return a.Clone() },
		live:  func(*models.Account) bool { return true },
		field: accountField,
		owned: func(a *models.Account, accountID string) bool { return a.ID == accountID },
		tags:  func(*models.Account) []string { return nil },
		unique: func(existing, candidate *models.Account) bool {
			if existing.Email == candidate.Email {
				return true
			}
			return existing.GoogleID != nil && candidate.GoogleID != nil && *existing.GoogleID == *candidate.GoogleID
		},
	})}
}

// FindBy loads the account whose lookup column equals value.
func (s *AccountStore) FindBy(ctx context.Context, field, value string) (*models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if field == store.ByEmail {
		value = models.NormalizeEmail(value)
	}
	if value == "" {
		return nil, store.ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.rows {
		if equalValues(accountLookup(a, field), value) {
			return a.Clone(), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *AccountStore) TouchActivity(ctx context.Context, id string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.rows[id]
	if !ok {
		return store.ErrNotFound
	}
	a.LastActivity = &at
	return nil
}

func accountLookup(a *models.Account, field string) interface{} {
	switch field {
	case store.ByGoogleID:
		if a.GoogleID == nil {
			return nil
		}
		return *a.GoogleID
	default:
		v, _ := accountField(a, field)
		return v
	}
}

func accountField(a *models.Account, field string) (interface{}, bool) {
	switch field {
	case "email":
		return a.Email, true
	case "first_name":
		return a.FirstName, true
	case "last_name":
		return a.LastName, true
	case "role":
		return string(a.Role), true
	case "is_active":
		return a.IsActive, true
	case "is_verified":
		return a.IsVerified, true
	case "last_login":
		return a.LastLogin, true
	case "created_at":
		return a.CreatedAt, true
	case "google_id":
		if a.GoogleID == nil {
			return nil, true
		}
		return *a.GoogleID, true
	case "password_reset_hash":
		return a.PasswordResetHash, true
	case "verification_hash":
		return a.VerificationHash, true
	}
	return nil, false
}

type LeadStore struct {
	*table[models.Lead]
}

var _ store.LeadStore = (*LeadStore)(nil)

func NewLeadStore() *LeadStore {
	return &LeadStore{newTable(entity[models.Lead]{
		id: func(l *models.Lead) string { return l.ID },
		prepare: func(l *models.Lead, now time.Time) error {
			l.EnsureID()
			l.Stamp(now)
			l.Refresh()
			return nil
		},
		clone: func(l *models.Lead) *models.Lead { return l.Clone() },
		live:  func(l *models.Lead) bool { return !l.IsDeleted },
		field: leadField,
		owned: func(l *models.Lead, accountID string) bool { return l.AssignedTo == accountID },
		tags:  func(l *models.Lead) []string { return l.Tags },
		unique: func(existing, candidate *models.Lead) bool {
			return existing.Email == candidate.Email
		},
	})}
}

func leadField(l *models.Lead, field string) (interface{}, bool) {
	switch field {
	case "created_at":
		return l.CreatedAt, true
	case "status":
		return string(l.Status), true
	case "source":
		return string(l.Source), true
	case "genre":
		return l.Genre, true
	case "temperature":
		return string(l.Temperature), true
	case "priority":
		return string(l.Priority), true
	case "score":
		return l.Score, true
	case "assigned_to":
		return l.AssignedTo, true
	case "campaign_id":
		return l.CampaignID, true
	case "converted_at":
		return l.ConvertedAt, true
	case "conversion_value":
		return l.ConversionValue, true
	case "next_follow_up":
		return l.NextFollowUp, true
	case "tags":
		return []string(l.Tags), true
	case "email":
		return l.Email, true
	case "first_name":
		return l.FirstName, true
	case "last_name":
		return l.LastName, true
	case "artist_name":
		return l.ArtistName, true
	case "phone":
		return l.Phone, true
	case "is_deleted":
		return l.IsDeleted, true
	}
	return nil, false
}

type CampaignStore struct {
	*table[models.Campaign]
}

var _ store.CampaignStore = (*CampaignStore)(nil)

func NewCampaignStore() *CampaignStore {
	return &CampaignStore{newTable(entity[models.Campaign]{
		id: func(c *models.Campaign) string { return c.ID },
		prepare: func(c *models.Campaign, now time.Time) error {
			c.EnsureID()
			c.Stamp(now)
			c.Refresh()
			return nil
		},
		clone: func(c *models.Campaign) *models.Campaign { return c.Clone() },
		live:  func(c *models.Campaign) bool { return !c.IsArchived },
		field: campaignField,
		owned: func(c *models.Campaign, accountID string) bool {
			return c.IsManagedBy(accountID) || c.HasTeamMember(accountID)
		},
		tags: func(c *models.Campaign) []string { return c.Tags },
	})}
}

func campaignField(c *models.Campaign, field string) (interface{}, bool) {
	switch field {
	case "created_at":
		return c.CreatedAt, true
	case "status":
		return string(c.Status), true
	case "type":
		return string(c.Type), true
	case "category":
		return c.Category, true
	case "manager_id":
		return c.ManagerID, true
	case "budget_total":
		return c.Budget.Total, true
	case "budget_spent":
		return c.Budget.Spent, true
	case "metrics_revenue":
		return c.Metrics.Revenue, true
	case "metrics_impressions":
		return c.Metrics.Impressions, true
	case "metrics_clicks":
		return c.Metrics.Clicks, true
	case "metrics_conversions":
		return c.Metrics.Conversions, true
	case "metrics_ctr":
		return c.Metrics.CTR, true
	case "metrics_roas":
		return c.Metrics.ROAS, true
	case "start_date":
		return c.StartDate, true
	case "end_date":
		return c.EndDate, true
	case "name":
		return c.Name, true
	case "description":
		return c.Description, true
	case "tags":
		return []string(c.Tags), true
	case "is_archived":
		return c.IsArchived, true
	}
	return nil, false
}
