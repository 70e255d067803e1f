package db

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"mdmc/internal/models"
	"mdmc/internal/store"
)

type AccountStore struct {
	*Repository[models.Account]
}

var _ store.AccountStore = (*AccountStore)(nil)

func NewAccountStore(db *gorm.DB) *AccountStore {
	return &AccountStore{newRepository[models.Account](db, table{
		columns: columnSet(
			"role", "is_active", "is_verified", "email", "first_name", "last_name",
			"last_login", "created_at", "google_id", "password_reset_hash", "verification_hash",
		),
		scope: func(tx *gorm.DB, accountID string) *gorm.DB {
			return tx.Where("id = ?", accountID)
		},
	})}
}

func (s *AccountStore) FindBy(ctx context.Context, field, value string) (*models.Account, error) {
	col, err := s.column(field)
	if err != nil {
		return nil, err
	}
	if field == store.ByEmail {
		value = models.NormalizeEmail(value)
	}
	if value == "" {
		return nil, store.ErrNotFound
	}
	var account models.Account
	if err := s.db.WithContext(ctx).First(&account, col+" = ?", value).Error; err != nil {
		return nil, translate(err)
	}
	return &account, nil
}

// TouchActivity is a single-column update that skips hooks and updated_at.
func (s *AccountStore) TouchActivity(ctx context.Context, id string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id).UpdateColumn("last_activity", at)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

type LeadStore struct {
	*Repository[models.Lead]
}

var _ store.LeadStore = (*LeadStore)(nil)

func NewLeadStore(db *gorm.DB) *LeadStore {
	return &LeadStore{newRepository[models.Lead](db, table{
		columns: columnSet(
			"created_at", "status", "source", "genre", "temperature", "priority", "score",
			"assigned_to", "campaign_id", "converted_at", "conversion_value", "next_follow_up",
			"tags", "email", "first_name", "last_name", "artist_name", "phone", "is_deleted",
		),
		live: "is_deleted = false",
		scope: func(tx *gorm.DB, accountID string) *gorm.DB {
			return tx.Where("assigned_to = ?", accountID)
		},
	})}
}

type CampaignStore struct {
	*Repository[models.Campaign]
}

var _ store.CampaignStore = (*CampaignStore)(nil)

func NewCampaignStore(db *gorm.DB) *CampaignStore {
	return &CampaignStore{newRepository[models.Campaign](db, table{
		columns: columnSet(
			"created_at", "status", "type", "category", "manager_id", "budget_total", "budget_spent",
			"metrics_revenue", "metrics_impressions", "metrics_clicks", "metrics_conversions",
			"metrics_ctr", "metrics_roas", "start_date", "end_date", "name", "description",
			"tags", "team", "is_archived",
		),
		live:  "is_archived = false",
		scope: teamScope,
	})}
}

// teamScope matches campaigns the account manages or is on the team of.
func teamScope(tx *gorm.DB, accountID string) *gorm.DB {
	member, _ := json.Marshal([]map[string]string{{"accountId": accountID}})
	return tx.Where("(manager_id = ? OR team @> ?::jsonb)", accountID, string(member))
}
