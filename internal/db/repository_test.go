package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"mdmc/internal/models"
	"mdmc/internal/store"
)

// dryRun builds statements without touching a server.
func dryRun(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=test dbname=test sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)
	return db
}

func TestApplyBuildsLeadFilters(t *testing.T) {
	leads := NewLeadStore(dryRun(t))
	minScore := 40.0

	tx, err := leads.apply(leads.base(context.Background()), store.Query{
		Equals:       map[string]interface{}{"status": models.LeadStatusQualified},
		Tags:         []string{"vip", "rock"},
		Search:       "50%",
		SearchFields: []string{"email", "tags"},
		Numbers:      []store.NumberRange{{Field: "score", Min: &minScore}},
		Scope:        &store.Scope{AccountID: "agent-1"},
	})
	require.NoError(t, err)

	stmt := tx.Find(&[]models.Lead{}).Statement
	sql := stmt.SQL.String()

	assert.Contains(t, sql, "is_deleted = false")
	assert.Contains(t, sql, "status = $")
	assert.Contains(t, sql, "jsonb_exists(tags, $")
	assert.Contains(t, sql, "CAST(tags AS text) ILIKE $")
	assert.Contains(t, sql, "score >= $")
	assert.Contains(t, sql, "assigned_to = $")
	assert.Contains(t, stmt.Vars, "qualified")
	assert.Contains(t, stmt.Vars, `%50\%%`)
	assert.Contains(t, stmt.Vars, "agent-1")
}

func TestApplyRejectsUnknownColumns(t *testing.T) {
	leads := NewLeadStore(dryRun(t))

	_, err := leads.apply(leads.base(context.Background()), store.Query{
		Equals: map[string]interface{}{"password_hash; drop table leads": "x"},
	})
	assert.Error(t, err)

	_, err = leads.column("budget_total")
	assert.Error(t, err)
}

func TestCampaignTeamScope(t *testing.T) {
	campaigns := NewCampaignStore(dryRun(t))

	tx, err := campaigns.apply(campaigns.base(context.Background()), store.Query{Scope: &store.Scope{AccountID: "agent-1"}})
	require.NoError(t, err)
	stmt := tx.Find(&[]models.Campaign{}).Statement

	assert.Contains(t, stmt.SQL.String(), "is_archived = false")
	assert.Contains(t, stmt.SQL.String(), "team @> $")
	assert.Contains(t, stmt.Vars, `[{"accountId":"agent-1"}]`)
}

func TestBucketExpr(t *testing.T) {
	assert.Equal(t, "to_char(date_trunc('week', created_at AT TIME ZONE 'UTC'), 'YYYY-MM-DD')", bucketExpr("created_at", store.Week))
	assert.Equal(t, "to_char(date_trunc('month', created_at AT TIME ZONE 'UTC'), 'YYYY-MM')", bucketExpr("created_at", store.Month))
	assert.Equal(t, "to_char(date_trunc('day', converted_at AT TIME ZONE 'UTC'), 'YYYY-MM-DD')", bucketExpr("converted_at", store.Day))
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, `a\%b\_c\\`, escapeLike(`a%b_c\`))
	assert.Equal(t, []string{"a", "b"}, dedupe([]string{"a", "b", "a"}))
	assert.Equal(t, "won", sqlValue(models.LeadStatusWon))
	assert.Equal(t, true, sqlValue(true))
}
