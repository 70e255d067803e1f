// Package store declares the persistence contracts shared by the postgres and
// in-memory backends.
package store

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"mdmc/internal/models"
)

var (
	ErrNotFound  = errors.New("store: record not found")
	ErrDuplicate = errors.New("store: duplicate key")
)

type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// Scope restricts a query to records an account owns. For leads that is the
// assignee; for campaigns the manager or any team member.
type Scope struct {
	AccountID string
}

// TimeRange bounds a timestamp column; nil ends are open.
type TimeRange struct {
	Field string
	From  *time.Time
	To    *time.Time
}

// NumberRange bounds a numeric column inclusively; nil ends are open.
type NumberRange struct {
	Field string
	Min   *float64
	Max   *float64
}

// Query is a backend-neutral filter. Field names are storage column names.
// Soft-deleted leads and archived campaigns are never matched.
type Query struct {
	IDs          []string
	Equals       map[string]interface{}
	In           map[string][]string
	NotIn        map[string][]string
	Search       string
	SearchFields []string
	Times        []TimeRange
	Numbers      []NumberRange
	// Tags matches records carrying any of the tags.
	Tags  []string
	Scope *Scope

	Sort  string
	Order SortOrder
	Page  int
	Limit int
}

// Offset is the zero-based row offset for Page/Limit. It saturates at
// math.MaxInt instead of wrapping.
func (q Query) Offset() int {
	if q.Page <= 1 || q.Limit <= 0 {
		return 0
	}
	if q.Page-1 > math.MaxInt/q.Limit {
		return math.MaxInt
	}
	return (q.Page - 1) * q.Limit
}

// Where returns a copy with an additional equality filter.
func (q Query) Where(field string, value interface{}) Query {
	eq := make(map[string]interface{}, len(q.Equals)+1)
	for k, v := range q.Equals {
		eq[k] = v
	}
	eq[field] = value
	q.Equals = eq
	return q
}

// Between returns a copy with an additional time range.
func (q Query) Between(field string, from, to *time.Time) Query {
	if from == nil && to == nil {
		return q
	}
	q.Times = append(append([]TimeRange{}, q.Times...), TimeRange{Field: field, From: from, To: to})
	return q
}

type Granularity string

const (
	Day   Granularity = "day"
	Week  Granularity = "week"
	Month Granularity = "month"
)

func (g Granularity) Valid() bool {
	return g == Day || g == Week || g == Month
}

// BucketKey formats t as the key of its bucket: 2006-01-02 for days, the
// Monday of the ISO week for weeks, 2006-01 for months.
func (g Granularity) BucketKey(t time.Time) string {
	t = t.UTC()
	switch g {
	case Week:
		offset := (int(t.Weekday()) + 6) % 7
		return models.StartOfDay(t).AddDate(0, 0, -offset).Format("2006-01-02")
	case Month:
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}

// Aggregation groups the rows matched by a Query. With TimeField set rows are
// bucketed by Granularity; else by GroupBy; with neither a single group results.
type Aggregation struct {
	GroupBy     string
	TimeField   string
	Granularity Granularity
	Sum         []string
	Avg         []string
}

// Group is one aggregation bucket.
type Group struct {
	Key   string             `json:"key"`
	Count int64              `json:"count"`
	Sum   map[string]float64 `json:"sum,omitempty"`
	Avg   map[string]float64 `json:"avg,omitempty"`
}

// SortGroups puts time buckets in chronological order and categorical groups
// by descending count, ties broken by key.
func SortGroups(groups []Group, agg Aggregation) {
	sort.SliceStable(groups, func(i, j int) bool {
		if agg.TimeField == "" && groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].Key < groups[j].Key
	})
}

// Repository is the contract each entity store fulfils.
type Repository[T any] interface {
	// Create inserts a new record, failing with ErrDuplicate on unique clashes.
	Create(ctx context.Context, entity *T) error
	// Get loads a live record, failing with ErrNotFound.
	Get(ctx context.Context, id string) (*T, error)
	// List returns the page selected by q and the total match count.
	List(ctx context.Context, q Query) ([]T, int64, error)
	Count(ctx context.Context, q Query) (int64, error)
	Aggregate(ctx context.Context, q Query, agg Aggregation) ([]Group, error)
	// Mutate applies fn to the current record and persists it as one
	// read-modify-write. Nothing is written when fn fails.
	Mutate(ctx context.Context, id string, fn func(*T) error) (*T, error)
	// MutateMany applies fn to every record in ids atomically: either all
	// are written or none.
	MutateMany(ctx context.Context, ids []string, fn func(*T) error) ([]T, error)
}

type AccountStore interface {
	Repository[models.Account]
	// FindBy loads one account by a lookup column: email, google_id,
	// password_reset_hash or verification_hash.
	FindBy(ctx context.Context, field, value string) (*models.Account, error)
	// TouchActivity sets last_activity and nothing else.
	TouchActivity(ctx context.Context, id string, at time.Time) error
}

type LeadStore interface {
	Repository[models.Lead]
}

type CampaignStore interface {
	Repository[models.Campaign]
}

// Lookup columns accepted by AccountStore.FindBy.
const (
	ByEmail        = "email"
	ByGoogleID     = "google_id"
	ByResetHash    = "password_reset_hash"
	ByVerification = "verification_hash"
)
