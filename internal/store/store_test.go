package store

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBucketKey(t *testing.T) {
	// Thursday
	ts := time.Date(2026, 4, 16, 22, 30, 0, 0, time.UTC)

	assert.Equal(t, "2026-04-16", Day.BucketKey(ts))
	assert.Equal(t, "2026-04-13", Week.BucketKey(ts))
	assert.Equal(t, "2026-04", Month.BucketKey(ts))

	sunday := time.Date(2026, 4, 19, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-04-13", Week.BucketKey(sunday))
}

func TestQueryHelpersCopy(t *testing.T) {
	base := Query{Equals: map[string]interface{}{"status": "new"}}
	narrowed := base.Where("source", "referral")

	assert.Len(t, base.Equals, 1)
	assert.Len(t, narrowed.Equals, 2)

	from := time.Now()
	ranged := base.Between("created_at", &from, nil)
	assert.Empty(t, base.Times)
	assert.Len(t, ranged.Times, 1)
	assert.Equal(t, base, base.Between("created_at", nil, nil))
}

func TestOffset(t *testing.T) {
	assert.Equal(t, 0, Query{}.Offset())
	assert.Equal(t, 0, Query{Page: 1, Limit: 10}.Offset())
	assert.Equal(t, 20, Query{Page: 3, Limit: 10}.Offset())
	assert.Equal(t, math.MaxInt, Query{Page: math.MaxInt, Limit: 100}.Offset())
	assert.Equal(t, math.MaxInt, Query{Page: math.MaxInt / 50, Limit: 100}.Offset())
}

func TestGranularityValid(t *testing.T) {
	assert.True(t, Week.Valid())
	assert.False(t, Granularity("year").Valid())
}
