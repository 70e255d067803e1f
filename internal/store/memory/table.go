// Package memory implements the store contracts in process memory. It backs
// the test suites and DB_DRIVER=memory development runs.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"mdmc/internal/store"
)

// entity describes how the generic table handles one record type.
type entity[T any] struct {
	id      func(*T) string
	prepare func(*T, time.Time) error
	clone   func(*T) *T
	live    func(*T) bool
	field   func(*T, string) (interface{}, bool)
	owned   func(*T, string) bool
	tags    func(*T) []string
	// unique reports whether candidate clashes with existing.
	unique func(existing, candidate *T) bool
}

type table[T any] struct {
	mu   sync.RWMutex
	rows map[string]*T
	e    entity[T]
	now  func() time.Time
}

func newTable[T any](e entity[T]) *table[T] {
	return &table[T]{rows: make(map[string]*T), e: e, now: time.Now}
}

func (t *table[T]) Create(ctx context.Context, row *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	cp := t.e.clone(row)
	if err := t.e.prepare(cp, t.now()); err != nil {
		return err
	}
	id := t.e.id(cp)
	if _, exists := t.rows[id]; exists {
		return store.ErrDuplicate
	}
	if t.clashes(cp, id) {
		return store.ErrDuplicate
	}
	t.rows[id] = cp
	*row = *t.e.clone(cp)
	return nil
}

func (t *table[T]) Get(ctx context.Context, id string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	row, ok := t.rows[id]
	if !ok || !t.e.live(row) {
		return nil, store.ErrNotFound
	}
	return t.e.clone(row), nil
}

func (t *table[T]) List(ctx context.Context, q store.Query) ([]T, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	t.mu.RLock()
	matched := t.filter(q)
	t.mu.RUnlock()

	t.sortRows(matched, q)
	total := int64(len(matched))

	start := q.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := len(matched)
	if q.Limit > 0 && start+q.Limit < end {
		end = start + q.Limit
	}
	out := make([]T, 0, end-start)
	for _, row := range matched[start:end] {
		out = append(out, *row)
	}
	return out, total, nil
}

func (t *table[T]) Count(ctx context.Context, q store.Query) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return int64(len(t.filter(q))), nil
}

func (t *table[T]) Mutate(ctx context.Context, id string, fn func(*T) error) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	row, ok := t.rows[id]
	if !ok || !t.e.live(row) {
		return nil, store.ErrNotFound
	}
	cp := t.e.clone(row)
	if err := fn(cp); err != nil {
		return nil, err
	}
	if err := t.e.prepare(cp, t.now()); err != nil {
		return nil, err
	}
	if t.clashes(cp, id) {
		return nil, store.ErrDuplicate
	}
	t.rows[id] = cp
	return t.e.clone(cp), nil
}

func (t *table[T]) MutateMany(ctx context.Context, ids []string, fn func(*T) error) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	staged := make(map[string]*T, len(ids))
	order := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, seen := staged[id]; seen {
			continue
		}
		row, ok := t.rows[id]
		if !ok || !t.e.live(row) {
			return nil, store.ErrNotFound
		}
		cp := t.e.clone(row)
		if err := fn(cp); err != nil {
			return nil, err
		}
		if err := t.e.prepare(cp, now); err != nil {
			return nil, err
		}
		staged[id] = cp
		order = append(order, id)
	}
	for id, cp := range staged {
		if t.clashes(cp, id) {
			return nil, store.ErrDuplicate
		}
	}

	out := make([]T, 0, len(order))
	for _, id := range order {
		t.rows[id] = staged[id]
		out = append(out, *t.e.clone(staged[id]))
	}
	return out, nil
}

func (t *table[T]) Aggregate(ctx context.Context, q store.Query, agg store.Aggregation) ([]store.Group, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.RLock()
	matched := t.filter(q)
	t.mu.RUnlock()

	type acc struct {
		count int64
		sums  map[string]float64
		avgN  map[string]int64
	}
	buckets := make(map[string]*acc)
	grouped := agg.TimeField != "" || agg.GroupBy != ""
	if !grouped {
		buckets[""] = &acc{sums: map[string]float64{}, avgN: map[string]int64{}}
	}

	for _, row := range matched {
		key := ""
		switch {
		case agg.TimeField != "":
			ts, ok := asTime(t.value(row, agg.TimeField))
			if !ok {
				continue
			}
			key = agg.Granularity.BucketKey(ts)
		case agg.GroupBy != "":
			v := t.value(row, agg.GroupBy)
			if v == nil {
				continue
			}
			key = fmt.Sprint(v)
		}
		b, ok := buckets[key]
		if !ok {
			b = &acc{sums: map[string]float64{}, avgN: map[string]int64{}}
			buckets[key] = b
		}
		b.count++
		for _, f := range agg.Sum {
			n, _ := asNumber(t.value(row, f))
			b.sums["sum:"+f] += n
		}
		for _, f := range agg.Avg {
			if n, ok := asNumber(t.value(row, f)); ok {
				b.sums["avg:"+f] += n
				b.avgN[f]++
			}
		}
	}

	groups := make([]store.Group, 0, len(buckets))
	for key, b := range buckets {
		g := store.Group{Key: key, Count: b.count}
		if len(agg.Sum) > 0 {
			g.Sum = make(map[string]float64, len(agg.Sum))
			for _, f := range agg.Sum {
				g.Sum[f] = b.sums["sum:"+f]
			}
		}
		if len(agg.Avg) > 0 {
			g.Avg = make(map[string]float64, len(agg.Avg))
			for _, f := range agg.Avg {
				if b.avgN[f] > 0 {
					g.Avg[f] = b.sums["avg:"+f] / float64(b.avgN[f])
				} else {
					g.Avg[f] = 0
				}
			}
		}
		groups = append(groups, g)
	}
	store.SortGroups(groups, agg)
	return groups, nil
}

func (t *table[T]) clashes(candidate *T, id string) bool {
	if t.e.unique == nil || !t.e.live(candidate) {
		return false
	}
	for otherID, other := range t.rows {
		if otherID == id || !t.e.live(other) {
			continue
		}
		if t.e.unique(other, candidate) {
			return true
		}
	}
	return false
}

// filter returns copies of the live rows matching q. Callers hold the lock.
func (t *table[T]) filter(q store.Query) []*T {
	out := make([]*T, 0)
	for _, row := range t.rows {
		if t.e.live(row) && t.matches(row, q) {
			out = append(out, t.e.clone(row))
		}
	}
	return out
}

func (t *table[T]) value(row *T, field string) interface{} {
	if field == "id" {
		return t.e.id(row)
	}
	v, _ := t.e.field(row, field)
	return v
}

func (t *table[T]) matches(row *T, q store.Query) bool {
	if len(q.IDs) > 0 && !containsString(q.IDs, t.e.id(row)) {
		return false
	}
	for field, want := range q.Equals {
		if !equalValues(t.value(row, field), want) {
			return false
		}
	}
	for field, values := range q.In {
		if !containsString(values, fmt.Sprint(t.value(row, field))) {
			return false
		}
	}
	for field, values := range q.NotIn {
		if containsString(values, fmt.Sprint(t.value(row, field))) {
			return false
		}
	}
	if q.Search != "" && len(q.SearchFields) > 0 {
		needle := strings.ToLower(q.Search)
		hit := false
		for _, field := range q.SearchFields {
			if strings.Contains(strings.ToLower(asText(t.value(row, field))), needle) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	for _, r := range q.Times {
		ts, ok := asTime(t.value(row, r.Field))
		if !ok {
			return false
		}
		if r.From != nil && ts.Before(*r.From) {
			return false
		}
		if r.To != nil && ts.After(*r.To) {
			return false
		}
	}
	for _, r := range q.Numbers {
		n, ok := asNumber(t.value(row, r.Field))
		if !ok {
			return false
		}
		if r.Min != nil && n < *r.Min {
			return false
		}
		if r.Max != nil && n > *r.Max {
			return false
		}
	}
	if len(q.Tags) > 0 {
		hit := false
		for _, tag := range t.e.tags(row) {
			if containsString(q.Tags, tag) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	if q.Scope != nil && !t.e.owned(row, q.Scope.AccountID) {
		return false
	}
	return true
}

func (t *table[T]) sortRows(rows []*T, q store.Query) {
	field := q.Sort
	if field == "" {
		field = "created_at"
	}
	desc := q.Order != store.Asc
	if q.Sort == "" && q.Order == "" {
		desc = true
	}
	sort.SliceStable(rows, func(i, j int) bool {
		c := compareValues(t.value(rows[i], field), t.value(rows[j], field))
		if c == 0 {
			c = strings.Compare(t.e.id(rows[i]), t.e.id(rows[j]))
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func containsString(list []string, v string) bool {
	for _, candidate := range list {
		if candidate == v {
			return true
		}
	}
	return false
}

func equalValues(got, want interface{}) bool {
	if got == nil || want == nil {
		return got == nil && want == nil
	}
	if gn, ok := asNumber(got); ok {
		if wn, ok := asNumber(want); ok {
			return gn == wn
		}
	}
	return fmt.Sprint(got) == fmt.Sprint(want)
}

func asText(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []string:
		return strings.Join(x, " ")
	default:
		return fmt.Sprint(x)
	}
}

func asTime(v interface{}) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, !x.IsZero()
	case *time.Time:
		if x == nil {
			return time.Time{}, false
		}
		return *x, true
	}
	return time.Time{}, false
}

func asNumber(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case float64:
		if math.IsNaN(x) {
			return 0, false
		}
		return x, true
	}
	return 0, false
}

func compareValues(a, b interface{}) int {
	if ta, ok := asTime(a); ok {
		tb, ok := asTime(b)
		if !ok {
			return 1
		}
		return ta.Compare(tb)
	}
	if _, ok := asTime(b); ok {
		return -1
	}
	if na, ok := asNumber(a); ok {
		if nb, ok := asNumber(b); ok {
			switch {
			case na < nb:
				return -1
			case na > nb:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(strings.ToLower(asText(a)), strings.ToLower(asText(b)))
}
