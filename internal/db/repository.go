package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mdmc/internal/store"
)

// table describes the SQL side of one entity.
type table struct {
	columns map[string]bool
	// live is the predicate hiding soft-deleted rows; empty means every row is live.
	live  string
	scope func(tx *gorm.DB, accountID string) *gorm.DB
}

// Repository implements store.Repository on top of gorm.
type Repository[T any] struct {
	db *gorm.DB
	t  table
}

func newRepository[T any](db *gorm.DB, t table) *Repository[T] {
	return &Repository[T]{db: db, t: t}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return store.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
	}
	return err
}

func (r *Repository[T]) base(ctx context.Context) *gorm.DB {
	var model T
	tx := r.db.WithContext(ctx).Model(&model)
	if r.t.live != "" {
		tx = tx.Where(r.t.live)
	}
	return tx
}

func (r *Repository[T]) column(name string) (string, error) {
	if name == "id" || r.t.columns[name] {
		return name, nil
	}
	return "", fmt.Errorf("db: unknown column %q", name)
}

func (r *Repository[T]) Create(ctx context.Context, entity *T) error {
	return translate(r.db.WithContext(ctx).Create(entity).Error)
}

func (r *Repository[T]) Get(ctx context.Context, id string) (*T, error) {
	var entity T
	if err := r.base(ctx).First(&entity, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &entity, nil
}

func (r *Repository[T]) List(ctx context.Context, q store.Query) ([]T, int64, error) {
	total, err := r.Count(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	tx, err := r.apply(r.base(ctx), q)
	if err != nil {
		return nil, 0, err
	}

	sortCol := q.Sort
	if sortCol == "" {
		sortCol = "created_at"
	}
	if sortCol, err = r.column(sortCol); err != nil {
		return nil, 0, err
	}
	desc := q.Order != store.Asc
	tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: sortCol}, Desc: desc}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: desc})
	if q.Limit > 0 {
		tx = tx.Offset(q.Offset()).Limit(q.Limit)
	}

	entities := make([]T, 0)
	if err := tx.Find(&entities).Error; err != nil {
		return nil, 0, err
	}
	return entities, total, nil
}

func (r *Repository[T]) Count(ctx context.Context, q store.Query) (int64, error) {
	tx, err := r.apply(r.base(ctx), q)
	if err != nil {
		return 0, err
	}
	var total int64
	return total, tx.Count(&total).Error
}

func (r *Repository[T]) Mutate(ctx context.Context, id string, fn func(*T) error) (*T, error) {
	var entity T
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked := tx.Clauses(clause.Locking{Strength: "UPDATE"})
		if r.t.live != "" {
			locked = locked.Where(r.t.live)
		}
		if err := locked.First(&entity, "id = ?", id).Error; err != nil {
			return err
		}
		if err := fn(&entity); err != nil {
			return err
		}
		return tx.Save(&entity).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return &entity, nil
}

func (r *Repository[T]) MutateMany(ctx context.Context, ids []string, fn func(*T) error) ([]T, error) {
	unique := dedupe(ids)
	entities := make([]T, 0, len(unique))
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked := tx.Clauses(clause.Locking{Strength: "UPDATE"})
		if r.t.live != "" {
			locked = locked.Where(r.t.live)
		}
		if err := locked.Where("id IN ?", unique).Order("id").Find(&entities).Error; err != nil {
			return err
		}
		if len(entities) != len(unique) {
			return store.ErrNotFound
		}
		for i := range entities {
			if err := fn(&entities[i]); err != nil {
				return err
			}
			if err := tx.Save(&entities[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return entities, nil
}

func (r *Repository[T]) Aggregate(ctx context.Context, q store.Query, agg store.Aggregation) ([]store.Group, error) {
	tx, err := r.apply(r.base(ctx), q)
	if err != nil {
		return nil, err
	}

	keyExpr := "''"
	switch {
	case agg.TimeField != "":
		col, err := r.column(agg.TimeField)
		if err != nil {
			return nil, err
		}
		keyExpr = bucketExpr(col, agg.Granularity)
		tx = tx.Where(col + " IS NOT NULL")
	case agg.GroupBy != "":
		col, err := r.column(agg.GroupBy)
		if err != nil {
			return nil, err
		}
		keyExpr = "CAST(" + col + " AS text)"
		tx = tx.Where(col + " IS NOT NULL")
	}

	selects := []string{keyExpr + " AS bucket", "COUNT(*) AS total"}
	for _, f := range agg.Sum {
		col, err := r.column(f)
		if err != nil {
			return nil, err
		}
		selects = append(selects, "CAST(COALESCE(SUM("+col+"), 0) AS double precision)")
	}
	for _, f := range agg.Avg {
		col, err := r.column(f)
		if err != nil {
			return nil, err
		}
		selects = append(selects, "CAST(COALESCE(AVG("+col+"), 0) AS double precision)")
	}

	tx = tx.Select(strings.Join(selects, ", "))
	if agg.TimeField != "" || agg.GroupBy != "" {
		tx = tx.Group("bucket")
	}
	rows, err := tx.Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := make([]store.Group, 0)
	for rows.Next() {
		var g store.Group
		values := make([]float64, len(agg.Sum)+len(agg.Avg))
		dest := []interface{}{&g.Key, &g.Count}
		for i := range values {
			dest = append(dest, &values[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		if len(agg.Sum) > 0 {
			g.Sum = make(map[string]float64, len(agg.Sum))
			for i, f := range agg.Sum {
				g.Sum[f] = values[i]
			}
		}
		if len(agg.Avg) > 0 {
			g.Avg = make(map[string]float64, len(agg.Avg))
			for i, f := range agg.Avg {
				g.Avg[f] = values[len(agg.Sum)+i]
			}
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	store.SortGroups(groups, agg)
	return groups, nil
}

// bucketExpr renders col's bucket key in the same layout as Granularity.BucketKey.
func bucketExpr(col string, g store.Granularity) string {
	utc := col + " AT TIME ZONE 'UTC'"
	switch g {
	case store.Week:
		return "to_char(date_trunc('week', " + utc + "), 'YYYY-MM-DD')"
	case store.Month:
		return "to_char(date_trunc('month', " + utc + "), 'YYYY-MM')"
	default:
		return "to_char(date_trunc('day', " + utc + "), 'YYYY-MM-DD')"
	}
}

// apply translates q's filters into WHERE clauses.
func (r *Repository[T]) apply(tx *gorm.DB, q store.Query) (*gorm.DB, error) {
	if len(q.IDs) > 0 {
		tx = tx.Where("id IN ?", q.IDs)
	}
	for field, value := range q.Equals {
		col, err := r.column(field)
		if err != nil {
			return nil, err
		}
		tx = tx.Where(col+" = ?", sqlValue(value))
	}
	for field, values := range q.In {
		col, err := r.column(field)
		if err != nil {
			return nil, err
		}
		tx = tx.Where(col+" IN ?", values)
	}
	for field, values := range q.NotIn {
		col, err := r.column(field)
		if err != nil {
			return nil, err
		}
		tx = tx.Where(col+" NOT IN ?", values)
	}
	if q.Search != "" && len(q.SearchFields) > 0 {
		pattern := "%" + escapeLike(q.Search) + "%"
		parts := make([]string, 0, len(q.SearchFields))
		args := make([]interface{}, 0, len(q.SearchFields))
		for _, field := range q.SearchFields {
			col, err := r.column(field)
			if err != nil {
				return nil, err
			}
			if field == "tags" {
				col = "CAST(tags AS text)"
			}
			parts = append(parts, col+" ILIKE ?")
			args = append(args, pattern)
		}
		tx = tx.Where("("+strings.Join(parts, " OR ")+")", args...)
	}
	for _, rng := range q.Times {
		col, err := r.column(rng.Field)
		if err != nil {
			return nil, err
		}
		if rng.From != nil {
			tx = tx.Where(col+" >= ?", *rng.From)
		}
		if rng.To != nil {
			tx = tx.Where(col+" <= ?", *rng.To)
		}
		if rng.From == nil && rng.To == nil {
			tx = tx.Where(col + " IS NOT NULL")
		}
	}
	for _, rng := range q.Numbers {
		col, err := r.column(rng.Field)
		if err != nil {
			return nil, err
		}
		if rng.Min != nil {
			tx = tx.Where(col+" >= ?", *rng.Min)
		}
		if rng.Max != nil {
			tx = tx.Where(col+" <= ?", *rng.Max)
		}
	}
	if len(q.Tags) > 0 {
		parts := make([]string, len(q.Tags))
		args := make([]interface{}, len(q.Tags))
		for i, tag := range q.Tags {
			parts[i] = "jsonb_exists(tags, ?)"
			args[i] = tag
		}
		tx = tx.Where("("+strings.Join(parts, " OR ")+")", args...)
	}
	if q.Scope != nil {
		tx = r.t.scope(tx, q.Scope.AccountID)
	}
	return tx, nil
}

// sqlValue unwraps named string types so drivers bind them as text.
func sqlValue(v interface{}) interface{} {
	switch x := v.(type) {
	case string, bool, int, int64, float64, time.Time:
		return x
	}
	return fmt.Sprint(v)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func columnSet(names ...string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
