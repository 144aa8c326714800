package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jengzang/daytrail-backend-go/internal/database"
)

// Persistency is the generic CRUD adapter used by the services
type Persistency[T any] interface {
	// Get returns every row matching p, ordered by the table's natural order
	Get(ctx context.Context, p Predicate) ([]T, error)
	// GetLast returns the row that sorts last, or nil for an empty table
	GetLast(ctx context.Context) (*T, error)
	Create(ctx context.Context, item T) error
	// Update applies fn to the first row matching p and stores the result.
	// It returns nil when nothing matched.
	Update(ctx context.Context, p Predicate, fn func(T) T) (*T, error)
	// Delete removes every row matching p and reports how many were removed
	Delete(ctx context.Context, p Predicate) (int64, error)
}

// Predicate is a conjunction of SQL conditions with positional arguments
type Predicate struct {
	conditions []string
	args       []interface{}
}

// All matches every row
func All() Predicate { return Predicate{} }

// Where starts a predicate with one condition
func Where(condition string, args ...interface{}) Predicate {
	return All().And(condition, args...)
}

// And returns a copy of p with one more condition
func (p Predicate) And(condition string, args ...interface{}) Predicate {
	conditions := append(append([]string(nil), p.conditions...), condition)
	allArgs := append(append([]interface{}(nil), p.args...), args...)
	return Predicate{conditions: conditions, args: allArgs}
}

// SQL renders the WHERE clause (empty for All) and its arguments
func (p Predicate) SQL() (string, []interface{}) {
	if len(p.conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(p.conditions, " AND "), p.args
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// Mapper describes how a model type maps onto one table
type Mapper[T any] struct {
	Table   string
	Columns []string // Columns[0] is the primary key
	OrderBy string   // column defining the natural order
	Scan    func(row scanner) (T, error)
	Values  func(item T) []interface{} // in Columns order
}

// SQLRepository implements Persistency on database/sql
type SQLRepository[T any] struct {
	db     *sql.DB
	mapper Mapper[T]
}

// NewSQLRepository creates a repository for the mapped table
func NewSQLRepository[T any](db *sql.DB, mapper Mapper[T]) *SQLRepository[T] {
	return &SQLRepository[T]{db: db, mapper: mapper}
}

func (r *SQLRepository[T]) selectQuery() string {
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(r.mapper.Columns, ", "), r.mapper.Table)
}

// Get implements Persistency
func (r *SQLRepository[T]) Get(ctx context.Context, p Predicate) ([]T, error) {
	where, args := p.SQL()
	query := r.selectQuery() + where + " ORDER BY " + r.mapper.OrderBy + " ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", r.mapper.Table, err)
	}
	defer rows.Close()

	var items []T
	for rows.Next() {
		item, err := r.mapper.Scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", r.mapper.Table, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", r.mapper.Table, err)
	}

	return items, nil
}

// GetLast implements Persistency
func (r *SQLRepository[T]) GetLast(ctx context.Context) (*T, error) {
	query := r.selectQuery() + " ORDER BY " + r.mapper.OrderBy + " DESC LIMIT 1"

	item, err := r.mapper.Scan(r.db.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last %s: %w", r.mapper.Table, err)
	}
	return &item, nil
}

// Create implements Persistency
func (r *SQLRepository[T]) Create(ctx context.Context, item T) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(r.mapper.Columns)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		r.mapper.Table, strings.Join(r.mapper.Columns, ", "), placeholders)

	if _, err := r.db.ExecContext(ctx, query, r.mapper.Values(item)...); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", r.mapper.Table, err)
	}
	return nil
}

// Update implements Persistency
func (r *SQLRepository[T]) Update(ctx context.Context, p Predicate, fn func(T) T) (*T, error) {
	var updated *T

	err := database.Transaction(ctx, r.db, func(tx *sql.Tx) error {
		where, args := p.SQL()
		query := r.selectQuery() + where + " ORDER BY " + r.mapper.OrderBy + " ASC LIMIT 1"

		current, err := r.mapper.Scan(tx.QueryRowContext(ctx, query, args...))
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load %s for update: %w", r.mapper.Table, err)
		}

		next := fn(current)
		values := r.mapper.Values(next)
		keyBefore := r.mapper.Values(current)[0]

		var assignments []string
		for _, col := range r.mapper.Columns[1:] {
			assignments = append(assignments, col+" = ?")
		}
		update := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
			r.mapper.Table, strings.Join(assignments, ", "), r.mapper.Columns[0])

		if _, err := tx.ExecContext(ctx, update, append(values[1:], keyBefore)...); err != nil {
			return fmt.Errorf("failed to update %s: %w", r.mapper.Table, err)
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete implements Persistency
func (r *SQLRepository[T]) Delete(ctx context.Context, p Predicate) (int64, error) {
	where, args := p.SQL()
	res, err := r.db.ExecContext(ctx, "DELETE FROM "+r.mapper.Table+where, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", r.mapper.Table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted %s: %w", r.mapper.Table, err)
	}
	return n, nil
}

// Timestamps are stored as unix milliseconds

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func toNullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromNullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

// Millis converts t to the stored timestamp representation, for building predicates
func Millis(t time.Time) int64 { return toMillis(t) }
