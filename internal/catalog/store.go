package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound indicates the catalog item does not exist.
var ErrNotFound = errors.New("catalog: item not found")

// Item is a reusable billable line-item preset.
type Item struct {
	ID          int64      `json:"id"`
	Description string     `json:"description"`
	UnitPrice   float64    `json:"unit_price"`
	Unit        string     `json:"unit"`
	Notes       *string    `json:"notes,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// DB is the subset of pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists catalog items in Postgres.
type Store struct {
	db DB
}

// NewStore constructs a Store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

const itemColumns = `id, description, unit_price, unit, notes, created_at, updated_at`

// List returns items ordered by description, optionally filtered by a
// case-insensitive substring match.
func (s *Store) List(ctx context.Context, search string) ([]Item, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if search == "" {
		rows, err = s.db.Query(ctx, `SELECT `+itemColumns+` FROM catalog_items ORDER BY description`)
	} else {
		rows, err = s.db.Query(ctx, `
			SELECT `+itemColumns+` FROM catalog_items
			WHERE description ILIKE '%' || $1 || '%'
			ORDER BY description`, search)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: list items: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate items: %w", err)
	}
	return items, nil
}

// Get returns one item by id.
func (s *Store) Get(ctx context.Context, id int64) (Item, error) {
	row := s.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM catalog_items WHERE id = $1`, id)
	item, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	return item, err
}

// Create inserts a new item and returns it.
func (s *Store) Create(ctx context.Context, description string, unitPrice float64, unit string, notes *string) (Item, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO catalog_items (description, unit_price, unit, notes)
		VALUES ($1, $2, $3, $4)
		RETURNING `+itemColumns,
		description, unitPrice, unit, notes)
	return scanItem(row)
}

// Update applies a partial update; nil fields keep their current value.
func (s *Store) Update(ctx context.Context, id int64, description *string, unitPrice *float64, unit, notes *string) (Item, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE catalog_items SET
			description = COALESCE($2, description),
			unit_price = COALESCE($3, unit_price),
			unit = COALESCE($4, unit),
			notes = COALESCE($5, notes),
			updated_at = now()
		WHERE id = $1
		RETURNING `+itemColumns,
		id, description, unitPrice, unit, notes)
	item, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	return item, err
}

// Delete removes an item.
func (s *Store) Delete(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM catalog_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("catalog: delete item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanItem(row pgx.Row) (Item, error) {
	var item Item
	err := row.Scan(&item.ID, &item.Description, &item.UnitPrice, &item.Unit,
		&item.Notes, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, err
		}
		return Item{}, fmt.Errorf("catalog: scan item: %w", err)
	}
	return item, nil
}
