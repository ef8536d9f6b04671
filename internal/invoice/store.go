package invoice

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrRecordNotFound indicates the invoice record does not exist.
var ErrRecordNotFound = errors.New("invoice: record not found")

// DB is the subset of pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists invoice records in Postgres.
type Store struct {
	db DB
}

// NewStore constructs a Store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

const recordColumns = `id, filename, file_path, source, invoice_number, client_name,
	issue_date, grand_total, currency, doc_id, status, invoice_json, created_at`

// Insert writes a new record and returns it with generated fields.
func (s *Store) Insert(ctx context.Context, rec Record) (Record, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO invoice_records
			(filename, file_path, source, invoice_number, client_name, issue_date,
			 grand_total, currency, doc_id, status, invoice_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+recordColumns,
		rec.Filename, rec.FilePath, rec.Source, rec.InvoiceNumber, rec.ClientName,
		rec.IssueDate, rec.GrandTotal, rec.Currency, rec.DocID, rec.Status, rec.InvoiceJSON)
	return scanRecord(row)
}

// Update rewrites every mutable column of a record.
func (s *Store) Update(ctx context.Context, rec Record) (Record, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE invoice_records SET
			filename = $2, file_path = $3, source = $4, invoice_number = $5,
			client_name = $6, issue_date = $7, grand_total = $8, currency = $9,
			doc_id = $10, status = $11, invoice_json = $12
		WHERE id = $1
		RETURNING `+recordColumns,
		rec.ID, rec.Filename, rec.FilePath, rec.Source, rec.InvoiceNumber,
		rec.ClientName, rec.IssueDate, rec.GrandTotal, rec.Currency,
		rec.DocID, rec.Status, rec.InvoiceJSON)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrRecordNotFound
	}
	return rec, err
}

// List returns all records, newest first.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+recordColumns+` FROM invoice_records ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("invoice: list records: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("invoice: iterate records: %w", err)
	}
	return records, nil
}

// Get returns one record by id.
func (s *Store) Get(ctx context.Context, id int64) (Record, error) {
	row := s.db.QueryRow(ctx, `SELECT `+recordColumns+` FROM invoice_records WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrRecordNotFound
	}
	return rec, err
}

// GetByNumber returns the record carrying the given invoice number.
func (s *Store) GetByNumber(ctx context.Context, number string) (Record, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM invoice_records WHERE invoice_number = $1`, number)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrRecordNotFound
	}
	return rec, err
}

// Count returns the total number of records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM invoice_records`).Scan(&count); err != nil {
		return 0, fmt.Errorf("invoice: count records: %w", err)
	}
	return count, nil
}

// Delete removes a record.
func (s *Store) Delete(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM invoice_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("invoice: delete record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.Filename, &rec.FilePath, &rec.Source,
		&rec.InvoiceNumber, &rec.ClientName, &rec.IssueDate, &rec.GrandTotal,
		&rec.Currency, &rec.DocID, &rec.Status, &rec.InvoiceJSON, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("invoice: scan record: %w", err)
	}
	return rec, nil
}
