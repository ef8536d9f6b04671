package settings

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// BusinessSettings is the single business profile row.
type BusinessSettings struct {
	ID              int64     `json:"id"`
	Name            *string   `json:"name"`
	Address         *string   `json:"address"`
	Email           *string   `json:"email"`
	Phone           *string   `json:"phone"`
	TaxID           *string   `json:"tax_id"`
	LogoPath        *string   `json:"logo_path"`
	DefaultCurrency string    `json:"default_currency"`
	DefaultTaxPct   float64   `json:"default_tax_pct"`
	PaymentTerms    string    `json:"payment_terms"`
	BankName        *string   `json:"bank_name"`
	AccountName     *string   `json:"account_name"`
	AccountNumber   *string   `json:"account_number"`
	RoutingNumber   *string   `json:"routing_number"`
	PaymentNotes    *string   `json:"payment_notes"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Update carries a partial settings change; nil fields are left untouched.
type Update struct {
	Name            *string  `json:"name"`
	Address         *string  `json:"address"`
	Email           *string  `json:"email" validate:"omitempty,email"`
	Phone           *string  `json:"phone"`
	TaxID           *string  `json:"tax_id"`
	LogoPath        *string  `json:"logo_path"`
	DefaultCurrency *string  `json:"default_currency" validate:"omitempty,len=3"`
	DefaultTaxPct   *float64 `json:"default_tax_pct" validate:"omitempty,gte=0,lte=100"`
	PaymentTerms    *string  `json:"payment_terms"`
	BankName        *string  `json:"bank_name"`
	AccountName     *string  `json:"account_name"`
	AccountNumber   *string  `json:"account_number"`
	RoutingNumber   *string  `json:"routing_number"`
	PaymentNotes    *string  `json:"payment_notes"`
}

// DB is the subset of pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads and writes the singleton business_settings row.
type Store struct {
	db DB
}

// NewStore constructs a Store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

const selectColumns = `id, name, address, email, phone, tax_id, logo_path,
	default_currency, default_tax_pct, payment_terms,
	bank_name, account_name, account_number, routing_number, payment_notes, updated_at`

// Get returns the profile, creating the default row on first use.
func (s *Store) Get(ctx context.Context) (BusinessSettings, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO business_settings (id) VALUES (1)
		ON CONFLICT (id) DO UPDATE SET id = business_settings.id
		RETURNING `+selectColumns)
	return scanSettings(row)
}

// Apply merges a partial update into the row and bumps updated_at.
func (s *Store) Apply(ctx context.Context, upd Update) (BusinessSettings, error) {
	if _, err := s.Get(ctx); err != nil {
		return BusinessSettings{}, err
	}
	row := s.db.QueryRow(ctx, `
		UPDATE business_settings SET
			name = COALESCE($1, name),
			address = COALESCE($2, address),
			email = COALESCE($3, email),
			phone = COALESCE($4, phone),
			tax_id = COALESCE($5, tax_id),
			logo_path = COALESCE($6, logo_path),
			default_currency = COALESCE($7, default_currency),
			default_tax_pct = COALESCE($8, default_tax_pct),
			payment_terms = COALESCE($9, payment_terms),
			bank_name = COALESCE($10, bank_name),
			account_name = COALESCE($11, account_name),
			account_number = COALESCE($12, account_number),
			routing_number = COALESCE($13, routing_number),
			payment_notes = COALESCE($14, payment_notes),
			updated_at = now()
		WHERE id = 1
		RETURNING `+selectColumns,
		upd.Name, upd.Address, upd.Email, upd.Phone, upd.TaxID, upd.LogoPath,
		upd.DefaultCurrency, upd.DefaultTaxPct, upd.PaymentTerms,
		upd.BankName, upd.AccountName, upd.AccountNumber, upd.RoutingNumber, upd.PaymentNotes,
	)
	return scanSettings(row)
}

func scanSettings(row pgx.Row) (BusinessSettings, error) {
	var s BusinessSettings
	err := row.Scan(
		&s.ID, &s.Name, &s.Address, &s.Email, &s.Phone, &s.TaxID, &s.LogoPath,
		&s.DefaultCurrency, &s.DefaultTaxPct, &s.PaymentTerms,
		&s.BankName, &s.AccountName, &s.AccountNumber, &s.RoutingNumber, &s.PaymentNotes, &s.UpdatedAt,
	)
	if err != nil {
		return BusinessSettings{}, fmt.Errorf("settings: scan row: %w", err)
	}
	return s, nil
}

// Profile flattens the settings into the key/value map handed to the invoice
// generator.
func (s BusinessSettings) Profile() map[string]any {
	return map[string]any{
		"name":             s.Name,
		"address":          s.Address,
		"email":            s.Email,
		"phone":            s.Phone,
		"tax_id":           s.TaxID,
		"default_currency": s.DefaultCurrency,
		"default_tax_pct":  s.DefaultTaxPct,
		"payment_terms":    s.PaymentTerms,
		"bank_name":        s.BankName,
		"account_name":     s.AccountName,
		"account_number":   s.AccountNumber,
		"routing_number":   s.RoutingNumber,
		"payment_notes":    s.PaymentNotes,
	}
}
