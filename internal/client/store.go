package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound indicates the client or address does not exist.
var ErrNotFound = errors.New("client: not found")

// Address is one labelled address in a client's book.
type Address struct {
	ID        int64      `json:"id"`
	ClientID  int64      `json:"client_id"`
	Label     *string    `json:"label,omitempty"`
	Address   string     `json:"address"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// Client is a billed party with its addresses.
type Client struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Email     *string    `json:"email,omitempty"`
	Phone     *string    `json:"phone,omitempty"`
	Notes     *string    `json:"notes,omitempty"`
	Addresses []Address  `json:"addresses"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// DB is the subset of pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists clients and their addresses in Postgres.
type Store struct {
	db DB
}

// NewStore constructs a Store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

const clientColumns = `id, name, email, phone, notes, created_at, updated_at`

// List returns clients ordered by name, optionally filtered by a
// case-insensitive name substring, each with its addresses attached.
func (s *Store) List(ctx context.Context, search string) ([]Client, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if search == "" {
		rows, err = s.db.Query(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY name`)
	} else {
		rows, err = s.db.Query(ctx, `
			SELECT `+clientColumns+` FROM clients
			WHERE name ILIKE '%' || $1 || '%'
			ORDER BY name`, search)
	}
	if err != nil {
		return nil, fmt.Errorf("client: list: %w", err)
	}
	defer rows.Close()

	clients := []Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("client: iterate: %w", err)
	}

	for i := range clients {
		addrs, err := s.listAddresses(ctx, clients[i].ID)
		if err != nil {
			return nil, err
		}
		clients[i].Addresses = addrs
	}
	return clients, nil
}

// Get returns one client with addresses.
func (s *Store) Get(ctx context.Context, id int64) (Client, error) {
	row := s.db.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id)
	c, err := scanClient(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Client{}, ErrNotFound
	}
	if err != nil {
		return Client{}, err
	}
	c.Addresses, err = s.listAddresses(ctx, c.ID)
	if err != nil {
		return Client{}, err
	}
	return c, nil
}

// Create inserts a client.
func (s *Store) Create(ctx context.Context, name string, email, phone, notes *string) (Client, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO clients (name, email, phone, notes)
		VALUES ($1, $2, $3, $4)
		RETURNING `+clientColumns,
		name, email, phone, notes)
	c, err := scanClient(row)
	if err != nil {
		return Client{}, err
	}
	c.Addresses = []Address{}
	return c, nil
}

// Update applies a partial update; nil fields keep their current value.
func (s *Store) Update(ctx context.Context, id int64, name, email, phone, notes *string) (Client, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE clients SET
			name = COALESCE($2, name),
			email = COALESCE($3, email),
			phone = COALESCE($4, phone),
			notes = COALESCE($5, notes),
			updated_at = now()
		WHERE id = $1
		RETURNING `+clientColumns,
		id, name, email, phone, notes)
	c, err := scanClient(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Client{}, ErrNotFound
	}
	if err != nil {
		return Client{}, err
	}
	c.Addresses, err = s.listAddresses(ctx, c.ID)
	if err != nil {
		return Client{}, err
	}
	return c, nil
}

// Delete removes a client; addresses go with it via the FK cascade.
func (s *Store) Delete(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("client: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddAddress appends a labelled address to a client's book.
func (s *Store) AddAddress(ctx context.Context, clientID int64, label *string, address string) (Address, error) {
	if _, err := s.Get(ctx, clientID); err != nil {
		return Address{}, err
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO client_addresses (client_id, label, address)
		VALUES ($1, $2, $3)
		RETURNING id, client_id, label, address, created_at`,
		clientID, label, address)
	var a Address
	if err := row.Scan(&a.ID, &a.ClientID, &a.Label, &a.Address, &a.CreatedAt); err != nil {
		return Address{}, fmt.Errorf("client: insert address: %w", err)
	}
	return a, nil
}

// DeleteAddress removes one address from a client's book.
func (s *Store) DeleteAddress(ctx context.Context, clientID, addressID int64) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM client_addresses WHERE id = $1 AND client_id = $2`, addressID, clientID)
	if err != nil {
		return fmt.Errorf("client: delete address: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) listAddresses(ctx context.Context, clientID int64) ([]Address, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, client_id, label, address, created_at
		FROM client_addresses WHERE client_id = $1 ORDER BY id`, clientID)
	if err != nil {
		return nil, fmt.Errorf("client: list addresses: %w", err)
	}
	defer rows.Close()

	addrs := []Address{}
	for rows.Next() {
		var a Address
		if err := rows.Scan(&a.ID, &a.ClientID, &a.Label, &a.Address, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("client: scan address: %w", err)
		}
		addrs = append(addrs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("client: iterate addresses: %w", err)
	}
	return addrs, nil
}

func scanClient(row pgx.Row) (Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Notes, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Client{}, err
		}
		return Client{}, fmt.Errorf("client: scan row: %w", err)
	}
	return c, nil
}

// ContextEntries flattens the client book into the structure the invoice
// generator embeds in its prompt.
func ContextEntries(clients []Client) []map[string]any {
	out := make([]map[string]any, 0, len(clients))
	for _, c := range clients {
		addrs := make([]map[string]any, 0, len(c.Addresses))
		for _, a := range c.Addresses {
			addrs = append(addrs, map[string]any{"id": a.ID, "label": a.Label, "address": a.Address})
		}
		out = append(out, map[string]any{
			"id":        c.ID,
			"name":      c.Name,
			"email":     c.Email,
			"phone":     c.Phone,
			"addresses": addrs,
		})
	}
	return out
}
