package rag

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Hit is a single search result from the chunk index.
type Hit struct {
	DocID      string
	Filename   string
	ChunkIndex int
	Text       string
	Rank       float64
}

// Store indexes invoice text chunks in Postgres and retrieves them with
// full-text search.
type Store struct {
	db DB
}

// NewStore constructs a Store on the given connection pool.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Add writes every chunk of a document under the shared doc id. Adding an
// empty chunk list is a no-op.
func (s *Store) Add(ctx context.Context, docID, filename string, chunks []string) error {
	for i, chunk := range chunks {
		_, err := s.db.Exec(ctx, `
			INSERT INTO invoice_chunks (doc_id, filename, chunk_index, content)
			VALUES ($1, $2, $3, $4)`,
			docID, filename, i, chunk,
		)
		if err != nil {
			return fmt.Errorf("rag: insert chunk %d for doc %s: %w", i, docID, err)
		}
	}
	return nil
}

// Delete removes all chunks belonging to a document.
func (s *Store) Delete(ctx context.Context, docID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM invoice_chunks WHERE doc_id = $1`, docID); err != nil {
		return fmt.Errorf("rag: delete chunks for doc %s: %w", docID, err)
	}
	return nil
}

// Search returns the n best-matching chunks for the query, ranked by
// relevance.
func (s *Store) Search(ctx context.Context, query string, n int) ([]Hit, error) {
	if n <= 0 {
		n = 5
	}
	rows, err := s.db.Query(ctx, `
		SELECT doc_id, filename, chunk_index, content,
		       ts_rank(search_vector, plainto_tsquery('english', $1)) AS rank
		FROM invoice_chunks
		WHERE search_vector @@ plainto_tsquery('english', $1)
		ORDER BY rank DESC
		LIMIT $2`,
		query, n,
	)
	if err != nil {
		return nil, fmt.Errorf("rag: search chunks: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.DocID, &h.Filename, &h.ChunkIndex, &h.Text, &h.Rank); err != nil {
			return nil, fmt.Errorf("rag: scan hit: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rag: iterate hits: %w", err)
	}
	return hits, nil
}
