package rag

import (
	"context"
	"fmt"
	"strings"
)

// Searcher retrieves ranked chunks for a query.
type Searcher interface {
	Search(ctx context.Context, query string, n int) ([]Hit, error)
}

// Retriever turns search hits into a prompt context block.
type Retriever struct {
	Store   Searcher
	MaxDocs int
}

// Context queries the index for the prompt and formats the best chunks,
// keeping at most one chunk per source document and at most MaxDocs
// documents. It returns the formatted block and the number of unique
// documents used.
func (r Retriever) Context(ctx context.Context, prompt string) (string, int, error) {
	if r.Store == nil {
		return "", 0, nil
	}
	maxDocs := r.MaxDocs
	if maxDocs <= 0 {
		maxDocs = 3
	}
	hits, err := r.Store.Search(ctx, prompt, 5)
	if err != nil {
		return "", 0, err
	}
	if len(hits) == 0 {
		return "", 0, nil
	}

	seen := make(map[string]bool)
	var unique []Hit
	for _, hit := range hits {
		if seen[hit.DocID] {
			continue
		}
		seen[hit.DocID] = true
		unique = append(unique, hit)
		if len(unique) >= maxDocs {
			break
		}
	}

	parts := make([]string, 0, len(unique))
	for i, hit := range unique {
		filename := hit.Filename
		if filename == "" {
			filename = "unknown"
		}
		parts = append(parts, fmt.Sprintf("[Document %d - %s]\n%s", i+1, filename, hit.Text))
	}
	return strings.Join(parts, "\n\n---\n\n"), len(unique), nil
}
