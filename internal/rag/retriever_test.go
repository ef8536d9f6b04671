package rag_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/invoice-assistant/internal/rag"
)

type fakeSearcher struct {
	hits []rag.Hit
	err  error
	n    int
}

func (f *fakeSearcher) Search(_ context.Context, _ string, n int) ([]rag.Hit, error) {
	f.n = n
	return f.hits, f.err
}

func TestRetrieverDedupesByDocument(t *testing.T) {
	store := &fakeSearcher{hits: []rag.Hit{
		{DocID: "a", Filename: "jan.pdf", Text: "first"},
		{DocID: "a", Filename: "jan.pdf", Text: "first again"},
		{DocID: "b", Filename: "feb.pdf", Text: "second"},
		{DocID: "c", Filename: "mar.pdf", Text: "third"},
		{DocID: "d", Filename: "apr.pdf", Text: "fourth"},
	}}
	r := rag.Retriever{Store: store, MaxDocs: 3}

	block, used, err := r.Context(context.Background(), "office cleaning")
	require.NoError(t, err)
	require.Equal(t, 3, used)
	require.Equal(t, 5, store.n)
	require.Contains(t, block, "[Document 1 - jan.pdf]\nfirst")
	require.Contains(t, block, "[Document 2 - feb.pdf]\nsecond")
	require.Contains(t, block, "[Document 3 - mar.pdf]\nthird")
	require.NotContains(t, block, "fourth")
	require.NotContains(t, block, "first again")
}

func TestRetrieverEmptyIndex(t *testing.T) {
	r := rag.Retriever{Store: &fakeSearcher{}}
	block, used, err := r.Context(context.Background(), "anything")
	require.NoError(t, err)
	require.Equal(t, 0, used)
	require.Empty(t, block)
}

func TestRetrieverPropagatesSearchError(t *testing.T) {
	r := rag.Retriever{Store: &fakeSearcher{err: errors.New("db down")}}
	_, _, err := r.Context(context.Background(), "anything")
	require.Error(t, err)
}

func TestRetrieverNilStore(t *testing.T) {
	r := rag.Retriever{}
	block, used, err := r.Context(context.Background(), "anything")
	require.NoError(t, err)
	require.Equal(t, 0, used)
	require.Empty(t, block)
}
