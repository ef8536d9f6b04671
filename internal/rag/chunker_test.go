package rag_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/invoice-assistant/internal/rag"
)

func TestChunkEmptyTextReturnsNothing(t *testing.T) {
	require.Nil(t, rag.Chunk("", 2000, 200))
	require.Nil(t, rag.Chunk("   \n\t  ", 2000, 200))
}

func TestChunkShortTextIsSingleChunk(t *testing.T) {
	chunks := rag.Chunk("hello world", 2000, 200)
	require.Equal(t, []string{"hello world"}, chunks)
}

func TestChunkOverlapCarriesTailForward(t *testing.T) {
	text := strings.Repeat("abcdefghij", 50) // 500 chars
	chunks := rag.Chunk(text, 200, 50)

	require.Greater(t, len(chunks), 1)
	for i := 1; i < len(chunks); i++ {
		tail := chunks[i-1][len(chunks[i-1])-50:]
		require.True(t, strings.HasPrefix(chunks[i], tail))
	}
}

func TestChunkCoversAllText(t *testing.T) {
	text := strings.Repeat("x", 4500)
	chunks := rag.Chunk(text, 2000, 200)

	var covered int
	for i, c := range chunks {
		covered += len(c)
		if i > 0 {
			covered -= 200
		}
	}
	require.Equal(t, len(text), covered)
}

func TestExtractHints(t *testing.T) {
	text := "Invoice #INV-2024-001\nIssued 2024-01-15\nGrand Total: $1,234.56"
	hints := rag.ExtractHints(text)

	require.Equal(t, "INV-2024-001", hints.InvoiceNumber)
	require.Equal(t, "2024-01-15", hints.IssueDate)
	require.NotNil(t, hints.GrandTotal)
	require.InDelta(t, 1234.56, *hints.GrandTotal, 1e-9)
}

func TestExtractHintsSlashDateAndTotalDue(t *testing.T) {
	text := "invoice number: 77\ndue by 01/15/2024\nTotal Due 950"
	hints := rag.ExtractHints(text)

	require.Equal(t, "77", hints.InvoiceNumber)
	require.Equal(t, "01/15/2024", hints.IssueDate)
	require.NotNil(t, hints.GrandTotal)
	require.InDelta(t, 950, *hints.GrandTotal, 1e-9)
}

func TestExtractHintsNoMatches(t *testing.T) {
	hints := rag.ExtractHints("nothing useful here")
	require.Empty(t, hints.InvoiceNumber)
	require.Empty(t, hints.IssueDate)
	require.Nil(t, hints.GrandTotal)
}
