package storage_test

import (
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/invoice-assistant/internal/storage"
)

func TestSaveAndOpenRoundtrip(t *testing.T) {
	store, err := storage.NewDisk(t.TempDir())
	require.NoError(t, err)

	stored, path, err := store.Save("invoice.pdf", strings.NewReader("hello"))
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(stored, "_invoice.pdf"))
	require.Equal(t, filepath.Join(store.Dir(), stored), path)

	rc, err := store.Open(path)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
}

func TestSaveStripsDirectoryComponents(t *testing.T) {
	store, err := storage.NewDisk(t.TempDir())
	require.NoError(t, err)

	stored, _, err := store.Save("../../etc/passwd", strings.NewReader("x"))
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(stored, "_passwd"))
	require.NotContains(t, stored, "..")
}

func TestOpenRejectsPathOutsideStore(t *testing.T) {
	store, err := storage.NewDisk(t.TempDir())
	require.NoError(t, err)

	_, err = store.Open("/etc/hosts")
	require.Error(t, err)
}

func TestRemoveMissingFileIsNoError(t *testing.T) {
	store, err := storage.NewDisk(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Remove(filepath.Join(store.Dir(), "gone.pdf")))
}

func TestSaveNamedOverwrites(t *testing.T) {
	store, err := storage.NewDisk(t.TempDir())
	require.NoError(t, err)

	path1, err := store.SaveNamed("Invoice-7.pdf", []byte("v1"))
	require.NoError(t, err)
	path2, err := store.SaveNamed("Invoice-7.pdf", []byte("v2"))
	require.NoError(t, err)
	require.Equal(t, path1, path2)

	rc, err := store.Open(path2)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "v2", string(data))
}

func TestOpenMissingFileReturnsNotFound(t *testing.T) {
	store, err := storage.NewDisk(t.TempDir())
	require.NoError(t, err)

	_, err = store.Open(filepath.Join(store.Dir(), "missing.pdf"))
	require.ErrorIs(t, err, storage.ErrNotFound)
}
