package docstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SaveAndRead(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Save("doc-1", "notes.txt", "Notes", []byte("hello world")))

	data, err := s.Read("doc-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), data)

	meta, err := s.Meta("doc-1")
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", meta.Filename)
	assert.Equal(t, "Notes", meta.Title)
	assert.Equal(t, int64(11), meta.Size)
	assert.Equal(t, 1, s.Count())
}

func TestStore_UnknownIDIsNotFound(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	_, err = s.Read("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Meta("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ManifestSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Save("doc-1", "a.md", "A", []byte("aaa")))
	require.NoError(t, s.Save("doc-2", "b.md", "B", []byte("bbb")))

	reopened, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Count())

	data, err := reopened.Read("doc-2")
	require.NoError(t, err)
	assert.Equal(t, []byte("bbb"), data)
}

func TestStore_SaveOverwritesExistingID(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Save("doc-1", "a.txt", "", []byte("old")))
	require.NoError(t, s.Save("doc-1", "a.txt", "", []byte("new")))

	data, err := s.Read("doc-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), data)
	assert.Equal(t, 1, s.Count())
}

func TestStore_Clear(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	require.NoError(t, s.Save("doc-1", "a.txt", "", []byte("aaa")))
	require.NoError(t, s.Clear())

	assert.Equal(t, 0, s.Count())
	_, err = s.Read("doc-1")
	assert.ErrorIs(t, err, ErrNotFound)

	// Clear persists: a reopen sees the empty store.
	reopened, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, 0, reopened.Count())
}

func TestStore_ListOrdersByStorageTime(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Save("doc-1", "a.txt", "", []byte("a")))
	require.NoError(t, s.Save("doc-2", "b.txt", "", []byte("b")))

	entries := s.List()
	require.Len(t, entries, 2)
	assert.Equal(t, "doc-1", entries[0].ID)
	assert.Equal(t, "doc-2", entries[1].ID)
}
