package prefs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	s := NewFileStore(path)

	_, ok, err := s.Get("expense-tracker-token")
	require.NoError(t, err)
	assert.False(t, ok, "missing file reads as empty")

	require.NoError(t, s.Set("expense-tracker-token", "abc"))
	require.NoError(t, s.Set("expense-tracker-user", `{"id":1}`))

	// A second store over the same file sees the values.
	other := NewFileStore(path)
	v, ok, err := other.Get("expense-tracker-user")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"id":1}`, v)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, s.Delete("expense-tracker-token", "expense-tracker-user", "unknown"))
	_, ok, err = other.Get("expense-tracker-token")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStoreErrors(t *testing.T) {
	dir := t.TempDir()

	_, _, err := NewFileStore(dir).Get("k")
	assert.ErrorIs(t, err, ErrStoreIsDir)

	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("not json"), 0o600))
	_, _, err = NewFileStore(corrupt).Get("k")
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Set("a", "1"))
	require.NoError(t, m.Set("b", "2"))
	require.NoError(t, m.Delete("a"))

	_, ok, _ := m.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, m.Len())
}
