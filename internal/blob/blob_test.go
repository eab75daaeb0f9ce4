package blob

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStorage(t *testing.T) *LocalStorage {
	t.Helper()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestNewKey(t *testing.T) {
	s := newStorage(t)

	key := s.NewKey(12, "Lecture Notes.PDF")
	assert.True(t, strings.HasPrefix(key, "12/"))
	assert.True(t, strings.HasSuffix(key, ".pdf"))

	other := s.NewKey(12, "Lecture Notes.PDF")
	assert.NotEqual(t, key, other)

	traversal := s.NewKey(3, "../../etc/passwd")
	assert.True(t, strings.HasPrefix(traversal, "3/"))
	assert.NotContains(t, traversal, "..")
	assert.NotContains(t, traversal, "passwd")
}

func TestPutOpenDelete(t *testing.T) {
	s := newStorage(t)
	key := s.NewKey(1, "notes.txt")

	n, err := s.Put(context.Background(), key, strings.NewReader("hello campus"))
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)

	rc, err := s.Open(key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hello campus", string(data))

	require.NoError(t, s.Delete(key))
	assert.ErrorIs(t, s.Delete(key), ErrNotExist)

	_, err = s.Open(key)
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestRename(t *testing.T) {
	s := newStorage(t)
	key := s.NewKey(1, "notes.txt")

	_, err := s.Put(context.Background(), key, strings.NewReader("draft"))
	require.NoError(t, err)

	require.NoError(t, s.Rename(key, key+".old"))

	_, err = s.Open(key)
	assert.ErrorIs(t, err, ErrNotExist)

	rc, err := s.Open(key + ".old")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "draft", string(data))

	assert.ErrorIs(t, s.Rename(key, key+".other"), ErrNotExist)
	assert.ErrorIs(t, s.Rename(key+".old", "../escape"), ErrInvalidKey)
}

func TestPutDoesNotOverwrite(t *testing.T) {
	s := newStorage(t)
	key := s.NewKey(1, "a.txt")

	_, err := s.Put(context.Background(), key, strings.NewReader("first"))
	require.NoError(t, err)

	_, err = s.Put(context.Background(), key, strings.NewReader("second"))
	assert.Error(t, err)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("client went away") }

func TestPutRemovesPartialBlob(t *testing.T) {
	s := newStorage(t)
	key := s.NewKey(5, "broken.bin")

	_, err := s.Put(context.Background(), key, io.MultiReader(strings.NewReader("partial"), failingReader{}))
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(s.root, filepath.FromSlash(key)))
	assert.True(t, os.IsNotExist(statErr))
}

func TestPutHonoursCancellation(t *testing.T) {
	s := newStorage(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Put(ctx, s.NewKey(1, "x.txt"), strings.NewReader("data"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRejectsEscapingKeys(t *testing.T) {
	s := newStorage(t)

	for _, key := range []string{"", "../outside.txt", "1/../../outside.txt", "/etc/passwd", `1\..\x`} {
		_, err := s.Put(context.Background(), key, strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}
