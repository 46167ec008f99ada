package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, Config{Driver: "local", Local: LocalConfig{
		BasePath:  t.TempDir(),
		PublicURL: "http://localhost:8088/files/",
	}})
	require.NoError(t, err)

	key := "chat_attachments/alice/a.txt"
	require.NoError(t, s.Write(ctx, key, strings.NewReader("hello"), 5, "text/plain"))

	ok, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	r, err := s.Read(ctx, key)
	require.NoError(t, err)
	body, err := io.ReadAll(r)
	r.Close()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))

	url, err := s.GetURL(ctx, key, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8088/files/chat_attachments/alice/a.txt", url)

	require.NoError(t, s.Delete(ctx, key))
	_, err = s.Read(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetURL(ctx, key, time.Hour)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, s.Delete(ctx, key), "deleting a missing key is not an error")
}

func TestLocalStorageKeepsKeysInsideBase(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	s, err := NewLocalStorage(LocalConfig{BasePath: base})
	require.NoError(t, err)

	require.NoError(t, s.Write(ctx, "../../escape.txt", strings.NewReader("x"), 1, ""))
	ok, err := s.Exists(ctx, "escape.txt")
	require.NoError(t, err)
	assert.True(t, ok, "dot segments are resolved against the base path")
}

func TestUnknownDriver(t *testing.T) {
	_, err := New(context.Background(), Config{Driver: "ftp"})
	assert.Error(t, err)
}
