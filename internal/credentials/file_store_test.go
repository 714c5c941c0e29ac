package credentials

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleServer() *ServerCredential {
	return &ServerCredential{
		AccessToken:      "at",
		RefreshToken:     "rt",
		SessionToken:     "st",
		IdentityToken:    "it",
		ProfileUUID:      "5b0a4a6e-0a44-4a58-9c52-2d5f0e5b7c11",
		ProfileUsername:  "builder",
		SessionExpiresAt: 1_800_000_000,
	}
}

func TestFileStore_LoadMissingIsUnavailable(t *testing.T) {
	s := NewFileStore(nil)

	_, err := LoadServer(context.Background(), s, filepath.Join(t.TempDir(), "nope.json"))

	require.ErrorIs(t, err, common.ErrCredentialUnavailable)
	assert.True(t, IsNotExist(err))
}

func TestFileStore_LoadMalformedIsUnavailable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"access_token":`), 0o600))

	_, err := LoadServer(context.Background(), NewFileStore(nil), path)

	require.ErrorIs(t, err, common.ErrCredentialUnavailable)
	assert.False(t, IsNotExist(err))
}

func TestFileStore_SaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "server.json")
	s := NewFileStore(nil)
	want := sampleServer()

	require.NoError(t, SaveServer(context.Background(), s, path, want))

	got, err := LoadServer(context.Background(), s, path)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(want, got))

	if runtime.GOOS != "windows" {
		fi, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())
	}
}

func TestFileStore_KilledBeforeRenameLeavesLastGoodDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.json")
	s := NewFileStore(nil)

	first := sampleServer()
	require.NoError(t, SaveServer(context.Background(), s, path, first))

	s.beforeRename = func(string) error { return errors.New("killed") }
	second := sampleServer()
	second.SessionToken = "st2"
	require.Error(t, SaveServer(context.Background(), s, path, second))

	got, err := LoadServer(context.Background(), NewFileStore(nil), path)
	require.NoError(t, err, "next load must not choke on a partial document")
	assert.Equal(t, "st", got.SessionToken)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestFileStore_KilledOnFirstSaveLeavesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.json")
	s := NewFileStore(nil)
	s.beforeRename = func(string) error { return errors.New("killed") }

	require.Error(t, SaveServer(context.Background(), s, path, sampleServer()))

	_, err := LoadServer(context.Background(), NewFileStore(nil), path)
	assert.True(t, IsNotExist(err))
}

func TestSaveNil(t *testing.T) {
	s := NewFileStore(nil)
	assert.Error(t, SaveServer(context.Background(), s, "x", nil))
	assert.Error(t, SaveDownloader(context.Background(), s, "x", nil))
}

func TestDownloaderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "downloader.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"access_token":"a","refresh_token":"r","expires_at":1,"branch":"pre-release","device":"x"}`), 0o600))
	s := NewFileStore(nil)

	c, err := LoadDownloader(context.Background(), s, path)
	require.NoError(t, err)
	c.AccessToken = "fresh"
	require.NoError(t, SaveDownloader(context.Background(), s, path, c))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"access_token":"fresh","refresh_token":"r","expires_at":1,"branch":"pre-release","device":"x"}`, string(raw))
}
