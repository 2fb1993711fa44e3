package github_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ghAdapter "github.com/ericfisherdev/edgerandom/internal/adapter/driven/github"
	"github.com/ericfisherdev/edgerandom/internal/domain/port/driven"
)

const releaseJSON = `{
	"id": 1,
	"tag_name": "v1.0.0",
	"assets": [
		{"id": 6, "name": "checksums.txt", "size": 64},
		{"id": 7, "name": "randomnumber_v1.tar", "size": 9}
	]
}`

type releaseServer struct {
	downloads atomic.Int32
	metadata  atomic.Int32
	accept    atomic.Value
}

func (s *releaseServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/services/releases/tags/v1.0.0", func(w http.ResponseWriter, _ *http.Request) {
		s.metadata.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(releaseJSON))
	})
	mux.HandleFunc("GET /repos/acme/services/releases/latest", func(w http.ResponseWriter, _ *http.Request) {
		s.metadata.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(releaseJSON))
	})
	mux.HandleFunc("GET /repos/acme/services/releases/assets/7", func(w http.ResponseWriter, r *http.Request) {
		s.downloads.Add(1)
		s.accept.Store(r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte("tar-bytes"))
	})
	return mux
}

func newTestLocator(t *testing.T, tag string) (*ghAdapter.ReleaseLocator, *releaseServer, string) {
	t.Helper()

	rs := &releaseServer{}
	server := httptest.NewServer(rs.handler())
	t.Cleanup(server.Close)

	cacheDir := t.TempDir()
	locator, err := ghAdapter.NewReleaseLocatorWithHTTPClient(server.Client(), server.URL+"/", "acme/services", tag, cacheDir)
	require.NoError(t, err)

	return locator, rs, cacheDir
}

func TestReleaseLocator_DownloadsAndCaches(t *testing.T) {
	locator, rs, cacheDir := newTestLocator(t, "v1.0.0")
	ctx := context.Background()

	path, err := locator.Locate(ctx, "randomnumber_v1.tar")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cacheDir, "v1.0.0", "randomnumber_v1.tar"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "tar-bytes", string(data))
	assert.Equal(t, "application/octet-stream", rs.accept.Load())

	again, err := locator.Locate(ctx, "randomnumber_v1.tar")
	require.NoError(t, err)
	assert.Equal(t, path, again)
	assert.Equal(t, int32(1), rs.downloads.Load(), "second lookup is served from the cache")
	assert.Equal(t, int32(1), rs.metadata.Load())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no partial download files left behind")
}

func TestReleaseLocator_Latest(t *testing.T) {
	locator, _, _ := newTestLocator(t, "")

	path, err := locator.Locate(context.Background(), "randomnumber_v1.tar")

	require.NoError(t, err)
	assert.Contains(t, path, filepath.Join("latest", "randomnumber_v1.tar"))
	assert.Equal(t, "github:acme/services@latest", locator.Name())
}

func TestReleaseLocator_AssetMissing(t *testing.T) {
	locator, rs, _ := newTestLocator(t, "v1.0.0")

	_, err := locator.Locate(context.Background(), "other_v2.tar")

	assert.ErrorIs(t, err, driven.ErrArtifactMissing)
	assert.Zero(t, rs.downloads.Load())
}

func TestReleaseLocator_ReleaseMissing(t *testing.T) {
	locator, _, _ := newTestLocator(t, "v9.9.9")

	_, err := locator.Locate(context.Background(), "randomnumber_v1.tar")

	assert.ErrorIs(t, err, driven.ErrArtifactMissing)
}

func TestReleaseLocator_InvalidArtifactName(t *testing.T) {
	locator, _, _ := newTestLocator(t, "v1.0.0")

	_, err := locator.Locate(context.Background(), "../escape.tar")

	require.Error(t, err)
	assert.NotErrorIs(t, err, driven.ErrArtifactMissing)
}

func TestNewReleaseLocator_Validation(t *testing.T) {
	_, err := ghAdapter.NewReleaseLocator("", "not-a-repo", "", t.TempDir())
	assert.Error(t, err)

	_, err = ghAdapter.NewReleaseLocator("", "acme/services", "", "")
	assert.Error(t, err)

	locator, err := ghAdapter.NewReleaseLocator("", "acme/services", "v1.0.0", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "github:acme/services@v1.0.0", locator.Name())
}
