// Package github locates service artifacts published as GitHub release assets.
package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/edgerandom/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ArtifactLocator = (*ReleaseLocator)(nil)

// LatestTag selects the repository's latest published release.
const LatestTag = "latest"

// ReleaseLocator downloads a release asset into a local cache directory the
// first time it is asked for, and serves the cached file afterwards.
type ReleaseLocator struct {
	gh       *gh.Client
	download *http.Client
	owner    string
	repo     string
	tag      string
	cacheDir string
}

// NewReleaseLocator creates a ReleaseLocator with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client, authenticated when token is set)
//
// repoFullName is "owner/repo"; an empty tag means LatestTag.
func NewReleaseLocator(token, repoFullName, tag, cacheDir string) (*ReleaseLocator, error) {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}

	return newReleaseLocator(client, &http.Client{Timeout: 5 * time.Minute}, repoFullName, tag, cacheDir)
}

// NewReleaseLocatorWithHTTPClient creates a ReleaseLocator with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewReleaseLocatorWithHTTPClient(httpClient *http.Client, baseURL, repoFullName, tag, cacheDir string) (*ReleaseLocator, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return newReleaseLocator(client, httpClient, repoFullName, tag, cacheDir)
}

func newReleaseLocator(client *gh.Client, download *http.Client, repoFullName, tag, cacheDir string) (*ReleaseLocator, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}
	if cacheDir == "" {
		return nil, errors.New("release locator requires a cache directory")
	}
	if tag == "" {
		tag = LatestTag
	}

	return &ReleaseLocator{
		gh:       client,
		download: download,
		owner:    owner,
		repo:     repo,
		tag:      tag,
		cacheDir: cacheDir,
	}, nil
}

// Name identifies the locator in logs.
func (l *ReleaseLocator) Name() string {
	return fmt.Sprintf("github:%s/%s@%s", l.owner, l.repo, l.tag)
}

// Locate returns the cached path of artifactName, downloading it from the
// configured release when it is not cached yet. A missing release or asset
// yields driven.ErrArtifactMissing.
func (l *ReleaseLocator) Locate(ctx context.Context, artifactName string) (string, error) {
	if artifactName == "" || artifactName != filepath.Base(artifactName) || strings.HasPrefix(artifactName, ".") {
		return "", fmt.Errorf("invalid artifact name %q", artifactName)
	}

	target := filepath.Join(l.cacheDir, l.tag, artifactName)
	if info, err := os.Stat(target); err == nil && info.Size() > 0 {
		slog.Debug("release asset cache hit", "path", target)
		return target, nil
	}

	release, resp, err := l.release(ctx)
	logRateLimit(resp, l.Name())
	if isNotFound(resp, err) {
		return "", fmt.Errorf("%w: release %s not found", driven.ErrArtifactMissing, l.Name())
	}
	if err != nil {
		return "", fmt.Errorf("fetching release %s: %w", l.Name(), err)
	}

	var asset *gh.ReleaseAsset
	for _, a := range release.Assets {
		if a.GetName() == artifactName {
			asset = a
			break
		}
	}
	if asset == nil {
		return "", fmt.Errorf("%w: %s has no asset %s", driven.ErrArtifactMissing, l.Name(), artifactName)
	}

	if err := l.fetchAsset(ctx, asset, target); err != nil {
		return "", err
	}

	slog.Info("release asset downloaded",
		"release", l.Name(),
		"asset", artifactName,
		"size", asset.GetSize(),
		"path", target,
	)
	return target, nil
}

func (l *ReleaseLocator) release(ctx context.Context) (*gh.RepositoryRelease, *gh.Response, error) {
	if l.tag == LatestTag {
		return l.gh.Repositories.GetLatestRelease(ctx, l.owner, l.repo)
	}
	return l.gh.Repositories.GetReleaseByTag(ctx, l.owner, l.repo, l.tag)
}

// fetchAsset downloads into a temporary file in the target directory and
// renames it into place so a partial download is never served.
func (l *ReleaseLocator) fetchAsset(ctx context.Context, asset *gh.ReleaseAsset, target string) error {
	rc, redirectURL, err := l.gh.Repositories.DownloadReleaseAsset(ctx, l.owner, l.repo, asset.GetID(), l.download)
	if err != nil {
		return fmt.Errorf("downloading asset %s: %w", asset.GetName(), err)
	}
	if rc == nil {
		return fmt.Errorf("downloading asset %s: unfollowed redirect to %s", asset.GetName(), redirectURL)
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), asset.GetName()+".*.part")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, rc); err != nil {
		tmp.Close()
		return fmt.Errorf("writing asset %s: %w", asset.GetName(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing asset %s: %w", asset.GetName(), err)
	}

	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("moving asset into cache: %w", err)
	}
	return nil
}

func isNotFound(resp *gh.Response, err error) bool {
	if err == nil {
		return false
	}
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return true
	}
	var ghErr *gh.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound
}

func logRateLimit(resp *gh.Response, endpoint string) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 10 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

func splitRepo(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo name %q: expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}
