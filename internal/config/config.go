// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ericfisherdev/edgerandom/internal/domain/model"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	LogLevel   slog.Level

	// Edge runtime and the deployed service.
	RuntimeURL     string
	ServiceAddress string
	RuntimeTimeout time.Duration
	FetchTimeout   time.Duration

	// Local inputs.
	LicenseFile        string
	DeveloperTokenFile string
	ArtifactDir        string
	Descriptor         model.ServiceDescriptor

	// Policies. TokenPolicy governs the tokens sent with fetches, so it has
	// no effect unless AuthOnFetch is set.
	DeployPolicy model.DeployPolicy
	TokenPolicy  model.TokenCachePolicy
	AuthOnFetch  bool

	BootstrapRetries     uint64
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration

	// Fetch rate limiting on the HTTP surface. A zero FetchRate disables it.
	FetchRate  float64
	FetchBurst int

	// Event journal.
	DBPath           string
	JournalRetention time.Duration

	// Optional GitHub release fallback for the service artifact.
	GitHubToken      string
	GitHubRepo       string
	GitHubReleaseTag string
	ArtifactCacheDir string
}

// HasReleaseSource returns true when a GitHub repository is configured as an
// artifact fallback.
func (c *Config) HasReleaseSource() bool {
	return c.GitHubRepo != ""
}

// TokenPolicyInEffect reports whether TokenPolicy is consulted after
// bootstrap. Bootstrap itself always exchanges a fresh token.
func (c *Config) TokenPolicyInEffect() bool {
	return c.AuthOnFetch
}

// Load reads configuration from environment variables and returns a validated Config.
//
// When EDGERANDOM_ENV_FILE is set, that dotenv file is loaded first; variables
// already present in the environment win. When EDGERANDOM_DESCRIPTOR_FILE is
// set, the YAML file's fields override the default randomnumber-v1 descriptor.
//
// Defaults: EDGERANDOM_LISTEN_ADDR (127.0.0.1:8080), EDGERANDOM_RUNTIME_URL
// (http://127.0.0.1:8083), EDGERANDOM_SERVICE_ADDRESS (the runtime URL),
// EDGERANDOM_DEPLOY_POLICY (deploy), EDGERANDOM_TOKEN_POLICY
// (refetch_every_call), EDGERANDOM_FETCH_TIMEOUT (10s), EDGERANDOM_DB_PATH
// (:memory:).
func Load() (*Config, error) {
	if path, ok := os.LookupEnv("EDGERANDOM_ENV_FILE"); ok && path != "" {
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("EDGERANDOM_ENV_FILE %q could not be loaded: %w", path, err)
		}
	}

	cfg := &Config{
		ListenAddr:           stringVar("EDGERANDOM_LISTEN_ADDR", "127.0.0.1:8080"),
		RuntimeURL:           stringVar("EDGERANDOM_RUNTIME_URL", "http://127.0.0.1:8083"),
		LicenseFile:          stringVar("EDGERANDOM_LICENSE_FILE", "Developer-mimOE-License"),
		DeveloperTokenFile:   stringVar("EDGERANDOM_DEVELOPER_TOKEN_FILE", "Developer-ID-Token"),
		ArtifactDir:          stringVar("EDGERANDOM_ARTIFACT_DIR", "."),
		DeployPolicy:         model.DeployPolicy(stringVar("EDGERANDOM_DEPLOY_POLICY", string(model.DeployPolicyDeploy))),
		TokenPolicy:          model.TokenCachePolicy(stringVar("EDGERANDOM_TOKEN_POLICY", string(model.TokenRefetchEveryCall))),
		DBPath:               stringVar("EDGERANDOM_DB_PATH", ":memory:"),
		GitHubToken:          os.Getenv("EDGERANDOM_GITHUB_TOKEN"),
		GitHubRepo:           os.Getenv("EDGERANDOM_GITHUB_REPO"),
		GitHubReleaseTag:     stringVar("EDGERANDOM_GITHUB_RELEASE_TAG", "latest"),
		ArtifactCacheDir:     stringVar("EDGERANDOM_ARTIFACT_CACHE_DIR", filepath.Join(os.TempDir(), "edgerandom-artifacts")),
		RuntimeTimeout:       30 * time.Second,
		FetchTimeout:         10 * time.Second,
		RetryInitialInterval: 500 * time.Millisecond,
		RetryMaxInterval:     10 * time.Second,
		FetchRate:            5,
		FetchBurst:           10,
	}
	cfg.ServiceAddress = stringVar("EDGERANDOM_SERVICE_ADDRESS", cfg.RuntimeURL)

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	collect(durationVar("EDGERANDOM_RUNTIME_TIMEOUT", &cfg.RuntimeTimeout))
	collect(durationVar("EDGERANDOM_FETCH_TIMEOUT", &cfg.FetchTimeout))
	collect(durationVar("EDGERANDOM_RETRY_INITIAL_INTERVAL", &cfg.RetryInitialInterval))
	collect(durationVar("EDGERANDOM_RETRY_MAX_INTERVAL", &cfg.RetryMaxInterval))
	collect(durationVar("EDGERANDOM_JOURNAL_RETENTION", &cfg.JournalRetention))
	collect(boolVar("EDGERANDOM_AUTH_ON_FETCH", &cfg.AuthOnFetch))

	if v, ok := os.LookupEnv("EDGERANDOM_BOOTSTRAP_RETRIES"); ok {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			collect(fmt.Errorf("EDGERANDOM_BOOTSTRAP_RETRIES has invalid count %q: %w", v, err))
		}
		cfg.BootstrapRetries = n
	}

	if v, ok := os.LookupEnv("EDGERANDOM_FETCH_RATE"); ok {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil || rate < 0 {
			collect(fmt.Errorf("EDGERANDOM_FETCH_RATE must be a non-negative number, got %q", v))
		}
		cfg.FetchRate = rate
	}

	if v, ok := os.LookupEnv("EDGERANDOM_FETCH_BURST"); ok {
		burst, err := strconv.Atoi(v)
		if err != nil || burst < 1 {
			collect(fmt.Errorf("EDGERANDOM_FETCH_BURST must be a positive integer, got %q", v))
		}
		cfg.FetchBurst = burst
	}

	if v, ok := os.LookupEnv("EDGERANDOM_LOG_LEVEL"); ok {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			collect(fmt.Errorf("EDGERANDOM_LOG_LEVEL has invalid level %q: %w", v, err))
		}
	}

	if !cfg.DeployPolicy.Valid() {
		collect(fmt.Errorf("EDGERANDOM_DEPLOY_POLICY must be %q or %q, got %q",
			model.DeployPolicyDeploy, model.DeployPolicyDiscover, cfg.DeployPolicy))
	}
	if !cfg.TokenPolicy.Valid() {
		collect(fmt.Errorf("EDGERANDOM_TOKEN_POLICY must be %q or %q, got %q",
			model.TokenCacheUntilExpiry, model.TokenRefetchEveryCall, cfg.TokenPolicy))
	}

	collect(validateHTTPURL("EDGERANDOM_RUNTIME_URL", cfg.RuntimeURL))
	collect(validateHTTPURL("EDGERANDOM_SERVICE_ADDRESS", cfg.ServiceAddress))

	if cfg.GitHubRepo != "" && strings.Count(cfg.GitHubRepo, "/") != 1 {
		collect(fmt.Errorf("EDGERANDOM_GITHUB_REPO must be owner/repo, got %q", cfg.GitHubRepo))
	}

	descriptor, err := LoadDescriptor(os.Getenv("EDGERANDOM_DESCRIPTOR_FILE"))
	collect(err)
	cfg.Descriptor = descriptor

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// LoadDescriptor returns the default descriptor overlaid with the fields set
// in the YAML file at path. An empty path returns the default unchanged.
func LoadDescriptor(path string) (model.ServiceDescriptor, error) {
	descriptor := model.DefaultDescriptor()
	if path == "" {
		return descriptor, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return descriptor, fmt.Errorf("EDGERANDOM_DESCRIPTOR_FILE %q does not exist", path)
	}
	if err != nil {
		return descriptor, fmt.Errorf("EDGERANDOM_DESCRIPTOR_FILE %q could not be read: %w", path, err)
	}

	var overlay model.ServiceDescriptor
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return descriptor, fmt.Errorf("EDGERANDOM_DESCRIPTOR_FILE %q is not valid YAML: %w", path, err)
	}

	if overlay.ImageName != "" {
		descriptor.ImageName = overlay.ImageName
	}
	if overlay.ContainerName != "" {
		descriptor.ContainerName = overlay.ContainerName
	}
	if overlay.BasePath != "" {
		descriptor.BasePath = overlay.BasePath
	}
	if overlay.ArtifactName != "" {
		descriptor.ArtifactName = overlay.ArtifactName
	}
	if overlay.Env != nil {
		descriptor.Env = overlay.Env
	}
	descriptor.Description = overlay.Description

	if !strings.HasPrefix(descriptor.BasePath, "/") {
		return descriptor, fmt.Errorf("EDGERANDOM_DESCRIPTOR_FILE %q: base_path must start with /, got %q", path, descriptor.BasePath)
	}
	return descriptor, nil
}

func stringVar(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func durationVar(key string, dst *time.Duration) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	if parsed < 0 {
		return fmt.Errorf("%s must not be negative, got %q", key, v)
	}
	*dst = parsed
	return nil
}

func boolVar(key string, dst *bool) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s has invalid boolean %q: %w", key, v, err)
	}
	*dst = parsed
	return nil
}

func validateHTTPURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s has invalid URL %q: %w", key, raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an http(s) URL with a host, got %q", key, raw)
	}
	return nil
}
