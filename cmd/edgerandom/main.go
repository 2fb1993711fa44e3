package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/ericfisherdev/edgerandom/internal/adapter/driven/edge"
	githubadapter "github.com/ericfisherdev/edgerandom/internal/adapter/driven/github"
	"github.com/ericfisherdev/edgerandom/internal/adapter/driven/localfile"
	sqliteadapter "github.com/ericfisherdev/edgerandom/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/edgerandom/internal/adapter/driving/http"
	webhandler "github.com/ericfisherdev/edgerandom/internal/adapter/driving/web"
	"github.com/ericfisherdev/edgerandom/internal/application"
	"github.com/ericfisherdev/edgerandom/internal/config"
	"github.com/ericfisherdev/edgerandom/internal/domain/port/driven"
	"github.com/ericfisherdev/edgerandom/internal/metrics"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on invalid env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"runtime_url", cfg.RuntimeURL,
		"service_address", cfg.ServiceAddress,
		"deploy_policy", string(cfg.DeployPolicy),
		"token_policy", string(cfg.TokenPolicy),
		"auth_on_fetch", cfg.AuthOnFetch,
		"db_path", cfg.DBPath,
	)

	if !cfg.TokenPolicyInEffect() {
		slog.Info("token policy has no effect without EDGERANDOM_AUTH_ON_FETCH",
			"token_policy", string(cfg.TokenPolicy),
		)
	}

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open the event journal.
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	version, err := sqliteadapter.RunMigrations(db.Writer)
	if err != nil {
		return err
	}
	slog.Info("journal opened", "path", db.Path(), "schema_version", version)
	journal := sqliteadapter.NewJournalRepo(db)

	if cfg.JournalRetention > 0 {
		pruned, err := journal.Prune(ctx, time.Now().Add(-cfg.JournalRetention))
		if err != nil {
			return err
		}
		slog.Info("journal pruned", "removed", pruned, "retention", cfg.JournalRetention)
	}

	// 4. Wire driven adapters.
	edgeClient, err := edge.NewClient(cfg.RuntimeURL, cfg.RuntimeTimeout)
	if err != nil {
		return err
	}

	license := localfile.NewSecretFile("license", cfg.LicenseFile)
	developerToken := localfile.NewSecretFile("developer id token", cfg.DeveloperTokenFile)

	locators := []driven.ArtifactLocator{localfile.NewArtifactDir(cfg.ArtifactDir)}
	if cfg.HasReleaseSource() {
		release, err := githubadapter.NewReleaseLocator(cfg.GitHubToken, cfg.GitHubRepo, cfg.GitHubReleaseTag, cfg.ArtifactCacheDir)
		if err != nil {
			return err
		}
		locators = append(locators, release)
		slog.Info("release artifact fallback enabled", "source", release.Name())
	}

	// 5. Wire application services.
	m := metrics.New()
	auth := application.NewAuthenticator(edgeClient, developerToken)
	orch := application.NewOrchestrator(
		application.NewRuntimeInitializer(edgeClient, license),
		auth,
		application.NewTokenProvider(auth, cfg.TokenPolicy),
		application.NewDeployer(edgeClient, locators, cfg.Descriptor, cfg.DeployPolicy),
		application.NewValueFetcher(&http.Client{Timeout: cfg.FetchTimeout}, cfg.ServiceAddress, cfg.AuthOnFetch),
		journal,
		m,
		application.RetryPolicy{
			MaxRetries:      cfg.BootstrapRetries,
			InitialInterval: cfg.RetryInitialInterval,
			MaxInterval:     cfg.RetryMaxInterval,
		},
	)

	// 6. Bootstrap in the background; the HTTP surface reports progress.
	go orch.Start(ctx)

	// 7. Create HTTP handlers and register routes.
	limiter := httphandler.NewRateLimiter(cfg.FetchRate, cfg.FetchBurst, slog.Default())

	mux := http.NewServeMux()
	httphandler.RegisterAPIRoutes(mux, httphandler.NewHandler(orch, limiter, slog.Default()))
	webhandler.RegisterRoutes(mux, webhandler.NewHandler(orch, limiter.Middleware, slog.Default()))
	mux.Handle("GET /metrics", m.Handler())

	handler := httphandler.ApplyMiddleware(m.InstrumentHandler(mux), slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("edgerandom started", "session_id", orch.SessionID(), "listen_addr", cfg.ListenAddr)

	// 8. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
