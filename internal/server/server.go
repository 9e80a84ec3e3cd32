// Package server orchestrates all components: stores, caches, limiters, the
// upstream facade, domain services, the dispatcher, and the transports.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/joblinkhq/linkedin-agent/internal/config"
	"github.com/joblinkhq/linkedin-agent/pkg/application"
	"github.com/joblinkhq/linkedin-agent/pkg/dispatcher"
	"github.com/joblinkhq/linkedin-agent/pkg/docgen"
	"github.com/joblinkhq/linkedin-agent/pkg/entitycache"
	"github.com/joblinkhq/linkedin-agent/pkg/jobsearch"
	"github.com/joblinkhq/linkedin-agent/pkg/profile"
	"github.com/joblinkhq/linkedin-agent/pkg/ratelimit"
	"github.com/joblinkhq/linkedin-agent/pkg/retry"
	"github.com/joblinkhq/linkedin-agent/pkg/session"
	"github.com/joblinkhq/linkedin-agent/pkg/upstream"
)

const logPrefix = "server:server"

// Server is the linkedin-agent orchestrator.
type Server struct {
	cfg      *config.Config
	disp     *dispatcher.Dispatcher
	sessions *session.Manager
	caches   []*entitycache.Cache
	browser  *upstream.BrowserClient

	closers []func()
}

// Run starts the agent, blocks until shutdown signal or stdin EOF, then
// cleans up.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	if err := cfg.ValidateForServe(); err != nil {
		return err
	}
	setupLogging(cfg.LogLevel)

	slog.Info(fmt.Sprintf("%s - Starting linkedin-agent", logPrefix))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &Server{cfg: cfg}
	defer s.close()

	if err := s.build(ctx); err != nil {
		return err
	}

	// Step 6: Start the janitor pruning stale cache records on a schedule.
	janitor := cron.New()
	if _, err := janitor.AddFunc(cfg.JanitorSchedule, s.pruneCaches); err != nil {
		return fmt.Errorf("%s - invalid janitor schedule %q: %w", logPrefix, cfg.JanitorSchedule, err)
	}
	janitor.Start()
	defer janitor.Stop()

	// Step 7: Start the transports. Stdio is the primary transport; NATS and
	// the HTTP health endpoint are optional sidecars.
	errCh := make(chan error, 3)
	go func() {
		errCh <- runStdioLoop(ctx, s.disp.DispatchRaw, cfg.RequestTimeout, os.Stdin, os.Stdout)
	}()

	if cfg.NATSURL != "" {
		stop, err := startNATSTransport(ctx, cfg, s.disp.DispatchRaw)
		if err != nil {
			return err
		}
		defer stop()
	}
	if cfg.HTTPEnabled {
		stop := startHealthServer(cfg.HTTPPort, s.sessions)
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
			defer shutdownCancel()
			stop(shutdownCtx)
		}()
	}

	slog.Info(fmt.Sprintf("%s - linkedin-agent is ready", logPrefix))

	// Step 8: Wait for a shutdown signal or stdin EOF, then give the
	// in-flight request a bounded grace period.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))
	case err := <-errCh:
		if err != nil {
			slog.Error(fmt.Sprintf("%s - stdio loop failed: %v", logPrefix, err))
		} else {
			slog.Info(fmt.Sprintf("%s - stdin closed, shutting down", logPrefix))
		}
		cancel()
		return err
	}

	cancel()
	select {
	case <-errCh:
	case <-time.After(cfg.ShutdownGrace):
		slog.Warn(fmt.Sprintf("%s - shutdown grace period elapsed with a request in flight", logPrefix))
	}

	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return nil
}

// build constructs the component graph bottom-up.
func (s *Server) build(ctx context.Context) error {
	cfg := s.cfg

	// Step 1: Durable session store, Redis when configured, files otherwise.
	sessionStore, err := s.newSessionStore(ctx)
	if err != nil {
		return err
	}
	s.closers = append(s.closers, func() { sessionStore.Close() })

	// Step 2: Entity caches, one directory per kind.
	profiles, err := entitycache.New(filepath.Join(cfg.DataDir, "profiles"))
	if err != nil {
		return err
	}
	companies, err := entitycache.New(filepath.Join(cfg.DataDir, "companies"))
	if err != nil {
		return err
	}
	jobs, err := entitycache.New(filepath.Join(cfg.DataDir, "jobs"))
	if err != nil {
		return err
	}
	s.caches = []*entitycache.Cache{profiles, companies, jobs}

	// Step 3: Rate limiters and the two access paths.
	limits := ratelimit.NewSet(ratelimit.Budgets{
		DefaultMax:    cfg.RateLimitDefault,
		DefaultWindow: cfg.RateLimitDefaultWindow,
		SearchMax:     cfg.RateLimitSearch,
		SearchWindow:  cfg.RateLimitSearchWindow,
		LoginMax:      cfg.RateLimitLogin,
		LoginWindow:   cfg.RateLimitLoginWindow,
	})

	apiClient := upstream.NewAPIClient(cfg.RequestTimeout)

	var browserAuth session.BrowserAuthenticator
	var browserAccessor upstream.Accessor
	if cfg.BrowserEnabled {
		browser := upstream.NewBrowserClient(cfg.WebDriverURL, cfg.BrowserTimeout)
		s.browser = browser
		browserAuth = browser
		browserAccessor = browser
	}

	// Step 4: Session manager. Adopted sessions flow into the API client so
	// a cached login still authorizes programmatic calls.
	sessions := session.NewManager(sessionStore, apiClient, browserAuth, limits.Login)
	sessions.OnAdopt(apiClient.AdoptSession)
	s.sessions = sessions

	apiRetry := retry.DefaultConfig()
	apiRetry.MaxAttempts = cfg.RetryMaxAttempts
	apiRetry.InitialDelay = cfg.RetryInitialDelay
	apiRetry.MaxDelay = cfg.RetryMaxDelay
	facade := upstream.NewFacade(sessions, limits, apiClient, browserAccessor,
		upstream.WithAPIRetry(apiRetry))

	// Step 5: Domain services and the dispatcher.
	appStore, err := s.newApplicationStore()
	if err != nil {
		return err
	}
	s.closers = append(s.closers, func() { appStore.Close() })

	model, err := newModel(ctx, cfg)
	if err != nil {
		return err
	}
	documents, err := docgen.NewService(model, cfg.OutputDir)
	if err != nil {
		return err
	}

	var applier application.Applier
	if s.browser != nil {
		applier = s.browser
	}

	services := dispatcher.Services{
		Sessions:     sessions,
		Profiles:     profile.NewService(facade, profiles, companies),
		Jobs:         jobsearch.NewService(facade, jobs),
		Applications: application.NewService(sessions, limits.Default, applier, appStore),
		Documents:    documents,
	}

	var opts []dispatcher.Option
	if cfg.OuterRetryAttempts > 1 {
		outer := retry.DefaultConfig()
		outer.MaxAttempts = cfg.OuterRetryAttempts
		outer.InitialDelay = cfg.RetryInitialDelay
		outer.MaxDelay = cfg.RetryMaxDelay
		opts = append(opts, dispatcher.WithOuterRetry(outer))
	}
	s.disp = dispatcher.NewDispatcher(services, opts...)
	return nil
}

func (s *Server) newSessionStore(ctx context.Context) (session.Store, error) {
	if s.cfg.RedisURL != "" {
		client, err := session.NewRedisClient(ctx, s.cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("%s - failed to connect to Redis: %w", logPrefix, err)
		}
		slog.Info(fmt.Sprintf("%s - Using Redis session store", logPrefix))
		return session.NewStore(session.StoreTypeRedis, session.WithRedisClient(client))
	}
	return session.NewStore(session.StoreTypeFile, session.WithDir(s.cfg.SessionDir))
}

func (s *Server) newApplicationStore() (application.Store, error) {
	if s.cfg.ApplicationsDatabaseURL != "" {
		slog.Info(fmt.Sprintf("%s - Using Postgres application store", logPrefix))
		return application.NewStore(application.StoreTypePostgres,
			application.WithPostgresURL(s.cfg.ApplicationsDatabaseURL))
	}
	return application.NewStore(application.StoreTypeFile,
		application.WithDir(filepath.Join(s.cfg.DataDir, "applications")))
}

// newModel builds the document-generation model for the configured provider.
// No provider means no model; docgen then assembles content locally.
func newModel(ctx context.Context, cfg *config.Config) (llms.Model, error) {
	switch cfg.AIProvider {
	case "":
		return nil, nil
	case "openai":
		model, err := openai.New(openai.WithModel(cfg.AIModel))
		if err != nil {
			return nil, fmt.Errorf("%s - failed to init openai model: %w", logPrefix, err)
		}
		return model, nil
	case "googleai":
		model, err := googleai.New(ctx, googleai.WithDefaultModel(cfg.AIModel))
		if err != nil {
			return nil, fmt.Errorf("%s - failed to init googleai model: %w", logPrefix, err)
		}
		return model, nil
	default:
		return nil, fmt.Errorf("%s - unknown AI_PROVIDER %q", logPrefix, cfg.AIProvider)
	}
}

func (s *Server) pruneCaches() {
	for _, cache := range s.caches {
		if _, err := cache.Prune(); err != nil {
			slog.Warn(fmt.Sprintf("%s - cache prune failed: %v", logPrefix, err))
		}
	}
}

func (s *Server) close() {
	if s.browser != nil {
		s.browser.Close()
	}
	for _, closer := range s.closers {
		closer()
	}
}

func setupLogging(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	// Responses own stdout; logs go to stderr.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}
