// Plausible bridge - serves the analytics plugin settings API, lifecycle hooks
// for the WordPress host and the first-party tracker proxy.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"plausible-bridge/internal/config"
	"plausible-bridge/internal/events"
	"plausible-bridge/internal/handler"
	"plausible-bridge/internal/hooks"
	"plausible-bridge/internal/middleware"
	"plausible-bridge/internal/model"
	"plausible-bridge/internal/plausible"
	"plausible-bridge/internal/provisioning"
	"plausible-bridge/internal/proxy"
	"plausible-bridge/internal/script"
	"plausible-bridge/internal/settings"
	"plausible-bridge/internal/tracking"
	"plausible-bridge/internal/transport"
	"plausible-bridge/internal/woocommerce"
)

// scriptTTL is how long a proxied tracker script is served from memory.
const scriptTTL = 6 * time.Hour

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Initialize structured logger
	logger := initLogger()

	// Load configuration
	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger.Info("configuration loaded",
		slog.String("site_url", cfg.Site.SiteURL),
		slog.String("environment", cfg.Environment),
		slog.String("database", cfg.DatabasePath),
		slog.Bool("shop", cfg.Site.ShopEnabled()),
	)

	store, err := settings.OpenSQLStore(ctx, cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening settings store: %w", err)
	}
	defer store.Close()

	if err := settings.Upgrade(ctx, store, logger); err != nil {
		return fmt.Errorf("upgrading settings: %w", err)
	}
	if err := seedToken(ctx, store, cfg.Site.APIToken); err != nil {
		return fmt.Errorf("seeding api token: %w", err)
	}

	resources, err := proxy.LoadResources(ctx, store)
	if err != nil {
		return fmt.Errorf("loading proxy resources: %w", err)
	}

	fp, err := transport.ParseFingerprint(cfg.TLSFingerprint)
	if err != nil {
		return err
	}
	httpClient := transport.NewClient(fp, 30*time.Second)
	// The collector and CDN are reached with the standard stack.
	upstreamClient := transport.NewClient(transport.FingerprintStandard, proxy.ForwardTimeout)

	forwarder := proxy.NewForwarder(upstreamClient, logger)
	emitter := tracking.NewEmitter(forwarder, logger)

	var integration *woocommerce.Integration
	var commerce provisioning.Commerce
	if cfg.Site.ShopEnabled() {
		shop, err := woocommerce.New(woocommerce.Config{
			StoreURL:   cfg.Site.StoreURL,
			APIKey:     cfg.Site.APIKey,
			APISecret:  cfg.Site.APISecret,
			HTTPClient: httpClient,
		})
		if err != nil {
			return fmt.Errorf("creating shop client: %w", err)
		}
		integration = woocommerce.NewIntegration(shop, emitter, logger, cfg.Site.Currency)
		commerce = integration
	}

	builder := script.Builder{SiteURL: cfg.Site.SiteURL, Resources: resources}
	reconciler := provisioning.New(store, clientFactory(cfg, store, httpClient), commerce, logger)

	dispatcher := events.NewDispatcher(store, logger)
	hooks.Register(dispatcher, hooks.Deps{
		Reconciler: reconciler,
		Scripts:    builder,
		Commerce:   integration,
		Logger:     logger,
	})

	h := handler.New(handler.Options{
		Store:          store,
		Dispatcher:     dispatcher,
		Scripts:        builder,
		Beacon:         forwarder,
		ScriptCache:    proxy.NewScriptCache(upstreamClient, scriptTTL),
		MinHostVersion: cfg.MinHostVersion,
		AuthToken:      cfg.Site.AuthToken,
		Logger:         logger,
	})

	// Setup routes
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	// Apply middleware chain: recovery → request id → logging → handler
	// Recovery must be outermost to catch panics from logging middleware
	httpHandler := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logging(logger),
	)(mux)

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Channel for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Channel for server errors
	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("addr", server.Addr),
			slog.String("beacon_path", resources.EndpointPath()),
			slog.String("script_path", resources.ScriptPath()),
		)
		serverErr <- server.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErr:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give outstanding requests time to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			// Force close if graceful shutdown fails
			server.Close()
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}

// clientFactory builds the analytics API client for one reconciliation pass.
// The API is reached on the configured base URL, else on the self-hosted
// domain from settings. Plain HTTP is refused unless explicitly allowed.
func clientFactory(cfg *config.Config, store settings.Store, httpClient *http.Client) provisioning.ClientFactory {
	return func(token string) (plausible.Client, error) {
		base := cfg.Site.APIBaseURL
		if base == "" {
			s, err := store.Get(context.Background())
			if err != nil {
				return nil, err
			}
			base = proxy.UpstreamHost(s)
		}

		u, err := url.Parse(base)
		if err != nil {
			return nil, model.NewValidationError("api_base_url", err.Error())
		}
		if u.Scheme != "https" && !cfg.AllowInsecure {
			return nil, model.NewMissingPrerequisiteError("HTTPS")
		}

		client, err := plausible.New(plausible.Config{
			BaseURL:    base,
			Token:      token,
			HTTPClient: httpClient,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// seedToken stores the configured API token when settings have none yet.
func seedToken(ctx context.Context, store settings.Store, token string) error {
	if token == "" {
		return nil
	}
	_, _, err := store.Update(ctx, func(s *settings.Settings) {
		if s.APIToken == "" {
			s.APIToken = token
		}
	})
	return err
}

// initLogger creates a structured logger configured for the environment.
// Production uses JSON format for GCP Cloud Logging compatibility.
// Development uses text format for readability.
func initLogger() *slog.Logger {
	level := slog.LevelInfo
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
		// Add source location in debug mode
		AddSource: level == slog.LevelDebug,
	}

	// JSON for production (Cloud Logging compatible), text for development
	if os.Getenv("ENVIRONMENT") == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
