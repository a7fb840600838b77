// chatclient joins one or more conversations, prints incoming messages and
// sends each line typed on stdin.
// Usage: go run ./cmd/chatclient --config configs/chatclient.yaml --conversation 7
//
// A line of the form "@<conversation> text" sends to that conversation;
// anything else goes to the first one.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/chatlink/internal/auth"
	"github.com/rickgao/chatlink/internal/config"
	"github.com/rickgao/chatlink/internal/connection"
	"github.com/rickgao/chatlink/internal/database"
	"github.com/rickgao/chatlink/internal/metrics"
	"github.com/rickgao/chatlink/internal/model"
	"github.com/rickgao/chatlink/internal/reconnect"
	"github.com/rickgao/chatlink/internal/session"
	"github.com/rickgao/chatlink/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults apply when empty)")
	conversations := flag.String("conversation", "", "comma-separated conversation ids, overrides config")
	userID := flag.String("user", "", "local user id, overrides auth.user_id")
	logLevel := flag.String("log-level", "info", "debug, info, warn or error")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(*logLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("starting chatclient",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := loadConfig(*configPath, *conversations, *userID)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if len(cfg.Conversations) == 0 {
		logger.Error("no conversations configured, use --conversation or conversations:")
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"ws_url", cfg.API.WSURL,
		"conversations", len(cfg.Conversations),
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Optional database for token lookups
	var pool *pgxpool.Pool
	if cfg.Database.Enabled() {
		pool, err = database.Connect(ctx, cfg.Database, cfg.Instance.ID, logger)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
	}

	tokens := buildTokens(cfg, pool, logger)

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	header := http.Header{}
	header.Set("User-Agent", version.UserAgent())
	dialer := connection.NewWebsocketDialer(connection.DialerConfig{
		HandshakeTimeout: cfg.Connections.HandshakeTimeout,
		WriteTimeout:     cfg.Connections.WriteTimeout,
		PingInterval:     cfg.Connections.PingInterval,
		PingTimeout:      cfg.Connections.PingTimeout,
	}, header, logger)

	registry := session.NewRegistry(session.Config{
		URL:         cfg.API.WSURL,
		LocalUserID: model.ID(cfg.Auth.UserID),
		Reconnect: reconnect.Config{
			BaseDelay:   cfg.Connections.ReconnectBaseDelay,
			MaxDelay:    cfg.Connections.ReconnectMaxDelay,
			Multiplier:  cfg.Connections.ReconnectMultiplier,
			MaxAttempts: cfg.Connections.ReconnectMaxAttempts,
		},
		DedupWindow:   cfg.Dispatch.DedupWindow,
		QueueCapacity: cfg.Outbox.InitialCapacity,
		Dialer:        dialer,
		Logger:        logger,
		Metrics:       m,
	}, tokens, session.WithOnFatal(func(err error) {
		logger.Error("conversation abandoned", "error", err)
		cancel()
	}))

	for _, id := range cfg.Conversations {
		if _, err := registry.Open(model.ConversationID(id), printMessage); err != nil {
			logger.Error("failed to open conversation", "conversation", id, "error", err)
			os.Exit(1)
		}
	}

	var db pinger
	if pool != nil {
		db = pool
	}

	healthServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           newHandler(registry, db, reg, cfg.Metrics.Path),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting health server", "port", cfg.Metrics.Port, "metrics_path", cfg.Metrics.Path)
		if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return healthServer.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return readInput(gctx, os.Stdin, registry, model.ConversationID(cfg.Conversations[0]), logger)
	})

	g.Go(func() error {
		logStats(gctx, registry, 30*time.Second, logger)
		return nil
	})

	logger.Info("chatclient running - type a message and press enter, Ctrl+C to stop")

	if err := g.Wait(); err != nil && !errors.Is(err, errQuit) {
		logger.Error("chatclient stopped with error", "error", err)
	}

	logger.Info("shutting down...")
	for id, items := range registry.CloseAll() {
		logger.Warn("unsent messages discarded", "conversation", string(id), "count", len(items))
	}
	logger.Info("shutdown complete")
}

// loadConfig loads the file, or defaults when path is empty, and applies
// flag overrides before validating.
func loadConfig(path, conversations, userID string) (*config.ClientConfig, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		cfg, err = config.LoadWithDefaults(path)
		if err != nil {
			return nil, err
		}
	}

	if conversations != "" {
		cfg.Conversations = nil
		for _, id := range strings.Split(conversations, ",") {
			if id = strings.TrimSpace(id); id != "" {
				cfg.Conversations = append(cfg.Conversations, id)
			}
		}
	}
	if userID != "" {
		cfg.Auth.UserID = userID
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// buildTokens orders the configured token sources.
func buildTokens(cfg *config.ClientConfig, pool *pgxpool.Pool, logger *slog.Logger) auth.Chain {
	var chain auth.Chain
	if cfg.Auth.Token != "" {
		chain = append(chain, auth.StaticToken(cfg.Auth.Token))
	}
	if cfg.Auth.TokenEnv != "" {
		chain = append(chain, auth.EnvToken(cfg.Auth.TokenEnv))
	}
	if cfg.Auth.TokenFile != "" {
		chain = append(chain, auth.FileToken{Path: cfg.Auth.TokenFile, Logger: logger})
	}
	if pool != nil {
		chain = append(chain, auth.NewStoreTokens(pool, cfg.Auth.TokenQuery, cfg.Auth.UserID, logger))
	}
	if len(chain) == 0 {
		logger.Warn("no token source configured, connecting anonymously")
	}
	return chain
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
