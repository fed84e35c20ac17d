package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"golang.org/x/text/language"

	"github.com/JonMunkholm/catalogdesk/internal/audit"
	"github.com/JonMunkholm/catalogdesk/internal/bulk"
	"github.com/JonMunkholm/catalogdesk/internal/config"
	"github.com/JonMunkholm/catalogdesk/internal/core"
	"github.com/JonMunkholm/catalogdesk/internal/deals"
	"github.com/JonMunkholm/catalogdesk/internal/extract"
	"github.com/JonMunkholm/catalogdesk/internal/kv"
	"github.com/JonMunkholm/catalogdesk/internal/logging"
	"github.com/JonMunkholm/catalogdesk/internal/metrics"
	"github.com/JonMunkholm/catalogdesk/internal/prefs"
	"github.com/JonMunkholm/catalogdesk/internal/review"
	"github.com/JonMunkholm/catalogdesk/internal/sheet"
	"github.com/JonMunkholm/catalogdesk/internal/store"
	"github.com/JonMunkholm/catalogdesk/internal/web"
)

func main() {
	// Overload lets a local .env win over stale shell exports.
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logCloser := logging.Setup(logging.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer logCloser.Close()

	slog.Info("configuration loaded", "config", cfg.String())

	if err := run(cfg); err != nil {
		slog.Error("server exited", "error", err)
		logCloser.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	pool, err := openPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.Database.Migrate {
		if err := store.Migrate(ctx, pool); err != nil {
			return err
		}
		slog.Info("database schema ready")
	}

	kvStore, closeKV, err := openKV(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeKV()

	locale, err := language.Parse(cfg.Catalog.CollationLocale)
	if err != nil {
		locale = language.English
	}

	m := metrics.New()
	logger := slog.Default()

	auditMemory := audit.NewMemory(cfg.Catalog.AuditMemory)
	sink := audit.Multi{
		audit.Slog{Logger: logger},
		auditMemory,
		audit.NewPostgres(pool, logger),
	}

	dealClient, err := deals.NewClient(deals.Config{
		BaseURL:           cfg.Deals.BaseURL,
		APIKey:            cfg.Deals.APIKey,
		Country:           cfg.Deals.Country,
		RequestsPerSecond: cfg.Deals.RequestsPerSecond,
		Timeout:           cfg.Deals.Timeout,
		Metrics:           m,
		Logger:            logger,
	})
	if err != nil {
		return err
	}
	if cfg.Deals.APIKey == "" {
		slog.Warn("deal API key not set; deal listings will report a configuration error")
	}

	extractor, err := extract.New(extract.Config{
		Timeout:      cfg.Extractor.Timeout,
		CacheSize:    cfg.Extractor.CacheSize,
		UserAgent:    cfg.Extractor.UserAgent,
		MaxBodyBytes: cfg.Extractor.MaxBodyBytes,
		Audit:        sink,
		Metrics:      m,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	selection, err := prefs.NewSelectionStore(ctx, kvStore, prefs.WithLogger(logger))
	if err != nil {
		return err
	}

	defaultColumns := cfg.Catalog.DefaultColumns
	if len(defaultColumns) == 0 {
		defaultColumns = sheet.DefaultColumns
	}

	products := store.NewPostgres(pool)
	service := core.NewService(core.Deps{
		Store:     products,
		Selection: selection,
		Columns:   prefs.NewColumnStore(kvStore, sheet.ColumnNames(), defaultColumns),
		Templates: review.NewTemplateStore(kvStore, logger),
		Bulk: bulk.New(bulk.Deps{
			Store:   products,
			Codec:   sheet.New(),
			KV:      kvStore,
			Audit:   sink,
			Metrics: m,
			Logger:  logger,
		}),
		Jobs:      core.NewJobLimiter(cfg.Jobs.MaxConcurrent, cfg.Jobs.MaxWait),
		Deals:     dealClient,
		Extractor: extractor,
		AuditLog:  auditMemory,
		Metrics:   m,
		Logger:    logger,
		Locale:    locale,
	})

	server := web.NewServer(service, cfg, m)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if status := service.JobStatus(); status.Active > 0 {
		slog.Info("waiting for spreadsheet jobs", "active", status.Active)
		if err := service.WaitForJobs(shutdownCtx); err != nil {
			slog.Warn("jobs did not complete in time", "error", err)
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func openPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	}
	return pool, nil
}

// openKV returns the configured local store and a function releasing it.
func openKV(ctx context.Context, cfg config.StorageConfig) (kv.Store, func(), error) {
	switch cfg.Backend {
	case config.StorageMemory:
		return kv.NewMemoryStore(cfg.MaxValueBytes), func() {}, nil
	case config.StorageRedis:
		client, err := kv.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return kv.NewRedisStore(client, cfg.KeyPrefix, cfg.MaxValueBytes), func() { client.Close() }, nil
	default:
		fs, err := kv.NewFileStore(cfg.Dir, cfg.MaxValueBytes)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() {}, nil
	}
}
