package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/optimal-data/ingestor/internal/cache"
	"github.com/optimal-data/ingestor/internal/config"
	"github.com/optimal-data/ingestor/internal/etl"
	"github.com/optimal-data/ingestor/internal/ledger"
	"github.com/optimal-data/ingestor/internal/load"
	"github.com/optimal-data/ingestor/internal/sources/demandware"
	"github.com/optimal-data/ingestor/pkg/database"
	"github.com/optimal-data/ingestor/pkg/logger"
)

func runIngest(opts *RunOptions) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.LogFile != "" {
		if err := logger.InitLogger(cfg.LogFile); err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer logger.Close()
	}

	srcs, err := config.LoadSources(opts.SourcesFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := buildCache(opts.CacheStore, cfg)
	if err != nil {
		return err
	}
	led, err := buildLedger(ctx, opts.LedgerStore, cfg)
	if err != nil {
		return err
	}
	loader, err := buildLoader(ctx, opts.Target, cfg)
	if err != nil {
		return err
	}

	defaults := etl.Settings{
		PageSize: cfg.PageSize,
		Workers:  cfg.Workers,
		CacheTTL: cfg.CacheTTL,
		Backoff: etl.BackoffPolicy{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   cfg.BaseDelay,
			MaxDelay:    2 * time.Minute,
		},
		RequestTimeout: cfg.RequestTimeout,
		DryRun:         opts.DryRun,
	}

	registry := etl.NewRegistry()
	orch := etl.NewOrchestrator(registry, store, led, loader, defaults)

	for i := range srcs.Sources {
		s := &srcs.Sources[i]
		client := demandware.New(s.BaseURL, s.Endpoint, s.Params, s.PageSize, s.RatePerSec)
		registry.Register(s.Name, client, etl.NewMappingTransformer(s.Name, &s.Mapping))

		override := etl.Settings{
			PageSize: s.PageSize,
			CacheTTL: time.Duration(s.CacheTTLMinutes) * time.Minute,
		}
		if s.MaxAttempts > 0 {
			override.Backoff = etl.BackoffPolicy{
				MaxAttempts: s.MaxAttempts,
				BaseDelay:   cfg.BaseDelay,
				MaxDelay:    2 * time.Minute,
			}
		}
		orch.Override(s.Name, override)
	}

	res, err := orch.Run(ctx, opts.Source, opts.Resume)
	fmt.Printf("run %s for %s finished with status %s: processed=%d skipped=%d failed=%d\n",
		res.RunID, res.Source, res.Status, res.Processed, res.Skipped, res.Failed)
	return err
}

func buildCache(backend string, cfg *config.Config) (cache.Store, error) {
	switch backend {
	case "memory":
		return cache.NewMemory(), nil
	case "redis":
		client, err := database.ConnectRedis(cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		return cache.NewRedis(client), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}

func buildLedger(ctx context.Context, backend string, cfg *config.Config) (ledger.Ledger, error) {
	switch backend {
	case "memory":
		return ledger.NewMemory(), nil
	case "mongo":
		if cfg.MongoURL == "" {
			return nil, fmt.Errorf("MONGO_URL environment variable not set")
		}
		client, err := database.ConnectMongo(cfg.MongoURL)
		if err != nil {
			return nil, err
		}
		led := ledger.NewMongo(client, cfg.MongoDatabase)
		if err := led.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		return led, nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", backend)
	}
}

func buildLoader(ctx context.Context, target string, cfg *config.Config) (etl.Loader, error) {
	switch target {
	case "postgres":
		if cfg.PostgresURL == "" {
			return nil, fmt.Errorf("POSTGRES_URL environment variable not set")
		}
		db, err := database.ConnectPostgres(cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		loader := load.NewPostgres(db, "")
		if err := loader.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return loader, nil
	case "sqlserver":
		if cfg.SQLServerURL == "" {
			return nil, fmt.Errorf("SQLSERVER_URL environment variable not set")
		}
		db, err := database.ConnectSQLServer(cfg.SQLServerURL)
		if err != nil {
			return nil, err
		}
		loader := load.NewSQLServer(db, "")
		if err := loader.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return loader, nil
	default:
		return nil, fmt.Errorf("unknown target %q", target)
	}
}

func listSources(cmd *cobra.Command, sourcesFile string) error {
	srcs, err := config.LoadSources(sourcesFile)
	if err != nil {
		return err
	}
	for _, s := range srcs.Sources {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s/%s (%d fields mapped)\n", s.Name, s.BaseURL, s.Endpoint, len(s.Mapping.Fields))
	}
	return nil
}
