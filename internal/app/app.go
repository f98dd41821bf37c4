// Package app assembles the edge wallet services from configuration. Both the
// HTTP server and the edgectl command line share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/edgewallet/internal/config"
	"github.com/congo-pay/edgewallet/internal/infra"
	"github.com/congo-pay/edgewallet/internal/ledger"
	"github.com/congo-pay/edgewallet/internal/logging"
	"github.com/congo-pay/edgewallet/internal/migrations"
	"github.com/congo-pay/edgewallet/internal/notification"
	"github.com/congo-pay/edgewallet/internal/provisioning"
	"github.com/congo-pay/edgewallet/internal/reconcile"
	"github.com/congo-pay/edgewallet/internal/transfer"
	"github.com/congo-pay/edgewallet/internal/wallet"
)

// defaultLedgerTimeout matches the ledger client's own fallback.
const defaultLedgerTimeout = 30 * time.Second

// App holds the wired services and the connections backing them.
type App struct {
	Config config.Config
	Logger *slog.Logger

	DB     *pgxpool.Pool
	Cache  *redis.Client
	Ledger ledger.Client
	Repo   wallet.Repository

	Wallets      *wallet.Service
	Provisioning *provisioning.Service
	Transfers    *transfer.Service
	Reconciler   *reconcile.Reconciler
}

// Options tweaks Build.
type Options struct {
	// SkipMigrations leaves the schema untouched on startup.
	SkipMigrations bool
	// SkipCache avoids connecting Redis, for callers that never serve HTTP.
	SkipCache bool
}

// Build connects the configured backends and constructs the services.
// Outside development every backend must be configured; in development a
// missing DATABASE_URL or LEDGER_URL falls back to in-memory stores.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	a := &App{Config: cfg, Logger: logger}

	if cfg.DatabaseURL != "" {
		pool, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
		if err != nil {
			return nil, err
		}
		a.DB = pool
		if !opts.SkipMigrations {
			if err := migrations.ApplyPool(ctx, pool); err != nil {
				a.Close()
				return nil, err
			}
		}
		a.Repo = wallet.NewPostgresRepository(pool)
	} else {
		logger.Warn("DATABASE_URL not set, balances are kept in memory")
		a.Repo = wallet.NewMemoryRepository()
	}

	if cfg.RedisURL != "" && !opts.SkipCache {
		cache, err := infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Cache = cache
	}

	if cfg.LedgerURL != "" {
		a.Ledger = ledger.NewBigchainClient(cfg.LedgerURL,
			ledger.WithTimeout(cfg.LedgerTimeout),
			ledger.WithRateLimit(cfg.LedgerRateLimit, cfg.LedgerRateBurst),
			ledger.WithLogger(logging.With(logger, "ledger")),
		)
	} else {
		logger.Warn("LEDGER_URL not set, using an in-memory ledger")
		a.Ledger = ledger.NewInMemory()
	}

	if err := a.wire(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// NewInMemory wires the services over in-memory stores. It backs tests and
// local experiments.
func NewInMemory(cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	a := &App{
		Config: cfg,
		Logger: logger,
		Ledger: ledger.NewInMemory(),
		Repo:   wallet.NewMemoryRepository(),
	}
	if err := a.wire(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) wire() error {
	notifier := notification.NewLoggerNotifier(logging.With(a.Logger, "notification"))

	a.Wallets = wallet.NewService(a.Repo)

	policy := provisioning.DefaultPolicy()
	policy.InitialSupply = a.Config.InitialSupply
	policy.InitialAllocation = a.Config.InitialAllocation
	policy.NFTSupply = a.Config.NFTSupply
	prov, err := provisioning.NewService(a.Repo, a.Ledger, provisioning.Ed25519Keys, notifier,
		logging.With(a.Logger, "provisioning"), policy)
	if err != nil {
		return fmt.Errorf("provisioning: %w", err)
	}
	a.Provisioning = prov

	xfer, err := transfer.NewService(a.Repo, a.Ledger, notifier,
		logging.With(a.Logger, "transfer"), transfer.Policy{Amount: a.Config.TransferAmount})
	if err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	a.Transfers = xfer

	a.Reconciler = reconcile.New(a.Repo, a.Ledger, notifier, logging.With(a.Logger, "reconcile"), a.Config.ReconcileRepair)
	return nil
}

// Scheduler returns the reconcile scheduler, or nil when no schedule is configured.
func (a *App) Scheduler() (*reconcile.Scheduler, error) {
	if a.Config.ReconcileSchedule == "" {
		return nil, nil
	}
	return reconcile.NewScheduler(a.Reconciler, a.Config.ReconcileSchedule, runTimeout(a.Config), logging.With(a.Logger, "reconcile"))
}

// runTimeout bounds one scheduled reconcile run at ten ledger round trips.
func runTimeout(cfg config.Config) time.Duration {
	perRequest := cfg.LedgerTimeout
	if perRequest <= 0 {
		perRequest = defaultLedgerTimeout
	}
	return perRequest * 10
}

// Ping reports the reachability of every configured backend.
func (a *App) Ping(ctx context.Context) map[string]error {
	status := map[string]error{}
	if a.DB != nil {
		status["postgres"] = a.DB.Ping(ctx)
	}
	if a.Cache != nil {
		status["redis"] = a.Cache.Ping(ctx).Err()
	}
	if p, ok := a.Ledger.(ledger.Pinger); ok {
		status["ledger"] = p.Ping(ctx)
	}
	return status
}

// Close releases the connections opened by Build.
func (a *App) Close() error {
	var errs []error
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close())
	}
	if a.DB != nil {
		a.DB.Close()
	}
	return errors.Join(errs...)
}
