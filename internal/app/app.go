// Package app wires the ledger, transport, reports, sweeps and scheduler
// from configuration. The server and the admin CLI share it so both run the
// same components against the same store.
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/chamahub/backend/internal/bot"
	"github.com/chamahub/backend/internal/config"
	"github.com/chamahub/backend/internal/handler"
	"github.com/chamahub/backend/internal/metrics"
	"github.com/chamahub/backend/internal/report"
	"github.com/chamahub/backend/internal/repository"
	"github.com/chamahub/backend/internal/repository/memory"
	"github.com/chamahub/backend/internal/repository/postgres"
	"github.com/chamahub/backend/internal/repository/sqlite"
	"github.com/chamahub/backend/internal/scheduler"
	"github.com/chamahub/backend/internal/service"
	"github.com/chamahub/backend/internal/ws"
	"github.com/chamahub/backend/pkg/crypto"
	"github.com/chamahub/backend/pkg/messaging"
	"github.com/redis/go-redis/v9"
)

// App holds the constructed components. Fields are nil when the matching
// feature is disabled.
type App struct {
	Config    *config.Config
	Store     repository.Store
	Ledger    *service.LedgerService
	Auth      *service.AuthService
	Sweeps    *service.SweepService
	Reports   *report.Generator
	Bot       *bot.Interpreter
	Transport messaging.Transport
	Metrics   *metrics.Metrics
	Activity  *ws.Hub
	Scheduler *scheduler.Scheduler
	Redis     *redis.Client
}

// OpenStore opens the configured store backend and applies migrations.
func OpenStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		log.Println("⚠️  Using in-memory store, data is lost on exit")
		return memory.New(), nil
	case config.DriverPostgres:
		pool, err := postgres.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migration error: %w", err)
		}
		log.Println("✅ PostgreSQL connected & migrated")
		return postgres.NewStore(pool), nil
	default:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := sqlite.RunMigrations(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migration error: %w", err)
		}
		log.Printf("✅ SQLite %s opened & migrated", cfg.SQLitePath)
		return sqlite.NewStore(db), nil
	}
}

// newTransport picks Twilio when credentials are present and the log
// transport otherwise.
func newTransport(cfg config.TwilioConfig) messaging.Transport {
	if !cfg.Enabled() {
		log.Println("⚠️  Twilio not configured, outbound messages are only logged")
		return messaging.NewLogTransport()
	}
	log.Printf("✅ Twilio WhatsApp transport ready (from %s)", cfg.From)
	return messaging.NewTwilioTransport(messaging.TwilioConfig{
		AccountSID: cfg.AccountSID,
		AuthToken:  cfg.AuthToken,
		From:       cfg.From,
		RatePerSec: cfg.SendRatePerSec,
	})
}

// Option customizes New.
type Option func(*options)

type options struct {
	transport messaging.Transport
}

// WithTransport replaces the configured outbound transport.
func WithTransport(t messaging.Transport) Option {
	return func(o *options) { o.transport = t }
}

// New builds every component on top of store. It does not start the
// scheduler.
func New(ctx context.Context, cfg *config.Config, store repository.Store, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		Config:   cfg,
		Store:    store,
		Metrics:  metrics.New(),
		Activity: ws.NewHub(nil),
	}

	loc := cfg.Timezone
	if loc == nil {
		loc = time.Local
	}
	a.Ledger = service.NewLedgerService(store, cfg.StoreTimeout, a.Activity).WithClock(func() time.Time {
		return time.Now().In(loc)
	})

	auth, err := service.NewAuthService(cfg.JWTSecret, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		return nil, err
	}
	a.Auth = auth

	if o.transport == nil {
		o.transport = newTransport(cfg.Twilio)
	}
	a.Transport = a.Metrics.Transport(o.transport)
	a.Reports = report.NewGenerator(a.Ledger, cfg.ReportsDir).WithClock(a.Ledger.Now)

	backup := service.BackupConfig{Dir: cfg.BackupDir, RetentionDays: cfg.BackupRetentionDays}
	if cfg.BackupEncryptionKey != "" {
		sealer, err := crypto.NewSealer(cfg.BackupEncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("backup encryption: %w", err)
		}
		backup.Sealer = sealer
	}
	a.Sweeps = service.NewSweepService(a.Ledger, store, a.Transport, a.Reports, backup).WithRecorder(a.Metrics)
	a.Bot = bot.NewInterpreter(a.Ledger, a.Reports).WithRecorder(a.Metrics)

	var locker scheduler.Locker = scheduler.NoopLocker{}
	if cfg.RedisURL != "" {
		client, err := scheduler.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.Redis = client
		locker = scheduler.NewRedisLocker(client, "")
		log.Println("✅ Redis connected, job leases enabled")
	}

	sched, err := scheduler.New(a.Sweeps.Jobs(), scheduler.Config{
		Location: loc,
		Specs:    cfg.CronSpecs,
	}, locker)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Scheduler = sched
	return a, nil
}

// Build opens the store and builds the App.
func Build(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a, err := New(ctx, cfg, store, opts...)
	if err != nil {
		store.Close()
		return nil, err
	}
	return a, nil
}

// Close releases the store and Redis connections.
func (a *App) Close() error {
	if a.Redis != nil {
		a.Redis.Close()
	}
	return a.Store.Close()
}

// redisPinger adapts the Redis client to the health check.
type redisPinger struct{ client *redis.Client }

func (p redisPinger) Ping(ctx context.Context) error { return p.client.Ping(ctx).Err() }

// HealthDeps returns the optional dependencies reported by /health.
func (a *App) HealthDeps() map[string]handler.Pinger {
	deps := map[string]handler.Pinger{}
	if a.Redis != nil {
		deps["redis"] = redisPinger{a.Redis}
	}
	return deps
}
