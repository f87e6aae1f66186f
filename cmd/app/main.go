// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"subs3-ledger/internal/config"
	"subs3-ledger/internal/domain/model"
	"subs3-ledger/internal/domain/pda"
	"subs3-ledger/internal/domain/ports/adapter"
	"subs3-ledger/internal/domain/ports/repository"
	"subs3-ledger/internal/infra/api"
	apiv1 "subs3-ledger/internal/infra/api/apiv1"
	"subs3-ledger/internal/infra/clock"
	"subs3-ledger/internal/infra/db/memory"
	pg "subs3-ledger/internal/infra/db/postgres"
	"subs3-ledger/internal/infra/events"
	"subs3-ledger/internal/infra/logging"
	"subs3-ledger/internal/infra/metrics"
	red "subs3-ledger/internal/infra/redis"
	"subs3-ledger/internal/infra/sched"
	"subs3-ledger/internal/infra/token"
	"subs3-ledger/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

// backend is what a storage choice contributes to the engine.
type backend struct {
	store  repository.AccountStore
	locker repository.Locker
	close  func()
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("dev mode enabled: faucet endpoint is mounted")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit, cfg.Ledger.Backend)

	programID, err := model.ParseAddress(cfg.Ledger.ProgramID)
	if err != nil {
		logger.Fatal().Err(err).Msg("ledger.program_id")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	// ---- Redis (optional unless it is the backend) ----
	var redisClient *red.Client
	if cfg.Redis.URL != "" {
		redisClient, err = red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
	}

	// ---- Storage ----
	be, err := openBackend(ctx, g, cfg, redisClient, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.Ledger.Backend).Msg("storage")
	}
	defer be.close()

	// ---- Events ----
	sinks := []adapter.EventPublisher{events.NewLogSink(logger)}
	if redisClient != nil && cfg.Redis.Channel != "" {
		sinks = append(sinks, red.NewEventPublisher(redisClient, cfg.Redis.Channel))
	}
	publisher := events.NewFanout(sinks...)

	// ---- Engine ----
	deriver := pda.NewDeriver(programID)
	bank := token.NewBank(logger)
	trusted := clock.System{}
	billing := usecase.NewBillingUseCase(
		metrics.InstrumentStore(be.store), be.locker, bank, publisher, trusted, deriver, cfg.Ledger.LockTTL, logger,
	)
	dispatcher := usecase.NewDispatcher(billing, deriver, logger)

	// ---- HTTP ----
	var limiter api.Limiter
	if redisClient != nil {
		limiter = red.NewRateLimiter(redisClient)
	}
	v1 := apiv1.NewServer(billing, dispatcher, logger)
	auth := api.NewAuthenticator(cfg.HTTP.JWTSecret, cfg.HTTP.JWTIssuer)
	handler := api.NewRouter(cfg.HTTP, auth, limiter, logger, func(r chi.Router) {
		apiv1.RegisterAPIV1(r, v1)
		if cfg.Runtime.Dev {
			apiv1.RegisterDevFaucet(r, bank, deriver)
		}
	})
	server := api.NewServer(cfg.HTTP.Port, handler, logger)
	g.Go(func() error { return server.Run(ctx) })

	// ---- Workers ----
	if cfg.Scheduler.DueScanInterval > 0 {
		scanner := sched.NewDueScanner(cfg.Scheduler.DueScanInterval, billing, publisher, trusted, logger)
		g.Go(func() error { return scanner.Run(ctx) })
	}

	logger.Info().
		Str("version", version).
		Str("backend", cfg.Ledger.Backend).
		Str("program_id", programID.String()).
		Int("port", cfg.HTTP.Port).
		Msg("subs3-ledger started")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("shutdown with error")
		return
	}
	logger.Info().Msg("shutdown complete")
}

func openBackend(ctx context.Context, g *errgroup.Group, cfg *config.Config, redisClient *red.Client, logger *zerolog.Logger) (*backend, error) {
	switch cfg.Ledger.Backend {
	case config.BackendPostgres:
		pool, err := pg.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		if cfg.Database.Migrate {
			if err := pg.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, err
			}
		}
		g.Go(func() error { return reportPoolStats(ctx, pool) })
		logger.Info().Bool("migrate", cfg.Database.Migrate).Msg("postgres backend ready")
		return &backend{
			store:  pg.NewPostgresAccountStore(pool, pg.NewTxManager(pool)),
			locker: pickLocker(redisClient),
			close:  pool.Close,
		}, nil
	case config.BackendRedis:
		logger.Info().Str("prefix", cfg.Redis.KeyPrefix).Msg("redis backend ready")
		return &backend{
			store:  red.NewAccountStore(redisClient),
			locker: red.NewLocker(redisClient),
			close:  func() {},
		}, nil
	default:
		logger.Warn().Msg("memory backend: state is lost on restart")
		return &backend{
			store:  memory.NewAccountStore(),
			locker: pickLocker(redisClient),
			close:  func() {},
		}, nil
	}
}

// pickLocker shares payment leases across replicas when redis is configured.
func pickLocker(redisClient *red.Client) repository.Locker {
	if redisClient != nil {
		return red.NewLocker(redisClient)
	}
	return memory.NewLocker()
}

func reportPoolStats(ctx context.Context, pool *pgxpool.Pool) error {
	t := time.NewTicker(15 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			st := pool.Stat()
			metrics.SetDBPoolStats(st.TotalConns(), st.IdleConns(), st.AcquiredConns())
		}
	}
}
