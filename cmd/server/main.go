// Package main is the entry point of the results API server.
//
// The server accepts result sheets from staff, grades and ranks them within
// their class cohort, and serves them back to staff and parents. Background
// re-ranking of queued cohorts lives in cmd/worker.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alem-hub/school-results/config"
	"github.com/alem-hub/school-results/internal/application/command"
	"github.com/alem-hub/school-results/internal/application/eventhandler"
	"github.com/alem-hub/school-results/internal/application/query"
	"github.com/alem-hub/school-results/internal/domain/result"
	"github.com/alem-hub/school-results/internal/domain/shared"
	"github.com/alem-hub/school-results/internal/infrastructure/identity"
	"github.com/alem-hub/school-results/internal/infrastructure/messaging"
	"github.com/alem-hub/school-results/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/school-results/internal/infrastructure/persistence/redis"
	httpapi "github.com/alem-hub/school-results/internal/interface/http"
	"github.com/alem-hub/school-results/internal/interface/http/handlers"
	"github.com/alem-hub/school-results/pkg/circuitbreaker"
	"github.com/alem-hub/school-results/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	level := logger.ParseLevel(cfg.Observability.LogLevel)
	format := logger.Format(cfg.Observability.LogFormat)

	reqLog := logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     level,
		Format:    format,
		AddCaller: cfg.App.Debug,
	}).With(logger.String("service", cfg.App.Name))
	log := logger.NewSlog(os.Stdout, level, format, cfg.App.Name)

	log.Info("starting results server",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"timezone", cfg.App.Timezone,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. DATABASE
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbCfg := postgres.DefaultConfig(cfg.Database.URL)
	dbCfg.MaxConns = int32(cfg.Database.MaxOpenConns)
	dbCfg.MinConns = int32(cfg.Database.MaxIdleConns)
	dbCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	dbCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
	dbCfg.ConnectAttempts = cfg.Database.ConnectAttempts
	dbCfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		log.Warn("database not reachable, retrying", "attempt", attempt, "delay", delay, "error", err)
	}

	dbConn, err := postgres.NewConnection(ctx, dbCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()
	log.Info("database connection established")

	if cfg.Database.AutoMigrate {
		applied, err := postgres.NewMigrator(dbConn).Migrate(ctx)
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date", "applied", applied)
	}

	resultRepo := postgres.NewResultRepository(dbConn)
	actorRepo := postgres.NewActorRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		cohortIndex result.CohortIndex
		statsCache  query.StatisticsCache
		breakers    []*circuitbreaker.CircuitBreaker
		redisCache  *redis.Cache
	)

	if !cfg.Redis.Disabled && (cfg.Features.CohortIndex() || cfg.Features.StatsCache()) {
		log.Info("connecting to Redis...")
		redisCache, err = redis.NewCache(ctx, redisConfig(cfg.Redis))
		if err != nil {
			log.Warn("failed to connect to Redis, serving from Postgres only", "error", err)
			redisCache = nil
		} else {
			defer redisCache.Close()
			onStateChange := func(name string, from, to circuitbreaker.State) {
				log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			}

			if cfg.Features.CohortIndex() {
				cb := circuitbreaker.RedisBreaker("redis_cohort_index", cfg.Redis.BreakerThreshold, cfg.Redis.BreakerTimeout, onStateChange)
				cohortIndex = redis.NewCohortIndex(redisCache, cb)
				breakers = append(breakers, cb)
			}
			if cfg.Features.StatsCache() {
				cb := circuitbreaker.RedisBreaker("redis_stats_cache", cfg.Redis.BreakerThreshold, cfg.Redis.BreakerTimeout, onStateChange)
				statsCache = redis.NewStatsCache(redisCache, cb, cfg.Redis.StatsTTL)
				breakers = append(breakers, cb)
			}
			log.Info("Redis connection established",
				"cohort_index", cohortIndex != nil,
				"stats_cache", statsCache != nil,
			)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	busCfg := messaging.DefaultConfig()
	busCfg.Logger = log
	eventBus := messaging.NewInMemoryEventBus(busCfg)
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	writtenCfg := eventhandler.DefaultResultWrittenConfig()
	writtenCfg.IndexEnabled = cohortIndex != nil
	onWritten := eventhandler.NewOnResultWrittenHandler(cohortIndex, resultRepo, statsCache, log, writtenCfg)
	if err := onWritten.Subscribe(eventBus); err != nil {
		return fmt.Errorf("failed to subscribe event handlers: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. APPLICATION HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	lifecycleCfg := command.DefaultLifecycleConfig()
	lifecycleCfg.RerankOnWrite = cfg.Features.RerankOnWrite()
	lifecycleCfg.RecomputeOnPublish = cfg.Features.RecomputeOnPublish()

	deps := command.LifecycleDeps{
		Results:    resultRepo,
		Sweeper:    resultRepo,
		Aggregator: result.NewAggregator(cfg.Grading.Table),
		Actors:     shared.ContextActorProvider{},
		Publisher:  eventBus,
		Logger:     log,
		Config:     lifecycleCfg,
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. AUTHENTICATION
	// ─────────────────────────────────────────────────────────────────────────
	auth := identity.NewAuthenticator(actorRepo)
	if cfg.HTTP.BootstrapAdminKey != "" {
		created, err := auth.Bootstrap(ctx, cfg.HTTP.BootstrapAdminKey)
		if err != nil {
			return fmt.Errorf("failed to bootstrap admin: %w", err)
		}
		if created {
			log.Info("bootstrap admin created")
		}
	} else if n, err := actorRepo.CountActors(ctx); err == nil && n == 0 {
		log.Warn("no actors stored and BOOTSTRAP_ADMIN_KEY unset; every request will be rejected")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. HEALTH CHECKS
	// ─────────────────────────────────────────────────────────────────────────
	checker := handlers.NewCompositeHealthChecker(cfg.App.Version)
	checker.AddCheck("postgres", handlers.NewPingCheck(dbConn))
	if redisCache != nil {
		checker.AddOptionalCheck("redis", handlers.NewPingCheck(redisCache))
	}
	for _, cb := range breakers {
		checker.AddOptionalCheck(cb.Name(), handlers.NewBreakerCheck(cb))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	srvCfg := httpapi.DefaultConfig()
	srvCfg.Port = cfg.HTTP.Port
	srvCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	srvCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	srvCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	srvCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	srvCfg.Version = cfg.App.Version

	server := httpapi.NewServer(srvCfg, httpapi.Dependencies{
		CreateResult:       command.NewCreateResultHandler(deps),
		UpdateResult:       command.NewUpdateResultHandler(deps),
		PublishResult:      command.NewPublishResultHandler(deps),
		DeleteResult:       command.NewDeleteResultHandler(deps),
		RerankCohort:       command.NewRerankCohortHandler(resultRepo, shared.ContextActorProvider{}, eventBus),
		GetResult:          query.NewGetResultHandler(resultRepo, nil),
		ListStudentResults: query.NewListStudentResultsHandler(resultRepo, nil),
		ListClassResults:   query.NewListClassResultsHandler(resultRepo, nil),
		ClassStatistics:    query.NewGetClassStatisticsHandler(resultRepo, cfg.Grading.Table, statsCache, nil, log),
		LivePosition:       query.NewGetLivePositionHandler(resultRepo, cohortIndex, nil, log),
		GradeTable:         cfg.Grading.Table,
		Auth:               auth,
		Logger:             reqLog,
		HealthChecker:      checker,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 10. RUN UNTIL SIGNAL
	// ─────────────────────────────────────────────────────────────────────────
	serverErr := server.StartAsync()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 11. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server shutdown failed", "error", err)
		return err
	}
	log.Info("server stopped")
	return nil
}

// redisConfig maps the environment settings onto the cache client config.
func redisConfig(rc config.RedisConfig) redis.Config {
	out := redis.DefaultConfig()
	out.URL = rc.URL
	if rc.Host != "" {
		out.Host = rc.Host
	}
	if rc.Port > 0 {
		out.Port = rc.Port
	}
	out.Password = rc.Password
	out.DB = rc.DB
	if rc.PoolSize > 0 {
		out.PoolSize = rc.PoolSize
	}
	if rc.MinIdleConns > 0 {
		out.MinIdleConns = rc.MinIdleConns
	}
	if rc.DialTimeout > 0 {
		out.DialTimeout = rc.DialTimeout
	}
	if rc.ReadTimeout > 0 {
		out.ReadTimeout = rc.ReadTimeout
	}
	if rc.WriteTimeout > 0 {
		out.WriteTimeout = rc.WriteTimeout
	}
	return out
}
