// Package main is the entry point of the background worker.
//
// The worker drains the cohort re-rank queue: every cohort whose inline
// re-rank failed or was switched off is swept on a fixed interval, and the
// Redis cohort index is rebuilt from the fresh positions. Several workers
// may run side by side; a Redis lock keeps one sweep running at a time.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alem-hub/school-results/config"
	"github.com/alem-hub/school-results/internal/application/command"
	"github.com/alem-hub/school-results/internal/application/eventhandler"
	"github.com/alem-hub/school-results/internal/application/query"
	"github.com/alem-hub/school-results/internal/domain/result"
	"github.com/alem-hub/school-results/internal/infrastructure/messaging"
	"github.com/alem-hub/school-results/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/school-results/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/school-results/internal/infrastructure/scheduler"
	"github.com/alem-hub/school-results/internal/infrastructure/scheduler/jobs"
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
	log := logger.NewSlog(os.Stdout,
		logger.ParseLevel(cfg.Observability.LogLevel),
		logger.Format(cfg.Observability.LogFormat),
		cfg.App.Name+"-worker",
	)
	log.Info("starting results worker",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"sweep_interval", cfg.Ranking.SweepInterval.String(),
	)

	if !cfg.Scheduler.Enabled {
		log.Warn("scheduler disabled, nothing to do")
		return nil
	}

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

	// The worker may start before the server, so it migrates too.
	if cfg.Database.AutoMigrate {
		applied, err := postgres.NewMigrator(dbConn).Migrate(ctx)
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date", "applied", applied)
	}

	resultRepo := postgres.NewResultRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		cohortIndex result.CohortIndex
		statsCache  query.StatisticsCache
		locker      jobs.Locker
	)

	if !cfg.Redis.Disabled {
		redisCache, err := redis.NewCache(ctx, redisConfig(cfg.Redis))
		if err != nil {
			log.Warn("failed to connect to Redis, sweeping without lock or index", "error", err)
		} else {
			defer redisCache.Close()
			onStateChange := func(name string, from, to circuitbreaker.State) {
				log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			}

			locker = redis.NewLocker(redisCache)
			if cfg.Features.CohortIndex() {
				cb := circuitbreaker.RedisBreaker("redis_cohort_index", cfg.Redis.BreakerThreshold, cfg.Redis.BreakerTimeout, onStateChange)
				cohortIndex = redis.NewCohortIndex(redisCache, cb)
			}
			if cfg.Features.StatsCache() {
				cb := circuitbreaker.RedisBreaker("redis_stats_cache", cfg.Redis.BreakerThreshold, cfg.Redis.BreakerTimeout, onStateChange)
				statsCache = redis.NewStatsCache(redisCache, cb, cfg.Redis.StatsTTL)
			}
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	// Sweeps publish CohortReranked; the handler drops cached statistics so
	// the server never serves positions older than the sweep.
	busCfg := messaging.DefaultConfig()
	busCfg.Logger = log
	eventBus := messaging.NewInMemoryEventBus(busCfg)
	defer func() {
		_ = eventBus.Close()
	}()

	writtenCfg := eventhandler.DefaultResultWrittenConfig()
	writtenCfg.IndexEnabled = false
	onWritten := eventhandler.NewOnResultWrittenHandler(cohortIndex, nil, statsCache, log, writtenCfg)
	if err := onWritten.Subscribe(eventBus); err != nil {
		return fmt.Errorf("failed to subscribe event handlers: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	schedCfg := scheduler.DefaultConfig()
	schedCfg.Logger = log
	schedCfg.Timezone = cfg.App.Location
	if cfg.Scheduler.MaxConcurrentJobs > 0 {
		schedCfg.MaxConcurrentJobs = cfg.Scheduler.MaxConcurrentJobs
	}
	if cfg.Ranking.SweepTimeout > 0 {
		schedCfg.JobTimeout = cfg.Ranking.SweepTimeout
	}
	sched := scheduler.New(schedCfg)

	// Nil actors: the worker is trusted, no admin check applies.
	rerank := command.NewRerankCohortHandler(resultRepo, nil, eventBus)

	jobCfg := jobs.DefaultRerankCohortsConfig()
	if cfg.Ranking.SweepBatchSize > 0 {
		jobCfg.BatchSize = cfg.Ranking.SweepBatchSize
	}
	if cfg.Scheduler.LockTTL > 0 {
		jobCfg.LockTTL = cfg.Scheduler.LockTTL
	}
	jobCfg.RebuildIndex = cohortIndex != nil

	sweep := jobs.NewRerankCohortsJob(resultRepo, resultRepo, rerank, cohortIndex, locker, log, jobCfg)
	if err := sched.Register(sweep, scheduler.Every(cfg.Ranking.SweepInterval)); err != nil {
		return fmt.Errorf("failed to register %s: %w", sweep.Name(), err)
	}

	sched.OnJobComplete(func(r scheduler.JobResult) {
		attrs := []any{"job", r.JobName, "duration", r.Duration.String()}
		if !r.Success {
			log.Warn("job failed", append(attrs, "error", r.Error)...)
			return
		}
		log.Debug("job completed", attrs...)
	})

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. RUN UNTIL SIGNAL
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	return shutdown(log, sched, cfg.App.ShutdownTimeout)
}

// shutdown stops the scheduler, waiting for the running sweep at most
// timeout.
func shutdown(log *slog.Logger, sched *scheduler.Scheduler, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- sched.Stop() }()

	select {
	case err := <-done:
		if err != nil {
			log.Warn("scheduler stop", "error", err)
		}
		log.Info("worker stopped")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timed out after %s", timeout)
	}
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
