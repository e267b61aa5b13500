// Package main is the entry point for the Questline community bot.
//
// Startup is strictly ordered: configuration, logging, database,
// migrations, stores, optional Redis, the event bus, services, the
// extension manager, the Discord gateway, background jobs, and finally
// the HTTP probe server. Shutdown walks the same chain in reverse so
// nothing observes a dependency that is already gone.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/questline-hub/questline-bot/config"
	_ "github.com/questline-hub/questline-bot/internal/cogs"
	"github.com/questline-hub/questline-bot/internal/domain/user"
	"github.com/questline-hub/questline-bot/internal/extension"
	"github.com/questline-hub/questline-bot/internal/infrastructure/messaging"
	"github.com/questline-hub/questline-bot/internal/infrastructure/persistence/postgres"
	"github.com/questline-hub/questline-bot/internal/infrastructure/persistence/redis"
	"github.com/questline-hub/questline-bot/internal/infrastructure/scheduler"
	"github.com/questline-hub/questline-bot/internal/infrastructure/scheduler/jobs"
	"github.com/questline-hub/questline-bot/internal/infrastructure/service"
	"github.com/questline-hub/questline-bot/internal/interface/discord"
	"github.com/questline-hub/questline-bot/internal/interface/discord/middleware"
	"github.com/questline-hub/questline-bot/pkg/logger"

	discordapi "github.com/questline-hub/questline-bot/internal/infrastructure/external/discord"
	httpserver "github.com/questline-hub/questline-bot/internal/interface/http"
)

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
	// The level lives in a LevelVar so the loglevel operator command can
	// change it at runtime.
	// ─────────────────────────────────────────────────────────────────────────
	levelVar := new(slog.LevelVar)
	log := setupLogger(cfg, levelVar)
	log.Info("starting questline bot",
		"version", cfg.App.Version,
		"env", string(cfg.App.Environment),
		"debug", cfg.App.Debug,
		"timezone", cfg.App.Timezone,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. DATABASE
	// The pool pre-dials MinConns; a cold database gets a few retries
	// with backoff before startup fails.
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")

	poolCfg := postgres.Config{
		URL:                cfg.Database.URL,
		MinConns:           cfg.Database.MinConns,
		MaxConns:           cfg.Database.MaxConns,
		AcquireTimeout:     cfg.Database.AcquireTimeout,
		HealthcheckTimeout: cfg.Database.HealthcheckTimeout,
		ConnMaxIdleTime:    cfg.Database.ConnMaxIdleTime,
		DialTimeout:        cfg.Database.DialTimeout,
	}
	dialer := postgres.NewDialer(cfg.Database.URL, poolCfg.DialTimeout)

	pool, err := connectWithRetry(ctx, log, cfg.Database, poolCfg, dialer.AsDialFunc())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database pool...")
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer closeCancel()
		if err := pool.Close(closeCtx); err != nil {
			log.Warn("pool close", "error", err)
		}
	}()

	sessions := postgres.NewSessionManager(pool, postgres.SessionConfig{
		FinalizeTimeout:  cfg.Database.TxFinalizeTimeout,
		BreakerThreshold: cfg.Database.CircuitBreakerThreshold,
		BreakerCooldown:  cfg.Database.CircuitBreakerTimeout,
	}, log)

	if _, err := sessions.Health(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. MIGRATIONS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("running database migrations...")
	migrator := postgres.NewMigrator(sessions, log)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	status, err := migrator.Status(ctx)
	if err != nil {
		log.Warn("failed to get migration status", "error", err)
	} else {
		appliedCount := 0
		for _, m := range status {
			if m.IsApplied {
				appliedCount++
			}
		}
		log.Info("migrations completed", "applied", appliedCount, "total", len(status))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. STORES
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing stores...")
	userStore := postgres.NewUserStore(sessions)
	cogStore := postgres.NewCogStore(sessions)
	gameStore := postgres.NewGameStore(sessions)
	profileStore := postgres.NewProfileStore(sessions)
	eventStore := postgres.NewEventStore(sessions)
	eventLogStore := postgres.NewEventLogStore(sessions)
	achievementStore := postgres.NewAchievementStore(sessions)
	unlockStore := postgres.NewUnlockStore(sessions)
	roleStore := postgres.NewRoleStore(sessions)
	usageStore := postgres.NewUsageStore(sessions)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. REDIS (optional)
	// Without Redis the bot still runs: auth caching is skipped and
	// cooldowns fall back to in-process tracking.
	// ─────────────────────────────────────────────────────────────────────────
	var redisCache *redis.Cache
	var userCache user.Cache
	var cooldowns middleware.CooldownGate = middleware.NewMemoryCooldownGate()

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		if cfg.Redis.PoolSize > 0 {
			redisCfg.PoolSize = cfg.Redis.PoolSize
		}
		if cfg.Redis.MinIdleConns > 0 {
			redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		}

		redisCache, err = redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, caching disabled", "error", err)
			redisCache = nil
		} else {
			defer redisCache.Close()
			userCache = redis.NewUserCache(redisCache)
			cooldowns = redis.NewCooldownTracker(redisCache)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus...")
	eventBusConfig := messaging.DefaultInMemoryEventBusConfig()
	eventBusConfig.Logger = log
	eventBusConfig.AsyncMode = true
	eventBus := messaging.NewInMemoryEventBus(eventBusConfig)
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 8. DISCORD CLIENT & GATEWAY
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing Discord client...")
	clientConfig := discordapi.DefaultClientConfig(cfg.Discord.Token)
	clientConfig.Logger = log
	clientConfig.Debug = cfg.App.Debug
	if cfg.Discord.APIBaseURL != "" {
		clientConfig.BaseURL = cfg.Discord.APIBaseURL
	}
	if cfg.Discord.RequestTimeout > 0 {
		clientConfig.Timeout = cfg.Discord.RequestTimeout
	}
	if cfg.Discord.GlobalRateLimit > 0 {
		clientConfig.RequestsPerSecond = cfg.Discord.GlobalRateLimit
	}
	client := discordapi.NewClient(clientConfig)

	gateway := discordapi.NewGateway(client, discordapi.GatewayConfig{
		Token:             cfg.Discord.Token,
		Logger:            log,
		MaxReconnectDelay: cfg.Discord.ReconnectMaxDelay,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 9. SERVICES
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing services...")
	userService := service.NewUserService(sessions, service.PostgresRepos{}, userCache, eventBus, log)
	achievementService := service.NewAchievementService(sessions, service.PostgresRepos{}, userCache, eventBus, log)

	notifications := service.NewNotificationService(client, cfg.Discord.StatusChannelID, log)
	if err := notifications.Subscribe(eventBus); err != nil {
		return fmt.Errorf("failed to subscribe notification service: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. SCHEDULER
	// Jobs are registered before extensions load so operator cogs can
	// inspect them from the start.
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:        log,
		Timezone:      cfg.App.Location,
		EnableMetrics: true,
	})

	sweeper := jobs.NewEventSweeperJob(eventStore, eventBus, log, jobs.EventSweeperConfig{
		Timeout: cfg.Scheduler.JobTimeout,
	})
	if err := sched.Register(sweeper, scheduler.NewIntervalSchedule(cfg.Scheduler.EventSweepInterval)); err != nil {
		return fmt.Errorf("failed to register event sweeper: %w", err)
	}

	heartbeat := jobs.NewHeartbeatJob(sessions, log, jobs.HeartbeatConfig{
		Timeout: cfg.Database.HealthcheckTimeout,
	})
	if err := sched.Register(heartbeat, scheduler.NewIntervalSchedule(cfg.Scheduler.HeartbeatInterval)); err != nil {
		return fmt.Errorf("failed to register heartbeat: %w", err)
	}

	retention := jobs.NewUsageRetentionJob(usageStore, log, jobs.UsageRetentionConfig{
		RetentionDays: cfg.Scheduler.UsageRetentionDays,
		Timeout:       cfg.Scheduler.JobTimeout,
	})
	if err := sched.Register(retention, scheduler.MustParseCronExpression(cfg.Scheduler.UsageRetentionCron)); err != nil {
		return fmt.Errorf("failed to register usage retention: %w", err)
	}

	// Hourly: each run greets only users whose local clock just hit the
	// digest hour, so the job itself handles timezones.
	digest := jobs.NewBirthdayDigestJob(userStore, client, log, jobs.BirthdayDigestConfig{
		ChannelID: cfg.Discord.StatusChannelID,
		Hour:      cfg.Scheduler.BirthdayDigestHour,
		Enabled:   cfg.Scheduler.BirthdayDigest,
		Timeout:   cfg.Scheduler.JobTimeout,
	})
	if err := sched.Register(digest, scheduler.NewIntervalSchedule(time.Hour)); err != nil {
		return fmt.Errorf("failed to register birthday digest: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 11. EXTENSIONS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("loading extensions...")
	botStats := middleware.NewBotStats()

	deps := extension.Deps{
		Logger:             log,
		Config:             cfg,
		Flags:              cfg.Features,
		Sessions:           sessions,
		Users:              userStore,
		Cogs:               cogStore,
		Games:              gameStore,
		Profiles:           profileStore,
		Events:             eventStore,
		EventLogs:          eventLogStore,
		Achievements:       achievementStore,
		Unlocks:            unlockStore,
		Roles:              roleStore,
		Usages:             usageStore,
		UserService:        userService,
		AchievementService: achievementService,
		UserCache:          userCache,
		Bus:                eventBus,
		Scheduler:          sched,
		LogLevel:           levelVar,
		Client:             client,
		Stats:              botStats,
	}

	manager := extension.NewManager(extension.DefaultRegistry(), deps, log)

	loaded, err := manager.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load extensions: %w", err)
	}
	log.Info("extensions loaded", "count", loaded, "commands", manager.HandlerCount())

	// ─────────────────────────────────────────────────────────────────────────
	// 12. BOT
	// ─────────────────────────────────────────────────────────────────────────
	botConfig := discord.DefaultBotConfig()
	botConfig.Prefix = cfg.Discord.CommandPrefix
	botConfig.OwnerIDs = cfg.Discord.OwnerIDs
	botConfig.StatusChannelID = cfg.Discord.StatusChannelID
	botConfig.GracefulShutdownTimeout = cfg.App.ShutdownTimeout
	botConfig.Debug = cfg.App.Debug
	botConfig.Logger = log

	bot, err := discord.NewBot(botConfig, discord.BotDependencies{
		Client:    client,
		Gateway:   gateway,
		Provider:  manager,
		Users:     userStore,
		UserCache: userCache,
		Usages:    usageStore,
		Stats:     botStats,
		Cooldowns: cooldowns,
	})
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 13. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	var httpServer *httpserver.Server
	if cfg.HTTP.Enabled {
		httpConfig := httpserver.DefaultConfig()
		httpConfig.Host = cfg.HTTP.Host
		httpConfig.Port = cfg.HTTP.Port

		httpServer = httpserver.NewServer(httpConfig, httpserver.Dependencies{
			Health:     sessions,
			Stats:      botStats,
			Extensions: manager,
			Version:    cfg.App.Version,
			Logger:     logger.Default(),
		})
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 14. START SERVICES
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("starting services...")

	errCh := make(chan error, 3)

	go func() {
		if err := gateway.Run(ctx); err != nil {
			errCh <- fmt.Errorf("gateway error: %w", err)
		}
	}()

	go func() {
		if err := bot.Run(ctx); err != nil {
			errCh <- fmt.Errorf("bot error: %w", err)
		}
	}()

	if cfg.Scheduler.Enabled {
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	if httpServer != nil {
		go func() {
			log.Info("starting HTTP server", "address", httpServer.Address())
			if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http server error: %w", err)
			}
		}()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 15. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("questline bot is running",
		"prefix", cfg.Discord.CommandPrefix,
		"http_enabled", cfg.HTTP.Enabled,
		"scheduler_enabled", cfg.Scheduler.Enabled,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		log.Error("service error", "error", err)
		return err
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	var shutdownErr error

	// 1. Bot first: it announces going offline and drains in-flight commands.
	log.Info("stopping bot...")
	if err := bot.Stop(shutdownCtx); err != nil {
		log.Error("failed to stop bot gracefully", "error", err)
		shutdownErr = err
	}

	// 2. Gateway stops producing events.
	log.Info("closing gateway...")
	gateway.Close()

	// 3. Background jobs.
	if cfg.Scheduler.Enabled {
		log.Info("stopping scheduler...")
		if err := sched.Stop(); err != nil {
			log.Error("failed to stop scheduler", "error", err)
			shutdownErr = err
		}
	}

	// 4. Extensions tear down while the database is still up.
	log.Info("unloading extensions...")
	manager.UnloadAll(shutdownCtx)

	// 5. HTTP server.
	if httpServer != nil {
		log.Info("stopping HTTP server...")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("failed to stop HTTP server gracefully", "error", err)
			shutdownErr = err
		}
	}

	// 6. Event bus, pool, and Redis close via defers, in reverse order.

	if shutdownErr != nil {
		log.Warn("shutdown completed with errors")
	} else {
		log.Info("shutdown completed successfully")
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// connectWithRetry dials the pool, backing off between attempts so a
// database that is still booting does not kill the deployment.
func connectWithRetry(ctx context.Context, log *slog.Logger, dbCfg config.DatabaseConfig, poolCfg postgres.Config, dial postgres.DialFunc) (*postgres.Pool, error) {
	attempts := dbCfg.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}

	delay := dbCfg.RetryBaseDelay
	if delay <= 0 {
		delay = time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		pool, err := postgres.NewPool(ctx, poolCfg, dial, log)
		if err == nil {
			return pool, nil
		}
		lastErr = err

		if attempt == attempts {
			break
		}

		log.Warn("database connection failed, retrying",
			"attempt", attempt,
			"max_attempts", attempts,
			"retry_in", delay.String(),
			"error", err,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		delay *= 2
		if dbCfg.RetryMaxDelay > 0 && delay > dbCfg.RetryMaxDelay {
			delay = dbCfg.RetryMaxDelay
		}
	}

	return nil, lastErr
}

// setupLogger builds the process logger and installs it as the slog
// default. The LevelVar stays adjustable at runtime.
func setupLogger(cfg *config.Config, levelVar *slog.LevelVar) *slog.Logger {
	switch cfg.Observability.LogLevel {
	case "debug":
		levelVar.Set(slog.LevelDebug)
	case "warn", "warning":
		levelVar.Set(slog.LevelWarn)
	case "error":
		levelVar.Set(slog.LevelError)
	default:
		levelVar.Set(slog.LevelInfo)
	}
	if cfg.App.Debug {
		levelVar.Set(slog.LevelDebug)
	}

	opts := &slog.HandlerOptions{Level: levelVar}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "json" {
		// JSON for production log aggregators
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		// Text reads better during development
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}
