package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camwatch/backend/internal/application"
	"github.com/camwatch/backend/internal/domain"
	"github.com/camwatch/backend/internal/infrastructure/edgefunc"
	"github.com/camwatch/backend/internal/infrastructure/realtime"
	"github.com/camwatch/backend/internal/infrastructure/repository/postgres"
	"github.com/camwatch/backend/internal/interfaces/http"
	"github.com/camwatch/backend/internal/interfaces/http/handlers"
	"github.com/camwatch/backend/internal/interfaces/http/middleware"
	"github.com/camwatch/backend/internal/pkg/config"
	"github.com/camwatch/backend/internal/pkg/logger"
	"github.com/camwatch/backend/internal/pkg/metrics"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Init("info", true)
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	logger.Init(cfg.Log.Level, cfg.Log.Pretty)
	log := logger.Get()

	log.Info().Msg("Starting CamWatch Backend...")

	// Connect to PostgreSQL
	dbPool, err := connectDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	log.Info().Msg("Connected to PostgreSQL")

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	if err := postgres.Migrate(migrateCtx, dbPool); err != nil {
		cancelMigrate()
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}
	cancelMigrate()
	log.Info().Msg("Database migrations completed")

	// Redis carries role changes between sessions; without it sessions poll
	var broadcaster domain.RoleBroadcaster
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = connectRedis(cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr()).Msg("Redis unavailable, role changes will propagate by polling")
		} else {
			defer redisClient.Close()
			broadcaster = realtime.NewRoleBroadcaster(redisClient, cfg.Redis.ChannelPrefix)
			log.Info().Str("addr", cfg.Redis.Addr()).Msg("Connected to Redis")
		}
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	breakGlass := domain.NewBreakGlass(cfg.Roles.BreakGlassEmails)
	pinned, err := domain.NewPinnedRoles(cfg.Roles.PinnedMap())
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid pinned account configuration")
	}

	clock := clockwork.NewRealClock()

	// Initialize repositories
	userRepo := postgres.NewUserRepository(dbPool)
	roleRepo := postgres.NewRoleRepository(dbPool)
	cameraRepo := postgres.NewCameraRepository(dbPool)
	grantRepo := postgres.NewGrantRepository(dbPool)
	auditRepo := postgres.NewAuditRepository(dbPool)
	settingsRepo := postgres.NewSettingsRepository(dbPool)

	// Role core
	roleQueries := application.NewRoleQueries(roleRepo, clock)
	roleCache, err := application.NewRoleCache(cfg.Roles.CacheTTL, clock, m)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create role cache")
	}
	roleSource := application.NewRoleSource(roleCache, roleQueries, clock, cfg.Roles.MinFetchInterval)
	notifier := application.NewRoleNotifier(broadcaster, roleQueries, clock)
	roleFix := application.NewRoleFixService(userRepo, roleQueries, roleCache, notifier, pinned, breakGlass)

	// Privileged checks go through the function endpoint when one is configured
	var superadmin domain.SuperadminChecker = roleFix
	strategies := []application.RoleUpdateStrategy{
		application.NewDirectWriteStrategy(roleQueries),
		application.NewUpsertStrategy(roleQueries),
	}
	if cfg.Functions.BaseURL != "" {
		functions := edgefunc.NewClient(cfg.Functions.BaseURL, cfg.Functions.Timeout)
		superadmin = functions
		strategies = append(strategies, application.NewEdgeFunctionStrategy(functions))
	}

	policy := application.FailClosed
	if cfg.Permissions.FailOpen {
		policy = application.FailOpen
	}
	resolver, err := application.NewPermissionResolver(application.PermissionResolverConfig{
		Roles:      roleSource,
		Superadmin: superadmin,
		BreakGlass: breakGlass,
		Policy:     policy,
		CacheTTL:   cfg.Permissions.CacheTTL,
		Clock:      clock,
		Metrics:    m,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create permission resolver")
	}

	hub := application.NewSubscriptionHub(roleSource, roleCache, broadcaster, clock, cfg.Roles.PollInterval, m)
	roleService := application.NewRoleService(application.RoleServiceConfig{
		Strategies:  strategies,
		Cache:       roleCache,
		Notifier:    notifier,
		Permissions: resolver,
		Refresher:   hub,
		BreakGlass:  breakGlass,
		Timeout:     cfg.Roles.UpdateTimeout,
		Clock:       clock,
		Metrics:     m,
	})

	// Initialize services
	authService := application.NewAuthService(
		userRepo,
		roleQueries,
		roleSource,
		cfg.JWT.Secret,
		cfg.JWT.ExpirationHours,
		cfg.JWT.RefreshHours,
	)
	cameraService := application.NewCameraService(cameraRepo)
	accessService := application.NewCameraAccessService(cameraRepo, grantRepo, userRepo, roleQueries, auditRepo, breakGlass, m)
	userAdmin := application.NewUserAdminService(userRepo, roleQueries, roleService, grantRepo, roleSource, auditRepo, breakGlass)
	settingsService := application.NewSettingsService(settingsRepo)

	// Initialize handlers
	checks := map[string]handlers.HealthCheck{
		"postgres": dbPool.Ping,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	h := http.Handlers{
		Auth:      handlers.NewAuthHandler(authService, resolver),
		Role:      handlers.NewRoleHandler(roleService, roleSource, hub),
		Functions: handlers.NewFunctionsHandler(roleFix, userAdmin),
		Camera:    handlers.NewCameraHandler(cameraService, accessService),
		Settings:  handlers.NewSettingsHandler(settingsService),
		Logs:      handlers.NewLogsHandler(auditRepo),
		Health:    handlers.NewHealthHandler(checks),
	}

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(authService, roleSource, resolver)

	router := http.NewRouter(h, authMiddleware, registry, &cfg.Server)
	router.SetupRoutes()

	// Initialize startup tasks
	log.Info().Msg("Running startup initialization tasks...")

	createDefaultAdmin(authService, cfg.Admin)
	applyPinnedRoles(roleFix)

	// Start server in goroutine
	serverAddr := cfg.Server.Addr()
	go func() {
		log.Info().Str("address", serverAddr).Msg("Starting HTTP server")
		if err := router.Start(serverAddr); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	hub.CloseAll()
	if err := router.Shutdown(); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
	}

	log.Info().Msg("Server stopped")
}

func connectDB(cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return pool, nil
}

func connectRedis(cfg config.RedisConfig) (*redis.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return realtime.Connect(ctx, realtime.Config{
		URL:      cfg.URL(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func createDefaultAdmin(authService *application.AuthService, cfg config.AdminConfig) {
	log := logger.Get()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := authService.CreateUser(ctx, cfg.Email, cfg.Password, cfg.Name, domain.RoleSuperadmin)
	if err != nil {
		// User might already exist
		log.Debug().Err(err).Msg("Default admin user creation skipped (may already exist)")
	} else {
		log.Info().Str("email", cfg.Email).Msg("Created default admin user")
	}
}

func applyPinnedRoles(roleFix *application.RoleFixService) {
	log := logger.Get()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	fixed, err := roleFix.ApplyPinnedRoles(ctx)
	if err != nil {
		log.Error().Err(err).Int("fixed", fixed).Msg("Failed to apply pinned roles")
		return
	}
	if fixed > 0 {
		log.Info().Int("fixed", fixed).Msg("Pinned roles applied")
	}
}
