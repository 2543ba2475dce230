package setup

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/pointboard/forum/internal/database"
	"github.com/pointboard/forum/internal/redis"
	"github.com/pointboard/forum/internal/session"
	"github.com/pointboard/forum/internal/setup/config"
	"github.com/pointboard/forum/internal/setup/telemetry"
	"go.uber.org/zap"
)

// ErrPendingMigrations is returned when the API starts against an outdated schema.
var ErrPendingMigrations = errors.New("database migrations are pending, run `forumctl migrate` first")

// App bundles all core dependencies and services needed by the application.
// Each field represents a major subsystem that needs initialization and cleanup.
type App struct {
	Config       *config.Config     // Application configuration
	ConfigDir    string             // Directory the configuration was loaded from
	Logger       *zap.Logger        // Main application logger
	DBLogger     *zap.Logger        // Database-specific logger
	DB           database.Client    // Database connection pool
	RedisManager *redis.Manager     // Redis connection manager
	LogManager   *telemetry.Manager // Log management system
	tracing      bool               // Whether spans are exported
	debugServer  *http.Server       // Profiling endpoint, nil when disabled
}

// InitializeApp bootstraps all application dependencies in the correct order,
// ensuring each component has its required dependencies available.
func InitializeApp(ctx context.Context, serviceType telemetry.ServiceType, logDir string) (*App, error) {
	cfg, configDir, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	// Tracing first so the loggers can forward errors as spans
	tracing := telemetry.ConfigureTracing(&cfg.Common.Telemetry, serviceType)

	logManager := telemetry.NewManager(serviceType, logDir, &cfg.Common.Debug, tracing, serviceType == telemetry.ServiceCLI)

	logger, dbLogger, err := logManager.GetLoggers()
	if err != nil {
		return nil, err
	}

	// Redis clients are created lazily on first use
	redisManager := redis.NewManager(&cfg.Common.Redis, logger)

	db, err := database.NewConnection(ctx, &cfg.Common.PostgreSQL, dbLogger, false)
	if err != nil {
		return nil, err
	}

	if serviceType == telemetry.ServiceAPI {
		if err := checkMigrations(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
	}

	var debugSrv *http.Server
	if cfg.Common.Debug.EnablePprof {
		// A busy port should not keep the forum from starting
		debugSrv, err = serveDebug(cfg.Common.Debug.PprofPort, logger)
		if err != nil {
			logger.Error("Failed to start profiling endpoint", zap.Error(err))
		}
	}

	return &App{
		Config:       cfg,
		ConfigDir:    configDir,
		Logger:       logger,
		DBLogger:     dbLogger,
		DB:           db,
		RedisManager: redisManager,
		LogManager:   logManager,
		tracing:      tracing,
		debugServer:  debugSrv,
	}, nil
}

// SessionStore connects to the session database and returns the session store.
func (s *App) SessionStore() (*session.Store, error) {
	client, err := s.RedisManager.GetClient(redis.SessionDBIndex)
	if err != nil {
		return nil, err
	}

	ttl := time.Duration(s.Config.API.Session.TTLHours) * time.Hour
	return session.NewStore(client, ttl, s.Logger), nil
}

// Cleanup ensures graceful shutdown of all components in reverse initialization order.
// Logs but does not fail on cleanup errors to ensure all components get cleanup attempts.
func (s *App) Cleanup(ctx context.Context) {
	if s.debugServer != nil {
		if err := s.debugServer.Shutdown(ctx); err != nil {
			s.Logger.Error("Failed to shut down profiling endpoint", zap.Error(err))
		}
	}

	if err := s.DB.Close(); err != nil {
		log.Printf("Failed to close database connection: %v", err)
	}

	// Close Redis connections last as other components might need it during cleanup
	s.RedisManager.Close()

	if s.tracing {
		if err := telemetry.ShutdownTracing(ctx); err != nil {
			log.Printf("Failed to flush traces: %v", err)
		}
	}

	// Sync buffered logs before exit
	if err := s.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	if err := s.DBLogger.Sync(); err != nil {
		log.Printf("Failed to sync DB logger: %v", err)
	}
}

// checkMigrations fails when the schema is behind the compiled migrations.
func checkMigrations(ctx context.Context, db database.Client) error {
	migrator := db.Migrator()

	if err := migrator.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}

	ms, err := migrator.MigrationsWithStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to check migration status: %w", err)
	}

	if unapplied := ms.Unapplied(); len(unapplied) > 0 {
		return fmt.Errorf("%w: %s", ErrPendingMigrations, unapplied.String())
	}

	return nil
}
