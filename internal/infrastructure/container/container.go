package container

import (
	"fmt"

	"github.com/atang/wimf-backend/internal/config"
	httpdelivery "github.com/atang/wimf-backend/internal/delivery/http"
	"github.com/atang/wimf-backend/internal/delivery/http/handler"
	"github.com/atang/wimf-backend/internal/delivery/http/middleware"
	"github.com/atang/wimf-backend/internal/geo"
	"github.com/atang/wimf-backend/internal/infrastructure/database"
	"github.com/atang/wimf-backend/internal/infrastructure/geoip"
	"github.com/atang/wimf-backend/internal/infrastructure/server"
	"github.com/atang/wimf-backend/internal/repository"
	"github.com/atang/wimf-backend/internal/repository/postgres"
	"github.com/atang/wimf-backend/internal/repository/redisrepo"
	"github.com/atang/wimf-backend/internal/usecase/location"
	"github.com/atang/wimf-backend/pkg/logger"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	Log    *logger.Logger
	DB     *sqlx.DB
	Redis  *redis.Client
	Server *server.Server
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config, log *logger.Logger) (*Container, error) {
	// Initialize database
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Redis only backs the presence store; run without it if unreachable.
	var redisClient *redis.Client
	var presenceRepo repository.PresenceRepository
	redisClient, err = database.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Warn("redis unavailable, presence tracking disabled", "error", err)
		redisClient = nil
	} else {
		presenceRepo = redisrepo.NewPresenceRepository(redisClient)
	}

	// GeoIP lookups are optional and degrade to 502 when disabled.
	var geoipClient *geoip.Client
	if cfg.GeoIP.Enabled {
		geoipClient = geoip.NewClient(cfg.GeoIP.BaseURL, cfg.GeoIP.Timeout)
	}

	// Initialize repositories
	locationRepo := postgres.NewLocationRepository(db)
	userRepo := postgres.NewUserRepository(db)

	// Initialize use cases
	locationUseCase := location.NewLocationUseCase(
		locationRepo,
		userRepo,
		presenceRepo,
		geoipClient,
		geo.NewJitterer(),
		cfg.Location,
	)

	// Initialize handlers
	locationHandler := handler.NewLocationHandler(locationUseCase)
	adminHandler := handler.NewAdminHandler(locationUseCase)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret, presenceRepo, log)

	// Initialize router
	router := httpdelivery.NewRouter(
		locationHandler,
		adminHandler,
		authMiddleware,
		log,
		cfg.Server.AllowedOrigins,
	)

	// Setup routes
	ginRouter := router.Setup()

	// Initialize server
	srv := server.NewServer(&cfg.Server, ginRouter, log)

	return &Container{
		Config: cfg,
		Log:    log,
		DB:     db,
		Redis:  redisClient,
		Server: srv,
	}, nil
}

// Close closes all connections
func (c *Container) Close() error {
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Log.Warn("error closing redis", "error", err)
		}
	}

	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}

	return nil
}
