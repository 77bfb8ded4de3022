// Package server exposes moderation review sessions over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"modqueue/internal/cache"
	"modqueue/internal/config"
	"modqueue/internal/database"
	"modqueue/internal/featureflags"
	"modqueue/internal/middleware"
	"modqueue/internal/notifications"
	"modqueue/internal/repository"
	"modqueue/internal/seed"
	"modqueue/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	promMiddleware *fiberprometheus.FiberPrometheus
	featureFlags   *featureflags.Manager
	notifier       *notifications.Notifier
	hub            *notifications.Hub
	stopWiring     context.CancelFunc
	reportedRepo   repository.ReportedPostRepository
	sessions       *service.SessionRegistry
	loader         *service.PostLoader
	undoExpiry     *service.UndoExpiry
	validate       *validator.Validate
}

// NewServer connects to the database and Redis described by cfg and builds the server.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	redisClient := cache.InitRedis(cfg.RedisURL)

	srv, err := NewServerWithDeps(cfg, db, redisClient)
	if err != nil {
		return nil, err
	}

	if cfg.SeedDemoPostsCount > 0 {
		if err := srv.seedDemoPosts(context.Background(), cfg.SeedDemoPostsCount); err != nil {
			return nil, err
		}
	}
	return srv, nil
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// db and redisClient may be nil; sessions then cannot load from the database
// and events are not published.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("modqueue-api"),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		hub:            notifications.NewHub(),
		validate:       validator.New(),
	}

	var publisher service.EventPublisher
	if redisClient != nil {
		s.notifier = notifications.NewNotifier(redisClient)
		publisher = s.notifier
	}

	sessions, err := service.NewSessionRegistry(service.RegistryOptions{
		MaxSessions: cfg.MaxSessions,
		Flags:       s.featureFlags,
		UndoWindow:  cfg.UndoWindow(),
		Publisher:   publisher,
		Logger:      middleware.Logger,
	})
	if err != nil {
		return nil, err
	}
	s.sessions = sessions

	if db != nil {
		s.reportedRepo = repository.NewReportedPostRepository(db)
		s.loader = service.NewPostLoader(s.reportedRepo, redisClient, cfg.PostsCacheTTL(), cfg.LoadLimit)
	}

	s.undoExpiry, err = service.NewUndoExpiry(sessions, cfg.UndoSweepSpec, cfg.UndoWindow())
	if err != nil {
		return nil, err
	}

	return s, nil
}

// Start launches background jobs and, with Redis available, the session event
// fan-out to websocket clients.
func (s *Server) Start() {
	s.undoExpiry.Start()
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.stopWiring = cancel
	if err := s.hub.StartWiring(ctx, s.notifier); err != nil {
		middleware.Logger.Warn("session event streams disabled", slog.String("error", err.Error()))
	}
}

// Shutdown stops background jobs and closes connections.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error

	select {
	case <-s.undoExpiry.Stop().Done():
	case <-ctx.Done():
		errs = append(errs, ctx.Err())
	}

	if s.stopWiring != nil {
		s.stopWiring()
	}
	if err := s.hub.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close event hub: %w", err))
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if s.db != nil {
		if sqlDB, err := s.db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close database: %w", err))
			}
		}
	}
	return errors.Join(errs...)
}

func (s *Server) seedDemoPosts(ctx context.Context, n int) error {
	records, err := seed.ReportedPosts(ctx, s.reportedRepo, n, seed.Options{})
	if err != nil {
		return err
	}
	if s.loader != nil {
		_ = s.loader.Invalidate(ctx)
	}
	middleware.Logger.Info("seeded demo reported posts", slog.Int("count", len(records)))
	return nil
}

// NewApp builds a fiber app with the server's middleware and routes.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "modqueue",
		BodyLimit: 4 * 1024 * 1024,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS before the limiter so rejected requests still carry CORS headers
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		MaxAge:       86400,
	}))

	// Reviewers act from the keyboard, so the budget is generous
	app.Use(limiter.New(limiter.Config{
		Max:        600,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Get("/feature-flags", s.GetFeatureFlags)

	sessions := api.Group("/sessions")
	sessions.Post("/", s.CreateSession)
	sessions.Get("/:sid", s.GetSession)
	sessions.Delete("/:sid", s.DeleteSession)
	sessions.Get("/:sid/events", s.RequireEventsUpgrade, s.SessionEvents())

	// Specific /:sid/posts/:id/... routes before the generic list
	sessions.Get("/:sid/posts/:id/preview", s.PreviewPost)
	sessions.Post("/:sid/posts/:id/transition", s.TransitionPost)
	sessions.Get("/:sid/posts", s.GetPosts)
	sessions.Put("/:sid/posts", s.LoadPosts)
	sessions.Get("/:sid/counts", s.GetCounts)
	sessions.Put("/:sid/filter", s.SetFilter)
	sessions.Post("/:sid/batch",
		middleware.RateLimit(s.redis, "batch", s.config.BatchRateLimit, time.Minute, middleware.SessionOrIP),
		s.TransitionBatch)

	// /selection/all must be registered before /selection/:id/toggle
	sessions.Get("/:sid/selection", s.GetSelection)
	sessions.Post("/:sid/selection/all", s.SelectAll)
	sessions.Post("/:sid/selection/:id/toggle", s.ToggleSelection)
	sessions.Delete("/:sid/selection", s.ClearSelection)

	sessions.Post("/:sid/undo", s.RevertLastAction)
	sessions.Delete("/:sid/undo", s.ClearPendingAction)
}

// LivenessCheck reports that the process is up.
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports database and Redis health. Redis is optional: the
// service degrades to uncached loads without events when it is unavailable.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if s.db == nil {
		dbStatus = "unavailable"
	} else if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis == nil {
		redisStatus = "unavailable"
	} else if err := s.redis.Ping(ctx).Err(); err != nil {
		redisStatus = "unhealthy"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	} else if redisStatus != "healthy" {
		overallStatus = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"sessions": s.sessions.Len(),
		"time":     time.Now(),
	})
}
