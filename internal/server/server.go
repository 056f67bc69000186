package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"storefront/internal/backend"
	"storefront/internal/config"
	"storefront/internal/database"
	custommiddleware "storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"
	"storefront/internal/session"
	"storefront/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// sweepInterval is how often idle sessions are dropped from memory
const sweepInterval = time.Minute

type Server struct {
	*http.Server
	config   *config.Config
	logger   *zap.Logger
	db       *sql.DB
	redis    *redis.Client
	sessions *service.SessionManager
	stop     context.CancelFunc
}

// NewServer wires repositories, services and handlers. db and rdb are
// optional: without a database migrations are not journaled, without Redis
// session state is kept in memory and requests are not rate limited.
func NewServer(cfg *config.Config, logger *zap.Logger, db *sql.DB, rdb *redis.Client) (*Server, error) {
	if cfg.Session.Secret == "" {
		return nil, errors.New("SESSION_SECRET is required")
	}

	client, err := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}

	// Create router
	router := chi.NewRouter()
	for _, mw := range custommiddleware.DefaultMiddlewareStack() {
		router.Use(mw)
	}
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.Server.IsDevelopment()))

	// Initialize repositories
	productRepo := repository.NewProductRepository(client)
	cartRepo := repository.NewCartRepository(client)
	orderRepo := repository.NewOrderRepository(client)

	journal := repository.NewNopMigrationJournal()
	if db != nil {
		journal = repository.NewMigrationJournal(db)
	}

	var state session.Store
	if rdb != nil {
		state = session.NewRedisStore(rdb, cfg.Session.TTL)
	} else {
		state = session.NewMemoryStore()
	}

	// Initialize services
	catalogService := service.NewCatalogService(productRepo, state, logger)
	cartService := service.NewCartService(cartRepo, catalogService, logger)
	migrationService := service.NewMigrationService(cartRepo, state, journal, logger)
	orderService := service.NewOrderService(orderRepo, cartService, logger)
	sessions := service.NewSessionManager(
		state,
		catalogService,
		cartService,
		migrationService,
		cfg.Session.Secret,
		cfg.Session.TTL,
		cfg.Session.AdminUserIDs,
		logger,
	)

	// Session-scoped routes are rate limited per session
	sessionMiddleware := custommiddleware.SessionMiddleware(cfg.Session.Secret, logger)
	if rdb != nil && cfg.RateLimit.Requests > 0 {
		sessionMiddleware = chainMiddleware(sessionMiddleware, custommiddleware.RateLimitMiddleware(rdb, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.Requests,
			Window:            cfg.RateLimit.Window,
			KeyPrefix:         "storefront:ratelimit",
		}, logger))
	}
	adminMiddleware := custommiddleware.RequireAdmin(logger)

	// Register routes
	transport.NewSessionHandler(sessions, logger).RegisterRoutes(router, sessionMiddleware)
	transport.NewCatalogHandler(sessions, catalogService, logger).RegisterRoutes(router, sessionMiddleware, adminMiddleware)
	transport.NewCartHandler(sessions, cartService, logger).RegisterRoutes(router, sessionMiddleware)
	transport.NewOrderHandler(sessions, orderService, migrationService, logger).RegisterRoutes(router, sessionMiddleware, adminMiddleware)

	ctx, stop := context.WithCancel(context.Background())
	go sessions.Run(ctx, sweepInterval)

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config:   cfg,
		logger:   logger,
		db:       db,
		redis:    rdb,
		sessions: sessions,
		stop:     stop,
	}

	// Health check endpoint
	router.Get("/health", server.health)

	return server, nil
}

func chainMiddleware(outer, inner func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return outer(inner(next))
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]interface{}{
		"status":   "ok",
		"sessions": s.sessions.Len(),
	}

	if s.db != nil {
		dbHealth := database.Health(r.Context(), s.db)
		body["database"] = dbHealth
		if dbHealth["status"] != "up" {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}

	if s.redis != nil {
		if err := s.redis.Ping(r.Context()).Err(); err != nil {
			body["redis"] = map[string]string{"status": "down", "error": err.Error()}
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		} else {
			body["redis"] = map[string]string{"status": "up"}
		}
	}

	custommiddleware.RespondWithJSON(w, status, body)
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")
	s.stop()

	// Close database connection
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close Redis connection", zap.Error(err))
		}
	}

	_ = s.logger.Sync()
	return nil
}
