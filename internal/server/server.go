package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"printshop/internal/config"
	"printshop/internal/database"
	"printshop/internal/metrics"
	custommiddleware "printshop/internal/middleware"
	"printshop/internal/repository"
	"printshop/internal/semantic"
	"printshop/internal/service"
	"printshop/internal/storage"
	"printshop/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config  *config.Config
	logger  *zap.Logger
	db      database.Service
	redis   *redis.Client
	metrics *metrics.Metrics
}

// NewServer wires repositories, services and handlers into one router.
// redisClient may be nil, in which case requests are not rate limited.
func NewServer(cfg *config.Config, logger *zap.Logger, db database.Service, redisClient *redis.Client) *Server {
	m := metrics.New()

	// Create router
	router := chi.NewRouter()

	// Add basic middleware
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(custommiddleware.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.IsDevelopment()))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(m.Middleware)
	if redisClient != nil && cfg.RateLimit.Enabled {
		router.Use(custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.Requests,
			Window:            cfg.RateLimit.Window,
			KeyPrefix:         "ratelimit",
		}, logger))
	}

	// Health check endpoint
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := db.Health()
		status := http.StatusOK
		if health["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		custommiddleware.RespondWithJSON(w, status, health)
	})
	router.Method(http.MethodGet, "/metrics", m.Handler())

	// Initialize repositories
	userRepo := repository.NewUserRepository(db.DB())
	refreshTokenRepo := repository.NewRefreshTokenRepository(db.DB())
	productRepo := repository.NewProductRepository(db.DB())
	categoryRepo := repository.NewCategoryRepository(db.DB())

	// Language model adapters; without them search is literal only
	var (
		ranker    semantic.Ranker
		describer semantic.Describer
	)
	if cfg.AI.Enabled && cfg.AI.APIKey != "" {
		client := semantic.NewChatClient(cfg.AI, logger)
		ranker = semantic.NewRanker(client)
		describer = semantic.NewDescriber(client)
	} else {
		logger.Warn("Language model disabled, search falls back to literal matching")
	}

	images := storage.NewLocalImageStore(afero.NewOsFs(), cfg.Uploads.Dir, cfg.Uploads.URLPrefix)

	// Initialize services
	userService := service.NewUserService(
		userRepo,
		refreshTokenRepo,
		cfg.JWT.Secret,
		time.Duration(cfg.JWT.AccessExpiry)*time.Minute,
		time.Duration(cfg.JWT.RefreshExpiry)*24*time.Hour,
	)
	catalogService := service.NewCatalogService(productRepo, categoryRepo, ranker, cfg.AI.Timeout, m, logger)
	productService := service.NewProductService(productRepo, categoryRepo, images, describer, logger)
	categoryService := service.NewCategoryService(categoryRepo, logger)

	// Initialize handlers
	userHandler := transport.NewUserHandler(userService, logger)
	productHandler := transport.NewProductHandler(catalogService, productService, logger)
	categoryHandler := transport.NewCategoryHandler(catalogService, categoryService, logger)

	// Create auth middleware
	authMiddleware := custommiddleware.AuthMiddleware(userService, logger)
	adminMiddleware := custommiddleware.RequireAdmin(logger)

	// Register routes
	userHandler.RegisterRoutes(router, authMiddleware)
	productHandler.RegisterRoutes(router, authMiddleware, adminMiddleware)
	categoryHandler.RegisterRoutes(router, authMiddleware, adminMiddleware)

	uploads := "/" + strings.Trim(cfg.Uploads.URLPrefix, "/")
	router.Handle(uploads+"/*", http.StripPrefix(uploads, http.FileServer(afero.NewHttpFs(images.Fs()))))

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config:  cfg,
		logger:  logger,
		db:      db,
		redis:   redisClient,
		metrics: m,
	}

	return server
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	// Close database connection
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
