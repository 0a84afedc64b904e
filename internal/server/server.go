package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/clickrush/apiserver/config"
	"github.com/clickrush/apiserver/internal/auth"
	"github.com/clickrush/apiserver/internal/db"
	"github.com/clickrush/apiserver/internal/handlers"
	"github.com/clickrush/apiserver/internal/logging"
	"github.com/clickrush/apiserver/internal/mq"
	"github.com/clickrush/apiserver/internal/ratelimit"
	"github.com/clickrush/apiserver/internal/services"
	"github.com/clickrush/apiserver/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// requestTimeout must stay below writeTimeout.
const (
	requestTimeout = 10 * time.Second
	readTimeout    = 15 * time.Second
	writeTimeout   = 15 * time.Second
	idleTimeout    = 60 * time.Second
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	redis      *redis.Client
	mq         *mq.MQ
	logger     zerolog.Logger
}

// New connects to the configured backends and builds the router.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Server, error) {
	if cfg.JWT.Secret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	for _, warning := range cfg.Warnings {
		logger.Warn().Msg(warning)
	}

	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s := &Server{db: dbConn, logger: logger}

	userRepo := store.NewUserRepository(dbConn)
	scoreRepo := store.NewScoreRepository(dbConn)

	limiter, err := s.newLimiter(ctx, cfg, scoreRepo)
	if err != nil {
		s.close()
		return nil, err
	}

	var opts []services.ScoreServiceOption
	broker, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("open message queue: %w", err)
	}
	if broker != nil {
		s.mq = broker
		opts = append(opts, services.WithPublisher(mq.NewScorePublisher(broker, cfg.MQ.ScoreEventChannel)))
		logger.Info().Str("backend", cfg.MQ.Backend).Str("channel", cfg.MQ.ScoreEventChannel).Msg("score events enabled")
	}

	tokens := auth.NewIssuer(cfg.JWT.Secret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
	userService := services.NewUserService(userRepo)
	authService := services.NewAuthService(userService, tokens)
	scoreService := services.NewScoreService(scoreRepo, userService, limiter, logger, opts...)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		logging.Middleware(logger),
		middleware.Timeout(requestTimeout),
	)
	router.Get("/", handlers.Index)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authService, userService, tokens)
	})
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, userService, tokens)
	})
	router.Route("/scores", func(r chi.Router) {
		handlers.ScoreRouter(r, scoreService, userService, tokens)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.router = router
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
	return s, nil
}

// newLimiter picks the submission limiter backend.
func (s *Server) newLimiter(ctx context.Context, cfg config.Config, counter ratelimit.Counter) (ratelimit.Limiter, error) {
	switch cfg.RateLimit.Backend {
	case "", "db":
		return ratelimit.NewStoreLimiter(counter, cfg.RateLimit), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		s.redis = client
		s.logger.Info().Str("addr", cfg.Redis.Addr).Msg("using redis rate limiter")
		return ratelimit.NewRedisLimiter(client, cfg.RateLimit), nil
	default:
		return nil, fmt.Errorf("unknown rate limit backend %q", cfg.RateLimit.Backend)
	}
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("server listening")
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and releases the backends.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.close()
	return err
}

func (s *Server) close() {
	if s.mq != nil {
		if err := s.mq.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("close message queue")
		}
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}
