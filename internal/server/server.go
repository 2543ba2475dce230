package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/gzhttp"
	"github.com/pointboard/forum/internal/api/middleware/auth"
	"github.com/pointboard/forum/internal/api/middleware/ip"
	"github.com/pointboard/forum/internal/api/middleware/ratelimit"
	"github.com/pointboard/forum/internal/database"
	"github.com/pointboard/forum/internal/graphql"
	"github.com/pointboard/forum/internal/setup/config"
	"github.com/redis/rueidis"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

// healthTimeout bounds each dependency check of the health endpoint.
const healthTimeout = 3 * time.Second

// Pinger is a dependency checked by the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies are the services the HTTP server is built on.
type Dependencies struct {
	DB       database.Client
	Sessions auth.SessionResolver
	Redis    Pinger
	// Blocks shares rate limit blocks between instances. May be nil.
	Blocks rueidis.Client
}

// Server implements the HTTP API.
type Server struct {
	handler     http.Handler
	rateLimiter *ratelimit.Middleware
	deps        Dependencies
	logger      *zap.Logger
}

// New creates a new HTTP server handler.
func New(deps Dependencies, logger *zap.Logger, config *config.APIConfig) (*Server, error) {
	logger = logger.Named("server")

	gqlHandler, err := graphql.NewHandler(deps.DB, logger, config.Playground)
	if err != nil {
		return nil, err
	}

	server := &Server{
		rateLimiter: ratelimit.New(&config.RateLimit, deps.Blocks, logger),
		deps:        deps,
		logger:      logger,
	}

	ipMiddleware := ip.New(logger, &config.IP)
	authMiddleware := auth.New(deps.Sessions, config.Session.CookieName, logger)

	router := bunrouter.New()

	api := router.Use(
		ipMiddleware.Middleware,
		server.rateLimiter.Middleware,
		authMiddleware.Middleware,
	)
	api.GET("/graphql", bunrouter.HTTPHandler(gqlHandler))
	api.POST("/graphql", bunrouter.HTTPHandler(gqlHandler))

	router.GET("/healthz", server.health)

	server.handler = gzhttp.GzipHandler(router)

	return server, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Close releases background resources.
func (s *Server) Close() {
	s.rateLimiter.Close()
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Redis    string `json:"redis"`
}

// health reports whether the database and Redis answer.
func (s *Server) health(w http.ResponseWriter, req bunrouter.Request) error {
	resp := healthResponse{
		Status:   "ok",
		Database: s.check(req.Context(), "database", s.deps.DB),
		Redis:    s.check(req.Context(), "redis", s.deps.Redis),
	}

	code := http.StatusOK
	if resp.Database != "ok" || resp.Redis != "ok" {
		resp.Status = "unavailable"
		code = http.StatusServiceUnavailable
	}

	payload, err := sonic.Marshal(&resp)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, err = w.Write(payload)
	return err
}

func (s *Server) check(ctx context.Context, name string, dep Pinger) string {
	if dep == nil {
		return "ok"
	}

	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	if err := dep.Ping(ctx); err != nil {
		s.logger.Warn("Health check failed", zap.String("dependency", name), zap.Error(err))
		return "down"
	}
	return "ok"
}
