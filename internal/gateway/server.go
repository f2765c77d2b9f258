// Package gateway serves read-only controller queries over HTTP.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/appctl/internal/observability"
	"github.com/danmuck/appctl/internal/protocol"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const component = "gateway"

// Controller is the part of the controller client the gateway exposes.
type Controller interface {
	Target() string
	GetAllPublicIPs(ctx context.Context) ([]string, error)
	IsDoneInitializing(ctx context.Context) (bool, error)
	PrimaryDBIsUp(ctx context.Context) (bool, error)
	GetProperty(ctx context.Context, propertyRegex string) (map[string]string, error)
	GetAppUploadStatus(ctx context.Context, reservationID string) (string, error)
	GetClusterStatsJSON(ctx context.Context) (json.RawMessage, error)
	GetNodeStatsJSON(ctx context.Context) (json.RawMessage, error)
	GetInstanceInfo(ctx context.Context) ([]protocol.InstanceInfo, error)
	GetRequestInfo(ctx context.Context, versionKey string) (protocol.RequestInfo, error)
}

type Config struct {
	Addr        string
	CorsOrigins []string
	// RequestTimeout bounds the controller calls behind one HTTP request.
	RequestTimeout time.Duration
	Logger         *zerolog.Logger
}

func DefaultConfig() Config {
	return Config{
		Addr:           "127.0.0.1:9400",
		CorsOrigins:    []string{"http://localhost:3000"},
		RequestTimeout: 30 * time.Second,
	}
}

type Server struct {
	cfg      Config
	ctl      Controller
	router   *gin.Engine
	logger   zerolog.Logger
	appeared time.Time
}

// New builds the HTTP surface over ctl. Calls into ctl are serialized, so a
// single controller client may back the whole server.
func New(cfg Config, ctl Controller) *Server {
	def := DefaultConfig()
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = def.Addr
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	logger = logger.With().Str("component", component).Logger()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(observability.RequestID())
	router.Use(observability.RequestLogger(logger))
	router.Use(observability.RequestMetricsMiddleware(component))
	if len(cfg.CorsOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:  cfg.CorsOrigins,
			AllowMethods:  []string{http.MethodGet},
			AllowHeaders:  []string{"Origin", "Content-Type", observability.RequestIDHeader},
			ExposeHeaders: []string{observability.RequestIDHeader},
			MaxAge:        12 * time.Hour,
		}))
	}

	s := &Server{
		cfg:      cfg,
		ctl:      newSerialController(ctl),
		router:   router,
		logger:   logger,
		appeared: time.Now(),
	}
	observability.RegisterMetrics()
	s.registerRoutes()
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Addr() string {
	return s.cfg.Addr
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.Addr).Str("target", s.ctl.Target()).Msg("gateway listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

// callContext derives the context for controller calls made by one request.
func (s *Server) callContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), s.cfg.RequestTimeout)
}
