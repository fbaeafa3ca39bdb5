package server

import (
	"net/http"

	"backpropd/internal/config"
	"backpropd/internal/geo"
	"backpropd/internal/handler"
	"backpropd/internal/logging"
	"backpropd/internal/metrics"
	"backpropd/internal/middleware"
	"backpropd/internal/ratelimit"
)

// Config carries the assembled dependencies into the pipeline.
type Config struct {
	Version   string
	Security  config.SecurityConfig
	RateLimit *ratelimit.Store
	RateStats ratelimit.Recorder
	Fields    []config.FieldRule
	MaxBody   int64
	Logger    *logging.Logger
	Metrics   *metrics.Metrics
	Geo       *geo.Resolver
}

// Server is the shared request-handling path: access log and recover
// wrappers around the declared stage pipeline around the route dispatcher.
// One instance serves both transports.
type Server struct {
	pipeline *middleware.Pipeline
	handler  http.Handler
}

// New assembles the pipeline. The stage order is the binding contract:
// header injection, then origin screening, then rate accounting, then
// validation, then dispatch.
func New(cfg Config) *Server {
	fields := make([]middleware.FieldRule, 0, len(cfg.Fields))
	for _, f := range cfg.Fields {
		fields = append(fields, middleware.FieldRule{
			Name:      f.Name,
			MinLength: f.MinLength,
			MaxLength: f.MaxLength,
			Allowed:   f.Allowed,
		})
	}

	pipeline := middleware.NewPipeline(
		middleware.Stage{
			Name: middleware.StageSecurityHeaders,
			Wrap: middleware.SecurityHeaders(),
		},
		middleware.Stage{
			Name: middleware.StageCORS,
			Wrap: middleware.CORS(middleware.CORSConfig{
				AllowedOrigins: cfg.Security.CORS.AllowedOrigins,
				AllowedMethods: cfg.Security.CORS.AllowedMethods,
				AllowedHeaders: cfg.Security.CORS.AllowedHeaders,
			}),
		},
		middleware.Stage{
			Name: middleware.StageRateLimit,
			Wrap: middleware.RateLimit(middleware.RateLimitOptions{
				Store: cfg.RateLimit,
				Stats: cfg.RateStats,
			}),
		},
		middleware.Stage{
			Name: middleware.StageValidation,
			Wrap: middleware.ValidateInput(middleware.ValidationOptions{
				MaxBodyBytes: cfg.MaxBody,
				Fields:       fields,
			}),
		},
	)

	endpoint := handler.New(handler.Config{
		Version: cfg.Version,
		Security: handler.SecurityInfo{
			Headers:    true,
			CORS:       true,
			RateLimit:  true,
			Validation: true,
		},
		Metrics: cfg.Metrics,
	})

	h := pipeline.Handler(endpoint)
	h = middleware.Recover(cfg.Logger)(h)
	h = middleware.AccessLog(cfg.Logger, cfg.Metrics, cfg.Geo)(h)

	return &Server{pipeline: pipeline, handler: h}
}

// StageNames returns the declared pipeline order.
func (s *Server) StageNames() []string {
	return s.pipeline.Names()
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
