package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/signalsfoundry/debris-risk/internal/logging"
	"github.com/signalsfoundry/debris-risk/internal/observability"
	"github.com/signalsfoundry/debris-risk/internal/state"
)

// RequestIDHeader carries the request ID on HTTP requests and responses.
const RequestIDHeader = "X-Request-ID"

// RouterConfig wires a router to its dependencies. Metrics and tracing are
// optional.
type RouterConfig struct {
	State   *state.AssessmentState
	Logger  logging.Logger
	Metrics *observability.RiskCollector
	// TracingServiceName enables otelgin spans when non-empty.
	TracingServiceName string
}

// NewRouter builds the gin engine serving the REST API, /healthz and
// /metrics.
func NewRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = logging.Noop()
	}
	h := NewHandlers(cfg.State, log)

	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.TracingServiceName != "" {
		r.Use(observability.GinMiddleware(cfg.TracingServiceName))
	}
	r.Use(RequestIDMiddleware(log))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.GinMiddleware())
	}

	r.GET("/healthz", h.HandleHealth)
	r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))

	v1 := r.Group("/api/v1")
	{
		v1.POST("/assess", h.HandleAssess)
		v1.GET("/defaults", h.HandleDefaults)
		v1.POST("/orbit", h.HandleOrbit)

		v1.GET("/profiles", h.HandleListProfiles)
		v1.POST("/profiles", h.HandleCreateProfile)
		v1.DELETE("/profiles/:id", h.HandleDeleteProfile)
		v1.GET("/profiles/:id/assessment", h.HandleGetAssessment)
		v1.PUT("/profiles/:id/parameters", h.HandleUpdateParameters)
	}
	return r
}

// RequestIDMiddleware adopts the caller's X-Request-ID (or generates one),
// echoes it on the response and attaches a request-scoped logger.
func RequestIDMiddleware(base logging.Logger) gin.HandlerFunc {
	if base == nil {
		base = logging.Noop()
	}
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if incoming := c.GetHeader(RequestIDHeader); incoming != "" {
			ctx = logging.ContextWithRequestID(ctx, incoming)
		}
		ctx, reqLog := logging.WithRequestLogger(ctx, base.With(
			logging.String("method", c.Request.Method),
			logging.String("path", c.Request.URL.Path),
		))
		ctx = logging.ContextWithLogger(ctx, reqLog)

		c.Header(RequestIDHeader, logging.RequestIDFromContext(ctx))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
