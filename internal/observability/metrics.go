package observability

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/debris-risk/model"
)

// RiskCollector bundles Prometheus metrics for the risk service and provides
// helpers to wire them into gRPC servers, gin routers and HTTP handlers.
type RiskCollector struct {
	gatherer prometheus.Gatherer

	Requests         *prometheus.CounterVec
	RequestDurations *prometheus.HistogramVec

	Assessments *prometheus.CounterVec
	Probability prometheus.Histogram
	Profiles    prometheus.Gauge
}

// NewRiskCollector registers risk-service metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewRiskCollector(reg prometheus.Registerer) (*RiskCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "risk_requests_total",
		Help: "Total number of handled API requests, labeled by service, method, and status code.",
	}, []string{"service", "method", "code"}), "risk_requests_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "risk_request_duration_seconds",
		Help:    "API request latency in seconds.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"service", "method"}), "risk_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	assessments, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "risk_assessments_total",
		Help: "Assessments requested or triggered by a profile change (periodic refreshes excluded), labeled by risk tier, orbital regime and debris environment.",
	}, []string{"tier", "regime", "environment"}), "risk_assessments_total")
	if err != nil {
		return nil, err
	}

	probability, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "risk_probability_percent",
		Help:    "Distribution of computed collision probabilities in percent.",
		Buckets: []float64{0.01, 0.1, 1, 5, 15, 50, 100},
	}), "risk_probability_percent")
	if err != nil {
		return nil, err
	}

	profiles, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "risk_profiles",
		Help: "Current number of satellite profiles in the catalog.",
	}), "risk_profiles")
	if err != nil {
		return nil, err
	}

	return &RiskCollector{
		gatherer:         gatherer,
		Requests:         requests,
		RequestDurations: durations,
		Assessments:      assessments,
		Probability:      probability,
		Profiles:         profiles,
	}, nil
}

// RecordAssessment counts one computed assessment. Non-finite assessments
// are dropped so they cannot poison the histogram sum.
func (c *RiskCollector) RecordAssessment(a model.RiskAssessment) {
	if c == nil || !a.IsFinite() {
		return
	}
	if c.Assessments != nil {
		c.Assessments.WithLabelValues(string(a.Tier), string(a.OrbitalRegime), string(a.DebrisEnvironment)).Inc()
	}
	if c.Probability != nil {
		c.Probability.Observe(a.ProbabilityPercent)
	}
}

// SetProfileCount updates the catalog size gauge.
func (c *RiskCollector) SetProfileCount(n int) {
	if c == nil || c.Profiles == nil {
		return
	}
	c.Profiles.Set(float64(n))
}

// UnaryServerInterceptor records request counts and durations for unary RPCs.
func (c *RiskCollector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		if c == nil {
			return resp, err
		}

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		service, method := SplitMethod(fullMethod)
		c.observe(service, method, status.Code(err).String(), time.Since(start))

		return resp, err
	}
}

// GinMiddleware records request counts and durations for HTTP routes. The
// route template (e.g. /api/v1/profiles/:id) is used as the method label so
// cardinality stays bounded.
func (c *RiskCollector) GinMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		if c == nil {
			return
		}
		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		c.observe("http", ctx.Request.Method+" "+route, strconv.Itoa(ctx.Writer.Status()), time.Since(start))
	}
}

func (c *RiskCollector) observe(service, method, code string, elapsed time.Duration) {
	if c.Requests != nil {
		c.Requests.WithLabelValues(service, method, code).Inc()
	}
	if c.RequestDurations != nil {
		c.RequestDurations.WithLabelValues(service, method).Observe(elapsed.Seconds())
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *RiskCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SplitMethod parses a fully-qualified gRPC method name into service and method
// components. It tolerates empty strings and partial paths, returning
// "unknown"/"unknown" when parsing fails.
func SplitMethod(fullMethod string) (string, string) {
	if fullMethod == "" {
		return "unknown", "unknown"
	}
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 2 {
		return "unknown", "unknown"
	}
	service := parts[len(parts)-2]
	method := parts[len(parts)-1]
	if dot := strings.LastIndex(service, "."); dot >= 0 && dot+1 < len(service) {
		service = service[dot+1:]
	}
	if service == "" {
		service = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	return service, method
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
