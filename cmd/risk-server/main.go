package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/signalsfoundry/debris-risk/internal/config"
	"github.com/signalsfoundry/debris-risk/internal/httpapi"
	"github.com/signalsfoundry/debris-risk/internal/logging"
	"github.com/signalsfoundry/debris-risk/internal/observability"
	"github.com/signalsfoundry/debris-risk/internal/riskapi"
	"github.com/signalsfoundry/debris-risk/internal/state"
	"github.com/signalsfoundry/debris-risk/kb"
	"github.com/signalsfoundry/debris-risk/timectrl"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML or TOML config file")
	grpcAddr := flag.String("grpc-addr", "", "TCP address the gRPC server listens on (overrides config)")
	httpAddr := flag.String("http-addr", "", "TCP address the REST API listens on; empty disables it (overrides config)")
	metricsAddr := flag.String("metrics-addr", "", "HTTP address for a dedicated Prometheus /metrics listener (overrides config)")
	profilesPath := flag.String("profiles", "", "Path to a YAML or TOML profiles file (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if cfg, err = cfg.ApplyEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "grpc-addr":
			cfg.GRPCAddress = *grpcAddr
		case "http-addr":
			cfg.HTTPAddress = *httpAddr
		case "metrics-addr":
			cfg.MetricsAddress = *metricsAddr
		case "profiles":
			cfg.ProfilesPath = *profilesPath
		}
	})

	log := logging.New(cfg.Logging)
	ctx := context.Background()

	if err := cfg.Validate(); err != nil {
		log.Error(ctx, "invalid configuration", logging.Err(err))
		os.Exit(1)
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddress)
	if err != nil {
		log.Error(ctx, "failed to listen for gRPC", logging.String("addr", cfg.GRPCAddress), logging.Err(err))
		os.Exit(1)
	}

	stopCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(stopCtx, cfg, log, lis); err != nil {
		log.Error(ctx, "risk server exited", logging.Err(err))
		os.Exit(1)
	}
}

// run serves gRPC on lis, plus the REST API and a metrics listener when
// configured, until ctx is cancelled or a server fails.
func run(ctx context.Context, cfg config.Config, log logging.Logger, lis net.Listener) error {
	if log == nil {
		log = logging.Noop()
	}

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector, err := observability.NewRiskCollector(reg)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	profiles, err := cfg.ResolveProfiles()
	if err != nil {
		return err
	}
	catalog := kb.NewCatalog()
	for _, p := range profiles {
		if err := catalog.AddProfile(p); err != nil {
			return fmt.Errorf("load profile %q: %w", p.ID, err)
		}
	}

	clock := propagationClock(cfg)
	st := state.NewAssessmentState(catalog, log,
		state.WithMetricsRecorder(collector),
		state.WithClock(clock.Now),
	)
	defer st.Close()
	log.Info(ctx, "profiles loaded", logging.Int("count", catalog.Len()))

	errCh := make(chan error, 3)

	grpcServer := riskapi.NewServer(riskapi.NewRiskService(st, log), log, collector)
	log.Info(ctx, "starting risk gRPC server", logging.String("addr", lis.Addr().String()))
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	var httpSrv *http.Server
	if cfg.HTTPAddress != "" {
		tracingName := ""
		if cfg.Tracing.Enabled {
			tracingName = cfg.Tracing.ServiceName
		}
		router := httpapi.NewRouter(httpapi.RouterConfig{
			State:              st,
			Logger:             log,
			Metrics:            collector,
			TracingServiceName: tracingName,
		})
		httpSrv, err = serveHTTP(cfg.HTTPAddress, router, errCh)
		if err != nil {
			grpcServer.Stop()
			return err
		}
		log.Info(ctx, "serving REST API", logging.String("addr", cfg.HTTPAddress))
	}

	var metricsSrv *http.Server
	if cfg.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		metricsSrv, err = serveHTTP(cfg.MetricsAddress, mux, errCh)
		if err != nil {
			grpcServer.Stop()
			shutdownHTTP(httpSrv, log)
			return err
		}
		log.Info(ctx, "serving Prometheus metrics", logging.String("addr", cfg.MetricsAddress))
	}

	if clock.Tick > 0 {
		clock.AddListener(func(at time.Time) {
			st.Refresh()
			log.Debug(ctx, "profiles refreshed", logging.String("propagated_to", at.UTC().Format(time.RFC3339)))
		})
		go clock.Run(ctx)
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info(context.Background(), "shutting down risk server")
	case runErr = <-errCh:
		log.Error(context.Background(), "server failed; shutting down", logging.Err(runErr))
	}

	grpcServer.GracefulStop()
	shutdownHTTP(httpSrv, log)
	shutdownHTTP(metricsSrv, log)
	return runErr
}

func serveHTTP(addr string, handler http.Handler, errCh chan<- error) (*http.Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server %s: %w", addr, err)
		}
	}()
	return srv, nil
}

func shutdownHTTP(srv *http.Server, log logging.Logger) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn(ctx, "http shutdown failed", logging.Err(err))
	}
}

// propagationClock follows the wall clock unless a propagation step is
// configured, in which case every refresh advances propagation time by that
// step from server start.
func propagationClock(cfg config.Config) *timectrl.Controller {
	if step := cfg.PropagationStep.Duration; step > 0 {
		return timectrl.NewAcceleratedController(time.Now().UTC(), cfg.RefreshInterval.Duration, step)
	}
	return timectrl.NewController(cfg.RefreshInterval.Duration)
}
