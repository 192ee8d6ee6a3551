package main

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/signalsfoundry/debris-risk/internal/config"
	"github.com/signalsfoundry/debris-risk/internal/logging"
	"github.com/signalsfoundry/debris-risk/internal/riskapi"
	"github.com/signalsfoundry/debris-risk/model"
	"github.com/signalsfoundry/debris-risk/timectrl"
)

func TestRiskServerStartupSmoke(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}

	cfg := config.Default()
	cfg.GRPCAddress = lis.Addr().String()
	cfg.HTTPAddress = "127.0.0.1:0"
	cfg.Logging = logging.Config{Level: "warn", Format: "text"}
	cfg.Profiles = []config.ProfileSpec{{ID: "cubesat", Parameters: map[string]float64{"cross_sectional_area": 0.01}}}

	log := logging.New(cfg.Logging)

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, cfg, log, lis)
	}()

	conn, err := grpc.DialContext(ctx, cfg.GRPCAddress, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("grpc.DialContext: %v", err)
	}
	defer conn.Close()

	client := riskapi.NewClient(conn)
	defaults, err := client.Defaults(ctx)
	if err != nil {
		t.Fatalf("Defaults: %v", err)
	}
	if defaults != model.DefaultParameters() {
		t.Fatalf("Defaults = %+v", defaults)
	}

	profiles, err := client.ListProfiles(ctx)
	if err != nil {
		t.Fatalf("ListProfiles: %v", err)
	}
	if len(profiles) != 1 || profiles[0].ID != "cubesat" {
		t.Fatalf("unexpected profiles: %+v", profiles)
	}

	cancel()

	if err := <-errCh; err != nil {
		t.Fatalf("server returned error: %v", err)
	}
}

func TestRunRejectsInvalidProfiles(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	defer lis.Close()

	cfg := config.Default()
	cfg.HTTPAddress = ""
	cfg.Profiles = []config.ProfileSpec{{ID: "a"}, {ID: "a"}}

	if err := run(context.Background(), cfg, logging.Noop(), lis); err == nil {
		t.Fatalf("expected duplicate profiles to fail startup")
	}
}

func TestPropagationClockModes(t *testing.T) {
	cfg := config.Default()
	cfg.RefreshInterval = config.Duration{Duration: time.Minute}
	if c := propagationClock(cfg); c.Mode != timectrl.RealTime || c.Tick != time.Minute {
		t.Fatalf("default clock = %+v, want real time ticking every minute", c)
	}

	cfg.PropagationStep = config.Duration{Duration: 24 * time.Hour}
	c := propagationClock(cfg)
	if c.Mode != timectrl.Accelerated || c.Step != 24*time.Hour {
		t.Fatalf("accelerated clock = %+v", c)
	}
	if drift := time.Since(c.Now()); drift < 0 || drift > time.Minute {
		t.Fatalf("accelerated clock starts at %v, want server start", c.Now())
	}
}
