// Package config loads risk-server configuration from YAML or TOML files and
// the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/debris-risk/internal/logging"
	"github.com/signalsfoundry/debris-risk/internal/observability"
	"github.com/signalsfoundry/debris-risk/model"
)

// ErrInvalidConfig indicates a configuration that cannot be served.
var ErrInvalidConfig = errors.New("invalid config")

// Duration is a time.Duration written as a Go duration string ("30s").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	if len(bytes.TrimSpace(text)) == 0 {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the risk-server configuration.
type Config struct {
	GRPCAddress    string `yaml:"grpc_address" toml:"grpc_address"`
	HTTPAddress    string `yaml:"http_address" toml:"http_address"`
	MetricsAddress string `yaml:"metrics_address" toml:"metrics_address"`

	Logging logging.Config              `yaml:"logging" toml:"logging"`
	Tracing observability.TracingConfig `yaml:"tracing" toml:"tracing"`

	// RefreshInterval re-propagates TLE-backed profiles periodically.
	// Zero disables refresh.
	RefreshInterval Duration `yaml:"refresh_interval" toml:"refresh_interval"`
	// PropagationStep, when set, advances propagation time by this much on
	// every refresh instead of following the wall clock.
	PropagationStep Duration `yaml:"propagation_step" toml:"propagation_step"`

	// ProfilesPath names an additional YAML or TOML file of profiles.
	ProfilesPath string        `yaml:"profiles_path" toml:"profiles_path"`
	Profiles     []ProfileSpec `yaml:"profiles" toml:"profiles"`
}

// ProfileSpec is a profile as written in a config file. Parameters are
// overrides applied on top of model.DefaultParameters.
type ProfileSpec struct {
	ID         string             `yaml:"id" toml:"id"`
	Name       string             `yaml:"name" toml:"name"`
	NoradID    uint32             `yaml:"norad_id" toml:"norad_id"`
	TLELine1   string             `yaml:"tle_line1" toml:"tle_line1"`
	TLELine2   string             `yaml:"tle_line2" toml:"tle_line2"`
	Parameters map[string]float64 `yaml:"parameters" toml:"parameters"`
}

// Profile resolves the spec against the default parameter set.
func (s ProfileSpec) Profile() (model.Profile, error) {
	values := model.DefaultParameters().Fields()
	for k, v := range s.Parameters {
		values[k] = v
	}
	params, err := model.ParameterSetFromFields(values)
	if err != nil {
		return model.Profile{}, fmt.Errorf("profile %q: %w", s.ID, err)
	}
	if err := params.Validate(); err != nil {
		return model.Profile{}, fmt.Errorf("profile %q: %w", s.ID, err)
	}
	return model.Profile{
		ID:         strings.TrimSpace(s.ID),
		Name:       s.Name,
		NoradID:    s.NoradID,
		TLELine1:   s.TLELine1,
		TLELine2:   s.TLELine2,
		Parameters: params,
	}, nil
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		GRPCAddress:    "0.0.0.0:50051",
		HTTPAddress:    "0.0.0.0:8080",
		MetricsAddress: "",
		Logging:        logging.Config{Level: "info", Format: "text"},
		Tracing:        observability.DefaultTracingConfig(),
	}
}

// Load reads path on top of Default. The decoder is chosen by extension
// (.yaml, .yml or .toml) and unknown keys are rejected. An empty path
// returns Default.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if err := decodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadProfiles reads a standalone profiles file. The file holds a single
// "profiles" list.
func LoadProfiles(path string) ([]ProfileSpec, error) {
	var doc struct {
		Profiles []ProfileSpec `yaml:"profiles" toml:"profiles"`
	}
	if err := decodeFile(path, &doc); err != nil {
		return nil, err
	}
	return doc.Profiles, nil
}

func decodeFile(path string, dst any) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(content))
		dec.KnownFields(true)
		if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(content))
		dec.DisallowUnknownFields()
		if err := dec.Decode(dst); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		return fmt.Errorf("%w: unsupported config extension %q", ErrInvalidConfig, filepath.Ext(path))
	}
	return nil
}

// ApplyEnv overlays RISK_* and LOG_* environment variables. A duration
// variable that does not parse is an ErrInvalidConfig.
func (c Config) ApplyEnv() (Config, error) {
	if v := os.Getenv("RISK_GRPC_ADDR"); v != "" {
		c.GRPCAddress = v
	}
	if v := os.Getenv("RISK_HTTP_ADDR"); v != "" {
		c.HTTPAddress = v
	}
	if v := os.Getenv("RISK_METRICS_ADDR"); v != "" {
		c.MetricsAddress = v
	}
	if v := os.Getenv("RISK_PROFILES_PATH"); v != "" {
		c.ProfilesPath = v
	}
	if err := durationFromEnv("RISK_REFRESH_INTERVAL", &c.RefreshInterval); err != nil {
		return c, err
	}
	if err := durationFromEnv("RISK_PROPAGATION_STEP", &c.PropagationStep); err != nil {
		return c, err
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	c.Tracing = c.Tracing.ApplyEnv()
	return c, nil
}

func durationFromEnv(key string, dst *Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var d Duration
	if err := d.UnmarshalText([]byte(v)); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}
	*dst = d
	return nil
}

// ResolveProfiles returns the inline profiles followed by those in
// ProfilesPath, each resolved against the default parameters.
func (c Config) ResolveProfiles() ([]model.Profile, error) {
	specs := append([]ProfileSpec(nil), c.Profiles...)
	if c.ProfilesPath != "" {
		extra, err := LoadProfiles(c.ProfilesPath)
		if err != nil {
			return nil, err
		}
		specs = append(specs, extra...)
	}

	seen := make(map[string]struct{}, len(specs))
	profiles := make([]model.Profile, 0, len(specs))
	for _, s := range specs {
		p, err := s.Profile()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		if p.ID == "" {
			return nil, fmt.Errorf("%w: profile id is required", ErrInvalidConfig)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate profile id %q", ErrInvalidConfig, p.ID)
		}
		seen[p.ID] = struct{}{}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// Validate checks the fields the server cannot start without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.GRPCAddress) == "" {
		return fmt.Errorf("%w: grpc_address is required", ErrInvalidConfig)
	}
	if c.RefreshInterval.Duration < 0 {
		return fmt.Errorf("%w: refresh_interval must not be negative", ErrInvalidConfig)
	}
	if c.PropagationStep.Duration < 0 {
		return fmt.Errorf("%w: propagation_step must not be negative", ErrInvalidConfig)
	}
	if c.PropagationStep.Duration > 0 && c.RefreshInterval.Duration == 0 {
		return fmt.Errorf("%w: propagation_step requires refresh_interval", ErrInvalidConfig)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("%w: tracing.sample_ratio must be within [0,1]", ErrInvalidConfig)
	}
	seen := make(map[string]struct{}, len(c.Profiles))
	for _, p := range c.Profiles {
		id := strings.TrimSpace(p.ID)
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate profile id %q", ErrInvalidConfig, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
