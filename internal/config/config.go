// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads dimensiongate configuration from a YAML file and
// command-line flags.
package config

import (
	"errors"
	"os"
	"sort"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/dimensiongate/internal/access/grants"
	"github.com/holomush/dimensiongate/internal/dimension"
	"github.com/holomush/dimensiongate/internal/logging"
	"github.com/holomush/dimensiongate/internal/metrics"
	"github.com/holomush/dimensiongate/internal/schedule"
	"github.com/holomush/dimensiongate/internal/state"
	"github.com/holomush/dimensiongate/internal/xdg"
)

// Error codes.
const (
	CodeLoadFailed = "CONFIG_LOAD_FAILED"
	CodeInvalid    = "CONFIG_INVALID"
)

// Storage backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Config is the full configuration document.
type Config struct {
	Dimensions    map[string]DimensionConfig `koanf:"dimensions"`
	Settings      Settings                   `koanf:"settings"`
	Schedules     map[string]ScheduleConfig  `koanf:"schedules"`
	Metrics       MetricsConfig              `koanf:"metrics"`
	Storage       StorageConfig              `koanf:"storage"`
	Grants        GrantsConfig               `koanf:"grants"`
	Observability ObservabilityConfig        `koanf:"observability"`
	Log           LogConfig                  `koanf:"log"`
}

// DimensionConfig is the initial state of one dimension.
type DimensionConfig struct {
	Open bool `koanf:"open"`
}

// Settings holds policy switches.
type Settings struct {
	OpsBypassRestrictions bool          `koanf:"ops_bypass_restrictions"`
	Tick                  time.Duration `koanf:"tick"`
	SyncInterval          time.Duration `koanf:"sync_interval"`
}

// ScheduleConfig is one schedule entry. IntervalTicks is a pointer so an
// omitted value can default to one in-game day.
type ScheduleConfig struct {
	Enabled       bool   `koanf:"enabled"`
	Dimension     string `koanf:"dimension"`
	Action        string `koanf:"action"`
	DelayTicks    int64  `koanf:"delay_ticks"`
	IntervalTicks *int64 `koanf:"interval_ticks"`
}

// MetricsConfig configures the report flusher.
type MetricsConfig struct {
	FlushInterval time.Duration `koanf:"flush_interval"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	Backend     string `koanf:"backend"`
	StatePath   string `koanf:"state_path"`
	ReportPath  string `koanf:"report_path"`
	DatabaseURL string `koanf:"database_url"`
	RedisAddr   string `koanf:"redis_addr"`
	RedisDB     int    `koanf:"redis_db"`
	KeyPrefix   string `koanf:"key_prefix"`
}

// GrantsConfig lists static actor capabilities.
type GrantsConfig struct {
	Operators []string            `koanf:"operators"`
	Actors    map[string][]string `koanf:"actors"`
	Roles     map[string]string   `koanf:"roles"`
}

// ObservabilityConfig configures the metrics and health HTTP server.
type ObservabilityConfig struct {
	Addr string `koanf:"addr"`
}

// LogConfig configures log output.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Dimensions: map[string]DimensionConfig{},
		Settings: Settings{
			Tick:         schedule.DefaultTick,
			SyncInterval: state.DefaultSyncInterval,
		},
		Schedules: map[string]ScheduleConfig{},
		Metrics:   MetricsConfig{FlushInterval: metrics.DefaultFlushInterval},
		Storage: StorageConfig{
			Backend:   BackendFile,
			RedisAddr: "localhost:6379",
			KeyPrefix: "dimensiongate",
		},
		Grants:        GrantsConfig{Actors: map[string][]string{}, Roles: map[string]string{}},
		Observability: ObservabilityConfig{Addr: "127.0.0.1:9110"},
		Log:           LogConfig{Format: "json", Level: "info"},
	}
}

// keyDelim separates config key paths. Schedule names are map keys and
// may contain dots, so the delimiter cannot be ".".
const keyDelim = "::"

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"storage":            "storage::backend",
	"state-path":         "storage::state_path",
	"report-path":        "storage::report_path",
	"database-url":       "storage::database_url",
	"redis-addr":         "storage::redis_addr",
	"observability-addr": "observability::addr",
	"log-format":         "log::format",
	"log-level":          "log::level",
	"tick":               "settings::tick",
	"sync-interval":      "settings::sync_interval",
	"flush-interval":     "metrics::flush_interval",
}

// RegisterFlags adds the flags Load understands to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("storage", d.Storage.Backend, "storage backend (file, postgres, redis, memory)")
	fs.String("state-path", "", "dimension state file (file backend)")
	fs.String("report-path", "", "metrics report file")
	fs.String("database-url", "", "PostgreSQL connection string (postgres backend)")
	fs.String("redis-addr", d.Storage.RedisAddr, "Redis address (redis backend)")
	fs.String("observability-addr", d.Observability.Addr, "metrics and health listen address (empty disables)")
	fs.String("log-format", d.Log.Format, "log format (json or text)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.Duration("tick", d.Settings.Tick, "duration of one schedule tick")
	fs.Duration("sync-interval", d.Settings.SyncInterval, "how often serve reloads state written by other processes")
	fs.Duration("flush-interval", d.Metrics.FlushInterval, "metrics report flush interval")
}

// Load reads path (if it exists) and applies flags on top. An empty path
// means the XDG default, which may be absent. An explicit path must exist.
// fs may be nil.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(keyDelim)

	explicit := path != ""
	if !explicit {
		path = xdg.ConfigFile()
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.In("config").Code(CodeLoadFailed).With("path", path).Wrap(err)
		}
	} else if explicit || !errors.Is(err, os.ErrNotExist) {
		return nil, oops.In("config").Code(CodeLoadFailed).With("path", path).Wrap(err)
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, keyDelim, k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.In("config").Code(CodeLoadFailed).Wrap(err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.In("config").Code(CodeLoadFailed).With("path", path).Wrap(err)
	}
	cfg.resolvePaths()
	return cfg, nil
}

func (c *Config) resolvePaths() {
	if c.Storage.StatePath == "" {
		c.Storage.StatePath = xdg.StateFile()
	}
	if c.Storage.ReportPath == "" {
		c.Storage.ReportPath = xdg.ReportFile()
	}
	if c.Storage.DatabaseURL == "" {
		c.Storage.DatabaseURL = os.Getenv("DATABASE_URL")
	}
}

// Validate reports every problem in the document at once. Schedule errors
// are configuration errors (see schedule.IsConfigurationError).
func (c *Config) Validate() error {
	var errs []error

	for name := range c.Dimensions {
		if _, err := dimension.Parse(name); err != nil {
			errs = append(errs, oops.In("config").
				Code(schedule.CodeInvalidDimension).
				With("dimension", name).
				Errorf("unknown dimension %q in dimensions", name))
		}
	}
	for _, spec := range c.ScheduleSpecs() {
		if _, err := schedule.Compile(spec, c.Settings.Tick); err != nil {
			errs = append(errs, err)
		}
	}
	switch c.Storage.Backend {
	case BackendFile, BackendPostgres, BackendRedis, BackendMemory:
	default:
		errs = append(errs, oops.In("config").
			Code(CodeInvalid).
			With("backend", c.Storage.Backend).
			Errorf("unknown storage backend %q", c.Storage.Backend))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, oops.In("config").Code(CodeInvalid).Wrap(err))
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, oops.In("config").
			Code(CodeInvalid).
			With("format", c.Log.Format).
			Errorf("unknown log format %q", c.Log.Format))
	}
	if c.Settings.Tick <= 0 {
		errs = append(errs, oops.In("config").Code(CodeInvalid).Errorf("settings.tick must be positive"))
	}
	if c.Settings.SyncInterval <= 0 {
		errs = append(errs, oops.In("config").Code(CodeInvalid).Errorf("settings.sync_interval must be positive"))
	}
	if c.Metrics.FlushInterval <= 0 {
		errs = append(errs, oops.In("config").Code(CodeInvalid).Errorf("metrics.flush_interval must be positive"))
	}
	return errors.Join(errs...)
}

// DimensionDefaults returns the configured initial states. Unknown
// dimension names are skipped; Validate reports them.
func (c *Config) DimensionDefaults() map[dimension.Dimension]bool {
	out := make(map[dimension.Dimension]bool, len(c.Dimensions))
	for name, dc := range c.Dimensions {
		d, err := dimension.Parse(name)
		if err != nil {
			continue
		}
		out[d] = dc.Open
	}
	return out
}

// ScheduleSpecs returns every schedule entry, sorted by name. Omitted
// interval_ticks defaults to schedule.DefaultIntervalTicks.
func (c *Config) ScheduleSpecs() []schedule.JobSpec {
	names := make([]string, 0, len(c.Schedules))
	for name := range c.Schedules {
		names = append(names, name)
	}
	sort.Strings(names)

	specs := make([]schedule.JobSpec, 0, len(names))
	for _, name := range names {
		sc := c.Schedules[name]
		interval := int64(schedule.DefaultIntervalTicks)
		if sc.IntervalTicks != nil {
			interval = *sc.IntervalTicks
		}
		specs = append(specs, schedule.JobSpec{
			Name:          name,
			Enabled:       sc.Enabled,
			Dimension:     sc.Dimension,
			Action:        sc.Action,
			DelayTicks:    sc.DelayTicks,
			IntervalTicks: interval,
		})
	}
	return specs
}

// BuildGrants creates a grants provider from the grants section.
func (c *Config) BuildGrants() (*grants.Provider, error) {
	p := grants.NewProvider()
	for _, id := range c.Grants.Operators {
		p.SetOperator(id, true)
	}
	for id, patterns := range c.Grants.Actors {
		if err := p.Grant(id, patterns...); err != nil {
			return nil, oops.In("config").Code(CodeInvalid).Wrap(err)
		}
	}
	for id, role := range c.Grants.Roles {
		if err := p.AssignRole(id, role); err != nil {
			return nil, oops.In("config").Code(CodeInvalid).Wrap(err)
		}
	}
	return p, nil
}
