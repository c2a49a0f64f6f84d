// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/dimensiongate/internal/access"
	"github.com/holomush/dimensiongate/internal/config"
	"github.com/holomush/dimensiongate/internal/dimension"
	"github.com/holomush/dimensiongate/internal/schedule"
	"github.com/holomush/dimensiongate/internal/state"
	"github.com/holomush/dimensiongate/pkg/errutil"
)

const sampleConfig = `
dimensions:
  overworld: {open: true}
  nether:    {open: false}
  end:       {open: true}
settings:
  ops_bypass_restrictions: false
  tick: 100ms
schedules:
  nightly-nether-close:
    enabled: true
    dimension: nether
    action: close
    interval_ticks: 24000
  morning-open:
    enabled: true
    dimension: world
    action: open
    delay_ticks: 5
metrics:
  flush_interval: 1m
storage:
  backend: memory
grants:
  operators: [alice]
  actors:
    bob: ["dimensiongate.access.nether", "dimensiongate.command.status"]
  roles:
    kim: keeper
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func isolateXDG(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv("DATABASE_URL", "")
}

func TestLoad_File(t *testing.T) {
	isolateXDG(t)
	cfg, err := config.Load(writeConfig(t, sampleConfig), nil)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.False(t, cfg.Settings.OpsBypassRestrictions)
	// Omitted keys keep their defaults.
	assert.Equal(t, state.DefaultSyncInterval, cfg.Settings.SyncInterval)
	assert.Equal(t, 100*time.Millisecond, cfg.Settings.Tick)
	assert.Equal(t, time.Minute, cfg.Metrics.FlushInterval)
	assert.Equal(t, config.BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, "127.0.0.1:9110", cfg.Observability.Addr)

	assert.Equal(t, map[dimension.Dimension]bool{
		dimension.Overworld: true,
		dimension.Nether:    false,
		dimension.End:       true,
	}, cfg.DimensionDefaults())
}

func TestLoad_ScheduleSpecs(t *testing.T) {
	isolateXDG(t)
	cfg, err := config.Load(writeConfig(t, sampleConfig), nil)
	require.NoError(t, err)

	assert.Equal(t, []schedule.JobSpec{
		{Name: "morning-open", Enabled: true, Dimension: "world", Action: "open", DelayTicks: 5, IntervalTicks: schedule.DefaultIntervalTicks},
		{Name: "nightly-nether-close", Enabled: true, Dimension: "nether", Action: "close", IntervalTicks: 24000},
	}, cfg.ScheduleSpecs())
}

func TestLoad_DefaultPaths(t *testing.T) {
	isolateXDG(t)
	t.Setenv("DATABASE_URL", "postgres://env")

	cfg, err := config.Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, config.BackendFile, cfg.Storage.Backend)
	assert.Equal(t, filepath.Join(os.Getenv("XDG_DATA_HOME"), "dimensiongate", "state.yaml"), cfg.Storage.StatePath)
	assert.Equal(t, filepath.Join(os.Getenv("XDG_DATA_HOME"), "dimensiongate", "metrics", "statistics.txt"), cfg.Storage.ReportPath)
	assert.Equal(t, "postgres://env", cfg.Storage.DatabaseURL)
	assert.Empty(t, cfg.DimensionDefaults())
	require.NoError(t, cfg.Validate())
}

func TestLoad_ExplicitMissingFileFails(t *testing.T) {
	isolateXDG(t)
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, config.CodeLoadFailed)
}

func TestLoad_MalformedYAML(t *testing.T) {
	isolateXDG(t)
	_, err := config.Load(writeConfig(t, "settings: [unterminated"), nil)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, config.CodeLoadFailed)
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	isolateXDG(t)
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--storage=redis", "--tick=1s"}))

	cfg, err := config.Load(writeConfig(t, sampleConfig), fs)
	require.NoError(t, err)

	assert.Equal(t, config.BackendRedis, cfg.Storage.Backend)
	assert.Equal(t, time.Second, cfg.Settings.Tick)
	// Unchanged flags do not clobber file values.
	assert.Equal(t, time.Minute, cfg.Metrics.FlushInterval)
}

func TestValidate_CollectsErrors(t *testing.T) {
	isolateXDG(t)
	cfg, err := config.Load(writeConfig(t, `
dimensions:
  aether: {open: false}
schedules:
  bad-dim: {enabled: true, dimension: moon, action: open}
  bad-action: {enabled: true, dimension: end, action: toggle}
storage:
  backend: floppy
`), nil)
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "aether")
	assert.Contains(t, msg, "moon")
	assert.Contains(t, msg, "toggle")
	assert.Contains(t, msg, "floppy")

	// Unknown dimensions are dropped from the defaults.
	assert.Empty(t, cfg.DimensionDefaults())
}

func TestBuildGrants(t *testing.T) {
	isolateXDG(t)
	cfg, err := config.Load(writeConfig(t, sampleConfig), nil)
	require.NoError(t, err)

	p, err := cfg.BuildGrants()
	require.NoError(t, err)

	assert.True(t, p.Actor("alice").IsOperator())
	assert.True(t, p.Actor("bob").HasDimensionGrant(dimension.Nether))
	assert.True(t, p.Actor("bob").HasCommandGrant(access.CommandStatus))
	assert.True(t, p.Actor("kim").HasCommandGrant(access.CommandOpen))
	assert.False(t, p.Actor("kim").HasBypassGrant())
}

func TestBuildGrants_UnknownRole(t *testing.T) {
	cfg := config.Default()
	cfg.Grants.Roles["zed"] = "overlord"
	_, err := cfg.BuildGrants()
	require.Error(t, err)
}

func TestValidate_LogSettings(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())

	cfg.Log.Level = "loud"
	cfg.Log.Format = "xml"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loud")
	assert.Contains(t, err.Error(), "xml")
}

func TestDefault_OperatorBypassOff(t *testing.T) {
	assert.False(t, config.Default().Settings.OpsBypassRestrictions)
}

func TestLoad_DottedScheduleNames(t *testing.T) {
	isolateXDG(t)
	cfg, err := config.Load(writeConfig(t, `
settings:
  tick: 50ms
schedules:
  nightly.close:
    enabled: true
    dimension: nether
    action: close
    delay_ticks: 10
`), nil)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []schedule.JobSpec{
		{Name: "nightly.close", Enabled: true, Dimension: "nether", Action: "close", DelayTicks: 10, IntervalTicks: schedule.DefaultIntervalTicks},
	}, cfg.ScheduleSpecs())
	assert.Equal(t, 50*time.Millisecond, cfg.Settings.Tick)
}

func TestLoad_SyncIntervalFlag(t *testing.T) {
	isolateXDG(t)
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--sync-interval=250ms"}))

	cfg, err := config.Load(writeConfig(t, sampleConfig), fs)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.Settings.SyncInterval)

	cfg.Settings.SyncInterval = 0
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync_interval")
}
