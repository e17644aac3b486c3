package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "menustats.yaml", "log_level: DEBUG\n")

	cfg, err := Load(NewViper(), path)
	require.NoError(t, err)
	require.Equal(t, "DEBUG", cfg.LogLevel)
	require.Equal(t, "UTC", cfg.Analytics.Timezone)
	require.Equal(t, 0.6, cfg.Analytics.CostRatio)
	require.Equal(t, "monthly_total", cfg.Analytics.ANOVAMode)
	require.Equal(t, 5, cfg.Analytics.TopN)
	require.Equal(t, 3, cfg.Analytics.BottomN)
	require.Equal(t, 5*time.Second, cfg.Weather.RequestTimeout)
	require.Equal(t, 4, cfg.Weather.MaxInFlight)
	require.Equal(t, []string{"console"}, cfg.Output.Sinks)
	require.Equal(t, SourceFile, cfg.Input.Source)
	require.True(t, cfg.Seed.EndDate.IsZero())

	loc, err := cfg.Location()
	require.NoError(t, err)
	require.Equal(t, time.UTC, loc)
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfig(t, "menustats.yaml", `
analytics:
  timezone: Europe/Paris
  hemisphere: southern
  anova_mode: daily_counts
  exclude_archived: true
weather:
  enabled: true
  api_key: abc
  request_timeout: 750ms
  default_city: Lyon
output:
  sinks: [json, csv]
  folder: /tmp/reports
seed:
  end_date: 2025-06-30T00:00:00Z
`)
	cfg, err := Load(NewViper(), path)
	require.NoError(t, err)
	require.Equal(t, "Europe/Paris", cfg.Analytics.Timezone)
	require.Equal(t, "daily_counts", cfg.Analytics.ANOVAMode)
	require.True(t, cfg.Analytics.ExcludeArchived)
	require.True(t, cfg.Weather.Enabled)
	require.Equal(t, 750*time.Millisecond, cfg.Weather.RequestTimeout)
	require.Equal(t, "Lyon", cfg.Weather.DefaultCity)
	require.Equal(t, []string{"json", "csv"}, cfg.Output.Sinks)
	require.Equal(t, time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), cfg.Seed.EndDate.UTC())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "menustats.json", `{"analytics": {"top_n": 4}}`)
	t.Setenv("MENUSTATS_ANALYTICS_TOP_N", "7")
	t.Setenv("MENUSTATS_OUTPUT_SINKS", "console,json")
	t.Setenv("MENUSTATS_KAFKA_BROKER_LIST", "k1:9092, k2:9092")

	cfg, err := Load(NewViper(), path)
	require.NoError(t, err)
	require.Equal(t, 7, cfg.Analytics.TopN)
	require.Equal(t, []string{"console", "json"}, cfg.Output.Sinks)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers())
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(NewViper(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	path := writeConfig(t, "menustats.yaml", `
analytics:
  timezone: Mars/Olympus
  cost_ratio: 1.5
  anova_mode: weekly
input:
  source: postgres
output:
  sinks: [console, fax]
  destination: s3
weather:
  enabled: true
`)
	_, err := Load(NewViper(), path)
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{
		"analytics.timezone",
		"analytics.cost_ratio",
		"analytics.anova_mode",
		"database.url",
		`unknown sink "fax"`,
		"cloud_storage.bucket_name",
		"weather.api_key",
	} {
		require.Contains(t, msg, want)
	}
}
