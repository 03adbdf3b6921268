package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:      AppConfig{Environment: "development"},
		Logger:   LoggerConfig{Level: "info"},
		Data:     DataConfig{BasePath: "/some/path"},
		Language: LanguageConfig{Primary: "sr", Related: []string{"hr"}},
		Search:   SearchConfig{DefaultPageSize: 10, MaxPageSize: 100, ThesisMinMatch: 0.7},
		Jobs: JobsConfig{
			DedupInterval:          time.Minute,
			DedupChunkSize:         10,
			DedupMaxCandidates:     2,
			ClaimDiscoveryInterval: time.Hour,
			ClaimDiscoveryChunk:    20,
		},
		RateLimit: RateLimitConfig{ClaimRPS: 1, ClaimBurst: 5},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown environment", func(c *Config) { c.App.Environment = "test" }},
		{"uppercase environment", func(c *Config) { c.App.Environment = "DEVELOPMENT" }},
		{"bad log level", func(c *Config) { c.Logger.Level = "verbose" }},
		{"empty data path", func(c *Config) { c.Data.BasePath = "" }},
		{"empty primary language", func(c *Config) { c.Language.Primary = "" }},
		{"max page below default", func(c *Config) { c.Search.MaxPageSize = 5 }},
		{"zero thesis threshold", func(c *Config) { c.Search.ThesisMinMatch = 0 }},
		{"thesis threshold above one", func(c *Config) { c.Search.ThesisMinMatch = 1.5 }},
		{"zero chunk", func(c *Config) { c.Jobs.DedupChunkSize = 0 }},
		{"zero candidates", func(c *Config) { c.Jobs.DedupMaxCandidates = 0 }},
		{"zero interval", func(c *Config) { c.Jobs.ClaimDiscoveryInterval = 0 }},
		{"zero claim rps", func(c *Config) { c.RateLimit.ClaimRPS = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATA_PATH", dir)

	cfg, err := Load(flag.NewFlagSet("test", flag.ContinueOnError), nil)
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, dir, cfg.Data.BasePath)
	assert.Equal(t, "sr", cfg.Language.Primary)
	assert.Equal(t, []string{"hr"}, cfg.Language.Related)
	assert.Equal(t, time.Minute, cfg.Jobs.DedupInterval)
	assert.Equal(t, 24*time.Hour, cfg.Jobs.ClaimDiscoveryInterval)
	assert.False(t, cfg.Jobs.ClaimDiscoveryEnabled)
	assert.True(t, cfg.Jobs.DedupEnabled)
	assert.Equal(t, 10, cfg.Jobs.DedupChunkSize)
	assert.Equal(t, 2, cfg.Jobs.DedupMaxCandidates)
	assert.InDelta(t, 0.7, cfg.Search.ThesisMinMatch, 1e-9)
	assert.Empty(t, cfg.Notify.KafkaBrokers)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATA_PATH", dir)
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("CLAIM_DISCOVERY_ENABLED", "false")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := Load(fs, []string{"-log-level", "debug", "-claim-discovery", "yes", "-dedup-interval", "30s"})
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.True(t, cfg.Jobs.ClaimDiscoveryEnabled)
	assert.Equal(t, 30*time.Second, cfg.Jobs.DedupInterval)
}

func TestLoad_ListValues(t *testing.T) {
	t.Setenv("DATA_PATH", t.TempDir())
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,,")
	t.Setenv("RELATED_LANGUAGES", "HR,bs")

	cfg, err := Load(flag.NewFlagSet("test", flag.ContinueOnError), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Notify.KafkaBrokers)
	assert.Equal(t, []string{"hr", "bs"}, cfg.Language.Related)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("DATA_PATH", t.TempDir())
	t.Setenv("DEDUP_INTERVAL", "every minute")

	_, err := Load(flag.NewFlagSet("test", flag.ContinueOnError), nil)
	assert.Error(t, err)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "test.env")
	content := "# comment\nDATA_PATH=" + dir + "\nSEARCH_MAX_PAGE_SIZE=\"250\"\n"
	require.NoError(t, os.WriteFile(envPath, []byte(content), 0o600))

	// t.Setenv registers cleanup for keys the .env loader sets.
	t.Setenv("DATA_PATH", "")
	t.Setenv("SEARCH_MAX_PAGE_SIZE", "")

	cfg, err := Load(flag.NewFlagSet("test", flag.ContinueOnError), []string{"-env-file", envPath})
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.Data.BasePath)
	assert.Equal(t, 250, cfg.Search.MaxPageSize)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandPath("~/cris", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "cris"), got)

	got, err = expandPath("", "/default")
	require.NoError(t, err)
	assert.Equal(t, "/default", got)

	got, err = expandPath("/a/b/../c", "")
	require.NoError(t, err)
	assert.Equal(t, "/a/c", got)
}
