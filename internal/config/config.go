// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App        AppConfig
	Logger     LoggerConfig
	Data       DataConfig
	Language   LanguageConfig
	Search     SearchConfig
	Jobs       JobsConfig
	Extraction ExtractionConfig
	Notify     NotifyConfig
	Ops        OpsConfig
	RateLimit  RateLimitConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// DataConfig holds on-disk storage locations.
type DataConfig struct {
	// BasePath holds the sqlite database and the bleve index (default: ~/CRIS/data).
	BasePath string
}

// LanguageConfig decides which content lands in the primary-language buckets.
type LanguageConfig struct {
	Primary string   // default: sr
	Related []string // closely related languages indexed with the primary (default: hr)
}

// SearchConfig holds query defaults.
type SearchConfig struct {
	DefaultPageSize int     // default: 10
	MaxPageSize     int     // default: 100
	ThesisMinMatch  float64 // fraction of tokens that must match in thesis search (default: 0.7)
}

// JobsConfig holds the periodic scanner schedules.
type JobsConfig struct {
	DedupEnabled       bool          // default: true
	DedupInterval      time.Duration // default: 1m
	DedupChunkSize     int           // default: 10
	DedupMaxCandidates int           // default: 2

	ClaimDiscoveryEnabled  bool          // default: false
	ClaimDiscoveryInterval time.Duration // default: 24h
	ClaimDiscoveryChunk    int           // default: 20
}

// ExtractionConfig holds the Tika endpoint used for file text extraction.
type ExtractionConfig struct {
	TikaURL string        // empty disables extraction
	Timeout time.Duration // default: 30s
}

// NotifyConfig holds notification delivery configuration.
type NotifyConfig struct {
	KafkaBrokers []string // empty logs notifications instead of publishing
	KafkaTopic   string   // default: cris.notifications
}

// OpsConfig holds the metrics/health listener.
type OpsConfig struct {
	Addr string // empty disables the listener
}

// RateLimitConfig limits interactive claim operations per user.
type RateLimitConfig struct {
	ClaimRPS   float64 // default: 1
	ClaimBurst int     // default: 5
}

// LoadConfig loads configuration from the process command line and environment.
func LoadConfig() (*Config, error) {
	return Load(flag.CommandLine, os.Args[1:])
}

// Load loads configuration with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Base path for the database and search index")
	primaryLang := fs.String("primary-language", "", "Primary content language (default: sr)")
	tikaURL := fs.String("tika-url", "", "Apache Tika server URL")
	opsAddr := fs.String("ops-addr", "", "Listen address for /metrics and /healthz")
	dedupInterval := fs.String("dedup-interval", "", "Duplicate scan interval (default: 1m)")
	claimInterval := fs.String("claim-interval", "", "Claim discovery interval (default: 24h)")
	claimEnabled := fs.String("claim-discovery", "", "Enable claim discovery (default: false)")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Data: DataConfig{
			BasePath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Language: LanguageConfig{
			Primary: strings.ToLower(getConfigValue(*primaryLang, "PRIMARY_LANGUAGE", "sr")),
			Related: getListConfigValue("", "RELATED_LANGUAGES", []string{"hr"}),
		},
		Search: SearchConfig{
			DefaultPageSize: getIntConfigValue("", "SEARCH_DEFAULT_PAGE_SIZE", 10),
			MaxPageSize:     getIntConfigValue("", "SEARCH_MAX_PAGE_SIZE", 100),
			ThesisMinMatch:  getFloatConfigValue("", "SEARCH_THESIS_MIN_MATCH", 0.7),
		},
		Jobs: JobsConfig{
			DedupEnabled:          getBoolConfigValue("", "DEDUP_ENABLED", true),
			DedupChunkSize:        getIntConfigValue("", "DEDUP_CHUNK_SIZE", 10),
			DedupMaxCandidates:    getIntConfigValue("", "DEDUP_MAX_CANDIDATES", 2),
			ClaimDiscoveryEnabled: getBoolConfigValue(*claimEnabled, "CLAIM_DISCOVERY_ENABLED", false),
			ClaimDiscoveryChunk:   getIntConfigValue("", "CLAIM_DISCOVERY_CHUNK_SIZE", 20),
		},
		Extraction: ExtractionConfig{
			TikaURL: getConfigValue(*tikaURL, "TIKA_URL", ""),
		},
		Notify: NotifyConfig{
			KafkaBrokers: getListConfigValue("", "KAFKA_BROKERS", nil),
			KafkaTopic:   getConfigValue("", "KAFKA_NOTIFY_TOPIC", "cris.notifications"),
		},
		Ops: OpsConfig{
			Addr: getConfigValue(*opsAddr, "OPS_ADDR", ""),
		},
		RateLimit: RateLimitConfig{
			ClaimRPS:   getFloatConfigValue("", "CLAIM_RATE_RPS", 1),
			ClaimBurst: getIntConfigValue("", "CLAIM_RATE_BURST", 5),
		},
	}

	var err error
	if cfg.Jobs.DedupInterval, err = parseDuration(*dedupInterval, "DEDUP_INTERVAL", "1m"); err != nil {
		return nil, err
	}
	if cfg.Jobs.ClaimDiscoveryInterval, err = parseDuration(*claimInterval, "CLAIM_DISCOVERY_INTERVAL", "24h"); err != nil {
		return nil, err
	}
	if cfg.Extraction.Timeout, err = parseDuration("", "TIKA_TIMEOUT", "30s"); err != nil {
		return nil, err
	}

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Data.BasePath == "" {
		return errors.New("data base path cannot be empty after expansion")
	}
	if c.Language.Primary == "" {
		return errors.New("primary language is required")
	}

	if c.Search.DefaultPageSize <= 0 || c.Search.MaxPageSize < c.Search.DefaultPageSize {
		return fmt.Errorf("invalid page sizes: default %d, max %d", c.Search.DefaultPageSize, c.Search.MaxPageSize)
	}
	if c.Search.ThesisMinMatch <= 0 || c.Search.ThesisMinMatch > 1 {
		return fmt.Errorf("thesis min match must be in (0, 1], got %v", c.Search.ThesisMinMatch)
	}

	if c.Jobs.DedupChunkSize <= 0 || c.Jobs.ClaimDiscoveryChunk <= 0 {
		return errors.New("job chunk sizes must be positive")
	}
	if c.Jobs.DedupMaxCandidates <= 0 {
		return errors.New("dedup max candidates must be positive")
	}
	if c.Jobs.DedupInterval <= 0 || c.Jobs.ClaimDiscoveryInterval <= 0 {
		return errors.New("job intervals must be positive")
	}

	if c.RateLimit.ClaimRPS <= 0 || c.RateLimit.ClaimBurst <= 0 {
		return errors.New("claim rate limit must be positive")
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

func (c *Config) expandDataPath() error {
	var defaultPath string
	if c.Data.BasePath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		defaultPath = filepath.Join(homeDir, "CRIS", "data")
	}

	expanded, err := expandPath(c.Data.BasePath, defaultPath)
	if err != nil {
		return err
	}
	c.Data.BasePath = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue accepts "true", "1", "yes" (case-insensitive) as true.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue returns a float from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		return defaultValue
	}
	return result
}

// getListConfigValue splits a comma-separated value, dropping empty items.
func getListConfigValue(flagValue, envKey string, defaultValue []string) []string {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(strValue, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, strings.ToLower(item))
		}
	}
	return items
}

func parseDuration(flagValue, envKey, defaultValue string) (time.Duration, error) {
	raw := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", strings.ToLower(envKey), raw, err)
	}
	return d, nil
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)

		// Env vars take precedence over .env file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
