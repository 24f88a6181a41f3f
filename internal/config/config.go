// Package config loads the service configuration in layers: built-in
// defaults, then an optional YAML file, then environment variables. A .env
// file in the working directory is read into the environment first.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar points at a YAML config file.
const ConfigPathEnvVar = "CONFIG_PATH"

// EnvPrefix prefixes every generic environment override,
// e.g. EVIMERIA_SEEDING_PACE=500ms sets seeding.pace.
const EnvPrefix = "EVIMERIA_"

var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

type Config struct {
	Log        LogConfig        `koanf:"log"`
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	Media      MediaConfig      `koanf:"media"`
	Seeding    SeedingConfig    `koanf:"seeding"`
	Classifier ClassifierConfig `koanf:"classifier"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	// RateLimit is the number of requests per minute and client IP. Zero disables it.
	RateLimit int `koanf:"rate_limit"`
}

type DatabaseConfig struct {
	DSN             string        `koanf:"dsn"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	LogQueries      bool          `koanf:"log_queries"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// MediaConfig addresses the image host.
type MediaConfig struct {
	BaseURL   string        `koanf:"base_url"`
	CloudName string        `koanf:"cloud_name"`
	APIKey    string        `koanf:"api_key"`
	APISecret string        `koanf:"api_secret"`
	Root      string        `koanf:"root"`
	Timeout   time.Duration `koanf:"timeout"`
}

type SeedingConfig struct {
	// PoolsFile replaces the embedded image pool table when set.
	PoolsFile     string        `koanf:"pools_file"`
	PublishedOnly bool          `koanf:"published_only"`
	Pace          time.Duration `koanf:"pace"`
	FetchTimeout  time.Duration `koanf:"fetch_timeout"`
	MaxDimension  int           `koanf:"max_dimension"`
	JPEGQuality   int           `koanf:"jpeg_quality"`
	// Banners maps a category slug to its banner image URL.
	Banners map[string]string `koanf:"banners"`
	// PushURL is a Prometheus Pushgateway the run metrics are sent to when
	// the batch ends. Metrics are not collected when it is empty.
	PushURL string `koanf:"push_url"`
}

type ClassifierConfig struct {
	Fallback  string `koanf:"fallback"`
	RulesFile string `koanf:"rules_file"`
}

func defaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimit:       300,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Media: MediaConfig{
			BaseURL: "https://api.cloudinary.com",
			Root:    "evimeria",
			Timeout: 30 * time.Second,
		},
		Seeding: SeedingConfig{
			PublishedOnly: true,
			FetchTimeout:  30 * time.Second,
			MaxDimension:  800,
			JPEGQuality:   85,
		},
		Classifier: ClassifierConfig{
			Fallback: "Autre",
		},
	}
}

// Load reads .env, then builds the configuration from defaults, the config
// file and the environment, and validates it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return load(findConfigFile())
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envAliases keeps the variable names the deployment already uses.
var envAliases = map[string]string{
	"database_url":          "database.dsn",
	"cloudinary_cloud_name": "media.cloud_name",
	"cloudinary_api_key":    "media.api_key",
	"cloudinary_api_secret": "media.api_secret",
	"log_level":             "log.level",
	"log_format":            "log.format",
	"http_addr":             "server.addr",
	"cors_origins":          "server.cors_origins",
	"pushgateway_url":       "seeding.push_url",
}

// envTransformFunc maps an environment variable to a config path, or to ""
// to ignore it. EVIMERIA_SECTION_KEY becomes section.key; the first
// underscore after the prefix separates the section.
func envTransformFunc(key string) string {
	lower := strings.ToLower(key)
	if path, ok := envAliases[lower]; ok {
		return path
	}
	if !strings.HasPrefix(key, EnvPrefix) {
		return ""
	}
	return strings.Replace(strings.TrimPrefix(lower, strings.ToLower(EnvPrefix)), "_", ".", 1)
}

var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields splits comma separated values coming from the environment.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		var parts []string
		for _, p := range strings.Split(strVal, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}
