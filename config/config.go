// backend/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Port           string   `yaml:"port" env:"FEARGREED_PORT"`
	AllowedOrigins []string `yaml:"allowed_origins" env:"FEARGREED_ALLOWED_ORIGINS" envSeparator:","`
	AdminRateLimit float64  `yaml:"admin_rate_limit" env:"FEARGREED_ADMIN_RATE_LIMIT"` // requests per second
	AdminBurst     int      `yaml:"admin_burst" env:"FEARGREED_ADMIN_BURST"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver" env:"FEARGREED_DB_DRIVER"` // "mysql" or "sqlite"
	Host     string `yaml:"host" env:"FEARGREED_DB_HOST"`
	Port     string `yaml:"port" env:"FEARGREED_DB_PORT"`
	User     string `yaml:"user" env:"FEARGREED_DB_USER"`
	Password string `yaml:"password" env:"FEARGREED_DB_PASSWORD"`
	DBName   string `yaml:"dbname" env:"FEARGREED_DB_NAME"`
	Path     string `yaml:"path" env:"FEARGREED_DB_PATH"` // sqlite file
}

type SourceConfig struct {
	BaseURL    string        `yaml:"base_url" env:"FEARGREED_SOURCE_URL"`
	Referer    string        `yaml:"referer" env:"FEARGREED_SOURCE_REFERER"`
	UserAgent  string        `yaml:"user_agent" env:"FEARGREED_SOURCE_USER_AGENT"`
	TimeoutStr string        `yaml:"timeout" env:"FEARGREED_SOURCE_TIMEOUT"`
	RetryCount int           `yaml:"retry_count" env:"FEARGREED_SOURCE_RETRY_COUNT"`
	Timeout    time.Duration `yaml:"-"` // Parsed duration
}

type ScheduleConfig struct {
	Enabled         bool   `yaml:"enabled" env:"FEARGREED_SCHEDULE_ENABLED"`
	DailyCron       string `yaml:"daily_cron" env:"FEARGREED_DAILY_CRON"`
	CleanupCron     string `yaml:"cleanup_cron" env:"FEARGREED_CLEANUP_CRON"`
	BackfillOnStart bool   `yaml:"backfill_on_start" env:"FEARGREED_BACKFILL_ON_START"`
}

type RetentionConfig struct {
	Years int `yaml:"years" env:"FEARGREED_RETENTION_YEARS"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"FEARGREED_LOG_LEVEL"`
	Pretty bool   `yaml:"pretty" env:"FEARGREED_LOG_PRETTY"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Source    SourceConfig    `yaml:"source"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Retention RetentionConfig `yaml:"retention"`
	Log       LogConfig       `yaml:"log"`
}

// Default returns the configuration used when no file overrides a value.
// Schedules run ingestion daily at 01:00 and the retention sweep at 02:00 on the 1st.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port: "8080",
			AllowedOrigins: []string{
				"http://127.0.0.1:5500",
				"http://localhost:5500",
				"http://localhost:5173",
				"http://127.0.0.1:8000",
				"http://localhost:8000",
			},
			AdminRateLimit: 0.2,
			AdminBurst:     3,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   "./data/feargreed.db",
		},
		Source: SourceConfig{
			BaseURL:    "https://production.dataviz.cnn.io/index/fearandgreed",
			Referer:    "https://edition.cnn.com/markets/fear-and-greed",
			UserAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			TimeoutStr: "15s",
			RetryCount: 1,
		},
		Schedule: ScheduleConfig{
			Enabled:     true,
			DailyCron:   "0 0 1 * * *",
			CleanupCron: "0 0 2 1 * *",
		},
		Retention: RetentionConfig{Years: 5},
		Log:       LogConfig{Level: "info"},
	}
}

// potentialPaths are tried in order when no explicit config path is given.
var potentialPaths = []string{
	"config.yaml",
	"config/config.yaml",
	"backend/config/config.yaml",
}

// LoadConfig builds the configuration from defaults, an optional YAML file,
// a .env file and FEARGREED_* environment variables, in that order.
// An empty configPath searches the standard locations; finding none is not an error.
func LoadConfig(configPath string) (*Config, error) {
	cfg := Default()

	if configPath == "" {
		for _, p := range potentialPaths {
			if _, err := os.Stat(p); err == nil {
				configPath = p
				break
			}
		}
	}

	if configPath != "" {
		file, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(file, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	// .env is optional; it only seeds the process environment for env.Parse.
	_ = godotenv.Load()

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment overrides: %w", err)
	}

	// Parse durations
	if cfg.Source.TimeoutStr != "" {
		timeout, err := time.ParseDuration(cfg.Source.TimeoutStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse source timeout: %w", err)
		}
		cfg.Source.Timeout = timeout
	} else {
		cfg.Source.Timeout = 15 * time.Second // Default
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports configuration that cannot work at runtime.
func (c *Config) Validate() error {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	switch c.Database.Driver {
	case "mysql":
		if c.Database.Host == "" || c.Database.DBName == "" {
			return fmt.Errorf("mysql driver requires database.host and database.dbname")
		}
	case "sqlite":
		if strings.TrimSpace(c.Database.Path) == "" {
			return fmt.Errorf("sqlite driver requires database.path")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Source.BaseURL) == "" {
		return fmt.Errorf("source.base_url is required")
	}
	if c.Source.Timeout <= 0 {
		return fmt.Errorf("source.timeout must be positive")
	}
	if c.Retention.Years <= 0 {
		return fmt.Errorf("retention.years must be positive")
	}
	for _, origin := range c.Server.AllowedOrigins {
		if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("server.allowed_origins entry %q must start with http:// or https://", origin)
		}
	}
	return nil
}
