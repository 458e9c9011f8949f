package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/moveis-planejados/lead-api/internal/lead"
)

// Config holds the full application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Pipefy     PipefyConfig     `yaml:"pipefy" mapstructure:"pipefy"`
	WordPress  WordPressConfig  `yaml:"wordpress" mapstructure:"wordpress"`
	Directory  DirectoryConfig  `yaml:"directory" mapstructure:"directory"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Revalidate RevalidateConfig `yaml:"revalidate" mapstructure:"revalidate"`
	IPGeo      IPGeoConfig      `yaml:"ipgeo" mapstructure:"ipgeo"`
	Lead       LeadConfig       `yaml:"lead" mapstructure:"lead"`
	Breaker    BreakerConfig    `yaml:"breaker" mapstructure:"breaker"`
	Journal    JournalConfig    `yaml:"journal" mapstructure:"journal"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port             int      `yaml:"port" mapstructure:"port"`
	CORSOrigins      []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	ReadTimeoutSecs  int      `yaml:"read_timeout_secs" mapstructure:"read_timeout_secs"`
	WriteTimeoutSecs int      `yaml:"write_timeout_secs" mapstructure:"write_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// PipefyConfig holds the CRM credentials. An empty token disables the CRM leg.
type PipefyConfig struct {
	Token     string  `yaml:"token" mapstructure:"token"`
	PipeID    string  `yaml:"pipe_id" mapstructure:"pipe_id"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// WordPressConfig points at the CMS. An empty base URL disables the CMS leg
// and the remote store directory.
type WordPressConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Token   string `yaml:"token" mapstructure:"token"`
}

// DirectoryConfig configures where store data comes from.
type DirectoryConfig struct {
	SeedFile string        `yaml:"seed_file" mapstructure:"seed_file"`
	CacheTTL time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

// CacheConfig selects the cache backend. Without a Redis URL the cache is in-process.
type CacheConfig struct {
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url"`
}

// RevalidateConfig holds the webhook shared secret.
type RevalidateConfig struct {
	Secret string `yaml:"secret" mapstructure:"secret"`
}

// IPGeoConfig configures caller geolocation for the store locator.
type IPGeoConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// LeadConfig tunes lead delivery.
type LeadConfig struct {
	UpstreamTimeout time.Duration `yaml:"upstream_timeout" mapstructure:"upstream_timeout"`
}

// BreakerConfig tunes the per-upstream circuit breakers.
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// JournalConfig configures the delivery failure journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Driver  string `yaml:"driver" mapstructure:"driver"`
	DSN     string `yaml:"dsn" mapstructure:"dsn"`
}

// Load reads configuration from .env, file and environment, in increasing
// order of precedence.
func Load() (*Config, error) {
	// Variables already set in the environment win over .env.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADAPI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.read_timeout_secs", 10)
	v.SetDefault("server.write_timeout_secs", 45)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("pipefy.base_url", "https://api.pipefy.com/graphql")
	v.SetDefault("pipefy.rate_limit", 5)
	v.SetDefault("directory.cache_ttl", 10*time.Minute)
	v.SetDefault("ipgeo.base_url", "https://ipapi.co")
	v.SetDefault("lead.upstream_timeout", 8*time.Second)
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.reset_timeout_secs", 30)
	v.SetDefault("journal.driver", "sqlite")
	v.SetDefault("journal.dsn", "lead-journal.db")

	// Keys without a default are only bound by AutomaticEnv once registered.
	for _, key := range []string{
		"pipefy.token", "pipefy.pipe_id", "wordpress.base_url", "wordpress.token",
		"directory.seed_file", "cache.redis_url", "revalidate.secret",
		"ipgeo.enabled", "journal.enabled",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, eris.Wrapf(err, "config: bind %s", key)
		}
	}

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be between 1 and 65535")
		}
		if c.Revalidate.Secret == "" {
			errs = append(errs, "revalidate.secret is required")
		}
		if c.Pipefy.Token != "" && c.Pipefy.PipeID == "" {
			errs = append(errs, "pipefy.pipe_id is required when pipefy.token is set")
		}
		if c.Lead.UpstreamTimeout <= 0 {
			errs = append(errs, "lead.upstream_timeout must be > 0")
		}
		if budget := lead.MaxSubmitDuration(c.Lead.UpstreamTimeout); c.Server.WriteTimeoutSecs > 0 &&
			time.Duration(c.Server.WriteTimeoutSecs)*time.Second <= budget {
			errs = append(errs, fmt.Sprintf("server.write_timeout_secs must exceed %s (3 x lead.upstream_timeout + journal writes)", budget))
		}
		if c.Breaker.FailureThreshold < 1 {
			errs = append(errs, "breaker.failure_threshold must be >= 1")
		}
		if c.Journal.Enabled {
			errs = append(errs, c.journalErrors()...)
		}
	case "stores":
		if c.WordPress.BaseURL == "" && c.Directory.SeedFile == "" {
			errs = append(errs, "wordpress.base_url or directory.seed_file is required")
		}
	case "journal":
		errs = append(errs, c.journalErrors()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) journalErrors() []string {
	var errs []string
	switch c.Journal.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, "journal.driver must be sqlite or postgres")
	}
	if c.Journal.DSN == "" {
		errs = append(errs, "journal.dsn is required")
	}
	return errs
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
