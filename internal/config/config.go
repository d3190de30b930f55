// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all pipeline configuration knobs loaded via Viper.
type Config struct {
	DB         DBConfig         `mapstructure:"db"`
	Provider   ProviderConfig   `mapstructure:"provider"`
	Discovery  DiscoveryConfig  `mapstructure:"discovery"`
	Enrichment EnrichmentConfig `mapstructure:"enrichment"`
	Status     StatusConfig     `mapstructure:"status"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// DBConfig controls access to the Postgres store.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxConns     int32  `mapstructure:"max_conns"`
	MinConns     int32  `mapstructure:"min_conns"`
	AutoMigrate  bool   `mapstructure:"auto_migrate"`
	PingTimeoutS int    `mapstructure:"ping_timeout_seconds"`
}

// ProviderConfig holds credentials and limits for the listing/review provider.
type ProviderConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	Login          string `mapstructure:"login"`
	Password       string `mapstructure:"password"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// DiscoveryConfig governs the discovery worker.
type DiscoveryConfig struct {
	MinRating   float64 `mapstructure:"min_rating"`
	MaxResults  int     `mapstructure:"max_results"`
	Concurrency int     `mapstructure:"concurrency"`
}

// EnrichmentConfig governs the review enrichment worker.
type EnrichmentConfig struct {
	BatchSize           int `mapstructure:"batch_size"`
	ReviewLimit         int `mapstructure:"review_limit"`
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"`
	MaxPollAttempts     int `mapstructure:"max_poll_attempts"`
}

// StatusConfig bounds the status report output.
type StatusConfig struct {
	FailedSample int `mapstructure:"failed_sample"`
}

// MetricsConfig toggles the Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LoggingConfig controls the zap logger mode and level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BIZDIR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// AutomaticEnv only surfaces keys viper already knows about during
	// Unmarshal. The secrets have no defaults, so they need explicit
	// bindings for env-only configuration to work.
	for _, key := range []string{"db.dsn", "provider.login", "provider.password"} {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.auto_migrate", true)
	v.SetDefault("db.ping_timeout_seconds", 5)
	v.SetDefault("provider.base_url", "https://api.businesslistings.io")
	v.SetDefault("provider.timeout_seconds", 30)
	v.SetDefault("discovery.min_rating", 4.0)
	v.SetDefault("discovery.max_results", 20)
	v.SetDefault("discovery.concurrency", 10)
	v.SetDefault("enrichment.batch_size", 10)
	v.SetDefault("enrichment.review_limit", 30)
	v.SetDefault("enrichment.poll_interval_seconds", 30)
	v.SetDefault("enrichment.max_poll_attempts", 10)
	v.SetDefault("status.failed_sample", 10)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9190")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
// Anything it rejects is a setup failure: the process must exit
// before claiming or writing any work.
func (c Config) Validate() error {
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required")
	}
	if c.Provider.Login == "" || c.Provider.Password == "" {
		return fmt.Errorf("provider.login and provider.password are required")
	}
	if c.Provider.TimeoutSeconds <= 0 {
		return fmt.Errorf("provider.timeout_seconds must be > 0")
	}
	if c.Discovery.MaxResults <= 0 {
		return fmt.Errorf("discovery.max_results must be > 0")
	}
	if c.Discovery.Concurrency <= 0 {
		return fmt.Errorf("discovery.concurrency must be > 0")
	}
	if c.Enrichment.BatchSize <= 0 {
		return fmt.Errorf("enrichment.batch_size must be > 0")
	}
	if c.Enrichment.PollIntervalSeconds <= 0 {
		return fmt.Errorf("enrichment.poll_interval_seconds must be > 0")
	}
	if c.Enrichment.MaxPollAttempts <= 0 {
		return fmt.Errorf("enrichment.max_poll_attempts must be > 0")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr must be set when metrics are enabled")
	}
	return nil
}

// ProviderTimeout converts the provider timeout config into a duration.
func (c Config) ProviderTimeout() time.Duration {
	return time.Duration(c.Provider.TimeoutSeconds) * time.Second
}

// PollInterval converts the enrichment poll interval config into a duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Enrichment.PollIntervalSeconds) * time.Second
}
