package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/klarsikt-ab/kartotek/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Resolution ResolutionConfig `yaml:"resolution" mapstructure:"resolution"`
	Blocking   BlockingConfig   `yaml:"blocking" mapstructure:"blocking"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Review     ReviewConfig     `yaml:"review" mapstructure:"review"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// ResolutionConfig holds the decision-policy thresholds. Validated and
// converted to a model.ResolutionConfig before use.
type ResolutionConfig struct {
	Version             int     `yaml:"version" mapstructure:"version"`
	AutoMatchThreshold  float64 `yaml:"auto_match_threshold" mapstructure:"auto_match_threshold"`
	ReviewMinThreshold  float64 `yaml:"human_review_min" mapstructure:"human_review_min"`
	AutoRejectThreshold float64 `yaml:"auto_reject_threshold" mapstructure:"auto_reject_threshold"`
	EdgeThreshold       float64 `yaml:"edge_threshold" mapstructure:"edge_threshold"`
	GroundTruthPath     string  `yaml:"ground_truth_path" mapstructure:"ground_truth_path"`
}

// Policy builds the validated threshold config the resolution engine takes.
func (r ResolutionConfig) Policy() (*model.ResolutionConfig, error) {
	return model.NewResolutionConfig(r.Version, r.AutoMatchThreshold, r.ReviewMinThreshold, r.AutoRejectThreshold, r.EdgeThreshold)
}

// BlockingConfig configures candidate generation and the resilience of the
// store lookups behind it.
type BlockingConfig struct {
	MaxCandidates    int     `yaml:"max_candidates" mapstructure:"max_candidates"`
	LookupRate       float64 `yaml:"lookup_rate" mapstructure:"lookup_rate"`
	RetryAttempts    int     `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBackoffMs   int     `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
	BreakerFailures  int     `yaml:"breaker_failures" mapstructure:"breaker_failures"`
	BreakerResetSecs int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// BatchConfig configures batch resolution.
type BatchConfig struct {
	Concurrency     int `yaml:"concurrency" mapstructure:"concurrency"`
	StepTimeoutSecs int `yaml:"step_timeout_secs" mapstructure:"step_timeout_secs"`
}

// ReviewConfig configures the human review gate.
type ReviewConfig struct {
	MinDurationSecs  int     `yaml:"min_duration_secs" mapstructure:"min_duration_secs"`
	AckThreshold     float64 `yaml:"ack_threshold" mapstructure:"ack_threshold"`
	JustifyThreshold float64 `yaml:"justify_threshold" mapstructure:"justify_threshold"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks that the configuration required by the given mode is
// present. Modes: "serve", "resolve", "migrate".
func (c *Config) Validate(mode string) error {
	var missing []string

	checkStore := func() {
		switch c.Store.Driver {
		case "postgres":
			if c.Store.DatabaseURL == "" {
				missing = append(missing, "store.database_url is required for the postgres driver")
			}
		case "sqlite":
			if c.Store.SQLitePath == "" {
				missing = append(missing, "store.sqlite_path is required for the sqlite driver")
			}
		case "memory":
		default:
			missing = append(missing, "store.driver must be one of postgres, sqlite, memory")
		}
	}

	checkThresholds := func() {
		if _, err := c.Resolution.Policy(); err != nil {
			missing = append(missing, err.Error())
		}
		if c.Blocking.MaxCandidates < 1 || c.Blocking.MaxCandidates > 500 {
			missing = append(missing, "blocking.max_candidates must be between 1 and 500")
		}
		if c.Batch.Concurrency < 1 || c.Batch.Concurrency > 64 {
			missing = append(missing, "batch.concurrency must be between 1 and 64")
		}
	}

	switch mode {
	case "serve":
		checkStore()
		checkThresholds()
		if c.Server.Port <= 0 {
			missing = append(missing, "server.port must be > 0")
		}
	case "resolve":
		checkStore()
		checkThresholds()
	case "migrate":
		checkStore()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.Errorf("config: invalid configuration:\n  - %s", strings.Join(missing, "\n  - "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("KARTOTEK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.sqlite_path", "kartotek.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("resolution.version", 1)
	v.SetDefault("resolution.auto_match_threshold", 0.90)
	v.SetDefault("resolution.human_review_min", 0.75)
	v.SetDefault("resolution.auto_reject_threshold", 0.70)
	v.SetDefault("resolution.edge_threshold", 0.90)
	v.SetDefault("resolution.ground_truth_path", "ground_truth.yaml")
	v.SetDefault("blocking.max_candidates", 50)
	v.SetDefault("blocking.lookup_rate", 200)
	v.SetDefault("blocking.retry_attempts", 3)
	v.SetDefault("blocking.retry_backoff_ms", 100)
	v.SetDefault("blocking.breaker_failures", 5)
	v.SetDefault("blocking.breaker_reset_secs", 10)
	v.SetDefault("batch.concurrency", 8)
	v.SetDefault("batch.step_timeout_secs", 5)
	v.SetDefault("review.min_duration_secs", 2)
	v.SetDefault("review.ack_threshold", 0.50)
	v.SetDefault("review.justify_threshold", 0.85)

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
