// Package config loads application configuration from file and
// environment and owns global logger setup.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fairview-ems/aoi-grader/internal/grading"
	"github.com/fairview-ems/aoi-grader/internal/report"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Grading GradingConfig `yaml:"grading" mapstructure:"grading"`
	Report  ReportConfig  `yaml:"report" mapstructure:"report"`
}

// StoreConfig configures the grading-run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the grading API server.
type ServerConfig struct {
	Port      int     `yaml:"port" mapstructure:"port"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// GradingConfig configures the grading engine defaults.
type GradingConfig struct {
	KSeverity float64 `yaml:"k_severity" mapstructure:"k_severity"`

	// PolicyFile optionally points at a YAML gap-discount curve;
	// the built-in curve is used when empty.
	PolicyFile string `yaml:"policy_file" mapstructure:"policy_file"`

	// IgnorePhrases drop FI reject entries whose stated reason is
	// unrelated to AOI-detectable defects (e.g. "Missing Coating").
	IgnorePhrases []string `yaml:"ignore_phrases" mapstructure:"ignore_phrases"`
}

// ReportConfig configures report file parsing and the AOI+FI join.
type ReportConfig struct {
	Columns   report.Columns `yaml:"columns" mapstructure:"columns"`
	JobColumn string         `yaml:"job_column" mapstructure:"job_column"`
	Sheet     string         `yaml:"sheet" mapstructure:"sheet"`
	Encoding  string         `yaml:"encoding" mapstructure:"encoding"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("AOIGRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "aoi-grader.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 10)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("grading.k_severity", grading.DefaultSeverity)

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

// GapDiscount resolves the configured gap-discount policy.
func (c GradingConfig) GapDiscount() (grading.GapDiscountPolicy, error) {
	if c.PolicyFile == "" {
		return grading.DefaultGapDiscount(), nil
	}
	return grading.LoadTierPolicy(c.PolicyFile)
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
