// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	DB     string       `yaml:"db" mapstructure:"db"`
	Data   DataConfig   `yaml:"data" mapstructure:"data"`
	Lookup LookupConfig `yaml:"lookup" mapstructure:"lookup"`
	Oracle OracleConfig `yaml:"oracle" mapstructure:"oracle"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// DataConfig locates the raw study tables and the report output directory.
type DataConfig struct {
	RawDir    string `yaml:"raw_dir" mapstructure:"raw_dir"`
	ReportDir string `yaml:"report_dir" mapstructure:"report_dir"`
}

// LookupConfig configures the variant annotation lookup service.
type LookupConfig struct {
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	Assembly   string `yaml:"assembly" mapstructure:"assembly"`
	BatchSize  int    `yaml:"batch_size" mapstructure:"batch_size"`
	ThrottleMS int    `yaml:"throttle_ms" mapstructure:"throttle_ms"`
}

// OracleConfig configures the effect-prediction service.
type OracleConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	Workers int    `yaml:"workers" mapstructure:"workers"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. The config file is
// optional; the oracle API key usually arrives via QTLEVAL_ORACLE_API_KEY.
// The global viper instance is used so the config subcommand sees the same
// state.
func Load() (*Config, error) {
	v := viper.GetViper()

	v.SetConfigName("qtl-eval")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME")

	v.SetEnvPrefix("QTLEVAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("db", "results/qtl-eval.duckdb")
	v.SetDefault("data.raw_dir", "data/raw")
	v.SetDefault("data.report_dir", "results/tables")
	v.SetDefault("lookup.base_url", "https://myvariant.info")
	v.SetDefault("lookup.assembly", "hg38")
	v.SetDefault("lookup.batch_size", 100)
	v.SetDefault("lookup.throttle_ms", 500)
	// Empty defaults register the keys so AutomaticEnv can fill them.
	v.SetDefault("oracle.base_url", "")
	v.SetDefault("oracle.api_key", "")
	v.SetDefault("oracle.workers", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
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
		return fmt.Errorf("parse log level: %w", err)
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	zap.ReplaceGlobals(logger)

	return nil
}
