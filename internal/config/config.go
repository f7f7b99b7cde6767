// Package config loads the application configuration from file, environment
// and defaults, and initializes the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/geocoder-cli/pkg/geocode"
)

// Config holds the full application configuration.
type Config struct {
	CacheFile            string  `yaml:"cache_file" mapstructure:"cache_file"`
	ReadCache            bool    `yaml:"read_cache" mapstructure:"read_cache"`
	WriteCache           bool    `yaml:"write_cache" mapstructure:"write_cache"`
	Service              string  `yaml:"service" mapstructure:"service"`
	Email                string  `yaml:"email" mapstructure:"email"`
	Application          string  `yaml:"application" mapstructure:"application"`
	Delay                float64 `yaml:"delay" mapstructure:"delay"`
	QueryTemplate        string  `yaml:"query_template" mapstructure:"query_template"`
	ExtraQueryParameters string  `yaml:"extra_query_parameters" mapstructure:"extra_query_parameters"`

	Batch BatchConfig  `yaml:"batch" mapstructure:"batch"`
	Serve ServerConfig `yaml:"serve" mapstructure:"serve"`
	Log   LogConfig    `yaml:"log" mapstructure:"log"`
}

// BatchConfig configures batch geocoding.
type BatchConfig struct {
	Concurrency int     `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
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

// Load reads configuration from ./config.yaml (optional) and GEOCODE_*
// environment variables, mirroring the session option keys.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GEOCODE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	defaults := geocode.DefaultOptions()
	v.SetDefault("cache_file", defaults.CacheFile)
	v.SetDefault("read_cache", true)
	v.SetDefault("write_cache", true)
	v.SetDefault("service", defaults.Service)
	// Empty defaults keep these keys known to viper; Unmarshal only sees
	// AutomaticEnv values for keys it already knows about.
	v.SetDefault("email", "")
	v.SetDefault("application", defaults.Application)
	v.SetDefault("delay", 1.0)
	v.SetDefault("query_template", "")
	v.SetDefault("extra_query_parameters", "")
	v.SetDefault("batch.concurrency", 4)
	v.SetDefault("batch.rate_limit", 0.0)
	v.SetDefault("serve.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

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

// SessionOptions converts the configuration to geocoding session options.
func (c *Config) SessionOptions() geocode.Options {
	return geocode.Options{
		CacheFile:            c.CacheFile,
		ReadCache:            c.ReadCache,
		WriteCache:           c.WriteCache,
		Service:              c.Service,
		Email:                c.Email,
		Application:          c.Application,
		Delay:                time.Duration(c.Delay * float64(time.Second)),
		QueryTemplate:        c.QueryTemplate,
		ExtraQueryParameters: c.ExtraQueryParameters,
	}
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
