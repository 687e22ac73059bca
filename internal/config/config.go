// Package config loads application configuration and initializes logging.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database" mapstructure:"database"`
	Geocode   GeocodeConfig   `yaml:"geocode" mapstructure:"geocode"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Jobs      JobsConfig      `yaml:"jobs" mapstructure:"jobs"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// DatabaseConfig configures the Postgres/PostGIS backend.
type DatabaseConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
}

// GeocodeConfig configures the geocoding providers.
type GeocodeConfig struct {
	Providers        []string `yaml:"providers" mapstructure:"providers"`
	GoogleAPIKey     string   `yaml:"google_api_key" mapstructure:"google_api_key"`
	NominatimBaseURL string   `yaml:"nominatim_base_url" mapstructure:"nominatim_base_url"`
	NominatimEmail   string   `yaml:"nominatim_email" mapstructure:"nominatim_email"`
	CensusRPS        float64  `yaml:"census_rps" mapstructure:"census_rps"`
	TimeoutSecs      int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// CacheConfig configures the geocode result cache.
type CacheConfig struct {
	Driver     string `yaml:"driver" mapstructure:"driver"`           // "postgres" or "sqlite"
	SQLitePath string `yaml:"sqlite_path" mapstructure:"sqlite_path"` // used when driver = "sqlite"
}

// JobsConfig configures batch job execution.
type JobsConfig struct {
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size"`
}

// ServerConfig configures the job-control HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BOUNDARY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("jobs.batch_size", 100)
	v.SetDefault("cache.driver", "postgres")
	v.SetDefault("cache.sqlite_path", "geocode_cache.db")
	v.SetDefault("geocode.providers", []string{"census"})
	v.SetDefault("geocode.nominatim_base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.census_rps", 50)
	v.SetDefault("geocode.timeout_secs", 30)

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
