package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/charlesng35/vibefs/pkg/validator"
)

// Default values shared by the CLI and the serving daemon.
const (
	DefaultPort     = 17173
	DefaultBindHost = "0.0.0.0"
	DefaultURLHost  = "localhost"
	DefaultFileTTL  = 3600 // seconds
)

// Config represents the runtime configuration of vibefs.
type Config struct {
	BaseURL    string           `mapstructure:"base_url" validate:"omitempty,url"`
	FileTTL    int              `mapstructure:"file_ttl" validate:"gt=0"`
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Render     RenderConfig     `mapstructure:"render"`
	Daemon     DaemonConfig     `mapstructure:"daemon"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP daemon.
type ServerConfig struct {
	Port      int             `mapstructure:"port" validate:"min=1,max=65535"`
	Host      string          `mapstructure:"host" validate:"required"`
	LogLevel  string          `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig bounds requests per client and route within a fixed window. Zero disables it.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests" validate:"gte=0"`
	Window   time.Duration `mapstructure:"window" validate:"min=0s"`
}

// DatabaseConfig locates the authorization store. Path is used by the sqlite driver,
// DSN is required for postgres and mysql.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=sqlite postgres mysql"`
	Path   string `mapstructure:"path"`
	DSN    string `mapstructure:"dsn" validate:"required_unless=Driver sqlite"`
}

// RenderConfig controls how authorized files are presented.
type RenderConfig struct {
	Style       string `mapstructure:"style" validate:"required"`
	LineNumbers bool   `mapstructure:"line_numbers"`
	Markdown    bool   `mapstructure:"markdown"`
}

// DaemonConfig tunes the background process lifecycle.
type DaemonConfig struct {
	SweepInterval    time.Duration `mapstructure:"sweep_interval" validate:"min=1s"`
	SpawnGrace       time.Duration `mapstructure:"spawn_grace" validate:"min=0s"`
	ExpiredRetention time.Duration `mapstructure:"expired_retention" validate:"min=0s"`
}

// AuthConfig sizes the random tokens.
type AuthConfig struct {
	TokenBytes int `mapstructure:"token_bytes" validate:"min=4,max=32"`
}

// MonitoringConfig enables the metrics endpoint.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// DefaultTTL is file_ttl as a duration.
func (c *Config) DefaultTTL() time.Duration {
	return time.Duration(c.FileTTL) * time.Second
}

// LoadConfig reads config.yaml from the state directory, applies VIBEFS_* environment
// overrides and defaults, and validates the result.
func LoadConfig(paths Paths) (*Config, error) {
	v := viper.New()
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(paths.Dir)

	setDefaults(v)

	v.SetEnvPrefix("VIBEFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("database.path", "VIBEFS_DB", "VIBEFS_DATABASE_PATH"); err != nil {
		return nil, fmt.Errorf("config: bind env: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}
	applyLegacyKeys(v)

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	config.BaseURL = strings.TrimSpace(config.BaseURL)
	config.Database.Path = strings.TrimSpace(config.Database.Path)
	if config.Database.Path == "" {
		config.Database.Path = paths.Database
	}

	if err := validator.ValidateStruct(config); err != nil {
		return nil, fmt.Errorf("config: invalid: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("base_url", "")
	v.SetDefault("file_ttl", DefaultFileTTL)

	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.host", DefaultBindHost)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.rate_limit.requests", 120)
	v.SetDefault("server.rate_limit.window", "1m")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "")
	v.SetDefault("database.dsn", "")

	v.SetDefault("render.style", "monokai")
	v.SetDefault("render.line_numbers", false)
	v.SetDefault("render.markdown", false)

	v.SetDefault("daemon.sweep_interval", "60s")
	v.SetDefault("daemon.spawn_grace", "300ms")
	v.SetDefault("daemon.expired_retention", "0s")

	v.SetDefault("auth.token_bytes", 4)

	v.SetDefault("monitoring.prometheus.enabled", false)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
