package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// serverConfig is the daemon-level configuration. Values come from an
// optional YAML file named by --config / AUTHD_CONFIG, overridden by
// AUTHD_* environment variables.
type serverConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	// DatabaseURL selects the principal store: a Postgres DSN when set, an
	// in-memory store when empty.
	DatabaseURL string `mapstructure:"database_url"`

	JWTSecret  string        `mapstructure:"jwt_secret"`
	AccessTTL  time.Duration `mapstructure:"access_ttl"`
	RefreshTTL time.Duration `mapstructure:"refresh_ttl"`

	AdminEmail    string `mapstructure:"admin_email"`
	AdminPassword string `mapstructure:"admin_password"`

	AuditLog       bool `mapstructure:"audit_log"`
	MetricsEnabled bool `mapstructure:"metrics_enabled"`

	LogLevel string `mapstructure:"log_level"`
}

func loadConfig(configFile string) (*serverConfig, error) {
	v := viper.New()

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_db", 0)
	v.SetDefault("access_ttl", 30*time.Minute)
	v.SetDefault("refresh_ttl", 7*24*time.Hour)
	v.SetDefault("audit_log", true)
	v.SetDefault("metrics_enabled", true)
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix("authd")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg serverConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required (AUTHD_JWT_SECRET)")
	}

	return &cfg, nil
}
