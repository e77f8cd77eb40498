package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the server settings. Values come from the yaml file when
// present, then environment variables override the sensitive ones.
type Config struct {
	Env string `yaml:"env"`

	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`

	Reconciliation struct {
		IntervalSeconds int `yaml:"interval_seconds"`
	} `yaml:"reconciliation"`
}

// Load reads the config file at path, falling back to defaults when the
// file does not exist, and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if cfg.Reconciliation.IntervalSeconds <= 0 {
		cfg.Reconciliation.IntervalSeconds = 300
	}

	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{Env: "development"}
	cfg.Server.Port = "8080"
	cfg.Database.Path = "marketplace.db"
	cfg.Auth.JWTSecret = "marketplace-secret-key"
	cfg.Reconciliation.IntervalSeconds = 300
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ENV"); v != "" {
		cfg.Env = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
}

// ReconcileInterval returns the audit interval as a duration.
func (c *Config) ReconcileInterval() time.Duration {
	return time.Duration(c.Reconciliation.IntervalSeconds) * time.Second
}
