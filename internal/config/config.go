// Package config loads runtime configuration from an optional YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Workflows WorkflowsConfig `yaml:"workflows"`
	Overrides OverridesConfig `yaml:"overrides"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	LogLevel  string          `yaml:"log_level"`
	LogFormat string          `yaml:"log_format"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type StoreConfig struct {
	// Backend selects the session store: "memory" or "redis".
	Backend   string        `yaml:"backend"`
	RedisAddr string        `yaml:"redis_addr"`
	RedisDB   int           `yaml:"redis_db"`
	RedisPass string        `yaml:"redis_password"`
	TTL       time.Duration `yaml:"ttl"`

	// EncryptionKey, when set, enables AES-256 at-rest encryption of stored
	// sessions. Base64-encoded 32-byte key.
	EncryptionKey string `yaml:"encryption_key"`

	// MaskFields are regex patterns; matching customer fields and case
	// extras are redacted before a session is persisted.
	MaskFields []string `yaml:"mask_fields"`
}

type WorkflowsConfig struct {
	Dir          string        `yaml:"dir"`
	Watch        bool          `yaml:"watch"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type OverridesConfig struct {
	Path string `yaml:"path"`
}

type PipelineConfig struct {
	HopLimit            int     `yaml:"hop_limit"`
	FailureThreshold    int     `yaml:"failure_threshold"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
}

// Load reads the named YAML file (skipped when missing) and applies
// environment overrides on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 5 * time.Second,
		},
		Store: StoreConfig{
			Backend:   "memory",
			RedisAddr: "localhost:6379",
			TTL:       24 * time.Hour,
		},
		Workflows: WorkflowsConfig{
			Dir:          "workflows",
			Watch:        false,
			PollInterval: 2 * time.Second,
		},
		Overrides: OverridesConfig{
			Path: "data/overrides.json",
		},
		Pipeline: PipelineConfig{
			HopLimit:            3,
			FailureThreshold:    2,
			ConfidenceThreshold: 0.6,
		},
		LogLevel:  "info",
		LogFormat: "text",
	}

	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	// Override from environment
	if v := os.Getenv("RESOLVD_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("RESOLVD_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("RESOLVD_REDIS_ADDR"); v != "" {
		cfg.Store.RedisAddr = v
	}
	if v := os.Getenv("RESOLVD_REDIS_PASSWORD"); v != "" {
		cfg.Store.RedisPass = v
	}
	if v := os.Getenv("RESOLVD_ENCRYPTION_KEY"); v != "" {
		cfg.Store.EncryptionKey = v
	}
	if v := os.Getenv("RESOLVD_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Store.RedisDB = db
		}
	}
	if v := os.Getenv("RESOLVD_WORKFLOWS_DIR"); v != "" {
		cfg.Workflows.Dir = v
	}
	if v := os.Getenv("RESOLVD_OVERRIDES_PATH"); v != "" {
		cfg.Overrides.Path = v
	}
	if v := os.Getenv("RESOLVD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("RESOLVD_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg, nil
}
