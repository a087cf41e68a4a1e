package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/zoobzio/railz/examples/registration"
)

// Config is the CLI configuration. Values come from the defaults, then the
// YAML file, then RAILZ_* environment variables, then flags.
type Config struct {
	Store    StoreConfig          `yaml:"store"`
	Server   ServerConfig         `yaml:"server"`
	LogLevel string               `yaml:"log_level" validate:"oneof=debug info warn error"`
	Seed     []registration.Input `yaml:"seed" validate:"dive"`
	Workflow WorkflowConfig       `yaml:"workflow"`
}

// StoreConfig selects the user store.
type StoreConfig struct {
	Driver string `yaml:"driver" validate:"required,oneof=memory sqlite"`
	DSN    string `yaml:"dsn" validate:"required_if=Driver sqlite"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `yaml:"addr" validate:"required,hostname_port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
}

// WorkflowConfig tunes registration runs.
type WorkflowConfig struct {
	// Concurrency bounds concurrent field checks; 0 runs them all at once.
	Concurrency int `yaml:"concurrency" validate:"gte=0,lte=64"`
	// Timeout bounds a single registration; 0 disables it.
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

var validate = validator.New()

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Store:    StoreConfig{Driver: "memory"},
		Server:   ServerConfig{Addr: "localhost:8080", ShutdownTimeout: 10 * time.Second},
		LogLevel: "info",
		Workflow: WorkflowConfig{Timeout: 5 * time.Second},
	}
}

// LoadConfig builds the configuration from path, when set, and the
// environment.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	cfg.Store.Driver = getEnvOrDefault("RAILZ_STORE_DRIVER", cfg.Store.Driver)
	cfg.Store.DSN = getEnvOrDefault("RAILZ_STORE_DSN", cfg.Store.DSN)
	cfg.Server.Addr = getEnvOrDefault("RAILZ_ADDR", cfg.Server.Addr)
	cfg.LogLevel = getEnvOrDefault("RAILZ_LOG_LEVEL", cfg.LogLevel)

	if v := os.Getenv("RAILZ_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RAILZ_CONCURRENCY: %w", err)
		}
		cfg.Workflow.Concurrency = n
	}
	if v := os.Getenv("RAILZ_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid RAILZ_TIMEOUT: %w", err)
		}
		cfg.Workflow.Timeout = d
	}
	return nil
}

// Validate checks every field against its rules.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
