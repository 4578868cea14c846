// Package config loads the flat YAML configuration file described in
// spec §6, then applies MASQUERADE_*-prefixed environment overrides on
// top, in the style of the corpus's environment-variable config loaders
// (2lar-b2/backend2/infrastructure/config/config.go).
package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/masquerade-labs/masquerade/internal/apperr"
)

// Config is the full set of recognized options (spec §6).
type Config struct {
	Log      string         `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
	HTTP     HTTPConfig     `yaml:"http"`
}

type DatabaseConfig struct {
	Redis  string      `yaml:"redis"`
	Prefix string      `yaml:"prefix"`
	Cache  CacheConfig `yaml:"cache"`
}

type CacheConfig struct {
	DurationSeconds int `yaml:"duration"`
}

type APIConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	// PBKDF2Iterations is the ambient-stack addition documented in
	// SPEC_FULL.md: spec.md hard-codes the weak default, this makes it
	// configurable per the DESIGN NOTES instruction.
	PBKDF2Iterations int `yaml:"pbkdf2_iterations"`
}

type HTTPConfig struct {
	Address   string `yaml:"address"`
	StaticDir string `yaml:"static_dir"`
}

// Defaults used when neither the file nor the environment set a value.
const (
	DefaultPrefix  = "masquerade"
	DefaultAddress = ":8080"
	DefaultLog     = "info"
)

// Load reads path (if non-empty and present) as YAML, then applies
// MASQUERADE_*-prefixed environment overrides, and validates the
// result.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Log: DefaultLog,
		Database: DatabaseConfig{
			Prefix: DefaultPrefix,
		},
		HTTP: HTTPConfig{
			Address: DefaultAddress,
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, apperr.Wrap(apperr.ConfigFailure, "failed to read config file", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, apperr.Wrap(apperr.ConfigFailure, "failed to parse config file", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.Log = getEnv("MASQUERADE_LOG", cfg.Log)
	cfg.Database.Redis = getEnv("MASQUERADE_DATABASE_REDIS", cfg.Database.Redis)
	cfg.Database.Prefix = getEnv("MASQUERADE_DATABASE_PREFIX", cfg.Database.Prefix)
	cfg.Database.Cache.DurationSeconds = getEnvInt("MASQUERADE_DATABASE_CACHE_DURATION", cfg.Database.Cache.DurationSeconds)
	cfg.API.JWTSecret = getEnv("MASQUERADE_API_JWT_SECRET", cfg.API.JWTSecret)
	cfg.API.PBKDF2Iterations = getEnvInt("MASQUERADE_API_PBKDF2_ITERATIONS", cfg.API.PBKDF2Iterations)
	cfg.HTTP.Address = getEnv("MASQUERADE_HTTP_ADDRESS", cfg.HTTP.Address)
	cfg.HTTP.StaticDir = getEnv("MASQUERADE_HTTP_STATIC_DIR", cfg.HTTP.StaticDir)
}

// Validate enforces the startup-time requirements implied by spec §7's
// ConfigFailure kind: a server with no backing store or no signing
// secret cannot run.
func (c *Config) Validate() error {
	if c.Database.Redis == "" {
		return apperr.New(apperr.ConfigFailure, "database.redis is required")
	}
	if c.API.JWTSecret == "" {
		return apperr.New(apperr.ConfigFailure, "api.jwt_secret is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}
