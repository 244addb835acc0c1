// Package config loads taskboard settings from TASKBOARD_* environment
// variables, an optional YAML file and command line flags.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"taskboard/remote"
	"taskboard/session"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "TASKBOARD"

// Config is the merged configuration.
type Config struct {
	APIURL       string          `mapstructure:"api_url"`
	Timeout      time.Duration   `mapstructure:"timeout"`
	Profile      string          `mapstructure:"profile"`
	SessionFile  string          `mapstructure:"session_file"`
	RedisURL     string          `mapstructure:"redis_url"`
	LoadAttempts int             `mapstructure:"load_attempts"`
	LoadBackoff  time.Duration   `mapstructure:"load_backoff"`
	Log          LogConfig       `mapstructure:"log"`
	Dashboard    DashboardConfig `mapstructure:"dashboard"`
	DevServer    DevServerConfig `mapstructure:"devserver"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DashboardConfig configures the local board service.
type DashboardConfig struct {
	Listen string `mapstructure:"listen"`
}

// DevServerConfig configures the in-memory task service. When JWKSURL is set
// tokens are verified against it instead of the shared secret.
type DevServerConfig struct {
	Listen   string        `mapstructure:"listen"`
	Secret   string        `mapstructure:"secret"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
	JWKSURL  string        `mapstructure:"jwks_url"`
	Issuer   string        `mapstructure:"issuer"`
}

// FlagBindings maps configuration keys to the flag names that override them.
var FlagBindings = map[string]string{
	"api_url":      "api-url",
	"profile":      "profile",
	"session_file": "session-file",
	"redis_url":    "redis-url",
	"log.level":    "log-level",
	"log.format":   "log-format",
	"timeout":      "timeout",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_url", remote.DefaultBaseURL)
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("profile", "default")
	v.SetDefault("session_file", session.DefaultPath())
	v.SetDefault("redis_url", "")
	v.SetDefault("load_attempts", 3)
	v.SetDefault("load_backoff", 500*time.Millisecond)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("dashboard.listen", "127.0.0.1:8080")
	v.SetDefault("devserver.listen", "127.0.0.1:8000")
	v.SetDefault("devserver.secret", "")
	v.SetDefault("devserver.token_ttl", 30*time.Minute)
	v.SetDefault("devserver.jwks_url", "")
	v.SetDefault("devserver.issuer", "")
}

// Load merges defaults, the YAML file at path (if any), the environment and
// flags, in increasing order of precedence. extra binds additional keys to
// flags, e.g. "dashboard.listen" to "listen".
func Load(path string, flags *pflag.FlagSet, extra map[string]string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if flags != nil {
		for _, bindings := range []map[string]string{FlagBindings, extra} {
			for key, name := range bindings {
				f := flags.Lookup(name)
				if f == nil {
					continue
				}
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if vite := strings.TrimSpace(os.Getenv("VITE_API_URL")); vite != "" && !apiURLOverridden(v, path, flags) {
		// VITE_API_URL names the gateway root, without the /api suffix.
		cfg.APIURL = strings.TrimRight(vite, "/") + "/api"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func apiURLOverridden(v *viper.Viper, path string, flags *pflag.FlagSet) bool {
	if os.Getenv(EnvPrefix+"_API_URL") != "" {
		return true
	}
	if path != "" && v.InConfig("api_url") {
		return true
	}
	if flags == nil {
		return false
	}
	f := flags.Lookup(FlagBindings["api_url"])
	return f != nil && f.Changed
}

// Validate checks values that would only fail later at first use.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid api url %q", c.APIURL)
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be greater than zero")
	}
	if c.LoadAttempts <= 0 {
		return errors.New("load_attempts must be greater than zero")
	}
	if c.LoadBackoff < 0 {
		return errors.New("load_backoff must not be negative")
	}
	return nil
}
