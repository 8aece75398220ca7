// Package config loads pathfinder settings from ~/.pathfinder/config.toml
// and PF_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/pathfinder/internal/application"
	"github.com/bnema/pathfinder/internal/cache"
	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"
)

const (
	BackendSupabase = "supabase"
	BackendLocal    = "local"

	configDir  = ".pathfinder"
	configName = "config"
	envPrefix  = "PF"

	// ConfigFileEnv points at an explicit config file.
	ConfigFileEnv = "PF_CONFIG"
)

type Config struct {
	// Backend is empty until Load picks one: supabase when a remote URL is
	// configured, local otherwise.
	Backend string        `mapstructure:"backend"`
	Remote  RemoteConfig  `mapstructure:"remote"`
	Local   LocalConfig   `mapstructure:"local"`
	Slots   SlotsConfig   `mapstructure:"slots"`
	Session SessionConfig `mapstructure:"session"`
	Cache   CacheConfig   `mapstructure:"cache"`
	OAuth   OAuthConfig   `mapstructure:"oauth"`
	Log     LogConfig     `mapstructure:"log"`
}

type RemoteConfig struct {
	URL     string `mapstructure:"url" env:"PF_REMOTE_URL"`
	AnonKey string `mapstructure:"anon_key" env:"PF_REMOTE_ANON_KEY"`
}

type LocalConfig struct {
	Path string `mapstructure:"path"`
}

type SlotsConfig struct {
	Root       string `mapstructure:"root"`
	PreferPass bool   `mapstructure:"prefer_pass"`
	PassPrefix string `mapstructure:"pass_prefix"`
}

type SessionConfig struct {
	ResolveTimeout time.Duration `mapstructure:"resolve_timeout"`
}

type CacheConfig struct {
	StaleTime         time.Duration `mapstructure:"stale_time"`
	DetailStaleTime   time.Duration `mapstructure:"detail_stale_time"`
	AttemptsStaleTime time.Duration `mapstructure:"attempts_stale_time"`
	GCTime            time.Duration `mapstructure:"gc_time"`
	GCInterval        time.Duration `mapstructure:"gc_interval"`
	RetryAttempts     uint          `mapstructure:"retry_attempts"`
	RetryInitial      time.Duration `mapstructure:"retry_initial"`
	RetryMax          time.Duration `mapstructure:"retry_max"`
}

type OAuthConfig struct {
	ListenAddr string        `mapstructure:"listen_addr"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// SlogLevel parses Level, falling back to warn.
func (c LogConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.Level))); err != nil {
		return slog.LevelWarn
	}
	return level
}

// Load reads the config file (a missing file is fine), applies PF_* overrides
// and validates the result. v is populated as a side effect so adapters that
// read viper keys directly see the same values.
func Load(v *viper.Viper) (Config, error) {
	if v == nil {
		v = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf("resolve home directory: %w", err)
	}
	setDefaults(v, homeDir)

	if explicit := os.Getenv(ConfigFileEnv); explicit != "" {
		v.SetConfigFile(explicit)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("toml")
		v.AddConfigPath(filepath.Join(homeDir, configDir))
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	var remote RemoteConfig
	if err := env.Parse(&remote); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if remote.URL != "" {
		cfg.Remote.URL = remote.URL
	}
	if remote.AnonKey != "" {
		cfg.Remote.AnonKey = remote.AnonKey
	}

	if cfg.Backend == "" {
		cfg.Backend = BackendLocal
		if cfg.Remote.URL != "" {
			cfg.Backend = BackendSupabase
		}
	}
	v.Set("backend", cfg.Backend)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, homeDir string) {
	v.SetDefault("backend", "")
	v.SetDefault("remote.url", "")
	v.SetDefault("remote.anon_key", "")
	v.SetDefault("local.path", filepath.Join(homeDir, configDir, "data.toml"))
	v.SetDefault("slots.root", filepath.Join(homeDir, configDir, "slots"))
	v.SetDefault("slots.prefer_pass", false)
	v.SetDefault("slots.pass_prefix", "pathfinder")
	v.SetDefault("session.resolve_timeout", application.DefaultResolveTimeout)
	v.SetDefault("cache.stale_time", cache.DefaultStaleTime)
	v.SetDefault("cache.detail_stale_time", application.DefaultDetailStaleTime)
	v.SetDefault("cache.attempts_stale_time", application.DefaultAttemptsStaleTime)
	v.SetDefault("cache.gc_time", cache.DefaultGCTime)
	v.SetDefault("cache.gc_interval", time.Minute)
	v.SetDefault("cache.retry_attempts", cache.DefaultRetryAttempts)
	v.SetDefault("cache.retry_initial", cache.DefaultRetryInitial)
	v.SetDefault("cache.retry_max", cache.DefaultRetryMax)
	v.SetDefault("oauth.listen_addr", "127.0.0.1:0")
	v.SetDefault("oauth.timeout", 5*time.Minute)
	v.SetDefault("log.level", "warn")
}

func (c Config) Validate() error {
	switch c.Backend {
	case BackendLocal:
		if strings.TrimSpace(c.Local.Path) == "" {
			return errors.New("local.path is required for the local backend")
		}
	case BackendSupabase:
		if strings.TrimSpace(c.Remote.URL) == "" {
			return errors.New("remote url is required for the supabase backend (set PF_REMOTE_URL)")
		}
		if strings.TrimSpace(c.Remote.AnonKey) == "" {
			return errors.New("remote anon key is required for the supabase backend (set PF_REMOTE_ANON_KEY)")
		}
	default:
		return fmt.Errorf("unsupported backend %q", c.Backend)
	}

	if c.Session.ResolveTimeout <= 0 {
		return errors.New("session.resolve_timeout must be positive")
	}
	if c.Cache.RetryAttempts == 0 {
		return errors.New("cache.retry_attempts must be at least 1")
	}
	if c.Cache.GCTime < c.Cache.StaleTime {
		return fmt.Errorf("cache.gc_time (%s) must not be shorter than cache.stale_time (%s)", c.Cache.GCTime, c.Cache.StaleTime)
	}
	return nil
}

// CoreOptions maps the settings onto the application core.
func (c Config) CoreOptions() application.CoreOptions {
	return application.CoreOptions{
		Cache: cache.Options{
			StaleTime:     c.Cache.StaleTime,
			GCTime:        c.Cache.GCTime,
			RetryAttempts: c.Cache.RetryAttempts,
			RetryInitial:  c.Cache.RetryInitial,
			RetryMax:      c.Cache.RetryMax,
		},
		Staleness: application.Staleness{
			Detail:   c.Cache.DetailStaleTime,
			Attempts: c.Cache.AttemptsStaleTime,
		},
		Identity:   application.IdentityOptions{ResolveTimeout: c.Session.ResolveTimeout},
		GCInterval: c.Cache.GCInterval,
	}
}
