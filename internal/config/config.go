// Package config loads urengine configuration from YAML files and URE_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/yourusername/urengine/pkg/engine"
)

// Config holds all configuration for the application
type Config struct {
	Engine EngineConfig `mapstructure:"engine" yaml:"engine"`
	AIs    []AIConfig   `mapstructure:"ais" yaml:"ais"`
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

// EngineConfig holds simulation settings
type EngineConfig struct {
	NumPieces     int    `mapstructure:"num_pieces" yaml:"num_pieces"`
	Workers       int    `mapstructure:"workers" yaml:"workers"`
	Seed          uint64 `mapstructure:"seed" yaml:"seed"`
	RolloutTrials int    `mapstructure:"rollout_trials" yaml:"rollout_trials"`
	MaxTrials     int    `mapstructure:"max_trials" yaml:"max_trials"` // Cap on trials or budget a request may ask for
	DefaultAI     string `mapstructure:"default_ai" yaml:"default_ai"`
}

// AIConfig adds or overrides one AI personality. Set Budget and Baseline for
// a Monte Carlo AI, Weights for a scoring AI.
type AIConfig struct {
	Name     string             `mapstructure:"name" yaml:"name"`
	Weights  map[string]float64 `mapstructure:"weights" yaml:"weights,omitempty"`
	Budget   int                `mapstructure:"budget" yaml:"budget,omitempty"`
	Baseline string             `mapstructure:"baseline" yaml:"baseline,omitempty"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host           string        `mapstructure:"host" yaml:"host"`
	Port           int           `mapstructure:"port" yaml:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	MaxFastWorkers int           `mapstructure:"max_fast_workers" yaml:"max_fast_workers"`
	MaxSlowWorkers int           `mapstructure:"max_slow_workers" yaml:"max_slow_workers"`
	CacheSize      int           `mapstructure:"cache_size" yaml:"cache_size"` // negative disables
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // console or json
}

// Definitions converts the configured AIs for the engine registry
func (c *Config) Definitions() []engine.AIDefinition {
	defs := make([]engine.AIDefinition, len(c.AIs))
	for i, a := range c.AIs {
		defs[i] = engine.AIDefinition{
			Name:     a.Name,
			Weights:  a.Weights,
			Budget:   a.Budget,
			Baseline: a.Baseline,
		}
	}
	return defs
}

// setViperDefaults sets all default values using Viper's SetDefault
func setViperDefaults(v *viper.Viper) {
	// Engine defaults
	v.SetDefault("engine.num_pieces", engine.DefaultPieces)
	v.SetDefault("engine.workers", 0)
	v.SetDefault("engine.seed", 0)
	v.SetDefault("engine.rollout_trials", engine.DefaultTrials)
	v.SetDefault("engine.max_trials", 100000)
	v.SetDefault("engine.default_ai", "#AI_KFE521S3")

	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.max_fast_workers", 100)
	v.SetDefault("server.max_slow_workers", 4)
	v.SetDefault("server.cache_size", 4096)

	// Logging defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Manager owns the loaded configuration and reloads it when the file changes.
type Manager struct {
	v *viper.Viper

	mu  sync.RWMutex
	cfg *Config
}

// Load reads configuration from configPath, or from config.yaml in ".",
// "./config" or "/etc/urengine" when configPath is empty. A missing file is
// not an error; defaults and environment variables still apply.
func Load(configPath string) (*Manager, error) {
	v := viper.New()

	// Set defaults before loading any config
	setViperDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/urengine")
	}

	v.SetEnvPrefix("URE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Config file not found; use defaults
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	return &Manager{v: v, cfg: cfg}, nil
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Get returns the current configuration. Callers must not modify it.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// ConfigFilePath returns the path of the loaded config file
func (m *Manager) ConfigFilePath() string {
	return m.v.ConfigFileUsed()
}

// Reload re-reads the config file. The previous configuration is kept if the
// new one is invalid.
func (m *Manager) Reload() (*Config, error) {
	if err := m.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	cfg, err := decode(m.v)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	return cfg, nil
}

// Watch enables hot-reloading of the config file. onChange receives the new
// configuration, or the error that kept it from loading.
func (m *Manager) Watch(onChange func(*Config, error)) {
	m.v.OnConfigChange(func(fsnotify.Event) {
		cfg, err := m.Reload()
		if onChange != nil {
			onChange(cfg, err)
		}
	})
	m.v.WatchConfig()
}

// Dump writes the effective configuration as YAML
func (m *Manager) Dump(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m.Get()); err != nil {
		return err
	}
	return enc.Close()
}

// Validate validates the configuration values
func Validate(c *Config) error {
	if c.Engine.NumPieces < 1 || c.Engine.NumPieces > engine.MaxPieces {
		return fmt.Errorf("engine.num_pieces must be between 1 and %d", engine.MaxPieces)
	}
	if c.Engine.Workers < 0 {
		return fmt.Errorf("engine.workers must be non-negative")
	}
	if c.Engine.RolloutTrials <= 0 {
		return fmt.Errorf("engine.rollout_trials must be positive")
	}
	if c.Engine.MaxTrials < c.Engine.RolloutTrials {
		return fmt.Errorf("engine.max_trials must be at least engine.rollout_trials")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535")
	}
	if c.Server.MaxFastWorkers < 0 || c.Server.MaxSlowWorkers < 0 {
		return fmt.Errorf("server worker limits must be non-negative")
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}

	// Personalities are checked by building them into a scratch registry
	if len(c.AIs) > 0 {
		if err := engine.DefaultRegistry().Define(c.Definitions()); err != nil {
			return fmt.Errorf("ais: %w", err)
		}
	}
	return nil
}
