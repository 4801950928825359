package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig           `mapstructure:"server"`
	Models    map[string]ModelConfig `mapstructure:"models"`
	Residency ResidencyConfig        `mapstructure:"residency"`
	Logging   LoggingConfig          `mapstructure:"logging"`
	Redis     RedisConfig            `mapstructure:"redis"`
}

type ServerConfig struct {
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	KeepAliveTimeout time.Duration `mapstructure:"keep_alive_timeout"`
}

// ModelConfig maps one resource key to the engine that loads it.
type ModelConfig struct {
	Engine  string `mapstructure:"engine"` // "worker" or "openai"
	ModelID string `mapstructure:"model_id"`

	// Worker engine.
	PythonBin string `mapstructure:"python_bin"`
	Script    string `mapstructure:"script"`
	Device    string `mapstructure:"device"`

	// OpenAI-compatible engine.
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Voice   string `mapstructure:"voice"`
}

type ResidencyConfig struct {
	UnloadTimeout time.Duration `mapstructure:"unload_timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"` // empty: stdout
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type RedisConfig struct {
	Addr      string        `mapstructure:"addr"` // empty: no audio cache
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	ResultTTL time.Duration `mapstructure:"result_ttl"`
}

// Load reads the YAML config file at path (or the default search locations
// when path is empty), applies TTSD_-prefixed env overrides, and validates
// the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("ttsd")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/ttsd")
	}

	v.SetEnvPrefix("TTSD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Minute)
	v.SetDefault("server.keep_alive_timeout", 120*time.Second)
	v.SetDefault("residency.unload_timeout", 180*time.Second)
	v.SetDefault("residency.sweep_interval", 10*time.Second)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
	v.SetDefault("redis.result_ttl", time.Hour)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	if len(c.Models) == 0 {
		return fmt.Errorf("config: at least one model must be configured")
	}
	for key, m := range c.Models {
		switch m.Engine {
		case "worker":
			if m.Script == "" {
				return fmt.Errorf("config: model %q: script is required for the worker engine", key)
			}
			if m.ModelID == "" {
				return fmt.Errorf("config: model %q: model_id is required", key)
			}
		case "openai":
			// APIKey may legitimately be empty for local
			// OpenAI-compatible servers.
		default:
			return fmt.Errorf("config: model %q: unknown engine %q", key, m.Engine)
		}
	}
	if c.Residency.UnloadTimeout <= 0 {
		return fmt.Errorf("config: residency.unload_timeout must be positive")
	}
	if c.Residency.SweepInterval <= 0 {
		return fmt.Errorf("config: residency.sweep_interval must be positive")
	}
	return nil
}
