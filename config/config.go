// Package config loads runtime configuration with layered precedence:
// built-in defaults, then a YAML file, then MCPFLOW_* environment
// variables, then programmatic overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LLMConfig selects and tunes the model provider.
type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Temperature float32       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
	Stream      bool          `yaml:"stream"`
}

// CacheConfig tunes the response cache.
type CacheConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Dir            string        `yaml:"dir"`
	MaxMemoryItems int           `yaml:"max_memory_items"`
	MemoryTTL      time.Duration `yaml:"memory_ttl"`
	DiskTTL        time.Duration `yaml:"disk_ttl"`
	UseDisk        bool          `yaml:"use_disk"`
	RedisAddr      string        `yaml:"redis_addr"`
	RedisTTL       time.Duration `yaml:"redis_ttl"`
}

// MemoryConfig bounds conversation memory.
type MemoryConfig struct {
	MaxMessages int           `yaml:"max_messages"`
	MessageTTL  time.Duration `yaml:"message_ttl"`
	VectorDim   int           `yaml:"vector_dim"`
}

// ToolsConfig bounds tool execution.
type ToolsConfig struct {
	StepTimeout time.Duration `yaml:"step_timeout"`
}

// Config is the full runtime configuration tree.
type Config struct {
	LLM      LLMConfig    `yaml:"llm"`
	Cache    CacheConfig  `yaml:"cache"`
	Memory   MemoryConfig `yaml:"memory"`
	Tools    ToolsConfig  `yaml:"tools"`
	LogLevel string       `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "openai",
			Temperature: 0,
			MaxTokens:   2048,
			Timeout:     30 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:        true,
			Dir:            "cache/models",
			MaxMemoryItems: 1000,
			MemoryTTL:      time.Hour,
			DiskTTL:        7 * 24 * time.Hour,
			UseDisk:        true,
		},
		Memory: MemoryConfig{
			MaxMessages: 100,
			VectorDim:   128,
		},
		Tools: ToolsConfig{
			StepTimeout: 60 * time.Second,
		},
		LogLevel: "info",
	}
}

// Override mutates a loaded config programmatically; overrides apply last.
type Override func(*Config)

// Load builds a config from defaults, the YAML file at path (skipped when
// path is empty or the file does not exist), MCPFLOW_* environment
// variables, and finally overrides.
func Load(path string, overrides ...Override) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// Missing file falls back to defaults.
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	for _, o := range overrides {
		o(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.LLM.Provider == "" {
		return fmt.Errorf("llm.provider must be set")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature %v out of range [0, 2]", c.LLM.Temperature)
	}
	if c.Memory.MaxMessages < 0 {
		return fmt.Errorf("memory.max_messages must not be negative")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}

func applyEnv(cfg *Config) {
	envString("MCPFLOW_LLM_PROVIDER", &cfg.LLM.Provider)
	envString("MCPFLOW_LLM_MODEL", &cfg.LLM.Model)
	envString("MCPFLOW_LLM_API_KEY", &cfg.LLM.APIKey)
	envString("MCPFLOW_LLM_BASE_URL", &cfg.LLM.BaseURL)
	envFloat32("MCPFLOW_LLM_TEMPERATURE", &cfg.LLM.Temperature)
	envInt("MCPFLOW_LLM_MAX_TOKENS", &cfg.LLM.MaxTokens)
	envDuration("MCPFLOW_LLM_TIMEOUT", &cfg.LLM.Timeout)
	envBool("MCPFLOW_LLM_STREAM", &cfg.LLM.Stream)

	envBool("MCPFLOW_CACHE_ENABLED", &cfg.Cache.Enabled)
	envString("MCPFLOW_CACHE_DIR", &cfg.Cache.Dir)
	envInt("MCPFLOW_CACHE_MAX_MEMORY_ITEMS", &cfg.Cache.MaxMemoryItems)
	envDuration("MCPFLOW_CACHE_MEMORY_TTL", &cfg.Cache.MemoryTTL)
	envDuration("MCPFLOW_CACHE_DISK_TTL", &cfg.Cache.DiskTTL)
	envBool("MCPFLOW_CACHE_USE_DISK", &cfg.Cache.UseDisk)
	envString("MCPFLOW_CACHE_REDIS_ADDR", &cfg.Cache.RedisAddr)
	envDuration("MCPFLOW_CACHE_REDIS_TTL", &cfg.Cache.RedisTTL)

	envInt("MCPFLOW_MEMORY_MAX_MESSAGES", &cfg.Memory.MaxMessages)
	envDuration("MCPFLOW_MEMORY_MESSAGE_TTL", &cfg.Memory.MessageTTL)
	envInt("MCPFLOW_MEMORY_VECTOR_DIM", &cfg.Memory.VectorDim)

	envDuration("MCPFLOW_TOOLS_STEP_TIMEOUT", &cfg.Tools.StepTimeout)

	envString("MCPFLOW_LOG_LEVEL", &cfg.LogLevel)
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func envBool(key string, dst *bool) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envInt(key string, dst *int) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat32(key string, dst *float32) {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			*dst = float32(f)
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
