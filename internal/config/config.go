// Package config loads agent settings from defaults, an optional YAML file
// and AGT_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/petasbytes/chatloop/internal/provider"
	"github.com/petasbytes/chatloop/runner"
)

// Defaults for settings that are not provided.
const (
	DefaultConversationPath = ".agent/conversations"
	DefaultConversationID   = "default"
	DefaultListenAddr       = ":8080"
)

// Config is the effective agent configuration.
type Config struct {
	Provider         string `yaml:"provider"`
	Model            string `yaml:"model"`
	BaseURL          string `yaml:"base_url"`
	RunLoopLimit     int    `yaml:"run_loop_limit"`
	MaxParallelTools int    `yaml:"max_parallel_tools"`
	// TokenBudget enables send-window trimming when > 0.
	TokenBudget  int    `yaml:"token_budget"`
	Stream       bool   `yaml:"stream"`
	SystemPrompt string `yaml:"system_prompt"`
	// ConversationPath is the directory of <conversation_id>.json files.
	ConversationPath string `yaml:"conversation_path"`
	ConversationID   string `yaml:"conversation_id"`
	RedisURL         string `yaml:"redis_url"`
	NATSURL          string `yaml:"nats_url"`
	ListenAddr       string `yaml:"listen_addr"`
	LogLevel         string `yaml:"log_level"`
	ReadRoot         string `yaml:"read_root"`
	WriteRoot        string `yaml:"write_root"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Provider:         provider.NameAnthropic,
		RunLoopLimit:     runner.DefaultRunLoopLimit,
		Stream:           true,
		ConversationPath: DefaultConversationPath,
		ConversationID:   DefaultConversationID,
		ListenAddr:       DefaultListenAddr,
		LogLevel:         "info",
	}
}

// Load returns the defaults overlaid with the YAML file at path (skipped when
// path is empty or the file does not exist) and then AGT_* variables.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	switch c.Provider {
	case provider.NameAnthropic, provider.NameOpenAI:
	default:
		return fmt.Errorf("config: unknown provider %q", c.Provider)
	}
	if c.RunLoopLimit < 0 {
		return fmt.Errorf("config: run_loop_limit must be >= 0, got %d", c.RunLoopLimit)
	}
	if c.MaxParallelTools < 0 {
		return fmt.Errorf("config: max_parallel_tools must be >= 0, got %d", c.MaxParallelTools)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"AGT_PROVIDER":          &cfg.Provider,
		"AGT_MODEL":             &cfg.Model,
		"AGT_BASE_URL":          &cfg.BaseURL,
		"AGT_SYSTEM_PROMPT":     &cfg.SystemPrompt,
		"AGT_CONVERSATION_PATH": &cfg.ConversationPath,
		"AGT_CONVERSATION_ID":   &cfg.ConversationID,
		"AGT_REDIS_URL":         &cfg.RedisURL,
		"AGT_NATS_URL":          &cfg.NATSURL,
		"AGT_LISTEN_ADDR":       &cfg.ListenAddr,
		"AGT_LOG_LEVEL":         &cfg.LogLevel,
		"AGT_READ_ROOT":         &cfg.ReadRoot,
		"AGT_WRITE_ROOT":        &cfg.WriteRoot,
	}
	for key, dst := range strs {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"AGT_RUN_LOOP_LIMIT":     &cfg.RunLoopLimit,
		"AGT_MAX_PARALLEL_TOOLS": &cfg.MaxParallelTools,
		"AGT_TOKEN_BUDGET":       &cfg.TokenBudget,
	}
	for key, dst := range ints {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		*dst = n
	}

	if v := strings.TrimSpace(os.Getenv("AGT_STREAM")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: AGT_STREAM: %w", err)
		}
		cfg.Stream = b
	}
	return nil
}
