// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/rigrun-web/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete rigrun-web configuration.
type Config struct {
	// Server settings
	Server ServerConfig `toml:"server"`

	// Chat settings (storage and seeding)
	Chat ChatConfig `toml:"chat"`

	// Provider holds the default model-provider settings. Sessions may
	// override these at runtime via the settings form.
	Provider ProviderConfig `toml:"provider"`

	// Session settings
	Session SessionConfig `toml:"session"`
}

// ServerConfig contains the HTTP listener configuration.
type ServerConfig struct {
	// Host is the listen address (default: 127.0.0.1)
	Host string `toml:"host"`
	// Port is the listen port (default: 8000)
	Port int `toml:"port"`
}

// ChatConfig contains conversation storage configuration.
type ChatConfig struct {
	// Dir is the directory for conversation JSON files
	// Default: ~/.rigrun-web/chats
	Dir string `toml:"dir"`
	// SystemPrompt seeds every new conversation
	SystemPrompt string `toml:"system_prompt"`
	// TitleLength is the sidebar title length in runes (default: 40)
	TitleLength int `toml:"title_length"`
}

// ProviderConfig contains model-provider settings for the completion
// client. All three fields have working defaults for a local
// OpenAI-compatible server (LM Studio, llama.cpp, llamafile).
type ProviderConfig struct {
	// Model is the model identifier passed to the provider
	Model string `toml:"model"`
	// APIBase is the OpenAI-compatible API base URL
	APIBase string `toml:"api_base"`
	// APIKey is sent as a bearer token; local servers accept any value
	APIKey string `toml:"api_key"`
}

// SessionConfig contains browser session configuration.
type SessionConfig struct {
	// Key authenticates session cookies. Empty means a random key is
	// generated at startup (sessions reset when the process restarts).
	Key string `toml:"key"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8000,
		},
		Chat: ChatConfig{
			Dir:          "", // resolved to ~/.rigrun-web/chats in SetDefaults
			SystemPrompt: "You are a helpful assistant.",
			TitleLength:  40,
		},
		Provider: ProviderConfig{
			Model:   "openai/local",
			APIBase: "http://localhost:1234/v1", // LM Studio default
			APIKey:  "dummy",
		},
		Session: SessionConfig{},
	}
}

// SetDefaults fills in any zero values with defaults.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Server.Host == "" {
		c.Server.Host = defaults.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaults.Server.Port
	}
	if c.Chat.Dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.Chat.Dir = filepath.Join(home, ".rigrun-web", "chats")
		} else {
			c.Chat.Dir = "chats"
		}
	}
	if c.Chat.SystemPrompt == "" {
		c.Chat.SystemPrompt = defaults.Chat.SystemPrompt
	}
	if c.Chat.TitleLength <= 0 {
		c.Chat.TitleLength = defaults.Chat.TitleLength
	}
	if c.Provider.Model == "" {
		c.Provider.Model = defaults.Provider.Model
	}
	if c.Provider.APIBase == "" {
		c.Provider.APIBase = defaults.Provider.APIBase
	}
	if c.Provider.APIKey == "" {
		c.Provider.APIKey = defaults.Provider.APIKey
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if !strings.HasPrefix(c.Provider.APIBase, "http://") && !strings.HasPrefix(c.Provider.APIBase, "https://") {
		return fmt.Errorf("invalid api_base: %q", c.Provider.APIBase)
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies RIGRUN_WEB_* environment variables over the
// loaded configuration. Environment always wins over the file.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("RIGRUN_WEB_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("RIGRUN_WEB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("RIGRUN_WEB_CHAT_DIR"); v != "" {
		c.Chat.Dir = v
	}
	if v := os.Getenv("RIGRUN_WEB_MODEL"); v != "" {
		c.Provider.Model = v
	}
	if v := os.Getenv("RIGRUN_WEB_API_BASE"); v != "" {
		c.Provider.APIBase = v
	}
	if v := os.Getenv("RIGRUN_WEB_API_KEY"); v != "" {
		c.Provider.APIKey = v
	}
	if v := os.Getenv("RIGRUN_WEB_SESSION_KEY"); v != "" {
		c.Session.Key = v
	}
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// ConfigPath returns the default TOML config file path.
func ConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".rigrun-web", "config.toml"), nil
}

// Load loads configuration from the default config file, falling back
// to defaults if it does not exist. Environment overrides apply last.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		cfg := Default()
		cfg.ApplyEnvOverrides()
		cfg.SetDefaults()
		return cfg, cfg.Validate()
	}
	if _, statErr := os.Stat(path); statErr != nil {
		cfg := Default()
		cfg.ApplyEnvOverrides()
		cfg.SetDefaults()
		return cfg, cfg.Validate()
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific TOML file with full
// validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode TOML file %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// SaveToPath saves the configuration to a TOML file atomically.
func SaveToPath(cfg *Config, path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode TOML: %w", err)
	}
	return util.AtomicWriteFile(path, buf.Bytes(), 0600)
}
