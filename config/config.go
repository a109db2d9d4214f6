// Package config handles service configuration loading.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	AI      AIConfig      `yaml:"ai"`
	Font    FontConfig    `yaml:"font"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host          string        `yaml:"host"`
	Port          int           `yaml:"port"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	CORSOrigins   []string      `yaml:"cors_origins"`
	EnableLogging bool          `yaml:"enable_logging"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig holds the blob store connection settings.
type StorageConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// AIConfig holds the suggestion model settings. An empty APIKey disables
// the suggestion endpoint.
type AIConfig struct {
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature *float64      `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// FontConfig names the TrueType file embedded into exports. An empty path
// selects the bundled default face.
type FontConfig struct {
	Path string `yaml:"path"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:          "0.0.0.0",
			Port:          8080,
			ReadTimeout:   30 * time.Second,
			WriteTimeout:  60 * time.Second,
			IdleTimeout:   120 * time.Second,
			CORSOrigins:   []string{"*"},
			EnableLogging: true,
		},
		Storage: StorageConfig{
			BaseURL: "http://localhost:9000",
			Timeout: 30 * time.Second,
		},
		AI: AIConfig{
			Model:     "anthropic/claude-3.5-sonnet",
			MaxTokens: 1024,
			Timeout:   2 * time.Minute,
		},
	}
}

// Load reads a YAML config file, layers it over the defaults, and applies
// environment overrides. A missing file is not an error; the defaults plus
// environment apply.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fall through to defaults
		case err != nil:
			return nil, fmt.Errorf("read config %q: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %q: %w", path, err)
			}
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// applyEnv lets deployment environments inject credentials without writing
// them into the config file.
func (c *Config) applyEnv() {
	if v := os.Getenv("PDFANO_STORAGE_URL"); v != "" {
		c.Storage.BaseURL = v
	}
	if v := os.Getenv("PDFANO_STORAGE_TOKEN"); v != "" {
		c.Storage.Token = v
	}
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		c.AI.APIKey = v
	}
	if v := os.Getenv("PDFANO_FONT_PATH"); v != "" {
		c.Font.Path = v
	}
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Storage.BaseURL == "" {
		return fmt.Errorf("storage base_url is required")
	}
	return nil
}
