// Package config loads facetidx configuration from a yaml file, environment
// variables and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	// Root is the directory holding the chunk store and all indices.
	Root string `mapstructure:"root"`

	Chunker    ChunkerConfig   `mapstructure:"chunker"`
	Embedding  EmbeddingConfig `mapstructure:"embedding"`
	Documenter DocConfig       `mapstructure:"documenter"`
	Search     SearchConfig    `mapstructure:"search"`
}

// ChunkerConfig configures the external chunker process.
type ChunkerConfig struct {
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	Provider  string `mapstructure:"provider"`
	APIKey    string `mapstructure:"api_key"`
	CacheSize int    `mapstructure:"cache_size"`
}

// DocConfig configures the facet documenter.
type DocConfig struct {
	Model   string `mapstructure:"model"`
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// SearchConfig holds query defaults.
type SearchConfig struct {
	MaxHits  int     `mapstructure:"max_hits"`
	MinScore float64 `mapstructure:"min_score"`
}

// Load reads configuration from path (optional), FACETIDX_* environment
// variables and defaults, in ascending precedence of defaults < file < env.
func Load(path string) (*Config, error) {
	v := viper.New()

	home, _ := os.UserHomeDir()
	v.SetDefault("root", filepath.Join(home, ".facetidx"))
	v.SetDefault("chunker.command", "facetidx-chunker")
	v.SetDefault("embedding.cache_size", 10000)
	v.SetDefault("search.max_hits", 5)
	v.SetDefault("search.min_score", 0.7)

	v.SetEnvPrefix("FACETIDX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("facetidx")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home != "" {
			v.AddConfigPath(filepath.Join(home, ".config"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// API keys fall back to the conventional environment variables.
	if cfg.Documenter.APIKey == "" {
		cfg.Documenter.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	return &cfg, nil
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string
	if c.Root == "" {
		warnings = append(warnings, "root directory is empty")
	}
	if c.Chunker.Command == "" {
		warnings = append(warnings, "chunker.command is empty; ingestion will fail")
	}
	if c.Documenter.APIKey == "" {
		warnings = append(warnings, "documenter API key not set; ingestion will skip documentation")
	}
	if c.Search.MinScore < 0 || c.Search.MinScore > 1 {
		warnings = append(warnings, fmt.Sprintf("search.min_score %.2f outside [0,1]", c.Search.MinScore))
	}
	return warnings
}
