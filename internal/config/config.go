// Package config provides configuration loading and structs for the kotae service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Cache     CacheConfig     `yaml:"cache"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Storage   StorageConfig   `yaml:"storage"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// PipelineConfig holds orchestrator settings.
type PipelineConfig struct {
	// SimilarityThreshold is the minimum normalized similarity score (0-1)
	// for treating two queries as semantically equivalent.
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	MaxSources          int     `yaml:"max_sources"`
	RunTimeoutSeconds   int     `yaml:"run_timeout_seconds"`
}

// CacheConfig holds answer cache settings.
type CacheConfig struct {
	// Backend selects the cache store: "sqlite", "redis", or "memory".
	Backend  string      `yaml:"backend"`
	TTLHours int         `yaml:"ttl_hours"`
	Redis    RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis connection settings for the redis cache backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// EmbeddingConfig holds remote embedder settings.
type EmbeddingConfig struct {
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	APIKeyEnv  string `yaml:"api_key_env"`
	CacheSize  int    `yaml:"cache_size"`
}

// LLMConfig holds chat completion settings for the classifier and synthesizer.
type LLMConfig struct {
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	APIKeyEnv      string `yaml:"api_key_env"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// RetrievalConfig holds search backend and page fetch settings.
type RetrievalConfig struct {
	// Backends is the ordered fallback chain; known values: "duckduckgo", "bing".
	Backends              []string `yaml:"backends"`
	BackendTimeoutSeconds int      `yaml:"backend_timeout_seconds"`
	FetchTimeoutSeconds   int      `yaml:"fetch_timeout_seconds"`
	FetchConcurrency      int      `yaml:"fetch_concurrency"`
	UserAgent             string   `yaml:"user_agent"`
	BingEndpoint          string   `yaml:"bing_endpoint"`
	BingAPIKeyEnv         string   `yaml:"bing_api_key_env"`
}

// StorageConfig holds paths for the answer database and the query vector index.
type StorageConfig struct {
	DatabasePath    string `yaml:"database_path"`
	VectorIndexPath string `yaml:"vector_index_path"`
}

// RunTimeout returns the overall per-run timeout as a duration.
func (p *PipelineConfig) RunTimeout() time.Duration {
	return time.Duration(p.RunTimeoutSeconds) * time.Second
}

// TTL returns the cache TTL as a duration.
func (c *CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// BackendTimeout returns the per-backend retrieval timeout as a duration.
func (r *RetrievalConfig) BackendTimeout() time.Duration {
	return time.Duration(r.BackendTimeoutSeconds) * time.Second
}

// FetchTimeout returns the per-page fetch timeout as a duration.
func (r *RetrievalConfig) FetchTimeout() time.Duration {
	return time.Duration(r.FetchTimeoutSeconds) * time.Second
}

// Timeout returns the LLM request timeout as a duration.
func (l *LLMConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutSeconds) * time.Second
}

// APIKey reads the LLM API key from the configured environment variable.
func (l *LLMConfig) APIKey() string {
	return os.Getenv(l.APIKeyEnv)
}

// APIKey reads the embedding API key from the configured environment variable.
func (e *EmbeddingConfig) APIKey() string {
	return os.Getenv(e.APIKeyEnv)
}

// BingAPIKey reads the Bing subscription key from the configured environment variable.
func (r *RetrievalConfig) BingAPIKey() string {
	return os.Getenv(r.BingAPIKeyEnv)
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.VectorIndexPath = expandPath(cfg.Storage.VectorIndexPath, configDir)

	return &cfg, nil
}

// Default returns a config with all defaults applied, for running without a config file.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
