// Package config provides unified configuration for the ragd service.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. .env files (for local development and containerized deployments)
//  3. YAML config file (discovered or explicitly specified)
//  4. Environment variable overrides (RAGD_ prefix plus legacy names)
//  5. File reference resolution (_file suffix fields)
//  6. Validation
package config

import "time"

// Config holds all configuration for the ragd service.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Sources       SourcesConfig       `yaml:"sources"`
	Store         StoreConfig         `yaml:"store"`
	Embedding     EmbeddingConfig     `yaml:"embedding"`
	LLM           LLMConfig           `yaml:"llm"`
	Retrieval     RetrievalConfig     `yaml:"retrieval"`
	Cache         CacheConfig         `yaml:"cache"`
	Auth          AuthConfig          `yaml:"auth"`
	Observability ObservabilityConfig `yaml:"observability"`
	Log           LogConfig           `yaml:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"`             // default: "" (all interfaces)
	Port            int           `yaml:"port"`             // default: 8000
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 120s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 30s
}

// SourcesConfig describes the read-only document directories to index.
type SourcesConfig struct {
	Dirs       []string `yaml:"dirs"`       // default: ["docs", "src"]
	Extensions []string `yaml:"extensions"` // default: [".py", ".md"]
}

// StoreConfig holds vector store settings.
type StoreConfig struct {
	Type           string       `yaml:"type"`             // "local" or "qdrant", default: "local"
	PersistDir     string       `yaml:"persist_dir"`      // default: "./vectorstore"
	Collection     string       `yaml:"collection"`       // default: "ragd_docs"
	RebuildOnStart bool         `yaml:"rebuild_on_start"` // default: false
	Qdrant         QdrantConfig `yaml:"qdrant"`
}

// QdrantConfig holds Qdrant-specific settings.
type QdrantConfig struct {
	URL string `yaml:"url"`
}

// EmbeddingConfig holds settings for the embedding backend.
type EmbeddingConfig struct {
	URL         string        `yaml:"url"`          // default: https://api.openai.com
	Model       string        `yaml:"model"`        // default: text-embedding-3-small
	APIKey      string        `yaml:"api_key"`      // optional
	APIKeyFile  string        `yaml:"api_key_file"` // _file variant for api_key
	BatchSize   int           `yaml:"batch_size"`   // default: 16
	Concurrency int           `yaml:"concurrency"`  // default: 4
	Timeout     time.Duration `yaml:"timeout"`      // default: 60s
}

// LLMConfig holds settings for the chat-completions backend used for
// answer synthesis.
type LLMConfig struct {
	URL         string        `yaml:"url"`          // default: https://api.openai.com
	Model       string        `yaml:"model"`        // default: gpt-4o-mini
	APIKey      string        `yaml:"api_key"`      // optional
	APIKeyFile  string        `yaml:"api_key_file"` // _file variant for api_key
	MaxTokens   int           `yaml:"max_tokens"`   // default: 1024
	Temperature float64       `yaml:"temperature"`  // default: 0.1
	Timeout     time.Duration `yaml:"timeout"`      // default: 120s
}

// RetrievalConfig holds query-time retrieval settings.
type RetrievalConfig struct {
	TopK             int     `yaml:"top_k"`             // default: 5
	SimilarityCutoff float64 `yaml:"similarity_cutoff"` // default: 0.7
	MaxTopK          int     `yaml:"max_top_k"`         // default: 50
}

// CacheConfig holds search-result cache settings.
type CacheConfig struct {
	Type   string            `yaml:"type"` // "none", "memory", or "redis", default: "none"
	TTL    time.Duration     `yaml:"ttl"`  // default: 5m
	Memory MemoryCacheConfig `yaml:"memory"`
	Redis  RedisCacheConfig  `yaml:"redis"`
}

// MemoryCacheConfig holds in-process cache settings.
type MemoryCacheConfig struct {
	MaxEntries int `yaml:"max_entries"` // default: 1024
}

// RedisCacheConfig holds Redis cache settings.
type RedisCacheConfig struct {
	Addr     string `yaml:"addr"` // default: localhost:6379
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	Type    string         `yaml:"type"`     // "none" or "apikey", default: "none"
	APIKeys []APIKeyConfig `yaml:"api_keys"` // API key entries for type=apikey
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key     string `yaml:"key"`
	KeyFile string `yaml:"key_file"` // _file variant for key
	Subject string `yaml:"subject"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// LogConfig holds structured logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error", default: "info"
	Format string `yaml:"format"` // "text" or "json", default: "text"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Sources: SourcesConfig{
			Dirs:       []string{"docs", "src"},
			Extensions: []string{".py", ".md"},
		},
		Store: StoreConfig{
			Type:       "local",
			PersistDir: "./vectorstore",
			Collection: "ragd_docs",
		},
		Embedding: EmbeddingConfig{
			URL:         "https://api.openai.com",
			Model:       "text-embedding-3-small",
			BatchSize:   16,
			Concurrency: 4,
			Timeout:     60 * time.Second,
		},
		LLM: LLMConfig{
			URL:         "https://api.openai.com",
			Model:       "gpt-4o-mini",
			MaxTokens:   1024,
			Temperature: 0.1,
			Timeout:     120 * time.Second,
		},
		Retrieval: RetrievalConfig{
			TopK:             5,
			SimilarityCutoff: 0.7,
			MaxTopK:          50,
		},
		Cache: CacheConfig{
			Type: "none",
			TTL:  5 * time.Minute,
			Memory: MemoryCacheConfig{
				MaxEntries: 1024,
			},
			Redis: RedisCacheConfig{
				Addr: "localhost:6379",
			},
		},
		Auth: AuthConfig{
			Type: "none",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
