package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. .env files (.env, .env.local) loaded into the process environment
//  3. YAML config file (explicit path, RAGD_CONFIG env, ./config.yaml, /etc/ragd/config.yaml)
//  4. Environment variable overrides (RAGD_ prefix and legacy names)
//  5. File reference resolution (_file suffix)
//  6. Validation
func Load(configPath string) (*Config, error) {
	// Populate the environment from .env files first; values already set in
	// the environment win over the file contents.
	loadDotenv()

	// Start with defaults.
	cfg := Defaults()

	// Discover and load YAML config file.
	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	// Apply environment variable overrides.
	applyEnvOverrides(&cfg)

	// Resolve _file references.
	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	// Validate.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// loadDotenv loads .env files without overriding variables that are already
// set. Missing files are not an error.
func loadDotenv() {
	for _, path := range []string{".env", ".env.local"} {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
		}
	}
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. RAGD_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/ragd/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("RAGD_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/ragd/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps environment variables to config fields. The plain
// names (PORT, SOURCE_DIRS, OPENAI_API_KEY, ...) match the variables the
// original deployment shipped with; RAGD_* names are the structured form.
func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	// Legacy deployment variables.
	setString("HOST", &cfg.Server.Host)
	setInt("PORT", &cfg.Server.Port)
	setString("LOG_LEVEL", &cfg.Log.Level)
	setString("LLM_MODEL", &cfg.LLM.Model)
	setInt("MAX_TOKENS", &cfg.LLM.MaxTokens)
	setInt("TOP_K_RETRIEVAL", &cfg.Retrieval.TopK)
	setString("CHROMA_PERSIST_DIRECTORY", &cfg.Store.PersistDir)

	if v := os.Getenv("TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.LLM.Temperature = f
		}
	}
	if v := os.Getenv("SOURCE_DIRS"); v != "" {
		cfg.Sources.Dirs = splitAndTrim(v)
	}
	// OPENAI_API_KEY feeds both upstream clients unless overridden per-client.
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		if cfg.Embedding.APIKey == "" {
			cfg.Embedding.APIKey = v
		}
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = v
		}
	}

	// Structured RAGD_* variables.
	setString("RAGD_HOST", &cfg.Server.Host)
	setInt("RAGD_PORT", &cfg.Server.Port)
	setString("RAGD_LOG_LEVEL", &cfg.Log.Level)
	setString("RAGD_LOG_FORMAT", &cfg.Log.Format)
	setString("RAGD_STORE_TYPE", &cfg.Store.Type)
	setString("RAGD_PERSIST_DIR", &cfg.Store.PersistDir)
	setString("RAGD_COLLECTION", &cfg.Store.Collection)
	setString("RAGD_QDRANT_URL", &cfg.Store.Qdrant.URL)
	setString("RAGD_EMBEDDING_URL", &cfg.Embedding.URL)
	setString("RAGD_EMBEDDING_MODEL", &cfg.Embedding.Model)
	setString("RAGD_EMBEDDING_API_KEY", &cfg.Embedding.APIKey)
	setString("RAGD_LLM_URL", &cfg.LLM.URL)
	setString("RAGD_LLM_MODEL", &cfg.LLM.Model)
	setString("RAGD_LLM_API_KEY", &cfg.LLM.APIKey)
	setString("RAGD_CACHE_TYPE", &cfg.Cache.Type)
	setString("RAGD_REDIS_ADDR", &cfg.Cache.Redis.Addr)
	setString("RAGD_AUTH_TYPE", &cfg.Auth.Type)

	if v := os.Getenv("RAGD_SOURCE_DIRS"); v != "" {
		cfg.Sources.Dirs = splitAndTrim(v)
	}
	if v := os.Getenv("RAGD_REBUILD_ON_START"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Store.RebuildOnStart = b
		}
	}
}

// splitAndTrim splits a comma-separated list and drops empty entries.
func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// resolveFileReferences reads _file fields and populates the corresponding
// value fields. For each field ending in _file, if the value field is empty
// and the file field is set, the file is read, whitespace is trimmed, and
// the value field is populated.
func resolveFileReferences(cfg *Config) error {
	if cfg.Embedding.APIKeyFile != "" && cfg.Embedding.APIKey == "" {
		val, err := readSecretFile(cfg.Embedding.APIKeyFile)
		if err != nil {
			return fmt.Errorf("embedding.api_key_file: %w", err)
		}
		cfg.Embedding.APIKey = val
	}

	if cfg.LLM.APIKeyFile != "" && cfg.LLM.APIKey == "" {
		val, err := readSecretFile(cfg.LLM.APIKeyFile)
		if err != nil {
			return fmt.Errorf("llm.api_key_file: %w", err)
		}
		cfg.LLM.APIKey = val
	}

	for i := range cfg.Auth.APIKeys {
		if cfg.Auth.APIKeys[i].KeyFile != "" && cfg.Auth.APIKeys[i].Key == "" {
			val, err := readSecretFile(cfg.Auth.APIKeys[i].KeyFile)
			if err != nil {
				return fmt.Errorf("auth.api_keys[%d].key_file: %w", i, err)
			}
			cfg.Auth.APIKeys[i].Key = val
		}
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
