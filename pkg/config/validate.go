package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be in (0, 65535], got %d", c.Server.Port))
	}

	if len(c.Sources.Dirs) == 0 {
		errs = append(errs, fmt.Errorf("sources.dirs must list at least one directory"))
	}
	if len(c.Sources.Extensions) == 0 {
		errs = append(errs, fmt.Errorf("sources.extensions must list at least one extension"))
	}

	switch c.Store.Type {
	case "local":
		if c.Store.PersistDir == "" {
			errs = append(errs, fmt.Errorf("store.persist_dir is required when store.type is \"local\""))
		}
	case "qdrant":
		if c.Store.Qdrant.URL == "" {
			errs = append(errs, fmt.Errorf("store.qdrant.url is required when store.type is \"qdrant\""))
		}
	default:
		errs = append(errs, fmt.Errorf("store.type must be \"local\" or \"qdrant\", got %q", c.Store.Type))
	}

	if c.Embedding.URL == "" {
		errs = append(errs, fmt.Errorf("embedding.url is required"))
	}
	if c.Embedding.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("embedding.batch_size must be > 0, got %d", c.Embedding.BatchSize))
	}
	if c.Embedding.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("embedding.concurrency must be > 0, got %d", c.Embedding.Concurrency))
	}

	if c.LLM.URL == "" {
		errs = append(errs, fmt.Errorf("llm.url is required"))
	}
	if c.LLM.Temperature < 0.0 || c.LLM.Temperature > 2.0 {
		errs = append(errs, fmt.Errorf("llm.temperature must be between 0.0 and 2.0, got %g", c.LLM.Temperature))
	}

	if c.Retrieval.TopK <= 0 {
		errs = append(errs, fmt.Errorf("retrieval.top_k must be > 0, got %d", c.Retrieval.TopK))
	}
	if c.Retrieval.MaxTopK > 0 && c.Retrieval.TopK > c.Retrieval.MaxTopK {
		errs = append(errs, fmt.Errorf("retrieval.top_k %d exceeds retrieval.max_top_k %d", c.Retrieval.TopK, c.Retrieval.MaxTopK))
	}
	if c.Retrieval.SimilarityCutoff < 0.0 || c.Retrieval.SimilarityCutoff > 1.0 {
		errs = append(errs, fmt.Errorf("retrieval.similarity_cutoff must be between 0.0 and 1.0, got %g", c.Retrieval.SimilarityCutoff))
	}

	switch c.Cache.Type {
	case "none", "memory", "redis":
		// valid
	default:
		errs = append(errs, fmt.Errorf("cache.type must be \"none\", \"memory\", or \"redis\", got %q", c.Cache.Type))
	}
	if c.Cache.Type == "redis" && c.Cache.Redis.Addr == "" {
		errs = append(errs, fmt.Errorf("cache.redis.addr is required when cache.type is \"redis\""))
	}

	switch c.Auth.Type {
	case "none":
		// valid
	case "apikey":
		if len(c.Auth.APIKeys) == 0 {
			errs = append(errs, fmt.Errorf("auth.api_keys must list at least one key when auth.type is \"apikey\""))
		}
	default:
		errs = append(errs, fmt.Errorf("auth.type must be \"none\" or \"apikey\", got %q", c.Auth.Type))
	}

	switch c.Log.Format {
	case "text", "json":
		// valid
	default:
		errs = append(errs, fmt.Errorf("log.format must be \"text\" or \"json\", got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}
