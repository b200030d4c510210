package api

import (
	"fmt"
	"strings"
)

// ValidationConfig holds configurable limits for request validation.
type ValidationConfig struct {
	MaxQuerySize int
	MaxTopK      int
}

// DefaultValidationConfig returns a ValidationConfig with sensible defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxQuerySize: 32 * 1024,
		MaxTopK:      50,
	}
}

// ValidateQuery checks a QueryRequest for validity. It returns an *APIError
// describing the first validation failure, or nil if the request is valid.
func ValidateQuery(req *QueryRequest, cfg ValidationConfig) *APIError {
	if strings.TrimSpace(req.Query) == "" {
		return NewInvalidRequestError("query", "query cannot be empty")
	}

	if cfg.MaxQuerySize > 0 && len(req.Query) > cfg.MaxQuerySize {
		return NewInvalidRequestError("query",
			fmt.Sprintf("query exceeds maximum of %d bytes", cfg.MaxQuerySize))
	}

	if req.TopK != nil {
		if err := validateTopK(*req.TopK, cfg); err != nil {
			return err
		}
	}

	return nil
}

// ValidateSearch checks the q and top_k parameters of GET /search. A
// topK of zero means the parameter was omitted and the server default
// applies.
func ValidateSearch(q string, topK int, cfg ValidationConfig) *APIError {
	if strings.TrimSpace(q) == "" {
		return NewInvalidRequestError("q", "query parameter 'q' cannot be empty")
	}
	if topK == 0 {
		return nil
	}
	return validateTopK(topK, cfg)
}

func validateTopK(topK int, cfg ValidationConfig) *APIError {
	if topK <= 0 {
		return NewInvalidRequestError("top_k", "top_k must be positive")
	}
	if cfg.MaxTopK > 0 && topK > cfg.MaxTopK {
		return NewInvalidRequestError("top_k",
			fmt.Sprintf("top_k exceeds maximum of %d", cfg.MaxTopK))
	}
	return nil
}
