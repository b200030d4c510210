// Package provider defines the contract for LLM answer synthesis.
// Retrieval produces the context; a Provider turns context plus question
// into a synthesized answer via an external model backend.
package provider

import "context"

// Request is a single synthesis request.
type Request struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Usage reports token accounting from the backend, when available.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Response is the synthesized answer.
type Response struct {
	Text  string
	Usage Usage
}

// Provider performs non-streaming inference against a model backend.
type Provider interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
	Close() error
}
