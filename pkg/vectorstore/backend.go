// Package vectorstore defines the pluggable interface for vector databases
// and the shared record/match types. All vector compute beyond the local
// brute-force store happens externally; implementations abstract the
// specific vector DB.
package vectorstore

import (
	"context"
	"errors"
)

// ErrCollectionNotFound is returned when an operation targets a collection
// that does not exist in the backend.
var ErrCollectionNotFound = errors.New("vectorstore: collection not found")

// Record is a single chunk with its embedding, ready for upsert.
type Record struct {
	ID       string            `json:"id"`
	Vector   []float32         `json:"vector"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Match is a single nearest-neighbor search result.
type Match struct {
	ID       string
	Score    float32
	Content  string
	Metadata map[string]string
}

// Backend is the pluggable interface for vector databases.
type Backend interface {
	// CreateCollection creates a new vector collection with the given name
	// and dimensions. Creating an existing collection resets it.
	CreateCollection(ctx context.Context, name string, dimensions int) error

	// DeleteCollection removes a vector collection by name.
	DeleteCollection(ctx context.Context, name string) error

	// Upsert inserts or replaces records in the named collection.
	Upsert(ctx context.Context, collection string, records []Record) error

	// Search performs a nearest-neighbor search in the named collection.
	// Results are ordered by descending similarity score.
	Search(ctx context.Context, collection string, vector []float32, limit int) ([]Match, error)

	// Count returns the number of records in the named collection.
	Count(ctx context.Context, collection string) (int, error)

	// HealthCheck verifies the backend is reachable and functional.
	HealthCheck(ctx context.Context) error

	// Close releases connections and resources.
	Close() error
}

// Persister is implemented by backends that keep state in process memory
// and need an explicit flush to durable storage. The pipeline calls
// Persist once after each completed build rather than per upsert batch.
type Persister interface {
	Persist(ctx context.Context, collection string) error
}
