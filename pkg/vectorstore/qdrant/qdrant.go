// Package qdrant implements vectorstore.Backend using the Qdrant HTTP API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/animadocs/ragd/pkg/vectorstore"
)

// Backend talks to a Qdrant instance over HTTP.
type Backend struct {
	baseURL    string
	httpClient *http.Client
}

// Compile-time check that Backend implements vectorstore.Backend.
var _ vectorstore.Backend = (*Backend)(nil)

// New creates a Backend that communicates with Qdrant via HTTP.
func New(url string) *Backend {
	return &Backend{
		baseURL:    strings.TrimRight(url, "/"),
		httpClient: &http.Client{},
	}
}

// CreateCollection creates (or recreates) a vector collection in Qdrant.
// PUT /collections/{name} with {"vectors": {"size": dims, "distance": "Cosine"}}
func (q *Backend) CreateCollection(ctx context.Context, name string, dimensions int) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimensions,
			"distance": "Cosine",
		},
	}
	return q.do(ctx, http.MethodPut, "/collections/"+name, body, nil)
}

// DeleteCollection removes a vector collection from Qdrant.
// DELETE /collections/{name}
func (q *Backend) DeleteCollection(ctx context.Context, name string) error {
	return q.do(ctx, http.MethodDelete, "/collections/"+name, nil, nil)
}

// qdrantPoint is one point in an upsert request. Qdrant requires point IDs
// to be unsigned integers or UUIDs, so the record ID travels in the payload.
type qdrantPoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// Upsert inserts or replaces points in the named collection.
// PUT /collections/{name}/points with {"points": [...]}
func (q *Backend) Upsert(ctx context.Context, collection string, records []vectorstore.Record) error {
	points := make([]qdrantPoint, 0, len(records))
	for _, r := range records {
		payload := map[string]any{
			"document_id": r.ID,
			"content":     r.Content,
		}
		for k, v := range r.Metadata {
			payload[k] = v
		}
		points = append(points, qdrantPoint{
			// Derive a stable UUID from the record ID so re-upserts replace
			// rather than duplicate.
			ID:      uuid.NewSHA1(uuid.NameSpaceOID, []byte(r.ID)).String(),
			Vector:  r.Vector,
			Payload: payload,
		})
	}

	body := map[string]any{"points": points}
	return q.do(ctx, http.MethodPut, "/collections/"+collection+"/points?wait=true", body, nil)
}

// qdrantSearchResponse represents Qdrant's search response.
type qdrantSearchResponse struct {
	Result []qdrantSearchResult `json:"result"`
}

type qdrantSearchResult struct {
	ID      any            `json:"id"`
	Score   float32        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// Search performs a nearest-neighbor search in the named collection.
// POST /collections/{name}/points/search
func (q *Backend) Search(ctx context.Context, collection string, vector []float32, limit int) ([]vectorstore.Match, error) {
	body := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}

	var searchResp qdrantSearchResponse
	if err := q.do(ctx, http.MethodPost, "/collections/"+collection+"/points/search", body, &searchResp); err != nil {
		return nil, err
	}

	matches := make([]vectorstore.Match, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		match := vectorstore.Match{
			ID:       fmt.Sprintf("%v", r.ID),
			Score:    r.Score,
			Metadata: make(map[string]string),
		}
		for k, v := range r.Payload {
			s, ok := v.(string)
			if !ok {
				continue
			}
			switch k {
			case "content":
				match.Content = s
			case "document_id":
				match.ID = s
			default:
				match.Metadata[k] = s
			}
		}
		matches = append(matches, match)
	}

	return matches, nil
}

// qdrantCountResponse represents Qdrant's point count response.
type qdrantCountResponse struct {
	Result struct {
		Count int `json:"count"`
	} `json:"result"`
}

// Count returns the exact number of points in the named collection.
// POST /collections/{name}/points/count
func (q *Backend) Count(ctx context.Context, collection string) (int, error) {
	var countResp qdrantCountResponse
	err := q.do(ctx, http.MethodPost, "/collections/"+collection+"/points/count",
		map[string]any{"exact": true}, &countResp)
	if err != nil {
		return 0, err
	}
	return countResp.Result.Count, nil
}

// HealthCheck verifies the Qdrant instance is reachable.
func (q *Backend) HealthCheck(ctx context.Context) error {
	return q.do(ctx, http.MethodGet, "/collections", nil, nil)
}

// Close is a no-op; the backend holds no persistent connections.
func (q *Backend) Close() error { return nil }

// do executes one Qdrant HTTP request, encoding body as JSON when non-nil
// and decoding the response into out when non-nil.
func (q *Backend) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling qdrant request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating qdrant request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading qdrant response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return vectorstore.ErrCollectionNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("qdrant %s %s returned status %d: %s", method, path, resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("parsing qdrant response: %w", err)
		}
	}
	return nil
}
