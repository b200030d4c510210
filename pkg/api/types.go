// Package api defines the request and response types of the ragd HTTP
// surface, request validation, and the structured error model shared by
// the transport and pipeline layers.
package api

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	// Query is the free-text question or search phrase.
	Query string `json:"query"`

	// RetrieveOnly skips LLM synthesis and returns raw retrieved chunks.
	RetrieveOnly bool `json:"retrieve_only,omitempty"`

	// TopK overrides the configured retrieval count for this request.
	TopK *int `json:"top_k,omitempty"`
}

// RetrievedChunk is one retrieved unit of a document with its similarity
// score and rank. In synthesis responses the content is omitted and only
// the source metadata and score are reported.
type RetrievedChunk struct {
	Content  string            `json:"content,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Filename string            `json:"filename,omitempty"`
	Path     string            `json:"path,omitempty"`
	Score    float32           `json:"score"`
	Rank     int               `json:"rank,omitempty"`
}

// QueryMetadata carries bookkeeping about a query response.
type QueryMetadata struct {
	TotalResults   int  `json:"total_results"`
	RetrieveOnly   bool `json:"retrieve_only"`
	ResponseLength int  `json:"response_length"`
}

// QueryResponse is the body returned by POST /query.
type QueryResponse struct {
	Query               string           `json:"query"`
	Response            string           `json:"response,omitempty"`
	Sources             []RetrievedChunk `json:"sources"`
	RetrievalTime       float64          `json:"retrieval_time"`
	TotalProcessingTime float64          `json:"total_processing_time"`
	Metadata            QueryMetadata    `json:"metadata"`
}

// SearchResponse is the body returned by GET /search.
type SearchResponse struct {
	Query          string           `json:"query"`
	Results        []RetrievedChunk `json:"results"`
	TotalFound     int              `json:"total_found"`
	ProcessingTime float64          `json:"processing_time"`
}

// RebuildRequest is the body of POST /rebuild-index.
type RebuildRequest struct {
	// ForceRebuild rebuilds even when a persisted index is loadable.
	ForceRebuild bool `json:"force_rebuild,omitempty"`
}

// RebuildResponse acknowledges an accepted rebuild. The rebuild itself
// runs in the background; /stats reflects the result once it completes.
type RebuildResponse struct {
	Message      string `json:"message"`
	ForceRebuild bool   `json:"force_rebuild"`
	Status       string `json:"status"`
}

// DocumentCounts breaks down the indexed corpus by outcome. Only .py and
// .md files are loaded; everything else is counted as skipped.
type DocumentCounts struct {
	Py      int `json:"py"`
	Md      int `json:"md"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// StatsResponse is the body returned by GET /stats.
type StatsResponse struct {
	SourceDirectories []string       `json:"source_directories"`
	PersistDirectory  string         `json:"persist_directory"`
	StoreType         string         `json:"store_type"`
	TopKRetrieval     int            `json:"top_k_retrieval"`
	IndexReady        bool           `json:"index_ready"`
	Documents         DocumentCounts `json:"documents"`
	ChunkCount        int            `json:"chunk_count"`
	VectorStoreSize   int64          `json:"vector_store_size_bytes"`
	LastBuildAt       string         `json:"last_build_at,omitempty"`
	LastBuildSeconds  float64        `json:"last_build_seconds,omitempty"`
}

// RootResponse is the body returned by GET /.
type RootResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// ComponentStatus describes one dependency probe in the health response.
type ComponentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// HealthResponse is the body returned by GET /health. Status is
// "healthy" or "unhealthy"; the response carries a 503 status code in
// the unhealthy case so orchestrator probes hold traffic.
type HealthResponse struct {
	Status        string                     `json:"status"`
	PipelineReady bool                       `json:"pipeline_ready"`
	Components    map[string]ComponentStatus `json:"components"`
	Timestamp     string                     `json:"timestamp"`
}
