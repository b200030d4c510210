// Package integration spins up the full service surface against stub
// OpenAI-compatible backends and exercises the REST API end to end.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/animadocs/ragd/pkg/api"
	"github.com/animadocs/ragd/pkg/cache/memory"
	"github.com/animadocs/ragd/pkg/embedding"
	"github.com/animadocs/ragd/pkg/health"
	"github.com/animadocs/ragd/pkg/pipeline"
	"github.com/animadocs/ragd/pkg/provider/openai"
	"github.com/animadocs/ragd/pkg/transport"
	"github.com/animadocs/ragd/pkg/vectorstore/local"
)

// startUpstreams serves deterministic /v1/embeddings and
// /v1/chat/completions endpoints. Texts containing "database" embed to
// one basis vector, everything else to an orthogonal one.
func startUpstreams(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		type datum struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		data := make([]datum, len(req.Input))
		for i, text := range req.Input {
			vec := []float32{0, 1}
			if strings.Contains(strings.ToLower(text), "database") {
				vec = []float32{1, 0}
			}
			data[i] = datum{Index: i, Embedding: vec}
		}
		json.NewEncoder(w).Encode(map[string]any{"data": data})
	})
	mux.HandleFunc("POST /v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "The database layer uses connection pooling."}},
			},
			"usage": map[string]any{"prompt_tokens": 30, "completion_tokens": 8},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type env struct {
	server  *httptest.Server
	pipe    *pipeline.Pipeline
	docsDir string
}

func startService(t *testing.T) *env {
	t.Helper()

	upstream := startUpstreams(t)

	docsDir := t.TempDir()
	files := map[string]string{
		"database.md":  "# Database layer\nThe database layer uses connection pooling.",
		"handlers.py":  "def handle(req):\n    return process(req)",
		"notes.txt":    "this file must not be indexed",
		".hidden.md":   "hidden file, skipped",
		"sub/query.py": "def run_database_query(q):\n    pass",
	}
	for name, content := range files {
		path := filepath.Join(docsDir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	backend, err := local.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	embedder := embedding.NewOpenAIClient(upstream.URL, "stub-embeddings", "", 10*time.Second)
	prov := openai.New(upstream.URL, "", 10*time.Second)

	pipe := pipeline.New(pipeline.Config{
		SourceDirs:       []string{docsDir},
		Extensions:       []string{".py", ".md"},
		Collection:       "integration",
		PersistDir:       t.TempDir(),
		StoreType:        "local",
		TopK:             5,
		SimilarityCutoff: 0.7,
		Model:            "stub-chat",
		MaxTokens:        128,
		Temperature:      0.1,
		BatchSize:        2,
		Concurrency:      2,
		CacheTTL:         time.Minute,
	}, embedder, backend, prov, memory.New(64), logger)
	t.Cleanup(func() { pipe.Close() })

	checker := health.NewChecker()
	checker.Register("vectorstore", health.CheckFromError(pipe.HealthCheck))
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		if !pipe.Ready() {
			return health.ComponentHealth{Status: health.StatusDown, Message: "index not built yet"}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	handler := transport.NewHandler(pipe, checker, api.DefaultValidationConfig(), 1<<20)
	chain := transport.Chain(
		transport.Recovery(logger),
		transport.RequestID(),
		transport.Logging(logger),
	)(handler)

	srv := httptest.NewServer(chain)
	t.Cleanup(srv.Close)

	return &env{server: srv, pipe: pipe, docsDir: docsDir}
}

func (e *env) get(t *testing.T, path string, out any) int {
	t.Helper()
	resp, err := http.Get(e.server.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s response: %v", path, err)
		}
	}
	return resp.StatusCode
}

func (e *env) post(t *testing.T, path string, body, out any) int {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(e.server.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s response: %v", path, err)
		}
	}
	return resp.StatusCode
}

func (e *env) waitReady(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if e.pipe.Ready() && !e.pipe.Rebuilding() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("index did not become ready")
}

func TestServiceLifecycle(t *testing.T) {
	e := startService(t)

	// Before the index is built, health is 503 and queries are refused.
	if code := e.get(t, "/health", nil); code != http.StatusServiceUnavailable {
		t.Errorf("/health before build = %d, want 503", code)
	}
	if code := e.post(t, "/query", api.QueryRequest{Query: "database"}, nil); code != http.StatusServiceUnavailable {
		t.Errorf("/query before build = %d, want 503", code)
	}

	if err := e.pipe.Initialize(context.Background(), true); err != nil {
		t.Fatal(err)
	}

	var report api.HealthResponse
	if code := e.get(t, "/health", &report); code != http.StatusOK {
		t.Fatalf("/health after build = %d, want 200", code)
	}
	if report.Status != "healthy" || !report.PipelineReady {
		t.Errorf("health = %q ready = %v, want healthy/true", report.Status, report.PipelineReady)
	}

	// Only the three .py/.md files are indexed; .txt and hidden files
	// are left out.
	var stats api.StatsResponse
	if code := e.get(t, "/stats", &stats); code != http.StatusOK {
		t.Fatalf("/stats = %d, want 200", code)
	}
	if stats.ChunkCount != 3 {
		t.Errorf("chunk_count = %d, want 3", stats.ChunkCount)
	}
	if stats.Documents.Py != 2 || stats.Documents.Md != 1 {
		t.Errorf("documents = %+v, want 2 py and 1 md", stats.Documents)
	}
}

func TestQueryFlow(t *testing.T) {
	e := startService(t)
	if err := e.pipe.Initialize(context.Background(), true); err != nil {
		t.Fatal(err)
	}

	// Synthesis: the answer comes from the chat backend and sources
	// carry attribution without content.
	var resp api.QueryResponse
	if code := e.post(t, "/query", api.QueryRequest{Query: "how does the database work"}, &resp); code != http.StatusOK {
		t.Fatalf("/query = %d", code)
	}
	if resp.Response == "" {
		t.Error("synthesis response is empty")
	}
	if len(resp.Sources) == 0 {
		t.Fatal("no sources above the similarity cutoff")
	}
	for _, s := range resp.Sources {
		if s.Content != "" {
			t.Error("synthesis sources should not include content")
		}
		if s.Path == "" {
			t.Error("source missing path attribution")
		}
	}
	if resp.TotalProcessingTime < resp.RetrievalTime {
		t.Errorf("total %v < retrieval %v", resp.TotalProcessingTime, resp.RetrievalTime)
	}

	// Retrieve-only: raw chunks with content, no synthesis.
	var raw api.QueryResponse
	if code := e.post(t, "/query", api.QueryRequest{Query: "database", RetrieveOnly: true}, &raw); code != http.StatusOK {
		t.Fatalf("/query retrieve_only = %d", code)
	}
	if raw.Response != "" {
		t.Error("retrieve-only returned a synthesized response")
	}
	if len(raw.Sources) == 0 || raw.Sources[0].Content == "" {
		t.Error("retrieve-only sources should include chunk content")
	}
}

func TestSearchFlow(t *testing.T) {
	e := startService(t)
	if err := e.pipe.Initialize(context.Background(), true); err != nil {
		t.Fatal(err)
	}

	var resp api.SearchResponse
	if code := e.get(t, "/search?q=database&top_k=2", &resp); code != http.StatusOK {
		t.Fatalf("/search = %d", code)
	}
	if resp.TotalFound != 2 {
		t.Errorf("total_found = %d, want top_k cap of 2", resp.TotalFound)
	}
	// The two database-related files outrank the handler file.
	for _, r := range resp.Results {
		if r.Filename == "handlers.py" {
			t.Errorf("unrelated file ranked in top 2: %+v", resp.Results)
		}
	}

	// Repeated search is served from cache with identical results.
	var cached api.SearchResponse
	if code := e.get(t, "/search?q=database&top_k=2", &cached); code != http.StatusOK {
		t.Fatalf("/search (cached) = %d", code)
	}
	if cached.TotalFound != resp.TotalFound {
		t.Errorf("cached total_found = %d, want %d", cached.TotalFound, resp.TotalFound)
	}
}

func TestRebuildFlow(t *testing.T) {
	e := startService(t)
	if err := e.pipe.Initialize(context.Background(), true); err != nil {
		t.Fatal(err)
	}

	// New document appears after a rebuild.
	path := filepath.Join(e.docsDir, "migrations.md")
	if err := os.WriteFile(path, []byte("database migration playbook"), 0o644); err != nil {
		t.Fatal(err)
	}

	var ack api.RebuildResponse
	if code := e.post(t, "/rebuild-index", api.RebuildRequest{ForceRebuild: true}, &ack); code != http.StatusAccepted {
		t.Fatalf("/rebuild-index = %d, want 202", code)
	}
	if ack.Status != "processing" {
		t.Errorf("ack status = %q, want processing", ack.Status)
	}

	e.waitReady(t)

	var stats api.StatsResponse
	if code := e.get(t, "/stats", &stats); code != http.StatusOK {
		t.Fatalf("/stats = %d", code)
	}
	if stats.ChunkCount != 4 {
		t.Errorf("chunk_count after rebuild = %d, want 4", stats.ChunkCount)
	}

	var search api.SearchResponse
	if code := e.get(t, "/search?q="+("database+migration"), &search); code != http.StatusOK {
		t.Fatalf("/search after rebuild = %d", code)
	}
	found := false
	for _, r := range search.Results {
		if r.Filename == "migrations.md" {
			found = true
		}
	}
	if !found {
		t.Error("rebuilt index does not serve the new document")
	}
}

func TestConcurrentRebuildConflicts(t *testing.T) {
	e := startService(t)
	if err := e.pipe.Initialize(context.Background(), true); err != nil {
		t.Fatal(err)
	}

	first := e.post(t, "/rebuild-index", api.RebuildRequest{ForceRebuild: true}, nil)
	second := e.post(t, "/rebuild-index", api.RebuildRequest{ForceRebuild: true}, nil)

	if first != http.StatusAccepted {
		t.Errorf("first rebuild = %d, want 202", first)
	}
	// The stub backends answer fast, so the first rebuild may already
	// have finished; only a still-running rebuild yields a conflict.
	if second != http.StatusAccepted && second != http.StatusConflict {
		t.Errorf("second rebuild = %d, want 202 or 409", second)
	}

	e.waitReady(t)
}

func TestRootAndSearchDefaults(t *testing.T) {
	e := startService(t)
	if err := e.pipe.Initialize(context.Background(), true); err != nil {
		t.Fatal(err)
	}

	var root api.RootResponse
	if code := e.get(t, "/", &root); code != http.StatusOK {
		t.Fatalf("/ = %d", code)
	}
	if root.Status != "running" {
		t.Errorf("root status = %q, want running", root.Status)
	}
	if root.Message == "" {
		t.Error("root message is empty")
	}

	if code := e.get(t, fmt.Sprintf("/search?q=%s", "database"), nil); code != http.StatusOK {
		t.Errorf("/search without top_k = %d, want 200 with default", code)
	}
}
