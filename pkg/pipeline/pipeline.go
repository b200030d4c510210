// Package pipeline orchestrates the RAG flow: loading documents,
// embedding them into a vector store, and answering queries by retrieval
// plus optional LLM synthesis.
//
// The pipeline owns the active index. Rebuilds construct a fresh
// collection aside and swap it in atomically, so concurrent queries
// always observe a complete index, never a partially built one.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/animadocs/ragd/pkg/api"
	"github.com/animadocs/ragd/pkg/cache"
	"github.com/animadocs/ragd/pkg/embedding"
	"github.com/animadocs/ragd/pkg/loader"
	"github.com/animadocs/ragd/pkg/observability"
	"github.com/animadocs/ragd/pkg/provider"
	"github.com/animadocs/ragd/pkg/resilience"
	"github.com/animadocs/ragd/pkg/vectorstore"
)

var (
	// ErrNotReady is returned for queries that arrive before the index
	// has been built or loaded.
	ErrNotReady = errors.New("pipeline: index not ready")

	// ErrRebuildInProgress is returned when a rebuild is triggered while
	// another rebuild is still running.
	ErrRebuildInProgress = errors.New("pipeline: rebuild already in progress")

	// ErrNoDocuments is returned when a build finds no documents in the
	// configured source directories.
	ErrNoDocuments = errors.New("pipeline: no documents found in source directories")
)

// Config holds pipeline settings, typically derived from the service config.
type Config struct {
	SourceDirs       []string
	Extensions       []string
	Collection       string
	PersistDir       string
	StoreType        string
	TopK             int
	SimilarityCutoff float64
	Model            string
	MaxTokens        int
	Temperature      float64
	BatchSize        int
	Concurrency      int
	CacheTTL         time.Duration
}

// activeIndex is the immutable state of the currently served index.
// It is replaced wholesale on rebuild.
type activeIndex struct {
	collection string
	dimensions int
	chunkCount int
	documents  api.DocumentCounts
	builtAt    time.Time
	buildSecs  float64
	generation int
}

// Pipeline is the RAG orchestrator.
type Pipeline struct {
	cfg      Config
	loader   *loader.Loader
	embedder embedding.Client
	backend  vectorstore.Backend
	prov     provider.Provider
	cache    cache.Cache // nil when caching is disabled
	logger   *slog.Logger

	// ctx bounds background rebuilds; cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	active *activeIndex

	rebuilding atomic.Bool
}

// New creates a Pipeline. The cache may be nil.
func New(cfg Config, embedder embedding.Client, backend vectorstore.Backend,
	prov provider.Provider, c cache.Cache, logger *slog.Logger) *Pipeline {

	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		cfg:      cfg,
		loader:   loader.New(cfg.SourceDirs, cfg.Extensions, logger),
		embedder: embedder,
		backend:  backend,
		prov:     prov,
		cache:    c,
		logger:   logger.With(slog.String("component", "pipeline")),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Ready reports whether the index is built and queries can be served.
func (p *Pipeline) Ready() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.active != nil
}

// Rebuilding reports whether a build is in flight, whether started by
// Initialize or by TriggerRebuild.
func (p *Pipeline) Rebuilding() bool {
	return p.rebuilding.Load()
}

// Close stops background work. The vector store backend and cache are
// owned by the caller and closed separately.
func (p *Pipeline) Close() error {
	p.cancel()
	return nil
}

// Initialize builds or loads the index synchronously. Unless force is
// set, an index persisted by a previous run is loaded instead of rebuilt.
// Builds are single-flight: Initialize and TriggerRebuild share one
// guard, so a call while any build is in flight returns
// ErrRebuildInProgress rather than racing it for the same collection.
func (p *Pipeline) Initialize(ctx context.Context, force bool) error {
	if !p.rebuilding.CompareAndSwap(false, true) {
		return ErrRebuildInProgress
	}
	defer p.rebuilding.Store(false)
	return p.initialize(ctx, force)
}

// initialize is the build path shared by Initialize and TriggerRebuild.
// The caller must hold the rebuilding guard.
func (p *Pipeline) initialize(ctx context.Context, force bool) error {
	if !force {
		if err := p.loadExisting(ctx); err == nil {
			return nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			p.logger.Warn("failed to load existing index, rebuilding",
				slog.String("error", err.Error()))
		}
	}
	return p.build(ctx)
}

// loadExisting restores the active index from the persisted manifest,
// verifying the collection still exists in the backend.
func (p *Pipeline) loadExisting(ctx context.Context) error {
	m, err := loadManifest(p.cfg.PersistDir)
	if err != nil {
		return err
	}

	count, err := p.backend.Count(ctx, m.Collection)
	if err != nil {
		return fmt.Errorf("verifying collection %q: %w", m.Collection, err)
	}
	if count == 0 {
		return fmt.Errorf("collection %q is empty", m.Collection)
	}

	idx := &activeIndex{
		collection: m.Collection,
		dimensions: m.Dimensions,
		chunkCount: count,
		documents:  m.Documents,
		builtAt:    m.BuiltAt,
		buildSecs:  m.BuildSeconds,
		generation: m.Generation,
	}
	p.mu.Lock()
	p.active = idx
	p.mu.Unlock()

	observability.DocumentsIndexed.Set(float64(m.Documents.Py + m.Documents.Md))
	observability.ChunksIndexed.Set(float64(count))

	p.logger.Info("loaded existing index",
		slog.String("collection", m.Collection),
		slog.Int("chunks", count),
		slog.Time("built_at", m.BuiltAt))
	return nil
}

// TriggerRebuild starts an asynchronous rebuild. Only one build runs at
// a time; a trigger while another build is in flight, including the
// startup build, returns ErrRebuildInProgress. Queries keep serving the
// previous index until the new one is swapped in.
func (p *Pipeline) TriggerRebuild(force bool) error {
	if !p.rebuilding.CompareAndSwap(false, true) {
		return ErrRebuildInProgress
	}

	go func() {
		defer p.rebuilding.Store(false)
		if err := p.initialize(p.ctx, force); err != nil {
			p.logger.Error("index rebuild failed", slog.String("error", err.Error()))
			return
		}
		p.logger.Info("index rebuild completed")
	}()

	return nil
}

// build scans the source directories, embeds every chunk, and swaps the
// resulting collection in as the active index.
func (p *Pipeline) build(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "failure"
		}
		observability.RebuildsTotal.WithLabelValues(status).Inc()
	}()

	p.logger.Info("starting index build", slog.Any("source_dirs", p.cfg.SourceDirs))

	docs, stats, err := p.loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading documents: %w", err)
	}
	if len(docs) == 0 {
		return ErrNoDocuments
	}

	chunks := Preprocess(docs)

	vectors, err := p.embedAll(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embedding documents: %w", err)
	}
	dims := len(vectors[0])

	p.mu.RLock()
	generation := 1
	if p.active != nil {
		generation = p.active.generation + 1
	}
	p.mu.RUnlock()
	collection := fmt.Sprintf("%s_g%d", p.cfg.Collection, generation)

	if err := p.backend.CreateCollection(ctx, collection, dims); err != nil {
		return fmt.Errorf("creating collection %q: %w", collection, err)
	}
	defer func() {
		if err != nil {
			// Leave no half-built collection behind.
			if delErr := p.backend.DeleteCollection(context.WithoutCancel(ctx), collection); delErr != nil {
				p.logger.Warn("failed to clean up collection",
					slog.String("collection", collection), slog.String("error", delErr.Error()))
			}
		}
	}()

	for batchStart := 0; batchStart < len(chunks); batchStart += p.cfg.BatchSize {
		batchEnd := min(batchStart+p.cfg.BatchSize, len(chunks))
		records := make([]vectorstore.Record, 0, batchEnd-batchStart)
		for i := batchStart; i < batchEnd; i++ {
			records = append(records, vectorstore.Record{
				ID:       chunks[i].ID,
				Vector:   vectors[i],
				Content:  chunks[i].Content,
				Metadata: chunks[i].Metadata,
			})
		}
		if err := p.backend.Upsert(ctx, collection, records); err != nil {
			return fmt.Errorf("upserting records: %w", err)
		}
	}

	if persister, ok := p.backend.(vectorstore.Persister); ok {
		if err := persister.Persist(ctx, collection); err != nil {
			return fmt.Errorf("persisting collection: %w", err)
		}
	}

	buildSecs := time.Since(start).Seconds()
	m := &manifest{
		Collection: collection,
		Dimensions: dims,
		ChunkCount: len(chunks),
		Documents: api.DocumentCounts{
			Py:      stats.Py,
			Md:      stats.Md,
			Skipped: stats.Skipped,
			Failed:  stats.Failed,
		},
		BuiltAt:        start.UTC(),
		BuildSeconds:   buildSecs,
		Generation:     generation,
		EmbeddingModel: p.cfg.Model,
	}
	if err := saveManifest(p.cfg.PersistDir, m); err != nil {
		return err
	}

	idx := &activeIndex{
		collection: collection,
		dimensions: dims,
		chunkCount: len(chunks),
		documents:  m.Documents,
		builtAt:    m.BuiltAt,
		buildSecs:  buildSecs,
		generation: generation,
	}

	p.mu.Lock()
	old := p.active
	p.active = idx
	p.mu.Unlock()

	if old != nil && old.collection != collection {
		if delErr := p.backend.DeleteCollection(ctx, old.collection); delErr != nil {
			p.logger.Warn("failed to delete previous collection",
				slog.String("collection", old.collection), slog.String("error", delErr.Error()))
		}
	}
	if p.cache != nil {
		if invErr := p.cache.Invalidate(ctx); invErr != nil {
			p.logger.Warn("failed to invalidate search cache", slog.String("error", invErr.Error()))
		}
	}

	observability.RebuildDuration.Observe(buildSecs)
	observability.DocumentsIndexed.Set(float64(stats.Total()))
	observability.ChunksIndexed.Set(float64(len(chunks)))

	p.logger.Info("index build completed",
		slog.String("collection", collection),
		slog.Int("documents", stats.Total()),
		slog.Int("chunks", len(chunks)),
		slog.Int("dimensions", dims),
		slog.Duration("duration", time.Since(start)))

	return nil
}

// embedAll embeds all chunks in batches with bounded concurrency.
func (p *Pipeline) embedAll(ctx context.Context, chunks []Chunk) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)

	for batchStart := 0; batchStart < len(chunks); batchStart += p.cfg.BatchSize {
		batchEnd := min(batchStart+p.cfg.BatchSize, len(chunks))
		g.Go(func() error {
			texts := make([]string, 0, batchEnd-batchStart)
			for i := batchStart; i < batchEnd; i++ {
				texts = append(texts, chunks[i].Content)
			}

			batch, err := p.embed(gctx, texts)
			if err != nil {
				return err
			}
			copy(vectors[batchStart:batchEnd], batch)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// embed calls the embedding backend with retry and records upstream metrics.
func (p *Pipeline) embed(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := resilience.Retry(ctx, "embed", resilience.RetryConfig{}, func() error {
		start := time.Now()
		vectors, embErr := p.embedder.Embed(ctx, texts)
		observability.UpstreamLatency.WithLabelValues("embedding").Observe(time.Since(start).Seconds())
		if embErr != nil {
			observability.UpstreamRequestsTotal.WithLabelValues("embedding", "error").Inc()
			return embErr
		}
		observability.UpstreamRequestsTotal.WithLabelValues("embedding", "ok").Inc()
		out = vectors
		return nil
	})
	return out, err
}

// Query answers a validated query request. In retrieve-only mode the
// retrieved chunks are returned as-is; otherwise the chunks above the
// similarity cutoff are fed to the LLM for synthesis.
func (p *Pipeline) Query(ctx context.Context, req *api.QueryRequest) (*api.QueryResponse, error) {
	start := time.Now()

	topK := p.cfg.TopK
	if req.TopK != nil {
		topK = *req.TopK
	}

	matches, retrievalSecs, err := p.retrieve(ctx, req.Query, topK)
	if err != nil {
		return nil, err
	}

	resp := &api.QueryResponse{
		Query:         req.Query,
		RetrievalTime: retrievalSecs,
		Metadata: api.QueryMetadata{
			TotalResults: len(matches),
			RetrieveOnly: req.RetrieveOnly,
		},
	}

	if req.RetrieveOnly {
		resp.Sources = matchesToChunks(matches)
		resp.TotalProcessingTime = time.Since(start).Seconds()
		return resp, nil
	}

	contexts := filterByCutoff(matches, float32(p.cfg.SimilarityCutoff))
	answer, err := p.synthesize(ctx, req.Query, contexts)
	if err != nil {
		return nil, api.NewModelError(fmt.Sprintf("answer synthesis failed: %s", err.Error()))
	}

	resp.Response = answer
	resp.Sources = matchesToSources(contexts)
	resp.Metadata.TotalResults = len(contexts)
	resp.Metadata.ResponseLength = len(answer)
	resp.TotalProcessingTime = time.Since(start).Seconds()
	return resp, nil
}

// Search is the lightweight retrieval-only path behind GET /search.
func (p *Pipeline) Search(ctx context.Context, query string, topK int) (*api.SearchResponse, error) {
	start := time.Now()

	if topK <= 0 {
		topK = p.cfg.TopK
	}

	matches, _, err := p.retrieve(ctx, query, topK)
	if err != nil {
		return nil, err
	}

	return &api.SearchResponse{
		Query:          query,
		Results:        matchesToChunks(matches),
		TotalFound:     len(matches),
		ProcessingTime: time.Since(start).Seconds(),
	}, nil
}

// retrieve embeds the query and searches the active collection, going
// through the search cache when one is configured.
func (p *Pipeline) retrieve(ctx context.Context, query string, topK int) ([]vectorstore.Match, float64, error) {
	p.mu.RLock()
	idx := p.active
	p.mu.RUnlock()
	if idx == nil {
		return nil, 0, ErrNotReady
	}

	key := cacheKey(idx.collection, query, topK)
	if p.cache != nil {
		if data, err := p.cache.Get(ctx, key); err == nil {
			var matches []vectorstore.Match
			if err := json.Unmarshal(data, &matches); err == nil {
				observability.CacheRequestsTotal.WithLabelValues("hit").Inc()
				return matches, 0, nil
			}
		}
		observability.CacheRequestsTotal.WithLabelValues("miss").Inc()
	}

	start := time.Now()

	queryVectors, err := p.embed(ctx, []string{query})
	if err != nil {
		return nil, 0, api.NewModelError(fmt.Sprintf("query embedding failed: %s", err.Error()))
	}

	searchStart := time.Now()
	matches, err := p.backend.Search(ctx, idx.collection, queryVectors[0], topK)
	if err != nil {
		return nil, 0, fmt.Errorf("vector search: %w", err)
	}
	observability.RetrievalDuration.Observe(time.Since(searchStart).Seconds())

	if p.cache != nil {
		if data, err := json.Marshal(matches); err == nil {
			if setErr := p.cache.Set(ctx, key, data, p.cfg.CacheTTL); setErr != nil {
				p.logger.Debug("cache set failed", slog.String("error", setErr.Error()))
			}
		}
	}

	return matches, time.Since(start).Seconds(), nil
}

// synthesize calls the LLM with the retrieved context and records token
// metrics.
func (p *Pipeline) synthesize(ctx context.Context, query string, contexts []vectorstore.Match) (string, error) {
	req := &provider.Request{
		Model:       p.cfg.Model,
		System:      systemPrompt,
		Prompt:      buildPrompt(query, contexts),
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: p.cfg.Temperature,
	}

	var resp *provider.Response
	err := resilience.Retry(ctx, "synthesize", resilience.RetryConfig{MaxAttempts: 2}, func() error {
		start := time.Now()
		var callErr error
		resp, callErr = p.prov.Complete(ctx, req)
		observability.UpstreamLatency.WithLabelValues("llm").Observe(time.Since(start).Seconds())
		if callErr != nil {
			observability.UpstreamRequestsTotal.WithLabelValues("llm", "error").Inc()
			return callErr
		}
		observability.UpstreamRequestsTotal.WithLabelValues("llm", "ok").Inc()
		return nil
	})
	if err != nil {
		return "", err
	}

	observability.TokensTotal.WithLabelValues("input").Add(float64(resp.Usage.PromptTokens))
	observability.TokensTotal.WithLabelValues("output").Add(float64(resp.Usage.CompletionTokens))

	return resp.Text, nil
}

// Stats reports the state of the pipeline and the persisted store.
func (p *Pipeline) Stats(ctx context.Context) (*api.StatsResponse, error) {
	p.mu.RLock()
	idx := p.active
	p.mu.RUnlock()

	resp := &api.StatsResponse{
		SourceDirectories: p.cfg.SourceDirs,
		PersistDirectory:  p.cfg.PersistDir,
		StoreType:         p.cfg.StoreType,
		TopKRetrieval:     p.cfg.TopK,
		IndexReady:        idx != nil,
		VectorStoreSize:   dirSize(p.cfg.PersistDir),
	}
	if idx != nil {
		resp.Documents = idx.documents
		resp.ChunkCount = idx.chunkCount
		resp.LastBuildAt = idx.builtAt.Format(time.RFC3339)
		resp.LastBuildSeconds = idx.buildSecs
	}
	return resp, nil
}

// HealthCheck probes the vector store backend; used by the health endpoint.
func (p *Pipeline) HealthCheck(ctx context.Context) error {
	return p.backend.HealthCheck(ctx)
}

func matchesToChunks(matches []vectorstore.Match) []api.RetrievedChunk {
	chunks := make([]api.RetrievedChunk, 0, len(matches))
	for i, m := range matches {
		chunks = append(chunks, api.RetrievedChunk{
			Content:  m.Content,
			Metadata: m.Metadata,
			Filename: m.Metadata["filename"],
			Path:     m.Metadata["path"],
			Score:    m.Score,
			Rank:     i + 1,
		})
	}
	return chunks
}

// matchesToSources strips chunk content, keeping only source attribution.
func matchesToSources(matches []vectorstore.Match) []api.RetrievedChunk {
	sources := make([]api.RetrievedChunk, 0, len(matches))
	for i, m := range matches {
		sources = append(sources, api.RetrievedChunk{
			Filename: m.Metadata["filename"],
			Path:     m.Metadata["path"],
			Score:    m.Score,
			Rank:     i + 1,
		})
	}
	return sources
}

func filterByCutoff(matches []vectorstore.Match, cutoff float32) []vectorstore.Match {
	if cutoff <= 0 {
		return matches
	}
	out := make([]vectorstore.Match, 0, len(matches))
	for _, m := range matches {
		if m.Score >= cutoff {
			out = append(out, m)
		}
	}
	return out
}

func cacheKey(collection, query string, topK int) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%d|%s", collection, topK, query))
	return hex.EncodeToString(sum[:])
}

// dirSize returns the total size in bytes of regular files under dir.
func dirSize(dir string) int64 {
	var size int64
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			size += info.Size()
		}
		return nil
	})
	if _, err := os.Stat(dir); err != nil {
		return 0
	}
	return size
}
