// Command mock-llm runs a deterministic OpenAI-compatible server for
// development and integration testing. It serves /v1/embeddings with
// hash-derived unit vectors (identical text always embeds identically)
// and /v1/chat/completions with a canned answer that echoes the last
// user message.
//
// Configuration:
//
//	MOCK_PORT - Listen port (default: 9090)
//	MOCK_DIMS - Embedding dimensions (default: 64)
package main

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"
)

var dims = 64

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}
	if raw := os.Getenv("MOCK_DIMS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			slog.Error("invalid MOCK_DIMS", "value", raw)
			os.Exit(1)
		}
		dims = n
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/embeddings", handleEmbeddings)
	mux.HandleFunc("POST /v1/chat/completions", handleChatCompletions)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock llm starting", "port", port, "dims", dims)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock llm failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock llm shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Object string          `json:"object"`
	Model  string          `json:"model"`
	Data   []embeddingData `json:"data"`
	Usage  usage           `json:"usage"`
}

type embeddingData struct {
	Object    string    `json:"object"`
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func handleEmbeddings(w http.ResponseWriter, r *http.Request) {
	var req embeddingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Input) == 0 {
		http.Error(w, "input must not be empty", http.StatusBadRequest)
		return
	}

	resp := embeddingsResponse{
		Object: "list",
		Model:  req.Model,
		Data:   make([]embeddingData, len(req.Input)),
	}
	for i, text := range req.Input {
		resp.Data[i] = embeddingData{
			Object:    "embedding",
			Index:     i,
			Embedding: embedText(text),
		}
		resp.Usage.PromptTokens += len(text) / 4
	}
	resp.Usage.TotalTokens = resp.Usage.PromptTokens

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// embedText maps text to a deterministic unit vector. Each component is
// derived from a SHA-256 stream seeded by the text, so equal inputs
// always produce equal vectors and similar texts do not collide.
func embedText(text string) []float32 {
	vec := make([]float32, dims)
	sum := sha256.Sum256([]byte(text))

	var norm float64
	for i := range vec {
		// Each hash yields four 8-byte components; rehash for more.
		if i%4 == 0 && i > 0 {
			sum = sha256.Sum256(sum[:])
		}
		bits := binary.BigEndian.Uint64(sum[(i%4)*8:])
		v := float64(int64(bits)) / math.MaxInt64
		vec[i] = float32(v)
		norm += v * v
	}

	norm = math.Sqrt(norm)
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   usage        `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

func handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	var lastUser string
	for _, m := range req.Messages {
		if m.Role == "user" {
			lastUser = m.Content
		}
	}

	answer := fmt.Sprintf("Mock answer based on the provided context.\n\nPrompt was %d characters.", len(lastUser))

	resp := chatResponse{
		ID:     "chatcmpl-mock",
		Object: "chat.completion",
		Model:  req.Model,
		Choices: []chatChoice{{
			Message:      chatMessage{Role: "assistant", Content: answer},
			FinishReason: "stop",
		}},
		Usage: usage{
			PromptTokens:     len(lastUser) / 4,
			CompletionTokens: len(answer) / 4,
			TotalTokens:      (len(lastUser) + len(answer)) / 4,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
