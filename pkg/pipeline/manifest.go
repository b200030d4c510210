package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/animadocs/ragd/pkg/api"
)

// manifestFile is the snapshot of index state written next to the vector
// store after each successful build. On startup, a loadable manifest
// whose collection still exists in the backend lets the service skip the
// initial build.
const manifestFile = "manifest.json"

type manifest struct {
	Collection     string             `json:"collection"`
	Dimensions     int                `json:"dimensions"`
	ChunkCount     int                `json:"chunk_count"`
	Documents      api.DocumentCounts `json:"documents"`
	BuiltAt        time.Time          `json:"built_at"`
	BuildSeconds   float64            `json:"build_seconds"`
	Generation     int                `json:"generation"`
	EmbeddingModel string             `json:"embedding_model"`
}

func loadManifest(dir string) (*manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if m.Collection == "" {
		return nil, fmt.Errorf("manifest has no collection")
	}
	return &m, nil
}

func saveManifest(dir string, m *manifest) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating persist directory: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	path := filepath.Join(dir, manifestFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming manifest: %w", err)
	}
	return nil
}
