// Package loader reads documentation files from the configured read-only
// source directories. Files are never written or mutated; identity is the
// file path.
package loader

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Document is a single loaded source file.
type Document struct {
	Content string
	Meta    Metadata
}

// Metadata identifies a document and records where it came from.
type Metadata struct {
	Path      string
	Filename  string
	Extension string
	Directory string
	Size      int
}

// Stats counts load outcomes across all source directories.
type Stats struct {
	Py      int
	Md      int
	Skipped int
	Failed  int
}

// Total returns the number of successfully loaded documents.
func (s Stats) Total() int { return s.Py + s.Md }

// Loader scans source directories for supported document files.
type Loader struct {
	dirs   []string
	exts   map[string]bool
	logger *slog.Logger
}

// New creates a Loader for the given directories and file extensions
// (e.g. ".py", ".md").
func New(dirs, extensions []string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	exts := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		exts[strings.ToLower(e)] = true
	}
	return &Loader{
		dirs:   dirs,
		exts:   exts,
		logger: logger.With(slog.String("component", "loader")),
	}
}

// Load walks all source directories and returns the documents found along
// with load statistics. A missing directory is logged and skipped rather
// than treated as fatal, so a deployment can mount only a subset of the
// configured volumes.
func (l *Loader) Load(ctx context.Context) ([]Document, Stats, error) {
	var docs []Document
	var stats Stats

	for _, dir := range l.dirs {
		if _, err := os.Stat(dir); err != nil {
			l.logger.Warn("source directory not found, skipping", slog.String("dir", dir))
			continue
		}

		dirDocs, dirStats, err := l.loadDirectory(ctx, dir)
		if err != nil {
			return nil, stats, err
		}
		docs = append(docs, dirDocs...)
		stats.Py += dirStats.Py
		stats.Md += dirStats.Md
		stats.Skipped += dirStats.Skipped
		stats.Failed += dirStats.Failed
	}

	l.logger.Info("document loading complete",
		slog.Int("total", stats.Total()),
		slog.Int("py", stats.Py),
		slog.Int("md", stats.Md),
		slog.Int("skipped", stats.Skipped),
		slog.Int("failed", stats.Failed))

	return docs, stats, nil
}

// loadDirectory walks a single source directory. Hidden files and
// directories are skipped, as are files with unsupported extensions.
func (l *Loader) loadDirectory(ctx context.Context, dir string) ([]Document, Stats, error) {
	var docs []Document
	var stats Stats

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		name := d.Name()
		if d.IsDir() {
			if path != dir && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") {
			stats.Skipped++
			return nil
		}

		ext := strings.ToLower(filepath.Ext(name))
		if !l.exts[ext] {
			stats.Skipped++
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			stats.Failed++
			l.logger.Error("failed to read file",
				slog.String("path", path), slog.String("error", err.Error()))
			return nil
		}

		docs = append(docs, Document{
			Content: string(data),
			Meta: Metadata{
				Path:      path,
				Filename:  name,
				Extension: ext,
				Directory: dir,
				Size:      len(data),
			},
		})

		switch ext {
		case ".py":
			stats.Py++
		case ".md":
			stats.Md++
		}

		l.logger.Debug("loaded file", slog.String("path", path), slog.Int("bytes", len(data)))
		return nil
	})
	if err != nil {
		return nil, stats, err
	}

	return docs, stats, nil
}
