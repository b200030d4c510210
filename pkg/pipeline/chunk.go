package pipeline

import (
	"strconv"
	"strings"

	"github.com/animadocs/ragd/pkg/loader"
)

// previewLimit bounds the content preview stored in chunk metadata.
const previewLimit = 200

// Chunk is the retrievable unit of a document. Chunking is deliberately
// 1:1 with files: a chunk is a whole, trimmed source file.
type Chunk struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// Preprocess converts loaded documents into chunks. Content is trimmed
// and each chunk carries the document metadata plus a short preview.
func Preprocess(docs []loader.Document) []Chunk {
	chunks := make([]Chunk, 0, len(docs))
	for i, doc := range docs {
		content := strings.TrimSpace(doc.Content)
		chunks = append(chunks, Chunk{
			ID:      strconv.Itoa(i),
			Content: content,
			Metadata: map[string]string{
				"path":            doc.Meta.Path,
				"filename":        doc.Meta.Filename,
				"extension":       doc.Meta.Extension,
				"directory":       doc.Meta.Directory,
				"size":            strconv.Itoa(doc.Meta.Size),
				"chunk_id":        strconv.Itoa(i),
				"content_preview": preview(content),
			},
		})
	}
	return chunks
}

func preview(s string) string {
	runes := []rune(s)
	if len(runes) <= previewLimit {
		return s
	}
	return string(runes[:previewLimit]) + "..."
}
