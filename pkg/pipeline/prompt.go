package pipeline

import (
	"fmt"
	"strings"

	"github.com/animadocs/ragd/pkg/vectorstore"
)

// systemPrompt frames the model as a documentation assistant grounded in
// the retrieved context.
const systemPrompt = "You are a documentation assistant. Answer the question " +
	"using only the provided context. If the context does not contain the " +
	"answer, say so. Cite source file paths when relevant."

// buildPrompt assembles the user prompt from the retrieved context and the
// question.
func buildPrompt(query string, matches []vectorstore.Match) string {
	var b strings.Builder
	b.WriteString("Context:\n\n")
	for i, m := range matches {
		path := m.Metadata["path"]
		if path == "" {
			path = m.ID
		}
		fmt.Fprintf(&b, "[%d] %s (score %.3f)\n%s\n\n", i+1, path, m.Score, m.Content)
	}
	b.WriteString("Question: ")
	b.WriteString(query)
	return b.String()
}
