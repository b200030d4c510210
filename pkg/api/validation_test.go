package api

import (
	"strings"
	"testing"
)

func TestValidateQuery(t *testing.T) {
	cfg := DefaultValidationConfig()

	intPtr := func(n int) *int { return &n }

	tests := []struct {
		name      string
		req       *QueryRequest
		wantErr   bool
		wantParam string
	}{
		{"valid query", &QueryRequest{Query: "how does auth work"}, false, ""},
		{"empty query", &QueryRequest{Query: ""}, true, "query"},
		{"whitespace only", &QueryRequest{Query: "   \n\t  "}, true, "query"},
		{"query too large", &QueryRequest{Query: strings.Repeat("a", cfg.MaxQuerySize+1)}, true, "query"},
		{"valid top_k", &QueryRequest{Query: "q", TopK: intPtr(10)}, false, ""},
		{"top_k zero", &QueryRequest{Query: "q", TopK: intPtr(0)}, true, "top_k"},
		{"top_k negative", &QueryRequest{Query: "q", TopK: intPtr(-1)}, true, "top_k"},
		{"top_k above max", &QueryRequest{Query: "q", TopK: intPtr(cfg.MaxTopK + 1)}, true, "top_k"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQuery(tt.req, cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateQuery() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && err.Param != tt.wantParam {
				t.Errorf("error param = %q, want %q", err.Param, tt.wantParam)
			}
		})
	}
}

func TestValidateSearch(t *testing.T) {
	cfg := DefaultValidationConfig()

	tests := []struct {
		name    string
		q       string
		topK    int
		wantErr bool
	}{
		{"valid", "vector store", 5, false},
		{"zero top_k uses default", "vector store", 0, false},
		{"empty q", "", 5, true},
		{"whitespace q", "  ", 5, true},
		{"negative top_k", "q", -3, true},
		{"top_k above max", "q", cfg.MaxTopK + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSearch(tt.q, tt.topK, cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateSearch(%q, %d) error = %v, wantErr %v", tt.q, tt.topK, err, tt.wantErr)
			}
		})
	}
}
