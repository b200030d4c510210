package local

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/animadocs/ragd/pkg/vectorstore"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func TestSearchOrdersByCosineSimilarity(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.CreateCollection(ctx, "docs", 2); err != nil {
		t.Fatal(err)
	}
	records := []vectorstore.Record{
		{ID: "east", Vector: []float32{1, 0}, Content: "east"},
		{ID: "north", Vector: []float32{0, 1}, Content: "north"},
		{ID: "northeast", Vector: []float32{1, 1}, Content: "northeast"},
	}
	if err := s.Upsert(ctx, "docs", records); err != nil {
		t.Fatal(err)
	}

	matches, err := s.Search(ctx, "docs", []float32{1, 0.1}, 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if len(matches) != 3 {
		t.Fatalf("got %d matches, want 3", len(matches))
	}
	if matches[0].ID != "east" {
		t.Errorf("best match = %q, want east", matches[0].ID)
	}
	if matches[1].ID != "northeast" {
		t.Errorf("second match = %q, want northeast", matches[1].ID)
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score {
			t.Errorf("matches not ordered: score[%d]=%v > score[%d]=%v",
				i, matches[i].Score, i-1, matches[i-1].Score)
		}
	}
	if math.Abs(float64(matches[0].Score)-1.0) > 0.01 {
		t.Errorf("identical direction score = %v, want ~1.0", matches[0].Score)
	}
}

func TestSearchRespectsLimit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.CreateCollection(ctx, "docs", 2); err != nil {
		t.Fatal(err)
	}
	for _, r := range []vectorstore.Record{
		{ID: "a", Vector: []float32{1, 0}},
		{ID: "b", Vector: []float32{0.9, 0.1}},
		{ID: "c", Vector: []float32{0.8, 0.2}},
	} {
		if err := s.Upsert(ctx, "docs", []vectorstore.Record{r}); err != nil {
			t.Fatal(err)
		}
	}

	matches, err := s.Search(ctx, "docs", []float32{1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 {
		t.Errorf("got %d matches, want 2", len(matches))
	}
}

func TestUpsertReplacesExistingID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.CreateCollection(ctx, "docs", 2); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(ctx, "docs", []vectorstore.Record{
		{ID: "a", Vector: []float32{1, 0}, Content: "old"},
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(ctx, "docs", []vectorstore.Record{
		{ID: "a", Vector: []float32{0, 1}, Content: "new"},
	}); err != nil {
		t.Fatal(err)
	}

	count, err := s.Count(ctx, "docs")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("count = %d after replacing record, want 1", count)
	}

	matches, err := s.Search(ctx, "docs", []float32{0, 1}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if matches[0].Content != "new" {
		t.Errorf("content = %q, want new", matches[0].Content)
	}
}

func TestUpsertDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.CreateCollection(ctx, "docs", 3); err != nil {
		t.Fatal(err)
	}
	err := s.Upsert(ctx, "docs", []vectorstore.Record{
		{ID: "a", Vector: []float32{1, 0}},
	})
	if err == nil {
		t.Fatal("Upsert with wrong dimensions should fail")
	}
}

func TestPersistAndReload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.CreateCollection(ctx, "docs", 2); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(ctx, "docs", []vectorstore.Record{
		{ID: "a", Vector: []float32{1, 0}, Content: "hello", Metadata: map[string]string{"path": "a.md"}},
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.Persist(ctx, "docs"); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}

	// A fresh store over the same directory sees the snapshot.
	reloaded, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	count, err := reloaded.Count(ctx, "docs")
	if err != nil {
		t.Fatalf("Count() after reload error = %v", err)
	}
	if count != 1 {
		t.Fatalf("count after reload = %d, want 1", count)
	}

	matches, err := reloaded.Search(ctx, "docs", []float32{1, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if matches[0].Content != "hello" || matches[0].Metadata["path"] != "a.md" {
		t.Errorf("reloaded match = %+v, content and metadata should survive", matches[0])
	}
}

func TestDeleteCollectionRemovesSnapshot(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.CreateCollection(ctx, "docs", 2); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(ctx, "docs", []vectorstore.Record{{ID: "a", Vector: []float32{1, 0}}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Persist(ctx, "docs"); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteCollection(ctx, "docs"); err != nil {
		t.Fatalf("DeleteCollection() error = %v", err)
	}

	if _, err := s.Count(ctx, "docs"); !errors.Is(err, vectorstore.ErrCollectionNotFound) {
		t.Errorf("Count() after delete error = %v, want ErrCollectionNotFound", err)
	}

	reloaded, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := reloaded.Count(ctx, "docs"); !errors.Is(err, vectorstore.ErrCollectionNotFound) {
		t.Error("deleted collection should not survive a reload")
	}
}

func TestOperationsOnMissingCollection(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.Upsert(ctx, "ghost", nil); !errors.Is(err, vectorstore.ErrCollectionNotFound) {
		t.Errorf("Upsert error = %v, want ErrCollectionNotFound", err)
	}
	if _, err := s.Search(ctx, "ghost", []float32{1}, 1); !errors.Is(err, vectorstore.ErrCollectionNotFound) {
		t.Errorf("Search error = %v, want ErrCollectionNotFound", err)
	}
	if err := s.DeleteCollection(ctx, "ghost"); !errors.Is(err, vectorstore.ErrCollectionNotFound) {
		t.Errorf("DeleteCollection error = %v, want ErrCollectionNotFound", err)
	}
}
