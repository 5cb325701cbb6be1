package retrieval_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/markdave123/contexta/backend/internal/service/retrieval"
	"github.com/markdave123/contexta/backend/internal/store"
)

func setupRetrieval(t *testing.T, topK int) (*retrieval.Service, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return retrieval.NewService(st, topK), st
}

func TestIngestSplitsParagraphs(t *testing.T) {
	svc, st := setupRetrieval(t, 3)
	ctx := context.Background()

	text := "Billing invoices are generated monthly.\n\nPayment terms default to thirty days."
	count, err := svc.Ingest(ctx, "handbook.txt", text)
	if err != nil {
		t.Fatalf("Ingest err: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 chunks, got %d", count)
	}

	chunks, err := st.Chunks(ctx)
	if err != nil {
		t.Fatalf("Chunks err: %v", err)
	}
	if len(chunks) != 2 || chunks[0].Source != "handbook.txt" {
		t.Fatalf("unexpected stored chunks: %+v", chunks)
	}
}

func TestIngestSplitsOversizedParagraph(t *testing.T) {
	svc, st := setupRetrieval(t, 3)
	ctx := context.Background()

	count, err := svc.Ingest(ctx, "big.txt", strings.Repeat("x", 1200))
	if err != nil {
		t.Fatalf("Ingest err: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected oversized paragraph split in two, got %d", count)
	}

	chunks, err := st.Chunks(ctx)
	if err != nil {
		t.Fatalf("Chunks err: %v", err)
	}
	if len(chunks[0].Content) != 800 || len(chunks[1].Content) != 400 {
		t.Fatalf("unexpected chunk sizes: %d, %d", len(chunks[0].Content), len(chunks[1].Content))
	}
}

func TestIngestEmptyDocument(t *testing.T) {
	svc, _ := setupRetrieval(t, 3)

	if _, err := svc.Ingest(context.Background(), "blank.txt", "  \n\n "); !errors.Is(err, retrieval.ErrEmptyDocument) {
		t.Fatalf("expected ErrEmptyDocument, got %v", err)
	}
}

func TestRetrieveRanksByOverlap(t *testing.T) {
	svc, st := setupRetrieval(t, 2)
	ctx := context.Background()

	seed := []string{
		"billing invoices are generated monthly",
		"invoices include billing address and payment terms",
		"the office cafeteria closes at six",
	}
	for _, content := range seed {
		if _, err := st.SaveChunk(ctx, "handbook", content); err != nil {
			t.Fatalf("SaveChunk err: %v", err)
		}
	}

	snippets, err := svc.Retrieve(ctx, "how are billing invoices handled")
	if err != nil {
		t.Fatalf("Retrieve err: %v", err)
	}

	if len(snippets) != 2 {
		t.Fatalf("expected 2 snippets, got %d", len(snippets))
	}
	for _, s := range snippets {
		if s == seed[2] {
			t.Fatalf("irrelevant chunk retrieved: %q", s)
		}
	}
}

func TestRetrieveNoMatches(t *testing.T) {
	svc, st := setupRetrieval(t, 3)
	ctx := context.Background()

	if _, err := st.SaveChunk(ctx, "handbook", "completely unrelated material"); err != nil {
		t.Fatalf("SaveChunk err: %v", err)
	}

	snippets, err := svc.Retrieve(ctx, "quantum flux capacitors")
	if err != nil {
		t.Fatalf("Retrieve err: %v", err)
	}
	if len(snippets) != 0 {
		t.Fatalf("expected no snippets, got %v", snippets)
	}
}

func TestRetrieveDisabled(t *testing.T) {
	svc, st := setupRetrieval(t, 0)
	ctx := context.Background()

	if _, err := st.SaveChunk(ctx, "handbook", "billing invoices"); err != nil {
		t.Fatalf("SaveChunk err: %v", err)
	}

	snippets, err := svc.Retrieve(ctx, "billing invoices")
	if err != nil {
		t.Fatalf("Retrieve err: %v", err)
	}
	if snippets != nil {
		t.Fatalf("expected nil when disabled, got %v", snippets)
	}
}
