package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/markdave123/contexta/backend/internal/store"
)

var ErrEmptyDocument = errors.New("document has no content")

// maxChunkRunes caps a single chunk so one long paragraph cannot swallow
// the whole context budget.
const maxChunkRunes = 800

// Service ranks stored document chunks against the latest user message and
// hands the best ones to the context builder as reference material. Scoring
// is plain keyword overlap: ties break on insertion order, so identical
// inputs always rank identically.
type Service struct {
	store *store.Store
	topK  int
}

// NewService wires the retriever. topK below one disables retrieval output.
func NewService(st *store.Store, topK int) *Service {
	return &Service{store: st, topK: topK}
}

// Ingest splits a document into chunks and stores them as reference
// material for later retrieval. It returns the number of chunks written.
func (s *Service) Ingest(ctx context.Context, source, text string) (int, error) {
	chunks := splitChunks(text)
	if len(chunks) == 0 {
		return 0, ErrEmptyDocument
	}
	for _, chunk := range chunks {
		if _, err := s.store.SaveChunk(ctx, source, chunk); err != nil {
			return 0, fmt.Errorf("failed to ingest %s: %w", source, err)
		}
	}
	return len(chunks), nil
}

// splitChunks breaks text on blank lines; an oversized paragraph is cut at
// maxChunkRunes boundaries.
func splitChunks(text string) []string {
	var chunks []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		runes := []rune(para)
		for len(runes) > maxChunkRunes {
			chunks = append(chunks, string(runes[:maxChunkRunes]))
			runes = runes[maxChunkRunes:]
		}
		chunks = append(chunks, string(runes))
	}
	return chunks
}

// Retrieve returns up to topK snippet texts relevant to query, best first.
func (s *Service) Retrieve(ctx context.Context, query string) ([]string, error) {
	if s.topK < 1 {
		return nil, nil
	}

	chunks, err := s.store.Chunks(ctx)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	queryWords := wordSet(query)
	type scored struct {
		index int
		score int
	}
	var ranked []scored
	for i, chunk := range chunks {
		score := overlap(queryWords, wordSet(chunk.Content))
		if score > 0 {
			ranked = append(ranked, scored{index: i, score: score})
		}
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].score > ranked[b].score
	})

	if len(ranked) > s.topK {
		ranked = ranked[:s.topK]
	}
	snippets := make([]string, 0, len(ranked))
	for _, r := range ranked {
		snippets = append(snippets, chunks[r.index].Content)
	}
	return snippets, nil
}

func wordSet(text string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if len(w) > 2 {
			set[w] = struct{}{}
		}
	}
	return set
}

func overlap(a, b map[string]struct{}) int {
	n := 0
	for w := range a {
		if _, ok := b[w]; ok {
			n++
		}
	}
	return n
}
