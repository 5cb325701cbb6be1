package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Chunk is a snippet of reference material offered to the context builder.
type Chunk struct {
	ID        string
	Source    string
	Content   string
	CreatedAt time.Time
}

// SaveChunk stores one snippet of reference material.
func (s *Store) SaveChunk(ctx context.Context, source, content string) (Chunk, error) {
	if content == "" {
		return Chunk{}, ErrEmptyMessage
	}
	c := Chunk{
		ID:        uuid.NewString(),
		Source:    source,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO document_chunks (id, source, content, created_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.Source, c.Content, c.CreatedAt.UnixNano(),
	)
	if err != nil {
		return Chunk{}, fmt.Errorf("failed to save chunk: %w", err)
	}
	return c, nil
}

// Chunks returns all stored snippets, oldest first.
func (s *Store) Chunks(ctx context.Context) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, content, created_at FROM document_chunks ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to read chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var (
			c  Chunk
			ts int64
		)
		if err := rows.Scan(&c.ID, &c.Source, &c.Content, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		c.CreatedAt = time.Unix(0, ts).UTC()
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}
