package prompt

import (
	"context"
	"errors"
	"fmt"

	"github.com/markdave123/contexta/backend/internal/model/chat"
)

var ErrBudgetTooSmall = errors.New("token budget too small for any context")

// Message is one entry of an assembled model prompt.
type Message struct {
	Role    chat.Role `json:"role"`
	Content string    `json:"content"`
}

// Context is the bounded prompt handed to the model call: reference snippets
// first (system role), then the selected transcript suffix in chronological
// order.
type Context struct {
	SessionID string    `json:"sessionId"`
	Messages  []Message `json:"messages"`
}

// TranscriptSource supplies the ordered history of a session.
type TranscriptSource interface {
	Transcript(ctx context.Context, sessionID string) ([]chat.Turn, error)
}

// Retriever fetches reference snippets for the latest user message.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]string, error)
}

// Builder turns transcripts into budget-bounded prompt contexts. Given the
// same transcript, budget, and retrieval results it always produces the same
// context.
type Builder struct {
	transcripts TranscriptSource
}

// NewBuilder wires the builder to its transcript source.
func NewBuilder(transcripts TranscriptSource) *Builder {
	return &Builder{transcripts: transcripts}
}

// Build assembles a context for sessionID under budget tokens. The newest
// user turn is always present, truncated rather than dropped when it alone
// exceeds the budget. Retrieval snippets are charged against the budget
// before older history, so under pressure history is trimmed first.
func (b *Builder) Build(ctx context.Context, sessionID string, budget int, retriever Retriever) (Context, error) {
	if budget < 1 {
		return Context{}, fmt.Errorf("%w: budget %d", ErrBudgetTooSmall, budget)
	}

	turns, err := b.transcripts.Transcript(ctx, sessionID)
	if err != nil {
		return Context{}, fmt.Errorf("failed to load transcript: %w", err)
	}

	// Locate the triggering turn: the newest user-authored one.
	trigger := -1
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == chat.RoleUser {
			trigger = i
			break
		}
	}

	remaining := budget
	included := make(map[int]string, len(turns))

	if trigger >= 0 {
		text := turns[trigger].Message
		cost := CountTokens(text)
		if cost > remaining {
			text = TruncateToBudget(text, remaining)
			remaining = 0
		} else {
			remaining -= cost
		}
		included[trigger] = text
	}

	var snippets []string
	if retriever != nil && trigger >= 0 {
		fetched, err := retriever.Retrieve(ctx, turns[trigger].Message)
		if err != nil {
			return Context{}, fmt.Errorf("retrieval failed: %w", err)
		}
		for _, snippet := range fetched {
			cost := CountTokens(snippet)
			if cost > remaining {
				break
			}
			remaining -= cost
			snippets = append(snippets, snippet)
		}
	}

	// Walk history newest-first and stop at the first turn that no longer
	// fits; reversal below restores chronological order.
	for i := len(turns) - 1; i >= 0; i-- {
		if i == trigger {
			continue
		}
		cost := CountTokens(turns[i].Message)
		if cost > remaining {
			break
		}
		remaining -= cost
		included[i] = turns[i].Message
	}

	out := Context{SessionID: sessionID}
	for _, snippet := range snippets {
		out.Messages = append(out.Messages, Message{Role: chat.RoleSystem, Content: snippet})
	}
	for i, turn := range turns {
		text, ok := included[i]
		if !ok {
			continue
		}
		out.Messages = append(out.Messages, Message{Role: turn.Role, Content: text})
	}

	if len(out.Messages) == 0 {
		// An empty transcript is not a budget problem; the error is
		// reserved for budgets that squeeze out existing turns.
		if len(turns) == 0 {
			return out, nil
		}
		return Context{}, fmt.Errorf("%w: nothing to include for session %s", ErrBudgetTooSmall, sessionID)
	}
	return out, nil
}
