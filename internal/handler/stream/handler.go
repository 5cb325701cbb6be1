package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/cloudwego/eino/schema"

	"github.com/markdave123/contexta/backend/internal/model/chat"
	"github.com/markdave123/contexta/backend/internal/service/prompt"
	"github.com/markdave123/contexta/backend/pkg/utils"
)

// Generator produces completions for an assembled context, streamed when the
// configuration allows it.
type Generator interface {
	Complete(ctx context.Context, pc prompt.Context) (string, error)
	Stream(ctx context.Context, pc prompt.Context) (*schema.StreamReader[*schema.Message], error)
	StreamingEnabled() bool
}

// TurnWriter is the sanctioned write path into chat history.
type TurnWriter interface {
	AppendTurn(ctx context.Context, sessionID string, userID *string, role chat.Role, message string) (chat.Turn, error)
}

// Handler streams assistant replies via Server-Sent Events.
type Handler struct {
	ai        Generator
	sessions  TurnWriter
	builder   *prompt.Builder
	retriever prompt.Retriever
	budget    int
}

// New creates a new stream handler.
func New(ai Generator, sessions TurnWriter, builder *prompt.Builder, retriever prompt.Retriever, budget int) *Handler {
	return &Handler{
		ai:        ai,
		sessions:  sessions,
		builder:   builder,
		retriever: retriever,
		budget:    budget,
	}
}

// StreamResponse represents a streaming response chunk.
type StreamResponse struct {
	Event     string `json:"event"`
	Content   string `json:"content,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Error     string `json:"error,omitempty"`
}

// HandleStreamRequest processes one streamed request/response cycle. The
// user's turn is persisted before the model call, so a mid-stream failure
// still leaves the question on record.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, sessionID string, userID *string, userMessage string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported")
	}

	utils.SetupSSEHeaders(w)

	if _, err := h.sessions.AppendTurn(ctx, sessionID, userID, chat.RoleUser, userMessage); err != nil {
		h.sendSSEError(w, flusher, fmt.Sprintf("failed to record message: %v", err))
		return err
	}

	pc, err := h.builder.Build(ctx, sessionID, h.budget, h.retriever)
	if err != nil {
		h.sendSSEError(w, flusher, fmt.Sprintf("failed to build context: %v", err))
		return err
	}

	h.sendSSE(w, flusher, StreamResponse{
		Event:     "start",
		SessionID: sessionID,
	})

	completion, err := h.dispatch(ctx, w, flusher, pc)
	if err != nil {
		h.sendSSEError(w, flusher, fmt.Sprintf("generation failed: %v", err))
		return err
	}

	if _, err := h.sessions.AppendTurn(ctx, sessionID, userID, chat.RoleAssistant, completion); err != nil {
		log.Printf("[stream] failed to save assistant turn: %v", err)
		h.sendSSEError(w, flusher, fmt.Sprintf("failed to save reply: %v", err))
		return err
	}

	h.sendSSE(w, flusher, StreamResponse{
		Event:     "end",
		SessionID: sessionID,
		Finished:  true,
	})

	log.Printf("[stream] completed response for session=%s", sessionID)
	return nil
}

// dispatch streams chunk events when streaming is enabled and falls back to
// a single message event otherwise.
func (h *Handler) dispatch(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, pc prompt.Context) (string, error) {
	if !h.ai.StreamingEnabled() {
		completion, err := h.ai.Complete(ctx, pc)
		if err != nil {
			return "", err
		}
		h.sendSSE(w, flusher, StreamResponse{
			Event:     "message",
			SessionID: pc.SessionID,
			Content:   completion,
		})
		return completion, nil
	}

	stream, err := h.ai.Stream(ctx, pc)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	chunks := make([]*schema.Message, 0, 8)
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return "", recvErr
		}
		if chunk == nil {
			continue
		}

		chunks = append(chunks, chunk)
		if chunk.Content != "" {
			h.sendSSE(w, flusher, StreamResponse{
				Event:     "delta",
				SessionID: pc.SessionID,
				Content:   chunk.Content,
			})
		}
	}

	response, err := schema.ConcatMessages(chunks)
	if err != nil {
		return "", fmt.Errorf("failed to concat stream chunks: %w", err)
	}
	return response.Content, nil
}

// sendSSE sends a Server-Sent Event.
func (h *Handler) sendSSE(w http.ResponseWriter, flusher http.Flusher, response StreamResponse) {
	utils.SendSSEChunk(w, flusher, response)
}

// sendSSEError sends an error via Server-Sent Events.
func (h *Handler) sendSSEError(w http.ResponseWriter, flusher http.Flusher, errorMsg string) {
	h.sendSSE(w, flusher, StreamResponse{
		Event: "error",
		Error: errorMsg,
	})
}
