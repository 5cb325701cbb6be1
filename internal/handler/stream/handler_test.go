package stream

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/markdave123/contexta/backend/internal/model/chat"
	"github.com/markdave123/contexta/backend/internal/service/prompt"
)

type stubGenerator struct {
	text string
	err  error
}

func (g *stubGenerator) Complete(context.Context, prompt.Context) (string, error) {
	return g.text, g.err
}

func (g *stubGenerator) Stream(context.Context, prompt.Context) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming disabled")
}

func (g *stubGenerator) StreamingEnabled() bool { return false }

// recordingWriter keeps appended turns in memory and can be told to reject a
// specific role, standing in for a store failure mid-cycle.
type recordingWriter struct {
	turns    []chat.Turn
	failRole chat.Role
}

func (r *recordingWriter) AppendTurn(_ context.Context, sessionID string, userID *string, role chat.Role, message string) (chat.Turn, error) {
	if r.failRole != "" && role == r.failRole {
		return chat.Turn{}, errors.New("disk full")
	}
	t := chat.Turn{SessionID: sessionID, UserID: userID, Role: role, Message: message}
	r.turns = append(r.turns, t)
	return t, nil
}

func (r *recordingWriter) Transcript(context.Context, string) ([]chat.Turn, error) {
	return r.turns, nil
}

func newTestHandler(gen Generator, writer *recordingWriter) *Handler {
	return New(gen, writer, prompt.NewBuilder(writer), nil, 100)
}

func TestStreamCompleteFallback(t *testing.T) {
	writer := &recordingWriter{}
	h := newTestHandler(&stubGenerator{text: "answer"}, writer)

	rec := httptest.NewRecorder()
	if err := h.HandleStreamRequest(context.Background(), rec, "s1", nil, "question"); err != nil {
		t.Fatalf("HandleStreamRequest err: %v", err)
	}

	body := rec.Body.String()
	for _, event := range []string{`"event":"start"`, `"event":"message"`, `"event":"end"`} {
		if !strings.Contains(body, event) {
			t.Fatalf("missing %s in stream body: %s", event, body)
		}
	}
	if len(writer.turns) != 2 {
		t.Fatalf("expected question and reply persisted, got %+v", writer.turns)
	}
	if writer.turns[1].Role != chat.RoleAssistant || writer.turns[1].Message != "answer" {
		t.Fatalf("unexpected assistant turn: %+v", writer.turns[1])
	}
}

func TestStreamFailedReplySaveIsReported(t *testing.T) {
	writer := &recordingWriter{failRole: chat.RoleAssistant}
	h := newTestHandler(&stubGenerator{text: "answer"}, writer)

	rec := httptest.NewRecorder()
	err := h.HandleStreamRequest(context.Background(), rec, "s1", nil, "question")
	if err == nil {
		t.Fatal("expected an error when the reply cannot be persisted")
	}

	body := rec.Body.String()
	if !strings.Contains(body, `"event":"error"`) {
		t.Fatalf("expected error event in stream body: %s", body)
	}
	if strings.Contains(body, `"finished":true`) {
		t.Fatalf("stream must not report completion without a persisted reply: %s", body)
	}
	if len(writer.turns) != 1 || writer.turns[0].Role != chat.RoleUser {
		t.Fatalf("expected only the question persisted, got %+v", writer.turns)
	}
}

func TestStreamModelFailure(t *testing.T) {
	writer := &recordingWriter{}
	h := newTestHandler(&stubGenerator{err: errors.New("model down")}, writer)

	rec := httptest.NewRecorder()
	if err := h.HandleStreamRequest(context.Background(), rec, "s1", nil, "question"); err == nil {
		t.Fatal("expected generation error")
	}
	if !strings.Contains(rec.Body.String(), `"event":"error"`) {
		t.Fatalf("expected error event, got %s", rec.Body.String())
	}
	if len(writer.turns) != 1 {
		t.Fatalf("expected the question on record, got %+v", writer.turns)
	}
}
