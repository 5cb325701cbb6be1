package reply

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/markdave123/contexta/backend/internal/model/chat"
	"github.com/markdave123/contexta/backend/internal/service/prompt"
)

// ErrModelCall marks a failed completion. The user's turn is already
// persisted when this surfaces, so resubmitting the question is safe (and
// appends a fresh turn; the log is never deduplicated here).
var ErrModelCall = errors.New("model call failed")

// State tracks how far a single request/response cycle progressed.
type State string

const (
	StateReceived     State = "RECEIVED"
	StateContextBuilt State = "CONTEXT_BUILT"
	StateModelCalled  State = "MODEL_CALLED"
	StatePersisted    State = "PERSISTED"
	StateDone         State = "DONE"
	StateFailed       State = "FAILED"
)

// Run is the outcome of one Handle invocation.
type Run struct {
	State State      `json:"state"`
	Reply *chat.Turn `json:"reply,omitempty"`
}

// TurnWriter is the sanctioned write path into chat history.
type TurnWriter interface {
	AppendTurn(ctx context.Context, sessionID string, userID *string, role chat.Role, message string) (chat.Turn, error)
}

// ContextBuilder assembles the bounded prompt for a session.
type ContextBuilder interface {
	Build(ctx context.Context, sessionID string, budget int, retriever prompt.Retriever) (prompt.Context, error)
}

// Completer is the opaque model call.
type Completer interface {
	Complete(ctx context.Context, pc prompt.Context) (string, error)
}

// Pipeline orchestrates one request/response cycle: persist the inbound
// turn, build the context, call the model, persist the reply. The inbound
// turn is written first so it survives any later failure; there is no
// rollback and no retry at this level.
type Pipeline struct {
	turns     TurnWriter
	builder   ContextBuilder
	completer Completer
	retriever prompt.Retriever
	budget    int
}

// New wires the pipeline. retriever may be nil when no reference material is
// available.
func New(turns TurnWriter, builder ContextBuilder, completer Completer, retriever prompt.Retriever, budget int) *Pipeline {
	return &Pipeline{
		turns:     turns,
		builder:   builder,
		completer: completer,
		retriever: retriever,
		budget:    budget,
	}
}

// Handle processes one user message and returns the run outcome. On any
// failure after the first step the conversation is one turn longer (the
// user's message) without an assistant reply, and the run state is FAILED.
func (p *Pipeline) Handle(ctx context.Context, sessionID string, userID *string, message string) (Run, error) {
	run := Run{State: StateReceived}

	if _, err := p.turns.AppendTurn(ctx, sessionID, userID, chat.RoleUser, message); err != nil {
		run.State = StateFailed
		return run, err
	}

	pc, err := p.builder.Build(ctx, sessionID, p.budget, p.retriever)
	if err != nil {
		run.State = StateFailed
		return run, err
	}
	run.State = StateContextBuilt

	completion, err := p.completer.Complete(ctx, pc)
	if err != nil {
		run.State = StateFailed
		log.Printf("[reply] model call failed for session=%s: %v", sessionID, err)
		return run, fmt.Errorf("%w: %v", ErrModelCall, err)
	}
	run.State = StateModelCalled

	assistant, err := p.turns.AppendTurn(ctx, sessionID, userID, chat.RoleAssistant, completion)
	if err != nil {
		run.State = StateFailed
		return run, fmt.Errorf("failed to persist reply: %w", err)
	}
	run.State = StatePersisted

	run.State = StateDone
	run.Reply = &assistant
	return run, nil
}
