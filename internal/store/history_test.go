package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/markdave123/contexta/backend/internal/model/chat"
	"github.com/markdave123/contexta/backend/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestAppendReadRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	turn, err := st.AppendTurn(ctx, "s1", nil, chat.RoleUser, "hello there")
	if err != nil {
		t.Fatalf("AppendTurn err: %v", err)
	}
	if turn.ID == "" {
		t.Fatal("expected assigned id")
	}

	turns, err := st.Turns(ctx, "s1", 0, time.Time{})
	if err != nil {
		t.Fatalf("Turns err: %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(turns))
	}

	got := turns[0]
	if got.ID != turn.ID || got.SessionID != "s1" || got.Role != chat.RoleUser || got.Message != "hello there" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if !got.CreatedAt.Equal(turn.CreatedAt) {
		t.Fatalf("created_at mismatch: got %v want %v", got.CreatedAt, turn.CreatedAt)
	}
	if got.UserID != nil {
		t.Fatalf("expected anonymous turn, got user %q", *got.UserID)
	}
}

func TestAppendRejectsBadRole(t *testing.T) {
	st := openTestStore(t)

	_, err := st.AppendTurn(context.Background(), "s1", nil, chat.Role("moderator"), "hi")
	if !errors.Is(err, store.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestAppendRejectsEmptyMessage(t *testing.T) {
	st := openTestStore(t)

	_, err := st.AppendTurn(context.Background(), "s1", nil, chat.RoleUser, "")
	if !errors.Is(err, store.ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
}

func TestAppendRejectsUnknownUser(t *testing.T) {
	st := openTestStore(t)

	ghost := "no-such-user"
	_, err := st.AppendTurn(context.Background(), "s1", &ghost, chat.RoleUser, "hi")
	if !errors.Is(err, store.ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser, got %v", err)
	}
}

func TestTurnsOrderingMatchesInsertion(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 20; i++ {
		turn, err := st.AppendTurn(ctx, "s1", nil, chat.RoleUser, "msg")
		if err != nil {
			t.Fatalf("AppendTurn %d err: %v", i, err)
		}
		ids = append(ids, turn.ID)
	}

	turns, err := st.Turns(ctx, "s1", 0, time.Time{})
	if err != nil {
		t.Fatalf("Turns err: %v", err)
	}
	if len(turns) != len(ids) {
		t.Fatalf("expected %d turns, got %d", len(ids), len(turns))
	}
	for i, turn := range turns {
		if turn.ID != ids[i] {
			t.Fatalf("turn %d out of insertion order", i)
		}
		if i > 0 && !turns[i-1].CreatedAt.Before(turn.CreatedAt) {
			t.Fatalf("created_at not increasing at %d: %v vs %v", i, turns[i-1].CreatedAt, turn.CreatedAt)
		}
	}
}

func TestTurnsWindow(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	messages := []string{"one", "two", "three", "four"}
	for _, m := range messages {
		if _, err := st.AppendTurn(ctx, "s1", nil, chat.RoleUser, m); err != nil {
			t.Fatalf("AppendTurn err: %v", err)
		}
	}

	turns, err := st.Turns(ctx, "s1", 2, time.Time{})
	if err != nil {
		t.Fatalf("Turns err: %v", err)
	}
	if len(turns) != 2 || turns[0].Message != "three" || turns[1].Message != "four" {
		t.Fatalf("expected newest suffix [three four], got %+v", turns)
	}

	turns, err = st.Turns(ctx, "s1", 0, turns[1].CreatedAt)
	if err != nil {
		t.Fatalf("Turns with before err: %v", err)
	}
	if len(turns) != 3 || turns[len(turns)-1].Message != "three" {
		t.Fatalf("expected turns before 'four', got %+v", turns)
	}
}

func TestTurnsUnknownSessionIsEmpty(t *testing.T) {
	st := openTestStore(t)

	turns, err := st.Turns(context.Background(), "missing", 0, time.Time{})
	if err != nil {
		t.Fatalf("Turns err: %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("expected empty transcript, got %d turns", len(turns))
	}

	if _, err := st.TurnsStrict(context.Background(), "missing", 0, time.Time{}); !errors.Is(err, store.ErrNoTurns) {
		t.Fatalf("expected ErrNoTurns, got %v", err)
	}
}

func TestOwner(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if _, exists, err := st.Owner(ctx, "fresh"); err != nil || exists {
		t.Fatalf("expected no owner for fresh session, exists=%v err=%v", exists, err)
	}

	u, err := st.CreateUser(ctx, "dave@example.com", "Dave", "1990-01-01", "+15550001", "hash")
	if err != nil {
		t.Fatalf("CreateUser err: %v", err)
	}

	if _, err := st.AppendTurn(ctx, "owned", &u.ID, chat.RoleUser, "hi"); err != nil {
		t.Fatalf("AppendTurn err: %v", err)
	}

	owner, exists, err := st.Owner(ctx, "owned")
	if err != nil || !exists {
		t.Fatalf("Owner err=%v exists=%v", err, exists)
	}
	if owner == nil || *owner != u.ID {
		t.Fatalf("unexpected owner: %v", owner)
	}

	if _, err := st.AppendTurn(ctx, "anon", nil, chat.RoleUser, "hi"); err != nil {
		t.Fatalf("AppendTurn err: %v", err)
	}
	owner, exists, err = st.Owner(ctx, "anon")
	if err != nil || !exists {
		t.Fatalf("Owner err=%v exists=%v", err, exists)
	}
	if owner != nil {
		t.Fatalf("expected anonymous owner, got %q", *owner)
	}
}
