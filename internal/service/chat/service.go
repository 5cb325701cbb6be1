package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/markdave123/contexta/backend/internal/model/chat"
	"github.com/markdave123/contexta/backend/internal/store"
)

var (
	ErrSessionRequired  = errors.New("session id is required")
	ErrSessionOwnership = errors.New("session belongs to a different user")
)

// Service guards session identity above the history store. It is the only
// sanctioned write path into chat history: every append passes an ownership
// check and runs under a per-session lock, so turns in one session can never
// interleave while distinct sessions proceed independently.
type Service struct {
	store *store.Store

	mu    sync.Mutex
	locks map[string]*sessionLock
}

// sessionLock is refcounted so the table only holds sessions with work in
// flight instead of every session id ever seen.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// NewService wires the session service to its backing store.
func NewService(st *store.Store) *Service {
	return &Service{
		store: st,
		locks: make(map[string]*sessionLock),
	}
}

// acquire takes the lock serializing writes for one session.
func (s *Service) acquire(sessionID string) *sessionLock {
	s.mu.Lock()
	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &sessionLock{}
		s.locks[sessionID] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return lock
}

// release returns the session lock and drops it from the table once nothing
// else is waiting on it.
func (s *Service) release(sessionID string, lock *sessionLock) {
	lock.mu.Unlock()

	s.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(s.locks, sessionID)
	}
	s.mu.Unlock()
}

// EnsureSession verifies that sessionID is either new or already owned by
// userID. Anonymous matches anonymous; any other mismatch fails with
// ErrSessionOwnership. New sessions are bound implicitly by their first
// appended turn.
func (s *Service) EnsureSession(ctx context.Context, sessionID string, userID *string) error {
	if sessionID == "" {
		return ErrSessionRequired
	}

	lock := s.acquire(sessionID)
	defer s.release(sessionID, lock)

	return s.checkOwner(ctx, sessionID, userID)
}

// AppendTurn records one turn after the ownership check, holding the session
// lock across check and insert so concurrent appends to the same session are
// fully serialized.
func (s *Service) AppendTurn(ctx context.Context, sessionID string, userID *string, role chat.Role, message string) (chat.Turn, error) {
	if sessionID == "" {
		return chat.Turn{}, ErrSessionRequired
	}

	lock := s.acquire(sessionID)
	defer s.release(sessionID, lock)

	if err := s.checkOwner(ctx, sessionID, userID); err != nil {
		return chat.Turn{}, err
	}

	return s.store.AppendTurn(ctx, sessionID, userID, role, message)
}

// Transcript returns the full session history, oldest first.
func (s *Service) Transcript(ctx context.Context, sessionID string) ([]chat.Turn, error) {
	if sessionID == "" {
		return nil, ErrSessionRequired
	}
	return s.store.Turns(ctx, sessionID, 0, time.Time{})
}

// TranscriptWindow returns the newest limit turns before the given instant.
func (s *Service) TranscriptWindow(ctx context.Context, sessionID string, limit int, before time.Time) ([]chat.Turn, error) {
	if sessionID == "" {
		return nil, ErrSessionRequired
	}
	return s.store.Turns(ctx, sessionID, limit, before)
}

// checkOwner compares userID against the user bound by the session's first
// turn.
func (s *Service) checkOwner(ctx context.Context, sessionID string, userID *string) error {
	owner, exists, err := s.store.Owner(ctx, sessionID)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	switch {
	case owner == nil && userID == nil:
		return nil
	case owner != nil && userID != nil && *owner == *userID:
		return nil
	}
	return fmt.Errorf("%w: %s", ErrSessionOwnership, sessionID)
}
