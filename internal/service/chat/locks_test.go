package chat

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/markdave123/contexta/backend/internal/model/chat"
	"github.com/markdave123/contexta/backend/internal/store"
)

func TestLockTableEvictsIdleSessions(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	svc := NewService(st)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessionID := fmt.Sprintf("s-%d", i%4)
			for j := 0; j < 5; j++ {
				if _, err := svc.AppendTurn(ctx, sessionID, nil, chat.RoleUser, "hi"); err != nil {
					t.Errorf("AppendTurn err: %v", err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	svc.mu.Lock()
	defer svc.mu.Unlock()
	if len(svc.locks) != 0 {
		t.Fatalf("expected lock table drained after all work finished, got %d entries", len(svc.locks))
	}
}
