package auth_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/markdave123/contexta/backend/internal/service/auth"
	"github.com/markdave123/contexta/backend/internal/store"
)

type recordingSender struct {
	phone string
	code  string
}

func (r *recordingSender) SendOTP(_ context.Context, phone, code string) error {
	r.phone = phone
	r.code = code
	return nil
}

func setupAuth(t *testing.T, sender auth.Sender, ttl time.Duration) *auth.Service {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return auth.NewService(st, sender, ttl)
}

func TestRegisterAndResolve(t *testing.T) {
	svc := setupAuth(t, nil, 0)
	ctx := context.Background()

	u, err := svc.Register(ctx, "amy@example.com", "Amy", "1992-03-14", "+15550100", "correct horse")
	if err != nil {
		t.Fatalf("Register err: %v", err)
	}

	userID, err := svc.Resolve(ctx, "amy@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Resolve err: %v", err)
	}
	if userID != u.ID {
		t.Fatalf("resolved id %s, want %s", userID, u.ID)
	}
}

func TestResolveWrongPassword(t *testing.T) {
	svc := setupAuth(t, nil, 0)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "amy@example.com", "Amy", "", "+15550100", "correct horse"); err != nil {
		t.Fatalf("Register err: %v", err)
	}

	if _, err := svc.Resolve(ctx, "amy@example.com", "wrong"); !errors.Is(err, auth.ErrBadCredentials) {
		t.Fatalf("expected ErrBadCredentials, got %v", err)
	}
	if _, err := svc.Resolve(ctx, "nobody@example.com", "whatever"); !errors.Is(err, auth.ErrBadCredentials) {
		t.Fatalf("unknown email must not be distinguishable, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := setupAuth(t, nil, 0)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "not-an-email", "X", "", "+15550100", "longenough"); !errors.Is(err, auth.ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
	if _, err := svc.Register(ctx, "ok@example.com", "X", "", "+15550100", "short"); !errors.Is(err, auth.ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}

func TestOTPFlow(t *testing.T) {
	sender := &recordingSender{}
	svc := setupAuth(t, sender, time.Minute)
	ctx := context.Background()

	if err := svc.RequestOTP(ctx, "+15550100"); err != nil {
		t.Fatalf("RequestOTP err: %v", err)
	}
	if sender.phone != "+15550100" || len(sender.code) != 6 {
		t.Fatalf("unexpected delivery: phone=%s code=%s", sender.phone, sender.code)
	}

	wrong := "000000"
	if sender.code == wrong {
		wrong = "111111"
	}
	if err := svc.VerifyOTP(ctx, "+15550100", wrong); !errors.Is(err, auth.ErrBadOTP) {
		t.Fatalf("expected ErrBadOTP for wrong code, got %v", err)
	}
	if err := svc.VerifyOTP(ctx, "+15550100", sender.code); err != nil {
		t.Fatalf("VerifyOTP err: %v", err)
	}
	// Codes are single use.
	if err := svc.VerifyOTP(ctx, "+15550100", sender.code); !errors.Is(err, auth.ErrBadOTP) {
		t.Fatalf("expected ErrBadOTP on reuse, got %v", err)
	}
}

func TestOTPExpiry(t *testing.T) {
	sender := &recordingSender{}
	svc := setupAuth(t, sender, time.Nanosecond)
	ctx := context.Background()

	if err := svc.RequestOTP(ctx, "+15550100"); err != nil {
		t.Fatalf("RequestOTP err: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if err := svc.VerifyOTP(ctx, "+15550100", sender.code); !errors.Is(err, auth.ErrBadOTP) {
		t.Fatalf("expected ErrBadOTP after expiry, got %v", err)
	}
}
