package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"regexp"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/markdave123/contexta/backend/internal/model/user"
	"github.com/markdave123/contexta/backend/internal/store"
)

var (
	ErrBadCredentials = errors.New("invalid email or password")
	ErrInvalidEmail   = errors.New("invalid email address")
	ErrWeakPassword   = errors.New("password must be at least 8 characters")
	ErrBadOTP         = errors.New("verification code is wrong or expired")
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Sender delivers a one-time code to a phone number. Delivery transport is a
// collaborator concern; LogSender stands in when none is configured.
type Sender interface {
	SendOTP(ctx context.Context, phone, code string) error
}

// LogSender writes codes to the process log instead of sending them.
type LogSender struct{}

func (LogSender) SendOTP(_ context.Context, phone, code string) error {
	log.Printf("[auth] otp for %s: %s", phone, code)
	return nil
}

type otpEntry struct {
	code    string
	expires time.Time
}

// Service resolves credentials to stable user ids and handles registration
// and phone verification.
type Service struct {
	store  *store.Store
	sender Sender
	otpTTL time.Duration

	mu    sync.Mutex
	codes map[string]otpEntry
}

// NewService wires the auth service. sender may be nil, in which case codes
// are only logged.
func NewService(st *store.Store, sender Sender, otpTTL time.Duration) *Service {
	if sender == nil {
		sender = LogSender{}
	}
	if otpTTL <= 0 {
		otpTTL = 5 * time.Minute
	}
	return &Service{
		store:  st,
		sender: sender,
		otpTTL: otpTTL,
		codes:  make(map[string]otpEntry),
	}
}

// Register creates a new account. Email format is validated here; email and
// phone uniqueness is enforced by the store.
func (s *Service) Register(ctx context.Context, email, name, dateOfBirth, phone, password string) (user.User, error) {
	if !emailPattern.MatchString(email) {
		return user.User{}, fmt.Errorf("%w: %s", ErrInvalidEmail, email)
	}
	if len(password) < 8 {
		return user.User{}, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return user.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	return s.store.CreateUser(ctx, email, name, dateOfBirth, phone, string(hash))
}

// Resolve maps a verified credential to the stable user id.
func (s *Service) Resolve(ctx context.Context, email, password string) (string, error) {
	hash, err := s.store.CredentialHash(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return "", ErrBadCredentials
		}
		return "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return "", ErrBadCredentials
	}

	u, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

// RequestOTP issues a fresh 6-digit code for the phone and hands it to the
// sender. A new request replaces any outstanding code.
func (s *Service) RequestOTP(ctx context.Context, phone string) error {
	if phone == "" {
		return errors.New("phone is required")
	}

	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("failed to generate otp: %w", err)
	}

	s.mu.Lock()
	s.codes[phone] = otpEntry{code: code, expires: time.Now().Add(s.otpTTL)}
	s.mu.Unlock()

	return s.sender.SendOTP(ctx, phone, code)
}

// VerifyOTP checks a code and consumes it on success.
func (s *Service) VerifyOTP(_ context.Context, phone, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.codes[phone]
	if !ok || time.Now().After(entry.expires) || entry.code != code {
		return ErrBadOTP
	}
	delete(s.codes, phone)
	return nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
