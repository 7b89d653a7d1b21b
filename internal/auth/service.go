package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/claude/quickfit/internal/models"
	"github.com/claude/quickfit/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultTTL     = 24 * 7 * time.Hour
	MinPasswordLen = 6
	bcryptCost     = 12
	tokenBytes     = 32
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUnauthenticated    = errors.New("not logged in")
)

// ValidationError describes bad signup input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Store is the account persistence the service needs.
type Store interface {
	CreateUser(ctx context.Context, email, passwordHash string) (int, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateSession(ctx context.Context, tokenHash string, userID int, expiresAt time.Time) error
	GetSessionUser(ctx context.Context, tokenHash string, now time.Time) (*models.User, error)
	DeleteSession(ctx context.Context, tokenHash string) error
}

var (
	_ Store = (*storage.DB)(nil)
	_ Store = (*storage.SQLite)(nil)
)

// Service handles email/password accounts and opaque session tokens.
// Only a SHA-256 of each token is persisted.
type Service struct {
	store Store
	ttl   time.Duration
	cost  int

	// injectable for tests
	Now      func() time.Time
	NewToken func() (string, error)
}

// NewService creates a Service. A zero ttl means DefaultTTL.
func NewService(store Store, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		store:    store,
		ttl:      ttl,
		cost:     bcryptCost,
		Now:      time.Now,
		NewToken: randomToken,
	}
}

// Signup registers a new account and logs it in.
func (s *Service) Signup(ctx context.Context, email, password string) (string, *models.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return "", nil, err
	}
	if len(password) < MinPasswordLen {
		return "", nil, &ValidationError{Msg: fmt.Sprintf("password must be at least %d characters", MinPasswordLen)}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", nil, fmt.Errorf("hashing password: %w", err)
	}

	id, err := s.store.CreateUser(ctx, email, string(hash))
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return "", nil, ErrEmailTaken
		}
		return "", nil, err
	}

	user := &models.User{ID: id, Email: email, CreatedAt: s.Now()}
	token, err := s.startSession(ctx, id)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// Login checks credentials and opens a session.
func (s *Service) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if user.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.startSession(ctx, user.ID)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// Logout ends the session. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.store.DeleteSession(ctx, HashToken(token))
}

// Authenticate resolves a session token to its user.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	user, err := s.store.GetSessionUser(ctx, HashToken(token), s.Now())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	return user, nil
}

// TTL is how long new sessions stay valid.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

func (s *Service) startSession(ctx context.Context, userID int) (string, error) {
	token, err := s.NewToken()
	if err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}
	if err := s.store.CreateSession(ctx, HashToken(token), userID, s.Now().Add(s.ttl)); err != nil {
		return "", err
	}
	return token, nil
}

// HashToken returns the hex SHA-256 of a session token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func randomToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", &ValidationError{Msg: "a valid email address is required"}
	}
	return email, nil
}
