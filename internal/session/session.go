// Package session holds the per-shopper session: the cart it points to and
// the login, if any. Sessions are explicit values passed to whoever needs
// them, restored at the start of a request and torn down on logout.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
)

// DefaultTTL is how long an idle session is kept.
const DefaultTTL = 7 * 24 * time.Hour

// ErrSessionNotFound is returned by stores for unknown or expired ids.
var ErrSessionNotFound = errors.New("session not found")

// Session is one shopper's state.
type Session struct {
	ID        string       `json:"id"`
	CartID    string       `json:"cart_id"`
	Token     string       `json:"token,omitempty"`
	User      *entity.User `json:"user,omitempty"`
	ExpiresAt time.Time    `json:"expires_at"` // token expiry, zero when unknown
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Authenticated reports whether the session carries a logged-in user.
func (s *Session) Authenticated() bool {
	return s != nil && s.Token != "" && s.User != nil
}

// HasRole reports whether the logged-in user has role.
func (s *Session) HasRole(role string) bool {
	return s.Authenticated() && s.User.HasRole(role)
}

func (s *Session) IsAdmin() bool {
	return s.HasRole(entity.RoleAdmin) || s.HasRole(entity.RoleSuperAdmin)
}

func (s *Session) IsSuperAdmin() bool {
	return s.HasRole(entity.RoleSuperAdmin)
}

// Store persists sessions.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Put(ctx context.Context, s *Session, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// Authenticator exchanges credentials for a token and a user profile.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (token string, user entity.User, err error)
}

// AuthFunc adapts a plain function to Authenticator.
type AuthFunc func(ctx context.Context, email, password string) (string, entity.User, error)

func (f AuthFunc) Login(ctx context.Context, email, password string) (string, entity.User, error) {
	return f(ctx, email, password)
}

// Manager drives the session lifecycle.
type Manager struct {
	store Store
	auth  Authenticator
	ttl   time.Duration
	now   func() time.Time
}

func NewManager(store Store, auth Authenticator, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: store, auth: auth, ttl: ttl, now: time.Now}
}

// Restore loads the session with the given id, or starts a fresh one with a
// new cart when the id is empty or unknown. A login whose token has expired
// is dropped; the cart survives.
func (m *Manager) Restore(ctx context.Context, id string) (*Session, error) {
	if id != "" {
		s, err := m.store.Get(ctx, id)
		switch {
		case err == nil:
			if s.Token != "" && !s.ExpiresAt.IsZero() && !m.now().Before(s.ExpiresAt) {
				slog.Info("Session token expired", "session_id", s.ID)
				s.Token, s.User, s.ExpiresAt = "", nil, time.Time{}
				if err := m.Save(ctx, s); err != nil {
					return nil, err
				}
			}
			return s, nil
		case !errors.Is(err, ErrSessionNotFound):
			return nil, fmt.Errorf("failed to load session: %w", err)
		}
	}

	now := m.now().UTC()
	s := &Session{
		ID:        uuid.NewString(),
		CartID:    uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.Put(ctx, s, m.ttl); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	slog.Info("Session created", "session_id", s.ID, "cart_id", s.CartID)
	return s, nil
}

// Login authenticates the session.
func (m *Manager) Login(ctx context.Context, s *Session, email, password string) error {
	if email == "" || password == "" {
		return &entity.ValidationError{Field: "credentials", Reason: "email and password are required"}
	}
	token, user, err := m.auth.Login(ctx, email, password)
	if err != nil {
		return err
	}
	s.Token = token
	s.User = &user
	s.ExpiresAt = TokenExpiry(token)
	if err := m.Save(ctx, s); err != nil {
		return err
	}
	slog.Info("Session logged in", "session_id", s.ID, "user_id", user.ID)
	return nil
}

// Logout removes the login from the session. The cart is kept.
func (m *Manager) Logout(ctx context.Context, s *Session) error {
	s.Token, s.User, s.ExpiresAt = "", nil, time.Time{}
	if err := m.Save(ctx, s); err != nil {
		return err
	}
	slog.Info("Session logged out", "session_id", s.ID)
	return nil
}

// Save stores the session and extends its TTL.
func (m *Manager) Save(ctx context.Context, s *Session) error {
	s.UpdatedAt = m.now().UTC()
	if err := m.store.Put(ctx, s, m.ttl); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Destroy deletes the session.
func (m *Manager) Destroy(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// TokenExpiry reads the exp claim of a JWT without verifying it; the
// backend verifies tokens. Opaque or malformed tokens yield the zero time.
func TokenExpiry(token string) time.Time {
	if token == "" {
		return time.Time{}
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
