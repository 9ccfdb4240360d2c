package domain

import (
	"context"
	"time"
)

const (
	ProviderPassword  = "password"
	ProviderFederated = "federated"
)

// Identity is an authenticated user as tracked by the identity provider.
type Identity struct {
	ID            string
	Email         string
	DisplayName   string
	EmailVerified bool
	Provider      string
}

// Session is a signed-in identity together with the bearer token that
// represents it to the server.
type Session struct {
	ID        string
	Token     string
	Identity  Identity
	ExpiresAt time.Time
}

// Account is the provider-side credential record behind an Identity.
type Account struct {
	ID            string
	Email         string
	PasswordHash  string // empty for federated accounts
	Provider      string
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Identity returns the public view of the account.
func (a *Account) Identity() Identity {
	return Identity{
		ID:            a.ID,
		Email:         a.Email,
		EmailVerified: a.EmailVerified,
		Provider:      a.Provider,
	}
}

// AccountRepository persists provider accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *Account) error
	GetByID(ctx context.Context, id string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	SetEmailVerified(ctx context.Context, id string) error
	SetPasswordHash(ctx context.Context, id, hash string) error
}

// SessionRecord tracks an issued session so sign-out can revoke it.
type SessionRecord struct {
	ID        string
	AccountID string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Active reports whether the session is usable at now.
func (s *SessionRecord) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// SessionRepository persists issued sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *SessionRecord) error
	GetByID(ctx context.Context, id string) (*SessionRecord, error)
	Revoke(ctx context.Context, id string) error
}

// Profile is the application-owned user document keyed by identity id.
type Profile struct {
	ID          string
	Email       string
	DisplayName string
	StudentID   string
	Department  string
	CreatedAt   time.Time
}

// ProfileInput carries the free-text fields collected at registration.
type ProfileInput struct {
	DisplayName string
	StudentID   string
	Department  string
}

// ProfileRepository persists profile documents. Create fails with
// ErrConflict when a profile already exists for the id.
type ProfileRepository interface {
	Create(ctx context.Context, profile *Profile) error
	GetByID(ctx context.Context, id string) (*Profile, error)
}
