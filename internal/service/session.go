package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fardin04/pu-found-lost-hub/internal/domain"
)

// IdentityProvider is the account and session authority the gateway
// talks to.
type IdentityProvider interface {
	CreateAccount(ctx context.Context, email, password string) (*domain.Identity, error)
	SignIn(ctx context.Context, email, password string) (*domain.Session, error)
	SignInFederated(ctx context.Context, idToken string) (*domain.Session, error)
	SignOut(ctx context.Context, token string) error
	ValidateSession(ctx context.Context, token string) (*domain.Identity, error)
	OnSessionChange(ctx context.Context, token string, fn func(*domain.Identity)) func()
	SendVerificationEmail(ctx context.Context, identity *domain.Identity) error
	SendPasswordReset(ctx context.Context, email string) error
	ConfirmEmail(ctx context.Context, token string) error
	ResetPassword(ctx context.Context, token, password string) error
}

// SessionStatus is where a SessionStore is in its lifecycle.
type SessionStatus int

const (
	SessionUninitialized SessionStatus = iota
	SessionPending
	SessionAuthenticated
	SessionAnonymous
)

func (s SessionStatus) String() string {
	switch s {
	case SessionPending:
		return "pending"
	case SessionAuthenticated:
		return "authenticated"
	case SessionAnonymous:
		return "anonymous"
	}
	return "uninitialized"
}

// SessionState is a point-in-time view of a SessionStore. Identity is set
// only when Status is SessionAuthenticated.
type SessionState struct {
	Status   SessionStatus
	Identity *domain.Identity
	Token    string
}

// SessionStore holds the current identity for one client. Each client owns
// its store; there is no process-wide session.
type SessionStore struct {
	mu        sync.Mutex
	state     SessionState
	listeners map[int]func(SessionState)
	nextID    int
	detach    func()
}

// NewSessionStore returns an uninitialized store.
func NewSessionStore() *SessionStore {
	return &SessionStore{listeners: make(map[int]func(SessionState))}
}

// Current returns the store's state.
func (s *SessionStore) Current() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Identity returns the authenticated identity or nil.
func (s *SessionStore) Identity() *domain.Identity {
	return s.Current().Identity
}

// Subscribe calls fn on every state change until the returned func is
// called.
func (s *SessionStore) Subscribe(fn func(SessionState)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Close detaches the store from the identity provider.
func (s *SessionStore) Close() {
	s.mu.Lock()
	detach := s.detach
	s.detach = nil
	s.mu.Unlock()
	if detach != nil {
		detach()
	}
}

func (s *SessionStore) set(state SessionState) {
	s.mu.Lock()
	s.state = state
	fns := make([]func(SessionState), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

func (s *SessionStore) setDetach(detach func()) {
	s.mu.Lock()
	prev := s.detach
	s.detach = detach
	s.mu.Unlock()
	if prev != nil {
		prev()
	}
}

// SessionGateway wraps the identity provider: it keeps SessionStores in
// step with provider state, creates profile documents alongside accounts,
// and applies the campus domain allowlist to federated sign-in.
type SessionGateway struct {
	provider       IdentityProvider
	profiles       domain.ProfileRepository
	allowedDomains []string
	pending        atomic.Int64
}

// NewSessionGateway creates a gateway. With no allowed domains every
// federated identity is accepted.
func NewSessionGateway(provider IdentityProvider, profiles domain.ProfileRepository, allowedDomains []string) *SessionGateway {
	domains := make([]string, 0, len(allowedDomains))
	for _, d := range allowedDomains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			domains = append(domains, strings.TrimPrefix(d, "@"))
		}
	}
	return &SessionGateway{provider: provider, profiles: profiles, allowedDomains: domains}
}

// Pending reports whether any mutating operation is in flight.
func (g *SessionGateway) Pending() bool {
	return g.pending.Load() > 0
}

func (g *SessionGateway) begin() func() {
	g.pending.Add(1)
	return func() { g.pending.Add(-1) }
}

// Attach binds store to the session behind token. The store is pending
// until the provider reports, then authenticated or anonymous; it drops
// to anonymous if the session is revoked later.
func (g *SessionGateway) Attach(ctx context.Context, store *SessionStore, token string) {
	store.set(SessionState{Status: SessionPending})
	if token == "" {
		store.setDetach(nil)
		store.set(SessionState{Status: SessionAnonymous})
		return
	}

	cancel := g.provider.OnSessionChange(ctx, token, func(identity *domain.Identity) {
		if identity == nil {
			store.set(SessionState{Status: SessionAnonymous})
			return
		}
		store.set(SessionState{Status: SessionAuthenticated, Identity: identity, Token: token})
	})
	store.setDetach(cancel)
}

// Register creates an account, its profile document, and sends the
// verification email. A profile or email failure after the account exists
// is logged, not rolled back: sign-in recreates a missing profile and the
// user can ask for the email again.
func (g *SessionGateway) Register(ctx context.Context, email, password string, in domain.ProfileInput) (*domain.Identity, error) {
	defer g.begin()()

	identity, err := g.provider.CreateAccount(ctx, email, password)
	if err != nil {
		return nil, classifyAuth(err)
	}

	profile := &domain.Profile{
		ID:          identity.ID,
		Email:       identity.Email,
		DisplayName: strings.TrimSpace(in.DisplayName),
		StudentID:   strings.TrimSpace(in.StudentID),
		Department:  strings.TrimSpace(in.Department),
	}
	if err := g.profiles.Create(ctx, profile); err != nil {
		slog.Error("create profile after registration", "identity", identity.ID, "error", err)
	}

	if err := g.provider.SendVerificationEmail(ctx, identity); err != nil {
		slog.Warn("send verification email", "identity", identity.ID, "error", err)
	}

	return identity, nil
}

// SignIn opens an email/password session.
func (g *SessionGateway) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	defer g.begin()()

	session, err := g.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, classifyAuth(err)
	}
	g.ensureProfile(ctx, &session.Identity)
	return session, nil
}

// SignInFederated opens a session from a federated ID token. Identities
// outside the allowed domains are signed straight back out.
func (g *SessionGateway) SignInFederated(ctx context.Context, idToken string) (*domain.Session, error) {
	defer g.begin()()

	session, err := g.provider.SignInFederated(ctx, idToken)
	if err != nil {
		return nil, classifyAuth(err)
	}

	if !g.domainAllowed(session.Identity.Email) {
		if err := g.provider.SignOut(ctx, session.Token); err != nil {
			slog.Warn("sign out disallowed domain", "email", session.Identity.Email, "error", err)
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrDomainNotAllowed, session.Identity.Email)
	}

	g.ensureProfile(ctx, &session.Identity)
	return session, nil
}

// SignOut ends the store's session. Provider failures are logged; the
// store always ends up anonymous.
func (g *SessionGateway) SignOut(ctx context.Context, store *SessionStore) {
	defer g.begin()()

	if token := store.Current().Token; token != "" {
		if err := g.provider.SignOut(ctx, token); err != nil {
			slog.Warn("sign out", "error", err)
		}
	}
	store.setDetach(nil)
	store.set(SessionState{Status: SessionAnonymous})
}

// ResendVerification sends the verification email again.
func (g *SessionGateway) ResendVerification(ctx context.Context, identity *domain.Identity) error {
	if identity == nil {
		return domain.ErrNoSessionActive
	}
	defer g.begin()()
	return classifyAuth(g.provider.SendVerificationEmail(ctx, identity))
}

// RequestPasswordReset emails a reset link to a registered address.
func (g *SessionGateway) RequestPasswordReset(ctx context.Context, email string) error {
	defer g.begin()()
	return classifyAuth(g.provider.SendPasswordReset(ctx, email))
}

// ConfirmEmail completes email verification.
func (g *SessionGateway) ConfirmEmail(ctx context.Context, token string) error {
	defer g.begin()()
	return classifyAuth(g.provider.ConfirmEmail(ctx, token))
}

// ResetPassword completes a password reset.
func (g *SessionGateway) ResetPassword(ctx context.Context, token, password string) error {
	defer g.begin()()
	return classifyAuth(g.provider.ResetPassword(ctx, token, password))
}

// Profile returns the profile document for id.
func (g *SessionGateway) Profile(ctx context.Context, id string) (*domain.Profile, error) {
	return g.profiles.GetByID(ctx, id)
}

func (g *SessionGateway) ensureProfile(ctx context.Context, identity *domain.Identity) {
	_, err := g.profiles.GetByID(ctx, identity.ID)
	if err == nil {
		return
	}
	if !errors.Is(err, domain.ErrNotFound) {
		slog.Error("look up profile", "identity", identity.ID, "error", err)
		return
	}

	err = g.profiles.Create(ctx, &domain.Profile{
		ID:          identity.ID,
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
	})
	if err != nil && !errors.Is(err, domain.ErrConflict) {
		slog.Error("create missing profile", "identity", identity.ID, "error", err)
	}
}

func (g *SessionGateway) domainAllowed(email string) bool {
	if len(g.allowedDomains) == 0 {
		return true
	}
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	host := strings.ToLower(email[at+1:])
	for _, d := range g.allowedDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// classifyAuth keeps taxonomy errors as they are and reports anything else
// as a network failure reaching the provider.
func classifyAuth(err error) error {
	if err == nil {
		return nil
	}
	var (
		aerr *domain.AuthError
		verr *domain.ValidationError
	)
	if errors.As(err, &aerr) || errors.As(err, &verr) {
		return err
	}
	return &domain.AuthError{Kind: domain.AuthNetwork, Err: err}
}
