package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/fardin04/pu-found-lost-hub/internal/domain"
)

const (
	minPasswordLength = 8

	purposeSession       = "session"
	purposeVerifyEmail   = "verify_email"
	purposeResetPassword = "reset_password"

	verifyEmailTTL   = 24 * time.Hour
	resetPasswordTTL = time.Hour
)

// AuthService is the identity provider: it owns accounts and sessions,
// issues signed tokens, and sends verification and reset emails.
type AuthService struct {
	accounts   domain.AccountRepository
	sessions   domain.SessionRepository
	mailer     domain.Mailer
	federated  *FederatedVerifier
	jwtSecret  []byte
	bcryptCost int
	baseURL    string
	sessionTTL time.Duration
	now        func() time.Time

	mu       sync.Mutex
	watchers map[string]map[int]func(*domain.Identity)
	nextID   int
}

// AuthOption customises an AuthService.
type AuthOption func(*AuthService)

// WithFederated enables federated sign-in with the given ID token verifier.
func WithFederated(v *FederatedVerifier) AuthOption {
	return func(s *AuthService) { s.federated = v }
}

// WithBaseURL sets the public URL used to build links in emails.
func WithBaseURL(url string) AuthOption {
	return func(s *AuthService) { s.baseURL = strings.TrimRight(url, "/") }
}

// WithSessionTTL overrides the 24h session lifetime.
func WithSessionTTL(d time.Duration) AuthOption {
	return func(s *AuthService) { s.sessionTTL = d }
}

// NewAuthService creates a new AuthService.
func NewAuthService(accounts domain.AccountRepository, sessions domain.SessionRepository, mailer domain.Mailer, jwtSecret string, bcryptCost int, opts ...AuthOption) *AuthService {
	s := &AuthService{
		accounts:   accounts,
		sessions:   sessions,
		mailer:     mailer,
		jwtSecret:  []byte(jwtSecret),
		bcryptCost: bcryptCost,
		baseURL:    "http://localhost:8080",
		sessionTTL: 24 * time.Hour,
		now:        time.Now,
		watchers:   make(map[string]map[int]func(*domain.Identity)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateAccount registers an email/password account.
func (s *AuthService) CreateAccount(ctx context.Context, email, password string) (*domain.Identity, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrWeakPassword, minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account := &domain.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Provider:     domain.ProviderPassword,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return nil, domain.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	identity := account.Identity()
	return &identity, nil
}

// SignIn verifies credentials and opens a new session.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	account, err := s.accounts.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get account: %w", err)
	}

	// Federated-only accounts have no password to compare against.
	if account.PasswordHash == "" {
		return nil, domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	return s.openSession(ctx, account, "")
}

// SignInFederated exchanges a federated ID token for a session, creating
// the account on first use.
func (s *AuthService) SignInFederated(ctx context.Context, idToken string) (*domain.Session, error) {
	if s.federated == nil {
		return nil, fmt.Errorf("%w: federated sign-in is not configured", domain.ErrInvalidToken)
	}

	claims, err := s.federated.Verify(idToken)
	if err != nil {
		return nil, err
	}
	email, err := normalizeEmail(claims.Email)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		account = &domain.Account{
			ID:            uuid.NewString(),
			Email:         email,
			Provider:      domain.ProviderFederated,
			EmailVerified: claims.EmailVerified,
		}
		err = s.accounts.Create(ctx, account)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve federated account: %w", err)
	}

	return s.openSession(ctx, account, claims.Name)
}

// ValidateSession resolves a session token to its identity. Expired,
// revoked, or forged tokens yield ErrInvalidToken.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (*domain.Identity, error) {
	claims, err := s.parse(token, purposeSession, true)
	if err != nil {
		return nil, err
	}

	sid, _ := claims["sid"].(string)
	record, err := s.sessions.GetByID(ctx, sid)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidToken
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if !record.Active(s.now()) {
		return nil, domain.ErrInvalidToken
	}

	account, err := s.accounts.GetByID(ctx, record.AccountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidToken
		}
		return nil, fmt.Errorf("get account: %w", err)
	}

	identity := account.Identity()
	if name, ok := claims["name"].(string); ok {
		identity.DisplayName = name
	}
	return &identity, nil
}

// SignOut revokes the session behind token and tells its watchers the
// session ended. Expired tokens can still be signed out.
func (s *AuthService) SignOut(ctx context.Context, token string) error {
	claims, err := s.parse(token, purposeSession, false)
	if err != nil {
		return err
	}
	sid, _ := claims["sid"].(string)
	if err := s.sessions.Revoke(ctx, sid); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	s.fire(sid, nil)
	return nil
}

// OnSessionChange reports the identity behind token to fn right away (nil
// when the token is not a live session) and again with nil once the session
// is revoked. The returned func stops further calls and may be called more
// than once.
func (s *AuthService) OnSessionChange(ctx context.Context, token string, fn func(*domain.Identity)) func() {
	identity, err := s.ValidateSession(ctx, token)
	if err != nil {
		fn(nil)
		return func() {}
	}

	claims, _ := s.parse(token, purposeSession, false)
	sid, _ := claims["sid"].(string)

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	if s.watchers[sid] == nil {
		s.watchers[sid] = make(map[int]func(*domain.Identity))
	}
	s.watchers[sid][id] = fn
	s.mu.Unlock()

	fn(identity)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.watchers[sid], id)
			if len(s.watchers[sid]) == 0 {
				delete(s.watchers, sid)
			}
		})
	}
}

// SendVerificationEmail mails a link that confirms the identity's address.
func (s *AuthService) SendVerificationEmail(ctx context.Context, identity *domain.Identity) error {
	if identity == nil {
		return domain.ErrNoSessionActive
	}
	token, err := s.sign(jwt.MapClaims{
		"sub":     identity.ID,
		"purpose": purposeVerifyEmail,
		"exp":     s.now().Add(verifyEmailTTL).Unix(),
	})
	if err != nil {
		return fmt.Errorf("sign verification token: %w", err)
	}

	return s.mailer.Send(ctx, domain.Message{
		To:      identity.Email,
		Subject: "Verify your email",
		Body: "Click the link below to activate your account.\n\n" +
			s.baseURL + "/verify-email?token=" + token,
	})
}

// SendPasswordReset mails a single-use reset link to a registered address.
func (s *AuthService) SendPasswordReset(ctx context.Context, email string) error {
	account, err := s.accounts.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrUnknownEmail
		}
		return fmt.Errorf("get account: %w", err)
	}

	// "ver" pins the token to the account's current revision, so it stops
	// working once the password has been changed.
	token, err := s.sign(jwt.MapClaims{
		"sub":     account.ID,
		"purpose": purposeResetPassword,
		"ver":     strconv.FormatInt(account.UpdatedAt.UnixNano(), 10),
		"exp":     s.now().Add(resetPasswordTTL).Unix(),
	})
	if err != nil {
		return fmt.Errorf("sign reset token: %w", err)
	}

	return s.mailer.Send(ctx, domain.Message{
		To:      account.Email,
		Subject: "Reset your password",
		Body: "Use the link below to choose a new password. It expires in one hour.\n\n" +
			s.baseURL + "/reset-password?token=" + token,
	})
}

// ConfirmEmail marks the account behind a verification token as verified.
func (s *AuthService) ConfirmEmail(ctx context.Context, token string) error {
	claims, err := s.parse(token, purposeVerifyEmail, true)
	if err != nil {
		return err
	}
	sub, _ := claims.GetSubject()
	if err := s.accounts.SetEmailVerified(ctx, sub); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrInvalidToken
		}
		return fmt.Errorf("verify email: %w", err)
	}
	return nil
}

// ResetPassword sets a new password using a reset token.
func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	claims, err := s.parse(token, purposeResetPassword, true)
	if err != nil {
		return err
	}
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", domain.ErrWeakPassword, minPasswordLength)
	}

	sub, _ := claims.GetSubject()
	account, err := s.accounts.GetByID(ctx, sub)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrInvalidToken
		}
		return fmt.Errorf("get account: %w", err)
	}
	if ver, _ := claims["ver"].(string); ver != strconv.FormatInt(account.UpdatedAt.UnixNano(), 10) {
		return fmt.Errorf("%w: reset link already used", domain.ErrInvalidToken)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.accounts.SetPasswordHash(ctx, account.ID, string(hash)); err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	return nil
}

func (s *AuthService) openSession(ctx context.Context, account *domain.Account, displayName string) (*domain.Session, error) {
	now := s.now()
	record := &domain.SessionRecord{
		ID:        uuid.NewString(),
		AccountID: account.ID,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if err := s.sessions.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	claims := jwt.MapClaims{
		"sub":     account.ID,
		"sid":     record.ID,
		"email":   account.Email,
		"purpose": purposeSession,
		"iat":     now.Unix(),
		"exp":     record.ExpiresAt.Unix(),
	}
	if displayName != "" {
		claims["name"] = displayName
	}
	token, err := s.sign(claims)
	if err != nil {
		return nil, fmt.Errorf("generate jwt: %w", err)
	}

	identity := account.Identity()
	identity.DisplayName = displayName
	return &domain.Session{
		ID:        record.ID,
		Token:     token,
		Identity:  identity,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

func (s *AuthService) fire(sid string, identity *domain.Identity) {
	s.mu.Lock()
	fns := make([]func(*domain.Identity), 0, len(s.watchers[sid]))
	for _, fn := range s.watchers[sid] {
		fns = append(fns, fn)
	}
	delete(s.watchers, sid)
	s.mu.Unlock()

	for _, fn := range fns {
		fn(identity)
	}
}

func (s *AuthService) sign(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// parse validates signature and purpose. validate=false skips time-based
// claim checks, which sign-out needs for expired tokens.
func (s *AuthService) parse(tokenString, purpose string, validate bool) (jwt.MapClaims, error) {
	opts := []jwt.ParserOption{jwt.WithTimeFunc(s.now), jwt.WithStrictDecoding()}
	if !validate {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, opts...)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, domain.ErrInvalidToken
	}
	if p, _ := claims["purpose"].(string); p != purpose {
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidEmail, email)
	}
	return email, nil
}
