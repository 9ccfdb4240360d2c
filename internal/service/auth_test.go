package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fardin04/pu-found-lost-hub/internal/domain"
	"github.com/fardin04/pu-found-lost-hub/internal/service"
)

func tokenFromMail(t *testing.T, msg domain.Message) string {
	t.Helper()
	i := strings.LastIndex(msg.Body, "token=")
	if i < 0 {
		t.Fatalf("no token in mail body %q", msg.Body)
	}
	return strings.TrimSpace(msg.Body[i+len("token="):])
}

func TestAuthService_CreateAccount_Success(t *testing.T) {
	env := newTestEnv(t)

	identity, err := env.auth.CreateAccount(context.Background(), "  New@Campus.Example ", "password123")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if identity.ID == "" {
		t.Fatal("expected identity ID to be set")
	}
	if identity.Email != "new@campus.example" {
		t.Fatalf("expected normalised email, got %s", identity.Email)
	}
	if identity.EmailVerified {
		t.Fatal("new password accounts must start unverified")
	}
	if identity.Provider != domain.ProviderPassword {
		t.Fatalf("expected provider password, got %s", identity.Provider)
	}
}

func TestAuthService_CreateAccount_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.auth.CreateAccount(ctx, "dup@campus.example", "password123"); err != nil {
		t.Fatalf("first CreateAccount: %v", err)
	}

	tests := []struct {
		name     string
		email    string
		password string
		want     error
	}{
		{"duplicate email", "dup@campus.example", "password456", domain.ErrDuplicateEmail},
		{"duplicate email different case", "DUP@campus.example", "password456", domain.ErrDuplicateEmail},
		{"weak password", "weak@campus.example", "short", domain.ErrWeakPassword},
		{"invalid email", "not-an-email", "password123", domain.ErrInvalidEmail},
		{"missing domain dot", "someone@localhost", "password123", domain.ErrInvalidEmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.auth.CreateAccount(ctx, tt.email, tt.password)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestAuthService_SignIn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.auth.CreateAccount(ctx, "login@campus.example", "password123"); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	session, err := env.auth.SignIn(ctx, "login@campus.example", "password123")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if session.Token == "" || session.ID == "" {
		t.Fatal("expected token and session id")
	}

	identity, err := env.auth.ValidateSession(ctx, session.Token)
	if err != nil {
		t.Fatalf("ValidateSession: %v", err)
	}
	if identity.ID != session.Identity.ID {
		t.Fatalf("expected identity %s, got %s", session.Identity.ID, identity.ID)
	}

	if _, err := env.auth.SignIn(ctx, "login@campus.example", "wrongpassword"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, err := env.auth.SignIn(ctx, "nobody@campus.example", "password123"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestAuthService_ValidateSession_RejectsGarbage(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.auth.ValidateSession(context.Background(), "not.a.jwt"); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestAuthService_ValidateSession_RejectsOtherPurpose(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	identity, err := env.auth.CreateAccount(ctx, "purpose@campus.example", "password123")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if err := env.auth.SendVerificationEmail(ctx, identity); err != nil {
		t.Fatalf("SendVerificationEmail: %v", err)
	}
	verifyToken := tokenFromMail(t, env.mailer.Sent()[0])

	if _, err := env.auth.ValidateSession(ctx, verifyToken); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("verification token must not work as a session, got %v", err)
	}
}

func TestAuthService_SignOut_RevokesAndNotifies(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.auth.CreateAccount(ctx, "out@campus.example", "password123"); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	session, err := env.auth.SignIn(ctx, "out@campus.example", "password123")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	var seen []*domain.Identity
	cancel := env.auth.OnSessionChange(ctx, session.Token, func(id *domain.Identity) {
		seen = append(seen, id)
	})
	defer cancel()

	if len(seen) != 1 || seen[0] == nil {
		t.Fatalf("expected one initial callback with the identity, got %v", seen)
	}

	if err := env.auth.SignOut(ctx, session.Token); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if len(seen) != 2 || seen[1] != nil {
		t.Fatalf("expected a nil callback after sign-out, got %v", seen)
	}

	if _, err := env.auth.ValidateSession(ctx, session.Token); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected revoked session to be invalid, got %v", err)
	}
}

func TestAuthService_OnSessionChange_InvalidToken(t *testing.T) {
	env := newTestEnv(t)

	calls := 0
	var got *domain.Identity
	cancel := env.auth.OnSessionChange(context.Background(), "bogus", func(id *domain.Identity) {
		calls++
		got = id
	})
	cancel()
	cancel()

	if calls != 1 || got != nil {
		t.Fatalf("expected a single nil callback, got %d calls with %v", calls, got)
	}
}

func TestAuthService_SessionExpires(t *testing.T) {
	db := newTestDB(t)
	auth := service.NewAuthService(db.Accounts(), db.Sessions(), service.NewLogMailer(), testJWTSecret, 4,
		service.WithSessionTTL(time.Nanosecond))
	ctx := context.Background()

	if _, err := auth.CreateAccount(ctx, "short@campus.example", "password123"); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	session, err := auth.SignIn(ctx, "short@campus.example", "password123")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	time.Sleep(time.Millisecond)

	if _, err := auth.ValidateSession(ctx, session.Token); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected expired session to be invalid, got %v", err)
	}
	// Expired sessions can still be signed out.
	if err := auth.SignOut(ctx, session.Token); err != nil {
		t.Fatalf("SignOut expired session: %v", err)
	}
}

func TestAuthService_ConfirmEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	identity, err := env.auth.CreateAccount(ctx, "verify@campus.example", "password123")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if err := env.auth.SendVerificationEmail(ctx, identity); err != nil {
		t.Fatalf("SendVerificationEmail: %v", err)
	}

	sent := env.mailer.Sent()
	if len(sent) != 1 || sent[0].To != "verify@campus.example" {
		t.Fatalf("expected one mail to the account, got %+v", sent)
	}
	if !strings.Contains(sent[0].Body, "http://lostfound.test/verify-email?token=") {
		t.Fatalf("expected verification link, got %q", sent[0].Body)
	}

	if err := env.auth.ConfirmEmail(ctx, tokenFromMail(t, sent[0])); err != nil {
		t.Fatalf("ConfirmEmail: %v", err)
	}

	account, err := env.db.Accounts().GetByID(ctx, identity.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !account.EmailVerified {
		t.Fatal("expected email to be verified")
	}

	if err := env.auth.ConfirmEmail(ctx, "bogus"); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestAuthService_PasswordReset(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.auth.CreateAccount(ctx, "reset@campus.example", "password123"); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if err := env.auth.SendPasswordReset(ctx, "Reset@campus.example"); err != nil {
		t.Fatalf("SendPasswordReset: %v", err)
	}
	token := tokenFromMail(t, env.mailer.Sent()[0])

	if err := env.auth.ResetPassword(ctx, token, "short"); !errors.Is(err, domain.ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if err := env.auth.ResetPassword(ctx, token, "newpassword456"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}

	if _, err := env.auth.SignIn(ctx, "reset@campus.example", "password123"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("old password should stop working, got %v", err)
	}
	if _, err := env.auth.SignIn(ctx, "reset@campus.example", "newpassword456"); err != nil {
		t.Fatalf("SignIn with new password: %v", err)
	}

	if err := env.auth.ResetPassword(ctx, token, "anotherpass789"); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("reset link should be single-use, got %v", err)
	}
}

func TestAuthService_SendPasswordReset_UnknownEmail(t *testing.T) {
	env := newTestEnv(t)

	err := env.auth.SendPasswordReset(context.Background(), "ghost@campus.example")
	if !errors.Is(err, domain.ErrUnknownEmail) {
		t.Fatalf("expected ErrUnknownEmail, got %v", err)
	}
	if len(env.mailer.Sent()) != 0 {
		t.Fatal("no mail should be sent for an unknown address")
	}
}

func TestAuthService_SignInFederated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	idToken, err := env.federated.Sign(service.FederatedClaims{
		Email:         "Student@Campus.Example",
		EmailVerified: true,
		Name:          "Student One",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "fed-123",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	first, err := env.auth.SignInFederated(ctx, idToken)
	if err != nil {
		t.Fatalf("SignInFederated: %v", err)
	}
	if first.Identity.Email != "student@campus.example" || !first.Identity.EmailVerified {
		t.Fatalf("unexpected identity %+v", first.Identity)
	}
	if first.Identity.DisplayName != "Student One" {
		t.Fatalf("expected display name from token, got %q", first.Identity.DisplayName)
	}
	if first.Identity.Provider != domain.ProviderFederated {
		t.Fatalf("expected federated provider, got %s", first.Identity.Provider)
	}

	second, err := env.auth.SignInFederated(ctx, idToken)
	if err != nil {
		t.Fatalf("second SignInFederated: %v", err)
	}
	if second.Identity.ID != first.Identity.ID {
		t.Fatal("expected the same identity on repeat federated sign-in")
	}

	// Federated accounts have no password.
	if _, err := env.auth.SignIn(ctx, "student@campus.example", ""); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_SignInFederated_RejectsBadTokens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	other := service.NewFederatedVerifier("some-other-secret-0123456789abcdef", testIssuer)
	forged, _ := other.Sign(service.FederatedClaims{
		Email:            "x@campus.example",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	noExpiry, _ := env.federated.Sign(service.FederatedClaims{Email: "x@campus.example"})
	wrongIssuer, _ := service.NewFederatedVerifier(testFederatedSecret, "https://evil.example").Sign(service.FederatedClaims{
		Email:            "x@campus.example",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})

	for name, token := range map[string]string{
		"forged":       forged,
		"no expiry":    noExpiry,
		"wrong issuer": wrongIssuer,
		"garbage":      "garbage",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := env.auth.SignInFederated(ctx, token); !errors.Is(err, domain.ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

const base64URLAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// setPaddingBit rewrites the last signature character so it decodes to
// the same bytes under lenient base64 but is no longer canonical.
func setPaddingBit(t *testing.T, token string) string {
	t.Helper()
	last := token[len(token)-1]
	i := strings.IndexByte(base64URLAlphabet, last)
	if i < 0 || i%4 != 0 {
		t.Fatalf("unexpected final signature character %q", last)
	}
	return token[:len(token)-1] + string(base64URLAlphabet[i+1])
}

func TestAuthService_ValidateSession_RejectsNonCanonicalSignature(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.auth.CreateAccount(ctx, "strict@campus.example", "password123"); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	session, err := env.auth.SignIn(ctx, "strict@campus.example", "password123")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	if _, err := env.auth.ValidateSession(ctx, setPaddingBit(t, session.Token)); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := env.auth.ValidateSession(ctx, session.Token); err != nil {
		t.Fatalf("original token should still validate: %v", err)
	}
}

func TestFederatedVerifier_RejectsNonCanonicalSignature(t *testing.T) {
	v := service.NewFederatedVerifier(testFederatedSecret, testIssuer)
	token, err := v.Sign(service.FederatedClaims{
		Email:            "x@campus.example",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if _, err := v.Verify(setPaddingBit(t, token)); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := v.Verify(token); err != nil {
		t.Fatalf("original token should verify: %v", err)
	}
}
