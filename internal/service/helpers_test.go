package service_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fardin04/pu-found-lost-hub/internal/domain"
	"github.com/fardin04/pu-found-lost-hub/internal/repository/sqlite"
	"github.com/fardin04/pu-found-lost-hub/internal/service"
)

const (
	testJWTSecret       = "test-secret-key-for-unit-tests-0123456789"
	testFederatedSecret = "test-federated-secret-0123456789abcdef"
	testIssuer          = "https://sso.campus.example"
)

type testEnv struct {
	db        *sqlite.DB
	auth      *service.AuthService
	mailer    *recordingMailer
	federated *service.FederatedVerifier
	gateway   *service.SessionGateway
	host      *fakeHost
	posts     *service.PostService
}

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("New DB: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestEnv(t *testing.T, allowedDomains ...string) *testEnv {
	t.Helper()
	db := newTestDB(t)
	mailer := &recordingMailer{}
	federated := service.NewFederatedVerifier(testFederatedSecret, testIssuer)
	// Use cost 4 for fast tests.
	auth := service.NewAuthService(db.Accounts(), db.Sessions(), mailer, testJWTSecret, 4,
		service.WithFederated(federated),
		service.WithBaseURL("http://lostfound.test"),
	)
	host := &fakeHost{url: "https://img.example.com/a.png"}
	return &testEnv{
		db:        db,
		auth:      auth,
		mailer:    mailer,
		federated: federated,
		gateway:   service.NewSessionGateway(auth, db.Profiles(), allowedDomains),
		host:      host,
		posts:     service.NewPostService(db.Posts(), db.Profiles(), service.NewMediaUploader(host)),
	}
}

// register creates an account with a profile and signs it in.
func (e *testEnv) register(t *testing.T, email string) *domain.Session {
	t.Helper()
	ctx := context.Background()
	if _, err := e.gateway.Register(ctx, email, "password123", domain.ProfileInput{DisplayName: "Test User"}); err != nil {
		t.Fatalf("Register %s: %v", email, err)
	}
	session, err := e.gateway.SignIn(ctx, email, "password123")
	if err != nil {
		t.Fatalf("SignIn %s: %v", email, err)
	}
	return session
}

func validPostInput() domain.PostInput {
	return domain.PostInput{
		Title:       "Blue backpack",
		Category:    "Lost",
		Location:    "Library, 2nd floor",
		Description: "Navy blue with a keychain",
		Contact:     "01700000000",
	}
}

type fakeHost struct {
	mu    sync.Mutex
	calls int
	url   string
	err   error
	block chan struct{}
}

func (h *fakeHost) Upload(ctx context.Context, file *domain.File) (string, error) {
	h.mu.Lock()
	h.calls++
	block := h.block
	h.mu.Unlock()
	if block != nil {
		<-block
	}
	return h.url, h.err
}

func (h *fakeHost) Calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// recordingMailer keeps every message it is asked to send.
type recordingMailer struct {
	mu   sync.Mutex
	sent []domain.Message
}

func (m *recordingMailer) Send(_ context.Context, msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) Sent() []domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Message(nil), m.sent...)
}
