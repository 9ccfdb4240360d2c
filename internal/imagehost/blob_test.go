package imagehost_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fardin04/pu-found-lost-hub/internal/domain"
	"github.com/fardin04/pu-found-lost-hub/internal/imagehost"
	"github.com/fardin04/pu-found-lost-hub/internal/repository/sqlite"
)

var pngHeader = []byte("\x89PNG\x0D\x0A\x1A\x0A\x00\x00\x00\x0DIHDR")

func newBlobHost(t *testing.T) *imagehost.BlobHost {
	t.Helper()
	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New DB: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return imagehost.NewBlobHost(db.FileStore(), "http://localhost:8080/")
}

func TestBlobHost_UploadAndOpen(t *testing.T) {
	host := newBlobHost(t)
	ctx := context.Background()

	url, err := host.Upload(ctx, &domain.File{Name: "wallet.png", Data: pngHeader})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !strings.HasPrefix(url, "http://localhost:8080/images/post-images/") {
		t.Fatalf("unexpected url %q", url)
	}

	key := strings.TrimPrefix(url, "http://localhost:8080/images/")
	data, contentType, err := host.Open(ctx, key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if contentType != "image/png" {
		t.Fatalf("expected image/png, got %s", contentType)
	}
	if string(data) != string(pngHeader) {
		t.Fatal("stored bytes differ from uploaded bytes")
	}
}

func TestBlobHost_RejectsNonImage(t *testing.T) {
	host := newBlobHost(t)

	_, err := host.Upload(context.Background(), &domain.File{Name: "notes.txt", Data: []byte("hello there")})
	if !errors.Is(err, domain.ErrHostRejected) {
		t.Fatalf("expected ErrHostRejected, got %v", err)
	}
	var uerr *domain.UploadError
	if !errors.As(err, &uerr) || uerr.Reason == "" {
		t.Fatalf("expected a rejection reason, got %v", err)
	}
}

func TestBlobHost_RejectsOversizedImage(t *testing.T) {
	host := newBlobHost(t)

	data := make([]byte, imagehost.MaxImageSize+1)
	copy(data, pngHeader)
	_, err := host.Upload(context.Background(), &domain.File{Name: "big.png", Data: data})
	if !errors.Is(err, domain.ErrHostRejected) {
		t.Fatalf("expected ErrHostRejected, got %v", err)
	}
}

func TestBlobHost_OpenUnknownKey(t *testing.T) {
	host := newBlobHost(t)
	ctx := context.Background()

	if _, _, err := host.Open(ctx, "post-images/missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, _, err := host.Open(ctx, "other/key"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign key, got %v", err)
	}
}
