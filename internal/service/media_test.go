package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/fardin04/pu-found-lost-hub/internal/domain"
	"github.com/fardin04/pu-found-lost-hub/internal/service"
)

func TestMediaUploader_NoFileSkipsHost(t *testing.T) {
	host := &fakeHost{url: "https://img.example.com/x.png"}
	m := service.NewMediaUploader(host)

	for _, f := range []*domain.File{nil, {Name: "empty.png"}} {
		url, err := m.Upload(context.Background(), f)
		if err != nil {
			t.Fatalf("Upload: %v", err)
		}
		if url != "" {
			t.Fatalf("expected empty url, got %q", url)
		}
	}
	if host.Calls() != 0 {
		t.Fatalf("host should not be contacted, got %d calls", host.Calls())
	}
}

func TestMediaUploader_ReturnsHostURL(t *testing.T) {
	host := &fakeHost{url: "https://img.example.com/x.png"}
	m := service.NewMediaUploader(host)

	url, err := m.Upload(context.Background(), &domain.File{Name: "x.png", Data: []byte{1}})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if url != host.url || host.Calls() != 1 {
		t.Fatalf("expected one call returning %q, got %q after %d calls", host.url, url, host.Calls())
	}
}

func TestMediaUploader_Errors(t *testing.T) {
	rejected := &domain.UploadError{Kind: domain.UploadHostRejected, Reason: "file too large"}

	m := service.NewMediaUploader(&fakeHost{err: rejected})
	_, err := m.Upload(context.Background(), &domain.File{Data: []byte{1}})
	var uerr *domain.UploadError
	if !errors.As(err, &uerr) || uerr.Reason != "file too large" {
		t.Fatalf("expected host rejection reason, got %v", err)
	}

	m = service.NewMediaUploader(&fakeHost{err: errors.New("connection reset")})
	_, err = m.Upload(context.Background(), &domain.File{Data: []byte{1}})
	if !errors.Is(err, domain.ErrUploadNetwork) {
		t.Fatalf("expected ErrUploadNetwork, got %v", err)
	}
}

func TestMediaUploader_InFlight(t *testing.T) {
	host := &fakeHost{url: "https://img.example.com/x.png", block: make(chan struct{})}
	m := service.NewMediaUploader(host)

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Upload(context.Background(), &domain.File{Data: []byte{1}})
	}()

	waitFor(t, "upload in flight", m.InFlight)
	close(host.block)
	<-done
	if m.InFlight() {
		t.Fatal("expected no upload in flight")
	}
}
