package service

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/fardin04/pu-found-lost-hub/internal/domain"
)

// MediaUploader hands post images to the image host.
type MediaUploader struct {
	host     domain.ImageHost
	inFlight atomic.Int64
}

// NewMediaUploader creates a new MediaUploader.
func NewMediaUploader(host domain.ImageHost) *MediaUploader {
	return &MediaUploader{host: host}
}

// Upload sends file to the host in a single request and returns the URL
// it issued. No file means no image: it returns "" without contacting the
// host.
func (m *MediaUploader) Upload(ctx context.Context, file *domain.File) (string, error) {
	if file.Empty() {
		return "", nil
	}

	m.inFlight.Add(1)
	defer m.inFlight.Add(-1)

	url, err := m.host.Upload(ctx, file)
	if err != nil {
		var uerr *domain.UploadError
		if !errors.As(err, &uerr) {
			err = &domain.UploadError{Kind: domain.UploadNetwork, Err: err}
		}
		slog.Warn("upload image", "file", file.Name, "error", err)
		return "", err
	}
	return url, nil
}

// InFlight reports whether an upload is running.
func (m *MediaUploader) InFlight() bool {
	return m.inFlight.Load() > 0
}
