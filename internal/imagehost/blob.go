// Package imagehost implements domain.ImageHost: Cloudinary for deployed
// instances and a blob host that keeps images in the document store.
package imagehost

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/fardin04/pu-found-lost-hub/internal/domain"
)

const (
	// MaxImageSize is the largest image either host accepts.
	MaxImageSize = 10 * 1024 * 1024 // 10MB

	keyPrefix = "post-images/"
)

// BlobHost stores images in a domain.FileStore and serves them from the
// application itself under /images/.
type BlobHost struct {
	files   domain.FileStore
	baseURL string
}

var _ domain.ImageHost = (*BlobHost)(nil)

// NewBlobHost creates a BlobHost whose URLs are rooted at baseURL.
func NewBlobHost(files domain.FileStore, baseURL string) *BlobHost {
	return &BlobHost{files: files, baseURL: strings.TrimRight(baseURL, "/")}
}

// Upload validates and stores the image, returning its public URL.
func (h *BlobHost) Upload(ctx context.Context, file *domain.File) (string, error) {
	if file.Empty() {
		return "", &domain.UploadError{Kind: domain.UploadHostRejected, Reason: "no image data"}
	}

	// Detect content type from file bytes (more reliable than the multipart header).
	contentType := http.DetectContentType(file.Data)
	if contentType != "image/jpeg" && contentType != "image/png" {
		return "", &domain.UploadError{Kind: domain.UploadHostRejected, Reason: "only JPEG and PNG images are accepted"}
	}
	if len(file.Data) > MaxImageSize {
		return "", &domain.UploadError{Kind: domain.UploadHostRejected, Reason: "image exceeds 10MB limit"}
	}

	key := keyPrefix + uuid.NewString()
	if err := h.files.Save(ctx, key, file.Data); err != nil {
		return "", &domain.UploadError{Kind: domain.UploadNetwork, Err: fmt.Errorf("save file: %w", err)}
	}
	return h.baseURL + "/images/" + key, nil
}

// Open returns the bytes and content type stored under key.
func (h *BlobHost) Open(ctx context.Context, key string) ([]byte, string, error) {
	if !strings.HasPrefix(key, keyPrefix) {
		return nil, "", domain.ErrNotFound
	}
	data, err := h.files.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, "", domain.ErrNotFound
		}
		return nil, "", fmt.Errorf("get file: %w", err)
	}
	return data, http.DetectContentType(data), nil
}
