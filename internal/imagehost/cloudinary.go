package imagehost

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/cloudinary/cloudinary-go/v2/config"

	"github.com/fardin04/pu-found-lost-hub/internal/domain"
)

const cloudinaryUploadTimeout = 60 * time.Second

// Cloudinary uploads images with an unsigned upload preset.
type Cloudinary struct {
	CloudName    string
	UploadPreset string
	// BaseURL overrides the upload API origin. Empty keeps the SDK default.
	BaseURL string
}

var _ domain.ImageHost = (*Cloudinary)(nil)

// NewCloudinary creates a Cloudinary host for the given cloud and preset.
func NewCloudinary(cloudName, uploadPreset string) *Cloudinary {
	return &Cloudinary{CloudName: cloudName, UploadPreset: uploadPreset}
}

func (c *Cloudinary) client() (*cloudinary.Cloudinary, error) {
	// Unsigned uploads need no API key or secret.
	conf, err := config.NewFromParams(c.CloudName, "", "")
	if err != nil {
		return nil, fmt.Errorf("cloudinary config: %w", err)
	}
	if c.BaseURL != "" {
		conf.API.UploadPrefix = c.BaseURL
	}
	cld, err := cloudinary.NewFromConfiguration(*conf)
	if err != nil {
		return nil, fmt.Errorf("cloudinary client: %w", err)
	}
	return cld, nil
}

// Upload sends the file in a single request and returns the secure URL
// the host assigned.
func (c *Cloudinary) Upload(ctx context.Context, file *domain.File) (string, error) {
	if file.Empty() {
		return "", &domain.UploadError{Kind: domain.UploadHostRejected, Reason: "no image data"}
	}
	if len(file.Data) > MaxImageSize {
		return "", &domain.UploadError{Kind: domain.UploadHostRejected, Reason: "image exceeds 10MB limit"}
	}

	cld, err := c.client()
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, cloudinaryUploadTimeout)
	defer cancel()

	res, err := cld.Upload.UnsignedUpload(ctx, bytes.NewReader(file.Data), c.UploadPreset, uploader.UploadParams{})
	if err != nil {
		return "", &domain.UploadError{Kind: domain.UploadNetwork, Err: err}
	}
	if res.Error.Message != "" {
		return "", &domain.UploadError{Kind: domain.UploadHostRejected, Reason: res.Error.Message}
	}
	if res.SecureURL == "" {
		return "", &domain.UploadError{Kind: domain.UploadHostRejected, Reason: "host returned no image URL"}
	}
	return res.SecureURL, nil
}
