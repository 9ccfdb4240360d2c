package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/fardin04/pu-found-lost-hub/internal/domain"
	"github.com/fardin04/pu-found-lost-hub/internal/imagehost"
)

// ImageHandler serves images kept by the blob host.
type ImageHandler struct {
	blobs *imagehost.BlobHost
}

// NewImageHandler creates a new ImageHandler.
func NewImageHandler(blobs *imagehost.BlobHost) *ImageHandler {
	return &ImageHandler{blobs: blobs}
}

// HandleServe serves image bytes with correct Content-Type.
// GET /images/{key...}
func (h *ImageHandler) HandleServe(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := h.blobs.Open(r.Context(), r.PathValue("key"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		slog.Error("serve image", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	// Keys are never reused, so the bytes behind one never change.
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}
