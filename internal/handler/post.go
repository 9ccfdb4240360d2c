package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/fardin04/pu-found-lost-hub/internal/domain"
	"github.com/fardin04/pu-found-lost-hub/internal/imagehost"
	"github.com/fardin04/pu-found-lost-hub/internal/service"
)

// PostHandler handles post authoring, lifecycle actions and one-shot
// listings.
type PostHandler struct {
	posts *service.PostService
}

// NewPostHandler creates a new PostHandler.
func NewPostHandler(posts *service.PostService) *PostHandler {
	return &PostHandler{posts: posts}
}

// HandleCreate validates the form, uploads the optional image, and creates
// the post.
// POST /api/posts (multipart: title, category, location, description, contact, image)
// Response: 201 {"post": {...}}
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFromContext(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, domain.UserMessage(domain.ErrNotAuthenticated))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, imagehost.MaxImageSize+1<<20)
	if err := r.ParseMultipartForm(imagehost.MaxImageSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		writeError(w, http.StatusBadRequest, "Invalid form or image too large.")
		return
	}

	in := domain.PostInput{
		Title:       r.FormValue("title"),
		Category:    r.FormValue("category"),
		Location:    r.FormValue("location"),
		Description: r.FormValue("description"),
		Contact:     r.FormValue("contact"),
	}

	var file *domain.File
	if f, header, err := r.FormFile("image"); err == nil {
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			slog.Error("read upload", "error", err)
			writeError(w, http.StatusBadRequest, "Could not read the image.")
			return
		}
		file = &domain.File{Name: header.Filename, ContentType: header.Header.Get("Content-Type"), Data: data}
	} else if !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart) {
		writeError(w, http.StatusBadRequest, "Invalid image field.")
		return
	}

	post, err := h.posts.Author(r.Context(), in, file, identity.ID)
	if err != nil {
		writeDomainError(w, "create post", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"post": toPostDTO(post, service.AllowedActions(post, identity.ID, true)),
	})
}

// HandleResolve marks a post resolved.
// POST /api/posts/{id}/resolve
// Response: 204 No Content
func (h *PostHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFromContext(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, domain.UserMessage(domain.ErrNotAuthenticated))
		return
	}

	if err := h.posts.ResolvePost(r.Context(), r.PathValue("id"), identity.ID); err != nil {
		writeDomainError(w, "resolve post", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDelete removes a post.
// DELETE /api/posts/{id}
// Response: 204 No Content
func (h *PostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFromContext(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, domain.UserMessage(domain.ErrNotAuthenticated))
		return
	}

	if err := h.posts.DeletePost(r.Context(), r.PathValue("id"), identity.ID); err != nil {
		writeDomainError(w, "delete post", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleFeed returns every post, newest first.
// GET /api/feed
// Response: {"posts": [...]}
func (h *PostHandler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFromContext(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, domain.UserMessage(domain.ErrNotAuthenticated))
		return
	}

	posts, err := h.posts.Feed(r.Context())
	if err != nil {
		writeDomainError(w, "list feed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"posts": toPostDTOs(posts, h.posts.Actions(r.Context(), posts, identity.ID)),
	})
}

// HandleProfilePosts returns the signed-in identity's posts, newest first.
// GET /api/profile/posts
// Response: {"posts": [...]}
func (h *PostHandler) HandleProfilePosts(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFromContext(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, domain.UserMessage(domain.ErrNotAuthenticated))
		return
	}

	posts, err := h.posts.OwnedPosts(r.Context(), identity.ID)
	if err != nil {
		writeDomainError(w, "list profile posts", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"posts": toPostDTOs(posts, h.posts.Actions(r.Context(), posts, identity.ID)),
	})
}
