package handler

import (
	"log/slog"
	"net/http"

	"github.com/starfederation/datastar-go/datastar"

	"github.com/fardin04/pu-found-lost-hub/internal/domain"
	"github.com/fardin04/pu-found-lost-hub/internal/service"
	"github.com/fardin04/pu-found-lost-hub/internal/view"
)

// StreamHandler serves the live feed and profile views over Datastar SSE.
// Every change patches the items/isLoading/error signals and re-renders
// the post list.
type StreamHandler struct {
	posts *service.PostService
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(posts *service.PostService) *StreamHandler {
	return &StreamHandler{posts: posts}
}

// HandleFeed streams every post, newest first.
// GET /feed/stream
func (h *StreamHandler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFromContext(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, domain.UserMessage(domain.ErrNotAuthenticated))
		return
	}
	h.serve(w, r, identity.ID, func(notify service.Notifier) *service.Controller {
		return service.NewFeedController(h.posts, notify)
	})
}

// HandleProfile streams the signed-in identity's posts. The stream ends
// when that identity signs out.
// GET /profile/stream
func (h *StreamHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	store := SessionFromContext(r.Context())
	identity := IdentityFromContext(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, domain.UserMessage(domain.ErrNotAuthenticated))
		return
	}
	h.serve(w, r, identity.ID, func(notify service.Notifier) *service.Controller {
		c := service.NewProfileController(h.posts, identity.ID, notify)
		c.ScopeTo(store, identity.ID)
		return c
	})
}

func (h *StreamHandler) serve(w http.ResponseWriter, r *http.Request, viewerID string, build func(service.Notifier) *service.Controller) {
	updates := make(chan service.ViewState, 1)
	notices := make(chan service.Notice, 4)

	c := build(func(n service.Notice) {
		slog.Warn("live view failed", "view", n.Source, "error", n.Err)
		select {
		case notices <- n:
		default:
		}
	})
	defer c.Stop()

	// Only the latest state matters; an unsent older one is replaced.
	cancel := c.OnChange(func(st service.ViewState) {
		for {
			select {
			case updates <- st:
				return
			default:
				select {
				case <-updates:
				default:
				}
			}
		}
	})
	defer cancel()

	sse := datastar.NewSSE(w, r)
	c.Start(r.Context())

	for {
		select {
		case <-r.Context().Done():
			return
		case <-c.Done():
			return
		case n := <-notices:
			if err := sse.MarshalAndPatchSignals(map[string]any{"toast": n.Message}); err != nil {
				return
			}
		case st := <-updates:
			if err := h.patch(r, sse, st, viewerID); err != nil {
				return
			}
		}
	}
}

func (h *StreamHandler) patch(r *http.Request, sse *datastar.ServerSentEventGenerator, st service.ViewState, viewerID string) error {
	actions := h.posts.Actions(r.Context(), st.Items, viewerID)
	if err := sse.MarshalAndPatchSignals(map[string]any{
		"items":     toPostDTOs(st.Items, actions),
		"isLoading": st.IsLoading,
		"error":     domain.UserMessage(st.Err),
	}); err != nil {
		return err
	}
	if st.IsLoading {
		return nil
	}
	return sse.PatchElementTempl(
		view.PostList(st.Items, actions),
		datastar.WithSelectorID(view.PostListID),
		datastar.WithModeInner(),
	)
}
