package view_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/fardin04/pu-found-lost-hub/internal/domain"
	"github.com/fardin04/pu-found-lost-hub/internal/service"
	"github.com/fardin04/pu-found-lost-hub/internal/view"
)

func render(t *testing.T, posts []domain.Post, actions map[string][]service.Action) string {
	t.Helper()
	var b strings.Builder
	if err := view.PostList(posts, actions).Render(context.Background(), &b); err != nil {
		t.Fatalf("Render: %v", err)
	}
	return b.String()
}

func TestPostList_Empty(t *testing.T) {
	if out := render(t, nil, nil); !strings.Contains(out, "No posts yet.") {
		t.Fatalf("expected empty state, got %q", out)
	}
}

func TestPostList_EscapesContent(t *testing.T) {
	posts := []domain.Post{{
		ID:          "p1",
		Title:       "<script>alert(1)</script>",
		Description: "desc",
		Location:    "Hall & Annex",
		Contact:     "x",
		Category:    domain.CategoryLost,
		Status:      domain.StatusOpen,
		CreatedAt:   time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}}

	out := render(t, posts, nil)
	if strings.Contains(out, "<script>") {
		t.Fatalf("title was not escaped: %s", out)
	}
	if !strings.Contains(out, "Hall &amp; Annex") {
		t.Fatalf("expected escaped location, got %s", out)
	}
	if strings.Contains(out, "<button") {
		t.Fatal("no actions should render without permissions")
	}
}

func TestPostList_Actions(t *testing.T) {
	posts := []domain.Post{
		{ID: "open", Title: "a", Status: domain.StatusOpen, Category: domain.CategoryFound},
		{ID: "done", Title: "b", Status: domain.StatusResolved, Category: domain.CategoryFound},
	}
	actions := map[string][]service.Action{
		"open": {service.ActionResolve, service.ActionDelete},
		"done": {service.ActionDelete},
	}

	out := render(t, posts, actions)
	if !strings.Contains(out, "/api/posts/open/resolve") {
		t.Fatal("expected resolve button on open post")
	}
	if strings.Contains(out, "/api/posts/done/resolve") {
		t.Fatal("resolved post must not offer resolve")
	}
	if !strings.Contains(out, "@delete(&#39;/api/posts/done&#39;)") {
		t.Fatal("expected delete button on resolved post")
	}
	if !strings.Contains(out, `badge-resolved`) {
		t.Fatal("expected resolved badge")
	}
	if !strings.Contains(out, `data-status="resolved"`) || !strings.Contains(out, `data-status="open"`) {
		t.Fatal("expected each card to carry its status")
	}
}

func TestPostCard_EscapesAttributes(t *testing.T) {
	p := &domain.Post{
		ID:        `x" onmouseover="alert(1)`,
		Title:     "t",
		Category:  domain.CategoryLost,
		Status:    domain.StatusOpen,
		ImageURL:  `https://img.example.com/a.png"><script>`,
		CreatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	var b strings.Builder
	if err := view.PostCard(p, []service.Action{service.ActionResolve}).Render(context.Background(), &b); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := b.String()
	if strings.Contains(out, `" onmouseover="`) {
		t.Fatalf("id attribute was not escaped: %s", out)
	}
	if strings.Contains(out, "<script>") {
		t.Fatalf("image URL was not escaped: %s", out)
	}
	if !strings.Contains(out, `data-category="lost"`) {
		t.Fatalf("expected lowercase category, got %s", out)
	}
}

func TestPostList_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var b strings.Builder
	if err := view.PostList([]domain.Post{{ID: "p"}}, nil).Render(ctx, &b); err == nil {
		t.Fatal("expected render to stop on a cancelled context")
	}
}
