package service_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/fardin04/pu-found-lost-hub/internal/domain"
	"github.com/fardin04/pu-found-lost-hub/internal/service"
)

func TestNext(t *testing.T) {
	tests := []struct {
		from    service.State
		action  service.Action
		want    service.State
		wantErr error
	}{
		{service.StateOpen, service.ActionResolve, service.StateResolved, nil},
		{service.StateOpen, service.ActionDelete, service.StateDeleted, nil},
		{service.StateResolved, service.ActionDelete, service.StateDeleted, nil},
		{service.StateResolved, service.ActionResolve, service.StateResolved, domain.ErrInvalidTransition},
		{service.StateDeleted, service.ActionResolve, service.StateDeleted, domain.ErrNotFound},
		{service.StateDeleted, service.ActionDelete, service.StateDeleted, domain.ErrNotFound},
		{service.StateOpen, service.Action("reopen"), service.StateOpen, domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.action), func(t *testing.T) {
			got, err := service.Next(tt.from, tt.action)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestGuard(t *testing.T) {
	open := &domain.Post{ID: "p1", PosterID: "author", Status: domain.StatusOpen}
	resolved := &domain.Post{ID: "p2", PosterID: "author", Status: domain.StatusResolved}

	tests := []struct {
		name   string
		post   *domain.Post
		action service.Action
		actor  string
		want   error
	}{
		{"author resolves open", open, service.ActionResolve, "author", nil},
		{"author deletes resolved", resolved, service.ActionDelete, "author", nil},
		{"stranger resolves", open, service.ActionResolve, "stranger", domain.ErrForbidden},
		{"stranger deletes", resolved, service.ActionDelete, "stranger", domain.ErrForbidden},
		{"anonymous", open, service.ActionDelete, "", domain.ErrNotAuthenticated},
		{"resolve twice", resolved, service.ActionResolve, "author", domain.ErrInvalidTransition},
		{"deleted post", nil, service.ActionDelete, "author", domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := service.Guard(tt.post, tt.action, tt.actor)
			if tt.want == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestAllowedActions(t *testing.T) {
	open := &domain.Post{PosterID: "author", Status: domain.StatusOpen}
	resolved := &domain.Post{PosterID: "author", Status: domain.StatusResolved}

	if got := service.AllowedActions(open, "author", true); !slices.Equal(got, []service.Action{service.ActionResolve, service.ActionDelete}) {
		t.Fatalf("open post: got %v", got)
	}
	if got := service.AllowedActions(resolved, "author", true); !slices.Equal(got, []service.Action{service.ActionDelete}) {
		t.Fatalf("resolved post should only offer delete, got %v", got)
	}
	if got := service.AllowedActions(open, "someone-else", true); len(got) != 0 {
		t.Fatalf("non-author should get no actions, got %v", got)
	}
	if got := service.AllowedActions(open, "author", false); len(got) != 0 {
		t.Fatalf("dangling poster should get no actions, got %v", got)
	}
	if got := service.AllowedActions(open, "", true); len(got) != 0 {
		t.Fatalf("anonymous viewer should get no actions, got %v", got)
	}
}
