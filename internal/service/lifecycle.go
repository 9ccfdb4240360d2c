package service

import (
	"github.com/fardin04/pu-found-lost-hub/internal/domain"
)

// State is a post's lifecycle state. StateDeleted stands for absence: a
// deleted post has no record.
type State string

const (
	StateOpen     State = "OPEN"
	StateResolved State = "RESOLVED"
	StateDeleted  State = "DELETED"
)

// Action is an author-only lifecycle transition.
type Action string

const (
	ActionResolve Action = "resolve"
	ActionDelete  Action = "delete"
)

var actions = []Action{ActionResolve, ActionDelete}

// StateOf returns the lifecycle state of p. A nil post is deleted.
func StateOf(p *domain.Post) State {
	if p == nil {
		return StateDeleted
	}
	if p.Status == domain.StatusResolved {
		return StateResolved
	}
	return StateOpen
}

// Next returns the state reached by applying action in from. There is no
// un-resolve, and nothing leaves StateDeleted.
func Next(from State, action Action) (State, error) {
	if from == StateDeleted {
		return from, domain.ErrNotFound
	}
	switch action {
	case ActionResolve:
		if from != StateOpen {
			return from, domain.AlreadyResolved()
		}
		return StateResolved, nil
	case ActionDelete:
		return StateDeleted, nil
	}
	return from, domain.InvalidValue("action", "unknown action "+string(action))
}

// Guard checks that actingID may apply action to p.
func Guard(p *domain.Post, action Action, actingID string) error {
	if actingID == "" {
		return domain.ErrNotAuthenticated
	}
	if p == nil {
		return domain.ErrNotFound
	}
	if p.PosterID != actingID {
		return domain.ErrForbidden
	}
	_, err := Next(StateOf(p), action)
	return err
}

// AllowedActions lists the actions a viewer may take on p. Posts whose
// poster no longer has a profile offer none.
func AllowedActions(p *domain.Post, viewerID string, posterKnown bool) []Action {
	if p == nil || !posterKnown || viewerID == "" || p.PosterID != viewerID {
		return nil
	}
	var allowed []Action
	for _, a := range actions {
		if _, err := Next(StateOf(p), a); err == nil {
			allowed = append(allowed, a)
		}
	}
	return allowed
}
