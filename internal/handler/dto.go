package handler

import (
	"time"

	"github.com/fardin04/pu-found-lost-hub/internal/domain"
	"github.com/fardin04/pu-found-lost-hub/internal/service"
)

// IdentityDTO is the JSON representation of a signed-in identity.
type IdentityDTO struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	DisplayName   string `json:"displayName"`
	EmailVerified bool   `json:"emailVerified"`
	Provider      string `json:"provider"`
}

func toIdentityDTO(id *domain.Identity) IdentityDTO {
	return IdentityDTO{
		ID:            id.ID,
		Email:         id.Email,
		DisplayName:   id.DisplayName,
		EmailVerified: id.EmailVerified,
		Provider:      id.Provider,
	}
}

// ProfileDTO is the JSON representation of a profile document.
type ProfileDTO struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	StudentID   string `json:"studentId"`
	Department  string `json:"department"`
	CreatedAt   string `json:"createdAt"`
}

func toProfileDTO(p *domain.Profile) *ProfileDTO {
	if p == nil {
		return nil
	}
	return &ProfileDTO{
		ID:          p.ID,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		StudentID:   p.StudentID,
		Department:  p.Department,
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
	}
}

// PostDTO is the JSON representation of a post, with the actions the
// requesting identity may take on it.
type PostDTO struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	Contact     string   `json:"contact"`
	Category    string   `json:"category"`
	ImageURL    string   `json:"imageUrl"`
	PosterID    string   `json:"posterId"`
	Status      string   `json:"status"`
	CreatedAt   string   `json:"createdAt"`
	Actions     []string `json:"actions"`
}

func toPostDTO(p *domain.Post, actions []service.Action) PostDTO {
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = string(a)
	}
	return PostDTO{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Location:    p.Location,
		Contact:     p.Contact,
		Category:    string(p.Category),
		ImageURL:    p.ImageURL,
		PosterID:    p.PosterID,
		Status:      string(p.Status),
		CreatedAt:   p.CreatedAt.Format(time.RFC3339Nano),
		Actions:     names,
	}
}

func toPostDTOs(posts []domain.Post, actions map[string][]service.Action) []PostDTO {
	dtos := make([]PostDTO, len(posts))
	for i := range posts {
		dtos[i] = toPostDTO(&posts[i], actions[posts[i].ID])
	}
	return dtos
}
