package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/fardin04/pu-found-lost-hub/internal/domain"
	"github.com/fardin04/pu-found-lost-hub/internal/service"
)

// AuthHandler handles authentication-related HTTP requests.
type AuthHandler struct {
	gateway      *service.SessionGateway
	cookieSecure bool
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(gateway *service.SessionGateway, cookieSecure bool) *AuthHandler {
	return &AuthHandler{gateway: gateway, cookieSecure: cookieSecure}
}

// HandleRegister processes a JSON registration request.
// POST /api/auth/register
// Request:  {"email":"...","password":"...","displayName":"...","studentId":"...","department":"..."}
// Response: {"user": {...}}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"displayName"`
		StudentID   string `json:"studentId"`
		Department  string `json:"department"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	identity, err := h.gateway.Register(r.Context(), req.Email, req.Password, domain.ProfileInput{
		DisplayName: req.DisplayName,
		StudentID:   req.StudentID,
		Department:  req.Department,
	})
	if err != nil {
		writeDomainError(w, "register", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"user": toIdentityDTO(identity),
	})
}

// HandleLogin processes a JSON login request.
// POST /api/auth/login
// Request:  {"email":"...","password":"..."}
// Response: {"user": {...}}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	session, err := h.gateway.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeDomainError(w, "login", err)
		return
	}

	h.setSessionCookie(w, session)
	writeJSON(w, http.StatusOK, map[string]any{
		"user": toIdentityDTO(&session.Identity),
	})
}

// HandleFederated exchanges a federated ID token for a session.
// POST /api/auth/federated
// Request:  {"idToken":"..."}
// Response: {"user": {...}}
func (h *AuthHandler) HandleFederated(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDToken string `json:"idToken"`
	}
	if err := readJSON(w, r, &req); err != nil || req.IDToken == "" {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	session, err := h.gateway.SignInFederated(r.Context(), req.IDToken)
	if err != nil {
		writeDomainError(w, "federated login", err)
		return
	}

	h.setSessionCookie(w, session)
	writeJSON(w, http.StatusOK, map[string]any{
		"user": toIdentityDTO(&session.Identity),
	})
}

// HandleLogout ends the session and clears the auth cookie. It never
// fails.
// POST /api/auth/logout
// Response: 204 No Content
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if store := SessionFromContext(r.Context()); store != nil {
		h.gateway.SignOut(r.Context(), store)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})

	w.WriteHeader(http.StatusNoContent)
}

// HandleResendVerification sends the verification email again.
// POST /api/auth/verification
// Response: 202 Accepted
func (h *AuthHandler) HandleResendVerification(w http.ResponseWriter, r *http.Request) {
	if err := h.gateway.ResendVerification(r.Context(), IdentityFromContext(r.Context())); err != nil {
		writeDomainError(w, "resend verification", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// HandlePasswordReset emails a reset link.
// POST /api/auth/password-reset
// Request:  {"email":"..."}
// Response: 202 Accepted
func (h *AuthHandler) HandlePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	if err := h.gateway.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeDomainError(w, "request password reset", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// HandleVerifyEmail confirms an email address from the mailed link.
// POST /api/auth/verify-email
// Request:  {"token":"..."}
// Response: 204 No Content
func (h *AuthHandler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	if err := h.gateway.ConfirmEmail(r.Context(), req.Token); err != nil {
		writeDomainError(w, "verify email", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleResetPassword sets a new password from the mailed link.
// POST /api/auth/reset-password
// Request:  {"token":"...","password":"..."}
// Response: 204 No Content
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	if err := h.gateway.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		writeDomainError(w, "reset password", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleMe returns the signed-in identity and its profile.
// GET /api/auth/me
// Response: {"user": {...}, "profile": {...}|null}
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFromContext(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, domain.UserMessage(domain.ErrNotAuthenticated))
		return
	}

	profile, err := h.gateway.Profile(r.Context(), identity.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		slog.Error("get profile", "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":    toIdentityDTO(identity),
		"profile": toProfileDTO(profile),
	})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, session *domain.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    session.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(time.Until(session.ExpiresAt).Seconds()),
	})
}
