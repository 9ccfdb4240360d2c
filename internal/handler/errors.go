package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/fardin04/pu-found-lost-hub/internal/domain"
)

var authStatus = map[domain.AuthKind]int{
	domain.AuthDuplicateEmail:     http.StatusConflict,
	domain.AuthWeakPassword:       http.StatusUnprocessableEntity,
	domain.AuthInvalidEmail:       http.StatusUnprocessableEntity,
	domain.AuthInvalidCredentials: http.StatusUnauthorized,
	domain.AuthDomainNotAllowed:   http.StatusForbidden,
	domain.AuthNoSessionActive:    http.StatusUnauthorized,
	domain.AuthUnknownEmail:       http.StatusNotFound,
	domain.AuthNotAuthenticated:   http.StatusUnauthorized,
	domain.AuthForbidden:          http.StatusForbidden,
	domain.AuthInvalidToken:       http.StatusBadRequest,
	domain.AuthNetwork:            http.StatusBadGateway,
}

var storeStatus = map[domain.StoreKind]int{
	domain.StoreNotFound:         http.StatusNotFound,
	domain.StoreIndexMissing:     http.StatusInternalServerError,
	domain.StoreUnavailable:      http.StatusServiceUnavailable,
	domain.StorePermissionDenied: http.StatusForbidden,
	domain.StoreConflict:         http.StatusConflict,
}

// statusFor maps an error from the domain taxonomy to an HTTP status.
func statusFor(err error) int {
	var (
		verr *domain.ValidationError
		aerr *domain.AuthError
		serr *domain.StoreError
		uerr *domain.UploadError
	)
	switch {
	case errors.As(err, &verr):
		if verr.Kind == domain.ValidationInvalidTransition {
			return http.StatusConflict
		}
		return http.StatusUnprocessableEntity
	case errors.As(err, &aerr):
		if status, ok := authStatus[aerr.Kind]; ok {
			return status
		}
	case errors.As(err, &serr):
		if status, ok := storeStatus[serr.Kind]; ok {
			return status
		}
	case errors.As(err, &uerr):
		if uerr.Kind == domain.UploadHostRejected {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeDomainError reports err with its mapped status and user message.
// Server-side failures are logged under op; their details never reach the
// client.
func writeDomainError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error(op, "error", err)
	}
	writeError(w, status, domain.UserMessage(err))
}
