package domain

import (
	"errors"
	"fmt"
)

// ValidationKind classifies client-detectable input problems.
type ValidationKind string

const (
	ValidationMissingField      ValidationKind = "missing_field"
	ValidationInvalidValue      ValidationKind = "invalid_value"
	ValidationInvalidTransition ValidationKind = "invalid_transition"
)

// ValidationError blocks a submission and is shown inline next to the field.
type ValidationError struct {
	Kind    ValidationKind
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Field)
	}
	return string(e.Kind)
}

// Is matches another ValidationError of the same kind. A target without a
// kind (ErrInvalidInput) matches every validation error.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	if !ok {
		return false
	}
	return t.Kind == "" || t.Kind == e.Kind
}

// AuthKind classifies identity and authorization failures.
type AuthKind string

const (
	AuthDuplicateEmail     AuthKind = "duplicate_email"
	AuthWeakPassword       AuthKind = "weak_password"
	AuthInvalidEmail       AuthKind = "invalid_email"
	AuthInvalidCredentials AuthKind = "invalid_credentials"
	AuthDomainNotAllowed   AuthKind = "domain_not_allowed"
	AuthNoSessionActive    AuthKind = "no_session_active"
	AuthUnknownEmail       AuthKind = "unknown_email"
	AuthNotAuthenticated   AuthKind = "not_authenticated"
	AuthForbidden          AuthKind = "forbidden"
	AuthInvalidToken       AuthKind = "invalid_token"
	AuthNetwork            AuthKind = "network"
)

// AuthError is an identity provider or authorization failure.
type AuthError struct {
	Kind AuthKind
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth %s: %v", e.Kind, e.Err)
	}
	return "auth " + string(e.Kind)
}

func (e *AuthError) Unwrap() error { return e.Err }

func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Kind == e.Kind
}

// StoreKind classifies document store failures.
type StoreKind string

const (
	StoreNotFound         StoreKind = "not_found"
	StoreIndexMissing     StoreKind = "index_missing"
	StoreUnavailable      StoreKind = "unavailable"
	StorePermissionDenied StoreKind = "permission_denied"
	StoreConflict         StoreKind = "conflict"
)

// StoreError is a query or mutation failure. IndexMissing is operator
// actionable and must not be reported as a transient failure.
type StoreError struct {
	Kind StoreKind
	Err  error
}

func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("store %s: %v", e.Kind, e.Err)
	}
	return "store " + string(e.Kind)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	return ok && t.Kind == e.Kind
}

// UploadKind classifies image host failures.
type UploadKind string

const (
	UploadHostRejected UploadKind = "host_rejected"
	UploadNetwork      UploadKind = "network"
)

// UploadError is reported by the image host. Reason carries the host's own
// message when it rejected the file.
type UploadError struct {
	Kind   UploadKind
	Reason string
	Err    error
}

func (e *UploadError) Error() string {
	switch {
	case e.Reason != "":
		return fmt.Sprintf("upload %s: %s", e.Kind, e.Reason)
	case e.Err != nil:
		return fmt.Sprintf("upload %s: %v", e.Kind, e.Err)
	}
	return "upload " + string(e.Kind)
}

func (e *UploadError) Unwrap() error { return e.Err }

func (e *UploadError) Is(target error) bool {
	t, ok := target.(*UploadError)
	return ok && t.Kind == e.Kind
}

// NetworkError reports a connectivity failure talking to a collaborator.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("%s: network: %v", e.Op, e.Err) }

func (e *NetworkError) Unwrap() error { return e.Err }

var (
	ErrInvalidInput      = &ValidationError{}
	ErrMissingField      = &ValidationError{Kind: ValidationMissingField}
	ErrInvalidTransition = &ValidationError{Kind: ValidationInvalidTransition}

	ErrDuplicateEmail     = &AuthError{Kind: AuthDuplicateEmail}
	ErrWeakPassword       = &AuthError{Kind: AuthWeakPassword}
	ErrInvalidEmail       = &AuthError{Kind: AuthInvalidEmail}
	ErrInvalidCredentials = &AuthError{Kind: AuthInvalidCredentials}
	ErrDomainNotAllowed   = &AuthError{Kind: AuthDomainNotAllowed}
	ErrNoSessionActive    = &AuthError{Kind: AuthNoSessionActive}
	ErrUnknownEmail       = &AuthError{Kind: AuthUnknownEmail}
	ErrNotAuthenticated   = &AuthError{Kind: AuthNotAuthenticated}
	ErrForbidden          = &AuthError{Kind: AuthForbidden}
	ErrInvalidToken       = &AuthError{Kind: AuthInvalidToken}
	ErrAuthNetwork        = &AuthError{Kind: AuthNetwork}

	ErrNotFound         = &StoreError{Kind: StoreNotFound}
	ErrIndexMissing     = &StoreError{Kind: StoreIndexMissing}
	ErrStoreUnavailable = &StoreError{Kind: StoreUnavailable}
	ErrPermissionDenied = &StoreError{Kind: StorePermissionDenied}
	ErrConflict         = &StoreError{Kind: StoreConflict}

	ErrHostRejected  = &UploadError{Kind: UploadHostRejected}
	ErrUploadNetwork = &UploadError{Kind: UploadNetwork}
)

// MissingField returns a ValidationError naming the empty field.
func MissingField(field string) error {
	return &ValidationError{Kind: ValidationMissingField, Field: field, Message: field + " is required"}
}

// InvalidValue returns a ValidationError for a field with an unusable value.
func InvalidValue(field, message string) error {
	return &ValidationError{Kind: ValidationInvalidValue, Field: field, Message: message}
}

// AlreadyResolved is returned when resolving a post that is no longer open.
func AlreadyResolved() error {
	return &ValidationError{Kind: ValidationInvalidTransition, Field: "status", Message: "post is already resolved"}
}

// UserMessage chooses the notice shown to a user for err. Store errors are
// split so an operator-fixable missing index reads differently from an
// outage.
func UserMessage(err error) string {
	var (
		verr *ValidationError
		aerr *AuthError
		serr *StoreError
		uerr *UploadError
		nerr *NetworkError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return verr.Error()
	case errors.As(err, &aerr):
		return authMessages[aerr.Kind]
	case errors.As(err, &serr):
		return storeMessages[serr.Kind]
	case errors.As(err, &uerr):
		if uerr.Kind == UploadHostRejected && uerr.Reason != "" {
			return "Image upload failed: " + uerr.Reason
		}
		return "Image upload failed. Check your connection and try again."
	case errors.As(err, &nerr):
		return "Network problem. Check your connection and try again."
	}
	return "An unexpected error occurred. Please try again."
}

var authMessages = map[AuthKind]string{
	AuthDuplicateEmail:     "An account with that email already exists.",
	AuthWeakPassword:       "Password must be at least 8 characters.",
	AuthInvalidEmail:       "Please enter a valid email address.",
	AuthInvalidCredentials: "Invalid email or password.",
	AuthDomainNotAllowed:   "Sign-in is restricted to campus email addresses.",
	AuthNoSessionActive:    "You are not signed in.",
	AuthUnknownEmail:       "No account is registered with that email.",
	AuthNotAuthenticated:   "You must be logged in to do that.",
	AuthForbidden:          "Only the author of this post can do that.",
	AuthInvalidToken:       "This link is invalid or has expired.",
	AuthNetwork:            "Could not reach the sign-in service. Please try again.",
}

var storeMessages = map[StoreKind]string{
	StoreNotFound:         "That post no longer exists.",
	StoreIndexMissing:     "Database index required. An administrator must create the posts index.",
	StoreUnavailable:      "Failed to load posts. Please try again.",
	StorePermissionDenied: "You do not have permission to view these posts.",
	StoreConflict:         "That record already exists.",
}
