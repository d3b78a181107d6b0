package app

import (
	"database/sql"
	"errors"
	"net/http"

	"labdesk/api/internal/auth"
	"labdesk/api/internal/rbac"
	"labdesk/api/internal/store"
	"labdesk/api/internal/users"
)

// requireAction gates a handler on the session role. Denials are uniform 403s
// so the response does not leak which permission was missing.
func (s *HTTPServer) requireAction(w http.ResponseWriter, session Session, action rbac.Action) bool {
	if s.service.Can(session.Role, action) {
		return true
	}
	writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	return false
}

func (s *HTTPServer) writeMappedError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	if errors.Is(err, users.ErrEmailTaken) {
		return http.StatusConflict, "EMAIL_EXISTS", "Email already registered", nil
	}
	if errors.Is(err, users.ErrPasswordTooShort) {
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Password must be at least 8 characters", nil
	}
	if errors.Is(err, users.ErrWrongPassword) {
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Current password is incorrect", nil
	}
	if errors.Is(err, users.ErrInvalidCredentials) {
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
