package handler

import (
	"errors"
	"net/http"

	"rollsheet/internal/domain"
	"rollsheet/internal/domain/models"
	"rollsheet/internal/httputil"
)

// handleError converts domain errors to HTTP responses
func handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		httputil.RespondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		httputil.RespondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrLocked):
		httputil.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrTimeout):
		// The mutation lost the lock race. Safe for clients to retry.
		httputil.RespondErrorWithExtras(w, http.StatusServiceUnavailable,
			"raid is busy, try again", map[string]interface{}{"retryable": true})
	default:
		httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// requireUser extracts the authenticated user set by the identity
// middleware. Responds 401 and returns false when the middleware did
// not run.
func requireUser(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	user, ok := httputil.GetUser(r)
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "no identity on request")
		return models.User{}, false
	}
	return user, true
}
