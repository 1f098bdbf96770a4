package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/inkpost/apiserver/internal/apperr"
	"github.com/inkpost/apiserver/internal/auth"
	"github.com/inkpost/apiserver/internal/store"
	"github.com/rs/zerolog"
)

type contextKey string

const contextIdentityKey contextKey = "identity"

const successMessage = "success"

// handlerFunc is an HTTP handler that reports failures by returning them.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// handle adapts a handlerFunc to net/http. It is the single place where
// returned errors become response bodies.
func handle(fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			writeError(w, r, err)
		}
	}
}

func withIdentity(ctx context.Context, identity auth.Identity) context.Context {
	return context.WithValue(ctx, contextIdentityKey, identity)
}

// callerID returns the authenticated user's id.
func callerID(ctx context.Context) (uuid.UUID, error) {
	identity, ok := ctx.Value(contextIdentityKey).(auth.Identity)
	if !ok || identity.ID == "" {
		return uuid.Nil, errUserNotDefined
	}
	id, err := uuid.Parse(identity.ID)
	if err != nil {
		return uuid.Nil, errUserNotDefined
	}
	return id, nil
}

// postIDParam parses the {postID} URL parameter. Malformed ids are reported
// as a generic not-found rather than a lookup failure.
func postIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "postID"))
	if err != nil {
		return uuid.Nil, errNotDefined
	}
	return id, nil
}

var (
	errNotDefined     = apperr.NotFound("Not defined.")
	errUserNotDefined = apperr.Conflict("User was not defined.")
)

// storeError translates store sentinels that carry client meaning.
func storeError(err error) error {
	switch {
	case errors.Is(err, store.ErrInvalidID):
		return errNotDefined
	case errors.Is(err, store.ErrUnknownOwner):
		return errUserNotDefined
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.Status(err)
	logger := zerolog.Ctx(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Int("status", status).Msg("request failed")
	} else {
		logger.Debug().Err(err).Int("status", status).Msg("request rejected")
	}
	writeJSON(w, status, ErrorResponse{Success: false, Message: apperr.Message(err)})
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// MessageResponse acknowledges a write that returns no entity.
type MessageResponse struct {
	Message string `json:"message"`
}
