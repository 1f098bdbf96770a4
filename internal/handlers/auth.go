package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/inkpost/apiserver/internal/apperr"
	"github.com/inkpost/apiserver/internal/auth"
	"github.com/inkpost/apiserver/internal/schema"
	"github.com/inkpost/apiserver/internal/services"
	"github.com/inkpost/apiserver/internal/store"
	"github.com/inkpost/apiserver/internal/validate"
)

// TokenIssuer signs tokens for authenticated users.
type TokenIssuer interface {
	Issue(subjectID string) (string, error)
}

// AuthHandler provides registration and login endpoints.
type AuthHandler struct {
	userService *services.UserService
	validator   *schema.Validator
	tokens      TokenIssuer
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(userService *services.UserService, validator *schema.Validator, tokens TokenIssuer) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		validator:   validator,
		tokens:      tokens,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, userService *services.UserService, validator *schema.Validator, tokens TokenIssuer) {
	handler := NewAuthHandler(userService, validator, tokens)

	r.Post("/register", handle(handler.Register))
	r.Post("/login", handle(handler.Login))
}

// Register creates a new user account.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) error {
	var req CredentialsRequest
	if err := h.validator.Decode(schema.RegisterUser, r.Body, &req); err != nil {
		return err
	}

	if _, exists, err := h.userService.FindByEmail(r.Context(), req.Email); err != nil {
		return err
	} else if exists {
		return errUserExists
	}

	if err := validate.Email(req.Email); err != nil {
		return err
	}
	if err := validate.Password(req.Password); err != nil {
		return err
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		return err
	}

	user, err := h.userService.Create(r.Context(), req.Email, hashed)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return errUserExists
		}
		return err
	}

	writeJSON(w, http.StatusCreated, RegisterResponse{
		Message: successMessage,
		Body: UserBody{
			UserID:  user.ID,
			Email:   user.Email,
			Created: user.CreatedAt,
		},
	})
	return nil
}

// Login verifies credentials and returns a bearer token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) error {
	var req CredentialsRequest
	if err := h.validator.Decode(schema.LoginUser, r.Body, &req); err != nil {
		return err
	}

	user, exists, err := h.userService.FindByEmail(r.Context(), req.Email)
	if err != nil {
		return err
	}
	if !exists {
		return apperr.Conflict("User was not found.")
	}

	if !auth.CheckPassword(req.Password, user.PasswordHash) {
		return apperr.Conflict("Password is invalid.")
	}

	token, err := h.tokens.Issue(user.ID.String())
	if err != nil {
		return apperr.Internal("Failed to create token.", err)
	}

	writeJSON(w, http.StatusOK, LoginResponse{Token: token})
	return nil
}

var errUserExists = apperr.Conflict("User already exists.")

// CredentialsRequest is the body accepted by register and login.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserBody is the public view of a newly registered user.
type UserBody struct {
	UserID  uuid.UUID `json:"userId"`
	Email   string    `json:"email"`
	Created time.Time `json:"created"`
}

// RegisterResponse is returned by Register.
type RegisterResponse struct {
	Message string   `json:"message"`
	Body    UserBody `json:"body"`
}

// LoginResponse carries the bearer token issued by Login.
type LoginResponse struct {
	Token string `json:"token"`
}
