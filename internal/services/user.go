package services

import (
	"context"
	"errors"

	"github.com/inkpost/apiserver/internal/store"
	"github.com/inkpost/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

// FindByEmail looks a user up by email. A missing user is reported as
// found=false with a nil error.
func (s *UserService) FindByEmail(ctx context.Context, email string) (types.User, bool, error) {
	return found(s.repo.GetByEmail(ctx, email))
}

// Create stores a new user. Callers are expected to check the email is free.
func (s *UserService) Create(ctx context.Context, email, passwordHash string) (types.User, error) {
	return s.repo.Create(ctx, types.User{
		Email:        email,
		PasswordHash: passwordHash,
	})
}

func found[T any](value T, err error) (T, bool, error) {
	if err != nil {
		var zero T
		if errors.Is(err, store.ErrNotFound) {
			return zero, false, nil
		}
		return zero, false, err
	}
	return value, true, nil
}
