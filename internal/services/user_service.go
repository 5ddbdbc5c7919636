package services

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/zenpa1/budget-tracker/internal/errors"
	"github.com/zenpa1/budget-tracker/internal/logger"
	"github.com/zenpa1/budget-tracker/internal/models"
	"github.com/zenpa1/budget-tracker/internal/store"
)

// userService handles login and user lookup.
type userService struct {
	users store.Users
}

// NewUserService creates a new UserServicer.
func NewUserService(users store.Users) UserServicer {
	return &userService{users: users}
}

// AttemptLogin checks credentials and returns the user. Unknown emails and
// wrong passwords produce the same error.
func (s *userService) AttemptLogin(ctx context.Context, email, password string) (*models.User, error) {
	if email == "" || password == "" {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "email and password are required")
	}

	user, err := s.users.FindUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, apperrors.ErrInvalidCredentials
	}
	return user, nil
}

// GetUserByID retrieves a user by ID
func (s *userService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.FindUserByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.ErrUserNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return user, nil
}

// demoUser is one of the accounts the login page offers.
type demoUser struct {
	models.User
	password string
}

var demoUsers = []demoUser{
	{models.User{Email: "finance@company.com", Name: "Sarah Chen", Role: models.RoleFinanceHead, Department: "Finance"}, "finance123"},
	{models.User{Email: "hr@company.com", Name: "Michael Torres", Role: models.RoleHRAdmin, Department: "Human Resources"}, "hr123"},
	{models.User{Email: "employee@company.com", Name: "Alex Johnson", Role: models.RoleEmployee, Department: "Engineering"}, "emp123"},
}

// SeedDemoUsers creates the demo accounts that do not exist yet.
func (s *userService) SeedDemoUsers(ctx context.Context) error {
	for _, demo := range demoUsers {
		_, err := s.users.FindUserByEmail(ctx, demo.Email)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(demo.password), bcrypt.DefaultCost)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		user := demo.User
		user.Password = string(hash)
		if err := s.users.CreateUser(ctx, &user); err != nil && !errors.Is(err, store.ErrDuplicate) {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		logger.Get().Infow("Seeded demo user", "email", user.Email, "role", user.Role)
	}
	return nil
}
