// Package users is the directory of session members and their roles.
package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/challengetracker/go/internal/models"
)

// UsersRepository defines what the app layer needs from the repository
type UsersRepository interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateRole(ctx context.Context, id string, role models.Role) (*models.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// App handles users business logic
type App struct {
	repo     UsersRepository
	validate *validator.Validate
}

// NewApp creates a new users App
func NewApp(repo UsersRepository) *App {
	return &App{
		repo:     repo,
		validate: validator.New(),
	}
}

// CreateUser adds a user with validation
func (a *App) CreateUser(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	if err := a.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if existing, err := a.repo.GetUser(ctx, req.ID); err == nil && existing != nil {
		return nil, fmt.Errorf("user with id %s already exists", req.ID)
	}

	user, err := a.repo.CreateUser(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	log.Info().Str("user_id", user.ID).Str("role", user.Role.String()).Msg("created user")
	return user, nil
}

// GetUser retrieves a user by id
func (a *App) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := a.repo.GetUser(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		return nil, &models.NotFoundError{Field: "user", Value: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// Actor resolves the identity a user acts as
func (a *App) Actor(ctx context.Context, userID string) (models.Actor, error) {
	user, err := a.GetUser(ctx, userID)
	if err != nil {
		return models.Actor{}, err
	}
	return user.Actor(), nil
}

// ListUsers returns every user
func (a *App) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := a.repo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// UpdateRole changes a user's role
func (a *App) UpdateRole(ctx context.Context, id string, req UpdateRoleRequest) (*models.User, error) {
	if err := a.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	role, err := models.ParseRole(req.Role)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	user, err := a.repo.UpdateRole(ctx, id, role)
	if errors.Is(err, ErrUserNotFound) {
		return nil, &models.NotFoundError{Field: "user", Value: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	log.Info().Str("user_id", user.ID).Str("role", user.Role.String()).Msg("updated user role")
	return user, nil
}

// DeleteUser removes a user by id
func (a *App) DeleteUser(ctx context.Context, id string) error {
	err := a.repo.DeleteUser(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		return &models.NotFoundError{Field: "user", Value: id}
	}
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	log.Info().Str("user_id", id).Msg("deleted user")
	return nil
}
