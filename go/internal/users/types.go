package users

import "github.com/mcdev12/challengetracker/go/internal/models"

// CreateUserRequest represents the data needed to add a user
type CreateUserRequest struct {
	ID   string `json:"id" yaml:"id" validate:"required,max=64"`
	Name string `json:"name" yaml:"name" validate:"required,max=120"`
	Role string `json:"role" yaml:"role" validate:"required,oneof=player trusted assistant gamemaster"`
}

// UpdateRoleRequest changes the role of a user
type UpdateRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=player trusted assistant gamemaster"`
}

// file is the on-disk layout of a users file
type file struct {
	Users []CreateUserRequest `yaml:"users"`
}

// GetUserRequest is the UserService.GetUser message
type GetUserRequest struct {
	ID string `json:"id"`
}

// GetUserResponse carries the requested user
type GetUserResponse struct {
	User *models.User `json:"user"`
}

// ListUsersRequest is the UserService.ListUsers message
type ListUsersRequest struct{}

// ListUsersResponse carries every user of the directory
type ListUsersResponse struct {
	Users []models.User `json:"users"`
}
