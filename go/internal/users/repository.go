package users

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/mcdev12/challengetracker/go/internal/models"
)

// ErrUserNotFound is returned by the repository when no user has the id
var ErrUserNotFound = errors.New("user not found")

// Repository keeps the session's users in memory, backed by a YAML file
type Repository struct {
	path string

	mu    sync.RWMutex
	users map[string]models.User
}

// NewRepository creates an empty repository. Writes are saved to path when it is set.
func NewRepository(path string) *Repository {
	return &Repository{
		path:  path,
		users: make(map[string]models.User),
	}
}

// LoadRepository reads a users file
func LoadRepository(path string) (*Repository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read users file: %w", err)
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse users file: %w", err)
	}

	r := NewRepository(path)
	for _, rec := range f.Users {
		u, err := recordToModel(rec)
		if err != nil {
			return nil, fmt.Errorf("user %s: %w", rec.ID, err)
		}
		r.users[u.ID] = u
	}
	return r, nil
}

// CreateUser stores a new user
func (r *Repository) CreateUser(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	u, err := recordToModel(req)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
	if err := r.saveLocked(); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser retrieves a user by id
func (r *Repository) GetUser(ctx context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

// ListUsers returns every user ordered by id
func (r *Repository) ListUsers(ctx context.Context) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateRole changes the role of a user
func (r *Repository) UpdateRole(ctx context.Context, id string, role models.Role) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	u.Role = role
	r.users[id] = u
	if err := r.saveLocked(); err != nil {
		return nil, err
	}
	return &u, nil
}

// DeleteUser deletes a user by id
func (r *Repository) DeleteUser(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(r.users, id)
	return r.saveLocked()
}

func (r *Repository) saveLocked() error {
	if r.path == "" {
		return nil
	}
	f := file{Users: make([]CreateUserRequest, 0, len(r.users))}
	for _, u := range r.users {
		f.Users = append(f.Users, modelToRecord(u))
	}
	sort.Slice(f.Users, func(i, j int) bool { return f.Users[i].ID < f.Users[j].ID })

	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to encode users file: %w", err)
	}
	if err := os.WriteFile(r.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write users file: %w", err)
	}
	return nil
}

// recordToModel converts a file record to the domain model
func recordToModel(rec CreateUserRequest) (models.User, error) {
	role, err := models.ParseRole(rec.Role)
	if err != nil {
		return models.User{}, err
	}
	return models.User{ID: rec.ID, Name: rec.Name, Role: role}, nil
}

func modelToRecord(u models.User) CreateUserRequest {
	return CreateUserRequest{ID: u.ID, Name: u.Name, Role: u.Role.String()}
}
