// Package flags stores each owner's persisted tracker configurations and keeps
// their list ordering contiguous.
package flags

import (
	"context"
	"errors"

	"github.com/mcdev12/challengetracker/go/internal/models"
)

// ErrFlagNotFound is returned by repositories when no flag exists for a key
var ErrFlagNotFound = errors.New("flag not found")

// Repository defines what the app layer needs from a flag backend.
// SaveFlags and ReplaceFlags must apply all of their writes atomically.
type Repository interface {
	GetFlag(ctx context.Context, ownerID, id string) (*models.TrackerOptions, error)
	ListFlags(ctx context.Context, ownerID string) ([]models.TrackerOptions, error)
	ListOwners(ctx context.Context) ([]string, error)
	SaveFlags(ctx context.Context, ownerID string, flags ...models.TrackerOptions) error
	DeleteFlag(ctx context.Context, ownerID, id string) error
	ReplaceFlags(ctx context.Context, ownerID, deleteID string, flags ...models.TrackerOptions) error
}

// Listener is notified after an owner's flags change
type Listener interface {
	FlagsChanged(ctx context.Context, ownerID string)
}

// ListenerFunc adapts a function to Listener
type ListenerFunc func(ctx context.Context, ownerID string)

func (f ListenerFunc) FlagsChanged(ctx context.Context, ownerID string) { f(ctx, ownerID) }

// Direction is a list move direction
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Entry is one row of an owner's tracker list
type Entry struct {
	models.TrackerOptions
	CanMoveUp   bool `json:"canMoveUp"`
	CanMoveDown bool `json:"canMoveDown"`
}
