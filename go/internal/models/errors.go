package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation       = errors.New("invalid options")
	ErrNotFound         = errors.New("tracker not found")
	ErrNotOwned         = errors.New("tracker not owned")
	ErrNotAllowed       = errors.New("not allowed")
	ErrMissingParameter = errors.New("missing parameter")
)

// UnknownKey is an option key outside the schema and its closest known key, if any
type UnknownKey struct {
	Key        string
	Suggestion string
}

func (k UnknownKey) String() string {
	if k.Suggestion == "" {
		return fmt.Sprintf("'%s' is not a valid option", k.Key)
	}
	return fmt.Sprintf("'%s' is not a valid option, did you mean '%s'?", k.Key, k.Suggestion)
}

// ValidationError is returned when options contain keys outside the schema
type ValidationError struct {
	Keys []UnknownKey
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Keys))
	for _, k := range e.Keys {
		parts = append(parts, k.String())
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError is returned when no tracker matches an id or title
type NotFoundError struct {
	Field string
	Value string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("challenge tracker with %s '%s' not found", e.Field, e.Value)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NotOwnedError is returned when the caller may not act on another user's tracker
type NotOwnedError struct {
	ID string
}

func (e *NotOwnedError) Error() string {
	return fmt.Sprintf("challenge tracker '%s' is not owned by you", e.ID)
}

func (e *NotOwnedError) Is(target error) bool { return target == ErrNotOwned }

// NotAllowedError is returned when the caller's role is below the required minimum
type NotAllowedError struct {
	Action string
	Role   Role
}

func (e *NotAllowedError) Error() string {
	return fmt.Sprintf("%s is not allowed for role %s", e.Action, e.Role)
}

func (e *NotAllowedError) Is(target error) bool { return target == ErrNotAllowed }

// MissingParameterError is returned before lookup when a required argument is empty
type MissingParameterError struct {
	Parameter string
	Function  string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("%s() requires '%s'", e.Function, e.Parameter)
}

func (e *MissingParameterError) Is(target error) bool { return target == ErrMissingParameter }
