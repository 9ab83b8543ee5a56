package main

import (
	"github.com/mcdev12/challengetracker/go/internal/settings"
	"github.com/mcdev12/challengetracker/go/internal/users"
)

// loadSettings reads the settings file over the defaults
func loadSettings(path string) (*settings.Store, error) {
	s, err := settings.Load(path)
	if err != nil {
		return nil, err
	}
	return settings.NewStore(s), nil
}

// loadUsers opens the user directory and its app layer
func loadUsers(path string) (*users.App, error) {
	repo, err := users.LoadRepository(path)
	if err != nil {
		return nil, err
	}
	return users.NewApp(repo), nil
}
