// Package settings holds the world-wide defaults every tracker falls back to.
package settings

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/challengetracker/go/internal/color"
	"github.com/mcdev12/challengetracker/go/internal/models"
)

// Settings are the module-level defaults and permission thresholds
type Settings struct {
	AllowShow      models.Role       `yaml:"allowShow" json:"allowShow" validate:"min=1,max=4"`
	DisplayButton  models.Role       `yaml:"displayButton" json:"displayButton" validate:"min=1,max=4"`
	ButtonLocation string            `yaml:"buttonLocation" json:"buttonLocation" validate:"oneof=player-list tokens templates tiles drawings walls lighting sounds regions notes none"`
	Size           int               `yaml:"size" json:"size" validate:"min=100,max=500"`
	FrameWidth     models.FrameWidth `yaml:"frameWidth" json:"frameWidth" validate:"frame_width"`
	Scroll         bool              `yaml:"scroll" json:"scroll"`
	Windowed       bool              `yaml:"windowed" json:"windowed"`
	Debug          bool              `yaml:"debug" json:"debug"`

	OuterBackgroundColor string `yaml:"outerBackgroundColor" json:"outerBackgroundColor" validate:"tracker_color"`
	OuterColor           string `yaml:"outerColor" json:"outerColor" validate:"tracker_color"`
	InnerBackgroundColor string `yaml:"innerBackgroundColor" json:"innerBackgroundColor" validate:"tracker_color"`
	InnerColor           string `yaml:"innerColor" json:"innerColor" validate:"tracker_color"`
	FrameColor           string `yaml:"frameColor" json:"frameColor" validate:"tracker_color"`
}

var settingsValidate *validator.Validate

func init() {
	settingsValidate = validator.New()
	_ = settingsValidate.RegisterValidation("tracker_color", func(fl validator.FieldLevel) bool {
		return color.Valid(fl.Field().String())
	})
	_ = settingsValidate.RegisterValidation("frame_width", func(fl validator.FieldLevel) bool {
		return models.FrameWidth(fl.Field().String()).Valid()
	})
}

// Defaults returns the built-in settings
func Defaults() Settings {
	return Settings{
		AllowShow:            models.RoleGamemaster,
		DisplayButton:        models.RolePlayer,
		ButtonLocation:       "player-list",
		Size:                 250,
		FrameWidth:           models.FrameWidthMedium,
		Scroll:               true,
		Windowed:             false,
		OuterBackgroundColor: "#1b6f1b66",
		OuterColor:           "#228b22ff",
		InnerBackgroundColor: "#b0000066",
		InnerColor:           "#dc0000ff",
		FrameColor:           "#0a0d0d",
	}
}

// Validate checks every field against its allowed range
func (s Settings) Validate() error {
	if err := settingsValidate.Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

// CanShow reports whether the actor may show trackers to other users
func (s Settings) CanShow(actor models.Actor) bool {
	return actor.Role >= s.AllowShow
}

// CanSeeButton reports whether the actor sees the tracker list launcher
func (s Settings) CanSeeButton(actor models.Actor) bool {
	return actor.Role >= s.DisplayButton
}

// Load reads a YAML settings file over the defaults. An empty path returns the defaults.
func Load(path string) (Settings, error) {
	s := Defaults()
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("failed to read settings file: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("failed to parse settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}
