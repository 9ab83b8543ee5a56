package models

import (
	"math"
	"strings"

	"github.com/google/uuid"
)

// DefaultTitle is used when a tracker is opened without a title.
const DefaultTitle = "Challenge Tracker"

// FrameWidth controls the stroke width of the ring outlines
type FrameWidth string

const (
	FrameWidthNone      FrameWidth = "none"
	FrameWidthExtraThin FrameWidth = "extra-thin"
	FrameWidthThin      FrameWidth = "thin"
	FrameWidthMedium    FrameWidth = "medium"
	FrameWidthThick     FrameWidth = "thick"
)

// Valid reports whether the frame width is one of the known values
func (f FrameWidth) Valid() bool {
	switch f {
	case FrameWidthNone, FrameWidthExtraThin, FrameWidthThin, FrameWidthMedium, FrameWidthThick:
		return true
	}
	return false
}

// LineWidth returns the stroke width in pixels for a canvas of the given size.
// Unknown values draw like medium.
func (f FrameWidth) LineWidth(size int) int {
	s := float64(size)
	switch f {
	case FrameWidthNone:
		return 0
	case FrameWidthExtraThin:
		return 1
	case FrameWidthThin:
		return int(math.Round(s / 40))
	case FrameWidthThick:
		return int(math.Round(s / 20))
	default:
		return int(math.Round(s / 30))
	}
}

// Position is the window position of a tracker on the owner's screen
type Position struct {
	Left int `json:"left"`
	Top  int `json:"top"`
}

// TrackerOptions is the persisted and transmitted state of one tracker.
// Nil fields are unset and fall through to weaker layers when resolved.
type TrackerOptions struct {
	ID                   string      `json:"id,omitempty"`
	OwnerID              string      `json:"ownerId,omitempty"`
	Title                *string     `json:"title,omitempty"`
	OuterTotal           *int        `json:"outerTotal,omitempty"`
	OuterCurrent         *int        `json:"outerCurrent,omitempty"`
	InnerTotal           *int        `json:"innerTotal,omitempty"`
	InnerCurrent         *int        `json:"innerCurrent,omitempty"`
	OuterColor           *string     `json:"outerColor,omitempty"`
	OuterBackgroundColor *string     `json:"outerBackgroundColor,omitempty"`
	InnerColor           *string     `json:"innerColor,omitempty"`
	InnerBackgroundColor *string     `json:"innerBackgroundColor,omitempty"`
	FrameColor           *string     `json:"frameColor,omitempty"`
	FrameWidth           *FrameWidth `json:"frameWidth,omitempty"`
	Size                 *int        `json:"size,omitempty"`
	Scroll               *bool       `json:"scroll,omitempty"`
	Windowed             *bool       `json:"windowed,omitempty"`
	Show                 *bool       `json:"show,omitempty"`
	Persist              *bool       `json:"persist,omitempty"`
	ListPosition         *int        `json:"listPosition,omitempty"`
	BackgroundImage      *string     `json:"backgroundImage,omitempty"`
	ForegroundImage      *string     `json:"foregroundImage,omitempty"`
	OpenFunction         *string     `json:"openFunction,omitempty"`
	CloseFunction        *string     `json:"closeFunction,omitempty"`
	Position             *Position   `json:"position,omitempty"`
}

// Clone returns a deep copy of the options
func (o TrackerOptions) Clone() TrackerOptions {
	c := o
	c.Title = clonePtr(o.Title)
	c.OuterTotal = clonePtr(o.OuterTotal)
	c.OuterCurrent = clonePtr(o.OuterCurrent)
	c.InnerTotal = clonePtr(o.InnerTotal)
	c.InnerCurrent = clonePtr(o.InnerCurrent)
	c.OuterColor = clonePtr(o.OuterColor)
	c.OuterBackgroundColor = clonePtr(o.OuterBackgroundColor)
	c.InnerColor = clonePtr(o.InnerColor)
	c.InnerBackgroundColor = clonePtr(o.InnerBackgroundColor)
	c.FrameColor = clonePtr(o.FrameColor)
	c.FrameWidth = clonePtr(o.FrameWidth)
	c.Size = clonePtr(o.Size)
	c.Scroll = clonePtr(o.Scroll)
	c.Windowed = clonePtr(o.Windowed)
	c.Show = clonePtr(o.Show)
	c.Persist = clonePtr(o.Persist)
	c.ListPosition = clonePtr(o.ListPosition)
	c.BackgroundImage = clonePtr(o.BackgroundImage)
	c.ForegroundImage = clonePtr(o.ForegroundImage)
	c.OpenFunction = clonePtr(o.OpenFunction)
	c.CloseFunction = clonePtr(o.CloseFunction)
	c.Position = clonePtr(o.Position)
	return c
}

// IsShown reports whether the tracker is broadcast to other users
func (o TrackerOptions) IsShown() bool { return Value(o.Show, false) }

// IsPersisted reports whether mutations are written to the flag store
func (o TrackerOptions) IsPersisted() bool { return Value(o.Persist, false) }

// TitleOrDefault returns the title, falling back to DefaultTitle
func (o TrackerOptions) TitleOrDefault() string {
	if o.Title == nil || *o.Title == "" {
		return DefaultTitle
	}
	return *o.Title
}

// Int returns a pointer to v
func Int(v int) *int { return &v }

// Bool returns a pointer to v
func Bool(v bool) *bool { return &v }

// String returns a pointer to v
func String(v string) *string { return &v }

// Width returns a pointer to v
func Width(v FrameWidth) *FrameWidth { return &v }

// Value dereferences p, returning def when p is nil
func Value[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// TrackerIDPrefix prefixes every generated tracker id
const TrackerIDPrefix = "challenge-tracker-"

// NewTrackerID generates a random tracker id
func NewTrackerID() string {
	return TrackerIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
