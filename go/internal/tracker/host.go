package tracker

import (
	"context"

	"github.com/mcdev12/challengetracker/go/internal/models"
)

// EventKind names an input event delivered by a window
type EventKind string

const (
	EventClick       EventKind = "click"
	EventContextMenu EventKind = "contextmenu"
	EventKeyPress    EventKind = "keypress"
	EventWheel       EventKind = "wheel"
	EventMouseMove   EventKind = "mousemove"
	EventDragEnd     EventKind = "dragend"
	EventShowHide    EventKind = "showhide"
	EventClose       EventKind = "close"
)

// Key codes that change ring totals
const (
	KeyMinus = "Minus"
	KeyEqual = "Equal"
)

// Event is one input event in canvas coordinates
type Event struct {
	Kind     EventKind        `json:"kind"`
	X        float64          `json:"x"`
	Y        float64          `json:"y"`
	Code     string           `json:"code,omitempty"`
	DeltaY   float64          `json:"deltaY,omitempty"`
	Position *models.Position `json:"position,omitempty"`
}

// ShowHideAffordance is the header control reflecting broadcast visibility
type ShowHideAffordance struct {
	Show    bool   `json:"show"`
	Icon    string `json:"icon"`
	Tooltip string `json:"tooltip"`
}

func affordance(show bool) ShowHideAffordance {
	if show {
		return ShowHideAffordance{Show: true, Icon: "fa-eye", Tooltip: "Shown to others"}
	}
	return ShowHideAffordance{Show: false, Icon: "fa-eye-slash", Tooltip: "Hidden from others"}
}

// WindowSpec describes the window to open
type WindowSpec struct {
	Meta models.WindowMeta `json:"meta"`
	// Controls enables the show/hide and close controls and input handling
	Controls bool `json:"controls"`
}

// Window is a host surface one tracker draws into
type Window interface {
	Render(frame Frame) error
	// Listen calls fn for every event of kind until ctx is done
	Listen(ctx context.Context, kind EventKind, fn func(Event))
	SetShowHide(a ShowHideAffordance)
	SetWindowed(windowed bool)
	SetCursor(cursor string)
	// Alive reports whether the surface is still attached
	Alive() bool
	Close()
}

// Host opens windows
type Host interface {
	OpenWindow(ctx context.Context, spec WindowSpec) (Window, error)
}

// Controller receives state changes a tracker initiates from user input
type Controller interface {
	RequestDraw(ctx context.Context, t *Tracker)
	RequestShowHide(ctx context.Context, t *Tracker)
	RequestClose(ctx context.Context, t *Tracker)
	SavePosition(ctx context.Context, t *Tracker, pos models.Position)
}
