// Package trackertest provides in-memory hosts and windows for tests.
package trackertest

import (
	"context"
	"errors"
	"sync"

	"github.com/mcdev12/challengetracker/go/internal/tracker"
)

type listener struct {
	ctx context.Context
	fn  func(tracker.Event)
}

// Window records everything a tracker does to it
type Window struct {
	Spec tracker.WindowSpec

	mu        sync.Mutex
	frames    []tracker.Frame
	showHide  []tracker.ShowHideAffordance
	windowed  []bool
	cursor    string
	closed    bool
	detached  bool
	listeners map[tracker.EventKind][]listener
}

func newWindow(spec tracker.WindowSpec) *Window {
	return &Window{Spec: spec, listeners: make(map[tracker.EventKind][]listener)}
}

func (w *Window) Render(frame tracker.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.detached {
		return errors.New("window is gone")
	}
	w.frames = append(w.frames, frame)
	return nil
}

func (w *Window) Listen(ctx context.Context, kind tracker.EventKind, fn func(tracker.Event)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners[kind] = append(w.listeners[kind], listener{ctx: ctx, fn: fn})
}

func (w *Window) SetShowHide(a tracker.ShowHideAffordance) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.showHide = append(w.showHide, a)
}

func (w *Window) SetWindowed(windowed bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.windowed = append(w.windowed, windowed)
}

func (w *Window) SetCursor(cursor string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cursor = cursor
}

func (w *Window) Alive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.closed && !w.detached
}

func (w *Window) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
}

// Detach simulates the surface disappearing without a close
func (w *Window) Detach() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.detached = true
}

// Emit delivers ev to every live listener of its kind
func (w *Window) Emit(ev tracker.Event) {
	w.mu.Lock()
	var fns []func(tracker.Event)
	for _, l := range w.listeners[ev.Kind] {
		if l.ctx.Err() == nil {
			fns = append(fns, l.fn)
		}
	}
	w.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// ListenerCount returns the number of live listeners for kind
func (w *Window) ListenerCount(kind tracker.EventKind) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, l := range w.listeners[kind] {
		if l.ctx.Err() == nil {
			n++
		}
	}
	return n
}

func (w *Window) Frames() []tracker.Frame {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]tracker.Frame(nil), w.frames...)
}

// LastFrame returns the most recent frame, if any
func (w *Window) LastFrame() (tracker.Frame, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.frames) == 0 {
		return tracker.Frame{}, false
	}
	return w.frames[len(w.frames)-1], true
}

// ShowHide returns the last affordance set, if any
func (w *Window) ShowHide() (tracker.ShowHideAffordance, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.showHide) == 0 {
		return tracker.ShowHideAffordance{}, false
	}
	return w.showHide[len(w.showHide)-1], true
}

func (w *Window) Windowed() []bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]bool(nil), w.windowed...)
}

func (w *Window) Cursor() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cursor
}

func (w *Window) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// Host opens fake windows
type Host struct {
	mu      sync.Mutex
	windows []*Window
	// Err, when set, is returned by OpenWindow
	Err error
}

func NewHost() *Host {
	return &Host{}
}

func (h *Host) OpenWindow(_ context.Context, spec tracker.WindowSpec) (tracker.Window, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.Err != nil {
		return nil, h.Err
	}
	w := newWindow(spec)
	h.windows = append(h.windows, w)
	return w, nil
}

// Window returns the newest window opened for id
func (h *Host) Window(id string) (*Window, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.windows) - 1; i >= 0; i-- {
		if h.windows[i].Spec.Meta.ID == id {
			return h.windows[i], true
		}
	}
	return nil, false
}

func (h *Host) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.windows)
}
