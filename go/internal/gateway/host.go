package gateway

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/challengetracker/go/internal/tracker"
)

// ErrConnectionGone is returned when drawing to a closed connection
var ErrConnectionGone = errors.New("websocket connection is gone")

// Host opens tracker windows in the browser behind one connection
type Host struct {
	conn *Connection

	mu      sync.Mutex
	windows map[string]*Window
}

var _ tracker.Host = (*Host)(nil)

func NewHost(conn *Connection) *Host {
	return &Host{conn: conn, windows: make(map[string]*Window)}
}

func (h *Host) send(t EnvelopeType, windowID string, data any) error {
	env, err := NewEnvelope(t, windowID, data)
	if err != nil {
		return err
	}
	if !h.conn.Manager.SendTo(h.conn, env) {
		return ErrConnectionGone
	}
	return nil
}

func (h *Host) OpenWindow(ctx context.Context, spec tracker.WindowSpec) (tracker.Window, error) {
	w := &Window{
		id:        spec.Meta.ID,
		host:      h,
		listeners: make(map[tracker.EventKind][]listener),
	}
	if err := h.send(EnvelopeWindowOpen, w.id, spec); err != nil {
		return nil, err
	}

	h.mu.Lock()
	if old, ok := h.windows[w.id]; ok {
		old.detach()
	}
	h.windows[w.id] = w
	h.mu.Unlock()
	return w, nil
}

// Dispatch delivers a browser input event to the window it targets
func (h *Host) Dispatch(windowID string, ev tracker.Event) {
	h.mu.Lock()
	w, ok := h.windows[windowID]
	h.mu.Unlock()
	if !ok {
		log.Debug().Str("window_id", windowID).Str("kind", string(ev.Kind)).Msg("event for unknown window dropped")
		return
	}
	w.emit(ev)
}

// Detach marks every window gone, as when the browser disconnects
func (h *Host) Detach() {
	h.mu.Lock()
	windows := h.windows
	h.windows = make(map[string]*Window)
	h.mu.Unlock()
	for _, w := range windows {
		w.detach()
	}
}

func (h *Host) forget(w *Window) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.windows[w.id] == w {
		delete(h.windows, w.id)
	}
}

type listener struct {
	ctx context.Context
	fn  func(tracker.Event)
}

// Window is one tracker window rendered by the browser
type Window struct {
	id   string
	host *Host

	mu        sync.Mutex
	gone      bool
	listeners map[tracker.EventKind][]listener
}

var _ tracker.Window = (*Window)(nil)

func (w *Window) Render(frame tracker.Frame) error {
	if !w.Alive() {
		return ErrConnectionGone
	}
	return w.host.send(EnvelopeWindowRender, w.id, frame)
}

func (w *Window) Listen(ctx context.Context, kind tracker.EventKind, fn func(tracker.Event)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners[kind] = append(w.listeners[kind], listener{ctx: ctx, fn: fn})
}

func (w *Window) SetShowHide(a tracker.ShowHideAffordance) {
	w.post(EnvelopeWindowShowHide, a)
}

func (w *Window) SetWindowed(windowed bool) {
	w.post(EnvelopeWindowWindowed, windowed)
}

func (w *Window) SetCursor(cursor string) {
	w.post(EnvelopeWindowCursor, cursor)
}

func (w *Window) post(t EnvelopeType, data any) {
	if !w.Alive() {
		return
	}
	if err := w.host.send(t, w.id, data); err != nil {
		log.Debug().Err(err).Str("window_id", w.id).Str("type", string(t)).Msg("failed to update window")
	}
}

func (w *Window) Alive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.gone
}

func (w *Window) Close() {
	if !w.Alive() {
		return
	}
	_ = w.host.send(EnvelopeWindowClose, w.id, nil)
	w.detach()
	w.host.forget(w)
}

func (w *Window) detach() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.gone = true
	w.listeners = make(map[tracker.EventKind][]listener)
}

func (w *Window) emit(ev tracker.Event) {
	w.mu.Lock()
	var fns []func(tracker.Event)
	live := w.listeners[ev.Kind][:0]
	for _, l := range w.listeners[ev.Kind] {
		if l.ctx.Err() != nil {
			continue
		}
		live = append(live, l)
		fns = append(fns, l.fn)
	}
	w.listeners[ev.Kind] = live
	w.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
