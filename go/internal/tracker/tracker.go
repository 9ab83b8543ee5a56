// Package tracker implements one live challenge tracker: its resolved state,
// the draw pipeline and the input handling that mutates segment counts.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/challengetracker/go/internal/models"
	"github.com/mcdev12/challengetracker/go/internal/options"
	"github.com/mcdev12/challengetracker/go/internal/settings"
)

// ErrClosed is returned when rendering a tracker that was closed
var ErrClosed = errors.New("tracker closed")

// State is the lifecycle state of a tracker
type State int

const (
	StateConstructed State = iota
	StateRenderedLocal
	StateRenderedBroadcast
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConstructed:
		return "constructed"
	case StateRenderedLocal:
		return "rendered-local"
	case StateRenderedBroadcast:
		return "rendered-broadcast"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config holds the collaborators of a tracker
type Config struct {
	Options    models.TrackerOptions
	OwnerID    string
	ExecutorID string
	Actor      models.Actor
	Settings   *settings.Store
	Host       Host
	Images     *ImageLoader
	Controller Controller
}

// Tracker is one live challenge tracker on this client
type Tracker struct {
	id         string
	ownerID    string
	executorID string
	actor      models.Actor
	settings   *settings.Store
	host       Host
	images     *ImageLoader
	ctrl       Controller

	life context.Context
	stop context.CancelFunc

	mu           sync.Mutex
	opts         models.TrackerOptions
	eff          options.EffectiveState
	window       Window
	state        State
	mouseX       float64
	mouseY       float64
	listenCancel context.CancelFunc
	scrollCancel context.CancelFunc
}

// New constructs an unrendered tracker
func New(cfg Config) *Tracker {
	life, stop := context.WithCancel(context.Background())
	opts := cfg.Options.Clone()
	if cfg.OwnerID != "" {
		opts.OwnerID = cfg.OwnerID
	}
	t := &Tracker{
		id:         opts.ID,
		ownerID:    opts.OwnerID,
		executorID: cfg.ExecutorID,
		actor:      cfg.Actor,
		settings:   cfg.Settings,
		host:       cfg.Host,
		images:     cfg.Images,
		ctrl:       cfg.Controller,
		life:       life,
		stop:       stop,
		opts:       opts,
		state:      StateConstructed,
	}
	t.eff = options.Effective(opts, t.currentSettings())
	return t
}

func (t *Tracker) currentSettings() settings.Settings {
	if t.settings == nil {
		return settings.Defaults()
	}
	return t.settings.Get()
}

func (t *Tracker) ID() string         { return t.id }
func (t *Tracker) OwnerID() string    { return t.ownerID }
func (t *Tracker) ExecutorID() string { return t.executorID }

func (t *Tracker) Title() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.eff.Title
}

// Options returns a copy of the current options
func (t *Tracker) Options() models.TrackerOptions {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.opts.Clone()
}

func (t *Tracker) Effective() options.EffectiveState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.eff
}

func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Meta returns the window metadata for the current options
func (t *Tracker) Meta() models.WindowMeta {
	t.mu.Lock()
	defer t.mu.Unlock()
	return models.NewWindowMeta(t.opts, t.eff.Size, t.eff.Windowed)
}

// CanEdit reports whether the local user may mutate this tracker
func (t *Tracker) CanEdit() bool {
	return t.actor.CanEdit(t.ownerID)
}

// SetOptions replaces the options wholesale, keeping the id and owner
func (t *Tracker) SetOptions(opts models.TrackerOptions) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setOptionsLocked(opts)
}

func (t *Tracker) setOptionsLocked(opts models.TrackerOptions) {
	next := opts.Clone()
	next.ID = t.id
	next.OwnerID = t.ownerID
	t.opts = next
	t.eff = options.Effective(next, t.currentSettings())
}

// UpdateOptions applies fn to the options and re-resolves the effective state
func (t *Tracker) UpdateOptions(fn func(o *models.TrackerOptions)) models.TrackerOptions {
	t.mu.Lock()
	defer t.mu.Unlock()
	next := t.opts.Clone()
	fn(&next)
	t.setOptionsLocked(next)
	return t.opts.Clone()
}

// Render opens the window if needed, draws and attaches input listeners
func (t *Tracker) Render(ctx context.Context) error {
	loaded := t.waitImages(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateClosed {
		return ErrClosed
	}

	if t.window == nil {
		spec := WindowSpec{
			Meta:     models.NewWindowMeta(t.opts, t.eff.Size, t.eff.Windowed),
			Controls: t.CanEdit(),
		}
		w, err := t.host.OpenWindow(ctx, spec)
		if err != nil {
			return fmt.Errorf("failed to open tracker window: %w", err)
		}
		t.window = w
	}

	t.drawLocked(loaded)
	t.window.SetWindowed(t.eff.Windowed)
	t.attachListenersLocked()
	if t.CanEdit() {
		t.showIndicatorLocked(t.eff.Show)
	}
	t.state = renderedState(t.eff.Show)

	log.Debug().
		Str("tracker_id", t.id).
		Str("state", t.state.String()).
		Msg("tracker rendered")
	return nil
}

// Refresh replaces the options and redraws. It is a no-op when the tracker
// was closed or its window is gone.
func (t *Tracker) Refresh(ctx context.Context, opts models.TrackerOptions) error {
	if !t.drawable() {
		return nil
	}
	t.SetOptions(opts)
	loaded := t.waitImages(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateClosed || t.window == nil || !t.window.Alive() {
		return nil
	}
	t.toggleScrollLocked()
	t.drawLocked(loaded)
	t.window.SetWindowed(t.eff.Windowed)
	t.state = renderedState(t.eff.Show)
	return nil
}

func (t *Tracker) drawable() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state != StateClosed && t.window != nil && t.window.Alive()
}

func renderedState(show bool) State {
	if show {
		return StateRenderedBroadcast
	}
	return StateRenderedLocal
}

func (t *Tracker) waitImages(ctx context.Context) map[string]bool {
	t.mu.Lock()
	fg, bg := t.eff.ForegroundImage, t.eff.BackgroundImage
	t.mu.Unlock()

	if t.images == nil || (fg == "" && bg == "") {
		return nil
	}
	return t.images.Wait(ctx, fg, bg)
}

func (t *Tracker) drawLocked(loaded map[string]bool) {
	frame := BuildFrame(t.eff, loaded)
	if err := t.window.Render(frame); err != nil {
		log.Error().Err(err).Str("tracker_id", t.id).Msg("failed to render tracker frame")
	}
}

// SetShowIndicator records the broadcast visibility without broadcasting. The
// show/hide control is only updated when the local user may show trackers.
func (t *Tracker) SetShowIndicator(show bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.showIndicatorLocked(show)
}

func (t *Tracker) showIndicatorLocked(show bool) {
	t.opts.Show = models.Bool(show)
	t.eff.Show = show
	if t.state != StateConstructed && t.state != StateClosed {
		t.state = renderedState(show)
	}
	if t.window != nil && t.currentSettings().CanShow(t.actor) {
		t.window.SetShowHide(affordance(show))
	}
}

// SetShow sets the broadcast visibility and hands it to the controller
func (t *Tracker) SetShow(ctx context.Context, show bool) error {
	if !t.CanEdit() {
		return &models.NotOwnedError{ID: t.id}
	}
	if !t.currentSettings().CanShow(t.actor) {
		return &models.NotAllowedError{Action: "show", Role: t.actor.Role}
	}
	t.UpdateOptions(func(o *models.TrackerOptions) { o.Show = models.Bool(show) })
	if t.ctrl != nil {
		t.ctrl.RequestShowHide(ctx, t)
	}
	return nil
}

// ToggleShowHide flips the broadcast visibility
func (t *Tracker) ToggleShowHide(ctx context.Context) error {
	return t.SetShow(ctx, !t.Effective().Show)
}

func (t *Tracker) attachListenersLocked() {
	if t.listenCancel != nil {
		t.listenCancel()
		t.listenCancel = nil
	}
	if !t.CanEdit() {
		return
	}

	ctx, cancel := context.WithCancel(t.life)
	t.listenCancel = cancel
	t.window.Listen(ctx, EventMouseMove, t.onMouseMove)
	t.window.Listen(ctx, EventClick, t.onClick)
	t.window.Listen(ctx, EventContextMenu, t.onContextMenu)
	t.window.Listen(ctx, EventKeyPress, t.onKeyPress)
	t.window.Listen(ctx, EventDragEnd, t.onDragEnd)
	t.window.Listen(ctx, EventShowHide, t.onShowHide)
	t.window.Listen(ctx, EventClose, t.onClose)
	t.toggleScrollLocked()
}

// toggleScrollLocked attaches or removes the wheel listener to match the
// effective scroll setting without touching the other listeners
func (t *Tracker) toggleScrollLocked() {
	if t.window == nil || !t.CanEdit() {
		return
	}
	switch {
	case t.eff.Scroll && t.scrollCancel == nil:
		ctx, cancel := context.WithCancel(t.life)
		t.scrollCancel = cancel
		t.window.Listen(ctx, EventWheel, t.onWheel)
	case !t.eff.Scroll && t.scrollCancel != nil:
		t.scrollCancel()
		t.scrollCancel = nil
	}
}

// ScrollEnabled reports whether the wheel listener is attached
func (t *Tracker) ScrollEnabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scrollCancel != nil
}

// mutate applies fn to the ring under (x, y) and requests a draw when a ring was hit
func (t *Tracker) mutate(x, y float64, fn func(o *models.TrackerOptions, ring Ring)) {
	t.mu.Lock()
	if t.state == StateClosed {
		t.mu.Unlock()
		return
	}
	ring := NewGeometry(t.eff).HitTest(x, y)
	if ring == RingNone {
		t.mu.Unlock()
		return
	}
	next := t.opts.Clone()
	fn(&next, ring)
	t.setOptionsLocked(next)
	t.mu.Unlock()

	if t.ctrl != nil {
		t.ctrl.RequestDraw(t.life, t)
	}
}

func (t *Tracker) onClick(ev Event) {
	t.mutate(ev.X, ev.Y, Increment)
}

func (t *Tracker) onContextMenu(ev Event) {
	t.mutate(ev.X, ev.Y, Decrement)
}

func (t *Tracker) onKeyPress(ev Event) {
	var fn func(o *models.TrackerOptions, ring Ring)
	switch ev.Code {
	case KeyMinus:
		fn = Shrink
	case KeyEqual:
		fn = Grow
	default:
		return
	}
	t.mu.Lock()
	x, y := t.mouseX, t.mouseY
	t.mu.Unlock()
	t.mutate(x, y, fn)
}

func (t *Tracker) onWheel(ev Event) {
	var fn func(o *models.TrackerOptions, ring Ring)
	switch {
	case ev.DeltaY > 0:
		fn = Shrink
	case ev.DeltaY < 0:
		fn = Grow
	default:
		return
	}
	t.mu.Lock()
	x, y := t.mouseX, t.mouseY
	t.mu.Unlock()
	t.mutate(x, y, fn)
}

func (t *Tracker) onMouseMove(ev Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mouseX, t.mouseY = ev.X, ev.Y
	if t.window == nil {
		return
	}
	if NewGeometry(t.eff).InOuterArc(ev.X, ev.Y) {
		t.window.SetCursor("pointer")
	} else {
		t.window.SetCursor("default")
	}
}

func (t *Tracker) onDragEnd(ev Event) {
	if ev.Position == nil {
		return
	}
	pos := *ev.Position
	t.UpdateOptions(func(o *models.TrackerOptions) { o.Position = &pos })
	if t.ctrl != nil {
		t.ctrl.SavePosition(t.life, t, pos)
	}
}

func (t *Tracker) onShowHide(Event) {
	if err := t.ToggleShowHide(t.life); err != nil {
		log.Warn().Err(err).Str("tracker_id", t.id).Msg("show/hide rejected")
	}
}

func (t *Tracker) onClose(Event) {
	if t.ctrl != nil {
		t.ctrl.RequestClose(t.life, t)
	}
}

// ApplySettings re-resolves the effective state after a settings change.
// It reports whether the change needs a redraw.
func (t *Tracker) ApplySettings(old, cur settings.Settings) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateClosed {
		return false
	}
	t.eff = options.Effective(t.opts, cur)

	if t.window != nil {
		if old.Scroll != cur.Scroll {
			t.toggleScrollLocked()
		}
		if old.Windowed != cur.Windowed && t.opts.Windowed == nil {
			t.window.SetWindowed(cur.Windowed)
		}
		if old.AllowShow != cur.AllowShow && t.CanEdit() {
			t.showIndicatorLocked(t.eff.Show)
		}
	}

	return old.Size != cur.Size ||
		old.FrameWidth != cur.FrameWidth ||
		old.OuterColor != cur.OuterColor ||
		old.OuterBackgroundColor != cur.OuterBackgroundColor ||
		old.InnerColor != cur.InnerColor ||
		old.InnerBackgroundColor != cur.InnerBackgroundColor ||
		old.FrameColor != cur.FrameColor
}

// DetachListeners revokes the input listeners ahead of a close broadcast
func (t *Tracker) DetachListeners() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listenCancel != nil {
		t.listenCancel()
		t.listenCancel = nil
	}
	if t.scrollCancel != nil {
		t.scrollCancel()
		t.scrollCancel = nil
	}
}

// Dispose closes the window and releases every listener. Safe to call twice.
func (t *Tracker) Dispose() {
	t.mu.Lock()
	if t.state == StateClosed {
		t.mu.Unlock()
		return
	}
	t.state = StateClosed
	w := t.window
	t.mu.Unlock()

	t.stop()
	if w != nil {
		w.Close()
	}
	log.Debug().Str("tracker_id", t.id).Msg("tracker disposed")
}
