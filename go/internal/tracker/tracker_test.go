package tracker_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/challengetracker/go/internal/models"
	"github.com/mcdev12/challengetracker/go/internal/options"
	"github.com/mcdev12/challengetracker/go/internal/settings"
	"github.com/mcdev12/challengetracker/go/internal/tracker"
	"github.com/mcdev12/challengetracker/go/internal/tracker/trackertest"
)

var (
	owner  = models.Actor{UserID: "owner", Role: models.RoleGamemaster}
	player = models.Actor{UserID: "player", Role: models.RolePlayer}
)

// recordingController redraws locally like a non-broadcasting peer would
type recordingController struct {
	mu        sync.Mutex
	draws     int
	showHides int
	closes    int
	positions []models.Position
}

func (c *recordingController) RequestDraw(ctx context.Context, t *tracker.Tracker) {
	c.mu.Lock()
	c.draws++
	c.mu.Unlock()
	_ = t.Refresh(ctx, t.Options())
}

func (c *recordingController) RequestShowHide(context.Context, *tracker.Tracker) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.showHides++
}

func (c *recordingController) RequestClose(context.Context, *tracker.Tracker) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
}

func (c *recordingController) SavePosition(_ context.Context, _ *tracker.Tracker, pos models.Position) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.positions = append(c.positions, pos)
}

type fixture struct {
	tracker  *tracker.Tracker
	host     *trackertest.Host
	ctrl     *recordingController
	settings *settings.Store
}

func newFixture(t *testing.T, actor models.Actor, opts models.TrackerOptions) *fixture {
	t.Helper()
	if opts.ID == "" {
		opts.ID = "challenge-tracker-test"
	}
	f := &fixture{
		host:     trackertest.NewHost(),
		ctrl:     &recordingController{},
		settings: settings.NewStore(settings.Defaults()),
	}
	f.tracker = tracker.New(tracker.Config{
		Options:    options.Resolve(nil, opts),
		OwnerID:    "owner",
		ExecutorID: actor.UserID,
		Actor:      actor,
		Settings:   f.settings,
		Host:       f.host,
		Controller: f.ctrl,
	})
	t.Cleanup(f.tracker.Dispose)
	return f
}

func (f *fixture) window(t *testing.T) *trackertest.Window {
	t.Helper()
	w, ok := f.host.Window(f.tracker.ID())
	require.True(t, ok, "window was not opened")
	return w
}

func TestIncrementStopsAtTotalAndDecrementWraps(t *testing.T) {
	for total := 1; total <= 6; total++ {
		for current := 0; current <= total; current++ {
			o := models.TrackerOptions{OuterTotal: models.Int(total), OuterCurrent: models.Int(current)}
			tracker.Increment(&o, tracker.RingOuter)
			assert.Equal(t, min(current+1, total), *o.OuterCurrent)

			o = models.TrackerOptions{OuterTotal: models.Int(total), OuterCurrent: models.Int(current)}
			tracker.Decrement(&o, tracker.RingOuter)
			if current == 0 {
				assert.Equal(t, total, *o.OuterCurrent)
			} else {
				assert.Equal(t, current-1, *o.OuterCurrent)
			}
		}
	}
}

func TestShrinkClampsCurrent(t *testing.T) {
	o := models.TrackerOptions{OuterTotal: models.Int(5), OuterCurrent: models.Int(5)}
	tracker.Shrink(&o, tracker.RingOuter)
	tracker.Shrink(&o, tracker.RingOuter)
	assert.Equal(t, 3, *o.OuterTotal)
	assert.Equal(t, 3, *o.OuterCurrent)

	o = models.TrackerOptions{InnerTotal: models.Int(1), InnerCurrent: models.Int(1)}
	tracker.Shrink(&o, tracker.RingInner)
	assert.Equal(t, 1, *o.InnerTotal, "a ring keeps at least one segment")

	tracker.Grow(&o, tracker.RingInner)
	assert.Equal(t, 2, *o.InnerTotal)

	o = models.TrackerOptions{OuterTotal: models.Int(5), OuterCurrent: models.Int(4)}
	tracker.SetTotal(&o, tracker.RingOuter, 2)
	assert.Equal(t, 2, *o.OuterCurrent)
	tracker.SetTotal(&o, tracker.RingOuter, 0)
	assert.Equal(t, 1, *o.OuterTotal)
}

func TestGeometryAndHitTest(t *testing.T) {
	eff := options.Effective(options.Resolve(nil, models.TrackerOptions{InnerTotal: models.Int(3)}), settings.Defaults())
	g := tracker.NewGeometry(eff)

	assert.Equal(t, 125.0, g.Center)
	assert.Equal(t, 8.0, g.LineWidth)
	assert.Equal(t, 16.0, g.LineWidthForRadius)
	assert.Equal(t, 109.0, g.Radius)
	assert.InDelta(t, 65.4, g.InnerRadius, 1e-9)
	assert.Equal(t, g.StartAngle, g.OuterEnd, "nothing filled yet")

	assert.Equal(t, tracker.RingInner, g.HitTest(125, 125))
	assert.Equal(t, tracker.RingOuter, g.HitTest(125, 25))
	assert.Equal(t, tracker.RingNone, g.HitTest(0, 0))

	eff.InnerTotal = 0
	assert.Equal(t, tracker.RingOuter, tracker.NewGeometry(eff).HitTest(125, 125))

	eff.FrameWidth = models.FrameWidthNone
	eff.LineWidth = 0
	g = tracker.NewGeometry(eff)
	assert.Equal(t, 6.0, g.LineWidthForRadius)
	assert.Equal(t, 0.0, g.HalfLineWidth)
}

func TestBuildFrame(t *testing.T) {
	opts := options.Resolve(nil, models.TrackerOptions{
		ID:              "a",
		InnerTotal:      models.Int(3),
		OuterCurrent:    models.Int(2),
		ForegroundImage: models.String("http://img/fg.png"),
	})
	eff := options.Effective(opts, settings.Defaults())

	frame := tracker.BuildFrame(eff, nil)
	require.Len(t, frame.Layers, 3)
	assert.Equal(t, tracker.LayerImage, frame.Layers[0].Kind)
	assert.Equal(t, tracker.LayerFill, frame.Layers[1].Kind)
	assert.Equal(t, tracker.LayerFrame, frame.Layers[2].Kind)
	assert.Empty(t, frame.Layers[0].Images, "unloaded images are skipped")

	frame = tracker.BuildFrame(eff, map[string]bool{"http://img/fg.png": true})
	require.Len(t, frame.Layers[0].Images, 1)
	assert.Equal(t, tracker.CompositeSourceIn, frame.Layers[0].Images[0].Composite)

	border := frame.Layers[2]
	assert.Len(t, border.Lines, 4+3)
	assert.Len(t, border.Outlines, 2)

	eff.LineWidth = 0
	frame = tracker.BuildFrame(eff, nil)
	assert.Empty(t, frame.Layers[2].Lines)
}

func TestRenderAttachesListenersOnce(t *testing.T) {
	f := newFixture(t, owner, models.TrackerOptions{})
	ctx := context.Background()

	require.NoError(t, f.tracker.Render(ctx))
	require.NoError(t, f.tracker.Render(ctx))

	w := f.window(t)
	assert.Equal(t, 1, f.host.Count())
	assert.True(t, w.Spec.Controls)
	assert.Equal(t, 1, w.ListenerCount(tracker.EventClick))
	assert.Equal(t, 1, w.ListenerCount(tracker.EventWheel))
	assert.Equal(t, tracker.StateRenderedLocal, f.tracker.State())
	assert.Len(t, w.Frames(), 2)
}

func TestViewerGetsNoControls(t *testing.T) {
	f := newFixture(t, player, models.TrackerOptions{})
	require.NoError(t, f.tracker.Render(context.Background()))

	w := f.window(t)
	assert.False(t, w.Spec.Controls)
	assert.Equal(t, 0, w.ListenerCount(tracker.EventClick))
	assert.Equal(t, 0, w.ListenerCount(tracker.EventWheel))
}

func TestClickAndContextMenu(t *testing.T) {
	f := newFixture(t, owner, models.TrackerOptions{OuterTotal: models.Int(4)})
	require.NoError(t, f.tracker.Render(context.Background()))
	w := f.window(t)

	w.Emit(tracker.Event{Kind: tracker.EventClick, X: 125, Y: 125})
	assert.Equal(t, 1, f.tracker.Effective().OuterCurrent)

	w.Emit(tracker.Event{Kind: tracker.EventContextMenu, X: 125, Y: 125})
	w.Emit(tracker.Event{Kind: tracker.EventContextMenu, X: 125, Y: 125})
	assert.Equal(t, 4, f.tracker.Effective().OuterCurrent, "empty ring wraps to full")

	w.Emit(tracker.Event{Kind: tracker.EventClick, X: 0, Y: 0})
	assert.Equal(t, 3, f.ctrl.draws, "misses do not draw")

	frame, ok := w.LastFrame()
	require.True(t, ok)
	assert.Equal(t, 4, frame.Geometry.OuterCurrent)
}

func TestKeyAndWheelTargetMousePosition(t *testing.T) {
	f := newFixture(t, owner, models.TrackerOptions{OuterTotal: models.Int(4), OuterCurrent: models.Int(4)})
	require.NoError(t, f.tracker.Render(context.Background()))
	w := f.window(t)

	w.Emit(tracker.Event{Kind: tracker.EventMouseMove, X: 125, Y: 25})
	assert.Equal(t, "pointer", w.Cursor())

	w.Emit(tracker.Event{Kind: tracker.EventKeyPress, Code: tracker.KeyMinus})
	eff := f.tracker.Effective()
	assert.Equal(t, 3, eff.OuterTotal)
	assert.Equal(t, 3, eff.OuterCurrent)

	w.Emit(tracker.Event{Kind: tracker.EventWheel, DeltaY: -1})
	assert.Equal(t, 4, f.tracker.Effective().OuterTotal)
	w.Emit(tracker.Event{Kind: tracker.EventWheel, DeltaY: 1})
	assert.Equal(t, 3, f.tracker.Effective().OuterTotal)

	w.Emit(tracker.Event{Kind: tracker.EventMouseMove, X: 0, Y: 0})
	assert.Equal(t, "default", w.Cursor())
	w.Emit(tracker.Event{Kind: tracker.EventKeyPress, Code: tracker.KeyEqual})
	assert.Equal(t, 3, f.tracker.Effective().OuterTotal)
}

func TestScrollListenerToggledBySettings(t *testing.T) {
	f := newFixture(t, owner, models.TrackerOptions{})
	require.NoError(t, f.tracker.Render(context.Background()))
	w := f.window(t)
	require.True(t, f.tracker.ScrollEnabled())

	old := f.settings.Get()
	require.NoError(t, f.settings.Update(func(s *settings.Settings) { s.Scroll = false }))
	redraw := f.tracker.ApplySettings(old, f.settings.Get())

	assert.False(t, redraw)
	assert.False(t, f.tracker.ScrollEnabled())
	assert.Equal(t, 0, w.ListenerCount(tracker.EventWheel))
	assert.Equal(t, 1, w.ListenerCount(tracker.EventClick), "other listeners survive")

	old = f.settings.Get()
	require.NoError(t, f.settings.Update(func(s *settings.Settings) { s.Size = 300 }))
	assert.True(t, f.tracker.ApplySettings(old, f.settings.Get()))
	assert.Equal(t, 300, f.tracker.Effective().Size)
}

func TestStaleDrawsAreNoops(t *testing.T) {
	f := newFixture(t, owner, models.TrackerOptions{})
	ctx := context.Background()
	require.NoError(t, f.tracker.Render(ctx))
	w := f.window(t)

	w.Detach()
	require.NoError(t, f.tracker.Refresh(ctx, f.tracker.Options()))
	assert.Len(t, w.Frames(), 1)

	f.tracker.Dispose()
	f.tracker.Dispose()
	assert.True(t, w.Closed())
	assert.Equal(t, tracker.StateClosed, f.tracker.State())
	assert.NoError(t, f.tracker.Refresh(ctx, f.tracker.Options()))
	assert.ErrorIs(t, f.tracker.Render(ctx), tracker.ErrClosed)
	assert.Equal(t, 0, w.ListenerCount(tracker.EventClick))
}

func TestShowHideRechecksPermission(t *testing.T) {
	trusted := models.Actor{UserID: "owner", Role: models.RoleTrusted}
	f := newFixture(t, trusted, models.TrackerOptions{})
	ctx := context.Background()
	require.NoError(t, f.tracker.Render(ctx))
	w := f.window(t)

	_, ok := w.ShowHide()
	assert.False(t, ok, "no affordance below the allow-show role")

	err := f.tracker.SetShow(ctx, true)
	assert.ErrorIs(t, err, models.ErrNotAllowed)
	assert.False(t, f.tracker.Effective().Show)

	require.NoError(t, f.settings.Update(func(s *settings.Settings) { s.AllowShow = models.RoleTrusted }))
	require.NoError(t, f.tracker.SetShow(ctx, true))
	assert.Equal(t, 1, f.ctrl.showHides)

	f.tracker.SetShowIndicator(true)
	a, ok := w.ShowHide()
	require.True(t, ok)
	assert.Equal(t, "fa-eye", a.Icon)

	require.NoError(t, f.settings.Update(func(s *settings.Settings) { s.AllowShow = models.RoleGamemaster }))
	f.tracker.SetShowIndicator(false)
	a, _ = w.ShowHide()
	assert.Equal(t, "fa-eye", a.Icon, "revoked permission leaves the affordance untouched")
	assert.False(t, f.tracker.Effective().Show, "visibility is still recorded")
	assert.False(t, *f.tracker.Options().Show)
	assert.Error(t, f.tracker.ToggleShowHide(ctx))
}

func TestHeaderEvents(t *testing.T) {
	f := newFixture(t, owner, models.TrackerOptions{})
	require.NoError(t, f.tracker.Render(context.Background()))
	w := f.window(t)

	w.Emit(tracker.Event{Kind: tracker.EventDragEnd, Position: &models.Position{Left: 5, Top: 6}})
	require.Len(t, f.ctrl.positions, 1)
	assert.Equal(t, 5, f.tracker.Options().Position.Left)

	w.Emit(tracker.Event{Kind: tracker.EventShowHide})
	assert.True(t, f.tracker.Effective().Show)
	assert.Equal(t, 1, f.ctrl.showHides)

	w.Emit(tracker.Event{Kind: tracker.EventClose})
	assert.Equal(t, 1, f.ctrl.closes)
}

func TestRenderFailsWhenHostFails(t *testing.T) {
	f := newFixture(t, owner, models.TrackerOptions{})
	f.host.Err = assert.AnError
	assert.ErrorIs(t, f.tracker.Render(context.Background()), assert.AnError)
	assert.Equal(t, tracker.StateConstructed, f.tracker.State())
}
