package protocol_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/challengetracker/go/internal/models"
	"github.com/mcdev12/challengetracker/go/internal/options"
	"github.com/mcdev12/challengetracker/go/internal/protocol"
	"github.com/mcdev12/challengetracker/go/internal/protocol/protocoltest"
	"github.com/mcdev12/challengetracker/go/internal/settings"
	"github.com/mcdev12/challengetracker/go/internal/tracker"
)

var (
	gm      = models.Actor{UserID: "gm", Role: models.RoleGamemaster}
	player1 = models.Actor{UserID: "player-1", Role: models.RolePlayer}
	player2 = models.Actor{UserID: "player-2", Role: models.RolePlayer}
)

func openOptions(override models.TrackerOptions) models.TrackerOptions {
	if override.ID == "" {
		override.ID = models.NewTrackerID()
	}
	return options.Resolve(nil, override)
}

func allowPlayersToShow(t *testing.T, w *protocoltest.World) {
	t.Helper()
	require.NoError(t, w.Settings.Update(func(s *settings.Settings) { s.AllowShow = models.RolePlayer }))
}

func live(t *testing.T, c *protocoltest.Client, id string) *tracker.Tracker {
	t.Helper()
	tr, ok := c.Peer.Registry().Get(id)
	require.True(t, ok, "%s has no tracker %s", c.Peer.Actor().UserID, id)
	return tr
}

func TestShownOpenReachesEveryPeerAndOwnerCloseWithdraws(t *testing.T) {
	ctx := context.Background()
	w := protocoltest.NewWorld(t)
	owner, p1, p2 := w.Join(t, gm), w.Join(t, player1), w.Join(t, player2)

	opts := openOptions(models.TrackerOptions{
		OuterTotal: models.Int(4),
		InnerTotal: models.Int(3),
		Show:       models.Bool(true),
	})
	require.NoError(t, owner.Peer.Open(ctx, opts, ""))

	for _, c := range []*protocoltest.Client{owner, p1, p2} {
		tr := live(t, c, opts.ID)
		eff := tr.Effective()
		assert.Equal(t, 0, eff.OuterCurrent)
		assert.Equal(t, 0, eff.InnerCurrent)
		assert.Equal(t, "gm", tr.OwnerID())
	}
	assert.True(t, owner.Window(t, opts.ID).Spec.Controls)
	assert.False(t, p1.Window(t, opts.ID).Spec.Controls)

	require.NoError(t, owner.Peer.Close(ctx, live(t, owner, opts.ID)))

	assert.False(t, p1.Has(opts.ID))
	assert.False(t, p2.Has(opts.ID))
	assert.True(t, p1.Window(t, opts.ID).Closed())

	kept := live(t, owner, opts.ID)
	assert.False(t, kept.Effective().Show)
	assert.Equal(t, tracker.StateRenderedLocal, kept.State())
	a, ok := owner.Window(t, opts.ID).ShowHide()
	require.True(t, ok)
	assert.Equal(t, "fa-eye-slash", a.Icon)

	require.NoError(t, owner.Peer.Close(ctx, kept))
	assert.False(t, owner.Has(opts.ID))
	assert.True(t, owner.Window(t, opts.ID).Closed())
}

func TestHiddenOpenStaysLocal(t *testing.T) {
	ctx := context.Background()
	w := protocoltest.NewWorld(t)
	owner, p1 := w.Join(t, gm), w.Join(t, player1)

	opts := openOptions(models.TrackerOptions{})
	require.NoError(t, owner.Peer.Open(ctx, opts, ""))

	assert.True(t, owner.Has(opts.ID))
	assert.False(t, p1.Has(opts.ID))
	assert.Equal(t, 0, p1.Host.Count())
}

func TestExecutorDrawBroadcastsAndPersists(t *testing.T) {
	ctx := context.Background()
	w := protocoltest.NewWorld(t)
	owner, p1 := w.Join(t, gm), w.Join(t, player1)

	opts := openOptions(models.TrackerOptions{Show: models.Bool(true), Persist: models.Bool(true)})
	require.NoError(t, owner.Peer.Open(ctx, opts, ""))

	win := owner.Window(t, opts.ID)
	win.Emit(tracker.Event{Kind: tracker.EventClick, X: 125, Y: 125})

	assert.Equal(t, 1, live(t, owner, opts.ID).Effective().OuterCurrent)
	assert.Equal(t, 1, live(t, p1, opts.ID).Effective().OuterCurrent)
	frame, ok := p1.Window(t, opts.ID).LastFrame()
	require.True(t, ok)
	assert.Equal(t, 1, frame.Geometry.OuterCurrent)

	stored, err := w.Flags.Get(ctx, "gm", opts.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, *stored.OuterCurrent)
}

func TestNonExecutorDrawStaysLocal(t *testing.T) {
	ctx := context.Background()
	w := protocoltest.NewWorld(t)
	allowPlayersToShow(t, w)
	owner, director := w.Join(t, player1), w.Join(t, gm)

	opts := openOptions(models.TrackerOptions{Show: models.Bool(true)})
	require.NoError(t, owner.Peer.Open(ctx, opts, ""))

	director.Window(t, opts.ID).Emit(tracker.Event{Kind: tracker.EventClick, X: 125, Y: 125})

	assert.Equal(t, 1, live(t, director, opts.ID).Effective().OuterCurrent)
	assert.Equal(t, 0, live(t, owner, opts.ID).Effective().OuterCurrent)
}

func TestGMCloseKeepsOwnerInstanceHidden(t *testing.T) {
	ctx := context.Background()
	w := protocoltest.NewWorld(t)
	allowPlayersToShow(t, w)
	owner, director, p2 := w.Join(t, player1), w.Join(t, gm), w.Join(t, player2)

	opts := openOptions(models.TrackerOptions{Show: models.Bool(true)})
	require.NoError(t, owner.Peer.Open(ctx, opts, ""))
	require.True(t, p2.Has(opts.ID))

	require.NoError(t, director.Peer.Close(ctx, live(t, director, opts.ID)))

	assert.False(t, director.Has(opts.ID))
	assert.False(t, p2.Has(opts.ID))
	kept := live(t, owner, opts.ID)
	assert.False(t, kept.Effective().Show)
	assert.False(t, owner.Window(t, opts.ID).Closed())
}

func TestGMCloseHidesOwnerInstanceWithoutShowPermission(t *testing.T) {
	ctx := context.Background()
	w := protocoltest.NewWorld(t)
	owner, director, p2 := w.Join(t, player1), w.Join(t, gm), w.Join(t, player2)

	opts := openOptions(models.TrackerOptions{Show: models.Bool(true)})
	require.NoError(t, director.Peer.Open(ctx, opts, "player-1"))
	require.True(t, owner.Has(opts.ID))

	require.NoError(t, director.Peer.Close(ctx, live(t, director, opts.ID)))

	assert.False(t, p2.Has(opts.ID))
	kept := live(t, owner, opts.ID)
	assert.False(t, kept.Effective().Show)
	assert.False(t, *kept.Options().Show)
	_, ok := owner.Window(t, opts.ID).ShowHide()
	assert.False(t, ok, "players below the allow-show role get no control")
}

func TestViewerCannotClose(t *testing.T) {
	ctx := context.Background()
	w := protocoltest.NewWorld(t)
	owner, p1 := w.Join(t, gm), w.Join(t, player1)

	opts := openOptions(models.TrackerOptions{Show: models.Bool(true)})
	require.NoError(t, owner.Peer.Open(ctx, opts, ""))

	err := p1.Peer.Close(ctx, live(t, p1, opts.ID))
	assert.ErrorIs(t, err, models.ErrNotOwned)
	assert.True(t, owner.Has(opts.ID))
	assert.True(t, p1.Has(opts.ID))
}

func TestShowAndHideByOwnerAndGM(t *testing.T) {
	ctx := context.Background()
	w := protocoltest.NewWorld(t)
	allowPlayersToShow(t, w)
	owner, director, p2 := w.Join(t, player1), w.Join(t, gm), w.Join(t, player2)

	opts := openOptions(models.TrackerOptions{Persist: models.Bool(true)})
	require.NoError(t, owner.Peer.Open(ctx, opts, ""))
	require.False(t, p2.Has(opts.ID))

	require.NoError(t, owner.Peer.SetShow(ctx, live(t, owner, opts.ID), true))
	assert.True(t, director.Has(opts.ID))
	assert.True(t, p2.Has(opts.ID))
	a, ok := owner.Window(t, opts.ID).ShowHide()
	require.True(t, ok)
	assert.Equal(t, "fa-eye", a.Icon)

	stored, err := w.Flags.Get(ctx, "player-1", opts.ID)
	require.NoError(t, err)
	assert.True(t, *stored.Show)

	require.NoError(t, director.Peer.SetShow(ctx, live(t, director, opts.ID), false))
	assert.False(t, p2.Has(opts.ID))
	assert.True(t, director.Has(opts.ID), "the executor keeps its own copy")
	assert.False(t, live(t, owner, opts.ID).Effective().Show)
	a, _ = owner.Window(t, opts.ID).ShowHide()
	assert.Equal(t, "fa-eye-slash", a.Icon)
}

func TestOwnerIndicatorFlipsWhenShownByGM(t *testing.T) {
	ctx := context.Background()
	w := protocoltest.NewWorld(t)
	allowPlayersToShow(t, w)
	owner, director := w.Join(t, player1), w.Join(t, gm)

	opts := openOptions(models.TrackerOptions{Show: models.Bool(true)})
	require.NoError(t, owner.Peer.Open(ctx, opts, ""))
	require.NoError(t, director.Peer.SetShow(ctx, live(t, director, opts.ID), false))
	frames := len(owner.Window(t, opts.ID).Frames())

	require.NoError(t, director.Peer.SetShow(ctx, live(t, director, opts.ID), true))

	assert.True(t, live(t, owner, opts.ID).Effective().Show)
	assert.Len(t, owner.Window(t, opts.ID).Frames(), frames, "owner is not re-rendered")
	a, _ := owner.Window(t, opts.ID).ShowHide()
	assert.Equal(t, "fa-eye", a.Icon)
}

func TestDrawForUnknownTrackerIsNoop(t *testing.T) {
	w := protocoltest.NewWorld(t)
	c := w.Join(t, player1)

	assert.NotPanics(t, func() {
		c.Peer.HandleDraw(context.Background(), protocol.DrawPayload{Window: models.WindowMeta{ID: "missing"}})
		c.Peer.HandleClose(context.Background(), protocol.ClosePayload{Window: models.WindowMeta{ID: "missing"}})
	})
	assert.Equal(t, 0, c.Host.Count())
}

func TestMalformedPayloadIsDropped(t *testing.T) {
	w := protocoltest.NewWorld(t)
	sender, c := w.Join(t, gm), w.Join(t, player1)

	m := protocol.Message{ID: uuid.NewString(), Kind: protocol.KindOpen, Sender: "gm", Payload: []byte(`[1, 2]`)}
	require.NoError(t, sender.Bus.ExecuteForEveryone(context.Background(), m))

	assert.Equal(t, 0, c.Peer.Registry().Len())
	assert.Equal(t, 0, sender.Peer.Registry().Len())
}

func TestHooksRunOnOpenAndClose(t *testing.T) {
	ctx := context.Background()
	w := protocoltest.NewWorld(t)
	var calls []string
	require.NoError(t, w.Hooks.Register("announce", func(_ context.Context, o models.TrackerOptions) error {
		calls = append(calls, "open:"+o.ID)
		return nil
	}))
	require.NoError(t, w.Hooks.Register("farewell", func(_ context.Context, o models.TrackerOptions) error {
		calls = append(calls, "close:"+o.ID)
		return nil
	}))
	owner := w.Join(t, gm)

	opts := openOptions(models.TrackerOptions{
		OpenFunction:  models.String("announce"),
		CloseFunction: models.String("farewell"),
	})
	require.NoError(t, owner.Peer.Open(ctx, opts, ""))
	require.NoError(t, owner.Peer.Close(ctx, live(t, owner, opts.ID)))

	assert.Equal(t, []string{"open:" + opts.ID, "close:" + opts.ID}, calls)
}

func TestSettingsChangeRedrawsOpenTrackers(t *testing.T) {
	ctx := context.Background()
	w := protocoltest.NewWorld(t)
	owner := w.Join(t, gm)

	opts := openOptions(models.TrackerOptions{})
	require.NoError(t, owner.Peer.Open(ctx, opts, ""))

	require.NoError(t, w.Settings.Update(func(s *settings.Settings) { s.Size = 320 }))

	frame, ok := owner.Window(t, opts.ID).LastFrame()
	require.True(t, ok)
	assert.Equal(t, 320, frame.Geometry.Size)
}

func TestDragEndSavesPositionForPersistedTrackers(t *testing.T) {
	ctx := context.Background()
	w := protocoltest.NewWorld(t)
	owner := w.Join(t, gm)

	opts := openOptions(models.TrackerOptions{Persist: models.Bool(true)})
	require.NoError(t, w.Flags.Set(ctx, "gm", opts))
	require.NoError(t, owner.Peer.Open(ctx, opts, ""))

	owner.Window(t, opts.ID).Emit(tracker.Event{Kind: tracker.EventDragEnd, Position: &models.Position{Left: 40, Top: 80}})

	stored, err := w.Flags.Get(ctx, "gm", opts.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Position)
	assert.Equal(t, models.Position{Left: 40, Top: 80}, *stored.Position)
}
