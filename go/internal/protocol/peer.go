package protocol

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/challengetracker/go/internal/flags"
	"github.com/mcdev12/challengetracker/go/internal/hooks"
	"github.com/mcdev12/challengetracker/go/internal/models"
	"github.com/mcdev12/challengetracker/go/internal/notify"
	"github.com/mcdev12/challengetracker/go/internal/options"
	"github.com/mcdev12/challengetracker/go/internal/registry"
	"github.com/mcdev12/challengetracker/go/internal/settings"
	"github.com/mcdev12/challengetracker/go/internal/tracker"
)

// PeerConfig holds the collaborators of one connected client
type PeerConfig struct {
	Actor    models.Actor
	Bus      Bus
	Host     tracker.Host
	Flags    *flags.App
	Settings *settings.Store
	Hooks    *hooks.Table
	Reporter notify.Reporter
	Images   *tracker.ImageLoader
	Clock    clockwork.Clock
}

// Peer is one connected client. It owns the registry of live trackers and
// applies the open, draw and close messages of its world.
type Peer struct {
	actor    models.Actor
	bus      Bus
	host     tracker.Host
	flags    *flags.App
	settings *settings.Store
	hooks    *hooks.Table
	reporter notify.Reporter
	images   *tracker.ImageLoader
	clock    clockwork.Clock

	registry *registry.Registry[*tracker.Tracker]

	unsubscribe         func()
	unsubscribeSettings func()
}

var _ tracker.Controller = (*Peer)(nil)

func NewPeer(cfg PeerConfig) *Peer {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Settings == nil {
		cfg.Settings = settings.NewStore(settings.Defaults())
	}
	if cfg.Reporter == nil {
		cfg.Reporter = notify.LogReporter{UserID: cfg.Actor.UserID}
	}
	return &Peer{
		actor:    cfg.Actor,
		bus:      cfg.Bus,
		host:     cfg.Host,
		flags:    cfg.Flags,
		settings: cfg.Settings,
		hooks:    cfg.Hooks,
		reporter: cfg.Reporter,
		images:   cfg.Images,
		clock:    cfg.Clock,
		registry: registry.New[*tracker.Tracker](),
	}
}

func (p *Peer) Actor() models.Actor                            { return p.actor }
func (p *Peer) Flags() *flags.App                              { return p.flags }
func (p *Peer) Settings() *settings.Store                      { return p.settings }
func (p *Peer) Reporter() notify.Reporter                      { return p.reporter }
func (p *Peer) Registry() *registry.Registry[*tracker.Tracker] { return p.registry }

// Start subscribes to the bus and to settings changes
func (p *Peer) Start() error {
	unsub, err := p.bus.Subscribe(p.handle)
	if err != nil {
		return fmt.Errorf("failed to subscribe peer %s: %w", p.actor.UserID, err)
	}
	p.unsubscribe = unsub
	p.unsubscribeSettings = p.settings.Subscribe(p.applySettings)
	log.Info().Str("user_id", p.actor.UserID).Str("role", p.actor.Role.String()).Msg("peer started")
	return nil
}

// Stop unsubscribes and disposes every live tracker
func (p *Peer) Stop() {
	if p.unsubscribe != nil {
		p.unsubscribe()
		p.unsubscribe = nil
	}
	if p.unsubscribeSettings != nil {
		p.unsubscribeSettings()
		p.unsubscribeSettings = nil
	}
	p.registry.Clear()
	log.Info().Str("user_id", p.actor.UserID).Msg("peer stopped")
}

func (p *Peer) handle(ctx context.Context, m Message) {
	payload, err := ParsePayload(m)
	if err != nil {
		log.Warn().Err(err).Str("message_id", m.ID).Str("kind", string(m.Kind)).Msg("dropping malformed payload")
		return
	}
	log.Debug().
		Str("user_id", p.actor.UserID).
		Str("sender", m.Sender).
		Str("kind", string(m.Kind)).
		Msg("handling tracker message")

	switch pl := payload.(type) {
	case OpenPayload:
		p.HandleOpen(ctx, pl)
	case DrawPayload:
		p.HandleDraw(ctx, pl)
	case ClosePayload:
		p.HandleClose(ctx, pl)
	}
}

func (p *Peer) send(ctx context.Context, kind Kind, payload any, audience Audience) error {
	m, err := NewMessage(p.clock, kind, p.actor.UserID, payload)
	if err != nil {
		return err
	}
	if audience == AudienceOthers {
		err = p.bus.ExecuteForOthers(ctx, m)
	} else {
		err = p.bus.ExecuteForEveryone(ctx, m)
	}
	if err != nil {
		return fmt.Errorf("failed to send %s: %w", kind, err)
	}
	return nil
}

func (p *Peer) windowMeta(opts models.TrackerOptions) models.WindowMeta {
	eff := options.Effective(opts, p.settings.Get())
	return models.NewWindowMeta(opts, eff.Size, eff.Windowed)
}

// Open opens a resolved tracker for ownerID. Shown trackers open on every
// peer, hidden ones only here.
func (p *Peer) Open(ctx context.Context, opts models.TrackerOptions, ownerID string) error {
	if ownerID == "" {
		ownerID = p.actor.UserID
	}
	opts.OwnerID = ownerID
	payload := OpenPayload{
		Options:    opts,
		Window:     p.windowMeta(opts),
		OwnerID:    ownerID,
		ExecutorID: p.actor.UserID,
	}
	if opts.IsShown() {
		return p.send(ctx, KindOpen, payload, AudienceEveryone)
	}
	p.HandleOpen(ctx, payload)
	return nil
}

// HandleOpen creates and renders the tracker, or updates an existing one.
// An owner whose tracker is shown by someone else only flips its show/hide
// indicator instead of re-rendering.
func (p *Peer) HandleOpen(ctx context.Context, pl OpenPayload) {
	id := pl.Window.ID
	if id == "" {
		id = pl.Options.ID
	}
	if id == "" {
		log.Warn().Str("user_id", p.actor.UserID).Msg("open without tracker id ignored")
		return
	}
	pl.Options.ID = id

	p.hooks.Run(ctx, pl.Options.OpenFunction, pl.Options)

	t, created, err := p.registry.Open(id, func() (*tracker.Tracker, error) {
		return tracker.New(tracker.Config{
			Options:    pl.Options,
			OwnerID:    pl.OwnerID,
			ExecutorID: pl.ExecutorID,
			Actor:      p.actor,
			Settings:   p.settings,
			Host:       p.host,
			Images:     p.images,
			Controller: p,
		}), nil
	})
	if err != nil {
		notify.Error(p.reporter, fmt.Errorf("failed to open challenge tracker '%s': %w", id, err))
		return
	}

	if !created {
		wasShown := t.Effective().Show
		t.SetOptions(pl.Options)
		if t.CanEdit() && p.actor.UserID != pl.ExecutorID && !wasShown {
			t.SetShowIndicator(true)
			return
		}
	}

	if err := t.Render(ctx); err != nil {
		if errors.Is(err, tracker.ErrClosed) {
			return
		}
		notify.Error(p.reporter, fmt.Errorf("failed to render challenge tracker '%s': %w", id, err))
		if created {
			p.registry.Close(id)
		}
	}
}

// Draw publishes the tracker's current options. The executor broadcasts shown
// trackers and persists when persist is set, everyone else draws locally.
func (p *Peer) Draw(ctx context.Context, t *tracker.Tracker) error {
	opts := t.Options()
	payload := DrawPayload{Options: opts, Window: t.Meta()}
	isExecutor := t.ExecutorID() == p.actor.UserID

	if isExecutor && opts.IsShown() {
		if err := p.send(ctx, KindDraw, payload, AudienceEveryone); err != nil {
			return err
		}
	} else {
		p.HandleDraw(ctx, payload)
	}

	if isExecutor && opts.IsPersisted() && p.flags != nil {
		if err := p.flags.Set(ctx, t.OwnerID(), opts); err != nil {
			return notify.Error(p.reporter, err)
		}
	}
	return nil
}

// HandleDraw redraws the tracker if it is open here
func (p *Peer) HandleDraw(ctx context.Context, pl DrawPayload) {
	t, ok := p.registry.Get(pl.Window.ID)
	if !ok {
		return
	}
	if err := t.Refresh(ctx, pl.Options); err != nil {
		log.Error().Err(err).Str("tracker_id", pl.Window.ID).Msg("failed to refresh tracker")
	}
}

// Close closes the tracker on every peer. When the owner closes a tracker that
// is shown, it is withdrawn from the others and stays open here, hidden.
func (p *Peer) Close(ctx context.Context, t *tracker.Tracker) error {
	if !t.CanEdit() {
		return &models.NotOwnedError{ID: t.ID()}
	}
	if p.actor.Owns(t.OwnerID()) && t.Effective().Show {
		t.UpdateOptions(func(o *models.TrackerOptions) { o.Show = models.Bool(false) })
		return p.UpdateShowHide(ctx, t, p.actor.UserID)
	}

	t.DetachListeners()
	return p.send(ctx, KindClose, ClosePayload{Window: t.Meta(), ExecutorID: p.actor.UserID}, AudienceEveryone)
}

// HandleClose tears the tracker down. The owner keeps a tracker closed by
// someone else open and only flips its indicator to hidden.
func (p *Peer) HandleClose(ctx context.Context, pl ClosePayload) {
	t, ok := p.registry.Get(pl.Window.ID)
	if !ok {
		return
	}
	if p.actor.Owns(t.OwnerID()) && pl.ExecutorID != t.OwnerID() {
		t.SetShowIndicator(false)
		return
	}

	opts := t.Options()
	p.hooks.Run(ctx, opts.CloseFunction, opts)
	p.registry.Close(pl.Window.ID)
}

// UpdateShowHide opens the tracker for the other peers when it is shown by
// its executor and closes it for them otherwise
func (p *Peer) UpdateShowHide(ctx context.Context, t *tracker.Tracker, executorID string) error {
	opts := t.Options()
	meta := t.Meta()
	isExecutor := executorID == p.actor.UserID

	var err error
	if isExecutor && opts.IsShown() {
		err = p.send(ctx, KindOpen, OpenPayload{
			Options:    opts,
			Window:     meta,
			OwnerID:    t.OwnerID(),
			ExecutorID: executorID,
		}, AudienceOthers)
	} else {
		err = p.send(ctx, KindClose, ClosePayload{Window: meta, ExecutorID: executorID}, AudienceOthers)
	}
	if err != nil {
		return err
	}

	t.SetShowIndicator(opts.IsShown())
	if opts.IsPersisted() && p.flags != nil {
		if err := p.flags.Set(ctx, t.OwnerID(), t.Options()); err != nil {
			return notify.Error(p.reporter, err)
		}
	}
	return nil
}

// SetShow sets show on the tracker and propagates it
func (p *Peer) SetShow(ctx context.Context, t *tracker.Tracker, show bool) error {
	t.UpdateOptions(func(o *models.TrackerOptions) { o.Show = models.Bool(show) })
	return p.UpdateShowHide(ctx, t, p.actor.UserID)
}

func (p *Peer) RequestDraw(ctx context.Context, t *tracker.Tracker) {
	if err := p.Draw(ctx, t); err != nil {
		log.Error().Err(err).Str("tracker_id", t.ID()).Msg("failed to draw tracker")
	}
}

func (p *Peer) RequestShowHide(ctx context.Context, t *tracker.Tracker) {
	if err := p.UpdateShowHide(ctx, t, p.actor.UserID); err != nil {
		log.Error().Err(err).Str("tracker_id", t.ID()).Msg("failed to update show/hide")
	}
}

func (p *Peer) RequestClose(ctx context.Context, t *tracker.Tracker) {
	if err := p.Close(ctx, t); err != nil {
		notify.Error(p.reporter, err)
	}
}

func (p *Peer) SavePosition(ctx context.Context, t *tracker.Tracker, pos models.Position) {
	if p.flags == nil || !t.CanEdit() || !t.Options().IsPersisted() {
		return
	}
	if err := p.flags.SetPosition(ctx, t.OwnerID(), t.ID(), pos); err != nil {
		log.Error().Err(err).Str("tracker_id", t.ID()).Msg("failed to save tracker position")
	}
}

// applySettings re-resolves every open tracker. Settings are world-wide, so
// each peer redraws its own copy without broadcasting.
func (p *Peer) applySettings(old, cur settings.Settings) {
	for _, t := range p.registry.All() {
		if t.ApplySettings(old, cur) {
			if err := t.Refresh(context.Background(), t.Options()); err != nil {
				log.Error().Err(err).Str("tracker_id", t.ID()).Msg("failed to redraw after settings change")
			}
		}
	}
}
