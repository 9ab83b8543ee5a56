// Package commands is the scripting surface over one peer: open, draw, close,
// show, hide, set, get and delete trackers by id or title.
package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/challengetracker/go/internal/flags"
	"github.com/mcdev12/challengetracker/go/internal/models"
	"github.com/mcdev12/challengetracker/go/internal/notify"
	"github.com/mcdev12/challengetracker/go/internal/options"
	"github.com/mcdev12/challengetracker/go/internal/protocol"
	"github.com/mcdev12/challengetracker/go/internal/settings"
	"github.com/mcdev12/challengetracker/go/internal/tracker"
)

// OpenRequest holds the call-site overrides for Open. Unset fields fall
// back to the stored flag, then the settings, then the built-in defaults.
type OpenRequest struct {
	Options models.TrackerOptions
}

// Ring opens a tracker with an outer ring of outer segments
func Ring(outer int) OpenRequest {
	return OpenRequest{Options: models.TrackerOptions{OuterTotal: models.Int(outer)}}
}

// Rings opens a tracker with both rings
func Rings(outer, inner int) OpenRequest {
	return OpenRequest{Options: models.TrackerOptions{
		OuterTotal: models.Int(outer),
		InnerTotal: models.Int(inner),
	}}
}

// WithOptions opens a tracker from a full option set
func WithOptions(opts models.TrackerOptions) OpenRequest {
	return OpenRequest{Options: opts}
}

// Service runs commands as the actor of its peer
type Service struct {
	peer  *protocol.Peer
	flags *flags.App
}

func NewService(peer *protocol.Peer) *Service {
	return &Service{peer: peer, flags: peer.Flags()}
}

func (s *Service) actor() models.Actor { return s.peer.Actor() }

// fail reports err to the user and returns it
func (s *Service) fail(err error) error {
	return notify.Error(s.peer.Reporter(), err)
}

func (s *Service) canShow() bool {
	return s.peer.Settings().Get().CanShow(s.actor())
}

// Open resolves the request and opens the tracker. It returns the tracker id.
func (s *Service) Open(ctx context.Context, req OpenRequest) (string, error) {
	actor := s.actor()
	override := req.Options.Clone()

	ownerID := override.OwnerID
	if ownerID == "" {
		ownerID = actor.UserID
	}
	if !actor.CanEdit(ownerID) {
		return "", s.fail(&models.NotOwnedError{ID: override.ID})
	}
	if !s.canShow() {
		override.Show = models.Bool(false)
	}

	var persisted *models.TrackerOptions
	if override.ID != "" {
		flag, err := s.flags.Get(ctx, ownerID, override.ID)
		if err != nil {
			return "", s.fail(err)
		}
		persisted = flag
	}

	opts := options.Resolve(persisted, override)
	if opts.ID == "" {
		opts.ID = models.NewTrackerID()
	}
	if opts.ListPosition == nil {
		next, err := s.flags.NextListPosition(ctx, ownerID)
		if err != nil {
			return "", s.fail(err)
		}
		opts.ListPosition = models.Int(next)
	}
	opts.OwnerID = ownerID

	if err := s.peer.Open(ctx, opts, ownerID); err != nil {
		return "", s.fail(err)
	}
	log.Info().
		Str("user_id", actor.UserID).
		Str("owner_id", ownerID).
		Str("tracker_id", opts.ID).
		Bool("show", opts.IsShown()).
		Msg("tracker opened")
	return opts.ID, nil
}

// OpenJSON validates a JSON option object and opens it
func (s *Service) OpenJSON(ctx context.Context, data []byte) (string, error) {
	opts, err := options.Parse(data, s.peer.Reporter())
	if err != nil {
		return "", err
	}
	return s.Open(ctx, WithOptions(opts))
}

// Draw merges opts into the open tracker with opts.ID and draws it. Without
// an id every open tracker is redrawn.
func (s *Service) Draw(ctx context.Context, opts models.TrackerOptions) error {
	if opts.ID == "" {
		var errs []error
		for _, t := range s.peer.Registry().All() {
			if err := s.peer.Draw(ctx, t); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	t, err := s.liveByID(opts.ID)
	if err != nil {
		return s.fail(err)
	}
	if !t.CanEdit() {
		return s.fail(&models.NotOwnedError{ID: opts.ID})
	}
	wasShown := t.Effective().Show
	next := t.UpdateOptions(func(o *models.TrackerOptions) { *o = options.Merge(opts, *o) })
	if next.IsShown() != wasShown {
		if err := s.peer.UpdateShowHide(ctx, t, s.actor().UserID); err != nil {
			return s.fail(err)
		}
	}
	return s.peer.Draw(ctx, t)
}

// IsOpen reports whether a tracker with id is open on this peer
func (s *Service) IsOpen(id string) bool {
	_, ok := s.peer.Registry().Get(id)
	return ok
}

func (s *Service) liveByID(id string) (*tracker.Tracker, error) {
	t, ok := s.peer.Registry().Get(id)
	if !ok {
		return nil, &models.NotFoundError{Field: "id", Value: id}
	}
	return t, nil
}

func (s *Service) liveByTitle(title string) (*tracker.Tracker, error) {
	t, ok := s.peer.Registry().FindByTitle(title)
	if !ok {
		return nil, &models.NotFoundError{Field: "title", Value: title}
	}
	return t, nil
}

// CloseAll closes every open tracker the actor may close
func (s *Service) CloseAll(ctx context.Context) error {
	var errs []error
	for _, t := range s.peer.Registry().All() {
		if !t.CanEdit() {
			continue
		}
		if err := s.peer.Close(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return s.fail(err)
	}
	return nil
}

func (s *Service) CloseByID(ctx context.Context, id string) error {
	if id == "" {
		return s.fail(&models.MissingParameterError{Parameter: "id", Function: "closeById"})
	}
	t, err := s.liveByID(id)
	if err != nil {
		return s.fail(err)
	}
	return s.close(ctx, t)
}

func (s *Service) CloseByTitle(ctx context.Context, title string) error {
	if title == "" {
		return s.fail(&models.MissingParameterError{Parameter: "title", Function: "closeByTitle"})
	}
	t, err := s.liveByTitle(title)
	if err != nil {
		return s.fail(err)
	}
	return s.close(ctx, t)
}

func (s *Service) close(ctx context.Context, t *tracker.Tracker) error {
	if err := s.peer.Close(ctx, t); err != nil {
		return s.fail(err)
	}
	return nil
}

// ShowAll shows every open tracker the actor owns, or all of them for a GM
func (s *Service) ShowAll(ctx context.Context) error {
	return s.setShowAll(ctx, true)
}

func (s *Service) ShowByID(ctx context.Context, id string) error {
	return s.setShowByID(ctx, id, true, "showById")
}

func (s *Service) ShowByTitle(ctx context.Context, title string) error {
	return s.setShowByTitle(ctx, title, true, "showByTitle")
}

// HideAll hides every open tracker the actor owns, or all of them for a GM
func (s *Service) HideAll(ctx context.Context) error {
	return s.setShowAll(ctx, false)
}

func (s *Service) HideByID(ctx context.Context, id string) error {
	return s.setShowByID(ctx, id, false, "hideById")
}

func (s *Service) HideByTitle(ctx context.Context, title string) error {
	return s.setShowByTitle(ctx, title, false, "hideByTitle")
}

func (s *Service) allowedToShow(function string) error {
	actor := s.actor()
	if actor.IsGM() || s.canShow() {
		return nil
	}
	return &models.NotAllowedError{Action: function, Role: actor.Role}
}

func (s *Service) setShowAll(ctx context.Context, show bool) error {
	function := "hideAll"
	if show {
		function = "showAll"
	}
	if err := s.allowedToShow(function); err != nil {
		return s.fail(err)
	}
	var errs []error
	for _, t := range s.peer.Registry().All() {
		if !t.CanEdit() {
			continue
		}
		if err := s.peer.SetShow(ctx, t, show); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return s.fail(err)
	}
	return nil
}

func (s *Service) setShowByID(ctx context.Context, id string, show bool, function string) error {
	if id == "" {
		return s.fail(&models.MissingParameterError{Parameter: "id", Function: function})
	}
	if err := s.allowedToShow(function); err != nil {
		return s.fail(err)
	}
	t, err := s.liveByID(id)
	if err != nil {
		return s.fail(err)
	}
	return s.setShow(ctx, t, show)
}

func (s *Service) setShowByTitle(ctx context.Context, title string, show bool, function string) error {
	if title == "" {
		return s.fail(&models.MissingParameterError{Parameter: "title", Function: function})
	}
	if err := s.allowedToShow(function); err != nil {
		return s.fail(err)
	}
	t, err := s.liveByTitle(title)
	if err != nil {
		return s.fail(err)
	}
	return s.setShow(ctx, t, show)
}

func (s *Service) setShow(ctx context.Context, t *tracker.Tracker, show bool) error {
	if !t.CanEdit() {
		return s.fail(&models.NotOwnedError{ID: t.ID()})
	}
	if err := s.peer.SetShow(ctx, t, show); err != nil {
		return s.fail(err)
	}
	return nil
}

// flagOwner finds who stores the flag with id. GMs search every owner,
// everyone else only their own flags. An empty owner means no flag.
func (s *Service) flagOwner(ctx context.Context, id string) (string, error) {
	actor := s.actor()
	if actor.IsGM() {
		owner, err := s.flags.FindOwner(ctx, id)
		if errors.Is(err, models.ErrNotFound) {
			return "", nil
		}
		return owner, err
	}
	if _, err := s.flags.Get(ctx, actor.UserID, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return actor.UserID, nil
}

// SetByID merges opts into the stored flag and the open tracker with id
func (s *Service) SetByID(ctx context.Context, id string, opts models.TrackerOptions) error {
	if id == "" {
		return s.fail(&models.MissingParameterError{Parameter: "id", Function: "setById"})
	}
	owner, err := s.flagOwner(ctx, id)
	if err != nil {
		return s.fail(err)
	}
	live, _ := s.peer.Registry().Get(id)
	if owner == "" && live == nil {
		if other, err := s.flags.FindOwner(ctx, id); err == nil && other != s.actor().UserID {
			return s.fail(&models.NotOwnedError{ID: id})
		}
		return s.fail(&models.NotFoundError{Field: "id", Value: id})
	}
	return s.set(ctx, owner, live, id, opts)
}

// SetByTitle merges opts into the actor's stored flag and the open tracker with title
func (s *Service) SetByTitle(ctx context.Context, title string, opts models.TrackerOptions) error {
	if title == "" {
		return s.fail(&models.MissingParameterError{Parameter: "title", Function: "setByTitle"})
	}
	actor := s.actor()
	var owner, id string
	flag, err := s.flags.FindByTitle(ctx, actor.UserID, title)
	switch {
	case err == nil:
		owner, id = actor.UserID, flag.ID
	case !errors.Is(err, models.ErrNotFound):
		return s.fail(err)
	}
	live, _ := s.peer.Registry().FindByTitle(title)
	if owner == "" && live == nil {
		return s.fail(&models.NotFoundError{Field: "title", Value: title})
	}
	if id == "" {
		id = live.ID()
	}
	return s.set(ctx, owner, live, id, opts)
}

func (s *Service) set(ctx context.Context, owner string, live *tracker.Tracker, id string, opts models.TrackerOptions) error {
	actor := s.actor()
	if live != nil && !live.CanEdit() {
		return s.fail(&models.NotOwnedError{ID: id})
	}
	if owner != "" && !actor.CanEdit(owner) {
		return s.fail(&models.NotOwnedError{ID: id})
	}

	patch := opts.Clone()
	patch.ID = id
	patch.OwnerID = ""
	if owner != "" {
		if err := s.flags.Set(ctx, owner, patch); err != nil {
			return s.fail(err)
		}
	}
	if live != nil && live.ID() == id {
		live.UpdateOptions(func(o *models.TrackerOptions) { *o = options.Merge(patch, *o) })
		if err := s.peer.Draw(ctx, live); err != nil {
			return s.fail(err)
		}
	}
	return nil
}

// SetByIDJSON validates a JSON option object and merges it like SetByID
func (s *Service) SetByIDJSON(ctx context.Context, id string, data []byte) error {
	opts, err := options.Parse(data, s.peer.Reporter())
	if err != nil {
		return err
	}
	return s.SetByID(ctx, id, opts)
}

// GetByID returns the stored flag with id, or the open tracker's options
func (s *Service) GetByID(ctx context.Context, id string) (*models.TrackerOptions, error) {
	if id == "" {
		return nil, s.fail(&models.MissingParameterError{Parameter: "id", Function: "getById"})
	}
	owner, err := s.flagOwner(ctx, id)
	if err != nil {
		return nil, s.fail(err)
	}
	if owner != "" {
		flag, err := s.flags.Get(ctx, owner, id)
		if err != nil {
			return nil, s.fail(err)
		}
		return flag, nil
	}
	t, err := s.liveByID(id)
	if err != nil {
		return nil, s.fail(err)
	}
	opts := t.Options()
	return &opts, nil
}

// GetByTitle returns the actor's stored flag with title, or the open tracker's options
func (s *Service) GetByTitle(ctx context.Context, title string) (*models.TrackerOptions, error) {
	if title == "" {
		return nil, s.fail(&models.MissingParameterError{Parameter: "title", Function: "getByTitle"})
	}
	flag, err := s.flags.FindByTitle(ctx, s.actor().UserID, title)
	if err == nil {
		return flag, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, s.fail(err)
	}
	t, err := s.liveByTitle(title)
	if err != nil {
		return nil, s.fail(err)
	}
	opts := t.Options()
	return &opts, nil
}

// ErrNotConfirmed is returned by DeleteAll without confirmation
var ErrNotConfirmed = errors.New("deleting every challenge tracker must be confirmed")

// DeleteAll removes every flag of the actor. Open trackers stay open but stop persisting.
func (s *Service) DeleteAll(ctx context.Context, confirmed bool) error {
	if !confirmed {
		return s.fail(ErrNotConfirmed)
	}
	owner := s.actor().UserID
	entries, err := s.flags.List(ctx, owner)
	if err != nil {
		return s.fail(err)
	}
	for _, e := range entries {
		if _, err := s.flags.Unset(ctx, owner, e.ID); err != nil {
			return err
		}
		s.unpersist(e.ID)
	}
	log.Info().Str("owner_id", owner).Int("deleted", len(entries)).Msg("all flags deleted")
	return nil
}

// DeleteByID removes the flag with id. GMs may delete any owner's flag.
func (s *Service) DeleteByID(ctx context.Context, id string) error {
	if id == "" {
		return s.fail(&models.MissingParameterError{Parameter: "id", Function: "deleteById"})
	}
	owner, err := s.flagOwner(ctx, id)
	if err != nil {
		return s.fail(err)
	}
	if owner == "" {
		owner = s.actor().UserID
	}
	if _, err := s.flags.Unset(ctx, owner, id); err != nil {
		return err
	}
	s.unpersist(id)
	return nil
}

// DeleteByTitle removes the actor's flag with title
func (s *Service) DeleteByTitle(ctx context.Context, title string) error {
	if title == "" {
		return s.fail(&models.MissingParameterError{Parameter: "title", Function: "deleteByTitle"})
	}
	owner := s.actor().UserID
	flag, err := s.flags.FindByTitle(ctx, owner, title)
	if err != nil {
		return s.fail(err)
	}
	if _, err := s.flags.Unset(ctx, owner, flag.ID); err != nil {
		return err
	}
	s.unpersist(flag.ID)
	return nil
}

// unpersist stops an open tracker from writing its flag back
func (s *Service) unpersist(id string) {
	if t, ok := s.peer.Registry().Get(id); ok {
		t.UpdateOptions(func(o *models.TrackerOptions) { o.Persist = models.Bool(false) })
	}
}

// Describe formats a flag for command-line output
func Describe(opts models.TrackerOptions, s settings.Settings) string {
	eff := options.Effective(opts, s)
	return fmt.Sprintf("%s [%s] outer %d/%d inner %d/%d show=%t persist=%t",
		eff.Title, opts.ID, eff.OuterCurrent, eff.OuterTotal, eff.InnerCurrent, eff.InnerTotal, eff.Show, eff.Persist)
}
