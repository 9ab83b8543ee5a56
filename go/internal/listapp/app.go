// Package listapp serves each user's list of saved trackers and the edit form.
package listapp

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/challengetracker/go/internal/color"
	"github.com/mcdev12/challengetracker/go/internal/commands"
	"github.com/mcdev12/challengetracker/go/internal/flags"
	"github.com/mcdev12/challengetracker/go/internal/models"
	"github.com/mcdev12/challengetracker/go/internal/notify"
	"github.com/mcdev12/challengetracker/go/internal/settings"
)

var (
	// ErrInvalidForm wraps edit form validation failures
	ErrInvalidForm = errors.New("invalid tracker form")
	// ErrNoSession is returned when a tracker is opened for a user who is not connected
	ErrNoSession = errors.New("user has no open session")
)

var formValidate *validator.Validate

func init() {
	formValidate = validator.New()
	_ = formValidate.RegisterValidation("tracker_color", func(fl validator.FieldLevel) bool {
		return color.Valid(fl.Field().String())
	})
	_ = formValidate.RegisterValidation("frame_width", func(fl validator.FieldLevel) bool {
		return models.FrameWidth(fl.Field().String()).Valid()
	})
}

// Sessions finds the command service of a connected user
type Sessions interface {
	Commands(userID string) (*commands.Service, bool)
}

// App handles list and edit form business logic
type App struct {
	flags    *flags.App
	settings *settings.Store
	sessions Sessions
	reporter notify.Reporter
}

// NewApp creates a new list App. sessions may be nil when nothing is connected.
func NewApp(flagsApp *flags.App, store *settings.Store, sessions Sessions, reporter notify.Reporter) *App {
	if reporter == nil {
		reporter = notify.LogReporter{}
	}
	return &App{
		flags:    flagsApp,
		settings: store,
		sessions: sessions,
		reporter: reporter,
	}
}

func (a *App) session(userID string) (*commands.Service, bool) {
	if a.sessions == nil {
		return nil, false
	}
	return a.sessions.Commands(userID)
}

// authorize resolves the list owner. Only GMs work on someone else's list.
func (a *App) authorize(viewer models.Actor, ownerID, action string) (string, error) {
	if ownerID == "" {
		ownerID = viewer.UserID
	}
	if !viewer.CanEdit(ownerID) {
		return "", notify.Error(a.reporter, &models.NotAllowedError{Action: action, Role: viewer.Role})
	}
	return ownerID, nil
}

// View returns the owner's list in list order
func (a *App) View(ctx context.Context, viewer models.Actor, ownerID string) (*View, error) {
	ownerID, err := a.authorize(viewer, ownerID, "openList")
	if err != nil {
		return nil, err
	}
	entries, err := a.flags.List(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trackers: %w", err)
	}
	return &View{
		OwnerID:  ownerID,
		Editable: true,
		Entries:  entries,
	}, nil
}

// Create returns a blank form for a new tracker. Nothing is stored until it is submitted.
func (a *App) Create(ctx context.Context, viewer models.Actor, ownerID string) (EditForm, error) {
	if _, err := a.authorize(viewer, ownerID, "create"); err != nil {
		return EditForm{}, err
	}
	form := DefaultForm()
	form.ID = models.NewTrackerID()
	return form, nil
}

// Form returns the edit form of a stored tracker
func (a *App) Form(ctx context.Context, viewer models.Actor, ownerID, id string) (EditForm, error) {
	ownerID, err := a.authorize(viewer, ownerID, "edit")
	if err != nil {
		return EditForm{}, err
	}
	flag, err := a.flags.Get(ctx, ownerID, id)
	if err != nil {
		return EditForm{}, notify.Error(a.reporter, err)
	}
	return FormFrom(*flag), nil
}

// Edit stores a submitted form. An existing flag is merged, otherwise a new
// persisted flag is appended to the owner's list. An open tracker is redrawn.
func (a *App) Edit(ctx context.Context, viewer models.Actor, ownerID string, form EditForm) (*models.TrackerOptions, error) {
	ownerID, err := a.authorize(viewer, ownerID, "edit")
	if err != nil {
		return nil, err
	}
	if err := formValidate.Struct(form); err != nil {
		return nil, notify.Error(a.reporter, fmt.Errorf("%w: %w", ErrInvalidForm, err))
	}
	if form.Show && !viewer.IsGM() && !a.settings.Get().CanShow(viewer) {
		form.Show = false
	}

	opts := form.Options()
	if opts.ID == "" {
		opts.ID = models.NewTrackerID()
	}

	_, err = a.flags.Get(ctx, ownerID, opts.ID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		next, err := a.flags.NextListPosition(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		opts.Persist = models.Bool(true)
		opts.ListPosition = models.Int(next)
	case err != nil:
		return nil, err
	}

	if err := a.flags.Set(ctx, ownerID, opts); err != nil {
		return nil, notify.Error(a.reporter, err)
	}
	a.redraw(ctx, viewer, ownerID, opts)

	log.Info().
		Str("user_id", viewer.UserID).
		Str("owner_id", ownerID).
		Str("tracker_id", opts.ID).
		Msg("tracker form saved")
	return a.flags.Get(ctx, ownerID, opts.ID)
}

// redraw updates an open copy of the tracker, preferring the viewer's own session
func (a *App) redraw(ctx context.Context, viewer models.Actor, ownerID string, opts models.TrackerOptions) {
	for _, userID := range []string{viewer.UserID, ownerID} {
		svc, ok := a.session(userID)
		if !ok || !svc.IsOpen(opts.ID) {
			continue
		}
		if err := svc.Draw(ctx, opts); err != nil {
			log.Warn().Err(err).Str("tracker_id", opts.ID).Msg("failed to redraw edited tracker")
		}
		return
	}
}

// Copy duplicates a tracker at the end of the owner's list
func (a *App) Copy(ctx context.Context, viewer models.Actor, ownerID, id string) (*models.TrackerOptions, error) {
	ownerID, err := a.authorize(viewer, ownerID, "copy")
	if err != nil {
		return nil, err
	}
	return a.flags.Copy(ctx, ownerID, id)
}

// Delete removes a tracker from the list. An open copy stops persisting.
func (a *App) Delete(ctx context.Context, viewer models.Actor, ownerID, id string) error {
	ownerID, err := a.authorize(viewer, ownerID, "delete")
	if err != nil {
		return err
	}
	if svc, ok := a.session(viewer.UserID); ok {
		return svc.DeleteByID(ctx, id)
	}
	_, err = a.flags.Unset(ctx, ownerID, id)
	return err
}

func (a *App) MoveUp(ctx context.Context, viewer models.Actor, ownerID, id string) error {
	return a.move(ctx, viewer, ownerID, id, flags.DirectionUp)
}

func (a *App) MoveDown(ctx context.Context, viewer models.Actor, ownerID, id string) error {
	return a.move(ctx, viewer, ownerID, id, flags.DirectionDown)
}

func (a *App) move(ctx context.Context, viewer models.Actor, ownerID, id string, dir flags.Direction) error {
	ownerID, err := a.authorize(viewer, ownerID, "move")
	if err != nil {
		return err
	}
	return a.flags.Move(ctx, ownerID, id, dir)
}

// OpenTracker opens a stored tracker in the viewer's session
func (a *App) OpenTracker(ctx context.Context, viewer models.Actor, ownerID, id string) (string, error) {
	ownerID, err := a.authorize(viewer, ownerID, "open")
	if err != nil {
		return "", err
	}
	svc, ok := a.session(viewer.UserID)
	if !ok {
		return "", notify.Error(a.reporter, fmt.Errorf("%w: %s", ErrNoSession, viewer.UserID))
	}
	return svc.Open(ctx, commands.WithOptions(models.TrackerOptions{ID: id, OwnerID: ownerID}))
}
