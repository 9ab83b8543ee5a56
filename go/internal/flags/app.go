package flags

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/challengetracker/go/internal/models"
	"github.com/mcdev12/challengetracker/go/internal/notify"
	"github.com/mcdev12/challengetracker/go/internal/options"
)

// App handles flag business logic
type App struct {
	repo     Repository
	reporter notify.Reporter
	newID    func() string

	// serializes multi-record reorderings issued by this process
	mu sync.Mutex

	lmu       sync.RWMutex
	listeners []Listener
}

// NewApp creates a new flags App
func NewApp(repo Repository, reporter notify.Reporter) *App {
	return &App{
		repo:     repo,
		reporter: reporter,
		newID:    models.NewTrackerID,
	}
}

// AddListener registers l for change notifications
func (a *App) AddListener(l Listener) {
	a.lmu.Lock()
	defer a.lmu.Unlock()
	a.listeners = append(a.listeners, l)
}

func (a *App) changed(ctx context.Context, ownerID string) {
	a.lmu.RLock()
	ls := append([]Listener(nil), a.listeners...)
	a.lmu.RUnlock()
	for _, l := range ls {
		l.FlagsChanged(ctx, ownerID)
	}
}

// Get returns the flag with id for ownerID
func (a *App) Get(ctx context.Context, ownerID, id string) (*models.TrackerOptions, error) {
	flag, err := a.repo.GetFlag(ctx, ownerID, id)
	if errors.Is(err, ErrFlagNotFound) {
		return nil, &models.NotFoundError{Field: "id", Value: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get flag: %w", err)
	}
	return flag, nil
}

// Set shallow-merges opts into the stored flag with the same id, creating it if absent
func (a *App) Set(ctx context.Context, ownerID string, opts models.TrackerOptions) error {
	a.mu.Lock()
	err := a.set(ctx, ownerID, opts)
	a.mu.Unlock()
	if err != nil {
		return err
	}
	a.changed(ctx, ownerID)
	return nil
}

func (a *App) set(ctx context.Context, ownerID string, opts models.TrackerOptions) error {
	if opts.ID == "" {
		return &models.MissingParameterError{Parameter: "id", Function: "flags.Set"}
	}
	existing, err := a.repo.GetFlag(ctx, ownerID, opts.ID)
	if err != nil && !errors.Is(err, ErrFlagNotFound) {
		return fmt.Errorf("failed to get flag: %w", err)
	}

	merged := opts.Clone()
	options.Normalize(&merged)
	if existing != nil {
		merged = options.Merge(opts, *existing)
	}
	if merged.OwnerID == "" {
		merged.OwnerID = ownerID
	}

	if err := a.repo.SaveFlags(ctx, ownerID, merged); err != nil {
		return fmt.Errorf("failed to save flag: %w", err)
	}
	log.Debug().Str("owner_id", ownerID).Str("tracker_id", opts.ID).Msg("flag saved")
	return nil
}

// Unset removes a flag and renumbers the remaining list positions 1..N.
// A missing flag is reported and returned as NotFoundError.
func (a *App) Unset(ctx context.Context, ownerID, id string) (*models.TrackerOptions, error) {
	a.mu.Lock()
	deleted, err := a.unset(ctx, ownerID, id)
	a.mu.Unlock()
	if err != nil {
		return nil, notify.Error(a.reporter, err)
	}
	a.changed(ctx, ownerID)
	notify.Info(a.reporter, fmt.Sprintf("Challenge Tracker '%s' deleted.", id))
	return deleted, nil
}

func (a *App) unset(ctx context.Context, ownerID, id string) (*models.TrackerOptions, error) {
	all, err := a.repo.ListFlags(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list flags: %w", err)
	}

	var deleted *models.TrackerOptions
	remaining := make([]models.TrackerOptions, 0, len(all))
	for i := range all {
		if all[i].ID == id {
			f := all[i]
			deleted = &f
			continue
		}
		remaining = append(remaining, all[i])
	}
	if deleted == nil {
		return nil, &models.NotFoundError{Field: "id", Value: id}
	}

	sortByPosition(remaining)
	for i := range remaining {
		remaining[i].ListPosition = models.Int(i + 1)
	}
	if err := a.repo.ReplaceFlags(ctx, ownerID, id, remaining...); err != nil {
		return nil, fmt.Errorf("failed to delete flag: %w", err)
	}
	log.Info().Str("owner_id", ownerID).Str("tracker_id", id).Int("remaining", len(remaining)).Msg("flag deleted")
	return deleted, nil
}

// List returns the owner's flags in ascending list position, position 1 first
// with move-up disabled. This is the order the list app shows, not a
// descending sort.
func (a *App) List(ctx context.Context, ownerID string) ([]Entry, error) {
	all, err := a.repo.ListFlags(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list flags: %w", err)
	}
	sortByPosition(all)

	n := len(all)
	entries := make([]Entry, 0, n)
	for _, f := range all {
		pos := models.Value(f.ListPosition, n)
		entries = append(entries, Entry{
			TrackerOptions: f,
			CanMoveUp:      pos != 1,
			CanMoveDown:    pos < n,
		})
	}
	return entries, nil
}

// Copy duplicates a flag under a new id with a "Copy of" title, appended to the end of the list
func (a *App) Copy(ctx context.Context, ownerID, id string) (*models.TrackerOptions, error) {
	a.mu.Lock()
	cp, err := a.copy(ctx, ownerID, id)
	a.mu.Unlock()
	if err != nil {
		return nil, notify.Error(a.reporter, err)
	}
	a.changed(ctx, ownerID)
	return cp, nil
}

func (a *App) copy(ctx context.Context, ownerID, id string) (*models.TrackerOptions, error) {
	orig, err := a.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	all, err := a.repo.ListFlags(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list flags: %w", err)
	}

	cp := orig.Clone()
	cp.ID = a.newID()
	cp.Title = models.String("Copy of " + orig.TitleOrDefault())
	cp.ListPosition = models.Int(len(all) + 1)
	if err := a.repo.SaveFlags(ctx, ownerID, cp); err != nil {
		return nil, fmt.Errorf("failed to save copy: %w", err)
	}
	return &cp, nil
}

// Move swaps the flag with its neighbour in the given direction. Moving past
// either end of the list is a no-op. Both positions are written in one batch.
func (a *App) Move(ctx context.Context, ownerID, id string, dir Direction) error {
	a.mu.Lock()
	moved, err := a.move(ctx, ownerID, id, dir)
	a.mu.Unlock()
	if err != nil {
		return notify.Error(a.reporter, err)
	}
	if moved {
		a.changed(ctx, ownerID)
	}
	return nil
}

func (a *App) move(ctx context.Context, ownerID, id string, dir Direction) (bool, error) {
	all, err := a.repo.ListFlags(ctx, ownerID)
	if err != nil {
		return false, fmt.Errorf("failed to list flags: %w", err)
	}

	var target *models.TrackerOptions
	for i := range all {
		if all[i].ID == id {
			target = &all[i]
			break
		}
	}
	if target == nil {
		return false, &models.NotFoundError{Field: "id", Value: id}
	}

	orig := models.Value(target.ListPosition, len(all))
	var next int
	switch dir {
	case DirectionUp:
		if orig <= 1 {
			return false, nil
		}
		next = orig - 1
	case DirectionDown:
		if orig >= len(all) {
			return false, nil
		}
		next = orig + 1
	default:
		return false, fmt.Errorf("invalid direction %q", dir)
	}

	target.ListPosition = models.Int(next)
	batch := []models.TrackerOptions{*target}
	for i := range all {
		if all[i].ID != id && models.Value(all[i].ListPosition, 0) == next {
			all[i].ListPosition = models.Int(orig)
			batch = append(batch, all[i])
			break
		}
	}
	if err := a.repo.SaveFlags(ctx, ownerID, batch...); err != nil {
		return false, fmt.Errorf("failed to move flag: %w", err)
	}
	return true, nil
}

// Renumber rewrites list positions as 1..N keeping the current relative order
func (a *App) Renumber(ctx context.Context, ownerID string) error {
	a.mu.Lock()
	changed, err := a.renumber(ctx, ownerID)
	a.mu.Unlock()
	if err != nil {
		return err
	}
	if changed {
		a.changed(ctx, ownerID)
	}
	return nil
}

func (a *App) renumber(ctx context.Context, ownerID string) (bool, error) {
	all, err := a.repo.ListFlags(ctx, ownerID)
	if err != nil {
		return false, fmt.Errorf("failed to list flags: %w", err)
	}
	sortByPosition(all)

	var batch []models.TrackerOptions
	for i := range all {
		if models.Value(all[i].ListPosition, 0) != i+1 {
			all[i].ListPosition = models.Int(i + 1)
			batch = append(batch, all[i])
		}
	}
	if len(batch) == 0 {
		return false, nil
	}
	if err := a.repo.SaveFlags(ctx, ownerID, batch...); err != nil {
		return false, fmt.Errorf("failed to renumber flags: %w", err)
	}
	return true, nil
}

// ClaimOwnership stamps ownerID on every flag stored under that owner
func (a *App) ClaimOwnership(ctx context.Context, ownerID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	all, err := a.repo.ListFlags(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to list flags: %w", err)
	}
	var batch []models.TrackerOptions
	for _, f := range all {
		if f.OwnerID != ownerID {
			f.OwnerID = ownerID
			batch = append(batch, f)
		}
	}
	if len(batch) == 0 {
		return nil
	}
	if err := a.repo.SaveFlags(ctx, ownerID, batch...); err != nil {
		return fmt.Errorf("failed to claim flags: %w", err)
	}
	return nil
}

// SetPosition stores the window position of a tracker
func (a *App) SetPosition(ctx context.Context, ownerID, id string, pos models.Position) error {
	return a.Set(ctx, ownerID, models.TrackerOptions{ID: id, Position: &pos})
}

// NextListPosition returns the list position a new flag would take
func (a *App) NextListPosition(ctx context.Context, ownerID string) (int, error) {
	all, err := a.repo.ListFlags(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to list flags: %w", err)
	}
	return len(all) + 1, nil
}

// FindOwner searches every owner for a flag with id
func (a *App) FindOwner(ctx context.Context, id string) (string, error) {
	owners, err := a.repo.ListOwners(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list owners: %w", err)
	}
	for _, owner := range owners {
		_, err := a.repo.GetFlag(ctx, owner, id)
		if err == nil {
			return owner, nil
		}
		if !errors.Is(err, ErrFlagNotFound) {
			return "", fmt.Errorf("failed to get flag: %w", err)
		}
	}
	return "", &models.NotFoundError{Field: "id", Value: id}
}

// FindByTitle returns the first flag of ownerID in list order with the given title
func (a *App) FindByTitle(ctx context.Context, ownerID, title string) (*models.TrackerOptions, error) {
	entries, err := a.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Title != nil && *e.Title == title {
			f := e.TrackerOptions
			return &f, nil
		}
	}
	return nil, &models.NotFoundError{Field: "title", Value: title}
}

// Owners returns every owner with at least one flag
func (a *App) Owners(ctx context.Context) ([]string, error) {
	owners, err := a.repo.ListOwners(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}
	return owners, nil
}

func sortByPosition(flags []models.TrackerOptions) {
	sort.SliceStable(flags, func(i, j int) bool {
		pi, pj := flags[i].ListPosition, flags[j].ListPosition
		switch {
		case pi == nil && pj == nil:
			return flags[i].ID < flags[j].ID
		case pi == nil:
			return false
		case pj == nil:
			return true
		case *pi != *pj:
			return *pi < *pj
		default:
			return flags[i].ID < flags[j].ID
		}
	})
}
