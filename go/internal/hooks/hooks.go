// Package hooks replaces persisted open/close callback source with named
// handlers registered ahead of time. Options store only the handler name.
package hooks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/challengetracker/go/internal/models"
)

// Func runs when a tracker opens or closes
type Func func(ctx context.Context, opts models.TrackerOptions) error

// Table maps handler names to functions
type Table struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

func NewTable() *Table {
	return &Table{funcs: make(map[string]Func)}
}

// Register adds fn under name, replacing any previous handler
func (t *Table) Register(name string, fn Func) error {
	if name == "" {
		return fmt.Errorf("hook name is required")
	}
	if fn == nil {
		return fmt.Errorf("hook %q has no function", name)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.funcs[name] = fn
	return nil
}

func (t *Table) Unregister(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.funcs, name)
}

// Names lists the registered handlers
func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.funcs))
	for n := range t.funcs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Run invokes the handler named by name, if any. Unknown names and handler
// failures are logged and never stop the open or close that triggered them.
func (t *Table) Run(ctx context.Context, name *string, opts models.TrackerOptions) {
	if t == nil || name == nil || *name == "" {
		return
	}
	t.mu.RLock()
	fn, ok := t.funcs[*name]
	t.mu.RUnlock()
	if !ok {
		log.Warn().Str("hook", *name).Str("tracker_id", opts.ID).Msg("unknown tracker hook")
		return
	}

	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Str("hook", *name).Str("tracker_id", opts.ID).Msg("tracker hook panicked")
		}
	}()
	if err := fn(ctx, opts.Clone()); err != nil {
		log.Error().Err(err).Str("hook", *name).Str("tracker_id", opts.ID).Msg("tracker hook failed")
	}
}
