package settings

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// ChangeFunc is called after settings change with the previous and current values
type ChangeFunc func(old, cur Settings)

// Store is the settings key-value facility shared by one client session
type Store struct {
	mu      sync.RWMutex
	current Settings
	nextID  int
	subs    map[int]ChangeFunc
}

// NewStore creates a store holding s
func NewStore(s Settings) *Store {
	return &Store{current: s, subs: make(map[int]ChangeFunc)}
}

// Get returns the current settings
func (st *Store) Get() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.current
}

// Update applies fn to a copy of the settings, validates and commits it,
// then notifies subscribers. Invalid updates leave the store unchanged.
func (st *Store) Update(fn func(s *Settings)) error {
	st.mu.Lock()
	old := st.current
	next := old
	fn(&next)
	if err := next.Validate(); err != nil {
		st.mu.Unlock()
		return err
	}
	st.current = next
	subs := make([]ChangeFunc, 0, len(st.subs))
	for _, fn := range st.subs {
		subs = append(subs, fn)
	}
	st.mu.Unlock()

	log.Debug().Int("subscribers", len(subs)).Msg("settings updated")
	for _, sub := range subs {
		sub(old, next)
	}
	return nil
}

// Subscribe registers fn for change notifications and returns a function that removes it
func (st *Store) Subscribe(fn ChangeFunc) func() {
	st.mu.Lock()
	defer st.mu.Unlock()
	id := st.nextID
	st.nextID++
	st.subs[id] = fn
	return func() {
		st.mu.Lock()
		defer st.mu.Unlock()
		delete(st.subs, id)
	}
}
