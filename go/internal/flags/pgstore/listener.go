package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/challengetracker/go/internal/flags"
)

type ListenerConfig struct {
	DatabaseURL   string // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel string // Channel name to LISTEN on
	PingInterval  time.Duration
	// ResyncInterval fires a refresh for every owner in case notifications were lost
	ResyncInterval time.Duration
}

func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		NotifyChannel:  "tracker_flags_changed",
		PingInterval:   90 * time.Second,
		ResyncInterval: 5 * time.Minute,
	}
}

// ChangeListener turns flag change notifications into flags.Listener calls
type ChangeListener struct {
	listener *pq.Listener
	store    *Store
	target   flags.Listener
	cfg      ListenerConfig
}

func NewChangeListener(store *Store, target flags.Listener, cfg ListenerConfig) (*ChangeListener, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("flag listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().
		Str("channel", cfg.NotifyChannel).
		Msg("listening for flag changes")

	return &ChangeListener{
		listener: l,
		store:    store,
		target:   target,
		cfg:      cfg,
	}, nil
}

// Start blocks until ctx is cancelled
func (c *ChangeListener) Start(ctx context.Context) error {
	pingTicker := time.NewTicker(c.cfg.PingInterval)
	resyncTicker := time.NewTicker(c.cfg.ResyncInterval)
	defer pingTicker.Stop()
	defer resyncTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("flag listener shutting down")
			return c.Stop()
		case note := <-c.listener.Notify:
			if note == nil {
				// connection was re-established; anything may have changed
				c.resync(ctx)
				continue
			}
			c.target.FlagsChanged(ctx, note.Extra)
		case <-resyncTicker.C:
			c.resync(ctx)
		case <-pingTicker.C:
			if err := c.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping flag listener")
			}
		}
	}
}

func (c *ChangeListener) Stop() error {
	return c.listener.Close()
}

func (c *ChangeListener) resync(ctx context.Context) {
	owners, err := c.store.ListOwners(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to resync flag owners")
		return
	}
	for _, owner := range owners {
		c.target.FlagsChanged(ctx, owner)
	}
}
