package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/challengetracker/go/internal/config"
	"github.com/mcdev12/challengetracker/go/internal/flags"
	"github.com/mcdev12/challengetracker/go/internal/flags/badgerstore"
	"github.com/mcdev12/challengetracker/go/internal/flags/pgstore"
	"github.com/mcdev12/challengetracker/go/internal/notify"
)

// flagStore is an open flag backend. pg is set for the postgres driver.
type flagStore struct {
	repo  flags.Repository
	pg    *pgstore.Store
	close func() error
}

func openFlagStore(ctx context.Context, cfg *config.Config) (*flagStore, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		store, err := pgstore.Open(ctx, cfg.Database.DSN(), cfg.Database.NotifyChannel)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		log.Info().
			Str("host", cfg.Database.Host).
			Int("port", cfg.Database.Port).
			Str("database", cfg.Database.Database).
			Msg("using postgres flag store")
		return &flagStore{repo: store, pg: store, close: store.Close}, nil

	case config.StoreBadger:
		store, err := badgerstore.Open(badgerstore.DefaultConfig(cfg.BadgerPath))
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.BadgerPath).Msg("using badger flag store")
		return &flagStore{repo: store, close: store.Close}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// openFlags opens the configured store behind a flags App for one-shot commands
func openFlags(ctx context.Context, cfg *config.Config) (*flags.App, func() error, error) {
	store, err := openFlagStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return flags.NewApp(store.repo, notify.LogReporter{}), store.close, nil
}
