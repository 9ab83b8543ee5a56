package main

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/challengetracker/go/internal/config"
	"github.com/mcdev12/challengetracker/go/internal/flags"
	"github.com/mcdev12/challengetracker/go/internal/flags/pgstore"
	"github.com/mcdev12/challengetracker/go/internal/gateway"
	"github.com/mcdev12/challengetracker/go/internal/hooks"
	"github.com/mcdev12/challengetracker/go/internal/listapp"
	"github.com/mcdev12/challengetracker/go/internal/models"
	"github.com/mcdev12/challengetracker/go/internal/notify"
	"github.com/mcdev12/challengetracker/go/internal/protocol"
	"github.com/mcdev12/challengetracker/go/internal/settings"
	"github.com/mcdev12/challengetracker/go/internal/tracker"
	"github.com/mcdev12/challengetracker/go/internal/users"
)

type Services struct {
	Flags    *flags.App
	Settings *settings.Store
	Hooks    *hooks.Table
	Users    *users.Service
	List     *listapp.Handler
	Gateway  *gateway.Service

	store      *flagStore
	nats       *nats.Conn
	pgListener *pgstore.ChangeListener
}

func setupServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	// Wire up dependency injection chain
	// Store → flags App → gateway sessions → list App → handlers
	settingsStore, err := loadSettings(cfg.SettingsFile)
	if err != nil {
		return nil, err
	}
	if settingsStore.Get().Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	usersApp, err := loadUsers(cfg.UsersFile)
	if err != nil {
		return nil, err
	}

	store, err := openFlagStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := &Services{Settings: settingsStore, store: store}

	s.Flags = flags.NewApp(store.repo, notify.LogReporter{})
	if err := claimFlags(ctx, s.Flags); err != nil {
		s.Close()
		return nil, err
	}

	s.Hooks = hooks.NewTable()
	if err := registerHooks(s.Hooks); err != nil {
		s.Close()
		return nil, err
	}

	buses, err := s.busFactory(cfg)
	if err != nil {
		s.Close()
		return nil, err
	}

	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.World = cfg.World
	s.Gateway, err = gateway.NewService(gatewayConfig, gateway.Deps{
		Buses:     buses,
		Flags:     s.Flags,
		Settings:  settingsStore,
		Hooks:     s.Hooks,
		Images:    tracker.NewImageLoader(tracker.DefaultImageLoaderConfig()),
		Directory: usersApp,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}

	// Other processes sharing the database announce their changes over NOTIFY
	if store.pg != nil {
		listenerConfig := pgstore.DefaultListenerConfig()
		listenerConfig.DatabaseURL = cfg.Database.DSN()
		listenerConfig.NotifyChannel = cfg.Database.NotifyChannel
		s.pgListener, err = pgstore.NewChangeListener(store.pg, s.Gateway, listenerConfig)
		if err != nil {
			s.Close()
			return nil, err
		}
	}

	listApp := listapp.NewApp(s.Flags, settingsStore, s.Gateway.Sessions(), notify.LogReporter{})
	s.List = listapp.NewHandler(listApp, usersApp)
	s.Users = users.NewService(usersApp)
	return s, nil
}

func (s *Services) busFactory(cfg *config.Config) (gateway.BusFactory, error) {
	if cfg.BusDriver == config.BusLocal {
		log.Warn().Msg("using in-process bus, trackers are only shared within this process")
		return gateway.LocalBuses(), nil
	}
	nc, err := protocol.ConnectNATS(cfg.NATS)
	if err != nil {
		return nil, err
	}
	s.nats = nc
	log.Info().Str("url", nc.ConnectedUrl()).Str("world", cfg.World).Msg("connected to NATS")
	return func(world string) (gateway.WorldBus, error) {
		return protocol.NewNATSBus(nc, cfg.NATS.SubjectPrefix, world), nil
	}, nil
}

// claimFlags stamps ownership and renumbers every owner's list on start-up
func claimFlags(ctx context.Context, app *flags.App) error {
	owners, err := app.Owners(ctx)
	if err != nil {
		return err
	}
	for _, owner := range owners {
		if err := app.ClaimOwnership(ctx, owner); err != nil {
			return err
		}
		if err := app.Renumber(ctx, owner); err != nil {
			return err
		}
	}
	log.Info().Int("owners", len(owners)).Msg("flag lists claimed")
	return nil
}

// registerHooks installs the handlers saved options may name
func registerHooks(table *hooks.Table) error {
	return table.Register("log", func(ctx context.Context, opts models.TrackerOptions) error {
		log.Info().Str("tracker_id", opts.ID).Str("owner_id", opts.OwnerID).Msg("tracker hook")
		return nil
	})
}

// Close releases the store, the NATS connection and the change listener
func (s *Services) Close() {
	if s.pgListener != nil {
		if err := s.pgListener.Stop(); err != nil {
			log.Error().Err(err).Msg("failed to stop flag listener")
		}
	}
	if s.nats != nil {
		s.nats.Close()
	}
	if s.store != nil {
		if err := s.store.close(); err != nil {
			log.Error().Err(err).Msg("failed to close flag store")
		}
	}
}
