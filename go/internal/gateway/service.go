package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/challengetracker/go/internal/commands"
	"github.com/mcdev12/challengetracker/go/internal/flags"
	"github.com/mcdev12/challengetracker/go/internal/hooks"
	"github.com/mcdev12/challengetracker/go/internal/models"
	"github.com/mcdev12/challengetracker/go/internal/notify"
	"github.com/mcdev12/challengetracker/go/internal/protocol"
	"github.com/mcdev12/challengetracker/go/internal/settings"
	"github.com/mcdev12/challengetracker/go/internal/tracker"
)

// Service runs one server-side peer per websocket connection of a world
type Service struct {
	config            Config
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	relay             *Relay
	sessions          *Sessions
	buses             BusFactory

	flags    *flags.App
	settings *settings.Store
	hooks    *hooks.Table
	images   *tracker.ImageLoader

	mu  sync.RWMutex
	ctx context.Context
}

// Config holds configuration for the gateway service
type Config struct {
	World            string
	ConnectionConfig ConnectionConfig
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		World:            "default",
		ConnectionConfig: DefaultConnectionConfig(),
	}
}

// Deps are the collaborators shared by every session
type Deps struct {
	Buses     BusFactory
	Flags     *flags.App
	Settings  *settings.Store
	Hooks     *hooks.Table
	Images    *tracker.ImageLoader
	Directory Directory
}

var _ flags.Listener = (*Service)(nil)

// NewService creates a new gateway service
func NewService(config Config, deps Deps) (*Service, error) {
	if deps.Buses == nil {
		return nil, fmt.Errorf("gateway needs a bus factory")
	}
	if deps.Flags == nil || deps.Directory == nil {
		return nil, fmt.Errorf("gateway needs flags and a user directory")
	}
	if deps.Settings == nil {
		deps.Settings = settings.NewStore(settings.Defaults())
	}
	if deps.Hooks == nil {
		deps.Hooks = hooks.NewTable()
	}

	connectionManager := NewConnectionManager(config.ConnectionConfig)

	relay, err := NewRelay(connectionManager, config.World, deps.Buses)
	if err != nil {
		return nil, fmt.Errorf("failed to create relay: %w", err)
	}

	s := &Service{
		config:            config,
		connectionManager: connectionManager,
		relay:             relay,
		sessions:          NewSessions(),
		buses:             deps.Buses,
		flags:             deps.Flags,
		settings:          deps.Settings,
		hooks:             deps.Hooks,
		images:            deps.Images,
		ctx:               context.Background(),
	}
	s.wsHandler = NewWebSocketHandler(connectionManager, config.World, deps.Directory, s.openSession)
	connectionManager.Handle(s.handleEnvelope, s.closeSession)
	deps.Flags.AddListener(s)
	return s, nil
}

// Sessions returns the live session registry
func (s *Service) Sessions() *Sessions {
	return s.sessions
}

// Start begins the gateway service and blocks until ctx is done
func (s *Service) Start(ctx context.Context) error {
	log.Info().Str("world", s.config.World).Msg("starting tracker gateway service")

	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	go s.connectionManager.Start(ctx)

	if err := s.relay.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	log.Info().Msg("tracker gateway service shutting down")
	return s.Stop()
}

// Stop gracefully shuts down the gateway service
func (s *Service) Stop() error {
	s.relay.Stop()
	log.Info().Msg("tracker gateway service stopped")
	return nil
}

// RegisterRoutes registers the WebSocket HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	log.Info().Msg("tracker gateway routes registered")
}

func (s *Service) baseContext() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctx
}

// openSession starts the server-side peer of a new connection
func (s *Service) openSession(conn *Connection, actor models.Actor) error {
	bus, err := s.buses(conn.World)
	if err != nil {
		return fmt.Errorf("join world bus: %w", err)
	}

	host := NewHost(conn)
	peer := protocol.NewPeer(protocol.PeerConfig{
		Actor:    actor,
		Bus:      bus,
		Host:     host,
		Flags:    s.flags,
		Settings: s.settings,
		Hooks:    s.hooks,
		Reporter: connReporter{conn: conn, log: notify.LogReporter{UserID: actor.UserID}},
		Images:   s.images,
	})
	if err := peer.Start(); err != nil {
		bus.Close()
		return err
	}

	sess := &Session{
		conn:     conn,
		actor:    actor,
		host:     host,
		bus:      bus,
		peer:     peer,
		commands: commands.NewService(peer),
	}
	s.sessions.add(sess)

	ready, err := NewEnvelope(EnvelopeSessionReady, "", SessionReadyPayload{
		UserID: actor.UserID,
		Role:   actor.Role.String(),
		World:  conn.World,
	})
	if err != nil {
		return err
	}
	s.connectionManager.SendTo(conn, ready)
	return nil
}

func (s *Service) closeSession(conn *Connection) {
	sess, ok := s.sessions.remove(conn.ID)
	if !ok {
		return
	}
	sess.close()
}

func (s *Service) handleEnvelope(conn *Connection, env Envelope) {
	sess, ok := s.sessions.ByConnection(conn.ID)
	if !ok {
		return
	}
	payload, err := ParseEnvelopePayload(env)
	if err != nil {
		log.Warn().
			Err(err).
			Str("connection_id", conn.ID).
			Str("type", string(env.Type)).
			Msg("dropping invalid client envelope")
		return
	}

	ctx := s.baseContext()
	switch p := payload.(type) {
	case tracker.Event:
		sess.host.Dispatch(env.WindowID, p)

	case CommandPayload:
		result := sess.runCommand(ctx, p)
		reply, err := NewEnvelope(EnvelopeCommandResult, "", result)
		if err != nil {
			log.Error().Err(err).Str("command", p.Name).Msg("failed to encode command result")
			return
		}
		s.connectionManager.SendTo(conn, reply)

	case protocol.Message:
		if !conn.Relay {
			log.Warn().Str("connection_id", conn.ID).Msg("protocol message from a non-relay connection dropped")
			return
		}
		if err := sess.relay(ctx, p); err != nil {
			log.Warn().Err(err).Str("connection_id", conn.ID).Msg("failed to relay protocol message")
		}
	}
}

// FlagsChanged tells the world's clients to reload the owner's list
func (s *Service) FlagsChanged(_ context.Context, ownerID string) {
	env, err := NewEnvelope(EnvelopeListChanged, "", ListChangedPayload{OwnerID: ownerID})
	if err != nil {
		return
	}
	s.connectionManager.BroadcastToWorld(s.config.World, env)
}
