package gateway

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/challengetracker/go/internal/protocol"
)

// Relay forwards every protocol message of a world to the relay connections.
// Relay clients run their own peer in the browser and rely on this echo
// instead of executing their own messages locally.
type Relay struct {
	connectionManager *ConnectionManager
	world             string
	bus               WorldBus
	unsubscribe       func()
}

// NewRelay joins the world's bus with a dedicated endpoint
func NewRelay(cm *ConnectionManager, world string, buses BusFactory) (*Relay, error) {
	bus, err := buses(world)
	if err != nil {
		return nil, fmt.Errorf("join relay bus: %w", err)
	}
	return &Relay{connectionManager: cm, world: world, bus: bus}, nil
}

// Start subscribes to the world's bus
func (r *Relay) Start(ctx context.Context) error {
	unsub, err := r.bus.Subscribe(r.processMessage)
	if err != nil {
		return fmt.Errorf("start relay: %w", err)
	}
	r.unsubscribe = unsub
	log.Info().Str("world", r.world).Msg("starting protocol relay")
	return nil
}

func (r *Relay) processMessage(ctx context.Context, m protocol.Message) {
	data, err := protocol.Encode(m)
	if err != nil {
		log.Error().Err(err).Str("message_id", m.ID).Msg("failed to encode relayed message")
		return
	}
	r.connectionManager.RelayToWorld(r.world, Envelope{Type: EnvelopeProtocol, Data: data})

	log.Debug().
		Str("message_id", m.ID).
		Str("kind", string(m.Kind)).
		Str("sender", m.Sender).
		Msg("message relayed to websocket clients")
}

// Stop leaves the bus
func (r *Relay) Stop() {
	log.Info().Str("world", r.world).Msg("stopping protocol relay")
	if r.unsubscribe != nil {
		r.unsubscribe()
		r.unsubscribe = nil
	}
	r.bus.Close()
}
