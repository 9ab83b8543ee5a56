package protocol

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// LocalHub fans messages out between endpoints in one process. Messages are
// encoded once and decoded per receiver so no state is shared between peers.
// Delivery runs on the publishing goroutine, which keeps per-sender order.
type LocalHub struct {
	world string

	mu        sync.RWMutex
	endpoints map[string]*LocalBus
}

func NewLocalHub(world string) *LocalHub {
	return &LocalHub{world: world, endpoints: make(map[string]*LocalBus)}
}

// Join creates a new endpoint on the hub
func (h *LocalHub) Join() *LocalBus {
	b := &LocalBus{hub: h, origin: uuid.NewString(), handlers: make(map[int]Handler)}
	h.mu.Lock()
	h.endpoints[b.origin] = b
	h.mu.Unlock()
	return b
}

func (h *LocalHub) leave(origin string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.endpoints, origin)
}

func (h *LocalHub) publish(ctx context.Context, m Message) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}

	h.mu.RLock()
	targets := make([]*LocalBus, 0, len(h.endpoints))
	for _, b := range h.endpoints {
		targets = append(targets, b)
	}
	h.mu.RUnlock()

	for _, b := range targets {
		if !accepts(b.origin, h.world, m) {
			continue
		}
		received, err := Decode(data)
		if err != nil {
			log.Warn().Err(err).Str("message_id", m.ID).Msg("dropping undecodable message")
			continue
		}
		b.deliver(ctx, received)
	}
	return nil
}

// LocalBus is one endpoint of a LocalHub
type LocalBus struct {
	hub    *LocalHub
	origin string

	mu       sync.Mutex
	nextID   int
	handlers map[int]Handler
}

var _ Bus = (*LocalBus)(nil)

func (b *LocalBus) ExecuteForEveryone(ctx context.Context, m Message) error {
	return b.hub.publish(ctx, b.stamp(m, AudienceEveryone))
}

func (b *LocalBus) ExecuteForOthers(ctx context.Context, m Message) error {
	return b.hub.publish(ctx, b.stamp(m, AudienceOthers))
}

func (b *LocalBus) stamp(m Message, audience Audience) Message {
	m.World = b.hub.world
	m.Origin = b.origin
	m.Audience = audience
	return m
}

func (b *LocalBus) Subscribe(h Handler) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = h
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
	}, nil
}

func (b *LocalBus) deliver(ctx context.Context, m Message) {
	b.mu.Lock()
	hs := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		hs = append(hs, h)
	}
	b.mu.Unlock()
	for _, h := range hs {
		dispatch(ctx, h, m)
	}
}

// Leave detaches the endpoint from its hub
func (b *LocalBus) Leave() {
	b.hub.leave(b.origin)
}

// Close leaves the hub
func (b *LocalBus) Close() {
	b.Leave()
}
