package protocol

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATSConfig holds configuration for the NATS connection
type NATSConfig struct {
	URL           string
	Name          string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns default NATS configuration
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Name:          "challenge-tracker",
		SubjectPrefix: "challenge-tracker",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// Subject returns the subject carrying every message of world
func Subject(prefix, world string) string {
	return prefix + "." + world
}

// ConnectNATS opens a core NATS connection
func ConnectNATS(cfg NATSConfig) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

// NATSBus is a bus endpoint on a world subject. There is no stream behind
// it: a peer that is not subscribed when a message is published never sees it.
type NATSBus struct {
	nc      *nats.Conn
	world   string
	subject string
	origin  string

	mu   sync.Mutex
	subs []*nats.Subscription
}

var _ Bus = (*NATSBus)(nil)

// NewNATSBus creates an endpoint for world on an open connection. The
// connection stays owned by the caller.
func NewNATSBus(nc *nats.Conn, prefix, world string) *NATSBus {
	return &NATSBus{
		nc:      nc,
		world:   world,
		subject: Subject(prefix, world),
		origin:  uuid.NewString(),
	}
}

func (b *NATSBus) ExecuteForEveryone(ctx context.Context, m Message) error {
	return b.publish(ctx, m, AudienceEveryone)
}

func (b *NATSBus) ExecuteForOthers(ctx context.Context, m Message) error {
	return b.publish(ctx, m, AudienceOthers)
}

func (b *NATSBus) publish(ctx context.Context, m Message, audience Audience) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.World = b.world
	m.Origin = b.origin
	m.Audience = audience

	data, err := Encode(m)
	if err != nil {
		return err
	}
	if err := b.nc.Publish(b.subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", b.subject, err)
	}
	log.Debug().
		Str("subject", b.subject).
		Str("kind", string(m.Kind)).
		Str("audience", string(audience)).
		Msg("published tracker message")
	return nil
}

func (b *NATSBus) Subscribe(h Handler) (func(), error) {
	sub, err := b.nc.Subscribe(b.subject, func(msg *nats.Msg) {
		m, err := Decode(msg.Data)
		if err != nil {
			log.Warn().Err(err).Str("subject", msg.Subject).Msg("dropping undecodable message")
			return
		}
		if !accepts(b.origin, b.world, m) {
			return
		}
		dispatch(context.Background(), h, m)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", b.subject, err)
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	return func() {
		if err := sub.Unsubscribe(); err != nil {
			log.Warn().Err(err).Str("subject", b.subject).Msg("failed to unsubscribe")
		}
	}, nil
}

// Close removes every subscription of this endpoint
func (b *NATSBus) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()
	for _, sub := range subs {
		_ = sub.Unsubscribe()
	}
}
