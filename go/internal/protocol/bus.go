package protocol

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Handler runs a delivered message
type Handler func(ctx context.Context, m Message)

// Bus is one peer's endpoint on the broadcast facility of a world.
// Delivery is fire-and-forget and ordered per sender only.
type Bus interface {
	// ExecuteForEveryone delivers m to every subscribed endpoint, this one included
	ExecuteForEveryone(ctx context.Context, m Message) error
	// ExecuteForOthers delivers m to every subscribed endpoint except this one
	ExecuteForOthers(ctx context.Context, m Message) error
	// Subscribe registers h and returns a function that removes it
	Subscribe(h Handler) (func(), error)
}

// accepts reports whether the endpoint origin should run m
func accepts(origin, world string, m Message) bool {
	if world != "" && m.World != "" && m.World != world {
		return false
	}
	return m.Audience != AudienceOthers || m.Origin != origin
}

// dispatch runs h and keeps a failing handler from taking the delivery loop down
func dispatch(ctx context.Context, h Handler, m Message) {
	defer func() {
		if p := recover(); p != nil {
			log.Error().
				Interface("panic", p).
				Str("message_id", m.ID).
				Str("kind", string(m.Kind)).
				Msg("protocol handler panicked")
		}
	}()
	h(ctx, m)
}
