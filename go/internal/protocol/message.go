// Package protocol replicates trackers between peers with three messages:
// open, draw and close. Every peer runs the handler for a message locally;
// only the initiating peer publishes it.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/challengetracker/go/internal/models"
)

// Kind is the type of a protocol message
type Kind string

const (
	KindOpen  Kind = "open"
	KindDraw  Kind = "draw"
	KindClose Kind = "close"
)

// Audience selects which peers run a published message
type Audience string

const (
	AudienceEveryone Audience = "everyone"
	AudienceOthers   Audience = "others"
)

// Message is the envelope published on the bus. Sender is the user id of the
// publishing peer, Origin the bus endpoint it was published from.
type Message struct {
	ID       string          `json:"id" validate:"required,uuid"`
	Kind     Kind            `json:"kind" validate:"required,oneof=open draw close"`
	World    string          `json:"world"`
	Sender   string          `json:"sender" validate:"required"`
	Origin   string          `json:"origin"`
	Audience Audience        `json:"audience" validate:"omitempty,oneof=everyone others"`
	SentAt   time.Time       `json:"sent_at"`
	Payload  json.RawMessage `json:"payload" validate:"required"`
}

// OpenPayload opens or updates a tracker
type OpenPayload struct {
	Options    models.TrackerOptions `json:"options"`
	Window     models.WindowMeta     `json:"window"`
	OwnerID    string                `json:"owner_id"`
	ExecutorID string                `json:"executor_id"`
}

// DrawPayload redraws an open tracker with new options
type DrawPayload struct {
	Options models.TrackerOptions `json:"options"`
	Window  models.WindowMeta     `json:"window"`
}

// ClosePayload closes a tracker, or hides it for its owner
type ClosePayload struct {
	Window     models.WindowMeta `json:"window"`
	ExecutorID string            `json:"executor_id"`
}

var messageValidate = validator.New()

// NewMessage builds an unpublished message carrying payload
func NewMessage(clock clockwork.Clock, kind Kind, sender string, payload any) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("failed to encode %s payload: %w", kind, err)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return Message{
		ID:      uuid.NewString(),
		Kind:    kind,
		Sender:  sender,
		SentAt:  clock.Now().UTC(),
		Payload: data,
	}, nil
}

// Encode serializes m for the wire
func Encode(m Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return data, nil
}

// Decode parses and validates a wire message
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("failed to decode message: %w", err)
	}
	if err := messageValidate.Struct(m); err != nil {
		return Message{}, fmt.Errorf("invalid message: %w", err)
	}
	return m, nil
}

// ParsePayload parses the message payload into the struct for its kind
func ParsePayload(m Message) (any, error) {
	switch m.Kind {
	case KindOpen:
		var payload OpenPayload
		if err := json.Unmarshal(m.Payload, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case KindDraw:
		var payload DrawPayload
		if err := json.Unmarshal(m.Payload, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case KindClose:
		var payload ClosePayload
		if err := json.Unmarshal(m.Payload, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, fmt.Errorf("unknown message kind %q", m.Kind)
	}
}
