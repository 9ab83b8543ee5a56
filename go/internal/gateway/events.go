package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/mcdev12/challengetracker/go/internal/protocol"
	"github.com/mcdev12/challengetracker/go/internal/tracker"
)

// Envelope is one websocket frame in either direction
type Envelope struct {
	Type     EnvelopeType    `json:"type"`
	WindowID string          `json:"window_id,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// EnvelopeType names the content of an Envelope
type EnvelopeType string

// Sent to the browser
const (
	EnvelopeSessionReady   EnvelopeType = "session.ready"
	EnvelopeWindowOpen     EnvelopeType = "window.open"
	EnvelopeWindowRender   EnvelopeType = "window.render"
	EnvelopeWindowShowHide EnvelopeType = "window.showhide"
	EnvelopeWindowWindowed EnvelopeType = "window.windowed"
	EnvelopeWindowCursor   EnvelopeType = "window.cursor"
	EnvelopeWindowClose    EnvelopeType = "window.close"
	EnvelopeNotify         EnvelopeType = "notify"
	EnvelopeListChanged    EnvelopeType = "list.changed"
	EnvelopeCommandResult  EnvelopeType = "command.result"
)

// Received from the browser. Protocol envelopes travel both ways on relay connections.
const (
	EnvelopeEvent    EnvelopeType = "event"
	EnvelopeCommand  EnvelopeType = "command"
	EnvelopeProtocol EnvelopeType = "protocol"
)

// SessionReadyPayload is sent once the session's peer has started
type SessionReadyPayload struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	World  string `json:"world"`
}

// ListChangedPayload tells a client to reload an owner's list
type ListChangedPayload struct {
	OwnerID string `json:"owner_id"`
}

// CommandPayload invokes one tracker command
type CommandPayload struct {
	RequestID string          `json:"request_id,omitempty"`
	Name      string          `json:"name"`
	ID        string          `json:"id,omitempty"`
	Title     string          `json:"title,omitempty"`
	Confirmed bool            `json:"confirmed,omitempty"`
	Options   json.RawMessage `json:"options,omitempty"`
}

// CommandResultPayload answers a CommandPayload
type CommandResultPayload struct {
	RequestID string `json:"request_id,omitempty"`
	Name      string `json:"name"`
	ID        string `json:"id,omitempty"`
	Options   any    `json:"options,omitempty"`
	Error     string `json:"error,omitempty"`
}

// NewEnvelope marshals data into an envelope of type t
func NewEnvelope(t EnvelopeType, windowID string, data any) (Envelope, error) {
	env := Envelope{Type: t, WindowID: windowID}
	if data == nil {
		return env, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to encode %s envelope: %w", t, err)
	}
	env.Data = raw
	return env, nil
}

// ParseEnvelopePayload parses the data of an inbound envelope into its payload struct
func ParseEnvelopePayload(env Envelope) (any, error) {
	switch env.Type {
	case EnvelopeEvent:
		var ev tracker.Event
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return nil, err
		}
		return ev, nil

	case EnvelopeCommand:
		var cmd CommandPayload
		if err := json.Unmarshal(env.Data, &cmd); err != nil {
			return nil, err
		}
		return cmd, nil

	case EnvelopeProtocol:
		return protocol.Decode(env.Data)

	default:
		return nil, fmt.Errorf("unknown envelope type %q", env.Type)
	}
}
