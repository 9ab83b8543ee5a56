package protocol

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/challengetracker/go/internal/models"
)

func TestMessageWireFormat(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	m, err := NewMessage(clock, KindClose, "gm", ClosePayload{
		Window:     models.WindowMeta{ID: "challenge-tracker-1"},
		ExecutorID: "gm",
	})
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), m.SentAt)

	data, err := Encode(m)
	require.NoError(t, err)
	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, m.ID, decoded.ID)
	assert.True(t, m.SentAt.Equal(decoded.SentAt))

	payload, err := ParsePayload(decoded)
	require.NoError(t, err)
	closing, ok := payload.(ClosePayload)
	require.True(t, ok)
	assert.Equal(t, "challenge-tracker-1", closing.Window.ID)
	assert.Equal(t, "gm", closing.ExecutorID)
}

func TestDecodeRejectsInvalidMessages(t *testing.T) {
	cases := map[string]string{
		"not json":     `{`,
		"unknown kind": `{"id":"0b6a3c1e-6a55-4d1b-9d3c-1f0a4a8d2e11","kind":"reload","sender":"gm","payload":{}}`,
		"missing id":   `{"kind":"open","sender":"gm","payload":{}}`,
		"no sender":    `{"id":"0b6a3c1e-6a55-4d1b-9d3c-1f0a4a8d2e11","kind":"open","payload":{}}`,
		"no payload":   `{"id":"0b6a3c1e-6a55-4d1b-9d3c-1f0a4a8d2e11","kind":"open","sender":"gm"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestParsePayloadUnknownKind(t *testing.T) {
	_, err := ParsePayload(Message{Kind: "reload", Payload: []byte(`{}`)})
	assert.Error(t, err)
}

func TestAccepts(t *testing.T) {
	m := Message{World: "w", Origin: "a", Audience: AudienceOthers}
	assert.False(t, accepts("a", "w", m))
	assert.True(t, accepts("b", "w", m))
	assert.False(t, accepts("b", "other", m))

	m.Audience = AudienceEveryone
	assert.True(t, accepts("a", "w", m))
}

func TestLocalHubAudiences(t *testing.T) {
	hub := NewLocalHub("w")
	a, b := hub.Join(), hub.Join()

	var gotA, gotB []string
	_, err := a.Subscribe(func(_ context.Context, m Message) { gotA = append(gotA, m.ID) })
	require.NoError(t, err)
	unsubB, err := b.Subscribe(func(_ context.Context, m Message) { gotB = append(gotB, m.ID) })
	require.NoError(t, err)

	everyone, err := NewMessage(nil, KindDraw, "a", DrawPayload{})
	require.NoError(t, err)
	others, err := NewMessage(nil, KindDraw, "a", DrawPayload{})
	require.NoError(t, err)

	require.NoError(t, a.ExecuteForEveryone(context.Background(), everyone))
	require.NoError(t, a.ExecuteForOthers(context.Background(), others))

	assert.Equal(t, []string{everyone.ID}, gotA)
	assert.Equal(t, []string{everyone.ID, others.ID}, gotB)

	unsubB()
	require.NoError(t, a.ExecuteForOthers(context.Background(), others))
	assert.Len(t, gotB, 2)

	b.Leave()
	require.NoError(t, a.ExecuteForEveryone(context.Background(), everyone))
	assert.Len(t, gotA, 2)
}

func TestLocalHubSurvivesPanickingHandler(t *testing.T) {
	hub := NewLocalHub("w")
	a, b := hub.Join(), hub.Join()
	_, err := a.Subscribe(func(context.Context, Message) { panic("boom") })
	require.NoError(t, err)
	delivered := 0
	_, err = b.Subscribe(func(context.Context, Message) { delivered++ })
	require.NoError(t, err)

	m, err := NewMessage(nil, KindOpen, "a", OpenPayload{})
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		require.NoError(t, a.ExecuteForEveryone(context.Background(), m))
	})
	assert.Equal(t, 1, delivered)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "challenge-tracker.world-1", Subject(DefaultNATSConfig().SubjectPrefix, "world-1"))
}
