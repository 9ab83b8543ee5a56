package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/challengetracker/go/internal/flags"
	"github.com/mcdev12/challengetracker/go/internal/flags/badgerstore"
	"github.com/mcdev12/challengetracker/go/internal/models"
	"github.com/mcdev12/challengetracker/go/internal/notify"
	"github.com/mcdev12/challengetracker/go/internal/protocol"
	"github.com/mcdev12/challengetracker/go/internal/tracker"
)

type directory map[string]models.Role

func (d directory) Actor(_ context.Context, userID string) (models.Actor, error) {
	role, ok := d[userID]
	if !ok {
		return models.Actor{}, &models.NotFoundError{Field: "user", Value: userID}
	}
	return models.Actor{UserID: userID, Role: role}, nil
}

type fixture struct {
	service *Service
	flags   *flags.App
	server  *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := badgerstore.Open(badgerstore.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	flagsApp := flags.NewApp(store, &notify.Recorder{})
	cfg := DefaultConfig()
	cfg.World = "test-world"

	svc, err := NewService(cfg, Deps{
		Buses: LocalBuses(),
		Flags: flagsApp,
		Directory: directory{
			"gm":       models.RoleGamemaster,
			"player-1": models.RolePlayer,
			"player-2": models.RolePlayer,
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go svc.connectionManager.Start(ctx)
	require.NoError(t, svc.relay.Start(ctx))
	t.Cleanup(svc.relay.Stop)

	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &fixture{service: svc, flags: flagsApp, server: server}
}

func (f *fixture) url(query string) string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/tracker?" + query
}

type client struct {
	t    *testing.T
	conn *websocket.Conn
}

func (f *fixture) dial(t *testing.T, query string) *client {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(f.url(query), nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	c := &client{t: t, conn: conn}
	c.await(EnvelopeSessionReady)
	return c
}

func (c *client) send(t EnvelopeType, windowID string, data any) {
	c.t.Helper()
	env, err := NewEnvelope(t, windowID, data)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteJSON(env))
}

func (c *client) command(cmd CommandPayload) CommandResultPayload {
	c.t.Helper()
	c.send(EnvelopeCommand, "", cmd)
	env := c.await(EnvelopeCommandResult)
	var res CommandResultPayload
	require.NoError(c.t, json.Unmarshal(env.Data, &res))
	return res
}

// await reads envelopes until one of type t arrives
func (c *client) await(t EnvelopeType) Envelope {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var env Envelope
		require.NoError(c.t, c.conn.ReadJSON(&env), "waiting for %s", t)
		if env.Type == t {
			return env
		}
	}
}

func TestSessionReadyCarriesRole(t *testing.T) {
	f := newFixture(t)

	conn, _, err := websocket.DefaultDialer.Dial(f.url("user_id=gm"), nil)
	require.NoError(t, err)
	defer conn.Close()

	var env Envelope
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&env))
	require.Equal(t, EnvelopeSessionReady, env.Type)

	var ready SessionReadyPayload
	require.NoError(t, json.Unmarshal(env.Data, &ready))
	assert.Equal(t, SessionReadyPayload{UserID: "gm", Role: models.RoleGamemaster.String(), World: "test-world"}, ready)

	require.Eventually(t, func() bool { return f.service.Sessions().Len() == 1 }, time.Second, 10*time.Millisecond)
}

func TestRejectedConnections(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		query  string
		status int
	}{
		{"missing user", "", http.StatusBadRequest},
		{"unknown user", "user_id=stranger", http.StatusForbidden},
		{"other world", "user_id=gm&world=elsewhere", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(f.url(tt.query), nil)
			require.Error(t, err)
			require.NotNil(t, resp)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestOpenCommandRendersInBrowser(t *testing.T) {
	f := newFixture(t)
	player := f.dial(t, "user_id=player-1")

	player.send(EnvelopeCommand, "", CommandPayload{
		RequestID: "r1",
		Name:      "open",
		Options:   json.RawMessage(`{"title":"Climb","outerTotal":6}`),
	})

	open := player.await(EnvelopeWindowOpen)
	assert.NotEmpty(t, open.WindowID)
	render := player.await(EnvelopeWindowRender)
	assert.Equal(t, open.WindowID, render.WindowID)

	res := player.await(EnvelopeCommandResult)
	var result CommandResultPayload
	require.NoError(t, json.Unmarshal(res.Data, &result))
	assert.Empty(t, result.Error)
	assert.Equal(t, "r1", result.RequestID)
	assert.Equal(t, open.WindowID, result.ID)

	svc, ok := f.service.Sessions().Commands("player-1")
	require.True(t, ok)
	assert.True(t, svc.IsOpen(result.ID))
}

func TestCommandErrorsAreReturnedAndNotified(t *testing.T) {
	f := newFixture(t)
	player := f.dial(t, "user_id=player-1")

	res := player.command(CommandPayload{Name: "closeById", ID: "missing"})
	assert.NotEmpty(t, res.Error)

	res = player.command(CommandPayload{Name: "teleport"})
	assert.Contains(t, res.Error, "unknown command")
}

func TestShownTrackerReachesOtherSessions(t *testing.T) {
	f := newFixture(t)
	gm := f.dial(t, "user_id=gm")
	player := f.dial(t, "user_id=player-1")

	res := gm.command(CommandPayload{Name: "open", Options: json.RawMessage(`{"title":"Ritual","show":true}`)})
	require.Empty(t, res.Error)

	open := player.await(EnvelopeWindowOpen)
	assert.Equal(t, res.ID, open.WindowID)
}

func TestFlagChangesNotifyClients(t *testing.T) {
	f := newFixture(t)
	player := f.dial(t, "user_id=player-1")

	require.NoError(t, f.flags.Set(context.Background(), "player-1", models.TrackerOptions{ID: "abc", Title: models.String("Saved")}))

	env := player.await(EnvelopeListChanged)
	var payload ListChangedPayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, "player-1", payload.OwnerID)
}

func TestRelayForwardsProtocolMessages(t *testing.T) {
	f := newFixture(t)
	relay := f.dial(t, "user_id=player-2&relay=true")
	gm := f.dial(t, "user_id=gm")

	res := gm.command(CommandPayload{Name: "open", Options: json.RawMessage(`{"title":"Shared","show":true}`)})
	require.Empty(t, res.Error)

	env := relay.await(EnvelopeProtocol)
	m, err := protocol.Decode(env.Data)
	require.NoError(t, err)
	assert.Equal(t, protocol.KindOpen, m.Kind)
	assert.Equal(t, "gm", m.Sender)
}

func TestWindowEventsReachTracker(t *testing.T) {
	f := newFixture(t)
	player := f.dial(t, "user_id=player-1")

	res := player.command(CommandPayload{Name: "open", Options: json.RawMessage(`{"title":"Clicks","outerTotal":4}`)})
	require.Empty(t, res.Error)

	player.send(EnvelopeEvent, res.ID, tracker.Event{Kind: tracker.EventClick, X: 125, Y: 125})

	svc, ok := f.service.Sessions().Commands("player-1")
	require.True(t, ok)
	require.Eventually(t, func() bool {
		got, err := svc.GetByID(context.Background(), res.ID)
		return err == nil && got.OuterCurrent != nil && *got.OuterCurrent == 1
	}, 2*time.Second, 20*time.Millisecond)
}

func TestDisconnectStopsSession(t *testing.T) {
	f := newFixture(t)
	player := f.dial(t, "user_id=player-1")
	require.Equal(t, 1, f.service.Sessions().Len())

	require.NoError(t, player.conn.Close())
	require.Eventually(t, func() bool { return f.service.Sessions().Len() == 0 }, 2*time.Second, 10*time.Millisecond)

	_, ok := f.service.Sessions().Commands("player-1")
	assert.False(t, ok)
}

func TestConnectionStats(t *testing.T) {
	f := newFixture(t)
	f.dial(t, "user_id=gm")

	resp, err := http.Get(f.server.URL + "/ws/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var stats ConnectionStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 1, stats.TotalConnections)
	assert.Equal(t, 1, stats.WorldConnections["test-world"])
}
