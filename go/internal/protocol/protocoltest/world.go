// Package protocoltest wires several peers to one in-process hub for tests.
package protocoltest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mcdev12/challengetracker/go/internal/flags"
	"github.com/mcdev12/challengetracker/go/internal/flags/badgerstore"
	"github.com/mcdev12/challengetracker/go/internal/hooks"
	"github.com/mcdev12/challengetracker/go/internal/models"
	"github.com/mcdev12/challengetracker/go/internal/notify"
	"github.com/mcdev12/challengetracker/go/internal/protocol"
	"github.com/mcdev12/challengetracker/go/internal/settings"
	"github.com/mcdev12/challengetracker/go/internal/tracker/trackertest"
)

// World is a session with shared flag storage and settings
type World struct {
	Hub      *protocol.LocalHub
	Flags    *flags.App
	Settings *settings.Store
	Hooks    *hooks.Table
}

// Client is one joined peer and its fake window host
type Client struct {
	Peer     *protocol.Peer
	Host     *trackertest.Host
	Bus      *protocol.LocalBus
	Reporter *notify.Recorder
}

func NewWorld(t testing.TB) *World {
	t.Helper()
	store, err := badgerstore.Open(badgerstore.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return &World{
		Hub:      protocol.NewLocalHub("test-world"),
		Flags:    flags.NewApp(store, &notify.Recorder{}),
		Settings: settings.NewStore(settings.Defaults()),
		Hooks:    hooks.NewTable(),
	}
}

// Join starts a peer for actor. It is stopped when the test ends.
func (w *World) Join(t testing.TB, actor models.Actor) *Client {
	t.Helper()
	c := &Client{
		Host:     trackertest.NewHost(),
		Bus:      w.Hub.Join(),
		Reporter: &notify.Recorder{},
	}
	c.Peer = protocol.NewPeer(protocol.PeerConfig{
		Actor:    actor,
		Bus:      c.Bus,
		Host:     c.Host,
		Flags:    w.Flags,
		Settings: w.Settings,
		Hooks:    w.Hooks,
		Reporter: c.Reporter,
	})
	require.NoError(t, c.Peer.Start())
	t.Cleanup(func() {
		c.Peer.Stop()
		c.Bus.Leave()
	})
	return c
}

// Window returns the newest fake window opened for id
func (c *Client) Window(t testing.TB, id string) *trackertest.Window {
	t.Helper()
	win, ok := c.Host.Window(id)
	require.True(t, ok, "no window for %s", id)
	return win
}

// Has reports whether the peer has a live tracker with id
func (c *Client) Has(id string) bool {
	_, ok := c.Peer.Registry().Get(id)
	return ok
}
