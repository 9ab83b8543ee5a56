package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/challengetracker/go/internal/commands"
	"github.com/mcdev12/challengetracker/go/internal/models"
	"github.com/mcdev12/challengetracker/go/internal/notify"
	"github.com/mcdev12/challengetracker/go/internal/protocol"
)

// WorldBus is a protocol bus endpoint the session owns
type WorldBus interface {
	protocol.Bus
	Close()
}

// BusFactory joins a world's bus
type BusFactory func(world string) (WorldBus, error)

// LocalBuses returns a factory that joins in-process hubs, one per world
func LocalBuses() BusFactory {
	var mu sync.Mutex
	hubs := make(map[string]*protocol.LocalHub)
	return func(world string) (WorldBus, error) {
		mu.Lock()
		defer mu.Unlock()
		hub, ok := hubs[world]
		if !ok {
			hub = protocol.NewLocalHub(world)
			hubs[world] = hub
		}
		return hub.Join(), nil
	}
}

// connReporter sends notifications to the browser and logs them
type connReporter struct {
	conn *Connection
	log  notify.LogReporter
}

func (r connReporter) Notify(n notify.Notification) {
	r.log.Notify(n)
	env, err := NewEnvelope(EnvelopeNotify, "", n)
	if err != nil {
		return
	}
	r.conn.Manager.SendTo(r.conn, env)
}

// Session is the server-side peer of one websocket connection
type Session struct {
	conn     *Connection
	actor    models.Actor
	host     *Host
	bus      WorldBus
	peer     *protocol.Peer
	commands *commands.Service
}

func (s *Session) Actor() models.Actor          { return s.actor }
func (s *Session) Peer() *protocol.Peer         { return s.peer }
func (s *Session) Commands() *commands.Service  { return s.commands }
func (s *Session) Connection() *Connection      { return s.conn }

// close stops the peer and leaves the bus. Windows are detached first since
// the browser that drew them is gone.
func (s *Session) close() {
	s.host.Detach()
	s.peer.Stop()
	s.bus.Close()
}

// relay publishes a protocol message a browser peer sent
func (s *Session) relay(ctx context.Context, m protocol.Message) error {
	if m.Sender != s.actor.UserID {
		return fmt.Errorf("sender %q does not match connection user %q", m.Sender, s.actor.UserID)
	}
	if m.Audience == protocol.AudienceOthers {
		return s.bus.ExecuteForOthers(ctx, m)
	}
	return s.bus.ExecuteForEveryone(ctx, m)
}

// Sessions tracks the live sessions by user
type Sessions struct {
	mu     sync.RWMutex
	byConn map[string]*Session
	byUser map[string][]*Session
}

func NewSessions() *Sessions {
	return &Sessions{
		byConn: make(map[string]*Session),
		byUser: make(map[string][]*Session),
	}
}

func (s *Sessions) add(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byConn[sess.conn.ID] = sess
	s.byUser[sess.actor.UserID] = append(s.byUser[sess.actor.UserID], sess)
}

func (s *Sessions) remove(connID string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byConn[connID]
	if !ok {
		return nil, false
	}
	delete(s.byConn, connID)
	list := s.byUser[sess.actor.UserID]
	for i, other := range list {
		if other == sess {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(s.byUser, sess.actor.UserID)
	} else {
		s.byUser[sess.actor.UserID] = list
	}
	return sess, true
}

// ByConnection returns the session of a connection
func (s *Sessions) ByConnection(connID string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.byConn[connID]
	return sess, ok
}

// Commands returns the command service of the user's oldest session
func (s *Sessions) Commands(userID string) (*commands.Service, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.byUser[userID]
	if len(list) == 0 {
		return nil, false
	}
	return list[0].commands, true
}

// Len returns the number of live sessions
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byConn)
}

// runCommand executes a browser command on the session
func (s *Session) runCommand(ctx context.Context, cmd CommandPayload) CommandResultPayload {
	res := CommandResultPayload{RequestID: cmd.RequestID, Name: cmd.Name, ID: cmd.ID}
	svc := s.commands

	var opts models.TrackerOptions
	if len(cmd.Options) > 0 && cmd.Name != "open" && cmd.Name != "setById" {
		if err := json.Unmarshal(cmd.Options, &opts); err != nil {
			res.Error = fmt.Sprintf("invalid options: %v", err)
			return res
		}
	}

	var err error
	switch cmd.Name {
	case "open":
		data := cmd.Options
		if len(data) == 0 {
			data = []byte(`{}`)
		}
		res.ID, err = svc.OpenJSON(ctx, data)
	case "draw":
		opts.ID = cmd.ID
		err = svc.Draw(ctx, opts)
	case "closeAll":
		err = svc.CloseAll(ctx)
	case "closeById":
		err = svc.CloseByID(ctx, cmd.ID)
	case "closeByTitle":
		err = svc.CloseByTitle(ctx, cmd.Title)
	case "showAll":
		err = svc.ShowAll(ctx)
	case "showById":
		err = svc.ShowByID(ctx, cmd.ID)
	case "showByTitle":
		err = svc.ShowByTitle(ctx, cmd.Title)
	case "hideAll":
		err = svc.HideAll(ctx)
	case "hideById":
		err = svc.HideByID(ctx, cmd.ID)
	case "hideByTitle":
		err = svc.HideByTitle(ctx, cmd.Title)
	case "setById":
		err = svc.SetByIDJSON(ctx, cmd.ID, cmd.Options)
	case "setByTitle":
		err = svc.SetByTitle(ctx, cmd.Title, opts)
	case "getById":
		var got *models.TrackerOptions
		if got, err = svc.GetByID(ctx, cmd.ID); err == nil {
			res.Options = got
		}
	case "getByTitle":
		var got *models.TrackerOptions
		if got, err = svc.GetByTitle(ctx, cmd.Title); err == nil {
			res.Options = got
			res.ID = got.ID
		}
	case "deleteAll":
		err = svc.DeleteAll(ctx, cmd.Confirmed)
	case "deleteById":
		err = svc.DeleteByID(ctx, cmd.ID)
	case "deleteByTitle":
		err = svc.DeleteByTitle(ctx, cmd.Title)
	default:
		err = fmt.Errorf("unknown command %q", cmd.Name)
	}
	if err != nil {
		res.Error = err.Error()
		log.Debug().Err(err).Str("command", cmd.Name).Str("user_id", s.actor.UserID).Msg("command failed")
	}
	return res
}
