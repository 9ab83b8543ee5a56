package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ConnectionManager manages WebSocket connections per world
type ConnectionManager struct {
	// Connection pools organized by world id
	worldConnections map[string]map[*Connection]bool
	mu               sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	broadcastCh chan BroadcastMessage

	// handlers installed by the service
	onMessage func(c *Connection, env Envelope)
	onClose   func(c *Connection)
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID      string
	UserID  string
	World   string
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager
	// Relay connections also receive every raw protocol message of the world
	Relay bool

	ConnectedAt time.Time
	LastPing    time.Time

	closeOnce sync.Once
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage is an envelope queued for the connections of a world
type BroadcastMessage struct {
	World    string
	Envelope Envelope
	// UserID limits delivery to one user when set
	UserID string
	// RelayOnly limits delivery to relay connections
	RelayOnly bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  64 * 1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		SendBufferSize:  256,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		worldConnections: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan BroadcastMessage, 1000),
	}
}

// Handle installs the callbacks for inbound envelopes and closed connections
func (cm *ConnectionManager) Handle(onMessage func(c *Connection, env Envelope), onClose func(c *Connection)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.onMessage = onMessage
	cm.onClose = onClose
}

// Start begins processing broadcast messages
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket. setup runs
// before the pumps start, so it may queue messages on the new connection.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, userID, world string, relay bool, setup func(*Connection) error) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	now := time.Now()
	connection := &Connection{
		ID:          uuid.New().String(),
		UserID:      userID,
		World:       world,
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		Relay:       relay,
		ConnectedAt: now,
		LastPing:    now,
	}

	cm.registerConnection(connection)
	if setup != nil {
		if err := setup(connection); err != nil {
			cm.unregisterConnection(connection)
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "session setup failed"))
			_ = conn.Close()
			return fmt.Errorf("failed to set up session: %w", err)
		}
	}

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("user_id", userID).
		Str("world", world).
		Msg("WebSocket connection established")
	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.worldConnections[conn.World] == nil {
		cm.worldConnections[conn.World] = make(map[*Connection]bool)
	}
	cm.worldConnections[conn.World][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("world", conn.World).
		Int("total_connections", len(cm.worldConnections[conn.World])).
		Msg("connection registered")
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	removed := false
	if connections, exists := cm.worldConnections[conn.World]; exists {
		if _, exists := connections[conn]; exists {
			delete(connections, conn)
			close(conn.Send)
			removed = true
			if len(connections) == 0 {
				delete(cm.worldConnections, conn.World)
			}
		}
	}
	onClose := cm.onClose
	cm.mu.Unlock()

	if !removed {
		return
	}
	log.Info().
		Str("connection_id", conn.ID).
		Str("user_id", conn.UserID).
		Str("world", conn.World).
		Msg("connection unregistered")
	if onClose != nil {
		onClose(conn)
	}
}

// SendTo queues an envelope for one connection. It reports false when the
// connection is gone or its buffer is full.
func (cm *ConnectionManager) SendTo(conn *Connection, env Envelope) bool {
	data, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal envelope")
		return false
	}

	cm.mu.RLock()
	defer cm.mu.RUnlock()
	if !cm.worldConnections[conn.World][conn] {
		return false
	}
	select {
	case conn.Send <- data:
		return true
	default:
		log.Warn().
			Str("connection_id", conn.ID).
			Str("user_id", conn.UserID).
			Msg("connection send buffer full, dropping envelope")
		return false
	}
}

// BroadcastToWorld sends an envelope to every connection of a world
func (cm *ConnectionManager) BroadcastToWorld(world string, env Envelope) {
	cm.enqueue(BroadcastMessage{World: world, Envelope: env})
}

// BroadcastToUser sends an envelope to the connections of one user
func (cm *ConnectionManager) BroadcastToUser(world, userID string, env Envelope) {
	cm.enqueue(BroadcastMessage{World: world, Envelope: env, UserID: userID})
}

// RelayToWorld sends an envelope to the relay connections of a world
func (cm *ConnectionManager) RelayToWorld(world string, env Envelope) {
	cm.enqueue(BroadcastMessage{World: world, Envelope: env, RelayOnly: true})
}

func (cm *ConnectionManager) enqueue(message BroadcastMessage) {
	select {
	case cm.broadcastCh <- message:
	default:
		log.Warn().Str("world", message.World).Msg("broadcast channel full, dropping message")
	}
}

func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	cm.mu.RLock()
	connections, exists := cm.worldConnections[message.World]
	if !exists {
		cm.mu.RUnlock()
		return
	}

	var targets []*Connection
	for conn := range connections {
		if message.UserID != "" && conn.UserID != message.UserID {
			continue
		}
		if message.RelayOnly && !conn.Relay {
			continue
		}
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	data, err := json.Marshal(message.Envelope)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal envelope for broadcast")
		return
	}

	var slow []*Connection
	cm.mu.RLock()
	for _, conn := range targets {
		if !cm.worldConnections[conn.World][conn] {
			continue
		}
		select {
		case conn.Send <- data:
		default:
			slow = append(slow, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range slow {
		log.Warn().
			Str("connection_id", conn.ID).
			Str("user_id", conn.UserID).
			Msg("connection send buffer full, closing connection")
		cm.unregisterConnection(conn)
		conn.close()
	}

	log.Debug().
		Str("envelope_type", string(message.Envelope.Type)).
		Str("world", message.World).
		Int("connections", len(targets)).
		Msg("envelope broadcasted")
}

// ConnectionStats summarizes the active connections
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	ActiveWorlds     int            `json:"active_worlds"`
	WorldConnections map[string]int `json:"world_connections"`
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{WorldConnections: make(map[string]int)}
	for world, connections := range cm.worldConnections {
		stats.TotalConnections += len(connections)
		stats.WorldConnections[world] = len(connections)
	}
	stats.ActiveWorlds = len(cm.worldConnections)
	return stats
}

func (c *Connection) close() {
	c.closeOnce.Do(func() { _ = c.Conn.Close() })
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.LastPing = time.Now()
		return c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.handleClientMessage(message)
		_ = c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

// handleClientMessage decodes an envelope and hands it to the service
func (c *Connection) handleClientMessage(message []byte) {
	var env Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		log.Warn().
			Err(err).
			Str("connection_id", c.ID).
			Msg("dropping malformed client message")
		return
	}
	c.Manager.mu.RLock()
	onMessage := c.Manager.onMessage
	c.Manager.mu.RUnlock()
	if onMessage != nil {
		onMessage(c, env)
	}
}
