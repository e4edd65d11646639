package hub

import (
	"log"
	"sync"
)

// WebSocket frame opcodes, identical to the websocket package constants.
// Declared here so the hub stays independent of the transport package and
// tests can drive it with fakes.
const (
	TextMessage  = 1
	CloseMessage = 8
)

// Conn is the slice of a WebSocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one live connection attached to one session.
type Client struct {
	UserID   int64
	Nickname string

	conn    Conn
	writeMu sync.Mutex
}

// NewClient wraps a connection for room membership.
func NewClient(userID int64, nickname string, conn Conn) *Client {
	return &Client{UserID: userID, Nickname: nickname, conn: conn}
}

// Send writes one text frame. Safe for concurrent use; the underlying
// connection permits only one writer at a time.
func (c *Client) Send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(TextMessage, data)
}

// SendClose writes a close frame with a pre-formatted payload.
func (c *Client) SendClose(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(CloseMessage, payload)
}

// Close tears down the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// room holds the clients currently connected to one session.
type room struct {
	clients map[*Client]struct{}
	mu      sync.RWMutex
}

// Hub is the process-wide connection registry: session id -> room. Joining
// twice is idempotent, leaving an unknown client is a no-op, and rooms are
// pruned when their last member leaves.
type Hub struct {
	rooms map[string]*room
	mu    sync.RWMutex
}

// New creates an empty Hub.
func New() *Hub {
	return &Hub{rooms: make(map[string]*room)}
}

// Join registers a client in the session's room. The insert happens while
// h.mu is still held; releasing it between the room lookup and the insert
// would let Leave's prune drop the room and strand the joiner in an
// orphaned one. Lock order is h.mu then r.mu everywhere.
func (h *Hub) Join(sessionID string, c *Client) {
	h.mu.Lock()
	r, ok := h.rooms[sessionID]
	if !ok {
		r = &room{clients: make(map[*Client]struct{})}
		h.rooms[sessionID] = r
	}
	r.mu.Lock()
	r.clients[c] = struct{}{}
	total := len(r.clients)
	r.mu.Unlock()
	h.mu.Unlock()

	log.Printf("[Hub %s] client joined: user=%d, total=%d", sessionID, c.UserID, total)
}

// Leave removes a client from the session's room, dropping the room when it
// empties.
func (h *Hub) Leave(sessionID string, c *Client) {
	h.mu.RLock()
	r, ok := h.rooms[sessionID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	r.mu.Lock()
	delete(r.clients, c)
	remaining := len(r.clients)
	r.mu.Unlock()

	if remaining == 0 {
		h.mu.Lock()
		// Re-check: someone may have joined between the counts.
		r.mu.RLock()
		empty := len(r.clients) == 0
		r.mu.RUnlock()
		if empty {
			delete(h.rooms, sessionID)
		}
		h.mu.Unlock()
	}

	log.Printf("[Hub %s] client left: user=%d, remaining=%d", sessionID, c.UserID, remaining)
}

// Members returns a snapshot of the session's current room.
func (h *Hub) Members(sessionID string) []*Client {
	h.mu.RLock()
	r, ok := h.rooms[sessionID]
	h.mu.RUnlock()
	if !ok {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	members := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		members = append(members, c)
	}
	return members
}

// MemberCount returns the session room's size.
func (h *Hub) MemberCount(sessionID string) int {
	h.mu.RLock()
	r, ok := h.rooms[sessionID]
	h.mu.RUnlock()
	if !ok {
		return 0
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Broadcast fans one frame out to every client in the session's room,
// including the sender. Callers persist before broadcasting.
func (h *Hub) Broadcast(sessionID string, data []byte) {
	for _, c := range h.Members(sessionID) {
		if err := c.Send(data); err != nil {
			log.Printf("[Hub %s] send failed: user=%d: %v", sessionID, c.UserID, err)
		}
	}
}

// CloseRoom force-closes every connection in the room: a final notification
// frame, then a close frame, then the connection itself. Used when the
// session is deleted under live connections.
func (h *Hub) CloseRoom(sessionID string, notice, closeFrame []byte) {
	members := h.Members(sessionID)

	h.mu.Lock()
	delete(h.rooms, sessionID)
	h.mu.Unlock()

	for _, c := range members {
		if notice != nil {
			if err := c.Send(notice); err != nil {
				log.Printf("[Hub %s] close notice failed: user=%d: %v", sessionID, c.UserID, err)
			}
		}
		if closeFrame != nil {
			c.SendClose(closeFrame)
		}
		c.Close()
	}

	if len(members) > 0 {
		log.Printf("[Hub %s] room closed, %d connection(s) dropped", sessionID, len(members))
	}
}

// RoomCount returns the number of rooms with at least one member.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}
