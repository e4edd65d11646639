package handler

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/contrib/websocket"

	"courseboard-backend/internal/config"
	"courseboard-backend/internal/hub"
	"courseboard-backend/internal/model"
	"courseboard-backend/internal/presence"
	"courseboard-backend/internal/service"
	"courseboard-backend/internal/store"
)

// WhiteboardWSHandler drives one whiteboard connection from handshake to
// close: gate check, room join, stroke replay, then the action loop.
type WhiteboardWSHandler struct {
	store    store.Store
	users    service.UserDirectory
	gate     *service.Gate
	hub      *hub.Hub
	presence *presence.Manager // optional
	cfg      config.WhiteboardConfig
}

// NewWhiteboardWSHandler creates a WhiteboardWSHandler.
func NewWhiteboardWSHandler(st store.Store, users service.UserDirectory, gate *service.Gate, h *hub.Hub, pres *presence.Manager, cfg config.WhiteboardConfig) *WhiteboardWSHandler {
	return &WhiteboardWSHandler{
		store:    st,
		users:    users,
		gate:     gate,
		hub:      h,
		presence: pres,
		cfg:      cfg,
	}
}

// ActionMessage is the client-to-server envelope.
type ActionMessage struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

// ServerMessage is the server-to-client envelope.
type ServerMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// InitPayload is sent once on join: identity of the board plus the full
// ordered stroke replay.
type InitPayload struct {
	SessionID string            `json:"sessionId"`
	Title     string            `json:"title"`
	Strokes   []json.RawMessage `json:"strokes"`
	Snapshot  string            `json:"snapshot,omitempty"`
}

// EventPayload is the body of a fanned-out whiteboard event.
type EventPayload struct {
	Stroke    json.RawMessage `json:"stroke,omitempty"`
	Snapshot  string          `json:"snapshot,omitempty"`
	Author    string          `json:"author"`
	AuthorID  int64           `json:"authorId"`
	Timestamp string          `json:"timestamp"`
}

// ClosePayload is the body of a session.close notification.
type ClosePayload struct {
	SessionID string `json:"sessionId"`
	Reason    string `json:"reason"`
}

// ErrorPayload is sent to the acting client only; the connection stays open.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes carried in ErrorPayload.
const (
	errCodeForbidden   = "forbidden"
	errCodeInvalid     = "invalid_payload"
	errCodeInactive    = "inactive_session"
	errCodePersistence = "persistence_failed"
	errCodeUnknown     = "unknown_action"
)

type strokePayload struct {
	Stroke json.RawMessage `json:"stroke"`
}

type snapshotPayload struct {
	Snapshot string `json:"snapshot"`
}

// HandleWebSocket runs one connection. The route middleware has already
// parsed the access token into Locals; every rejection here surfaces as a
// close code rather than an HTTP status, because the handshake is done.
func (h *WhiteboardWSHandler) HandleWebSocket(c *websocket.Conn) {
	ctx := context.Background()

	sessionID, _ := c.Locals("sessionId").(string)
	userID, _ := c.Locals("userId").(int64)

	user, sess, closeCode, reason := h.authorizeConnect(ctx, userID, sessionID)
	if closeCode != 0 {
		closeWith(c, closeCode, reason)
		return
	}

	if h.cfg.MaxMessageSize > 0 {
		c.SetReadLimit(h.cfg.MaxMessageSize)
	}

	client := hub.NewClient(user.ID, user.Nickname, c)
	h.hub.Join(sess.ID, client)
	if h.presence != nil {
		if err := h.presence.Join(ctx, sess.ID, user.ID); err != nil {
			log.Printf("[WS %s] presence join failed: %v", sess.ID, err)
		}
	}

	defer func() {
		h.hub.Leave(sess.ID, client)
		if h.presence != nil {
			if err := h.presence.Leave(context.Background(), sess.ID, user.ID); err != nil {
				log.Printf("[WS %s] presence leave failed: %v", sess.ID, err)
			}
		}
		c.Close()
		log.Printf("[WS %s] disconnected: user=%d", sess.ID, user.ID)
	}()

	log.Printf("[WS %s] connected: user=%d (%s)", sess.ID, user.ID, user.Nickname)

	if err := h.sendInit(ctx, client, sess); err != nil {
		log.Printf("[WS %s] init failed: user=%d: %v", sess.ID, user.ID, err)
		return
	}

	if h.presence != nil {
		stop := make(chan struct{})
		defer close(stop)
		go h.heartbeatLoop(sess.ID, stop)
	}

	// One reader per connection keeps each client's events FIFO.
	for {
		_, msgBytes, err := c.ReadMessage()
		if err != nil {
			break
		}

		var msg ActionMessage
		if err := json.Unmarshal(msgBytes, &msg); err != nil {
			h.sendError(client, errCodeInvalid, "malformed action envelope")
			continue
		}

		h.handleAction(ctx, client, user, sess, msg)
	}
}

// authorizeConnect decides whether a connection may enter the room. A
// non-zero close code means reject; the client is only registered with the
// hub after this returns clean, so a rejected user never appears in the
// room.
func (h *WhiteboardWSHandler) authorizeConnect(ctx context.Context, userID int64, sessionID string) (*model.User, *model.WhiteboardSession, int, string) {
	if userID == 0 {
		return nil, nil, model.CloseUnauthorized, "authentication required"
	}

	user, err := h.users.GetUser(ctx, userID)
	if err != nil {
		return nil, nil, model.CloseUnauthorized, "unknown user"
	}

	sess, err := h.store.GetSession(ctx, sessionID)
	if err != nil {
		if err == store.ErrSessionNotFound {
			return nil, nil, model.CloseNotFound, "session not found"
		}
		log.Printf("[WS %s] session lookup failed: %v", sessionID, err)
		return nil, nil, websocket.CloseInternalServerErr, "internal error"
	}

	ok, err := h.gate.CanConnect(ctx, user, sess)
	if err != nil {
		log.Printf("[WS %s] connect gate failed: %v", sessionID, err)
		return nil, nil, websocket.CloseInternalServerErr, "internal error"
	}
	if !ok {
		return nil, nil, model.CloseForbidden, "not a course member"
	}

	// Inactive boards are read-only archives; only managers may review them.
	if !sess.IsActive {
		manage, err := h.gate.CanManage(ctx, user, sess)
		if err != nil || !manage {
			return nil, nil, model.CloseForbidden, "session is not active"
		}
	}

	return user, sess, 0, ""
}

// sendInit replays the board to a newly-joined client.
func (h *WhiteboardWSHandler) sendInit(ctx context.Context, client *hub.Client, sess *model.WhiteboardSession) error {
	strokes, err := h.store.ListStrokes(ctx, sess.ID)
	if err != nil {
		return err
	}

	replay := make([]json.RawMessage, 0, len(strokes))
	for _, s := range strokes {
		replay = append(replay, json.RawMessage(s.Data))
	}

	init := InitPayload{
		SessionID: sess.ID,
		Title:     sess.Title,
		Strokes:   replay,
	}
	if sess.Snapshot != nil {
		init.Snapshot = *sess.Snapshot
	}

	data, err := json.Marshal(ServerMessage{Type: model.TypeSessionInit, Payload: init})
	if err != nil {
		return err
	}
	return client.Send(data)
}

// handleAction applies one inbound event: gate, persist, then broadcast.
// Failures stay local to the acting client.
func (h *WhiteboardWSHandler) handleAction(ctx context.Context, client *hub.Client, user *model.User, sess *model.WhiteboardSession, msg ActionMessage) {
	switch msg.Action {
	case model.ActionStrokeAppend:
		h.handleStrokeAppend(ctx, client, user, sess, msg.Payload)
	case model.ActionBoardClear:
		h.handleBoardClear(ctx, client, user, sess)
	case model.ActionSnapshotSave:
		h.handleSnapshotSave(ctx, client, user, sess, msg.Payload)
	default:
		h.sendError(client, errCodeUnknown, "unknown action: "+msg.Action)
	}
}

func (h *WhiteboardWSHandler) handleStrokeAppend(ctx context.Context, client *hub.Client, user *model.User, sess *model.WhiteboardSession, payload json.RawMessage) {
	var body strokePayload
	if err := json.Unmarshal(payload, &body); err != nil || len(body.Stroke) == 0 {
		h.sendError(client, errCodeInvalid, "stroke payload required")
		return
	}

	if !h.allowMutate(ctx, client, user, sess) {
		return
	}

	stroke, err := h.store.AppendStroke(ctx, sess.ID, user.ID, body.Stroke)
	if err != nil {
		log.Printf("[WS %s] stroke append failed: user=%d: %v", sess.ID, user.ID, err)
		h.sendError(client, errCodePersistence, "failed to save stroke")
		return
	}

	h.broadcast(sess.ID, model.ActionStrokeAppend, EventPayload{
		Stroke:    body.Stroke,
		Author:    user.Nickname,
		AuthorID:  user.ID,
		Timestamp: stroke.CreatedAt.UTC().Format(time.RFC3339),
	})
}

func (h *WhiteboardWSHandler) handleBoardClear(ctx context.Context, client *hub.Client, user *model.User, sess *model.WhiteboardSession) {
	if !sess.IsActive {
		h.sendError(client, errCodeInactive, "session is not active")
		return
	}

	ok, err := h.gate.CanClear(ctx, user, sess)
	if err != nil {
		log.Printf("[WS %s] clear gate failed: %v", sess.ID, err)
		h.sendError(client, errCodePersistence, "authorization check failed")
		return
	}
	if !ok {
		h.sendError(client, errCodeForbidden, "not allowed to clear the board")
		return
	}

	removed, err := h.store.ClearStrokes(ctx, sess.ID, user.ID)
	if err != nil {
		log.Printf("[WS %s] clear failed: user=%d: %v", sess.ID, user.ID, err)
		h.sendError(client, errCodePersistence, "failed to clear board")
		return
	}

	log.Printf("[WS %s] board cleared by user=%d, %d stroke(s) removed", sess.ID, user.ID, removed)

	h.broadcast(sess.ID, model.ActionBoardClear, EventPayload{
		Author:    user.Nickname,
		AuthorID:  user.ID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *WhiteboardWSHandler) handleSnapshotSave(ctx context.Context, client *hub.Client, user *model.User, sess *model.WhiteboardSession, payload json.RawMessage) {
	var body snapshotPayload
	if err := json.Unmarshal(payload, &body); err != nil || body.Snapshot == "" {
		h.sendError(client, errCodeInvalid, "snapshot payload required")
		return
	}

	if !h.allowMutate(ctx, client, user, sess) {
		return
	}

	if h.cfg.PersistSnapshots {
		if err := h.store.SaveSnapshot(ctx, sess.ID, user.ID, body.Snapshot); err != nil {
			log.Printf("[WS %s] snapshot save failed: user=%d: %v", sess.ID, user.ID, err)
			h.sendError(client, errCodePersistence, "failed to save snapshot")
			return
		}
	}

	h.broadcast(sess.ID, model.ActionSnapshotSave, EventPayload{
		Snapshot:  body.Snapshot,
		Author:    user.Nickname,
		AuthorID:  user.ID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// allowMutate runs the common mutation gates, reporting the reason to the
// client when the event must be dropped.
func (h *WhiteboardWSHandler) allowMutate(ctx context.Context, client *hub.Client, user *model.User, sess *model.WhiteboardSession) bool {
	if !sess.IsActive {
		h.sendError(client, errCodeInactive, "session is not active")
		return false
	}

	ok, err := h.gate.CanMutate(ctx, user, sess)
	if err != nil {
		log.Printf("[WS %s] mutate gate failed: %v", sess.ID, err)
		h.sendError(client, errCodePersistence, "authorization check failed")
		return false
	}
	if !ok {
		h.sendError(client, errCodeForbidden, "not allowed to draw on this board")
		return false
	}
	return true
}

func (h *WhiteboardWSHandler) broadcast(sessionID, event string, payload EventPayload) {
	data, err := json.Marshal(ServerMessage{Type: event, Payload: payload})
	if err != nil {
		log.Printf("[WS %s] marshal failed for %s: %v", sessionID, event, err)
		return
	}
	h.hub.Broadcast(sessionID, data)
}

func (h *WhiteboardWSHandler) sendError(client *hub.Client, code, message string) {
	data, err := json.Marshal(ServerMessage{Type: model.TypeError, Payload: ErrorPayload{Code: code, Message: message}})
	if err != nil {
		return
	}
	if err := client.Send(data); err != nil {
		log.Printf("[WS] error frame send failed: user=%d: %v", client.UserID, err)
	}
}

func (h *WhiteboardWSHandler) heartbeatLoop(sessionID string, stop <-chan struct{}) {
	interval := h.cfg.PresenceTTL / 2
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := h.presence.Heartbeat(ctx, sessionID); err != nil {
				log.Printf("[WS %s] presence heartbeat failed: %v", sessionID, err)
			}
			cancel()
		}
	}
}

// closeWith rejects a connection after the handshake with a protocol close
// code, then drops it.
func closeWith(c *websocket.Conn, code int, reason string) {
	c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	c.Close()
}
