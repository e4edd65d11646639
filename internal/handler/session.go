package handler

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"strings"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"courseboard-backend/internal/hub"
	"courseboard-backend/internal/model"
	"courseboard-backend/internal/presence"
	"courseboard-backend/internal/service"
	"courseboard-backend/internal/store"
)

// SessionHandler serves the whiteboard lifecycle REST API.
type SessionHandler struct {
	store    store.Store
	users    service.UserDirectory
	gate     *service.Gate
	hub      *hub.Hub
	presence *presence.Manager // optional
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(st store.Store, users service.UserDirectory, gate *service.Gate, h *hub.Hub, pres *presence.Manager) *SessionHandler {
	return &SessionHandler{
		store:    st,
		users:    users,
		gate:     gate,
		hub:      h,
		presence: pres,
	}
}

type createSessionRequest struct {
	Title string `json:"title"`
}

type updateSessionRequest struct {
	Title    *string `json:"title"`
	IsActive *bool   `json:"is_active"`
}

// CreateSession handles POST /api/courses/:courseId/whiteboards.
// Only teaching members of the course (or staff) may open a board.
func (h *SessionHandler) CreateSession(c *fiber.Ctx) error {
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}

	courseID, err := strconv.ParseInt(c.Params("courseId"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid course id",
		})
	}

	var req createSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "title is required",
		})
	}

	ok, err := h.gate.CanCreate(c.Context(), user, courseID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to check permission",
		})
	}
	if !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "only teaching staff can create whiteboards",
		})
	}

	sess, err := h.store.CreateSession(c.Context(), courseID, user.ID, req.Title)
	if err != nil {
		log.Printf("[Session] create failed: course=%d user=%d: %v", courseID, user.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create whiteboard",
		})
	}

	log.Printf("[Session] created %s in course=%d by user=%d", sess.ID, courseID, user.ID)
	return c.Status(fiber.StatusCreated).JSON(h.sessionResponse(c.Context(), sess, false))
}

// ListCourseSessions handles GET /api/courses/:courseId/whiteboards.
func (h *SessionHandler) ListCourseSessions(c *fiber.Ctx) error {
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}

	courseID, err := strconv.ParseInt(c.Params("courseId"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid course id",
		})
	}

	ok, err := h.gate.CanViewCourse(c.Context(), user, courseID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to check permission",
		})
	}
	if !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "not a member of this course",
		})
	}

	sessions, err := h.store.ListCourseSessions(c.Context(), courseID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list whiteboards",
		})
	}

	items := make([]fiber.Map, 0, len(sessions))
	for i := range sessions {
		items = append(items, h.sessionResponse(c.Context(), &sessions[i], false))
	}
	return c.JSON(fiber.Map{"whiteboards": items})
}

// GetSession handles GET /api/whiteboards/:id. The detail view includes the
// stroke count and, when Redis is configured, who is currently on the board.
func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	user, sess, errResp := h.loadSession(c)
	if errResp != nil {
		return errResp
	}

	ok, err := h.gate.CanConnect(c.Context(), user, sess)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to check permission",
		})
	}
	if !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "not a member of this course",
		})
	}

	return c.JSON(h.sessionResponse(c.Context(), sess, true))
}

// UpdateSession handles PATCH /api/whiteboards/:id for title and is_active.
func (h *SessionHandler) UpdateSession(c *fiber.Ctx) error {
	user, sess, errResp := h.loadSession(c)
	if errResp != nil {
		return errResp
	}

	ok, err := h.gate.CanManage(c.Context(), user, sess)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to check permission",
		})
	}
	if !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "only teaching staff can update whiteboards",
		})
	}

	var req updateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if req.Title == nil && req.IsActive == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "nothing to update",
		})
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "title cannot be empty",
			})
		}
		if err := h.store.UpdateTitle(c.Context(), sess.ID, title); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to update whiteboard",
			})
		}
		sess.Title = title
	}

	if req.IsActive != nil {
		if err := h.store.SetActive(c.Context(), sess.ID, *req.IsActive); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to update whiteboard",
			})
		}
		sess.IsActive = *req.IsActive
		log.Printf("[Session] %s is_active=%v by user=%d", sess.ID, *req.IsActive, user.ID)
	}

	return c.JSON(h.sessionResponse(c.Context(), sess, false))
}

// DeleteSession handles DELETE /api/whiteboards/:id. The session row and its
// strokes go first; the room is then force-closed so every open connection
// gets a session.close notice before the close frame.
func (h *SessionHandler) DeleteSession(c *fiber.Ctx) error {
	user, sess, errResp := h.loadSession(c)
	if errResp != nil {
		return errResp
	}

	ok, err := h.gate.CanManage(c.Context(), user, sess)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to check permission",
		})
	}
	if !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "only teaching staff can delete whiteboards",
		})
	}

	if err := h.store.DeleteSession(c.Context(), sess.ID); err != nil {
		log.Printf("[Session] delete failed: %s: %v", sess.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to delete whiteboard",
		})
	}

	notice := marshalServerMessage(model.TypeSessionClose, ClosePayload{
		SessionID: sess.ID,
		Reason:    "deleted",
	})
	closeFrame := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session deleted")
	h.hub.CloseRoom(sess.ID, notice, closeFrame)

	if h.presence != nil {
		if err := h.presence.ClearSession(c.Context(), sess.ID); err != nil {
			log.Printf("[Session] presence clear failed: %s: %v", sess.ID, err)
		}
	}

	log.Printf("[Session] deleted %s by user=%d", sess.ID, user.ID)
	return c.JSON(fiber.Map{"message": "whiteboard deleted"})
}

// ListStrokes handles GET /api/whiteboards/:id/strokes, the REST view of the
// same replay the socket sends in session.init.
func (h *SessionHandler) ListStrokes(c *fiber.Ctx) error {
	user, sess, errResp := h.loadSession(c)
	if errResp != nil {
		return errResp
	}

	ok, err := h.gate.CanConnect(c.Context(), user, sess)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to check permission",
		})
	}
	if !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "not a member of this course",
		})
	}

	strokes, err := h.store.ListStrokes(c.Context(), sess.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list strokes",
		})
	}

	items := make([]fiber.Map, 0, len(strokes))
	for _, s := range strokes {
		item := fiber.Map{
			"id":         s.ID,
			"seq":        s.Seq,
			"data":       json.RawMessage(s.Data),
			"created_at": s.CreatedAt,
		}
		if s.UserID != nil {
			item["user_id"] = *s.UserID
		}
		items = append(items, item)
	}
	return c.JSON(fiber.Map{"strokes": items})
}

// currentUser resolves the authenticated user set by the auth middleware.
func (h *SessionHandler) currentUser(c *fiber.Ctx) (*model.User, error) {
	userID, ok := c.Locals("userID").(int64)
	if !ok || userID == 0 {
		return nil, c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "authentication required",
		})
	}
	user, err := h.users.GetUser(c.Context(), userID)
	if err != nil {
		return nil, c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "unknown user",
		})
	}
	return user, nil
}

// loadSession resolves the :id param to a session, writing the error
// response itself when the lookup fails.
func (h *SessionHandler) loadSession(c *fiber.Ctx) (*model.User, *model.WhiteboardSession, error) {
	user, err := h.currentUser(c)
	if err != nil {
		return nil, nil, err
	}

	sess, err := h.store.GetSession(c.Context(), c.Params("id"))
	if err != nil {
		if err == store.ErrSessionNotFound {
			return nil, nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "whiteboard not found",
			})
		}
		return nil, nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load whiteboard",
		})
	}
	return user, sess, nil
}

func (h *SessionHandler) sessionResponse(ctx context.Context, sess *model.WhiteboardSession, detail bool) fiber.Map {
	resp := fiber.Map{
		"id":         sess.ID,
		"course_id":  sess.CourseID,
		"owner_id":   sess.OwnerID,
		"title":      sess.Title,
		"is_active":  sess.IsActive,
		"created_at": sess.CreatedAt,
		"updated_at": sess.UpdatedAt,
	}
	if !detail {
		return resp
	}

	if count, err := h.store.CountStrokes(ctx, sess.ID); err == nil {
		resp["stroke_count"] = count
	}
	if sess.Snapshot != nil {
		resp["snapshot"] = *sess.Snapshot
	}
	resp["connections"] = h.hub.MemberCount(sess.ID)
	if h.presence != nil {
		if members, err := h.presence.Members(ctx, sess.ID); err == nil {
			resp["online_users"] = members
		}
	}
	return resp
}

func marshalServerMessage(msgType string, payload any) []byte {
	data, err := json.Marshal(ServerMessage{Type: msgType, Payload: payload})
	if err != nil {
		return nil
	}
	return data
}
