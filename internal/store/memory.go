package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"courseboard-backend/internal/model"
)

// MemoryStore keeps sessions and stroke logs in process memory. It backs
// unit tests and database-less development; one mutex covers every session,
// which trivially satisfies the append/clear serialization contract.
type MemoryStore struct {
	mu           sync.Mutex
	sessions     map[string]*model.WhiteboardSession
	strokes      map[string][]model.WhiteboardStroke
	events       map[string][]model.WhiteboardEvent
	nextStrokeID int64
	nextEventID  int64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*model.WhiteboardSession),
		strokes:  make(map[string][]model.WhiteboardStroke),
		events:   make(map[string][]model.WhiteboardEvent),
	}
}

// GetSession loads one session by id.
func (s *MemoryStore) GetSession(ctx context.Context, id string) (*model.WhiteboardSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	copied := *sess
	return &copied, nil
}

// CreateSession inserts a new session owned by the given user.
func (s *MemoryStore) CreateSession(ctx context.Context, courseID, ownerID int64, title string) (*model.WhiteboardSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	sess := &model.WhiteboardSession{
		ID:        uuid.New().String(),
		CourseID:  courseID,
		OwnerID:   ownerID,
		Title:     title,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[sess.ID] = sess
	copied := *sess
	return &copied, nil
}

// ListCourseSessions returns a course's sessions, newest first.
func (s *MemoryStore) ListCourseSessions(ctx context.Context, courseID int64) ([]model.WhiteboardSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sessions []model.WhiteboardSession
	for _, sess := range s.sessions {
		if sess.CourseID == courseID {
			sessions = append(sessions, *sess)
		}
	}
	for i := 0; i < len(sessions); i++ {
		for j := i + 1; j < len(sessions); j++ {
			if sessions[j].CreatedAt.After(sessions[i].CreatedAt) {
				sessions[i], sessions[j] = sessions[j], sessions[i]
			}
		}
	}
	return sessions, nil
}

// SetActive flips the session's active flag.
func (s *MemoryStore) SetActive(ctx context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	sess.IsActive = active
	sess.UpdatedAt = time.Now()
	return nil
}

// UpdateTitle renames the session.
func (s *MemoryStore) UpdateTitle(ctx context.Context, id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	sess.Title = title
	sess.UpdatedAt = time.Now()
	return nil
}

// DeleteSession removes the session and everything under it.
func (s *MemoryStore) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	delete(s.strokes, id)
	delete(s.events, id)
	return nil
}

// AppendStroke appends one stroke at the next sequence position.
func (s *MemoryStore) AppendStroke(ctx context.Context, sessionID string, userID int64, data json.RawMessage) (*model.WhiteboardStroke, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return nil, ErrSessionNotFound
	}

	s.nextStrokeID++
	log := s.strokes[sessionID]
	var nextSeq int64 = 1
	if n := len(log); n > 0 {
		nextSeq = log[n-1].Seq + 1
	}

	stroke := model.WhiteboardStroke{
		ID:        s.nextStrokeID,
		SessionID: sessionID,
		UserID:    &userID,
		Seq:       nextSeq,
		Data:      string(data),
		CreatedAt: time.Now(),
	}
	s.strokes[sessionID] = append(log, stroke)
	s.recordEvent(sessionID, userID, model.ActionStrokeAppend)
	return &stroke, nil
}

// ListStrokes returns the session's strokes in append order.
func (s *MemoryStore) ListStrokes(ctx context.Context, sessionID string) ([]model.WhiteboardStroke, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return nil, ErrSessionNotFound
	}
	log := s.strokes[sessionID]
	out := make([]model.WhiteboardStroke, len(log))
	copy(out, log)
	return out, nil
}

// CountStrokes counts the session's strokes.
func (s *MemoryStore) CountStrokes(ctx context.Context, sessionID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return int64(len(s.strokes[sessionID])), nil
}

// ClearStrokes deletes the session's entire stroke log.
func (s *MemoryStore) ClearStrokes(ctx context.Context, sessionID string, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return 0, ErrSessionNotFound
	}
	removed := int64(len(s.strokes[sessionID]))
	delete(s.strokes, sessionID)
	s.recordEvent(sessionID, userID, model.ActionBoardClear)
	return removed, nil
}

// SaveSnapshot stores the latest snapshot blob on the session.
func (s *MemoryStore) SaveSnapshot(ctx context.Context, sessionID string, userID int64, snapshot string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	sess.Snapshot = &snapshot
	sess.UpdatedAt = time.Now()
	s.recordEvent(sessionID, userID, model.ActionSnapshotSave)
	return nil
}

// Events returns the session's audit log. Test helper; the GORM store reads
// these rows through SQL instead.
func (s *MemoryStore) Events(sessionID string) []model.WhiteboardEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.events[sessionID]
	out := make([]model.WhiteboardEvent, len(log))
	copy(out, log)
	return out
}

func (s *MemoryStore) recordEvent(sessionID string, userID int64, action string) {
	s.nextEventID++
	s.events[sessionID] = append(s.events[sessionID], model.WhiteboardEvent{
		ID:        s.nextEventID,
		SessionID: sessionID,
		SenderID:  &userID,
		Action:    action,
		Payload:   "{}",
		CreatedAt: time.Now(),
	})
}
