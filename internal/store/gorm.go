package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"courseboard-backend/internal/model"
)

// GormStore is the Postgres-backed Store.
type GormStore struct {
	db *gorm.DB

	// One mutex per session id, created on first use. Serializes append vs.
	// clear within this process; the surrounding transaction keeps each
	// operation atomic in the database.
	locks sync.Map
}

// NewGormStore creates a GormStore.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) sessionLock(id string) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// GetSession loads one session by id.
func (s *GormStore) GetSession(ctx context.Context, id string) (*model.WhiteboardSession, error) {
	var sess model.WhiteboardSession
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&sess).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &sess, nil
}

// CreateSession inserts a new session owned by the given user.
func (s *GormStore) CreateSession(ctx context.Context, courseID, ownerID int64, title string) (*model.WhiteboardSession, error) {
	sess := model.WhiteboardSession{
		ID:       uuid.New().String(),
		CourseID: courseID,
		OwnerID:  ownerID,
		Title:    title,
		IsActive: true,
	}
	if err := s.db.WithContext(ctx).Create(&sess).Error; err != nil {
		return nil, err
	}
	return &sess, nil
}

// ListCourseSessions returns a course's sessions, newest first.
func (s *GormStore) ListCourseSessions(ctx context.Context, courseID int64) ([]model.WhiteboardSession, error) {
	var sessions []model.WhiteboardSession
	err := s.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// SetActive flips the session's active flag.
func (s *GormStore) SetActive(ctx context.Context, id string, active bool) error {
	res := s.db.WithContext(ctx).
		Model(&model.WhiteboardSession{}).
		Where("id = ?", id).
		Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// UpdateTitle renames the session.
func (s *GormStore) UpdateTitle(ctx context.Context, id, title string) error {
	res := s.db.WithContext(ctx).
		Model(&model.WhiteboardSession{}).
		Where("id = ?", id).
		Update("title", title)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteSession removes the session; strokes and events go with it via
// ON DELETE CASCADE.
func (s *GormStore) DeleteSession(ctx context.Context, id string) error {
	lock := s.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&model.WhiteboardSession{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	s.locks.Delete(id)
	return nil
}

// AppendStroke appends one stroke at the next sequence position and records
// the audit event in the same transaction.
func (s *GormStore) AppendStroke(ctx context.Context, sessionID string, userID int64, data json.RawMessage) (*model.WhiteboardStroke, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	var stroke model.WhiteboardStroke
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := sessionExists(tx, sessionID); err != nil {
			return err
		}

		var nextSeq int64
		if err := tx.Raw(
			"SELECT COALESCE(MAX(seq), 0) + 1 FROM whiteboard_strokes WHERE session_id = ?",
			sessionID,
		).Scan(&nextSeq).Error; err != nil {
			return err
		}

		stroke = model.WhiteboardStroke{
			SessionID: sessionID,
			UserID:    &userID,
			Seq:       nextSeq,
			Data:      string(data),
		}
		if err := tx.Create(&stroke).Error; err != nil {
			return err
		}

		return appendEvent(tx, sessionID, userID, model.ActionStrokeAppend, map[string]any{
			"stroke": json.RawMessage(data),
		})
	})
	if err != nil {
		return nil, err
	}
	return &stroke, nil
}

// ListStrokes returns the session's strokes in append order.
func (s *GormStore) ListStrokes(ctx context.Context, sessionID string) ([]model.WhiteboardStroke, error) {
	if err := sessionExists(s.db.WithContext(ctx), sessionID); err != nil {
		return nil, err
	}

	var strokes []model.WhiteboardStroke
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("seq ASC").
		Find(&strokes).Error
	if err != nil {
		return nil, err
	}
	return strokes, nil
}

// CountStrokes counts the session's strokes.
func (s *GormStore) CountStrokes(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.WhiteboardStroke{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error
	return count, err
}

// ClearStrokes deletes the session's entire stroke log.
func (s *GormStore) ClearStrokes(ctx context.Context, sessionID string, userID int64) (int64, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := sessionExists(tx, sessionID); err != nil {
			return err
		}

		res := tx.Where("session_id = ?", sessionID).Delete(&model.WhiteboardStroke{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected

		return appendEvent(tx, sessionID, userID, model.ActionBoardClear, map[string]any{
			"removed": removed,
		})
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// SaveSnapshot stores the latest snapshot blob on the session row.
func (s *GormStore) SaveSnapshot(ctx context.Context, sessionID string, userID int64, snapshot string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.WhiteboardSession{}).
			Where("id = ?", sessionID).
			Update("snapshot", snapshot)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrSessionNotFound
		}

		return appendEvent(tx, sessionID, userID, model.ActionSnapshotSave, map[string]any{
			"size": len(snapshot),
		})
	})
}

func sessionExists(tx *gorm.DB, sessionID string) error {
	var count int64
	if err := tx.Model(&model.WhiteboardSession{}).Where("id = ?", sessionID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func appendEvent(tx *gorm.DB, sessionID string, userID int64, action string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	event := model.WhiteboardEvent{
		SessionID: sessionID,
		SenderID:  &userID,
		Action:    action,
		Payload:   string(body),
	}
	return tx.Create(&event).Error
}
