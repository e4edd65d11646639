package store

import (
	"context"
	"encoding/json"
	"errors"

	"courseboard-backend/internal/model"
)

var (
	ErrSessionNotFound = errors.New("whiteboard session not found")
)

// Store is the durable record of whiteboard sessions and their stroke logs.
//
// AppendStroke and ClearStrokes for the same session are serialized by every
// implementation: an append racing a clear lands either wholly before or
// wholly after it, never half-applied. Payloads are opaque; the store never
// validates stroke shape.
type Store interface {
	GetSession(ctx context.Context, id string) (*model.WhiteboardSession, error)
	CreateSession(ctx context.Context, courseID, ownerID int64, title string) (*model.WhiteboardSession, error)
	ListCourseSessions(ctx context.Context, courseID int64) ([]model.WhiteboardSession, error)
	SetActive(ctx context.Context, id string, active bool) error
	UpdateTitle(ctx context.Context, id, title string) error
	DeleteSession(ctx context.Context, id string) error

	AppendStroke(ctx context.Context, sessionID string, userID int64, data json.RawMessage) (*model.WhiteboardStroke, error)
	ListStrokes(ctx context.Context, sessionID string) ([]model.WhiteboardStroke, error)
	CountStrokes(ctx context.Context, sessionID string) (int64, error)
	ClearStrokes(ctx context.Context, sessionID string, userID int64) (int64, error)
	SaveSnapshot(ctx context.Context, sessionID string, userID int64, snapshot string) error
}
