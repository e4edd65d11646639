package model

import (
	"time"
)

// WhiteboardSession is one collaborative whiteboard room scoped to a course.
type WhiteboardSession struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	CourseID  int64     `gorm:"not null;index" json:"course_id"`
	OwnerID   int64     `gorm:"not null" json:"owner_id"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	Snapshot  *string   `gorm:"type:text" json:"snapshot,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	Course  Course             `gorm:"foreignKey:CourseID" json:"course,omitempty"`
	Owner   User               `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Strokes []WhiteboardStroke `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"strokes,omitempty"`
	Events  []WhiteboardEvent  `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"events,omitempty"`
}

func (WhiteboardSession) TableName() string {
	return "whiteboard_sessions"
}

// WhiteboardStroke is one drawing action. Strokes are append-only; the only
// removal path is a whole-board clear or session deletion. Data is an opaque
// JSON blob the engine never inspects.
type WhiteboardStroke struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID string    `gorm:"type:uuid;not null;index:idx_session_seq" json:"session_id"`
	UserID    *int64    `json:"user_id,omitempty"` // null once the author is removed
	Seq       int64     `gorm:"not null;index:idx_session_seq" json:"seq"`
	Data      string    `gorm:"type:jsonb;not null" json:"data"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relations
	Session WhiteboardSession `gorm:"foreignKey:SessionID" json:"session,omitempty"`
	User    *User             `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (WhiteboardStroke) TableName() string {
	return "whiteboard_strokes"
}

// WhiteboardEvent is the audit log of accepted mutating events on a session.
type WhiteboardEvent struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID string    `gorm:"type:uuid;not null;index" json:"session_id"`
	SenderID  *int64    `json:"sender_id,omitempty"`
	Action    string    `gorm:"type:varchar(32);not null" json:"action"`
	Payload   string    `gorm:"type:jsonb;not null;default:'{}'" json:"payload"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relations
	Session WhiteboardSession `gorm:"foreignKey:SessionID" json:"session,omitempty"`
	Sender  *User             `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}

func (WhiteboardEvent) TableName() string {
	return "whiteboard_events"
}
