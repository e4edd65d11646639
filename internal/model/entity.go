package model

import (
	"time"
)

// User is an authenticated account. Accounts are provisioned by the identity
// provider; this service only reads them.
type User struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Email       string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Nickname    string    `gorm:"type:varchar(100);not null" json:"nickname"`
	IsStaff     bool      `gorm:"default:false" json:"is_staff"`
	IsSuperuser bool      `gorm:"default:false" json:"is_superuser"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relations
	Memberships []CourseMembership `gorm:"foreignKey:UserID" json:"memberships,omitempty"`
}

func (User) TableName() string {
	return "users"
}

// Course is the unit whiteboard sessions are scoped to.
type Course struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Title        string    `gorm:"type:varchar(255);not null" json:"title"`
	Code         string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"code"`
	InstructorID int64     `gorm:"not null" json:"instructor_id"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relations
	Instructor  User                `gorm:"foreignKey:InstructorID" json:"instructor,omitempty"`
	Memberships []CourseMembership  `gorm:"foreignKey:CourseID" json:"memberships,omitempty"`
	Sessions    []WhiteboardSession `gorm:"foreignKey:CourseID" json:"sessions,omitempty"`
}

func (Course) TableName() string {
	return "courses"
}

// CourseMembership maps (user, course) to a role. One row per pair.
type CourseMembership struct {
	ID       int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	CourseID int64          `gorm:"not null;uniqueIndex:idx_course_user" json:"course_id"`
	UserID   int64          `gorm:"not null;uniqueIndex:idx_course_user" json:"user_id"`
	Role     MembershipRole `gorm:"type:varchar(32);not null" json:"role"`
	JoinedAt time.Time      `gorm:"autoCreateTime" json:"joined_at"`

	// Relations
	Course Course `gorm:"foreignKey:CourseID" json:"course,omitempty"`
	User   User   `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (CourseMembership) TableName() string {
	return "course_memberships"
}
