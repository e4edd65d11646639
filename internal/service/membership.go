package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"courseboard-backend/internal/model"
)

var ErrUserNotFound = errors.New("user not found")

// MembershipOracle answers course-membership lookups. The Gate consumes it
// read-only; it never mutates membership.
type MembershipOracle interface {
	// RoleFor returns the user's role in the course, if any.
	RoleFor(ctx context.Context, courseID, userID int64) (model.MembershipRole, bool, error)
}

// UserDirectory resolves an authenticated user id to its account record.
type UserDirectory interface {
	GetUser(ctx context.Context, userID int64) (*model.User, error)
}

// MembershipService is the database-backed oracle and user directory.
type MembershipService struct {
	db *gorm.DB
}

// NewMembershipService creates a MembershipService.
func NewMembershipService(db *gorm.DB) *MembershipService {
	return &MembershipService{db: db}
}

// RoleFor returns the user's role in the course, if any.
func (s *MembershipService) RoleFor(ctx context.Context, courseID, userID int64) (model.MembershipRole, bool, error) {
	var membership model.CourseMembership
	err := s.db.WithContext(ctx).
		Where("course_id = ? AND user_id = ?", courseID, userID).
		First(&membership).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return membership.Role, true, nil
}

// GetUser loads one user by id.
func (s *MembershipService) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}
