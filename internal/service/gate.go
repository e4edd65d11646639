package service

import (
	"context"

	"courseboard-backend/internal/model"
)

// Gate makes every whiteboard access decision in one place. It never
// persists anything; policy lives here instead of being scattered through
// handlers.
type Gate struct {
	oracle MembershipOracle

	// clearRequiresManage narrows board.clear from any member to
	// staff/owner/instructor/TA.
	clearRequiresManage bool
}

// NewGate creates a Gate with the given clear-privilege policy.
func NewGate(oracle MembershipOracle, clearRequiresManage bool) *Gate {
	return &Gate{oracle: oracle, clearRequiresManage: clearRequiresManage}
}

func (g *Gate) isPrivileged(user *model.User) bool {
	return user.IsStaff || user.IsSuperuser
}

// CanConnect reports whether the user may join and view the session: staff,
// the session owner, or any course member.
func (g *Gate) CanConnect(ctx context.Context, user *model.User, sess *model.WhiteboardSession) (bool, error) {
	if user == nil {
		return false, nil
	}
	if g.isPrivileged(user) || user.ID == sess.OwnerID {
		return true, nil
	}
	_, isMember, err := g.oracle.RoleFor(ctx, sess.CourseID, user.ID)
	if err != nil {
		return false, err
	}
	return isMember, nil
}

// CanMutate reports whether the user may submit strokes and snapshots. Any
// connected, authorized member may.
func (g *Gate) CanMutate(ctx context.Context, user *model.User, sess *model.WhiteboardSession) (bool, error) {
	return g.CanConnect(ctx, user, sess)
}

// CanClear reports whether the user may wipe the board. Follows CanMutate
// unless policy narrows it to CanManage.
func (g *Gate) CanClear(ctx context.Context, user *model.User, sess *model.WhiteboardSession) (bool, error) {
	if g.clearRequiresManage {
		return g.CanManage(ctx, user, sess)
	}
	return g.CanMutate(ctx, user, sess)
}

// CanManage reports whether the user may retitle, deactivate, or delete the
// session: staff, the owner, or instructor/TA membership.
func (g *Gate) CanManage(ctx context.Context, user *model.User, sess *model.WhiteboardSession) (bool, error) {
	if user == nil {
		return false, nil
	}
	if g.isPrivileged(user) || user.ID == sess.OwnerID {
		return true, nil
	}
	role, isMember, err := g.oracle.RoleFor(ctx, sess.CourseID, user.ID)
	if err != nil {
		return false, err
	}
	return isMember && role.IsTeaching(), nil
}

// CanCreate reports whether the user may open a new session in the course:
// staff or instructor/TA membership.
func (g *Gate) CanCreate(ctx context.Context, user *model.User, courseID int64) (bool, error) {
	if user == nil {
		return false, nil
	}
	if g.isPrivileged(user) {
		return true, nil
	}
	role, isMember, err := g.oracle.RoleFor(ctx, courseID, user.ID)
	if err != nil {
		return false, err
	}
	return isMember && role.IsTeaching(), nil
}

// CanViewCourse reports whether the user may list a course's sessions:
// staff or any membership.
func (g *Gate) CanViewCourse(ctx context.Context, user *model.User, courseID int64) (bool, error) {
	if user == nil {
		return false, nil
	}
	if g.isPrivileged(user) {
		return true, nil
	}
	_, isMember, err := g.oracle.RoleFor(ctx, courseID, user.ID)
	if err != nil {
		return false, err
	}
	return isMember, nil
}
