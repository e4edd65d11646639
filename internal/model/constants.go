package model

// MembershipRole is a user's role within a course.
type MembershipRole string

const (
	RoleInstructor        MembershipRole = "instructor"
	RoleTeachingAssistant MembershipRole = "teaching_assistant"
	RoleStudent           MembershipRole = "student"
)

func (r MembershipRole) String() string {
	return string(r)
}

// IsTeaching reports whether the role carries session-management privilege.
func (r MembershipRole) IsTeaching() bool {
	return r == RoleInstructor || r == RoleTeachingAssistant
}

// Whiteboard actions accepted over the wire.
const (
	ActionStrokeAppend = "stroke.append"
	ActionBoardClear   = "board.clear"
	ActionSnapshotSave = "snapshot.save"
)

// Server-to-client message types.
const (
	TypeSessionInit  = "session.init"
	TypeSessionClose = "session.close"
	TypeError        = "error"
)

// WebSocket close codes, matching the platform's existing clients.
const (
	CloseUnauthorized = 4401 // no valid identity
	CloseForbidden    = 4403 // authenticated but not allowed
	CloseNotFound     = 4404 // unknown session id
)
