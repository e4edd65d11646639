package service

import (
	"context"
	"errors"
	"testing"

	"courseboard-backend/internal/model"
)

// fakeOracle serves canned memberships keyed by course and user.
type fakeOracle struct {
	roles map[int64]map[int64]model.MembershipRole
	err   error
}

func (f *fakeOracle) RoleFor(ctx context.Context, courseID, userID int64) (model.MembershipRole, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	role, ok := f.roles[courseID][userID]
	return role, ok, nil
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{roles: map[int64]map[int64]model.MembershipRole{
		1: {
			100: model.RoleInstructor,
			101: model.RoleTeachingAssistant,
			102: model.RoleStudent,
		},
	}}
}

var testSession = &model.WhiteboardSession{
	ID:       "11111111-1111-1111-1111-111111111111",
	CourseID: 1,
	OwnerID:  100,
	IsActive: true,
}

func TestCanConnect(t *testing.T) {
	gate := NewGate(newFakeOracle(), false)
	ctx := context.Background()

	tests := []struct {
		name string
		user *model.User
		want bool
	}{
		{"instructor member", &model.User{ID: 100}, true},
		{"ta member", &model.User{ID: 101}, true},
		{"student member", &model.User{ID: 102}, true},
		{"non-member", &model.User{ID: 999}, false},
		{"staff non-member", &model.User{ID: 999, IsStaff: true}, true},
		{"superuser non-member", &model.User{ID: 999, IsSuperuser: true}, true},
		{"nil user", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := gate.CanConnect(ctx, tt.user, testSession)
			if err != nil {
				t.Fatalf("CanConnect: %v", err)
			}
			if got != tt.want {
				t.Errorf("CanConnect = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanConnectOwnerWithoutMembership(t *testing.T) {
	gate := NewGate(newFakeOracle(), false)
	sess := &model.WhiteboardSession{ID: testSession.ID, CourseID: 1, OwnerID: 999}

	got, err := gate.CanConnect(context.Background(), &model.User{ID: 999}, sess)
	if err != nil {
		t.Fatalf("CanConnect: %v", err)
	}
	if !got {
		t.Error("session owner denied connect")
	}
}

func TestCanManage(t *testing.T) {
	gate := NewGate(newFakeOracle(), false)
	ctx := context.Background()

	tests := []struct {
		name string
		user *model.User
		want bool
	}{
		{"instructor", &model.User{ID: 100}, true},
		{"teaching assistant", &model.User{ID: 101}, true},
		{"student", &model.User{ID: 102}, false},
		{"non-member", &model.User{ID: 999}, false},
		{"staff", &model.User{ID: 999, IsStaff: true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := gate.CanManage(ctx, tt.user, testSession)
			if err != nil {
				t.Fatalf("CanManage: %v", err)
			}
			if got != tt.want {
				t.Errorf("CanManage = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanClearFollowsPolicy(t *testing.T) {
	ctx := context.Background()
	student := &model.User{ID: 102}

	open := NewGate(newFakeOracle(), false)
	got, err := open.CanClear(ctx, student, testSession)
	if err != nil {
		t.Fatalf("CanClear: %v", err)
	}
	if !got {
		t.Error("open policy: student denied clear")
	}

	narrow := NewGate(newFakeOracle(), true)
	got, err = narrow.CanClear(ctx, student, testSession)
	if err != nil {
		t.Fatalf("CanClear: %v", err)
	}
	if got {
		t.Error("manage-only policy: student allowed clear")
	}

	// Teaching roles clear under either policy.
	got, err = narrow.CanClear(ctx, &model.User{ID: 101}, testSession)
	if err != nil {
		t.Fatalf("CanClear: %v", err)
	}
	if !got {
		t.Error("manage-only policy: TA denied clear")
	}
}

func TestCanCreate(t *testing.T) {
	gate := NewGate(newFakeOracle(), false)
	ctx := context.Background()

	tests := []struct {
		name string
		user *model.User
		want bool
	}{
		{"instructor", &model.User{ID: 100}, true},
		{"ta", &model.User{ID: 101}, true},
		{"student", &model.User{ID: 102}, false},
		{"non-member", &model.User{ID: 999}, false},
		{"superuser", &model.User{ID: 999, IsSuperuser: true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := gate.CanCreate(ctx, tt.user, 1)
			if err != nil {
				t.Fatalf("CanCreate: %v", err)
			}
			if got != tt.want {
				t.Errorf("CanCreate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanViewCourse(t *testing.T) {
	gate := NewGate(newFakeOracle(), false)
	ctx := context.Background()

	got, err := gate.CanViewCourse(ctx, &model.User{ID: 102}, 1)
	if err != nil {
		t.Fatalf("CanViewCourse: %v", err)
	}
	if !got {
		t.Error("student denied course view")
	}

	got, err = gate.CanViewCourse(ctx, &model.User{ID: 102}, 2)
	if err != nil {
		t.Fatalf("CanViewCourse: %v", err)
	}
	if got {
		t.Error("student allowed to view a course they are not in")
	}
}

func TestGatePropagatesOracleErrors(t *testing.T) {
	oracleErr := errors.New("db down")
	gate := NewGate(&fakeOracle{err: oracleErr}, false)
	ctx := context.Background()
	member := &model.User{ID: 102}

	if _, err := gate.CanConnect(ctx, member, testSession); !errors.Is(err, oracleErr) {
		t.Errorf("CanConnect err = %v, want %v", err, oracleErr)
	}
	if _, err := gate.CanManage(ctx, member, testSession); !errors.Is(err, oracleErr) {
		t.Errorf("CanManage err = %v, want %v", err, oracleErr)
	}

	// Privileged users never touch the oracle, so they stay usable when
	// membership lookups fail.
	got, err := gate.CanConnect(ctx, &model.User{ID: 1, IsStaff: true}, testSession)
	if err != nil || !got {
		t.Errorf("staff CanConnect = (%v, %v), want (true, nil)", got, err)
	}
}
