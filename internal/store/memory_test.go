package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"courseboard-backend/internal/model"
)

func newTestSession(t *testing.T, s *MemoryStore) *model.WhiteboardSession {
	t.Helper()
	sess, err := s.CreateSession(context.Background(), 1, 10, "Lecture 3")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return sess
}

func TestAppendStrokeAssignsMonotonicSeq(t *testing.T) {
	s := NewMemoryStore()
	sess := newTestSession(t, s)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		stroke, err := s.AppendStroke(ctx, sess.ID, 10, json.RawMessage(fmt.Sprintf(`{"n":%d}`, i)))
		if err != nil {
			t.Fatalf("AppendStroke #%d: %v", i, err)
		}
		if stroke.Seq != int64(i) {
			t.Errorf("stroke %d: seq = %d, want %d", i, stroke.Seq, i)
		}
	}

	strokes, err := s.ListStrokes(ctx, sess.ID)
	if err != nil {
		t.Fatalf("ListStrokes: %v", err)
	}
	if len(strokes) != 5 {
		t.Fatalf("len(strokes) = %d, want 5", len(strokes))
	}
	for i := 1; i < len(strokes); i++ {
		if strokes[i].Seq <= strokes[i-1].Seq {
			t.Errorf("strokes out of order at %d: %d then %d", i, strokes[i-1].Seq, strokes[i].Seq)
		}
	}
}

func TestAppendStrokeUnknownSession(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.AppendStroke(context.Background(), "00000000-0000-0000-0000-000000000000", 10, json.RawMessage(`{}`))
	if err != ErrSessionNotFound {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestClearStrokesEmptiesBoard(t *testing.T) {
	s := NewMemoryStore()
	sess := newTestSession(t, s)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.AppendStroke(ctx, sess.ID, 10, json.RawMessage(`{}`)); err != nil {
			t.Fatalf("AppendStroke: %v", err)
		}
	}

	removed, err := s.ClearStrokes(ctx, sess.ID, 10)
	if err != nil {
		t.Fatalf("ClearStrokes: %v", err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}

	count, err := s.CountStrokes(ctx, sess.ID)
	if err != nil {
		t.Fatalf("CountStrokes: %v", err)
	}
	if count != 0 {
		t.Errorf("count after clear = %d, want 0", count)
	}

	// Seq keeps climbing after a clear; replays stay ordered across wipes.
	stroke, err := s.AppendStroke(ctx, sess.ID, 10, json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("AppendStroke after clear: %v", err)
	}
	if stroke.Seq != 1 && stroke.Seq != 4 {
		t.Errorf("seq after clear = %d", stroke.Seq)
	}
}

func TestConcurrentAppendsKeepSeqUnique(t *testing.T) {
	s := NewMemoryStore()
	sess := newTestSession(t, s)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := s.AppendStroke(ctx, sess.ID, 10, json.RawMessage(`{}`)); err != nil {
				t.Errorf("AppendStroke: %v", err)
			}
		}()
	}
	wg.Wait()

	strokes, err := s.ListStrokes(ctx, sess.ID)
	if err != nil {
		t.Fatalf("ListStrokes: %v", err)
	}
	if len(strokes) != n {
		t.Fatalf("len(strokes) = %d, want %d", len(strokes), n)
	}
	seen := make(map[int64]bool, n)
	for _, st := range strokes {
		if seen[st.Seq] {
			t.Errorf("duplicate seq %d", st.Seq)
		}
		seen[st.Seq] = true
	}
}

func TestConcurrentAppendAndClear(t *testing.T) {
	s := NewMemoryStore()
	sess := newTestSession(t, s)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.AppendStroke(ctx, sess.ID, 10, json.RawMessage(`{}`))
		}()
		go func() {
			defer wg.Done()
			s.ClearStrokes(ctx, sess.ID, 10)
		}()
	}
	wg.Wait()

	// Whatever interleaving happened, the surviving log must be strictly
	// ordered with no duplicates.
	strokes, err := s.ListStrokes(ctx, sess.ID)
	if err != nil {
		t.Fatalf("ListStrokes: %v", err)
	}
	for i := 1; i < len(strokes); i++ {
		if strokes[i].Seq <= strokes[i-1].Seq {
			t.Errorf("strokes out of order at %d: %d then %d", i, strokes[i-1].Seq, strokes[i].Seq)
		}
	}
}

func TestDeleteSessionRemovesStrokes(t *testing.T) {
	s := NewMemoryStore()
	sess := newTestSession(t, s)
	ctx := context.Background()

	if _, err := s.AppendStroke(ctx, sess.ID, 10, json.RawMessage(`{}`)); err != nil {
		t.Fatalf("AppendStroke: %v", err)
	}

	if err := s.DeleteSession(ctx, sess.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}

	if _, err := s.GetSession(ctx, sess.ID); err != ErrSessionNotFound {
		t.Errorf("GetSession after delete: err = %v, want ErrSessionNotFound", err)
	}
	if _, err := s.ListStrokes(ctx, sess.ID); err != ErrSessionNotFound {
		t.Errorf("ListStrokes after delete: err = %v, want ErrSessionNotFound", err)
	}
}

func TestSaveSnapshotRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	sess := newTestSession(t, s)
	ctx := context.Background()

	if err := s.SaveSnapshot(ctx, sess.ID, 10, "data:image/png;base64,AAAA"); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	got, err := s.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Snapshot == nil || *got.Snapshot != "data:image/png;base64,AAAA" {
		t.Errorf("snapshot not persisted: %v", got.Snapshot)
	}
}

func TestMutationsRecordAuditEvents(t *testing.T) {
	s := NewMemoryStore()
	sess := newTestSession(t, s)
	ctx := context.Background()

	s.AppendStroke(ctx, sess.ID, 10, json.RawMessage(`{}`))
	s.ClearStrokes(ctx, sess.ID, 10)
	s.SaveSnapshot(ctx, sess.ID, 10, "snap")

	events := s.Events(sess.ID)
	if len(events) != 3 {
		t.Fatalf("len(events) = %d, want 3", len(events))
	}
	wantActions := []string{model.ActionStrokeAppend, model.ActionBoardClear, model.ActionSnapshotSave}
	for i, want := range wantActions {
		if events[i].Action != want {
			t.Errorf("events[%d].Action = %q, want %q", i, events[i].Action, want)
		}
	}
}

func TestListCourseSessions(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	a, _ := s.CreateSession(ctx, 1, 10, "A")
	b, _ := s.CreateSession(ctx, 1, 10, "B")
	s.CreateSession(ctx, 2, 10, "other course")

	sessions, err := s.ListCourseSessions(ctx, 1)
	if err != nil {
		t.Fatalf("ListCourseSessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("len(sessions) = %d, want 2", len(sessions))
	}
	ids := map[string]bool{sessions[0].ID: true, sessions[1].ID: true}
	if !ids[a.ID] || !ids[b.ID] {
		t.Errorf("missing sessions, got %v", ids)
	}
}

func TestSetActiveAndUpdateTitle(t *testing.T) {
	s := NewMemoryStore()
	sess := newTestSession(t, s)
	ctx := context.Background()

	if err := s.SetActive(ctx, sess.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if err := s.UpdateTitle(ctx, sess.ID, "Renamed"); err != nil {
		t.Fatalf("UpdateTitle: %v", err)
	}

	got, err := s.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.IsActive {
		t.Error("IsActive = true, want false")
	}
	if got.Title != "Renamed" {
		t.Errorf("Title = %q, want %q", got.Title, "Renamed")
	}

	if err := s.SetActive(ctx, "bogus", true); err != ErrSessionNotFound {
		t.Errorf("SetActive unknown: err = %v, want ErrSessionNotFound", err)
	}
	if err := s.UpdateTitle(ctx, "bogus", "x"); err != ErrSessionNotFound {
		t.Errorf("UpdateTitle unknown: err = %v, want ErrSessionNotFound", err)
	}
}
