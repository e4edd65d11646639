package hub

import (
	"sync"
	"testing"
)

// fakeConn records every frame written to it.
type fakeConn struct {
	mu     sync.Mutex
	frames []frame
	closed bool
}

type frame struct {
	messageType int
	data        []byte
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frame{messageType, append([]byte(nil), data...)})
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) textFrames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]byte
	for _, fr := range f.frames {
		if fr.messageType == TextMessage {
			out = append(out, fr.data)
		}
	}
	return out
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func TestJoinIsIdempotent(t *testing.T) {
	h := New()
	c := NewClient(1, "alice", &fakeConn{})

	h.Join("s1", c)
	h.Join("s1", c)

	if got := h.MemberCount("s1"); got != 1 {
		t.Errorf("MemberCount = %d, want 1", got)
	}
}

func TestLeaveUnknownClientIsNoop(t *testing.T) {
	h := New()
	c := NewClient(1, "alice", &fakeConn{})

	h.Leave("s1", c)

	h.Join("s1", c)
	h.Leave("s1", NewClient(2, "bob", &fakeConn{}))
	if got := h.MemberCount("s1"); got != 1 {
		t.Errorf("MemberCount = %d, want 1", got)
	}
}

func TestLeavePrunesEmptyRoom(t *testing.T) {
	h := New()
	c := NewClient(1, "alice", &fakeConn{})

	h.Join("s1", c)
	if got := h.RoomCount(); got != 1 {
		t.Fatalf("RoomCount = %d, want 1", got)
	}

	h.Leave("s1", c)
	if got := h.RoomCount(); got != 0 {
		t.Errorf("RoomCount after leave = %d, want 0", got)
	}
}

func TestBroadcastReachesWholeRoomOnly(t *testing.T) {
	h := New()
	a, b, other := &fakeConn{}, &fakeConn{}, &fakeConn{}
	h.Join("s1", NewClient(1, "alice", a))
	h.Join("s1", NewClient(2, "bob", b))
	h.Join("s2", NewClient(3, "carol", other))

	h.Broadcast("s1", []byte(`{"type":"stroke.append"}`))

	for name, conn := range map[string]*fakeConn{"alice": a, "bob": b} {
		frames := conn.textFrames()
		if len(frames) != 1 {
			t.Errorf("%s received %d frames, want 1", name, len(frames))
			continue
		}
		if string(frames[0]) != `{"type":"stroke.append"}` {
			t.Errorf("%s received %q", name, frames[0])
		}
	}
	if frames := other.textFrames(); len(frames) != 0 {
		t.Errorf("other room received %d frames, want 0", len(frames))
	}
}

func TestBroadcastToEmptyRoom(t *testing.T) {
	h := New()
	h.Broadcast("nope", []byte("x")) // must not panic
}

func TestCloseRoomNotifiesAndDisconnects(t *testing.T) {
	h := New()
	a, b := &fakeConn{}, &fakeConn{}
	h.Join("s1", NewClient(1, "alice", a))
	h.Join("s1", NewClient(2, "bob", b))

	notice := []byte(`{"type":"session.close"}`)
	closeFrame := []byte{0x03, 0xe8}
	h.CloseRoom("s1", notice, closeFrame)

	if got := h.RoomCount(); got != 0 {
		t.Errorf("RoomCount = %d, want 0", got)
	}
	for name, conn := range map[string]*fakeConn{"alice": a, "bob": b} {
		if !conn.isClosed() {
			t.Errorf("%s connection not closed", name)
		}
		frames := conn.textFrames()
		if len(frames) != 1 || string(frames[0]) != string(notice) {
			t.Errorf("%s did not receive close notice: %v", name, frames)
		}
	}
}

func TestJoinRacingLastLeaveIsNeverLost(t *testing.T) {
	h := New()

	// A join landing while the last member leaves must survive the
	// empty-room prune: the new client has to be visible to Members
	// afterwards, not stranded in a dropped room.
	for i := 0; i < 2000; i++ {
		c1 := NewClient(1, "alice", &fakeConn{})
		h.Join("s1", c1)

		c2 := NewClient(2, "bob", &fakeConn{})
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.Leave("s1", c1)
		}()
		go func() {
			defer wg.Done()
			h.Join("s1", c2)
		}()
		wg.Wait()

		if got := h.MemberCount("s1"); got != 1 {
			t.Fatalf("iteration %d: MemberCount = %d, want 1", i, got)
		}
		if members := h.Members("s1"); len(members) != 1 || members[0] != c2 {
			t.Fatalf("iteration %d: c2 not in room after join", i)
		}
		h.Leave("s1", c2)
	}
}

func TestConcurrentJoinLeaveBroadcast(t *testing.T) {
	h := New()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			c := NewClient(id, "user", &fakeConn{})
			h.Join("s1", c)
			h.Broadcast("s1", []byte("ping"))
			h.Leave("s1", c)
		}(int64(i))
	}
	wg.Wait()

	if got := h.MemberCount("s1"); got != 0 {
		t.Errorf("MemberCount = %d, want 0", got)
	}
}

func TestMembersSnapshot(t *testing.T) {
	h := New()
	c1 := NewClient(1, "alice", &fakeConn{})
	c2 := NewClient(2, "bob", &fakeConn{})
	h.Join("s1", c1)
	h.Join("s1", c2)

	members := h.Members("s1")
	if len(members) != 2 {
		t.Fatalf("len(Members) = %d, want 2", len(members))
	}

	// Mutating the room after the snapshot must not affect it.
	h.Leave("s1", c1)
	if len(members) != 2 {
		t.Errorf("snapshot changed after leave")
	}

	if h.Members("missing") != nil {
		t.Error("Members of unknown room should be nil")
	}
}
