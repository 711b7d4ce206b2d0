package room

import (
	"context"
	"sync"
	"testing"
	"time"

	"TandemFM/model"
	"TandemFM/realtime"
)

type recordingSink struct {
	mu       sync.Mutex
	playback map[string]*model.PlaybackSnapshot
	views    map[string]*model.ViewSnapshot
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		playback: make(map[string]*model.PlaybackSnapshot),
		views:    make(map[string]*model.ViewSnapshot),
	}
}

func (s *recordingSink) SavePlayback(ctx context.Context, roomID string, snap *model.PlaybackSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playback[roomID] = snap
	return nil
}

func (s *recordingSink) SaveView(ctx context.Context, roomID string, snap *model.ViewSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.views[roomID] = snap
	return nil
}

func TestSnapshotEventWritesDurableSink(t *testing.T) {
	h := NewHub(nil)
	sink := newRecordingSink()
	h.States = sink

	playback, err := realtime.Marshal(model.PlaybackSnapshot{
		RoomID:   "r1",
		SenderID: 1,
		TrackID:  "t1",
		State:    model.PlaybackState{IsPlaying: true, CurrentTrackIndex: 0},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	h.snapshotEvent(&realtime.Event{
		Type:     realtime.EventPlayback,
		RoomID:   "r1",
		SenderID: 1,
		Payload:  playback,
	})

	view, err := realtime.Marshal(model.ViewSnapshot{
		RoomID:   "r1",
		SenderID: 2,
		State:    model.ViewState{IsFullscreenBackground: true},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	h.snapshotEvent(&realtime.Event{
		Type:     realtime.EventView,
		RoomID:   "r1",
		SenderID: 2,
		Payload:  view,
	})

	if snap := sink.playback["r1"]; snap == nil || snap.TrackID != "t1" || !snap.State.IsPlaying {
		t.Fatalf("stored playback = %+v", sink.playback["r1"])
	}
	if snap := sink.views["r1"]; snap == nil || !snap.State.IsFullscreenBackground {
		t.Fatalf("stored view = %+v", sink.views["r1"])
	}
}

func TestSnapshotEventIgnoresChatAndGarbage(t *testing.T) {
	h := NewHub(nil)
	sink := newRecordingSink()
	h.States = sink

	h.snapshotEvent(&realtime.Event{Type: realtime.EventChat, RoomID: "r1", Payload: []byte(`{"text":"hi"}`)})
	h.snapshotEvent(&realtime.Event{Type: realtime.EventPlayback, RoomID: "r1", Payload: []byte(`not json`)})

	if len(sink.playback) != 0 || len(sink.views) != 0 {
		t.Fatalf("sink recorded %d playback, %d view snapshots", len(sink.playback), len(sink.views))
	}
}

func TestRegisterEnforcesRoomCapacity(t *testing.T) {
	h := NewHub(nil)
	go h.Run()
	defer h.Stop()

	join := func(userID int64) bool {
		return h.Register(&Client{Hub: h, RoomID: "r1", UserID: userID, Send: make(chan []byte, 1)})
	}

	if !join(1) || !join(2) {
		t.Fatal("first two members were rejected")
	}

	// Wait for the hub loop to process both registrations.
	deadline := time.Now().Add(2 * time.Second)
	for {
		h.mu.RLock()
		n := len(h.rooms["r1"])
		h.mu.RUnlock()
		if n == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("room has %d members, want 2", n)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if join(3) {
		t.Fatal("third member was admitted to a full room")
	}
	if !join(2) {
		t.Fatal("existing member was rejected on reconnect")
	}
}
