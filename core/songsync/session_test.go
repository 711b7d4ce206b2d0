package songsync

import (
	"errors"
	"testing"
	"time"

	"TandemFM/model"
)

func TestSessionConnectRequiresIdentity(t *testing.T) {
	s := NewSession(0, time.Hour)
	err := s.Connect("room-1")
	if !errors.Is(err, model.ErrAuthRequired) {
		t.Fatalf("Connect without identity returned %v, want ErrAuthRequired", err)
	}
}

func TestSessionConnectRequiresRoom(t *testing.T) {
	s := NewSession(1, time.Hour)
	if err := s.Connect(""); err == nil {
		t.Fatal("Connect with empty room id must fail")
	}
}

func TestSessionConnectTwiceFails(t *testing.T) {
	s := NewSession(1, time.Hour)
	if err := s.Connect("room-1"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := s.Connect("room-2"); err == nil {
		t.Fatal("second Connect must fail while connected")
	}
}

func TestSessionConnectState(t *testing.T) {
	s := NewSession(1, time.Hour)
	if err := s.Connect("room-1"); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	st := s.State()
	if !st.IsConnected || !st.IsSyncing || st.RoomID != "room-1" {
		t.Fatalf("state after connect = %+v", st)
	}
	if st.PartnerOnline {
		t.Fatal("partner must not be online before the presence wait elapses")
	}
}

func TestSessionPresenceHeuristic(t *testing.T) {
	s := NewSession(1, 10*time.Millisecond)
	if err := s.Connect("room-1"); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for !s.State().PartnerOnline {
		if time.Now().After(deadline) {
			t.Fatal("partner never reported online")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSessionDisconnectCancelsPresenceWait(t *testing.T) {
	s := NewSession(1, 10*time.Millisecond)
	if err := s.Connect("room-1"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	s.Disconnect()

	time.Sleep(30 * time.Millisecond)
	if st := s.State(); st != (model.SyncState{}) {
		t.Fatalf("state after disconnect = %+v, want zero", st)
	}
}

func TestSessionToggleSyncing(t *testing.T) {
	s := NewSession(1, time.Hour)

	if _, err := s.ToggleSyncing(); err == nil {
		t.Fatal("ToggleSyncing while disconnected must fail")
	}

	if err := s.Connect("room-1"); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	syncing, err := s.ToggleSyncing()
	if err != nil || syncing {
		t.Fatalf("first toggle = %v, %v; want paused", syncing, err)
	}
	if st := s.State(); !st.IsConnected {
		t.Fatal("pausing sync must not leave the room")
	}

	syncing, err = s.ToggleSyncing()
	if err != nil || !syncing {
		t.Fatalf("second toggle = %v, %v; want syncing", syncing, err)
	}
}
