package songsync

import (
	"fmt"
	"sync"
	"time"

	"TandemFM/model"
)

// Session tracks one client's room membership: the connection flag, the
// paired room id, whether mirroring is active, and the partner presence cue.
//
// Invariants: IsSyncing implies IsConnected; RoomID is non-empty exactly when
// IsConnected.
type Session struct {
	userID       int64
	presenceWait time.Duration

	mu            sync.Mutex
	state         model.SyncState
	presenceTimer *time.Timer

	// Notify, when set, receives short user-facing cues ("Connected with
	// partner"). Optional.
	Notify func(msg string)
}

// NewSession creates a disconnected session for a user. presenceWait bounds
// the wait before the partner is assumed online; zero means 1.5s.
func NewSession(userID int64, presenceWait time.Duration) *Session {
	if presenceWait <= 0 {
		presenceWait = 1500 * time.Millisecond
	}
	return &Session{userID: userID, presenceWait: presenceWait}
}

// UserID returns the local user identity, zero when unauthenticated.
func (s *Session) UserID() int64 {
	return s.userID
}

// State returns the current sync state snapshot.
func (s *Session) State() model.SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect marks the session joined to a room with mirroring active. The
// partner is reported online once the presence wait elapses without a
// teardown; this is a UX heuristic, not a liveness guarantee.
func (s *Session) Connect(roomID string) error {
	if s.userID == 0 {
		return fmt.Errorf("%w: connect without identity", model.ErrAuthRequired)
	}
	if roomID == "" {
		return fmt.Errorf("%w: empty room id", model.ErrRoomCreateFailed)
	}

	s.mu.Lock()
	if s.state.IsConnected {
		s.mu.Unlock()
		return fmt.Errorf("already connected to room %s", s.state.RoomID)
	}
	s.state = model.SyncState{
		IsConnected: true,
		RoomID:      roomID,
		IsSyncing:   true,
	}
	s.presenceTimer = time.AfterFunc(s.presenceWait, s.markPartnerOnline)
	notify := s.Notify
	s.mu.Unlock()

	if notify != nil {
		notify("Connecting with partner...")
	}
	return nil
}

func (s *Session) markPartnerOnline() {
	s.mu.Lock()
	if !s.state.IsConnected {
		s.mu.Unlock()
		return
	}
	s.state.PartnerOnline = true
	notify := s.Notify
	s.mu.Unlock()

	if notify != nil {
		notify("Connected with partner! You can now sync music.")
	}
}

// Disconnect resets the session to its disconnected defaults and cancels the
// pending presence wait.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.presenceTimer != nil {
		s.presenceTimer.Stop()
		s.presenceTimer = nil
	}
	s.state = model.SyncState{}
	notify := s.Notify
	s.mu.Unlock()

	if notify != nil {
		notify("Disconnected from partner")
	}
}

// ToggleSyncing pauses or resumes mirroring without leaving the room.
// Returns the new syncing flag.
func (s *Session) ToggleSyncing() (bool, error) {
	s.mu.Lock()
	if !s.state.IsConnected {
		s.mu.Unlock()
		return false, fmt.Errorf("not connected to a room")
	}
	s.state.IsSyncing = !s.state.IsSyncing
	syncing := s.state.IsSyncing
	notify := s.Notify
	s.mu.Unlock()

	if notify != nil {
		if syncing {
			notify("Music syncing enabled")
		} else {
			notify("Music syncing paused")
		}
	}
	return syncing, nil
}

// markSynced records the wall clock of the last outbound publish.
func (s *Session) markSynced(ts int64) {
	s.mu.Lock()
	s.state.LastSyncTime = ts
	s.mu.Unlock()
}
