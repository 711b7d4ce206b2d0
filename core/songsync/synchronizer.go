package songsync

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"time"

	"TandemFM/core/player"
	"TandemFM/logger"
	"TandemFM/model"
	"TandemFM/realtime"
)

// SnapshotStore persists a room's last playback snapshot so a reconnecting
// client can recover the shared state. Optional; cache.RoomCache implements it.
type SnapshotStore interface {
	SavePlayback(ctx context.Context, roomID string, snap *model.PlaybackSnapshot) error
	LoadPlayback(ctx context.Context, roomID string) (*model.PlaybackSnapshot, error)
}

// Options tunes a Synchronizer.
type Options struct {
	// Interval between periodic snapshot publishes. Zero means one second.
	Interval time.Duration

	// DriftTolerance is the positional dead-band in seconds. Remote/local
	// drift at or below it is left uncorrected so network jitter doesn't
	// cause audible seek stutter. Zero means three seconds.
	DriftTolerance float64

	// Store, when set, enables reconnection recovery.
	Store SnapshotStore

	// Notify, when set, receives short user-facing cues.
	Notify func(msg string)
}

// Synchronizer keeps two clients' playback engines converging on one shared
// state. Outbound: full-state snapshots, published immediately on discrete
// local changes and on a periodic tick for continuous position. Inbound:
// remote snapshots applied through the reconciliation policy. Snapshots are
// not sequence-ordered; convergence relies on the policy being idempotent
// under replay.
type Synchronizer struct {
	engine  *player.Engine
	channel realtime.Channel
	session *Session

	interval time.Duration
	drift    float64
	store    SnapshotStore
	notify   func(string)

	mu   sync.Mutex
	sub  realtime.Subscription
	done chan struct{}
}

// NewSynchronizer wires a synchronizer to an engine, a room channel and a
// session. It registers itself as an engine change listener; changes tagged
// OriginRemote are never re-published.
func NewSynchronizer(engine *player.Engine, channel realtime.Channel, session *Session, opts Options) *Synchronizer {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.DriftTolerance <= 0 {
		opts.DriftTolerance = 3.0
	}

	s := &Synchronizer{
		engine:   engine,
		channel:  channel,
		session:  session,
		interval: opts.Interval,
		drift:    opts.DriftTolerance,
		store:    opts.Store,
		notify:   opts.Notify,
	}
	engine.OnChange(s.onEngineChange)
	return s
}

// Session returns the membership state holder.
func (s *Synchronizer) Session() *Session {
	return s.session
}

// Connect joins a room and activates mirroring: subscribes to the room's
// playback events, recovers the room's last snapshot when a store is
// configured, starts the publish tick, and publishes the current local state.
func (s *Synchronizer) Connect(ctx context.Context, roomID string) error {
	if err := s.session.Connect(roomID); err != nil {
		return err
	}

	sub, err := s.channel.Subscribe(ctx, roomID, realtime.EventPlayback, s.handleEvent)
	if err != nil {
		s.session.Disconnect()
		return err
	}

	s.mu.Lock()
	s.sub = sub
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	// Reconnection recovery: reconcile against the room's last known state
	// before publishing our own.
	if s.store != nil {
		if snap, err := s.store.LoadPlayback(ctx, roomID); err != nil {
			logger.Warn("failed to load room snapshot",
				logger.ErrorField(err),
				logger.String("room", roomID))
		} else if snap != nil && snap.SenderID != s.session.UserID() {
			s.reconcile(snap)
		}
	}

	go s.tickLoop(done)

	s.publishNow(ctx)
	return nil
}

// Disconnect stops the publish tick, detaches the inbound subscription and
// resets the session. Safe to call when already disconnected.
func (s *Synchronizer) Disconnect() {
	s.mu.Lock()
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
	s.session.Disconnect()
}

// ToggleSyncing pauses or resumes mirroring while staying in the room. When
// resuming, the current local state is published immediately.
func (s *Synchronizer) ToggleSyncing(ctx context.Context) (bool, error) {
	syncing, err := s.session.ToggleSyncing()
	if err != nil {
		return false, err
	}
	if syncing {
		s.publishNow(ctx)
	}
	return syncing, nil
}

func (s *Synchronizer) tickLoop(done chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if s.session.State().IsSyncing {
				s.publishNow(context.Background())
			}
		}
	}
}

// onEngineChange is the publish boundary: only locally-originated changes go
// out. Remote applications carry OriginRemote and stop here.
func (s *Synchronizer) onEngineChange(origin player.Origin, state model.PlaybackState) {
	if origin != player.OriginLocal {
		return
	}
	if !s.session.State().IsSyncing {
		return
	}
	s.publishNow(context.Background())
}

// publishNow sends a full-state snapshot of the current engine state. A
// failed publish only logs; local state is never rolled back or altered.
func (s *Synchronizer) publishNow(ctx context.Context) {
	st := s.session.State()
	if !st.IsSyncing || st.RoomID == "" {
		return
	}

	snap := model.PlaybackSnapshot{
		RoomID:    st.RoomID,
		SenderID:  s.session.UserID(),
		State:     s.engine.State(),
		Timestamp: time.Now().UnixMilli(),
	}
	if track := s.engine.CurrentTrack(); track != nil {
		snap.TrackID = track.ID
	}

	payload, err := realtime.Marshal(&snap)
	if err != nil {
		logger.Error("failed to marshal snapshot", logger.ErrorField(err))
		return
	}

	ev := realtime.Event{
		Type:      realtime.EventPlayback,
		RoomID:    st.RoomID,
		SenderID:  snap.SenderID,
		Payload:   payload,
		Timestamp: snap.Timestamp,
	}
	if err := s.channel.Publish(ctx, ev); err != nil {
		logger.Warn("snapshot publish failed",
			logger.ErrorField(err),
			logger.String("room", st.RoomID))
		return
	}

	if s.store != nil {
		if err := s.store.SavePlayback(ctx, st.RoomID, &snap); err != nil {
			logger.Warn("failed to persist snapshot",
				logger.ErrorField(err),
				logger.String("room", st.RoomID))
		}
	}
	s.session.markSynced(snap.Timestamp)
}

func (s *Synchronizer) handleEvent(ev realtime.Event) {
	// Our own publishes come back on shared channels; skip them.
	if ev.SenderID == s.session.UserID() {
		return
	}
	if !s.session.State().IsSyncing {
		return
	}

	var snap model.PlaybackSnapshot
	if err := json.Unmarshal(ev.Payload, &snap); err != nil {
		logger.Warn("invalid snapshot payload",
			logger.ErrorField(err),
			logger.String("room", ev.RoomID))
		return
	}
	s.reconcile(&snap)
}

// reconcile applies a remote snapshot through the reconciliation policy
// rather than a blind overwrite:
//
//   - track selection: newest writer wins, a forced move;
//   - transport: toggled on mismatch;
//   - position: corrected only beyond the drift dead-band;
//   - volume/mute/shuffle/repeat: last write wins, no dead-band.
//
// Applying the same snapshot twice is a no-op.
func (s *Synchronizer) reconcile(snap *model.PlaybackSnapshot) {
	remote := s.engine.Remote()
	local := s.engine.State()

	if idx := snap.State.CurrentTrackIndex; idx != model.NoTrack && idx != local.CurrentTrackIndex {
		remote.SelectTrack(idx)
		local = s.engine.State()
		if local.CurrentTrackIndex == idx && s.notify != nil {
			s.notify("Partner changed the song")
		}
	}

	if snap.State.IsPlaying != local.IsPlaying {
		local = remote.TogglePlay()
	}

	if math.Abs(snap.State.CurrentTime-local.CurrentTime) > s.drift {
		local = remote.Seek(snap.State.CurrentTime)
	}

	if snap.State.Volume != local.Volume {
		local = remote.SetVolume(snap.State.Volume)
	}
	if snap.State.IsMuted != local.IsMuted {
		local = remote.SetMuted(snap.State.IsMuted)
	}
	if snap.State.IsShuffled != local.IsShuffled {
		local = remote.SetShuffled(snap.State.IsShuffled)
	}
	if snap.State.IsRepeating != local.IsRepeating {
		remote.SetRepeating(snap.State.IsRepeating)
	}
}
