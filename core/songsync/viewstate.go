package songsync

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"TandemFM/logger"
	"TandemFM/model"
	"TandemFM/realtime"
)

// ViewSync mirrors the room-scoped presentation state (currently the
// fullscreen-background flag) over the same channel as playback sync, in its
// own event type. Remote values are applied only when they actually differ,
// so replays are no-ops.
type ViewSync struct {
	channel realtime.Channel
	session *Session

	mu    sync.Mutex
	state model.ViewState
	sub   realtime.Subscription

	// Notify, when set, receives cues about partner view changes.
	Notify func(msg string)
}

// NewViewSync creates a view-state mirror for the session's room.
func NewViewSync(channel realtime.Channel, session *Session) *ViewSync {
	return &ViewSync{channel: channel, session: session}
}

// Attach subscribes to the room's view events. Call after the session is
// connected; Detach on room leave.
func (v *ViewSync) Attach(ctx context.Context) error {
	st := v.session.State()
	if !st.IsConnected {
		return model.ErrChannelSubscribeFailed
	}

	sub, err := v.channel.Subscribe(ctx, st.RoomID, realtime.EventView, v.handleEvent)
	if err != nil {
		return err
	}

	v.mu.Lock()
	v.sub = sub
	v.mu.Unlock()
	return nil
}

// Detach drops the subscription.
func (v *ViewSync) Detach() {
	v.mu.Lock()
	sub := v.sub
	v.sub = nil
	v.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
}

// State returns the current view state.
func (v *ViewSync) State() model.ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// ToggleFullscreenBackground flips the flag locally and mirrors it to the
// partner when syncing is active.
func (v *ViewSync) ToggleFullscreenBackground(ctx context.Context) model.ViewState {
	v.mu.Lock()
	v.state.IsFullscreenBackground = !v.state.IsFullscreenBackground
	state := v.state
	v.mu.Unlock()

	st := v.session.State()
	if st.IsSyncing && st.RoomID != "" {
		snap := model.ViewSnapshot{
			RoomID:    st.RoomID,
			SenderID:  v.session.UserID(),
			State:     state,
			Timestamp: time.Now().UnixMilli(),
		}
		payload, err := realtime.Marshal(&snap)
		if err == nil {
			err = v.channel.Publish(ctx, realtime.Event{
				Type:      realtime.EventView,
				RoomID:    st.RoomID,
				SenderID:  snap.SenderID,
				Payload:   payload,
				Timestamp: snap.Timestamp,
			})
		}
		if err != nil {
			logger.Warn("view state publish failed",
				logger.ErrorField(err),
				logger.String("room", st.RoomID))
		}
	}
	return state
}

func (v *ViewSync) handleEvent(ev realtime.Event) {
	if ev.SenderID == v.session.UserID() {
		return
	}
	if !v.session.State().IsSyncing {
		return
	}

	var snap model.ViewSnapshot
	if err := json.Unmarshal(ev.Payload, &snap); err != nil {
		logger.Warn("invalid view payload", logger.ErrorField(err))
		return
	}

	v.mu.Lock()
	changed := v.state.IsFullscreenBackground != snap.State.IsFullscreenBackground
	if changed {
		v.state = snap.State
	}
	notify := v.Notify
	v.mu.Unlock()

	if changed && notify != nil {
		if snap.State.IsFullscreenBackground {
			notify("Your partner switched to fullscreen view")
		} else {
			notify("Your partner switched to normal view")
		}
	}
}
