package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"TandemFM/core/songsync"
	"TandemFM/logger"
	"TandemFM/model"
	"TandemFM/realtime"

	"github.com/google/uuid"
)

// Store persists the room's message history. Optional; the relay works
// in-memory without one.
type Store interface {
	Append(ctx context.Context, rec *model.ChatRecord) error
	DeleteByRoom(ctx context.Context, roomID string) error
}

// Relay is the append-only chat stream for a room. It rides the same
// publish/subscribe channel as playback sync but is an independent ordering
// domain: chat stays active while mirroring is paused, as long as the room
// is connected.
type Relay struct {
	channel realtime.Channel
	session *songsync.Session
	store   Store

	mu       sync.Mutex
	messages []model.ChatMessage
	seen     map[string]struct{}
	unread   int
	focused  bool
	sub      realtime.Subscription

	// Notify, when set, receives cues for inbound partner messages.
	Notify func(msg string)
}

// NewRelay creates a chat relay bound to a session.
func NewRelay(channel realtime.Channel, session *songsync.Session, store Store) *Relay {
	return &Relay{
		channel: channel,
		session: session,
		store:   store,
		seen:    make(map[string]struct{}),
	}
}

// Attach subscribes to the room's chat events. Requires a connected session;
// syncing may be paused.
func (r *Relay) Attach(ctx context.Context) error {
	st := r.session.State()
	if !st.IsConnected {
		return fmt.Errorf("%w: no room", model.ErrChannelSubscribeFailed)
	}

	sub, err := r.channel.Subscribe(ctx, st.RoomID, realtime.EventChat, r.handleEvent)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.sub = sub
	r.mu.Unlock()
	return nil
}

// Detach drops the subscription; the local history stays.
func (r *Relay) Detach() {
	r.mu.Lock()
	sub := r.sub
	r.sub = nil
	r.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
}

// Send appends the message locally first, then publishes it. On publish
// failure the optimistic entry is retracted and ErrMessageSendFailed
// returned, leaving the history exactly as before the attempt.
func (r *Relay) Send(ctx context.Context, text string) (model.ChatMessage, error) {
	if r.session.UserID() == 0 {
		return model.ChatMessage{}, fmt.Errorf("%w: send without identity", model.ErrAuthRequired)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return model.ChatMessage{}, nil
	}

	st := r.session.State()
	if !st.IsConnected {
		return model.ChatMessage{}, fmt.Errorf("%w: no room", model.ErrMessageSendFailed)
	}

	msg := model.ChatMessage{
		ID:        uuid.New().String(),
		Text:      text,
		Sender:    model.SenderMe,
		Timestamp: time.Now().UnixMilli(),
		RoomID:    st.RoomID,
	}

	r.mu.Lock()
	r.messages = append(r.messages, msg)
	r.seen[msg.ID] = struct{}{}
	r.mu.Unlock()

	payload, err := realtime.Marshal(&model.ChatPayload{
		ID:       msg.ID,
		RoomID:   st.RoomID,
		SenderID: r.session.UserID(),
		Text:     text,
	})
	if err == nil {
		err = r.channel.Publish(ctx, realtime.Event{
			Type:      realtime.EventChat,
			RoomID:    st.RoomID,
			SenderID:  r.session.UserID(),
			Payload:   payload,
			Timestamp: msg.Timestamp,
		})
	}
	if err != nil {
		r.retract(msg.ID)
		return model.ChatMessage{}, fmt.Errorf("%w: %v", model.ErrMessageSendFailed, err)
	}

	if r.store != nil {
		rec := &model.ChatRecord{
			ID:       msg.ID,
			RoomID:   st.RoomID,
			SenderID: r.session.UserID(),
			Text:     text,
		}
		if err := r.store.Append(ctx, rec); err != nil {
			logger.Warn("failed to persist chat message",
				logger.ErrorField(err),
				logger.String("room", st.RoomID))
		}
	}
	return msg, nil
}

func (r *Relay) retract(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.seen, id)
	for i := len(r.messages) - 1; i >= 0; i-- {
		if r.messages[i].ID == id {
			r.messages = append(r.messages[:i], r.messages[i+1:]...)
			return
		}
	}
}

func (r *Relay) handleEvent(ev realtime.Event) {
	if ev.SenderID == r.session.UserID() {
		return
	}

	var payload model.ChatPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		logger.Warn("invalid chat payload", logger.ErrorField(err))
		return
	}

	r.mu.Lock()
	// At-least-once delivery: drop replays by identity.
	if _, ok := r.seen[payload.ID]; ok {
		r.mu.Unlock()
		return
	}
	r.seen[payload.ID] = struct{}{}
	r.messages = append(r.messages, model.ChatMessage{
		ID:        payload.ID,
		Text:      payload.Text,
		Sender:    model.SenderPartner,
		Timestamp: ev.Timestamp,
		RoomID:    payload.RoomID,
	})
	if !r.focused {
		r.unread++
	}
	notify := r.Notify
	r.mu.Unlock()

	if notify != nil {
		notify("New message from partner")
	}
}

// AppendSystem adds a local-only system message.
func (r *Relay) AppendSystem(text string) model.ChatMessage {
	msg := model.ChatMessage{
		ID:        uuid.New().String(),
		Text:      text,
		Sender:    model.SenderSystem,
		Timestamp: time.Now().UnixMilli(),
		RoomID:    r.session.State().RoomID,
	}

	r.mu.Lock()
	r.messages = append(r.messages, msg)
	r.seen[msg.ID] = struct{}{}
	r.mu.Unlock()
	return msg
}

// Clear destroys the room's message history, locally and in the store.
// Irreversible.
func (r *Relay) Clear(ctx context.Context) error {
	st := r.session.State()
	if r.store != nil && st.RoomID != "" {
		if err := r.store.DeleteByRoom(ctx, st.RoomID); err != nil {
			return err
		}
	}

	r.mu.Lock()
	r.messages = nil
	r.seen = make(map[string]struct{})
	r.unread = 0
	r.mu.Unlock()
	return nil
}

// Messages returns a copy of the history.
func (r *Relay) Messages() []model.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.ChatMessage(nil), r.messages...)
}

// Unread returns how many partner messages arrived while unfocused.
func (r *Relay) Unread() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unread
}

// MarkRead resets the unread counter.
func (r *Relay) MarkRead() {
	r.mu.Lock()
	r.unread = 0
	r.mu.Unlock()
}

// SetFocused records whether the chat view is focused; focusing marks the
// history read.
func (r *Relay) SetFocused(focused bool) {
	r.mu.Lock()
	r.focused = focused
	if focused {
		r.unread = 0
	}
	r.mu.Unlock()
}
