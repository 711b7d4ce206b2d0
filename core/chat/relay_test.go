package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"TandemFM/core/songsync"
	"TandemFM/model"
	"TandemFM/realtime"
)

type failingPublishChannel struct {
	*realtime.MemoryChannel
}

func (c *failingPublishChannel) Publish(ctx context.Context, ev realtime.Event) error {
	return errors.New("publish refused")
}

type stubStore struct {
	appended []model.ChatRecord
	cleared  []string
}

func (s *stubStore) Append(ctx context.Context, rec *model.ChatRecord) error {
	s.appended = append(s.appended, *rec)
	return nil
}

func (s *stubStore) DeleteByRoom(ctx context.Context, roomID string) error {
	s.cleared = append(s.cleared, roomID)
	return nil
}

func connectedSession(t *testing.T, userID int64) *songsync.Session {
	t.Helper()
	s := songsync.NewSession(userID, time.Hour)
	if err := s.Connect("room-1"); err != nil {
		t.Fatalf("session connect: %v", err)
	}
	return s
}

func TestSendRequiresIdentity(t *testing.T) {
	r := NewRelay(realtime.NewMemoryChannel(), songsync.NewSession(0, time.Hour), nil)
	_, err := r.Send(context.Background(), "hello")
	if !errors.Is(err, model.ErrAuthRequired) {
		t.Fatalf("err = %v, want ErrAuthRequired", err)
	}
}

func TestSendEmptyTextIsNoop(t *testing.T) {
	r := NewRelay(realtime.NewMemoryChannel(), connectedSession(t, 1), nil)

	msg, err := r.Send(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msg.ID != "" || len(r.Messages()) != 0 {
		t.Fatal("blank message was sent")
	}
}

func TestSendAppendsAsMe(t *testing.T) {
	store := &stubStore{}
	r := NewRelay(realtime.NewMemoryChannel(), connectedSession(t, 1), store)

	msg, err := r.Send(context.Background(), "  hi there  ")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msg.Text != "hi there" {
		t.Fatalf("text = %q, want trimmed", msg.Text)
	}
	if msg.Sender != model.SenderMe {
		t.Fatalf("sender = %q, want %q", msg.Sender, model.SenderMe)
	}
	if len(store.appended) != 1 {
		t.Fatalf("store received %d records, want 1", len(store.appended))
	}
}

func TestPartnerReceivesMessage(t *testing.T) {
	ch := realtime.NewMemoryChannel()
	a := NewRelay(ch, connectedSession(t, 1), nil)
	b := NewRelay(ch, connectedSession(t, 2), nil)

	if err := a.Attach(context.Background()); err != nil {
		t.Fatalf("A attach: %v", err)
	}
	if err := b.Attach(context.Background()); err != nil {
		t.Fatalf("B attach: %v", err)
	}

	if _, err := a.Send(context.Background(), "hi"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	got := b.Messages()
	if len(got) != 1 {
		t.Fatalf("B has %d messages, want 1", len(got))
	}
	if got[0].Text != "hi" || got[0].Sender != model.SenderPartner {
		t.Fatalf("B received %+v", got[0])
	}
	if b.Unread() != 1 {
		t.Fatalf("B unread = %d, want 1", b.Unread())
	}
	if a.Unread() != 0 {
		t.Fatalf("A unread = %d, want 0", a.Unread())
	}

	b.SetFocused(true)
	if b.Unread() != 0 {
		t.Fatalf("focusing left unread = %d", b.Unread())
	}
}

func TestFocusedPartnerGetsNoUnread(t *testing.T) {
	ch := realtime.NewMemoryChannel()
	a := NewRelay(ch, connectedSession(t, 1), nil)
	b := NewRelay(ch, connectedSession(t, 2), nil)
	if err := b.Attach(context.Background()); err != nil {
		t.Fatalf("attach: %v", err)
	}

	b.SetFocused(true)
	if _, err := a.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if b.Unread() != 0 {
		t.Fatalf("unread = %d while focused, want 0", b.Unread())
	}
}

func TestSendFailureRetracts(t *testing.T) {
	ch := &failingPublishChannel{realtime.NewMemoryChannel()}
	r := NewRelay(ch, connectedSession(t, 1), nil)

	_, err := r.Send(context.Background(), "doomed")
	if !errors.Is(err, model.ErrMessageSendFailed) {
		t.Fatalf("err = %v, want ErrMessageSendFailed", err)
	}
	if got := r.Messages(); len(got) != 0 {
		t.Fatalf("history has %d messages after failed send, want 0", len(got))
	}
}

func TestReplayIsDeduped(t *testing.T) {
	ch := realtime.NewMemoryChannel()
	b := NewRelay(ch, connectedSession(t, 2), nil)
	if err := b.Attach(context.Background()); err != nil {
		t.Fatalf("attach: %v", err)
	}

	payload, err := realtime.Marshal(&model.ChatPayload{
		ID:       "m-1",
		RoomID:   "room-1",
		SenderID: 1,
		Text:     "once",
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	ev := realtime.Event{
		Type:     realtime.EventChat,
		RoomID:   "room-1",
		SenderID: 1,
		Payload:  payload,
	}

	ch.Publish(context.Background(), ev)
	ch.Publish(context.Background(), ev)

	if got := b.Messages(); len(got) != 1 {
		t.Fatalf("replayed delivery appended %d messages, want 1", len(got))
	}
	if b.Unread() != 1 {
		t.Fatalf("unread = %d, want 1", b.Unread())
	}
}

func TestChatWorksWhileSyncingPaused(t *testing.T) {
	ch := realtime.NewMemoryChannel()
	sessA := connectedSession(t, 1)
	sessB := connectedSession(t, 2)
	a := NewRelay(ch, sessA, nil)
	b := NewRelay(ch, sessB, nil)
	if err := b.Attach(context.Background()); err != nil {
		t.Fatalf("attach: %v", err)
	}

	if _, err := sessA.ToggleSyncing(); err != nil {
		t.Fatalf("pause syncing: %v", err)
	}

	if _, err := a.Send(context.Background(), "still here"); err != nil {
		t.Fatalf("Send while paused: %v", err)
	}
	if got := b.Messages(); len(got) != 1 {
		t.Fatalf("B has %d messages, want 1", len(got))
	}
}

func TestAppendSystemIsLocalOnly(t *testing.T) {
	ch := realtime.NewMemoryChannel()
	a := NewRelay(ch, connectedSession(t, 1), nil)
	b := NewRelay(ch, connectedSession(t, 2), nil)
	if err := b.Attach(context.Background()); err != nil {
		t.Fatalf("attach: %v", err)
	}

	msg := a.AppendSystem("Connected with partner")
	if msg.Sender != model.SenderSystem {
		t.Fatalf("sender = %q, want %q", msg.Sender, model.SenderSystem)
	}
	if len(a.Messages()) != 1 {
		t.Fatal("system message missing locally")
	}
	if len(b.Messages()) != 0 {
		t.Fatal("system message leaked to the partner")
	}
}

func TestClearDestroysHistory(t *testing.T) {
	store := &stubStore{}
	r := NewRelay(realtime.NewMemoryChannel(), connectedSession(t, 1), store)

	if _, err := r.Send(context.Background(), "one"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, err := r.Send(context.Background(), "two"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if err := r.Clear(context.Background()); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if len(r.Messages()) != 0 || r.Unread() != 0 {
		t.Fatal("local history survived Clear")
	}
	if len(store.cleared) != 1 || store.cleared[0] != "room-1" {
		t.Fatalf("store cleared = %v, want [room-1]", store.cleared)
	}
}
