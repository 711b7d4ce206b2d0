package realtime

import (
	"context"
	"testing"
)

func TestMemoryChannelDeliversByRoomAndType(t *testing.T) {
	ch := NewMemoryChannel()

	var got []Event
	sub, err := ch.Subscribe(context.Background(), "room-1", EventPlayback, func(ev Event) {
		got = append(got, ev)
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	ch.Publish(context.Background(), Event{Type: EventPlayback, RoomID: "room-1", SenderID: 1})
	ch.Publish(context.Background(), Event{Type: EventChat, RoomID: "room-1", SenderID: 1})
	ch.Publish(context.Background(), Event{Type: EventPlayback, RoomID: "room-2", SenderID: 1})

	if len(got) != 1 {
		t.Fatalf("handler saw %d events, want 1", len(got))
	}
	if got[0].Timestamp == 0 {
		t.Fatal("publish did not stamp the event")
	}
}

func TestMemoryChannelCloseDetaches(t *testing.T) {
	ch := NewMemoryChannel()

	fired := 0
	sub, err := ch.Subscribe(context.Background(), "room-1", EventChat, func(Event) { fired++ })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	ch.Publish(context.Background(), Event{Type: EventChat, RoomID: "room-1"})
	sub.Close()
	ch.Publish(context.Background(), Event{Type: EventChat, RoomID: "room-1"})

	if fired != 1 {
		t.Fatalf("handler fired %d times, want 1", fired)
	}
}

func TestMemoryChannelMultipleSubscribers(t *testing.T) {
	ch := NewMemoryChannel()

	counts := make([]int, 2)
	for i := range counts {
		i := i
		if _, err := ch.Subscribe(context.Background(), "room-1", EventView, func(Event) {
			counts[i]++
		}); err != nil {
			t.Fatalf("Subscribe: %v", err)
		}
	}

	ch.Publish(context.Background(), Event{Type: EventView, RoomID: "room-1"})
	if counts[0] != 1 || counts[1] != 1 {
		t.Fatalf("counts = %v, want both 1", counts)
	}
}
