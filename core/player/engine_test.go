package player

import (
	"testing"

	"TandemFM/model"
)

func testTracks(n int) []model.Track {
	tracks := make([]model.Track, n)
	for i := range tracks {
		tracks[i] = model.Track{
			ID:       string(rune('a' + i)),
			Title:    "Track " + string(rune('A'+i)),
			Duration: 180,
			Src:      "/media/" + string(rune('a'+i)) + ".mp3",
		}
	}
	return tracks
}

func newTestEngine(n int) *Engine {
	e := NewEngine(nil)
	for _, t := range testTracks(n) {
		e.AddTrack(t)
	}
	return e
}

func TestAddFirstTrackSelectsWithoutPlaying(t *testing.T) {
	e := NewEngine(nil)

	st := e.AddTrack(testTracks(1)[0])
	if st.CurrentTrackIndex != 0 {
		t.Fatalf("CurrentTrackIndex = %d, want 0", st.CurrentTrackIndex)
	}
	if st.IsPlaying {
		t.Fatal("adding the first track must not start playback")
	}

	st = e.AddTrack(testTracks(2)[1])
	if st.CurrentTrackIndex != 0 {
		t.Fatalf("adding a second track moved the selection to %d", st.CurrentTrackIndex)
	}
}

func TestPlayWithNoTrackIsNoop(t *testing.T) {
	e := NewEngine(nil)
	st := e.Play()
	if st.IsPlaying {
		t.Fatal("Play with no selection must not set IsPlaying")
	}
}

func TestSelectTrackOutOfRangeIgnored(t *testing.T) {
	e := newTestEngine(3)
	before := e.State()
	if st := e.SelectTrack(7); st != before {
		t.Fatalf("out-of-range select changed state: %+v", st)
	}
	if st := e.SelectTrack(-2); st != before {
		t.Fatalf("negative select changed state: %+v", st)
	}
}

func TestSelectTrackStartsPlayback(t *testing.T) {
	e := newTestEngine(3)
	e.UpdatePosition(42)

	st := e.SelectTrack(2)
	if st.CurrentTrackIndex != 2 {
		t.Fatalf("CurrentTrackIndex = %d, want 2", st.CurrentTrackIndex)
	}
	if !st.IsPlaying {
		t.Fatal("selecting a track must start playback")
	}
	if st.CurrentTime != 0 {
		t.Fatalf("CurrentTime = %v, want 0 after select", st.CurrentTime)
	}
}

func TestNextWraparound(t *testing.T) {
	e := newTestEngine(3)
	e.SelectTrack(2)

	st := e.Next()
	if st.CurrentTrackIndex != 0 {
		t.Fatalf("Next at the end gave index %d, want 0", st.CurrentTrackIndex)
	}
}

func TestNextPreservesTransport(t *testing.T) {
	e := newTestEngine(3)

	st := e.Next()
	if st.IsPlaying {
		t.Fatal("Next while paused must stay paused")
	}

	e.Play()
	st = e.Next()
	if !st.IsPlaying {
		t.Fatal("Next while playing must keep playing")
	}
}

func TestPreviousRestartThreshold(t *testing.T) {
	tests := []struct {
		name      string
		position  float64
		wantIndex int
		wantTime  float64
	}{
		{"early in track goes back", 1.5, 0, 0},
		{"deep in track restarts", 5, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(3)
			e.SelectTrack(1)
			e.UpdatePosition(tt.position)

			st := e.Previous()
			if st.CurrentTrackIndex != tt.wantIndex {
				t.Errorf("CurrentTrackIndex = %d, want %d", st.CurrentTrackIndex, tt.wantIndex)
			}
			if st.CurrentTime != tt.wantTime {
				t.Errorf("CurrentTime = %v, want %v", st.CurrentTime, tt.wantTime)
			}
		})
	}
}

func TestPreviousWraparound(t *testing.T) {
	e := newTestEngine(3)
	e.SelectTrack(0)

	st := e.Previous()
	if st.CurrentTrackIndex != 2 {
		t.Fatalf("Previous at the start gave index %d, want 2", st.CurrentTrackIndex)
	}
}

func TestShuffleNextExcludesCurrent(t *testing.T) {
	e := newTestEngine(4)
	e.SelectTrack(1)
	e.ToggleShuffle()

	for i := 0; i < 50; i++ {
		prev := e.State().CurrentTrackIndex
		st := e.Next()
		if st.CurrentTrackIndex == prev {
			t.Fatalf("shuffle picked the current track again (index %d)", prev)
		}
	}
}

func TestRemoveTrack(t *testing.T) {
	t.Run("last remaining track stops playback", func(t *testing.T) {
		e := newTestEngine(1)
		e.Play()

		st := e.RemoveTrack("a")
		if st.CurrentTrackIndex != model.NoTrack {
			t.Errorf("CurrentTrackIndex = %d, want NoTrack", st.CurrentTrackIndex)
		}
		if st.IsPlaying {
			t.Error("removing the last track must stop playback")
		}
	})

	t.Run("selected at end clamps to zero", func(t *testing.T) {
		e := newTestEngine(3)
		e.SelectTrack(2)

		st := e.RemoveTrack("c")
		if st.CurrentTrackIndex != 0 {
			t.Errorf("CurrentTrackIndex = %d, want 0", st.CurrentTrackIndex)
		}
	})

	t.Run("earlier removal shifts the selection", func(t *testing.T) {
		e := newTestEngine(3)
		e.SelectTrack(2)

		st := e.RemoveTrack("a")
		if st.CurrentTrackIndex != 1 {
			t.Errorf("CurrentTrackIndex = %d, want 1", st.CurrentTrackIndex)
		}
		if got := e.CurrentTrack().ID; got != "c" {
			t.Errorf("CurrentTrack = %s, want c", got)
		}
	})

	t.Run("unknown id is ignored", func(t *testing.T) {
		e := newTestEngine(2)
		before := e.State()
		if st := e.RemoveTrack("zzz"); st != before {
			t.Errorf("removing unknown track changed state: %+v", st)
		}
	})
}

func TestSeekClamps(t *testing.T) {
	e := newTestEngine(1)
	e.SelectTrack(0)

	if st := e.Seek(-5); st.CurrentTime != 0 {
		t.Errorf("negative seek gave %v, want 0", st.CurrentTime)
	}
	if st := e.Seek(500); st.CurrentTime != 180 {
		t.Errorf("overlong seek gave %v, want 180", st.CurrentTime)
	}
}

func TestSetVolumeClamps(t *testing.T) {
	e := newTestEngine(1)

	if st := e.SetVolume(1.4); st.Volume != 1 {
		t.Errorf("Volume = %v, want 1", st.Volume)
	}
	if st := e.SetVolume(-0.2); st.Volume != 0 {
		t.Errorf("Volume = %v, want 0", st.Volume)
	}
}

func TestToggleMuteKeepsVolume(t *testing.T) {
	e := newTestEngine(1)
	e.SetVolume(0.5)

	st := e.ToggleMute()
	if !st.IsMuted {
		t.Fatal("ToggleMute did not mute")
	}
	if st.Volume != 0.5 {
		t.Fatalf("mute changed the stored volume to %v", st.Volume)
	}

	st = e.ToggleMute()
	if st.IsMuted || st.Volume != 0.5 {
		t.Fatalf("unmute gave %+v", st)
	}
}

func TestHandleTrackEnd(t *testing.T) {
	t.Run("repeat restarts the track", func(t *testing.T) {
		e := newTestEngine(2)
		e.SelectTrack(1)
		e.ToggleRepeat()
		e.UpdatePosition(170)

		st := e.HandleTrackEnd()
		if st.CurrentTrackIndex != 1 || st.CurrentTime != 0 {
			t.Errorf("repeat end gave index %d time %v", st.CurrentTrackIndex, st.CurrentTime)
		}
	})

	t.Run("otherwise advances", func(t *testing.T) {
		e := newTestEngine(2)
		e.SelectTrack(0)

		st := e.HandleTrackEnd()
		if st.CurrentTrackIndex != 1 {
			t.Errorf("track end gave index %d, want 1", st.CurrentTrackIndex)
		}
	})
}

func TestSetDurationBackfillsTrack(t *testing.T) {
	e := NewEngine(nil)
	e.AddTrack(model.Track{ID: "x", Title: "Unknown length"})

	e.SetDuration(240)
	if got := e.Tracks()[0].Duration; got != 240 {
		t.Fatalf("track duration = %v, want 240", got)
	}
}

func TestChangeOrigins(t *testing.T) {
	e := newTestEngine(2)

	var origins []Origin
	e.OnChange(func(origin Origin, _ model.PlaybackState) {
		origins = append(origins, origin)
	})

	e.TogglePlay()
	e.Remote().Seek(10)
	e.Remote().SetVolume(0.3)
	e.Pause()

	want := []Origin{OriginLocal, OriginRemote, OriginRemote, OriginLocal}
	if len(origins) != len(want) {
		t.Fatalf("got %d change events, want %d", len(origins), len(want))
	}
	for i := range want {
		if origins[i] != want[i] {
			t.Errorf("event %d origin = %v, want %v", i, origins[i], want[i])
		}
	}
}

func TestUpdatePositionDoesNotEmit(t *testing.T) {
	e := newTestEngine(1)

	fired := 0
	e.OnChange(func(Origin, model.PlaybackState) { fired++ })

	e.UpdatePosition(12.5)
	if fired != 0 {
		t.Fatalf("UpdatePosition fired %d change events", fired)
	}
	if got := e.State().CurrentTime; got != 12.5 {
		t.Fatalf("CurrentTime = %v, want 12.5", got)
	}
}
