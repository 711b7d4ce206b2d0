package library

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"TandemFM/core/player"
	"TandemFM/model"
)

func TestTrackFromFile(t *testing.T) {
	tests := []struct {
		path       string
		wantTitle  string
		wantArtist string
	}{
		{"/music/Daft Punk - Around the World.mp3", "Around the World", "Daft Punk"},
		{"/music/untitled.flac", "untitled", ""},
		{"/music/- leading dash.ogg", "- leading dash", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			track := trackFromFile(tt.path, 7)
			if track.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", track.Title, tt.wantTitle)
			}
			if track.Artist != tt.wantArtist {
				t.Errorf("Artist = %q, want %q", track.Artist, tt.wantArtist)
			}
			if track.UserID != 7 || track.ID == "" {
				t.Errorf("track = %+v", track)
			}
		})
	}
}

func TestWatcherImportsAudioFiles(t *testing.T) {
	dir := t.TempDir()
	engine := player.NewEngine(nil)

	w, err := NewWatcher(dir, 1, engine, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(filepath.Join(dir, "Artist - Song.mp3"), []byte("x"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(engine.Tracks()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("track was never imported")
		}
		time.Sleep(10 * time.Millisecond)
	}

	tracks := engine.Tracks()
	if len(tracks) != 1 {
		t.Fatalf("imported %d tracks, want 1", len(tracks))
	}
	if tracks[0].Title != "Song" || tracks[0].Artist != "Artist" {
		t.Fatalf("imported %+v", tracks[0])
	}
}

// Files can show up the instant the watch starts, so the import callback is
// part of construction and must see even the earliest event.
func TestWatcherCallbackSeesImmediateFile(t *testing.T) {
	dir := t.TempDir()
	engine := player.NewEngine(nil)
	imported := make(chan model.Track, 1)

	w, err := NewWatcher(dir, 3, engine, func(track model.Track) {
		imported <- track
	})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(filepath.Join(dir, "Early - Bird.flac"), []byte("x"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case track := <-imported:
		if track.Title != "Bird" || track.Artist != "Early" || track.UserID != 3 {
			t.Fatalf("imported %+v", track)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("import callback was never invoked")
	}
}
