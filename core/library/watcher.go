package library

import (
	"path/filepath"
	"strings"
	"time"

	"TandemFM/core/player"
	"TandemFM/logger"
	"TandemFM/model"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

// audioExtensions are the file types the importer picks up.
var audioExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".wav":  true,
	".ogg":  true,
	".m4a":  true,
}

// Watcher imports audio files dropped into a local directory into the
// playback engine. The filename (minus extension) becomes the title; an
// "Artist - Title" filename is split on the first dash.
type Watcher struct {
	engine   *player.Engine
	userID   int64
	watcher  *fsnotify.Watcher
	done     chan struct{}
	onImport func(track model.Track)
}

// NewWatcher starts watching a directory for new audio files. onImport, when
// non-nil, is called with each imported track, e.g. to persist it; it must be
// supplied here because events can arrive as soon as the watch is running.
func NewWatcher(dir string, userID int64, engine *player.Engine, onImport func(track model.Track)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		engine:   engine,
		userID:   userID,
		watcher:  fsw,
		done:     make(chan struct{}),
		onImport: onImport,
	}
	go w.run()

	logger.Info("watching import directory", logger.String("dir", dir))
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create == fsnotify.Create {
				w.handleCreate(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("import watcher error", logger.ErrorField(err))
		}
	}
}

func (w *Watcher) handleCreate(path string) {
	ext := strings.ToLower(filepath.Ext(path))
	if !audioExtensions[ext] {
		return
	}

	track := trackFromFile(path, w.userID)
	w.engine.AddTrack(track)
	if w.onImport != nil {
		w.onImport(track)
	}

	logger.Info("imported track",
		logger.String("title", track.Title),
		logger.String("path", path))
}

// trackFromFile builds a Track from a file path.
func trackFromFile(path string, userID int64) model.Track {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	title := name
	artist := ""
	if i := strings.Index(name, " - "); i > 0 {
		artist = strings.TrimSpace(name[:i])
		title = strings.TrimSpace(name[i+3:])
	}

	return model.Track{
		ID:      uuid.New().String(),
		UserID:  userID,
		Title:   title,
		Artist:  artist,
		Src:     path,
		AddedAt: time.Now().UnixMilli(),
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
