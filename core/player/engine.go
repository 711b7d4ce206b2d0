package player

import (
	"math/rand"
	"sync"
	"time"

	"TandemFM/model"
)

// Origin tags where a state change came from. Changes applied from a remote
// snapshot carry OriginRemote so the synchronizer can suppress re-publishing
// them as if they were new local actions.
type Origin int

const (
	OriginLocal Origin = iota
	OriginRemote
)

// previousRestartThreshold is how far into a track Previous restarts it
// instead of moving to the prior track, in seconds.
const previousRestartThreshold = 3.0

// ChangeListener observes discrete state changes. Continuous position updates
// from the sink do not fire listeners; readers poll State for those.
type ChangeListener func(origin Origin, state model.PlaybackState)

// Engine owns one client's authoritative local playback state: the track
// sequence, the selected index, transport and volume flags. All mutations are
// synchronous; audio rendering is delegated to the MediaSink.
type Engine struct {
	mu        sync.Mutex
	tracks    []model.Track
	state     model.PlaybackState
	sink      MediaSink
	listeners []ChangeListener
	rng       *rand.Rand
}

// NewEngine creates an engine with no tracks and nothing selected.
func NewEngine(sink MediaSink) *Engine {
	if sink == nil {
		sink = NullSink{}
	}
	return &Engine{
		sink: sink,
		state: model.PlaybackState{
			Volume:            0.7,
			CurrentTrackIndex: model.NoTrack,
		},
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// OnChange registers a listener for discrete state changes.
func (e *Engine) OnChange(l ChangeListener) {
	e.mu.Lock()
	e.listeners = append(e.listeners, l)
	e.mu.Unlock()
}

// emitLocked snapshots state and returns the notification to run after the
// lock is released. Listeners must not be invoked under the engine lock.
func (e *Engine) emitLocked(origin Origin) func() {
	state := e.state
	listeners := append([]ChangeListener(nil), e.listeners...)
	return func() {
		for _, l := range listeners {
			l(origin, state)
		}
	}
}

// State returns the current playback state snapshot.
func (e *Engine) State() model.PlaybackState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Tracks returns a copy of the track sequence.
func (e *Engine) Tracks() []model.Track {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]model.Track(nil), e.tracks...)
}

// CurrentTrack returns the selected track, or nil when none is selected.
func (e *Engine) CurrentTrack() *model.Track {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.CurrentTrackIndex == model.NoTrack {
		return nil
	}
	track := e.tracks[e.state.CurrentTrackIndex]
	return &track
}

// ========== Transport ==========

// Play starts playback of the selected track. No-op when nothing is selected.
func (e *Engine) Play() model.PlaybackState { return e.play(OriginLocal) }

func (e *Engine) play(origin Origin) model.PlaybackState {
	e.mu.Lock()
	if e.state.CurrentTrackIndex == model.NoTrack || e.state.IsPlaying {
		defer e.mu.Unlock()
		return e.state
	}
	e.state.IsPlaying = true
	e.sink.Play()
	notify := e.emitLocked(origin)
	state := e.state
	e.mu.Unlock()
	notify()
	return state
}

// Pause stops playback without losing position.
func (e *Engine) Pause() model.PlaybackState { return e.pause(OriginLocal) }

func (e *Engine) pause(origin Origin) model.PlaybackState {
	e.mu.Lock()
	if !e.state.IsPlaying {
		defer e.mu.Unlock()
		return e.state
	}
	e.state.IsPlaying = false
	e.sink.Pause()
	notify := e.emitLocked(origin)
	state := e.state
	e.mu.Unlock()
	notify()
	return state
}

// TogglePlay flips between playing and paused.
func (e *Engine) TogglePlay() model.PlaybackState { return e.togglePlay(OriginLocal) }

func (e *Engine) togglePlay(origin Origin) model.PlaybackState {
	if e.State().IsPlaying {
		return e.pause(origin)
	}
	return e.play(origin)
}

// Seek moves the position within the current track.
func (e *Engine) Seek(seconds float64) model.PlaybackState { return e.seek(seconds, OriginLocal) }

func (e *Engine) seek(seconds float64, origin Origin) model.PlaybackState {
	e.mu.Lock()
	if e.state.CurrentTrackIndex == model.NoTrack {
		defer e.mu.Unlock()
		return e.state
	}
	if seconds < 0 {
		seconds = 0
	}
	if e.state.Duration > 0 && seconds > e.state.Duration {
		seconds = e.state.Duration
	}
	e.state.CurrentTime = seconds
	e.sink.Seek(seconds)
	notify := e.emitLocked(origin)
	state := e.state
	e.mu.Unlock()
	notify()
	return state
}

// ========== Volume ==========

// SetVolume sets the volume, clamped to [0, 1].
func (e *Engine) SetVolume(volume float64) model.PlaybackState {
	return e.setVolume(volume, OriginLocal)
}

func (e *Engine) setVolume(volume float64, origin Origin) model.PlaybackState {
	if volume < 0 {
		volume = 0
	}
	if volume > 1 {
		volume = 1
	}
	e.mu.Lock()
	e.state.Volume = volume
	e.applySinkVolumeLocked()
	notify := e.emitLocked(origin)
	state := e.state
	e.mu.Unlock()
	notify()
	return state
}

// ToggleMute flips the mute flag; the stored volume is kept.
func (e *Engine) ToggleMute() model.PlaybackState {
	return e.setMuted(!e.State().IsMuted, OriginLocal)
}

func (e *Engine) setMuted(muted bool, origin Origin) model.PlaybackState {
	e.mu.Lock()
	if e.state.IsMuted == muted {
		defer e.mu.Unlock()
		return e.state
	}
	e.state.IsMuted = muted
	e.applySinkVolumeLocked()
	notify := e.emitLocked(origin)
	state := e.state
	e.mu.Unlock()
	notify()
	return state
}

func (e *Engine) applySinkVolumeLocked() {
	if e.state.IsMuted {
		e.sink.SetVolume(0)
	} else {
		e.sink.SetVolume(e.state.Volume)
	}
}

// ========== Modes ==========

// ToggleShuffle flips shuffle mode.
func (e *Engine) ToggleShuffle() model.PlaybackState {
	return e.setShuffled(!e.State().IsShuffled, OriginLocal)
}

func (e *Engine) setShuffled(shuffled bool, origin Origin) model.PlaybackState {
	e.mu.Lock()
	if e.state.IsShuffled == shuffled {
		defer e.mu.Unlock()
		return e.state
	}
	e.state.IsShuffled = shuffled
	notify := e.emitLocked(origin)
	state := e.state
	e.mu.Unlock()
	notify()
	return state
}

// ToggleRepeat flips repeat mode.
func (e *Engine) ToggleRepeat() model.PlaybackState {
	return e.setRepeating(!e.State().IsRepeating, OriginLocal)
}

func (e *Engine) setRepeating(repeating bool, origin Origin) model.PlaybackState {
	e.mu.Lock()
	if e.state.IsRepeating == repeating {
		defer e.mu.Unlock()
		return e.state
	}
	e.state.IsRepeating = repeating
	notify := e.emitLocked(origin)
	state := e.state
	e.mu.Unlock()
	notify()
	return state
}

// ========== Track selection ==========

// SelectTrack selects a track by index and starts playing it from the top.
// Out-of-range indexes are ignored.
func (e *Engine) SelectTrack(index int) model.PlaybackState {
	return e.selectTrack(index, OriginLocal)
}

func (e *Engine) selectTrack(index int, origin Origin) model.PlaybackState {
	e.mu.Lock()
	if index < 0 || index >= len(e.tracks) {
		defer e.mu.Unlock()
		return e.state
	}
	e.selectLocked(index, true)
	notify := e.emitLocked(origin)
	state := e.state
	e.mu.Unlock()
	notify()
	return state
}

// selectLocked moves the selection and resets position. forcePlay starts
// playback (user clicked a track); otherwise the transport flag is preserved
// (next/previous during continuous playback).
func (e *Engine) selectLocked(index int, forcePlay bool) {
	e.state.CurrentTrackIndex = index
	e.state.CurrentTime = 0
	e.state.Duration = e.tracks[index].Duration
	if forcePlay {
		e.state.IsPlaying = true
	}
	e.sink.Load(e.tracks[index].Src)
	e.sink.Seek(0)
	if e.state.IsPlaying {
		e.sink.Play()
	}
}

// Next advances the selection: uniformly random among the other tracks when
// shuffling, otherwise one forward with wraparound.
func (e *Engine) Next() model.PlaybackState { return e.next(OriginLocal) }

func (e *Engine) next(origin Origin) model.PlaybackState {
	e.mu.Lock()
	if len(e.tracks) == 0 {
		defer e.mu.Unlock()
		return e.state
	}
	e.selectLocked(e.nextIndexLocked(), false)
	notify := e.emitLocked(origin)
	state := e.state
	e.mu.Unlock()
	notify()
	return state
}

func (e *Engine) nextIndexLocked() int {
	if e.state.IsShuffled && len(e.tracks) > 1 {
		for {
			idx := e.rng.Intn(len(e.tracks))
			if idx != e.state.CurrentTrackIndex {
				return idx
			}
		}
	}
	idx := e.state.CurrentTrackIndex + 1
	if idx >= len(e.tracks) {
		return 0
	}
	return idx
}

// Previous restarts the current track when more than three seconds in,
// otherwise moves one back with wraparound.
func (e *Engine) Previous() model.PlaybackState { return e.previous(OriginLocal) }

func (e *Engine) previous(origin Origin) model.PlaybackState {
	e.mu.Lock()
	if len(e.tracks) == 0 {
		defer e.mu.Unlock()
		return e.state
	}

	if e.state.CurrentTrackIndex != model.NoTrack && e.state.CurrentTime > previousRestartThreshold {
		e.state.CurrentTime = 0
		e.sink.Seek(0)
	} else {
		idx := e.state.CurrentTrackIndex - 1
		if idx < 0 {
			idx = len(e.tracks) - 1
		}
		e.selectLocked(idx, false)
	}
	notify := e.emitLocked(origin)
	state := e.state
	e.mu.Unlock()
	notify()
	return state
}

// ========== Library ==========

// AddTrack appends a track; the first track added becomes the selection
// without starting playback.
func (e *Engine) AddTrack(track model.Track) model.PlaybackState {
	e.mu.Lock()
	e.tracks = append(e.tracks, track)
	if len(e.tracks) == 1 {
		e.state.CurrentTrackIndex = 0
		e.state.Duration = track.Duration
		e.sink.Load(track.Src)
	}
	notify := e.emitLocked(OriginLocal)
	state := e.state
	e.mu.Unlock()
	notify()
	return state
}

// RemoveTrack removes a track by identity. Removing the selected track stops
// playback when it was the last one, and clamps the selection to 0 when the
// index would run off the end.
func (e *Engine) RemoveTrack(trackID string) model.PlaybackState {
	e.mu.Lock()
	index := -1
	for i, t := range e.tracks {
		if t.ID == trackID {
			index = i
			break
		}
	}
	if index == -1 {
		defer e.mu.Unlock()
		return e.state
	}

	e.tracks = append(e.tracks[:index], e.tracks[index+1:]...)

	switch {
	case e.state.CurrentTrackIndex == index:
		if len(e.tracks) == 0 {
			e.state.CurrentTrackIndex = model.NoTrack
			e.state.IsPlaying = false
			e.state.CurrentTime = 0
			e.state.Duration = 0
			e.sink.Pause()
		} else {
			if e.state.CurrentTrackIndex >= len(e.tracks) {
				e.state.CurrentTrackIndex = 0
			}
			e.selectLocked(e.state.CurrentTrackIndex, false)
		}
	case e.state.CurrentTrackIndex > index:
		e.state.CurrentTrackIndex--
	}

	notify := e.emitLocked(OriginLocal)
	state := e.state
	e.mu.Unlock()
	notify()
	return state
}

// ToggleFavorite flips a track's favorite flag.
func (e *Engine) ToggleFavorite(trackID string) model.PlaybackState {
	e.mu.Lock()
	for i := range e.tracks {
		if e.tracks[i].ID == trackID {
			e.tracks[i].Favorite = !e.tracks[i].Favorite
			break
		}
	}
	notify := e.emitLocked(OriginLocal)
	state := e.state
	e.mu.Unlock()
	notify()
	return state
}

// ========== Sink signals ==========

// UpdatePosition records the sink's playback position. Continuous updates do
// not fire change listeners; the synchronizer's tick reads them from State.
func (e *Engine) UpdatePosition(seconds float64) {
	e.mu.Lock()
	e.state.CurrentTime = seconds
	e.mu.Unlock()
}

// SetDuration records the track duration once the sink knows it.
func (e *Engine) SetDuration(seconds float64) {
	e.mu.Lock()
	e.state.Duration = seconds
	if i := e.state.CurrentTrackIndex; i != model.NoTrack && e.tracks[i].Duration == 0 {
		e.tracks[i].Duration = seconds
	}
	e.mu.Unlock()
}

// HandleTrackEnd reacts to the sink reaching end-of-track: restart when
// repeating, otherwise advance like Next.
func (e *Engine) HandleTrackEnd() model.PlaybackState {
	e.mu.Lock()
	if e.state.IsRepeating && e.state.CurrentTrackIndex != model.NoTrack {
		e.state.CurrentTime = 0
		e.sink.Seek(0)
		e.sink.Play()
		notify := e.emitLocked(OriginLocal)
		state := e.state
		e.mu.Unlock()
		notify()
		return state
	}
	e.mu.Unlock()
	return e.next(OriginLocal)
}

// HandleError reacts to a sink playback error by pausing.
func (e *Engine) HandleError(err error) model.PlaybackState {
	return e.pause(OriginLocal)
}

// ========== Remote application ==========

// RemoteControl applies reconciliation decisions to the engine with
// OriginRemote, so the resulting change events are not re-published.
type RemoteControl struct {
	e *Engine
}

// Remote returns the engine's remote-origin mutation surface.
func (e *Engine) Remote() RemoteControl {
	return RemoteControl{e: e}
}

func (r RemoteControl) SelectTrack(index int) model.PlaybackState {
	return r.e.selectTrack(index, OriginRemote)
}

func (r RemoteControl) TogglePlay() model.PlaybackState {
	return r.e.togglePlay(OriginRemote)
}

func (r RemoteControl) Seek(seconds float64) model.PlaybackState {
	return r.e.seek(seconds, OriginRemote)
}

func (r RemoteControl) SetVolume(volume float64) model.PlaybackState {
	return r.e.setVolume(volume, OriginRemote)
}

func (r RemoteControl) SetMuted(muted bool) model.PlaybackState {
	return r.e.setMuted(muted, OriginRemote)
}

func (r RemoteControl) SetShuffled(shuffled bool) model.PlaybackState {
	return r.e.setShuffled(shuffled, OriginRemote)
}

func (r RemoteControl) SetRepeating(repeating bool) model.PlaybackState {
	return r.e.setRepeating(repeating, OriginRemote)
}
