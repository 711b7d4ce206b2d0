package player

// MediaSink is the external media playback collaborator. The engine drives it
// with transport commands and receives position/end/error signals back through
// UpdatePosition, SetDuration, HandleTrackEnd and HandleError.
type MediaSink interface {
	Load(src string)
	Play()
	Pause()
	Seek(seconds float64)
	SetVolume(volume float64) // Effective volume: 0 while muted
}

// NullSink is a no-op MediaSink for headless use and tests.
type NullSink struct{}

func (NullSink) Load(string)       {}
func (NullSink) Play()             {}
func (NullSink) Pause()            {}
func (NullSink) Seek(float64)      {}
func (NullSink) SetVolume(float64) {}
