package entities

const (
	MinSpeed     = 0.5
	MaxSpeed     = 2.0
	DefaultSpeed = 1.0
)

// PlaybackStatus represents the state of the audio-playback session.
type PlaybackStatus int

const (
	StatusIdle PlaybackStatus = iota
	StatusLoading
	StatusPlaying
	StatusPaused
	StatusCompleted
)

// String returns the status name.
func (s PlaybackStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	case StatusCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// RepeatMode defines what plays after the current verse finishes.
type RepeatMode int

const (
	RepeatNone RepeatMode = iota
	RepeatVerse
	RepeatChapter
)

// String returns the repeat mode name.
func (m RepeatMode) String() string {
	switch m {
	case RepeatNone:
		return "off"
	case RepeatVerse:
		return "verse"
	case RepeatChapter:
		return "chapter"
	default:
		return "unknown"
	}
}

// Next returns the mode that follows m in the None -> Verse -> Chapter cycle.
func (m RepeatMode) Next() RepeatMode {
	switch m {
	case RepeatNone:
		return RepeatVerse
	case RepeatVerse:
		return RepeatChapter
	default:
		return RepeatNone
	}
}

// PlaybackState is a snapshot of the single playback session.
type PlaybackState struct {
	ActiveVerse int            // global number of the active verse, 0 when none
	Status      PlaybackStatus // state machine position
	IsPlaying   bool           // audio is audible right now
	Position    float64        // seconds
	Duration    float64        // seconds, 0 until metadata is known
	Speed       float64        // multiplier (0.5-2.0)
	Repeat      RepeatMode
}

// HasSession reports whether a verse is active.
func (s PlaybackState) HasSession() bool {
	return s.ActiveVerse != 0
}

// ProgressPercent returns playback progress as a percentage (0-100).
func (s PlaybackState) ProgressPercent() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return s.Position / s.Duration * 100
}

// AudioEventKind is the kind of signal sent by an audio backend.
type AudioEventKind int

const (
	AudioTimeUpdate AudioEventKind = iota
	AudioLoadedMetadata
	AudioEnded
	AudioError
)

// AudioEvent is a timing or lifecycle signal from an audio backend.
type AudioEvent struct {
	Kind     AudioEventKind
	Position float64 // seconds
	Duration float64 // seconds
	Err      error   // set for AudioError
}

// ClampSpeed bounds a speed multiplier to the supported range.
func ClampSpeed(x float64) float64 {
	return min(MaxSpeed, max(MinSpeed, x))
}
