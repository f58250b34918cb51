package domain

// PlayMethod is how the resolved stream is delivered
type PlayMethod int

const (
	// PlayMethodDirectPlay serves the original file unmodified
	PlayMethodDirectPlay PlayMethod = iota
	// PlayMethodDirectStream is a server-side remux, no re-encode
	PlayMethodDirectStream
	// PlayMethodTranscode is a server-side re-encode delivered as an
	// adaptive segmented stream
	PlayMethodTranscode
)

// String returns the wire-protocol name of the play method
func (m PlayMethod) String() string {
	switch m {
	case PlayMethodDirectPlay:
		return "DirectPlay"
	case PlayMethodDirectStream:
		return "DirectStream"
	default:
		return "Transcode"
	}
}

// PlaybackState is the session controller's state machine position
type PlaybackState int

const (
	StateIdle PlaybackState = iota
	StateLoading
	StatePlaying
	StatePaused
	StateEnded
	StateStopped
)

// String returns a human-readable representation of the state
func (s PlaybackState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateLoading:
		return "Loading"
	case StatePlaying:
		return "Playing"
	case StatePaused:
		return "Paused"
	case StateEnded:
		return "Ended"
	default:
		return "Stopped"
	}
}

// ResolvedStream is the output of stream resolution: everything the player
// and the reporting protocol need to start one playback attempt.
type ResolvedStream struct {
	URL           string
	Container     string
	MimeType      string
	Method        PlayMethod
	SessionID     string // Fresh random id per resolution
	MediaSourceID string
	StartTicks    Ticks // Offset playback begins at

	AudioStreamIndex    int // -1 when server default
	SubtitleStreamIndex int // -1 when none selected

	// Sidecar subtitle URL for client-rendered text tracks, empty when
	// subtitles are embedded, burned in, or off
	SubtitleSidecarURL string

	Live bool
}

// PlaybackSession is the live state for one playback attempt. A fresh
// session id is generated on every play(); ids are never reused.
type PlaybackSession struct {
	SessionID string
	Item      MediaItem
	Source    MediaSource
	Method    PlayMethod

	PositionTicks Ticks
	Rate          float64
	Paused        bool
	Muted         bool
	Volume        int // 0-100

	AudioStreamIndex    int
	SubtitleStreamIndex int
}

// ProgressReport is one start/progress/stop report sent to the server
type ProgressReport struct {
	ItemID              string
	MediaSourceID       string
	SessionID           string
	PositionTicks       Ticks
	Paused              bool
	Muted               bool
	VolumeLevel         int
	Method              PlayMethod
	AudioStreamIndex    int
	SubtitleStreamIndex int
}
