package domain

import "context"

// ServerClient provides the media-server operations the playback engine
// consumes. The server owns transcoding; this client only negotiates.
type ServerClient interface {
	// GetItem fetches an item with media sources and user state
	GetItem(ctx context.Context, itemID string) (MediaItem, error)

	// GetPlaybackInfo posts the device profile and playback preferences,
	// returning server-resolved media sources and a play session id
	GetPlaybackInfo(ctx context.Context, req PlaybackInfoRequest) (PlaybackInfo, error)

	// ReportStart announces a new playback session
	ReportStart(ctx context.Context, report ProgressReport) error

	// ReportProgress updates the server with the current position
	ReportProgress(ctx context.Context, report ProgressReport) error

	// ReportStopped finalizes a playback session
	ReportStopped(ctx context.Context, report ProgressReport) error

	// GetSkipSegments fetches intro/outro ranges for an item
	GetSkipSegments(ctx context.Context, itemID string) ([]SkipSegment, error)

	// GetTrickplayConfigs lists available sprite resolutions per source
	GetTrickplayConfigs(ctx context.Context, itemID string) ([]TrickplayConfig, error)

	// GetTrickplaySprite fetches one sprite sheet image
	GetTrickplaySprite(ctx context.Context, itemID, mediaSourceID string, width, spriteIndex int) ([]byte, error)

	// GetSubtitles fetches and parses a sidecar subtitle track
	GetSubtitles(ctx context.Context, url string) ([]SubtitleCue, error)

	// SetFavorite marks or unmarks an item as favorite
	SetFavorite(ctx context.Context, itemID string, favorite bool) error
}

// PlaybackInfoRequest carries the client side of playback-info negotiation
type PlaybackInfoRequest struct {
	ItemID              string
	MediaSourceID       string
	Profile             DeviceProfile
	MaxBitrate          int
	StartTicks          Ticks
	AudioStreamIndex    int
	SubtitleStreamIndex int
	EnableDirectPlay    bool
	EnableDirectStream  bool
	EnableTranscoding   bool
}

// PlaybackInfo is the server's answer: resolved sources plus the session
// correlation id the server expects on every report
type PlaybackInfo struct {
	Sources       []MediaSource
	PlaySessionID string
}

// Player is the uniform playback surface the session controller drives.
// Implementations declare a category; the controller never probes for
// method presence.
type Player interface {
	// Category returns the media category this player renders
	Category() MediaCategory

	// Load begins playback of a resolved stream at its start offset
	Load(ctx context.Context, stream ResolvedStream) error

	// Play resumes a paused player
	Play()

	// Pause suspends playback, keeping the stream loaded
	Pause()

	// Seek jumps to an absolute position in seconds. Seeks before
	// readiness are held (latest wins) and applied once ready.
	Seek(seconds float64)

	// SetVolume sets volume (0-100)
	SetVolume(volume int)

	// SetMuted toggles mute
	SetMuted(muted bool)

	// Position returns the current playback position in seconds
	Position() float64

	// Subscribe registers the single event sink for this player
	Subscribe(fn func(PlayerEvent))

	// Release stops playback and frees decoder resources. Safe to call
	// more than once.
	Release()
}
