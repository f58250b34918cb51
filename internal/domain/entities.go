package domain

import (
	"fmt"
	"time"
)

// MediaKind distinguishes playable content types
type MediaKind int

const (
	MediaKindMovie MediaKind = iota
	MediaKindEpisode
	MediaKindTVChannel
	MediaKindAudio
)

// Category returns the media category a kind plays in.
// Decode resources are exclusive per category, not per kind.
func (k MediaKind) Category() MediaCategory {
	if k == MediaKindAudio {
		return CategoryAudio
	}
	return CategoryVideo
}

// MediaCategory partitions playback into surfaces that cannot share a decoder
type MediaCategory int

const (
	CategoryVideo MediaCategory = iota
	CategoryAudio
)

// String returns a human-readable representation of the category
func (c MediaCategory) String() string {
	if c == CategoryAudio {
		return "audio"
	}
	return "video"
}

// MediaItem represents a playable item (Movie, Episode, TV channel or audio track)
type MediaItem struct {
	ID           string        // Server-specific unique identifier
	Name         string        // Display title
	Kind         MediaKind     // Movie, Episode, TV channel, audio
	LibraryID    string        // Parent library ID
	RunTimeTicks Ticks         // Total runtime in 100ns ticks
	Sources      []MediaSource // Available media sources (files/streams)
	UserState    UserState     // Per-user playback state

	// Episode-specific fields (empty for other kinds)
	SeriesName string // Parent show name
	SeriesID   string // Parent show ID
	SeasonNum  int    // Season number (0 = specials)
	EpisodeNum int    // Episode number within season

	IsLive bool // Live source (TV channel); playback has no fixed end
}

// UserState contains the server-tracked per-user state for an item
type UserState struct {
	PositionTicks Ticks // Saved resume position
	Played        bool  // Whether item is marked as watched
	Favorite      bool  // Whether item is marked as favorite
}

// Duration returns the total runtime as a time.Duration
func (m MediaItem) Duration() time.Duration {
	return m.RunTimeTicks.Duration()
}

// ShouldResume returns true if playback should resume from the saved position
func (m MediaItem) ShouldResume() bool {
	return m.UserState.PositionTicks > 0 && !m.UserState.Played
}

// EpisodeCode returns the formatted episode code (e.g., "S01E05")
func (m MediaItem) EpisodeCode() string {
	if m.Kind != MediaKindEpisode {
		return ""
	}
	return fmt.Sprintf("S%02dE%02d", m.SeasonNum, m.EpisodeNum)
}

// DisplayTitle returns the title with series context for episodes
func (m MediaItem) DisplayTitle() string {
	if m.Kind == MediaKindEpisode && m.SeriesName != "" {
		return fmt.Sprintf("%s %s - %s", m.SeriesName, m.EpisodeCode(), m.Name)
	}
	return m.Name
}

// DefaultSource returns the first media source, if any
func (m MediaItem) DefaultSource() (MediaSource, bool) {
	if len(m.Sources) == 0 {
		return MediaSource{}, false
	}
	return m.Sources[0], true
}

// SourceByID finds a media source by id
func (m MediaItem) SourceByID(id string) (MediaSource, bool) {
	for _, s := range m.Sources {
		if s.ID == id {
			return s, true
		}
	}
	return MediaSource{}, false
}

// StreamType identifies the kind of an embedded media stream
type StreamType int

const (
	StreamTypeVideo StreamType = iota
	StreamTypeAudio
	StreamTypeSubtitle
)

// MediaStream represents a single video, audio, or subtitle stream in a source
type MediaStream struct {
	Type     StreamType
	Codec    string // Lowercase codec name: "h264", "aac", "subrip"
	Index    int    // Server-side stream index
	Language string // ISO 639 language code
	Default  bool
	Forced   bool

	// Video-only fields
	Width      int
	Height     int
	BitRate    int
	VideoRange string // "SDR", "HDR10", "DOVI"

	// Audio-only fields
	Channels int
}

// MediaSource represents one playable rendition of an item
type MediaSource struct {
	ID           string
	Container    string // Lowercase container: "mkv", "mp4"
	Bitrate      int    // Overall bitrate in bps
	RunTimeTicks Ticks
	Streams      []MediaStream

	// Server-declared delivery capabilities
	SupportsDirectPlay   bool
	SupportsDirectStream bool
	SupportsTranscoding  bool

	// Set by the server when it already picked a transcode path
	TranscodingURL         string
	TranscodingSubProtocol string // "hls" when the URL is a playlist
}

// DefaultAudioStream returns the default (or first) audio stream
func (s MediaSource) DefaultAudioStream() (MediaStream, bool) {
	var first *MediaStream
	for i := range s.Streams {
		st := &s.Streams[i]
		if st.Type != StreamTypeAudio {
			continue
		}
		if st.Default {
			return *st, true
		}
		if first == nil {
			first = st
		}
	}
	if first != nil {
		return *first, true
	}
	return MediaStream{}, false
}

// StreamByIndex finds a stream by its server-side index
func (s MediaSource) StreamByIndex(index int) (MediaStream, bool) {
	for _, st := range s.Streams {
		if st.Index == index {
			return st, true
		}
	}
	return MediaStream{}, false
}

// SubtitleStreams returns all subtitle streams in source order
func (s MediaSource) SubtitleStreams() []MediaStream {
	var out []MediaStream
	for _, st := range s.Streams {
		if st.Type == StreamTypeSubtitle {
			out = append(out, st)
		}
	}
	return out
}

// TrickplayConfig describes one precomputed sprite-sheet resolution for a source
type TrickplayConfig struct {
	MediaSourceID  string
	Width          int // Tile width in pixels
	Height         int // Tile height in pixels
	TileWidth      int // Tiles per sprite row
	TileHeight     int // Tiles per sprite column
	Interval       int // Milliseconds covered by one tile
	ThumbnailCount int
}

// SkipSegmentType identifies a skippable range
type SkipSegmentType int

const (
	SkipSegmentIntro SkipSegmentType = iota
	SkipSegmentOutro
)

// String returns a human-readable representation of the segment type
func (t SkipSegmentType) String() string {
	if t == SkipSegmentOutro {
		return "Outro"
	}
	return "Intro"
}

// SkipSegment is a server-provided skippable range, half-open [Start, End)
type SkipSegment struct {
	Type  SkipSegmentType
	Start Ticks
	End   Ticks
}

// Contains reports whether the position falls inside the segment
func (s SkipSegment) Contains(pos Ticks) bool {
	return pos >= s.Start && pos < s.End
}

// SubtitleCue is one client-rendered sidecar subtitle cue
type SubtitleCue struct {
	ID    string
	Start time.Duration
	End   time.Duration
	Text  string
}
