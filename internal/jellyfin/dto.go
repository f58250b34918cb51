package jellyfin

// Item represents a media item from the server (movie, episode, channel, audio)
type Item struct {
	ID                string        `json:"Id"`
	Name              string        `json:"Name"`
	Type              string        `json:"Type"` // "Movie", "Episode", "TvChannel", "Audio"
	ParentID          string        `json:"ParentId,omitempty"`
	RunTimeTicks      int64         `json:"RunTimeTicks,omitempty"` // Duration in 100-nanosecond units
	SeriesID          string        `json:"SeriesId,omitempty"`
	SeriesName        string        `json:"SeriesName,omitempty"`
	ParentIndexNumber int           `json:"ParentIndexNumber,omitempty"` // Season number
	IndexNumber       int           `json:"IndexNumber,omitempty"`       // Episode number
	UserData          *UserData     `json:"UserData,omitempty"`
	MediaSources      []MediaSource `json:"MediaSources,omitempty"`

	// Trickplay maps media source id -> tile width -> sprite info
	Trickplay map[string]map[string]TrickplayInfo `json:"Trickplay,omitempty"`
}

// UserData contains user-specific data for an item (watch status, progress)
type UserData struct {
	PlaybackPositionTicks int64 `json:"PlaybackPositionTicks"` // Progress in 100-nanosecond units
	PlayCount             int   `json:"PlayCount"`
	IsFavorite            bool  `json:"IsFavorite"`
	Played                bool  `json:"Played"`
}

// MediaSource represents a media source (file) for an item
type MediaSource struct {
	ID                     string        `json:"Id"`
	Container              string        `json:"Container"`
	Bitrate                int           `json:"Bitrate,omitempty"`
	RunTimeTicks           int64         `json:"RunTimeTicks"`
	SupportsDirectPlay     bool          `json:"SupportsDirectPlay"`
	SupportsDirectStream   bool          `json:"SupportsDirectStream"`
	SupportsTranscoding    bool          `json:"SupportsTranscoding"`
	MediaStreams           []MediaStream `json:"MediaStreams,omitempty"`
	TranscodingURL         string        `json:"TranscodingUrl,omitempty"`
	TranscodingSubProtocol string        `json:"TranscodingSubProtocol,omitempty"`
}

// MediaStream represents a video, audio, or subtitle stream
type MediaStream struct {
	Codec          string `json:"Codec"`
	Language       string `json:"Language,omitempty"`
	Type           string `json:"Type"` // "Video", "Audio", "Subtitle"
	Index          int    `json:"Index"`
	IsDefault      bool   `json:"IsDefault"`
	IsForced       bool   `json:"IsForced"`
	Height         int    `json:"Height,omitempty"`
	Width          int    `json:"Width,omitempty"`
	BitRate        int    `json:"BitRate,omitempty"`
	Channels       int    `json:"Channels,omitempty"`
	VideoRangeType string `json:"VideoRangeType,omitempty"`
}

// TrickplayInfo describes one precomputed sprite-sheet resolution
type TrickplayInfo struct {
	Width          int `json:"Width"`
	Height         int `json:"Height"`
	TileWidth      int `json:"TileWidth"`
	TileHeight     int `json:"TileHeight"`
	ThumbnailCount int `json:"ThumbnailCount"`
	Interval       int `json:"Interval"` // Milliseconds per tile
}

// PlaybackInfoRequest is the body of POST /Items/{id}/PlaybackInfo
type PlaybackInfoRequest struct {
	UserID               string         `json:"UserId,omitempty"`
	MediaSourceID        string         `json:"MediaSourceId,omitempty"`
	MaxStreamingBitrate  int            `json:"MaxStreamingBitrate,omitempty"`
	StartTimeTicks       int64          `json:"StartTimeTicks,omitempty"`
	AudioStreamIndex     *int           `json:"AudioStreamIndex,omitempty"`
	SubtitleStreamIndex  *int           `json:"SubtitleStreamIndex,omitempty"`
	DeviceProfile        *DeviceProfile `json:"DeviceProfile,omitempty"`
	EnableDirectPlay     bool           `json:"EnableDirectPlay"`
	EnableDirectStream   bool           `json:"EnableDirectStream"`
	EnableTranscoding    bool           `json:"EnableTranscoding"`
	AllowVideoStreamCopy bool           `json:"AllowVideoStreamCopy"`
	AllowAudioStreamCopy bool           `json:"AllowAudioStreamCopy"`
	AutoOpenLiveStream   bool           `json:"AutoOpenLiveStream"`
}

// PlaybackInfoResponse contains playback information for an item
type PlaybackInfoResponse struct {
	MediaSources  []MediaSource `json:"MediaSources"`
	PlaySessionID string        `json:"PlaySessionId"`
	ErrorCode     string        `json:"ErrorCode,omitempty"`
}

// DeviceProfile is the wire form of the client capability declaration
type DeviceProfile struct {
	Name                string               `json:"Name,omitempty"`
	MaxStreamingBitrate int                  `json:"MaxStreamingBitrate,omitempty"`
	DirectPlayProfiles  []DirectPlayProfile  `json:"DirectPlayProfiles,omitempty"`
	CodecProfiles       []CodecProfile       `json:"CodecProfiles,omitempty"`
	SubtitleProfiles    []SubtitleProfile    `json:"SubtitleProfiles,omitempty"`
	TranscodingProfiles []TranscodingProfile `json:"TranscodingProfiles,omitempty"`
}

// DirectPlayProfile declares a natively playable container/codec combination
type DirectPlayProfile struct {
	Type       string `json:"Type"`
	Container  string `json:"Container,omitempty"`
	VideoCodec string `json:"VideoCodec,omitempty"`
	AudioCodec string `json:"AudioCodec,omitempty"`
}

// CodecProfile constrains a partially supported codec
type CodecProfile struct {
	Type       string             `json:"Type"`
	Codec      string             `json:"Codec,omitempty"`
	Conditions []ProfileCondition `json:"Conditions,omitempty"`
}

// ProfileCondition is one constraint inside a codec profile
type ProfileCondition struct {
	Condition  string `json:"Condition"`
	Property   string `json:"Property"`
	Value      string `json:"Value"`
	IsRequired bool   `json:"IsRequired"`
}

// SubtitleProfile maps a subtitle format to a delivery method
type SubtitleProfile struct {
	Format string `json:"Format"`
	Method string `json:"Method"`
}

// TranscodingProfile declares the preferred transcode target
type TranscodingProfile struct {
	Type                string `json:"Type"`
	Container           string `json:"Container"`
	Protocol            string `json:"Protocol"`
	VideoCodec          string `json:"VideoCodec,omitempty"`
	AudioCodec          string `json:"AudioCodec,omitempty"`
	MinSegments         int    `json:"MinSegments,omitempty"`
	BreakOnNonKeyFrames bool   `json:"BreakOnNonKeyFrames,omitempty"`
}

// MediaSegmentsResponse is the reply of GET /MediaSegments/{itemId}
type MediaSegmentsResponse struct {
	Items []MediaSegment `json:"Items"`
}

// MediaSegment is one skippable range
type MediaSegment struct {
	ID         string `json:"Id"`
	ItemID     string `json:"ItemId"`
	Type       string `json:"Type"` // "Intro", "Outro", "Recap", "Preview", "Commercial"
	StartTicks int64  `json:"StartTicks"`
	EndTicks   int64  `json:"EndTicks"`
}

// PlaybackStartInfo is the body of the session reporting endpoints
type PlaybackStartInfo struct {
	ItemID              string `json:"ItemId"`
	MediaSourceID       string `json:"MediaSourceId,omitempty"`
	PlaySessionID       string `json:"PlaySessionId"`
	PositionTicks       int64  `json:"PositionTicks"`
	IsPaused            bool   `json:"IsPaused"`
	IsMuted             bool   `json:"IsMuted"`
	VolumeLevel         int    `json:"VolumeLevel,omitempty"`
	PlayMethod          string `json:"PlayMethod"`
	AudioStreamIndex    *int   `json:"AudioStreamIndex,omitempty"`
	SubtitleStreamIndex *int   `json:"SubtitleStreamIndex,omitempty"`
	CanSeek             bool   `json:"CanSeek"`
}
