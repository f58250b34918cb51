// Package resolver turns a "play this item" intent into a playable URL.
// It negotiates media sources with the server using the device profile,
// decides between direct play, direct stream and transcode, and builds the
// final stream URL.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/tversen/flick/internal/domain"
	"github.com/tversen/flick/internal/jellyfin"
)

// defaultBitrateCap bounds transcode requests when neither an explicit
// override nor a quality preset applies. Never request unlimited bitrate.
const defaultBitrateCap = 8_000_000

// Containers the local runtime demuxes natively
var directPlayContainers = map[string]bool{
	"mp4":  true,
	"m4v":  true,
	"mov":  true,
	"webm": true,
}

// Audio codecs the local runtime decodes natively
var directPlayAudioCodecs = map[string]bool{
	"aac":    true,
	"mp3":    true,
	"opus":   true,
	"flac":   true,
	"vorbis": true,
}

// Text subtitle formats deliverable as client-rendered sidecar tracks
var textSubtitleFormats = map[string]bool{
	"subrip": true,
	"srt":    true,
	"ass":    true,
	"ssa":    true,
	"vtt":    true,
	"webvtt": true,
}

// negotiator is the server-side half of stream resolution
type negotiator interface {
	GetPlaybackInfo(ctx context.Context, req domain.PlaybackInfoRequest) (domain.PlaybackInfo, error)
}

// Resolver decides play method and builds playable URLs
type Resolver struct {
	server  negotiator
	baseURL string
	token   string
	logger  *slog.Logger
}

// NewResolver creates a stream resolver. baseURL and token are used for
// stream URL construction; negotiation goes through the server client.
func NewResolver(server negotiator, baseURL, token string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		server:  server,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		logger:  logger,
	}
}

// Request carries one resolution intent. Zero values mean "server default"
// except where noted.
type Request struct {
	Item          domain.MediaItem
	MediaSourceID string // Empty selects the first usable source

	AudioStreamIndex    int // -1 for server default
	SubtitleStreamIndex int // -1 for none

	StartTicks domain.Ticks

	Profile        domain.DeviceProfile
	ForceTranscode bool // User-forced transcode mode

	// Bitrate resolution precedence: BitrateOverride (explicit numeric)
	// beats PresetBitrate (named quality preset ceiling) beats the
	// default cap.
	BitrateOverride int
	PresetBitrate   int
}

// NewRequest returns a Request with the index fields at their "unset"
// sentinels
func NewRequest(item domain.MediaItem) Request {
	return Request{Item: item, AudioStreamIndex: -1, SubtitleStreamIndex: -1}
}

// EffectiveBitrate resolves the bitrate cap for this request
func (r Request) EffectiveBitrate() int {
	if r.BitrateOverride > 0 {
		return r.BitrateOverride
	}
	if r.PresetBitrate > 0 {
		return r.PresetBitrate
	}
	return defaultBitrateCap
}

// Resolve negotiates with the server and decides the play method.
// A fresh session id is generated on every call; no session is created
// when resolution fails.
func (r *Resolver) Resolve(ctx context.Context, req Request) (domain.ResolvedStream, error) {
	maxBitrate := req.EffectiveBitrate()

	info, err := r.server.GetPlaybackInfo(ctx, domain.PlaybackInfoRequest{
		ItemID:              req.Item.ID,
		MediaSourceID:       req.MediaSourceID,
		Profile:             req.Profile,
		MaxBitrate:          maxBitrate,
		StartTicks:          req.StartTicks,
		AudioStreamIndex:    req.AudioStreamIndex,
		SubtitleStreamIndex: req.SubtitleStreamIndex,
		EnableDirectPlay:    !req.ForceTranscode,
		EnableDirectStream:  !req.ForceTranscode,
		EnableTranscoding:   true,
	})
	if err != nil {
		return domain.ResolvedStream{}, err
	}

	source, ok := pickSource(info.Sources, req.MediaSourceID)
	if !ok {
		return domain.ResolvedStream{}, &domain.StreamResolutionError{
			ItemID: req.Item.ID,
			Reason: "no usable media source",
		}
	}

	sessionID := info.PlaySessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	audioIndex := req.AudioStreamIndex
	audioCodec := resolveAudioCodec(source, audioIndex)
	subtitle, haveSubtitle := resolveSubtitle(source, req.SubtitleStreamIndex)
	burnIn := haveSubtitle && !textSubtitleFormats[subtitle.Codec]

	stream := domain.ResolvedStream{
		Method:              domain.PlayMethodTranscode,
		SessionID:           sessionID,
		MediaSourceID:       source.ID,
		StartTicks:          req.StartTicks,
		AudioStreamIndex:    audioIndex,
		SubtitleStreamIndex: req.SubtitleStreamIndex,
		Live:                req.Item.IsLive,
	}

	// Decision order: forced transcode first, then direct play/stream,
	// then transcode.
	if !req.ForceTranscode && r.canPlayDirect(source, audioCodec, maxBitrate, burnIn, req.Profile) {
		if source.SupportsDirectPlay {
			stream.Method = domain.PlayMethodDirectPlay
		} else {
			stream.Method = domain.PlayMethodDirectStream
		}
		stream.Container = source.Container
		stream.MimeType = containerMime(source.Container)
		stream.URL = r.directStreamURL(req.Item.ID, source, sessionID)
	} else {
		transcodeURL, err := r.transcodeURL(req.Item.ID, source, sessionID, req, maxBitrate, burnIn)
		if err != nil {
			return domain.ResolvedStream{}, err
		}
		stream.Container = "ts"
		stream.MimeType = "application/x-mpegURL"
		stream.URL = transcodeURL
	}

	// Text subtitles ride along as a sidecar track regardless of play
	// method, so choosing them never forces a video re-encode.
	if haveSubtitle && !burnIn {
		stream.SubtitleSidecarURL = jellyfin.SubtitleSidecarURL(req.Item.ID, source.ID, subtitle.Index, req.StartTicks)
	}

	r.logger.Info("stream resolved",
		"item", req.Item.ID,
		"source", source.ID,
		"method", stream.Method.String(),
		"session", sessionID,
	)

	return stream, nil
}

// SidecarURL builds the sidecar track URL for a text subtitle stream, for
// switching subtitles on an already resolved stream
func (r *Resolver) SidecarURL(itemID, mediaSourceID string, streamIndex int, start domain.Ticks) string {
	return jellyfin.SubtitleSidecarURL(itemID, mediaSourceID, streamIndex, start)
}

// canPlayDirect applies the local direct-play gate: the server must flag
// the source, the container and audio codec must be natively decodable,
// the bitrate cap must hold, and no subtitle burn-in may be required.
// Decodability comes from the device profile when one was built; the
// built-in tables cover profile-less resolution.
func (r *Resolver) canPlayDirect(source domain.MediaSource, audioCodec string, maxBitrate int, burnIn bool, profile domain.DeviceProfile) bool {
	if !source.SupportsDirectPlay && !source.SupportsDirectStream {
		return false
	}
	if !containerSupported(profile, source.Container) {
		return false
	}
	if source.Bitrate > 0 && source.Bitrate > maxBitrate {
		return false
	}
	if audioCodec != "" && !audioCodecSupported(profile, audioCodec) {
		return false
	}
	if burnIn {
		return false
	}
	return true
}

func containerSupported(profile domain.DeviceProfile, container string) bool {
	if len(profile.DirectPlayProfiles) > 0 {
		return profile.SupportsVideoContainer(container)
	}
	return directPlayContainers[container]
}

func audioCodecSupported(profile domain.DeviceProfile, codec string) bool {
	if len(profile.DirectPlayProfiles) > 0 {
		return profile.SupportsAudioCodec(codec)
	}
	return directPlayAudioCodecs[codec]
}

// directStreamURL builds the static stream URL for direct play/stream
func (r *Resolver) directStreamURL(itemID string, source domain.MediaSource, sessionID string) string {
	query := url.Values{}
	query.Set("Static", "true")
	query.Set("MediaSourceId", source.ID)
	query.Set("PlaySessionId", sessionID)
	query.Set("api_key", r.token)

	return fmt.Sprintf("%s/Videos/%s/stream.%s?%s", r.baseURL, itemID, source.Container, query.Encode())
}

// transcodeURL builds (or adopts) the adaptive playlist URL for transcoding
func (r *Resolver) transcodeURL(itemID string, source domain.MediaSource, sessionID string, req Request, maxBitrate int, burnIn bool) (string, error) {
	// The server often hands back a ready transcode URL during
	// negotiation; prefer it since it encodes the server's own decisions.
	if source.TranscodingURL != "" {
		if strings.HasPrefix(source.TranscodingURL, "/") {
			return r.baseURL + source.TranscodingURL, nil
		}
		return source.TranscodingURL, nil
	}

	if !source.SupportsTranscoding {
		return "", &domain.StreamResolutionError{
			ItemID: itemID,
			Reason: fmt.Sprintf("source %s supports neither direct play nor transcoding", source.ID),
		}
	}

	query := url.Values{}
	query.Set("MediaSourceId", source.ID)
	query.Set("PlaySessionId", sessionID)
	query.Set("api_key", r.token)
	query.Set("VideoCodec", "h264,hevc")
	query.Set("AudioCodec", "aac,ac3")
	query.Set("RequireAvc", "false")
	query.Set("AllowVideoStreamCopy", "true")
	query.Set("SegmentContainer", "ts")
	query.Set("MinSegments", "1")
	query.Set("MaxFramerate", "60")
	query.Set("VideoBitrate", strconv.Itoa(maxBitrate))
	if req.AudioStreamIndex >= 0 {
		query.Set("AudioStreamIndex", strconv.Itoa(req.AudioStreamIndex))
	}
	// Only burned-in subtitles participate in the transcode; text tracks
	// are delivered as sidecars instead.
	if burnIn && req.SubtitleStreamIndex >= 0 {
		query.Set("SubtitleStreamIndex", strconv.Itoa(req.SubtitleStreamIndex))
		query.Set("SubtitleMethod", "Encode")
	}
	if req.StartTicks > 0 {
		query.Set("StartTimeTicks", strconv.FormatInt(int64(req.StartTicks), 10))
	}

	return fmt.Sprintf("%s/Videos/%s/main.m3u8?%s", r.baseURL, itemID, query.Encode()), nil
}

// pickSource selects the requested source, or the first one
func pickSource(sources []domain.MediaSource, mediaSourceID string) (domain.MediaSource, bool) {
	if len(sources) == 0 {
		return domain.MediaSource{}, false
	}
	if mediaSourceID == "" {
		return sources[0], true
	}
	for _, s := range sources {
		if s.ID == mediaSourceID {
			return s, true
		}
	}
	return domain.MediaSource{}, false
}

// resolveAudioCodec returns the codec of the selected (or default) audio stream
func resolveAudioCodec(source domain.MediaSource, audioIndex int) string {
	if audioIndex >= 0 {
		if st, ok := source.StreamByIndex(audioIndex); ok && st.Type == domain.StreamTypeAudio {
			return st.Codec
		}
	}
	if st, ok := source.DefaultAudioStream(); ok {
		return st.Codec
	}
	return ""
}

// resolveSubtitle returns the selected subtitle stream, if any
func resolveSubtitle(source domain.MediaSource, subtitleIndex int) (domain.MediaStream, bool) {
	if subtitleIndex < 0 {
		return domain.MediaStream{}, false
	}
	st, ok := source.StreamByIndex(subtitleIndex)
	if !ok || st.Type != domain.StreamTypeSubtitle {
		return domain.MediaStream{}, false
	}
	return st, true
}

// containerMime maps a container to its mime type
func containerMime(container string) string {
	switch container {
	case "webm":
		return "video/webm"
	case "mov":
		return "video/quicktime"
	default:
		return "video/mp4"
	}
}
