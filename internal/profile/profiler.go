// Package profile builds the device capability profile sent to the server
// with every playback-info request. The profile is assembled by probing the
// runtime's codec-support primitive; probing failures degrade to a
// conservative H.264+AAC profile rather than failing playback outright.
package profile

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/tversen/flick/internal/domain"
)

// Support is the runtime's answer to a codec-support query
type Support int

const (
	SupportNo Support = iota
	SupportMaybe
	SupportProbably
)

// Playable reports whether the answer is good enough to declare support.
// "Maybe" answers are treated as unsupported; an ambiguous decoder is a
// decoder that stutters on someone's television.
func (s Support) Playable() bool {
	return s == SupportProbably
}

// CodecProber is the runtime's codec-support query primitive
type CodecProber interface {
	// Probe asks whether the runtime decodes the given container mime
	// type and codec string (RFC 6381 form)
	Probe(mimeType, codecs string) (Support, error)
}

// Options carries user-forced capability overrides from configuration
type Options struct {
	ForceHDR         bool
	ForceDolbyVision bool
	MaxAudioChannels int
	DisplayWidth     int
	MaxBitrate       int
	DeviceClass      string // Known device class for hard caps, empty for generic
}

// Profiler assembles DeviceProfiles from runtime probes and overrides
type Profiler struct {
	prober CodecProber
	logger *slog.Logger
}

// NewProfiler creates a new capability profiler
func NewProfiler(prober CodecProber, logger *slog.Logger) *Profiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Profiler{prober: prober, logger: logger}
}

// videoCandidate is one probe-ordered video codec candidate
type videoCandidate struct {
	codec      string // Profile codec name
	mimeType   string
	codecsAttr string // RFC 6381 probe string
}

var videoCandidates = []videoCandidate{
	{"h264", "video/mp4", "avc1.640029"},        // High@L4.1
	{"hevc", "video/mp4", "hvc1.1.6.L153.B0"},   // Main@L5.1
	{"hevc10", "video/mp4", "hvc1.2.4.L153.B0"}, // Main10@L5.1
	{"vp9", "video/webm", "vp09.00.50.08"},
	{"av1", "video/mp4", "av01.0.15M.10"},
	{"dovi", "video/mp4", "dvh1.08.09"}, // Dolby Vision profile 8
}

// audioCandidate is one probe-ordered audio codec candidate
type audioCandidate struct {
	codec      string
	mimeType   string
	codecsAttr string
}

var audioCandidates = []audioCandidate{
	{"aac", "audio/mp4", "mp4a.40.2"},
	{"ac3", "audio/mp4", "ac-3"},
	{"eac3", "audio/mp4", "ec-3"},
	{"dts", "audio/mp4", "dtsc"},
	{"truehd", "audio/mp4", "mlpa"},
	{"flac", "audio/mp4", "flac"},
	{"alac", "audio/mp4", "alac"},
	{"opus", "audio/webm", "opus"},
}

// deviceCaps are hard caps for known device classes whose runtimes
// over-report what their decoders actually sustain
var deviceCaps = map[string]struct {
	maxHEVCLevel int
	maxWidth     int
}{
	"chromecast":   {maxHEVCLevel: 153, maxWidth: 3840},
	"raspberry-pi": {maxHEVCLevel: 123, maxWidth: 1920},
}

// BuildProfile probes the runtime and assembles the device profile.
// It never fails: any probe error degrades to ConservativeProfile.
func (p *Profiler) BuildProfile(opts Options) domain.DeviceProfile {
	videoCodecs, err := p.probeVideo()
	if err != nil {
		p.logger.Warn("video capability probe failed, using conservative profile", "error", err)
		return ConservativeProfile(opts.MaxBitrate)
	}
	audioCodecs, err := p.probeAudio()
	if err != nil {
		p.logger.Warn("audio capability probe failed, using conservative profile", "error", err)
		return ConservativeProfile(opts.MaxBitrate)
	}

	// An empty answer set means the platform gave ambiguous answers
	// everywhere; treat that the same as a failed probe.
	if len(videoCodecs) == 0 || len(audioCodecs) == 0 {
		p.logger.Warn("no playable codecs reported, using conservative profile")
		return ConservativeProfile(opts.MaxBitrate)
	}

	profile := domain.DeviceProfile{
		Name:                "Flick",
		MaxStreamingBitrate: opts.MaxBitrate,
	}

	mp4Codecs := filterOut(videoCodecs, "vp9")
	profile.DirectPlayProfiles = append(profile.DirectPlayProfiles, domain.DirectPlayProfile{
		Type:       "Video",
		Container:  "mp4,m4v,mov",
		VideoCodec: strings.Join(mp4Codecs, ","),
		AudioCodec: strings.Join(audioCodecs, ","),
	})
	if contains(videoCodecs, "vp9") || contains(videoCodecs, "av1") {
		profile.DirectPlayProfiles = append(profile.DirectPlayProfiles, domain.DirectPlayProfile{
			Type:       "Video",
			Container:  "webm",
			VideoCodec: strings.Join(intersect(videoCodecs, []string{"vp9", "av1"}), ","),
			AudioCodec: strings.Join(intersect(audioCodecs, []string{"opus", "flac"}), ","),
		})
	}
	profile.DirectPlayProfiles = append(profile.DirectPlayProfiles, domain.DirectPlayProfile{
		Type:       "Audio",
		Container:  "mp4,m4a,flac,opus,webm",
		AudioCodec: strings.Join(audioCodecs, ","),
	})

	profile.CodecProfiles = p.codecConditions(videoCodecs, opts)
	profile.SubtitleProfiles = subtitleProfiles()
	profile.TranscodingProfiles = transcodingProfiles(videoCodecs, audioCodecs)

	return profile
}

// probeVideo returns the playable video codec names in candidate order
func (p *Profiler) probeVideo() ([]string, error) {
	var out []string
	for _, cand := range videoCandidates {
		support, err := p.prober.Probe(cand.mimeType, cand.codecsAttr)
		if err != nil {
			return nil, &domain.CapabilityProbeError{Codec: cand.codec, Cause: err}
		}
		if support.Playable() {
			out = append(out, cand.codec)
		}
	}
	return normalizeVideoCodecs(out), nil
}

// probeAudio returns the playable audio codec names in candidate order
func (p *Profiler) probeAudio() ([]string, error) {
	var out []string
	for _, cand := range audioCandidates {
		support, err := p.prober.Probe(cand.mimeType, cand.codecsAttr)
		if err != nil {
			return nil, &domain.CapabilityProbeError{Codec: cand.codec, Cause: err}
		}
		if support.Playable() {
			out = append(out, cand.codec)
		}
	}
	return out, nil
}

// normalizeVideoCodecs collapses probe granularity (hevc10, dovi) into the
// profile codec names the server understands
func normalizeVideoCodecs(codecs []string) []string {
	var out []string
	for _, c := range codecs {
		switch c {
		case "hevc10":
			if !contains(out, "hevc") {
				out = append(out, "hevc")
			}
		case "dovi":
			// Dolby Vision rides on hevc/av1 profiles; recorded via
			// VideoRangeType conditions instead of a codec name
		default:
			if !contains(out, c) {
				out = append(out, c)
			}
		}
	}
	return out
}

// codecConditions builds the per-codec constraint set
func (p *Profiler) codecConditions(videoCodecs []string, opts Options) []domain.CodecProfile {
	hevcLevel := 183 // Main@L6.1
	maxWidth := opts.DisplayWidth
	if caps, ok := deviceCaps[opts.DeviceClass]; ok {
		if caps.maxHEVCLevel < hevcLevel {
			hevcLevel = caps.maxHEVCLevel
		}
		if maxWidth == 0 || caps.maxWidth < maxWidth {
			maxWidth = caps.maxWidth
		}
	}

	ranges := []string{"SDR"}
	if opts.ForceHDR || p.probePlayable("video/mp4", "hvc1.2.4.L153.B0") {
		ranges = append(ranges, "HDR10", "HLG")
	}
	if opts.ForceDolbyVision || p.probePlayable("video/mp4", "dvh1.08.09") {
		ranges = append(ranges, "DOVI", "DOVIWithHDR10", "DOVIWithHLG")
	}

	var profiles []domain.CodecProfile

	h264 := domain.CodecProfile{
		Type:  "Video",
		Codec: "h264",
		Conditions: []domain.ProfileCondition{
			{Condition: "EqualsAny", Property: "VideoProfile", Value: "high|main|baseline|constrained baseline", Required: false},
			{Condition: "LessThanEqual", Property: "VideoLevel", Value: "52", Required: false},
			{Condition: "NotEquals", Property: "IsAnamorphic", Value: "true", Required: false},
			{Condition: "NotEquals", Property: "IsInterlaced", Value: "true", Required: false},
		},
	}
	profiles = append(profiles, h264)

	if contains(videoCodecs, "hevc") {
		profiles = append(profiles, domain.CodecProfile{
			Type:  "Video",
			Codec: "hevc",
			Conditions: []domain.ProfileCondition{
				{Condition: "EqualsAny", Property: "VideoProfile", Value: "main|main 10", Required: false},
				{Condition: "LessThanEqual", Property: "VideoLevel", Value: strconv.Itoa(hevcLevel), Required: false},
				{Condition: "EqualsAny", Property: "VideoRangeType", Value: strings.Join(ranges, "|"), Required: false},
				{Condition: "NotEquals", Property: "IsInterlaced", Value: "true", Required: false},
			},
		})
	}

	cond := []domain.ProfileCondition{}
	if maxWidth > 0 {
		cond = append(cond, domain.ProfileCondition{
			Condition: "LessThanEqual", Property: "Width", Value: strconv.Itoa(maxWidth), Required: false,
		})
	}
	if opts.MaxBitrate > 0 {
		cond = append(cond, domain.ProfileCondition{
			Condition: "LessThanEqual", Property: "VideoBitrate", Value: strconv.Itoa(opts.MaxBitrate), Required: false,
		})
	}
	if len(cond) > 0 {
		profiles = append(profiles, domain.CodecProfile{Type: "Video", Conditions: cond})
	}

	if opts.MaxAudioChannels > 0 {
		profiles = append(profiles, domain.CodecProfile{
			Type: "Audio",
			Conditions: []domain.ProfileCondition{
				{Condition: "LessThanEqual", Property: "AudioChannels", Value: strconv.Itoa(opts.MaxAudioChannels), Required: false},
			},
		})
	}

	return profiles
}

// probePlayable is a best-effort probe where an error just means "no"
func (p *Profiler) probePlayable(mimeType, codecs string) bool {
	support, err := p.prober.Probe(mimeType, codecs)
	return err == nil && support.Playable()
}

// subtitleProfiles declares text formats as client-rendered sidecar tracks
// and image formats as burn-in
func subtitleProfiles() []domain.SubtitleProfile {
	return []domain.SubtitleProfile{
		{Format: "vtt", Method: domain.SubtitleDeliveryExternal},
		{Format: "subrip", Method: domain.SubtitleDeliveryExternal},
		{Format: "srt", Method: domain.SubtitleDeliveryExternal},
		{Format: "ass", Method: domain.SubtitleDeliveryExternal},
		{Format: "ssa", Method: domain.SubtitleDeliveryExternal},
		{Format: "pgssub", Method: domain.SubtitleDeliveryEncode},
		{Format: "dvdsub", Method: domain.SubtitleDeliveryEncode},
	}
}

// transcodingProfiles declares the preferred transcode targets
func transcodingProfiles(videoCodecs, audioCodecs []string) []domain.TranscodingProfile {
	videoTargets := intersect(videoCodecs, []string{"h264", "hevc"})
	if len(videoTargets) == 0 {
		videoTargets = []string{"h264"}
	}
	audioTargets := intersect(audioCodecs, []string{"aac", "ac3", "opus"})
	if len(audioTargets) == 0 {
		audioTargets = []string{"aac"}
	}
	return []domain.TranscodingProfile{
		{
			Type:                "Video",
			Container:           "ts",
			Protocol:            "hls",
			VideoCodec:          strings.Join(videoTargets, ","),
			AudioCodec:          strings.Join(audioTargets, ","),
			MinSegments:         1,
			BreakOnNonKeyFrames: true,
		},
		{
			Type:       "Audio",
			Container:  "ts",
			Protocol:   "hls",
			AudioCodec: "aac",
		},
	}
}

// ConservativeProfile is the degraded profile used when probing fails:
// H.264+AAC in mp4, everything else transcoded
func ConservativeProfile(maxBitrate int) domain.DeviceProfile {
	return domain.DeviceProfile{
		Name:                "Flick (conservative)",
		MaxStreamingBitrate: maxBitrate,
		DirectPlayProfiles: []domain.DirectPlayProfile{
			{Type: "Video", Container: "mp4,m4v", VideoCodec: "h264", AudioCodec: "aac"},
			{Type: "Audio", Container: "mp4,m4a", AudioCodec: "aac"},
		},
		CodecProfiles: []domain.CodecProfile{
			{
				Type:  "Video",
				Codec: "h264",
				Conditions: []domain.ProfileCondition{
					{Condition: "EqualsAny", Property: "VideoProfile", Value: "high|main|baseline", Required: false},
					{Condition: "LessThanEqual", Property: "VideoLevel", Value: "42", Required: false},
					{Condition: "NotEquals", Property: "IsInterlaced", Value: "true", Required: false},
				},
			},
		},
		SubtitleProfiles: subtitleProfiles(),
		TranscodingProfiles: []domain.TranscodingProfile{
			{Type: "Video", Container: "ts", Protocol: "hls", VideoCodec: "h264", AudioCodec: "aac", MinSegments: 1},
			{Type: "Audio", Container: "ts", Protocol: "hls", AudioCodec: "aac"},
		},
	}
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}

func filterOut(list []string, exclude string) []string {
	var out []string
	for _, v := range list {
		if v != exclude {
			out = append(out, v)
		}
	}
	return out
}

func intersect(list, allowed []string) []string {
	var out []string
	for _, v := range list {
		if contains(allowed, v) {
			out = append(out, v)
		}
	}
	return out
}
