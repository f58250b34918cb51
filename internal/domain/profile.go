package domain

import "strings"

// DeviceProfile declares the client's playback capabilities. It is sent to
// the server with every playback-info request to drive the server's
// direct-play/transcode decision.
type DeviceProfile struct {
	Name                string
	MaxStreamingBitrate int

	DirectPlayProfiles  []DirectPlayProfile
	CodecProfiles       []CodecProfile
	SubtitleProfiles    []SubtitleProfile
	TranscodingProfiles []TranscodingProfile
}

// DirectPlayProfile is one container/codec combination the device decodes natively
type DirectPlayProfile struct {
	Type       string // "Video" or "Audio"
	Container  string // Comma-separated container list
	VideoCodec string // Comma-separated codec list
	AudioCodec string // Comma-separated codec list
}

// CodecProfile constrains a codec the device only partially supports
type CodecProfile struct {
	Type       string // "Video" or "Audio"
	Codec      string
	Conditions []ProfileCondition
}

// ProfileCondition is a single constraint on a codec profile
type ProfileCondition struct {
	Condition string // "Equals", "EqualsAny", "LessThanEqual", "NotEquals"
	Property  string // "VideoProfile", "VideoLevel", "VideoRangeType", "VideoBitrate", "IsAnamorphic", "IsInterlaced", "AudioChannels"
	Value     string
	Required  bool
}

// SubtitleDeliveryMethod is how a subtitle format reaches the client
type SubtitleDeliveryMethod string

const (
	SubtitleDeliveryExternal SubtitleDeliveryMethod = "External" // Sidecar file, client-rendered
	SubtitleDeliveryEmbed    SubtitleDeliveryMethod = "Embed"    // Muxed into the stream
	SubtitleDeliveryEncode   SubtitleDeliveryMethod = "Encode"   // Burned into video
)

// SubtitleProfile maps a subtitle format to its delivery method
type SubtitleProfile struct {
	Format string
	Method SubtitleDeliveryMethod
}

// TranscodingProfile declares the preferred transcode target for a media type
type TranscodingProfile struct {
	Type                string // "Video" or "Audio"
	Container           string
	Protocol            string // "hls" or "http"
	VideoCodec          string
	AudioCodec          string
	MinSegments         int
	BreakOnNonKeyFrames bool
}

// SupportsVideoContainer reports whether any video direct-play profile
// accepts the container
func (p DeviceProfile) SupportsVideoContainer(container string) bool {
	for _, dp := range p.DirectPlayProfiles {
		if dp.Type != "Video" {
			continue
		}
		if containsField(dp.Container, container) {
			return true
		}
	}
	return false
}

// SupportsAudioCodec reports whether any profile accepts the audio codec
func (p DeviceProfile) SupportsAudioCodec(codec string) bool {
	for _, dp := range p.DirectPlayProfiles {
		if containsField(dp.AudioCodec, codec) {
			return true
		}
	}
	return false
}

// SubtitleMethod returns the delivery method for a subtitle format,
// defaulting to burn-in for unknown formats
func (p DeviceProfile) SubtitleMethod(format string) SubtitleDeliveryMethod {
	for _, sp := range p.SubtitleProfiles {
		if sp.Format == format {
			return sp.Method
		}
	}
	return SubtitleDeliveryEncode
}

// containsField reports whether a comma-separated list contains the value
func containsField(list, value string) bool {
	if list == "" || value == "" {
		return false
	}
	for _, field := range strings.Split(list, ",") {
		if strings.EqualFold(field, value) {
			return true
		}
	}
	return false
}
