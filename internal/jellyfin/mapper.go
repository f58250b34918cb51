package jellyfin

import (
	"sort"
	"strings"

	"github.com/tversen/flick/internal/domain"
)

// mapItem converts a server item DTO to the domain model
func mapItem(item Item) domain.MediaItem {
	out := domain.MediaItem{
		ID:           item.ID,
		Name:         item.Name,
		Kind:         mapKind(item.Type),
		LibraryID:    item.ParentID,
		RunTimeTicks: domain.Ticks(item.RunTimeTicks),
		SeriesName:   item.SeriesName,
		SeriesID:     item.SeriesID,
		SeasonNum:    item.ParentIndexNumber,
		EpisodeNum:   item.IndexNumber,
		IsLive:       item.Type == "TvChannel",
	}

	if item.UserData != nil {
		out.UserState = domain.UserState{
			PositionTicks: domain.Ticks(item.UserData.PlaybackPositionTicks),
			Played:        item.UserData.Played,
			Favorite:      item.UserData.IsFavorite,
		}
	}

	for _, src := range item.MediaSources {
		out.Sources = append(out.Sources, mapMediaSource(src))
	}

	return out
}

func mapKind(itemType string) domain.MediaKind {
	switch itemType {
	case "Episode":
		return domain.MediaKindEpisode
	case "TvChannel":
		return domain.MediaKindTVChannel
	case "Audio", "MusicVideo":
		return domain.MediaKindAudio
	default:
		return domain.MediaKindMovie
	}
}

// mapMediaSource converts a media source DTO to the domain model
func mapMediaSource(src MediaSource) domain.MediaSource {
	out := domain.MediaSource{
		ID:                     src.ID,
		Container:              strings.ToLower(src.Container),
		Bitrate:                src.Bitrate,
		RunTimeTicks:           domain.Ticks(src.RunTimeTicks),
		SupportsDirectPlay:     src.SupportsDirectPlay,
		SupportsDirectStream:   src.SupportsDirectStream,
		SupportsTranscoding:    src.SupportsTranscoding,
		TranscodingURL:         src.TranscodingURL,
		TranscodingSubProtocol: src.TranscodingSubProtocol,
	}

	for _, st := range src.MediaStreams {
		out.Streams = append(out.Streams, domain.MediaStream{
			Type:       mapStreamType(st.Type),
			Codec:      strings.ToLower(st.Codec),
			Index:      st.Index,
			Language:   st.Language,
			Default:    st.IsDefault,
			Forced:     st.IsForced,
			Width:      st.Width,
			Height:     st.Height,
			BitRate:    st.BitRate,
			VideoRange: st.VideoRangeType,
			Channels:   st.Channels,
		})
	}

	return out
}

func mapStreamType(streamType string) domain.StreamType {
	switch streamType {
	case "Audio":
		return domain.StreamTypeAudio
	case "Subtitle":
		return domain.StreamTypeSubtitle
	default:
		return domain.StreamTypeVideo
	}
}

// mapSegments converts media segments, dropping types the player does not skip
func mapSegments(segments []MediaSegment) []domain.SkipSegment {
	var out []domain.SkipSegment
	for _, seg := range segments {
		var segType domain.SkipSegmentType
		switch seg.Type {
		case "Intro":
			segType = domain.SkipSegmentIntro
		case "Outro":
			segType = domain.SkipSegmentOutro
		default:
			continue
		}
		out = append(out, domain.SkipSegment{
			Type:  segType,
			Start: domain.Ticks(seg.StartTicks),
			End:   domain.Ticks(seg.EndTicks),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// mapTrickplay flattens the source->width->info nesting into a config list
func mapTrickplay(trickplay map[string]map[string]TrickplayInfo) []domain.TrickplayConfig {
	var out []domain.TrickplayConfig
	for sourceID, byWidth := range trickplay {
		for _, info := range byWidth {
			out = append(out, domain.TrickplayConfig{
				MediaSourceID:  sourceID,
				Width:          info.Width,
				Height:         info.Height,
				TileWidth:      info.TileWidth,
				TileHeight:     info.TileHeight,
				Interval:       info.Interval,
				ThumbnailCount: info.ThumbnailCount,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MediaSourceID != out[j].MediaSourceID {
			return out[i].MediaSourceID < out[j].MediaSourceID
		}
		return out[i].Width < out[j].Width
	})
	return out
}

// mapDeviceProfile converts the domain profile to its wire form
func mapDeviceProfile(p domain.DeviceProfile) *DeviceProfile {
	out := &DeviceProfile{
		Name:                p.Name,
		MaxStreamingBitrate: p.MaxStreamingBitrate,
	}
	for _, dp := range p.DirectPlayProfiles {
		out.DirectPlayProfiles = append(out.DirectPlayProfiles, DirectPlayProfile{
			Type:       dp.Type,
			Container:  dp.Container,
			VideoCodec: dp.VideoCodec,
			AudioCodec: dp.AudioCodec,
		})
	}
	for _, cp := range p.CodecProfiles {
		dto := CodecProfile{Type: cp.Type, Codec: cp.Codec}
		for _, cond := range cp.Conditions {
			dto.Conditions = append(dto.Conditions, ProfileCondition{
				Condition:  cond.Condition,
				Property:   cond.Property,
				Value:      cond.Value,
				IsRequired: cond.Required,
			})
		}
		out.CodecProfiles = append(out.CodecProfiles, dto)
	}
	for _, sp := range p.SubtitleProfiles {
		out.SubtitleProfiles = append(out.SubtitleProfiles, SubtitleProfile{
			Format: sp.Format,
			Method: string(sp.Method),
		})
	}
	for _, tp := range p.TranscodingProfiles {
		out.TranscodingProfiles = append(out.TranscodingProfiles, TranscodingProfile{
			Type:                tp.Type,
			Container:           tp.Container,
			Protocol:            tp.Protocol,
			VideoCodec:          tp.VideoCodec,
			AudioCodec:          tp.AudioCodec,
			MinSegments:         tp.MinSegments,
			BreakOnNonKeyFrames: tp.BreakOnNonKeyFrames,
		})
	}
	return out
}

// mapReport converts a progress report to the session reporting wire form
func mapReport(report domain.ProgressReport) PlaybackStartInfo {
	info := PlaybackStartInfo{
		ItemID:        report.ItemID,
		MediaSourceID: report.MediaSourceID,
		PlaySessionID: report.SessionID,
		PositionTicks: int64(report.PositionTicks),
		IsPaused:      report.Paused,
		IsMuted:       report.Muted,
		VolumeLevel:   report.VolumeLevel,
		PlayMethod:    report.Method.String(),
		CanSeek:       true,
	}
	if report.AudioStreamIndex >= 0 {
		idx := report.AudioStreamIndex
		info.AudioStreamIndex = &idx
	}
	if report.SubtitleStreamIndex >= 0 {
		idx := report.SubtitleStreamIndex
		info.SubtitleStreamIndex = &idx
	}
	return info
}
