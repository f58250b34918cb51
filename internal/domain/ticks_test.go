package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTicksSeconds(t *testing.T) {
	tests := []struct {
		name    string
		ticks   Ticks
		seconds float64
	}{
		{"zero", 0, 0},
		{"one second", 10_000_000, 1},
		{"half second", 5_000_000, 0.5},
		{"two hours", 72_000_000_000, 7200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.seconds, tt.ticks.Seconds(), 1e-9)
			assert.Equal(t, tt.ticks, SecondsToTicks(tt.seconds))
		})
	}
}

func TestTicksRoundTrip(t *testing.T) {
	for _, seconds := range []float64{0, 0.1, 1.5, 59.94, 3600.25} {
		got := SecondsToTicks(seconds).Seconds()
		assert.InDelta(t, seconds, got, 1e-6)
	}
}

func TestTicksDuration(t *testing.T) {
	assert.Equal(t, 90*time.Minute, Ticks(54_000_000_000).Duration())
	assert.Equal(t, Ticks(54_000_000_000), DurationToTicks(90*time.Minute))
}

func TestSkipSegmentContains(t *testing.T) {
	seg := SkipSegment{
		Type:  SkipSegmentIntro,
		Start: SecondsToTicks(10),
		End:   SecondsToTicks(40),
	}

	assert.False(t, seg.Contains(SecondsToTicks(9.999)))
	assert.True(t, seg.Contains(SecondsToTicks(10)))
	assert.True(t, seg.Contains(SecondsToTicks(39.999)))
	// End is exclusive; sitting exactly on it is outside the segment
	assert.False(t, seg.Contains(SecondsToTicks(40)))
}

func TestMediaKindCategory(t *testing.T) {
	assert.Equal(t, CategoryVideo, MediaKindMovie.Category())
	assert.Equal(t, CategoryVideo, MediaKindEpisode.Category())
	assert.Equal(t, CategoryVideo, MediaKindTVChannel.Category())
	assert.Equal(t, CategoryAudio, MediaKindAudio.Category())
}
