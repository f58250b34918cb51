package jellyfin

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWebVTT(t *testing.T) {
	input := `WEBVTT

1
00:00:01.000 --> 00:00:04.500
Hello there.

00:00:05.000 --> 00:00:07.250
Two lines
of dialogue.
`

	cues, err := ParseWebVTT(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, cues, 2)

	assert.Equal(t, "1", cues[0].ID)
	assert.Equal(t, time.Second, cues[0].Start)
	assert.Equal(t, 4500*time.Millisecond, cues[0].End)
	assert.Equal(t, "Hello there.", cues[0].Text)

	// Cues without an explicit identifier are numbered in order
	assert.Equal(t, "2", cues[1].ID)
	assert.Equal(t, 5*time.Second, cues[1].Start)
	assert.Equal(t, "Two lines\nof dialogue.", cues[1].Text)
}

func TestParseWebVTTShortTimestamps(t *testing.T) {
	input := `WEBVTT

01:02.500 --> 01:05.000
Short form.
`

	cues, err := ParseWebVTT(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, cues, 1)
	assert.Equal(t, time.Minute+2*time.Second+500*time.Millisecond, cues[0].Start)
}

func TestParseWebVTTHourTimestamps(t *testing.T) {
	input := `WEBVTT

01:30:00.000 --> 01:30:02.000
Deep into the movie.
`

	cues, err := ParseWebVTT(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, cues, 1)
	assert.Equal(t, 90*time.Minute, cues[0].Start)
}

func TestParseWebVTTSkipsMetadataBlocks(t *testing.T) {
	input := `WEBVTT

NOTE This block is commentary
spanning two lines.

STYLE
::cue { color: yellow }

00:00:01.000 --> 00:00:02.000
Actual cue.
`

	cues, err := ParseWebVTT(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, cues, 1)
	assert.Equal(t, "Actual cue.", cues[0].Text)
}

func TestParseWebVTTWithBOM(t *testing.T) {
	input := "\uFEFFWEBVTT\n\n00:00:00.000 --> 00:00:01.000\nBOM handled.\n"

	cues, err := ParseWebVTT(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, cues, 1)
}

func TestParseWebVTTRejectsOtherFormats(t *testing.T) {
	_, err := ParseWebVTT(strings.NewReader("1\n00:00:01,000 --> 00:00:02,000\nSRT file\n"))
	assert.Error(t, err)

	_, err = ParseWebVTT(strings.NewReader(""))
	assert.Error(t, err)
}

func TestParseWebVTTTimingWithCueSettings(t *testing.T) {
	input := `WEBVTT

00:00:01.000 --> 00:00:02.000 align:start position:10%
Positioned cue.
`

	cues, err := ParseWebVTT(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, cues, 1)
	assert.Equal(t, "Positioned cue.", cues[0].Text)
}
