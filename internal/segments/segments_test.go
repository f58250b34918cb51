package segments

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tversen/flick/internal/domain"
)

type fakeSegmentSource struct {
	segments []domain.SkipSegment
	err      error
}

func (f *fakeSegmentSource) GetSkipSegments(ctx context.Context, itemID string) ([]domain.SkipSegment, error) {
	return f.segments, f.err
}

func seg(t domain.SkipSegmentType, startSec, endSec float64) domain.SkipSegment {
	return domain.SkipSegment{
		Type:  t,
		Start: domain.SecondsToTicks(startSec),
		End:   domain.SecondsToTicks(endSec),
	}
}

func TestAtHalfOpenBoundaries(t *testing.T) {
	d := NewDetector()
	d.SetSegments([]domain.SkipSegment{seg(domain.SkipSegmentIntro, 10, 40)})

	_, ok := d.At(domain.SecondsToTicks(9.9))
	assert.False(t, ok)

	got, ok := d.At(domain.SecondsToTicks(10))
	require.True(t, ok)
	assert.Equal(t, domain.SkipSegmentIntro, got.Type)

	_, ok = d.At(domain.SecondsToTicks(39.9))
	assert.True(t, ok)

	// End is exclusive
	_, ok = d.At(domain.SecondsToTicks(40))
	assert.False(t, ok)
}

func TestAtPicksEarliestMatch(t *testing.T) {
	d := NewDetector()
	d.SetSegments([]domain.SkipSegment{
		seg(domain.SkipSegmentOutro, 2500, 2600),
		seg(domain.SkipSegmentIntro, 0, 60),
	})

	got, ok := d.At(domain.SecondsToTicks(30))
	require.True(t, ok)
	assert.Equal(t, domain.SkipSegmentIntro, got.Type)

	got, ok = d.At(domain.SecondsToTicks(2550))
	require.True(t, ok)
	assert.Equal(t, domain.SkipSegmentOutro, got.Type)
}

func TestNextStart(t *testing.T) {
	d := NewDetector()
	d.SetSegments([]domain.SkipSegment{
		seg(domain.SkipSegmentIntro, 10, 40),
		seg(domain.SkipSegmentOutro, 2500, 2600),
	})

	got, ok := d.NextStart(domain.SecondsToTicks(0))
	require.True(t, ok)
	assert.Equal(t, domain.SkipSegmentIntro, got.Type)

	got, ok = d.NextStart(domain.SecondsToTicks(100))
	require.True(t, ok)
	assert.Equal(t, domain.SkipSegmentOutro, got.Type)

	_, ok = d.NextStart(domain.SecondsToTicks(2700))
	assert.False(t, ok)
}

func TestLoadForItem(t *testing.T) {
	source := &fakeSegmentSource{segments: []domain.SkipSegment{
		seg(domain.SkipSegmentOutro, 2500, 2600),
		seg(domain.SkipSegmentIntro, 10, 40),
	}}
	d := NewDetector()

	require.NoError(t, d.LoadForItem(context.Background(), source, "item1"))

	got, ok := d.At(domain.SecondsToTicks(20))
	require.True(t, ok)
	assert.Equal(t, domain.SkipSegmentIntro, got.Type)
}

func TestLoadFailureLeavesDetectorEmpty(t *testing.T) {
	d := NewDetector()
	d.SetSegments([]domain.SkipSegment{seg(domain.SkipSegmentIntro, 10, 40)})

	source := &fakeSegmentSource{err: errors.New("boom")}
	assert.Error(t, d.LoadForItem(context.Background(), source, "item1"))

	_, ok := d.At(domain.SecondsToTicks(20))
	assert.False(t, ok)
}
