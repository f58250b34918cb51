// Package segments looks up intro/outro skip ranges against the current
// playback position.
package segments

import (
	"context"
	"sort"

	"github.com/tversen/flick/internal/domain"
)

// fetcher supplies skip ranges per item
type fetcher interface {
	GetSkipSegments(ctx context.Context, itemID string) ([]domain.SkipSegment, error)
}

// Detector holds the skip ranges for one item and answers point queries
type Detector struct {
	segments []domain.SkipSegment
}

// NewDetector creates an empty detector
func NewDetector() *Detector {
	return &Detector{}
}

// LoadForItem fetches the skip ranges for an item, replacing any previous
// ones. A fetch failure leaves the detector empty; skip buttons are an
// enhancement, not a requirement.
func (d *Detector) LoadForItem(ctx context.Context, client fetcher, itemID string) error {
	d.segments = nil
	segs, err := client.GetSkipSegments(ctx, itemID)
	if err != nil {
		return err
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].Start < segs[j].Start })
	d.segments = segs
	return nil
}

// SetSegments replaces the ranges directly
func (d *Detector) SetSegments(segs []domain.SkipSegment) {
	sorted := make([]domain.SkipSegment, len(segs))
	copy(sorted, segs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	d.segments = sorted
}

// At returns the first segment containing the position. Intervals are
// half-open: a position equal to End is outside.
func (d *Detector) At(position domain.Ticks) (domain.SkipSegment, bool) {
	for _, seg := range d.segments {
		if seg.Contains(position) {
			return seg, true
		}
	}
	return domain.SkipSegment{}, false
}

// NextStart returns the start of the first segment beginning at or after
// the position, for showing a skip prompt with lead time.
func (d *Detector) NextStart(position domain.Ticks) (domain.SkipSegment, bool) {
	for _, seg := range d.segments {
		if seg.Start >= position {
			return seg, true
		}
	}
	return domain.SkipSegment{}, false
}
