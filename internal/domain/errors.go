package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain operations
var (
	// ErrItemNotFound indicates the requested media item does not exist
	ErrItemNotFound = errors.New("media item not found")

	// ErrServerOffline indicates the media server is unreachable
	ErrServerOffline = errors.New("media server is unreachable")

	// ErrAuthFailed indicates the access token was rejected
	ErrAuthFailed = errors.New("authentication token is invalid")

	// ErrQueueEmpty indicates a queue operation needs at least one item
	ErrQueueEmpty = errors.New("play queue is empty")

	// ErrQueueIndexOutOfRange indicates a queue index past either end
	ErrQueueIndexOutOfRange = errors.New("play queue index out of range")

	// ErrNoActiveSession indicates a transport command with nothing playing
	ErrNoActiveSession = errors.New("no active playback session")

	// ErrPlayerReleased indicates a Load on a player whose decoder
	// resources were already freed; released players stay released
	ErrPlayerReleased = errors.New("player has been released")
)

// StreamResolutionError indicates no usable media source could be resolved
// for an item. No playback session is created when it is returned.
type StreamResolutionError struct {
	ItemID string
	Reason string
}

func (e *StreamResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve stream for item %s: %s", e.ItemID, e.Reason)
}

// MediaDecodeError indicates the local decoder rejected the stream after
// recovery was attempted. The caller should retry with forced transcoding.
type MediaDecodeError struct {
	URL   string
	Cause error
}

func (e *MediaDecodeError) Error() string {
	return fmt.Sprintf("media decode failed for %s: %v", e.URL, e.Cause)
}

func (e *MediaDecodeError) Unwrap() error { return e.Cause }

// CapabilityProbeError indicates the runtime could not answer a codec
// support query. Profiling degrades to a conservative profile instead of
// failing, so this is informational only.
type CapabilityProbeError struct {
	Codec string
	Cause error
}

func (e *CapabilityProbeError) Error() string {
	return fmt.Sprintf("capability probe failed for %s: %v", e.Codec, e.Cause)
}

func (e *CapabilityProbeError) Unwrap() error { return e.Cause }
