// Package player implements the adaptive segment player: a uniform playback
// surface over a progressive byte-stream engine and a segmented
// adaptive-stream engine, with buffering policy, decode-error recovery and
// pre-readiness seek handling.
package player

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tversen/flick/internal/domain"
)

// EngineKind identifies a media engine's delivery model
type EngineKind int

const (
	// EngineProgressive plays a byte stream through the runtime's native surface
	EngineProgressive EngineKind = iota
	// EngineSegmented drives segmented adaptive playback in client code
	EngineSegmented
)

// BufferPolicy bounds how much the engine may buffer around the playhead
type BufferPolicy struct {
	BehindWindow time.Duration // Retained behind the playhead
	AheadWindow  time.Duration // Prefetched ahead of the playhead
}

// Buffering windows: live sources keep a small low-latency window, on-demand
// sources fill a deep forward buffer.
var (
	livePolicy     = BufferPolicy{BehindWindow: 10 * time.Second, AheadWindow: 30 * time.Second}
	onDemandPolicy = BufferPolicy{BehindWindow: 30 * time.Second, AheadWindow: 240 * time.Second}
)

// LoadOptions parameterizes one engine load
type LoadOptions struct {
	StartSeconds float64
	MimeType     string
	Buffer       BufferPolicy
}

// MediaEngine is the runtime playback surface the player drives. Engines
// declare their kind and capabilities; the player never probes for method
// presence.
type MediaEngine interface {
	Kind() EngineKind

	// SupportsPlaylists reports whether the engine natively plays
	// adaptive playlist URLs (only meaningful for progressive engines)
	SupportsPlaylists() bool

	Load(ctx context.Context, url string, opts LoadOptions) error
	Play()
	Pause()
	Seek(seconds float64)
	SetVolume(volume int)
	SetMuted(muted bool)
	Position() float64
	Subscribe(fn func(domain.PlayerEvent))
	Release()
}

// ErrorKind classifies engine failures for the recovery ladder
type ErrorKind int

const (
	// ErrorNetwork covers segment fetch and transport failures
	ErrorNetwork ErrorKind = iota
	// ErrorDecode covers decoder-level failures
	ErrorDecode
	// ErrorUnsupported covers media the runtime cannot play at all
	ErrorUnsupported
)

// EngineError is a classified engine failure
type EngineError struct {
	Kind ErrorKind
	Err  error
}

func (e *EngineError) Error() string {
	switch e.Kind {
	case ErrorDecode:
		return fmt.Sprintf("decode error: %v", e.Err)
	case ErrorUnsupported:
		return fmt.Sprintf("unsupported media: %v", e.Err)
	default:
		return fmt.Sprintf("network error: %v", e.Err)
	}
}

func (e *EngineError) Unwrap() error { return e.Err }

const maxNetworkRetries = 3

// AdaptivePlayer implements domain.Player over the two engine variants
type AdaptivePlayer struct {
	category    domain.MediaCategory
	progressive MediaEngine
	segmented   MediaEngine
	logger      *slog.Logger

	mu             sync.Mutex
	active         MediaEngine
	stream         domain.ResolvedStream
	ready          bool
	released       bool
	pendingSeek    *float64 // Single slot, latest wins
	lastPosition   float64
	decodeRecovers int
	networkRetries int
	sink           func(domain.PlayerEvent)
}

// New creates an adaptive player for one media category. segmented may be
// nil when the progressive engine plays playlists natively.
func New(category domain.MediaCategory, progressive, segmented MediaEngine, logger *slog.Logger) *AdaptivePlayer {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdaptivePlayer{
		category:    category,
		progressive: progressive,
		segmented:   segmented,
		logger:      logger,
	}
}

// Category returns the media category this player renders
func (p *AdaptivePlayer) Category() domain.MediaCategory { return p.category }

// Subscribe registers the single event sink
func (p *AdaptivePlayer) Subscribe(fn func(domain.PlayerEvent)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sink = fn
}

// Load begins playback of a resolved stream at its start offset. A
// released player cannot be loaded again; the caller creates a fresh one.
func (p *AdaptivePlayer) Load(ctx context.Context, stream domain.ResolvedStream) error {
	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		return domain.ErrPlayerReleased
	}
	engine := p.chooseEngine(stream)
	if p.active != nil && p.active != engine {
		p.active.Release()
	}
	p.active = engine
	p.stream = stream
	p.ready = false
	p.pendingSeek = nil
	p.lastPosition = stream.StartTicks.Seconds()
	p.decodeRecovers = 0
	p.networkRetries = 0
	p.mu.Unlock()

	engine.Subscribe(p.handleEvent)
	return engine.Load(ctx, stream.URL, LoadOptions{
		StartSeconds: stream.StartTicks.Seconds(),
		MimeType:     stream.MimeType,
		Buffer:       bufferPolicy(stream.Live),
	})
}

// chooseEngine picks the segmented engine only when the URL is
// playlist-typed and the progressive surface lacks native playlist support.
// Caller must hold p.mu.
func (p *AdaptivePlayer) chooseEngine(stream domain.ResolvedStream) MediaEngine {
	if isPlaylistStream(stream) && !p.progressive.SupportsPlaylists() && p.segmented != nil {
		return p.segmented
	}
	return p.progressive
}

func isPlaylistStream(stream domain.ResolvedStream) bool {
	return strings.EqualFold(stream.MimeType, "application/x-mpegURL") ||
		strings.Contains(stream.URL, ".m3u8")
}

func bufferPolicy(live bool) BufferPolicy {
	if live {
		return livePolicy
	}
	return onDemandPolicy
}

// Play resumes a paused player
func (p *AdaptivePlayer) Play() {
	if engine := p.engine(); engine != nil {
		engine.Play()
	}
}

// Pause suspends playback, keeping the stream loaded
func (p *AdaptivePlayer) Pause() {
	if engine := p.engine(); engine != nil {
		engine.Pause()
	}
}

// Seek jumps to an absolute position in seconds. Seeks issued before the
// engine is ready are held in a single slot (latest wins) and applied on
// readiness, never silently dropped.
func (p *AdaptivePlayer) Seek(seconds float64) {
	p.mu.Lock()
	if !p.ready {
		s := seconds
		p.pendingSeek = &s
		p.mu.Unlock()
		return
	}
	engine := p.active
	p.mu.Unlock()

	if engine != nil {
		engine.Seek(seconds)
	}
}

// SetVolume sets volume (0-100)
func (p *AdaptivePlayer) SetVolume(volume int) {
	if engine := p.engine(); engine != nil {
		engine.SetVolume(volume)
	}
}

// SetMuted toggles mute
func (p *AdaptivePlayer) SetMuted(muted bool) {
	if engine := p.engine(); engine != nil {
		engine.SetMuted(muted)
	}
}

// Position returns the current playback position in seconds
func (p *AdaptivePlayer) Position() float64 {
	p.mu.Lock()
	engine, ready := p.active, p.ready
	last := p.lastPosition
	p.mu.Unlock()

	if engine != nil && ready {
		return engine.Position()
	}
	return last
}

// Release stops playback and frees decoder resources. Idempotent.
func (p *AdaptivePlayer) Release() {
	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		return
	}
	p.released = true
	p.ready = false
	engine := p.active
	p.active = nil
	p.mu.Unlock()

	if engine != nil {
		engine.Release()
	}
}

func (p *AdaptivePlayer) engine() MediaEngine {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// handleEvent filters engine events through the recovery ladder before
// forwarding them to the subscriber
func (p *AdaptivePlayer) handleEvent(ev domain.PlayerEvent) {
	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		return
	}

	switch e := ev.(type) {
	case domain.EventStarted:
		p.ready = true
		pending := p.pendingSeek
		p.pendingSeek = nil
		engine := p.active
		sink := p.sink
		p.mu.Unlock()

		if sink != nil {
			sink(ev)
		}
		if pending != nil && engine != nil {
			engine.Seek(*pending)
		}
		return

	case domain.EventTimeUpdate:
		p.lastPosition = e.PositionSeconds
		// Forward progress clears the transient-failure budgets
		p.networkRetries = 0

	case domain.EventError:
		p.handleErrorLocked(e)
		return
	}

	sink := p.sink
	p.mu.Unlock()

	if sink != nil {
		sink(ev)
	}
}

// handleErrorLocked runs the recovery ladder. Called with p.mu held;
// releases it.
func (p *AdaptivePlayer) handleErrorLocked(ev domain.EventError) {
	engineErr, ok := ev.Err.(*EngineError)
	if !ok {
		p.escalateLocked(ev.Err)
		return
	}

	switch engineErr.Kind {
	case ErrorNetwork:
		if p.networkRetries >= maxNetworkRetries {
			p.escalateLocked(engineErr)
			return
		}
		p.networkRetries++
		p.logger.Warn("network error, retrying from current position",
			"attempt", p.networkRetries, "position", p.lastPosition)
		p.reloadLocked()

	case ErrorDecode:
		if p.decodeRecovers >= 1 {
			p.escalateLocked(&domain.MediaDecodeError{URL: p.stream.URL, Cause: engineErr.Err})
			return
		}
		p.decodeRecovers++
		p.logger.Warn("decode error, attempting recovery", "position", p.lastPosition)
		p.reloadLocked()

	default: // ErrorUnsupported
		p.escalateLocked(&domain.MediaDecodeError{URL: p.stream.URL, Cause: engineErr.Err})
	}
}

// reloadLocked re-loads the active engine at the last known position.
// Called with p.mu held; releases it.
func (p *AdaptivePlayer) reloadLocked() {
	engine := p.active
	stream := p.stream
	position := p.lastPosition
	p.ready = false
	p.mu.Unlock()

	if engine == nil {
		return
	}
	err := engine.Load(context.Background(), stream.URL, LoadOptions{
		StartSeconds: position,
		MimeType:     stream.MimeType,
		Buffer:       bufferPolicy(stream.Live),
	})
	if err != nil {
		p.mu.Lock()
		p.escalateLocked(err)
	}
}

// escalateLocked forwards a fatal error to the subscriber. Called with
// p.mu held; releases it.
func (p *AdaptivePlayer) escalateLocked(err error) {
	sink := p.sink
	p.mu.Unlock()

	p.logger.Error("player error is fatal", "error", err)
	if sink != nil {
		sink(domain.EventError{Err: err})
	}
}
