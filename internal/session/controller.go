// Package session implements the playback session controller: the
// orchestrator that owns the active player, drives stream resolution and
// the play queue, runs the server-reporting protocol, and exposes
// transport commands to the UI.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tversen/flick/internal/domain"
	"github.com/tversen/flick/internal/queue"
	"github.com/tversen/flick/internal/resolver"
	"github.com/tversen/flick/internal/segments"
	"github.com/tversen/flick/internal/trickplay"
)

// StreamResolver is the resolution dependency of the controller
type StreamResolver interface {
	Resolve(ctx context.Context, req resolver.Request) (domain.ResolvedStream, error)
	SidecarURL(itemID, mediaSourceID string, streamIndex int, start domain.Ticks) string
}

// PlayerFactory creates a fresh player for a category. A new player is
// acquired per play; the previous one is always released first because
// decode resources are exclusive.
type PlayerFactory func(category domain.MediaCategory) domain.Player

// resumeStore is the optional local resume-position persistence layer
type resumeStore interface {
	GetResume(itemID string) (domain.Ticks, bool)
	PutResume(itemID string, position domain.Ticks) error
	DeleteResume(itemID string) error
}

// PlaybackPrefs carries the user preferences that feed stream resolution
type PlaybackPrefs struct {
	ForceTranscode   bool
	BitrateOverride  int // Explicit bps cap, wins over the preset
	PresetBitrate    int // Quality preset ceiling
	DevicePixelWidth int // For trickplay sprite selection
}

// Options configures a Controller. Client, Resolver and NewPlayer are
// required; everything else has a usable default.
type Options struct {
	Client    domain.ServerClient
	Resolver  StreamResolver
	NewPlayer PlayerFactory
	Category  domain.MediaCategory
	Profile   domain.DeviceProfile
	Prefs     PlaybackPrefs

	Store     resumeStore      // Optional resume persistence
	Trickplay *trickplay.Cache // Optional seek previews

	ProgressInterval time.Duration // Defaults to 10s
	Logger           *slog.Logger
}

func (o *Options) validate() error {
	if o.Client == nil {
		return errors.New("session: Options.Client is required")
	}
	if o.Resolver == nil {
		return errors.New("session: Options.Resolver is required")
	}
	if o.NewPlayer == nil {
		return errors.New("session: Options.NewPlayer is required")
	}
	if o.ProgressInterval < 0 {
		return errors.New("session: Options.ProgressInterval must not be negative")
	}
	return nil
}

// Snapshot is the UI-facing view of the controller state
type Snapshot struct {
	State     domain.PlaybackState
	Buffering bool // Transient stall, distinct from fatal failure

	Item     domain.MediaItem
	HaveItem bool
	Method   domain.PlayMethod

	PositionSeconds float64
	DurationSeconds float64

	Paused bool
	Muted  bool
	Volume int

	SubtitleCues []domain.SubtitleCue

	Err error // Set on fatal failure, nil otherwise
}

// Controller is the playback session controller for one media category
type Controller struct {
	client    domain.ServerClient
	resolver  StreamResolver
	newPlayer PlayerFactory
	category  domain.MediaCategory
	profile   domain.DeviceProfile
	prefs     PlaybackPrefs
	store     resumeStore
	trickplay *trickplay.Cache
	segments  *segments.Detector
	reporter  *reporter
	logger    *slog.Logger
	queue     *queue.Queue

	mu            sync.Mutex
	state         domain.PlaybackState
	buffering     bool
	session       domain.PlaybackSession
	haveSession   bool
	stream        domain.ResolvedStream
	player        domain.Player
	startReported bool
	cues          []domain.SubtitleCue
	lastErr       error
	playGen       uint64
	subs          []func(Snapshot)
}

// NewController creates a session controller
func NewController(opts Options) (*Controller, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		client:    opts.Client,
		resolver:  opts.Resolver,
		newPlayer: opts.NewPlayer,
		category:  opts.Category,
		profile:   opts.Profile,
		prefs:     opts.Prefs,
		store:     opts.Store,
		trickplay: opts.Trickplay,
		segments:  segments.NewDetector(),
		reporter:  newReporter(opts.Client, opts.ProgressInterval, logger),
		logger:    logger,
		queue:     queue.New(),
		state:     domain.StateIdle,
	}, nil
}

// Queue exposes the play queue for direct manipulation
func (c *Controller) Queue() *queue.Queue { return c.queue }

// Subscribe registers a state change listener
func (c *Controller) Subscribe(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, fn)
}

// Snapshot returns the current UI-facing state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:           c.state,
		Buffering:       c.buffering,
		PositionSeconds: c.session.PositionTicks.Seconds(),
		Paused:          c.session.Paused,
		Muted:           c.session.Muted,
		Volume:          c.session.Volume,
		Method:          c.session.Method,
		SubtitleCues:    c.cues,
		Err:             c.lastErr,
	}
	if c.haveSession {
		snap.Item = c.session.Item
		snap.HaveItem = true
		snap.DurationSeconds = c.session.Item.RunTimeTicks.Seconds()
	}
	return snap
}

// notifyLocked snapshots state and schedules listener callbacks. Caller
// must hold c.mu; callbacks run without it.
func (c *Controller) notifyLocked() {
	snap := c.snapshotLocked()
	subs := make([]func(Snapshot), len(c.subs))
	copy(subs, c.subs)
	go func() {
		for _, fn := range subs {
			fn(snap)
		}
	}()
}

// Play replaces the queue with a single item and starts playback
func (c *Controller) Play(ctx context.Context, item domain.MediaItem) error {
	return c.PlayItems(ctx, []domain.MediaItem{item}, 0)
}

// PlayItems replaces the queue and starts playback at startIndex
func (c *Controller) PlayItems(ctx context.Context, items []domain.MediaItem, startIndex int) error {
	if len(items) == 0 {
		return domain.ErrQueueEmpty
	}
	c.queue.SetPlaylist(items)
	if startIndex != 0 {
		if err := c.queue.SetCurrentIndex(startIndex); err != nil {
			return err
		}
	}
	return c.playCurrent(ctx, playOverrides{})
}

// Next advances to the next queue item per the repeat mode
func (c *Controller) Next(ctx context.Context) error {
	info, ok := c.queue.NextItemInfo()
	if !ok {
		return domain.ErrQueueIndexOutOfRange
	}
	if err := c.queue.SetCurrentIndex(info.Index); err != nil {
		return err
	}
	return c.playCurrent(ctx, playOverrides{})
}

// Previous moves to the previous queue item per the repeat mode
func (c *Controller) Previous(ctx context.Context) error {
	info, ok := c.queue.PreviousItemInfo()
	if !ok {
		return domain.ErrQueueIndexOutOfRange
	}
	if err := c.queue.SetCurrentIndex(info.Index); err != nil {
		return err
	}
	return c.playCurrent(ctx, playOverrides{})
}

// RemoveFromQueue removes queue items, stopping playback when the removal
// would empty the queue and re-resolving when the current item changed
func (c *Controller) RemoveFromQueue(ctx context.Context, queueItemIDs []int64) error {
	before, hadCurrent := c.queue.Current()

	if emptied := c.queue.Remove(queueItemIDs); emptied {
		return c.Stop()
	}

	after, ok := c.queue.Current()
	if !ok {
		return c.Stop()
	}
	if hadCurrent && after.Item.QueueItemID != before.Item.QueueItemID {
		// The playing item was removed; play its successor
		return c.playCurrent(ctx, playOverrides{})
	}
	return nil
}

// playOverrides carries per-restart resolution overrides
type playOverrides struct {
	startTicks     domain.Ticks
	haveStart      bool
	audioIndex     *int
	subtitleIndex  *int
	bitrate        *int
	forceTranscode bool
}

// playCurrent resolves and starts the queue's current item. Any previous
// player of this category is stopped and released first.
func (c *Controller) playCurrent(ctx context.Context, ov playOverrides) error {
	info, ok := c.queue.Current()
	if !ok {
		return domain.ErrQueueEmpty
	}
	item := info.Item.Media

	c.mu.Lock()
	c.stopPlaybackLocked(true)
	c.playGen++
	gen := c.playGen
	c.state = domain.StateLoading
	c.buffering = false
	c.lastErr = nil
	c.cues = nil
	c.notifyLocked()
	c.mu.Unlock()

	req := resolver.NewRequest(item)
	req.Profile = c.profile
	req.ForceTranscode = c.prefs.ForceTranscode || ov.forceTranscode
	req.BitrateOverride = c.prefs.BitrateOverride
	req.PresetBitrate = c.prefs.PresetBitrate
	if ov.bitrate != nil {
		req.BitrateOverride = *ov.bitrate
	}
	if ov.audioIndex != nil {
		req.AudioStreamIndex = *ov.audioIndex
	}
	if ov.subtitleIndex != nil {
		req.SubtitleStreamIndex = *ov.subtitleIndex
	}
	if ov.haveStart {
		req.StartTicks = ov.startTicks
	} else {
		req.StartTicks = c.resumePosition(item)
	}

	stream, err := c.resolver.Resolve(ctx, req)
	if err != nil {
		c.mu.Lock()
		if c.playGen == gen {
			c.state = domain.StateIdle
			c.lastErr = err
			c.notifyLocked()
		}
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	if c.playGen != gen {
		// A newer play() superseded this resolution mid-flight
		c.mu.Unlock()
		return nil
	}

	player := c.newPlayer(c.category)
	c.player = player
	c.stream = stream
	c.session = domain.PlaybackSession{
		SessionID:           stream.SessionID,
		Item:                item,
		Method:              stream.Method,
		PositionTicks:       stream.StartTicks,
		Rate:                1,
		Volume:              100,
		AudioStreamIndex:    stream.AudioStreamIndex,
		SubtitleStreamIndex: stream.SubtitleStreamIndex,
	}
	if source, ok := item.SourceByID(stream.MediaSourceID); ok {
		c.session.Source = source
	}
	c.haveSession = true
	c.startReported = false
	c.mu.Unlock()

	player.Subscribe(func(ev domain.PlayerEvent) { c.onPlayerEvent(gen, ev) })

	c.loadSidecarSubtitles(gen, stream)
	c.prepareExtras(gen, item, stream)

	c.mu.Lock()
	superseded := c.playGen != gen
	c.mu.Unlock()
	if superseded {
		// A Stop or newer play landed after the session was installed;
		// it already released this player
		return nil
	}

	if err := player.Load(ctx, stream); err != nil {
		if errors.Is(err, domain.ErrPlayerReleased) {
			// Stop won the race between the generation check and Load
			return nil
		}
		c.failPlayback(gen, fmt.Errorf("failed to load stream: %w", err))
		return err
	}
	return nil
}

// resumePosition picks the start offset for an item: server-side position
// first, locally persisted position as fallback
func (c *Controller) resumePosition(item domain.MediaItem) domain.Ticks {
	if item.ShouldResume() {
		return item.UserState.PositionTicks
	}
	if c.store != nil {
		if ticks, ok := c.store.GetResume(item.ID); ok {
			return ticks
		}
	}
	return 0
}

// loadSidecarSubtitles fetches client-rendered cues in the background
func (c *Controller) loadSidecarSubtitles(gen uint64, stream domain.ResolvedStream) {
	if stream.SubtitleSidecarURL == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		cues, err := c.client.GetSubtitles(ctx, stream.SubtitleSidecarURL)
		if err != nil {
			c.logger.Warn("failed to load sidecar subtitles", "error", err)
			return
		}
		c.mu.Lock()
		if c.playGen == gen {
			c.cues = cues
			c.notifyLocked()
		}
		c.mu.Unlock()
	}()
}

// prepareExtras loads trickplay sprites and skip segments in the background
func (c *Controller) prepareExtras(gen uint64, item domain.MediaItem, stream domain.ResolvedStream) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if c.trickplay != nil {
			if err := c.trickplay.Prepare(ctx, item.ID, stream.MediaSourceID, c.prefs.DevicePixelWidth); err != nil && !errors.Is(err, trickplay.ErrNoTrickplay) {
				c.logger.Debug("trickplay unavailable", "item", item.ID, "error", err)
			}
		}

		detector := segments.NewDetector()
		if err := detector.LoadForItem(ctx, c.client, item.ID); err != nil {
			c.logger.Debug("skip segments unavailable", "item", item.ID, "error", err)
		}
		c.mu.Lock()
		if c.playGen == gen {
			c.segments = detector
		}
		c.mu.Unlock()
	}()
}

// onPlayerEvent applies a player event to the state machine. Events from
// superseded players are ignored.
func (c *Controller) onPlayerEvent(gen uint64, ev domain.PlayerEvent) {
	c.mu.Lock()
	if c.playGen != gen {
		c.mu.Unlock()
		return
	}

	switch e := ev.(type) {
	case domain.EventTimeUpdate:
		c.session.PositionTicks = domain.SecondsToTicks(e.PositionSeconds)
		if c.state == domain.StateLoading || c.buffering {
			// First time-advance (or recovery from a stall) means we
			// are genuinely playing
			c.enterPlayingLocked()
		}
		c.notifyLocked()

	case domain.EventStarted:
		// Readiness is interesting to log but Playing waits for the
		// first time-advance
		c.logger.Debug("player ready", "session", c.session.SessionID)

	case domain.EventPaused:
		// A pause during a buffering stall is still a user pause
		if c.state == domain.StatePlaying || c.buffering {
			c.state = domain.StatePaused
			c.buffering = false
			c.session.Paused = true
			c.reporter.stopProgress()
			c.reporter.reportProgressNow(c.progressReportLocked())
			c.persistResumeLocked()
			c.notifyLocked()
		}

	case domain.EventResumed:
		if c.state == domain.StatePaused || c.buffering {
			c.enterPlayingLocked()
			c.reporter.reportProgressNow(c.progressReportLocked())
			c.notifyLocked()
		}

	case domain.EventBuffering:
		// A stall pauses the state machine but is a distinct UI state
		// from fatal failure
		if c.state == domain.StatePlaying {
			c.state = domain.StatePaused
			c.buffering = true
			c.reporter.stopProgress()
			c.notifyLocked()
		}

	case domain.EventVolumeChanged:
		c.session.Volume = e.Volume
		c.session.Muted = e.Muted
		c.notifyLocked()

	case domain.EventEnded:
		c.endedLocked()
		return // endedLocked releases the lock

	case domain.EventError:
		c.mu.Unlock()
		c.failPlayback(gen, e.Err)
		return
	}
	c.mu.Unlock()
}

// enterPlayingLocked transitions to Playing, sending the one start report
// per session on first entry
func (c *Controller) enterPlayingLocked() {
	c.state = domain.StatePlaying
	c.buffering = false
	c.session.Paused = false

	if !c.startReported {
		c.startReported = true
		c.reporter.reportStart(c.progressReportLocked())
	}
	gen := c.playGen
	c.reporter.beginProgress(func() (domain.ProgressReport, bool) {
		return c.tickerReport(gen)
	})
}

// tickerReport captures a progress report for the repeating timer. It
// returns false when the session the timer belongs to is gone or not
// playing, so a tick racing a stop never produces a report.
func (c *Controller) tickerReport(gen uint64) (domain.ProgressReport, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playGen != gen || c.state != domain.StatePlaying {
		return domain.ProgressReport{}, false
	}
	// Read the live player position rather than the last event's
	c.session.PositionTicks = c.livePositionLocked()
	return c.progressReportLocked(), true
}

func (c *Controller) livePositionLocked() domain.Ticks {
	if c.player != nil {
		return domain.SecondsToTicks(c.player.Position())
	}
	return c.session.PositionTicks
}

func (c *Controller) progressReportLocked() domain.ProgressReport {
	return domain.ProgressReport{
		ItemID:              c.session.Item.ID,
		MediaSourceID:       c.stream.MediaSourceID,
		SessionID:           c.session.SessionID,
		PositionTicks:       c.session.PositionTicks,
		Paused:              c.session.Paused,
		Muted:               c.session.Muted,
		VolumeLevel:         c.session.Volume,
		Method:              c.session.Method,
		AudioStreamIndex:    c.session.AudioStreamIndex,
		SubtitleStreamIndex: c.session.SubtitleStreamIndex,
	}
}

// endedLocked handles natural end of media: one stop report, then queue
// auto-advance per the repeat mode. Releases the lock.
func (c *Controller) endedLocked() {
	c.state = domain.StateEnded
	c.reporter.stopProgress()
	c.reporter.reportStopped(c.progressReportLocked())

	itemID := c.session.Item.ID
	c.releasePlayerLocked()
	c.haveSession = false
	c.notifyLocked()
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.DeleteResume(itemID); err != nil {
			c.logger.Warn("failed to clear resume position", "item", itemID, "error", err)
		}
	}

	info, ok := c.queue.NextItemInfo()
	if !ok {
		// Nothing to advance to; the session is destroyed
		c.mu.Lock()
		c.state = domain.StateIdle
		c.session = domain.PlaybackSession{}
		c.notifyLocked()
		c.mu.Unlock()
		return
	}

	if err := c.queue.SetCurrentIndex(info.Index); err != nil {
		c.logger.Error("auto-advance failed", "error", err)
		return
	}
	go func() {
		if err := c.playCurrent(context.Background(), playOverrides{}); err != nil {
			c.logger.Error("auto-advance playback failed", "error", err)
		}
	}()
}

// failPlayback handles a fatal player error: the overlay closes back to
// the prior view, never freezes on a loading state
func (c *Controller) failPlayback(gen uint64, err error) {
	c.mu.Lock()
	if c.playGen != gen {
		c.mu.Unlock()
		return
	}
	c.logger.Error("playback failed", "session", c.session.SessionID, "error", err)

	c.reporter.stopProgress()
	if c.haveSession {
		c.reporter.reportStopped(c.progressReportLocked())
	}
	c.releasePlayerLocked()
	c.haveSession = false
	c.session = domain.PlaybackSession{}
	c.state = domain.StateIdle
	c.buffering = false
	c.lastErr = err
	c.notifyLocked()
	c.mu.Unlock()
}

// Stop ends playback without auto-advance. Idempotent: stopping an idle
// controller is a no-op.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if !c.haveSession && c.state == domain.StateIdle {
		c.mu.Unlock()
		return nil
	}

	c.playGen++ // Invalidate in-flight resolutions and stale player events
	c.state = domain.StateStopped
	c.stopPlaybackLocked(true)
	c.notifyLocked()

	c.state = domain.StateIdle
	c.session = domain.PlaybackSession{}
	c.haveSession = false
	c.buffering = false
	c.notifyLocked()
	c.mu.Unlock()
	return nil
}

// stopPlaybackLocked cancels reporting, sends the final stop report with
// the last known position, persists resume state and releases the player
func (c *Controller) stopPlaybackLocked(report bool) {
	c.reporter.stopProgress()
	if report && c.haveSession {
		c.session.PositionTicks = c.livePositionLocked()
		c.reporter.reportStopped(c.progressReportLocked())
		c.persistResumeLocked()
	}
	c.releasePlayerLocked()
	c.haveSession = false
}

func (c *Controller) releasePlayerLocked() {
	if c.player != nil {
		c.player.Release()
		c.player = nil
	}
	if c.trickplay != nil {
		c.trickplay.Release()
	}
}

func (c *Controller) persistResumeLocked() {
	if c.store == nil || !c.haveSession {
		return
	}
	itemID := c.session.Item.ID
	position := c.session.PositionTicks
	if err := c.store.PutResume(itemID, position); err != nil {
		c.logger.Warn("failed to persist resume position", "item", itemID, "error", err)
	}
}

// Pause suspends playback
func (c *Controller) Pause() error {
	player, err := c.activePlayer()
	if err != nil {
		return err
	}
	player.Pause()
	return nil
}

// Resume continues paused playback
func (c *Controller) Resume() error {
	player, err := c.activePlayer()
	if err != nil {
		return err
	}
	player.Play()
	return nil
}

// TogglePause flips between paused and playing
func (c *Controller) TogglePause() error {
	c.mu.Lock()
	paused := c.session.Paused
	c.mu.Unlock()
	if paused {
		return c.Resume()
	}
	return c.Pause()
}

// Seek jumps to an absolute position in seconds
func (c *Controller) Seek(seconds float64) error {
	player, err := c.activePlayer()
	if err != nil {
		return err
	}
	if seconds < 0 {
		seconds = 0
	}
	c.mu.Lock()
	c.session.PositionTicks = domain.SecondsToTicks(seconds)
	c.mu.Unlock()
	player.Seek(seconds)
	return nil
}

// SeekBy jumps relative to the current position
func (c *Controller) SeekBy(deltaSeconds float64) error {
	c.mu.Lock()
	current := c.session.PositionTicks.Seconds()
	c.mu.Unlock()
	return c.Seek(current + deltaSeconds)
}

// SkipSegment seeks past the skip range containing the current position,
// if any. Reports whether a skip happened.
func (c *Controller) SkipSegment() (bool, error) {
	c.mu.Lock()
	seg, ok := c.segments.At(c.session.PositionTicks)
	c.mu.Unlock()
	if !ok {
		return false, nil
	}
	c.logger.Info("skipping segment", "type", seg.Type.String(), "to", seg.End.Seconds())
	return true, c.Seek(seg.End.Seconds())
}

// CurrentSkipSegment returns the skip range containing the current
// position for UI prompting
func (c *Controller) CurrentSkipSegment() (domain.SkipSegment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.segments.At(c.session.PositionTicks)
}

// SetVolume sets the player volume (0-100)
func (c *Controller) SetVolume(volume int) error {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	player, err := c.activePlayer()
	if err != nil {
		return err
	}
	player.SetVolume(volume)
	return nil
}

// SetMuted toggles mute
func (c *Controller) SetMuted(muted bool) error {
	player, err := c.activePlayer()
	if err != nil {
		return err
	}
	player.SetMuted(muted)
	return nil
}

func (c *Controller) activePlayer() (domain.Player, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.player == nil {
		return nil, domain.ErrNoActiveSession
	}
	return c.player, nil
}

// SetAudioStream switches the audio track. Audio switches always force a
// full re-resolve-and-replay resuming from the captured position.
func (c *Controller) SetAudioStream(ctx context.Context, index int) error {
	position, err := c.capturePosition()
	if err != nil {
		return err
	}
	idx := index
	return c.playCurrent(ctx, playOverrides{
		startTicks: position,
		haveStart:  true,
		audioIndex: &idx,
	})
}

// SetSubtitleStream switches the subtitle track. Text subtitles swap
// seamlessly as sidecar tracks; image subtitles require burn-in and force
// a re-resolve.
func (c *Controller) SetSubtitleStream(ctx context.Context, index int) error {
	c.mu.Lock()
	if !c.haveSession {
		c.mu.Unlock()
		return domain.ErrNoActiveSession
	}
	source := c.session.Source
	itemID := c.session.Item.ID
	sourceID := c.stream.MediaSourceID
	position := c.session.PositionTicks
	gen := c.playGen
	c.mu.Unlock()

	if index < 0 {
		// Subtitles off: drop the sidecar track, no re-resolution
		c.mu.Lock()
		c.cues = nil
		c.session.SubtitleStreamIndex = -1
		c.stream.SubtitleSidecarURL = ""
		c.notifyLocked()
		c.mu.Unlock()
		return nil
	}

	st, ok := source.StreamByIndex(index)
	if !ok || st.Type != domain.StreamTypeSubtitle {
		return fmt.Errorf("stream %d is not a subtitle stream", index)
	}

	if isTextSubtitle(st.Codec) {
		// Seamless sidecar swap
		url := c.resolver.SidecarURL(itemID, sourceID, index, 0)
		c.mu.Lock()
		c.session.SubtitleStreamIndex = index
		c.stream.SubtitleSidecarURL = url
		stream := c.stream
		c.mu.Unlock()
		c.loadSidecarSubtitles(gen, stream)
		return nil
	}

	// Image-based subtitles burn in; that re-encodes video
	idx := index
	return c.playCurrent(ctx, playOverrides{
		startTicks:    position,
		haveStart:     true,
		subtitleIndex: &idx,
	})
}

// SetMaxBitrate changes the bitrate cap, forcing a re-resolve-and-replay
// from the captured position
func (c *Controller) SetMaxBitrate(ctx context.Context, bitrate int) error {
	position, err := c.capturePosition()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.prefs.BitrateOverride = bitrate
	c.mu.Unlock()
	b := bitrate
	return c.playCurrent(ctx, playOverrides{
		startTicks: position,
		haveStart:  true,
		bitrate:    &b,
	})
}

// RetryTranscoded replays the current item with transcoding forced, for
// recovery after a fatal decode error. When no session survives the
// failure, playback restarts from the resume position.
func (c *Controller) RetryTranscoded(ctx context.Context) error {
	ov := playOverrides{forceTranscode: true}
	c.mu.Lock()
	if c.haveSession {
		ov.startTicks = c.livePositionLocked()
		ov.haveStart = true
	}
	c.mu.Unlock()
	return c.playCurrent(ctx, ov)
}

func (c *Controller) capturePosition() (domain.Ticks, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.haveSession {
		return 0, domain.ErrNoActiveSession
	}
	return c.livePositionLocked(), nil
}

// ToggleFavorite flips the favorite flag optimistically, rolling back if
// the server rejects the change
func (c *Controller) ToggleFavorite(ctx context.Context) error {
	c.mu.Lock()
	if !c.haveSession {
		c.mu.Unlock()
		return domain.ErrNoActiveSession
	}
	itemID := c.session.Item.ID
	target := !c.session.Item.UserState.Favorite
	c.session.Item.UserState.Favorite = target
	c.notifyLocked()
	c.mu.Unlock()

	go func() {
		reqCtx, cancel := context.WithTimeout(context.Background(), reportTimeout)
		defer cancel()
		if err := c.client.SetFavorite(reqCtx, itemID, target); err != nil {
			c.logger.Warn("favorite toggle rejected, rolling back", "item", itemID, "error", err)
			c.mu.Lock()
			if c.haveSession && c.session.Item.ID == itemID {
				c.session.Item.UserState.Favorite = !target
				c.notifyLocked()
			}
			c.mu.Unlock()
		}
	}()
	return nil
}

// isTextSubtitle reports whether a subtitle codec renders client-side
func isTextSubtitle(codec string) bool {
	switch codec {
	case "subrip", "srt", "ass", "ssa", "vtt", "webvtt":
		return true
	}
	return false
}
