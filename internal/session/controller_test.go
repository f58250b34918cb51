package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tversen/flick/internal/domain"
	"github.com/tversen/flick/internal/log"
	"github.com/tversen/flick/internal/resolver"
)

const waitTimeout = 2 * time.Second

// fakeServer counts playback reports and serves subtitles
type fakeServer struct {
	mu        sync.Mutex
	starts    []domain.ProgressReport
	progress  []domain.ProgressReport
	stops     []domain.ProgressReport
	favorites []bool
	favErr    error
	cues      []domain.SubtitleCue
	subURLs   []string
}

func (f *fakeServer) GetItem(ctx context.Context, itemID string) (domain.MediaItem, error) {
	return domain.MediaItem{}, domain.ErrItemNotFound
}

func (f *fakeServer) GetPlaybackInfo(ctx context.Context, req domain.PlaybackInfoRequest) (domain.PlaybackInfo, error) {
	return domain.PlaybackInfo{}, nil
}

func (f *fakeServer) ReportStart(ctx context.Context, report domain.ProgressReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, report)
	return nil
}

func (f *fakeServer) ReportProgress(ctx context.Context, report domain.ProgressReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress = append(f.progress, report)
	return nil
}

func (f *fakeServer) ReportStopped(ctx context.Context, report domain.ProgressReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops = append(f.stops, report)
	return nil
}

func (f *fakeServer) GetSkipSegments(ctx context.Context, itemID string) ([]domain.SkipSegment, error) {
	return nil, nil
}

func (f *fakeServer) GetTrickplayConfigs(ctx context.Context, itemID string) ([]domain.TrickplayConfig, error) {
	return nil, nil
}

func (f *fakeServer) GetTrickplaySprite(ctx context.Context, itemID, mediaSourceID string, width, spriteIndex int) ([]byte, error) {
	return nil, domain.ErrItemNotFound
}

func (f *fakeServer) GetSubtitles(ctx context.Context, url string) ([]domain.SubtitleCue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subURLs = append(f.subURLs, url)
	return f.cues, nil
}

func (f *fakeServer) SetFavorite(ctx context.Context, itemID string, favorite bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.favorites = append(f.favorites, favorite)
	return f.favErr
}

func (f *fakeServer) counts() (starts, progress, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.starts), len(f.progress), len(f.stops)
}

// fakeResolver hands out canned streams and records requests
type fakeResolver struct {
	mu       sync.Mutex
	requests []resolver.Request
	err      error
}

func (f *fakeResolver) Resolve(ctx context.Context, req resolver.Request) (domain.ResolvedStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return domain.ResolvedStream{}, f.err
	}
	return domain.ResolvedStream{
		URL:                 "http://server/Videos/" + req.Item.ID + "/stream.mp4",
		Container:           "mp4",
		MimeType:            "video/mp4",
		Method:              domain.PlayMethodDirectPlay,
		SessionID:           "sess-" + req.Item.ID,
		MediaSourceID:       "src1",
		StartTicks:          req.StartTicks,
		AudioStreamIndex:    req.AudioStreamIndex,
		SubtitleStreamIndex: req.SubtitleStreamIndex,
	}, nil
}

func (f *fakeResolver) SidecarURL(itemID, mediaSourceID string, streamIndex int, start domain.Ticks) string {
	return "/Videos/" + itemID + "/Subtitles"
}

func (f *fakeResolver) resolveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeResolver) lastRequest() resolver.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

// fakePlayer lets tests drive player events by hand
type fakePlayer struct {
	mu          sync.Mutex
	category    domain.MediaCategory
	sink        func(domain.PlayerEvent)
	position    float64
	released    bool
	loads       int
	seeks       []float64
	onSubscribe func()
}

func (f *fakePlayer) Category() domain.MediaCategory { return f.category }

func (f *fakePlayer) Load(ctx context.Context, stream domain.ResolvedStream) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.released {
		return domain.ErrPlayerReleased
	}
	f.loads++
	f.position = stream.StartTicks.Seconds()
	return nil
}

func (f *fakePlayer) Play()          {}
func (f *fakePlayer) Pause()         {}
func (f *fakePlayer) SetVolume(int)  {}
func (f *fakePlayer) SetMuted(bool)  {}

func (f *fakePlayer) Seek(seconds float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeks = append(f.seeks, seconds)
	f.position = seconds
}

func (f *fakePlayer) Position() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position
}

func (f *fakePlayer) Subscribe(fn func(domain.PlayerEvent)) {
	f.mu.Lock()
	f.sink = fn
	hook := f.onSubscribe
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
}

func (f *fakePlayer) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = true
}

func (f *fakePlayer) emit(ev domain.PlayerEvent) {
	f.mu.Lock()
	sink := f.sink
	f.mu.Unlock()
	sink(ev)
}

func (f *fakePlayer) playAt(seconds float64) {
	f.mu.Lock()
	f.position = seconds
	f.mu.Unlock()
	f.emit(domain.EventTimeUpdate{PositionSeconds: seconds})
}

// playerFactory hands out fresh fake players and keeps them for the tests
type playerFactory struct {
	mu          sync.Mutex
	players     []*fakePlayer
	onSubscribe func() // Copied onto created players
}

func (pf *playerFactory) new(category domain.MediaCategory) domain.Player {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	p := &fakePlayer{category: category, onSubscribe: pf.onSubscribe}
	pf.players = append(pf.players, p)
	return p
}

func (pf *playerFactory) last() *fakePlayer {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	return pf.players[len(pf.players)-1]
}

func (pf *playerFactory) count() int {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	return len(pf.players)
}

type fakeResumeStore struct {
	mu        sync.Mutex
	positions map[string]domain.Ticks
}

func newFakeResumeStore() *fakeResumeStore {
	return &fakeResumeStore{positions: make(map[string]domain.Ticks)}
}

func (s *fakeResumeStore) GetResume(itemID string) (domain.Ticks, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.positions[itemID]
	return pos, ok
}

func (s *fakeResumeStore) PutResume(itemID string, position domain.Ticks) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[itemID] = position
	return nil
}

func (s *fakeResumeStore) DeleteResume(itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.positions, itemID)
	return nil
}

type testRig struct {
	server   *fakeServer
	resolver *fakeResolver
	factory  *playerFactory
	store    *fakeResumeStore
	ctrl     *Controller
}

func newRig(t *testing.T, interval time.Duration) *testRig {
	t.Helper()
	rig := &testRig{
		server:   &fakeServer{},
		resolver: &fakeResolver{},
		factory:  &playerFactory{},
		store:    newFakeResumeStore(),
	}
	ctrl, err := NewController(Options{
		Client:           rig.server,
		Resolver:         rig.resolver,
		NewPlayer:        rig.factory.new,
		Category:         domain.CategoryVideo,
		Store:            rig.store,
		ProgressInterval: interval,
		Logger:           log.NullLogger(),
	})
	require.NoError(t, err)
	rig.ctrl = ctrl
	return rig
}

func videoItem(id string) domain.MediaItem {
	return domain.MediaItem{
		ID:           id,
		Name:         "Item " + id,
		Kind:         domain.MediaKindMovie,
		RunTimeTicks: domain.SecondsToTicks(3600),
		Sources: []domain.MediaSource{{
			ID:        "src1",
			Container: "mp4",
			Streams: []domain.MediaStream{
				{Type: domain.StreamTypeVideo, Codec: "h264", Index: 0},
				{Type: domain.StreamTypeAudio, Codec: "aac", Index: 1, Default: true},
				{Type: domain.StreamTypeSubtitle, Codec: "subrip", Index: 2},
				{Type: domain.StreamTypeSubtitle, Codec: "pgssub", Index: 3},
			},
			SupportsDirectPlay: true,
		}},
	}
}

// startPlaying plays an item and drives it into the Playing state
func (rig *testRig) startPlaying(t *testing.T, item domain.MediaItem) *fakePlayer {
	t.Helper()
	require.NoError(t, rig.ctrl.Play(context.Background(), item))
	p := rig.factory.last()
	p.emit(domain.EventStarted{})
	p.playAt(1)
	require.Eventually(t, func() bool {
		return rig.ctrl.Snapshot().State == domain.StatePlaying
	}, waitTimeout, 5*time.Millisecond)
	return p
}

func TestStartReportSentOnceOnFirstTimeAdvance(t *testing.T) {
	rig := newRig(t, time.Hour)

	require.NoError(t, rig.ctrl.Play(context.Background(), videoItem("m1")))
	assert.Equal(t, domain.StateLoading, rig.ctrl.Snapshot().State)

	p := rig.factory.last()
	p.emit(domain.EventStarted{})

	// Engine readiness alone is not playback; no start report yet
	starts, _, _ := rig.server.counts()
	assert.Equal(t, 0, starts)

	p.playAt(1)
	p.playAt(2)
	p.playAt(3)

	require.Eventually(t, func() bool {
		starts, _, _ := rig.server.counts()
		return starts == 1
	}, waitTimeout, 5*time.Millisecond)

	// Repeated time advances never produce a second start report
	time.Sleep(50 * time.Millisecond)
	starts, _, _ = rig.server.counts()
	assert.Equal(t, 1, starts)
	assert.Equal(t, domain.StatePlaying, rig.ctrl.Snapshot().State)
}

func TestProgressTickerAndSingleStopReport(t *testing.T) {
	rig := newRig(t, 30*time.Millisecond)
	p := rig.startPlaying(t, videoItem("m1"))
	p.playAt(10)

	// The repeating timer fires independently of player events
	require.Eventually(t, func() bool {
		_, progress, _ := rig.server.counts()
		return progress >= 2
	}, waitTimeout, 5*time.Millisecond)

	require.NoError(t, rig.ctrl.Stop())

	require.Eventually(t, func() bool {
		_, _, stops := rig.server.counts()
		return stops == 1
	}, waitTimeout, 5*time.Millisecond)

	// No progress reports trickle in after the stop
	_, progressAtStop, _ := rig.server.counts()
	time.Sleep(120 * time.Millisecond)
	starts, progress, stops := rig.server.counts()
	assert.Equal(t, 1, starts)
	assert.Equal(t, progressAtStop, progress)
	assert.Equal(t, 1, stops)
	assert.Equal(t, domain.StateIdle, rig.ctrl.Snapshot().State)
}

func TestPauseSendsOutOfBandProgress(t *testing.T) {
	rig := newRig(t, time.Hour)
	p := rig.startPlaying(t, videoItem("m1"))

	p.emit(domain.EventPaused{})
	require.Eventually(t, func() bool {
		_, progress, _ := rig.server.counts()
		return progress == 1
	}, waitTimeout, 5*time.Millisecond)
	snap := rig.ctrl.Snapshot()
	assert.Equal(t, domain.StatePaused, snap.State)
	assert.True(t, snap.Paused)

	rig.server.mu.Lock()
	assert.True(t, rig.server.progress[0].Paused)
	rig.server.mu.Unlock()

	p.emit(domain.EventResumed{})
	require.Eventually(t, func() bool {
		_, progress, _ := rig.server.counts()
		return progress == 2
	}, waitTimeout, 5*time.Millisecond)
	assert.Equal(t, domain.StatePlaying, rig.ctrl.Snapshot().State)
}

func TestStopIsIdempotent(t *testing.T) {
	rig := newRig(t, time.Hour)
	rig.startPlaying(t, videoItem("m1"))

	require.NoError(t, rig.ctrl.Stop())
	require.NoError(t, rig.ctrl.Stop())
	require.NoError(t, rig.ctrl.Stop())

	require.Eventually(t, func() bool {
		_, _, stops := rig.server.counts()
		return stops == 1
	}, waitTimeout, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	_, _, stops := rig.server.counts()
	assert.Equal(t, 1, stops)
}

func TestStopWithoutSessionIsNoop(t *testing.T) {
	rig := newRig(t, time.Hour)

	require.NoError(t, rig.ctrl.Stop())

	time.Sleep(30 * time.Millisecond)
	starts, progress, stops := rig.server.counts()
	assert.Zero(t, starts)
	assert.Zero(t, progress)
	assert.Zero(t, stops)
}

func TestEndedAutoAdvances(t *testing.T) {
	rig := newRig(t, time.Hour)
	items := []domain.MediaItem{videoItem("m1"), videoItem("m2")}
	require.NoError(t, rig.ctrl.PlayItems(context.Background(), items, 0))

	p := rig.factory.last()
	p.emit(domain.EventStarted{})
	p.playAt(3599)
	p.emit(domain.EventEnded{})

	// Stop report for the finished item, then the next item resolves
	require.Eventually(t, func() bool {
		_, _, stops := rig.server.counts()
		return stops == 1 && rig.resolver.resolveCount() == 2
	}, waitTimeout, 5*time.Millisecond)

	require.Eventually(t, func() bool { return rig.factory.count() == 2 }, waitTimeout, 5*time.Millisecond)
	assert.Equal(t, "m2", rig.resolver.lastRequest().Item.ID)

	info, ok := rig.ctrl.Queue().Current()
	require.True(t, ok)
	assert.Equal(t, "m2", info.Item.Media.ID)
}

func TestEndedAtQueueEndGoesIdle(t *testing.T) {
	rig := newRig(t, time.Hour)
	p := rig.startPlaying(t, videoItem("m1"))

	p.emit(domain.EventEnded{})

	require.Eventually(t, func() bool {
		return rig.ctrl.Snapshot().State == domain.StateIdle
	}, waitTimeout, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		_, _, stops := rig.server.counts()
		return stops == 1
	}, waitTimeout, 5*time.Millisecond)
	assert.Equal(t, 1, rig.resolver.resolveCount())
}

func TestEndedClearsLocalResume(t *testing.T) {
	rig := newRig(t, time.Hour)
	require.NoError(t, rig.store.PutResume("m1", domain.SecondsToTicks(500)))
	p := rig.startPlaying(t, videoItem("m1"))

	p.emit(domain.EventEnded{})

	require.Eventually(t, func() bool {
		_, ok := rig.store.GetResume("m1")
		return !ok
	}, waitTimeout, 5*time.Millisecond)
}

func TestFatalErrorDestroysSession(t *testing.T) {
	rig := newRig(t, time.Hour)
	p := rig.startPlaying(t, videoItem("m1"))

	fatal := &domain.MediaDecodeError{URL: "http://x", Cause: errors.New("bad stream")}
	p.emit(domain.EventError{Err: fatal})

	require.Eventually(t, func() bool {
		snap := rig.ctrl.Snapshot()
		return snap.State == domain.StateIdle && snap.Err != nil
	}, waitTimeout, 5*time.Millisecond)

	// The session reported its stop and released the player
	require.Eventually(t, func() bool {
		_, _, stops := rig.server.counts()
		return stops == 1
	}, waitTimeout, 5*time.Millisecond)
	p.mu.Lock()
	assert.True(t, p.released)
	p.mu.Unlock()
}

func TestResumeFromServerPosition(t *testing.T) {
	rig := newRig(t, time.Hour)
	item := videoItem("m1")
	item.UserState.PositionTicks = domain.SecondsToTicks(600)

	require.NoError(t, rig.ctrl.Play(context.Background(), item))

	assert.Equal(t, domain.SecondsToTicks(600), rig.resolver.lastRequest().StartTicks)
}

func TestResumeFallsBackToLocalStore(t *testing.T) {
	rig := newRig(t, time.Hour)
	require.NoError(t, rig.store.PutResume("m1", domain.SecondsToTicks(240)))

	require.NoError(t, rig.ctrl.Play(context.Background(), videoItem("m1")))

	assert.Equal(t, domain.SecondsToTicks(240), rig.resolver.lastRequest().StartTicks)
}

func TestStopPersistsResumePosition(t *testing.T) {
	rig := newRig(t, time.Hour)
	p := rig.startPlaying(t, videoItem("m1"))
	p.playAt(800)

	require.NoError(t, rig.ctrl.Stop())

	pos, ok := rig.store.GetResume("m1")
	require.True(t, ok)
	assert.Equal(t, domain.SecondsToTicks(800), pos)
}

func TestNewPlayReleasesPreviousPlayer(t *testing.T) {
	rig := newRig(t, time.Hour)
	first := rig.startPlaying(t, videoItem("m1"))

	rig.startPlaying(t, videoItem("m2"))

	first.mu.Lock()
	released := first.released
	first.mu.Unlock()
	assert.True(t, released)

	// The superseded session got its stop report
	require.Eventually(t, func() bool {
		_, _, stops := rig.server.counts()
		return stops == 1
	}, waitTimeout, 5*time.Millisecond)
	rig.server.mu.Lock()
	assert.Equal(t, "sess-m1", rig.server.stops[0].SessionID)
	rig.server.mu.Unlock()
}

func TestTextSubtitleSwitchIsSeamless(t *testing.T) {
	rig := newRig(t, time.Hour)
	rig.server.cues = []domain.SubtitleCue{{Text: "hello"}}
	rig.startPlaying(t, videoItem("m1"))
	before := rig.resolver.resolveCount()

	require.NoError(t, rig.ctrl.SetSubtitleStream(context.Background(), 2))

	// No re-resolution; the sidecar track loads in the background
	assert.Equal(t, before, rig.resolver.resolveCount())
	require.Eventually(t, func() bool {
		return len(rig.ctrl.Snapshot().SubtitleCues) == 1
	}, waitTimeout, 5*time.Millisecond)
}

func TestImageSubtitleSwitchReResolves(t *testing.T) {
	rig := newRig(t, time.Hour)
	p := rig.startPlaying(t, videoItem("m1"))
	p.playAt(300)
	before := rig.resolver.resolveCount()

	require.NoError(t, rig.ctrl.SetSubtitleStream(context.Background(), 3))

	require.Equal(t, before+1, rig.resolver.resolveCount())
	req := rig.resolver.lastRequest()
	assert.Equal(t, 3, req.SubtitleStreamIndex)
	// Playback resumes where it left off
	assert.Equal(t, domain.SecondsToTicks(300), req.StartTicks)
}

func TestSubtitlesOffClearsCues(t *testing.T) {
	rig := newRig(t, time.Hour)
	rig.server.cues = []domain.SubtitleCue{{Text: "hello"}}
	rig.startPlaying(t, videoItem("m1"))
	require.NoError(t, rig.ctrl.SetSubtitleStream(context.Background(), 2))
	require.Eventually(t, func() bool {
		return len(rig.ctrl.Snapshot().SubtitleCues) == 1
	}, waitTimeout, 5*time.Millisecond)
	before := rig.resolver.resolveCount()

	require.NoError(t, rig.ctrl.SetSubtitleStream(context.Background(), -1))

	assert.Empty(t, rig.ctrl.Snapshot().SubtitleCues)
	assert.Equal(t, before, rig.resolver.resolveCount())
}

func TestAudioSwitchReResolvesFromPosition(t *testing.T) {
	rig := newRig(t, time.Hour)
	p := rig.startPlaying(t, videoItem("m1"))
	p.playAt(150)
	before := rig.resolver.resolveCount()

	require.NoError(t, rig.ctrl.SetAudioStream(context.Background(), 1))

	require.Equal(t, before+1, rig.resolver.resolveCount())
	req := rig.resolver.lastRequest()
	assert.Equal(t, 1, req.AudioStreamIndex)
	assert.Equal(t, domain.SecondsToTicks(150), req.StartTicks)
}

func TestSetMaxBitrateReResolves(t *testing.T) {
	rig := newRig(t, time.Hour)
	p := rig.startPlaying(t, videoItem("m1"))
	p.playAt(60)

	require.NoError(t, rig.ctrl.SetMaxBitrate(context.Background(), 1_500_000))

	req := rig.resolver.lastRequest()
	assert.Equal(t, 1_500_000, req.BitrateOverride)
	assert.Equal(t, domain.SecondsToTicks(60), req.StartTicks)
}

func TestToggleFavoriteOptimisticWithRollback(t *testing.T) {
	rig := newRig(t, time.Hour)
	rig.server.favErr = errors.New("server rejected")
	rig.startPlaying(t, videoItem("m1"))

	require.NoError(t, rig.ctrl.ToggleFavorite(context.Background()))

	// Optimistic flip is visible immediately
	assert.True(t, rig.ctrl.Snapshot().Item.UserState.Favorite)

	// The rejected call rolls it back
	require.Eventually(t, func() bool {
		return !rig.ctrl.Snapshot().Item.UserState.Favorite
	}, waitTimeout, 5*time.Millisecond)
}

func TestToggleFavoriteSticksOnSuccess(t *testing.T) {
	rig := newRig(t, time.Hour)
	rig.startPlaying(t, videoItem("m1"))

	require.NoError(t, rig.ctrl.ToggleFavorite(context.Background()))

	require.Eventually(t, func() bool {
		rig.server.mu.Lock()
		defer rig.server.mu.Unlock()
		return len(rig.server.favorites) == 1 && rig.server.favorites[0]
	}, waitTimeout, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.True(t, rig.ctrl.Snapshot().Item.UserState.Favorite)
}

func TestResolveFailureReturnsToIdle(t *testing.T) {
	rig := newRig(t, time.Hour)
	rig.resolver.err = &domain.StreamResolutionError{ItemID: "m1", Reason: "no source"}

	err := rig.ctrl.Play(context.Background(), videoItem("m1"))

	require.Error(t, err)
	snap := rig.ctrl.Snapshot()
	assert.Equal(t, domain.StateIdle, snap.State)
	assert.Error(t, snap.Err)

	// No session was created, so nothing reports
	time.Sleep(30 * time.Millisecond)
	starts, _, stops := rig.server.counts()
	assert.Zero(t, starts)
	assert.Zero(t, stops)
}

func TestTransportWithoutSession(t *testing.T) {
	rig := newRig(t, time.Hour)

	assert.ErrorIs(t, rig.ctrl.Pause(), domain.ErrNoActiveSession)
	assert.ErrorIs(t, rig.ctrl.Seek(10), domain.ErrNoActiveSession)
	assert.ErrorIs(t, rig.ctrl.SetVolume(50), domain.ErrNoActiveSession)
	assert.ErrorIs(t, rig.ctrl.ToggleFavorite(context.Background()), domain.ErrNoActiveSession)
	assert.ErrorIs(t, rig.ctrl.SetAudioStream(context.Background(), 1), domain.ErrNoActiveSession)
}

func TestPlayEmptyQueue(t *testing.T) {
	rig := newRig(t, time.Hour)
	assert.ErrorIs(t, rig.ctrl.PlayItems(context.Background(), nil, 0), domain.ErrQueueEmpty)
}

func TestStopDuringLoadWindowLeavesNoOrphanPlayer(t *testing.T) {
	rig := newRig(t, time.Hour)
	var once sync.Once
	rig.factory.onSubscribe = func() {
		// Lands between session installation and the player load
		once.Do(func() { require.NoError(t, rig.ctrl.Stop()) })
	}

	require.NoError(t, rig.ctrl.Play(context.Background(), videoItem("m1")))

	// The stop released the player before it ever loaded; nothing may
	// resurrect it afterwards
	p := rig.factory.last()
	p.mu.Lock()
	loads, released := p.loads, p.released
	p.mu.Unlock()
	assert.Zero(t, loads)
	assert.True(t, released)
	assert.Equal(t, domain.StateIdle, rig.ctrl.Snapshot().State)

	time.Sleep(30 * time.Millisecond)
	starts, _, _ := rig.server.counts()
	assert.Zero(t, starts)
}

func TestPauseDuringBufferingStall(t *testing.T) {
	rig := newRig(t, time.Hour)
	p := rig.startPlaying(t, videoItem("m1"))

	p.emit(domain.EventBuffering{})
	require.True(t, rig.ctrl.Snapshot().Buffering)

	// A user pause while stalled still counts as a pause
	p.emit(domain.EventPaused{})

	snap := rig.ctrl.Snapshot()
	assert.Equal(t, domain.StatePaused, snap.State)
	assert.True(t, snap.Paused)
	assert.False(t, snap.Buffering)

	require.Eventually(t, func() bool {
		_, progress, _ := rig.server.counts()
		return progress == 1
	}, waitTimeout, 5*time.Millisecond)
	rig.server.mu.Lock()
	assert.True(t, rig.server.progress[0].Paused)
	rig.server.mu.Unlock()
}

func TestBufferingIsTransientNotFatal(t *testing.T) {
	rig := newRig(t, time.Hour)
	p := rig.startPlaying(t, videoItem("m1"))

	p.emit(domain.EventBuffering{})
	require.Eventually(t, func() bool {
		snap := rig.ctrl.Snapshot()
		return snap.Buffering && snap.State == domain.StatePaused
	}, waitTimeout, 5*time.Millisecond)
	assert.NoError(t, rig.ctrl.Snapshot().Err)

	// Time advancing again clears the stall
	p.playAt(12)
	require.Eventually(t, func() bool {
		snap := rig.ctrl.Snapshot()
		return !snap.Buffering && snap.State == domain.StatePlaying
	}, waitTimeout, 5*time.Millisecond)
}
