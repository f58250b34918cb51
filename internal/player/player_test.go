package player

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tversen/flick/internal/domain"
	"github.com/tversen/flick/internal/log"
)

// fakeEngine records calls and lets tests drive events by hand
type fakeEngine struct {
	mu        sync.Mutex
	kind      EngineKind
	playlists bool
	sink      func(domain.PlayerEvent)

	loads    []LoadOptions
	loadURLs []string
	loadErr  error
	seeks    []float64
	position float64
	released bool
}

func (f *fakeEngine) Kind() EngineKind        { return f.kind }
func (f *fakeEngine) SupportsPlaylists() bool { return f.playlists }

func (f *fakeEngine) Subscribe(fn func(domain.PlayerEvent)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sink = fn
}

func (f *fakeEngine) Load(ctx context.Context, url string, opts LoadOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads = append(f.loads, opts)
	f.loadURLs = append(f.loadURLs, url)
	return f.loadErr
}

func (f *fakeEngine) Play()             {}
func (f *fakeEngine) Pause()            {}
func (f *fakeEngine) SetVolume(v int)   {}
func (f *fakeEngine) SetMuted(m bool)   {}
func (f *fakeEngine) Position() float64 { return f.position }
func (f *fakeEngine) Release()          { f.released = true }

func (f *fakeEngine) Seek(secs float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeks = append(f.seeks, secs)
}

func (f *fakeEngine) emit(ev domain.PlayerEvent) {
	f.mu.Lock()
	sink := f.sink
	f.mu.Unlock()
	sink(ev)
}

func (f *fakeEngine) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.loads)
}

// eventRecorder collects forwarded events
type eventRecorder struct {
	mu     sync.Mutex
	events []domain.PlayerEvent
}

func (r *eventRecorder) record(ev domain.PlayerEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []error
	for _, ev := range r.events {
		if e, ok := ev.(domain.EventError); ok {
			out = append(out, e.Err)
		}
	}
	return out
}

func vodStream() domain.ResolvedStream {
	return domain.ResolvedStream{
		URL:      "http://server/Videos/item1/stream.mp4?Static=true",
		MimeType: "video/mp4",
	}
}

func hlsStream() domain.ResolvedStream {
	return domain.ResolvedStream{
		URL:      "http://server/Videos/item1/main.m3u8?x=1",
		MimeType: "application/x-mpegURL",
	}
}

func TestChooseEngineProgressiveForMediaFile(t *testing.T) {
	prog := &fakeEngine{kind: EngineProgressive}
	seg := &fakeEngine{kind: EngineSegmented, playlists: true}
	p := New(domain.CategoryVideo, prog, seg, log.NullLogger())

	require.NoError(t, p.Load(context.Background(), vodStream()))

	assert.Equal(t, 1, prog.loadCount())
	assert.Equal(t, 0, seg.loadCount())
}

func TestChooseEngineSegmentedForPlaylist(t *testing.T) {
	prog := &fakeEngine{kind: EngineProgressive}
	seg := &fakeEngine{kind: EngineSegmented, playlists: true}
	p := New(domain.CategoryVideo, prog, seg, log.NullLogger())

	require.NoError(t, p.Load(context.Background(), hlsStream()))

	assert.Equal(t, 0, prog.loadCount())
	assert.Equal(t, 1, seg.loadCount())
}

func TestPlaylistOnProgressiveWithNativeSupport(t *testing.T) {
	prog := &fakeEngine{kind: EngineProgressive, playlists: true}
	p := New(domain.CategoryVideo, prog, nil, log.NullLogger())

	require.NoError(t, p.Load(context.Background(), hlsStream()))
	assert.Equal(t, 1, prog.loadCount())
}

func TestBufferPolicySelection(t *testing.T) {
	prog := &fakeEngine{kind: EngineProgressive, playlists: true}
	p := New(domain.CategoryVideo, prog, nil, log.NullLogger())

	live := hlsStream()
	live.Live = true
	require.NoError(t, p.Load(context.Background(), live))
	assert.Equal(t, livePolicy, prog.loads[0].Buffer)

	require.NoError(t, p.Load(context.Background(), vodStream()))
	assert.Equal(t, onDemandPolicy, prog.loads[1].Buffer)
}

func TestPendingSeekLatestWins(t *testing.T) {
	prog := &fakeEngine{kind: EngineProgressive, playlists: true}
	p := New(domain.CategoryVideo, prog, nil, log.NullLogger())
	rec := &eventRecorder{}
	p.Subscribe(rec.record)

	require.NoError(t, p.Load(context.Background(), vodStream()))

	// Seeks before readiness are held, only the latest survives
	p.Seek(10)
	p.Seek(25)
	p.Seek(42)
	assert.Empty(t, prog.seeks)

	prog.emit(domain.EventStarted{})

	require.Len(t, prog.seeks, 1)
	assert.Equal(t, 42.0, prog.seeks[0])
}

func TestSeekAfterReadyGoesStraightThrough(t *testing.T) {
	prog := &fakeEngine{kind: EngineProgressive, playlists: true}
	p := New(domain.CategoryVideo, prog, nil, log.NullLogger())

	require.NoError(t, p.Load(context.Background(), vodStream()))
	prog.emit(domain.EventStarted{})

	p.Seek(99)
	require.Len(t, prog.seeks, 1)
	assert.Equal(t, 99.0, prog.seeks[0])
}

func TestNetworkErrorRetriesFromPosition(t *testing.T) {
	prog := &fakeEngine{kind: EngineProgressive, playlists: true}
	p := New(domain.CategoryVideo, prog, nil, log.NullLogger())
	rec := &eventRecorder{}
	p.Subscribe(rec.record)

	require.NoError(t, p.Load(context.Background(), vodStream()))
	prog.emit(domain.EventStarted{})
	prog.emit(domain.EventTimeUpdate{PositionSeconds: 120})

	prog.emit(domain.EventError{Err: &EngineError{Kind: ErrorNetwork, Err: errors.New("timeout")}})

	// Reloaded once, resuming at the last played position
	require.Equal(t, 2, prog.loadCount())
	assert.Equal(t, 120.0, prog.loads[1].StartSeconds)
	assert.Empty(t, rec.errors())
}

func TestNetworkErrorBudgetExhausts(t *testing.T) {
	prog := &fakeEngine{kind: EngineProgressive, playlists: true}
	p := New(domain.CategoryVideo, prog, nil, log.NullLogger())
	rec := &eventRecorder{}
	p.Subscribe(rec.record)

	require.NoError(t, p.Load(context.Background(), vodStream()))
	prog.emit(domain.EventStarted{})

	for i := 0; i < maxNetworkRetries; i++ {
		prog.emit(domain.EventError{Err: &EngineError{Kind: ErrorNetwork, Err: errors.New("timeout")}})
	}
	assert.Empty(t, rec.errors())

	// The fourth consecutive failure is fatal
	prog.emit(domain.EventError{Err: &EngineError{Kind: ErrorNetwork, Err: errors.New("timeout")}})
	require.Len(t, rec.errors(), 1)
	assert.Equal(t, 1+maxNetworkRetries, prog.loadCount())
}

func TestTimeUpdateResetsNetworkBudget(t *testing.T) {
	prog := &fakeEngine{kind: EngineProgressive, playlists: true}
	p := New(domain.CategoryVideo, prog, nil, log.NullLogger())
	rec := &eventRecorder{}
	p.Subscribe(rec.record)

	require.NoError(t, p.Load(context.Background(), vodStream()))
	prog.emit(domain.EventStarted{})

	for i := 0; i < maxNetworkRetries; i++ {
		prog.emit(domain.EventError{Err: &EngineError{Kind: ErrorNetwork, Err: errors.New("timeout")}})
	}
	// Progress clears the retry budget
	prog.emit(domain.EventTimeUpdate{PositionSeconds: 30})
	prog.emit(domain.EventError{Err: &EngineError{Kind: ErrorNetwork, Err: errors.New("timeout")}})

	assert.Empty(t, rec.errors())
}

func TestDecodeErrorRecoversOnce(t *testing.T) {
	prog := &fakeEngine{kind: EngineProgressive, playlists: true}
	p := New(domain.CategoryVideo, prog, nil, log.NullLogger())
	rec := &eventRecorder{}
	p.Subscribe(rec.record)

	require.NoError(t, p.Load(context.Background(), vodStream()))
	prog.emit(domain.EventStarted{})
	prog.emit(domain.EventTimeUpdate{PositionSeconds: 55})

	prog.emit(domain.EventError{Err: &EngineError{Kind: ErrorDecode, Err: errors.New("bad frame")}})
	assert.Empty(t, rec.errors())
	assert.Equal(t, 2, prog.loadCount())
	assert.Equal(t, 55.0, prog.loads[1].StartSeconds)

	// A second decode failure in the same stream is fatal
	prog.emit(domain.EventError{Err: &EngineError{Kind: ErrorDecode, Err: errors.New("bad frame")}})
	errs := rec.errors()
	require.Len(t, errs, 1)

	var decodeErr *domain.MediaDecodeError
	assert.ErrorAs(t, errs[0], &decodeErr)
}

func TestUnsupportedErrorIsImmediatelyFatal(t *testing.T) {
	prog := &fakeEngine{kind: EngineProgressive, playlists: true}
	p := New(domain.CategoryVideo, prog, nil, log.NullLogger())
	rec := &eventRecorder{}
	p.Subscribe(rec.record)

	require.NoError(t, p.Load(context.Background(), vodStream()))
	prog.emit(domain.EventStarted{})

	prog.emit(domain.EventError{Err: &EngineError{Kind: ErrorUnsupported, Err: errors.New("no codec")}})

	errs := rec.errors()
	require.Len(t, errs, 1)
	var decodeErr *domain.MediaDecodeError
	assert.ErrorAs(t, errs[0], &decodeErr)
	assert.Equal(t, 1, prog.loadCount())
}

func TestLoadResetsRecoveryBudgets(t *testing.T) {
	prog := &fakeEngine{kind: EngineProgressive, playlists: true}
	p := New(domain.CategoryVideo, prog, nil, log.NullLogger())
	rec := &eventRecorder{}
	p.Subscribe(rec.record)

	require.NoError(t, p.Load(context.Background(), vodStream()))
	prog.emit(domain.EventStarted{})
	prog.emit(domain.EventError{Err: &EngineError{Kind: ErrorDecode, Err: errors.New("bad frame")}})

	// A fresh load starts with a fresh decode recovery budget
	require.NoError(t, p.Load(context.Background(), vodStream()))
	prog.emit(domain.EventStarted{})
	prog.emit(domain.EventError{Err: &EngineError{Kind: ErrorDecode, Err: errors.New("bad frame")}})

	assert.Empty(t, rec.errors())
}

func TestReleaseIdempotentAndSilencesEvents(t *testing.T) {
	prog := &fakeEngine{kind: EngineProgressive, playlists: true}
	p := New(domain.CategoryVideo, prog, nil, log.NullLogger())
	rec := &eventRecorder{}
	p.Subscribe(rec.record)

	require.NoError(t, p.Load(context.Background(), vodStream()))
	p.Release()
	p.Release()

	assert.True(t, prog.released)

	// Events from the released engine are dropped
	prog.emit(domain.EventTimeUpdate{PositionSeconds: 10})
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Empty(t, rec.events)
}

func TestLoadAfterReleaseIsRejected(t *testing.T) {
	prog := &fakeEngine{kind: EngineProgressive, playlists: true}
	p := New(domain.CategoryVideo, prog, nil, log.NullLogger())

	require.NoError(t, p.Load(context.Background(), vodStream()))
	p.Release()

	// Release is terminal; a racing Load must not revive the engine
	err := p.Load(context.Background(), vodStream())
	assert.ErrorIs(t, err, domain.ErrPlayerReleased)
	assert.Equal(t, 1, prog.loadCount())
	assert.True(t, prog.released)
}

func TestPositionFallsBackToLastKnown(t *testing.T) {
	prog := &fakeEngine{kind: EngineProgressive, playlists: true, position: 77}
	p := New(domain.CategoryVideo, prog, nil, log.NullLogger())

	stream := vodStream()
	stream.StartTicks = domain.SecondsToTicks(33)
	require.NoError(t, p.Load(context.Background(), stream))

	// Not ready yet: report the start offset, not the engine position
	assert.Equal(t, 33.0, p.Position())

	prog.emit(domain.EventStarted{})
	assert.Equal(t, 77.0, p.Position())
}
