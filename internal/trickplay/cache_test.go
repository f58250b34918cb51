package trickplay

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tversen/flick/internal/domain"
	"github.com/tversen/flick/internal/log"
)

type fakeFetcher struct {
	mu      sync.Mutex
	configs []domain.TrickplayConfig
	fetches int32
	block   chan struct{} // When non-nil, sprite fetches wait on it
	err     error
}

func (f *fakeFetcher) GetTrickplayConfigs(ctx context.Context, itemID string) ([]domain.TrickplayConfig, error) {
	return f.configs, f.err
}

func (f *fakeFetcher) GetTrickplaySprite(ctx context.Context, itemID, mediaSourceID string, width, spriteIndex int) ([]byte, error) {
	if f.block != nil {
		<-f.block
	}
	atomic.AddInt32(&f.fetches, 1)
	return []byte(fmt.Sprintf("sprite-%s-%d-%d", mediaSourceID, width, spriteIndex)), nil
}

type fakeSpriteStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeSpriteStore() *fakeSpriteStore {
	return &fakeSpriteStore{data: make(map[string][]byte)}
}

func (s *fakeSpriteStore) GetSprite(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.data[key]
	return data, ok
}

func (s *fakeSpriteStore) PutSprite(key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = data
	return nil
}

func testConfig() domain.TrickplayConfig {
	return domain.TrickplayConfig{
		MediaSourceID:  "src1",
		Width:          320,
		Height:         180,
		TileWidth:      10,
		TileHeight:     10,
		Interval:       1000,
		ThumbnailCount: 500,
	}
}

func preparedCache(t *testing.T, fetcher *fakeFetcher, store *fakeSpriteStore) *Cache {
	t.Helper()
	var c *Cache
	if store != nil {
		c = NewCache(fetcher, store, log.NullLogger())
	} else {
		c = NewCache(fetcher, nil, log.NullLogger())
	}
	require.NoError(t, c.Prepare(context.Background(), "item1", "src1", 1920))
	return c
}

func TestTileAddressing(t *testing.T) {
	fetcher := &fakeFetcher{configs: []domain.TrickplayConfig{testConfig()}}
	c := preparedCache(t, fetcher, nil)

	// 1s interval, 10x10 grid: 125s lands on frame 125, sprite 1,
	// tile 25 within it, column 5 row 2
	tile, err := c.TileAt(context.Background(), 125)
	require.NoError(t, err)

	assert.Equal(t, 1, tile.SpriteIndex)
	assert.Equal(t, 5*320, tile.X)
	assert.Equal(t, 2*180, tile.Y)
	assert.Equal(t, 320, tile.Width)
	assert.Equal(t, 180, tile.Height)
	assert.Equal(t, []byte("sprite-src1-320-1"), tile.Sprite)
}

func TestTileAddressingFirstSprite(t *testing.T) {
	fetcher := &fakeFetcher{configs: []domain.TrickplayConfig{testConfig()}}
	c := preparedCache(t, fetcher, nil)

	tile, err := c.TileAt(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, tile.SpriteIndex)
	assert.Equal(t, 0, tile.X)
	assert.Equal(t, 0, tile.Y)

	// 99s is the last tile of sprite 0; 100s rolls over
	tile, err = c.TileAt(context.Background(), 99)
	require.NoError(t, err)
	assert.Equal(t, 0, tile.SpriteIndex)
	assert.Equal(t, 9*320, tile.X)
	assert.Equal(t, 9*180, tile.Y)

	tile, err = c.TileAt(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, tile.SpriteIndex)
	assert.Equal(t, 0, tile.X)
	assert.Equal(t, 0, tile.Y)
}

func TestSpriteMemoization(t *testing.T) {
	fetcher := &fakeFetcher{configs: []domain.TrickplayConfig{testConfig()}}
	c := preparedCache(t, fetcher, nil)

	for i := 0; i < 5; i++ {
		_, err := c.TileAt(context.Background(), float64(10*i))
		require.NoError(t, err)
	}

	// All five positions live on sprite 0; one fetch serves them all
	assert.Equal(t, int32(1), atomic.LoadInt32(&fetcher.fetches))
}

func TestConcurrentTileRequestsShareOneFetch(t *testing.T) {
	fetcher := &fakeFetcher{
		configs: []domain.TrickplayConfig{testConfig()},
		block:   make(chan struct{}),
	}
	c := preparedCache(t, fetcher, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.TileAt(context.Background(), 5)
			assert.NoError(t, err)
		}()
	}
	close(fetcher.block)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&fetcher.fetches))
}

func TestStoreWriteThrough(t *testing.T) {
	fetcher := &fakeFetcher{configs: []domain.TrickplayConfig{testConfig()}}
	store := newFakeSpriteStore()
	c := preparedCache(t, fetcher, store)

	_, err := c.TileAt(context.Background(), 125)
	require.NoError(t, err)

	// Fetched sprite landed in the persistent store
	data, ok := store.GetSprite("src1:320:1")
	require.True(t, ok)
	assert.Equal(t, []byte("sprite-src1-320-1"), data)

	// A fresh cache over the same store needs no network fetch
	c2 := preparedCache(t, fetcher, store)
	before := atomic.LoadInt32(&fetcher.fetches)
	_, err = c2.TileAt(context.Background(), 125)
	require.NoError(t, err)
	assert.Equal(t, before, atomic.LoadInt32(&fetcher.fetches))
}

func TestReleaseInvalidates(t *testing.T) {
	fetcher := &fakeFetcher{configs: []domain.TrickplayConfig{testConfig()}}
	c := preparedCache(t, fetcher, nil)

	c.Release()

	_, err := c.TileAt(context.Background(), 10)
	assert.ErrorIs(t, err, ErrNoTrickplay)
	_, ok := c.Config()
	assert.False(t, ok)
}

func TestPrepareWithoutSprites(t *testing.T) {
	fetcher := &fakeFetcher{}
	c := NewCache(fetcher, nil, log.NullLogger())

	err := c.Prepare(context.Background(), "item1", "src1", 1920)
	assert.ErrorIs(t, err, ErrNoTrickplay)
}

func TestPickConfigPrefersLargestUnderCeiling(t *testing.T) {
	configs := []domain.TrickplayConfig{
		{MediaSourceID: "src1", Width: 192, TileWidth: 10, TileHeight: 10, Interval: 1000},
		{MediaSourceID: "src1", Width: 320, TileWidth: 10, TileHeight: 10, Interval: 1000},
		{MediaSourceID: "src1", Width: 480, TileWidth: 10, TileHeight: 10, Interval: 1000},
		{MediaSourceID: "other", Width: 400, TileWidth: 10, TileHeight: 10, Interval: 1000},
	}

	// Target 384px (1920/5), ceiling 480: the 480 sheet wins, the other
	// source's sheets are never considered
	cfg, ok := pickConfig(configs, "src1", 1920)
	require.True(t, ok)
	assert.Equal(t, 480, cfg.Width)

	// Target 128, ceiling 160: only 192+ available, least overshoot wins
	cfg, ok = pickConfig(configs, "src1", 640)
	require.True(t, ok)
	assert.Equal(t, 192, cfg.Width)
}

func TestPickConfigSkipsDegenerateConfigs(t *testing.T) {
	configs := []domain.TrickplayConfig{
		// An interval or grid of zero would address garbage tile indexes
		{MediaSourceID: "src1", Width: 480, TileWidth: 10, TileHeight: 10, Interval: 0},
		{MediaSourceID: "src1", Width: 400, TileWidth: 0, TileHeight: 10, Interval: 1000},
		{MediaSourceID: "src1", Width: 320, TileWidth: 10, TileHeight: 10, Interval: 1000},
	}

	cfg, ok := pickConfig(configs, "src1", 1920)
	require.True(t, ok)
	assert.Equal(t, 320, cfg.Width)

	_, ok = pickConfig(configs[:2], "src1", 1920)
	assert.False(t, ok)
}
