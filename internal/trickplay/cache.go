// Package trickplay fetches and memoizes seek-preview sprite sheets and
// maps playback positions to tile rectangles within them.
package trickplay

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/tversen/flick/internal/domain"
	"github.com/tversen/flick/internal/store"
	"golang.org/x/sync/singleflight"
)

// ErrNoTrickplay indicates the active media source has no sprite sheets
var ErrNoTrickplay = errors.New("no trickplay data for media source")

// ErrStale indicates the item changed while a fetch was in flight; the
// result was discarded rather than applied.
var ErrStale = errors.New("trickplay fetch superseded by item change")

// fetcher is the server-side half of trickplay lookup
type fetcher interface {
	GetTrickplayConfigs(ctx context.Context, itemID string) ([]domain.TrickplayConfig, error)
	GetTrickplaySprite(ctx context.Context, itemID, mediaSourceID string, width, spriteIndex int) ([]byte, error)
}

// spriteStore is the optional persistent sprite cache layer
type spriteStore interface {
	GetSprite(key string) ([]byte, bool)
	PutSprite(key string, data []byte) error
}

// Tile addresses one thumbnail within a fetched sprite sheet
type Tile struct {
	Sprite      []byte // Sprite sheet image bytes
	SpriteIndex int
	X           int // Tile rect within the sprite
	Y           int
	Width       int
	Height      int
}

// Cache memoizes sprite sheets for the active item. Concurrent requests
// for the same sprite index collapse into one fetch; an item change
// invalidates everything, including fetches still in flight.
type Cache struct {
	client fetcher
	store  spriteStore // May be nil
	logger *slog.Logger

	mu         sync.Mutex
	generation uint64
	itemID     string
	config     domain.TrickplayConfig
	haveConfig bool
	sprites    map[int][]byte

	group singleflight.Group
}

// NewCache creates a trickplay cache. store may be nil for memory-only
// operation.
func NewCache(client fetcher, store spriteStore, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		client:  client,
		store:   store,
		logger:  logger,
		sprites: make(map[int][]byte),
	}
}

// Prepare selects the sprite resolution for an item/source and resets all
// cached state. Returns ErrNoTrickplay when the source has no sprites.
func (c *Cache) Prepare(ctx context.Context, itemID, mediaSourceID string, devicePixelWidth int) error {
	configs, err := c.client.GetTrickplayConfigs(ctx, itemID)
	if err != nil {
		return err
	}

	config, ok := pickConfig(configs, mediaSourceID, devicePixelWidth)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.itemID = itemID
	c.sprites = make(map[int][]byte)
	c.config = config
	c.haveConfig = ok

	if !ok {
		return ErrNoTrickplay
	}
	c.logger.Debug("trickplay prepared",
		"item", itemID, "width", config.Width, "interval", config.Interval)
	return nil
}

// pickConfig chooses the sprite width closest to ~20% of the effective
// device pixel width without excessive overshoot
func pickConfig(configs []domain.TrickplayConfig, mediaSourceID string, devicePixelWidth int) (domain.TrickplayConfig, bool) {
	target := devicePixelWidth / 5
	// Anything more than 25% past the target buys nothing but bandwidth
	ceiling := target + target/4

	var best domain.TrickplayConfig
	found := false
	for _, cfg := range configs {
		if cfg.MediaSourceID != mediaSourceID {
			continue
		}
		if cfg.Interval <= 0 || cfg.TileWidth <= 0 || cfg.TileHeight <= 0 {
			// A degenerate server config would address garbage tiles
			continue
		}
		if !found {
			best, found = cfg, true
			continue
		}
		bestOk := best.Width <= ceiling
		cfgOk := cfg.Width <= ceiling
		switch {
		case cfgOk && !bestOk:
			best = cfg
		case cfgOk && bestOk && cfg.Width > best.Width:
			// Largest width that stays under the ceiling
			best = cfg
		case !cfgOk && !bestOk && cfg.Width < best.Width:
			// Everything overshoots; take the least excessive
			best = cfg
		}
	}
	return best, found
}

// Config returns the selected sprite configuration
func (c *Cache) Config() (domain.TrickplayConfig, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config, c.haveConfig
}

// TileAt resolves the preview tile for a seek position. The sprite sheet
// is fetched at most once per index; concurrent callers share one fetch.
func (c *Cache) TileAt(ctx context.Context, seekSeconds float64) (Tile, error) {
	c.mu.Lock()
	if !c.haveConfig {
		c.mu.Unlock()
		return Tile{}, ErrNoTrickplay
	}
	cfg := c.config
	itemID := c.itemID
	gen := c.generation
	c.mu.Unlock()

	addr := addressOf(cfg, seekSeconds)

	sprite, err := c.sprite(ctx, itemID, cfg, gen, addr.SpriteIndex)
	if err != nil {
		return Tile{}, err
	}

	addr.Sprite = sprite
	return addr, nil
}

// addressOf maps a seek position to its tile coordinates
func addressOf(cfg domain.TrickplayConfig, seekSeconds float64) Tile {
	frameIndex := int(seekSeconds * 1000 / float64(cfg.Interval))
	tilesPerSprite := cfg.TileWidth * cfg.TileHeight
	spriteIndex := frameIndex / tilesPerSprite
	within := frameIndex - spriteIndex*tilesPerSprite
	column := within % cfg.TileWidth
	row := within / cfg.TileWidth

	return Tile{
		SpriteIndex: spriteIndex,
		X:           column * cfg.Width,
		Y:           row * cfg.Height,
		Width:       cfg.Width,
		Height:      cfg.Height,
	}
}

// sprite returns the sprite sheet for an index, consulting the memo, the
// persistent store, and finally the server
func (c *Cache) sprite(ctx context.Context, itemID string, cfg domain.TrickplayConfig, gen uint64, spriteIndex int) ([]byte, error) {
	c.mu.Lock()
	if data, ok := c.sprites[spriteIndex]; ok {
		c.mu.Unlock()
		return data, nil
	}
	c.mu.Unlock()

	key := store.SpriteKey(cfg.MediaSourceID, cfg.Width, spriteIndex)

	data, err, _ := c.group.Do(key, func() (any, error) {
		if c.store != nil {
			if cached, ok := c.store.GetSprite(key); ok {
				return cached, nil
			}
		}
		fetched, err := c.client.GetTrickplaySprite(ctx, itemID, cfg.MediaSourceID, cfg.Width, spriteIndex)
		if err != nil {
			return nil, err
		}
		if c.store != nil {
			if err := c.store.PutSprite(key, fetched); err != nil {
				c.logger.Warn("failed to persist sprite", "key", key, "error", err)
			}
		}
		return fetched, nil
	})
	if err != nil {
		return nil, err
	}

	sprite := data.([]byte)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		// Item changed mid-fetch; do not apply the stale result
		return nil, ErrStale
	}
	c.sprites[spriteIndex] = sprite
	return sprite, nil
}

// Release drops all cached sprites and invalidates in-flight fetches.
// Call on session or item change.
func (c *Cache) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.itemID = ""
	c.haveConfig = false
	c.sprites = make(map[int][]byte)
}
