package store

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tversen/flick/internal/domain"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	bucketSprites = []byte("trickplay_sprites")
	bucketResume  = []byte("resume_positions")
)

// PlaybackStore persists trickplay sprites and resume positions using BoltDB.
// Each server gets its own database under a hashed subdirectory so cached
// data never leaks across servers.
type PlaybackStore struct {
	db *bolt.DB
	mu sync.RWMutex // Protects memory cache

	// In-memory cache for hot-path sprite reads (promoted on access)
	cache map[string][]byte
}

// NewPlaybackStore opens (or creates) the store. An empty baseCacheDir
// yields a memory-only store with no persistence.
func NewPlaybackStore(baseCacheDir, serverURL string) (*PlaybackStore, error) {
	if baseCacheDir == "" {
		return &PlaybackStore{cache: make(map[string][]byte)}, nil
	}

	dir := baseCacheDir
	if serverURL != "" {
		dir = filepath.Join(baseCacheDir, hashServerURL(serverURL))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, "flick.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketSprites, bucketResume} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &PlaybackStore{db: db, cache: make(map[string][]byte)}, nil
}

func hashServerURL(serverURL string) string {
	normalized := strings.TrimRight(strings.ToLower(serverURL), "/")
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:6])
}

func (s *PlaybackStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SpriteKey builds the cache key for one trickplay sprite sheet
func SpriteKey(mediaSourceID string, width, spriteIndex int) string {
	return fmt.Sprintf("%s:%d:%d", mediaSourceID, width, spriteIndex)
}

// GetSprite returns a cached sprite sheet, if present
func (s *PlaybackStore) GetSprite(key string) ([]byte, bool) {
	cacheKey := string(bucketSprites) + ":" + key

	s.mu.RLock()
	if data, ok := s.cache[cacheKey]; ok {
		s.mu.RUnlock()
		return data, true
	}
	s.mu.RUnlock()

	if s.db == nil {
		return nil, false
	}

	var data []byte
	s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketSprites).Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if data == nil {
		return nil, false
	}

	// Promote to memory cache
	s.mu.Lock()
	s.cache[cacheKey] = data
	s.mu.Unlock()

	return data, true
}

// PutSprite stores a sprite sheet
func (s *PlaybackStore) PutSprite(key string, data []byte) error {
	cacheKey := string(bucketSprites) + ":" + key

	s.mu.Lock()
	s.cache[cacheKey] = data
	s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSprites).Put([]byte(key), data)
	})
}

// GetResume returns the locally saved resume position for an item
func (s *PlaybackStore) GetResume(itemID string) (domain.Ticks, bool) {
	if s.db == nil {
		return 0, false
	}
	var ticks domain.Ticks
	var found bool
	s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketResume).Get([]byte(itemID)); len(v) == 8 {
			ticks = domain.Ticks(binary.BigEndian.Uint64(v))
			found = true
		}
		return nil
	})
	return ticks, found
}

// PutResume saves the resume position for an item
func (s *PlaybackStore) PutResume(itemID string, position domain.Ticks) error {
	if s.db == nil {
		return nil
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(position))
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketResume).Put([]byte(itemID), buf[:])
	})
}

// DeleteResume clears the saved position, typically after an item is
// watched to the end
func (s *PlaybackStore) DeleteResume(itemID string) error {
	if s.db == nil {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketResume).Delete([]byte(itemID))
	})
}
