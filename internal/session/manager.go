package session

import (
	"context"

	"github.com/tversen/flick/internal/domain"
)

// Manager routes playback to the controller for the item's media
// category. Each category owns at most one active player; starting video
// playback leaves an audio session untouched and vice versa.
type Manager struct {
	controllers map[domain.MediaCategory]*Controller
}

// NewManager creates a manager over per-category controllers. Categories
// without a controller reject playback with ErrNoActiveSession.
func NewManager(controllers map[domain.MediaCategory]*Controller) *Manager {
	return &Manager{controllers: controllers}
}

// Controller returns the controller for a category
func (m *Manager) Controller(category domain.MediaCategory) (*Controller, bool) {
	c, ok := m.controllers[category]
	return c, ok
}

// Play starts an item on its category's controller
func (m *Manager) Play(ctx context.Context, item domain.MediaItem) error {
	c, ok := m.controllers[item.Kind.Category()]
	if !ok {
		return domain.ErrNoActiveSession
	}
	return c.Play(ctx, item)
}

// PlayItems starts a playlist on the first item's category controller
func (m *Manager) PlayItems(ctx context.Context, items []domain.MediaItem, startIndex int) error {
	if len(items) == 0 {
		return domain.ErrQueueEmpty
	}
	c, ok := m.controllers[items[0].Kind.Category()]
	if !ok {
		return domain.ErrNoActiveSession
	}
	return c.PlayItems(ctx, items, startIndex)
}

// StopAll stops every category's playback
func (m *Manager) StopAll() {
	for _, c := range m.controllers {
		_ = c.Stop()
	}
}
