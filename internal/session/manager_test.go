package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tversen/flick/internal/domain"
)

func audioItem(id string) domain.MediaItem {
	return domain.MediaItem{
		ID:   id,
		Name: "Track " + id,
		Kind: domain.MediaKindAudio,
		Sources: []domain.MediaSource{{
			ID:        "src1",
			Container: "mp4",
			Streams: []domain.MediaStream{
				{Type: domain.StreamTypeAudio, Codec: "aac", Index: 0, Default: true},
			},
			SupportsDirectPlay: true,
		}},
	}
}

func TestManagerRoutesByCategory(t *testing.T) {
	video := newRig(t, time.Hour)
	audio := newRig(t, time.Hour)
	audio.ctrl.category = domain.CategoryAudio
	m := NewManager(map[domain.MediaCategory]*Controller{
		domain.CategoryVideo: video.ctrl,
		domain.CategoryAudio: audio.ctrl,
	})

	require.NoError(t, m.Play(context.Background(), videoItem("m1")))
	require.NoError(t, m.Play(context.Background(), audioItem("a1")))

	assert.Equal(t, 1, video.resolver.resolveCount())
	assert.Equal(t, 1, audio.resolver.resolveCount())
	assert.Equal(t, "m1", video.resolver.lastRequest().Item.ID)
	assert.Equal(t, "a1", audio.resolver.lastRequest().Item.ID)
}

func TestManagerCategoriesAreIndependent(t *testing.T) {
	video := newRig(t, time.Hour)
	audio := newRig(t, time.Hour)
	audio.ctrl.category = domain.CategoryAudio
	m := NewManager(map[domain.MediaCategory]*Controller{
		domain.CategoryVideo: video.ctrl,
		domain.CategoryAudio: audio.ctrl,
	})

	require.NoError(t, m.Play(context.Background(), audioItem("a1")))
	audioPlayer := audio.factory.last()

	// Starting video leaves the audio session alone
	require.NoError(t, m.Play(context.Background(), videoItem("m1")))

	audioPlayer.mu.Lock()
	released := audioPlayer.released
	audioPlayer.mu.Unlock()
	assert.False(t, released)
}

func TestManagerUnknownCategory(t *testing.T) {
	m := NewManager(map[domain.MediaCategory]*Controller{})

	err := m.Play(context.Background(), videoItem("m1"))
	assert.ErrorIs(t, err, domain.ErrNoActiveSession)

	err = m.PlayItems(context.Background(), nil, 0)
	assert.ErrorIs(t, err, domain.ErrQueueEmpty)
}

func TestManagerStopAll(t *testing.T) {
	video := newRig(t, time.Hour)
	m := NewManager(map[domain.MediaCategory]*Controller{
		domain.CategoryVideo: video.ctrl,
	})
	require.NoError(t, m.Play(context.Background(), videoItem("m1")))
	p := video.factory.last()

	m.StopAll()

	p.mu.Lock()
	released := p.released
	p.mu.Unlock()
	assert.True(t, released)
	assert.Equal(t, domain.StateIdle, video.ctrl.Snapshot().State)
}
