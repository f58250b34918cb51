package domain

// PlayerEvent is the typed event surface a player exposes to its controller.
// Exactly one concrete variant is delivered per notification.
type PlayerEvent interface {
	isPlayerEvent()
}

// EventStarted fires once when the player has loaded media and is ready
type EventStarted struct{}

// EventTimeUpdate fires on every playback clock advance
type EventTimeUpdate struct {
	PositionSeconds float64
}

// EventBuffering fires when playback stalls waiting for data
type EventBuffering struct{}

// EventResumed fires when playback continues after a pause or stall
type EventResumed struct{}

// EventPaused fires when the player enters the paused state
type EventPaused struct{}

// EventEnded fires once on natural end of media
type EventEnded struct{}

// EventVolumeChanged fires when volume or mute state changes
type EventVolumeChanged struct {
	Volume int
	Muted  bool
}

// EventError fires when the player hits an unrecoverable error
type EventError struct {
	Err error
}

func (EventStarted) isPlayerEvent()       {}
func (EventTimeUpdate) isPlayerEvent()    {}
func (EventBuffering) isPlayerEvent()     {}
func (EventResumed) isPlayerEvent()       {}
func (EventPaused) isPlayerEvent()        {}
func (EventEnded) isPlayerEvent()         {}
func (EventVolumeChanged) isPlayerEvent() {}
func (EventError) isPlayerEvent()         {}
