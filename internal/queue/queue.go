// Package queue implements the ordered, mutable play queue. Queue items
// carry a synthetic id distinct from the media id so duplicates of the same
// item are always unambiguous; synthetic ids are never reused within a
// queue's lifetime.
package queue

import (
	"math/rand"
	"sync"

	"github.com/tversen/flick/internal/domain"
)

// RepeatMode controls queue advancement past either end
type RepeatMode int

const (
	RepeatNone RepeatMode = iota
	RepeatOne
	RepeatAll
)

// String returns a human-readable representation of the repeat mode
func (m RepeatMode) String() string {
	switch m {
	case RepeatOne:
		return "RepeatOne"
	case RepeatAll:
		return "RepeatAll"
	default:
		return "RepeatNone"
	}
}

// Item is one queued entry: the media item plus its synthetic queue id
type Item struct {
	QueueItemID int64
	Media       domain.MediaItem
}

// ItemInfo locates a queue item for the caller
type ItemInfo struct {
	Item  Item
	Index int
}

// Queue is the play queue. All operations are synchronous and safe for
// concurrent use.
type Queue struct {
	mu            sync.Mutex
	items         []Item
	current       int
	nextID        int64
	repeat        RepeatMode
	shuffled      bool
	originalOrder []Item // Snapshot taken when shuffle was applied
	rng           *rand.Rand
}

// New creates an empty queue
func New() *Queue {
	return &Queue{current: -1, rng: rand.New(rand.NewSource(rand.Int63()))}
}

// newItem assigns the next synthetic id. Caller must hold q.mu.
func (q *Queue) newItem(media domain.MediaItem) Item {
	q.nextID++
	return Item{QueueItemID: q.nextID, Media: media}
}

// SetPlaylist replaces the queue contents, resetting position, repeat mode
// and shuffle state. Every item gets a fresh synthetic id.
func (q *Queue) SetPlaylist(items []domain.MediaItem) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = q.items[:0]
	for _, media := range items {
		q.items = append(q.items, q.newItem(media))
	}
	q.repeat = RepeatNone
	q.shuffled = false
	q.originalOrder = nil
	if len(q.items) > 0 {
		q.current = 0
	} else {
		q.current = -1
	}
}

// Append adds items to the end of the queue
func (q *Queue) Append(items []domain.MediaItem) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, media := range items {
		q.items = append(q.items, q.newItem(media))
	}
	if q.current < 0 && len(q.items) > 0 {
		q.current = 0
	}
}

// QueueNext inserts items directly after the current item
func (q *Queue) QueueNext(items []domain.MediaItem) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(items) == 0 {
		return
	}

	insert := make([]Item, 0, len(items))
	for _, media := range items {
		insert = append(insert, q.newItem(media))
	}

	at := q.current + 1
	if at > len(q.items) {
		at = len(q.items)
	}
	q.items = append(q.items[:at], append(insert, q.items[at:]...)...)
	if q.current < 0 {
		q.current = 0
	}
}

// Remove deletes items by queue-item id. If every remaining item would be
// removed it reports emptied=true and leaves the queue untouched so the
// caller can stop playback first instead of holding a dangling pointer.
// Removing the current item advances current to the next survivor.
func (q *Queue) Remove(queueItemIDs []int64) (emptied bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	doomed := make(map[int64]bool, len(queueItemIDs))
	for _, id := range queueItemIDs {
		doomed[id] = true
	}

	survivors := 0
	for _, it := range q.items {
		if !doomed[it.QueueItemID] {
			survivors++
		}
	}
	if survivors == 0 && len(q.items) > 0 {
		return true
	}

	var currentID int64 = -1
	if q.current >= 0 && q.current < len(q.items) {
		currentID = q.items[q.current].QueueItemID
	}

	// If the current item is doomed, current moves to the next surviving
	// item at or after its position.
	var successorID int64 = -1
	if currentID >= 0 && doomed[currentID] {
		for i := q.current + 1; i < len(q.items); i++ {
			if !doomed[q.items[i].QueueItemID] {
				successorID = q.items[i].QueueItemID
				break
			}
		}
		if successorID < 0 {
			for i := q.current - 1; i >= 0; i-- {
				if !doomed[q.items[i].QueueItemID] {
					successorID = q.items[i].QueueItemID
					break
				}
			}
		}
	}

	kept := q.items[:0]
	for _, it := range q.items {
		if !doomed[it.QueueItemID] {
			kept = append(kept, it)
		}
	}
	q.items = kept

	switch {
	case currentID >= 0 && !doomed[currentID]:
		q.current = q.indexOf(currentID)
	case successorID >= 0:
		q.current = q.indexOf(successorID)
	default:
		q.current = -1
	}

	q.pruneOriginalOrder(doomed)
	return false
}

// Move repositions a queue item. Returns ErrQueueIndexOutOfRange for an
// invalid target index and ErrItemNotFound for an unknown id.
func (q *Queue) Move(queueItemID int64, newIndex int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if newIndex < 0 || newIndex >= len(q.items) {
		return domain.ErrQueueIndexOutOfRange
	}
	from := q.indexOf(queueItemID)
	if from < 0 {
		return domain.ErrItemNotFound
	}

	var currentID int64 = -1
	if q.current >= 0 {
		currentID = q.items[q.current].QueueItemID
	}

	moved := q.items[from]
	q.items = append(q.items[:from], q.items[from+1:]...)
	q.items = append(q.items[:newIndex], append([]Item{moved}, q.items[newIndex:]...)...)

	if currentID >= 0 {
		q.current = q.indexOf(currentID)
	}
	return nil
}

// Current returns the current item, if any
func (q *Queue) Current() (ItemInfo, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.current < 0 || q.current >= len(q.items) {
		return ItemInfo{}, false
	}
	return ItemInfo{Item: q.items[q.current], Index: q.current}, true
}

// Items returns a copy of the queue contents in order
func (q *Queue) Items() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Item, len(q.items))
	copy(out, q.items)
	return out
}

// Len returns the number of queued items
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// SetRepeatMode sets the repeat mode
func (q *Queue) SetRepeatMode(mode RepeatMode) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.repeat = mode
}

// RepeatMode returns the current repeat mode
func (q *Queue) RepeatMode() RepeatMode {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.repeat
}

// SetCurrentIndex jumps the current pointer to an explicit index
func (q *Queue) SetCurrentIndex(index int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if index < 0 || index >= len(q.items) {
		return domain.ErrQueueIndexOutOfRange
	}
	q.current = index
	return nil
}

// NextItemInfo returns the item that would play after the current one,
// honoring the repeat mode: RepeatOne repeats the current index, RepeatAll
// wraps past the end to 0, RepeatNone reports none past the end.
func (q *Queue) NextItemInfo() (ItemInfo, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 || q.current < 0 {
		return ItemInfo{}, false
	}

	switch q.repeat {
	case RepeatOne:
		return ItemInfo{Item: q.items[q.current], Index: q.current}, true
	case RepeatAll:
		next := (q.current + 1) % len(q.items)
		return ItemInfo{Item: q.items[next], Index: next}, true
	default:
		next := q.current + 1
		if next >= len(q.items) {
			return ItemInfo{}, false
		}
		return ItemInfo{Item: q.items[next], Index: next}, true
	}
}

// PreviousItemInfo mirrors NextItemInfo for backwards navigation
func (q *Queue) PreviousItemInfo() (ItemInfo, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 || q.current < 0 {
		return ItemInfo{}, false
	}

	switch q.repeat {
	case RepeatOne:
		return ItemInfo{Item: q.items[q.current], Index: q.current}, true
	case RepeatAll:
		prev := (q.current - 1 + len(q.items)) % len(q.items)
		return ItemInfo{Item: q.items[prev], Index: prev}, true
	default:
		prev := q.current - 1
		if prev < 0 {
			return ItemInfo{}, false
		}
		return ItemInfo{Item: q.items[prev], Index: prev}, true
	}
}

// Shuffle randomizes playback order, keeping the current item first. The
// pre-shuffle order is retained for Unshuffle.
func (q *Queue) Shuffle() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.shuffled || len(q.items) < 2 {
		return
	}

	q.originalOrder = make([]Item, len(q.items))
	copy(q.originalOrder, q.items)

	// Current item moves to the front, the rest is Fisher-Yates shuffled
	if q.current > 0 {
		q.items[0], q.items[q.current] = q.items[q.current], q.items[0]
	}
	rest := q.items[1:]
	for i := len(rest) - 1; i > 0; i-- {
		j := q.rng.Intn(i + 1)
		rest[i], rest[j] = rest[j], rest[i]
	}

	q.current = 0
	q.shuffled = true
}

// Unshuffle restores the exact pre-shuffle order. The current pointer
// follows the current item to its original position.
func (q *Queue) Unshuffle() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.shuffled {
		return
	}

	var currentID int64 = -1
	if q.current >= 0 && q.current < len(q.items) {
		currentID = q.items[q.current].QueueItemID
	}

	q.items = q.originalOrder
	q.originalOrder = nil
	q.shuffled = false

	if currentID >= 0 {
		q.current = q.indexOf(currentID)
	}
}

// Shuffled reports whether shuffle is active
func (q *Queue) Shuffled() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.shuffled
}

// indexOf finds an item's index by queue-item id. Caller must hold q.mu.
func (q *Queue) indexOf(queueItemID int64) int {
	for i, it := range q.items {
		if it.QueueItemID == queueItemID {
			return i
		}
	}
	return -1
}

// pruneOriginalOrder drops removed items from the retained pre-shuffle
// order so Unshuffle never resurrects them. Caller must hold q.mu.
func (q *Queue) pruneOriginalOrder(doomed map[int64]bool) {
	if q.originalOrder == nil {
		return
	}
	kept := q.originalOrder[:0]
	for _, it := range q.originalOrder {
		if !doomed[it.QueueItemID] {
			kept = append(kept, it)
		}
	}
	q.originalOrder = kept
}
