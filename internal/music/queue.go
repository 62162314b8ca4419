package music

import (
	"context"
	"sync"
	"time"
)

// Queue is the ordered list of tracks waiting to play in a guild.
// Any goroutine may add tracks; only the player's consumer loop takes them.
type Queue struct {
	mu     sync.Mutex
	items  []Track
	notify chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Enqueue appends a track and returns its 1-based position.
func (q *Queue) Enqueue(t Track) int {
	q.mu.Lock()
	q.items = append(q.items, t)
	n := len(q.items)
	q.mu.Unlock()
	q.wake()
	return n
}

// PushFront puts a track at the head so it plays next (song loop).
func (q *Queue) PushFront(t Track) {
	q.mu.Lock()
	q.items = append([]Track{t}, q.items...)
	q.mu.Unlock()
	q.wake()
}

// PushBack puts a track at the tail (queue loop).
func (q *Queue) PushBack(t Track) {
	q.Enqueue(t)
}

// TakeOrTimeout removes and returns the head track, waiting up to d for one
// to arrive. It returns ErrTimedOut when d elapses, or ctx.Err() when ctx is done.
func (q *Queue) TakeOrTimeout(ctx context.Context, d time.Duration) (Track, error) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			t := q.items[0]
			q.items[0] = Track{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return t, nil
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-timer.C:
			return Track{}, ErrTimedOut
		case <-ctx.Done():
			return Track{}, ctx.Err()
		}
	}
}

// Snapshot returns a point-in-time copy of the queued tracks.
func (q *Queue) Snapshot() []Track {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Track, len(q.items))
	copy(out, q.items)
	return out
}

// Len returns the number of queued tracks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear drops every queued track.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()
}

func (q *Queue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
