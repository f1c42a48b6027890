package playback

import (
	"time"

	"github.com/tonearm/tonearm/internal/queue"
)

// StateChange is emitted when the playing flag flips.
type StateChange struct {
	Playing bool
}

// TrackChange is emitted when the current track changes.
type TrackChange struct {
	Previous *queue.Track
	Current  *queue.Track
	Index    int
}

// PositionChange is emitted on seeks and time updates.
type PositionChange struct {
	Position time.Duration
	Duration time.Duration
}

// QueueChange is emitted when the adopted queue is replaced, which per
// the wholesale-replacement rule covers every structural change.
type QueueChange struct {
	Queue *queue.Queue
}

// ModeChange is emitted when repeat or shuffle state changes.
type ModeChange struct {
	RepeatMode queue.RepeatMode
	Shuffled   bool
}

// ListenEvent is emitted when a track has played long enough to count as
// a listen.
type ListenEvent struct {
	Track    queue.Track
	PlayedAt time.Time
	Played   time.Duration
}

// ErrorEvent is emitted when an operation fails asynchronously (a play
// rejection during auto-advance, for example).
type ErrorEvent struct {
	Operation string
	Err       error
}
