package queue

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// RepeatMode governs end-of-track and end-of-queue behavior.
type RepeatMode string

const (
	RepeatNone  RepeatMode = "none"
	RepeatQueue RepeatMode = "queue"
	RepeatTrack RepeatMode = "track"
)

// SourceKind identifies the kind of user action that produced a queue.
type SourceKind string

const (
	SourceRelease    SourceKind = "release"
	SourcePlaylist   SourceKind = "playlist"
	SourceSearch     SourceKind = "search"
	SourceShuffleAll SourceKind = "shuffle_all"
)

// Source records a queue's provenance. It is used for UI labeling only
// and never affects control logic.
type Source struct {
	Kind SourceKind
	ID   int64
	Name string
}

// Queue is an ordered sequence of tracks plus cursor and mode state.
//
// Queues are immutable values: every structural operation returns a new
// Queue and the caller swaps it in wholesale. That keeps a single "current
// queue" reference consistent for both UI reads and event handlers.
//
// Invariant: 0 <= CurrentIndex < len(Tracks) whenever the queue is
// non-empty.
type Queue struct {
	ID           string
	Tracks       []Track
	CurrentIndex int
	Source       Source
	Shuffled     bool
	RepeatMode   RepeatMode
	CreatedAt    time.Time

	// original retains the pre-shuffle track order so Unshuffled can
	// restore it. Nil until the queue has been shuffled. Structural edits
	// drop it: once tracks are added, removed or moved, the edited order
	// is canonical and there is no older order to go back to.
	original []Track
}

// New builds a queue over the given tracks starting at index 0 with
// repeat disabled.
func New(tracks []Track, source Source) Queue {
	return Queue{
		ID:         uuid.NewString(),
		Tracks:     append([]Track(nil), tracks...),
		Source:     source,
		RepeatMode: RepeatNone,
		CreatedAt:  time.Now().UTC(),
	}
}

// Len returns the number of tracks in the queue.
func (q Queue) Len() int { return len(q.Tracks) }

// IsEmpty returns true if the queue holds no tracks.
func (q Queue) IsEmpty() bool { return len(q.Tracks) == 0 }

// Current returns the track at the cursor, or false for an empty queue.
func (q Queue) Current() (Track, bool) {
	if q.IsEmpty() || q.CurrentIndex < 0 || q.CurrentIndex >= len(q.Tracks) {
		return Track{}, false
	}
	return q.Tracks[q.CurrentIndex], true
}

// WithIndex returns a copy of the queue with the cursor moved to index.
// Out-of-range indexes are rejected.
func (q Queue) WithIndex(index int) (Queue, bool) {
	if index < 0 || index >= len(q.Tracks) {
		return q, false
	}
	q.CurrentIndex = index
	return q, true
}

// WithRepeatMode returns a copy of the queue with the repeat mode replaced.
func (q Queue) WithRepeatMode(mode RepeatMode) Queue {
	q.RepeatMode = mode
	return q
}

// NextIndex computes the index to advance to when the current track ends
// or the user skips forward. Returns false when playback cannot advance
// (end of queue with repeat off, or empty queue).
func (q Queue) NextIndex() (int, bool) {
	if q.IsEmpty() {
		return 0, false
	}
	if q.RepeatMode == RepeatTrack {
		return q.CurrentIndex, true
	}
	next := q.CurrentIndex + 1
	if next >= len(q.Tracks) {
		if q.RepeatMode == RepeatQueue {
			return 0, true
		}
		return 0, false
	}
	return next, true
}

// PrevIndex mirrors NextIndex for backward navigation. The ten-second
// restart rule is the orchestrator's concern and takes precedence over
// this computation entirely.
func (q Queue) PrevIndex() (int, bool) {
	if q.IsEmpty() {
		return 0, false
	}
	if q.RepeatMode == RepeatTrack {
		return q.CurrentIndex, true
	}
	prev := q.CurrentIndex - 1
	if prev < 0 {
		if q.RepeatMode == RepeatQueue {
			return len(q.Tracks) - 1, true
		}
		return 0, false
	}
	return prev, true
}

// InsertNext returns a copy of the queue with the track inserted directly
// after the cursor.
func (q Queue) InsertNext(t Track) Queue {
	q.original = nil
	if q.IsEmpty() {
		q.Tracks = []Track{t}
		q.CurrentIndex = 0
		return q
	}
	at := q.CurrentIndex + 1
	tracks := make([]Track, 0, len(q.Tracks)+1)
	tracks = append(tracks, q.Tracks[:at]...)
	tracks = append(tracks, t)
	tracks = append(tracks, q.Tracks[at:]...)
	q.Tracks = tracks
	return q
}

// Append returns a copy of the queue with the track added at the end.
func (q Queue) Append(t Track) Queue {
	q.original = nil
	tracks := make([]Track, 0, len(q.Tracks)+1)
	tracks = append(tracks, q.Tracks...)
	tracks = append(tracks, t)
	q.Tracks = tracks
	if len(tracks) == 1 {
		q.CurrentIndex = 0
	}
	return q
}

// Remove returns a copy of the queue with the track at index removed.
// Removing the track at the cursor is rejected: the engine never silently
// removes what is audibly playing. Out-of-range indexes are rejected.
func (q Queue) Remove(index int) (Queue, bool) {
	if index < 0 || index >= len(q.Tracks) || index == q.CurrentIndex {
		return q, false
	}
	q.original = nil
	tracks := make([]Track, 0, len(q.Tracks)-1)
	tracks = append(tracks, q.Tracks[:index]...)
	tracks = append(tracks, q.Tracks[index+1:]...)
	q.Tracks = tracks
	if index < q.CurrentIndex {
		q.CurrentIndex--
	}
	return q, true
}

// Move returns a copy of the queue with the track at from relocated to
// to, keeping the cursor on the same track it was on before the move.
func (q Queue) Move(from, to int) (Queue, bool) {
	if from < 0 || from >= len(q.Tracks) || to < 0 || to >= len(q.Tracks) {
		return q, false
	}
	if from == to {
		return q, true
	}
	q.original = nil

	tracks := append([]Track(nil), q.Tracks...)
	moved := tracks[from]
	tracks = append(tracks[:from], tracks[from+1:]...)

	rest := make([]Track, 0, len(q.Tracks))
	rest = append(rest, tracks[:to]...)
	rest = append(rest, moved)
	rest = append(rest, tracks[to:]...)
	q.Tracks = rest

	switch {
	case q.CurrentIndex == from:
		q.CurrentIndex = to
	case from < q.CurrentIndex && to >= q.CurrentIndex:
		q.CurrentIndex--
	case from > q.CurrentIndex && to <= q.CurrentIndex:
		q.CurrentIndex++
	}
	return q, true
}

// WithShuffle returns a shuffled copy of the queue: the current track is
// pinned to position 0 and the remainder is permuted with an unbiased
// Fisher-Yates shuffle. The pre-shuffle order is retained for WithoutShuffle.
func (q Queue) WithShuffle(rng *rand.Rand) Queue {
	if q.IsEmpty() {
		q.Shuffled = true
		return q
	}

	if q.original == nil {
		q.original = append([]Track(nil), q.Tracks...)
	}

	current := q.Tracks[q.CurrentIndex]
	rest := make([]Track, 0, len(q.Tracks)-1)
	rest = append(rest, q.Tracks[:q.CurrentIndex]...)
	rest = append(rest, q.Tracks[q.CurrentIndex+1:]...)
	shuffleTracks(rest, rng)

	tracks := make([]Track, 0, len(q.Tracks))
	tracks = append(tracks, current)
	tracks = append(tracks, rest...)

	q.Tracks = tracks
	q.CurrentIndex = 0
	q.Shuffled = true
	return q
}

// WithoutShuffle restores the retained pre-shuffle order and re-locates
// the cursor on the track that was playing. A queue that was never
// shuffled, or that was structurally edited since shuffling, only has its
// flag cleared.
func (q Queue) WithoutShuffle() Queue {
	q.Shuffled = false
	if q.original == nil {
		return q
	}

	current, ok := q.Current()
	q.Tracks = q.original
	q.original = nil
	q.CurrentIndex = 0
	if !ok {
		return q
	}
	for i, t := range q.Tracks {
		if t.ID == current.ID {
			q.CurrentIndex = i
			break
		}
	}
	return q
}

// shuffleTracks permutes tracks in place with Fisher-Yates: iterate from
// the last index down, swapping each element with a uniformly random
// element at or below it.
func shuffleTracks(tracks []Track, rng *rand.Rand) {
	intn := rand.Intn
	if rng != nil {
		intn = rng.Intn
	}
	for i := len(tracks) - 1; i > 0; i-- {
		j := intn(i + 1)
		tracks[i], tracks[j] = tracks[j], tracks[i]
	}
}
