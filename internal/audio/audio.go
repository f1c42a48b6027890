// Package audio wraps the process-wide audio output behind a narrow
// interface. Everything above it (the playback orchestrator, UI surfaces)
// routes media operations through this package and never touches the
// speaker directly.
package audio

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrPlaybackRejected wraps play failures: the output could not start
	// (bad source, decode failure, device trouble). Callers must treat it
	// as "playback did not start", never as fatal, and must not retry
	// automatically.
	ErrPlaybackRejected = errors.New("audio: playback rejected")

	// ErrNoSource is returned when Play is called before any source has
	// been loaded.
	ErrNoSource = errors.New("audio: no source loaded")
)

// Listeners is the event surface of the output. The bag is replaced
// wholesale via SetListeners; there is exactly one active subscriber set
// at a time, reflecting the single-orchestrator design. Nil callbacks are
// skipped.
type Listeners struct {
	OnPlay      func()
	OnPause     func()
	OnEnded     func()
	OnLoadStart func()
	OnCanPlay   func()
	// OnTimeUpdate reports the current position and the total duration of
	// the loaded source.
	OnTimeUpdate func(position, duration time.Duration)
}

// Output is the playback primitive: a single authoritative handle to the
// underlying audio device.
//
// Implementations must guarantee that the loaded source is always either
// empty or the source most recently passed to SetSource, and that loading
// the same (normalized) source twice is a no-op so the playback position
// is never reset by redundant loads.
type Output interface {
	// SetSource loads the given URL. URLs resolving to the same resource
	// as the currently loaded source are ignored.
	SetSource(url string) error

	// Play starts or resumes playback. Concurrent calls serialize: a call
	// that finds a previous play request in flight waits for it to settle
	// (ignoring its outcome) before issuing its own.
	Play(ctx context.Context) error

	// Pause stops output and abandons any in-flight play request.
	Pause()

	SetPosition(position time.Duration) error
	Position() time.Duration
	Duration() time.Duration

	// Source returns the normalized URL of the loaded source, or "".
	Source() string
	Paused() bool
	Ended() bool

	// SetListeners replaces the active listener bag. Last registration
	// wins.
	SetListeners(l Listeners)

	// Close releases the audio device. Full teardown only; the output
	// deliberately survives everything short of process shutdown.
	Close() error
}
