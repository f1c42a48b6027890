package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/rs/zerolog"
)

const (
	playerSampleRate = beep.SampleRate(44100)
	timeUpdatePeriod = 500 * time.Millisecond
)

// Player is the beep-backed Output implementation. It owns the speaker
// device for the whole process: exactly one Player is constructed by the
// command layer and injected everywhere playback is needed.
//
// Sources are HTTP(S) URLs. A source is fetched and decoded on SetSource;
// playback itself only flips the paused state of the queued stream.
type Player struct {
	mu sync.Mutex

	base       *url.URL
	httpClient *http.Client
	log        zerolog.Logger

	initialized bool

	source   string
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	ended    bool

	// generation invalidates end-of-stream callbacks from replaced
	// sources.
	generation uint64

	// pending settles when the in-flight play request finishes. Pause
	// drops the reference, which abandons tracking without cancelling
	// the request itself.
	pending chan struct{}

	listeners Listeners

	tickerStop chan struct{}

	// play queues a stream on the speaker and decode turns a source URL
	// into a seekable stream. Swappable in tests.
	play   func(s ...beep.Streamer)
	decode func(source string) (beep.StreamSeekCloser, beep.Format, error)
}

var _ Output = (*Player)(nil)

// NewPlayer creates a Player that resolves relative sources against base.
// The device is not touched until Initialize.
func NewPlayer(base *url.URL, httpClient *http.Client, logger zerolog.Logger) *Player {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	p := &Player{
		base:       base,
		httpClient: httpClient,
		log:        logger.With().Str("component", "audio").Logger(),
	}
	p.play = speaker.Play
	p.decode = p.fetchAndDecode
	return p
}

// Initialize opens the speaker device. Idempotent: calling it again is a
// no-op.
func (p *Player) Initialize() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return nil
	}

	if err := speaker.Init(playerSampleRate, playerSampleRate.N(time.Second/10)); err != nil {
		return fmt.Errorf("failed to open speaker: %w", err)
	}

	p.tickerStop = make(chan struct{})
	go p.timeUpdateLoop(p.tickerStop)

	p.initialized = true
	return nil
}

// SetListeners replaces the active listener bag wholesale.
func (p *Player) SetListeners(l Listeners) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = l
}

// SetSource loads url. If the normalized URL equals the currently loaded
// source this is a no-op, preserving the playback position.
func (p *Player) SetSource(rawURL string) error {
	normalized, err := normalizeSource(p.base, rawURL)
	if err != nil {
		return err
	}

	p.mu.Lock()
	if normalized == p.source {
		p.mu.Unlock()
		return nil
	}

	p.unloadLocked()
	p.source = normalized
	p.ended = false
	p.generation++
	generation := p.generation
	onLoadStart := p.listeners.OnLoadStart
	p.mu.Unlock()

	if onLoadStart != nil {
		onLoadStart()
	}

	streamer, format, err := p.decode(normalized)
	if err != nil {
		// Forget the source so retrying the same URL is not swallowed
		// by the no-op check above.
		p.mu.Lock()
		if p.generation == generation {
			p.source = ""
		}
		p.mu.Unlock()
		p.log.Error().Err(err).Str("source", normalized).Msg("Failed to load source")
		return err
	}

	p.mu.Lock()
	if p.generation != generation {
		// A newer SetSource won the race; this load is stale.
		p.mu.Unlock()
		streamer.Close()
		return nil
	}

	p.streamer = streamer
	p.format = format

	resampled := beep.Resample(4, format.SampleRate, playerSampleRate, streamer)
	p.ctrl = &beep.Ctrl{Streamer: resampled, Paused: true}

	// Queue the stream now, paused. Play only has to unpause, and the
	// callback fires exactly when this source drains.
	p.play(beep.Seq(p.ctrl, beep.Callback(func() {
		go p.handleEnded(generation)
	})))

	onCanPlay := p.listeners.OnCanPlay
	p.mu.Unlock()

	p.log.Debug().Str("source", normalized).Msg("Source loaded")
	if onCanPlay != nil {
		onCanPlay()
	}
	return nil
}

// Play starts or resumes playback. If a previous play request is still in
// flight it is awaited first, its outcome ignored: issuing overlapping
// play requests against one device produces inconsistent state.
func (p *Player) Play(ctx context.Context) error {
	p.mu.Lock()
	for p.pending != nil {
		settled := p.pending
		p.mu.Unlock()
		select {
		case <-settled:
		case <-ctx.Done():
			return ctx.Err()
		}
		p.mu.Lock()
		if p.pending == settled {
			p.pending = nil
		}
	}

	if p.streamer == nil || p.ctrl == nil {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrPlaybackRejected, ErrNoSource)
	}

	pending := make(chan struct{})
	p.pending = pending

	requeue := false
	speaker.Lock()
	if p.ended {
		if err := p.streamer.Seek(0); err != nil {
			speaker.Unlock()
			p.settleLocked(pending)
			p.mu.Unlock()
			p.log.Error().Err(err).Msg("Playback rejected")
			return fmt.Errorf("%w: %v", ErrPlaybackRejected, err)
		}
		p.ended = false
		requeue = true
	}
	p.ctrl.Paused = false
	speaker.Unlock()

	// The mixer drops a stream once it drains, so a replay needs the
	// seeked stream queued again; unpausing the orphaned ctrl alone
	// produces nothing.
	if requeue {
		generation := p.generation
		p.play(beep.Seq(p.ctrl, beep.Callback(func() {
			go p.handleEnded(generation)
		})))
	}

	p.settleLocked(pending)
	onPlay := p.listeners.OnPlay
	p.mu.Unlock()

	if onPlay != nil {
		onPlay()
	}
	return nil
}

// settleLocked closes the pending channel and clears it if it is still
// the active one. Must be called with mu held.
func (p *Player) settleLocked(pending chan struct{}) {
	close(pending)
	if p.pending == pending {
		p.pending = nil
	}
}

// Pause stops output. Any in-flight play request is abandoned: its
// eventual settlement is no longer treated as meaningful.
func (p *Player) Pause() {
	p.mu.Lock()
	p.pending = nil

	if p.ctrl != nil {
		speaker.Lock()
		p.ctrl.Paused = true
		speaker.Unlock()
	}
	onPause := p.listeners.OnPause
	p.mu.Unlock()

	if onPause != nil {
		onPause()
	}
}

// SetPosition seeks within the loaded source, clamped to its bounds.
func (p *Player) SetPosition(position time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.streamer == nil {
		return ErrNoSource
	}

	speaker.Lock()
	defer speaker.Unlock()

	samples := p.format.SampleRate.N(position)
	if samples < 0 {
		samples = 0
	}
	if max := p.streamer.Len(); samples > max {
		samples = max
	}
	if err := p.streamer.Seek(samples); err != nil {
		return fmt.Errorf("seek failed: %w", err)
	}
	return nil
}

// Position returns the playback position within the loaded source.
func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked()
}

func (p *Player) positionLocked() time.Duration {
	if p.streamer == nil {
		return 0
	}
	speaker.Lock()
	pos := p.streamer.Position()
	speaker.Unlock()
	return p.format.SampleRate.D(pos)
}

// Duration returns the total duration of the loaded source, or 0 when
// nothing is loaded.
func (p *Player) Duration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.durationLocked()
}

func (p *Player) durationLocked() time.Duration {
	if p.streamer == nil {
		return 0
	}
	return p.format.SampleRate.D(p.streamer.Len())
}

// Source returns the normalized URL of the loaded source, or "".
func (p *Player) Source() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.source
}

// Paused reports whether output is currently paused.
func (p *Player) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctrl == nil {
		return true
	}
	speaker.Lock()
	paused := p.ctrl.Paused
	speaker.Unlock()
	return paused
}

// Ended reports whether the loaded source has played to completion.
func (p *Player) Ended() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ended
}

// Close releases the audio device. Used for full teardown only; route
// changes in the UI never close the player.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil
	}

	close(p.tickerStop)
	p.unloadLocked()
	p.source = ""
	speaker.Close()
	p.initialized = false
	return nil
}

// unloadLocked drops the current stream. Must be called with mu held.
func (p *Player) unloadLocked() {
	if p.initialized {
		speaker.Clear()
	}
	if p.streamer != nil {
		p.streamer.Close()
		p.streamer = nil
	}
	p.ctrl = nil
}

// handleEnded runs when a source drains. Stale callbacks from replaced
// sources are discarded by generation.
func (p *Player) handleEnded(generation uint64) {
	p.mu.Lock()
	if generation != p.generation {
		p.mu.Unlock()
		return
	}
	p.ended = true
	onEnded := p.listeners.OnEnded
	p.mu.Unlock()

	if onEnded != nil {
		onEnded()
	}
}

// timeUpdateLoop periodically reports position while playing.
func (p *Player) timeUpdateLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(timeUpdatePeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		p.mu.Lock()
		if p.streamer == nil || p.ctrl == nil {
			p.mu.Unlock()
			continue
		}
		speaker.Lock()
		paused := p.ctrl.Paused
		speaker.Unlock()
		if paused {
			p.mu.Unlock()
			continue
		}
		position := p.positionLocked()
		duration := p.durationLocked()
		onTimeUpdate := p.listeners.OnTimeUpdate
		p.mu.Unlock()

		if onTimeUpdate != nil {
			onTimeUpdate(position, duration)
		}
	}
}

// fetchAndDecode downloads the source and decodes it as MP3. The whole
// file is buffered so the stream is seekable; nothing is kept once the
// source is replaced.
func (p *Player) fetchAndDecode(source string) (beep.StreamSeekCloser, beep.Format, error) {
	resp, err := p.httpClient.Get(source)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("failed to fetch source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, beep.Format{}, fmt.Errorf("failed to fetch source: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("failed to read source: %w", err)
	}

	streamer, format, err := mp3.Decode(nopCloser{bytes.NewReader(data)})
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("failed to decode source: %w", err)
	}
	return streamer, format, nil
}

// nopCloser wraps a bytes.Reader to implement io.ReadCloser.
type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }
