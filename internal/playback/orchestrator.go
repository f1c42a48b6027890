// Package playback owns the current queue and drives the audio output.
//
// The Orchestrator is the single writer of playback state. UI surfaces and
// the media-session adapter send commands through its methods and observe
// state through subscriptions; nothing else touches the output or the
// queue. All mutation happens under one mutex, so every observer sees a
// consistent (queue, track, playing) triple.
package playback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tonearm/tonearm/internal/audio"
	"github.com/tonearm/tonearm/internal/queue"
)

const (
	// previousRestartThreshold is how far into a track the previous
	// command restarts it instead of moving back a track.
	previousRestartThreshold = 10 * time.Second

	// listenCap counts a listen after this much play time regardless of
	// track length.
	listenCap = 4 * time.Minute
)

// Orchestrator coordinates the playback queue and the audio output.
type Orchestrator struct {
	mu  sync.Mutex
	out audio.Output
	gen *queue.Generator
	log zerolog.Logger

	queue   *queue.Queue
	playing bool

	// listenFired is reset whenever the current track changes and set
	// once the listen threshold is crossed, so each play counts at most
	// once.
	listenFired bool

	subs map[*Subscription]struct{}
}

// NewOrchestrator wires an orchestrator onto the output. The output's
// listener bag is claimed; nothing else may register on it afterwards.
func NewOrchestrator(out audio.Output, gen *queue.Generator, logger zerolog.Logger) *Orchestrator {
	o := &Orchestrator{
		out:  out,
		gen:  gen,
		log:  logger.With().Str("component", "playback").Logger(),
		subs: make(map[*Subscription]struct{}),
	}
	out.SetListeners(audio.Listeners{
		OnEnded:      o.handleEnded,
		OnTimeUpdate: o.handleTimeUpdate,
	})
	return o
}

// Subscribe registers a new event consumer.
func (o *Orchestrator) Subscribe() *Subscription {
	o.mu.Lock()
	defer o.mu.Unlock()

	s := newSubscription()
	o.subs[s] = struct{}{}
	return s
}

// Unsubscribe removes a consumer and signals it via its Done channel.
func (o *Orchestrator) Unsubscribe(s *Subscription) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.subs[s]; !ok {
		return
	}
	delete(o.subs, s)
	s.close()
}

// SetQueue adopts a new queue wholesale, loading the track at its cursor.
// With autoplay the track starts immediately; without it the engine sits
// paused and ready.
func (o *Orchestrator) SetQueue(ctx context.Context, q queue.Queue, autoplay bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	prev := o.currentTrackLocked()
	o.queue = &q
	o.emitQueueLocked()
	o.emitModeLocked()

	cur, ok := q.Current()
	if !ok {
		o.stopLocked()
		return nil
	}

	o.emitTrackLocked(prev, cur)
	o.log.Info().
		Str("queue", q.ID).
		Int("tracks", q.Len()).
		Str("track", cur.Title).
		Bool("autoplay", autoplay).
		Msg("Queue adopted")

	return o.loadCurrentLocked(ctx, false, autoplay)
}

// ClearQueue drops the queue and stops playback.
func (o *Orchestrator) ClearQueue() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.queue == nil {
		return
	}
	o.queue = nil
	o.stopLocked()
	o.emitQueueLocked()
}

// GoToTrack jumps the cursor to index and restarts playback there. An
// out-of-range index is ignored. autoplay decides whether the jumped-to
// track starts playing; callers pass their surface's policy explicitly
// rather than inheriting whatever state the engine happened to be in.
func (o *Orchestrator) GoToTrack(ctx context.Context, index int, autoplay bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.goToLocked(ctx, index, autoplay)
}

// Next skips forward per the repeat mode and starts the landed-on track
// even when playback was paused. At the end of the queue with repeat off
// nothing happens; only the last track draining on its own stops playback.
func (o *Orchestrator) Next(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.queue == nil {
		return nil
	}
	next, ok := o.queue.NextIndex()
	if !ok {
		return nil
	}
	return o.goToLocked(ctx, next, true)
}

// Previous restarts the current track when more than ten seconds in,
// otherwise it moves back per the repeat mode and starts the landed-on
// track even when playback was paused. At the first track with repeat off
// it restarts the current track.
func (o *Orchestrator) Previous(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.queue == nil {
		return nil
	}
	if o.out.Position() > previousRestartThreshold {
		return o.restartCurrentLocked()
	}
	prev, ok := o.queue.PrevIndex()
	if !ok {
		return o.restartCurrentLocked()
	}
	return o.goToLocked(ctx, prev, true)
}

// TogglePlayPause flips between playing and paused.
func (o *Orchestrator) TogglePlayPause(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.queue == nil || o.queue.IsEmpty() {
		return nil
	}
	if o.playing {
		o.out.Pause()
		o.playing = false
		o.emitStateLocked()
		return nil
	}
	return o.playLocked(ctx)
}

// Play starts playback of the current track if there is one.
func (o *Orchestrator) Play(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.queue == nil || o.queue.IsEmpty() || o.playing {
		return nil
	}
	return o.playLocked(ctx)
}

// Pause stops playback without touching the queue.
func (o *Orchestrator) Pause() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.playing {
		return
	}
	o.out.Pause()
	o.playing = false
	o.emitStateLocked()
}

// SeekTo moves the playback position within the current track.
func (o *Orchestrator) SeekTo(position time.Duration) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.queue == nil {
		return nil
	}
	if err := o.out.SetPosition(position); err != nil {
		return fmt.Errorf("seek failed: %w", err)
	}
	o.emitPositionLocked(o.out.Position(), o.durationLocked())
	return nil
}

// AddNext inserts a track directly after the current one. With no queue
// adopted the track becomes a fresh single-track queue, paused.
func (o *Orchestrator) AddNext(ctx context.Context, t queue.Track) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.queue == nil {
		q := o.gen.FromTracks([]queue.Track{t}, t.Title)
		o.queue = &q
		o.emitQueueLocked()
		o.emitTrackLocked(nil, t)
		return o.loadCurrentLocked(ctx, false, false)
	}
	q := o.queue.InsertNext(t)
	o.queue = &q
	o.emitQueueLocked()
	return nil
}

// AddToEnd appends a track to the queue. With no queue adopted it behaves
// like AddNext.
func (o *Orchestrator) AddToEnd(ctx context.Context, t queue.Track) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.queue == nil {
		q := o.gen.FromTracks([]queue.Track{t}, t.Title)
		o.queue = &q
		o.emitQueueLocked()
		o.emitTrackLocked(nil, t)
		return o.loadCurrentLocked(ctx, false, false)
	}
	q := o.queue.Append(t)
	o.queue = &q
	o.emitQueueLocked()
	return nil
}

// RemoveTrack removes the track at index. Removing the current track, or
// an out-of-range index, is ignored.
func (o *Orchestrator) RemoveTrack(index int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.queue == nil {
		return
	}
	q, ok := o.queue.Remove(index)
	if !ok {
		return
	}
	o.queue = &q
	o.emitQueueLocked()
}

// MoveTrack relocates the track at from to position to.
func (o *Orchestrator) MoveTrack(from, to int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.queue == nil {
		return
	}
	q, ok := o.queue.Move(from, to)
	if !ok {
		return
	}
	o.queue = &q
	o.emitQueueLocked()
}

// Shuffle permutes the queue, keeping the current track playing at
// position 0. The audible track never changes.
func (o *Orchestrator) Shuffle() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.queue == nil {
		return
	}
	q := o.queue.WithShuffle(nil)
	o.queue = &q
	o.emitQueueLocked()
	o.emitModeLocked()
}

// Unshuffle restores the order the queue had before it was shuffled,
// keeping the cursor on the playing track.
func (o *Orchestrator) Unshuffle() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.queue == nil {
		return
	}
	q := o.queue.WithoutShuffle()
	o.queue = &q
	o.emitQueueLocked()
	o.emitModeLocked()
}

// SetRepeatMode replaces the repeat mode.
func (o *Orchestrator) SetRepeatMode(mode queue.RepeatMode) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.queue == nil {
		return
	}
	q := o.queue.WithRepeatMode(mode)
	o.queue = &q
	o.emitModeLocked()
}

// PlayRelease fetches a release, builds its queue and starts playback at
// startIndex (clamped to 0 when out of range).
func (o *Orchestrator) PlayRelease(ctx context.Context, releaseID int64, startIndex int) error {
	q, err := o.gen.FromRelease(ctx, releaseID)
	if err != nil {
		return err
	}
	if adjusted, ok := q.WithIndex(startIndex); ok {
		q = adjusted
	}
	return o.SetQueue(ctx, q, true)
}

// PlayShuffleAll builds a shuffled queue over the whole catalog and
// starts playback.
func (o *Orchestrator) PlayShuffleAll(ctx context.Context) error {
	q, err := o.gen.ShuffleAll(ctx)
	if err != nil {
		return err
	}
	return o.SetQueue(ctx, q, true)
}

// PlayTrack plays a single track immediately as its own queue.
func (o *Orchestrator) PlayTrack(ctx context.Context, t queue.Track) error {
	q := o.gen.FromTracks([]queue.Track{t}, t.Title)
	return o.SetQueue(ctx, q, true)
}

// Queue returns a snapshot of the current queue, or nil when none is
// adopted.
func (o *Orchestrator) Queue() *queue.Queue {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.queue == nil {
		return nil
	}
	q := *o.queue
	return &q
}

// CurrentTrack returns the track at the cursor, or nil.
func (o *Orchestrator) CurrentTrack() *queue.Track {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.currentTrackLocked()
}

// IsPlaying reports whether playback is active.
func (o *Orchestrator) IsPlaying() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.playing
}

// Position returns the playback position within the current track.
func (o *Orchestrator) Position() time.Duration {
	return o.out.Position()
}

// Duration returns the current track's duration, preferring the decoded
// value over catalog metadata.
func (o *Orchestrator) Duration() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.durationLocked()
}

// Close tears down all subscriptions and pauses the output. The output
// itself is closed by its owner.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.playing {
		o.out.Pause()
		o.playing = false
	}
	for s := range o.subs {
		delete(o.subs, s)
		s.close()
	}
}

// goToLocked moves the cursor to index and reloads the output. Invalid
// indexes are ignored.
func (o *Orchestrator) goToLocked(ctx context.Context, index int, autoplay bool) error {
	if o.queue == nil {
		return nil
	}
	q, ok := o.queue.WithIndex(index)
	if !ok {
		o.log.Debug().Int("index", index).Msg("Ignoring out-of-range track index")
		return nil
	}

	prev := o.currentTrackLocked()
	o.queue = &q
	cur, _ := q.Current()
	o.emitTrackLocked(prev, cur)

	return o.loadCurrentLocked(ctx, true, autoplay)
}

// restartCurrentLocked seeks the current track back to its start without
// touching the playing state.
func (o *Orchestrator) restartCurrentLocked() error {
	if err := o.out.SetPosition(0); err != nil {
		return fmt.Errorf("restart failed: %w", err)
	}
	o.listenFired = false
	o.emitPositionLocked(0, o.durationLocked())
	return nil
}

// loadCurrentLocked points the output at the track under the cursor.
// restart forces the position back to zero even when the source is
// already loaded; SetQueue leaves it false so re-adopting a queue around
// the playing track preserves the position.
func (o *Orchestrator) loadCurrentLocked(ctx context.Context, restart, autoplay bool) error {
	cur, ok := o.queue.Current()
	if !ok {
		o.stopLocked()
		return nil
	}

	if err := o.out.SetSource(cur.FileURL); err != nil {
		o.stopLocked()
		return fmt.Errorf("failed to load %q: %w", cur.Title, err)
	}

	if restart {
		if err := o.out.SetPosition(0); err != nil {
			o.log.Debug().Err(err).Msg("Position reset failed")
		}
	}
	o.listenFired = false

	if autoplay {
		return o.playLocked(ctx)
	}
	if o.playing {
		o.out.Pause()
		o.playing = false
		o.emitStateLocked()
	}
	return nil
}

// playLocked starts the output and records the playing state.
func (o *Orchestrator) playLocked(ctx context.Context) error {
	if err := o.out.Play(ctx); err != nil {
		o.playing = false
		o.emitStateLocked()
		o.log.Error().Err(err).Msg("Playback rejected")
		return err
	}
	o.playing = true
	o.emitStateLocked()
	return nil
}

// stopLocked pauses the output and records the stopped state.
func (o *Orchestrator) stopLocked() {
	o.out.Pause()
	if o.playing {
		o.playing = false
	}
	o.emitStateLocked()
}

func (o *Orchestrator) currentTrackLocked() *queue.Track {
	if o.queue == nil {
		return nil
	}
	cur, ok := o.queue.Current()
	if !ok {
		return nil
	}
	return &cur
}

func (o *Orchestrator) durationLocked() time.Duration {
	if d := o.out.Duration(); d > 0 {
		return d
	}
	if cur := o.currentTrackLocked(); cur != nil {
		return cur.Duration
	}
	return 0
}

// handleEnded advances playback when a track drains. Runs on the
// output's callback goroutine. A user skip racing the natural end is
// harmless: the skip replaces the source, the output discards the stale
// end callback, and at most one advance happens.
func (o *Orchestrator) handleEnded() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.queue == nil {
		return
	}

	// A fully drained track always counts as listened to.
	o.fireListenLocked(o.durationLocked())

	next, ok := o.queue.NextIndex()
	if !ok {
		o.playing = false
		o.emitStateLocked()
		o.log.Debug().Msg("Queue finished")
		return
	}

	if err := o.goToLocked(context.Background(), next, true); err != nil {
		o.emitErrorLocked("advance", err)
	}
}

// handleTimeUpdate relays position progress and accrues listen credit.
// Runs on the output's ticker goroutine.
func (o *Orchestrator) handleTimeUpdate(position, duration time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.queue == nil {
		return
	}
	if duration == 0 {
		duration = o.durationLocked()
	}
	o.updateTrackDurationLocked(duration)
	o.emitPositionLocked(position, duration)

	threshold := listenCap
	if duration > 0 && duration/2 < threshold {
		threshold = duration / 2
	}
	if position >= threshold {
		o.fireListenLocked(position)
	}
}

// updateTrackDurationLocked backfills the decoded duration into queue
// metadata for tracks the catalog reported without one.
func (o *Orchestrator) updateTrackDurationLocked(duration time.Duration) {
	if duration <= 0 {
		return
	}
	cur := o.currentTrackLocked()
	if cur == nil || cur.Duration != 0 {
		return
	}
	q := *o.queue
	q.Tracks = append([]queue.Track(nil), q.Tracks...)
	q.Tracks[q.CurrentIndex].Duration = duration
	o.queue = &q
}

// fireListenLocked emits a listen event once per play of the current
// track.
func (o *Orchestrator) fireListenLocked(played time.Duration) {
	if o.listenFired {
		return
	}
	cur := o.currentTrackLocked()
	if cur == nil {
		return
	}
	o.listenFired = true
	e := ListenEvent{Track: *cur, PlayedAt: time.Now().UTC(), Played: played}
	for s := range o.subs {
		s.sendListen(e)
	}
}

func (o *Orchestrator) emitStateLocked() {
	e := StateChange{Playing: o.playing}
	for s := range o.subs {
		s.sendState(e)
	}
}

func (o *Orchestrator) emitTrackLocked(previous *queue.Track, current queue.Track) {
	cur := current
	index := 0
	if o.queue != nil {
		index = o.queue.CurrentIndex
	}
	e := TrackChange{Previous: previous, Current: &cur, Index: index}
	for s := range o.subs {
		s.sendTrack(e)
	}
}

func (o *Orchestrator) emitPositionLocked(position, duration time.Duration) {
	e := PositionChange{Position: position, Duration: duration}
	for s := range o.subs {
		s.sendPosition(e)
	}
}

func (o *Orchestrator) emitQueueLocked() {
	var snapshot *queue.Queue
	if o.queue != nil {
		q := *o.queue
		snapshot = &q
	}
	e := QueueChange{Queue: snapshot}
	for s := range o.subs {
		s.sendQueue(e)
	}
}

func (o *Orchestrator) emitModeLocked() {
	if o.queue == nil {
		return
	}
	e := ModeChange{RepeatMode: o.queue.RepeatMode, Shuffled: o.queue.Shuffled}
	for s := range o.subs {
		s.sendMode(e)
	}
}

func (o *Orchestrator) emitErrorLocked(operation string, err error) {
	o.log.Error().Err(err).Str("operation", operation).Msg("Playback operation failed")
	e := ErrorEvent{Operation: operation, Err: err}
	for s := range o.subs {
		s.sendError(e)
	}
}
