package audio

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/gopxl/beep/v2"
	"github.com/rs/zerolog"
)

// memStreamer is an in-memory seekable stream standing in for a decoded
// MP3 file.
type memStreamer struct {
	length int
	pos    int
	closed bool
}

func (m *memStreamer) Stream(samples [][2]float64) (int, bool) {
	if m.pos >= m.length {
		return 0, false
	}
	n := len(samples)
	if remaining := m.length - m.pos; n > remaining {
		n = remaining
	}
	m.pos += n
	return n, true
}

func (m *memStreamer) Err() error    { return nil }
func (m *memStreamer) Len() int      { return m.length }
func (m *memStreamer) Position() int { return m.pos }
func (m *memStreamer) Close() error  { m.closed = true; return nil }

func (m *memStreamer) Seek(p int) error {
	if p < 0 || p > m.length {
		return errors.New("seek out of range")
	}
	m.pos = p
	return nil
}

// playRecorder counts the streams queued on the speaker.
type playRecorder struct {
	mu     sync.Mutex
	queued int
}

func (r *playRecorder) play(s ...beep.Streamer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queued += len(s)
}

func (r *playRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queued
}

func newTestPlayer(t *testing.T) (*Player, *playRecorder) {
	t.Helper()

	p := NewPlayer(mustParse(t, "https://music.example.com"), nil, zerolog.Nop())
	rec := &playRecorder{}
	p.play = rec.play
	p.decode = func(source string) (beep.StreamSeekCloser, beep.Format, error) {
		return &memStreamer{length: 1000}, beep.Format{
			SampleRate:  playerSampleRate,
			NumChannels: 2,
			Precision:   2,
		}, nil
	}
	return p, rec
}

func TestPlay_AfterEndedRequeuesStream(t *testing.T) {
	p, rec := newTestPlayer(t)

	if err := p.SetSource("/media/tracks/7.mp3"); err != nil {
		t.Fatalf("SetSource: %v", err)
	}
	if err := p.Play(context.Background()); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if got := rec.count(); got != 1 {
		t.Fatalf("queued streams = %d, want 1", got)
	}

	// The stream drains: the speaker drops it from the mixer and the
	// end-of-stream callback fires.
	p.handleEnded(p.generation)
	if !p.Ended() {
		t.Fatal("expected Ended after the stream drained")
	}

	if err := p.Play(context.Background()); err != nil {
		t.Fatalf("Play after ended: %v", err)
	}
	if got := rec.count(); got != 2 {
		t.Errorf("queued streams = %d, want 2: a drained stream must be queued again", got)
	}
	if p.Ended() {
		t.Error("Ended must clear when playback restarts")
	}
	if p.Paused() {
		t.Error("expected playback to be unpaused")
	}
	if pos := p.Position(); pos != 0 {
		t.Errorf("Position = %v, want 0 after restart", pos)
	}
}

func TestSetSource_FailedLoadClearsSource(t *testing.T) {
	p, rec := newTestPlayer(t)

	broken := true
	goodDecode := p.decode
	p.decode = func(source string) (beep.StreamSeekCloser, beep.Format, error) {
		if broken {
			return nil, beep.Format{}, errors.New("fetch failed")
		}
		return goodDecode(source)
	}

	if err := p.SetSource("/media/tracks/7.mp3"); err == nil {
		t.Fatal("expected SetSource to fail while the fetch is broken")
	}
	if src := p.Source(); src != "" {
		t.Fatalf("Source = %q after failed load, want empty", src)
	}
	if err := p.Play(context.Background()); !errors.Is(err, ErrPlaybackRejected) {
		t.Fatalf("Play after failed load = %v, want ErrPlaybackRejected", err)
	}

	// The same URL must load for real once the fetch recovers.
	broken = false
	if err := p.SetSource("/media/tracks/7.mp3"); err != nil {
		t.Fatalf("SetSource retry: %v", err)
	}
	if got := rec.count(); got != 1 {
		t.Errorf("queued streams = %d, want 1 after retry", got)
	}
	if err := p.Play(context.Background()); err != nil {
		t.Errorf("Play after retry: %v", err)
	}
}

func TestSetSource_SameSourceIsNoOp(t *testing.T) {
	p, rec := newTestPlayer(t)

	if err := p.SetSource("/media/tracks/7.mp3"); err != nil {
		t.Fatalf("SetSource: %v", err)
	}
	if err := p.SetPosition(p.Duration() / 2); err != nil {
		t.Fatalf("SetPosition: %v", err)
	}
	before := p.Position()

	// Absolute form of the same resource: the load must be skipped and
	// the position must survive.
	if err := p.SetSource("https://music.example.com/media/tracks/7.mp3"); err != nil {
		t.Fatalf("SetSource same resource: %v", err)
	}
	if got := rec.count(); got != 1 {
		t.Errorf("queued streams = %d, want 1: redundant loads must be skipped", got)
	}
	if got := p.Position(); got != before {
		t.Errorf("Position = %v, want %v preserved across redundant load", got, before)
	}
}
