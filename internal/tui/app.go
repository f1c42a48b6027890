package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
	"github.com/rivo/tview"

	"github.com/tonearm/tonearm/internal/playback"
	"github.com/tonearm/tonearm/internal/queue"
)

const seekStep = 5 * time.Second

// Config holds TUI configuration options
type Config struct {
	RefreshRate time.Duration // How often to refresh the display
}

// DefaultConfig returns the default TUI configuration
func DefaultConfig() Config {
	return Config{
		RefreshRate: 500 * time.Millisecond,
	}
}

// App is the TUI application for controlling and displaying playback
type App struct {
	app        *tview.Application
	nowPlaying *tview.TextView
	progress   *tview.TextView
	queueList  *tview.List
	status     *tview.TextView

	// Configuration
	config Config

	orch *playback.Orchestrator

	// Mutex protects shared state accessed by both the event consumer
	// goroutine and the ticker goroutine in handleEvents.
	mu sync.Mutex

	// Current state (guarded by mu)
	track      *queue.Track
	queue      *queue.Queue
	playing    bool
	position   time.Duration
	duration   time.Duration
	repeatMode queue.RepeatMode
	shuffled   bool

	// Last-rendered content for change detection
	lastNowPlaying string
	lastProgress   string
	lastQueueID    string
	lastQueueIndex int

	// Cached progress bar width to stabilize change detection.
	// Updated only when GetInnerRect returns a positive value.
	lastBarWidth int

	// Context cancel function
	cancelFunc context.CancelFunc
}

// New creates a new TUI application with default config
func New(orch *playback.Orchestrator) *App {
	return NewWithConfig(orch, DefaultConfig())
}

// NewWithConfig creates a new TUI application with the given config
func NewWithConfig(orch *playback.Orchestrator, cfg Config) *App {
	a := &App{
		app:            tview.NewApplication(),
		config:         cfg,
		orch:           orch,
		lastQueueIndex: -1,
	}
	a.setupUI()
	return a
}

// setupUI creates the UI layout
func (a *App) setupUI() {
	// Now playing panel
	a.nowPlaying = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.nowPlaying.SetBorder(true).
		SetTitle(" Now Playing ").
		SetTitleAlign(tview.AlignLeft)

	// Progress bar
	a.progress = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.progress.SetBorder(true)

	// Queue list; selecting an entry jumps playback to it
	a.queueList = tview.NewList().
		ShowSecondaryText(false).
		SetHighlightFullLine(true)
	a.queueList.SetBorder(true).
		SetTitle(" Queue ").
		SetTitleAlign(tview.AlignLeft)
	a.queueList.SetSelectedFunc(func(index int, _, _ string, _ rune) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.orch.GoToTrack(ctx, index, true)
	})

	// Status bar
	a.status = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText("[gray]q:quit  space:play/pause  n:next  p:prev  s:shuffle  r:repeat  ←/→:seek[-]")

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.nowPlaying, 7, 0, false).
		AddItem(a.progress, 3, 0, false).
		AddItem(a.queueList, 0, 1, true).
		AddItem(a.status, 1, 0, false)

	// Handle keyboard input
	a.app.SetInputCapture(a.handleKeyEvent)

	a.app.SetRoot(flex, true)
}

// handleKeyEvent processes keyboard input
func (a *App) handleKeyEvent(event *tcell.EventKey) *tcell.EventKey {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch event.Key() {
	case tcell.KeyLeft:
		a.seekBy(-seekStep)
		return nil
	case tcell.KeyRight:
		a.seekBy(seekStep)
		return nil
	}

	switch event.Rune() {
	case 'q', 'Q':
		a.app.Stop()
		return nil
	case ' ':
		_ = a.orch.TogglePlayPause(ctx)
		return nil
	case 'n', 'N':
		_ = a.orch.Next(ctx)
		return nil
	case 'p', 'P':
		_ = a.orch.Previous(ctx)
		return nil
	case 's', 'S':
		a.toggleShuffle()
		return nil
	case 'r', 'R':
		a.cycleRepeat()
		return nil
	}
	return event
}

func (a *App) seekBy(delta time.Duration) {
	target := a.orch.Position() + delta
	if target < 0 {
		target = 0
	}
	_ = a.orch.SeekTo(target)
}

func (a *App) toggleShuffle() {
	a.mu.Lock()
	shuffled := a.shuffled
	a.mu.Unlock()

	if shuffled {
		a.orch.Unshuffle()
	} else {
		a.orch.Shuffle()
	}
}

func (a *App) cycleRepeat() {
	a.mu.Lock()
	mode := a.repeatMode
	a.mu.Unlock()

	switch mode {
	case queue.RepeatNone:
		a.orch.SetRepeatMode(queue.RepeatQueue)
	case queue.RepeatQueue:
		a.orch.SetRepeatMode(queue.RepeatTrack)
	default:
		a.orch.SetRepeatMode(queue.RepeatNone)
	}
}

// Run starts the TUI over an orchestrator subscription
func (a *App) Run(ctx context.Context, sub *playback.Subscription) error {
	ctx, a.cancelFunc = context.WithCancel(ctx)

	a.syncFromOrchestrator()
	go a.handleEvents(ctx, sub)

	if err := a.app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}

// syncFromOrchestrator seeds the display with current state so a TUI
// attached mid-playback does not start blank.
func (a *App) syncFromOrchestrator() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.queue = a.orch.Queue()
	a.track = a.orch.CurrentTrack()
	a.playing = a.orch.IsPlaying()
	a.position = a.orch.Position()
	a.duration = a.orch.Duration()
	if a.queue != nil {
		a.repeatMode = a.queue.RepeatMode
		a.shuffled = a.queue.Shuffled
	}
}

// handleEvents consumes subscription events and refreshes the display.
// It splits work into two goroutines: one consumes events (state only),
// and a single ticker drives all redraws to prevent queued redraw buildup.
// All shared App fields are protected by a.mu.
func (a *App) handleEvents(ctx context.Context, sub *playback.Subscription) {
	// Event consumer goroutine: updates state but does NOT trigger
	// redraws. The ticker goroutine is the sole caller of refresh().
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.Done:
				return
			case e := <-sub.TrackChanged:
				a.mu.Lock()
				a.track = e.Current
				a.position = 0
				a.mu.Unlock()
			case e := <-sub.StateChanged:
				a.mu.Lock()
				a.playing = e.Playing
				a.mu.Unlock()
			case e := <-sub.PositionChanged:
				a.mu.Lock()
				a.position = e.Position
				a.duration = e.Duration
				a.mu.Unlock()
			case e := <-sub.QueueChanged:
				a.mu.Lock()
				a.queue = e.Queue
				a.mu.Unlock()
			case e := <-sub.ModeChanged:
				a.mu.Lock()
				a.repeatMode = e.RepeatMode
				a.shuffled = e.Shuffled
				a.mu.Unlock()
			}
		}
	}()

	// Single refresh ticker: the only source of redraws
	refreshRate := a.config.RefreshRate
	if refreshRate <= 0 {
		refreshRate = 500 * time.Millisecond
	}
	ticker := time.NewTicker(refreshRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.app.Stop()
			return
		case <-ticker.C:
			a.refresh()
		}
	}
}

// refresh updates all UI components
func (a *App) refresh() {
	a.app.QueueUpdateDraw(func() {
		a.mu.Lock()
		defer a.mu.Unlock()

		a.updateNowPlaying()
		a.updateProgress()
		a.updateQueueList()
	})
}

// updateNowPlaying updates the now playing panel
func (a *App) updateNowPlaying() {
	var text string

	if a.track == nil {
		text = "\n[gray]Nothing queued[-]"
	} else {
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("[white::b]%s[-:-:-]\n", tview.Escape(a.track.Title)))
		sb.WriteString(fmt.Sprintf("[yellow]%s[-]\n", tview.Escape(a.track.Artist)))
		sb.WriteString(fmt.Sprintf("[gray]%s[-]\n", tview.Escape(a.track.ReleaseTitle)))

		stateIcon := "[yellow]⏸[-]" // Pause icon
		if a.playing {
			stateIcon = "[green]▶[-]" // Play triangle
		}
		sb.WriteString(stateIcon)
		sb.WriteString(a.modeIndicators())
		text = sb.String()
	}

	if text != a.lastNowPlaying {
		a.lastNowPlaying = text
		a.nowPlaying.SetText(text)
	}
}

// modeIndicators renders repeat and shuffle badges next to the state
// icon. Must be called with a.mu held.
func (a *App) modeIndicators() string {
	var sb strings.Builder
	switch a.repeatMode {
	case queue.RepeatQueue:
		sb.WriteString("  [blue]repeat[-]")
	case queue.RepeatTrack:
		sb.WriteString("  [blue]repeat one[-]")
	}
	if a.shuffled {
		sb.WriteString("  [blue]shuffle[-]")
	}
	return sb.String()
}

// updateProgress updates the progress bar
func (a *App) updateProgress() {
	var text string

	if a.track != nil {
		_, _, width, _ := a.progress.GetInnerRect()
		barWidth := width - 14 // Account for time display
		// Only update cached width when GetInnerRect returns a positive
		// value, avoiding flicker from transient zero-width during layout.
		if barWidth > 0 {
			a.lastBarWidth = barWidth
		}
		if a.lastBarWidth < 10 {
			a.lastBarWidth = 10
		}

		progressBar := buildProgressBar(a.position, a.duration, a.lastBarWidth)
		posStr := formatDuration(a.position)
		durStr := formatDuration(a.duration)
		text = fmt.Sprintf("%s %s %s", posStr, progressBar, durStr)
	}

	if text != a.lastProgress {
		a.lastProgress = text
		a.progress.SetText(text)
	}
}

// updateQueueList rebuilds the queue panel when the queue changes and
// keeps the current-track highlight in sync.
func (a *App) updateQueueList() {
	if a.queue == nil {
		if a.lastQueueID != "" {
			a.queueList.Clear()
			a.lastQueueID = ""
			a.lastQueueIndex = -1
		}
		return
	}

	if a.queue.ID != a.lastQueueID || a.queueList.GetItemCount() != a.queue.Len() {
		a.queueList.Clear()
		_, _, width, _ := a.queueList.GetInnerRect()
		for i, t := range a.queue.Tracks {
			a.queueList.AddItem(queueLine(i, t, width), "", 0, nil)
		}
		a.lastQueueID = a.queue.ID
		a.lastQueueIndex = -1
	}

	if a.queue.CurrentIndex != a.lastQueueIndex && a.queue.CurrentIndex < a.queueList.GetItemCount() {
		a.queueList.SetCurrentItem(a.queue.CurrentIndex)
		a.lastQueueIndex = a.queue.CurrentIndex
	}
}

// queueLine formats one queue entry, truncated to the panel width.
func queueLine(index int, t queue.Track, width int) string {
	line := fmt.Sprintf("%2d. %s", index+1, t.Title)
	if t.Artist != "" {
		line += " - " + t.Artist
	}
	if width > 4 {
		line = runewidth.Truncate(line, width-1, "…")
	}
	return tview.Escape(line)
}

// Stop stops the TUI application
func (a *App) Stop() {
	if a.cancelFunc != nil {
		a.cancelFunc()
	}
	a.app.Stop()
}

// buildProgressBar creates a text-based progress bar
func buildProgressBar(position, duration time.Duration, width int) string {
	if duration == 0 || width <= 0 {
		return strings.Repeat("-", width)
	}

	progress := float64(position) / float64(duration)
	if progress > 1 {
		progress = 1
	}
	if progress < 0 {
		progress = 0
	}

	filled := int(progress * float64(width))
	empty := width - filled

	bar := "[green]" + strings.Repeat("█", filled) + "[-]" +
		"[gray]" + strings.Repeat("░", empty) + "[-]"

	return bar
}

// formatDuration formats a duration as MM:SS or HH:MM:SS for longer durations
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
