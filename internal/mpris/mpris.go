// Package mpris publishes playback state on the session bus using the
// org.mpris.MediaPlayer2 interfaces, which is what desktop environments
// and media keys speak on Linux. The adapter is stateless: it mirrors
// orchestrator events onto bus properties and relays bus commands back
// into orchestrator calls.
package mpris

import (
	"context"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"
	"github.com/rs/zerolog"

	"github.com/tonearm/tonearm/internal/playback"
	"github.com/tonearm/tonearm/internal/queue"
)

const (
	busName         = "org.mpris.MediaPlayer2.tonearm"
	objectPath      = dbus.ObjectPath("/org/mpris/MediaPlayer2")
	rootInterface   = "org.mpris.MediaPlayer2"
	playerInterface = "org.mpris.MediaPlayer2.Player"
)

// Service mirrors playback state onto the session bus.
type Service struct {
	orch *playback.Orchestrator
	log  zerolog.Logger

	conn  *dbus.Conn
	props *prop.Properties

	// duration of the current track, for clamping reported positions.
	duration time.Duration
}

// New creates a service over the orchestrator. Nothing connects until
// Run.
func New(orch *playback.Orchestrator, logger zerolog.Logger) *Service {
	return &Service{
		orch: orch,
		log:  logger.With().Str("component", "mpris").Logger(),
	}
}

// Run connects to the session bus and relays events until the context is
// cancelled or the subscription is closed. Without a session bus the
// service degrades to a no-op so headless environments keep working.
func (s *Service) Run(ctx context.Context, sub *playback.Subscription) error {
	if err := s.connect(); err != nil {
		s.log.Warn().Err(err).Msg("Session bus not available, media keys disabled")
		return nil
	}
	defer s.close()
	s.log.Info().Str("name", busName).Msg("Registered on session bus")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sub.Done:
			return nil
		case e := <-sub.TrackChanged:
			s.handleTrackChange(e)
		case e := <-sub.StateChanged:
			s.handleStateChange(e)
		case e := <-sub.PositionChanged:
			s.handlePositionChange(e)
		}
	}
}

func (s *Service) connect() error {
	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}

	if err := conn.Export(rootHandler{s}, objectPath, rootInterface); err != nil {
		conn.Close()
		return fmt.Errorf("failed to export root interface: %w", err)
	}
	if err := conn.Export(playerHandler{s}, objectPath, playerInterface); err != nil {
		conn.Close()
		return fmt.Errorf("failed to export player interface: %w", err)
	}

	props, err := prop.Export(conn, objectPath, s.propertySpec())
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to export properties: %w", err)
	}

	reply, err := conn.RequestName(busName, dbus.NameFlagReplaceExisting)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return fmt.Errorf("bus name %s already taken", busName)
	}

	s.conn = conn
	s.props = props
	return nil
}

func (s *Service) close() {
	if s.conn == nil {
		return
	}
	_, _ = s.conn.ReleaseName(busName)
	_ = s.conn.Close()
	s.conn = nil
	s.props = nil
}

func (s *Service) propertySpec() prop.Map {
	return prop.Map{
		rootInterface: {
			"CanQuit":             {Value: false, Emit: prop.EmitFalse},
			"CanRaise":            {Value: false, Emit: prop.EmitFalse},
			"HasTrackList":        {Value: false, Emit: prop.EmitFalse},
			"Identity":            {Value: "tonearm", Emit: prop.EmitFalse},
			"SupportedUriSchemes": {Value: []string{}, Emit: prop.EmitFalse},
			"SupportedMimeTypes":  {Value: []string{}, Emit: prop.EmitFalse},
		},
		playerInterface: {
			"PlaybackStatus": {Value: "Stopped", Emit: prop.EmitTrue},
			"Rate":           {Value: 1.0, Emit: prop.EmitFalse},
			"MinimumRate":    {Value: 1.0, Emit: prop.EmitFalse},
			"MaximumRate":    {Value: 1.0, Emit: prop.EmitFalse},
			"Volume":         {Value: 1.0, Emit: prop.EmitFalse},
			"Metadata":       {Value: map[string]dbus.Variant{}, Emit: prop.EmitTrue},
			"Position":       {Value: int64(0), Emit: prop.EmitFalse},
			"CanGoNext":      {Value: true, Emit: prop.EmitFalse},
			"CanGoPrevious":  {Value: true, Emit: prop.EmitFalse},
			"CanPlay":        {Value: true, Emit: prop.EmitFalse},
			"CanPause":       {Value: true, Emit: prop.EmitFalse},
			"CanSeek":        {Value: true, Emit: prop.EmitFalse},
			"CanControl":     {Value: true, Emit: prop.EmitFalse},
		},
	}
}

func (s *Service) handleTrackChange(e playback.TrackChange) {
	if e.Current == nil {
		s.duration = 0
		s.setProp("Metadata", map[string]dbus.Variant{})
		return
	}
	s.duration = e.Current.Duration
	s.setProp("Metadata", metadataForTrack(*e.Current))
	s.setProp("Position", int64(0))
}

func (s *Service) handleStateChange(e playback.StateChange) {
	status := "Paused"
	if e.Playing {
		status = "Playing"
	}
	s.setProp("PlaybackStatus", status)
}

func (s *Service) handlePositionChange(e playback.PositionChange) {
	duration := e.Duration
	if duration == 0 {
		duration = s.duration
	} else {
		s.duration = duration
	}
	s.setProp("Position", microseconds(clampPosition(e.Position, duration)))
}

func (s *Service) setProp(name string, value interface{}) {
	if s.props == nil {
		return
	}
	if err := s.props.Set(playerInterface, name, dbus.MakeVariant(value)); err != nil {
		s.log.Debug().Err(err).Str("property", name).Msg("Failed to update property")
	}
}

// metadataForTrack builds the xesam metadata map for a track.
func metadataForTrack(t queue.Track) map[string]dbus.Variant {
	m := map[string]dbus.Variant{
		"mpris:trackid": dbus.MakeVariant(trackPath(t.ID)),
		"xesam:title":   dbus.MakeVariant(t.Title),
	}
	if t.Duration > 0 {
		m["mpris:length"] = dbus.MakeVariant(microseconds(t.Duration))
	}
	if t.Artist != "" {
		m["xesam:artist"] = dbus.MakeVariant([]string{t.Artist})
	}
	if t.ReleaseTitle != "" {
		m["xesam:album"] = dbus.MakeVariant(t.ReleaseTitle)
	}
	if t.TrackNumber > 0 {
		m["xesam:trackNumber"] = dbus.MakeVariant(int32(t.TrackNumber))
	}
	if t.ArtworkURL != "" {
		m["mpris:artUrl"] = dbus.MakeVariant(t.ArtworkURL)
	}
	return m
}

func trackPath(id int64) dbus.ObjectPath {
	return dbus.ObjectPath(fmt.Sprintf("/org/tonearm/track/%d", id))
}

// clampPosition keeps reported positions within the track. Decoder
// positions can momentarily overshoot the duration at the end of a
// stream.
func clampPosition(position, duration time.Duration) time.Duration {
	if position < 0 {
		return 0
	}
	if duration > 0 && position > duration {
		return duration
	}
	return position
}

func microseconds(d time.Duration) int64 {
	return int64(d / time.Microsecond)
}
