package mpris

import (
	"context"
	"time"

	"github.com/godbus/dbus/v5"
)

// rootHandler implements org.mpris.MediaPlayer2. There is no window to
// raise and quitting is the terminal's job, so both are no-ops.
type rootHandler struct {
	s *Service
}

func (h rootHandler) Raise() *dbus.Error { return nil }
func (h rootHandler) Quit() *dbus.Error  { return nil }

// playerHandler implements org.mpris.MediaPlayer2.Player by relaying
// into the orchestrator. Errors are logged rather than surfaced: a media
// key press has no caller to report to.
type playerHandler struct {
	s *Service
}

func (h playerHandler) Play() *dbus.Error {
	if err := h.s.orch.Play(context.Background()); err != nil {
		h.s.log.Warn().Err(err).Msg("Play from bus failed")
	}
	return nil
}

func (h playerHandler) Pause() *dbus.Error {
	h.s.orch.Pause()
	return nil
}

func (h playerHandler) PlayPause() *dbus.Error {
	if err := h.s.orch.TogglePlayPause(context.Background()); err != nil {
		h.s.log.Warn().Err(err).Msg("PlayPause from bus failed")
	}
	return nil
}

func (h playerHandler) Stop() *dbus.Error {
	h.s.orch.Pause()
	if err := h.s.orch.SeekTo(0); err != nil {
		h.s.log.Debug().Err(err).Msg("Stop seek failed")
	}
	return nil
}

func (h playerHandler) Next() *dbus.Error {
	if err := h.s.orch.Next(context.Background()); err != nil {
		h.s.log.Warn().Err(err).Msg("Next from bus failed")
	}
	return nil
}

func (h playerHandler) Previous() *dbus.Error {
	if err := h.s.orch.Previous(context.Background()); err != nil {
		h.s.log.Warn().Err(err).Msg("Previous from bus failed")
	}
	return nil
}

// Seek moves the position by a relative offset in microseconds.
func (h playerHandler) Seek(offset int64) *dbus.Error {
	target := h.s.orch.Position() + time.Duration(offset)*time.Microsecond
	if target < 0 {
		target = 0
	}
	if err := h.s.orch.SeekTo(target); err != nil {
		h.s.log.Debug().Err(err).Msg("Seek from bus failed")
	}
	return nil
}

// SetPosition seeks to an absolute position in microseconds. The track
// id guards against seeking within a track that has already changed.
func (h playerHandler) SetPosition(trackID dbus.ObjectPath, position int64) *dbus.Error {
	cur := h.s.orch.CurrentTrack()
	if cur == nil || trackPath(cur.ID) != trackID {
		return nil
	}
	target := clampPosition(time.Duration(position)*time.Microsecond, h.s.orch.Duration())
	if err := h.s.orch.SeekTo(target); err != nil {
		h.s.log.Debug().Err(err).Msg("SetPosition from bus failed")
	}
	return nil
}

// OpenUri is part of the interface but external URIs are not supported.
func (h playerHandler) OpenUri(uri string) *dbus.Error { return nil }
