package catalog

import (
	"time"
)

// Artist identifies the musician that owns a release.
type Artist struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
}

// Name returns the artist's display name, falling back to the username.
func (a Artist) Name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Username
}

// Release is a published collection of tracks.
type Release struct {
	ID         int64   `json:"id"`
	Title      string  `json:"title"`
	Artist     Artist  `json:"artist"`
	ArtworkURL string  `json:"artworkUrl,omitempty"`
	Tracks     []Track `json:"tracks"`
}

// ReleaseRef is the release summary embedded in flat track listings.
type ReleaseRef struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Artist     Artist `json:"artist"`
	ArtworkURL string `json:"artworkUrl,omitempty"`
}

// Track is a single playable track.
//
// Duration is nil when the server has not probed the file yet; a playback
// client learns the real duration once the audio is loaded.
//
// Release is populated in flat listings (GET /api/tracks/all) and nil for
// tracks nested inside a Release payload, where the owning release is the
// enclosing object.
type Track struct {
	ID          int64       `json:"id"`
	Title       string      `json:"title"`
	TrackNumber int         `json:"trackNumber"`
	FileURL     string      `json:"fileUrl"`
	Duration    *float64    `json:"duration"`
	ListenCount int64       `json:"listenCount"`
	ArtworkURL  string      `json:"artworkUrl,omitempty"`
	Release     *ReleaseRef `json:"release,omitempty"`
}

// Listen reports a completed play of a track.
type Listen struct {
	TrackID  int64         `json:"-"`
	PlayedAt time.Time     `json:"playedAt"`
	Played   time.Duration `json:"-"`
}

// listenPayload is the wire form of a Listen.
type listenPayload struct {
	PlayedAt      time.Time `json:"playedAt"`
	SecondsPlayed int64     `json:"secondsPlayed"`
}
