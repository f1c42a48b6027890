package queue

import (
	"time"

	"github.com/tonearm/tonearm/pkg/catalog"
)

// Origin records which kind of user action put a track into a queue.
type Origin string

const (
	OriginRelease  Origin = "release"
	OriginPlaylist Origin = "playlist"
	OriginSearch   Origin = "search"
	OriginShuffle  Origin = "shuffle"
)

// Track is a denormalized, playback-ready track reference.
//
// It carries everything a player surface needs without further lookups.
// Tracks are value types: once constructed they are never mutated, only
// copied into new queues.
type Track struct {
	ID           int64
	Title        string
	Artist       string
	TrackNumber  int
	FileURL      string
	Duration     time.Duration // 0 until the audio has been probed
	ReleaseID    int64
	ReleaseTitle string
	ListenCount  int64
	ArtworkURL   string
	AddedFrom    Origin
}

// trackFromRelease maps a catalog track nested in a release payload.
func trackFromRelease(t catalog.Track, r *catalog.Release) Track {
	return Track{
		ID:           t.ID,
		Title:        t.Title,
		Artist:       r.Artist.Name(),
		TrackNumber:  t.TrackNumber,
		FileURL:      t.FileURL,
		Duration:     secondsToDuration(t.Duration),
		ReleaseID:    r.ID,
		ReleaseTitle: r.Title,
		ListenCount:  t.ListenCount,
		ArtworkURL:   firstNonEmpty(t.ArtworkURL, r.ArtworkURL),
		AddedFrom:    OriginRelease,
	}
}

// trackFromCatalog maps a flat catalog track with embedded release info.
func trackFromCatalog(t catalog.Track, origin Origin) Track {
	track := Track{
		ID:          t.ID,
		Title:       t.Title,
		TrackNumber: t.TrackNumber,
		FileURL:     t.FileURL,
		Duration:    secondsToDuration(t.Duration),
		ListenCount: t.ListenCount,
		ArtworkURL:  t.ArtworkURL,
		AddedFrom:   origin,
	}
	if t.Release != nil {
		track.Artist = t.Release.Artist.Name()
		track.ReleaseID = t.Release.ID
		track.ReleaseTitle = t.Release.Title
		if track.ArtworkURL == "" {
			track.ArtworkURL = t.Release.ArtworkURL
		}
	}
	return track
}

func secondsToDuration(seconds *float64) time.Duration {
	if seconds == nil {
		return 0
	}
	return time.Duration(*seconds * float64(time.Second))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
