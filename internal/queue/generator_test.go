package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/tonearm/tonearm/pkg/catalog"
)

// fakeSource is an in-memory MetadataSource.
type fakeSource struct {
	release    *catalog.Release
	releaseErr error
	tracks     []catalog.Track
	tracksErr  error
}

func (f *fakeSource) GetRelease(ctx context.Context, id int64) (*catalog.Release, error) {
	if f.releaseErr != nil {
		return nil, f.releaseErr
	}
	return f.release, nil
}

func (f *fakeSource) ListAllTracks(ctx context.Context) ([]catalog.Track, error) {
	if f.tracksErr != nil {
		return nil, f.tracksErr
	}
	return f.tracks, nil
}

func TestFromRelease_SortsByTrackNumber(t *testing.T) {
	// Tracks arrive in scrambled fetch order with numbers [2, 1, 3].
	source := &fakeSource{
		release: &catalog.Release{
			ID:     42,
			Title:  "Night Drives",
			Artist: catalog.Artist{Username: "mara"},
			Tracks: []catalog.Track{
				{ID: 20, Title: "Second", TrackNumber: 2},
				{ID: 10, Title: "First", TrackNumber: 1},
				{ID: 30, Title: "Third", TrackNumber: 3},
			},
		},
	}

	gen := NewGenerator(source, nil)
	q, err := gen.FromRelease(context.Background(), 42)
	if err != nil {
		t.Fatalf("FromRelease: %v", err)
	}

	wantIDs := []int64{10, 20, 30}
	for i, id := range wantIDs {
		if q.Tracks[i].ID != id {
			t.Errorf("position %d: got track %d, want %d", i, q.Tracks[i].ID, id)
		}
	}

	if q.CurrentIndex != 0 {
		t.Errorf("expected cursor at 0, got %d", q.CurrentIndex)
	}
	if q.Shuffled {
		t.Error("release queues must not start shuffled")
	}
	if q.RepeatMode != RepeatNone {
		t.Errorf("expected repeat none, got %s", q.RepeatMode)
	}
	if q.Source.Kind != SourceRelease || q.Source.ID != 42 || q.Source.Name != "Night Drives" {
		t.Errorf("unexpected provenance: %+v", q.Source)
	}
	for _, track := range q.Tracks {
		if track.AddedFrom != OriginRelease {
			t.Errorf("track %d tagged %s, want %s", track.ID, track.AddedFrom, OriginRelease)
		}
		if track.Artist != "mara" {
			t.Errorf("track %d artist %q, want mara", track.ID, track.Artist)
		}
		if track.ReleaseID != 42 {
			t.Errorf("track %d release id %d, want 42", track.ID, track.ReleaseID)
		}
	}
}

func TestFromRelease_FetchError(t *testing.T) {
	fetchErr := &catalog.Error{StatusCode: 502}
	gen := NewGenerator(&fakeSource{releaseErr: fetchErr}, nil)

	_, err := gen.FromRelease(context.Background(), 1)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, fetchErr) {
		t.Errorf("expected wrapped catalog error, got %v", err)
	}
}

func TestShuffleAll_IsPermutation(t *testing.T) {
	tracks := make([]catalog.Track, 0, 50)
	for i := int64(1); i <= 50; i++ {
		tracks = append(tracks, catalog.Track{
			ID:    i,
			Title: "Track",
			Release: &catalog.ReleaseRef{
				ID:     i % 5,
				Title:  "Release",
				Artist: catalog.Artist{Username: "someone"},
			},
		})
	}

	gen := NewGenerator(&fakeSource{tracks: tracks}, nil)
	q, err := gen.ShuffleAll(context.Background())
	if err != nil {
		t.Fatalf("ShuffleAll: %v", err)
	}

	if !q.Shuffled {
		t.Error("expected Shuffled flag set")
	}
	if q.CurrentIndex != 0 {
		t.Errorf("expected cursor at 0, got %d", q.CurrentIndex)
	}
	if q.Source.Kind != SourceShuffleAll {
		t.Errorf("unexpected provenance kind %s", q.Source.Kind)
	}

	if q.Len() != len(tracks) {
		t.Fatalf("expected %d tracks, got %d", len(tracks), q.Len())
	}
	seen := make(map[int64]bool, q.Len())
	for _, track := range q.Tracks {
		if seen[track.ID] {
			t.Fatalf("track %d duplicated by shuffle", track.ID)
		}
		seen[track.ID] = true
		if track.AddedFrom != OriginShuffle {
			t.Errorf("track %d tagged %s, want %s", track.ID, track.AddedFrom, OriginShuffle)
		}
	}
}

func TestFromPlaylist_NotImplemented(t *testing.T) {
	gen := NewGenerator(&fakeSource{}, nil)

	_, err := gen.FromPlaylist(context.Background(), 1)
	if !errors.Is(err, ErrNotImplemented) {
		t.Errorf("expected ErrNotImplemented, got %v", err)
	}

	// Must stay distinguishable from a fetch failure.
	var apiErr *catalog.Error
	if errors.As(err, &apiErr) {
		t.Error("ErrNotImplemented must not look like a catalog error")
	}
}

func TestFromTracks(t *testing.T) {
	tracks := makeTracks(2)
	gen := NewGenerator(&fakeSource{}, nil)

	q := gen.FromTracks(tracks, "Search: night")
	if q.Len() != 2 {
		t.Fatalf("expected 2 tracks, got %d", q.Len())
	}
	if q.CurrentIndex != 0 || q.Shuffled || q.RepeatMode != RepeatNone {
		t.Errorf("unexpected initial state: %+v", q)
	}
	if q.Source.Kind != SourceSearch || q.Source.Name != "Search: night" {
		t.Errorf("unexpected provenance: %+v", q.Source)
	}
}
