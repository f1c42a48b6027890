package queue

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"github.com/tonearm/tonearm/pkg/catalog"
)

// ErrNotImplemented is returned for queue sources that are reserved but
// not yet supported. It is deliberately distinct from fetch failures so
// callers do not misattribute it to a network problem.
var ErrNotImplemented = errors.New("queue: playlist queues are not implemented")

// MetadataSource is the slice of the catalog API the generator needs.
// *catalog.Client satisfies it.
type MetadataSource interface {
	GetRelease(ctx context.Context, id int64) (*catalog.Release, error)
	ListAllTracks(ctx context.Context) ([]catalog.Track, error)
}

// Generator builds playback queues from external data sources.
type Generator struct {
	source MetadataSource
	rng    *rand.Rand
}

// NewGenerator creates a generator over the given metadata source.
// rng may be nil, in which case the shared math/rand source is used.
func NewGenerator(source MetadataSource, rng *rand.Rand) *Generator {
	return &Generator{source: source, rng: rng}
}

// FromRelease fetches a release and builds a queue over its tracks in
// track-number order. Fetch order is not trusted: the server returns
// storage order, which can differ from track numbering.
func (g *Generator) FromRelease(ctx context.Context, releaseID int64) (Queue, error) {
	release, err := g.source.GetRelease(ctx, releaseID)
	if err != nil {
		return Queue{}, fmt.Errorf("failed to fetch release %d: %w", releaseID, err)
	}

	tracks := make([]Track, 0, len(release.Tracks))
	for _, t := range release.Tracks {
		tracks = append(tracks, trackFromRelease(t, release))
	}
	sort.SliceStable(tracks, func(i, j int) bool {
		return tracks[i].TrackNumber < tracks[j].TrackNumber
	})

	return New(tracks, Source{
		Kind: SourceRelease,
		ID:   releaseID,
		Name: release.Title,
	}), nil
}

// ShuffleAll fetches the entire catalog and builds a fully shuffled queue
// over it.
func (g *Generator) ShuffleAll(ctx context.Context) (Queue, error) {
	catalogTracks, err := g.source.ListAllTracks(ctx)
	if err != nil {
		return Queue{}, fmt.Errorf("failed to fetch track catalog: %w", err)
	}

	tracks := make([]Track, 0, len(catalogTracks))
	for _, t := range catalogTracks {
		tracks = append(tracks, trackFromCatalog(t, OriginShuffle))
	}
	shuffleTracks(tracks, g.rng)

	q := New(tracks, Source{Kind: SourceShuffleAll, Name: "Shuffle All"})
	q.Shuffled = true
	return q, nil
}

// FromPlaylist is reserved for playlist playback.
func (g *Generator) FromPlaylist(ctx context.Context, playlistID int64) (Queue, error) {
	return Queue{}, ErrNotImplemented
}

// FromTracks wraps an already-assembled track list into a queue. Used for
// ad hoc "play this now" actions where the metadata is in hand.
func (g *Generator) FromTracks(tracks []Track, sourceName string) Queue {
	return New(tracks, Source{Kind: SourceSearch, Name: sourceName})
}
