package history

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tonearm/tonearm/internal/playback"
	"github.com/tonearm/tonearm/pkg/catalog"
)

const (
	flushInterval = 30 * time.Second
	flushBatch    = 50
	retention     = 30 * 24 * time.Hour
)

// Submitter delivers a listen to the catalog. *catalog.Client satisfies
// it.
type Submitter interface {
	SubmitListen(ctx context.Context, listen catalog.Listen) error
}

// Recorder persists listen events and flushes them to the catalog in the
// background. Delivery failures stay in the store and are retried on the
// next flush.
type Recorder struct {
	store     *Store
	submitter Submitter
	log       zerolog.Logger
}

// NewRecorder creates a recorder over the given store and submitter.
func NewRecorder(store *Store, submitter Submitter, logger zerolog.Logger) *Recorder {
	return &Recorder{
		store:     store,
		submitter: submitter,
		log:       logger.With().Str("component", "history").Logger(),
	}
}

// Record persists a listen event.
func (r *Recorder) Record(ctx context.Context, e playback.ListenEvent) error {
	_, err := r.store.Add(ctx, Listen{
		TrackID:    e.Track.ID,
		Title:      e.Track.Title,
		Artist:     e.Track.Artist,
		Played:     e.Played,
		ListenedAt: e.PlayedAt,
	})
	return err
}

// Run consumes listen events from the subscription and periodically
// flushes pending listens until the context is cancelled or the
// subscription is closed. A final flush runs on the way out.
func (r *Recorder) Run(ctx context.Context, sub *playback.Subscription) error {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	r.flush(ctx)

	for {
		select {
		case <-ctx.Done():
			r.log.Debug().Msg("Flushing listens before shutdown")
			r.flush(context.Background())
			return ctx.Err()
		case <-sub.Done:
			r.flush(ctx)
			return nil
		case e := <-sub.Listens:
			if err := r.Record(ctx, e); err != nil {
				r.log.Error().Err(err).Str("track", e.Track.Title).Msg("Failed to record listen")
				continue
			}
			r.log.Debug().Str("track", e.Track.Title).Msg("Listen recorded")
		case <-ticker.C:
			r.flush(ctx)
			if _, err := r.store.Cleanup(ctx, retention); err != nil {
				r.log.Error().Err(err).Msg("Failed to cleanup old listens")
			}
		}
	}
}

// flush submits pending listens. Failures are recorded per listen and do
// not abort the batch.
func (r *Recorder) flush(ctx context.Context) {
	pending, err := r.store.GetPending(ctx, flushBatch)
	if err != nil {
		r.log.Error().Err(err).Msg("Failed to get pending listens")
		return
	}
	if len(pending) == 0 {
		return
	}

	r.log.Debug().Int("count", len(pending)).Msg("Submitting pending listens")

	for _, l := range pending {
		err := r.submitter.SubmitListen(ctx, catalog.Listen{
			TrackID:  l.TrackID,
			PlayedAt: l.ListenedAt,
			Played:   l.Played,
		})
		if err != nil {
			r.log.Warn().
				Err(err).
				Int64("id", l.ID).
				Str("track", l.Title).
				Msg("Failed to submit listen")
			if markErr := r.store.MarkError(ctx, l.ID, err.Error()); markErr != nil {
				r.log.Error().Err(markErr).Msg("Failed to mark listen error")
			}
			continue
		}
		if markErr := r.store.MarkSubmitted(ctx, l.ID); markErr != nil {
			r.log.Error().Err(markErr).Msg("Failed to mark listen submitted")
		}
	}
}
