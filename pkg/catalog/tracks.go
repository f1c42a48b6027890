package catalog

import (
	"context"
	"fmt"
	"net/http"
)

// ListAllTracks fetches the entire track catalog as a flat list with
// embedded release and artist info. Used to build shuffle-all queues.
func (c *Client) ListAllTracks(ctx context.Context) ([]Track, error) {
	var tracks []Track
	if err := c.do(ctx, http.MethodGet, "/api/tracks/all", nil, &tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

// SubmitListen reports a completed play of a track so the site can update
// its listen counters.
func (c *Client) SubmitListen(ctx context.Context, listen Listen) error {
	if listen.TrackID <= 0 {
		return fmt.Errorf("catalog: track id must be positive, got %d", listen.TrackID)
	}

	payload := listenPayload{
		PlayedAt:      listen.PlayedAt,
		SecondsPlayed: int64(listen.Played.Seconds()),
	}

	path := fmt.Sprintf("/api/tracks/%d/listens", listen.TrackID)
	return c.do(ctx, http.MethodPost, path, payload, nil)
}
