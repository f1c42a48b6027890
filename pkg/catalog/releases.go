package catalog

import (
	"context"
	"fmt"
	"net/http"
)

// GetRelease fetches a release and its tracks.
//
// The server returns tracks in storage order, which is not guaranteed to
// match track numbering; callers that need playback order must sort by
// TrackNumber.
func (c *Client) GetRelease(ctx context.Context, id int64) (*Release, error) {
	if id <= 0 {
		return nil, fmt.Errorf("catalog: release id must be positive, got %d", id)
	}

	var release Release
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/releases/%d", id), nil, &release); err != nil {
		return nil, err
	}

	return &release, nil
}
