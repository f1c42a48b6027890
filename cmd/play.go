package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tonearm/tonearm/pkg/catalog"
)

var (
	playStartTrack int
	playNoAutoplay bool
)

// playCmd represents the play command
var playCmd = &cobra.Command{
	Use:   "play <release-id>",
	Short: "Play a release",
	Long: `Play a release from the music site.

Fetches the release metadata, builds a playback queue over its tracks in
track order, and opens the player TUI. Playback starts immediately
unless --no-autoplay is given.

Use --start-track to begin at a track other than the first (1-based).`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().IntVar(&playStartTrack, "start-track", 1, "Track number to start at (1-based)")
	playCmd.Flags().BoolVar(&playNoAutoplay, "no-autoplay", false, "Queue the release without starting playback")
}

func runPlay(cmd *cobra.Command, args []string) error {
	releaseID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid release id %q", args[0])
	}

	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := context.Background()

	q, err := s.generator.FromRelease(ctx, releaseID)
	if err != nil {
		var catErr *catalog.Error
		if errors.As(err, &catErr) && catErr.StatusCode == 404 {
			return fmt.Errorf("release %d not found", releaseID)
		}
		return err
	}

	if playStartTrack > 1 {
		if adjusted, ok := q.WithIndex(playStartTrack - 1); ok {
			q = adjusted
		} else {
			return fmt.Errorf("release has %d tracks, cannot start at track %d", q.Len(), playStartTrack)
		}
	}

	if err := s.orch.SetQueue(ctx, q, !playNoAutoplay); err != nil {
		s.logger.Error().Err(err).Msg("Failed to start playback")
	}

	return s.run(ctx)
}
