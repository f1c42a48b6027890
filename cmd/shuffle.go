package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

// shuffleCmd represents the shuffle command
var shuffleCmd = &cobra.Command{
	Use:   "shuffle",
	Short: "Shuffle the whole catalog",
	Long: `Fetch every track on the music site, build a fully shuffled queue over
them, and start playing. The queue order is fixed for the session;
reshuffle from inside the player with 's'.`,
	Args: cobra.NoArgs,
	RunE: runShuffle,
}

func init() {
	rootCmd.AddCommand(shuffleCmd)
}

func runShuffle(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := context.Background()

	if err := s.orch.PlayShuffleAll(ctx); err != nil {
		return err
	}

	return s.run(ctx)
}
