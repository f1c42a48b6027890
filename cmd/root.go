package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tonearm",
	Short: "Terminal player for your music site",
	Long: `tonearm is a terminal player that streams from a self-hosted music site.

It fetches release and track metadata from the site's API, plays audio
locally with a full playback queue (shuffle, repeat, reorder), reports
listens back to the site, and integrates with desktop media keys over
MPRIS.

Start playback with 'tonearm play <release-id>' or 'tonearm shuffle'.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
