package main

import (
	"fmt"
	"os"
	"runtime"

	"media-curator/internal/logging"
	"media-curator/internal/startup"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "mediaindex",
		Short: "Index photo and video files into asset records",
		Long: `mediaindex walks a directory, fingerprints every photo and video it finds
and prints a summary of the resulting asset records.

Records can be written to a catalog database (--db) or printed as the
JSON terminal event (--json). Ctrl+C cancels the run and keeps the records
produced so far.`,
		Version:      startup.Version,
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			// Session logs would break the progress line; only warnings
			// are shown unless --verbose is set.
			if verbose {
				logging.SetLevel(logging.LevelDebug)
			} else if os.Getenv("LOG_LEVEL") == "" {
				logging.SetLevel(logging.LevelWarn)
			}
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	root.SetVersionTemplate(fmt.Sprintf(
		"mediaindex %s (%s, %s/%s, %s)\n",
		startup.Version, startup.Commit, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	))

	root.AddCommand(newIndexCmd())
	return root
}
