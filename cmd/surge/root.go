package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/surge-downloader/surge/internal/config"
	"github.com/surge-downloader/surge/internal/logging"
	"github.com/surge-downloader/surge/internal/resumestore"
)

// Version and BuildTime are set via ldflags during release builds.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// store is the shared resume-state handle every subcommand reads and
// writes through; opened once in rootCmd's PersistentPreRunE and closed
// on exit.
var store resumestore.Store

var rootCmd = &cobra.Command{
	Use:     "surge",
	Short:   "A fast, resumable, parallel HTTP downloader",
	Long:    `Surge splits a download into byte-range chunks pulled by a pool of workers, persists progress so an interrupted download can resume exactly where it left off, and exposes its state through get/ls/status/pause/resume/rm.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.EnsureDirs(); err != nil {
			return fmt.Errorf("surge: preparing config directory: %w", err)
		}
		logging.ConfigureDebug(config.GetLogsDir())
		logging.CleanupLogs(10)

		s, err := resumestore.Open(config.GetDBPath())
		if err != nil {
			return fmt.Errorf("surge: opening resume store: %w", err)
		}
		store = s
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			store.Close()
		}
	},
}

// Execute runs the root command, exiting the process with a non-zero
// status on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = fmt.Sprintf("%s (built %s)", Version, BuildTime)
}
