package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <id>",
	Short: "Show the detailed status of a single download",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entry, err := resolveID(args[0])
		if err != nil {
			return err
		}

		var downloaded uint64
		if entry.Progress != nil {
			downloaded = entry.Progress.Total()
		}
		var pct float64
		if entry.TotalSize > 0 {
			pct = float64(downloaded) * 100 / float64(entry.TotalSize)
		}

		fmt.Printf("ID:         %s\n", entry.ID)
		fmt.Printf("File:       %s\n", entry.FileName)
		fmt.Printf("Path:       %s\n", entry.FilePath)
		fmt.Printf("Source:     %s\n", entry.SourceURL)
		fmt.Printf("Status:     %s\n", entry.Status)
		fmt.Printf("Progress:   %.1f%% (%s / %s)\n", pct, humanize.Bytes(downloaded), humanize.Bytes(entry.TotalSize))
		fmt.Printf("Elapsed:    %s\n", time.Duration(entry.ElapsedMs)*time.Millisecond)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
