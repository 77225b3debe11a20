package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/surge-downloader/surge/internal/resume"
)

var pauseCmd = &cobra.Command{
	Use:   "pause <id>",
	Short: "Mark a download as paused",
	Long:  `Flips a download's status to paused so a future "surge get" on the same destination resumes instead of restarting. Use --all to pause every non-terminal download.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if !all && len(args) == 0 {
			return fmt.Errorf("provide a download ID or use --all")
		}

		if all {
			entries, err := store.List()
			if err != nil {
				return fmt.Errorf("listing downloads: %w", err)
			}
			n := 0
			for _, e := range entries {
				if e.Status == resume.StatusCompleted || e.Status == resume.StatusPaused {
					continue
				}
				if err := store.UpdateStatus(e.FilePath, resume.StatusPaused); err != nil {
					return fmt.Errorf("pausing %s: %w", shortID(e.ID), err)
				}
				n++
			}
			fmt.Printf("Paused %d downloads.\n", n)
			return nil
		}

		entry, err := resolveID(args[0])
		if err != nil {
			return err
		}
		if err := store.UpdateStatus(entry.FilePath, resume.StatusPaused); err != nil {
			return fmt.Errorf("pausing %s: %w", shortID(entry.ID), err)
		}
		fmt.Printf("Paused %s\n", shortID(entry.ID))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pauseCmd)
	pauseCmd.Flags().Bool("all", false, "pause every non-terminal download")
}
