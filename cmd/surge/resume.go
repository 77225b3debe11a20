package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/surge-downloader/surge/internal/resume"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <id>",
	Short: "Mark a paused download as queued",
	Long:  `Flips a paused download's status back to queued so the next "surge get <url>" against the same destination continues it. Use --all to requeue every paused download.`,
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
				if e.Status != resume.StatusPaused {
					continue
				}
				if err := store.UpdateStatus(e.FilePath, resume.StatusQueued); err != nil {
					return fmt.Errorf("resuming %s: %w", shortID(e.ID), err)
				}
				n++
			}
			fmt.Printf("Requeued %d downloads. Run \"surge get <url>\" to continue each.\n", n)
			return nil
		}

		entry, err := resolveID(args[0])
		if err != nil {
			return err
		}
		if err := store.UpdateStatus(entry.FilePath, resume.StatusQueued); err != nil {
			return fmt.Errorf("resuming %s: %w", shortID(entry.ID), err)
		}
		fmt.Printf("Requeued %s. Run \"surge get %s\" to continue.\n", shortID(entry.ID), entry.SourceURL)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resumeCmd)
	resumeCmd.Flags().Bool("all", false, "requeue every paused download")
}
