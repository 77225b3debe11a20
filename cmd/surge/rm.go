package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"remove"},
	Short:   "Remove a download's resume state",
	Long:    `Removes a download's entry from the resume store (the partially or fully downloaded file on disk is left untouched). Use --clean to remove every completed entry at once.`,
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		clean, _ := cmd.Flags().GetBool("clean")
		if !clean && len(args) == 0 {
			return fmt.Errorf("provide a download ID or use --clean")
		}

		if clean {
			n, err := store.DeleteCompleted()
			if err != nil {
				return fmt.Errorf("cleaning completed downloads: %w", err)
			}
			fmt.Printf("Removed %d completed downloads.\n", n)
			return nil
		}

		entry, err := resolveID(args[0])
		if err != nil {
			return err
		}
		if err := store.Delete(entry.FilePath); err != nil {
			return fmt.Errorf("removing %s: %w", shortID(entry.ID), err)
		}
		fmt.Printf("Removed %s\n", shortID(entry.ID))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rmCmd)
	rmCmd.Flags().Bool("clean", false, "remove every completed entry")
}
