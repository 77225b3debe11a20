package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// listRow is the shape printed by both the table and --json renderers.
type listRow struct {
	ID         string  `json:"id"`
	Filename   string  `json:"filename"`
	Status     string  `json:"status"`
	Progress   float64 `json:"progress"`
	TotalSize  uint64  `json:"total_size"`
	Downloaded uint64  `json:"downloaded"`
}

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List downloads",
	Long:  `List every download known to the resume store, whether finished, paused, or in progress.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		watch, _ := cmd.Flags().GetBool("watch")

		if watch {
			for {
				fmt.Print("\033[H\033[2J")
				if err := printDownloads(jsonOutput); err != nil {
					return err
				}
				time.Sleep(time.Second)
			}
		}
		return printDownloads(jsonOutput)
	},
}

func printDownloads(jsonOutput bool) error {
	entries, err := store.List()
	if err != nil {
		return fmt.Errorf("listing downloads: %w", err)
	}

	rows := make([]listRow, 0, len(entries))
	for _, e := range entries {
		var pct float64
		var downloaded uint64
		if e.Progress != nil {
			downloaded = e.Progress.Total()
		}
		if e.TotalSize > 0 {
			pct = float64(downloaded) * 100 / float64(e.TotalSize)
		}
		rows = append(rows, listRow{
			ID:         e.ID,
			Filename:   e.FileName,
			Status:     string(e.Status),
			Progress:   pct,
			TotalSize:  e.TotalSize,
			Downloaded: downloaded,
		})
	}

	if jsonOutput {
		data, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	if len(rows) == 0 {
		fmt.Println("No downloads found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFILENAME\tSTATUS\tPROGRESS\tSIZE")
	fmt.Fprintln(w, "--\t--------\t------\t--------\t----")
	for _, r := range rows {
		filename := r.Filename
		if len(filename) > 30 {
			filename = filename[:27] + "..."
		}
		size := "-"
		if r.TotalSize > 0 {
			size = humanize.Bytes(r.TotalSize)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.1f%%\t%s\n", shortID(r.ID), filename, r.Status, r.Progress, size)
	}
	return w.Flush()
}

func init() {
	rootCmd.AddCommand(lsCmd)
	lsCmd.Flags().Bool("json", false, "output in JSON")
	lsCmd.Flags().Bool("watch", false, "refresh every second")
}
