package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/surge-downloader/surge/internal/clipboard"
	"github.com/surge-downloader/surge/internal/config"
	"github.com/surge-downloader/surge/internal/engine"
	"github.com/surge-downloader/surge/internal/filesink"
	"github.com/surge-downloader/surge/internal/httppuller"
	"github.com/surge-downloader/surge/internal/lockfile"
	"github.com/surge-downloader/surge/internal/logging"
	"github.com/surge-downloader/surge/internal/prefetch"
	"github.com/surge-downloader/surge/internal/progress"
	"github.com/surge-downloader/surge/internal/resume"
)

var getCmd = &cobra.Command{
	Use:   "get [url]",
	Short: "Download a file",
	Long:  `Downloads a file, splitting it into byte-range chunks across a worker pool when the server supports ranges. Progress is persisted continuously, so an interrupted "get" on the same destination resumes instead of restarting.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rawURL, err := resolveURL(cmd, args)
		if err != nil {
			return err
		}

		outDir, _ := cmd.Flags().GetString("output")
		threads, _ := cmd.Flags().GetInt("threads")
		if outDir == "" {
			wd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("resolving output directory: %w", err)
			}
			outDir = wd
		}
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}

		lockPath := filepath.Join(config.GetSurgeDir(), "surge.lock")
		lock, ok, err := lockfile.TryAcquire(lockPath)
		if err != nil {
			return fmt.Errorf("checking instance lock: %w", err)
		}
		if !ok {
			return fmt.Errorf("another surge instance is already downloading (lock held at %s)", lockPath)
		}
		defer lock.Release()

		return runGet(cmd.Context(), rawURL, outDir, threads)
	},
}

func resolveURL(cmd *cobra.Command, args []string) (string, error) {
	fromClipboard, _ := cmd.Flags().GetBool("clipboard")
	if !fromClipboard {
		if len(args) == 0 {
			return "", fmt.Errorf("provide a URL or use --clipboard")
		}
		return args[0], nil
	}

	found, err := clipboard.ReadURL()
	if err != nil {
		return "", fmt.Errorf("reading clipboard: %w", err)
	}
	if found == "" {
		return "", fmt.Errorf("clipboard does not contain a usable http(s) URL")
	}
	return found, nil
}

func runGet(ctx context.Context, rawURL, outDir string, threads int) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := httppuller.NewClient()
	fmt.Fprintf(os.Stderr, "Probing %s ...\n", rawURL)
	info, err := prefetch.Probe(ctx, client, rawURL)
	if err != nil {
		return fmt.Errorf("probing %s: %w", rawURL, err)
	}

	destPath := filepath.Join(outDir, info.Name)
	entry, err := store.Get(destPath)
	if err != nil {
		return fmt.Errorf("checking resume state: %w", err)
	}

	plan := resume.Evaluate(entry, info)
	switch {
	case entry != nil && len(plan.Conflicts) > 0:
		logging.Debug("get: resume conflicts for %s: %v, restarting", destPath, plan.Conflicts)
		entry = nil
	case entry != nil && !plan.ShouldResume && entry.Progress != nil && entry.TotalSize > 0 && entry.Progress.Total() >= entry.TotalSize:
		fmt.Fprintf(os.Stderr, "%s is already fully downloaded at %s\n", info.Name, entry.FilePath)
		return nil
	case entry != nil && !plan.ShouldResume:
		// Stored entry exists but can't be resumed from (a non-range
		// origin, or no progress yet) — restart at the same destination.
		entry = nil
	case entry == nil:
		destPath = uniqueFilePath(destPath)
	}
	if entry == nil {
		entry = resume.FreshEntry(destPath, info.Name, info.FinalURL, info)
	}

	sink, err := filesink.Open(destPath, uint64(info.Size))
	if err != nil {
		return fmt.Errorf("opening %s: %w", destPath, err)
	}
	defer sink.Close()

	puller := httppuller.New(client, info.FinalURL)

	opts := engine.DefaultOptions()
	if threads > 0 {
		opts.Threads = threads
	}

	var downloaded *progress.Set
	if plan.ShouldResume {
		opts.Chunks = plan.Chunks
		downloaded = plan.WriteProgress
		fmt.Fprintf(os.Stderr, "Resuming %s (%s already downloaded)\n", info.Name, humanize.Bytes(downloaded.Total()))
	} else {
		downloaded = progress.NewSet()
	}

	entry.Status = resume.StatusDownloading
	if err := store.Put(entry); err != nil {
		return fmt.Errorf("persisting resume state: %w", err)
	}

	start := time.Now()
	var stream interface {
		EventStream() <-chan engine.Event
		Join() error
		Cancel()
	}

	if info.FastDownload() {
		opts.Size = uint64(info.Size)
		stream = engine.New(puller, sink, opts)
	} else {
		opts.Size = uint64(info.Size)
		stream = engine.NewSingle(puller, sink, opts)
	}

	go func() {
		<-ctx.Done()
		stream.Cancel()
	}()

	runErr := consumeEvents(stream.EventStream(), entry, downloaded, info, start)
	if joinErr := stream.Join(); joinErr != nil && runErr == nil {
		runErr = joinErr
	}

	elapsed := uint64(time.Since(start).Milliseconds())
	if runErr != nil {
		store.Update(destPath, downloaded, elapsed)
		store.UpdateStatus(destPath, resume.StatusError)
		return fmt.Errorf("download failed: %w", runErr)
	}

	store.Update(destPath, downloaded, elapsed)
	store.UpdateStatus(destPath, resume.StatusCompleted)
	fmt.Fprintf(os.Stderr, "Downloaded %s -> %s\n", humanize.Bytes(downloaded.Total()), destPath)
	return nil
}

// consumeEvents drains the engine's event stream, folding PushProgress
// ranges into downloaded and printing progress to stderr roughly every
// 10%.
func consumeEvents(events <-chan engine.Event, entry *resume.ResumeEntry, downloaded *progress.Set, info prefetch.UrlInfo, start time.Time) error {
	lastReported := -1
	var firstErr error

	for ev := range events {
		switch ev.Kind {
		case engine.EventPushProgress:
			downloaded.Merge(ev.Range)
			if info.Size > 0 {
				pct := int(float64(downloaded.Total()) * 100 / float64(info.Size))
				if pct >= lastReported+10 {
					lastReported = pct
					elapsed := time.Since(start).Seconds()
					var speed string
					if elapsed > 0 {
						speed = humanize.Bytes(uint64(float64(downloaded.Total())/elapsed)) + "/s"
					}
					fmt.Fprintf(os.Stderr, "%3d%% (%s / %s) %s\n", pct, humanize.Bytes(downloaded.Total()), humanize.Bytes(uint64(info.Size)), speed)
					store.Update(entry.FilePath, downloaded, uint64(time.Since(start).Milliseconds()))
				}
			}
		case engine.EventPullError, engine.EventPushError, engine.EventFlushError:
			if firstErr == nil && ev.Err != nil {
				firstErr = ev.Err
			}
		case engine.EventAborted:
			if firstErr == nil {
				firstErr = fmt.Errorf("download aborted")
			}
		}
	}
	return firstErr
}

// uniqueFilePath appends (1), (2), ... to path until it names a file
// that does not yet exist.
func uniqueFilePath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}

	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	name := strings.TrimSuffix(filepath.Base(path), ext)

	base := name
	counter := 1
	if len(name) > 3 && name[len(name)-1] == ')' {
		if open := strings.LastIndexByte(name, '('); open != -1 {
			if num, err := strconv.Atoi(name[open+1 : len(name)-1]); err == nil && num > 0 {
				base = name[:open]
				counter = num + 1
			}
		}
	}

	for i := 0; i < 1000; i++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s(%d)%s", base, counter+i, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
	return path
}

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.Flags().StringP("output", "o", "", "output directory (default: current directory)")
	getCmd.Flags().IntP("threads", "t", 0, "worker count (default: engine default)")
	getCmd.Flags().Bool("clipboard", false, "read the URL from the system clipboard")
}
