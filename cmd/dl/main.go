// Command dl downloads a single file over HTTPS in parallel, per
// spec.md §6: dl <url> <output-path> [<parallelism>].
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"

	dl "github.com/aguestuser/dl"
)

var (
	debug   bool
	timing  bool
	quiet   bool
	retries int
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "dl <url> <output-path> [parallelism]",
		Short:   "Download a file over HTTPS using concurrent ranged GETs",
		Args:    cobra.RangeArgs(2, 3),
		Version: "1.0.0",
		RunE:    run,
	}
	cmd.Flags().BoolVar(&debug, "debug", false, "log per-segment debug output to stderr")
	cmd.Flags().BoolVar(&timing, "timings", false, "log stage timing instrumentation to stderr")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "suppress the progress bar")
	cmd.Flags().IntVar(&retries, "retries", 0, "retry each ranged GET up to N times on transient failure")
	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	uri, path := args[0], args[1]

	parallelism := runtime.NumCPU()
	if len(args) == 3 {
		n, err := strconv.Atoi(args[2])
		if err != nil || n < 1 {
			return fmt.Errorf("parallelism must be a positive integer, got %q", args[2])
		}
		parallelism = n
	}

	var client dl.Client
	if retries > 0 {
		client = dl.NewRetryingClientWithExponentialBackoff(parallelism, retries, 250*time.Millisecond, 30*time.Second)
	}

	downloader := dl.NewDownloader(client, dl.DivisorPieceSizer)
	if debug {
		downloader.SetDebugLogger(log.New(os.Stderr, "dl: ", log.LstdFlags))
	}
	if timing {
		downloader.SetTimingsLogger(log.New(os.Stderr, "dl[timing]: ", log.LstdFlags))
	}

	var bar *pb.ProgressBar
	progress := make(chan int64)
	done := make(chan struct{})
	if !quiet {
		go func() {
			defer close(done)
			for n := range progress {
				if bar == nil {
					bar = pb.ProgressBarTemplate(`{{counters . }} {{bar . }} {{percent . }} {{speed . }} {{rtime . "ETA %s"}}`).Start64(0)
					bar.Set(pb.Bytes, true)
				}
				bar.Add64(n)
			}
			if bar != nil {
				bar.Finish()
			}
		}()
		downloader.SetProgress(progress)
	} else {
		close(progress)
		close(done)
	}

	result, err := downloader.Download(context.Background(), dl.Config{
		URI:         uri,
		Path:        path,
		Parallelism: parallelism,
	})
	if !quiet {
		close(progress)
		<-done
	}
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}

	if result.Integrity.Err != nil {
		fmt.Fprintf(os.Stderr, "dl: integrity check skipped: %v\n", result.Integrity.Err)
	} else if !result.Integrity.Valid {
		fmt.Fprintf(os.Stderr, "dl: warning: checksum mismatch for %s\n", path)
	}

	fmt.Printf("downloaded %d bytes to %s in %s\n", result.Metadata.Size, path, result.Elapsed)
	return nil
}
