package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"media-curator/internal/asset"
	"media-curator/internal/catalog"
	"media-curator/internal/database"
	"media-curator/internal/filesystem"
	"media-curator/internal/indexer"
	"media-curator/internal/mediatypes"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var errCancelled = errors.New("indexing cancelled")

type indexOptions struct {
	volumeUUID string
	mountPoint string
	cacheDir   string
	dbPath     string
	mediaTypes string
	exclude    []string
	batchSize  int
	batchDelay time.Duration
	jsonOut    bool
}

func newIndexCmd() *cobra.Command {
	opts := &indexOptions{}

	cmd := &cobra.Command{
		Use:   "index <dir>",
		Short: "Scan a directory and build asset records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigs)

			return runIndex(cmd.Context(), args[0], opts, sigs, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.volumeUUID, "volume-uuid", "", "volume identifier (default: derived from the mount point)")
	f.StringVar(&opts.mountPoint, "mount-point", "", "volume mount point (default: the indexed directory)")
	f.StringVar(&opts.cacheDir, "cache-dir", "", "cache directory (default: user cache dir)")
	f.StringVar(&opts.dbPath, "db", "", "write records to this catalog database")
	f.StringVar(&opts.mediaTypes, "media-types", "", "YAML file with video/photo extension lists")
	f.StringArrayVar(&opts.exclude, "exclude", nil, "doublestar glob to skip, relative to <dir> (repeatable)")
	f.IntVar(&opts.batchSize, "batch-size", indexer.DefaultBatchSize, "candidates per batch")
	f.DurationVar(&opts.batchDelay, "batch-delay", indexer.DefaultBatchDelay, "delay between batches")
	f.BoolVar(&opts.jsonOut, "json", false, "print the terminal event as JSON on stdout")

	return cmd
}

// buildStart fills the start command for dir, deriving any value the flags
// leave empty.
func buildStart(dir string, opts *indexOptions) (indexer.Start, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return indexer.Start{}, fmt.Errorf("resolving %s: %w", dir, err)
	}

	mount := opts.mountPoint
	if mount == "" {
		mount = absDir
	}
	if mount, err = filepath.Abs(mount); err != nil {
		return indexer.Start{}, fmt.Errorf("resolving mount point: %w", err)
	}

	volume := opts.volumeUUID
	if volume == "" {
		volume = uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.ToSlash(mount))).String()
	}

	cacheDir := opts.cacheDir
	if cacheDir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			base = os.TempDir()
		}
		cacheDir = filepath.Join(base, "media-curator")
	}

	return indexer.Start{
		DirPath:          absDir,
		VolumeUUID:       volume,
		VolumeMountPoint: mount,
		CacheDir:         cacheDir,
	}, nil
}

func runIndex(ctx context.Context, dir string, opts *indexOptions, interrupts <-chan os.Signal, stdout, stderr io.Writer) error {
	start, err := buildStart(dir, opts)
	if err != nil {
		return err
	}

	classifier := mediatypes.Default()
	if opts.mediaTypes != "" {
		if classifier, err = mediatypes.LoadFile(opts.mediaTypes); err != nil {
			return err
		}
	}

	processor := indexer.DefaultProcessorConfig()
	processor.BatchSize = opts.batchSize
	processor.BatchDelay = opts.batchDelay

	ctrl, err := indexer.New(indexer.Config{
		Processor:  processor,
		Retry:      filesystem.DefaultRetryConfig(),
		Classifier: classifier,
		Exclude:    opts.exclude,
	})
	if err != nil {
		return err
	}

	var sink *catalog.Sink
	if opts.dbPath != "" {
		db, err := database.New(ctx, opts.dbPath)
		if err != nil {
			return fmt.Errorf("opening catalog: %w", err)
		}
		defer db.Close()
		sink = catalog.New(db)
	}

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ctrl.Run(runCtx)
	}()
	defer func() {
		stop()
		for range ctrl.Events() {
		}
		<-done
	}()

	progress := newProgressLine(stderr)
	began := time.Now()
	started, cancelling := false, false

	for {
		select {
		case <-interrupts:
			if !started {
				return errCancelled
			}
			if cancelling {
				continue
			}
			cancelling = true
			progress.clear()
			fmt.Fprintln(stderr, "Interrupted, cancelling...")
			if err := ctrl.Send(indexer.Cancel{}); err != nil {
				return err
			}

		case ev, ok := <-ctrl.Events():
			if !ok {
				return errors.New("indexing controller stopped unexpectedly")
			}

			switch e := ev.(type) {
			case indexer.Ready:
				if err := ctrl.Send(start); err != nil {
					return err
				}
				started = true
			case indexer.Progress:
				progress.update(e)
			case indexer.Error:
				progress.clear()
				return fmt.Errorf("indexing %s: %s", start.DirPath, e.Message)
			case indexer.Completed:
				progress.clear()
				if err := finishRun(ctx, sink, ev, opts.jsonOut, stdout); err != nil {
					return err
				}
				printSummary(stderr, "Indexed", e.Indexed, e.Total, e.Results, time.Since(began))
				return nil
			case indexer.Cancelled:
				progress.clear()
				if err := finishRun(ctx, sink, ev, opts.jsonOut, stdout); err != nil {
					return err
				}
				indexed, total := 0, 0
				if e.Indexed != nil {
					indexed = *e.Indexed
				}
				if e.Total != nil {
					total = *e.Total
				}
				printSummary(stderr, "Cancelled after", indexed, total, e.Results, time.Since(began))
				return errCancelled
			}
		}
	}
}

func finishRun(ctx context.Context, sink *catalog.Sink, ev indexer.Event, jsonOut bool, stdout io.Writer) error {
	if sink != nil {
		if err := sink.Handle(ctx, ev); err != nil {
			return fmt.Errorf("writing catalog: %w", err)
		}
	}
	if jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(ev); err != nil {
			return fmt.Errorf("encoding %s event: %w", ev.Type(), err)
		}
	}
	return nil
}

func printSummary(w io.Writer, verb string, indexed, total int, records []asset.Record, elapsed time.Duration) {
	var photos, videos int
	var size int64
	for _, r := range records {
		size += r.FileSize
		switch r.MediaType {
		case mediatypes.KindPhoto:
			photos++
		case mediatypes.KindVideo:
			videos++
		}
	}

	fmt.Fprintf(w, "%s %s of %s files in %s\n",
		verb, humanize.Comma(int64(indexed)), humanize.Comma(int64(total)), elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "  %s records: %s photos, %s videos, %s\n",
		humanize.Comma(int64(len(records))), humanize.Comma(int64(photos)), humanize.Comma(int64(videos)),
		humanize.Bytes(uint64(size)))
	if dropped := indexed - len(records); dropped > 0 {
		fmt.Fprintf(w, "  %s files could not be read\n", humanize.Comma(int64(dropped)))
	}
}
