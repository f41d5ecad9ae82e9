package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/dvloznov/invoice-ledger/internal/app"
	"github.com/dvloznov/invoice-ledger/internal/config"
	"github.com/dvloznov/invoice-ledger/internal/invoice"
	"github.com/dvloznov/invoice-ledger/internal/logger"
	"github.com/dvloznov/invoice-ledger/internal/pipeline"
)

// DefaultSettle is how long a file must stay unchanged before it is processed.
const DefaultSettle = 2 * time.Second

func newWatchCommand() *cobra.Command {
	var settle time.Duration
	var existing bool

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Process attachments as they are dropped into a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logger.NewWithLevel(cfg.Log.Level)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx = logger.WithContext(ctx, log)

			application, err := app.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer application.Close()

			w := newDirWatcher(application.Processor, settle, cmd.OutOrStdout())
			if existing {
				files, err := collectFiles(args)
				if err != nil {
					return err
				}
				for _, f := range files {
					w.process(ctx, f)
				}
			}

			log.Info().Str("dir", args[0]).Dur("settle", settle).Msg("Watching for attachments")
			return w.Run(ctx, args[0])
		},
	}

	cmd.Flags().DurationVar(&settle, "settle", DefaultSettle, "quiet period after the last write before a file is processed")
	cmd.Flags().BoolVar(&existing, "existing", false, "process files already in the directory first")

	return cmd
}

// attachmentProcessor is the part of pipeline.Processor the watch command needs.
type attachmentProcessor interface {
	ProcessAttachment(ctx context.Context, att invoice.RawAttachment) pipeline.Outcome
}

// dirWatcher processes each file in a directory once it has stopped changing.
type dirWatcher struct {
	proc   attachmentProcessor
	settle time.Duration

	outMu sync.Mutex
	out   io.Writer

	mu      sync.Mutex
	pending map[string]*time.Timer
	stopped bool
	wg      sync.WaitGroup
}

func newDirWatcher(proc attachmentProcessor, settle time.Duration, out io.Writer) *dirWatcher {
	if settle <= 0 {
		settle = DefaultSettle
	}
	return &dirWatcher{
		proc:    proc,
		settle:  settle,
		out:     out,
		pending: make(map[string]*time.Timer),
	}
}

// Run blocks until ctx is done, then waits for attachments already being
// processed.
func (d *dirWatcher) Run(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("Run: create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("Run: watch %s: %w", dir, err)
	}

	log := logger.FromContext(ctx)
	for {
		select {
		case <-ctx.Done():
			d.stop()
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				d.stop()
				return nil
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
				d.schedule(ctx, ev.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				d.stop()
				return nil
			}
			log.Warn().Err(err).Str("dir", dir).Msg("Watcher error")
		}
	}
}

func (d *dirWatcher) schedule(ctx context.Context, path string) {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if t, ok := d.pending[path]; ok {
		t.Reset(d.settle)
		return
	}
	d.pending[path] = time.AfterFunc(d.settle, func() {
		d.mu.Lock()
		delete(d.pending, path)
		if d.stopped {
			d.mu.Unlock()
			return
		}
		d.wg.Add(1)
		d.mu.Unlock()

		defer d.wg.Done()
		d.process(ctx, path)
	})
}

func (d *dirWatcher) stop() {
	d.mu.Lock()
	d.stopped = true
	for path, t := range d.pending {
		t.Stop()
		delete(d.pending, path)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *dirWatcher) process(ctx context.Context, path string) {
	log := logger.FromContext(ctx).With().Str("path", path).Logger()

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}

	att, err := readAttachment(path)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read dropped file")
		return
	}

	out := d.proc.ProcessAttachment(ctx, att)

	d.outMu.Lock()
	defer d.outMu.Unlock()
	_ = printOutcomes(d.out, []string{path}, []pipeline.Outcome{out}, true)
}
