package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/helmcode/pairprog-ai/pkg/formatter"
	"github.com/helmcode/pairprog-ai/pkg/server"
	"github.com/helmcode/pairprog-ai/pkg/watch"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type watchOptions struct {
	commonOptions
	debounce time.Duration
	listen   string
}

func NewWatchCmd() *cobra.Command {
	opts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch PATH",
		Short: "Re-analyze files whenever they change",
		Long: `Watch a file, or the source files of a directory, and analyze them again
every time they are saved. Findings of deleted files are cleared, and every
finding is cleared when the watch stops.

Examples:
  # Watch one file
  pairprog watch main.py

  # Watch a directory and expose the findings over HTTP
  pairprog watch ./app --listen 127.0.0.1:9464

  # Wait longer for editors that save in several steps
  pairprog watch ./app --debounce 1s`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, opts, args[0])
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().DurationVar(&opts.debounce, "debounce", 300*time.Millisecond, "Quiet period after a change before analyzing")
	cmd.Flags().StringVar(&opts.listen, "listen", "", "Serve the diagnostics API and metrics on this address (e.g. 127.0.0.1:9464)")

	return cmd
}

func runWatch(cmd *cobra.Command, opts *watchOptions, path string) error {
	cfg, err := opts.load(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("debounce") {
		cfg.Watch.Debounce = opts.debounce
	}
	if cmd.Flags().Changed("listen") {
		cfg.Watch.Listen = opts.listen
	}
	if err := cfg.Check(); err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.logger.Sync() }()

	out := cmd.OutOrStdout()
	var mu sync.Mutex
	onResult := func(e formatter.Entry) {
		mu.Lock()
		defer mu.Unlock()
		if err := formatter.DisplayResults(out, []formatter.Entry{e}, cfg.Output.Format); err != nil {
			a.logger.Warn("could not render result", zap.String("path", e.Path), zap.Error(err))
		}
	}

	w, err := watch.New(path, a.analyzer, watch.Options{
		Debounce:    cfg.Watch.Debounce,
		Concurrency: cfg.Analysis.Concurrency,
		Logger:      a.logger,
		OnResult:    onResult,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Output.Format == "human" {
		cyan := color.New(color.FgCyan, color.Bold)
		cyan.Fprintf(out, "👀 Watching %s (%s protocol, press Ctrl+C to stop)\n", path, a.analyzer.Protocol())
		if cfg.Watch.Listen != "" {
			fmt.Fprintf(out, "📡 Diagnostics API on http://%s/api/v1/diagnostics\n", cfg.Watch.Listen)
		}
		fmt.Fprintln(out)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Run(gctx)
	})
	if cfg.Watch.Listen != "" {
		handler := server.NewRouter(a.analyzer.Store(), a.recorder, a.logger)
		g.Go(func() error {
			if err := server.Serve(gctx, cfg.Watch.Listen, handler, a.logger); err != nil {
				return fmt.Errorf("diagnostics API: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}
