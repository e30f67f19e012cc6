package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/helmcode/pairprog-ai/pkg/analyzer"
	"github.com/helmcode/pairprog-ai/pkg/document"
	"github.com/helmcode/pairprog-ai/pkg/formatter"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type analyzeOptions struct {
	commonOptions
	stdinFilename string
}

func NewAnalyzeCmd() *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze [FILE...|-]",
		Short: "Analyze source files with the AI pair programmer",
		Long: `Send source files to the analysis backend and report its findings.

With the query protocol every suggestion is anchored to a line of the file
and reported as a finding. With the rest protocol the backend's free-form
result is printed as-is.

Examples:
  # Analyze one file
  pairprog analyze main.py

  # Analyze several files concurrently, as JSON
  pairprog analyze app/*.py -o json

  # Use the REST endpoint of a remote backend
  pairprog analyze main.py --protocol rest --url http://analysis.internal:8000

  # Read the document from stdin
  cat main.py | pairprog analyze -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, opts, args)
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().StringVar(&opts.stdinFilename, "stdin-filename", "stdin.py", "Name used to detect the language of a document read from stdin")

	return cmd
}

func runAnalyze(cmd *cobra.Command, opts *analyzeOptions, args []string) error {
	if countStdin(args) > 1 {
		return fmt.Errorf("stdin (-) can only be analyzed once per invocation")
	}

	cfg, err := opts.load(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()

	if len(args) == 0 {
		_, err := a.analyzer.Analyze(ctx, nil)
		return formatter.DisplayResults(out, []formatter.Entry{{Err: err}}, cfg.Output.Format)
	}

	var s *spinner.Spinner
	if cfg.Output.Format == "human" && !opts.verbose && isTerminal(cmd.ErrOrStderr()) {
		s = spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
		s.Suffix = fmt.Sprintf(" Analyzing %d document(s) via %s...", len(args), a.analyzer.Protocol())
		s.Start()
	}

	entries := analyzeAll(ctx, a, args, cmd.InOrStdin(), opts.stdinFilename)

	if s != nil {
		s.Stop()
	}

	if err := formatter.DisplayResults(out, entries, cfg.Output.Format); err != nil {
		return err
	}

	failed := 0
	for _, e := range entries {
		if e.Err != nil && !isNotice(e.Err) {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d analyses failed", failed, len(entries))
	}
	return nil
}

// analyzeAll runs one independent analysis per path, bounded by the
// configured concurrency. Entries keep the order of paths.
func analyzeAll(ctx context.Context, a *app, paths []string, stdin io.Reader, stdinName string) []formatter.Entry {
	entries := make([]formatter.Entry, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Analysis.Concurrency)

	for i, path := range paths {
		g.Go(func() error {
			entries[i] = analyzeOne(gctx, a, path, stdin, stdinName)
			return nil
		})
	}
	_ = g.Wait()

	return entries
}

func analyzeOne(ctx context.Context, a *app, path string, stdin io.Reader, stdinName string) formatter.Entry {
	var doc *document.Document
	var err error
	if path == "-" {
		doc, err = document.FromReader(stdinName, stdin, "")
	} else {
		doc, err = document.Load(path)
	}
	if err != nil {
		return formatter.Entry{Path: path, Err: err}
	}

	entry := formatter.Entry{Path: doc.Path}
	if entry.Path == "" {
		entry.Path = path
	}

	entry.Outcome, entry.Err = a.analyzer.Analyze(ctx, doc)
	if entry.Err != nil {
		a.logger.Debug("analysis failed", zap.String("path", entry.Path), zap.Error(entry.Err))
	}
	return entry
}

func countStdin(args []string) int {
	n := 0
	for _, arg := range args {
		if arg == "-" {
			n++
		}
	}
	return n
}

// isNotice reports whether err is informational rather than a failure.
func isNotice(err error) bool {
	return errors.Is(err, analyzer.ErrEmptyDocument) || errors.Is(err, analyzer.ErrNoActiveDocument)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
