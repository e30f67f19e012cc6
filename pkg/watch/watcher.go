package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/helmcode/pairprog-ai/pkg/analyzer"
	"github.com/helmcode/pairprog-ai/pkg/document"
	"github.com/helmcode/pairprog-ai/pkg/formatter"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultIgnorePatterns are matched against the base name of every event.
var DefaultIgnorePatterns = []string{".git", "__pycache__", ".idea", "node_modules", "*.swp", "*.tmp", "*~"}

type Options struct {
	// Debounce is how long a document must stay quiet before it is
	// analyzed again. Default: 300ms.
	Debounce       time.Duration
	IgnorePatterns []string
	// Concurrency bounds the analyses run for one batch. Default: 1.
	Concurrency int
	Logger      *zap.Logger
	// OnResult receives every analysis outcome or failure, and every
	// document whose findings were cleared because it disappeared. It may
	// be called from several goroutines at once.
	OnResult func(formatter.Entry)
}

// Watcher re-analyzes documents as they change on disk. A file target is
// watched through its parent directory so editors that save by rename are
// still seen. Directories are watched non-recursively.
type Watcher struct {
	target   string
	isDir    bool
	analyzer *analyzer.Analyzer
	fs       *fsnotify.Watcher
	opts     Options
	logger   *zap.Logger

	changes chan string
}

func New(path string, a *analyzer.Analyzer, opts Options) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}

	if opts.Debounce <= 0 {
		opts.Debounce = 300 * time.Millisecond
	}
	if opts.IgnorePatterns == nil {
		opts.IgnorePatterns = DefaultIgnorePatterns
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	dir := abs
	if !info.IsDir() {
		dir = filepath.Dir(abs)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	return &Watcher{
		target:   abs,
		isDir:    info.IsDir(),
		analyzer: a,
		fs:       fsw,
		opts:     opts,
		logger:   logger.With(zap.String("target", abs)),
		changes:  make(chan string, 1000),
	}, nil
}

// Run analyzes the current documents once, then follows changes until ctx
// is done. On return every finding is cleared and the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()
	defer w.analyzer.Store().ClearAll()

	initial, err := w.initialDocuments()
	if err != nil {
		return err
	}
	w.process(ctx, initial)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.debounceLoop(ctx)
	}()

	err = w.processEvents(ctx)
	wg.Wait()
	return err
}

func (w *Watcher) initialDocuments() ([]string, error) {
	if !w.isDir {
		return []string{w.target}, nil
	}
	entries, err := os.ReadDir(w.target)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", w.target, err)
	}
	var paths []string
	for _, e := range entries {
		path := filepath.Join(w.target, e.Name())
		if e.IsDir() || !w.wants(path) {
			continue
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// wants reports whether path is a document this watcher tracks.
func (w *Watcher) wants(path string) bool {
	if w.shouldIgnore(path) {
		return false
	}
	if !w.isDir {
		return path == w.target
	}
	if filepath.Dir(path) != w.target {
		return false
	}
	return document.DetectLanguage(path) != document.LanguagePlainText
}

func (w *Watcher) shouldIgnore(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range w.opts.IgnorePatterns {
		if base == pattern {
			return true
		}
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

func (w *Watcher) processEvents(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !w.wants(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}
			select {
			case w.changes <- event.Name:
			default:
				w.logger.Warn("change buffer full, dropping event", zap.String("path", event.Name))
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

// debounceLoop collects changed paths until the debounce window passes with
// no new change, then processes the batch.
func (w *Watcher) debounceLoop(ctx context.Context) {
	pending := make(map[string]struct{})
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(pending) == 0 {
			return
		}
		paths := make([]string, 0, len(pending))
		for p := range pending {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		pending = make(map[string]struct{})
		w.process(ctx, paths)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case path := <-w.changes:
			pending[path] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.opts.Debounce)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			flush()
		}
	}
}

// process analyzes every path that still exists and clears the findings of
// the ones that are gone.
func (w *Watcher) process(ctx context.Context, paths []string) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.opts.Concurrency)

	for _, path := range paths {
		g.Go(func() error {
			w.processOne(gctx, path)
			return nil
		})
	}
	_ = g.Wait()
}

func (w *Watcher) processOne(ctx context.Context, path string) {
	doc, err := document.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			w.analyzer.Store().Clear(document.FileURI(path))
			w.logger.Debug("document removed, findings cleared", zap.String("path", path))
			w.report(formatter.Entry{Path: path, Cleared: true})
			return
		}
		w.report(formatter.Entry{Path: path, Err: err})
		return
	}

	outcome, err := w.analyzer.Analyze(ctx, doc)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.logger.Debug("analysis failed", zap.String("path", path), zap.Error(err))
	}
	w.report(formatter.Entry{Path: path, Outcome: outcome, Err: err})
}

func (w *Watcher) report(e formatter.Entry) {
	if w.opts.OnResult != nil {
		w.opts.OnResult(e)
	}
}
