package internal

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	tt "github.com/gnolang/tpat/internal/types"
)

const defaultDebounce = 100 * time.Millisecond

// ReportFunc receives the issues of a file after it changed.
type ReportFunc func(filename string, issues []tt.Issue)

// Watcher re-runs the engine on .go and .gno files when they are written.
type Watcher struct {
	// Debounce collapses bursts of writes to one file into one run.
	Debounce time.Duration

	engine *Engine
	logger *zap.Logger
	report ReportFunc

	fsw      *fsnotify.Watcher
	done     chan struct{}
	mu       sync.Mutex
	pending  map[string]*time.Timer
	wg       sync.WaitGroup
	reportMu sync.Mutex
}

func NewWatcher(engine *Engine, logger *zap.Logger, report ReportFunc) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		Debounce: defaultDebounce,
		engine:   engine,
		logger:   logger,
		report:   report,
		pending:  make(map[string]*time.Timer),
	}
}

// Start watches dirs and their subdirectories until ctx is done. It returns
// once every directory is being watched.
func (w *Watcher) Start(ctx context.Context, dirs ...string) error {
	if w.fsw != nil {
		return errors.New("already watching")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return fsw.Add(path)
			}
			return nil
		})
		if err != nil {
			fsw.Close()
			return fmt.Errorf("error adding directory to watcher: %w", err)
		}
	}

	w.fsw = fsw
	w.done = make(chan struct{})
	go w.loop(ctx)
	return nil
}

// Wait blocks until the watcher stopped and pending runs finished.
func (w *Watcher) Wait() {
	if w.done == nil {
		return
	}
	<-w.done
	w.wg.Wait()
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	defer w.fsw.Close()
	for {
		select {
		case <-ctx.Done():
			w.stopPending()
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.addTree(event.Name)
			return
		}
	}
	if hasSourceExtension(event.Name) {
		w.schedule(event.Name)
	}
}

// addTree watches a directory created after Start. Files written into it
// before the watch was in place are checked right away.
func (w *Watcher) addTree(dir string) {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.fsw.Add(path)
		}
		if hasSourceExtension(path) {
			w.schedule(path)
		}
		return nil
	})
	if err != nil {
		w.logger.Error("error adding directory to watcher", zap.String("dir", dir), zap.Error(err))
	}
}

func (w *Watcher) schedule(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[name]; ok {
		// a timer that already fired runs its func once more
		if !t.Reset(w.Debounce) {
			w.wg.Add(1)
		}
		return
	}
	w.wg.Add(1)
	w.pending[name] = time.AfterFunc(w.Debounce, func() {
		defer w.wg.Done()
		w.process(name)
	})
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for name, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, name)
	}
}

func (w *Watcher) process(filename string) {
	w.mu.Lock()
	delete(w.pending, filename)
	w.mu.Unlock()

	issues, err := w.engine.Run(filename)
	if err != nil {
		w.logger.Error("error checking file", zap.String("file", filename), zap.Error(err))
		return
	}
	w.logger.Debug("checked changed file", zap.String("file", filename), zap.Int("issues", len(issues)))
	if w.report == nil {
		return
	}
	w.reportMu.Lock()
	defer w.reportMu.Unlock()
	w.report(filename, issues)
}

func hasSourceExtension(path string) bool {
	switch filepath.Ext(path) {
	case ".go", ".gno":
		return true
	}
	return false
}
