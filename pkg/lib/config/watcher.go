package config

import (
	"io"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

var logger = log.New(io.Discard, "config: ", log.LstdFlags)

// SetLogOutput routes this package's debug log, which is silent by default.
func SetLogOutput(w io.Writer) { logger.SetOutput(w) }

// Watcher reloads the configuration when its file changes on disk and hands
// the result to a callback. The containing directory is watched rather than
// the file itself, because editors routinely replace files by rename.
type Watcher struct {
	path     string
	fsw      *fsnotify.Watcher
	onReload func(Config)
	debounce time.Duration

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Watch starts watching path. onReload runs on the watcher goroutine with
// each successfully loaded new configuration; load failures are skipped so
// a half-saved file never clobbers a working setup.
func Watch(path string, onReload func(Config)) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &Watcher{
		path:     abs,
		fsw:      fsw,
		onReload: onReload,
		debounce: 100 * time.Millisecond,
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.fsw.Close()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) run() {
	defer w.wg.Done()

	// The timer coalesces the bursts of events a single save produces.
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Name != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Printf("watch error: %v", err)

		case <-timer.C:
			cfg, err := Load(w.path)
			if err != nil {
				logger.Printf("reload skipped: %v", err)
				continue
			}
			logger.Printf("reloaded %s", w.path)
			w.onReload(cfg)
		}
	}
}
