package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/dhamidi/clangcomplete/include"
)

// ConfigWatcher polls the flag files of open documents and rebuilds the
// sessions of documents whose flag file appeared, changed or went away.
// A non-nil refresher is told about every rebuilt document.
type ConfigWatcher struct {
	orchestrator *Orchestrator
	refresher    Refresher
	stopCh       chan struct{}
	doneCh       chan struct{}
	pollInterval time.Duration
}

func NewConfigWatcher(o *Orchestrator, interval time.Duration, r Refresher) *ConfigWatcher {
	if interval <= 0 {
		interval = time.Second
	}
	return &ConfigWatcher{
		orchestrator: o,
		refresher:    r,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
		pollInterval: interval,
	}
}

func (w *ConfigWatcher) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop ends polling and waits for the current scan to finish.
func (w *ConfigWatcher) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

func (w *ConfigWatcher) run(ctx context.Context) {
	defer close(w.doneCh)
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, id := range w.orchestrator.ReloadChanged(ctx) {
				if w.refresher != nil {
					w.refresher.Refresh(id)
				}
			}
		}
	}
}

// ReloadChanged re-initializes every open document whose flag file is not
// the one, or not the version, its session was built from. It returns the
// ids that were rebuilt.
func (o *Orchestrator) ReloadChanged(ctx context.Context) []string {
	if !o.Enabled() {
		return nil
	}
	var stale []*document
	o.mu.Lock()
	for _, d := range o.docs {
		if d.opts.SearchConfigFile {
			stale = append(stale, d)
		}
	}
	o.mu.Unlock()

	var reloaded []string
	for _, d := range stale {
		o.mu.Lock()
		path, opts, file, mod := d.Path, d.opts, d.configFile, d.configMod
		o.mu.Unlock()

		current, found := include.FindConfigFile(filepath.Dir(path), opts.ProjectDir)
		var currentMod time.Time
		if found {
			if info, err := os.Stat(current); err == nil {
				currentMod = info.ModTime()
			}
		}
		if current == file && currentMod.Equal(mod) {
			continue
		}

		log.Infof("flag file for %s changed, rebuilding session", path)
		if err := o.rebuild(ctx, d); err != nil {
			if errors.Is(err, ErrClosed) {
				continue
			}
			log.Errorf("rebuild %s: %s", path, err)
			continue
		}
		reloaded = append(reloaded, d.ID)
	}
	return reloaded
}
