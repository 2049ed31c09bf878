package ml

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ArtifactWatcher reloads the predictor when the model artifact is replaced
// on disk, for example by the offline trainer.
type ArtifactWatcher struct {
	predictor *Predictor
	watcher   *fsnotify.Watcher
	logger    *zap.Logger
	path      string
	debounce  time.Duration
	onReload  func(ModelInfo)
}

func NewArtifactWatcher(predictor *Predictor, logger *zap.Logger) (*ArtifactWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	path := filepath.Clean(predictor.config.ModelPath)
	dir := filepath.Dir(path)
	// The artifact is renamed into place, so watch the directory.
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create model dir")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create watcher")
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, errors.Wrapf(err, "watch %s", dir)
	}

	return &ArtifactWatcher{
		predictor: predictor,
		watcher:   watcher,
		logger:    logger,
		path:      path,
		debounce:  250 * time.Millisecond,
	}, nil
}

// OnReload registers fn to run after each successful reload. It must be
// called before Run.
func (w *ArtifactWatcher) OnReload(fn func(ModelInfo)) {
	w.onReload = fn
}

// Run processes file events until ctx is done.
func (w *ArtifactWatcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if exists, _ := artifactExists(w.path); !exists {
				continue
			}
			if err := w.predictor.Reload(ctx); err != nil {
				w.logger.Warn("reload model artifact failed", zap.Error(err))
				continue
			}
			if w.onReload != nil {
				w.onReload(w.predictor.Info())
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("artifact watcher error", zap.Error(err))
		}
	}
}
