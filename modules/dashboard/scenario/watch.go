package scenario

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
)

// Watch calls run with the scenario at path now and again every time the
// file is written, until ctx is done. Parse errors are logged and skipped.
func Watch(ctx context.Context, path string, log *logrus.Logger, run func(context.Context, *Scenario) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	defer func() { _ = watcher.Close() }()

	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(err, "resolve scenario path")
	}
	// Editors often replace the file, so watch its directory.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return errors.Wrap(err, "watch scenario directory")
	}

	log = loggerOrStandard(log)
	replay := func() {
		sc, err := LoadFile(abs)
		if err != nil {
			log.WithError(err).Error("scenario not replayed")
			return
		}
		if err := run(ctx, sc); err != nil && ctx.Err() == nil {
			log.WithError(err).WithField("scenario", sc.Name).Error("replay failed")
		}
	}
	replay()

	const debounce = 100 * time.Millisecond
	var timer *time.Timer
	fire := make(chan struct{}, 1)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			replay()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("scenario watcher error")
		}
	}
}

func loggerOrStandard(log *logrus.Logger) *logrus.Logger {
	if log == nil {
		return logrus.StandardLogger()
	}
	return log
}
