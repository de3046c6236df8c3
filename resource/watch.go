package resource

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/nightwatch-game/server/scheduler"
	"go.uber.org/zap"
)

const reloadDebounce = 200 * time.Millisecond

// Watcher reloads arena files when they change on disk. Bursts of writes to
// one file collapse into a single reload.
type Watcher struct {
	fs       *fsnotify.Watcher
	sched    *scheduler.Scheduler
	onChange func(def *ArenaDef)
	debounce time.Duration
	logger   *zap.Logger
	closeCh  chan struct{}
	done     chan struct{}
	once     sync.Once
}

func NewWatcher(dir string, sched *scheduler.Scheduler, onChange func(def *ArenaDef), logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, err
	}
	w := &Watcher{
		fs:       fw,
		sched:    sched,
		onChange: onChange,
		debounce: reloadDebounce,
		logger:   logger.With(zap.String("dir", dir)),
		closeCh:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closeCh)
		err = w.fs.Close()
		<-w.done
	})
	return err
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("arena watcher error", zap.Error(err))
		case <-w.closeCh:
			return
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if !IsArenaFile(ev.Name) {
		return
	}
	if ev.Op&fsnotify.Remove != 0 {
		// Running arenas outlive their file; the next write brings it back.
		w.logger.Info("arena file removed", zap.String("file", ev.Name))
		return
	}
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	path := ev.Name
	w.sched.AddDelay("arena-reload:"+path, w.debounce, func(context.Context) {
		def, err := LoadArena(path)
		if err != nil {
			w.logger.Warn("arena reload skipped", zap.String("file", path), zap.Error(err))
			return
		}
		w.logger.Info("arena file changed", zap.String("arena_id", def.ID), zap.String("file", path))
		w.onChange(def)
	})
}
