package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TaskFn receives a context cancelled when the task is removed or the scheduler stops.
type TaskFn func(ctx context.Context)

// Scheduler runs named periodic and delayed tasks. Re-adding a name replaces
// the previous task; delayed tasks therefore double as debouncers.
type Scheduler struct {
	mu      sync.Mutex
	tickers map[string]*task
	timers  map[string]*task
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *zap.Logger
}

type task struct {
	cancel context.CancelFunc
	timer  *time.Timer
}

func New(logger *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		tickers: make(map[string]*task),
		timers:  make(map[string]*task),
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
	}
}

// AddTicker runs fn every interval until removed. Runs never overlap.
func (s *Scheduler) AddTicker(name string, interval time.Duration, fn TaskFn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.tickers[name]; ok {
		old.cancel()
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.tickers[name] = &task{cancel: cancel}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.run(ctx, name, fn)
			case <-ctx.Done():
				return
			}
		}
	}()
	s.logger.Info("scheduler task registered", zap.String("name", name), zap.Duration("interval", interval))
}

// AddDelay runs fn once after delay. Adding the same name again restarts the wait.
func (s *Scheduler) AddDelay(name string, delay time.Duration, fn TaskFn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.timers[name]; ok {
		old.timer.Stop()
		old.cancel()
	}
	ctx, cancel := context.WithCancel(s.ctx)
	t := &task{cancel: cancel}
	t.timer = time.AfterFunc(delay, func() {
		defer func() {
			s.mu.Lock()
			if s.timers[name] == t {
				delete(s.timers, name)
			}
			s.mu.Unlock()
			cancel()
		}()
		if ctx.Err() != nil {
			return
		}
		s.run(ctx, name, fn)
	})
	s.timers[name] = t
}

func (s *Scheduler) run(ctx context.Context, name string, fn TaskFn) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler task panicked",
				zap.String("task", name),
				zap.Any("recover", r))
		}
	}()
	fn(ctx)
}

// Remove stops a ticker or pending delay by name.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tickers[name]; ok {
		t.cancel()
		delete(s.tickers, name)
	}
	if t, ok := s.timers[name]; ok {
		t.timer.Stop()
		t.cancel()
		delete(s.timers, name)
	}
}

// Stop cancels every task. The scheduler cannot be reused afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.timers {
		t.timer.Stop()
	}
	s.cancel()
}

func (s *Scheduler) ListTickers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tickers))
	for name := range s.tickers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Pending reports whether a delayed task is waiting to run.
func (s *Scheduler) Pending(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[name]
	return ok
}
