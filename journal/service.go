// Package journal persists arena notifications so operators can review what
// enemies perceived and did after the fact.
package journal

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nightwatch-game/server/hook"
	"github.com/nightwatch-game/server/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	queueSize     = 1024
	batchSize     = 100
	flushInterval = 2 * time.Second
	hookName      = "journal"
	// MaxRecent caps Recent queries.
	MaxRecent = 500
)

// Service writes events asynchronously in batches.
type Service struct {
	db     *gorm.DB
	ch     chan *model.AIEvent
	stopCh chan struct{}
	wg     sync.WaitGroup
	logger *zap.Logger
}

func New(db *gorm.DB, logger *zap.Logger) *Service {
	svc := &Service{
		db:     db,
		ch:     make(chan *model.AIEvent, queueSize),
		stopCh: make(chan struct{}),
		logger: logger,
	}
	svc.wg.Add(1)
	go svc.worker()
	return svc
}

// Register subscribes the journal to every ai.* and player.* notification.
func (svc *Service) Register(hc *hook.HookCenter) {
	fn := func(_ context.Context, n *hook.Notification) error {
		svc.Record(n)
		return nil
	}
	hc.Register(hook.AllAI, 100, hookName, fn)
	hc.Register(hook.AllPlayer, 100, hookName, fn)
}

// Record enqueues n. It never blocks the caller; a full queue drops the entry.
func (svc *Service) Record(n *hook.Notification) {
	data, err := json.Marshal(n.Data)
	if err != nil {
		svc.logger.Warn("journal: unencodable event data", zap.String("event", n.Event), zap.Error(err))
		data = []byte("null")
	}
	ev := &model.AIEvent{
		ArenaID:   n.ArenaID,
		Event:     n.Event,
		AgentID:   n.AgentID,
		PlayerID:  n.PlayerID,
		Data:      datatypes.JSON(data),
		CreatedAt: n.At,
	}
	select {
	case svc.ch <- ev:
	default:
		svc.logger.Warn("journal channel full, dropping event", zap.String("event", n.Event))
	}
}

// Recent returns the newest events of an arena, newest first.
func (svc *Service) Recent(ctx context.Context, arenaID string, limit int) ([]model.AIEvent, error) {
	if limit <= 0 || limit > MaxRecent {
		limit = MaxRecent
	}
	var out []model.AIEvent
	err := svc.db.WithContext(ctx).
		Where("arena_id = ?", arenaID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// Stop flushes queued events and waits for the worker to exit.
func (svc *Service) Stop(_ context.Context) {
	select {
	case <-svc.stopCh:
	default:
		close(svc.stopCh)
	}
	svc.wg.Wait()
}

func (svc *Service) worker() {
	defer svc.wg.Done()
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]*model.AIEvent, 0, batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := svc.db.Create(&batch).Error; err != nil {
			svc.logger.Error("journal batch write failed", zap.Int("size", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case ev := <-svc.ch:
			batch = append(batch, ev)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-svc.stopCh:
			for {
				select {
				case ev := <-svc.ch:
					batch = append(batch, ev)
					if len(batch) >= batchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}
