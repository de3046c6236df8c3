package journal

import (
	"context"
	"testing"
	"time"

	"github.com/nightwatch-game/server/hook"
	"github.com/nightwatch-game/server/model"
	"github.com/nightwatch-game/server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func nop() *zap.Logger { return zap.NewNop() }

func TestRecord_FlushedOnStop(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, nop())

	svc.Record(&hook.Notification{
		Event:   hook.AIStrike,
		ArenaID: "courtyard",
		AgentID: "guard-1",
		Data:    map[string]float64{"damage": 10},
		At:      time.Now(),
	})
	svc.Stop(context.Background())

	var rows []model.AIEvent
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "courtyard", rows[0].ArenaID)
	assert.Equal(t, hook.AIStrike, rows[0].Event)
	assert.Equal(t, "guard-1", rows[0].AgentID)
	assert.JSONEq(t, `{"damage":10}`, string(rows[0].Data))
}

func TestRegister_JournalsAIAndPlayerEvents(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, nop())
	hc := hook.NewHookCenter(nop())
	svc.Register(hc)

	ctx := context.Background()
	require.NoError(t, hc.Trigger(ctx, &hook.Notification{Event: hook.AIStateChanged, ArenaID: "a"}))
	require.NoError(t, hc.Trigger(ctx, &hook.Notification{Event: hook.PlayerDied, ArenaID: "a", PlayerID: "p1"}))
	require.NoError(t, hc.Trigger(ctx, &hook.Notification{Event: "arena.reloaded", ArenaID: "a"}))
	svc.Stop(ctx)

	var count int64
	db.Model(&model.AIEvent{}).Count(&count)
	assert.Equal(t, int64(2), count)
}

func TestRecent_NewestFirstPerArena(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, nop())

	base := time.Now().Add(-time.Minute)
	for i := 0; i < 5; i++ {
		svc.Record(&hook.Notification{
			Event:   hook.AIStateChanged,
			ArenaID: "a",
			AgentID: string(rune('a' + i)),
			At:      base.Add(time.Duration(i) * time.Second),
		})
	}
	svc.Record(&hook.Notification{Event: hook.AIStrike, ArenaID: "b", At: base})
	svc.Stop(context.Background())

	got, err := svc.Recent(context.Background(), "a", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "e", got[0].AgentID)
	assert.Equal(t, "d", got[1].AgentID)
	assert.Equal(t, "c", got[2].AgentID)

	got, err = svc.Recent(context.Background(), "b", 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRecord_BatchFlush(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, nop())
	defer svc.Stop(context.Background())

	for i := 0; i < batchSize; i++ {
		svc.Record(&hook.Notification{Event: hook.AIStrike, ArenaID: "a", At: time.Now()})
	}

	assert.Eventually(t, func() bool {
		var count int64
		db.Model(&model.AIEvent{}).Count(&count)
		return count == int64(batchSize)
	}, time.Second, 20*time.Millisecond)
}
