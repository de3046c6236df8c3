package world

import (
	"testing"
	"time"

	"github.com/nightwatch-game/server/game/ai"
	"github.com/stretchr/testify/assert"
)

func TestBody_ForwardFollowsYaw(t *testing.T) {
	b := NewBody(ai.Vec3{}, 90)
	f := b.Forward()
	assert.InDelta(t, 1, f.X, 1e-9)
	assert.InDelta(t, 0, f.Z, 1e-9)

	b = NewBody(ai.Vec3{}, 0)
	assert.InDelta(t, 1, b.Forward().Z, 1e-9)
}

func TestBody_FaceTowardsInterpolates(t *testing.T) {
	b := NewBody(ai.Vec3{}, 0)
	b.FaceTowards(ai.Vec3{X: 1}, 0.5)
	assert.InDelta(t, 45, b.Yaw(), 1e-9)

	b.FaceTowards(ai.Vec3{X: 1}, 5)
	assert.InDelta(t, 90, b.Yaw(), 1e-9)

	// Zero direction and zero fraction keep the heading.
	b.FaceTowards(ai.Vec3{Y: 3}, 1)
	b.FaceTowards(ai.Vec3{Z: 1}, 0)
	assert.InDelta(t, 90, b.Yaw(), 1e-9)
}

func TestBody_FaceTowardsTakesShortestTurn(t *testing.T) {
	b := NewBody(ai.Vec3{}, 170)
	b.FaceTowards(ai.Vec3{X: -0.17364817766693, Z: -0.98480775301221}, 1) // -170 degrees
	assert.InDelta(t, -170, b.Yaw(), 1e-6)

	b = NewBody(ai.Vec3{}, 170)
	b.FaceTowards(ai.Vec3{X: -0.17364817766693, Z: -0.98480775301221}, 0.5)
	assert.InDelta(t, 180, abs(b.Yaw()), 1e-6)
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func TestBody_AdvanceMovesAndArrives(t *testing.T) {
	b := NewBody(ai.Vec3{}, 0)
	b.SetSpeed(2)
	assert.Zero(t, b.RemainingDistance())

	b.SetDestination(ai.Vec3{X: 3})
	assert.InDelta(t, 3, b.RemainingDistance(), 1e-9)

	b.Advance(500 * time.Millisecond)
	assert.InDelta(t, 1, b.Position().X, 1e-9)
	assert.InDelta(t, 2, b.RemainingDistance(), 1e-9)
	assert.Greater(t, b.Yaw(), 0.0, "turns toward travel")

	b.Advance(2 * time.Second)
	assert.Equal(t, ai.Vec3{X: 3}, b.Position())
	assert.Zero(t, b.RemainingDistance())
	assert.False(t, b.IsPathPending())
}

func TestBody_StoppedHoldsPosition(t *testing.T) {
	b := NewBody(ai.Vec3{}, 0)
	b.SetSpeed(2)
	b.SetDestination(ai.Vec3{Z: 5})
	b.Stop(true)
	b.Advance(time.Second)
	assert.Equal(t, ai.Vec3{}, b.Position())
	assert.True(t, b.Stopped())

	b.Stop(false)
	b.Advance(time.Second)
	assert.InDelta(t, 2, b.Position().Z, 1e-9)
}

func TestBody_IgnoresHeightForDistance(t *testing.T) {
	b := NewBody(ai.Vec3{Y: 1}, 0)
	b.SetDestination(ai.Vec3{Y: 5})
	assert.Zero(t, b.RemainingDistance())
}
