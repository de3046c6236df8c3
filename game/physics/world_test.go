package physics

import (
	"testing"

	"github.com/nightwatch-game/server/game/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const all = LayerObstacle | LayerPlayer

func TestRaycast_HitsPlayer(t *testing.T) {
	w := NewWorld()
	w.SetBody("p1", ai.Vec3{Z: 5}, 0.5)

	hit, ok := w.Raycast(ai.Vec3{}, ai.Vec3{Z: 1}, 10, all)
	require.True(t, ok)
	assert.Equal(t, "p1", hit.ObjectID)
	assert.InDelta(t, 4.5, hit.Distance, 1e-9)
	assert.InDelta(t, 4.5, hit.Point.Z, 1e-9)
}

func TestRaycast_MissesOutOfReachOrBehind(t *testing.T) {
	w := NewWorld()
	w.SetBody("p1", ai.Vec3{Z: 5}, 0.5)

	_, ok := w.Raycast(ai.Vec3{}, ai.Vec3{Z: 1}, 4, all)
	assert.False(t, ok)
	_, ok = w.Raycast(ai.Vec3{}, ai.Vec3{Z: -1}, 10, all)
	assert.False(t, ok)
	_, ok = w.Raycast(ai.Vec3{}, ai.Vec3{X: 1}, 10, all)
	assert.False(t, ok)
	_, ok = w.Raycast(ai.Vec3{}, ai.Vec3{Y: 1}, 10, all)
	assert.False(t, ok)
}

func TestRaycast_WallBlocksPlayer(t *testing.T) {
	w := NewWorld()
	require.NoError(t, w.AddWall(Wall{ID: "wall-1", MinX: -2, MinZ: 2, MaxX: 2, MaxZ: 3}))
	w.SetBody("p1", ai.Vec3{Z: 5}, 0.5)

	hit, ok := w.Raycast(ai.Vec3{}, ai.Vec3{Z: 1}, 10, all)
	require.True(t, ok)
	assert.Equal(t, "wall-1", hit.ObjectID)
	assert.InDelta(t, 2.0, hit.Distance, 1e-6)

	// Players in front of the wall win.
	w.SetBody("p1", ai.Vec3{Z: 1}, 0.5)
	hit, ok = w.Raycast(ai.Vec3{}, ai.Vec3{Z: 1}, 10, all)
	require.True(t, ok)
	assert.Equal(t, "p1", hit.ObjectID)
}

func TestRaycast_MaskFiltersLayers(t *testing.T) {
	w := NewWorld()
	require.NoError(t, w.AddWall(Wall{ID: "wall-1", MinX: -2, MinZ: 2, MaxX: 2, MaxZ: 3}))
	w.SetBody("p1", ai.Vec3{Z: 5}, 0.5)

	hit, ok := w.Raycast(ai.Vec3{}, ai.Vec3{Z: 1}, 10, LayerPlayer)
	require.True(t, ok)
	assert.Equal(t, "p1", hit.ObjectID)

	hit, ok = w.Raycast(ai.Vec3{}, ai.Vec3{Z: 1}, 10, LayerObstacle)
	require.True(t, ok)
	assert.Equal(t, "wall-1", hit.ObjectID)
}

func TestRaycast_NearestOfTwoPlayers(t *testing.T) {
	w := NewWorld()
	w.SetBody("far", ai.Vec3{Z: 8}, 0.5)
	w.SetBody("near", ai.Vec3{Z: 3}, 0.5)

	hit, ok := w.Raycast(ai.Vec3{}, ai.Vec3{Z: 1}, 10, all)
	require.True(t, ok)
	assert.Equal(t, "near", hit.ObjectID)

	w.RemoveBody("near")
	hit, ok = w.Raycast(ai.Vec3{}, ai.Vec3{Z: 1}, 10, all)
	require.True(t, ok)
	assert.Equal(t, "far", hit.ObjectID)
}

func TestAddWall_RejectsDegenerate(t *testing.T) {
	w := NewWorld()
	assert.ErrorIs(t, w.AddWall(Wall{ID: "flat", MinX: 0, MinZ: 0, MaxX: 0, MaxZ: 5}), ErrDegenerateWall)
	assert.Zero(t, w.WallCount())
}

func TestWorld_ImplementsOccluder(t *testing.T) {
	var _ ai.Occluder = NewWorld()
}
