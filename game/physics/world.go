// Package physics answers line-of-sight queries for arena agents. Walls live in
// a chipmunk space; player bodies are vertical cylinders tested analytically.
// The ground plane XZ maps onto cp's X/Y.
package physics

import (
	"errors"
	"math"
	"sort"

	"github.com/jakecoffman/cp"
	"github.com/nightwatch-game/server/game/ai"
)

const (
	LayerObstacle ai.LayerMask = 1 << iota
	LayerPlayer
)

// Wall is an axis-aligned box on the ground plane.
type Wall struct {
	ID                     string
	MinX, MinZ, MaxX, MaxZ float64
}

type circle struct {
	x, z, r float64
}

// World is not safe for concurrent use; arenas call it under their own lock.
type World struct {
	space  *cp.Space
	walls  map[*cp.Shape]string
	bodies map[string]circle
}

func NewWorld() *World {
	return &World{
		space:  cp.NewSpace(),
		walls:  make(map[*cp.Shape]string),
		bodies: make(map[string]circle),
	}
}

var ErrDegenerateWall = errors.New("physics: wall has no area")

func (w *World) AddWall(wall Wall) error {
	if wall.MaxX <= wall.MinX || wall.MaxZ <= wall.MinZ {
		return ErrDegenerateWall
	}
	bb := cp.BB{L: wall.MinX, B: wall.MinZ, R: wall.MaxX, T: wall.MaxZ}
	shape := cp.NewBox2(w.space.StaticBody, bb, 0)
	shape.SetFilter(cp.NewShapeFilter(cp.NO_GROUP, uint(LayerObstacle), cp.ALL_CATEGORIES))
	w.space.AddShape(shape)
	w.walls[shape] = wall.ID
	return nil
}

func (w *World) WallCount() int { return len(w.walls) }

// SetBody inserts or moves a player body.
func (w *World) SetBody(id string, pos ai.Vec3, radius float64) {
	w.bodies[id] = circle{x: pos.X, z: pos.Z, r: radius}
}

func (w *World) RemoveBody(id string) { delete(w.bodies, id) }

// Raycast returns the nearest wall or body hit along dir, measured on the ground plane.
func (w *World) Raycast(origin, dir ai.Vec3, maxDistance float64, mask ai.LayerMask) (ai.Hit, bool) {
	flat := dir.Flat()
	n := flat.Len()
	if n < 1e-9 || maxDistance <= 0 {
		return ai.Hit{}, false
	}
	u := flat.Scale(1 / n)
	reach := maxDistance * n

	best := ai.Hit{Distance: math.Inf(1)}
	found := false

	if mask&LayerObstacle != 0 && len(w.walls) > 0 {
		start := cp.Vector{X: origin.X, Y: origin.Z}
		end := cp.Vector{X: origin.X + u.X*reach, Y: origin.Z + u.Z*reach}
		filter := cp.NewShapeFilter(cp.NO_GROUP, cp.ALL_CATEGORIES, uint(mask))
		info := w.space.SegmentQueryFirst(start, end, 0, filter)
		if info.Shape != nil {
			if id, ok := w.walls[info.Shape]; ok {
				best = ai.Hit{ObjectID: id, Distance: info.Alpha * reach}
				found = true
			}
		}
	}

	if mask&LayerPlayer != 0 {
		// Deterministic order so ties resolve the same way every run.
		ids := make([]string, 0, len(w.bodies))
		for id := range w.bodies {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			t, ok := rayCircle(origin, u, w.bodies[id])
			if !ok || t > reach || t >= best.Distance {
				continue
			}
			best = ai.Hit{ObjectID: id, Distance: t}
			found = true
		}
	}

	if !found {
		return ai.Hit{}, false
	}
	best.Point = ai.Vec3{X: origin.X + u.X*best.Distance, Y: origin.Y, Z: origin.Z + u.Z*best.Distance}
	best.Distance /= n
	return best, true
}

// rayCircle returns the distance along unit u from origin to the circle edge.
// An origin inside the circle hits at 0.
func rayCircle(origin, u ai.Vec3, c circle) (float64, bool) {
	fx, fz := origin.X-c.x, origin.Z-c.z
	b := fx*u.X + fz*u.Z
	cc := fx*fx + fz*fz - c.r*c.r
	if cc <= 0 {
		return 0, true
	}
	if b > 0 {
		return 0, false
	}
	disc := b*b - cc
	if disc < 0 {
		return 0, false
	}
	return -b - math.Sqrt(disc), true
}
