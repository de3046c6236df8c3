package world

import (
	"math"
	"time"

	"github.com/nightwatch-game/server/game/ai"
)

// turnRate is how fast a moving body swings toward its heading, as the
// fraction of the remaining angle closed per second.
const turnRate = 10.0

// Body is an enemy's kinematic pose. It walks straight at its destination on
// the ground plane; there is no path planning, so a path is never pending.
//
// Yaw is in radians, 0 faces +Z and positive turns toward +X.
type Body struct {
	pos     ai.Vec3
	yaw     float64
	speed   float64
	dest    ai.Vec3
	hasDest bool
	stopped bool
}

func NewBody(pos ai.Vec3, yawDeg float64) *Body {
	return &Body{pos: pos, yaw: yawDeg * math.Pi / 180}
}

func (b *Body) Position() ai.Vec3 { return b.pos }

func (b *Body) Forward() ai.Vec3 {
	return ai.Vec3{X: math.Sin(b.yaw), Z: math.Cos(b.yaw)}
}

// Yaw returns the heading in degrees, in (-180, 180].
func (b *Body) Yaw() float64 { return b.yaw * 180 / math.Pi }

func (b *Body) FaceTowards(dir ai.Vec3, t float64) {
	flat := dir.Flat()
	if flat.IsZero() {
		return
	}
	if t > 1 {
		t = 1
	} else if t <= 0 {
		return
	}
	target := math.Atan2(flat.X, flat.Z)
	b.yaw = wrapAngle(b.yaw + wrapAngle(target-b.yaw)*t)
}

func (b *Body) SetDestination(p ai.Vec3) {
	b.dest = p
	b.hasDest = true
}

func (b *Body) Stop(stopped bool)      { b.stopped = stopped }
func (b *Body) SetSpeed(speed float64) { b.speed = speed }
func (b *Body) IsPathPending() bool    { return false }
func (b *Body) Stopped() bool          { return b.stopped }

// RemainingDistance is the ground distance to the destination, 0 without one.
func (b *Body) RemainingDistance() float64 {
	if !b.hasDest {
		return 0
	}
	return b.dest.Sub(b.pos).Flat().Len()
}

// Advance moves the body toward its destination for dt, turning to face the
// direction of travel. Stopped bodies keep their pose.
func (b *Body) Advance(dt time.Duration) {
	if b.stopped || !b.hasDest || b.speed <= 0 {
		return
	}
	to := b.dest.Sub(b.pos).Flat()
	d := to.Len()
	if d < 1e-9 {
		return
	}
	secs := dt.Seconds()
	step := b.speed * secs
	if step >= d {
		b.pos.X, b.pos.Z = b.dest.X, b.dest.Z
	} else {
		b.pos = b.pos.Add(to.Scale(step / d))
	}
	b.FaceTowards(to, turnRate*secs)
}

func wrapAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

var (
	_ ai.Transform = (*Body)(nil)
	_ ai.Navigator = (*Body)(nil)
)
