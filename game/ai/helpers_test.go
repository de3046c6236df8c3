package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const tick = 50 * time.Millisecond

func nop() *zap.Logger {
	l, _ := zap.NewDevelopment()
	return l
}

// ---- fakes ----

type fakeTransform struct {
	pos, fwd Vec3
	faced    int
}

func (f *fakeTransform) Position() Vec3 { return f.pos }
func (f *fakeTransform) Forward() Vec3  { return f.fwd }

func (f *fakeTransform) FaceTowards(dir Vec3, t float64) {
	f.faced++
	if n := f.fwd.Add(dir.Sub(f.fwd).Scale(t)).Normalize(); !n.IsZero() {
		f.fwd = n
	}
}

type fakeNav struct {
	dests     []Vec3
	stops     []bool
	speed     float64
	remaining float64
	pending   bool
}

func (n *fakeNav) SetDestination(p Vec3) { n.dests = append(n.dests, p) }
func (n *fakeNav) Stop(stopped bool)     { n.stops = append(n.stops, stopped) }
func (n *fakeNav) SetSpeed(s float64)    { n.speed = s }
func (n *fakeNav) RemainingDistance() float64 {
	return n.remaining
}
func (n *fakeNav) IsPathPending() bool { return n.pending }

func (n *fakeNav) lastStop() bool {
	if len(n.stops) == 0 {
		return false
	}
	return n.stops[len(n.stops)-1]
}

type fakeTarget struct {
	id      string
	pos     Vec3
	invalid bool
}

func (t *fakeTarget) ID() string     { return t.id }
func (t *fakeTarget) Position() Vec3 { return t.pos }
func (t *fakeTarget) Valid() bool    { return !t.invalid }

// hurtTarget can receive damage.
type hurtTarget struct {
	fakeTarget
	taken []float64
}

func (t *hurtTarget) TakeDamage(amount float64) { t.taken = append(t.taken, amount) }

// fakeOccluder reports hitID as the first thing every ray touches.
type fakeOccluder struct {
	hitID string
	miss  bool
	calls int
}

func (o *fakeOccluder) Raycast(origin, dir Vec3, maxDistance float64, mask LayerMask) (Hit, bool) {
	o.calls++
	if o.miss {
		return Hit{}, false
	}
	return Hit{ObjectID: o.hitID}, true
}

// ---- rig ----

type rig struct {
	ai     *EnemyAI
	tr     *fakeTransform
	nav    *fakeNav
	occ    *fakeOccluder
	events []Event
}

func newRig(t *testing.T, target Target, cfg Config, waypoints ...Vec3) *rig {
	t.Helper()
	return newRigWith(t, target, Options{Config: cfg, Waypoints: waypoints})
}

// newRigWith fills in the fakes and keeps opts' tuning and waypoints.
func newRigWith(t *testing.T, target Target, opts Options) *rig {
	t.Helper()
	r := &rig{
		tr:  &fakeTransform{fwd: Vec3{Z: 1}},
		nav: &fakeNav{remaining: 100},
		occ: &fakeOccluder{hitID: "p1"},
	}
	opts.ID = "e1"
	opts.Transform = r.tr
	opts.Navigator = r.nav
	opts.Occluder = r.occ
	opts.Target = target
	opts.Logger = nop()
	opts.Sink = func(ev Event) { r.events = append(r.events, ev) }
	e, err := New(opts)
	require.NoError(t, err)
	r.ai = e
	return r
}

func (r *rig) ticks(n int) {
	for i := 0; i < n; i++ {
		r.ai.Tick(tick)
	}
}

func (r *rig) count(eventType string) int {
	n := 0
	for _, ev := range r.events {
		if ev.EventType() == eventType {
			n++
		}
	}
	return n
}

func (r *rig) kind(t *testing.T) StateKind {
	t.Helper()
	k, ok := r.ai.CurrentKind()
	require.True(t, ok, "agent not started")
	return k
}

// engage ticks until the agent has detected a target standing in attack
// range directly ahead and entered Attack.
func (r *rig) engage(t *testing.T) {
	t.Helper()
	r.ticks(1)
	require.Equal(t, StateChase, r.kind(t))
	r.ticks(1)
	require.Equal(t, StateAttack, r.kind(t))
}

func ahead(d float64) Vec3 { return Vec3{Z: d} }
