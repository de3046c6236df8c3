package ai

import (
	"time"

	"go.uber.org/zap"
)

// Patrol walks the agent around a fixed loop of waypoints, pausing at each one.
type Patrol struct {
	baseState
	cfg PatrolConfig

	waypoints []Vec3
	index     int
	waiting   bool
	waitTimer time.Duration
	idle      bool // entered without waypoints
}

func newPatrol(cfg PatrolConfig, waypoints []Vec3) *Patrol {
	p := &Patrol{cfg: cfg}
	p.baseState = baseState{self: p, kind: StatePatrol, opts: cfg.StateOptions}
	p.SetWaypoints(waypoints)
	return p
}

// SetWaypoints replaces the loop and restarts it from the first waypoint.
func (p *Patrol) SetWaypoints(waypoints []Vec3) {
	p.waypoints = append([]Vec3(nil), waypoints...)
	p.index = 0
	p.waiting = false
	p.waitTimer = 0
	if p.active && len(p.waypoints) > 0 {
		p.idle = false
		p.moveToWaypoint()
	}
}

func (p *Patrol) Waypoints() []Vec3 { return append([]Vec3(nil), p.waypoints...) }

// CurrentWaypoint returns the waypoint the agent is heading to or waiting at.
func (p *Patrol) CurrentWaypoint() (Vec3, bool) {
	if len(p.waypoints) == 0 {
		return Vec3{}, false
	}
	return p.waypoints[p.index], true
}

func (p *Patrol) Index() int    { return p.index }
func (p *Patrol) Waiting() bool { return p.waiting }
func (p *Patrol) Idle() bool    { return p.idle }

func (p *Patrol) onEnter() {
	p.waiting = false
	p.waitTimer = 0
	if nav := p.navigator(); nav != nil {
		nav.SetSpeed(p.cfg.Speed)
		nav.Stop(false)
	}
	if len(p.waypoints) == 0 {
		p.idle = true
		p.agent.warn("patrol has no waypoints; agent stays idle")
		return
	}
	p.idle = false
	p.moveToWaypoint()
}

func (p *Patrol) onUpdate(dt time.Duration) {
	if len(p.waypoints) == 0 {
		return
	}
	nav := p.navigator()
	if p.waiting {
		p.waitTimer += dt
		if p.waitTimer >= p.cfg.WaitTime {
			p.waiting = false
			p.waitTimer = 0
			p.index = (p.index + 1) % len(p.waypoints)
			if nav != nil {
				nav.Stop(false)
			}
			p.moveToWaypoint()
		}
		return
	}
	if nav != nil && !nav.IsPathPending() && nav.RemainingDistance() < p.cfg.ReachDistance {
		p.waiting = true
		nav.Stop(true)
		p.agent.logger.Debug("patrol reached waypoint", zap.Int("index", p.index))
	}
}

func (p *Patrol) onExit() {
	if nav := p.navigator(); nav != nil {
		nav.Stop(true)
	}
}

func (p *Patrol) onTimeout() {}

func (p *Patrol) moveToWaypoint() {
	if nav := p.navigator(); nav != nil {
		nav.SetDestination(p.waypoints[p.index])
	}
}
