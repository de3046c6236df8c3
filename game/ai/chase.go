package ai

import "time"

// Chase pursues the target until it is close enough to strike or far enough
// to give up on.
type Chase struct {
	baseState
	cfg ChaseConfig

	lastKnown    Vec3
	sinceRefresh time.Duration
	refreshes    int
}

func newChase(cfg ChaseConfig) *Chase {
	c := &Chase{cfg: cfg}
	c.baseState = baseState{self: c, kind: StateChase, opts: cfg.StateOptions}
	return c
}

// LastKnownTargetPosition is the destination most recently issued to the navigator.
func (c *Chase) LastKnownTargetPosition() Vec3 { return c.lastKnown }

// DistanceToTarget returns math.MaxFloat64 when there is no target.
func (c *Chase) DistanceToTarget() float64 {
	if d, ok := c.distanceToTarget(); ok {
		return d
	}
	return maxDistance
}

// Refreshes counts destination updates issued since the last EnterState.
func (c *Chase) Refreshes() int { return c.refreshes }

func (c *Chase) onEnter() {
	c.refreshes = 0
	c.sinceRefresh = 0
	if nav := c.navigator(); nav != nil {
		nav.SetSpeed(c.cfg.Speed)
		nav.Stop(false)
	}
	c.refreshDestination()
}

func (c *Chase) onUpdate(dt time.Duration) {
	dist, ok := c.distanceToTarget()
	if !ok {
		return
	}
	if dist > c.cfg.LoseDistance {
		c.agent.HandlePlayerLost()
		return
	}
	if dist <= c.cfg.AttackRange {
		c.agent.TransitionToAttack()
		return
	}

	// Destination refresh is throttled; facing runs every tick.
	c.sinceRefresh += dt
	if c.sinceRefresh >= c.cfg.RefreshInterval {
		c.refreshDestination()
		c.sinceRefresh = 0
	}
	c.faceTarget(c.cfg.RotationSpeed, dt)
}

func (c *Chase) onExit() {
	if nav := c.navigator(); nav != nil {
		nav.Stop(true)
	}
}

// onTimeout gives up a chase that has run longer than the configured timeout.
func (c *Chase) onTimeout() {
	c.agent.HandlePlayerLost()
}

func (c *Chase) refreshDestination() {
	if !c.targetOK() {
		return
	}
	c.lastKnown = c.target.Position()
	if nav := c.navigator(); nav != nil {
		nav.SetDestination(c.lastKnown)
		c.refreshes++
	}
}
