package ai

import (
	"time"

	"go.uber.org/zap"
)

// Attack strikes the target on a cooldown while it stays within range.
// Inside the state a strike runs Idle -> Striking(StrikeDelay) -> Idle.
// The cooldown is measured on the agent clock, so it also runs while the
// agent is in another state and leaving Attack never resets it.
type Attack struct {
	baseState
	cfg AttackConfig

	struck     bool
	lastStrike time.Duration // agent clock at the last strike
	striking   bool
	pending    DeferredID
	strikes    int
}

func newAttack(cfg AttackConfig) *Attack {
	a := &Attack{cfg: cfg}
	a.baseState = baseState{self: a, kind: StateAttack, opts: cfg.StateOptions}
	return a
}

func (a *Attack) Range() float64 { return a.cfg.Range }

func (a *Attack) Striking() bool { return a.striking }

// Strikes counts strikes started over the agent's lifetime.
func (a *Attack) Strikes() int { return a.strikes }

func (a *Attack) sinceStrike() time.Duration {
	if !a.struck {
		return a.cfg.Cooldown
	}
	return a.agent.clock - a.lastStrike
}

// TimeUntilNextStrike is zero when the cooldown has elapsed.
func (a *Attack) TimeUntilNextStrike() time.Duration {
	if left := a.cfg.Cooldown - a.sinceStrike(); left > 0 {
		return left
	}
	return 0
}

// CanStrike reports whether a new strike may start now.
func (a *Attack) CanStrike() bool {
	return !a.striking && a.sinceStrike() >= a.cfg.Cooldown
}

// TryStrike starts a strike if one is available. Damage lands StrikeDelay later.
func (a *Attack) TryStrike() bool {
	if !a.active || !a.CanStrike() || !a.targetOK() {
		return false
	}
	a.striking = true
	a.struck = true
	a.lastStrike = a.agent.clock
	a.strikes++

	target := a.target
	var id DeferredID
	id = a.agent.deferred.Schedule(a.cfg.StrikeDelay, func() {
		a.deliver(target)
		if a.pending == id {
			a.pending = 0
			a.striking = false
		}
	})
	a.pending = id
	return true
}

func (a *Attack) onEnter() {
	if nav := a.navigator(); nav != nil {
		nav.Stop(true)
	}
	a.striking = false
	a.pending = 0
}

func (a *Attack) onUpdate(dt time.Duration) {
	dist, ok := a.distanceToTarget()
	if !ok {
		return
	}
	if dist > a.cfg.LoseDistance {
		a.agent.HandlePlayerLost()
		return
	}
	if dist > a.cfg.Range {
		a.agent.TransitionToChase()
		return
	}
	a.faceTarget(a.cfg.RotationSpeed, dt)
	a.TryStrike()
}

func (a *Attack) onExit() {
	if a.pending != 0 && !a.cfg.CompleteStrikeOnExit {
		a.agent.deferred.Cancel(a.pending)
	}
	a.pending = 0
	a.striking = false
	if nav := a.navigator(); nav != nil {
		nav.Stop(false)
	}
}

func (a *Attack) onTimeout() {}

func (a *Attack) deliver(target Target) {
	ev := EventStrike{AgentID: a.agent.id, Damage: a.cfg.Damage}
	if target != nil {
		ev.TargetID = target.ID()
		// A target removed during the delay takes no damage.
		if r, ok := target.(DamageReceiver); ok && target.Valid() {
			r.TakeDamage(a.cfg.Damage)
			ev.Delivered = true
		}
	}
	a.agent.logger.Debug("strike",
		zap.String("target_id", ev.TargetID),
		zap.Float64("damage", ev.Damage),
		zap.Bool("delivered", ev.Delivered))
	a.agent.emit(ev)
}
