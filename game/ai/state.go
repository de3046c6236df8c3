package ai

import (
	"fmt"
	"strings"
	"time"
)

// StateKind enumerates the behavior states of an enemy.
type StateKind int

const (
	StatePatrol StateKind = iota
	StateChase
	StateAttack
)

func (k StateKind) String() string {
	switch k {
	case StatePatrol:
		return "patrol"
	case StateChase:
		return "chase"
	case StateAttack:
		return "attack"
	default:
		return fmt.Sprintf("state(%d)", int(k))
	}
}

func (k StateKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *StateKind) UnmarshalText(b []byte) error {
	parsed, err := ParseStateKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseStateKind accepts the lower-case names produced by String.
func ParseStateKind(s string) (StateKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "patrol":
		return StatePatrol, nil
	case "chase":
		return StateChase, nil
	case "attack":
		return StateAttack, nil
	}
	return 0, fmt.Errorf("ai: unknown state %q", s)
}

// State is the lifecycle contract shared by Patrol, Chase and Attack.
type State interface {
	Kind() StateKind
	EnterState(agent *EnemyAI, target Target)
	UpdateState(dt time.Duration)
	ExitState()
	CanTransitionTo(next State) bool
	Active() bool
	// Timer is the time spent in the state since the last EnterState.
	Timer() time.Duration
}

// stateHooks are the per-state callbacks driven by baseState.
type stateHooks interface {
	onEnter()
	onUpdate(dt time.Duration)
	onExit()
	onTimeout()
}

type behavior interface {
	State
	stateHooks
}

// baseState carries the bookkeeping common to every behavior state.
// Concrete states embed it and set self to themselves.
type baseState struct {
	self   behavior
	kind   StateKind
	opts   StateOptions
	agent  *EnemyAI
	target Target
	timer  time.Duration
	active bool
}

func (b *baseState) Kind() StateKind      { return b.kind }
func (b *baseState) Active() bool         { return b.active }
func (b *baseState) Timer() time.Duration { return b.timer }

func (b *baseState) bind(target Target) { b.target = target }
func (b *baseState) targetOK() bool     { return targetOK(b.target) }

func (b *baseState) EnterState(agent *EnemyAI, target Target) {
	b.agent = agent
	b.target = target
	b.timer = 0
	b.active = true
	b.self.onEnter()
}

func (b *baseState) UpdateState(dt time.Duration) {
	if !b.active {
		return
	}
	if dt > 0 {
		b.timer += dt
	}
	b.self.onUpdate(dt)
	// onUpdate may have transitioned away.
	if b.active && b.opts.Timeout > 0 && b.timer >= b.opts.Timeout {
		b.self.onTimeout()
	}
}

func (b *baseState) ExitState() {
	b.active = false
	b.self.onExit()
}

func (b *baseState) CanTransitionTo(next State) bool {
	return next != State(b.self) || b.opts.AllowSelfTransition
}

// distanceToTarget returns false when there is no usable target.
func (b *baseState) distanceToTarget() (float64, bool) {
	if !b.targetOK() || b.agent == nil {
		return 0, false
	}
	return Distance(b.agent.transform.Position(), b.target.Position()), true
}

// faceTarget turns the agent toward the target on the ground plane,
// interpolating at rate per second.
func (b *baseState) faceTarget(rate float64, dt time.Duration) {
	if !b.targetOK() || b.agent == nil {
		return
	}
	dir := b.target.Position().Sub(b.agent.transform.Position()).Flat()
	if dir.IsZero() {
		return
	}
	t := rate * dt.Seconds()
	if t > 1 {
		t = 1
	}
	if t <= 0 {
		return
	}
	b.agent.transform.FaceTowards(dir.Normalize(), t)
}

func (b *baseState) navigator() Navigator {
	if b.agent == nil {
		return nil
	}
	return b.agent.nav
}
