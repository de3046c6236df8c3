package ai

import "time"

// Override is a sparse Config. Every field that is set wins over the base,
// zero and false included; unset fields keep the base value.
type Override struct {
	Perception PerceptionOverride `yaml:"perception"`
	Patrol     PatrolOverride     `yaml:"patrol"`
	Chase      ChaseOverride      `yaml:"chase"`
	Attack     AttackOverride     `yaml:"attack"`
}

type PerceptionOverride struct {
	DetectionRange *float64   `yaml:"detection_range"`
	FieldOfView    *float64   `yaml:"field_of_view"`
	LayerMask      *LayerMask `yaml:"layer_mask"`
}

type StateOptionsOverride struct {
	Timeout             *time.Duration `yaml:"timeout"`
	AllowSelfTransition *bool          `yaml:"allow_self_transition"`
}

type PatrolOverride struct {
	StateOptionsOverride `yaml:",inline"`
	WaitTime             *time.Duration `yaml:"wait_time"`
	Speed                *float64       `yaml:"speed"`
	ReachDistance        *float64       `yaml:"reach_distance"`
}

type ChaseOverride struct {
	StateOptionsOverride `yaml:",inline"`
	Speed                *float64       `yaml:"speed"`
	AttackRange          *float64       `yaml:"attack_range"`
	LoseDistance         *float64       `yaml:"lose_distance"`
	RefreshInterval      *time.Duration `yaml:"refresh_interval"`
	RotationSpeed        *float64       `yaml:"rotation_speed"`
}

type AttackOverride struct {
	StateOptionsOverride `yaml:",inline"`
	Range                *float64       `yaml:"range"`
	Cooldown             *time.Duration `yaml:"cooldown"`
	Damage               *float64       `yaml:"damage"`
	LoseDistance         *float64       `yaml:"lose_distance"`
	RotationSpeed        *float64       `yaml:"rotation_speed"`
	StrikeDelay          *time.Duration `yaml:"strike_delay"`
	CompleteStrikeOnExit *bool          `yaml:"complete_strike_on_exit"`
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func (o StateOptionsOverride) apply(dst *StateOptions) {
	set(&dst.Timeout, o.Timeout)
	set(&dst.AllowSelfTransition, o.AllowSelfTransition)
}

// Apply returns c with every set field of o written over it.
func (c Config) Apply(o Override) Config {
	set(&c.Perception.DetectionRange, o.Perception.DetectionRange)
	set(&c.Perception.FieldOfView, o.Perception.FieldOfView)
	set(&c.Perception.LayerMask, o.Perception.LayerMask)

	o.Patrol.apply(&c.Patrol.StateOptions)
	set(&c.Patrol.WaitTime, o.Patrol.WaitTime)
	set(&c.Patrol.Speed, o.Patrol.Speed)
	set(&c.Patrol.ReachDistance, o.Patrol.ReachDistance)

	o.Chase.apply(&c.Chase.StateOptions)
	set(&c.Chase.Speed, o.Chase.Speed)
	set(&c.Chase.AttackRange, o.Chase.AttackRange)
	set(&c.Chase.LoseDistance, o.Chase.LoseDistance)
	set(&c.Chase.RefreshInterval, o.Chase.RefreshInterval)
	set(&c.Chase.RotationSpeed, o.Chase.RotationSpeed)

	o.Attack.apply(&c.Attack.StateOptions)
	set(&c.Attack.Range, o.Attack.Range)
	set(&c.Attack.Cooldown, o.Attack.Cooldown)
	set(&c.Attack.Damage, o.Attack.Damage)
	set(&c.Attack.LoseDistance, o.Attack.LoseDistance)
	set(&c.Attack.RotationSpeed, o.Attack.RotationSpeed)
	set(&c.Attack.StrikeDelay, o.Attack.StrikeDelay)
	set(&c.Attack.CompleteStrikeOnExit, o.Attack.CompleteStrikeOnExit)
	return c
}
