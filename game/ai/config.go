package ai

import (
	"fmt"
	"time"
)

// Config tunes an agent. Zero values are replaced by DefaultConfig values in New.
type Config struct {
	Perception PerceptionConfig `mapstructure:"perception" yaml:"perception"`
	Patrol     PatrolConfig     `mapstructure:"patrol" yaml:"patrol"`
	Chase      ChaseConfig      `mapstructure:"chase" yaml:"chase"`
	Attack     AttackConfig     `mapstructure:"attack" yaml:"attack"`
}

type PerceptionConfig struct {
	DetectionRange float64   `mapstructure:"detection_range" yaml:"detection_range"`
	FieldOfView    float64   `mapstructure:"field_of_view" yaml:"field_of_view"` // full cone angle, degrees
	LayerMask      LayerMask `mapstructure:"layer_mask" yaml:"layer_mask"`
}

// StateOptions are the lifecycle knobs every behavior state shares.
type StateOptions struct {
	Timeout             time.Duration `mapstructure:"timeout" yaml:"timeout"` // 0 disables
	AllowSelfTransition bool          `mapstructure:"allow_self_transition" yaml:"allow_self_transition"`
}

type PatrolConfig struct {
	StateOptions  `mapstructure:",squash" yaml:",inline"`
	WaitTime      time.Duration `mapstructure:"wait_time" yaml:"wait_time"`
	Speed         float64       `mapstructure:"speed" yaml:"speed"`
	ReachDistance float64       `mapstructure:"reach_distance" yaml:"reach_distance"`
}

type ChaseConfig struct {
	StateOptions    `mapstructure:",squash" yaml:",inline"`
	Speed           float64       `mapstructure:"speed" yaml:"speed"`
	AttackRange     float64       `mapstructure:"attack_range" yaml:"attack_range"`
	LoseDistance    float64       `mapstructure:"lose_distance" yaml:"lose_distance"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval" yaml:"refresh_interval"`
	RotationSpeed   float64       `mapstructure:"rotation_speed" yaml:"rotation_speed"`
}

type AttackConfig struct {
	StateOptions  `mapstructure:",squash" yaml:",inline"`
	Range         float64       `mapstructure:"range" yaml:"range"`
	Cooldown      time.Duration `mapstructure:"cooldown" yaml:"cooldown"`
	Damage        float64       `mapstructure:"damage" yaml:"damage"`
	LoseDistance  float64       `mapstructure:"lose_distance" yaml:"lose_distance"`
	RotationSpeed float64       `mapstructure:"rotation_speed" yaml:"rotation_speed"`
	StrikeDelay   time.Duration `mapstructure:"strike_delay" yaml:"strike_delay"`
	// CompleteStrikeOnExit lets a strike that already started land even after
	// the agent leaves Attack. Off by default: leaving Attack cancels it.
	CompleteStrikeOnExit bool `mapstructure:"complete_strike_on_exit" yaml:"complete_strike_on_exit"`
}

// DefaultConfig mirrors the tuning the prototype shipped with.
func DefaultConfig() Config {
	return Config{
		Perception: PerceptionConfig{
			DetectionRange: 10,
			FieldOfView:    90,
			LayerMask:      ^LayerMask(0),
		},
		Patrol: PatrolConfig{
			WaitTime:      1500 * time.Millisecond,
			Speed:         3,
			ReachDistance: 1,
		},
		Chase: ChaseConfig{
			Speed:           4,
			AttackRange:     2,
			LoseDistance:    10,
			RefreshInterval: 500 * time.Millisecond,
			RotationSpeed:   5,
		},
		Attack: AttackConfig{
			Range:         2,
			Cooldown:      2 * time.Second,
			Damage:        10,
			LoseDistance:  15,
			RotationSpeed: 5,
			StrikeDelay:   500 * time.Millisecond,
		},
	}
}

// Merge returns c with every non-zero field of o applied on top. It cannot
// clear a value or turn a flag off; use Apply with an Override for that.
func (c Config) Merge(o Config) Config {
	setF := func(dst *float64, v float64) {
		if v != 0 {
			*dst = v
		}
	}
	setD := func(dst *time.Duration, v time.Duration) {
		if v != 0 {
			*dst = v
		}
	}
	setOpts := func(dst *StateOptions, v StateOptions) {
		setD(&dst.Timeout, v.Timeout)
		if v.AllowSelfTransition {
			dst.AllowSelfTransition = true
		}
	}

	setF(&c.Perception.DetectionRange, o.Perception.DetectionRange)
	setF(&c.Perception.FieldOfView, o.Perception.FieldOfView)
	if o.Perception.LayerMask != 0 {
		c.Perception.LayerMask = o.Perception.LayerMask
	}

	setOpts(&c.Patrol.StateOptions, o.Patrol.StateOptions)
	setD(&c.Patrol.WaitTime, o.Patrol.WaitTime)
	setF(&c.Patrol.Speed, o.Patrol.Speed)
	setF(&c.Patrol.ReachDistance, o.Patrol.ReachDistance)

	setOpts(&c.Chase.StateOptions, o.Chase.StateOptions)
	setF(&c.Chase.Speed, o.Chase.Speed)
	setF(&c.Chase.AttackRange, o.Chase.AttackRange)
	setF(&c.Chase.LoseDistance, o.Chase.LoseDistance)
	setD(&c.Chase.RefreshInterval, o.Chase.RefreshInterval)
	setF(&c.Chase.RotationSpeed, o.Chase.RotationSpeed)

	setOpts(&c.Attack.StateOptions, o.Attack.StateOptions)
	setF(&c.Attack.Range, o.Attack.Range)
	setD(&c.Attack.Cooldown, o.Attack.Cooldown)
	setF(&c.Attack.Damage, o.Attack.Damage)
	setF(&c.Attack.LoseDistance, o.Attack.LoseDistance)
	setF(&c.Attack.RotationSpeed, o.Attack.RotationSpeed)
	setD(&c.Attack.StrikeDelay, o.Attack.StrikeDelay)
	if o.Attack.CompleteStrikeOnExit {
		c.Attack.CompleteStrikeOnExit = true
	}
	return c
}

// Validate reports tuning that will make the agent misbehave. None of the
// findings are fatal; the agent logs them and degrades.
func (c Config) Validate() []string {
	var warnings []string
	if c.Perception.DetectionRange <= 0 {
		warnings = append(warnings, "perception.detection_range must be > 0; target will never be detected")
	}
	if c.Perception.FieldOfView <= 0 || c.Perception.FieldOfView > 360 {
		warnings = append(warnings, fmt.Sprintf("perception.field_of_view %.1f outside (0, 360]", c.Perception.FieldOfView))
	}
	if c.Chase.AttackRange >= c.Chase.LoseDistance {
		warnings = append(warnings, "chase.attack_range should be smaller than chase.lose_distance")
	}
	if c.Attack.Range >= c.Attack.LoseDistance {
		warnings = append(warnings, "attack.range should be smaller than attack.lose_distance")
	}
	if c.Chase.LoseDistance < c.Perception.DetectionRange {
		warnings = append(warnings, "chase.lose_distance is below perception.detection_range; chase will drop targets it can still see")
	}
	if c.Attack.Range < c.Chase.AttackRange {
		warnings = append(warnings, "attack.range is below chase.attack_range; agent will flip between chase and attack")
	}
	return warnings
}
