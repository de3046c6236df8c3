package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig_IsConsistent(t *testing.T) {
	assert.Empty(t, DefaultConfig().Validate())
}

func TestConfig_MergeKeepsDefaultsForZeroFields(t *testing.T) {
	c := DefaultConfig().Merge(Config{
		Perception: PerceptionConfig{FieldOfView: 120},
		Attack:     AttackConfig{Damage: 25, CompleteStrikeOnExit: true},
		Chase:      ChaseConfig{StateOptions: StateOptions{Timeout: 8 * time.Second}},
	})
	assert.Equal(t, 120.0, c.Perception.FieldOfView)
	assert.Equal(t, 10.0, c.Perception.DetectionRange)
	assert.Equal(t, 25.0, c.Attack.Damage)
	assert.True(t, c.Attack.CompleteStrikeOnExit)
	assert.Equal(t, 2*time.Second, c.Attack.Cooldown)
	assert.Equal(t, 8*time.Second, c.Chase.Timeout)
	assert.Zero(t, c.Patrol.Timeout)
}

func ptr[T any](v T) *T { return &v }

func TestConfig_ApplySetsZeroAndFalse(t *testing.T) {
	base := DefaultConfig()
	base.Attack.CompleteStrikeOnExit = true
	base.Chase.AllowSelfTransition = true

	c := base.Apply(Override{
		Perception: PerceptionOverride{FieldOfView: ptr(60.0)},
		Chase:      ChaseOverride{StateOptionsOverride: StateOptionsOverride{AllowSelfTransition: ptr(false)}},
		Attack: AttackOverride{
			StrikeDelay:          ptr(time.Duration(0)),
			CompleteStrikeOnExit: ptr(false),
		},
	})
	assert.Equal(t, 60.0, c.Perception.FieldOfView)
	assert.Zero(t, c.Attack.StrikeDelay)
	assert.False(t, c.Attack.CompleteStrikeOnExit)
	assert.False(t, c.Chase.AllowSelfTransition)
	// untouched
	assert.Equal(t, 10.0, c.Perception.DetectionRange)
	assert.Equal(t, 2*time.Second, c.Attack.Cooldown)
}

func TestConfig_ApplyEmptyOverrideIsIdentity(t *testing.T) {
	base := DefaultConfig()
	base.Attack.CompleteStrikeOnExit = true
	assert.Equal(t, base, base.Apply(Override{}))
}

func TestConfig_ValidateFindings(t *testing.T) {
	c := DefaultConfig()
	c.Perception.DetectionRange = 0
	c.Perception.FieldOfView = 400
	c.Attack.Range = 1
	c.Attack.LoseDistance = 1

	w := c.Validate()
	assert.Len(t, w, 4)
	assert.Contains(t, w[0], "detection_range")
	assert.Contains(t, w[1], "field_of_view")
	assert.Contains(t, w[2], "attack.lose_distance")
	assert.Contains(t, w[3], "flip")
}
