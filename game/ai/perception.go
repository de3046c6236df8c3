package ai

// Perception decides whether a target is visible from an agent's pose:
// inside the detection range, inside the field-of-view cone and not occluded.
type Perception struct {
	Range       float64
	FieldOfView float64 // full cone angle in degrees
	Mask        LayerMask

	occluder Occluder
}

// NewPerception builds a Perception. A nil occluder means every in-cone
// target is treated as having clear sight.
func NewPerception(cfg PerceptionConfig, occluder Occluder) *Perception {
	return &Perception{
		Range:       cfg.DetectionRange,
		FieldOfView: cfg.FieldOfView,
		Mask:        cfg.LayerMask,
		occluder:    occluder,
	}
}

func (p *Perception) InRange(from, to Vec3) bool {
	return p.Range > 0 && Distance(from, to) <= p.Range
}

func (p *Perception) InFieldOfView(from, forward, to Vec3) bool {
	return AngleBetween(forward, to.Sub(from)) <= p.FieldOfView/2
}

// HasLineOfSight casts a ray toward the target; sight is clear only when the
// first thing hit is the target itself.
func (p *Perception) HasLineOfSight(from Vec3, target Target) bool {
	if p.occluder == nil {
		return true
	}
	dir := target.Position().Sub(from)
	hit, ok := p.occluder.Raycast(from, dir.Normalize(), p.Range, p.Mask)
	if !ok {
		return false
	}
	return hit.ObjectID == target.ID()
}

// CanSee combines the three checks in order of cost.
func (p *Perception) CanSee(from, forward Vec3, target Target) bool {
	if !targetOK(target) {
		return false
	}
	to := target.Position()
	return p.InRange(from, to) && p.InFieldOfView(from, forward, to) && p.HasLineOfSight(from, target)
}
