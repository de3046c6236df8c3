package ai

// Target is the entity an agent tracks. The AI only reads it.
type Target interface {
	ID() string
	Position() Vec3
	// Valid is false once the target has been removed or destroyed.
	Valid() bool
}

// DamageReceiver is the optional capability a Target implements to be hurt by strikes.
type DamageReceiver interface {
	TakeDamage(amount float64)
}

// Transform exposes the agent's pose and the orientation service that turns it.
type Transform interface {
	Position() Vec3
	Forward() Vec3
	// FaceTowards rotates toward dir by fraction t of the remaining angle (0..1).
	FaceTowards(dir Vec3, t float64)
}

// Navigator is the locomotion service that moves the agent.
type Navigator interface {
	SetDestination(point Vec3)
	Stop(stopped bool)
	SetSpeed(speed float64)
	RemainingDistance() float64
	IsPathPending() bool
}

// LayerMask selects which kinds of objects a raycast may hit.
type LayerMask uint32

// Hit describes the first object a raycast touched.
type Hit struct {
	ObjectID string
	Point    Vec3
	Distance float64
}

// Occluder answers line-of-sight queries against world geometry and bodies.
type Occluder interface {
	Raycast(origin, dir Vec3, maxDistance float64, mask LayerMask) (Hit, bool)
}

// targetOK treats nil and invalidated targets alike as "no target this tick".
func targetOK(t Target) bool {
	return t != nil && t.Valid()
}
