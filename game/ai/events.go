package ai

// Event is a notification emitted by EnemyAI for HUD, audio, journal and
// network consumers. Delivery is fire-and-forget.
type Event interface {
	EventType() string
}

// Sink receives events. It must not call back into the emitting agent.
type Sink func(Event)

type EventStateChanged struct {
	AgentID string    `json:"agent_id"`
	From    StateKind `json:"from"`
	To      StateKind `json:"to"`
	// Initial is true for the first state an agent enters.
	Initial bool `json:"initial,omitempty"`
}

func (EventStateChanged) EventType() string { return "state_changed" }

type EventTargetDetected struct {
	AgentID  string `json:"agent_id"`
	TargetID string `json:"target_id"`
	Position Vec3   `json:"position"`
}

func (EventTargetDetected) EventType() string { return "target_detected" }

type EventTargetLost struct {
	AgentID  string `json:"agent_id"`
	TargetID string `json:"target_id,omitempty"`
	// Forced is true when a state gave up on the target (lose distance or
	// chase timeout) rather than perception losing sight of it.
	Forced bool `json:"forced,omitempty"`
}

func (EventTargetLost) EventType() string { return "target_lost" }

type EventStrike struct {
	AgentID  string  `json:"agent_id"`
	TargetID string  `json:"target_id,omitempty"`
	Damage   float64 `json:"damage"`
	// Delivered is false when the target could not receive damage.
	Delivered bool `json:"delivered"`
}

func (EventStrike) EventType() string { return "strike" }

type EventConfigWarning struct {
	AgentID string `json:"agent_id"`
	Message string `json:"message"`
}

func (EventConfigWarning) EventType() string { return "config_warning" }
