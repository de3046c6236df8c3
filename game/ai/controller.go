package ai

import (
	"errors"
	"time"

	"go.uber.org/zap"
)

// Options wires an EnemyAI to its collaborators.
type Options struct {
	ID        string
	Transform Transform
	Navigator Navigator
	// Occluder may be nil, in which case sight is never blocked.
	Occluder  Occluder
	Target    Target
	Waypoints []Vec3
	// Config is merged on top of DefaultConfig; its zero fields keep the
	// defaults. Override is applied last and may set zero or false values.
	Config   Config
	Override Override
	Logger   *zap.Logger
	Sink     Sink
}

// EnemyAI owns perception and the active behavior state of one enemy, and
// arbitrates every transition between Patrol, Chase and Attack.
//
// It is not safe for concurrent use; the owner drives it from one goroutine.
type EnemyAI struct {
	id         string
	transform  Transform
	nav        Navigator
	perception *Perception
	target     Target

	patrol *Patrol
	chase  *Chase
	attack *Attack

	current   State
	clock     time.Duration // simulated time since New
	detected  bool
	lastKnown Vec3
	deferred  Deferred

	sink   Sink
	logger *zap.Logger
}

// New builds an agent. Only missing locomotion is an error; tuning problems
// are logged and reported as configuration warnings.
func New(opts Options) (*EnemyAI, error) {
	if opts.Transform == nil {
		return nil, errors.New("ai: transform is required")
	}
	if opts.Navigator == nil {
		return nil, errors.New("ai: navigator is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := DefaultConfig().Merge(opts.Config).Apply(opts.Override)

	e := &EnemyAI{
		id:         opts.ID,
		transform:  opts.Transform,
		nav:        opts.Navigator,
		perception: NewPerception(cfg.Perception, opts.Occluder),
		target:     opts.Target,
		patrol:     newPatrol(cfg.Patrol, opts.Waypoints),
		chase:      newChase(cfg.Chase),
		attack:     newAttack(cfg.Attack),
		sink:       opts.Sink,
		logger:     logger.With(zap.String("agent_id", opts.ID)),
	}
	for _, w := range cfg.Validate() {
		e.warn(w)
	}
	if opts.Occluder == nil {
		e.warn("no occluder configured; line of sight is never blocked")
	}
	return e, nil
}

// Start enters Patrol. Tick calls it lazily if the agent was never started.
func (e *EnemyAI) Start() {
	if e.current != nil {
		return
	}
	e.TransitionToPatrol()
}

// Tick advances the agent by dt: pending deferred actions first, then the
// active state, then perception.
func (e *EnemyAI) Tick(dt time.Duration) {
	if e.current == nil {
		e.Start()
	}
	if dt > 0 {
		e.clock += dt
	}
	e.deferred.Advance(dt)
	e.current.UpdateState(dt)
	e.checkPerception()
}

func (e *EnemyAI) checkPerception() {
	if !targetOK(e.target) {
		return
	}
	from := e.transform.Position()
	to := e.target.Position()

	if e.detected {
		if !e.perception.InRange(from, to) {
			e.detected = false
			e.logger.Debug("target left detection range", zap.String("target_id", e.target.ID()))
			e.emit(EventTargetLost{AgentID: e.id, TargetID: e.target.ID()})
			return
		}
		if e.perception.CanSee(from, e.transform.Forward(), e.target) {
			e.lastKnown = to
		}
		return
	}

	if !e.perception.CanSee(from, e.transform.Forward(), e.target) {
		return
	}
	e.detected = true
	e.lastKnown = to
	e.logger.Debug("target detected", zap.String("target_id", e.target.ID()))
	e.emit(EventTargetDetected{AgentID: e.id, TargetID: e.target.ID(), Position: to})
	e.TransitionToChase()
}

// TransitionTo exits the current state and enters next. A nil next is ignored.
// The transition guard is not consulted; see RequestTransition.
func (e *EnemyAI) TransitionTo(next State) {
	if next == nil {
		return
	}
	prev := e.current
	if prev != nil {
		prev.ExitState()
	}
	e.current = next
	next.EnterState(e, e.target)

	ev := EventStateChanged{AgentID: e.id, To: next.Kind(), Initial: prev == nil}
	if prev != nil {
		ev.From = prev.Kind()
	}
	e.logger.Debug("state changed",
		zap.Stringer("from", ev.From),
		zap.Stringer("to", ev.To),
		zap.Bool("initial", ev.Initial))
	e.emit(ev)
}

func (e *EnemyAI) TransitionToPatrol() { e.TransitionTo(e.patrol) }
func (e *EnemyAI) TransitionToChase()  { e.TransitionTo(e.chase) }
func (e *EnemyAI) TransitionToAttack() { e.TransitionTo(e.attack) }

// RequestTransition moves to the state of the given kind only if the active
// state allows it. Returns whether the transition happened.
func (e *EnemyAI) RequestTransition(kind StateKind) bool {
	next := e.state(kind)
	if next == nil {
		return false
	}
	if e.current != nil && !e.current.CanTransitionTo(next) {
		return false
	}
	e.TransitionTo(next)
	return true
}

// HandlePlayerLost is called by states that give up on the target on their
// own terms. It clears detection and returns the agent to Patrol.
func (e *EnemyAI) HandlePlayerLost() {
	e.detected = false
	ev := EventTargetLost{AgentID: e.id, Forced: true}
	if e.target != nil {
		ev.TargetID = e.target.ID()
	}
	e.emit(ev)
	e.TransitionToPatrol()
}

func (e *EnemyAI) state(kind StateKind) State {
	switch kind {
	case StatePatrol:
		return e.patrol
	case StateChase:
		return e.chase
	case StateAttack:
		return e.attack
	}
	return nil
}

func (e *EnemyAI) emit(ev Event) {
	if e.sink != nil {
		e.sink(ev)
	}
}

func (e *EnemyAI) warn(msg string) {
	e.logger.Warn("ai configuration", zap.String("problem", msg))
	e.emit(EventConfigWarning{AgentID: e.id, Message: msg})
}

// ---- accessors ----

func (e *EnemyAI) ID() string                    { return e.id }
func (e *EnemyAI) CurrentState() State           { return e.current }
func (e *EnemyAI) Detected() bool                { return e.detected }
func (e *EnemyAI) Target() Target                { return e.target }
func (e *EnemyAI) LastKnownTargetPosition() Vec3 { return e.lastKnown }
func (e *EnemyAI) DetectionRange() float64       { return e.perception.Range }
func (e *EnemyAI) FieldOfView() float64          { return e.perception.FieldOfView }
func (e *EnemyAI) Patrol() *Patrol               { return e.patrol }
func (e *EnemyAI) Chase() *Chase                 { return e.chase }
func (e *EnemyAI) Attack() *Attack               { return e.attack }
func (e *EnemyAI) PendingActions() int           { return e.deferred.Pending() }

// CurrentKind returns the kind of the active state, and false before Start.
func (e *EnemyAI) CurrentKind() (StateKind, bool) {
	if e.current == nil {
		return 0, false
	}
	return e.current.Kind(), true
}

// SetTarget swaps the tracked target. Detection restarts from scratch and the
// active state follows the new target from its next update.
func (e *EnemyAI) SetTarget(t Target) {
	e.target = t
	e.detected = false
	if b, ok := e.current.(interface{ bind(Target) }); ok {
		b.bind(t)
	}
}

// SetDetectionRange ignores values <= 0.
func (e *EnemyAI) SetDetectionRange(r float64) {
	if r <= 0 {
		e.warn("detection range must be > 0; keeping previous value")
		return
	}
	e.perception.Range = r
}

// SetFieldOfView takes the full cone angle in degrees, (0, 360].
func (e *EnemyAI) SetFieldOfView(deg float64) {
	if deg <= 0 || deg > 360 {
		e.warn("field of view must be in (0, 360]; keeping previous value")
		return
	}
	e.perception.FieldOfView = deg
}

// Snapshot is a read-only view of the agent for diagnostics and the API.
type Snapshot struct {
	ID             string    `json:"id"`
	State          StateKind `json:"state"`
	Started        bool      `json:"started"`
	Detected       bool      `json:"detected"`
	TargetID       string    `json:"target_id,omitempty"`
	LastKnown      Vec3      `json:"last_known"`
	Position       Vec3      `json:"position"`
	Forward        Vec3      `json:"forward"`
	DetectionRange float64   `json:"detection_range"`
	FieldOfView    float64   `json:"field_of_view"`
	StateTime      float64   `json:"state_time"`
	Striking       bool      `json:"striking"`
	PatrolIndex    int       `json:"patrol_index"`
	Waypoints      []Vec3    `json:"waypoints,omitempty"`
}

func (e *EnemyAI) Snapshot() Snapshot {
	s := Snapshot{
		ID:             e.id,
		Detected:       e.detected,
		LastKnown:      e.lastKnown,
		Position:       e.transform.Position(),
		Forward:        e.transform.Forward(),
		DetectionRange: e.perception.Range,
		FieldOfView:    e.perception.FieldOfView,
		Striking:       e.attack.Striking(),
		PatrolIndex:    e.patrol.Index(),
		Waypoints:      e.patrol.Waypoints(),
	}
	if e.current != nil {
		s.Started = true
		s.State = e.current.Kind()
		s.StateTime = e.current.Timer().Seconds()
	}
	if targetOK(e.target) {
		s.TargetID = e.target.ID()
	}
	return s
}
