package player

import "sync"

// Health tracks a player's hit points. Callbacks run synchronously on the
// goroutine that changed the value, after the lock has been released.
type Health struct {
	mu      sync.Mutex
	max     float64
	current float64
	dead    bool

	onChanged func(current, max float64)
	onDied    func()
}

// NewHealth starts at full health. A non-positive max falls back to 100.
func NewHealth(max float64) *Health {
	if max <= 0 {
		max = 100
	}
	return &Health{max: max, current: max}
}

// OnChanged registers the callback fired after every damage or heal.
func (h *Health) OnChanged(fn func(current, max float64)) {
	h.mu.Lock()
	h.onChanged = fn
	h.mu.Unlock()
}

// OnDied registers the callback fired once when health reaches zero.
func (h *Health) OnDied(fn func()) {
	h.mu.Lock()
	h.onDied = fn
	h.mu.Unlock()
}

// TakeDamage lowers health, never below zero. Damage on a dead player is ignored.
func (h *Health) TakeDamage(amount float64) {
	if amount <= 0 {
		return
	}
	h.mu.Lock()
	if h.dead {
		h.mu.Unlock()
		return
	}
	h.current -= amount
	if h.current < 0 {
		h.current = 0
	}
	died := h.current == 0
	if died {
		h.dead = true
	}
	cur, max, changed, onDied := h.current, h.max, h.onChanged, h.onDied
	h.mu.Unlock()

	if changed != nil {
		changed(cur, max)
	}
	if died && onDied != nil {
		onDied()
	}
}

// Heal raises health up to max. Dead players stay dead until FullHeal.
func (h *Health) Heal(amount float64) {
	if amount <= 0 {
		return
	}
	h.mu.Lock()
	if h.dead {
		h.mu.Unlock()
		return
	}
	h.current += amount
	if h.current > h.max {
		h.current = h.max
	}
	cur, max, changed := h.current, h.max, h.onChanged
	h.mu.Unlock()

	if changed != nil {
		changed(cur, max)
	}
}

// FullHeal restores max health and revives a dead player.
func (h *Health) FullHeal() {
	h.mu.Lock()
	h.current = h.max
	h.dead = false
	cur, max, changed := h.current, h.max, h.onChanged
	h.mu.Unlock()

	if changed != nil {
		changed(cur, max)
	}
}

func (h *Health) Current() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

func (h *Health) Max() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.max
}

// Percentage returns current/max in 0..1.
func (h *Health) Percentage() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current / h.max
}

func (h *Health) IsAlive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current > 0
}
