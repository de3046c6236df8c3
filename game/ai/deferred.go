package ai

import "time"

// DeferredID identifies a scheduled continuation. Zero is never issued.
type DeferredID uint64

type deferredTask struct {
	id        DeferredID
	remaining time.Duration
	fn        func()
}

// Deferred runs actions a fixed amount of simulated time after they were
// scheduled. It is advanced by the owner's tick and never blocks or spawns
// goroutines; actions run on the ticking goroutine in scheduling order.
type Deferred struct {
	nextID DeferredID
	tasks  []deferredTask
}

// Schedule queues fn to run once delay has elapsed. A delay <= 0 runs on the
// next Advance.
func (d *Deferred) Schedule(delay time.Duration, fn func()) DeferredID {
	d.nextID++
	d.tasks = append(d.tasks, deferredTask{id: d.nextID, remaining: delay, fn: fn})
	return d.nextID
}

// Cancel drops a pending action. Returns false if it already ran or never existed.
func (d *Deferred) Cancel(id DeferredID) bool {
	for i, t := range d.tasks {
		if t.id == id {
			d.tasks = append(d.tasks[:i], d.tasks[i+1:]...)
			return true
		}
	}
	return false
}

// Pending returns the number of queued actions.
func (d *Deferred) Pending() int { return len(d.tasks) }

// Advance moves simulated time forward by dt and runs every action that came due.
// Actions scheduled while running wait for the next Advance.
func (d *Deferred) Advance(dt time.Duration) {
	if len(d.tasks) == 0 {
		return
	}
	var due []deferredTask
	kept := d.tasks[:0]
	for _, t := range d.tasks {
		t.remaining -= dt
		if t.remaining <= 0 {
			due = append(due, t)
			continue
		}
		kept = append(kept, t)
	}
	d.tasks = kept
	for _, t := range due {
		t.fn()
	}
}
