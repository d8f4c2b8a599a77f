package update

import "time"

// Timer is a deadline compared against a caller-supplied clock. It never
// fires on its own; sessions poll Expired on every receive.
type Timer struct {
	armed    bool
	deadline time.Time
}

func (t *Timer) Arm(now time.Time, d time.Duration) {
	t.armed = true
	t.deadline = now.Add(d)
}

func (t *Timer) Cancel() {
	t.armed = false
}

func (t *Timer) Armed() bool {
	return t.armed
}

func (t *Timer) Expired(now time.Time) bool {
	return t.armed && !now.Before(t.deadline)
}
