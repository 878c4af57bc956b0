package clock

import "time"

// Clock supplies the current time to code that makes expiry decisions.
// Injecting it keeps hold expiry and cutoff checks deterministic in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// System returns a Clock backed by the wall clock in UTC.  All stored
// timestamps are UTC, so comparisons must be too.
func System() Clock { return systemClock{} }

// Frozen is a Clock pinned to an instant that tests move by hand.
type Frozen struct {
	now time.Time
}

// NewFrozen returns a Frozen clock pinned to t (normalised to UTC).
func NewFrozen(t time.Time) *Frozen { return &Frozen{now: t.UTC()} }

func (f *Frozen) Now() time.Time { return f.now }

// Advance moves the pinned instant forward by d.
func (f *Frozen) Advance(d time.Duration) { f.now = f.now.Add(d) }

// Set pins the clock to a new instant.
func (f *Frozen) Set(t time.Time) { f.now = t.UTC() }
