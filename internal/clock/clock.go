// Package clock supplies the current time and billing date.
package clock

import "time"

// Clock abstracts wall-clock access so billing dates are testable.
type Clock interface {
	Now() time.Time
	// Today returns the current billing date, see DateOf.
	Today() time.Time
}

// DateOf truncates t to its calendar date in loc and returns that date at
// midnight UTC, the form billing dates are stored and compared in.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type systemClock struct {
	loc *time.Location
}

// System returns a Clock reading the real time, with billing dates taken
// in loc.
func System(loc *time.Location) Clock {
	return systemClock{loc: loc}
}

func (c systemClock) Now() time.Time   { return time.Now().UTC() }
func (c systemClock) Today() time.Time { return DateOf(time.Now(), c.loc) }

// Fixed is a Clock frozen at a settable instant.
type Fixed struct {
	At  time.Time
	Loc *time.Location
}

func (f *Fixed) Now() time.Time   { return f.At.UTC() }
func (f *Fixed) Today() time.Time { return DateOf(f.At, f.Loc) }

// Advance moves the clock forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.At = f.At.Add(d)
}
