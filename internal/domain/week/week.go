// Package week implements the Monday-to-Sunday windows used for weekly scores.
//
// Every function takes the reference instant explicitly and works in that
// instant's location, so callers decide what "now" and which time zone mean.
package week

import "time"

// Window is one calendar week, both bounds inclusive.
type Window struct {
	Start time.Time `json:"weekStart"`
	End   time.Time `json:"weekEnd"`
}

// StartOf returns Monday 00:00:00.000 of the week containing t.
// A Monday is its own start; a Sunday belongs to the preceding Monday.
func StartOf(t time.Time) time.Time {
	daysSinceMonday := (int(t.Weekday()) + 6) % 7
	y, m, d := t.Date()
	return time.Date(y, m, d-daysSinceMonday, 0, 0, 0, 0, t.Location())
}

// EndOf returns Sunday 23:59:59.999 of the week containing t.
func EndOf(t time.Time) time.Time {
	start := StartOf(t)
	y, m, d := start.Date()
	return time.Date(y, m, d+6, 23, 59, 59, int(999*time.Millisecond), start.Location())
}

// Of returns the window containing t.
func Of(t time.Time) Window {
	return Window{Start: StartOf(t), End: EndOf(t)}
}

// Contains reports whether Start <= t <= End.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Previous returns the week before w.
func (w Window) Previous() Window {
	y, m, d := w.Start.Date()
	return Of(time.Date(y, m, d-7, 12, 0, 0, 0, w.Start.Location()))
}

// Last returns the n weeks ending with the week containing ref, oldest first.
func Last(ref time.Time, n int) []Window {
	if n <= 0 {
		return nil
	}
	out := make([]Window, n)
	w := Of(ref)
	for i := n - 1; i >= 0; i-- {
		out[i] = w
		w = w.Previous()
	}
	return out
}
