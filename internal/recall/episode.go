package recall

import "fmt"

// Episode tracks one retrieval attempt: the ordered recalls, a membership
// mask for duplicate rejection, and whether retrieval is in progress.
type Episode struct {
	units      int
	recalls    []int
	recalled   []bool
	retrieving bool
}

// NewEpisode creates an idle episode over n units.
func NewEpisode(n int) *Episode {
	return &Episode{
		units:    n,
		recalls:  make([]int, 0, n),
		recalled: make([]bool, n),
	}
}

// Begin opens a fresh episode if none is in progress and reports whether it
// did. Recalls from a previous, finished episode are cleared.
func (e *Episode) Begin() bool {
	if e.retrieving {
		return false
	}
	e.recalls = e.recalls[:0]
	for i := range e.recalled {
		e.recalled[i] = false
	}
	e.retrieving = true
	return true
}

// Accept appends unit to the recall sequence.
func (e *Episode) Accept(unit int) error {
	if unit < 0 || unit >= e.units {
		return fmt.Errorf("%w: recall of unit %d with %d units", ErrIndexOutOfRange, unit, e.units)
	}
	if e.recalled[unit] {
		return fmt.Errorf("%w: unit %d", ErrAlreadyRecalled, unit)
	}
	e.recalls = append(e.recalls, unit)
	e.recalled[unit] = true
	return nil
}

// End marks the episode finished. Recalls stay readable until the next Begin.
func (e *Episode) End() {
	e.retrieving = false
}

// Reset discards all recall state.
func (e *Episode) Reset() {
	e.recalls = e.recalls[:0]
	for i := range e.recalled {
		e.recalled[i] = false
	}
	e.retrieving = false
}

// Retrieving reports whether an episode is in progress.
func (e *Episode) Retrieving() bool { return e.retrieving }

// Total is the number of accepted recalls.
func (e *Episode) Total() int { return len(e.recalls) }

// Remaining is the number of units not yet recalled.
func (e *Episode) Remaining() int { return e.units - len(e.recalls) }

// Recalled reports whether unit was recalled in this episode.
func (e *Episode) Recalled(unit int) bool {
	return unit >= 0 && unit < e.units && e.recalled[unit]
}

// Recalls returns a copy of the recall sequence.
func (e *Episode) Recalls() []int {
	out := make([]int, len(e.recalls))
	copy(out, e.recalls)
	return out
}

// Target converts a FreeRecall step count into the recall total at which
// the loop must stop. Negative steps mean every remaining unit.
func (e *Episode) Target(steps int) int {
	if steps < 0 {
		steps = e.Remaining()
	}
	target := e.Total() + steps
	if target > e.units {
		target = e.units
	}
	return target
}
