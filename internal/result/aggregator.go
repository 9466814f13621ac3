package result

import "sync"

// Aggregator folds stage outcomes into a single build result. The result is
// monotonic: it starts at Success and only ever moves toward Aborted, never
// back. Recording order does not matter.
type Aggregator struct {
	mu      sync.Mutex
	current Outcome
}

// NewAggregator returns an aggregator holding Success.
func NewAggregator() *Aggregator { return &Aggregator{current: Success} }

// Record merges an outcome into the running result. Skipped is not a valid
// input: a skipped stage must leave the build result untouched, so passing it
// here is a caller bug and panics.
func (a *Aggregator) Record(o Outcome) {
	if o == Skipped {
		panic("result: Skipped recorded into aggregator")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if o.Worse(a.current) {
		a.current = o
	}
}

// Final returns the current aggregate.
func (a *Aggregator) Final() Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}
