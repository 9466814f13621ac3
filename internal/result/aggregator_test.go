package result

import (
	"math/rand"
	"testing"
)

// TestAggregatorMonotonic verifies the result never improves once worsened.
func TestAggregatorMonotonic(t *testing.T) {
	a := NewAggregator()
	if a.Final() != Success {
		t.Fatalf("fresh aggregator expected success got %s", a.Final())
	}
	a.Record(Failure)
	a.Record(Success)
	a.Record(Unstable)
	if a.Final() != Failure {
		t.Fatalf("expected failure got %s", a.Final())
	}
	a.Record(Aborted)
	a.Record(Success)
	if a.Final() != Aborted {
		t.Fatalf("expected aborted got %s", a.Final())
	}
}

// TestAggregatorOrderIndependent checks the fold equals the max regardless of
// recording order.
func TestAggregatorOrderIndependent(t *testing.T) {
	outcomes := []Outcome{Success, Unstable, Success, Failure, Unstable}
	want := Failure
	for i := 0; i < 20; i++ {
		shuffled := append([]Outcome(nil), outcomes...)
		rand.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		agg := NewAggregator()
		for _, o := range shuffled {
			agg.Record(o)
		}
		if agg.Final() != want {
			t.Fatalf("order %v expected %s got %s", shuffled, want, agg.Final())
		}
	}
}

// TestAggregatorRejectsSkipped ensures recording Skipped panics.
func TestAggregatorRejectsSkipped(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic recording skipped")
		}
	}()
	NewAggregator().Record(Skipped)
}

// TestExitCode covers the invocation-surface mapping.
func TestExitCode(t *testing.T) {
	cases := []struct {
		final        Outcome
		unstableCode int
		want         int
	}{
		{Success, ExitUnstableDefault, 0},
		{Unstable, ExitUnstableDefault, 2},
		{Unstable, 0, 0}, // caller opts out of failing CI on unstable
		{Failure, ExitUnstableDefault, ExitFailure},
		{Aborted, ExitUnstableDefault, ExitAborted},
	}
	for _, c := range cases {
		if got := ExitCode(c.final, c.unstableCode); got != c.want {
			t.Fatalf("ExitCode(%s,%d) expected %d got %d", c.final, c.unstableCode, c.want, got)
		}
	}
}

// TestParseOutcome checks normalization and the unknown error path.
func TestParseOutcome(t *testing.T) {
	o, err := ParseOutcome(" FAILURE ")
	if err != nil || o != Failure {
		t.Fatalf("expected failure got %s err=%v", o, err)
	}
	if _, err := ParseOutcome("weird"); err == nil {
		t.Fatalf("expected error for unknown outcome")
	}
}
