package result

import (
	"fmt"
	"strings"
)

// Outcome classifies how a stage (or a whole run) ended. The zero value is
// Success so an untouched aggregate reads as a passing build.
type Outcome int

const (
	Success Outcome = iota
	Unstable
	Failure
	Aborted

	// Skipped is a stage-only outcome: the guard evaluated false and the stage
	// never ran. It is not part of the build-result ordering and must never be
	// recorded into an Aggregator.
	Skipped Outcome = -1
)

func (o Outcome) String() string {
	switch o {
	case Skipped:
		return "skipped"
	case Success:
		return "success"
	case Unstable:
		return "unstable"
	case Failure:
		return "failure"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Worse reports whether o ranks above other in the severity order
// success < unstable < failure < aborted.
func (o Outcome) Worse(other Outcome) bool { return o > other }

// IsSuccess reports whether the outcome counts as a pass.
func (o Outcome) IsSuccess() bool { return o == Success || o == Skipped }

// ParseOutcome converts user input (case-insensitive) into an Outcome.
func ParseOutcome(raw string) (Outcome, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "skipped":
		return Skipped, nil
	case "success":
		return Success, nil
	case "unstable":
		return Unstable, nil
	case "failure":
		return Failure, nil
	case "aborted":
		return Aborted, nil
	default:
		return Success, fmt.Errorf("unknown outcome %q", raw)
	}
}

// Exit codes reported by the invocation surface. Unstable is configurable so
// callers decide whether an unstable build fails CI.
const (
	ExitFailure         = 1
	ExitUnstableDefault = 2
	ExitAborted         = 3
)

// ExitCode maps a final build result to a process exit code. unstableCode
// lets the caller treat Unstable as success (0) or any distinct non-zero code.
func ExitCode(final Outcome, unstableCode int) int {
	switch final {
	case Success:
		return 0
	case Unstable:
		return unstableCode
	case Aborted:
		return ExitAborted
	default:
		return ExitFailure
	}
}
