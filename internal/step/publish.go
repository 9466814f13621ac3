package step

import (
	"context"
	"fmt"
	"time"
)

// publishStep publishes the run's current state as an event. Typically used
// as a pipeline-level post action, where the aggregate is final.
type publishStep struct{}

func newPublishStep(map[string]string) (Step, error) {
	return &publishStep{}, nil
}

func (s *publishStep) Kind() string { return "publish" }

func (s *publishStep) Run(_ context.Context, rc *RunContext) error {
	if rc.Publisher == nil {
		return fmt.Errorf("publish step requires a notify config section")
	}
	return rc.Publisher.PublishRun(RunEvent{
		Pipeline:    rc.Pipeline,
		RunID:       rc.RunID,
		BuildNumber: rc.BuildNumber,
		Result:      rc.Results.Final().String(),
		FinishedAt:  time.Now(),
	})
}
