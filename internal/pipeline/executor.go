package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Step is one unit of a pipeline. Run receives the accumulated context of all
// earlier steps and returns this step's output.
type Step struct {
	ID  string
	Run func(ctx context.Context, pc *Context) (any, error)
}

// StepFailure reports where a run stopped. Partial holds exactly the outputs
// of the steps that completed before the failing one, so the caller can still
// say something useful about what did happen.
type StepFailure struct {
	StepID  string
	Err     error
	Partial *Context
}

func (f *StepFailure) Error() string {
	return fmt.Sprintf("pipeline: step %q: %v", f.StepID, f.Err)
}

func (f *StepFailure) Unwrap() error { return f.Err }

// Executor runs steps strictly in order on the calling goroutine. After a
// step succeeds its output is recorded before the next step starts; that
// recorded output is the only channel between steps. The first failure stops
// the run, and no later step executes.
type Executor struct {
	logger *slog.Logger
}

func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{logger: logger}
}

// Run executes the steps. On success it returns the full context and the
// final step's output; on failure, a StepFailure carrying the partial
// context.
func (e *Executor) Run(ctx context.Context, steps []Step) (*Context, any, *StepFailure) {
	pc := NewContext()
	var last any

	for _, step := range steps {
		start := time.Now()
		out, err := step.Run(ctx, pc)
		if err != nil {
			e.logger.Warn("pipeline step failed",
				"step", step.ID,
				"err", err,
				"completed", pc.Completed(),
			)
			return nil, nil, &StepFailure{StepID: step.ID, Err: err, Partial: pc}
		}
		if err := pc.record(step.ID, out); err != nil {
			return nil, nil, &StepFailure{StepID: step.ID, Err: err, Partial: pc}
		}
		last = out
		e.logger.Debug("pipeline step done",
			"step", step.ID,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return pc, last, nil
}
