package actionseq

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/teslashibe/go-tonypi/pkg/robot"
)

// DefaultPause is the rest between two actions.
const DefaultPause = 500 * time.Millisecond

// Executor runs plan steps on the robot.
type Executor struct {
	runner robot.ActionRunner
	table  *robot.Table
	logger *slog.Logger

	// Pause is the rest after each action.
	Pause time.Duration
}

// NewExecutor creates an executor.
func NewExecutor(runner robot.ActionRunner, table *robot.Table, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		runner: runner,
		table:  table,
		logger: logger.With("component", "actionseq.executor"),
		Pause:  DefaultPause,
	}
}

// Execute runs steps in sequence_id order and finishes with the stand
// pose. Unknown IDs and failing actions are logged and skipped. It returns
// the names of the actions that ran, not counting the final stand.
func (e *Executor) Execute(ctx context.Context, steps []Step) ([]string, error) {
	if len(steps) == 0 {
		return nil, nil
	}

	ordered := make([]Step, len(steps))
	copy(ordered, steps)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].SequenceID < ordered[j].SequenceID
	})

	var ran []string
	for _, step := range ordered {
		action, ok := e.table.Lookup(string(step.ActionID))
		if !ok {
			e.logger.Warn("unknown action, skipping", "step", step.String())
			continue
		}

		e.logger.Info("running action", "seq", step.SequenceID, "name", action.Name, "id", action.ID)
		if err := e.runner.RunAction(ctx, action.Name, 1); err != nil {
			if ctx.Err() != nil {
				return ran, ctx.Err()
			}
			e.logger.Error("action failed", "name", action.Name, "error", err)
			continue
		}
		ran = append(ran, action.Name)

		select {
		case <-ctx.Done():
			return ran, ctx.Err()
		case <-time.After(e.Pause):
		}
	}

	if err := e.runner.RunAction(ctx, robot.Stand, 1); err != nil {
		e.logger.Warn("return to stand failed", "error", err)
	}
	return ran, nil
}
