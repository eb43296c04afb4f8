package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/calsync/internal/engine"
	"github.com/desertthunder/calsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// TaskPush pushes a single task to the remote calendar.
func (r *Runner) TaskPush(ctx context.Context, cmd *cli.Command) error {
	taskID := cmd.StringArg("id")
	if taskID == "" {
		return fmt.Errorf("%w: task id is required", shared.ErrMissingArgument)
	}

	err := r.runExclusive(func(eng *engine.Engine) error {
		return eng.SyncTask(ctx, taskID)
	})
	if err != nil {
		return err
	}

	r.writePlain("✓ Task %s pushed\n", taskID)
	return nil
}

// TaskDelete removes a task's remote event and severs the link. The
// local task itself is kept.
func (r *Runner) TaskDelete(ctx context.Context, cmd *cli.Command) error {
	taskID := cmd.StringArg("id")
	if taskID == "" {
		return fmt.Errorf("%w: task id is required", shared.ErrMissingArgument)
	}

	err := r.runExclusive(func(eng *engine.Engine) error {
		return eng.DeleteTask(ctx, taskID)
	})
	if err != nil {
		return err
	}

	r.writePlain("✓ Remote event removed for task %s\n", taskID)
	return nil
}
