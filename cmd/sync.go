package main

import (
	"context"

	"github.com/desertthunder/calsync/internal/engine"
	"github.com/desertthunder/calsync/internal/formatter"
	"github.com/urfave/cli/v3"
)

// printProgress drains engine progress updates onto the runner's output,
// returning a channel closed when the updates channel closes.
func (r *Runner) printProgress(progress <-chan engine.ProgressUpdate) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			switch update.Phase {
			case engine.PushTasks:
				r.writePlain("  push %d/%d: %s\n", update.Step, update.Total, update.Message)
			case engine.PullEvents:
				r.writePlain("  pull: %s\n", update.Message)
			case engine.ProcessEvents:
				r.writePlain("  process %d/%d: %s\n", update.Step, update.Total, update.Message)
			case engine.AcquireToken:
				r.writePlain("  token: %s\n", update.Message)
			}
		}
	}()
	return done
}

// SyncRun runs one sync pass, incremental by default.
func (r *Runner) SyncRun(ctx context.Context, cmd *cli.Command) error {
	full := cmd.Bool("full")

	disabled := false
	err := r.runExclusive(func(eng *engine.Engine) error {
		state, err := eng.InitializeSync()
		if err != nil {
			return err
		}
		if !state.Enabled {
			disabled = true
			return nil
		}

		progress := make(chan engine.ProgressUpdate, 50)
		done := r.printProgress(progress)

		if full {
			r.writePlainHeader("Full Sync")
			err = eng.FullSync(ctx, progress)
		} else {
			r.writePlainHeader("Incremental Sync")
			err = eng.IncrementalSync(ctx, progress)
		}
		close(progress)
		<-done
		return err
	})
	if err != nil {
		return err
	}

	if disabled {
		r.writePlain("Sync is disabled. Enable it with: calsync sync enable\n")
		return nil
	}

	r.writePlain("✓ Sync complete\n")
	return nil
}

// SyncEnable turns sync on, triggering the initial full sync.
func (r *Runner) SyncEnable(ctx context.Context, cmd *cli.Command) error {
	err := r.runExclusive(func(eng *engine.Engine) error {
		progress := make(chan engine.ProgressUpdate, 50)
		done := r.printProgress(progress)

		err := eng.ToggleSync(ctx, true, progress)
		close(progress)
		<-done
		return err
	})
	if err != nil {
		return err
	}

	r.writePlain("✓ Sync enabled\n")
	return nil
}

// SyncDisable turns sync off. Existing tasks and events are untouched.
func (r *Runner) SyncDisable(ctx context.Context, cmd *cli.Command) error {
	err := r.runExclusive(func(eng *engine.Engine) error {
		return eng.ToggleSync(ctx, false, nil)
	})
	if err != nil {
		return err
	}

	r.writePlain("✓ Sync disabled\n")
	return nil
}

// SyncStatus shows the sync state, credential mode, and task counts.
func (r *Runner) SyncStatus(ctx context.Context, cmd *cli.Command) error {
	useJSON := cmd.Bool("json")

	eng, err := r.ensureEngine()
	if err != nil {
		return err
	}

	if _, err := eng.InitializeSync(); err != nil {
		return err
	}

	summary, err := eng.Status()
	if err != nil {
		return err
	}

	if useJSON {
		data, err := formatter.StatusToJSON(summary)
		if err != nil {
			return err
		}
		return r.writePlain("%s\n", data)
	}

	return r.writePlain("%s\n", formatter.RenderStatus(summary))
}

// SyncLogs prints or exports the sync log in the requested format.
func (r *Runner) SyncLogs(ctx context.Context, cmd *cli.Command) error {
	limit := cmd.Int("limit")
	outputPath := cmd.String("output")
	save := cmd.Bool("save")

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	eng, err := r.ensureEngine()
	if err != nil {
		return err
	}

	entries, err := eng.Logs(limit)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		return r.writePlain("No sync log entries.\n")
	}

	if outputPath != "" || save {
		path, err := formatter.WriteLogExport(entries, format, outputPath)
		if err != nil {
			return err
		}
		r.logger.Infof("sync log exported to %v", path)
		return r.writePlain("✓ Sync log exported to %s\n", path)
	}

	data, err := formatter.ExportLogs(entries, format)
	if err != nil {
		return err
	}
	return r.writePlain("%s", data)
}
