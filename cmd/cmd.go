// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand initializes configuration and the local database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration, database, and migrations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.Setup,
	}
}

// authCommand handles calendar authorization.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage calendar authorization",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Authorize calendar access using OAuth2",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show the configured credential state",
				Action: r.AuthStatus,
			},
		},
	}
}

// syncCommand handles sync passes, state, and log export.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Run and inspect calendar sync",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run a sync pass (incremental by default)",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "full",
						Usage: "Run a full sync instead of an incremental pass",
					},
				},
				Action: r.SyncRun,
			},
			{
				Name:   "enable",
				Usage:  "Enable sync and run the initial full sync",
				Action: r.SyncEnable,
			},
			{
				Name:   "disable",
				Usage:  "Disable sync (tasks and events are left in place)",
				Action: r.SyncDisable,
			},
			{
				Name:  "status",
				Usage: "Show sync state, credentials, and task counts",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.SyncStatus,
			},
			{
				Name:  "logs",
				Usage: "Show or export the sync log",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of entries",
						Value: 50,
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: text, csv, json, or markdown",
						Value:   "text",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write to a file instead of stdout",
					},
					&cli.BoolFlag{
						Name:  "save",
						Usage: "Write to a default file name for the chosen format",
					},
				},
				Action: r.SyncLogs,
			},
		},
	}
}

// taskCommand handles single-task operations.
func taskCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "task",
		Usage: "Push or remove individual tasks",
		Commands: []*cli.Command{
			{
				Name:  "push",
				Usage: "Push one task to the remote calendar",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.TaskPush,
			},
			{
				Name:    "delete",
				Aliases: []string{"rm"},
				Usage:   "Remove a task's remote event and sever the link",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.TaskDelete,
			},
		},
	}
}

// watchCommand handles push-notification channels and the receiver.
func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Manage calendar push notifications",
		Commands: []*cli.Command{
			{
				Name:  "start",
				Usage: "Register (or renew) the notification channel",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "url",
						Usage: "Public webhook URL (defaults to sync.webhook_url)",
					},
				},
				Action: r.WatchStart,
			},
			{
				Name:   "stop",
				Usage:  "Tear down the notification channel",
				Action: r.WatchStop,
			},
			{
				Name:   "serve",
				Usage:  "Run the HTTP receiver for calendar notifications",
				Action: r.Serve,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for interactive sync management.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI for browsing the sync log",
		Action:  r.TUI,
	}
}
