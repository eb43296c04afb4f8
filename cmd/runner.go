package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/calsync/internal/calendar"
	"github.com/desertthunder/calsync/internal/engine"
	"github.com/desertthunder/calsync/internal/repositories"
	"github.com/desertthunder/calsync/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	db         *sql.DB
	client     calendar.Client
	engine     *engine.Engine
	registry   *engine.Registry
	registryMu sync.Mutex
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Client     calendar.Client
	Engine     *engine.Engine
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		client:     opts.Client,
		engine:     opts.Engine,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

// SetLogger swaps the runner's logger. An engine built afterwards picks
// up the new logger; an already-built engine keeps its own.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// Close releases the database handle if one was opened.
func (r *Runner) Close() {
	if r.db != nil {
		r.db.Close()
	}
}

func (r *Runner) userID() string {
	if id := r.config.Sync.UserID; id != "" {
		return id
	}
	return "default"
}

// ensureRegistry lazily opens the database, builds the calendar client
// from configuration, and wires an engine registry whose factory builds
// one engine per user. Subsequent calls reuse the same instance. An
// engine injected through RunnerOpts is handed out for every user,
// which keeps tests independent of the config. Safe to call from
// concurrent notification goroutines.
func (r *Runner) ensureRegistry() (*engine.Registry, error) {
	r.registryMu.Lock()
	defer r.registryMu.Unlock()

	if r.registry != nil {
		return r.registry, nil
	}

	if r.engine != nil {
		eng := r.engine
		r.registry = engine.NewRegistry(func(string) (*engine.Engine, error) {
			return eng, nil
		})
		return r.registry, nil
	}

	if r.db == nil {
		db, err := shared.NewDatabase(r.config.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
		r.db = db
	}

	if r.client == nil {
		r.client = calendar.NewClient(r.config, r.logger)
	}

	r.registry = engine.NewRegistry(func(userID string) (*engine.Engine, error) {
		return engine.New(engine.Opts{
			UserID:     userID,
			Client:     r.client,
			Tasks:      repositories.NewTaskRepository(r.db),
			Projects:   repositories.NewProjectRepository(r.db),
			States:     repositories.NewSyncStateRepository(r.db),
			Logs:       repositories.NewSyncLogRepository(r.db),
			Logger:     r.logger,
			WindowDays: r.config.Sync.WindowDays,
		}), nil
	})

	return r.registry, nil
}

// ensureEngine resolves the configured user's engine for read-only
// command paths. Anything that runs a sync pass goes through
// runExclusive instead.
func (r *Runner) ensureEngine() (*engine.Engine, error) {
	if r.engine != nil {
		return r.engine, nil
	}

	registry, err := r.ensureRegistry()
	if err != nil {
		return nil, err
	}

	eng, err := registry.Get(r.userID())
	if err != nil {
		return nil, err
	}
	r.engine = eng
	return eng, nil
}

// runExclusive runs fn against the configured user's engine while
// holding that user's registry lock, so sync passes triggered from
// different goroutines never overlap.
func (r *Runner) runExclusive(fn func(*engine.Engine) error) error {
	registry, err := r.ensureRegistry()
	if err != nil {
		return err
	}
	return registry.RunExclusive(r.userID(), fn)
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, syncCommand, taskCommand, watchCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// saveTokens persists freshly issued OAuth tokens to the config file.
func (r *Runner) saveTokens(token *oauth2.Token) error {
	if r.config == nil {
		return fmt.Errorf("config is nil")
	}

	if err := r.config.Credentials.Google.Update(token); err != nil {
		return fmt.Errorf("failed to update google configuration: %w", err)
	}

	if r.configPath == "" {
		return nil
	}

	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
