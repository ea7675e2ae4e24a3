package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/eclypsed/lazuli/internal/formatter"
	"github.com/eclypsed/lazuli/internal/models"
	"github.com/eclypsed/lazuli/internal/repositories"
	"github.com/eclypsed/lazuli/internal/server"
	"github.com/eclypsed/lazuli/internal/services"
	"github.com/eclypsed/lazuli/internal/shared"
	"github.com/eclypsed/lazuli/internal/tasks"
)

// Store is what the CLI needs from either database backend.
type Store interface {
	services.TokenStore
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateConnection(ctx context.Context, rec *models.ConnectionRecord) error
}

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config      *shared.Config
	configPath  string
	httpClient  *http.Client
	logger      *log.Logger
	output      io.Writer
	palette     *formatter.Palette
	store       Store
	connections server.Connections
	openBrowser func(string) error
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Store and Connections are opened from the configuration when nil.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	HTTPClient  *http.Client
	Logger      *log.Logger
	Output      io.Writer
	Store       Store
	Connections server.Connections
	OpenBrowser func(string) error
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
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}

	return &Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		output:      opts.Output,
		palette:     formatter.DefaultPalette(),
		store:       opts.Store,
		connections: opts.Connections,
		openBrowser: opts.OpenBrowser,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, userCommand, connectCommand, connectionsCommand, searchCommand, libraryCommand,
		recommendationsCommand, albumCommand, playlistCommand, exportCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig replaces the runner's config with the file at path when it exists.
func (r *Runner) loadConfig(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := cmd.String("config")
	if path == "" {
		return ctx, nil
	}
	r.configPath = path

	if _, err := os.Stat(path); err != nil {
		r.logger.Debug("config file not found, using defaults", "path", path)
		return ctx, nil
	}
	config, err := shared.LoadConfig(path)
	if err != nil {
		return ctx, err
	}
	r.config = config
	shared.SetLogLevel(r.logger, config.LogLevel())
	return ctx, nil
}

// openStore returns the configured store and a function that releases it.
func (r *Runner) openStore(ctx context.Context) (Store, func(), error) {
	if r.store != nil {
		return r.store, func() {}, nil
	}

	db := r.config.Database
	switch db.Driver {
	case "postgres":
		pool, err := repositories.OpenPostgres(ctx, db.URL, db.MaxOpenConns)
		if err != nil {
			return nil, nil, err
		}
		return repositories.NewPostgresStore(pool), pool.Close, nil
	case "sqlite3", "":
		conn, err := shared.NewDatabase(db.Path)
		if err != nil {
			return nil, nil, err
		}
		shared.ConfigureDatabase(conn, db.MaxOpenConns, db.MaxIdleConns)
		return repositories.NewSQLiteStore(conn), func() { conn.Close() }, nil
	}
	return nil, nil, fmt.Errorf("%w: unsupported database driver %q", shared.ErrInvalidConfig, db.Driver)
}

// registry builds the connection registry over store, unless the runner was given one.
func (r *Runner) registry(store services.TokenStore) server.Connections {
	if r.connections != nil {
		return r.connections
	}
	return services.NewRegistry(store, services.RegistryOptions{
		Client:   r.httpClient,
		Jellyfin: r.config.Credentials.Jellyfin,
		YouTube:  r.config.Credentials.YouTube,
		Logger:   r.logger,
	})
}

// session opens the store and the connections over it. Callers must call the returned release function.
func (r *Runner) session(ctx context.Context) (Store, server.Connections, func(), error) {
	store, release, err := r.openStore(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	return store, r.registry(store), release, nil
}

// resolveUser looks up the --user flag.
func (r *Runner) resolveUser(ctx context.Context, store Store, cmd *cli.Command) (*models.User, error) {
	username := cmd.String("user")
	if username == "" {
		return nil, fmt.Errorf("%w: --user", shared.ErrMissingArgument)
	}
	user, err := store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("%w (create it with 'lazuli user create %s')", err, username)
		}
		return nil, err
	}
	return user, nil
}

// aggregator builds a fan-out aggregator over conns.
func (r *Runner) aggregator(conns server.Connections) *tasks.Aggregator {
	return tasks.NewAggregator(conns, r.logger)
}

// progress logs updates until the returned channel is closed.
func (r *Runner) progress() chan tasks.ProgressUpdate {
	ch := make(chan tasks.ProgressUpdate, 50)
	go func() {
		for update := range ch {
			if update.Err != nil {
				r.logger.Warn(update.Message, "phase", update.Phase, "connection", update.ConnectionID, "err", update.Err)
				continue
			}
			r.logger.Debug(update.Message, "phase", update.Phase, "step", update.Step, "total", update.Total)
		}
	}()
	return ch
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
