package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/eclypsed/lazuli/internal/models"
	"github.com/eclypsed/lazuli/internal/repositories"
	"github.com/eclypsed/lazuli/internal/server"
	"github.com/eclypsed/lazuli/internal/shared"
)

// Setup creates the config file when it is missing and migrates the configured database.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath
	if configPath == "" {
		configPath = "config.toml"
	}

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else if config, err := shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load created config, using defaults", "error", err)
		} else {
			r.config = config
		}
	}

	if err := r.config.Validate(); err != nil {
		return err
	}

	switch r.config.Database.Driver {
	case "postgres":
		r.logger.Info("initializing database", "driver", "postgres")
		pool, err := repositories.OpenPostgres(ctx, r.config.Database.URL, r.config.Database.MaxOpenConns)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := repositories.NewPostgresStore(pool).Migrate(ctx); err != nil {
			return err
		}
	default:
		r.logger.Info("initializing database", "path", r.config.Database.Path)
		db, err := shared.NewDatabase(r.config.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to create database: %w", err)
		}
		defer db.Close()

		r.logger.Info("running database migrations")
		if err := shared.RunMigrations(db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	r.logger.Info("setup complete", "driver", r.config.Database.Driver)
	return r.writePlain("%s Database ready\nNext: lazuli user create <name>\n", r.palette.OK("✓"))
}

// UserCreate creates a local user.
func (r *Runner) UserCreate(ctx context.Context, cmd *cli.Command) error {
	username := cmd.StringArg("username")
	if username == "" {
		return fmt.Errorf("%w: username", shared.ErrMissingArgument)
	}

	store, release, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	defer release()

	user := &models.User{Username: username}
	if err := store.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	r.logger.Info("user created", "id", user.ID, "username", user.Username)
	return r.writePlain("%s Created user %s (%s)\n", r.palette.OK("✓"), user.Username, user.ID)
}

// UserToken prints a bearer token for the API routes of a user.
func (r *Runner) UserToken(ctx context.Context, cmd *cli.Command) error {
	secret := r.config.Server.JWTSecret
	if secret == "" {
		return fmt.Errorf("%w: server.jwt_secret is empty, the API accepts requests without a token", shared.ErrInvalidConfig)
	}

	store, release, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	defer release()

	user, err := store.GetUserByUsername(ctx, cmd.StringArg("username"))
	if err != nil {
		return err
	}

	token, err := server.IssueToken(secret, user.ID, cmd.Duration("ttl"))
	if err != nil {
		return err
	}
	return r.writePlain("%s\n", token)
}
