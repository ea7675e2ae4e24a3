package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/eclypsed/lazuli/internal/server"
)

// Serve runs the HTTP API until the process is interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config.Server
	if port := cmd.Int("port"); port > 0 {
		cfg.Port = port
	}
	if err := r.config.Validate(); err != nil {
		return err
	}

	_, conns, release, err := r.session(ctx)
	if err != nil {
		return err
	}
	defer release()

	if cfg.JWTSecret == "" {
		r.logger.Warn("server.jwt_secret is empty, API routes are unauthenticated")
	}

	api := server.NewAPI(conns, server.APIOptions{
		JWTSecret: cfg.JWTSecret,
		Timeout:   cfg.Timeout(),
		Logger:    r.logger.WithPrefix("api"),
	})
	r.writePlain("%s Serving on http://%s/api\n", r.palette.OK("→"), cfg.Addr())
	return server.New(cfg, api, r.logger).ListenAndServe(ctx)
}
