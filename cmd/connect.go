package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"

	"github.com/eclypsed/lazuli/internal/models"
	"github.com/eclypsed/lazuli/internal/server"
	"github.com/eclypsed/lazuli/internal/services"
	"github.com/eclypsed/lazuli/internal/shared"
)

// ConnectJellyfin logs in to a Jellyfin server and stores the session as a new connection.
func (r *Runner) ConnectJellyfin(ctx context.Context, cmd *cli.Command) error {
	store, release, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	defer release()

	user, err := r.resolveUser(ctx, store, cmd)
	if err != nil {
		return err
	}

	serverURL := cmd.String("url")
	r.logger.Info("authenticating with jellyfin", "url", serverURL, "username", cmd.String("username"))

	session, err := services.AuthenticateJellyfin(ctx, r.httpClient, r.config.Credentials.Jellyfin,
		serverURL, cmd.String("username"), cmd.String("password"))
	if err != nil {
		return err
	}

	rec := &models.ConnectionRecord{
		UserID:        user.ID,
		Type:          models.ServiceJellyfin,
		ServiceURL:    serverURL,
		ServiceUserID: session.UserID,
		AccessToken:   session.AccessToken,
	}
	if err := store.CreateConnection(ctx, rec); err != nil {
		return fmt.Errorf("failed to save connection: %w", err)
	}

	r.logger.Info("jellyfin connected", "connection", rec.ID, "user", user.Username)
	return r.writePlain("%s Connected Jellyfin %s\nConnection: %s\n", r.palette.OK("✓"), serverURL, rec.ID)
}

// ConnectYouTube authorizes a Google account in the browser and stores its tokens as a new connection.
func (r *Runner) ConnectYouTube(ctx context.Context, cmd *cli.Command) error {
	yt := r.config.Credentials.YouTube
	if yt.ClientID == "" || yt.ClientSecret == "" {
		return fmt.Errorf("%w: credentials.youtube.client_id and client_secret are required", shared.ErrMissingCredentials)
	}

	store, release, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	defer release()

	user, err := r.resolveUser(ctx, store, cmd)
	if err != nil {
		return err
	}

	token, err := r.doOAuth(ctx, services.YouTubeOAuthConfig(yt), cmd.Duration("timeout"))
	if err != nil {
		return err
	}

	rec := &models.ConnectionRecord{
		UserID:       user.ID,
		Type:         models.ServiceYouTubeMusic,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	}
	if err := store.CreateConnection(ctx, rec); err != nil {
		return fmt.Errorf("failed to save connection: %w", err)
	}

	r.logger.Info("youtube music connected", "connection", rec.ID, "user", user.Username)
	return r.writePlain("%s Connected YouTube Music\nConnection: %s\n", r.palette.OK("✓"), rec.ID)
}

// doOAuth runs the authorization code flow against a loopback server on the configured redirect address.
//
// A redirect port of 0 listens on any free port and rewrites the redirect URL to match.
func (r *Runner) doOAuth(ctx context.Context, config *oauth2.Config, timeout time.Duration) (*oauth2.Token, error) {
	redirect, err := url.Parse(config.RedirectURL)
	if err != nil || redirect.Host == "" {
		return nil, fmt.Errorf("%w: invalid redirect_uri %q", shared.ErrInvalidConfig, config.RedirectURL)
	}

	ln, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", redirect.Host, err)
	}
	redirect.Host = ln.Addr().String()
	if redirect.Path == "" {
		redirect.Path = "/"
	}
	cfg := *config
	cfg.RedirectURL = redirect.String()

	state, err := shared.GenerateState()
	if err != nil {
		ln.Close()
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	oauthHandler := server.NewOAuthHandler(&cfg, state)
	router := server.NewBasicRouter()
	router.Handle(http.MethodGet, redirect.Path, oauthHandler)
	httpServer := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Debug("starting OAuth callback server", "addr", ln.Addr().String())
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	authURL := oauthHandler.AuthURL()
	r.writePlain("→ Opening browser for Google authorization...\n")
	if err := r.openBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (%s timeout)...\n", timeout)
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var result server.OAuthResult
	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timer.C:
		return nil, fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, result.Error())
	}
	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}
	return result.Token, nil
}
