package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/eclypsed/lazuli/internal/models"
	"github.com/eclypsed/lazuli/internal/shared"
)

const (
	googleAuthURL  = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenURL = "https://oauth2.googleapis.com/token"

	// expiryLeeway treats a token as expired slightly early so it does not lapse in flight.
	expiryLeeway = 10 * time.Second

	// refreshTimeout bounds one refresh exchange, independent of the caller that started it.
	refreshTimeout = 30 * time.Second
)

// YouTubeScopes are the OAuth scopes a YouTube Music connection needs.
var YouTubeScopes = []string{"https://www.googleapis.com/auth/youtube"}

// YouTubeOAuthConfig builds the Google OAuth client used to create and refresh YouTube Music connections.
func YouTubeOAuthConfig(cfg shared.YouTubeConfig) *oauth2.Config {
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = googleTokenURL
	}
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       YouTubeScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   googleAuthURL,
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// DefaultRefreshPolicy retries network failures up to three attempts. A rejected refresh token is never retried.
func DefaultRefreshPolicy() shared.RetryPolicy {
	return shared.RetryPolicy{
		Attempts:  3,
		Backoff:   250 * time.Millisecond,
		Retryable: retryableRefreshError,
	}
}

// retryableRefreshError reports whether a failed exchange may be attempted again.
//
// A 4xx from the token endpoint means the refresh token was rejected. Anything else is the
// endpoint or the network failing.
func retryableRefreshError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !rejectedRefresh(err)
}

func rejectedRefresh(err error) bool {
	var retrieve *oauth2.RetrieveError
	if !errors.As(err, &retrieve) {
		return false
	}
	return retrieve.Response == nil || retrieve.Response.StatusCode < 500
}

// Refresher exchanges refresh tokens for access tokens and persists the result.
//
// Refreshes are coalesced per connection id: concurrent requests for the same connection share one exchange.
type Refresher struct {
	store  TokenStore
	client *http.Client
	config *oauth2.Config
	policy shared.RetryPolicy
	group  singleflight.Group
	logger *log.Logger
}

// NewRefresher creates a [Refresher]. A nil client uses [http.DefaultClient].
func NewRefresher(store TokenStore, client *http.Client, config *oauth2.Config, policy shared.RetryPolicy, logger *log.Logger) *Refresher {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Refresher{store: store, client: client, config: config, policy: policy, logger: logger}
}

// Refresh exchanges refreshToken for a new access token for the connection.
//
// It fails with [shared.RefreshExhaustedError] once the retry policy gives up or the token endpoint rejects the credential.
func (r *Refresher) Refresh(ctx context.Context, connectionID, refreshToken string) (*oauth2.Token, error) {
	v, err, joined := r.group.Do(connectionID, func() (any, error) {
		return r.refresh(ctx, connectionID, refreshToken)
	})
	if joined {
		r.logger.Debug("joined in-flight token refresh", "connection", connectionID)
	}
	if err != nil {
		return nil, err
	}
	return v.(*oauth2.Token), nil
}

func (r *Refresher) refresh(ctx context.Context, connectionID, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, &shared.RefreshExhaustedError{ConnectionID: connectionID, Rejected: true, Err: shared.ErrNoRefreshToken}
	}

	var token *oauth2.Token
	attempts, err := r.policy.Do(ctx, func(ctx context.Context) error {
		src := r.config.TokenSource(context.WithValue(ctx, oauth2.HTTPClient, r.client), &oauth2.Token{RefreshToken: refreshToken})
		t, err := src.Token()
		if err != nil {
			r.logger.Warn("token refresh attempt failed", "connection", connectionID, "error", err)
			return err
		}
		token = t
		return nil
	})
	if err != nil {
		return nil, &shared.RefreshExhaustedError{
			ConnectionID: connectionID,
			Attempts:     attempts,
			Rejected:     rejectedRefresh(err),
			Err:          err,
		}
	}

	update := models.TokenUpdate{AccessToken: token.AccessToken, Expiry: token.Expiry}
	if token.RefreshToken != refreshToken {
		update.RefreshToken = token.RefreshToken
	}
	if err := r.store.UpdateTokens(ctx, connectionID, update); err != nil {
		r.logger.Error("failed to persist refreshed token", "connection", connectionID, "error", err)
	}

	r.logger.Info("refreshed access token", "connection", connectionID, "expiry", token.Expiry)
	return token, nil
}

// refreshCall is one in-flight refresh observed by every caller that arrived while it ran.
type refreshCall struct {
	done  chan struct{}
	token *oauth2.Token
	err   error
}

// tokenSource hands out the access token of one YouTube Music connection, refreshing it when expired.
//
// Concurrent callers during a refresh wait on the same [refreshCall]. A failed refresh is terminal for the source.
type tokenSource struct {
	connectionID string
	refresher    *Refresher
	now          func() time.Time

	mu       sync.Mutex
	token    *oauth2.Token
	err      error
	inflight *refreshCall
}

func newTokenSource(rec *models.ConnectionRecord, refresher *Refresher) *tokenSource {
	return &tokenSource{
		connectionID: rec.ID,
		refresher:    refresher,
		now:          time.Now,
		token: &oauth2.Token{
			AccessToken:  rec.AccessToken,
			RefreshToken: rec.RefreshToken,
			Expiry:       rec.Expiry,
		},
	}
}

func (s *tokenSource) valid() bool {
	if s.token == nil || s.token.AccessToken == "" {
		return false
	}
	return s.token.Expiry.IsZero() || s.now().Add(expiryLeeway).Before(s.token.Expiry)
}

// AccessToken returns a usable access token, starting or joining a refresh when the cached one has expired.
func (s *tokenSource) AccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.err != nil {
		err := s.err
		s.mu.Unlock()
		return "", err
	}
	if s.valid() {
		tok := s.token.AccessToken
		s.mu.Unlock()
		return tok, nil
	}

	call := s.inflight
	if call == nil {
		call = &refreshCall{done: make(chan struct{})}
		s.inflight = call
		refreshToken := s.token.RefreshToken
		go s.run(context.WithoutCancel(ctx), call, refreshToken)
	}
	s.mu.Unlock()

	select {
	case <-call.done:
		if call.err != nil {
			return "", call.err
		}
		return call.token.AccessToken, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *tokenSource) run(ctx context.Context, call *refreshCall, refreshToken string) {
	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	token, err := s.refresher.Refresh(ctx, s.connectionID, refreshToken)

	s.mu.Lock()
	if err != nil {
		s.err = err
	} else {
		if token.RefreshToken == "" {
			token.RefreshToken = refreshToken
		}
		s.token = token
	}
	s.inflight = nil
	call.token, call.err = token, err
	s.mu.Unlock()

	close(call.done)
}

// Expire drops the cached access token so the next caller refreshes, e.g. after the API answered 401.
func (s *tokenSource) Expire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != nil && s.inflight == nil {
		s.token = &oauth2.Token{RefreshToken: s.token.RefreshToken}
	}
}
