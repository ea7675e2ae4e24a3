package services

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/eclypsed/lazuli/internal/models"
	"github.com/eclypsed/lazuli/internal/shared"
)

// RegistryOptions configures how a [Registry] builds connections.
type RegistryOptions struct {
	// Client is used for every upstream call. Defaults to [http.DefaultClient].
	Client *http.Client

	Jellyfin shared.JellyfinConfig
	YouTube  shared.YouTubeConfig

	// Endpoints overrides the YouTube Music API locations.
	Endpoints YouTubeEndpoints

	// RefreshPolicy defaults to [DefaultRefreshPolicy].
	RefreshPolicy *shared.RetryPolicy

	Logger *log.Logger
}

// Registry resolves stored connection records into live [Connection] values.
//
// Connections are rebuilt from the store on every lookup and hold no state worth caching. The refresher and the
// per-connection rate limiters are shared, so concurrent instances of one connection still refresh once and pace together.
type Registry struct {
	store     TokenStore
	client    *http.Client
	jellyfin  shared.JellyfinConfig
	youtube   shared.YouTubeConfig
	endpoints YouTubeEndpoints
	refresher *Refresher
	logger    *log.Logger

	limiters sync.Map // connection id -> *rate.Limiter
}

// NewRegistry creates a registry over store.
func NewRegistry(store TokenStore, opts RegistryOptions) *Registry {
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}
	policy := DefaultRefreshPolicy()
	if opts.RefreshPolicy != nil {
		policy = *opts.RefreshPolicy
	}

	return &Registry{
		store:     store,
		client:    opts.Client,
		jellyfin:  opts.Jellyfin,
		youtube:   opts.YouTube,
		endpoints: opts.Endpoints,
		refresher: NewRefresher(store, opts.Client, YouTubeOAuthConfig(opts.YouTube), policy, opts.Logger),
		logger:    opts.Logger,
	}
}

// Get builds the connection with the given id. It fails with [shared.NotFoundError] when no record exists.
func (r *Registry) Get(ctx context.Context, id string) (Connection, error) {
	rec, err := r.store.GetConnection(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.Build(rec)
}

// GetForUser builds every connection a user owns.
//
// A user without connections yields an empty slice; a user that does not exist is a [shared.NotFoundError].
func (r *Registry) GetForUser(ctx context.Context, userID string) ([]Connection, error) {
	recs, err := r.store.GetConnectionsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	conns := make([]Connection, 0, len(recs))
	for _, rec := range recs {
		conn, err := r.Build(rec)
		if err != nil {
			return nil, err
		}
		conns = append(conns, conn)
	}
	return conns, nil
}

// Delete removes a connection record and forgets its limiter.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if err := r.store.DeleteConnection(ctx, id); err != nil {
		return err
	}
	r.limiters.Delete(id)
	return nil
}

// Build constructs the variant named by the record's type.
//
// An unknown type is a configuration fault and fails with [shared.ErrUnknownServiceType].
func (r *Registry) Build(rec *models.ConnectionRecord) (Connection, error) {
	switch rec.Type {
	case models.ServiceJellyfin:
		return NewJellyfin(rec, r.client, r.jellyfin, r.logger)
	case models.ServiceYouTubeMusic:
		return NewYouTubeMusic(rec, r.client, r.refresher, r.limiter(rec.ID), r.endpoints, r.logger)
	}
	return nil, fmt.Errorf("%w: %q on connection %s", shared.ErrUnknownServiceType, rec.Type, rec.ID)
}

// limiter returns the shared pacing limiter of a YouTube Music connection, or nil when pacing is disabled.
func (r *Registry) limiter(connectionID string) *rate.Limiter {
	rps := r.youtube.RequestsPerSecond
	if rps <= 0 {
		return nil
	}
	if l, ok := r.limiters.Load(connectionID); ok {
		return l.(*rate.Limiter)
	}
	l, _ := r.limiters.LoadOrStore(connectionID, rate.NewLimiter(rate.Limit(rps), max(1, int(rps))))
	return l.(*rate.Limiter)
}

// Refresher exposes the credential refresher the registry's connections share.
func (r *Registry) Refresher() *Refresher { return r.refresher }
