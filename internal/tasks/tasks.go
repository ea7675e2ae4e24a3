package tasks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/eclypsed/lazuli/internal/models"
	"github.com/eclypsed/lazuli/internal/services"
	"github.com/eclypsed/lazuli/internal/shared"
)

// Source resolves connections. [services.Registry] is the production implementation.
type Source interface {
	Get(ctx context.Context, id string) (services.Connection, error)
	GetForUser(ctx context.Context, userID string) ([]services.Connection, error)
}

// Aggregator runs one operation against many connections at once.
//
// Inputs are validated and connections resolved before anything is fanned out; those failures are returned.
// After that a failing connection is logged and dropped, and the others' results are returned in connection order.
type Aggregator struct {
	source Source
	logger *log.Logger
}

// NewAggregator creates an aggregator over source.
func NewAggregator(source Source, logger *log.Logger) *Aggregator {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Aggregator{source: source, logger: logger}
}

// Search searches every connection of a user. An empty filter searches all kinds.
func (a *Aggregator) Search(ctx context.Context, progress chan<- ProgressUpdate, userID, term string, filter models.Kind) ([]models.MediaItem, error) {
	if strings.TrimSpace(term) == "" {
		return nil, fmt.Errorf("%w: search term is required", shared.ErrMissingArgument)
	}
	conns, err := a.forUser(ctx, progress, userID)
	if err != nil {
		return nil, err
	}

	return fanOut(ctx, a, progress, SearchConnections, conns, func(ctx context.Context, c services.Connection) ([]models.MediaItem, error) {
		return c.Search(ctx, term, filter)
	})
}

// Library lists one kind of saved entity across every connection of a user.
func (a *Aggregator) Library(ctx context.Context, progress chan<- ProgressUpdate, userID string, kind models.Kind) ([]models.MediaItem, error) {
	var phase Phase
	var fetch func(context.Context, services.Library) ([]models.MediaItem, error)
	switch kind {
	case models.KindAlbum:
		phase, fetch = FetchAlbums, func(ctx context.Context, l services.Library) ([]models.MediaItem, error) {
			return asItems[models.Album](l.Albums(ctx))
		}
	case models.KindArtist:
		phase, fetch = FetchArtists, func(ctx context.Context, l services.Library) ([]models.MediaItem, error) {
			return asItems[models.Artist](l.Artists(ctx))
		}
	case models.KindPlaylist:
		phase, fetch = FetchPlaylists, func(ctx context.Context, l services.Library) ([]models.MediaItem, error) {
			return asItems[models.Playlist](l.Playlists(ctx))
		}
	default:
		return nil, fmt.Errorf("%w: library has no %q collection", shared.ErrInvalidArgument, kind)
	}

	conns, err := a.forUser(ctx, progress, userID)
	if err != nil {
		return nil, err
	}
	return fanOut(ctx, a, progress, phase, conns, func(ctx context.Context, c services.Connection) ([]models.MediaItem, error) {
		return fetch(ctx, c.Library())
	})
}

// Recommendations gathers best-effort recommendations from every connection of a user.
func (a *Aggregator) Recommendations(ctx context.Context, progress chan<- ProgressUpdate, userID string) ([]models.MediaItem, error) {
	conns, err := a.forUser(ctx, progress, userID)
	if err != nil {
		return nil, err
	}
	return fanOut(ctx, a, progress, FetchRecommendations, conns, func(ctx context.Context, c services.Connection) ([]models.MediaItem, error) {
		return c.GetRecommendations(ctx)
	})
}

// UserConnectionInfos fetches the display identity of every connection of a user.
func (a *Aggregator) UserConnectionInfos(ctx context.Context, progress chan<- ProgressUpdate, userID string) ([]models.ConnectionInfo, error) {
	conns, err := a.forUser(ctx, progress, userID)
	if err != nil {
		return nil, err
	}
	return a.infos(ctx, progress, conns)
}

// ConnectionInfos fetches the display identity of the given connections. Every id must exist.
func (a *Aggregator) ConnectionInfos(ctx context.Context, progress chan<- ProgressUpdate, ids []string) ([]models.ConnectionInfo, error) {
	conns := make([]services.Connection, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		conn, err := a.source.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		conns = append(conns, conn)
	}
	a.sendProgress(progress, resolvedUpdate(len(conns)))
	return a.infos(ctx, progress, conns)
}

func (a *Aggregator) infos(ctx context.Context, progress chan<- ProgressUpdate, conns []services.Connection) ([]models.ConnectionInfo, error) {
	return fanOut(ctx, a, progress, FetchConnectionInfo, conns, func(ctx context.Context, c services.Connection) ([]models.ConnectionInfo, error) {
		info, err := c.GetConnectionInfo(ctx)
		if err != nil {
			return nil, err
		}
		return []models.ConnectionInfo{*info}, nil
	})
}

func (a *Aggregator) forUser(ctx context.Context, progress chan<- ProgressUpdate, userID string) ([]services.Connection, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", shared.ErrMissingArgument)
	}
	conns, err := a.source.GetForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	a.sendProgress(progress, resolvedUpdate(len(conns)))
	return conns, nil
}

// fanOut runs fn against every connection concurrently and concatenates the successful results in connection order.
//
// A branch that errors or panics is dropped. Only a cancelled ctx fails the whole call.
func fanOut[T any](
	ctx context.Context,
	a *Aggregator,
	progress chan<- ProgressUpdate,
	phase Phase,
	conns []services.Connection,
	fn func(context.Context, services.Connection) ([]T, error),
) ([]T, error) {
	results := make([][]T, len(conns))
	var done atomic.Int32
	var wg sync.WaitGroup

	for i, conn := range conns {
		wg.Add(1)
		go func() {
			defer wg.Done()

			items, err := runBranch(ctx, conn, fn)
			step := int(done.Add(1))
			if err != nil {
				a.logger.Warn("dropping connection from aggregate",
					"phase", phase, "connection", conn.ID(), "service", conn.ServiceType(), "err", err)
				a.sendProgress(progress, branchFailedUpdate(phase, step, len(conns), conn, err))
				return
			}
			results[i] = items
			a.sendProgress(progress, branchDoneUpdate(phase, step, len(conns), conn, len(items)))
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]T, 0)
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

func runBranch[T any](ctx context.Context, conn services.Connection, fn func(context.Context, services.Connection) ([]T, error)) (items []T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s connection %s: %v", conn.ServiceType(), conn.ID(), r)
		}
	}()
	return fn(ctx, conn)
}

func asItems[T models.MediaItem](list []T, err error) ([]models.MediaItem, error) {
	if err != nil {
		return nil, err
	}
	items := make([]models.MediaItem, len(list))
	for i, v := range list {
		items[i] = v
	}
	return items, nil
}

// sendProgress sends a progress update through the channel without blocking.
func (a *Aggregator) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
