package services

import (
	"context"
	"io"
	"net/http"

	"github.com/eclypsed/lazuli/internal/models"
)

// Connection is one user's account on one music service.
//
// Every variant implements the same operations. Entity ids are only meaningful to the connection that produced them.
type Connection interface {
	// ID returns the connection id the entities it produces carry.
	ID() string

	// ServiceType returns the variant discriminator.
	ServiceType() models.ServiceType

	// GetConnectionInfo fetches display identity. Partial results are returned when some lookups fail;
	// an error is returned only when the service could not be reached at all.
	GetConnectionInfo(ctx context.Context) (*models.ConnectionInfo, error)

	// Search finds entities matching term. An empty filter searches every kind.
	Search(ctx context.Context, term string, filter models.Kind) ([]models.MediaItem, error)

	// GetRecommendations is best-effort and never fails on upstream trouble.
	GetRecommendations(ctx context.Context) ([]models.MediaItem, error)

	// GetAudioStream opens a playable stream. Range headers in header are passed through.
	GetAudioStream(ctx context.Context, id string, header http.Header) (*AudioStream, error)

	GetAlbum(ctx context.Context, id string) (*models.Album, error)
	GetAlbumItems(ctx context.Context, id string) ([]models.Song, error)
	GetPlaylist(ctx context.Context, id string) (*models.Playlist, error)
	GetPlaylistItems(ctx context.Context, id string, window models.Window) ([]models.Song, error)
	GetSongs(ctx context.Context, ids []string) ([]models.Song, error)

	// Library enumerates the authenticated user's saved collection.
	Library() Library
}

// Library lists saved albums, artists and playlists, always draining every page.
type Library interface {
	Albums(ctx context.Context) ([]models.Album, error)
	Artists(ctx context.Context) ([]models.Artist, error)
	Playlists(ctx context.Context) ([]models.Playlist, error)
}

// AudioStream is an upstream audio response relayed to the caller.
type AudioStream struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// TokenStore is the persistence contract the registry and credential refresher depend on.
type TokenStore interface {
	GetConnection(ctx context.Context, id string) (*models.ConnectionRecord, error)
	GetConnectionsForUser(ctx context.Context, userID string) ([]*models.ConnectionRecord, error)
	UpdateTokens(ctx context.Context, id string, update models.TokenUpdate) error
	DeleteConnection(ctx context.Context, id string) error
}

// relayedHeaders are copied from the upstream audio response.
var relayedHeaders = []string{"Content-Type", "Content-Length", "Content-Range", "Accept-Ranges", "Last-Modified", "ETag"}

// relayedStatus reports whether an upstream audio status is passed to the caller as-is.
func relayedStatus(status int) bool {
	switch status {
	case http.StatusOK, http.StatusPartialContent, http.StatusRequestedRangeNotSatisfiable:
		return true
	}
	return false
}

func relayHeader(src http.Header) http.Header {
	dst := http.Header{}
	for _, k := range relayedHeaders {
		if v := src.Get(k); v != "" {
			dst.Set(k, v)
		}
	}
	return dst
}

func filterKind(items []models.MediaItem, kind models.Kind) []models.MediaItem {
	if kind == "" {
		return items
	}
	filtered := items[:0]
	for _, item := range items {
		if item.Base().Kind == kind {
			filtered = append(filtered, item)
		}
	}
	return filtered
}
