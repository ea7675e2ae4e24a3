// YouTube Music [Connection] implementation
//
// Browsing and search use the internal music API of the web client, playback uses the player API,
// and batch lookups and account identity use the public Data API v3.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/eclypsed/lazuli/internal/models"
	"github.com/eclypsed/lazuli/internal/shared"
)

const (
	// ytDataBatchSize is the most ids the Data API accepts per videos call.
	ytDataBatchSize = 50

	// topicSuffix marks an auto-generated artist channel.
	topicSuffix = " - Topic"

	albumIDPrefix    = "MPREb_"
	playlistIDPrefix = "VL"

	ytHomeID           = "FEmusic_home"
	ytLikedAlbumsID    = "FEmusic_liked_albums"
	ytLibraryArtistsID = "FEmusic_library_corpus_track_artists"
	ytLikedPlaylistsID = "FEmusic_liked_playlists"
)

var browseIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// YouTubeMusic is a connection to a Google account's YouTube Music library.
type YouTubeMusic struct {
	id     string
	client *ytClient
	parser ytParser
	logger *log.Logger
}

// NewYouTubeMusic creates a connection from a stored record.
//
// Credentials are refreshed through refresher when the stored access token has expired.
// A nil limiter disables rate limiting.
func NewYouTubeMusic(rec *models.ConnectionRecord, client *http.Client, refresher *Refresher, limiter *rate.Limiter, endpoints YouTubeEndpoints, logger *log.Logger) (*YouTubeMusic, error) {
	if rec.RefreshToken == "" {
		return nil, fmt.Errorf("%w: youtube music connection %s has no refresh token", shared.ErrMissingCredentials, rec.ID)
	}
	if refresher == nil {
		return nil, fmt.Errorf("%w: youtube music connection %s has no refresher", shared.ErrMissingCredentials, rec.ID)
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = shared.DiscardLogger()
	}

	return &YouTubeMusic{
		id: rec.ID,
		client: &ytClient{
			http:      client,
			tokens:    newTokenSource(rec, refresher),
			limiter:   limiter,
			endpoints: endpoints.withDefaults(),
		},
		parser: ytParser{connectionID: rec.ID},
		logger: logger.With("connection", rec.ID, "service", models.ServiceYouTubeMusic),
	}, nil
}

func (y *YouTubeMusic) ID() string                      { return y.id }
func (y *YouTubeMusic) ServiceType() models.ServiceType { return models.ServiceYouTubeMusic }
func (y *YouTubeMusic) Library() Library                { return ytLibrary{y} }

func (y *YouTubeMusic) browseURL() string { return y.client.endpoints.Music + "/browse" }

func invalidYouTubeID(id, reason string) error {
	return shared.NewInvalidIDError(string(models.ServiceYouTubeMusic), id, reason)
}

func validAlbumID(id string) error {
	if !strings.HasPrefix(id, albumIDPrefix) || !browseIDPattern.MatchString(id) {
		return invalidYouTubeID(id, "album ids start with "+albumIDPrefix)
	}
	return nil
}

// playlistBrowseID returns the browse id of a playlist, accepting ids with or without the VL prefix.
func playlistBrowseID(id string) (string, error) {
	if !browseIDPattern.MatchString(id) || id == playlistIDPrefix {
		return "", invalidYouTubeID(id, "malformed playlist id")
	}
	if strings.HasPrefix(id, playlistIDPrefix) {
		return id, nil
	}
	return playlistIDPrefix + id, nil
}

// GetConnectionInfo reads the channel of the authenticated account.
func (y *YouTubeMusic) GetConnectionInfo(ctx context.Context) (*models.ConnectionInfo, error) {
	info := &models.ConnectionInfo{ConnectionID: y.id, ServiceType: models.ServiceYouTubeMusic}

	var resp ytChannelListResponse
	err := y.client.data(ctx, "channels", url.Values{"part": {"snippet"}, "mine": {"true"}}, &resp)
	if err != nil {
		if shared.Unreachable(err) || errors.Is(err, shared.ErrRefreshExhausted) {
			return nil, err
		}
		y.logger.Warn("failed to fetch channel", "error", err)
		return info, nil
	}

	if len(resp.Items) > 0 {
		ch := resp.Items[0]
		info.Username = ch.Snippet.Title
		info.ProfilePicture = shared.BestThumbnail(ch.Snippet.Thumbnails.candidates(), "")
	}
	return info, nil
}

// Search runs a filtered or unfiltered search and flattens every result shelf.
func (y *YouTubeMusic) Search(ctx context.Context, term string, filter models.Kind) ([]models.MediaItem, error) {
	resp, err := y.client.search(ctx, term, filter)
	if err != nil {
		return nil, err
	}
	items, err := y.parser.searchResults(resp, y.client.endpoints.Music+"/search")
	if err != nil {
		return nil, err
	}
	return filterKind(items, filter), nil
}

// GetRecommendations returns the entities of the home feed carousels.
func (y *YouTubeMusic) GetRecommendations(ctx context.Context) ([]models.MediaItem, error) {
	resp, err := y.client.browse(ctx, ytHomeID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		y.logger.Warn("failed to fetch recommendations", "error", err)
		return []models.MediaItem{}, nil
	}

	items := []models.MediaItem{}
	for _, section := range resp.primarySections() {
		if sh := section.shelf(); sh != nil {
			entries, _ := splitShelf(sh)
			items = append(items, y.parser.entries(entries)...)
		}
	}
	return dedupe(items), nil
}

// GetAlbum fetches album metadata from the album page header.
func (y *YouTubeMusic) GetAlbum(ctx context.Context, id string) (*models.Album, error) {
	if err := validAlbumID(id); err != nil {
		return nil, err
	}
	resp, err := y.client.browse(ctx, id)
	if err != nil {
		return nil, err
	}
	return y.parser.albumPage(id, resp, y.browseURL())
}

// GetAlbumItems lists every track of an album, filling credits the rows leave out from the album itself.
func (y *YouTubeMusic) GetAlbumItems(ctx context.Context, id string) ([]models.Song, error) {
	if err := validAlbumID(id); err != nil {
		return nil, err
	}
	resp, err := y.client.browse(ctx, id)
	if err != nil {
		return nil, err
	}
	album, err := y.parser.albumPage(id, resp, y.browseURL())
	if err != nil {
		return nil, err
	}

	shelf := trackShelf(resp)
	if shelf == nil {
		return []models.Song{}, nil
	}
	entries, err := y.client.drain(ctx, shelf, nil)
	if err != nil {
		return nil, err
	}
	return y.parser.albumTracks(album, entries), nil
}

// GetPlaylist fetches playlist metadata from the playlist page header.
func (y *YouTubeMusic) GetPlaylist(ctx context.Context, id string) (*models.Playlist, error) {
	browseID, err := playlistBrowseID(id)
	if err != nil {
		return nil, err
	}
	resp, err := y.client.browse(ctx, browseID)
	if err != nil {
		return nil, err
	}
	return y.parser.playlistPage(browseID, resp, y.browseURL())
}

// GetPlaylistItems lists a playlist's songs within window.
//
// Continuation pages are only requested until the window is covered.
func (y *YouTubeMusic) GetPlaylistItems(ctx context.Context, id string, window models.Window) ([]models.Song, error) {
	browseID, err := playlistBrowseID(id)
	if err != nil {
		return nil, err
	}
	resp, err := y.client.browse(ctx, browseID)
	if err != nil {
		return nil, err
	}

	shelf := trackShelf(resp)
	if shelf == nil {
		if pageHeader(resp) == nil {
			return nil, shared.ShapeError(y.browseURL(), "musicPlaylistShelfRenderer")
		}
		return []models.Song{}, nil
	}

	var enough func([]ytShelfItem) bool
	if end := window.End(); end >= 0 {
		enough = func(items []ytShelfItem) bool { return countPlayable(items) >= end }
	}
	entries, err := y.client.drain(ctx, shelf, enough)
	if err != nil {
		return nil, err
	}
	return models.Apply(window, y.parser.songs(entries)), nil
}

// GetSongs looks up songs through the Data API in batches, preserving the requested order.
//
// Ids the API does not return are dropped. A failed batch is logged and dropped; the call fails only when every batch fails.
func (y *YouTubeMusic) GetSongs(ctx context.Context, ids []string) ([]models.Song, error) {
	for _, id := range ids {
		if !shared.ValidVideoID(id) {
			return nil, invalidYouTubeID(id, "expected an 11 character video id")
		}
	}
	if len(ids) == 0 {
		return []models.Song{}, nil
	}

	chunks := chunk(ids, ytDataBatchSize)
	results := make([][]ytVideo, len(chunks))
	errs := make([]error, len(chunks))

	var wg sync.WaitGroup
	for i, batch := range chunks {
		wg.Add(1)
		go func(i int, batch []string) {
			defer wg.Done()
			query := url.Values{
				"part":       {"snippet,contentDetails"},
				"id":         {strings.Join(batch, ",")},
				"maxResults": {fmt.Sprint(ytDataBatchSize)},
			}
			var resp ytVideoListResponse
			if errs[i] = y.client.data(ctx, "videos", query, &resp); errs[i] == nil {
				results[i] = resp.Items
			}
		}(i, batch)
	}
	wg.Wait()

	byID := make(map[string]ytVideo, len(ids))
	failed := 0
	for i, err := range errs {
		if err != nil {
			failed++
			y.logger.Warn("failed to fetch song batch", "batch", i, "error", err)
			continue
		}
		for _, v := range results[i] {
			byID[v.ID] = v
		}
	}
	if failed == len(chunks) {
		return nil, errs[0]
	}

	songs := make([]models.Song, 0, len(ids))
	for _, id := range ids {
		if v, ok := byID[id]; ok {
			songs = append(songs, y.parser.dataSong(v))
		}
	}
	return songs, nil
}

// dataSong builds a song from a Data API video.
//
// Videos on an auto-generated "- Topic" channel are releases credited to that artist;
// anything else is a video credited to its uploader.
func (p ytParser) dataSong(v ytVideo) models.Song {
	song := models.Song{
		Item:  p.item(models.KindSong, v.ID, v.Snippet.Title, v.Snippet.Thumbnails.candidates()),
		Audio: models.AudioPath(p.connectionID, v.ID),
	}
	song.Duration, _ = shared.ParseISODuration(v.ContentDetails.Duration)
	if len(v.Snippet.PublishedAt) >= 10 {
		song.ReleaseDate = v.Snippet.PublishedAt[:10]
	}

	channel := models.ArtistRef{ID: v.Snippet.ChannelID, Name: v.Snippet.ChannelTitle}
	if name, ok := strings.CutSuffix(channel.Name, topicSuffix); ok {
		channel.Name = name
		song.Artists = []models.ArtistRef{channel}
		return song
	}
	song.Uploader = &channel
	song.IsVideo = true
	song.Video = models.WatchURL(v.ID)
	return song
}

type ytLibrary struct{ y *YouTubeMusic }

// entries drains the first shelf of a library page. A library page without a shelf is empty.
func (l ytLibrary) entries(ctx context.Context, browseID string) ([]ytShelfItem, error) {
	resp, err := l.y.client.browse(ctx, browseID)
	if err != nil {
		return nil, err
	}
	if resp.Contents == nil {
		return nil, shared.ShapeError(l.y.browseURL(), "contents")
	}
	for _, section := range resp.primarySections() {
		if sh := section.shelf(); sh != nil {
			return l.y.client.drain(ctx, sh, nil)
		}
	}
	return nil, nil
}

func (l ytLibrary) Albums(ctx context.Context) ([]models.Album, error) {
	entries, err := l.entries(ctx, ytLikedAlbumsID)
	if err != nil {
		return nil, err
	}
	albums := []models.Album{}
	for _, m := range l.y.parser.entries(entries) {
		if album, ok := m.(models.Album); ok {
			albums = append(albums, album)
		}
	}
	return albums, nil
}

func (l ytLibrary) Artists(ctx context.Context) ([]models.Artist, error) {
	entries, err := l.entries(ctx, ytLibraryArtistsID)
	if err != nil {
		return nil, err
	}
	artists := []models.Artist{}
	for _, m := range l.y.parser.entries(entries) {
		if artist, ok := m.(models.Artist); ok {
			artists = append(artists, artist)
		}
	}
	return artists, nil
}

// Playlists lists saved playlists. Grid cards without a browse target, like "New playlist", are skipped.
func (l ytLibrary) Playlists(ctx context.Context) ([]models.Playlist, error) {
	entries, err := l.entries(ctx, ytLikedPlaylistsID)
	if err != nil {
		return nil, err
	}
	playlists := []models.Playlist{}
	for _, m := range l.y.parser.entries(entries) {
		if playlist, ok := m.(models.Playlist); ok {
			playlists = append(playlists, playlist)
		}
	}
	return playlists, nil
}
