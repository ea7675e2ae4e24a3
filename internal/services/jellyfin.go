// Jellyfin [Connection] implementation over the server's REST API
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/eclypsed/lazuli/internal/models"
	"github.com/eclypsed/lazuli/internal/shared"
)

// jellyfinPageSize bounds each library page while draining.
const jellyfinPageSize = 500

// jellyfinBatchSize bounds how many ids are requested at once.
const jellyfinBatchSize = 100

// Jellyfin is a connection to a self-hosted Jellyfin server.
type Jellyfin struct {
	id        string
	serverURL string
	userID    string
	token     string
	client    *http.Client
	identity  shared.JellyfinConfig
	parser    jellyfinParser
	logger    *log.Logger
}

// NewJellyfin creates a connection from a stored record.
func NewJellyfin(rec *models.ConnectionRecord, client *http.Client, identity shared.JellyfinConfig, logger *log.Logger) (*Jellyfin, error) {
	if rec.ServiceURL == "" || rec.ServiceUserID == "" || rec.AccessToken == "" {
		return nil, fmt.Errorf("%w: jellyfin connection %s", shared.ErrMissingCredentials, rec.ID)
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = shared.DiscardLogger()
	}

	serverURL := strings.TrimRight(rec.ServiceURL, "/")
	return &Jellyfin{
		id:        rec.ID,
		serverURL: serverURL,
		userID:    rec.ServiceUserID,
		token:     rec.AccessToken,
		client:    client,
		identity:  identity,
		parser:    jellyfinParser{connectionID: rec.ID, serverURL: serverURL},
		logger:    logger.With("connection", rec.ID, "service", models.ServiceJellyfin),
	}, nil
}

func (j *Jellyfin) ID() string                      { return j.id }
func (j *Jellyfin) ServiceType() models.ServiceType { return models.ServiceJellyfin }
func (j *Jellyfin) Library() Library                { return jellyfinLibrary{j} }

// get issues an authenticated GET against the server.
func (j *Jellyfin) get(ctx context.Context, path string, query url.Values, result any) error {
	req, err := j.newRequest(ctx, path, query)
	if err != nil {
		return err
	}
	return doJSON(j.client, req, result, nil)
}

func (j *Jellyfin) newRequest(ctx context.Context, path string, query url.Values) (*http.Request, error) {
	apiURL := j.serverURL + path
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Emby-Token", j.token)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// getItem fetches one item, turning "no such item" responses into [shared.InvalidIDError].
func (j *Jellyfin) getItem(ctx context.Context, id string) (*jellyfinItem, error) {
	var item jellyfinItem
	if err := j.get(ctx, "/Users/"+j.userID+"/Items/"+id, nil, &item); err != nil {
		return nil, j.invalidOnMissing(id, err)
	}
	return &item, nil
}

// invalidOnMissing maps 400 and 404 responses for an id lookup to [shared.InvalidIDError].
func (j *Jellyfin) invalidOnMissing(id string, err error) error {
	var upstream *shared.UpstreamError
	if errors.As(err, &upstream) && (upstream.Status == http.StatusNotFound || upstream.Status == http.StatusBadRequest) {
		return shared.NewInvalidIDError(string(models.ServiceJellyfin), id, "not found")
	}
	return err
}

func validJellyfinID(id string) error {
	if !shared.ValidJellyfinID(id) {
		return shared.NewInvalidIDError(string(models.ServiceJellyfin), id, "expected 32 hex characters")
	}
	return nil
}

// GetConnectionInfo fetches the username and server name concurrently.
func (j *Jellyfin) GetConnectionInfo(ctx context.Context) (*models.ConnectionInfo, error) {
	info := &models.ConnectionInfo{ConnectionID: j.id, ServiceType: models.ServiceJellyfin}

	var (
		wg              sync.WaitGroup
		user            jellyfinUser
		system          jellyfinSystemInfo
		userErr, sysErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		userErr = j.get(ctx, "/Users/"+j.userID, nil, &user)
	}()
	go func() {
		defer wg.Done()
		sysErr = j.get(ctx, "/System/Info", nil, &system)
	}()
	wg.Wait()

	if userErr != nil && sysErr != nil && shared.Unreachable(userErr) && shared.Unreachable(sysErr) {
		return nil, userErr
	}

	if userErr != nil {
		j.logger.Warn("failed to fetch jellyfin user", "error", userErr)
	} else {
		info.Username = user.Name
	}
	if sysErr != nil {
		j.logger.Warn("failed to fetch jellyfin system info", "error", sysErr)
	} else {
		info.ServerName = system.ServerName
	}
	return info, nil
}

// Search queries songs, albums and playlists through the item index and artists through the artist index.
func (j *Jellyfin) Search(ctx context.Context, term string, filter models.Kind) ([]models.MediaItem, error) {
	var itemTypes []string
	switch filter {
	case "":
		itemTypes = []string{jellyfinTypeAudio, jellyfinTypeAlbum, jellyfinTypePlaylist}
	case models.KindSong:
		itemTypes = []string{jellyfinTypeAudio}
	case models.KindAlbum:
		itemTypes = []string{jellyfinTypeAlbum}
	case models.KindPlaylist:
		itemTypes = []string{jellyfinTypePlaylist}
	}

	var results []models.MediaItem
	if len(itemTypes) > 0 {
		query := url.Values{
			"searchTerm":       {term},
			"IncludeItemTypes": {strings.Join(itemTypes, ",")},
			"Recursive":        {"true"},
			"Fields":           {jellyfinFields},
		}
		var resp jellyfinItemsResponse
		if err := j.get(ctx, "/Users/"+j.userID+"/Items", query, &resp); err != nil {
			return nil, err
		}
		for _, item := range resp.Items {
			if m, ok := j.parser.mediaItem(item); ok {
				results = append(results, m)
			}
		}
	}

	if filter == "" || filter == models.KindArtist {
		query := url.Values{"searchTerm": {term}, "UserId": {j.userID}}
		var resp jellyfinItemsResponse
		if err := j.get(ctx, "/Artists", query, &resp); err != nil {
			return nil, err
		}
		for _, item := range resp.Items {
			results = append(results, j.parser.artist(item))
		}
	}

	return results, nil
}

// GetRecommendations returns the user's most played songs.
func (j *Jellyfin) GetRecommendations(ctx context.Context) ([]models.MediaItem, error) {
	query := url.Values{
		"SortBy":           {"PlayCount"},
		"SortOrder":        {"Descending"},
		"IncludeItemTypes": {jellyfinTypeAudio},
		"Recursive":        {"true"},
		"Limit":            {"10"},
		"Fields":           {jellyfinFields},
	}

	var resp jellyfinItemsResponse
	if err := j.get(ctx, "/Users/"+j.userID+"/Items", query, &resp); err != nil {
		j.logger.Warn("failed to fetch recommendations", "error", err)
		return []models.MediaItem{}, nil
	}

	items := make([]models.MediaItem, 0, len(resp.Items))
	for _, song := range j.parser.songs(resp.Items) {
		items = append(items, song)
	}
	return items, nil
}

// GetAudioStream proxies the universal audio endpoint, forwarding Range.
func (j *Jellyfin) GetAudioStream(ctx context.Context, id string, header http.Header) (*AudioStream, error) {
	if err := validJellyfinID(id); err != nil {
		return nil, err
	}

	query := url.Values{
		"UserId":    {j.userID},
		"DeviceId":  {j.identity.DeviceID},
		"Container": {jellyfinContainers},
		"api_key":   {j.token},
	}
	req, err := j.newRequest(ctx, "/Audio/"+id+"/universal", query)
	if err != nil {
		return nil, err
	}
	req.Header.Del("Accept")
	if r := header.Get("Range"); r != "" {
		req.Header.Set("Range", r)
	}

	resp, err := send(j.client, req)
	if err != nil {
		return nil, err
	}
	if !relayedStatus(resp.StatusCode) {
		defer resp.Body.Close()
		return nil, j.invalidOnMissing(id, statusError(resp, nil))
	}

	return &AudioStream{StatusCode: resp.StatusCode, Header: relayHeader(resp.Header), Body: resp.Body}, nil
}

// GetAlbum fetches album metadata.
func (j *Jellyfin) GetAlbum(ctx context.Context, id string) (*models.Album, error) {
	if err := validJellyfinID(id); err != nil {
		return nil, err
	}
	item, err := j.getItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Type != jellyfinTypeAlbum {
		return nil, shared.NewInvalidIDError(string(models.ServiceJellyfin), id, "not an album")
	}
	album := j.parser.album(*item)
	return &album, nil
}

// GetAlbumItems lists an album's tracks in disc and track order.
func (j *Jellyfin) GetAlbumItems(ctx context.Context, id string) ([]models.Song, error) {
	if err := validJellyfinID(id); err != nil {
		return nil, err
	}
	query := url.Values{
		"ParentId":         {id},
		"IncludeItemTypes": {jellyfinTypeAudio},
		"SortBy":           {"ParentIndexNumber,IndexNumber"},
		"Fields":           {jellyfinFields},
	}
	var resp jellyfinItemsResponse
	if err := j.get(ctx, "/Users/"+j.userID+"/Items", query, &resp); err != nil {
		return nil, j.invalidOnMissing(id, err)
	}
	return j.parser.songs(resp.Items), nil
}

// GetPlaylist fetches playlist metadata.
func (j *Jellyfin) GetPlaylist(ctx context.Context, id string) (*models.Playlist, error) {
	if err := validJellyfinID(id); err != nil {
		return nil, err
	}
	item, err := j.getItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Type != jellyfinTypePlaylist {
		return nil, shared.NewInvalidIDError(string(models.ServiceJellyfin), id, "not a playlist")
	}
	playlist := j.parser.playlist(*item)
	return &playlist, nil
}

// GetPlaylistItems lists a playlist's songs within window. Paging is done by the server.
func (j *Jellyfin) GetPlaylistItems(ctx context.Context, id string, window models.Window) ([]models.Song, error) {
	if err := validJellyfinID(id); err != nil {
		return nil, err
	}
	query := url.Values{
		"UserId": {j.userID},
		"Fields": {jellyfinFields},
	}
	if window.StartIndex > 0 {
		query.Set("StartIndex", strconv.Itoa(window.StartIndex))
	}
	if window.Limit > 0 {
		query.Set("Limit", strconv.Itoa(window.Limit))
	}

	var resp jellyfinItemsResponse
	if err := j.get(ctx, "/Playlists/"+id+"/Items", query, &resp); err != nil {
		return nil, j.invalidOnMissing(id, err)
	}
	return j.parser.songs(resp.Items), nil
}

// GetSongs fetches songs by id in batches, preserving the requested order.
//
// Ids the server does not return are dropped. A failed batch is logged and dropped; the call fails only when every batch fails.
func (j *Jellyfin) GetSongs(ctx context.Context, ids []string) ([]models.Song, error) {
	for _, id := range ids {
		if err := validJellyfinID(id); err != nil {
			return nil, err
		}
	}
	if len(ids) == 0 {
		return []models.Song{}, nil
	}

	chunks := chunk(ids, jellyfinBatchSize)
	results := make([][]jellyfinItem, len(chunks))
	errs := make([]error, len(chunks))

	var wg sync.WaitGroup
	for i, batch := range chunks {
		wg.Add(1)
		go func(i int, batch []string) {
			defer wg.Done()
			query := url.Values{"Ids": {strings.Join(batch, ",")}, "Fields": {jellyfinFields}}
			var resp jellyfinItemsResponse
			if errs[i] = j.get(ctx, "/Users/"+j.userID+"/Items", query, &resp); errs[i] == nil {
				results[i] = resp.Items
			}
		}(i, batch)
	}
	wg.Wait()

	byID := make(map[string]jellyfinItem, len(ids))
	failed := 0
	for i, err := range errs {
		if err != nil {
			failed++
			j.logger.Warn("failed to fetch song batch", "batch", i, "error", err)
			continue
		}
		for _, item := range results[i] {
			byID[item.ID] = item
		}
	}
	if failed == len(chunks) {
		return nil, errs[0]
	}

	ordered := make([]jellyfinItem, 0, len(ids))
	for _, id := range ids {
		if item, ok := byID[id]; ok {
			ordered = append(ordered, item)
		}
	}
	return j.parser.songs(ordered), nil
}

// pageAll drains a paged item listing.
func (j *Jellyfin) pageAll(ctx context.Context, path string, query url.Values) ([]jellyfinItem, error) {
	var all []jellyfinItem
	for start := 0; ; {
		page := url.Values{}
		for k, v := range query {
			page[k] = v
		}
		page.Set("StartIndex", strconv.Itoa(start))
		page.Set("Limit", strconv.Itoa(jellyfinPageSize))

		var resp jellyfinItemsResponse
		if err := j.get(ctx, path, page, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Items...)
		start += len(resp.Items)

		if len(resp.Items) == 0 || start >= resp.TotalRecordCount {
			return all, nil
		}
	}
}

type jellyfinLibrary struct{ j *Jellyfin }

func (l jellyfinLibrary) Albums(ctx context.Context) ([]models.Album, error) {
	items, err := l.j.pageAll(ctx, "/Users/"+l.j.userID+"/Items", url.Values{
		"IncludeItemTypes": {jellyfinTypeAlbum},
		"Recursive":        {"true"},
		"SortBy":           {"SortName"},
		"Fields":           {jellyfinFields},
	})
	if err != nil {
		return nil, err
	}
	albums := make([]models.Album, 0, len(items))
	for _, item := range items {
		albums = append(albums, l.j.parser.album(item))
	}
	return albums, nil
}

func (l jellyfinLibrary) Artists(ctx context.Context) ([]models.Artist, error) {
	items, err := l.j.pageAll(ctx, "/Artists/AlbumArtists", url.Values{
		"UserId": {l.j.userID},
		"SortBy": {"SortName"},
	})
	if err != nil {
		return nil, err
	}
	artists := make([]models.Artist, 0, len(items))
	for _, item := range items {
		artists = append(artists, l.j.parser.artist(item))
	}
	return artists, nil
}

func (l jellyfinLibrary) Playlists(ctx context.Context) ([]models.Playlist, error) {
	items, err := l.j.pageAll(ctx, "/Users/"+l.j.userID+"/Items", url.Values{
		"IncludeItemTypes": {jellyfinTypePlaylist},
		"Recursive":        {"true"},
		"Fields":           {jellyfinFields},
	})
	if err != nil {
		return nil, err
	}
	playlists := make([]models.Playlist, 0, len(items))
	for _, item := range items {
		playlists = append(playlists, l.j.parser.playlist(item))
	}
	return playlists, nil
}

// JellyfinSession is the result of a username and password login.
type JellyfinSession struct {
	UserID      string
	AccessToken string
	ServerID    string
}

// AuthenticateJellyfin logs in to a server and returns a session token for a new connection.
func AuthenticateJellyfin(ctx context.Context, client *http.Client, identity shared.JellyfinConfig, serverURL, username, password string) (*JellyfinSession, error) {
	if client == nil {
		client = http.DefaultClient
	}

	body, err := json.Marshal(map[string]string{"Username": username, "Pw": password})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal login: %w", err)
	}

	endpoint := strings.TrimRight(serverURL, "/") + "/Users/AuthenticateByName"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Emby-Authorization", fmt.Sprintf(`MediaBrowser Client="%s", Device="%s", DeviceId="%s", Version="%s"`,
		identity.ClientName, identity.DeviceName, identity.DeviceID, identity.ClientVersion))

	var resp jellyfinAuthResponse
	err = doJSON(client, req, &resp, func(status int, _ []byte) error {
		if status == http.StatusUnauthorized {
			return fmt.Errorf("%w: jellyfin rejected the username or password", shared.ErrAuthFailed)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if resp.AccessToken == "" || resp.User.ID == "" {
		return nil, shared.ShapeError(endpoint, "AccessToken")
	}
	return &JellyfinSession{UserID: resp.User.ID, AccessToken: resp.AccessToken, ServerID: resp.ServerID}, nil
}

func chunk[T any](items []T, size int) [][]T {
	var chunks [][]T
	for size < len(items) {
		items, chunks = items[size:], append(chunks, items[:size:size])
	}
	return append(chunks, items)
}
