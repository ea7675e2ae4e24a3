package services

import (
	"regexp"
	"strings"

	"github.com/eclypsed/lazuli/internal/models"
	"github.com/eclypsed/lazuli/internal/shared"
)

var (
	yearText      = regexp.MustCompile(`^\d{4}$`)
	timestampText = regexp.MustCompile(`^\d+(:\d{2})+$`)
	countText     = regexp.MustCompile(`(?i)^[\d.,]+[KMB]?\s+(views?|plays?|songs?|tracks?|subscribers?|episodes?|monthly audience|videos?)$`)
)

// typeLabels are the result-kind words the API interleaves with credits in search rows.
var typeLabels = map[string]bool{
	"Song": true, "Video": true, "Album": true, "Single": true, "EP": true, "Playlist": true,
	"Artist": true, "Episode": true, "Podcast": true, "Profile": true, "Station": true, "Audiobook": true,
}

func isSeparator(text string) bool {
	return text == "" || text == "•" || text == "&" || text == "," || text == "·"
}

// credits is what the secondary text of a row says about an entity.
type credits struct {
	artists  []models.ArtistRef
	album    *models.AlbumRef
	uploader *models.ArtistRef
	various  bool
	year     string
	duration int
}

// parseCredits classifies runs by their navigation target.
//
// Runs that browse to an artist page are artists. A channel run, or failing that the first plain text
// credit, is the uploader. Years, durations, counts and type labels are picked out or skipped.
func parseCredits(runs []ytRun) credits {
	var (
		c     credits
		plain []string
	)
	for _, r := range runs {
		text := strings.TrimSpace(r.Text)
		if b := r.browse(); b != nil && b.BrowseID != "" {
			switch b.pageType() {
			case pageTypeArtist:
				c.artists = append(c.artists, models.ArtistRef{ID: b.BrowseID, Name: text})
			case pageTypeAlbum:
				if c.album == nil {
					c.album = &models.AlbumRef{ID: b.BrowseID, Name: text}
				}
			case pageTypeUserChannel:
				if c.uploader == nil {
					c.uploader = &models.ArtistRef{ID: b.BrowseID, Name: text}
				}
			}
			continue
		}

		switch {
		case isSeparator(text), typeLabels[text], countText.MatchString(text):
		case yearText.MatchString(text):
			c.year = text
		case timestampText.MatchString(text):
			c.duration, _ = shared.ParseTimestamp(text)
		case text == models.VariousArtists:
			c.various = true
		default:
			plain = append(plain, text)
		}
	}

	if len(c.artists) > 0 {
		c.uploader = nil
	} else if c.uploader == nil && len(plain) > 0 {
		c.uploader = &models.ArtistRef{Name: plain[0]}
	}
	return c
}

// ytParser converts internal API renderers into canonical entities for one connection.
type ytParser struct {
	connectionID string
}

func (p ytParser) item(kind models.Kind, id, name string, thumbs []shared.Thumbnail) models.Item {
	return models.Item{
		ConnectionID: p.connectionID,
		ServiceType:  models.ServiceYouTubeMusic,
		Kind:         kind,
		ID:           id,
		Name:         name,
		Thumbnail:    shared.BestThumbnail(thumbs, shared.YouTubePlaceholder),
	}
}

// song builds a song from a playback target. isVideo is false for auto-generated releases and untyped items.
func (p ytParser) song(videoID, name string, watch *ytWatchEndpoint, c credits, thumbs []shared.Thumbnail) models.Song {
	videoType := watch.videoType()
	song := models.Song{
		Item:        p.item(models.KindSong, videoID, name, thumbs),
		Artists:     c.artists,
		Album:       c.album,
		Audio:       models.AudioPath(p.connectionID, videoID),
		ReleaseDate: c.year,
		IsVideo:     videoType != "" && videoType != videoTypeATV,
	}
	song.Duration = c.duration
	if len(song.Artists) == 0 {
		song.Uploader = c.uploader
	}
	if song.IsVideo {
		song.Video = models.WatchURL(videoID)
	}
	return song
}

func (p ytParser) album(id, name string, c credits, thumbs []shared.Thumbnail) models.Album {
	album := models.Album{
		Item:        p.item(models.KindAlbum, id, name, thumbs),
		ReleaseDate: c.year,
	}
	switch {
	case c.various:
		album.Artists = &models.AlbumArtists{Various: true}
	case len(c.artists) > 0:
		album.Artists = &models.AlbumArtists{List: c.artists}
	}
	return album
}

func (p ytParser) artist(id, name string, thumbs []shared.Thumbnail) models.Artist {
	return models.Artist{Item: p.item(models.KindArtist, id, name, thumbs)}
}

func (p ytParser) playlist(id, name string, c credits, thumbs []shared.Thumbnail) models.Playlist {
	playlist := models.Playlist{Item: p.item(models.KindPlaylist, id, name, thumbs)}
	switch {
	case c.uploader != nil:
		playlist.CreatedBy = &models.Creator{ID: c.uploader.ID, Name: c.uploader.Name}
	case len(c.artists) > 0:
		playlist.CreatedBy = &models.Creator{ID: c.artists[0].ID, Name: c.artists[0].Name}
	}
	return playlist
}

// browseEntity builds the entity a browse target points at, or reports false for page types that are not music entities.
func (p ytParser) browseEntity(b *ytBrowseEndpoint, name string, c credits, thumbs []shared.Thumbnail) (models.MediaItem, bool) {
	if b == nil || b.BrowseID == "" {
		return nil, false
	}
	switch b.pageType() {
	case pageTypeAlbum:
		return p.album(b.BrowseID, name, c, thumbs), true
	case pageTypeArtist:
		return p.artist(b.BrowseID, name, thumbs), true
	case pageTypePlaylist:
		return p.playlist(b.BrowseID, name, c, thumbs), true
	}
	return nil, false
}

func secondaryRuns(it *ytListItem) []ytRun {
	var runs []ytRun
	for i := 1; i < len(it.FlexColumns); i++ {
		runs = append(runs, it.column(i).Runs...)
	}
	return runs
}

// listSong builds a song from a list row, reporting false for rows without a playback id.
func (p ytParser) listSong(it *ytListItem) (models.Song, bool) {
	videoID := it.videoID()
	if videoID == "" {
		return models.Song{}, false
	}

	c := parseCredits(secondaryRuns(it))
	song := p.song(videoID, it.column(0).String(), it.watch(), c, it.Thumbnail.candidates())
	if len(it.FixedColumns) > 0 {
		if d, err := shared.ParseTimestamp(it.FixedColumns[0].MusicResponsiveListItemFixedColumnRenderer.Text.String()); err == nil {
			song.Duration = d
		}
	}
	return song, true
}

// listItem builds whatever entity a list row represents.
func (p ytParser) listItem(it *ytListItem) (models.MediaItem, bool) {
	if nav := it.NavigationEndpoint; nav != nil && nav.BrowseEndpoint != nil {
		return p.browseEntity(nav.BrowseEndpoint, it.column(0).String(), parseCredits(secondaryRuns(it)), it.Thumbnail.candidates())
	}
	song, ok := p.listSong(it)
	if !ok {
		return nil, false
	}
	return song, true
}

// twoRowItem builds whatever entity a grid or carousel card represents.
func (p ytParser) twoRowItem(it *ytTwoRowItem) (models.MediaItem, bool) {
	nav := it.NavigationEndpoint
	if nav == nil {
		for _, r := range it.Title.Runs {
			if r.NavigationEndpoint != nil {
				nav = r.NavigationEndpoint
				break
			}
		}
	}
	if nav == nil {
		return nil, false
	}

	c := parseCredits(it.Subtitle.Runs)
	thumbs := it.ThumbnailRenderer.candidates()
	if w := nav.WatchEndpoint; w != nil && w.VideoID != "" {
		return p.song(w.VideoID, it.Title.String(), w, c, thumbs), true
	}
	return p.browseEntity(nav.BrowseEndpoint, it.Title.String(), c, thumbs)
}

// cardItem builds the top result of a search.
func (p ytParser) cardItem(card *ytCardShelf) (models.MediaItem, bool) {
	if len(card.Title.Runs) == 0 || card.Title.Runs[0].NavigationEndpoint == nil {
		return nil, false
	}
	nav := card.Title.Runs[0].NavigationEndpoint
	c := parseCredits(card.Subtitle.Runs)
	thumbs := card.Thumbnail.candidates()
	if w := nav.WatchEndpoint; w != nil && w.VideoID != "" {
		return p.song(w.VideoID, card.Title.String(), w, c, thumbs), true
	}
	return p.browseEntity(nav.BrowseEndpoint, card.Title.String(), c, thumbs)
}

// entries converts shelf entries, silently dropping those that are not music entities.
func (p ytParser) entries(items []ytShelfItem) []models.MediaItem {
	out := make([]models.MediaItem, 0, len(items))
	for _, entry := range items {
		var (
			m  models.MediaItem
			ok bool
		)
		switch {
		case entry.MusicResponsiveListItemRenderer != nil:
			m, ok = p.listItem(entry.MusicResponsiveListItemRenderer)
		case entry.MusicTwoRowItemRenderer != nil:
			m, ok = p.twoRowItem(entry.MusicTwoRowItemRenderer)
		}
		if ok {
			out = append(out, m)
		}
	}
	return out
}

// songs converts the playable rows of a shelf.
func (p ytParser) songs(items []ytShelfItem) []models.Song {
	out := make([]models.Song, 0, len(items))
	for _, entry := range items {
		if entry.MusicResponsiveListItemRenderer == nil {
			continue
		}
		if song, ok := p.listSong(entry.MusicResponsiveListItemRenderer); ok {
			out = append(out, song)
		}
	}
	return out
}

func countPlayable(items []ytShelfItem) int {
	n := 0
	for _, entry := range items {
		if entry.MusicResponsiveListItemRenderer != nil && entry.MusicResponsiveListItemRenderer.videoID() != "" {
			n++
		}
	}
	return n
}

// searchResults flattens the top-result card and every shelf of a search page.
func (p ytParser) searchResults(resp *ytResponse, endpoint string) ([]models.MediaItem, error) {
	if resp.Contents == nil || resp.Contents.TabbedSearchResultsRenderer == nil {
		return nil, shared.ShapeError(endpoint, "contents.tabbedSearchResultsRenderer")
	}

	var results []models.MediaItem
	for _, section := range resp.primarySections() {
		if card := section.MusicCardShelfRenderer; card != nil {
			if m, ok := p.cardItem(card); ok {
				results = append(results, m)
			}
			results = append(results, p.entries(card.Contents)...)
			continue
		}
		if shelf := section.shelf(); shelf != nil {
			entries, _ := splitShelf(shelf)
			results = append(results, p.entries(entries)...)
		}
	}
	return dedupe(results), nil
}

// dedupe keeps the first occurrence of each entity; the top result is usually repeated in its shelf.
func dedupe(items []models.MediaItem) []models.MediaItem {
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, m := range items {
		key := m.Base().Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, m)
	}
	return out
}

// pageHeader finds the responsive header of an album or playlist page.
func pageHeader(resp *ytResponse) *ytResponsiveHeader {
	for _, section := range resp.primarySections() {
		if h := section.header(); h != nil {
			return h
		}
	}
	return nil
}

// trackShelf finds the shelf holding an album's or playlist's tracks.
func trackShelf(resp *ytResponse) *ytShelf {
	for _, sections := range [][]ytSection{resp.secondarySections(), resp.primarySections()} {
		for _, section := range sections {
			if sh := section.shelf(); sh != nil {
				return sh
			}
		}
	}
	return nil
}

// albumPage reads album metadata from its browse page.
func (p ytParser) albumPage(id string, resp *ytResponse, endpoint string) (*models.Album, error) {
	header := pageHeader(resp)
	if header == nil {
		return nil, shared.ShapeError(endpoint, "musicResponsiveHeaderRenderer")
	}

	c := parseCredits(header.StraplineTextOne.Runs)
	if !c.various && len(c.artists) == 0 && strings.TrimSpace(header.StraplineTextOne.String()) == models.VariousArtists {
		c.various = true
	}
	c.year = parseCredits(header.Subtitle.Runs).year

	album := p.album(id, header.Title.String(), c, header.Thumbnail.candidates())
	album.Duration = shared.ParseDurationText(header.SecondSubtitle.String())
	return &album, nil
}

// albumTracks links tracks to the album page they were listed on.
//
// A track's own album run wins. Tracks without any credit inherit the album's artists.
func (p ytParser) albumTracks(album *models.Album, items []ytShelfItem) []models.Song {
	var albumArtists []models.ArtistRef
	if album.Artists != nil && !album.Artists.Various {
		albumArtists = album.Artists.List
	}

	songs := p.songs(items)
	for i := range songs {
		s := &songs[i]
		if s.Album == nil {
			s.Album = &models.AlbumRef{ID: album.ID, Name: album.Name, Artists: albumArtists}
		}
		if len(s.Artists) == 0 && s.Uploader == nil && len(albumArtists) > 0 {
			s.Artists = append([]models.ArtistRef(nil), albumArtists...)
		}
		if s.Thumbnail == shared.YouTubePlaceholder {
			s.Thumbnail = album.Thumbnail
		}
		if s.ReleaseDate == "" {
			s.ReleaseDate = album.ReleaseDate
		}
	}
	return songs
}

// playlistPage reads playlist metadata from its browse page.
func (p ytParser) playlistPage(id string, resp *ytResponse, endpoint string) (*models.Playlist, error) {
	header := pageHeader(resp)
	if header == nil {
		return nil, shared.ShapeError(endpoint, "musicResponsiveHeaderRenderer")
	}

	playlist := models.Playlist{Item: p.item(models.KindPlaylist, id, header.Title.String(), header.Thumbnail.candidates())}
	playlist.Duration = shared.ParseDurationText(header.SecondSubtitle.String())
	if header.Description != nil {
		playlist.Description = header.Description.MusicDescriptionShelfRenderer.Description.String()
	}

	for _, r := range header.StraplineTextOne.Runs {
		name := strings.TrimSpace(r.Text)
		if isSeparator(name) {
			continue
		}
		creator := &models.Creator{Name: name, ProfilePicture: shared.BestThumbnail(header.StraplineThumbnail.candidates(), "")}
		if b := r.browse(); b != nil {
			creator.ID = b.BrowseID
		}
		playlist.CreatedBy = creator
		break
	}
	return &playlist, nil
}
