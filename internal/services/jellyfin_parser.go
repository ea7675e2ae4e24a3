package services

import (
	"strconv"
	"strings"

	"github.com/eclypsed/lazuli/internal/models"
	"github.com/eclypsed/lazuli/internal/shared"
)

// jellyfinParser converts Jellyfin items into canonical entities for one connection.
type jellyfinParser struct {
	connectionID string
	serverURL    string
}

func (p jellyfinParser) base(item jellyfinItem, kind models.Kind) models.Item {
	return models.Item{
		ConnectionID: p.connectionID,
		ServiceType:  models.ServiceJellyfin,
		Kind:         kind,
		ID:           item.ID,
		Name:         item.Name,
		Duration:     shared.TicksToSeconds(item.RunTimeTicks),
		Thumbnail:    p.thumbnail(item),
	}
}

// thumbnail uses the item's own primary image, then its album's, then the placeholder.
func (p jellyfinParser) thumbnail(item jellyfinItem) string {
	if _, ok := item.ImageTags["Primary"]; ok {
		return p.serverURL + "/Items/" + item.ID + "/Images/Primary"
	}
	if item.AlbumID != "" && item.AlbumPrimaryImageTag != "" {
		return p.serverURL + "/Items/" + item.AlbumID + "/Images/Primary"
	}
	return shared.JellyfinPlaceholder
}

func releaseDate(item jellyfinItem) string {
	if len(item.PremiereDate) >= 10 {
		return item.PremiereDate[:10]
	}
	if item.ProductionYear > 0 {
		return strconv.Itoa(item.ProductionYear)
	}
	return ""
}

func artistRefs(refs []jellyfinNameID) []models.ArtistRef {
	if len(refs) == 0 {
		return nil
	}
	out := make([]models.ArtistRef, 0, len(refs))
	for _, r := range refs {
		out = append(out, models.ArtistRef{ID: r.ID, Name: r.Name})
	}
	return out
}

func (p jellyfinParser) song(item jellyfinItem) models.Song {
	song := models.Song{
		Item:        p.base(item, models.KindSong),
		Artists:     artistRefs(item.ArtistItems),
		Audio:       models.AudioPath(p.connectionID, item.ID),
		ReleaseDate: releaseDate(item),
	}
	if item.AlbumID != "" {
		song.Album = &models.AlbumRef{ID: item.AlbumID, Name: item.Album, Artists: artistRefs(item.AlbumArtists)}
	}
	return song
}

func (p jellyfinParser) album(item jellyfinItem) models.Album {
	album := models.Album{
		Item:        p.base(item, models.KindAlbum),
		ReleaseDate: releaseDate(item),
	}
	switch {
	case strings.EqualFold(item.AlbumArtist, models.VariousArtists):
		album.Artists = &models.AlbumArtists{Various: true}
	case len(item.AlbumArtists) > 0:
		album.Artists = &models.AlbumArtists{List: artistRefs(item.AlbumArtists)}
	}
	return album
}

func (p jellyfinParser) artist(item jellyfinItem) models.Artist {
	return models.Artist{Item: p.base(item, models.KindArtist)}
}

func (p jellyfinParser) playlist(item jellyfinItem) models.Playlist {
	return models.Playlist{
		Item:        p.base(item, models.KindPlaylist),
		Description: item.Overview,
	}
}

// mediaItem converts any supported item type, reporting false for types that are not music entities.
func (p jellyfinParser) mediaItem(item jellyfinItem) (models.MediaItem, bool) {
	switch item.Type {
	case jellyfinTypeAudio:
		return p.song(item), true
	case jellyfinTypeAlbum:
		return p.album(item), true
	case jellyfinTypeArtist:
		return p.artist(item), true
	case jellyfinTypePlaylist:
		return p.playlist(item), true
	}
	return nil, false
}

// songs keeps only playable audio entries.
func (p jellyfinParser) songs(items []jellyfinItem) []models.Song {
	songs := make([]models.Song, 0, len(items))
	for _, item := range items {
		if item.Type != jellyfinTypeAudio || item.ID == "" {
			continue
		}
		songs = append(songs, p.song(item))
	}
	return songs
}
