package models

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ServiceType is the stored discriminator that selects a connection variant.
type ServiceType string

const (
	ServiceJellyfin     ServiceType = "jellyfin"
	ServiceYouTubeMusic ServiceType = "youtube-music"
)

// ServiceTypes lists every supported variant.
var ServiceTypes = []ServiceType{ServiceJellyfin, ServiceYouTubeMusic}

// Valid reports whether s names a supported variant.
func (s ServiceType) Valid() bool {
	for _, t := range ServiceTypes {
		if s == t {
			return true
		}
	}
	return false
}

// Kind discriminates canonical entities in JSON output and narrows search.
type Kind string

const (
	KindSong     Kind = "song"
	KindAlbum    Kind = "album"
	KindArtist   Kind = "artist"
	KindPlaylist Kind = "playlist"
)

// ParseKind accepts a kind name in singular or plural form. An empty string yields the empty kind, meaning "all".
func ParseKind(s string) (Kind, error) {
	switch strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s") {
	case "":
		return "", nil
	case "song":
		return KindSong, nil
	case "album":
		return KindAlbum, nil
	case "artist":
		return KindArtist, nil
	case "playlist":
		return KindPlaylist, nil
	}
	return "", fmt.Errorf("unknown kind %q", s)
}

// Item holds the fields shared by every canonical entity.
type Item struct {
	ConnectionID string      `json:"connectionId"`
	ServiceType  ServiceType `json:"serviceType"`
	Kind         Kind        `json:"type"`
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Duration     int         `json:"duration,omitempty"`
	Thumbnail    string      `json:"thumbnail,omitempty"`
}

// Base returns the shared fields.
func (i Item) Base() Item { return i }

// Key returns the connection-scoped identity of the item.
func (i Item) Key() string {
	return i.ConnectionID + "/" + string(i.ServiceType) + "/" + string(i.Kind) + "/" + i.ID
}

// MediaItem is any of [Song], [Album], [Artist] or [Playlist].
type MediaItem interface {
	Base() Item
}

// ArtistRef is an artist credit as it appears on a song or album.
type ArtistRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AlbumRef is the album a song belongs to.
type AlbumRef struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Artists []ArtistRef `json:"artists,omitzero"`
}

// Song is a playable track or video.
//
// Artists is nil when the service credits no artist, which differs from an empty list.
// A song has either artists or an uploader, never both.
type Song struct {
	Item
	Artists     []ArtistRef `json:"artists,omitzero"`
	Album       *AlbumRef   `json:"album,omitempty"`
	Uploader    *ArtistRef  `json:"uploader,omitempty"`
	Audio       string      `json:"audio"`
	Video       string      `json:"video,omitempty"`
	ReleaseDate string      `json:"releaseDate,omitempty"`
	IsVideo     bool        `json:"isVideo"`
}

// VariousArtists is the sentinel credited on compilation albums.
const VariousArtists = "Various Artists"

// AlbumArtists is either a list of artists or the [VariousArtists] sentinel.
type AlbumArtists struct {
	Various bool
	List    []ArtistRef
}

// MarshalJSON writes the sentinel string or the artist array.
func (a AlbumArtists) MarshalJSON() ([]byte, error) {
	if a.Various {
		return json.Marshal(VariousArtists)
	}
	if a.List == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a.List)
}

// UnmarshalJSON accepts the sentinel string or an artist array.
func (a *AlbumArtists) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != VariousArtists {
			return fmt.Errorf("unexpected album artists value %q", s)
		}
		*a = AlbumArtists{Various: true}
		return nil
	}
	var list []ArtistRef
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*a = AlbumArtists{List: list}
	return nil
}

// Album is an album. Artists is nil when the service credits no one.
//
// Songs is filled only by callers that fetched the album items separately.
type Album struct {
	Item
	Artists     *AlbumArtists `json:"artists,omitempty"`
	ReleaseDate string        `json:"releaseDate,omitempty"`
	Songs       []Song        `json:"songs,omitempty"`
}

// Artist is a musical artist.
type Artist struct {
	Item
}

// Creator is the account that owns a playlist.
type Creator struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ProfilePicture string `json:"profilePicture,omitempty"`
}

// Playlist is a playlist. Songs is filled only by callers that fetched the playlist items separately.
type Playlist struct {
	Item
	Description string   `json:"description,omitempty"`
	CreatedBy   *Creator `json:"createdBy,omitempty"`
	Songs       []Song   `json:"songs,omitempty"`
}

// ConnectionInfo is the display identity of one connection.
type ConnectionInfo struct {
	ConnectionID   string      `json:"connectionId"`
	ServiceType    ServiceType `json:"serviceType"`
	Username       string      `json:"username,omitempty"`
	ServerName     string      `json:"serverName,omitempty"`
	ProfilePicture string      `json:"profilePicture,omitempty"`
}

// AudioPath returns the route that proxies audio for a song on a connection.
func AudioPath(connectionID, id string) string {
	q := url.Values{"connection": {connectionID}, "id": {id}}
	return "/api/audio?" + q.Encode()
}

// WatchURL returns the public page of a video.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(videoID)
}

// Window is an optional slice of a collection.
//
// A zero Limit means "to the end".
type Window struct {
	StartIndex int
	Limit      int
}

// End returns the exclusive upper bound of the window, or -1 when unbounded.
func (w Window) End() int {
	if w.Limit <= 0 {
		return -1
	}
	return w.StartIndex + w.Limit
}

// Apply slices items to the window.
func Apply[T any](w Window, items []T) []T {
	start := min(max(w.StartIndex, 0), len(items))
	end := len(items)
	if e := w.End(); e >= 0 && e < end {
		end = e
	}
	if end < start {
		end = start
	}
	return items[start:end]
}

// User is a local account that owns connections.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Validate checks the user can be stored.
func (u *User) Validate() error {
	if strings.TrimSpace(u.Username) == "" {
		return fmt.Errorf("username is required")
	}
	return nil
}

// ConnectionRecord is the stored credential row of one connection.
//
// For Jellyfin ServiceURL is the server base url and ServiceUserID the Jellyfin user id.
// For YouTube Music the refresh token and expiry drive the credential refresher.
type ConnectionRecord struct {
	ID            string      `json:"id"`
	UserID        string      `json:"userId"`
	Type          ServiceType `json:"type"`
	ServiceURL    string      `json:"serviceUrl,omitempty"`
	ServiceUserID string      `json:"serviceUserId,omitempty"`
	AccessToken   string      `json:"-"`
	RefreshToken  string      `json:"-"`
	Expiry        time.Time   `json:"expiry,omitzero"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// Validate checks the record carries what its variant needs.
func (c *ConnectionRecord) Validate() error {
	if c.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	if c.AccessToken == "" {
		return fmt.Errorf("access token is required")
	}
	switch c.Type {
	case ServiceJellyfin:
		if c.ServiceURL == "" || c.ServiceUserID == "" {
			return fmt.Errorf("jellyfin connections require a server url and user id")
		}
	case ServiceYouTubeMusic:
		if c.RefreshToken == "" {
			return fmt.Errorf("youtube music connections require a refresh token")
		}
	default:
		return fmt.Errorf("unknown service type %q", c.Type)
	}
	return nil
}

// TokenUpdate carries a refreshed credential. Empty RefreshToken and zero Expiry leave the stored values unchanged.
type TokenUpdate struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}
