package services

// Jellyfin REST payloads. Field names follow the server's PascalCase JSON.

type jellyfinNameID struct {
	Name string `json:"Name"`
	ID   string `json:"Id"`
}

type jellyfinItem struct {
	ID                   string            `json:"Id"`
	Name                 string            `json:"Name"`
	Type                 string            `json:"Type"`
	MediaType            string            `json:"MediaType"`
	RunTimeTicks         int64             `json:"RunTimeTicks"`
	ProductionYear       int               `json:"ProductionYear"`
	PremiereDate         string            `json:"PremiereDate"`
	Overview             string            `json:"Overview"`
	Album                string            `json:"Album"`
	AlbumID              string            `json:"AlbumId"`
	AlbumArtist          string            `json:"AlbumArtist"`
	AlbumArtists         []jellyfinNameID  `json:"AlbumArtists"`
	ArtistItems          []jellyfinNameID  `json:"ArtistItems"`
	AlbumPrimaryImageTag string            `json:"AlbumPrimaryImageTag"`
	ImageTags            map[string]string `json:"ImageTags"`
	IndexNumber          int               `json:"IndexNumber"`
	ParentIndexNumber    int               `json:"ParentIndexNumber"`
}

type jellyfinItemsResponse struct {
	Items            []jellyfinItem `json:"Items"`
	TotalRecordCount int            `json:"TotalRecordCount"`
	StartIndex       int            `json:"StartIndex"`
}

type jellyfinUser struct {
	ID       string `json:"Id"`
	Name     string `json:"Name"`
	ServerID string `json:"ServerId"`
}

type jellyfinSystemInfo struct {
	ServerName string `json:"ServerName"`
	Version    string `json:"Version"`
	ID         string `json:"Id"`
}

type jellyfinAuthResponse struct {
	User        jellyfinUser `json:"User"`
	AccessToken string       `json:"AccessToken"`
	ServerID    string       `json:"ServerId"`
}

const (
	jellyfinTypeAudio    = "Audio"
	jellyfinTypeAlbum    = "MusicAlbum"
	jellyfinTypeArtist   = "MusicArtist"
	jellyfinTypePlaylist = "Playlist"
)

// jellyfinFields asks for the fields the parser reads that are not returned by default.
const jellyfinFields = "PremiereDate,ProductionYear,Overview,AlbumArtists,ArtistItems,ChildCount"

// jellyfinContainers are the audio containers the universal endpoint may serve without transcoding.
const jellyfinContainers = "opus,webm|opus,mp3,aac,m4a|aac,m4b|aac,flac,webma,webm|webma,wav,ogg"
