package services

import (
	"strings"

	"github.com/eclypsed/lazuli/internal/shared"
)

// Typed views of the YouTube Music internal API. Every level is optional: the parser checks each
// boundary it crosses and reports a shape error instead of assuming presence.

const (
	pageTypeAlbum       = "MUSIC_PAGE_TYPE_ALBUM"
	pageTypeArtist      = "MUSIC_PAGE_TYPE_ARTIST"
	pageTypePlaylist    = "MUSIC_PAGE_TYPE_PLAYLIST"
	pageTypeUserChannel = "MUSIC_PAGE_TYPE_USER_CHANNEL"

	// videoTypeATV marks an auto-generated release: the audio track of a song, not a music video.
	videoTypeATV = "MUSIC_VIDEO_TYPE_ATV"
)

type ytText struct {
	Runs []ytRun `json:"runs"`
}

func (t ytText) String() string {
	var b strings.Builder
	for _, r := range t.Runs {
		b.WriteString(r.Text)
	}
	return b.String()
}

type ytRun struct {
	Text               string                `json:"text"`
	NavigationEndpoint *ytNavigationEndpoint `json:"navigationEndpoint"`
}

// browse returns the run's browse target, if any.
func (r ytRun) browse() *ytBrowseEndpoint {
	if r.NavigationEndpoint == nil {
		return nil
	}
	return r.NavigationEndpoint.BrowseEndpoint
}

type ytNavigationEndpoint struct {
	BrowseEndpoint *ytBrowseEndpoint `json:"browseEndpoint"`
	WatchEndpoint  *ytWatchEndpoint  `json:"watchEndpoint"`
}

type ytBrowseEndpoint struct {
	BrowseID                              string `json:"browseId"`
	BrowseEndpointContextSupportedConfigs struct {
		BrowseEndpointContextMusicConfig struct {
			PageType string `json:"pageType"`
		} `json:"browseEndpointContextMusicConfig"`
	} `json:"browseEndpointContextSupportedConfigs"`
}

func (b *ytBrowseEndpoint) pageType() string {
	if b == nil {
		return ""
	}
	return b.BrowseEndpointContextSupportedConfigs.BrowseEndpointContextMusicConfig.PageType
}

type ytWatchEndpoint struct {
	VideoID                            string `json:"videoId"`
	PlaylistID                         string `json:"playlistId"`
	WatchEndpointMusicSupportedConfigs struct {
		WatchEndpointMusicConfig struct {
			MusicVideoType string `json:"musicVideoType"`
		} `json:"watchEndpointMusicConfig"`
	} `json:"watchEndpointMusicSupportedConfigs"`
}

func (w *ytWatchEndpoint) videoType() string {
	if w == nil {
		return ""
	}
	return w.WatchEndpointMusicSupportedConfigs.WatchEndpointMusicConfig.MusicVideoType
}

type ytThumbnailRenderer struct {
	MusicThumbnailRenderer *struct {
		Thumbnail struct {
			Thumbnails []shared.Thumbnail `json:"thumbnails"`
		} `json:"thumbnail"`
	} `json:"musicThumbnailRenderer"`
}

func (t ytThumbnailRenderer) candidates() []shared.Thumbnail {
	if t.MusicThumbnailRenderer == nil {
		return nil
	}
	return t.MusicThumbnailRenderer.Thumbnail.Thumbnails
}

type ytFlexColumn struct {
	MusicResponsiveListItemFlexColumnRenderer struct {
		Text ytText `json:"text"`
	} `json:"musicResponsiveListItemFlexColumnRenderer"`
}

type ytFixedColumn struct {
	MusicResponsiveListItemFixedColumnRenderer struct {
		Text ytText `json:"text"`
	} `json:"musicResponsiveListItemFixedColumnRenderer"`
}

type ytPlayOverlay struct {
	MusicItemThumbnailOverlayRenderer struct {
		Content struct {
			MusicPlayButtonRenderer struct {
				PlayNavigationEndpoint *ytNavigationEndpoint `json:"playNavigationEndpoint"`
			} `json:"musicPlayButtonRenderer"`
		} `json:"content"`
	} `json:"musicItemThumbnailOverlayRenderer"`
}

// ytListItem is a musicResponsiveListItemRenderer: one row of a shelf.
type ytListItem struct {
	FlexColumns        []ytFlexColumn        `json:"flexColumns"`
	FixedColumns       []ytFixedColumn       `json:"fixedColumns"`
	Thumbnail          ytThumbnailRenderer   `json:"thumbnail"`
	NavigationEndpoint *ytNavigationEndpoint `json:"navigationEndpoint"`
	PlaylistItemData   *struct {
		VideoID string `json:"videoId"`
	} `json:"playlistItemData"`
	Overlay *ytPlayOverlay `json:"overlay"`
}

func (i ytListItem) column(n int) ytText {
	if n >= len(i.FlexColumns) {
		return ytText{}
	}
	return i.FlexColumns[n].MusicResponsiveListItemFlexColumnRenderer.Text
}

// watch returns the playback target of the row, from the play button or the title run.
func (i ytListItem) watch() *ytWatchEndpoint {
	if i.Overlay != nil {
		if nav := i.Overlay.MusicItemThumbnailOverlayRenderer.Content.MusicPlayButtonRenderer.PlayNavigationEndpoint; nav != nil && nav.WatchEndpoint != nil {
			return nav.WatchEndpoint
		}
	}
	for _, r := range i.column(0).Runs {
		if r.NavigationEndpoint != nil && r.NavigationEndpoint.WatchEndpoint != nil {
			return r.NavigationEndpoint.WatchEndpoint
		}
	}
	return nil
}

// videoID returns the playback id of the row, or "" when it cannot be played.
func (i ytListItem) videoID() string {
	if i.PlaylistItemData != nil && i.PlaylistItemData.VideoID != "" {
		return i.PlaylistItemData.VideoID
	}
	if w := i.watch(); w != nil {
		return w.VideoID
	}
	return ""
}

// ytTwoRowItem is a musicTwoRowItemRenderer: a card in a grid or carousel.
type ytTwoRowItem struct {
	Title              ytText                `json:"title"`
	Subtitle           ytText                `json:"subtitle"`
	ThumbnailRenderer  ytThumbnailRenderer   `json:"thumbnailRenderer"`
	NavigationEndpoint *ytNavigationEndpoint `json:"navigationEndpoint"`
}

type ytContinuationItem struct {
	ContinuationEndpoint struct {
		ContinuationCommand struct {
			Token string `json:"token"`
		} `json:"continuationCommand"`
	} `json:"continuationEndpoint"`
}

type ytShelfItem struct {
	MusicResponsiveListItemRenderer *ytListItem         `json:"musicResponsiveListItemRenderer"`
	MusicTwoRowItemRenderer         *ytTwoRowItem       `json:"musicTwoRowItemRenderer"`
	ContinuationItemRenderer        *ytContinuationItem `json:"continuationItemRenderer"`
}

type ytNextContinuation struct {
	NextContinuationData *struct {
		Continuation string `json:"continuation"`
	} `json:"nextContinuationData"`
}

func legacyToken(conts []ytNextContinuation) string {
	for _, c := range conts {
		if c.NextContinuationData != nil && c.NextContinuationData.Continuation != "" {
			return c.NextContinuationData.Continuation
		}
	}
	return ""
}

// ytShelf covers musicShelfRenderer, musicPlaylistShelfRenderer, gridRenderer and musicCarouselShelfRenderer.
// Grids list their entries under "items", the rest under "contents".
type ytShelf struct {
	Title         ytText               `json:"title"`
	Contents      []ytShelfItem        `json:"contents"`
	Items         []ytShelfItem        `json:"items"`
	Continuations []ytNextContinuation `json:"continuations"`
}

func (s *ytShelf) entries() []ytShelfItem {
	if len(s.Items) > 0 {
		return s.Items
	}
	return s.Contents
}

// ytCardShelf is the "top result" card of a search.
type ytCardShelf struct {
	Title     ytText              `json:"title"`
	Subtitle  ytText              `json:"subtitle"`
	Thumbnail ytThumbnailRenderer `json:"thumbnail"`
	Contents  []ytShelfItem       `json:"contents"`
}

// ytResponsiveHeader is the header of an album or playlist page.
type ytResponsiveHeader struct {
	Title              ytText              `json:"title"`
	Subtitle           ytText              `json:"subtitle"`
	SecondSubtitle     ytText              `json:"secondSubtitle"`
	StraplineTextOne   ytText              `json:"straplineTextOne"`
	StraplineThumbnail ytThumbnailRenderer `json:"straplineThumbnail"`
	Thumbnail          ytThumbnailRenderer `json:"thumbnail"`
	Description        *struct {
		MusicDescriptionShelfRenderer struct {
			Description ytText `json:"description"`
		} `json:"musicDescriptionShelfRenderer"`
	} `json:"description"`
}

type ytSection struct {
	MusicShelfRenderer                        *ytShelf            `json:"musicShelfRenderer"`
	MusicPlaylistShelfRenderer                *ytShelf            `json:"musicPlaylistShelfRenderer"`
	GridRenderer                              *ytShelf            `json:"gridRenderer"`
	MusicCarouselShelfRenderer                *ytShelf            `json:"musicCarouselShelfRenderer"`
	MusicCardShelfRenderer                    *ytCardShelf        `json:"musicCardShelfRenderer"`
	MusicResponsiveHeaderRenderer             *ytResponsiveHeader `json:"musicResponsiveHeaderRenderer"`
	MusicEditablePlaylistDetailHeaderRenderer *struct {
		Header struct {
			MusicResponsiveHeaderRenderer *ytResponsiveHeader `json:"musicResponsiveHeaderRenderer"`
		} `json:"header"`
	} `json:"musicEditablePlaylistDetailHeaderRenderer"`
	ItemSectionRenderer *struct {
		Contents []ytSection `json:"contents"`
	} `json:"itemSectionRenderer"`
}

// shelf returns the first list-like renderer of the section, looking inside item sections.
func (s ytSection) shelf() *ytShelf {
	for _, sh := range []*ytShelf{s.MusicShelfRenderer, s.MusicPlaylistShelfRenderer, s.GridRenderer, s.MusicCarouselShelfRenderer} {
		if sh != nil {
			return sh
		}
	}
	if s.ItemSectionRenderer != nil {
		for _, inner := range s.ItemSectionRenderer.Contents {
			if sh := inner.shelf(); sh != nil {
				return sh
			}
		}
	}
	return nil
}

func (s ytSection) header() *ytResponsiveHeader {
	if s.MusicResponsiveHeaderRenderer != nil {
		return s.MusicResponsiveHeaderRenderer
	}
	if s.MusicEditablePlaylistDetailHeaderRenderer != nil {
		return s.MusicEditablePlaylistDetailHeaderRenderer.Header.MusicResponsiveHeaderRenderer
	}
	return nil
}

type ytSectionList struct {
	SectionListRenderer *struct {
		Contents      []ytSection          `json:"contents"`
		Continuations []ytNextContinuation `json:"continuations"`
	} `json:"sectionListRenderer"`
}

func (l ytSectionList) sections() []ytSection {
	if l.SectionListRenderer == nil {
		return nil
	}
	return l.SectionListRenderer.Contents
}

type ytTab struct {
	TabRenderer struct {
		Content ytSectionList `json:"content"`
	} `json:"tabRenderer"`
}

func firstTab(tabs []ytTab) []ytSection {
	if len(tabs) == 0 {
		return nil
	}
	return tabs[0].TabRenderer.Content.sections()
}

// ytResponse is the envelope of browse and search responses, including continuation pages.
type ytResponse struct {
	Contents *struct {
		SingleColumnBrowseResultsRenderer *struct {
			Tabs []ytTab `json:"tabs"`
		} `json:"singleColumnBrowseResultsRenderer"`
		TwoColumnBrowseResultsRenderer *struct {
			Tabs              []ytTab       `json:"tabs"`
			SecondaryContents ytSectionList `json:"secondaryContents"`
		} `json:"twoColumnBrowseResultsRenderer"`
		TabbedSearchResultsRenderer *struct {
			Tabs []ytTab `json:"tabs"`
		} `json:"tabbedSearchResultsRenderer"`
	} `json:"contents"`

	ContinuationContents *struct {
		MusicShelfContinuation         *ytShelf `json:"musicShelfContinuation"`
		MusicPlaylistShelfContinuation *ytShelf `json:"musicPlaylistShelfContinuation"`
		GridContinuation               *ytShelf `json:"gridContinuation"`
	} `json:"continuationContents"`

	OnResponseReceivedActions []struct {
		AppendContinuationItemsAction *struct {
			ContinuationItems []ytShelfItem `json:"continuationItems"`
		} `json:"appendContinuationItemsAction"`
	} `json:"onResponseReceivedActions"`
}

// primarySections returns the main column of a browse or search page.
func (r *ytResponse) primarySections() []ytSection {
	if r.Contents == nil {
		return nil
	}
	switch c := r.Contents; {
	case c.TabbedSearchResultsRenderer != nil:
		return firstTab(c.TabbedSearchResultsRenderer.Tabs)
	case c.SingleColumnBrowseResultsRenderer != nil:
		return firstTab(c.SingleColumnBrowseResultsRenderer.Tabs)
	case c.TwoColumnBrowseResultsRenderer != nil:
		return firstTab(c.TwoColumnBrowseResultsRenderer.Tabs)
	}
	return nil
}

// secondarySections returns the track column of a two-column album or playlist page.
func (r *ytResponse) secondarySections() []ytSection {
	if r.Contents == nil || r.Contents.TwoColumnBrowseResultsRenderer == nil {
		return nil
	}
	return r.Contents.TwoColumnBrowseResultsRenderer.SecondaryContents.sections()
}

// ytErrorPayload is the body of a failed internal API call.
type ytErrorPayload struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Player and Data API payloads.

type ytPlayerResponse struct {
	PlayabilityStatus struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	StreamingData *struct {
		AdaptiveFormats []ytFormat `json:"adaptiveFormats"`
	} `json:"streamingData"`
}

type ytFormat struct {
	Itag          int    `json:"itag"`
	URL           string `json:"url"`
	MimeType      string `json:"mimeType"`
	Bitrate       int    `json:"bitrate"`
	ContentLength string `json:"contentLength"`
}

type ytDataThumbnails map[string]shared.Thumbnail

func (t ytDataThumbnails) candidates() []shared.Thumbnail {
	out := make([]shared.Thumbnail, 0, len(t))
	for _, th := range t {
		out = append(out, th)
	}
	return out
}

type ytVideo struct {
	ID      string `json:"id"`
	Snippet struct {
		Title        string           `json:"title"`
		ChannelID    string           `json:"channelId"`
		ChannelTitle string           `json:"channelTitle"`
		PublishedAt  string           `json:"publishedAt"`
		Thumbnails   ytDataThumbnails `json:"thumbnails"`
	} `json:"snippet"`
	ContentDetails struct {
		Duration string `json:"duration"`
	} `json:"contentDetails"`
}

type ytVideoListResponse struct {
	Items []ytVideo `json:"items"`
}

type ytChannel struct {
	ID      string `json:"id"`
	Snippet struct {
		Title      string           `json:"title"`
		CustomURL  string           `json:"customUrl"`
		Thumbnails ytDataThumbnails `json:"thumbnails"`
	} `json:"snippet"`
}

type ytChannelListResponse struct {
	Items []ytChannel `json:"items"`
}
