package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eclypsed/lazuli/internal/models"
	"github.com/eclypsed/lazuli/internal/shared"
)

var testParser = ytParser{connectionID: "conn-yt"}

func listItemOf(t *testing.T, row obj) *ytListItem {
	t.Helper()
	return decode[ytShelfItem](t, row).MusicResponsiveListItemRenderer
}

func TestParseCredits(t *testing.T) {
	t.Run("artist runs are artists", func(t *testing.T) {
		c := parseCredits(decode[ytText](t, runs(
			run("Song", nil), run(" • ", nil),
			run("Artist A", browseNav("UCa", pageTypeArtist)), run(" & ", nil),
			run("Artist B", browseNav("UCb", pageTypeArtist)), run(" • ", nil),
			run("Album X", browseNav("MPREb_x", pageTypeAlbum)), run(" • ", nil),
			run("3:45", nil),
		)).Runs)

		assert.Equal(t, []models.ArtistRef{{ID: "UCa", Name: "Artist A"}, {ID: "UCb", Name: "Artist B"}}, c.artists)
		assert.Equal(t, &models.AlbumRef{ID: "MPREb_x", Name: "Album X"}, c.album)
		assert.Nil(t, c.uploader)
		assert.Equal(t, 225, c.duration)
	})

	t.Run("a channel run is the uploader", func(t *testing.T) {
		c := parseCredits(decode[ytText](t, runs(
			run("Video", nil), run(" • ", nil),
			run("Some Channel", browseNav("UCchan", pageTypeUserChannel)), run(" • ", nil),
			run("1.2M views", nil),
		)).Runs)

		assert.Nil(t, c.artists)
		assert.Equal(t, &models.ArtistRef{ID: "UCchan", Name: "Some Channel"}, c.uploader)
	})

	t.Run("a plain credit without any artist run is the uploader", func(t *testing.T) {
		c := parseCredits(decode[ytText](t, runs(run("Someone", nil), run(" • ", nil), run("2019", nil))).Runs)
		assert.Equal(t, &models.ArtistRef{Name: "Someone"}, c.uploader)
		assert.Equal(t, "2019", c.year)
	})

	t.Run("artists and uploader are never both set", func(t *testing.T) {
		c := parseCredits(decode[ytText](t, runs(
			run("Uploader", browseNav("UCu", pageTypeUserChannel)),
			run("Artist", browseNav("UCa", pageTypeArtist)),
		)).Runs)
		assert.Len(t, c.artists, 1)
		assert.Nil(t, c.uploader)
	})

	t.Run("various artists", func(t *testing.T) {
		c := parseCredits(decode[ytText](t, runs(run("Album", nil), run(" • ", nil), run("Various Artists", nil))).Runs)
		assert.True(t, c.various)
		assert.Nil(t, c.uploader)
	})
}

func TestYouTubeParser(t *testing.T) {
	t.Run("auto-generated release is a song, not a video", func(t *testing.T) {
		it := listItemOf(t, songRow("abcdefghijk", videoTypeATV, "Track", run("Artist", browseNav("UCa", pageTypeArtist))))
		song, ok := testParser.listSong(it)
		require.True(t, ok)

		assert.False(t, song.IsVideo)
		assert.Empty(t, song.Video)
		assert.Equal(t, "Track", song.Name)
		assert.Equal(t, models.AudioPath("conn-yt", "abcdefghijk"), song.Audio)
		assert.Equal(t, models.ServiceYouTubeMusic, song.ServiceType)
		assert.Len(t, song.Artists, 1)
		assert.Nil(t, song.Uploader)
	})

	t.Run("music video credited to a channel has an uploader", func(t *testing.T) {
		it := listItemOf(t, songRow("abcdefghijk", "MUSIC_VIDEO_TYPE_UGC", "Cover", run("Fan", browseNav("UCfan", pageTypeUserChannel))))
		song, ok := testParser.listSong(it)
		require.True(t, ok)

		assert.True(t, song.IsVideo)
		assert.Equal(t, models.WatchURL("abcdefghijk"), song.Video)
		assert.Nil(t, song.Artists)
		require.NotNil(t, song.Uploader)
		assert.Equal(t, "UCfan", song.Uploader.ID)
	})

	t.Run("untyped watch targets are not videos", func(t *testing.T) {
		it := listItemOf(t, songRow("abcdefghijk", "", "Track"))
		song, ok := testParser.listSong(it)
		require.True(t, ok)
		assert.False(t, song.IsVideo)
	})

	t.Run("duration comes from the fixed column", func(t *testing.T) {
		row := songRow("abcdefghijk", videoTypeATV, "Track")
		row["musicResponsiveListItemRenderer"].(obj)["fixedColumns"] = []obj{
			{"musicResponsiveListItemFixedColumnRenderer": obj{"text": runs(run("1:02:03", nil))}},
		}
		song, ok := testParser.listSong(listItemOf(t, row))
		require.True(t, ok)
		assert.Equal(t, 3723, song.Duration)
	})

	t.Run("thumbnail picks the largest candidate without scaling params", func(t *testing.T) {
		row := songRow("abcdefghijk", videoTypeATV, "Track")
		row["musicResponsiveListItemRenderer"].(obj)["thumbnail"] = obj{"musicThumbnailRenderer": obj{"thumbnail": obj{"thumbnails": []obj{
			{"url": "https://lh3.googleusercontent.com/abc=w60-h60-l90-rj", "width": 60, "height": 60},
			{"url": "https://lh3.googleusercontent.com/abc=w544-h544-l90-rj", "width": 544, "height": 544},
		}}}}
		song, _ := testParser.listSong(listItemOf(t, row))
		assert.Equal(t, "https://lh3.googleusercontent.com/abc", song.Thumbnail)
	})

	t.Run("missing thumbnail uses the placeholder", func(t *testing.T) {
		song, _ := testParser.listSong(listItemOf(t, songRow("abcdefghijk", videoTypeATV, "Track")))
		assert.Equal(t, shared.YouTubePlaceholder, song.Thumbnail)
	})

	t.Run("rows without a playback id are dropped from song listings", func(t *testing.T) {
		entries := decode[[]ytShelfItem](t, []obj{
			songRow("abcdefghijk", videoTypeATV, "Playable"),
			{"musicResponsiveListItemRenderer": obj{"flexColumns": []obj{flex(runs(run("Unavailable", nil)))}}},
			songRow("bcdefghijkl", videoTypeATV, "Also playable"),
		})
		songs := testParser.songs(entries)
		require.Len(t, songs, 2)
		assert.Equal(t, "abcdefghijk", songs[0].ID)
		assert.Equal(t, "bcdefghijkl", songs[1].ID)
		assert.Equal(t, 2, countPlayable(entries))
	})

	t.Run("browse rows map to their page type", func(t *testing.T) {
		entries := decode[[]ytShelfItem](t, []obj{
			browseRow("MPREb_1", pageTypeAlbum, "An Album", run("Album", nil), run(" • ", nil), run("Artist", browseNav("UCa", pageTypeArtist)), run(" • ", nil), run("2020", nil)),
			browseRow("UCa", pageTypeArtist, "An Artist"),
			browseRow("VLPL1", pageTypePlaylist, "A Playlist", run("Owner", browseNav("UCo", pageTypeUserChannel))),
			browseRow("FEmusic_x", "MUSIC_PAGE_TYPE_UNKNOWN", "Something else"),
		})
		items := testParser.entries(entries)
		require.Len(t, items, 3)

		album := items[0].(models.Album)
		assert.Equal(t, "2020", album.ReleaseDate)
		require.NotNil(t, album.Artists)
		assert.Equal(t, "UCa", album.Artists.List[0].ID)

		assert.Equal(t, models.KindArtist, items[1].Base().Kind)

		playlist := items[2].(models.Playlist)
		require.NotNil(t, playlist.CreatedBy)
		assert.Equal(t, "Owner", playlist.CreatedBy.Name)
	})

	t.Run("search flattens the top result and shelves without duplicates", func(t *testing.T) {
		resp := decode[ytResponse](t, obj{"contents": obj{"tabbedSearchResultsRenderer": obj{"tabs": []obj{
			{"tabRenderer": obj{"content": obj{"sectionListRenderer": obj{"contents": []obj{
				{"musicCardShelfRenderer": obj{
					"title":    runs(run("An Artist", browseNav("UCa", pageTypeArtist))),
					"subtitle": runs(run("Artist", nil)),
				}},
				{"musicShelfRenderer": obj{"contents": []obj{
					browseRow("UCa", pageTypeArtist, "An Artist"),
					songRow("abcdefghijk", videoTypeATV, "Hit", run("Song", nil), run(" • ", nil), run("An Artist", browseNav("UCa", pageTypeArtist))),
				}}},
			}}}}},
		}}}})

		items, err := testParser.searchResults(&resp, "search")
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, models.KindArtist, items[0].Base().Kind)
		assert.Equal(t, models.KindSong, items[1].Base().Kind)
	})

	t.Run("search without results renderer is a shape error", func(t *testing.T) {
		_, err := testParser.searchResults(&ytResponse{}, "search")
		assert.ErrorIs(t, err, shared.ErrUnexpectedShape)
		assert.ErrorIs(t, err, shared.ErrUpstream)
	})
}

func albumResponse(strapline obj, tracks ...obj) obj {
	header := obj{"musicResponsiveHeaderRenderer": obj{
		"title":            runs(run("Compilation", nil)),
		"subtitle":         runs(run("Album", nil), run(" • ", nil), run("2001", nil)),
		"secondSubtitle":   runs(run("12 songs", nil), run(" • ", nil), run("48 minutes", nil)),
		"straplineTextOne": strapline,
		"thumbnail":        thumbnail("https://lh3.googleusercontent.com/cover=w226-h226", 226),
	}}
	return twoColumn([]obj{header}, []obj{{"musicShelfRenderer": obj{"contents": tracks}}})
}

func TestYouTubeAlbumPage(t *testing.T) {
	t.Run("compilation uses the sentinel and tracks keep their own credits", func(t *testing.T) {
		resp := decode[ytResponse](t, albumResponse(
			runs(run("Various Artists", nil)),
			songRow("abcdefghijk", videoTypeATV, "One", run("Artist A", browseNav("UCa", pageTypeArtist))),
			songRow("bcdefghijkl", videoTypeATV, "Two"),
		))

		album, err := testParser.albumPage("MPREb_comp", &resp, "browse")
		require.NoError(t, err)
		assert.Equal(t, "Compilation", album.Name)
		assert.Equal(t, "2001", album.ReleaseDate)
		assert.Equal(t, 48*60, album.Duration)
		assert.Equal(t, "https://lh3.googleusercontent.com/cover", album.Thumbnail)
		require.NotNil(t, album.Artists)
		assert.True(t, album.Artists.Various)

		entries := trackShelf(&resp).entries()
		songs := testParser.albumTracks(album, entries)
		require.Len(t, songs, 2)

		assert.Equal(t, "UCa", songs[0].Artists[0].ID)
		require.NotNil(t, songs[0].Album)
		assert.Equal(t, "MPREb_comp", songs[0].Album.ID)
		assert.Nil(t, songs[1].Artists, "tracks never inherit the various artists sentinel")
		assert.Equal(t, album.Thumbnail, songs[1].Thumbnail)
		assert.Equal(t, "2001", songs[1].ReleaseDate)
	})

	t.Run("single-artist album credits uncredited tracks", func(t *testing.T) {
		resp := decode[ytResponse](t, albumResponse(
			runs(run("Artist A", browseNav("UCa", pageTypeArtist))),
			songRow("abcdefghijk", videoTypeATV, "One", run("1.5M plays", nil)),
		))

		album, err := testParser.albumPage("MPREb_a", &resp, "browse")
		require.NoError(t, err)
		songs := testParser.albumTracks(album, trackShelf(&resp).entries())
		require.Len(t, songs, 1)
		assert.Equal(t, []models.ArtistRef{{ID: "UCa", Name: "Artist A"}}, songs[0].Artists)
		assert.Nil(t, songs[0].Uploader)
		assert.Equal(t, []models.ArtistRef{{ID: "UCa", Name: "Artist A"}}, songs[0].Album.Artists)
	})

	t.Run("a track's own album reference wins", func(t *testing.T) {
		resp := decode[ytResponse](t, albumResponse(
			runs(run("Artist A", browseNav("UCa", pageTypeArtist))),
			songRow("abcdefghijk", videoTypeATV, "One", run("Original", browseNav("MPREb_orig", pageTypeAlbum))),
		))
		album, err := testParser.albumPage("MPREb_deluxe", &resp, "browse")
		require.NoError(t, err)
		songs := testParser.albumTracks(album, trackShelf(&resp).entries())
		assert.Equal(t, "MPREb_orig", songs[0].Album.ID)
	})

	t.Run("missing header is a shape error", func(t *testing.T) {
		resp := decode[ytResponse](t, twoColumn(nil, nil))
		_, err := testParser.albumPage("MPREb_a", &resp, "browse")
		assert.ErrorIs(t, err, shared.ErrUnexpectedShape)
	})
}

func TestYouTubePlaylistPage(t *testing.T) {
	header := obj{"musicResponsiveHeaderRenderer": obj{
		"title":              runs(run("Road Trip", nil)),
		"secondSubtitle":     runs(run("120 songs", nil), run(" • ", nil), run("6+ hours", nil)),
		"straplineTextOne":   runs(run("Owner", browseNav("UCowner", pageTypeUserChannel))),
		"straplineThumbnail": thumbnail("https://yt3.ggpht.com/owner=s88-c-k", 88),
		"description":        obj{"musicDescriptionShelfRenderer": obj{"description": runs(run("Songs for driving", nil))}},
	}}
	resp := decode[ytResponse](t, twoColumn([]obj{header}, nil))

	playlist, err := testParser.playlistPage("VLPL123", &resp, "browse")
	require.NoError(t, err)
	assert.Equal(t, "VLPL123", playlist.ID)
	assert.Equal(t, "Road Trip", playlist.Name)
	assert.Equal(t, 6*3600, playlist.Duration)
	assert.Equal(t, "Songs for driving", playlist.Description)
	require.NotNil(t, playlist.CreatedBy)
	assert.Equal(t, models.Creator{ID: "UCowner", Name: "Owner", ProfilePicture: "https://yt3.ggpht.com/owner"}, *playlist.CreatedBy)
}

func TestContinuationPage(t *testing.T) {
	t.Run("legacy continuation contents", func(t *testing.T) {
		resp := decode[ytResponse](t, obj{"continuationContents": obj{"musicPlaylistShelfContinuation": obj{
			"contents":      []obj{songRow("abcdefghijk", videoTypeATV, "A")},
			"continuations": []obj{{"nextContinuationData": obj{"continuation": "next-1"}}},
		}}})
		entries, token, err := continuationPage(&resp, "browse")
		require.NoError(t, err)
		assert.Len(t, entries, 1)
		assert.Equal(t, "next-1", token)
	})

	t.Run("appended items with a trailing continuation", func(t *testing.T) {
		resp := decode[ytResponse](t, obj{"onResponseReceivedActions": []obj{{"appendContinuationItemsAction": obj{
			"continuationItems": []obj{songRow("abcdefghijk", videoTypeATV, "A"), continuationItem("next-2")},
		}}}})
		entries, token, err := continuationPage(&resp, "browse")
		require.NoError(t, err)
		assert.Len(t, entries, 1)
		assert.Equal(t, "next-2", token)
	})

	t.Run("last page has no token", func(t *testing.T) {
		resp := decode[ytResponse](t, obj{"continuationContents": obj{"gridContinuation": obj{"items": []obj{card("MPREb_1", pageTypeAlbum, "A")}}}})
		entries, token, err := continuationPage(&resp, "browse")
		require.NoError(t, err)
		assert.Len(t, entries, 1)
		assert.Empty(t, token)
	})

	t.Run("unknown shape", func(t *testing.T) {
		_, _, err := continuationPage(&ytResponse{}, "browse")
		assert.ErrorIs(t, err, shared.ErrUnexpectedShape)
	})
}
