package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eclypsed/lazuli/internal/models"
	"github.com/eclypsed/lazuli/internal/shared"
)

// ytFake stands in for the music, player, Data API and token endpoints.
type ytFake struct {
	t      *testing.T
	server *httptest.Server
	store  *memoryStore

	mu            sync.Mutex
	validToken    string
	browse        map[string]obj
	continuations map[string]obj
	search        obj
	player        map[string]obj
	videos        map[string]obj
	channelStatus int
	rejectRefresh bool

	requests   atomic.Int32
	tokenCalls atomic.Int32
	nextCalls  atomic.Int32
	dataCalls  atomic.Int32
	lastSearch obj
}

func newYTFake(t *testing.T) *ytFake {
	t.Helper()
	f := &ytFake{
		t:             t,
		validToken:    "stored-token",
		browse:        map[string]obj{},
		continuations: map[string]obj{},
		player:        map[string]obj{},
		videos:        map[string]obj{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", f.handleToken)
	mux.HandleFunc("POST /music/browse", f.authorized(f.handleBrowse))
	mux.HandleFunc("POST /music/search", f.authorized(f.handleSearch))
	mux.HandleFunc("POST /player/player", f.handlePlayer)
	mux.HandleFunc("GET /data/videos", f.authorized(f.handleVideos))
	mux.HandleFunc("GET /data/channels", f.authorized(f.handleChannels))
	mux.HandleFunc("GET /audio/{name}", f.handleAudio)

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *ytFake) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		want := "Bearer " + f.validToken
		f.mu.Unlock()
		if r.Header.Get("Authorization") != want {
			w.WriteHeader(http.StatusUnauthorized)
			writeJSON(f.t, w, obj{"error": obj{"code": 401, "status": "UNAUTHENTICATED"}})
			return
		}
		next(w, r)
	}
}

func (f *ytFake) body(r *http.Request) obj {
	var body obj
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		f.t.Errorf("decode request body: %v", err)
	}
	return body
}

func (f *ytFake) handleToken(w http.ResponseWriter, r *http.Request) {
	f.tokenCalls.Add(1)
	assert.Equal(f.t, "refresh", r.FormValue("refresh_token"))
	if f.rejectRefresh {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"invalid_grant","error_description":"Token has been expired or revoked."}`)
		return
	}
	writeJSON(f.t, w, obj{"access_token": "fresh-token", "token_type": "Bearer", "expires_in": 3600})
}

func (f *ytFake) handleBrowse(w http.ResponseWriter, r *http.Request) {
	body := f.body(r)
	f.mu.Lock()
	defer f.mu.Unlock()

	if token, _ := body["continuation"].(string); token != "" {
		f.nextCalls.Add(1)
		assert.Equal(f.t, token, r.URL.Query().Get("ctoken"))
		if resp, ok := f.continuations[token]; ok {
			writeJSON(f.t, w, resp)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		writeJSON(f.t, w, obj{"error": obj{"code": 400, "status": "FAILED_PRECONDITION"}})
		return
	}

	id, _ := body["browseId"].(string)
	if resp, ok := f.browse[id]; ok {
		writeJSON(f.t, w, resp)
		return
	}
	w.WriteHeader(http.StatusNotFound)
	writeJSON(f.t, w, obj{"error": obj{"code": 404, "status": "NOT_FOUND", "message": "Requested entity was not found."}})
}

func (f *ytFake) handleSearch(w http.ResponseWriter, r *http.Request) {
	body := f.body(r)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSearch = body
	writeJSON(f.t, w, f.search)
}

func (f *ytFake) handlePlayer(w http.ResponseWriter, r *http.Request) {
	body := f.body(r)
	assert.Empty(f.t, r.Header.Get("Authorization"))
	f.mu.Lock()
	defer f.mu.Unlock()
	id, _ := body["videoId"].(string)
	if resp, ok := f.player[id]; ok {
		writeJSON(f.t, w, resp)
		return
	}
	writeJSON(f.t, w, obj{"playabilityStatus": obj{"status": "ERROR", "reason": "Video unavailable"}})
}

func (f *ytFake) handleVideos(w http.ResponseWriter, r *http.Request) {
	f.dataCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	items := []obj{}
	for _, id := range strings.Split(r.URL.Query().Get("id"), ",") {
		if v, ok := f.videos[id]; ok {
			items = append(items, v)
		}
	}
	writeJSON(f.t, w, obj{"items": items})
}

func (f *ytFake) handleChannels(w http.ResponseWriter, r *http.Request) {
	assert.Equal(f.t, "true", r.URL.Query().Get("mine"))
	if f.channelStatus != 0 {
		w.WriteHeader(f.channelStatus)
		return
	}
	writeJSON(f.t, w, obj{"items": []obj{{
		"id": "UCme",
		"snippet": obj{
			"title":      "Me",
			"thumbnails": obj{"default": obj{"url": "https://yt3.ggpht.com/me=s88", "width": 88, "height": 88}},
		},
	}}})
}

func (f *ytFake) handleAudio(w http.ResponseWriter, r *http.Request) {
	if r.PathValue("name") != "hi" {
		http.Error(w, "wrong format", http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "audio/webm")
	w.Header().Set("Accept-Ranges", "bytes")
	if r.Header.Get("Range") == "bytes=9-" {
		w.Header().Set("Content-Range", "bytes */6")
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}
	if r.Header.Get("Range") == "bytes=2-" {
		w.Header().Set("Content-Range", "bytes 2-5/6")
		w.WriteHeader(http.StatusPartialContent)
		_, _ = io.WriteString(w, "dio!")
		return
	}
	_, _ = io.WriteString(w, "audio!")
}

// connect builds a connection through a registry pointed at the fake.
func (f *ytFake) connect(t *testing.T, rec *models.ConnectionRecord) *YouTubeMusic {
	t.Helper()
	if rec == nil {
		rec = &models.ConnectionRecord{
			ID:           "conn-yt",
			UserID:       "user-1",
			Type:         models.ServiceYouTubeMusic,
			AccessToken:  "stored-token",
			RefreshToken: "refresh",
			Expiry:       time.Now().Add(time.Hour),
		}
	}
	f.store = newMemoryStore(rec)

	policy := DefaultRefreshPolicy()
	policy.Backoff = time.Millisecond
	registry := NewRegistry(f.store, RegistryOptions{
		Client:  f.server.Client(),
		YouTube: shared.YouTubeConfig{ClientID: "client", ClientSecret: "secret", TokenURL: f.server.URL + "/token"},
		Endpoints: YouTubeEndpoints{
			Music:  f.server.URL + "/music",
			Player: f.server.URL + "/player",
			Data:   f.server.URL + "/data",
		},
		RefreshPolicy: &policy,
	})

	conn, err := registry.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	yt, ok := conn.(*YouTubeMusic)
	require.True(t, ok)
	return yt
}

func playlistPageFixture(f *ytFake) {
	header := obj{"musicResponsiveHeaderRenderer": obj{"title": runs(run("Mix", nil))}}
	f.browse["VLPL1"] = twoColumn([]obj{header}, []obj{{"musicPlaylistShelfRenderer": obj{"contents": []obj{
		songRow("aaaaaaaaaa1", videoTypeATV, "One"),
		songRow("aaaaaaaaaa2", videoTypeATV, "Two"),
		continuationItem("page-2"),
	}}}})
	f.continuations["page-2"] = obj{"onResponseReceivedActions": []obj{{"appendContinuationItemsAction": obj{
		"continuationItems": []obj{
			songRow("aaaaaaaaaa3", videoTypeATV, "Three"),
			{"musicResponsiveListItemRenderer": obj{"flexColumns": []obj{flex(runs(run("Deleted video", nil)))}}},
			songRow("aaaaaaaaaa4", videoTypeATV, "Four"),
			continuationItem("page-3"),
		},
	}}}}
	f.continuations["page-3"] = obj{"continuationContents": obj{"musicPlaylistShelfContinuation": obj{
		"contents": []obj{songRow("aaaaaaaaaa5", videoTypeATV, "Five")},
	}}}
}

func songIDs(songs []models.Song) []string {
	ids := make([]string, len(songs))
	for i, s := range songs {
		ids[i] = s.ID
	}
	return ids
}

func TestYouTubeMusic(t *testing.T) {
	ctx := context.Background()

	t.Run("NewYouTubeMusic requires a refresh token", func(t *testing.T) {
		_, err := NewYouTubeMusic(&models.ConnectionRecord{ID: "x"}, nil, &Refresher{}, nil, YouTubeEndpoints{}, nil)
		assert.ErrorIs(t, err, shared.ErrMissingCredentials)
	})

	t.Run("GetPlaylistItems", func(t *testing.T) {
		t.Run("walks every continuation page in sequence", func(t *testing.T) {
			f := newYTFake(t)
			playlistPageFixture(f)
			conn := f.connect(t, nil)

			songs, err := conn.GetPlaylistItems(ctx, "PL1", models.Window{})
			require.NoError(t, err)
			assert.Equal(t, []string{"aaaaaaaaaa1", "aaaaaaaaaa2", "aaaaaaaaaa3", "aaaaaaaaaa4", "aaaaaaaaaa5"}, songIDs(songs))
			assert.EqualValues(t, 2, f.nextCalls.Load())
		})

		t.Run("stops once the window is covered", func(t *testing.T) {
			f := newYTFake(t)
			playlistPageFixture(f)
			conn := f.connect(t, nil)

			songs, err := conn.GetPlaylistItems(ctx, "VLPL1", models.Window{Limit: 2})
			require.NoError(t, err)
			assert.Equal(t, []string{"aaaaaaaaaa1", "aaaaaaaaaa2"}, songIDs(songs))
			assert.Zero(t, f.nextCalls.Load())

			songs, err = conn.GetPlaylistItems(ctx, "VLPL1", models.Window{StartIndex: 1, Limit: 2})
			require.NoError(t, err)
			assert.Equal(t, []string{"aaaaaaaaaa2", "aaaaaaaaaa3"}, songIDs(songs))
			assert.EqualValues(t, 1, f.nextCalls.Load())
		})

		t.Run("a failed follow-up fails the call", func(t *testing.T) {
			f := newYTFake(t)
			playlistPageFixture(f)
			delete(f.continuations, "page-3")
			conn := f.connect(t, nil)

			_, err := conn.GetPlaylistItems(ctx, "VLPL1", models.Window{})
			assert.ErrorIs(t, err, shared.ErrUpstream)
		})

		t.Run("unknown playlist is an invalid id", func(t *testing.T) {
			f := newYTFake(t)
			conn := f.connect(t, nil)
			_, err := conn.GetPlaylistItems(ctx, "PLmissing", models.Window{})
			assert.ErrorIs(t, err, shared.ErrInvalidID)
		})

		t.Run("malformed id fails before any request", func(t *testing.T) {
			f := newYTFake(t)
			conn := f.connect(t, nil)
			_, err := conn.GetPlaylistItems(ctx, "PL 1/../x", models.Window{})
			assert.ErrorIs(t, err, shared.ErrInvalidID)
			assert.Zero(t, f.requests.Load())
		})
	})

	t.Run("GetAlbum", func(t *testing.T) {
		t.Run("rejects ids that are not album browse ids", func(t *testing.T) {
			f := newYTFake(t)
			conn := f.connect(t, nil)
			_, err := conn.GetAlbum(ctx, "OLAK5uy_abc")
			assert.ErrorIs(t, err, shared.ErrInvalidID)
			assert.Zero(t, f.requests.Load())
		})

		t.Run("album items are linked to the album", func(t *testing.T) {
			f := newYTFake(t)
			f.browse["MPREb_1"] = albumResponse(
				runs(run("Artist A", browseNav("UCa", pageTypeArtist))),
				songRow("aaaaaaaaaa1", videoTypeATV, "One"),
			)
			conn := f.connect(t, nil)

			album, err := conn.GetAlbum(ctx, "MPREb_1")
			require.NoError(t, err)
			assert.Equal(t, "MPREb_1", album.ID)

			songs, err := conn.GetAlbumItems(ctx, "MPREb_1")
			require.NoError(t, err)
			require.Len(t, songs, 1)
			assert.Equal(t, "MPREb_1", songs[0].Album.ID)
			assert.Equal(t, "Artist A", songs[0].Artists[0].Name)
		})
	})

	t.Run("Library", func(t *testing.T) {
		f := newYTFake(t)
		f.browse[ytLikedPlaylistsID] = singleColumn(obj{"gridRenderer": obj{"items": []obj{
			card("", "", "New playlist"),
			card("VLPL1", pageTypePlaylist, "Mine", run("Me", nil)),
			continuationItem("grid-2"),
		}}})
		f.continuations["grid-2"] = obj{"continuationContents": obj{"gridContinuation": obj{"items": []obj{
			card("VLPL2", pageTypePlaylist, "Liked", run("Someone", browseNav("UCs", pageTypeUserChannel))),
		}}}}
		f.browse[ytLikedAlbumsID] = singleColumn(obj{"gridRenderer": obj{"items": []obj{
			card("MPREb_1", pageTypeAlbum, "Album", run("Album", nil), run(" • ", nil), run("Artist", browseNav("UCa", pageTypeArtist))),
		}}})
		f.browse[ytLibraryArtistsID] = singleColumn(obj{"itemSectionRenderer": obj{"contents": []obj{
			{"musicShelfRenderer": obj{"contents": []obj{browseRow("UCa", pageTypeArtist, "Artist", run("12 songs", nil))}}},
		}}})
		conn := f.connect(t, nil)

		t.Run("playlists drain the grid and skip cards without a target", func(t *testing.T) {
			playlists, err := conn.Library().Playlists(ctx)
			require.NoError(t, err)
			require.Len(t, playlists, 2)
			assert.Equal(t, "VLPL1", playlists[0].ID)
			assert.Equal(t, "VLPL2", playlists[1].ID)
			assert.Equal(t, "UCs", playlists[1].CreatedBy.ID)
			assert.EqualValues(t, 1, f.nextCalls.Load())
		})

		t.Run("albums", func(t *testing.T) {
			albums, err := conn.Library().Albums(ctx)
			require.NoError(t, err)
			require.Len(t, albums, 1)
			assert.Equal(t, "UCa", albums[0].Artists.List[0].ID)
		})

		t.Run("artists", func(t *testing.T) {
			artists, err := conn.Library().Artists(ctx)
			require.NoError(t, err)
			require.Len(t, artists, 1)
			assert.Equal(t, "UCa", artists[0].ID)
		})
	})

	t.Run("GetAudioStream", func(t *testing.T) {
		f := newYTFake(t)
		f.player["abcdefghijk"] = obj{
			"playabilityStatus": obj{"status": "OK"},
			"streamingData": obj{"adaptiveFormats": []obj{
				{"itag": 137, "mimeType": "video/mp4", "bitrate": 4000000, "url": f.server.URL + "/audio/video"},
				{"itag": 140, "mimeType": "audio/mp4; codecs=\"mp4a.40.2\"", "bitrate": 130000, "url": f.server.URL + "/audio/lo"},
				{"itag": 251, "mimeType": "audio/webm; codecs=\"opus\"", "bitrate": 160000, "url": f.server.URL + "/audio/hi"},
				{"itag": 999, "mimeType": "audio/webm", "bitrate": 900000},
			}},
		}
		f.player["noaudio0000"] = obj{"playabilityStatus": obj{"status": "OK"}, "streamingData": obj{"adaptiveFormats": []obj{}}}
		conn := f.connect(t, nil)

		t.Run("malformed id fails before any request", func(t *testing.T) {
			before := f.requests.Load()
			_, err := conn.GetAudioStream(ctx, "short", nil)
			assert.ErrorIs(t, err, shared.ErrInvalidID)
			assert.Equal(t, before, f.requests.Load())
		})

		t.Run("streams the highest bitrate audio format with Range", func(t *testing.T) {
			stream, err := conn.GetAudioStream(ctx, "abcdefghijk", http.Header{"Range": {"bytes=2-"}})
			require.NoError(t, err)
			defer stream.Body.Close()
			body, _ := io.ReadAll(stream.Body)

			assert.Equal(t, http.StatusPartialContent, stream.StatusCode)
			assert.Equal(t, "bytes 2-5/6", stream.Header.Get("Content-Range"))
			assert.Equal(t, "dio!", string(body))
		})

		t.Run("relays an unsatisfiable range", func(t *testing.T) {
			stream, err := conn.GetAudioStream(ctx, "abcdefghijk", http.Header{"Range": {"bytes=9-"}})
			require.NoError(t, err)
			defer stream.Body.Close()

			assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, stream.StatusCode)
			assert.Equal(t, "bytes */6", stream.Header.Get("Content-Range"))
		})

		t.Run("unplayable video is an invalid id", func(t *testing.T) {
			_, err := conn.GetAudioStream(ctx, "zzzzzzzzzzz", nil)
			assert.ErrorIs(t, err, shared.ErrInvalidID)
		})

		t.Run("no audio format is an upstream error", func(t *testing.T) {
			_, err := conn.GetAudioStream(ctx, "noaudio0000", nil)
			assert.ErrorIs(t, err, shared.ErrUpstream)
			assert.Equal(t, http.StatusBadGateway, shared.HTTPStatus(err))
		})
	})

	t.Run("GetSongs", func(t *testing.T) {
		f := newYTFake(t)
		f.videos["topic000001"] = obj{
			"id":             "topic000001",
			"snippet":        obj{"title": "Release", "channelId": "UCt", "channelTitle": "Band - Topic", "publishedAt": "2020-05-01T00:00:00Z"},
			"contentDetails": obj{"duration": "PT3M45S"},
		}
		f.videos["upload00001"] = obj{
			"id":             "upload00001",
			"snippet":        obj{"title": "Vlog", "channelId": "UCu", "channelTitle": "Vlogger"},
			"contentDetails": obj{"duration": "PT1H2M3S"},
		}
		conn := f.connect(t, nil)

		t.Run("topic channels are artists, other channels are uploaders", func(t *testing.T) {
			songs, err := conn.GetSongs(ctx, []string{"upload00001", "missing0001", "topic000001"})
			require.NoError(t, err)
			require.Len(t, songs, 2)

			vlog, release := songs[0], songs[1]
			assert.True(t, vlog.IsVideo)
			assert.Equal(t, models.WatchURL("upload00001"), vlog.Video)
			assert.Nil(t, vlog.Artists)
			assert.Equal(t, &models.ArtistRef{ID: "UCu", Name: "Vlogger"}, vlog.Uploader)
			assert.Equal(t, 3723, vlog.Duration)

			assert.False(t, release.IsVideo)
			assert.Nil(t, release.Uploader)
			assert.Equal(t, []models.ArtistRef{{ID: "UCt", Name: "Band"}}, release.Artists)
			assert.Equal(t, 225, release.Duration)
			assert.Equal(t, "2020-05-01", release.ReleaseDate)
		})

		t.Run("ids are looked up in batches of fifty", func(t *testing.T) {
			before := f.dataCalls.Load()
			ids := make([]string, 0, 60)
			for range 59 {
				ids = append(ids, "missing0001")
			}
			ids = append(ids, "topic000001")
			songs, err := conn.GetSongs(ctx, ids)
			require.NoError(t, err)
			assert.Len(t, songs, 1)
			assert.EqualValues(t, 2, f.dataCalls.Load()-before)
		})
	})

	t.Run("GetConnectionInfo", func(t *testing.T) {
		t.Run("reads the account channel", func(t *testing.T) {
			f := newYTFake(t)
			conn := f.connect(t, nil)
			info, err := conn.GetConnectionInfo(ctx)
			require.NoError(t, err)
			assert.Equal(t, "Me", info.Username)
			assert.Equal(t, "https://yt3.ggpht.com/me", info.ProfilePicture)
		})

		t.Run("returns a partial result on an upstream error", func(t *testing.T) {
			f := newYTFake(t)
			f.channelStatus = http.StatusForbidden
			conn := f.connect(t, nil)
			info, err := conn.GetConnectionInfo(ctx)
			require.NoError(t, err)
			assert.Equal(t, "conn-yt", info.ConnectionID)
			assert.Empty(t, info.Username)
		})

		t.Run("fails when unreachable", func(t *testing.T) {
			f := newYTFake(t)
			conn := f.connect(t, nil)
			f.server.Close()
			_, err := conn.GetConnectionInfo(ctx)
			assert.True(t, shared.Unreachable(err))
		})

		t.Run("fails when an expired token cannot be refreshed", func(t *testing.T) {
			f := newYTFake(t)
			conn := f.connect(t, expiredRecord())
			f.server.Close()
			info, err := conn.GetConnectionInfo(ctx)
			assert.Nil(t, info)
			var exhausted *shared.RefreshExhaustedError
			require.ErrorAs(t, err, &exhausted)
			assert.False(t, exhausted.Rejected)
			assert.Equal(t, http.StatusBadGateway, shared.HTTPStatus(err))
		})

		t.Run("fails when the refresh token is rejected", func(t *testing.T) {
			f := newYTFake(t)
			f.rejectRefresh = true
			conn := f.connect(t, expiredRecord())
			info, err := conn.GetConnectionInfo(ctx)
			assert.Nil(t, info)
			var exhausted *shared.RefreshExhaustedError
			require.ErrorAs(t, err, &exhausted)
			assert.True(t, exhausted.Rejected)
			assert.Equal(t, http.StatusUnauthorized, shared.HTTPStatus(err))
			assert.EqualValues(t, 0, f.dataCalls.Load())
		})
	})

	t.Run("Search sends the kind filter and narrows results", func(t *testing.T) {
		f := newYTFake(t)
		f.search = obj{"contents": obj{"tabbedSearchResultsRenderer": obj{"tabs": []obj{
			{"tabRenderer": obj{"content": obj{"sectionListRenderer": obj{"contents": []obj{
				{"musicShelfRenderer": obj{"contents": []obj{
					songRow("abcdefghijk", videoTypeATV, "Hit", run("Artist", browseNav("UCa", pageTypeArtist))),
					browseRow("UCa", pageTypeArtist, "Artist"),
				}}},
			}}}}},
		}}}}
		conn := f.connect(t, nil)

		items, err := conn.Search(ctx, "hit", models.KindSong)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "abcdefghijk", items[0].Base().ID)
		assert.Equal(t, searchParams[models.KindSong], f.lastSearch["params"])
		assert.Equal(t, "hit", f.lastSearch["query"])
	})

	t.Run("GetRecommendations", func(t *testing.T) {
		t.Run("reads home carousels", func(t *testing.T) {
			f := newYTFake(t)
			f.browse[ytHomeID] = singleColumn(
				obj{"musicCarouselShelfRenderer": obj{"contents": []obj{
					card("MPREb_1", pageTypeAlbum, "Album"),
					card("VLPL1", pageTypePlaylist, "Mix"),
				}}},
			)
			conn := f.connect(t, nil)
			items, err := conn.GetRecommendations(ctx)
			require.NoError(t, err)
			assert.Len(t, items, 2)
		})

		t.Run("never fails on upstream trouble", func(t *testing.T) {
			f := newYTFake(t)
			conn := f.connect(t, nil)
			items, err := conn.GetRecommendations(ctx)
			require.NoError(t, err)
			assert.NotNil(t, items)
			assert.Empty(t, items)
		})
	})

	t.Run("a rejected access token is refreshed once and the call retried", func(t *testing.T) {
		f := newYTFake(t)
		f.validToken = "fresh-token"
		f.search = obj{"contents": obj{"tabbedSearchResultsRenderer": obj{"tabs": []obj{}}}}
		conn := f.connect(t, nil)

		_, err := conn.Search(ctx, "x", "")
		require.NoError(t, err)
		assert.EqualValues(t, 1, f.tokenCalls.Load())

		rec, err := f.store.GetConnection(ctx, "conn-yt")
		require.NoError(t, err)
		assert.Equal(t, "fresh-token", rec.AccessToken)
		assert.Equal(t, "refresh", rec.RefreshToken)
	})
}
