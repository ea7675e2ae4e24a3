package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSongArtistsJSON(t *testing.T) {
	t.Run("absent credit is omitted", func(t *testing.T) {
		data, err := json.Marshal(Song{Item: Item{ID: "a", Kind: KindSong}})
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		if strings.Contains(string(data), `"artists"`) {
			t.Errorf("expected no artists key, got %s", data)
		}
	})

	t.Run("empty credit is kept", func(t *testing.T) {
		data, err := json.Marshal(Song{Item: Item{ID: "a", Kind: KindSong}, Artists: []ArtistRef{}})
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		if !strings.Contains(string(data), `"artists":[]`) {
			t.Errorf("expected empty artists array, got %s", data)
		}
	})
}

func TestAlbumArtistsJSON(t *testing.T) {
	various, err := json.Marshal(Album{Item: Item{ID: "x"}, Artists: &AlbumArtists{Various: true}})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(various), `"artists":"Various Artists"`) {
		t.Errorf("expected sentinel, got %s", various)
	}

	var decoded Album
	if err := json.Unmarshal(various, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded.Artists == nil || !decoded.Artists.Various {
		t.Errorf("expected sentinel to round-trip, got %+v", decoded.Artists)
	}

	listed, _ := json.Marshal(Album{Artists: &AlbumArtists{List: []ArtistRef{{ID: "1", Name: "A"}}}})
	if !strings.Contains(string(listed), `"artists":[{"id":"1","name":"A"}]`) {
		t.Errorf("expected artist list, got %s", listed)
	}

	var bad AlbumArtists
	if err := json.Unmarshal([]byte(`"Someone"`), &bad); err == nil {
		t.Error("expected error for non-sentinel string")
	}
}

func TestParseKind(t *testing.T) {
	tc := map[string]Kind{"": "", "songs": KindSong, "Album": KindAlbum, "artists": KindArtist, "playlist": KindPlaylist}
	for in, want := range tc {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Errorf("ParseKind(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseKind("podcasts"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestWindow(t *testing.T) {
	items := []int{0, 1, 2, 3, 4}
	tc := []struct {
		name string
		w    Window
		want int
	}{
		{name: "unbounded", w: Window{}, want: 5},
		{name: "limit", w: Window{Limit: 2}, want: 2},
		{name: "offset", w: Window{StartIndex: 3}, want: 2},
		{name: "past end", w: Window{StartIndex: 9, Limit: 2}, want: 0},
		{name: "overlapping end", w: Window{StartIndex: 4, Limit: 10}, want: 1},
	}
	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := Apply(tt.w, items); len(got) != tt.want {
				t.Errorf("expected %d items, got %d", tt.want, len(got))
			}
		})
	}
}

func TestConnectionRecordValidate(t *testing.T) {
	valid := []ConnectionRecord{
		{UserID: "u", Type: ServiceJellyfin, AccessToken: "t", ServiceURL: "http://jf", ServiceUserID: "id"},
		{UserID: "u", Type: ServiceYouTubeMusic, AccessToken: "t", RefreshToken: "r"},
	}
	for _, r := range valid {
		if err := r.Validate(); err != nil {
			t.Errorf("expected %s record to validate: %v", r.Type, err)
		}
	}

	invalid := []ConnectionRecord{
		{Type: ServiceJellyfin, AccessToken: "t", ServiceURL: "http://jf", ServiceUserID: "id"},
		{UserID: "u", Type: ServiceJellyfin, AccessToken: "t"},
		{UserID: "u", Type: ServiceYouTubeMusic, AccessToken: "t"},
		{UserID: "u", Type: "spotify", AccessToken: "t"},
	}
	for _, r := range invalid {
		if err := r.Validate(); err == nil {
			t.Errorf("expected %+v to fail validation", r)
		}
	}
}

func TestAudioPath(t *testing.T) {
	got := AudioPath("c 1", "dQw4w9WgXcQ")
	if got != "/api/audio?connection=c+1&id=dQw4w9WgXcQ" {
		t.Errorf("unexpected audio path %s", got)
	}
}
