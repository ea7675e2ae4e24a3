package formatter

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eclypsed/lazuli/internal/models"
	"github.com/eclypsed/lazuli/internal/shared"
	th "github.com/eclypsed/lazuli/internal/testing"
)

func testPlaylist() *models.Playlist {
	item := func(kind models.Kind, id, name string, duration int) models.Item {
		return models.Item{
			ConnectionID: "conn-1",
			ServiceType:  models.ServiceJellyfin,
			Kind:         kind,
			ID:           id,
			Name:         name,
			Duration:     duration,
			Thumbnail:    shared.JellyfinPlaceholder,
		}
	}
	return &models.Playlist{
		Item:        item(models.KindPlaylist, "test123", "Test Playlist", 420),
		Description: "A test playlist",
		CreatedBy:   &models.Creator{ID: "u1", Name: "Owner"},
		Songs: []models.Song{
			{
				Item:    item(models.KindSong, "track1", "Song One", 180),
				Artists: []models.ArtistRef{{ID: "a1", Name: "Artist One"}, {ID: "a2", Name: "Artist Two"}},
				Album:   &models.AlbumRef{ID: "al1", Name: "Album One"},
			},
			{
				Item:     item(models.KindSong, "track2", "Song Two", 240),
				Uploader: &models.ArtistRef{ID: "ch1", Name: "Some Channel"},
				IsVideo:  true,
			},
		},
	}
}

func TestCredit(t *testing.T) {
	pl := testPlaylist()
	if got := Credit(pl.Songs[0]); got != "Artist One, Artist Two" {
		t.Errorf("Credit() = %q", got)
	}
	if got := Credit(pl.Songs[1]); got != "Some Channel" {
		t.Errorf("Credit() for uploader = %q", got)
	}
	if got := Credit(models.Song{}); got != "" {
		t.Errorf("Credit() for uncredited song = %q", got)
	}

	if got := AlbumCredit(&models.AlbumArtists{Various: true}); got != models.VariousArtists {
		t.Errorf("AlbumCredit() = %q", got)
	}
	if got := AlbumCredit(nil); got != "" {
		t.Errorf("AlbumCredit(nil) = %q", got)
	}
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(testPlaylist())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "ID,Title,Artists,Album,Duration,Release Date,Video") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, `track1,Song One,"Artist One, Artist Two",Album One,180,,false`) {
			t.Errorf("CSV missing track1 row, got: %s", output)
		}
		if !strings.Contains(output, "track2,Song Two,Some Channel,,240,,true") {
			t.Errorf("CSV missing track2 row, got: %s", output)
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		t.Run("without cover image", func(t *testing.T) {
			data, err := ExportToMarkdown(testPlaylist(), "")
			if err != nil {
				t.Fatalf("ExportToMarkdown failed: %v", err)
			}
			output := string(data)

			for _, want := range []string{
				"# Test Playlist",
				"**Description**: A test playlist",
				"**Created by**: Owner",
				"**Tracks**: 2",
				"1. Artist One, Artist Two - Song One (Album One) [3:00]",
				"2. Some Channel - Song Two [4:00]",
			} {
				if !strings.Contains(output, want) {
					t.Errorf("Markdown missing %q, got:\n%s", want, output)
				}
			}
			if strings.Contains(output, "![Cover]") {
				t.Errorf("Markdown should not reference a cover")
			}
		})

		t.Run("with cover image", func(t *testing.T) {
			data, err := ExportToMarkdown(testPlaylist(), "cover.jpg")
			if err != nil {
				t.Fatalf("ExportToMarkdown failed: %v", err)
			}
			if !strings.Contains(string(data), "![Cover](cover.jpg)") {
				t.Errorf("Markdown missing cover reference")
			}
		})
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(testPlaylist())
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}
		output := string(data)
		if !strings.HasPrefix(output, "Playlist: Test Playlist\n") {
			t.Errorf("unexpected text header: %s", output)
		}
		if !strings.Contains(output, "2. Some Channel - Song Two") {
			t.Errorf("text missing track line: %s", output)
		}
	})

	t.Run("ToMetadataJSON", func(t *testing.T) {
		pl := testPlaylist()
		data, err := ToMetadataJSON(pl)
		if err != nil {
			t.Fatalf("ToMetadataJSON failed: %v", err)
		}

		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("metadata is not JSON: %v", err)
		}
		if decoded["id"] != "test123" || decoded["type"] != "playlist" {
			t.Errorf("unexpected metadata: %v", decoded)
		}
		if _, ok := decoded["songs"]; ok {
			t.Errorf("metadata should not include songs")
		}
		if len(pl.Songs) != 2 {
			t.Errorf("ToMetadataJSON must not modify the playlist")
		}
	})
}

func TestDownloadImage(t *testing.T) {
	t.Run("EmptyURL", func(t *testing.T) {
		if _, err := DownloadImage(context.Background(), nil, ""); err == nil {
			t.Error("expected error for empty URL")
		}
	})

	t.Run("Placeholder", func(t *testing.T) {
		if _, err := DownloadImage(context.Background(), nil, shared.YouTubePlaceholder); err == nil {
			t.Error("expected error for relative URL")
		}
	})

	t.Run("Fetches", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("jpeg-bytes"))
		}))
		defer srv.Close()

		data, err := DownloadImage(context.Background(), srv.Client(), srv.URL+"/cover")
		if err != nil {
			t.Fatalf("DownloadImage failed: %v", err)
		}
		if string(data) != "jpeg-bytes" {
			t.Errorf("got %q", data)
		}
	})

	t.Run("BadStatus", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		if _, err := DownloadImage(context.Background(), srv.Client(), srv.URL); err == nil {
			t.Error("expected error for 404")
		}
	})
}

func TestWriters(t *testing.T) {
	t.Run("WriteCSVExport", func(t *testing.T) {
		t.Run("WithDefaultPath", func(t *testing.T) {
			tempDir := t.TempDir()
			originalDir := th.MustGetwd(t)
			th.MustChdir(t, tempDir)
			defer th.MustChdir(t, originalDir)

			result, err := WriteCSVExport(testPlaylist(), "")
			if err != nil {
				t.Fatalf("WriteCSVExport failed: %v", err)
			}

			if result.TracksFile != "test123_tracks.csv" {
				t.Errorf("Expected tracks file 'test123_tracks.csv', got '%s'", result.TracksFile)
			}
			if result.MetadataFile != "test123_metadata.json" {
				t.Errorf("Expected metadata file 'test123_metadata.json', got '%s'", result.MetadataFile)
			}

			th.AssertFileExists(t, result.TracksFile)
			th.AssertFileExists(t, result.MetadataFile)

			if !strings.Contains(th.MustReadFile(t, result.MetadataFile), "Test Playlist") {
				t.Errorf("Metadata JSON missing expected fields")
			}
		})

		t.Run("WithCustomPath", func(t *testing.T) {
			base := filepath.Join(t.TempDir(), "custom")
			result, err := WriteCSVExport(testPlaylist(), base)
			if err != nil {
				t.Fatalf("WriteCSVExport failed: %v", err)
			}
			if result.TracksFile != base+"_tracks.csv" {
				t.Errorf("unexpected tracks file %s", result.TracksFile)
			}
			th.AssertFileExists(t, result.TracksFile)
		})
	})

	t.Run("WriteMarkdownExport", func(t *testing.T) {
		t.Run("WithPlaceholderThumbnail", func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "out")
			result, err := WriteMarkdownExport(context.Background(), nil, testPlaylist(), dir)
			if err != nil {
				t.Fatalf("WriteMarkdownExport failed: %v", err)
			}
			if result.CoverImage != "" {
				t.Errorf("placeholder thumbnails are not downloaded")
			}
			if len(result.Files) != 1 {
				t.Errorf("expected only README.md, got %v", result.Files)
			}
			th.AssertFileExists(t, filepath.Join(dir, "README.md"))
		})

		t.Run("WithCover", func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("jpeg-bytes"))
			}))
			defer srv.Close()

			pl := testPlaylist()
			pl.Thumbnail = srv.URL + "/cover"
			dir := filepath.Join(t.TempDir(), "out")

			result, err := WriteMarkdownExport(context.Background(), srv.Client(), pl, dir)
			if err != nil {
				t.Fatalf("WriteMarkdownExport failed: %v", err)
			}
			if result.CoverImage != filepath.Join(dir, "cover.jpg") {
				t.Errorf("unexpected cover path %q", result.CoverImage)
			}
			if len(result.Files) != 2 {
				t.Errorf("expected cover and README, got %v", result.Files)
			}
			if !strings.Contains(th.MustReadFile(t, filepath.Join(dir, "README.md")), "![Cover](cover.jpg)") {
				t.Errorf("README should reference the cover")
			}
		})
	})

	t.Run("WriteTextExport", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tracks.txt")
		got, err := WriteTextExport(testPlaylist(), path)
		if err != nil {
			t.Fatalf("WriteTextExport failed: %v", err)
		}
		if got != path {
			t.Errorf("got path %s", got)
		}
		th.AssertFileExists(t, path)
	})

	t.Run("WriteJSONExport", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "pl.json")
		if _, err := WriteJSONExport(testPlaylist(), path); err != nil {
			t.Fatalf("WriteJSONExport failed: %v", err)
		}

		var decoded models.Playlist
		if err := json.Unmarshal([]byte(th.MustReadFile(t, path)), &decoded); err != nil {
			t.Fatalf("export is not JSON: %v", err)
		}
		if len(decoded.Songs) != 2 || decoded.Songs[1].Uploader == nil {
			t.Errorf("unexpected songs: %+v", decoded.Songs)
		}
	})

	t.Run("WriteExportManifest", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "manifest.json")
		m := &Manifest{
			ConnectionID:   "conn-1",
			Format:         "csv",
			TotalPlaylists: 2,
			Successful:     1,
			Failed:         1,
			Playlists: []ManifestEntry{
				{PlaylistID: "p1", PlaylistName: "One", Success: true, Files: []string{"p1_tracks.csv"}},
				{PlaylistID: "p2", PlaylistName: "Two", Error: "upstream request failed"},
			},
		}
		if err := WriteExportManifest(m, path); err != nil {
			t.Fatalf("WriteExportManifest failed: %v", err)
		}
		if m.ExportedAt.IsZero() {
			t.Errorf("ExportedAt should be stamped")
		}

		content := th.MustReadFile(t, path)
		for _, want := range []string{`"format": "csv"`, `"total_playlists": 2`, `"failed": 1`, `"error": "upstream request failed"`} {
			if !strings.Contains(content, want) {
				t.Errorf("manifest missing %s:\n%s", want, content)
			}
		}
	})

	t.Run("UnwritableDirectory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(file, nil, 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := WriteCSVExport(testPlaylist(), filepath.Join(file, "x")); err == nil {
			t.Error("expected error writing below a regular file")
		}
	})
}

func TestRender(t *testing.T) {
	p := DefaultPalette()
	pl := testPlaylist()

	t.Run("Items", func(t *testing.T) {
		var buf bytes.Buffer
		items := []models.MediaItem{pl.Songs[0], models.Album{
			Item:    models.Item{Kind: models.KindAlbum, ID: "al1", Name: "Album One"},
			Artists: &models.AlbumArtists{Various: true},
		}}
		if err := p.RenderItems(&buf, items); err != nil {
			t.Fatalf("RenderItems failed: %v", err)
		}
		out := buf.String()
		for _, want := range []string{"Song One", "Artist One, Artist Two", "3:00", "Album One", models.VariousArtists} {
			if !strings.Contains(out, want) {
				t.Errorf("render missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("Empty", func(t *testing.T) {
		var buf bytes.Buffer
		p.RenderItems(&buf, nil)
		if !strings.Contains(buf.String(), "no results") {
			t.Errorf("got %q", buf.String())
		}
	})

	t.Run("Playlist", func(t *testing.T) {
		var buf bytes.Buffer
		if err := p.RenderPlaylist(&buf, pl); err != nil {
			t.Fatalf("RenderPlaylist failed: %v", err)
		}
		if !strings.Contains(buf.String(), "Created by Owner") || !strings.Contains(buf.String(), "Some Channel") {
			t.Errorf("unexpected output:\n%s", buf.String())
		}
	})

	t.Run("WriterError", func(t *testing.T) {
		if err := p.RenderSongs(&th.FWriter{}, pl.Songs); err == nil {
			t.Error("expected write error")
		}
	})

	t.Run("Connections", func(t *testing.T) {
		var buf bytes.Buffer
		infos := []models.ConnectionInfo{{ConnectionID: "c1", ServiceType: models.ServiceJellyfin, Username: "alice", ServerName: "home"}}
		p.RenderConnections(&buf, infos)
		if !strings.Contains(buf.String(), "alice") || !strings.Contains(buf.String(), "@ home") {
			t.Errorf("unexpected output: %s", buf.String())
		}
	})
}
