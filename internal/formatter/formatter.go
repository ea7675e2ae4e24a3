// package formatter renders canonical entities for the terminal and exports playlists to files (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/eclypsed/lazuli/internal/models"
	"github.com/eclypsed/lazuli/internal/shared"
)

// Credit returns the names credited on a song: its artists, else its uploader.
func Credit(s models.Song) string {
	if len(s.Artists) > 0 {
		names := make([]string, len(s.Artists))
		for i, a := range s.Artists {
			names[i] = a.Name
		}
		return strings.Join(names, ", ")
	}
	if s.Uploader != nil {
		return s.Uploader.Name
	}
	return ""
}

// AlbumCredit returns the album artists, or the Various Artists sentinel.
func AlbumCredit(a *models.AlbumArtists) string {
	switch {
	case a == nil:
		return ""
	case a.Various:
		return models.VariousArtists
	}
	names := make([]string, len(a.List))
	for i, ar := range a.List {
		names[i] = ar.Name
	}
	return strings.Join(names, ", ")
}

func albumName(s models.Song) string {
	if s.Album == nil {
		return ""
	}
	return s.Album.Name
}

// ExportToCSV converts a playlist's songs to CSV format with columns: ID, Title, Artists, Album, Duration, Release Date, Video
func ExportToCSV(pl *models.Playlist) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Artists", "Album", "Duration", "Release Date", "Video"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, song := range pl.Songs {
		record := []string{
			song.ID,
			song.Name,
			Credit(song),
			albumName(song),
			strconv.Itoa(song.Duration),
			song.ReleaseDate,
			strconv.FormatBool(song.IsVideo),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a playlist to Markdown format with optional cover image
func ExportToMarkdown(pl *models.Playlist, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", pl.Name)

	if imageFilename != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", imageFilename)
	}

	if pl.Description != "" {
		fmt.Fprintf(&buf, "**Description**: %s\n\n", pl.Description)
	}
	if pl.CreatedBy != nil {
		fmt.Fprintf(&buf, "**Created by**: %s\n", pl.CreatedBy.Name)
	}

	fmt.Fprintf(&buf, "**Tracks**: %d\n", len(pl.Songs))
	fmt.Fprintf(&buf, "**Source**: %s (%s)\n\n", pl.ServiceType, pl.ConnectionID)

	buf.WriteString("## Tracks\n\n")
	for i, song := range pl.Songs {
		albumPart := ""
		if name := albumName(song); name != "" {
			albumPart = fmt.Sprintf(" (%s)", name)
		}
		fmt.Fprintf(&buf, "%d. %s - %s%s [%s]\n", i+1, Credit(song), song.Name, albumPart, shared.FormatDuration(song.Duration))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a playlist to plain text format
func ExportToText(pl *models.Playlist) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", pl.Name)
	if pl.Description != "" {
		fmt.Fprintf(&buf, "Description: %s\n", pl.Description)
	}
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(pl.Songs))

	for i, song := range pl.Songs {
		fmt.Fprintf(&buf, "%d. %s - %s\n", i+1, Credit(song), song.Name)
	}

	return buf.Bytes(), nil
}

// ExportToJSON marshals v as indented JSON.
func ExportToJSON(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// ToMetadataJSON generates a JSON representation of playlist metadata (without songs)
func ToMetadataJSON(pl *models.Playlist) ([]byte, error) {
	meta := *pl
	meta.Songs = nil
	return ExportToJSON(meta)
}

// DownloadImage downloads an image from the given URL and returns the raw bytes.
//
// Relative urls, such as the placeholder logos, cannot be fetched and are rejected.
func DownloadImage(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("not an absolute URL: %s", url)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	TracksFile   string
	MetadataFile string
}

// WriteCSVExport exports a playlist to CSV format with accompanying metadata JSON file.
//
// Defaults to playlist ID as the base filename & creates {base}_tracks.csv and {base}_metadata.json
func WriteCSVExport(pl *models.Playlist, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = pl.ID
	}

	csvData, err := ExportToCSV(pl)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	tracksFile := baseFilepath + "_tracks.csv"
	if err := os.WriteFile(tracksFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(pl)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{
		TracksFile:   tracksFile,
		MetadataFile: metadataFile,
	}, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory  string
	Files      []string
	CoverImage string
}

// WriteMarkdownExport exports a playlist to Markdown format in a dedicated directory.
//
// Directory name defaults to the playlist ID. When the playlist thumbnail is an absolute url it is
// downloaded as {dir}/cover.jpg; a failed download only drops the cover.
func WriteMarkdownExport(ctx context.Context, client *http.Client, pl *models.Playlist, outputDir string) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = pl.ID
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{
		Directory: outputDir,
		Files:     []string{},
	}

	var coverImageFilename string
	if imageData, err := DownloadImage(ctx, client, pl.Thumbnail); err == nil {
		coverImagePath := filepath.Join(outputDir, "cover.jpg")
		if err := os.WriteFile(coverImagePath, imageData, 0644); err == nil {
			coverImageFilename = "cover.jpg"
			result.CoverImage = coverImagePath
			result.Files = append(result.Files, coverImagePath)
		}
	}

	mdData, err := ExportToMarkdown(pl, coverImageFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	result.Files = append(result.Files, mdFile)

	return result, nil
}

// WriteTextExport exports a playlist to plain text format.
//
// Defaults to {playlist.ID}_tracks.txt as the filename.
func WriteTextExport(pl *models.Playlist, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s_tracks.txt", pl.ID)
	}

	textData, err := ExportToText(pl)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(path, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return path, nil
}

// WriteJSONExport writes the playlist with its songs as indented JSON.
//
// Defaults to {playlist.ID}.json as the filename.
func WriteJSONExport(pl *models.Playlist, path string) (string, error) {
	if path == "" {
		path = pl.ID + ".json"
	}

	data, err := ExportToJSON(pl)
	if err != nil {
		return "", fmt.Errorf("JSON marshal failed: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("JSON write failed: %w", err)
	}
	return path, nil
}

// ManifestEntry records the outcome of exporting one playlist.
type ManifestEntry struct {
	PlaylistID   string   `json:"playlist_id"`
	PlaylistName string   `json:"playlist_name"`
	Success      bool     `json:"success"`
	Files        []string `json:"files,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// Manifest summarises an export run.
type Manifest struct {
	ExportedAt      time.Time       `json:"exported_at"`
	ConnectionID    string          `json:"connection_id"`
	Format          string          `json:"format"`
	OutputDirectory string          `json:"output_directory"`
	TotalPlaylists  int             `json:"total_playlists"`
	Successful      int             `json:"successful"`
	Failed          int             `json:"failed"`
	Playlists       []ManifestEntry `json:"playlists"`
}

// WriteExportManifest writes the manifest to path as indented JSON.
func WriteExportManifest(m *Manifest, path string) error {
	if m.ExportedAt.IsZero() {
		m.ExportedAt = time.Now().UTC()
	}
	data, err := ExportToJSON(m)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
