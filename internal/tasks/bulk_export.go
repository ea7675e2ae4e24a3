package tasks

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/eclypsed/lazuli/internal/formatter"
	"github.com/eclypsed/lazuli/internal/models"
	"github.com/eclypsed/lazuli/internal/services"
	"github.com/eclypsed/lazuli/internal/shared"
)

// Export formats understood by [Aggregator.ExportPlaylists].
const (
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatText     = "txt"
)

// BulkExportOpts contains configuration for bulk playlist exports.
type BulkExportOpts struct {
	Format     string       // Export format: json, csv, markdown, txt
	OutputDir  string       // Base output directory (default: lazuli_export_{epoch})
	NumWorkers int          // Concurrent file writers (default: 5, max 10)
	RateLimit  float64      // Playlist fetches per second (default: 5)
	HTTPClient *http.Client // Used to download Markdown cover images
}

// PlaylistExportJob is a fetched playlist waiting to be written.
type PlaylistExportJob struct {
	PlaylistID string
	Playlist   *models.Playlist
}

// PlaylistExportResult is the outcome of exporting one playlist.
type PlaylistExportResult struct {
	PlaylistID   string
	PlaylistName string
	Success      bool
	Files        []string
	Error        error
}

// BulkExportResult summarises an export run.
type BulkExportResult struct {
	ConnectionID      string
	TotalPlaylists    int
	SuccessfulExports int
	FailedExports     int
	Results           []PlaylistExportResult
	OutputDirectory   string
	ManifestPath      string
}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// ExportPlaylists writes playlists of one connection, with all their songs, to files.
//
// With no ids every playlist in the connection's library is exported. Fetches are paced by a rate limiter and
// written by a worker pool; a playlist that fails is recorded in the manifest and does not stop the others.
func (a *Aggregator) ExportPlaylists(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	connectionID string,
	ids []string,
	opts BulkExportOpts,
) (*BulkExportResult, error) {
	switch opts.Format {
	case "":
		opts.Format = FormatJSON
	case FormatJSON, FormatCSV, FormatMarkdown, FormatText:
	default:
		return nil, fmt.Errorf("%w: unsupported export format %q", shared.ErrInvalidArgument, opts.Format)
	}

	conn, err := a.source.Get(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		playlists, err := conn.Library().Playlists(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list library playlists: %w", err)
		}
		for _, pl := range playlists {
			ids = append(ids, pl.ID)
		}
	}

	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("lazuli_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 5
	}
	opts.NumWorkers = min(opts.NumWorkers, 10)
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &BulkExportResult{
		ConnectionID:    connectionID,
		TotalPlaylists:  len(ids),
		OutputDirectory: opts.OutputDir,
		Results:         make([]PlaylistExportResult, 0, len(ids)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan PlaylistExportJob, len(ids))
	results := make(chan PlaylistExportResult, len(ids))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go a.exportWorker(ctx, &wg, jobs, results, opts)
	}

	// results must stay open until the producer, which reports fetch failures, returns
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(jobs)
		a.sendProgress(prog, fetchingPlaylistsUpdate(len(ids)))
		for i, playlistID := range ids {
			if err := limiter.Wait(ctx); err != nil {
				return
			}

			pl, err := fetchPlaylist(ctx, conn, playlistID)
			if err != nil {
				results <- PlaylistExportResult{
					PlaylistID:   playlistID,
					PlaylistName: fmt.Sprintf("Unknown (%s)", playlistID),
					Error:        fmt.Errorf("failed to fetch playlist: %w", err),
				}
				continue
			}

			jobs <- PlaylistExportJob{PlaylistID: playlistID, Playlist: pl}
			a.sendProgress(prog, exportingPlaylistUpdate(i+1, len(ids), pl.Name))
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Success {
			result.SuccessfulExports++
			a.sendProgress(prog, exportCompletedUpdate(completed, len(ids), res.PlaylistName, len(res.Files)))
		} else {
			result.FailedExports++
			a.logger.Warn("playlist export failed", "connection", connectionID, "playlist", res.PlaylistID, "err", res.Error)
			a.sendProgress(prog, exportFailedUpdate(completed, len(ids), res.PlaylistName, res.Error))
		}
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := formatter.WriteExportManifest(result.manifest(opts.Format), manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	return result, nil
}

// fetchPlaylist loads a playlist's metadata and every one of its songs.
func fetchPlaylist(ctx context.Context, conn services.Connection, id string) (*models.Playlist, error) {
	pl, err := conn.GetPlaylist(ctx, id)
	if err != nil {
		return nil, err
	}
	songs, err := conn.GetPlaylistItems(ctx, id, models.Window{})
	if err != nil {
		return nil, err
	}
	full := *pl
	full.Songs = songs
	return &full, nil
}

// exportWorker is a worker goroutine that exports playlists from the jobs channel.
func (a *Aggregator) exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan PlaylistExportJob,
	results chan<- PlaylistExportResult,
	opts BulkExportOpts,
) {
	defer wg.Done()

	for job := range jobs {
		if ctx.Err() != nil {
			return
		}
		results <- exportSinglePlaylist(ctx, job, opts)
	}
}

// exportSinglePlaylist exports a single playlist to the requested format.
func exportSinglePlaylist(ctx context.Context, j PlaylistExportJob, opts BulkExportOpts) PlaylistExportResult {
	result := PlaylistExportResult{
		PlaylistID:   j.PlaylistID,
		PlaylistName: j.Playlist.Name,
		Files:        []string{},
	}
	base := unsafeFilename.ReplaceAllString(j.Playlist.ID, "_")

	switch opts.Format {
	case FormatCSV:
		csvRes, err := formatter.WriteCSVExport(j.Playlist, filepath.Join(opts.OutputDir, base))
		if err != nil {
			result.Error = fmt.Errorf("CSV export failed: %w", err)
			return result
		}
		result.Files = []string{csvRes.TracksFile, csvRes.MetadataFile}

	case FormatMarkdown:
		mdRes, err := formatter.WriteMarkdownExport(ctx, opts.HTTPClient, j.Playlist, filepath.Join(opts.OutputDir, base))
		if err != nil {
			result.Error = fmt.Errorf("markdown export failed: %w", err)
			return result
		}
		result.Files = mdRes.Files

	case FormatText:
		path, err := formatter.WriteTextExport(j.Playlist, filepath.Join(opts.OutputDir, base+"_tracks.txt"))
		if err != nil {
			result.Error = fmt.Errorf("text export failed: %w", err)
			return result
		}
		result.Files = []string{path}

	default:
		path, err := formatter.WriteJSONExport(j.Playlist, filepath.Join(opts.OutputDir, base+".json"))
		if err != nil {
			result.Error = err
			return result
		}
		result.Files = []string{path}
	}

	result.Success = true
	return result
}

func (r *BulkExportResult) manifest(format string) *formatter.Manifest {
	m := &formatter.Manifest{
		ConnectionID:    r.ConnectionID,
		Format:          format,
		OutputDirectory: r.OutputDirectory,
		TotalPlaylists:  r.TotalPlaylists,
		Successful:      r.SuccessfulExports,
		Failed:          r.FailedExports,
		Playlists:       make([]formatter.ManifestEntry, 0, len(r.Results)),
	}
	for _, res := range r.Results {
		entry := formatter.ManifestEntry{
			PlaylistID:   res.PlaylistID,
			PlaylistName: res.PlaylistName,
			Success:      res.Success,
			Files:        res.Files,
		}
		if res.Error != nil {
			entry.Error = res.Error.Error()
		}
		m.Playlists = append(m.Playlists, entry)
	}
	return m
}
