package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/eclypsed/lazuli/internal/tasks"
)

// Export writes playlists of one connection to files using the bulk export worker pool.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	_, conns, release, err := r.session(ctx)
	if err != nil {
		return err
	}
	defer release()

	connectionID := cmd.String("connection")
	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			switch update.Phase {
			case tasks.ExportPlaylist:
				if update.Err != nil {
					r.writePlain("   %s %s\n", r.palette.Error("✗"), update.Message)
				} else {
					r.writePlain("   %s\n", update.Message)
				}
			default:
				r.writePlain("📥 %s\n", update.Message)
			}
		}
	}()

	result, err := r.aggregator(conns).ExportPlaylists(ctx, progress, connectionID, cmd.StringSlice("id"), tasks.BulkExportOpts{
		Format:     cmd.String("format"),
		OutputDir:  cmd.String("output"),
		NumWorkers: cmd.Int("workers"),
		RateLimit:  cmd.Float("rate"),
		HTTPClient: r.httpClient,
	})
	close(progress)
	<-done
	if err != nil {
		return err
	}

	r.writePlain("\n%s\n", r.palette.Title("Export Complete"))
	r.writePlain("Connection: %s\n", result.ConnectionID)
	r.writePlain("Exported: %d/%d playlists\n", result.SuccessfulExports, result.TotalPlaylists)
	r.writePlain("Output: %s\n", result.OutputDirectory)
	r.writePlain("Manifest: %s\n", result.ManifestPath)

	if result.FailedExports > 0 {
		r.writePlain("\nFailed %d playlists:\n", result.FailedExports)
		for _, res := range result.Results {
			if !res.Success {
				r.writePlain("  - %s: %v\n", res.PlaylistName, res.Error)
			}
		}
		return fmt.Errorf("%d of %d playlists failed to export", result.FailedExports, result.TotalPlaylists)
	}
	return nil
}
