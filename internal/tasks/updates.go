package tasks

import (
	"fmt"

	"github.com/eclypsed/lazuli/internal/services"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI for display.
type ProgressUpdate struct {
	Phase        Phase  // Operation phase
	Step         int    // Current step number within phase
	Total        int    // Total steps in this phase
	ConnectionID string // Connection the update concerns, if any
	Message      string // Human-readable message for display
	Err          error  // Set when the step failed and was dropped
	Data         any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	ResolveConnections Phase = iota
	FetchConnectionInfo
	SearchConnections
	FetchAlbums
	FetchArtists
	FetchPlaylists
	FetchRecommendations
	ExportPlaylist
)

func (p Phase) String() string {
	switch p {
	case ResolveConnections:
		return "resolve_connections"
	case FetchConnectionInfo:
		return "fetch_connection_info"
	case SearchConnections:
		return "search"
	case FetchAlbums:
		return "fetch_albums"
	case FetchArtists:
		return "fetch_artists"
	case FetchPlaylists:
		return "fetch_playlists"
	case FetchRecommendations:
		return "fetch_recommendations"
	case ExportPlaylist:
		return "export_playlist"
	default:
		return ""
	}
}

func resolvedUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveConnections,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Resolved %d connection(s)", total),
	}
}

func branchDoneUpdate(phase Phase, step, total int, conn services.Connection, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:        phase,
		Step:         step,
		Total:        total,
		ConnectionID: conn.ID(),
		Message:      fmt.Sprintf("[%d/%d] %s %s: %d result(s)", step, total, conn.ServiceType(), conn.ID(), count),
	}
}

func branchFailedUpdate(phase Phase, step, total int, conn services.Connection, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:        phase,
		Step:         step,
		Total:        total,
		ConnectionID: conn.ID(),
		Message:      fmt.Sprintf("[%d/%d] %s %s skipped: %v", step, total, conn.ServiceType(), conn.ID(), err),
		Err:          err,
	}
}

func fetchingPlaylistsUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("Fetching %d playlist(s)...", total),
	}
}

func exportingPlaylistUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Exporting: %s...", step, total, name),
	}
}

func exportCompletedUpdate(step, total int, name string, filesCount int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d files)", step, total, name, filesCount),
	}
}

func exportFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
		Err:     err,
	}
}
