// Package services implements the music service connections behind one [Connection] interface.
//
// # Variants
//
// [Jellyfin] talks to a self-hosted server's REST API with a stored session token. Durations arrive as
// 100-nanosecond ticks.
//
// [YouTubeMusic] uses three APIs: the internal music API of the web client for search, browse pages and
// the library; the player API for audio formats; and the Data API v3 for batch lookups and account identity.
// Internal API results are paged through continuation tokens that are walked strictly in sequence.
//
// # Credentials
//
// YouTube Music access tokens are refreshed by a [Refresher]. Concurrent readers of an expired token share one
// refresh exchange, network failures are retried up to three attempts, and a rejected refresh token is never
// retried. Once a refresh fails the connection instance stays failed; build a new one from the [Registry].
//
// # Errors
//
// Operations fail with the typed errors of the shared package:
//   - [shared.InvalidIDError]: malformed id, or the service said it does not exist
//   - [shared.UpstreamError]: unreachable service, unexpected status or unexpected payload shape
//   - [shared.NotFoundError]: no stored connection or user
//   - [shared.RefreshExhaustedError]: credentials could not be refreshed
//
// # Parsing
//
// Entries that are not music entities, or songs without a playback id, are dropped silently. On YouTube Music a
// credit that links to an artist page is an artist; otherwise the channel or first plain credit is the uploader,
// and a song never carries both.
package services
