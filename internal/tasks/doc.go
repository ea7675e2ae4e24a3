// Package tasks runs operations across several music service connections with progress reporting.
//
// # Aggregation
//
// [Aggregator] resolves a user's connections through a [Source] and fans one operation out to all of them:
//
//  1. [Aggregator.Search] : search every connection, optionally narrowed to one kind
//  2. [Aggregator.Library] : saved albums, artists or playlists, fully drained
//  3. [Aggregator.Recommendations] : best-effort suggestions
//  4. [Aggregator.UserConnectionInfos] and [Aggregator.ConnectionInfos] : display identities
//
// Bad input and unknown users or connections fail before any upstream call. Once fanned out, a connection that
// errors is logged and left out; the rest are returned in connection order.
//
// # Export
//
// [Aggregator.ExportPlaylists] fetches playlists from one connection at a paced rate and writes them with a
// worker pool in one of the formats of the formatter package, followed by a JSON manifest.
//
// # Progress Reporting
//
// All operations accept an optional channel of [ProgressUpdate]. Updates use select with default, so a slow or
// absent reader never blocks an operation.
package tasks
