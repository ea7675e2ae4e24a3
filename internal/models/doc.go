// Package models defines the canonical media entities and the persisted records behind connections.
//
// The package contains two categories of types:
//
// 1. Canonical entities: service-agnostic results produced by normalizing upstream responses
//   - [Song] : a playable track or video, with artist, album and uploader references
//   - [Album] : an album with its credited artists or the "Various Artists" sentinel
//   - [Artist] : a musical artist
//   - [Playlist] : a playlist with optional creator and description
//   - [ConnectionInfo] : display identity of one connection
//
// 2. Persistent records: rows owned by the token store
//   - [User] : a local user account
//   - [ConnectionRecord] : one user's credentials for one service account
//
// Canonical entities are never merged across connections. Each carries the connection id and
// service type it came from, and its id is only unique within that pair.
package models
