// Package server exposes the music library over HTTP and handles the OAuth loopback used to connect accounts.
//
// # Routes
//
// [NewAPI] mounts every route under /api on a [BasicRouter], a thin wrapper around chi:
//
//	GET    /api/health
//	GET    /api/connections?id=a,b
//	DELETE /api/connections/{id}
//	GET    /api/connections/{id}/album?id=
//	GET    /api/connections/{id}/album/{albumId}/items
//	GET    /api/connections/{id}/playlist?id=
//	GET    /api/connections/{id}/playlist/{playlistId}/items?startIndex=&limit=
//	GET    /api/connections/{id}/songs?id=a,b
//	GET    /api/audio?connection=&id=
//	GET    /api/search?query=&userId=&filter=
//	GET    /api/users/{id}/connections
//	GET    /api/users/{id}/library/{albums|artists|playlists}
//	GET    /api/users/{id}/recommendations
//
// Aggregated routes (search, library, recommendations, connection lists) answer with whatever the healthy
// connections returned. Single-connection routes fail with the status of the underlying error:
// 400 for a bad id or argument, 404 for an unknown connection or user, 502 for an upstream failure,
// 401 for rejected credentials. Error bodies have the form {"error": {"code": ..., "message": ...}}.
//
// # Middleware
//
// Requests get a request id, an access log line and panic recovery. When a JWT secret is configured every route
// but /api/health needs an HS256 bearer token; a token whose subject names a user may only read that user's
// routes. Every route except the audio relay runs under the configured request timeout.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the authorization code callback for connecting a YouTube Music account from the CLI.
// It validates the state parameter, exchanges the code using PKCE, and sends the token through a channel.
// It only processes one callback.
package server
