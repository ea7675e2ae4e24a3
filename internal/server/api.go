package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/eclypsed/lazuli/internal/models"
	"github.com/eclypsed/lazuli/internal/services"
	"github.com/eclypsed/lazuli/internal/shared"
	"github.com/eclypsed/lazuli/internal/tasks"
)

// Connections resolves and deletes connections. [services.Registry] is the production implementation.
type Connections interface {
	tasks.Source
	Delete(ctx context.Context, id string) error
}

// APIOptions configures the routes built by [NewAPI].
type APIOptions struct {
	// JWTSecret enables bearer token checks on every route but /api/health.
	JWTSecret string
	// Timeout bounds every non-streaming request. Zero disables it.
	Timeout time.Duration
	Logger  *log.Logger
}

// API serves the music library over HTTP under /api.
type API struct {
	conns      Connections
	aggregator *tasks.Aggregator
	logger     *log.Logger
	router     *BasicRouter
}

// NewAPI builds the router for every API route.
func NewAPI(conns Connections, opts APIOptions) *API {
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}
	a := &API{
		conns:      conns,
		aggregator: tasks.NewAggregator(conns, opts.Logger),
		logger:     opts.Logger,
		router:     NewBasicRouter(),
	}

	a.router.Use(middleware.RequestID, middleware.RealIP, RequestLogger(opts.Logger), middleware.Recoverer)
	a.router.Route("/api", func(r chi.Router) {
		r.Get("/health", a.health)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(opts.JWTSecret))

			// no request timeout on audio; a client disconnect cancels the relay
			r.Get("/audio", a.audio)

			r.Group(func(r chi.Router) {
				if opts.Timeout > 0 {
					r.Use(middleware.Timeout(opts.Timeout))
				}

				r.Get("/connections", a.connectionInfos)
				r.Route("/connections/{id}", func(r chi.Router) {
					r.Delete("/", a.deleteConnection)
					r.Get("/album", a.album)
					r.Get("/album/{albumId}/items", a.albumItems)
					r.Get("/playlist", a.playlist)
					r.Get("/playlist/{playlistId}/items", a.playlistItems)
					r.Get("/songs", a.songs)
				})

				r.Get("/search", a.search)

				r.Route("/users/{id}", func(r chi.Router) {
					r.Get("/connections", a.userConnections)
					r.Get("/library/{kind}", a.library)
					r.Get("/recommendations", a.recommendations)
				})
			})
		})
	})
	return a
}

// ServeHTTP implements [http.Handler].
func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) connectionInfos(w http.ResponseWriter, r *http.Request) {
	ids := splitIDs(r.URL.Query().Get("id"))
	if len(ids) == 0 {
		a.fail(w, r, fmt.Errorf("%w: id", shared.ErrMissingArgument))
		return
	}
	infos, err := a.aggregator.ConnectionInfos(r.Context(), nil, ids)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"connections": infos})
}

func (a *API) deleteConnection(w http.ResponseWriter, r *http.Request) {
	if err := a.conns.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// connection resolves the {id} path parameter.
func (a *API) connection(r *http.Request) (services.Connection, error) {
	return a.conns.Get(r.Context(), chi.URLParam(r, "id"))
}

func (a *API) album(w http.ResponseWriter, r *http.Request) {
	id, err := requiredQuery(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	conn, err := a.connection(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	album, err := conn.GetAlbum(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"album": album})
}

func (a *API) albumItems(w http.ResponseWriter, r *http.Request) {
	conn, err := a.connection(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items, err := conn.GetAlbumItems(r.Context(), chi.URLParam(r, "albumId"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": orEmpty(items)})
}

func (a *API) playlist(w http.ResponseWriter, r *http.Request) {
	id, err := requiredQuery(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	conn, err := a.connection(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	playlist, err := conn.GetPlaylist(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"playlist": playlist})
}

func (a *API) playlistItems(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	conn, err := a.connection(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items, err := conn.GetPlaylistItems(r.Context(), chi.URLParam(r, "playlistId"), window)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": orEmpty(items)})
}

func (a *API) songs(w http.ResponseWriter, r *http.Request) {
	ids := splitIDs(r.URL.Query().Get("id"))
	if len(ids) == 0 {
		a.fail(w, r, fmt.Errorf("%w: id", shared.ErrMissingArgument))
		return
	}
	conn, err := a.connection(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	songs, err := conn.GetSongs(r.Context(), ids)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"songs": orEmpty(songs)})
}

func (a *API) audio(w http.ResponseWriter, r *http.Request) {
	connectionID, err := requiredQuery(r, "connection")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	id, err := requiredQuery(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	conn, err := a.conns.Get(r.Context(), connectionID)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	stream, err := conn.GetAudioStream(r.Context(), id, r.Header)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	defer stream.Body.Close()

	for k, vs := range stream.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(stream.StatusCode)
	if _, err := io.Copy(w, stream.Body); err != nil && r.Context().Err() == nil {
		a.logger.Warn("audio relay interrupted", "connection", connectionID, "id", id, "err", err)
	}
}

func (a *API) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := q.Get("userId")
	if err := authorizeUser(r, userID); err != nil {
		a.fail(w, r, err)
		return
	}
	filter, err := models.ParseKind(q.Get("filter"))
	if err != nil {
		a.fail(w, r, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err))
		return
	}

	results, err := a.aggregator.Search(r.Context(), nil, userID, q.Get("query"), filter)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"searchResults": results})
}

func (a *API) userConnections(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if err := authorizeUser(r, userID); err != nil {
		a.fail(w, r, err)
		return
	}
	infos, err := a.aggregator.UserConnectionInfos(r.Context(), nil, userID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"connections": infos})
}

func (a *API) library(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if err := authorizeUser(r, userID); err != nil {
		a.fail(w, r, err)
		return
	}
	kind, err := models.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		a.fail(w, r, shared.NewNotFoundError("library collection", chi.URLParam(r, "kind")))
		return
	}

	items, err := a.aggregator.Library(r.Context(), nil, userID, kind)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidArgument) {
			err = shared.NewNotFoundError("library collection", chi.URLParam(r, "kind"))
		}
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) recommendations(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if err := authorizeUser(r, userID); err != nil {
		a.fail(w, r, err)
		return
	}
	items, err := a.aggregator.Recommendations(r.Context(), nil, userID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// fail writes err as a JSON error body. Unanticipated errors are logged and answered with a generic message.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := shared.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	} else {
		a.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	}
	writeError(w, err)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var errorCodes = map[int]string{
	http.StatusBadRequest:          "invalid_request",
	http.StatusUnauthorized:        "unauthorized",
	http.StatusNotFound:            "not_found",
	http.StatusBadGateway:          "upstream_error",
	http.StatusGatewayTimeout:      "timeout",
	http.StatusInternalServerError: "internal_error",
}

func writeError(w http.ResponseWriter, err error) {
	status := shared.HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	if errors.Is(err, shared.ErrInvalidID) {
		writeJSON(w, status, map[string]errorBody{"error": {Code: "invalid_id", Message: msg}})
		return
	}
	writeJSON(w, status, map[string]errorBody{"error": {Code: errorCodes[status], Message: msg}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requiredQuery(r *http.Request, name string) (string, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return "", fmt.Errorf("%w: %s", shared.ErrMissingArgument, name)
	}
	return v, nil
}

func splitIDs(csv string) []string {
	var ids []string
	for _, id := range strings.Split(csv, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func parseWindow(r *http.Request) (models.Window, error) {
	var w models.Window
	for name, dst := range map[string]*int{"startIndex": &w.StartIndex, "limit": &w.Limit} {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return models.Window{}, fmt.Errorf("%w: %s must be a non-negative integer", shared.ErrInvalidArgument, name)
		}
		*dst = n
	}
	return w, nil
}

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
