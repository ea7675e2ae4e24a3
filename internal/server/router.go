package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// BasicRouter wraps a [chi.Router] with the registration helpers the API and the OAuth loopback use.
type BasicRouter struct {
	mux chi.Router
}

// NewBasicRouter creates a new [BasicRouter] instance.
func NewBasicRouter() *BasicRouter {
	return &BasicRouter{mux: chi.NewRouter()}
}

// Use adds [Middleware] to the router's middleware stack, applied in the order it's added.
//
// Like chi, all middleware must be added before the first route.
func (r *BasicRouter) Use(middleware ...Middleware) {
	for _, mw := range middleware {
		r.mux.Use(mw)
	}
}

// Handle registers a handler for the specified HTTP method and path pattern.
//
// Patterns use chi's syntax, so "/connections/{id}" binds the id path parameter.
func (r *BasicRouter) Handle(method, path string, handler http.Handler) {
	r.mux.Method(method, path, handler)
}

// Handler registers a custom Handler implementation for every method on each of its routes.
func (r *BasicRouter) Handler(handler Handler) {
	for _, route := range handler.Routes() {
		r.mux.Handle(route, handler)
	}
}

// Route mounts a sub-router at pattern.
func (r *BasicRouter) Route(pattern string, fn func(chi.Router)) {
	r.mux.Route(pattern, fn)
}

// ServeHTTP implements [http.Handler] for the entire router.
func (r *BasicRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}
