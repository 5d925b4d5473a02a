package server

import (
	"net/http"
	"slices"
	"strings"
	"sync"
)

// BasicRouter is a simple HTTP router implementing the [Router] interface.
//
// Paths are matched exactly through an internal [http.ServeMux]; each path may carry one
// handler per method and answers other methods with 405 and an Allow header.
type BasicRouter struct {
	mux         *http.ServeMux
	middlewares []Middleware

	mu     sync.Mutex
	routes map[string]map[string]http.Handler
}

// NewBasicRouter creates a new [BasicRouter] instance.
func NewBasicRouter() *BasicRouter {
	return &BasicRouter{
		mux:         http.NewServeMux(),
		middlewares: []Middleware{},
		routes:      map[string]map[string]http.Handler{},
	}
}

// Use adds [Middleware] to the [Router] instance's middleware stack, applied in the order it's added.
//
// Middleware wraps handlers as they are registered, so call Use before Handle.
func (r *BasicRouter) Use(middleware ...Middleware) {
	r.middlewares = append(r.middlewares, middleware...)
}

// Handle registers a handler for the specified HTTP method and path.
func (r *BasicRouter) Handle(method, path string, handler http.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	methods, exists := r.routes[path]
	if !exists {
		methods = map[string]http.Handler{}
		r.routes[path] = methods
		r.mux.Handle(exactPattern(path), r.dispatch(path))
	}
	methods[strings.ToUpper(method)] = r.Apply(handler)
}

// HandleFunc registers a handler function for the specified HTTP method and path.
func (r *BasicRouter) HandleFunc(method, path string, fn http.HandlerFunc) {
	r.Handle(method, path, fn)
}

// Handler registers a custom Handler implementation for every method on its routes.
func (r *BasicRouter) Handler(handler Handler) {
	wrapped := r.Apply(handler)
	for _, route := range handler.Routes() {
		r.mux.Handle(exactPattern(route), wrapped)
	}
}

// exactPattern keeps "/" from acting as a catch-all.
func exactPattern(path string) string {
	if path == "/" {
		return "/{$}"
	}
	return path
}

func (r *BasicRouter) dispatch(path string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.mu.Lock()
		methods := r.routes[path]
		handler, ok := methods[req.Method]
		if !ok && req.Method == http.MethodHead {
			handler, ok = methods[http.MethodGet]
		}
		allowed := make([]string, 0, len(methods))
		for m := range methods {
			allowed = append(allowed, m)
		}
		r.mu.Unlock()

		if !ok {
			slices.Sort(allowed)
			w.Header().Set("Allow", strings.Join(allowed, ", "))
			writeJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed", http.StatusMethodNotAllowed, ""))
			return
		}
		handler.ServeHTTP(w, req)
	})
}

// ServeHTTP implements [http.Handler] for the entire router.
func (r *BasicRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Apply wraps a handler with all registered middleware.
//
// Middleware is applied in reverse order (last added wraps first).
func (r *BasicRouter) Apply(handler http.Handler) http.Handler {
	wrapped := handler

	for i := len(r.middlewares) - 1; i >= 0; i-- {
		wrapped = r.middlewares[i](wrapped)
	}

	return wrapped
}
