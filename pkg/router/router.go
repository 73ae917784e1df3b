package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"sms-decline-analysis/internal/logger"
)

// --- ANSI color codes ---
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
)

type HandlerFunc func(http.ResponseWriter, *http.Request)

type Router struct {
	mux    *http.ServeMux
	routes map[string]HandlerFunc // key = METHOD:PATH
	paths  map[string]bool        // track registered paths
}

func New() *Router {
	r := &Router{
		mux:    http.NewServeMux(),
		routes: make(map[string]HandlerFunc),
		paths:  make(map[string]bool),
	}

	// Catch-all handler, dispatches to registered routes
	r.mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		if h := r.lookup(req.Method, req.URL.Path); h != nil {
			h(lrw, req)
		} else if r.pathExists(req.URL.Path) {
			http.Error(lrw, "Method Not Allowed", http.StatusMethodNotAllowed)
		} else {
			http.Error(lrw, "Not Found", http.StatusNotFound)
		}

		duration := time.Since(start)
		logger.Log.Infof("%s%s%s %s %s%d%s %s(%v)%s",
			methodColor(req.Method), req.Method, colorReset,
			req.URL.Path,
			statusColor(lrw.statusCode), lrw.statusCode, colorReset,
			colorBlue, duration, colorReset,
		)
	})

	return r
}

// lookup returns the handler for an exact route, or else the most specific
// wildcard route matching path.
func (r *Router) lookup(method, path string) HandlerFunc {
	if h, ok := r.routes[method+":"+path]; ok {
		return h
	}

	var best HandlerFunc
	bestScore := -1
	for routePath := range r.paths {
		if !strings.Contains(routePath, "*") || !matchWildcardRoute(path, routePath) {
			continue
		}
		h, ok := r.routes[method+":"+routePath]
		if !ok {
			continue
		}
		if score := specificity(routePath); score > bestScore {
			best, bestScore = h, score
		}
	}
	return best
}

func (r *Router) pathExists(path string) bool {
	if r.paths[path] {
		return true
	}
	for routePath := range r.paths {
		if strings.Contains(routePath, "*") && matchWildcardRoute(path, routePath) {
			return true
		}
	}
	return false
}

// specificity ranks routes by literal segments; a trailing wildcard ranks below
// a segment wildcard.
func specificity(route string) int {
	score := 0
	segments := strings.Split(strings.Trim(route, "/"), "/")
	for i, s := range segments {
		switch {
		case s != "*":
			score += 4
		case i < len(segments)-1:
			score += 2
		}
	}
	return score
}

// matchWildcardRoute checks if a request path matches a wildcard route pattern
func matchWildcardRoute(requestPath, routePattern string) bool {
	requestSegments := strings.Split(strings.Trim(requestPath, "/"), "/")
	routeSegments := strings.Split(strings.Trim(routePattern, "/"), "/")

	// A trailing wildcard matches any number of remaining segments
	if len(routeSegments) > 0 && routeSegments[len(routeSegments)-1] == "*" {
		if len(requestSegments) < len(routeSegments)-1 {
			return false
		}
		for i := 0; i < len(routeSegments)-1; i++ {
			if routeSegments[i] != "*" && requestSegments[i] != routeSegments[i] {
				return false
			}
		}
		return true
	}

	if len(requestSegments) != len(routeSegments) {
		return false
	}
	for i, routeSegment := range routeSegments {
		if routeSegment == "*" {
			continue
		}
		if requestSegments[i] != routeSegment {
			return false
		}
	}
	return true
}

// --- Register paths ---
func (r *Router) register(method, path string, handler HandlerFunc) {
	key := method + ":" + path
	r.routes[key] = handler
	r.paths[path] = true
}

func (r *Router) GET(path string, handler HandlerFunc)   { r.register(http.MethodGet, path, handler) }
func (r *Router) POST(path string, handler HandlerFunc)  { r.register(http.MethodPost, path, handler) }
func (r *Router) PUT(path string, handler HandlerFunc)   { r.register(http.MethodPut, path, handler) }
func (r *Router) PATCH(path string, handler HandlerFunc) { r.register(http.MethodPatch, path, handler) }
func (r *Router) DELETE(path string, handler HandlerFunc) {
	r.register(http.MethodDelete, path, handler)
}

// Getter methods for testing
func (r *Router) Routes() map[string]HandlerFunc {
	return r.routes
}

func (r *Router) Paths() map[string]bool {
	return r.paths
}

// ServeHTTP makes the router usable as an http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// --- Start server ---

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (r *Router) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: r.mux}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Infof("🚀 Server started on %shttp://localhost%s%s", colorGreen, addr, colorReset)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Log.Info("🛑 Shutting down server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

// --- Logging response writer to capture status codes ---
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// --- Color helpers ---
func statusColor(code int) string {
	switch {
	case code >= 200 && code < 300:
		return colorGreen
	case code >= 300 && code < 400:
		return colorCyan
	case code >= 400 && code < 500:
		return colorYellow
	default:
		return colorRed
	}
}

func methodColor(method string) string {
	switch method {
	case http.MethodGet:
		return colorGreen
	case http.MethodPost:
		return colorBlue
	case http.MethodPut, http.MethodPatch:
		return colorYellow
	case http.MethodDelete:
		return colorRed
	default:
		return colorCyan
	}
}
