package preview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"git.home.luguber.info/inful/pxbuild/internal/artifact"
	"git.home.luguber.info/inful/pxbuild/internal/build"
	"git.home.luguber.info/inful/pxbuild/internal/config"
	"git.home.luguber.info/inful/pxbuild/internal/logfields"
)

// statusTracker remembers the outcome of the most recent build.
type statusTracker struct {
	mu        sync.RWMutex
	last      *build.Result
	builds    int
	failures  int
	startTime time.Time
}

func (st *statusTracker) record(res *build.Result, err error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.builds++
	if err != nil {
		st.failures++
	}
	if res != nil {
		st.last = res
	}
}

// Status is the JSON document served at /status.
type Status struct {
	Mode        string             `json:"mode"`
	Uptime      string             `json:"uptime"`
	Builds      int                `json:"builds"`
	Failures    int                `json:"failures"`
	HasArtifact bool               `json:"has_artifact"`
	Artifact    *artifact.Metadata `json:"artifact,omitempty"`
	LastBuild   *build.Result      `json:"last_build,omitempty"`
}

// Server exposes the cached artifact and build controls over HTTP.
type Server struct {
	retriever artifact.Retriever
	rebuilder *Rebuilder
	hub       *LiveReloadHub
	metrics   http.Handler
	mode      config.BuildMode
	status    *statusTracker
	mux       *http.ServeMux

	httpServer *http.Server
}

// NewServer wires the HTTP handlers. metrics may be nil.
func NewServer(retriever artifact.Retriever, rebuilder *Rebuilder, hub *LiveReloadHub, metrics http.Handler, mode config.BuildMode) *Server {
	s := &Server{
		retriever: retriever,
		rebuilder: rebuilder,
		hub:       hub,
		metrics:   metrics,
		mode:      mode,
		status:    &statusTracker{startTime: time.Now()},
		mux:       http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /{$}", s.handleShell)
	s.mux.HandleFunc("GET /index.js", s.handleCode)
	s.mux.HandleFunc("GET /index.js.map", s.handleMap)
	s.mux.HandleFunc("POST /build", s.handleBuild)
	s.mux.HandleFunc("GET /status", s.handleStatus)
	s.mux.Handle("GET /livereload", hub)
	if metrics != nil {
		s.mux.Handle("GET /metrics", metrics)
	}
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Record updates /status and notifies live-reload clients of new artifacts.
// It is the Rebuilder's result callback. A build that published before its
// sink write failed is already being served, so clients are still notified.
func (s *Server) Record(res *build.Result, err error) {
	s.status.record(res, err)
	if err != nil {
		slog.Warn("rebuild failed", logfields.Error(err), slog.Bool("published", res.Published()))
	}
	if res.Published() {
		s.hub.Broadcast(res.BuildID)
	}
}

// Start begins serving on ln.
func (s *Server) Start(ln net.Listener) {
	s.httpServer = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Preview server error", logfields.Error(err))
		}
	}()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.hub.Shutdown()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

var shellTemplate = template.Must(template.New("shell").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>pxbuild preview ({{.Mode}})</title>
</head>
<body>
<div id="app"></div>
<script type="module" src="/index.js"></script>
<script>
new EventSource("/livereload").onmessage = function (e) {
  if (e.data !== {{.BuildID}}) { location.reload(); }
};
</script>
</body>
</html>
`))

func (s *Server) handleShell(w http.ResponseWriter, _ *http.Request) {
	var buildID string
	if a, ok := s.retriever.Retrieve(); ok {
		buildID = a.BuildID
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := shellTemplate.Execute(w, struct{ Mode, BuildID string }{string(s.mode), buildID}); err != nil {
		slog.Debug("shell render", logfields.Error(err))
	}
}

func (s *Server) current(w http.ResponseWriter) (*artifact.Artifact, bool) {
	a, ok := s.retriever.Retrieve()
	if !ok {
		w.Header().Set("Retry-After", "1")
		http.Error(w, "no build has completed yet", http.StatusServiceUnavailable)
		return nil, false
	}
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Pxbuild-Build", a.BuildID)
	return a, true
}

func (s *Server) handleCode(w http.ResponseWriter, _ *http.Request) {
	a, ok := s.current(w)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(a.Code)))
	_, _ = w.Write([]byte(a.Code))
}

func (s *Server) handleMap(w http.ResponseWriter, _ *http.Request) {
	a, ok := s.current(w)
	if !ok {
		return
	}
	if !a.HasSourceMap() {
		http.Error(w, fmt.Sprintf("%s builds have no source map", a.Mode), http.StatusNotFound)
		return
	}
	data, err := a.SourceMap.JSON()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(data))
}

func (s *Server) handleBuild(w http.ResponseWriter, _ *http.Request) {
	s.rebuilder.Request()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.status.mu.RLock()
	st := Status{
		Mode:      string(s.mode),
		Uptime:    time.Since(s.status.startTime).Round(time.Second).String(),
		Builds:    s.status.builds,
		Failures:  s.status.failures,
		LastBuild: s.status.last,
	}
	s.status.mu.RUnlock()

	if a, ok := s.retriever.Retrieve(); ok {
		meta := a.Meta()
		st.HasArtifact = true
		st.Artifact = &meta
	}
	writeJSON(w, http.StatusOK, st)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		slog.Debug("json encode", logfields.Error(err))
	}
}
