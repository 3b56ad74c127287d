// Package inspector serves recorded verification runs over HTTP.
package inspector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/cgast/veriq/internal/export"
	"github.com/cgast/veriq/internal/history"
	"github.com/cgast/veriq/pkg/events"
)

// Server is the read-only inspector HTTP server.
type Server struct {
	store     history.Store
	bus       *events.MemoryBus
	logger    *zap.Logger
	mux       *http.ServeMux
	startTime time.Time
}

// New creates a new inspector server. Events published on bus are streamed
// to /api/events clients.
func New(store history.Store, bus *events.MemoryBus, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bus == nil {
		bus = events.NewMemoryBus(0)
	}
	s := &Server{
		store:     store,
		bus:       bus,
		logger:    logger,
		mux:       http.NewServeMux(),
		startTime: time.Now(),
	}

	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/runs", s.handleRuns)
	s.mux.HandleFunc("GET /api/runs/{ref}", s.handleRun)
	s.mux.HandleFunc("GET /api/runs/{ref}/export", s.handleExport)
	s.mux.HandleFunc("GET /api/diff", s.handleDiff)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	return s
}

// Watch polls the store every interval and publishes a run.recorded event
// for each run recorded after since. It returns when ctx is done.
func (s *Server) Watch(ctx context.Context, since time.Time, interval time.Duration) error {
	seen := make(map[string]bool)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		runs, err := s.store.List()
		if err != nil {
			s.logger.Warn("polling history failed", zap.Error(err))
			continue
		}
		for _, r := range runs {
			if seen[r.ID] || !r.RecordedAt.After(since) {
				continue
			}
			seen[r.ID] = true
			s.bus.Publish(events.NewEvent(events.EventRunRecorded, r))
		}
	}
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("inspector listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.List()
	if err != nil {
		s.fail(w, err)
		return
	}
	failed := 0
	for _, run := range runs {
		if !run.Verified {
			failed++
		}
	}
	status := map[string]any{
		"uptime": time.Since(s.startTime).Round(time.Second).String(),
		"runs":   len(runs),
		"failed": failed,
	}
	if len(runs) > 0 {
		status["latest"] = runs[len(runs)-1]
	}
	writeJSON(w, status)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.List()
	if err != nil {
		s.fail(w, err)
		return
	}
	if runs == nil {
		runs = []history.Info{}
	}
	writeJSON(w, runs)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.Get(r.PathValue("ref"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, run)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.Get(r.PathValue("ref"))
	if err != nil {
		s.fail(w, err)
		return
	}
	format := export.FormatTOML
	contentType := "application/toml"
	if r.URL.Query().Get("format") == string(export.FormatJSON) {
		format, contentType = export.FormatJSON, "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	if err := export.Write(w, run.Report, format); err != nil {
		s.logger.Warn("export failed", zap.String("run", run.ID), zap.Error(err))
	}
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	a, b := q.Get("a"), q.Get("b")
	if a == "" || b == "" {
		http.Error(w, "query parameters a and b are required", http.StatusBadRequest)
		return
	}
	changes, err := history.DiffRuns(s.store, a, b)
	if err != nil {
		s.fail(w, err)
		return
	}
	if changes == nil {
		changes = []history.Change{}
	}
	writeJSON(w, changes)
}

// handleEvents streams bus events as Server-Sent Events: the retained
// history first, then live events. ?type= restricts the event types.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	var filter []events.EventType
	for _, t := range r.URL.Query()["type"] {
		filter = append(filter, events.EventType(t))
	}
	ch := s.bus.Subscribe(filter...)
	defer s.bus.Unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	wanted := make(map[events.EventType]bool, len(filter))
	for _, t := range filter {
		wanted[t] = true
	}
	for _, ev := range s.bus.History(time.Time{}) {
		if len(wanted) == 0 || wanted[ev.Type] {
			writeEvent(w, ev)
		}
	}
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			writeEvent(w, ev)
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, ev events.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, history.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.logger.Warn("inspector request failed", zap.Error(err))
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	json.NewEncoder(w).Encode(data)
}
