package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"modelprobe/internal/history"
	"modelprobe/internal/metrics"
	"modelprobe/internal/models"
	"modelprobe/internal/storage"
)

const defaultReportLimit = 200

// ReportSource is the read side of the report storage.
type ReportSource interface {
	List() ([]string, error)
	Load(name string) (models.SweepReport, error)
	Latest() (models.SweepReport, error)
}

// Server wraps HTTP serving of the report API, the live feed and metrics.
type Server struct {
	httpServer  *http.Server
	reports     ReportSource
	hub         *Hub
	metrics     http.Handler
	reportLimit int
}

// New creates a configured HTTP server. metricsHandler may be nil.
func New(addr string, reports ReportSource, hub *Hub, metricsHandler http.Handler) *Server {
	router := mux.NewRouter()
	s := &Server{
		httpServer:  &http.Server{Addr: addr, Handler: router},
		reports:     reports,
		hub:         hub,
		metrics:     metricsHandler,
		reportLimit: defaultReportLimit,
	}
	s.registerRoutes(router)
	return s
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Listen binds the configured address so that bind errors surface before
// any work starts.
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	return ln, nil
}

// Serve blocks and serves HTTP traffic on ln.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts the server down and disconnects feed clients.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Close()
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes(r *mux.Router) {
	r.HandleFunc("/api/report/latest", s.handleLatest).Methods(http.MethodGet)
	r.HandleFunc("/api/reports", s.handleReports).Methods(http.MethodGet)
	r.HandleFunc("/api/reports/{name}", s.handleReport).Methods(http.MethodGet)
	r.HandleFunc("/api/reliability", s.handleReliability).Methods(http.MethodGet)
	r.HandleFunc("/api/timeline", s.handleTimeline).Methods(http.MethodGet)
	if s.hub != nil {
		r.Handle("/ws/sweep", s.hub).Methods(http.MethodGet)
	}
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}
}

func (s *Server) handleLatest(w http.ResponseWriter, _ *http.Request) {
	report, err := s.reports.Latest()
	if errors.Is(err, storage.ErrNoReports) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	names, err := s.recentNames(parseLimit(r, s.reportLimit))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": names})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	names, err := s.reports.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	for _, candidate := range names {
		if candidate != name {
			continue
		}
		report, err := s.reports.Load(name)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
		return
	}
	writeError(w, http.StatusNotFound, errors.New("report not found"))
}

func (s *Server) handleReliability(w http.ResponseWriter, r *http.Request) {
	reports, err := s.recentReports(parseLimit(r, s.reportLimit))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sweeps":  len(reports),
		"targets": metrics.ComputeTargetReliability(reports),
	})
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, history.DefaultTimelinePoints)
	reports, err := s.recentReports(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sweeps":  len(reports),
		"targets": history.BuildTargetTimelines(reports, limit),
	})
}

// recentReports loads at most limit reports, oldest first. Unreadable files
// are skipped.
func (s *Server) recentReports(limit int) ([]models.SweepReport, error) {
	names, err := s.recentNames(limit)
	if err != nil {
		return nil, err
	}
	reports := make([]models.SweepReport, 0, len(names))
	for _, name := range names {
		report, err := s.reports.Load(name)
		if err != nil {
			continue
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// recentNames returns at most limit report names, newest last.
func (s *Server) recentNames(limit int) ([]string, error) {
	names, err := s.reports.List()
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	if limit > 0 && len(names) > limit {
		names = names[len(names)-limit:]
	}
	return names, nil
}

func parseLimit(r *http.Request, fallback int) int {
	if fallback <= 0 {
		return fallback
	}
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	if value > fallback {
		return fallback
	}
	return value
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
