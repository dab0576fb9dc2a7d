// Package server serves the run history over HTTP.
package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/yuin/goldmark"

	"github.com/TobiSchelling/MarketBrief/internal/database"
	"github.com/TobiSchelling/MarketBrief/internal/document"
	"github.com/TobiSchelling/MarketBrief/internal/metrics"
	"github.com/TobiSchelling/MarketBrief/internal/pipeline"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

const recentRuns = 50

// Runner executes one pipeline run.
type Runner func(ctx context.Context) *pipeline.Result

// Options configure a Server.
type Options struct {
	// Runner enables POST /runs. Nil disables triggering.
	Runner  Runner
	Metrics *metrics.Recorder
	Log     logrus.FieldLogger
}

// Server is the HTTP server for browsing runs.
type Server struct {
	db      *database.DB
	pages   map[string]*template.Template
	router  chi.Router
	runner  Runner
	metrics *metrics.Recorder
	log     logrus.FieldLogger

	// runMu serializes triggered runs.
	runMu sync.Mutex
}

// New creates a new Server.
func New(db *database.DB, opts Options) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown":  renderMarkdown,
		"brief":     renderBrief,
		"timestamp": func(t time.Time) string { return t.Local().Format("Jan 02, 2006 15:04") },
		"duration":  func(d time.Duration) string { return d.Round(time.Second).String() },
	}

	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone of base so "title" and "content" do not clash.
	pageNames := []string{"index.html", "run.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+name); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	log := opts.Log
	if log == nil {
		log = logrus.New()
	}
	s := &Server{
		db:      db,
		pages:   pages,
		runner:  opts.Runner,
		metrics: opts.Metrics,
		log:     log.WithField("component", "server"),
	}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	staticSub, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", s.metrics.Handler())
	r.Post("/runs", s.handleTrigger)
	r.Get("/runs/{id}", s.handleRun)
	r.Get("/runs/{id}/pdf", s.handlePDF)

	s.router = r
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	runs, err := s.db.GetRecentRuns(recentRuns)
	if err != nil {
		s.log.WithError(err).Error("listing runs")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	stats, err := s.db.GetStats()
	if err != nil {
		s.log.WithError(err).Error("loading stats")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.render(w, "index.html", map[string]any{
		"Runs":       runs,
		"Stats":      stats,
		"CanTrigger": s.runner != nil,
	})
}

type translationView struct {
	Code     string
	Language string
	Content  string
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.db.GetRun(chi.URLParam(r, "id"))
	if err != nil {
		s.log.WithError(err).Error("loading run")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.NotFound(w, r)
		return
	}

	s.render(w, "run.html", map[string]any{
		"Run":          run,
		"Translations": decodeTranslations(run.Translations),
	})
}

func (s *Server) handlePDF(w http.ResponseWriter, r *http.Request) {
	run, err := s.db.GetRun(chi.URLParam(r, "id"))
	if err != nil || run == nil || run.PDFPath == "" {
		http.NotFound(w, r)
		return
	}
	if _, err := os.Stat(run.PDFPath); err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	http.ServeFile(w, r, run.PDFPath)
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		http.Error(w, "Run triggering is disabled", http.StatusServiceUnavailable)
		return
	}
	if !s.runMu.TryLock() {
		http.Error(w, "A run is already in progress", http.StatusConflict)
		return
	}
	defer s.runMu.Unlock()

	// The run outlives a disconnecting client.
	res := s.runner(context.WithoutCancel(r.Context()))
	if res == nil || res.RunID == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/runs/"+res.RunID, http.StatusSeeOther)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		s.log.WithField("template", name).Error("template not found")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		s.log.WithField("template", name).WithError(err).Error("rendering template")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeTranslations(raw string) []translationView {
	var m map[string]struct {
		Language string `json:"language"`
		Content  string `json:"content"`
	}
	if raw == "" || json.Unmarshal([]byte(raw), &m) != nil {
		return nil
	}
	out := make([]translationView, 0, len(m))
	for code, t := range m {
		out = append(out, translationView{Code: code, Language: t.Language, Content: t.Content})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// renderBrief renders a formatted summary, turning chart markers into
// inline markdown images.
func renderBrief(text string) template.HTML {
	var sb strings.Builder
	for _, seg := range document.SplitMarkers(text) {
		if !seg.Marker {
			sb.WriteString(seg.Text)
			continue
		}
		head, url, _ := strings.Cut(seg.Text, "\n")
		title := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(head, "[Chart:"), "]"))
		if url == "" {
			fmt.Fprintf(&sb, "*%s*", head)
			continue
		}
		fmt.Fprintf(&sb, "![%s](%s)", title, strings.TrimSpace(url))
	}
	return renderMarkdown(sb.String())
}

// Serve starts the HTTP server on the given port and shuts it down when ctx
// is cancelled.
func Serve(ctx context.Context, db *database.DB, port int, opts Options) error {
	srv, err := New(db, opts)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		srv.log.WithField("addr", "http://"+httpServer.Addr).Info("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	srv.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
