// Package server provides the HTTP API for the dashboard UI.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hydroview/hydroview/internal/model"
	"github.com/hydroview/hydroview/pkg/analytics"
	"github.com/hydroview/hydroview/pkg/cache"
	"github.com/hydroview/hydroview/pkg/config"
	"github.com/hydroview/hydroview/pkg/export"
	"github.com/hydroview/hydroview/pkg/loader"
	"github.com/hydroview/hydroview/pkg/segment"
	"github.com/hydroview/hydroview/pkg/source"
	"github.com/hydroview/hydroview/pkg/telemetry"
)

// Server handles HTTP requests for the dashboard.
type Server struct {
	cfg       *config.Config
	sequences source.Source
	segmenter *segment.Segmenter
	cache     *cache.Cache
	energy    *analytics.Energy
	broker    *SSEBroker
	loc       *time.Location

	mu       sync.RWMutex
	events   []model.Event
	mapping  *model.StateMapping
	loadedAt time.Time
	stream   string

	jobs sync.Map // jobID -> *ExportJob
	mux  *http.ServeMux
}

// ExportJob tracks a background export.
type ExportJob struct {
	ID        string     `json:"id"`
	Status    string     `json:"status"` // pending, running, completed, failed
	Format    string     `json:"format"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Rows      int        `json:"rows"`
	Error     string     `json:"error,omitempty"`

	path string // output file, unexported
}

// NewServer creates a new HTTP server over a sequence source.
func NewServer(cfg *config.Config, sequences source.Source, backend cache.Backend) (*Server, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	energy, err := analytics.NewEnergy(analytics.Options{})
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:       cfg,
		sequences: sequences,
		segmenter: segment.New(),
		cache:     cache.New(backend),
		energy:    energy,
		broker:    NewSSEBroker(),
		loc:       loc,
		stream:    cfg.Data.SequencesDir,
		mux:       http.NewServeMux(),
	}

	s.setupRoutes()
	return s, nil
}

// setupRoutes configures HTTP handlers.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/segments", s.handleSegments)
	s.mux.HandleFunc("/api/summary", s.handleSummary)
	s.mux.HandleFunc("/api/daily", s.handleDaily)
	s.mux.HandleFunc("/api/hourly", s.handleHourly)
	s.mux.HandleFunc("/api/transitions", s.handleTransitions)
	s.mux.HandleFunc("/api/energy", s.handleEnergy)
	s.mux.HandleFunc("/api/export", s.handleExport)
	s.mux.HandleFunc("/api/export/", s.handleExportJob)
	s.mux.HandleFunc("/api/events", s.broker.SSEHandler())
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// CORS headers for development
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	s.mux.ServeHTTP(w, r)
}

// Close releases resources.
func (s *Server) Close() error {
	s.cache.Close()
	return s.energy.Close()
}

// Reload loads the sequence exports and state table from the source,
// invalidates the cache, and notifies SSE subscribers.
func (s *Server) Reload(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, "server.reload")
	defer span.End()

	result, err := loader.LoadSequences(ctx, s.sequences)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}

	mapping, err := loader.LoadStates(ctx, s.sequences)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}

	s.mu.Lock()
	s.events = result.Events
	s.mapping = mapping
	s.loadedAt = time.Now()
	s.mu.Unlock()

	s.cache.InvalidateAll(ctx)
	s.broker.Publish("data", SSEEvent{
		Event: "reload",
		Data: map[string]interface{}{
			"events":     len(result.Events),
			"files":      result.Files,
			"dropped":    result.Dropped,
			"duplicates": result.Duplicates,
		},
	})
	return nil
}

// Broker returns the SSE broker, for wiring external notifiers.
func (s *Server) Broker() *SSEBroker {
	return s.broker
}

// segmentTable runs the segmentation for a selector, through the cache.
func (s *Server) segmentTable(ctx context.Context, opts segment.Options) ([]model.SegmentedEvent, error) {
	s.mu.RLock()
	events, mapping := s.events, s.mapping
	s.mu.RUnlock()

	if mapping == nil {
		return nil, fmt.Errorf("server: data not loaded")
	}

	key := cache.NewKey(s.stream, mapping, opts.Policy, opts.Include)
	return s.cache.GetOrCompute(ctx, key, func() ([]model.SegmentedEvent, error) {
		_, span := telemetry.StartSpan(ctx, "server.segment")
		defer span.End()
		return s.segmenter.Segment(events, mapping, opts)
	})
}

// selector reads policy, include, and date-range params from a request.
type selector struct {
	opts segment.Options
	from *model.Date
	to   *model.Date
}

func (s *Server) parseSelector(r *http.Request) (selector, error) {
	var sel selector
	sel.opts.Location = s.loc

	q := r.URL.Query()

	policy := q.Get("policy")
	if policy == "" {
		policy = s.cfg.Segment.Policy
	}
	p, err := segment.ParsePolicy(policy)
	if err != nil {
		return sel, err
	}
	sel.opts.Policy = p

	if include := q.Get("include"); include != "" {
		sel.opts.Include = make(map[model.Category]bool)
		for _, name := range strings.Split(include, ",") {
			c := model.Category(strings.TrimSpace(name))
			if !c.Valid() {
				return sel, fmt.Errorf("server: unknown category %q", name)
			}
			sel.opts.Include[c] = true
		}
	} else if !s.cfg.Segment.ShowManufacturing {
		sel.opts.Include = defaultInclude()
	}

	if sel.from, err = parseDate(q.Get("from")); err != nil {
		return sel, err
	}
	if sel.to, err = parseDate(q.Get("to")); err != nil {
		return sel, err
	}
	return sel, nil
}

// defaultInclude hides the factory-side categories the operators never
// look at.
func defaultInclude() map[model.Category]bool {
	return map[model.Category]bool{
		model.CategoryProduction:  true,
		model.CategoryMaintenance: true,
		model.CategorySystem:      true,
	}
}

func parseDate(v string) (*model.Date, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, fmt.Errorf("server: invalid date %q", v)
	}
	d := model.DateOf(t)
	return &d, nil
}

// filterRange keeps rows whose date falls inside the selector's range.
func filterRange(table []model.SegmentedEvent, sel selector) []model.SegmentedEvent {
	if sel.from == nil && sel.to == nil {
		return table
	}
	out := make([]model.SegmentedEvent, 0, len(table))
	for _, row := range table {
		if sel.from != nil && row.Date.Before(*sel.from) {
			continue
		}
		if sel.to != nil && sel.to.Before(row.Date) {
			continue
		}
		out = append(out, row)
	}
	return out
}

// table resolves the selector from the request and returns the filtered
// segmented table.
func (s *Server) table(w http.ResponseWriter, r *http.Request) ([]model.SegmentedEvent, bool) {
	sel, err := s.parseSelector(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}

	rows, err := s.segmentTable(r.Context(), sel.opts)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	return filterRange(rows, sel), true
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	loadedAt := s.loadedAt
	events := len(s.events)
	s.mu.RUnlock()

	jsonResponse(w, map[string]interface{}{
		"status":    "ok",
		"events":    events,
		"loaded_at": loadedAt,
	})
}

func (s *Server) handleSegments(w http.ResponseWriter, r *http.Request) {
	rows, ok := s.table(w, r)
	if !ok {
		return
	}
	jsonResponse(w, rows)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	rows, ok := s.table(w, r)
	if !ok {
		return
	}
	jsonResponse(w, segment.Summarize(rows))
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	rows, ok := s.table(w, r)
	if !ok {
		return
	}

	type entry struct {
		Date     model.Date     `json:"date"`
		Category model.Category `json:"category"`
		Minutes  float64        `json:"minutes"`
	}

	dist := segment.DailyDistribution(rows)
	out := make([]entry, 0, len(dist))
	for key, minutes := range dist {
		out = append(out, entry{Date: key.Date, Category: key.Category, Minutes: minutes})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Category < out[j].Category
	})
	jsonResponse(w, out)
}

func (s *Server) handleHourly(w http.ResponseWriter, r *http.Request) {
	rows, ok := s.table(w, r)
	if !ok {
		return
	}

	type entry struct {
		Hour     int            `json:"hour"`
		Category model.Category `json:"category"`
		Percent  float64        `json:"percent"`
	}

	pattern := segment.HourlyPattern(rows)
	out := make([]entry, 0, len(pattern))
	for key, percent := range pattern {
		out = append(out, entry{Hour: key.Hour, Category: key.Category, Percent: percent})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Hour != out[j].Hour {
			return out[i].Hour < out[j].Hour
		}
		return out[i].Category < out[j].Category
	})
	jsonResponse(w, out)
}

func (s *Server) handleTransitions(w http.ResponseWriter, r *http.Request) {
	rows, ok := s.table(w, r)
	if !ok {
		return
	}

	type entry struct {
		From  model.Category `json:"from"`
		To    model.Category `json:"to"`
		Count int            `json:"count"`
	}

	counts := segment.TransitionCounts(rows)
	out := make([]entry, 0, len(counts))
	for key, count := range counts {
		out = append(out, entry{From: key.From, To: key.To, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	jsonResponse(w, out)
}

func (s *Server) handleEnergy(w http.ResponseWriter, r *http.Request) {
	pattern := filepath.Join(s.cfg.Data.TelemetryDir, "Telemetry *.csv")
	report, err := s.energy.Report(r.Context(), pattern)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, report)
}

// handleExport starts a background export and returns a job ID.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	format := r.URL.Query().Get("format")
	if format != "xlsx" && format != "parquet" {
		jsonError(w, "format must be xlsx or parquet", http.StatusBadRequest)
		return
	}

	sel, err := s.parseSelector(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	job := &ExportJob{
		ID:        uuid.NewString(),
		Status:    "pending",
		Format:    format,
		StartTime: time.Now(),
	}
	s.jobs.Store(job.ID, job)

	go s.runExport(job, sel)

	jsonResponse(w, map[string]string{
		"job_id": job.ID,
		"status": "started",
	})
}

// runExport performs the actual export.
func (s *Server) runExport(job *ExportJob, sel selector) {
	job.Status = "running"

	fail := func(err error) {
		job.Status = "failed"
		job.Error = err.Error()
		now := time.Now()
		job.EndTime = &now
		s.broker.Publish(job.ID, SSEEvent{Event: "error", Data: job})
	}

	rows, err := s.segmentTable(context.Background(), sel.opts)
	if err != nil {
		fail(err)
		return
	}
	rows = filterRange(rows, sel)

	out, err := os.CreateTemp("", "hydroview-export-*."+job.Format)
	if err != nil {
		fail(err)
		return
	}
	defer out.Close()

	switch job.Format {
	case "parquet":
		err = export.WriteParquet(out, rows)
	default:
		err = export.WriteXLSX(out, rows)
	}
	if err != nil {
		os.Remove(out.Name())
		fail(err)
		return
	}

	job.path = out.Name()
	job.Rows = len(rows)
	job.Status = "completed"
	now := time.Now()
	job.EndTime = &now
	s.broker.Publish(job.ID, SSEEvent{Event: "complete", Data: job})
}

// handleExportJob returns job status, or the file itself under
// /api/export/{id}/download.
func (s *Server) handleExportJob(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/export/")
	jobID, action, _ := strings.Cut(rest, "/")
	if jobID == "" {
		jsonError(w, "Job ID required", http.StatusBadRequest)
		return
	}

	v, ok := s.jobs.Load(jobID)
	if !ok {
		jsonError(w, "Job not found", http.StatusNotFound)
		return
	}
	job := v.(*ExportJob)

	if action != "download" {
		jsonResponse(w, job)
		return
	}

	if job.Status != "completed" {
		jsonError(w, "Export not completed", http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "segments."+job.Format))
	http.ServeFile(w, r, job.path)
}

// Helper functions

func jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
