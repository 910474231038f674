// Package devserver is an in-memory stand-in for the readiness backend. It
// serves the REST surface the client consumes with fixed fixture data, and
// lets tests inject failures and count requests.
package devserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// DefaultWeek is the latest week the fixtures report.
const DefaultWeek = "2026-W05"

// Platoons are the fixture platoons.
var Platoons = []string{"כפיר", "סופה", "מחץ"}

// Options configure the stub backend.
type Options struct {
	// Token is the only accepted bearer token. Empty disables authentication.
	Token string
	// LoginEmail and LoginPlatoon are handed back by the dev login redirect.
	LoginEmail   string
	LoginPlatoon string
	Version      string
	// Latency delays every response.
	Latency     time.Duration
	CORSOptions *cors.Options
	// LogRequests enables chi's request logger.
	LogRequests bool
}

type failure struct {
	status int
	detail string
}

// Server is the stub backend. It is safe for concurrent use.
type Server struct {
	opts Options

	mu       sync.Mutex
	hits     map[string]int
	failures map[string]failure
	syncs    []string
	imports  map[string][]byte
}

// New creates a stub backend.
func New(opts Options) *Server {
	if opts.Version == "" {
		opts.Version = "dev"
	}
	return &Server{
		opts:     opts,
		hits:     make(map[string]int),
		failures: make(map[string]failure),
		imports:  make(map[string][]byte),
	}
}

// DefaultCORSOptions allows a local dashboard to call the stub.
func DefaultCORSOptions() cors.Options {
	return cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173",
			"http://127.0.0.1:5173",
		},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Session-Id", "X-Request-Id"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

// Router assembles the chi router.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if s.opts.LogRequests {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	corsCfg := DefaultCORSOptions()
	if s.opts.CORSOptions != nil {
		corsCfg = *s.opts.CORSOptions
	}
	r.Use(cors.Handler(corsCfg))
	r.Use(s.record)

	r.Get("/health", s.handleHealth)
	r.Get("/auth/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Get("/sync/status", s.handleSyncStatus)
		r.Post("/sync/google", s.handleSync)
		r.Post("/imports/{kind}", s.handleImport)

		r.Route("/queries", func(r chi.Router) {
			r.Get("/forms/summary", s.handleSummary)
			r.Get("/forms/coverage", s.handleCoverage)
			r.Get("/forms/status", s.handleFormsStatus)
			r.Get("/tabular/{kind}", s.handleTabular)
			r.Get("/trends", s.handleTrends)
		})
		r.Get("/insights", s.handleInsights)

		r.Route("/intelligence", func(r chi.Router) {
			r.Get("/battalion", s.handleBattalionIntel)
			r.Get("/platoon/{platoon}", s.handlePlatoonIntel)
			r.Get("/tank/{tankID}", s.handleTankIntel)
		})

		r.Get("/exports/{kind}", s.handleExport)
	})

	return r
}

// Fail makes every request to path answer status with detail until
// cleared with Fail(path, 0, "").
func (s *Server) Fail(path string, status int, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, path)
		return
	}
	s.failures[path] = failure{status: status, detail: detail}
}

// Hits returns how many requests reached path.
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// SyncTargets returns the targets of every sync request, in order.
func (s *Server) SyncTargets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.syncs...)
}

// Imported returns the last upload for kind.
func (s *Server) Imported(kind string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.imports[kind]
	return data, ok
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		fail, failing := s.failures[r.URL.Path]
		s.mu.Unlock()

		if s.opts.Latency > 0 {
			select {
			case <-time.After(s.opts.Latency):
			case <-r.Context().Done():
				return
			}
		}
		if failing {
			writeError(w, fail.status, fail.detail)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Token != "" && r.Header.Get("Authorization") != "Bearer "+s.opts.Token {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"version": s.opts.Version})
}

// handleLogin is a dev login: it immediately redirects to redirect_uri
// with the landing parameters a real provider round trip would produce.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	redirect, err := url.Parse(r.URL.Query().Get("redirect_uri"))
	if err != nil || redirect.Host == "" {
		writeError(w, http.StatusBadRequest, "redirect_uri is required")
		return
	}
	token := s.opts.Token
	if token == "" {
		token = "dev-token"
	}
	q := redirect.Query()
	q.Set("token", token)
	q.Set("session", "dev-session")
	if s.opts.LoginEmail != "" {
		q.Set("email", s.opts.LoginEmail)
	}
	if s.opts.LoginPlatoon != "" {
		q.Set("platoon", s.opts.LoginPlatoon)
	}
	redirect.RawQuery = q.Encode()
	http.Redirect(w, r, redirect.String(), http.StatusFound)
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	last := len(s.syncs)
	s.mu.Unlock()

	var lastSync any
	if last > 0 {
		lastSync = "2026-02-01T08:00:00Z"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled": true,
		"files": map[string]any{
			"form_responses": map[string]any{"status": "ok", "last_sync": lastSync, "source": "google", "etag": fmt.Sprintf("v%d", last)},
			"tank_inventory": map[string]any{"status": "ok", "last_sync": lastSync, "source": "google", "etag": fmt.Sprintf("v%d", last)},
		},
	})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("target")
	if target == "" {
		writeError(w, http.StatusBadRequest, "target is required")
		return
	}
	s.mu.Lock()
	s.syncs = append(s.syncs, target)
	s.mu.Unlock()

	targets := []string{target}
	if target == "all" {
		targets = Platoons
	}
	result := make(map[string]any, len(targets))
	for _, t := range targets {
		result[t] = map[string]int{"inserted": 4, "updated": 2}
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	s.imports[kind] = data
	s.mu.Unlock()

	inserted := 1
	var rows []any
	if json.Unmarshal(data, &rows) == nil {
		inserted = len(rows)
	}
	writeJSON(w, http.StatusOK, map[string]int{"inserted": inserted})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("mode")
	week := weekOf(r)

	switch mode {
	case "platoon":
		platoon := q.Get("platoon")
		if platoon == "" {
			writeError(w, http.StatusBadRequest, "platoon is required in platoon mode")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"mode": mode, "week": week, "platoon": platoon,
			"summary": map[string]any{"tanks": 11, "reported": 9, "readiness": 81.5},
		})
	default:
		platoons := make(map[string]any, len(Platoons))
		for i, p := range Platoons {
			platoons[p] = map[string]any{"tanks": 11, "reported": 11 - i, "readiness": 90 - 8*i}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"mode": "battalion", "week": week,
			"summary":  map[string]any{"tanks": 33, "reported": 30, "readiness": 82},
			"platoons": platoons,
		})
	}
}

func (s *Server) handleCoverage(w http.ResponseWriter, r *http.Request) {
	platoons := make(map[string]any, len(Platoons))
	for i, p := range Platoons {
		platoons[p] = map[string]any{"forms": 11 - i, "distinct_tanks": 11 - i, "expected_tanks": 11, "last_seen": "2026-02-01T07:30:00Z"}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"week":      weekOf(r),
		"platoons":  platoons,
		"anomalies": []any{map[string]any{"platoon": "מחץ", "reason": "2 tanks missing", "severity": "warning"}},
	})
}

func (s *Server) handleFormsStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   []any{map[string]any{"tank_id": "צ-101", "platoon": "כפיר"}},
		"gaps": []any{map[string]any{"tank_id": "צ-305", "platoon": "מחץ", "missing": "week form"}},
	})
}

func (s *Server) handleTabular(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	switch kind {
	case "totals", "gaps", "delta", "variance":
	default:
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown tabular query %q", kind))
		return
	}
	writeJSON(w, http.StatusOK, rows(r, kind))
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rows(r, "trend"))
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	section := r.URL.Query().Get("section")
	if section == "" {
		section = "all sections"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"content": fmt.Sprintf("Readiness in %s is stable; optics gaps persist in מחץ.", section),
		"source":  "fixture",
		"cached":  false,
	})
}

func (s *Server) handleBattalionIntel(w http.ResponseWriter, r *http.Request) {
	platoons := make(map[string]any, len(Platoons))
	for i, p := range Platoons {
		platoons[p] = platoonIntel(p, weekOf(r), 90-8*float64(i))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"week":            weekOf(r),
		"battalion_score": 82.0,
		"platoons":        platoons,
		"top_gaps":        []string{"optics", "radio"},
	})
}

func (s *Server) handlePlatoonIntel(w http.ResponseWriter, r *http.Request) {
	platoon := chi.URLParam(r, "platoon")
	for i, p := range Platoons {
		if p == platoon {
			writeJSON(w, http.StatusOK, platoonIntel(p, weekOf(r), 90-8*float64(i)))
			return
		}
	}
	writeError(w, http.StatusNotFound, fmt.Sprintf("unknown platoon %q", platoon))
}

func (s *Server) handleTankIntel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"tank_id":         chi.URLParam(r, "tankID"),
		"score":           "77.5",
		"grade":           "C",
		"critical_gaps":   []string{"optics"},
		"category_scores": map[string]any{"armament": 80, "communication": 75},
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	name := fmt.Sprintf("%s-%s.xlsx", kind, weekOf(r))
	if kind == "platoon" {
		if r.URL.Query().Get("platoon") == "" {
			writeError(w, http.StatusBadRequest, "platoon is required")
			return
		}
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	_, _ = w.Write([]byte("PK\x03\x04 fixture spreadsheet"))
}

func platoonIntel(platoon, week string, score float64) map[string]any {
	tanks := make([]any, 0, 3)
	for i := 1; i <= 3; i++ {
		tanks = append(tanks, map[string]any{
			"tank_id": fmt.Sprintf("צ-%d0%d", len(platoon)%9+1, i),
			"score":   score - float64(i),
		})
	}
	return map[string]any{
		"platoon":         platoon,
		"week":            week,
		"readiness_score": score,
		"tanks":           tanks,
		"critical_items":  []string{"optics"},
	}
}

func rows(r *http.Request, kind string) []map[string]any {
	q := r.URL.Query()
	platoons := Platoons
	if p := q.Get("platoon"); p != "" {
		platoons = []string{p}
	}
	items := []string{"optics", "radio", "tracks", "armament", "fuel", "medical"}
	limit := len(items)
	if n := q.Get("top_n"); n != "" {
		var v int
		if _, err := fmt.Sscanf(n, "%d", &v); err == nil && v > 0 && v < limit {
			limit = v
		}
	}

	out := make([]map[string]any, 0, limit*len(platoons))
	for _, p := range platoons {
		for i, item := range items[:limit] {
			out = append(out, map[string]any{"platoon": p, "item": item, kind: 10 - i, "section": q.Get("section")})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.Compare(out[i]["item"].(string), out[j]["item"].(string)) < 0
	})
	return out
}

func weekOf(r *http.Request) string {
	if week := r.URL.Query().Get("week"); week != "" {
		return week
	}
	return DefaultWeek
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
