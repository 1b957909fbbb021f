// Package cmsmock is an in-memory stand-in for the hosted content API. It
// backs the end-to-end tests and the mock-server command.
package cmsmock

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/agentic-research/blocktree/api"
)

// Write is one accepted or rejected write request.
type Write struct {
	Method string
	PageID string
	Status int
}

type failure struct {
	status  int
	message string
}

// Server serves GET /page, PATCH /page/{id} and PUT /page/{id}.
type Server struct {
	router     chi.Router
	apiKey     string
	privateKey string
	log        *slog.Logger
	now        func() time.Time

	mu       sync.Mutex
	order    []string
	pages    map[string]api.Page
	failures map[string]failure
	writes   []Write
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the time source used for lastUpdated.
func WithClock(now func() time.Time) Option { return func(s *Server) { s.now = now } }

// New returns a server that accepts apiKey on reads and privateKey on writes.
func New(apiKey, privateKey string, pages []api.Page, opts ...Option) *Server {
	s := &Server{
		apiKey:     apiKey,
		privateKey: privateKey,
		log:        slog.Default(),
		now:        time.Now,
		pages:      make(map[string]api.Page),
		failures:   make(map[string]failure),
	}
	for _, o := range opts {
		o(s)
	}
	for _, p := range pages {
		s.Put(p)
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.log))

	r.With(s.readAuth).Get("/page", s.handleList)
	r.Group(func(r chi.Router) {
		r.Use(s.writeAuth)
		r.Patch("/page/{pageID}", s.handleTitle)
		r.Put("/page/{pageID}", s.handleBlocks)
	})
	s.router = r
}

// Put inserts or replaces a page.
func (s *Server) Put(p api.Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pages[p.ID]; !ok {
		s.order = append(s.order, p.ID)
	}
	s.pages[p.ID] = p
}

// Page returns the stored page.
func (s *Server) Page(id string) (api.Page, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[id]
	return p, ok
}

// Fail makes writes to pageID answer with status and message until Recover.
func (s *Server) Fail(pageID string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[pageID] = failure{status: status, message: message}
}

// Recover clears a failure set by Fail.
func (s *Server) Recover(pageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, pageID)
}

// Writes returns every write request seen so far.
func (s *Server) Writes() []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Write(nil), s.writes...)
}

func (s *Server) readAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !keyMatches(r.URL.Query().Get("apiKey"), s.apiKey) {
			jsonError(w, "invalid api key", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			jsonError(w, "missing authorization", http.StatusUnauthorized)
			return
		}
		if !keyMatches(strings.TrimPrefix(auth, "Bearer "), s.privateKey) {
			jsonError(w, "invalid private key", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func keyMatches(got, want string) bool {
	return want != "" && subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit := -1
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			jsonError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	s.mu.Lock()
	results := make([]api.Page, 0, len(s.order))
	for _, id := range s.order {
		if limit >= 0 && len(results) == limit {
			break
		}
		results = append(results, s.pages[id])
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, api.ListResponse{Results: results})
}

// begin records a write and returns the target page, or answers the request
// itself and returns false.
func (s *Server) begin(w http.ResponseWriter, r *http.Request) (api.Page, bool) {
	id := chi.URLParam(r, "pageID")
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := Write{Method: r.Method, PageID: id, Status: http.StatusOK}
	defer func() { s.writes = append(s.writes, rec) }()

	if f, ok := s.failures[id]; ok {
		rec.Status = f.status
		jsonError(w, f.message, f.status)
		return api.Page{}, false
	}
	p, ok := s.pages[id]
	if !ok {
		rec.Status = http.StatusNotFound
		jsonError(w, "page not found", http.StatusNotFound)
		return api.Page{}, false
	}
	return p, true
}

func (s *Server) handleTitle(w http.ResponseWriter, r *http.Request) {
	var body api.TitleUpdate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}
	p, ok := s.begin(w, r)
	if !ok {
		return
	}
	p.Data.Title = body.Data.Title
	s.commit(w, p)
}

func (s *Server) handleBlocks(w http.ResponseWriter, r *http.Request) {
	var body api.BlocksUpdate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}
	p, ok := s.begin(w, r)
	if !ok {
		return
	}
	d := body.Data
	p.Data = api.PageData{
		Title:        d.Title,
		URL:          d.URL,
		Blocks:       d.Blocks,
		HTML:         d.HTML,
		CSS:          d.CSS,
		JSCode:       d.JSCode,
		CSSCode:      d.CSSCode,
		Inputs:       d.Inputs,
		HTTPRequests: d.HTTPRequests,
		CustomFonts:  d.CustomFonts,
		State:        d.State,
		Description:  d.Description,
	}
	s.commit(w, p)
}

func (s *Server) commit(w http.ResponseWriter, p api.Page) {
	s.mu.Lock()
	p.LastUpdated = s.now().UnixMilli()
	s.pages[p.ID] = p
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, p)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// requestLogger logs each request at debug level.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
