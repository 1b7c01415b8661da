package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/scamshield/scam-detector/internal/adapters/page"
	"github.com/scamshield/scam-detector/internal/application"
	"github.com/scamshield/scam-detector/internal/domain"
	"github.com/scamshield/scam-detector/internal/observability"
	"github.com/scamshield/scam-detector/internal/ports"
)

const (
	maxBodyBytes       = 2 << 20
	defaultRecentLimit = 20
	maxRecentLimit     = 100
)

// Options configures the HTTP server
type Options struct {
	Metrics    *observability.Metrics
	Logger     *slog.Logger
	RateLimit  rate.Limit // zero disables limiting
	RateBurst  int
	Components map[string]string // reported by /health
}

// Server exposes the orchestrator over a JSON API
type Server struct {
	orch       *application.Orchestrator
	extractor  *page.Extractor
	metrics    *observability.Metrics
	logger     *slog.Logger
	limiter    *rate.Limiter
	components map[string]string
	started    time.Time
}

// New creates a server
func New(orch *application.Orchestrator, extractor *page.Extractor, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = observability.Discard()
	}
	s := &Server{
		orch:       orch,
		extractor:  extractor,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		components: opts.Components,
		started:    time.Now(),
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(opts.RateLimit, burst)
	}
	return s
}

// Routes returns the router with every endpoint mounted
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.rateLimit)

		r.Route("/sessions/{tabID}", func(r chi.Router) {
			r.Get("/", s.handleStatus)
			r.Delete("/", s.handleDiscard)
			r.Post("/page", s.handlePageReady)
			r.Post("/mutations", s.handleMutation)
			r.Get("/assessment", s.handleAssessment)
		})

		r.Post("/risk-score", s.handleRiskScore)
		r.Post("/analyze/url", s.handleAnalyzeURL)
		r.Post("/analyze/webpage", s.handleAnalyzeWebpage)
		r.Get("/lookalike/{domain}", s.handleLookalike)
		r.Get("/domain-age/{domain}", s.handleDomainAge)
		r.Get("/dns/{domain}", s.handleDNS)
		r.Get("/assessments/high-risk", s.handleHighRisk)
		r.Get("/assessments/{id}", s.handleAssessmentByID)
	})

	return r
}

// pagePayload is a page snapshot sent by the browser. When HTML is present
// it is parsed and the other content fields are ignored.
type pagePayload struct {
	URL    string              `json:"url"`
	HTML   string              `json:"html,omitempty"`
	Title  string              `json:"title,omitempty"`
	Text   string              `json:"text,omitempty"`
	Fields []domain.InputField `json:"fields,omitempty"`
	Links  []string            `json:"links,omitempty"`
}

type mutationPayload struct {
	pagePayload
	AddedNodes  int `json:"added_nodes"`
	AddedFields int `json:"added_fields"`
}

func (s *Server) pageContext(p pagePayload) (domain.PageContext, error) {
	if p.HTML != "" {
		return s.extractor.Extract(p.URL, p.HTML)
	}
	pc := page.Locate(p.URL)
	pc.Title = p.Title
	pc.Text = p.Text
	pc.Fields = p.Fields
	pc.Links = p.Links
	return pc, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"uptime":     time.Since(s.started).Round(time.Second).String(),
		"components": s.components,
	})
}

func (s *Server) handlePageReady(w http.ResponseWriter, r *http.Request) {
	var p pagePayload
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if p.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	pc, err := s.pageContext(p)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	assessment, err := s.orch.PageReady(r.Context(), chi.URLParam(r, "tabID"), pc)
	if err != nil {
		s.writeOrchestratorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assessment)
}

func (s *Server) handleMutation(w http.ResponseWriter, r *http.Request) {
	var p mutationPayload
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	pc, err := s.pageContext(p.pagePayload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	mutation := domain.Mutation{AddedNodes: p.AddedNodes, AddedFields: p.AddedFields}
	scheduled, err := s.orch.DOMChanged(chi.URLParam(r, "tabID"), pc, mutation)
	if err != nil {
		s.writeOrchestratorError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"scheduled": scheduled})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.orch.Status(chi.URLParam(r, "tabID"))
	if err != nil {
		s.writeOrchestratorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleAssessment(w http.ResponseWriter, r *http.Request) {
	assessment, err := s.orch.Assessment(chi.URLParam(r, "tabID"))
	if err != nil {
		s.writeOrchestratorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assessment)
}

func (s *Server) handleDiscard(w http.ResponseWriter, r *http.Request) {
	if !s.orch.Discard(chi.URLParam(r, "tabID")) {
		writeError(w, http.StatusNotFound, application.ErrSessionNotFound.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRiskScore accepts either {"signals": {...}} or a flat name to score map
func (s *Server) handleRiskScore(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	var wrapped struct {
		Signals map[string]float64 `json:"signals"`
	}
	scores := map[string]float64{}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Signals != nil {
		scores = wrapped.Signals
	} else if err := json.Unmarshal(body, &scores); err != nil {
		writeError(w, http.StatusBadRequest, "body must map signal names to numeric scores")
		return
	}

	for name, score := range scores {
		if score < 0 || score > 1 {
			writeError(w, http.StatusBadRequest, "score for "+name+" must be within [0,1]")
			return
		}
	}

	writeJSON(w, http.StatusOK, s.orch.ScoreSignals(r.Context(), scores))
}

func (s *Server) handleAnalyzeURL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := decodeJSON(w, r, &req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	result, err := s.orch.AnalyzeURL(r.Context(), req.URL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleAnalyzeWebpage classifies page text; raw HTML is reduced to its visible text first
func (s *Server) handleAnalyzeWebpage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL  string `json:"url"`
		Text string `json:"text"`
		HTML string `json:"html"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	text := req.Text
	if req.HTML != "" {
		pc, err := s.extractor.Extract(req.URL, req.HTML)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		text = pc.Title + " " + pc.Text
	}
	if text == "" {
		writeError(w, http.StatusBadRequest, "text or html is required")
		return
	}
	writeJSON(w, http.StatusOK, s.orch.ClassifyWebpage(req.URL, text))
}

func (s *Server) handleDomainAge(w http.ResponseWriter, r *http.Request) {
	age, err := s.orch.DomainAge(r.Context(), chi.URLParam(r, "domain"))
	if err != nil {
		s.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, age)
}

func (s *Server) handleDNS(w http.ResponseWriter, r *http.Request) {
	result, err := s.orch.CheckDNS(r.Context(), chi.URLParam(r, "domain"))
	if err != nil {
		s.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAssessmentByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be a UUID")
		return
	}

	assessment, err := s.orch.AssessmentByID(r.Context(), id)
	switch {
	case errors.Is(err, ports.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		s.logger.Error("Failed to load assessment", "assessment_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load assessment")
	default:
		writeJSON(w, http.StatusOK, assessment)
	}
}

func (s *Server) handleLookalike(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.CheckLookalike(chi.URLParam(r, "domain")))
}

func (s *Server) handleHighRisk(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRecentLimit)
	}

	assessments, err := s.orch.RecentHighRisk(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to load high-risk history", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assessments": assessments, "count": len(assessments)})
}

func (s *Server) writeOrchestratorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, application.ErrSessionBusy), errors.Is(err, application.ErrSessionSuperseded):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, application.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error("Request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) writeLookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ports.ErrInvalidDomain):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, application.ErrLookupUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "lookup timed out")
	default:
		s.logger.Warn("Domain lookup failed", "error", err)
		writeError(w, http.StatusBadGateway, "lookup failed")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
