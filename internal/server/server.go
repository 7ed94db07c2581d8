// Package server exposes the analysis pipeline as a JSON HTTP API.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/safechat/analyzer/internal/aggregate"
	"github.com/safechat/analyzer/internal/analyze"
	"github.com/safechat/analyzer/internal/assess"
	"github.com/safechat/analyzer/internal/auth"
	"github.com/safechat/analyzer/internal/database"
	"github.com/safechat/analyzer/internal/notify"
	"github.com/safechat/analyzer/internal/report"
	"github.com/safechat/analyzer/internal/risk"
	"github.com/safechat/analyzer/internal/sentiment"
)

// Server is the HTTP API for classification and summaries.
type Server struct {
	db        *database.DB
	svc       *analyze.Service
	detector  *risk.Detector
	assessor  *assess.Generator
	mailer    notify.Mailer
	defaultTo string
	authMgr   *auth.Manager
	mux       *http.ServeMux
}

// Options configure optional server features.
type Options struct {
	Detector  *risk.Detector
	Assessor  *assess.Generator
	Mailer    notify.Mailer
	DefaultTo string
	Auth      *auth.Manager
}

// New creates a new Server.
func New(db *database.DB, svc *analyze.Service, opts Options) *Server {
	s := &Server{
		db:        db,
		svc:       svc,
		detector:  opts.Detector,
		assessor:  opts.Assessor,
		mailer:    opts.Mailer,
		defaultTo: opts.DefaultTo,
		authMgr:   opts.Auth,
		mux:       http.NewServeMux(),
	}
	s.routes()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	if s.authMgr != nil {
		h = s.authMgr.Middleware(h, "/healthz")
	}
	return requestID(h)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/analyze", s.handleAnalyze)
	s.mux.HandleFunc("/analyses/", s.handleAnalyses)
	s.mux.HandleFunc("/assessment/", s.handleAssessment)
	s.mux.HandleFunc("/summary/", s.handleSummary)
	s.mux.HandleFunc("/email_summary/", s.handleEmailSummary)
	s.mux.HandleFunc("/users", s.handleUsers)
}

// requestID tags every request for log correlation.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		log.Printf("[%s] %s %s", id[:8], r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type message struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

type analyzeRequest struct {
	UserID   string    `json:"user_id"`
	Messages []message `json:"messages"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	texts := make([]string, 0, len(req.Messages))
	for _, m := range req.Messages {
		texts = append(texts, m.Text)
	}
	allText := strings.Join(texts, " \n ")

	result, err := s.svc.Analyze(r.Context(), req.UserID, allText)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":        req.UserID,
		"danger_level":   result.Verdict.Danger,
		"risk_tags":      tagStrings(result.Verdict.RiskTags),
		"sentiment":      result.Verdict.Sentiment,
		"themes":         emptyIfNil(result.Themes),
		"themes_saved":   result.ThemesSaved,
		"analysis_saved": result.AnalysisSaved,
		"alert_sent":     result.AlertSent,
		"analysis_ts":    result.Timestamp,
		"event_id":       result.EventID,
	})
}

type eventJSON struct {
	ID          int64           `json:"id"`
	Timestamp   string          `json:"ts"`
	MessageText *string         `json:"message_text,omitempty"`
	Sentiment   sentiment.Score `json:"sentiment"`
	RiskTags    []string        `json:"risk_tags"`
	DangerLevel json.RawMessage `json:"danger_level"`
	Themes      []string        `json:"themes"`
}

func (s *Server) handleAnalyses(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimPrefix(r.URL.Path, "/analyses/")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id required")
		return
	}
	date := r.URL.Query().Get("date")

	events, err := s.db.EventsForUser(userID, date)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]eventJSON, 0, len(events))
	for _, e := range events {
		level, _ := e.Danger.MarshalJSON()
		out = append(out, eventJSON{
			ID:          e.ID,
			Timestamp:   e.Timestamp,
			MessageText: e.MessageText,
			Sentiment:   e.Sentiment,
			RiskTags:    tagStrings(e.RiskTags),
			DangerLevel: level,
			Themes:      emptyIfNil(e.Themes),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":  userID,
		"count":    len(events),
		"analyses": out,
	})
}

// aggregatedJSON is the wire form of an aggregate, shared by the
// assessment endpoint and email composition.
func aggregatedJSON(agg aggregate.Summary) map[string]any {
	risks := make(map[string]int, len(agg.RiskCounts))
	for c, n := range agg.RiskCounts {
		risks[string(c)] = n
	}
	var compound any
	if agg.MeanCompound != nil {
		compound = *agg.MeanCompound
	}
	return map[string]any{
		"themes":        agg.ThemeCounts,
		"risk_counts":   risks,
		"avg_sentiment": map[string]any{"compound": compound},
		"count":         agg.EventCount,
	}
}

func (s *Server) handleAssessment(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimPrefix(r.URL.Path, "/assessment/")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id required")
		return
	}
	date := r.URL.Query().Get("date")

	agg, err := s.aggregateFor(userID, date)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if s.assessor == nil {
		writeError(w, http.StatusServiceUnavailable, "no LLM provider configured")
		return
	}
	narrative, err := s.assessor.Assess(r.Context(), agg, agg.TopThemes(8))
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("LLM error: %v", err))
		return
	}

	resolvedDate := date
	if resolvedDate == "" {
		resolvedDate = database.Today()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":          userID,
		"date":             resolvedDate,
		"aggregated":       aggregatedJSON(agg),
		"assessment":       report.MarkdownHTML(narrative),
		"assessment_plain": report.MarkdownPlain(narrative),
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimPrefix(r.URL.Path, "/summary/")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id required")
		return
	}
	date := r.URL.Query().Get("date")

	events, err := s.db.EventsForUser(userID, date)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	agg := aggregate.Aggregate(events)

	if s.assessor == nil {
		writeError(w, http.StatusServiceUnavailable, "no LLM provider configured")
		return
	}
	narrative, err := s.assessor.Summarize(r.Context(), agg, agg.TopThemes(8), s.excerpts(events))
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("LLM error: %v", err))
		return
	}

	resolvedDate := date
	if resolvedDate == "" {
		resolvedDate = database.Today()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":    userID,
		"date":       resolvedDate,
		"aggregated": aggregatedJSON(agg),
		"summary":    narrative,
	})
}

// excerpts collects risk excerpts from events that kept their text.
func (s *Server) excerpts(events []database.Event) []string {
	if s.detector == nil {
		return nil
	}
	var out []string
	for _, e := range events {
		if e.MessageText == nil || len(e.RiskTags) == 0 {
			continue
		}
		if ex := s.detector.Excerpt(*e.MessageText, e.RiskTags); ex != "" {
			out = append(out, ex)
		}
	}
	return out
}

type emailRequest struct {
	Recipient string `json:"recipient"`
	Date      string `json:"date"`
}

func (s *Server) handleEmailSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	userID := strings.TrimPrefix(r.URL.Path, "/email_summary/")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id required")
		return
	}

	// Body is optional: an empty body means defaults, malformed JSON does not.
	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	recipient := req.Recipient
	if recipient == "" {
		recipient = s.defaultTo
	}
	if s.mailer == nil || !s.mailer.IsConfigured() || recipient == "" {
		writeError(w, http.StatusBadRequest, "email not configured: set a SendGrid key, sender and recipient")
		return
	}

	agg, err := s.aggregateFor(userID, req.Date)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	// The narrative is enrichment; a missing LLM still produces the
	// metrics card.
	var narrative string
	if s.assessor != nil {
		narrative, err = s.assessor.Assess(r.Context(), agg, agg.TopThemes(8))
		if err != nil {
			log.Printf("assessment for %s failed, sending metrics only: %v", userID, err)
		}
	}

	rep, err := report.Render(userID, req.Date, agg, narrative)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "rendering email failed")
		return
	}

	if err := s.mailer.Send(r.Context(), recipient, rep.Subject, rep.PlainText, rep.HTML); err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("send failed: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "sent",
		"to":     recipient,
	})
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	ids, err := s.db.UserIDs(r.URL.Query().Get("date"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": ids})
}

func (s *Server) aggregateFor(userID, date string) (aggregate.Summary, error) {
	events, err := s.db.EventsForUser(userID, date)
	if err != nil {
		return aggregate.Summary{}, err
	}
	return aggregate.Aggregate(events), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, database.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// Serve starts the HTTP server on the given port.
func Serve(db *database.DB, svc *analyze.Service, opts Options, port int) error {
	srv := New(db, svc, opts)
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}

func tagStrings(tags []risk.Category) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, string(t))
	}
	return out
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
