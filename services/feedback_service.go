package services

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/feedback"
)

// FeedbackConfig configures the feedback intake service.
type FeedbackConfig struct {
	Store FeedbackStore

	// Limiter bounds submissions per client IP. Nil disables limiting.
	Limiter RateLimiter

	// AdminToken guards the listing and export routes (user:pass).
	AdminToken string

	// AllowedOrigins configures CORS for the web app. Empty allows any
	// origin.
	AllowedOrigins []string

	// MaxBodyBytes caps the submission body size. Zero means 256 KiB.
	MaxBodyBytes int64

	Log *slog.Logger
}

// FeedbackServer accepts feedback reports from the apps and exposes them to
// operators.
type FeedbackServer struct {
	config *FeedbackConfig
	log    *slog.Logger
}

// NewFeedbackServer creates a feedback server with the given configuration.
func NewFeedbackServer(config *FeedbackConfig) (*FeedbackServer, error) {
	if config.Store == nil {
		return nil, errors.New("feedback server requires a feedback store")
	}

	log := config.Log
	if log == nil {
		log = slog.Default()
	}
	return &FeedbackServer{config: config, log: log}, nil
}

// RegisterRoutes mounts the submission endpoint.
func (s *FeedbackServer) RegisterRoutes(router chi.Router) {
	origins := s.config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router.Group(func(router chi.Router) {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         300,
		}))

		router.Post("/api/feedback", s.handleSubmit)
	})
}

// RegisterAdminRoutes mounts the authenticated listing and export routes.
func (s *FeedbackServer) RegisterAdminRoutes(router chi.Router) {
	router.Group(func(router chi.Router) {
		router.Use(adminAuth(s.config.AdminToken))
		router.Get("/admin/feedback", s.handleList)
		router.Get("/admin/feedback.csv", s.handleExportCSV)
	})
}

func (s *FeedbackServer) handleSubmit(w http.ResponseWriter, req *http.Request) {
	if s.config.Limiter != nil && !s.config.Limiter.Allow(req.Context(), clientIP(req)) {
		feedbackRateLimited.Inc()
		http.Error(w, "too many feedback submissions, try again later", http.StatusTooManyRequests)
		return
	}

	maxBytes := s.config.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 256 * 1024
	}

	var report feedback.Report
	body := http.MaxBytesReader(w, req.Body, maxBytes)
	if err := json.NewDecoder(body).Decode(&report); err != nil {
		feedbackRejected.Inc()
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := report.Validate(); err != nil {
		feedbackRejected.Inc()
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	stored := &StoredReport{
		ID:         uuid.NewString(),
		ReceivedAt: time.Now().UTC(),
		RemoteAddr: clientIP(req),
		Report:     report,
	}

	if err := s.config.Store.SaveReport(stored); err != nil {
		http.Error(w, "could not store feedback", http.StatusInternalServerError)
		return
	}

	feedbackReceived.Inc()
	s.log.Info("feedback received",
		"id", stored.ID,
		"type", report.Type,
		"rating", report.Rating,
		"appVersion", report.SystemInfo.AppVersion,
		"os", report.SystemInfo.OS,
	)

	writeJSON(w, http.StatusCreated, &feedback.SubmitResponse{
		ID:         stored.ID,
		ReceivedAt: stored.ReceivedAt.Format(time.RFC3339),
	})
}

func (s *FeedbackServer) reportFilter(req *http.Request) (ReportFilter, error) {
	filter := ReportFilter{}

	if raw := req.URL.Query().Get("type"); raw != "" {
		t := feedback.Type(raw)
		if !t.Valid() {
			return filter, errors.New("unknown feedback type: " + raw)
		}
		filter.Type = t
	}

	if raw := req.URL.Query().Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, err
		}
		filter.Since = since
	}

	if raw := req.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return filter, err
		}
		filter.Limit = limit
	}

	return filter, nil
}

func (s *FeedbackServer) handleList(w http.ResponseWriter, req *http.Request) {
	filter, err := s.reportFilter(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	reports, err := s.config.Store.ListReports(filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, &FeedbackListResponse{
		Total:   len(reports),
		Reports: reports,
	})
}

func (s *FeedbackServer) handleExportCSV(w http.ResponseWriter, req *http.Request) {
	filter, err := s.reportFilter(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	reports, err := s.config.Store.ListReports(filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="feedback.csv"`)

	cw := csv.NewWriter(w)
	cw.Write([]string{"id", "received_at", "type", "rating", "title", "email", "app_version", "channel", "os", "arch", "description"})
	for _, r := range reports {
		cw.Write([]string{
			r.ID,
			r.ReceivedAt.Format(time.RFC3339),
			string(r.Report.Type),
			strconv.Itoa(r.Report.Rating),
			r.Report.Title,
			r.Report.Email,
			r.Report.SystemInfo.AppVersion,
			r.Report.SystemInfo.Channel,
			r.Report.SystemInfo.OS,
			r.Report.SystemInfo.Arch,
			r.Report.Description,
		})
	}
	cw.Flush()
}
