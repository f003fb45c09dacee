package services

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/feedback"
)

type feedbackFixture struct {
	server *FeedbackServer
	router chi.Router
	store  *InMemoryStore
}

func setupTestFeedback(t *testing.T, limiter RateLimiter) *feedbackFixture {
	t.Helper()

	store := NewInMemoryStore()
	server, err := NewFeedbackServer(&FeedbackConfig{
		Store:      store,
		Limiter:    limiter,
		AdminToken: "admin:secret",
		Log:        testLogger(),
	})
	require.NoError(t, err)

	router := chi.NewRouter()
	server.RegisterRoutes(router)
	server.RegisterAdminRoutes(router)

	return &feedbackFixture{server: server, router: router, store: store}
}

func validReport() *feedback.Report {
	return &feedback.Report{
		Type:        feedback.TypeBug,
		Title:       "Message search misses emoji",
		Description: "Searching for a message that contains an emoji returns no results.",
		Rating:      3,
		Email:       "tester@example.com",
		SystemInfo: feedback.SystemInfo{
			AppVersion: "1.2.3",
			Channel:    "stable",
			OS:         "linux",
			Arch:       "amd64",
		},
	}
}

func (f *feedbackFixture) submit(t *testing.T, report any) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(report)
	require.NoError(t, err)
	return f.submitRaw(t, body)
}

func (f *feedbackFixture) submitRaw(t *testing.T, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/feedback", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.7:54321"
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *feedbackFixture) adminGet(t *testing.T, target string, auth bool) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, target, nil)
	if auth {
		req.SetBasicAuth("admin", "secret")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestFeedback_Submit(t *testing.T) {
	f := setupTestFeedback(t, nil)

	w := f.submit(t, validReport())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp feedback.SubmitResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.NotEmpty(t, resp.ID)
	received, err := time.Parse(time.RFC3339, resp.ReceivedAt)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now(), received, time.Minute)

	stored, err := f.store.GetReport(resp.ID)
	require.NoError(t, err)
	require.Equal(t, "203.0.113.7", stored.RemoteAddr)
	require.Equal(t, feedback.TypeBug, stored.Report.Type)
}

// The submission payload's field names are the wire contract with shipped
// clients; this posts raw JSON to pin them down.
func TestFeedback_SubmitPayloadContract(t *testing.T) {
	f := setupTestFeedback(t, nil)

	raw := `{
		"type": "bug",
		"title": "Crash on startup",
		"description": "The app crashes when started without network.",
		"rating": 1,
		"email": "user@example.com",
		"systemInfo": {
			"appVersion": "1.2.3",
			"channel": "beta",
			"os": "windows",
			"arch": "arm64",
			"osVersion": "10.0.22631",
			"locale": "de-DE",
			"numCpu": 8,
			"memMb": 16384,
			"extra": {"flags": "zk-groups"}
		}
	}`

	w := f.submitRaw(t, []byte(raw))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp feedback.SubmitResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))

	stored, err := f.store.GetReport(resp.ID)
	require.NoError(t, err)
	require.Equal(t, "Crash on startup", stored.Report.Title)
	require.Equal(t, 1, stored.Report.Rating)
	require.Equal(t, "1.2.3", stored.Report.SystemInfo.AppVersion)
	require.Equal(t, "beta", stored.Report.SystemInfo.Channel)
	require.Equal(t, "10.0.22631", stored.Report.SystemInfo.OSVersion)
	require.Equal(t, "zk-groups", stored.Report.SystemInfo.Extra["flags"])
}

func TestFeedback_SubmitRejectsInvalid(t *testing.T) {
	f := setupTestFeedback(t, nil)

	tests := []struct {
		name   string
		mutate func(r *feedback.Report)
	}{
		{"unknown type", func(r *feedback.Report) { r.Type = "rant" }},
		{"missing title", func(r *feedback.Report) { r.Title = "" }},
		{"missing description", func(r *feedback.Report) { r.Description = "" }},
		{"rating too low", func(r *feedback.Report) { r.Rating = 0 }},
		{"rating too high", func(r *feedback.Report) { r.Rating = 6 }},
		{"malformed email", func(r *feedback.Report) { r.Email = "not-an-email" }},
		{"missing app version", func(r *feedback.Report) { r.SystemInfo.AppVersion = "" }},
		{"missing os", func(r *feedback.Report) { r.SystemInfo.OS = "" }},
		{"oversized title", func(r *feedback.Report) { r.Title = strings.Repeat("x", 201) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := validReport()
			tt.mutate(report)
			w := f.submit(t, report)
			require.Equal(t, http.StatusBadRequest, w.Code)
		})
	}

	w := f.submitRaw(t, []byte("{not json"))
	require.Equal(t, http.StatusBadRequest, w.Code)

	reports, err := f.store.ListReports(ReportFilter{})
	require.NoError(t, err)
	require.Empty(t, reports)
}

func TestFeedback_SubmitRateLimited(t *testing.T) {
	f := setupTestFeedback(t, NewLocalRateLimiter(2, time.Hour))

	for i := 0; i < 2; i++ {
		w := f.submit(t, validReport())
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := f.submit(t, validReport())
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	reports, err := f.store.ListReports(ReportFilter{})
	require.NoError(t, err)
	require.Len(t, reports, 2)
}

func TestFeedback_AdminAuthRequired(t *testing.T) {
	f := setupTestFeedback(t, nil)

	w := f.adminGet(t, "/admin/feedback", false)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/admin/feedback", nil)
	req.SetBasicAuth("admin", "wrongpassword")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	w = f.adminGet(t, "/admin/feedback", true)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestFeedback_ListFilters(t *testing.T) {
	f := setupTestFeedback(t, nil)

	bug := validReport()
	w := f.submit(t, bug)
	require.Equal(t, http.StatusCreated, w.Code)

	feature := validReport()
	feature.Type = feedback.TypeFeature
	feature.Title = "Disappearing group invites"
	w = f.submit(t, feature)
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.adminGet(t, "/admin/feedback", true)
	require.Equal(t, http.StatusOK, w.Code)
	var list FeedbackListResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	require.Equal(t, 2, list.Total)

	w = f.adminGet(t, "/admin/feedback?type=feature", true)
	require.Equal(t, http.StatusOK, w.Code)
	list = FeedbackListResponse{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	require.Equal(t, 1, list.Total)
	require.Equal(t, feedback.TypeFeature, list.Reports[0].Report.Type)

	w = f.adminGet(t, "/admin/feedback?limit=1", true)
	require.Equal(t, http.StatusOK, w.Code)
	list = FeedbackListResponse{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	require.Equal(t, 1, list.Total)

	w = f.adminGet(t, "/admin/feedback?type=rant", true)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFeedback_ExportCSV(t *testing.T) {
	f := setupTestFeedback(t, nil)

	first := validReport()
	w := f.submit(t, first)
	require.Equal(t, http.StatusCreated, w.Code)

	second := validReport()
	second.Type = feedback.TypeImprovement
	second.Title = "Faster cold start"
	second.Rating = 4
	w = f.submit(t, second)
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.adminGet(t, "/admin/feedback.csv", true)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "text/csv")

	rows, err := csv.NewReader(w.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, []string{"id", "received_at", "type", "rating", "title", "email", "app_version", "channel", "os", "arch", "description"}, rows[0])

	types := []string{rows[1][2], rows[2][2]}
	require.ElementsMatch(t, []string{"bug", "improvement"}, types)
	for _, row := range rows[1:] {
		require.NotEmpty(t, row[0])
		_, err := time.Parse(time.RFC3339, row[1])
		require.NoError(t, err)
	}
}
