package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/riskcore/internal/database"
	"github.com/aristath/riskcore/internal/scheduler"
	testingpkg "github.com/aristath/riskcore/internal/testing"
)

type stubJob struct {
	name string
	err  error
	runs int
}

func (j *stubJob) Run() error   { j.runs++; return j.err }
func (j *stubJob) Name() string { return j.name }

func setupSystemHandlers(t *testing.T) (*SystemHandlers, *stubJob, *stubJob) {
	history, cleanupHistory := testingpkg.NewTestDB(t, "history")
	t.Cleanup(cleanupHistory)
	results, cleanupResults := testingpkg.NewTestDB(t, "results")
	t.Cleanup(cleanupResults)

	ok := &stubJob{name: "ok_job"}
	failing := &stubJob{name: "failing_job", err: errors.New("disk on fire")}
	sched := scheduler.New(time.UTC, zerolog.Nop())
	require.NoError(t, sched.AddJob("@daily", ok))
	require.NoError(t, sched.AddJob("@hourly", failing))

	databases := map[string]*database.DB{"history": history, "results": results}
	return NewSystemHandlers(zerolog.Nop(), t.TempDir(), databases, sched), ok, failing
}

func systemRouter(h *SystemHandlers) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/status", h.HandleSystemStatus)
	r.Get("/disk", h.HandleDiskUsage)
	r.Get("/database/stats", h.HandleDatabaseStats)
	r.Get("/jobs", h.HandleJobsStatus)
	r.Post("/jobs/{name}", h.HandleTriggerJob)
	return r
}

func TestSystemHandlers_HandleSystemStatus(t *testing.T) {
	h, _, _ := setupSystemHandlers(t)

	w := httptest.NewRecorder()
	systemRouter(h).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var response SystemStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response.Status)
	assert.Equal(t, "dev", response.Version)
	assert.Equal(t, map[string]string{"history": "ok", "results": "ok"}, response.Databases)
	assert.GreaterOrEqual(t, response.MemoryPercent, 0.0)
}

func TestSystemHandlers_HandleSystemStatus_Degraded(t *testing.T) {
	h, _, _ := setupSystemHandlers(t)
	require.NoError(t, h.databases["history"].Close())

	w := httptest.NewRecorder()
	systemRouter(h).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var response SystemStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "degraded", response.Status)
	assert.NotEqual(t, "ok", response.Databases["history"])
	assert.Equal(t, "ok", response.Databases["results"])
}

func TestSystemHandlers_HandleJobsStatus(t *testing.T) {
	h, _, _ := setupSystemHandlers(t)

	w := httptest.NewRecorder()
	systemRouter(h).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/jobs", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var response JobsStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, 2, response.TotalJobs)
	assert.Equal(t, "failing_job", response.Jobs[0].Name)
	assert.Equal(t, "@hourly", response.Jobs[0].Schedule)
	assert.Equal(t, "ok_job", response.Jobs[1].Name)
}

func TestSystemHandlers_HandleTriggerJob(t *testing.T) {
	h, ok, failing := setupSystemHandlers(t)
	router := systemRouter(h)

	tests := []struct {
		name   string
		status int
	}{
		{"ok_job", http.StatusOK},
		{"failing_job", http.StatusInternalServerError},
		{"missing_job", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/jobs/"+tt.name, nil))
			assert.Equal(t, tt.status, w.Code)
		})
	}
	assert.Equal(t, 1, ok.runs)
	assert.Equal(t, 1, failing.runs)

	// The failure is visible in the job status
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/jobs", nil))
	var response JobsStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "disk on fire", response.Jobs[0].LastErr)
}

func TestSystemHandlers_HandleTriggerJob_NoScheduler(t *testing.T) {
	h := NewSystemHandlers(zerolog.Nop(), t.TempDir(), nil, nil)

	w := httptest.NewRecorder()
	systemRouter(h).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/jobs/anything", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSystemHandlers_HandleDatabaseStats(t *testing.T) {
	h, _, _ := setupSystemHandlers(t)

	w := httptest.NewRecorder()
	systemRouter(h).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/database/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var response DatabaseStatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Len(t, response.Databases, 2)
	assert.Equal(t, "history", response.Databases[0].Name)
	assert.Greater(t, response.Databases[0].PageCount, int64(0))
	assert.Greater(t, response.TotalSizeMB, 0.0)
}

func TestSystemHandlers_HandleDiskUsage(t *testing.T) {
	h, _, _ := setupSystemHandlers(t)

	w := httptest.NewRecorder()
	systemRouter(h).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/disk", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var response DiskUsageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Greater(t, response.AvailableMB, 0.0)
	assert.Equal(t, 0.0, response.BackupsMB)
}
