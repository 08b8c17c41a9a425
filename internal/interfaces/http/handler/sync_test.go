package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appingest "github.com/marketsync/backend/internal/application/ingest"
	"github.com/marketsync/backend/internal/infrastructure/scheduler"
	"github.com/marketsync/backend/internal/interfaces/http/dto"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type noopExecutor struct{}

func (noopExecutor) Execute(_ context.Context, job *scheduler.SyncJob) error {
	job.Complete(&appingest.RunSummary{Inserted: 1})
	return nil
}

func newSyncTestServer(t *testing.T, start bool) (*gin.Engine, *scheduler.SyncScheduler) {
	t.Helper()
	syncScheduler, err := scheduler.NewSyncScheduler(scheduler.DefaultSyncSchedulerConfig(), noopExecutor{}, zap.NewNop())
	require.NoError(t, err)
	if start {
		require.NoError(t, syncScheduler.Start(context.Background()))
		t.Cleanup(func() { _ = syncScheduler.Stop(context.Background()) })
	}

	engine := gin.New()
	api := engine.Group("/api/v1")
	NewSyncHandler(syncScheduler, 24*time.Hour).RegisterRoutes(api)
	return engine, syncScheduler
}

func TestSyncHandler_TriggerSync(t *testing.T) {
	engine, _ := newSyncTestServer(t, true)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/baselinker/orders", nil)
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)

	var resp struct {
		Success bool                `json:"success"`
		Data    TriggerSyncResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "BASELINKER", resp.Data.Provider)
	assert.Equal(t, "ORDERS", resp.Data.Kind)
}

func TestSyncHandler_TriggerSyncWithWindow(t *testing.T) {
	engine, _ := newSyncTestServer(t, true)

	body := `{"since":"2026-08-01T00:00:00Z","until":"2026-08-02T00:00:00Z"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/apilo/orders", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)

	var resp struct {
		Data TriggerSyncResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "2026-08-01T00:00:00Z", resp.Data.Since)
	assert.Equal(t, "2026-08-02T00:00:00Z", resp.Data.Until)
}

func TestSyncHandler_TriggerSyncInvertedWindow(t *testing.T) {
	engine, _ := newSyncTestServer(t, true)

	body := `{"since":"2026-08-02T00:00:00Z","until":"2026-08-01T00:00:00Z"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/apilo/orders", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSyncHandler_UnknownProvider(t *testing.T) {
	engine, _ := newSyncTestServer(t, true)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/ebay/orders", nil)
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSyncHandler_UnknownKind(t *testing.T) {
	engine, _ := newSyncTestServer(t, true)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/baselinker/invoices", nil)
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSyncHandler_SchedulerStopped(t *testing.T) {
	engine, _ := newSyncTestServer(t, false)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/baselinker/products", nil)
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ErrCodeUpstreamUnavailable, resp.Error.Code)
}

func TestSyncHandler_ListJobs(t *testing.T) {
	engine, syncScheduler := newSyncTestServer(t, true)

	require.NoError(t, syncScheduler.ScheduleSync("BASELINKER", scheduler.SyncJobKindProducts, time.Time{}, time.Now()))

	assert.Eventually(t, func() bool {
		return len(syncScheduler.GetJobHistory(10)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/jobs?limit=5", nil)
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []SyncJobResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "SUCCESS", resp.Data[0].Status)
	require.NotNil(t, resp.Data[0].Summary)
	assert.Equal(t, 1, resp.Data[0].Summary.Inserted)
}

func TestSyncHandler_ListJobsBadLimit(t *testing.T) {
	engine, _ := newSyncTestServer(t, true)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/jobs?limit=9000", nil)
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
