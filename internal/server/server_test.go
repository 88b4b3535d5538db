package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SirClappington/enqarchive/internal/metrics"
	"github.com/SirClappington/enqarchive/internal/storage"
	"github.com/SirClappington/enqarchive/internal/storage/storagetest"
)

func newLedger(t *testing.T) *storage.Ledger {
	t.Helper()
	l, err := storage.NewLedger(storagetest.Open(t, "arc"))
	require.NoError(t, err)
	at := time.Date(2024, 6, 10, 3, 0, 0, 0, time.UTC)
	for _, run := range []string{"run-1", "run-2"} {
		for _, entity := range []string{"requests", "queues"} {
			require.NoError(t, l.Record(context.Background(), &storage.RunRecord{
				RunID:      run,
				Entity:     entity,
				Horizon:    at.AddDate(0, 0, -1),
				Purged:     3,
				Status:     storage.RunSucceeded,
				StartedAt:  at,
				FinishedAt: at.Add(time.Second),
			}))
		}
	}
	return l
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	status := &Status{}
	status.SetRunning(true)
	status.SetLast(LastRun{RunID: "run-2", ExitCode: -1})
	h := Router(status, nil, prometheus.NewRegistry(), zap.NewNop())

	rec := get(t, h, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status  string  `json:"status"`
		Running bool    `json:"running"`
		LastRun LastRun `json:"last_run"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.True(t, body.Running)
	assert.Equal(t, "run-2", body.LastRun.RunID)
	assert.Equal(t, -1, body.LastRun.ExitCode)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.Purged("requests", 3)
	h := Router(&Status{}, nil, reg, zap.NewNop())

	rec := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `enqarchive_rows_purged_total{entity="requests"} 3`)
}

func TestRuns(t *testing.T) {
	h := Router(&Status{}, newLedger(t), prometheus.NewRegistry(), zap.NewNop())

	rec := get(t, h, "/runs?limit=3")
	require.Equal(t, http.StatusOK, rec.Code)
	var recs []storage.RunRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recs))
	require.Len(t, recs, 3)
	assert.Equal(t, "run-2", recs[0].RunID)
	assert.Equal(t, "queues", recs[0].Entity)

	rec = get(t, h, "/runs/run-1")
	require.Equal(t, http.StatusOK, rec.Code)
	recs = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recs))
	require.Len(t, recs, 2)
	assert.Equal(t, "requests", recs[0].Entity)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/runs/nope").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/runs?limit=x").Code)
}

func TestRuns_LedgerDisabled(t *testing.T) {
	h := Router(&Status{}, nil, prometheus.NewRegistry(), zap.NewNop())
	assert.Equal(t, http.StatusNotFound, get(t, h, "/runs").Code)
}
