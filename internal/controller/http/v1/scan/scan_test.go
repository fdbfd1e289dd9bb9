package scan

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"busoptimizer/backend/foundation/web"
	"busoptimizer/backend/internal/middleware"
	"busoptimizer/backend/internal/pkg/logger"
	"busoptimizer/backend/internal/service/attendance"
)

type stubRecorder struct {
	scans  []attendance.Scan
	source string
}

func (s *stubRecorder) RecordScans(_ context.Context, scans []attendance.Scan, source string) ([]int64, error) {
	s.scans, s.source = scans, source
	ids := make([]int64, 0, len(scans))
	for _, sc := range scans {
		ids = append(ids, sc.ID)
	}
	return ids, nil
}

func post(t *testing.T, rec *stubRecorder, key, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	app := web.NewApp(logger.Discard())
	app.Post("/upload-scans", NewController(rec).UploadScans, middleware.APIKey(map[string]string{"ENTRY_GATE": "gate-secret"}))

	req := httptest.NewRequest(http.MethodPost, "/upload-scans", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-API-KEY", key)
	}
	w := httptest.NewRecorder()
	app.ServeHTTP(w, req)
	return w
}

func TestUploadScans(t *testing.T) {
	rec := &stubRecorder{}
	w := post(t, rec, "gate-secret", `{"scans":[{"id":11,"batch_id":1001,"scan_time":"2026-01-12 06:15:00"},{"id":12,"batch_id":1002,"scan_time":"2026-01-12T06:16:00+08:00"}]}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success_ids":[11,12]}`, w.Body.String())
	assert.Equal(t, "device:ENTRY_GATE", rec.source)
	require.Len(t, rec.scans, 2)
	assert.Equal(t, int64(1001), rec.scans[0].BatchID)
}

func TestUploadScansRejected(t *testing.T) {
	rec := &stubRecorder{}

	w := post(t, rec, "wrong", `{"scans":[{"id":1,"batch_id":1,"scan_time":"2026-01-12 06:15:00"}]}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = post(t, rec, "gate-secret", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(t, rec, "gate-secret", `{"scans":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Nil(t, rec.scans)
}
