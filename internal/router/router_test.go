package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"busoptimizer/backend/foundation/web"
	"busoptimizer/backend/internal/auth"
	"busoptimizer/backend/internal/pkg/config"
	"busoptimizer/backend/internal/pkg/logger"
	"busoptimizer/backend/internal/pkg/repository/postgresql"
)

// newRouter builds the full route table. The database is never dialed
// because every request here is stopped by a middleware.
func newRouter(t *testing.T) (*Router, *auth.Auth) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.Archive.Dir = t.TempDir()
	cfg.APIKeys = "ENTRY_GATE:gate-secret"
	cfg.Server.CORSOrigins = []string{"http://dashboard.local"}

	log := logger.Discard()
	db := postgresql.NewDB(postgresql.Config{Host: "127.0.0.1", Port: "1", User: "u", Name: "n", DisableTLS: true}, log)
	t.Cleanup(func() { _ = db.Close() })

	a, err := auth.New("router-test-key", 0)
	require.NoError(t, err)

	r := NewRouter(web.NewApp(log), db, nil, a, &cfg)
	require.NoError(t, r.Init(context.Background()))
	return r, a
}

func TestHealth(t *testing.T) {
	r, _ := newRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRoutesAreGuarded(t *testing.T) {
	r, a := newRouter(t)

	dashboard, err := a.GenerateToken(2, auth.RoleDashboard)
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		target string
		token  string
		status int
	}{
		{"report without token", http.MethodGet, "/api/v1/report/occupancy", "", http.StatusUnauthorized},
		{"admin route as dashboard", http.MethodGet, "/api/v1/bus/buses", dashboard, http.StatusForbidden},
		{"upload as dashboard", http.MethodPost, "/api/v1/bus/master-list/upload", dashboard, http.StatusForbidden},
		{"scans without api key", http.MethodPost, "/api/v1/bus/upload-scans", "", http.StatusUnauthorized},
		{"live without token", http.MethodGet, "/api/v1/live/scans", "", http.StatusUnauthorized},
		{"wrong method", http.MethodPut, "/api/v1/sign-in", "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}
