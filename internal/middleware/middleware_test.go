package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"busoptimizer/backend/foundation/web"
	"busoptimizer/backend/internal/auth"
	"busoptimizer/backend/internal/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(app *web.App, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	app.ServeHTTP(w, req)
	return w
}

func TestAuthenticate(t *testing.T) {
	a, err := auth.New("secret", time.Hour)
	require.NoError(t, err)

	app := web.NewApp(logger.Discard())
	app.Get("/admin", func(c *web.Context) error {
		claims, ok := auth.FromContext(c.Ctx)
		require.True(t, ok)
		return c.Respond(map[string]interface{}{"user_id": claims.UserId}, http.StatusOK)
	}, Authenticate(a, auth.RoleAdmin))

	admin, err := a.GenerateToken(1, auth.RoleAdmin)
	require.NoError(t, err)
	dashboard, err := a.GenerateToken(2, auth.RoleDashboard)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "admin", header: "Bearer " + admin, status: http.StatusOK},
		{name: "lowercase scheme", header: "bearer " + admin, status: http.StatusOK},
		{name: "wrong role", header: "Bearer " + dashboard, status: http.StatusForbidden},
		{name: "missing", header: "", status: http.StatusUnauthorized},
		{name: "bad token", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "no scheme", header: admin, status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.status, serve(app, req).Code)
		})
	}
}

func TestWsAuthenticate(t *testing.T) {
	a, err := auth.New("secret", time.Hour)
	require.NoError(t, err)

	app := web.NewApp(logger.Discard())
	app.Get("/ws", func(c *web.Context) error {
		return c.Respond(nil, http.StatusNoContent)
	}, WsAuthenticate(a))

	token, err := a.GenerateToken(1, auth.RoleDashboard)
	require.NoError(t, err)

	w := serve(app, httptest.NewRequest(http.MethodGet, "/ws?authorization="+token, nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = serve(app, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAPIKey(t *testing.T) {
	hashed, err := auth.HashPassword("hashed-secret")
	require.NoError(t, err)

	app := web.NewApp(logger.Discard())
	app.Post("/scans", func(c *web.Context) error {
		return c.Respond(map[string]string{"device": Device(c.Ctx)}, http.StatusOK)
	}, APIKey(map[string]string{"BUS01": "plain-secret", "BUS02": hashed}))

	tests := []struct {
		name   string
		key    string
		status int
		device string
	}{
		{name: "plain", key: "plain-secret", status: http.StatusOK, device: "BUS01"},
		{name: "bcrypt", key: "hashed-secret", status: http.StatusOK, device: "BUS02"},
		{name: "wrong", key: "guess", status: http.StatusUnauthorized},
		{name: "missing", status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/scans", nil)
			if tt.key != "" {
				req.Header.Set("X-API-KEY", tt.key)
			}
			w := serve(app, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.device != "" {
				assert.Contains(t, w.Body.String(), tt.device)
			}
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	app := web.NewApp(logger.Discard())
	app.Use(CORSMiddleware([]string{"https://dashboard.example.com"}))
	app.Get("/ping", func(c *web.Context) error {
		return c.Respond(nil, http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")
	w := serve(app, req)
	assert.Equal(t, "https://dashboard.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = serve(app, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
