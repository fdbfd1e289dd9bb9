package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"busoptimizer/backend/foundation/web"
	"busoptimizer/backend/internal/auth"
	"busoptimizer/backend/internal/entity"
	"busoptimizer/backend/internal/pkg/logger"
	"busoptimizer/backend/internal/repository/postgres"
)

type stubUsers map[string]entity.User

func (s stubUsers) GetByUsername(_ context.Context, username string) (entity.User, error) {
	u, ok := s[strings.ToLower(username)]
	if !ok {
		return entity.User{}, web.NewRequestError(postgres.ErrNotFound, http.StatusUnauthorized)
	}
	return u, nil
}

type stubTokens struct{}

func (stubTokens) GenerateToken(userID int64, role string) (string, error) {
	if userID == 0 {
		return "", errors.New("no user")
	}
	return role + "-token", nil
}

func signIn(t *testing.T, users stubUsers, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	app := web.NewApp(logger.Discard())
	app.Post("/api/v1/sign-in", NewController(users, stubTokens{}).SignIn)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sign-in", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	app.ServeHTTP(w, req)
	return w
}

func TestSignIn(t *testing.T) {
	hash, err := auth.HashPassword("s3cret")
	require.NoError(t, err)

	ops := entity.User{Username: "ops", Password: hash, Role: auth.RoleAdmin}
	ops.ID = 4
	users := stubUsers{"ops": ops}

	t.Run("success", func(t *testing.T) {
		w := signIn(t, users, `{"username":"OPS","password":"s3cret"}`)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data struct {
				AccessToken string `json:"access_token"`
				Role        string `json:"role"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "ADMIN-token", resp.Data.AccessToken)
		assert.Equal(t, auth.RoleAdmin, resp.Data.Role)
	})

	t.Run("wrong password", func(t *testing.T) {
		w := signIn(t, users, `{"username":"ops","password":"nope"}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), errBadCredentials.Error())
	})

	t.Run("unknown user", func(t *testing.T) {
		w := signIn(t, users, `{"username":"ghost","password":"s3cret"}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), errBadCredentials.Error())
	})

	t.Run("missing password", func(t *testing.T) {
		w := signIn(t, users, `{"username":"ops"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
