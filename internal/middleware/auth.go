package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"busoptimizer/backend/foundation/web"
	"busoptimizer/backend/internal/auth"
)

// Authenticate validates the bearer token and rejects callers without one
// of role.
func Authenticate(a *auth.Auth, role ...string) web.Middleware {
	return tokenMiddleware(a, role, func(c *web.Context) (string, error) {
		// Expecting: Bearer <token>
		parts := strings.Fields(c.Request.Header.Get("authorization"))
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return "", errors.New("expected authorization header format: Bearer <token>")
		}
		return parts[1], nil
	})
}

// WsAuthenticate reads the token from the authorization query parameter,
// since browsers cannot set headers on a websocket upgrade.
func WsAuthenticate(a *auth.Auth, role ...string) web.Middleware {
	return tokenMiddleware(a, role, func(c *web.Context) (string, error) {
		token := strings.TrimSpace(c.Query("authorization"))
		if token == "" {
			return "", errors.New("authorization query parameter is required")
		}
		return token, nil
	})
}

func tokenMiddleware(a *auth.Auth, role []string, token func(c *web.Context) (string, error)) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(c *web.Context) error {
			raw, err := token(c)
			if err != nil {
				return c.RespondError(web.NewRequestError(err, http.StatusUnauthorized))
			}

			// Validate the token is signed by us.
			claims, err := a.ValidateToken(raw)
			if err != nil {
				return c.RespondError(web.NewRequestError(err, http.StatusUnauthorized))
			}

			if !claims.Authorized(role...) {
				return c.RespondError(web.NewRequestError(auth.ErrForbidden, http.StatusForbidden))
			}

			// Add claims to the context so that they can be retrieved later.
			c.Ctx = context.WithValue(c.Ctx, auth.Key, claims)

			return handler(c)
		}

		return h
	}

	return m
}
