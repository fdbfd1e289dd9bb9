package auth

import (
	"net/http"

	"github.com/pkg/errors"

	"busoptimizer/backend/foundation/web"
	"busoptimizer/backend/internal/auth"
	"busoptimizer/backend/internal/repository/postgres/user"
)

type Controller struct {
	user   User
	tokens Tokens
}

func NewController(user User, tokens Tokens) *Controller {
	return &Controller{user: user, tokens: tokens}
}

var errBadCredentials = errors.New("incorrect username or password")

func (uc Controller) SignIn(c *web.Context) error {
	var data user.SignInRequest

	if err := c.BindFunc(&data, "Username", "Password"); err != nil {
		return c.RespondError(err)
	}

	detail, err := uc.user.GetByUsername(c.Ctx, data.Username)
	if err != nil {
		var webErr *web.Error
		if errors.As(err, &webErr) && webErr.Status == http.StatusUnauthorized {
			return c.RespondError(web.NewRequestError(errBadCredentials, http.StatusUnauthorized))
		}
		return c.RespondError(err)
	}

	if !auth.ComparePassword(detail.Password, data.Password) {
		return c.RespondError(web.NewRequestError(errBadCredentials, http.StatusUnauthorized))
	}

	accessToken, err := uc.tokens.GenerateToken(detail.ID, detail.Role)
	if err != nil {
		return c.RespondError(err)
	}

	return c.Respond(map[string]interface{}{
		"status": true,
		"data": map[string]interface{}{
			"access_token": accessToken,
			"role":         detail.Role,
			"username":     detail.Username,
		},
		"error": nil,
	}, http.StatusOK)
}
