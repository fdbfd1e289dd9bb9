package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"busoptimizer/backend/foundation/web"
	"busoptimizer/backend/internal/auth"
)

type deviceKey int

const keyDevice deviceKey = 1

var ErrInvalidAPIKey = errors.New("invalid API key")

// APIKey authenticates scanning devices by the X-API-KEY header. keys maps
// a device label to its key, stored either plain or as a bcrypt hash.
func APIKey(keys map[string]string) web.Middleware {
	labels := make([]string, 0, len(keys))
	for label := range keys {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	m := func(handler web.Handler) web.Handler {
		h := func(c *web.Context) error {
			given := strings.TrimSpace(c.Request.Header.Get("X-API-KEY"))
			if given == "" {
				return c.RespondError(web.NewRequestError(errors.New("missing X-API-KEY header"), http.StatusUnauthorized))
			}

			label, ok := matchKey(labels, keys, given)
			if !ok {
				return c.RespondError(web.NewRequestError(ErrInvalidAPIKey, http.StatusUnauthorized))
			}

			c.Ctx = context.WithValue(c.Ctx, keyDevice, label)
			return handler(c)
		}

		return h
	}

	return m
}

func matchKey(labels []string, keys map[string]string, given string) (string, bool) {
	for _, label := range labels {
		stored := keys[label]
		if strings.HasPrefix(stored, "$2") {
			if auth.ComparePassword(stored, given) {
				return label, true
			}
			continue
		}
		if subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1 {
			return label, true
		}
	}
	return "", false
}

// Device returns the label of the device authenticated by APIKey.
func Device(ctx context.Context) string {
	label, _ := ctx.Value(keyDevice).(string)
	return label
}
