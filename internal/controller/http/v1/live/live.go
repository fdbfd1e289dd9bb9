package live

import (
	"net/http"

	"busoptimizer/backend/foundation/web"
	"busoptimizer/backend/internal/pkg/logger"
)

type Streamer interface {
	ServeWS(w http.ResponseWriter, r *http.Request) error
}

type Controller struct {
	stream Streamer
	log    logger.Logger
}

func NewController(stream Streamer, log logger.Logger) *Controller {
	return &Controller{stream: stream, log: log.WithComponent("live")}
}

// Scans upgrades the request and pushes every recorded scan to the client.
func (uc Controller) Scans(c *web.Context) error {
	if err := uc.stream.ServeWS(c.Writer, c.Request); err != nil {
		uc.log.WithError(err).Warn("scan stream closed")
	}
	return nil
}
