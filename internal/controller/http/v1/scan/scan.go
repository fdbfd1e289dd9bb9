package scan

import (
	"net/http"

	"busoptimizer/backend/foundation/web"
	"busoptimizer/backend/internal/middleware"
	"busoptimizer/backend/internal/service/attendance"
)

type UploadRequest struct {
	Scans []attendance.Scan `json:"scans" binding:"required,max=5000"`
}

type Controller struct {
	recorder Recorder
}

func NewController(recorder Recorder) *Controller {
	return &Controller{recorder: recorder}
}

// UploadScans records a device batch. The response lists the ids the
// device can drop from its queue.
func (uc Controller) UploadScans(c *web.Context) error {
	var request UploadRequest

	if err := c.BindFunc(&request, "Scans"); err != nil {
		return c.RespondError(err)
	}

	source := "device"
	if label := middleware.Device(c.Ctx); label != "" {
		source = "device:" + label
	}

	ids, err := uc.recorder.RecordScans(c.Ctx, request.Scans, source)
	if err != nil {
		return c.RespondError(err)
	}

	return c.Respond(map[string]interface{}{
		"success_ids": ids,
	}, http.StatusOK)
}
