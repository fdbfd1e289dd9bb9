package upload

import (
	"net/http"

	"github.com/pkg/errors"

	"busoptimizer/backend/foundation/web"
	"busoptimizer/backend/internal/service/archive"
	"busoptimizer/backend/internal/service/export"
	"busoptimizer/backend/internal/service/ingest"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Controller struct {
	importer Importer
	maxBytes int64
}

func NewController(importer Importer, maxBytes int64) *Controller {
	return &Controller{importer: importer, maxBytes: maxBytes}
}

func (uc Controller) read(c *web.Context) (string, []byte, error) {
	file, err := c.FormFile("file")
	if err != nil {
		return "", nil, web.NewRequestError(errors.New("file is required"), http.StatusBadRequest)
	}

	data, err := archive.ReadUpload(file, uc.maxBytes)
	if err != nil {
		return "", nil, web.NewRequestError(err, http.StatusBadRequest)
	}
	return file.Filename, data, nil
}

func (uc Controller) MasterList(c *web.Context) error {
	filename, data, err := uc.read(c)
	if err != nil {
		return c.RespondError(err)
	}

	result, err := uc.importer.ImportMaster(c.Ctx, filename, data)
	if err != nil {
		return c.RespondError(err)
	}

	return c.Respond(map[string]interface{}{
		"data":   result,
		"status": true,
	}, http.StatusOK)
}

func (uc Controller) Attendance(c *web.Context) error {
	filename, data, err := uc.read(c)
	if err != nil {
		return c.RespondError(err)
	}

	result, err := uc.importer.ImportAttendance(c.Ctx, filename, data, c.PostForm("shift"))
	if err != nil {
		return c.RespondError(err)
	}

	return c.Respond(map[string]interface{}{
		"data":   result,
		"status": true,
	}, http.StatusOK)
}

func (uc Controller) MasterTemplate(c *web.Context) error {
	data, err := export.Template("Master", ingest.MasterHeaders)
	if err != nil {
		return c.RespondError(err)
	}

	c.Header("Content-Disposition", "attachment; filename=\"master_list_template.xlsx\"")
	c.Data(http.StatusOK, xlsxContentType, data)
	return nil
}
