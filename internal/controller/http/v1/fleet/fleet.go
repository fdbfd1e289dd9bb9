package fleet

import (
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"busoptimizer/backend/foundation/web"
	"busoptimizer/backend/internal/repository/postgres/fleet"
	"busoptimizer/backend/internal/service/export"
)

type Controller struct {
	fleet Fleet
	cache Invalidator
}

func NewController(fleet Fleet, cache Invalidator) *Controller {
	return &Controller{fleet: fleet, cache: cache}
}

func (uc Controller) invalidate(c *web.Context) {
	if uc.cache != nil {
		uc.cache.Invalidate(c.Ctx)
	}
}

// Bus

func (uc Controller) ListBuses(c *web.Context) error {
	list, err := uc.fleet.ListBuses(c.Ctx)
	if err != nil {
		return c.RespondError(err)
	}

	return c.Respond(map[string]interface{}{
		"data": map[string]interface{}{
			"results": list,
			"count":   len(list),
		},
		"status": true,
	}, http.StatusOK)
}

func (uc Controller) UpsertBus(c *web.Context) error {
	var request fleet.BusRequest

	if err := c.BindFunc(&request, "BusID"); err != nil {
		return c.RespondError(err)
	}

	bus, err := uc.fleet.UpsertBus(c.Ctx, request)
	if err != nil {
		return c.RespondError(err)
	}
	uc.invalidate(c)

	return c.Respond(map[string]interface{}{
		"data":   bus,
		"status": true,
	}, http.StatusOK)
}

// Van

func (uc Controller) ListVans(c *web.Context) error {
	var filter fleet.VanFilter

	if busID, ok := c.GetQueryFunc(reflect.String, "bus_id").(*string); ok {
		filter.BusID = busID
	}
	if err := c.ValidQuery(); err != nil {
		return c.RespondError(err)
	}

	list, err := uc.fleet.ListVans(c.Ctx, filter)
	if err != nil {
		return c.RespondError(err)
	}

	return c.Respond(map[string]interface{}{
		"data": map[string]interface{}{
			"results": list,
			"count":   len(list),
		},
		"status": true,
	}, http.StatusOK)
}

func (uc Controller) UpsertVan(c *web.Context) error {
	var request fleet.VanRequest

	if err := c.BindFunc(&request, "VanCode"); err != nil {
		return c.RespondError(err)
	}

	van, err := uc.fleet.UpsertVan(c.Ctx, request)
	if err != nil {
		return c.RespondError(err)
	}
	uc.invalidate(c)

	return c.Respond(map[string]interface{}{
		"data":   van,
		"status": true,
	}, http.StatusOK)
}

// Employee

func (uc Controller) ListEmployees(c *web.Context) error {
	var filter fleet.EmployeeFilter

	if limit, ok := c.GetQueryFunc(reflect.Int, "limit").(*int); ok {
		filter.Limit = limit
	}
	if offset, ok := c.GetQueryFunc(reflect.Int, "offset").(*int); ok {
		filter.Offset = offset
	}
	if page, ok := c.GetQueryFunc(reflect.Int, "page").(*int); ok {
		filter.Page = page
	}
	if search, ok := c.GetQueryFunc(reflect.String, "search").(*string); ok {
		filter.Search = search
	}
	if busID, ok := c.GetQueryFunc(reflect.String, "bus_id").(*string); ok {
		filter.BusID = busID
	}
	if active, ok := c.GetQueryFunc(reflect.Bool, "active").(*bool); ok {
		filter.Active = active
	}
	if err := c.ValidQuery(); err != nil {
		return c.RespondError(err)
	}

	list, count, err := uc.fleet.ListEmployees(c.Ctx, filter)
	if err != nil {
		return c.RespondError(err)
	}

	return c.Respond(map[string]interface{}{
		"data": map[string]interface{}{
			"results": list,
			"count":   count,
		},
		"status": true,
	}, http.StatusOK)
}

func (uc Controller) UpsertEmployee(c *web.Context) error {
	var request fleet.EmployeeRequest

	if err := c.BindFunc(&request, "BatchID", "Name"); err != nil {
		return c.RespondError(err)
	}

	employee, err := uc.fleet.UpsertEmployee(c.Ctx, request)
	if err != nil {
		return c.RespondError(err)
	}
	uc.invalidate(c)

	return c.Respond(map[string]interface{}{
		"data":   employee,
		"status": true,
	}, http.StatusOK)
}

func badge(e fleet.EmployeeListItem) export.Badge {
	b := export.Badge{BatchID: e.BatchID, Name: e.Name}
	if e.BusID != nil {
		b.BusID = *e.BusID
	}
	return b
}

func (uc Controller) Badge(c *web.Context) error {
	batchID := c.GetParam(reflect.Int64, "batch_id").(int64)

	if err := c.ValidParam(); err != nil {
		return c.RespondError(err)
	}

	employee, err := uc.fleet.GetEmployee(c.Ctx, batchID)
	if err != nil {
		return c.RespondError(err)
	}

	data, err := export.BadgePNG(badge(employee))
	if err != nil {
		return c.RespondError(err)
	}

	c.Header("Content-Disposition", "inline; filename=\"badge_"+strconv.FormatInt(batchID, 10)+".png\"")
	c.Data(http.StatusOK, "image/png", data)
	return nil
}

func (uc Controller) Badges(c *web.Context) error {
	busID := strings.ToUpper(strings.TrimSpace(c.Query("bus_id")))
	if busID == "" {
		return c.RespondError(web.NewRequestError(errors.New("bus_id parameter is required"), http.StatusBadRequest))
	}

	employees, err := uc.fleet.BusEmployees(c.Ctx, busID)
	if err != nil {
		return c.RespondError(err)
	}

	badges := make([]export.Badge, 0, len(employees))
	for _, e := range employees {
		badges = append(badges, badge(e))
	}

	data, err := export.BadgeSheetPDF("Bus "+busID, badges)
	if err != nil {
		return c.RespondError(err)
	}

	c.Header("Content-Disposition", "attachment; filename=\"badges_"+busID+".pdf\"")
	c.Data(http.StatusOK, "application/pdf", data)
	return nil
}

// Attendance

func (uc Controller) DeleteAttendanceByDate(c *web.Context) error {
	var request fleet.DeleteAttendanceRequest

	from := c.GetDateQuery("date_from")
	request.DateTo = c.GetDateQuery("date_to")
	if err := c.ValidQuery(); err != nil {
		return c.RespondError(err)
	}
	if from == nil {
		return c.RespondError(web.NewRequestError(errors.New("date_from parameter is required"), http.StatusBadRequest))
	}
	request.DateFrom = *from

	resp, err := uc.fleet.DeleteAttendanceByDate(c.Ctx, request)
	if err != nil {
		return c.RespondError(err)
	}
	uc.invalidate(c)

	return c.Respond(map[string]interface{}{
		"data":   resp,
		"status": true,
	}, http.StatusOK)
}
