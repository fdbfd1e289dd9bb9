package web

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/Azure/go-autorest/autorest/date"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

// Context wraps gin's context with the request context and the query/param
// parsing errors collected by the Get* helpers.
type Context struct {
	*gin.Context
	Ctx context.Context

	queryErrs []string
	paramErrs []string
}

// Respond converts data to JSON and sends it with the given status code.
func (c *Context) Respond(data interface{}, statusCode int) error {
	if v, ok := c.Ctx.Value(KeyValues).(*Values); ok {
		v.StatusCode = statusCode
	}

	if statusCode == http.StatusNoContent {
		c.Status(statusCode)
		return nil
	}

	c.JSON(statusCode, data)
	return nil
}

// RespondError sends an error response. Known request errors keep their
// status, validation errors map to 400, everything else is a 500.
func (c *Context) RespondError(err error) error {
	var webErr *Error
	if errors.As(err, &webErr) {
		resp := ErrorResponse{
			Error:  webErr.Err.Error(),
			Fields: webErr.Fields,
			Status: false,
		}
		return c.Respond(resp, webErr.Status)
	}

	if fields, ok := ValidationFields(err); ok {
		return c.Respond(ErrorResponse{
			Error:  "validation failed",
			Fields: fields,
			Status: false,
		}, http.StatusBadRequest)
	}

	return c.Respond(ErrorResponse{
		Error:  http.StatusText(http.StatusInternalServerError),
		Status: false,
	}, http.StatusInternalServerError)
}

// BindFunc binds the request body (json or form) into data and runs struct
// validation. requiredFields are additionally checked to be non-zero.
func (c *Context) BindFunc(data interface{}, requiredFields ...string) error {
	Validator()

	if err := c.ShouldBind(data); err != nil {
		if fields, ok := ValidationFields(err); ok {
			return &Error{Err: errors.New("validation failed"), Fields: fields, Status: http.StatusBadRequest}
		}
		return NewRequestError(errors.Wrap(err, "bind request"), http.StatusBadRequest)
	}

	if fields := RequiredFields(data, requiredFields...); len(fields) > 0 {
		return &Error{Err: errors.New("required fields are missing"), Fields: fields, Status: http.StatusBadRequest}
	}

	return nil
}

// GetQueryFunc parses query parameter key as kind. It returns a pointer of
// the matching type, or nil when the parameter is absent. Parse failures are
// reported by ValidQuery.
func (c *Context) GetQueryFunc(kind reflect.Kind, key string) interface{} {
	raw, ok := c.GetQuery(key)
	if !ok {
		return nil
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	v, err := parseKind(kind, raw)
	if err != nil {
		c.queryErrs = append(c.queryErrs, fmt.Sprintf("%s: %s", key, err.Error()))
		return nil
	}
	return v
}

// GetDateQuery parses query parameter key as a YYYY-MM-DD date. It returns
// nil when the parameter is absent; parse failures are reported by
// ValidQuery.
func (c *Context) GetDateQuery(key string) *time.Time {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil
	}

	d, err := date.ParseDate(raw)
	if err != nil {
		c.queryErrs = append(c.queryErrs, fmt.Sprintf("%s: must be a date (YYYY-MM-DD)", key))
		return nil
	}
	t := d.ToTime()
	return &t
}

func (c *Context) ValidQuery() error {
	if len(c.queryErrs) == 0 {
		return nil
	}
	return NewRequestError(errors.Errorf("invalid query: %s", strings.Join(c.queryErrs, "; ")), http.StatusBadRequest)
}

// GetParam parses the path parameter key as kind and returns the value
// (not a pointer). The zero value is returned on failure, see ValidParam.
func (c *Context) GetParam(kind reflect.Kind, key string) interface{} {
	v, err := parseKind(kind, c.Param(key))
	if err != nil {
		c.paramErrs = append(c.paramErrs, fmt.Sprintf("%s: %s", key, err.Error()))
		return reflect.Zero(kindType(kind)).Interface()
	}
	return reflect.ValueOf(v).Elem().Interface()
}

func (c *Context) ValidParam() error {
	if len(c.paramErrs) == 0 {
		return nil
	}
	return NewRequestError(errors.Errorf("invalid path: %s", strings.Join(c.paramErrs, "; ")), http.StatusBadRequest)
}

func parseKind(kind reflect.Kind, raw string) (interface{}, error) {
	switch kind {
	case reflect.String:
		return &raw, nil
	case reflect.Int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, errors.New("must be an integer")
		}
		return &n, nil
	case reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, errors.New("must be an integer")
		}
		return &n, nil
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, errors.New("must be true or false")
		}
		return &b, nil
	case reflect.Float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, errors.New("must be a number")
		}
		return &f, nil
	}
	return nil, errors.Errorf("unsupported kind %s", kind)
}

func kindType(kind reflect.Kind) reflect.Type {
	switch kind {
	case reflect.Int:
		return reflect.TypeOf(0)
	case reflect.Int64:
		return reflect.TypeOf(int64(0))
	case reflect.Bool:
		return reflect.TypeOf(false)
	case reflect.Float64:
		return reflect.TypeOf(float64(0))
	}
	return reflect.TypeOf("")
}
