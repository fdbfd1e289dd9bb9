package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"busoptimizer/backend/internal/pkg/logger"
)

type ctxKey int

// KeyValues is how request values are stored/retrieved.
const KeyValues ctxKey = 1

// Values represent state for each request.
type Values struct {
	TraceID    string
	Now        time.Time
	StatusCode int
}

// Handler is the signature used by all controller methods.
type Handler func(c *Context) error

// Middleware runs some code before and/or after another Handler.
type Middleware func(handler Handler) Handler

// App is the entrypoint into the HTTP layer. It embeds gin so raw gin
// routes (file servers, websocket upgrades) stay available.
type App struct {
	*gin.Engine
	log logger.Logger
	mw  []Middleware
}

func NewApp(log logger.Logger, mw ...Middleware) *App {
	engine := gin.New()
	engine.Use(gin.Recovery())

	return &App{
		Engine: engine,
		log:    log,
		mw:     mw,
	}
}

// Handle wraps handler with the route middlewares first and the
// application middlewares second, then registers it on gin.
func (a *App) Handle(method string, path string, handler Handler, mw ...Middleware) {
	handler = wrapMiddleware(mw, handler)
	handler = wrapMiddleware(a.mw, handler)

	a.Engine.Handle(method, path, func(gc *gin.Context) {
		v := Values{
			TraceID: uuid.NewString(),
			Now:     time.Now(),
		}
		c := &Context{
			Context: gc,
			Ctx:     context.WithValue(gc.Request.Context(), KeyValues, &v),
		}

		if err := handler(c); err != nil {
			a.log.WithError(err).WithField("trace_id", v.TraceID).Error("unhandled error")
			if !gc.Writer.Written() {
				gc.AbortWithStatus(http.StatusInternalServerError)
			}
		}
	})
}

func (a *App) Get(path string, handler Handler, mw ...Middleware) {
	a.Handle(http.MethodGet, path, handler, mw...)
}

func (a *App) Post(path string, handler Handler, mw ...Middleware) {
	a.Handle(http.MethodPost, path, handler, mw...)
}

func (a *App) Put(path string, handler Handler, mw ...Middleware) {
	a.Handle(http.MethodPut, path, handler, mw...)
}

func (a *App) Patch(path string, handler Handler, mw ...Middleware) {
	a.Handle(http.MethodPatch, path, handler, mw...)
}

func (a *App) Delete(path string, handler Handler, mw ...Middleware) {
	a.Handle(http.MethodDelete, path, handler, mw...)
}

// Log returns the application logger.
func (a *App) Log() logger.Logger {
	return a.log
}

func wrapMiddleware(mw []Middleware, handler Handler) Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		if h := mw[i]; h != nil {
			handler = h(handler)
		}
	}
	return handler
}
