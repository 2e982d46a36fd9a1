package kino

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// fiberAdapter wraps a fiber.Router so that it satisfies Router.
type fiberAdapter struct {
	r fiber.Router
}

// NewFiberAdapter creates a Router that registers on a fiber.Router.
func NewFiberAdapter(r fiber.Router) Router {
	return &fiberAdapter{r: r}
}

func (ra *fiberAdapter) Get(path string, handler func(Context) error) RouterRouteInfo {
	return &routeInfoAdapter{ri: ra.r.Get(path, ra.wrap(handler))}
}

func (ra *fiberAdapter) Post(path string, handler func(Context) error) RouterRouteInfo {
	return &routeInfoAdapter{ri: ra.r.Post(path, ra.wrap(handler))}
}

func (ra *fiberAdapter) wrap(h func(Context) error) func(*fiber.Ctx) error {
	return func(rc *fiber.Ctx) error {
		return h(&fiberContext{c: rc})
	}
}

type routeInfoAdapter struct {
	ri fiber.Router
}

func (ria *routeInfoAdapter) Name(n string) RouterRouteInfo {
	ria.ri.Name(n)
	return ria
}

// fiberContext wraps a *fiber.Ctx to implement Context.
type fiberContext struct {
	c          *fiber.Ctx
	statusCode int
}

func (fc *fiberContext) UserContext() context.Context {
	return fc.c.UserContext()
}

func (fc *fiberContext) Method() string {
	return fc.c.Method()
}

func (fc *fiberContext) Header(key string) string {
	return fc.c.Get(key)
}

func (fc *fiberContext) Query(key string, defaultValue ...string) string {
	return fc.c.Query(key, defaultValue...)
}

func (fc *fiberContext) Body() []byte {
	return fc.c.Body()
}

func (fc *fiberContext) Status(status int) Response {
	fc.statusCode = status
	fc.c.Status(status)
	return fc
}

func (fc *fiberContext) SetHeader(key, value string) {
	fc.c.Set(key, value)
}

func (fc *fiberContext) JSON(data any, ctype ...string) error {
	if fc.statusCode == 0 {
		fc.statusCode = http.StatusOK
	}
	fc.c.Status(fc.statusCode)
	return fc.c.JSON(data, ctype...)
}

func (fc *fiberContext) SendBody(contentType string, body []byte) error {
	if fc.statusCode == 0 {
		fc.statusCode = http.StatusOK
	}
	fc.c.Status(fc.statusCode)
	fc.c.Set(fiber.HeaderContentType, contentType)
	return fc.c.Send(body)
}
