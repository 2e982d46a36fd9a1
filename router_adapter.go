package kino

import (
	"context"
	"net/http"

	"github.com/goliatone/go-router"
)

// goRouterAdapter wraps a router.Router[T] to implement Router.
type goRouterAdapter[T any] struct {
	r router.Router[T]
}

// NewGoRouterAdapter creates a Router that registers on a go-router group.
func NewGoRouterAdapter[T any](r router.Router[T]) Router {
	return &goRouterAdapter[T]{r: r}
}

func (ra *goRouterAdapter[T]) Get(path string, handler func(Context) error) RouterRouteInfo {
	return &routerRouteInfoAdapter{ri: ra.r.Get(path, ra.wrap(handler))}
}

func (ra *goRouterAdapter[T]) Post(path string, handler func(Context) error) RouterRouteInfo {
	return &routerRouteInfoAdapter{ri: ra.r.Post(path, ra.wrap(handler))}
}

func (ra *goRouterAdapter[T]) wrap(h func(Context) error) router.HandlerFunc {
	return func(rc router.Context) error {
		return h(&contextAdapter{c: rc})
	}
}

type routerRouteInfoAdapter struct {
	ri router.RouteInfo
}

func (ria *routerRouteInfoAdapter) Name(n string) RouterRouteInfo {
	ria.ri.SetName(n)
	return ria
}

// contextAdapter wraps a router.Context to implement Context.
type contextAdapter struct {
	c      router.Context
	status int
}

func (ca *contextAdapter) UserContext() context.Context {
	return ca.c.Context()
}

func (ca *contextAdapter) Method() string {
	return ca.c.Method()
}

func (ca *contextAdapter) Header(key string) string {
	return ca.c.Header(key)
}

func (ca *contextAdapter) Query(key string, defaultValue ...string) string {
	def := ""
	if len(defaultValue) > 0 {
		def = defaultValue[0]
	}
	return ca.c.Query(key, def)
}

func (ca *contextAdapter) Body() []byte {
	return ca.c.Body()
}

func (ca *contextAdapter) Status(status int) Response {
	ca.status = status
	ca.c.Status(status)
	return ca
}

func (ca *contextAdapter) SetHeader(key, value string) {
	ca.c.SetHeader(key, value)
}

func (ca *contextAdapter) JSON(data any, ctype ...string) error {
	if ca.status == 0 {
		ca.status = http.StatusOK
	}
	if len(ctype) > 0 && ctype[0] != "" {
		ca.c.SetHeader(router.HeaderContentType, ctype[0])
	}
	return ca.c.JSON(ca.status, data)
}

func (ca *contextAdapter) SendBody(contentType string, body []byte) error {
	if ca.status == 0 {
		ca.status = http.StatusOK
	}
	ca.c.SetHeader(router.HeaderContentType, contentType)
	ca.c.Status(ca.status)
	return ca.c.Send(body)
}
