// Package kino resolves GraphQL operations against an explicit type
// registry, gating every field with a permission rule before its resolver
// runs.
package kino

import (
	"context"
)

type Request interface {
	UserContext() context.Context
	Method() string
	Header(key string) string
	Query(key string, defaultValue ...string) string
	Body() []byte
}

type Response interface {
	Status(status int) Response
	JSON(data any, ctype ...string) error
	SetHeader(key, value string)
	SendBody(contentType string, body []byte) error
}

type Context interface {
	Request
	Response
}

// Router is the subset of an HTTP router the handler registers on.
type Router interface {
	Get(path string, handler func(Context) error) RouterRouteInfo
	Post(path string, handler func(Context) error) RouterRouteInfo
}

// RouterRouteInfo is a simplified interface for route info
type RouterRouteInfo interface {
	Name(string) RouterRouteInfo
}
