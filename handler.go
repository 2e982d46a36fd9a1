package kino

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/99designs/gqlgen/graphql"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// DefaultMaxBodySize is the largest accepted POST body.
const DefaultMaxBodySize = 1 << 20

// DefaultRequestTimeout bounds one GraphQL request unless WithRequestTimeout
// says otherwise.
const DefaultRequestTimeout = 30 * time.Second

// SessionFunc attaches the caller's session, derived from the Authorization
// header value, to ctx. Provider.Attach satisfies it.
type SessionFunc func(ctx context.Context, authorization string) context.Context

// Handler exposes an Engine over HTTP.
type Handler struct {
	engine      *Engine
	attach      SessionFunc
	logger      Logger
	encodeError ErrorEncoder
	maxBodySize int
	timeout     time.Duration
}

// NewHandler creates a handler for engine. A nil attach leaves every request
// anonymous.
func NewHandler(engine *Engine, attach SessionFunc, opts ...HandlerOption) *Handler {
	h := &Handler{
		engine:      engine,
		attach:      attach,
		logger:      &defaultLogger{},
		encodeError: ProblemJSONErrorEncoder(),
		maxBodySize: DefaultMaxBodySize,
		timeout:     DefaultRequestTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

func (h *Handler) RegisterRoutes(r Router) {
	r.Post("/graphql", h.Serve).
		Name("graphql:post")
	r.Get("/graphql", h.Serve).
		Name("graphql:get")
	r.Get("/schema.graphql", h.Schema).
		Name("graphql:schema")
}

// Schema writes the registry SDL.
func (h *Handler) Schema(ctx Context) error {
	return ctx.SendBody("text/plain; charset=utf-8", []byte(h.engine.Registry().SDL()))
}

// Serve executes one operation. POST reads a JSON body; GET reads the query,
// operationName and variables parameters and refuses mutations.
func (h *Handler) Serve(ctx Context) error {
	ctx = h.scope(ctx)
	ctx.SetHeader(HeaderRequestID, RequestIDFromContext(ctx.UserContext()))

	params, method, err := h.decode(ctx)
	if err != nil {
		return h.encodeError(ctx, err, method)
	}

	if method == http.MethodGet {
		kind, err := h.engine.OperationKind(params.Query, params.OperationName)
		if err == nil && kind == ast.Mutation {
			return h.encodeError(ctx, goerrors.New("mutations require POST", goerrors.CategoryMethodNotAllowed).
				WithCode(http.StatusMethodNotAllowed).
				WithTextCode("METHOD_NOT_ALLOWED"), method)
		}
	}

	userCtx, cancel := context.WithTimeout(ctx.UserContext(), h.timeout)
	defer cancel()
	if h.attach != nil {
		userCtx = h.attach(userCtx, ctx.Header(HeaderAuthorization))
	}

	resp := h.engine.Execute(userCtx, params)
	return ctx.Status(responseStatus(resp)).JSON(resp)
}

// scope stores request and correlation IDs on the request context.
func (h *Handler) scope(ctx Context) Context {
	userCtx := ctx.UserContext()
	if userCtx == nil {
		userCtx = context.Background()
	}

	requestID := resolveRequestID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	userCtx = ContextWithRequestID(userCtx, requestID)
	userCtx = ContextWithCorrelationID(userCtx, resolveCorrelationID(ctx))

	return &scopedContext{Context: ctx, ctx: userCtx}
}

func (h *Handler) decode(ctx Context) (*graphql.RawParams, string, error) {
	if strings.EqualFold(ctx.Method(), http.MethodGet) {
		params := &graphql.RawParams{
			Query:         ctx.Query("query"),
			OperationName: ctx.Query("operationName"),
		}
		if raw := ctx.Query("variables"); raw != "" {
			if err := decodeJSON([]byte(raw), &params.Variables); err != nil {
				return nil, http.MethodGet, badRequest("variables must be a JSON object")
			}
		}
		return params, http.MethodGet, nil
	}

	body := ctx.Body()
	if len(body) > h.maxBodySize {
		return nil, http.MethodPost, goerrors.New("request body too large", goerrors.CategoryBadInput).
			WithCode(http.StatusRequestEntityTooLarge).
			WithTextCode("PAYLOAD_TOO_LARGE")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, http.MethodPost, badRequest("request body is empty")
	}

	var params graphql.RawParams
	if err := decodeJSON(body, &params); err != nil {
		h.logger.Debug("invalid request body: %v", err)
		return nil, http.MethodPost, badRequest("request body must be a JSON object")
	}
	return &params, http.MethodPost, nil
}

func decodeJSON(data []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(out)
}

// responseStatus is 422 when the document was rejected before execution and
// 200 otherwise, partial results included.
func responseStatus(resp *graphql.Response) int {
	if len(resp.Data) == 0 && len(resp.Errors) > 0 && rejected(resp.Errors) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusOK
}

func rejected(list gqlerror.List) bool {
	for _, err := range list {
		if len(err.Path) > 0 {
			return false
		}
	}
	return true
}

type scopedContext struct {
	Context
	ctx context.Context
}

func (s *scopedContext) UserContext() context.Context {
	return s.ctx
}
