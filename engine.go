package kino

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/99designs/gqlgen/graphql"
	"github.com/99designs/gqlgen/graphql/errcode"
	gql "github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/gqlerrors"
	gqlast "github.com/graphql-go/graphql/language/ast"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/vektah/gqlparser/v2/validator"
	"golang.org/x/sync/errgroup"
)

const CodeIntrospectionDisabled = "INTROSPECTION_DISABLED"

var (
	ErrNoOperation          = errors.New("no operation provided")
	ErrOperationNameMissing = errors.New("operation name is required when the document defines several operations")
	ErrSubscriptions        = errors.New("subscriptions are not supported")
	ErrIntrospection        = errors.New("introspection disabled")
)

// Engine executes operations against a Registry. It is safe for concurrent
// use; all per-request state lives in the execution.
type Engine struct {
	registry       *Registry
	logger         Logger
	metrics        Metrics
	maxConcurrency int
}

// NewEngine returns an engine for registry.
func NewEngine(registry *Registry, opts ...EngineOption) (*Engine, error) {
	if registry == nil {
		return nil, errors.New("engine: registry is required")
	}
	e := &Engine{
		registry:       registry,
		logger:         &defaultLogger{},
		metrics:        nopMetrics{},
		maxConcurrency: DefaultMaxConcurrency,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

func (e *Engine) Registry() *Registry {
	return e.registry
}

// Execute validates params with gqlparser and runs them on the graphql-go
// executor. The identity is read from ctx (see ContextWithSession);
// cancelling ctx stops further resolver calls.
func (e *Engine) Execute(ctx context.Context, params *graphql.RawParams) *graphql.Response {
	start := time.Now()
	if params == nil || strings.TrimSpace(params.Query) == "" {
		return e.reject(start, "unknown", requestError(errcode.ValidationFailed, "query is required"))
	}

	schema := e.registry.Schema()
	doc, errs := gqlparser.LoadQuery(schema, params.Query)
	if len(errs) > 0 {
		return e.reject(start, "unknown", requestErrors(errs)...)
	}

	op, err := selectOperation(doc, params.OperationName)
	if err != nil {
		return e.reject(start, "unknown", requestError(errcode.ValidationFailed, err.Error()))
	}

	switch op.Operation {
	case ast.Query:
	case ast.Mutation:
		if schema.Mutation == nil {
			return e.reject(start, string(op.Operation), requestError(errcode.ValidationFailed,
				fmt.Sprintf("schema does not define %s operations", op.Operation)))
		}
	default:
		return e.reject(start, string(op.Operation), requestError(errcode.ValidationFailed, ErrSubscriptions.Error()))
	}

	if usesIntrospection(op.SelectionSet, map[string]bool{}) {
		return e.reject(start, string(op.Operation), requestError(CodeIntrospectionDisabled, ErrIntrospection.Error()))
	}

	if _, verr := validator.VariableValues(schema, op, params.Variables); verr != nil {
		return e.reject(start, string(op.Operation), variableErrors(verr)...)
	}

	vars := normalizeVariables(params.Variables)
	ex := &execution{
		engine:    e,
		op:        op,
		vars:      vars,
		identity:  IdentityFromContext(ctx),
		requestID: RequestIDFromContext(ctx),
		failures:  map[string]*gqlerror.Error{},
	}
	ex.group.SetLimit(e.maxConcurrency)

	result := gql.Do(gql.Params{
		Schema:         *e.registry.executable,
		RequestString:  params.Query,
		VariableValues: vars,
		OperationName:  params.OperationName,
		Context:        context.WithValue(ctx, executionKey{}, ex),
	})
	_ = ex.group.Wait()

	fieldErrs := ex.responseErrors(ctx, result.Errors)
	if result.Data == nil && len(fieldErrs) > 0 && !hasFieldErrors(fieldErrs) && ctx.Err() == nil {
		return e.reject(start, string(op.Operation), fieldErrs...)
	}

	raw := json.RawMessage("null")
	if !isNil(result.Data) {
		encoded, err := json.Marshal(result.Data)
		if err != nil {
			e.logger.Error("encode response: %v", err)
			return e.reject(start, string(op.Operation), PresentError(ctx, NewInternalError(err), nil))
		}
		raw = encoded
	}

	resp := &graphql.Response{Data: raw, Errors: fieldErrs}
	e.metrics.OperationCompleted(string(op.Operation), operationStatus(resp), time.Since(start))
	return resp
}

// OperationKind parses query and returns the kind of the operation that
// Execute would run. The document is not validated.
func (e *Engine) OperationKind(query, operationName string) (ast.Operation, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: query})
	if err != nil {
		return "", err
	}
	op, err := selectOperation(doc, operationName)
	if err != nil {
		return "", err
	}
	return op.Operation, nil
}

func (e *Engine) reject(start time.Time, operation string, errs ...*gqlerror.Error) *graphql.Response {
	e.metrics.OperationCompleted(operation, "rejected", time.Since(start))
	return &graphql.Response{Errors: gqlerror.List(errs)}
}

func operationStatus(resp *graphql.Response) string {
	if len(resp.Errors) == 0 {
		return "ok"
	}
	return "partial"
}

func selectOperation(doc *ast.QueryDocument, name string) (*ast.OperationDefinition, error) {
	if doc == nil || len(doc.Operations) == 0 {
		return nil, ErrNoOperation
	}
	if name != "" {
		for _, op := range doc.Operations {
			if op.Name == name {
				return op, nil
			}
		}
		return nil, fmt.Errorf("unknown operation %q", name)
	}
	if len(doc.Operations) > 1 {
		return nil, ErrOperationNameMissing
	}
	return doc.Operations[0], nil
}

// usesIntrospection reports whether set selects __schema or __type, looking
// through fragments.
func usesIntrospection(set ast.SelectionSet, visited map[string]bool) bool {
	for _, selection := range set {
		switch sel := selection.(type) {
		case *ast.Field:
			if sel.Name == "__schema" || sel.Name == "__type" {
				return true
			}
			if usesIntrospection(sel.SelectionSet, visited) {
				return true
			}
		case *ast.InlineFragment:
			if usesIntrospection(sel.SelectionSet, visited) {
				return true
			}
		case *ast.FragmentSpread:
			if visited[sel.Name] || sel.Definition == nil {
				continue
			}
			visited[sel.Name] = true
			if usesIntrospection(sel.Definition.SelectionSet, visited) {
				return true
			}
		}
	}
	return false
}

func variableErrors(err error) []*gqlerror.Error {
	var gqlErr *gqlerror.Error
	if !errors.As(err, &gqlErr) {
		gqlErr = &gqlerror.Error{Message: err.Error()}
	}
	if gqlErr.Extensions == nil {
		gqlErr.Extensions = map[string]any{}
	}
	gqlErr.Extensions["code"] = errcode.ValidationFailed
	return []*gqlerror.Error{gqlErr}
}

// normalizeVariables converts json.Number values, which the handler decodes,
// into the int64 and float64 values graphql-go coerces.
func normalizeVariables(vars map[string]any) map[string]any {
	if vars == nil {
		return nil
	}
	out := make(map[string]any, len(vars))
	for key, value := range vars {
		out[key] = normalizeValue(value)
	}
	return out
}

func normalizeValue(value any) any {
	switch v := value.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	case map[string]any:
		return normalizeVariables(v)
	case []any:
		out := make([]any, len(v))
		for i := range v {
			out[i] = normalizeValue(v[i])
		}
		return out
	}
	return value
}

type executionKey struct{}

// execution is the state of one Execute call, reachable from resolvers
// through the context handed to graphql-go.
type execution struct {
	engine    *Engine
	op        *ast.OperationDefinition
	vars      map[string]any
	identity  Identity
	requestID string
	group     errgroup.Group
	// aborted is set once a non-null mutation root field fails.
	aborted atomic.Bool

	mu       sync.Mutex
	failures map[string]*gqlerror.Error
}

type fieldCall struct {
	typeName string
	desc     *FieldDescriptor
	source   any
	args     Args
	path     ast.Path
	leaf     bool
}

type fieldResult struct {
	value any
	err   error
}

// fieldResolver is the resolve function installed on every executable field.
func fieldResolver(typeName string, desc *FieldDescriptor, leaf bool) gql.FieldResolveFn {
	return func(p gql.ResolveParams) (interface{}, error) {
		ex, ok := p.Context.Value(executionKey{}).(*execution)
		if !ok {
			return nil, fmt.Errorf("%s.%s resolved outside an engine execution", typeName, desc.Name)
		}
		return ex.resolveField(p, typeName, desc, leaf)
	}
}

// resolveField runs mutation root fields serially and stops after a non-null
// one fails. Nullable fields with resolvers run on the errgroup and hand
// graphql-go a thunk.
func (ex *execution) resolveField(p gql.ResolveParams, typeName string, desc *FieldDescriptor, leaf bool) (any, error) {
	ctx := p.Context
	var path ast.Path
	if p.Info.Path != nil {
		path = responsePath(p.Info.Path.AsArray())
	}
	call := fieldCall{
		typeName: typeName,
		desc:     desc,
		source:   p.Source,
		args:     ex.fieldArgs(p),
		path:     path,
		leaf:     leaf,
	}

	if typeName == MutationType && ex.op.Operation == ast.Mutation {
		if ex.aborted.Load() {
			return nil, ex.fail(ctx, ErrMutationSkipped, path)
		}
		value, err := ex.runField(ctx, call)
		if err != nil && desc.Type.nonNull {
			ex.aborted.Store(true)
		}
		return value, err
	}

	// graphql-go propagates a failed thunk of a non-null field to the root,
	// so only nullable fields resolve on the errgroup.
	if desc.Resolve == nil || desc.Type.nonNull || ex.engine.maxConcurrency <= 1 {
		return ex.runField(ctx, call)
	}

	done := make(chan fieldResult, 1)
	ex.group.Go(func() error {
		value, err := ex.runField(ctx, call)
		done <- fieldResult{value: value, err: err}
		return nil
	})
	return func() (interface{}, error) {
		res := <-done
		return res.value, res.err
	}, nil
}

// fieldArgs copies the coerced arguments and adds the ones passed as an
// explicit null, which graphql-go leaves out.
func (ex *execution) fieldArgs(p gql.ResolveParams) Args {
	args := make(Args, len(p.Args))
	for name, value := range p.Args {
		args[name] = value
	}
	if len(p.Info.FieldASTs) == 0 || p.Info.FieldASTs[0] == nil {
		return args
	}
	for _, arg := range p.Info.FieldASTs[0].Arguments {
		if arg == nil || arg.Name == nil {
			continue
		}
		if _, ok := args[arg.Name.Value]; ok {
			continue
		}
		if variable, ok := arg.Value.(*gqlast.Variable); ok {
			if variable.Name == nil {
				continue
			}
			if _, supplied := ex.vars[variable.Name.Value]; !supplied {
				continue
			}
		}
		args[arg.Name.Value] = nil
	}
	return args
}

func (ex *execution) runField(ctx context.Context, call fieldCall) (value any, err error) {
	desc := call.desc
	defer func() {
		if r := recover(); r != nil {
			ex.engine.logger.Error("panic resolving %s.%s: %v", call.typeName, desc.Name, r)
			value, err = nil, ex.fail(ctx, NewInternalError(fmt.Errorf("panic: %v", r)), call.path)
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, ex.fail(ctx, err, call.path)
	}

	started := time.Now()
	state := &FieldState{}
	req := RuleRequest{
		Identity:  ex.identity,
		TypeName:  call.typeName,
		FieldName: desc.Name,
		Source:    call.source,
		Args:      call.args,
		Path:      call.path,
		State:     state,
	}

	rule := ex.engine.registry.RuleFor(call.typeName, desc.Name)
	if err := ex.evaluate(ctx, rule, req); err != nil {
		ex.engine.metrics.FieldResolved(call.typeName, desc.Name, OutcomeDenied, time.Since(started))
		return nil, ex.fail(ctx, err, call.path)
	}

	resolved, err := ex.resolve(ctx, desc, ResolveParams{
		Source: call.source,
		Args:   call.args,
		Info: ResolveInfo{
			TypeName:  call.typeName,
			FieldName: desc.Name,
			Path:      call.path,
			Operation: ex.op.Operation,
		},
		State: state,
	})
	if err != nil {
		ex.engine.metrics.FieldResolved(call.typeName, desc.Name, OutcomeError, time.Since(started))
		return nil, ex.fail(ctx, err, call.path)
	}

	ex.engine.metrics.FieldResolved(call.typeName, desc.Name, OutcomeOK, time.Since(started))
	if isNil(resolved) {
		return nil, nil
	}
	if call.leaf {
		return unwrapValue(resolved), nil
	}
	return resolved, nil
}

// evaluate runs rule and normalizes any rejection to an AuthorizationError.
func (ex *execution) evaluate(ctx context.Context, rule Rule, req RuleRequest) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rule %s panicked: %v", rule.Name(), r)
		}
		audit := PermissionAudit{
			Rule:      rule.Name(),
			TypeName:  req.TypeName,
			FieldName: req.FieldName,
			Path:      req.Path.String(),
			Subject:   req.Identity.Subject,
			RequestID: ex.requestID,
			Allowed:   err == nil,
			Reason:    err,
		}
		LogPermissionDecision(ex.engine.logger, audit)
		if err != nil && !IsAuthorizationError(err) {
			err = NewAuthorizationError(err)
		}
	}()
	return rule.Evaluate(ctx, req)
}

func (ex *execution) resolve(ctx context.Context, desc *FieldDescriptor, params ResolveParams) (any, error) {
	if desc.Resolve != nil {
		return desc.Resolve(ctx, params)
	}
	name := desc.Property
	if name == "" {
		name = desc.Name
	}
	return resolveProperty(params.Source, name)
}

// fail records the client-facing form of err under path and returns the
// error handed to graphql-go.
func (ex *execution) fail(ctx context.Context, err error, path ast.Path) error {
	presented := PresentError(ctx, err, path)
	if presented.Extensions["code"] == CodeInternal {
		WithFields(ex.engine.logger, Fields{"path": path.String(), "request_id": ex.requestID}).
			Error("field failed: %v", err)
	}
	ex.mu.Lock()
	ex.failures[path.String()] = presented
	ex.mu.Unlock()
	return errors.New(presented.Message)
}

func (ex *execution) failure(path ast.Path) (*gqlerror.Error, bool) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	presented, ok := ex.failures[path.String()]
	return presented, ok
}

// responseErrors replaces graphql-go's errors with the ones recorded by fail.
// Field errors raised by graphql-go itself, such as a null in a non-null
// position, are reported as internal. graphql-go returns early with a
// pathless error when ctx ends mid-execution; that becomes CANCELLED.
func (ex *execution) responseErrors(ctx context.Context, list []gqlerrors.FormattedError) gqlerror.List {
	if len(list) == 0 {
		return nil
	}
	out := make(gqlerror.List, 0, len(list))
	for _, formatted := range list {
		path := responsePath(formatted.Path)
		presented, ok := ex.failure(path)
		switch {
		case ok:
		case len(path) == 0 && ctx.Err() != nil:
			presented = PresentError(ctx, ctx.Err(), nil)
		case len(path) == 0:
			presented = requestError(errcode.ValidationFailed, formatted.Message)
		default:
			WithFields(ex.engine.logger, Fields{"path": path.String(), "request_id": ex.requestID}).
				Error("field failed: %s", formatted.Message)
			presented = PresentError(ctx, NewInternalError(errors.New(formatted.Message)), path)
		}
		for _, loc := range formatted.Locations {
			presented.Locations = append(presented.Locations, gqlerror.Location{Line: loc.Line, Column: loc.Column})
		}
		out = append(out, presented)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Path.String() < out[j].Path.String()
	})
	return out
}

func hasFieldErrors(list gqlerror.List) bool {
	for _, err := range list {
		if len(err.Path) > 0 {
			return true
		}
	}
	return false
}

func responsePath(elems []interface{}) ast.Path {
	if len(elems) == 0 {
		return nil
	}
	path := make(ast.Path, 0, len(elems))
	for _, el := range elems {
		switch v := el.(type) {
		case string:
			path = append(path, ast.PathName(v))
		case int:
			path = append(path, ast.PathIndex(v))
		}
	}
	return path
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
