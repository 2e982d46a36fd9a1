package kino

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/99designs/gqlgen/graphql"
	"github.com/99designs/gqlgen/graphql/errcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"
)

type testItem struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Owner string  `json:"owner"`
	Note  *string `json:"note"`
}

type testBackend struct {
	resolverCalls atomic.Int32
	mu            sync.Mutex
	pushed        []string
	inFlight      atomic.Int32
	overlapped    atomic.Bool
	barrier       sync.WaitGroup
}

func (b *testBackend) items() []*testItem {
	note := "first"
	return []*testItem{
		{ID: "1", Name: "one", Owner: "alice", Note: &note},
		{ID: "2", Name: "two", Owner: "bob"},
	}
}

func (b *testBackend) registry(t *testing.T) *Registry {
	t.Helper()

	counted := func(fn ResolverFunc) ResolverFunc {
		return func(ctx context.Context, p ResolveParams) (any, error) {
			b.resolverCalls.Add(1)
			return fn(ctx, p)
		}
	}
	meet := func(ctx context.Context, _ ResolveParams) (any, error) {
		b.barrier.Done()
		done := make(chan struct{})
		go func() {
			b.barrier.Wait()
			close(done)
		}()
		select {
		case <-done:
			return "met", nil
		case <-time.After(2 * time.Second):
			return nil, errors.New("siblings did not run concurrently")
		}
	}

	pushArgs := []ArgumentDescriptor{{Name: "value", Type: NonNull(Named("String"))}}
	push := func(_ context.Context, p ResolveParams) (any, error) {
		if p.Args.String("value") == "" {
			return nil, NewValidationError("value", "value is required")
		}
		if b.inFlight.Add(1) > 1 {
			b.overlapped.Store(true)
		}
		defer b.inFlight.Add(-1)
		time.Sleep(5 * time.Millisecond)

		b.mu.Lock()
		defer b.mu.Unlock()
		b.pushed = append(b.pushed, p.Args.String("value"))
		return append([]string(nil), b.pushed...), nil
	}

	registry, err := NewRegistry(RegistryConfig{
		Types: []*TypeDescriptor{
			{
				Name: QueryType,
				Fields: []*FieldDescriptor{
					{Name: "hello", Type: NonNull(Named("String")), Resolve: counted(func(context.Context, ResolveParams) (any, error) {
						return "world", nil
					})},
					{Name: "secret", Type: Named("String"), Resolve: counted(func(context.Context, ResolveParams) (any, error) {
						return "classified", nil
					})},
					{Name: "whoami", Type: Named("String"), Rule: RequireAuthenticated(), Resolve: counted(func(ctx context.Context, _ ResolveParams) (any, error) {
						return IdentityFromContext(ctx).Subject, nil
					})},
					{Name: "items", Type: NonNull(ListOf(NonNull(Named("Item")))), Resolve: counted(func(context.Context, ResolveParams) (any, error) {
						return b.items(), nil
					})},
					{Name: "item", Type: Named("Item"), Args: []ArgumentDescriptor{{Name: "id", Type: NonNull(Named("ID"))}},
						Resolve: counted(func(_ context.Context, p ResolveParams) (any, error) {
							for _, it := range b.items() {
								if it.ID == p.Args.String("id") {
									return it, nil
								}
							}
							return nil, NewNotFoundError("item")
						})},
					{Name: "leak", Type: Named("String"), Resolve: counted(func(context.Context, ResolveParams) (any, error) {
						return nil, errors.New("dial tcp 10.0.0.1:5432: password authentication failed")
					})},
					{Name: "boom", Type: Named("String"), Resolve: counted(func(context.Context, ResolveParams) (any, error) {
						panic("kaboom")
					})},
					{Name: "handoff", Type: Named("String"),
						Rule: NewRule("stash", func(_ context.Context, req RuleRequest) error {
							req.State.Store("checked", "checked "+req.Identity.Subject)
							return nil
						}),
						Resolve: func(_ context.Context, p ResolveParams) (any, error) {
							value, ok := p.State.Load("checked")
							if !ok {
								return nil, errors.New("rule state missing")
							}
							return value, nil
						}},
					{Name: "optional", Type: NonNull(Named("String")), Rule: Allow(),
						Args: []ArgumentDescriptor{{Name: "value", Type: Named("String")}},
						Resolve: func(_ context.Context, p ResolveParams) (any, error) {
							switch {
							case !p.Args.Has("value"):
								return "absent", nil
							case p.Args.OptionalString("value") == nil:
								return "null", nil
							}
							return p.Args.String("value"), nil
						}},
					{Name: "left", Type: Named("String"), Resolve: meet},
					{Name: "right", Type: Named("String"), Resolve: meet},
				},
			},
			{
				Name: MutationType,
				Fields: []*FieldDescriptor{
					{Name: "push", Type: NonNull(ListOf(NonNull(Named("String")))), Args: pushArgs, Resolve: push},
					{Name: "tryPush", Type: ListOf(NonNull(Named("String"))), Args: pushArgs, Resolve: push},
				},
			},
			{
				Name: "Item",
				Rule: Allow(),
				Fields: []*FieldDescriptor{
					{Name: "id", Type: NonNull(Named("ID"))},
					{Name: "name", Type: NonNull(Named("String"))},
					{Name: "note", Type: Named("String")},
					{Name: "owner", Type: Named("String"), Rule: RequireOwner("item", func(_ context.Context, req RuleRequest) (string, error) {
						return req.Source.(*testItem).Owner, nil
					})},
					{Name: "broken", Type: NonNull(Named("String")), Resolve: func(context.Context, ResolveParams) (any, error) {
						return nil, NewValidationError("broken", "broken is unavailable")
					}},
				},
			},
		},
		Permissions: Permissions{
			"Query.hello": Allow(),
			"Query.items": Allow(),
			"Query.item":  Allow(),
			"Query.leak":  Allow(),
			"Query.boom":  Allow(),
			"Query.left":  Allow(),
			"Query.right": Allow(),
			"Mutation.*":  Allow(),
		},
	})
	require.NoError(t, err)
	return registry
}

func newTestEngine(t *testing.T, opts ...EngineOption) (*Engine, *testBackend) {
	t.Helper()
	backend := &testBackend{}
	engine, err := NewEngine(backend.registry(t), opts...)
	require.NoError(t, err)
	return engine, backend
}

func execute(engine *Engine, ctx context.Context, query string, vars map[string]any) *graphql.Response {
	return engine.Execute(ctx, &graphql.RawParams{Query: query, Variables: vars})
}

func asSubject(subject string) context.Context {
	return ContextWithIdentity(context.Background(), Identity{Subject: subject})
}

func dataOf(t *testing.T, resp *graphql.Response) map[string]any {
	t.Helper()
	var data map[string]any
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	return data
}

func TestEngine_ResolvesAllowedFields(t *testing.T) {
	engine, _ := newTestEngine(t)

	resp := execute(engine, context.Background(), `{ hello items { id name note } }`, nil)
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{
		"hello": "world",
		"items": [
			{"id": "1", "name": "one", "note": "first"},
			{"id": "2", "name": "two", "note": null}
		]
	}`, string(resp.Data))
}

func TestEngine_DenyByDefault(t *testing.T) {
	engine, backend := newTestEngine(t)

	resp := execute(engine, context.Background(), `{ hello secret }`, nil)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, MessageAuthorization, resp.Errors[0].Message)
	assert.Equal(t, CodeForbidden, resp.Errors[0].Extensions["code"])
	assert.Equal(t, "secret", resp.Errors[0].Path.String())
	assert.JSONEq(t, `{"hello":"world","secret":null}`, string(resp.Data))
	assert.EqualValues(t, 1, backend.resolverCalls.Load(), "denied resolver must not run")

	resp = execute(engine, asSubject("alice"), `{ secret whoami }`, nil)
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"secret":"classified","whoami":"alice"}`, string(resp.Data))
}

func TestEngine_OwnerRuleSeesParent(t *testing.T) {
	engine, _ := newTestEngine(t)

	resp := execute(engine, asSubject("alice"), `{ items { id owner } }`, nil)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "items[1].owner", resp.Errors[0].Path.String())
	assert.JSONEq(t, `{"items":[{"id":"1","owner":"alice"},{"id":"2","owner":null}]}`, string(resp.Data))
}

func TestEngine_NullPropagatesToNullableAncestor(t *testing.T) {
	engine, _ := newTestEngine(t)

	resp := execute(engine, context.Background(), `{ hello item(id: "1") { id broken } }`, nil)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, CodeValidation, resp.Errors[0].Extensions["code"])
	assert.Equal(t, "item.broken", resp.Errors[0].Path.String())
	assert.JSONEq(t, `{"hello":"world","item":null}`, string(resp.Data))

	resp = execute(engine, context.Background(), `{ items { broken } }`, nil)
	require.NotEmpty(t, resp.Errors)
	assert.Equal(t, CodeValidation, resp.Errors[0].Extensions["code"])
	assert.JSONEq(t, `null`, string(resp.Data))
}

func TestEngine_HidesInternalErrors(t *testing.T) {
	engine, _ := newTestEngine(t)

	resp := execute(engine, ContextWithRequestID(context.Background(), "req-1"), `{ leak boom hello }`, nil)
	require.Len(t, resp.Errors, 2)
	for _, err := range resp.Errors {
		assert.Equal(t, MessageInternal, err.Message)
		assert.Equal(t, CodeInternal, err.Extensions["code"])
		assert.Equal(t, "req-1", err.Extensions["request_id"])
		assert.NotContains(t, err.Error(), "password")
	}
	assert.Equal(t, "world", dataOf(t, resp)["hello"])
}

func TestEngine_NotFound(t *testing.T) {
	engine, _ := newTestEngine(t)

	resp := execute(engine, context.Background(), `query($id: ID!) { item(id: $id) { id } }`, map[string]any{"id": "9"})
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "item not found", resp.Errors[0].Message)
	assert.Equal(t, CodeNotFound, resp.Errors[0].Extensions["code"])
}

func TestEngine_FragmentsAliasesAndDirectives(t *testing.T) {
	engine, _ := newTestEngine(t)

	query := `
		query($withName: Boolean!) {
			first: item(id: "1") { ...parts }
			second: item(id: "2") { id ... on Item { name @include(if: $withName) } note @skip(if: true) }
			kind: __typename
		}
		fragment parts on Item { id name }
	`
	resp := execute(engine, context.Background(), query, map[string]any{"withName": false})
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{
		"first": {"id": "1", "name": "one"},
		"second": {"id": "2"},
		"kind": "Query"
	}`, string(resp.Data))
}

func TestEngine_IntrospectionDisabled(t *testing.T) {
	engine, backend := newTestEngine(t)

	queries := []string{
		`{ __schema { queryType { name } } hello }`,
		`{ item(id: "1") { id } __type(name: "Item") { name } }`,
		`{ ...meta } fragment meta on Query { __schema { types { name } } }`,
	}
	for _, query := range queries {
		resp := execute(engine, context.Background(), query, nil)
		require.Len(t, resp.Errors, 1, query)
		assert.Equal(t, "introspection disabled", resp.Errors[0].Message)
		assert.Equal(t, CodeIntrospectionDisabled, resp.Errors[0].Extensions["code"])
		assert.Nil(t, resp.Data)
		assert.Equal(t, http.StatusUnprocessableEntity, responseStatus(resp))
	}
	assert.Zero(t, backend.resolverCalls.Load())
}

func TestEngine_RejectsInvalidDocuments(t *testing.T) {
	engine, backend := newTestEngine(t)

	parse := execute(engine, context.Background(), `{ hello `, nil)
	require.NotEmpty(t, parse.Errors)
	assert.Equal(t, errcode.ParseFailed, parse.Errors[0].Extensions["code"])
	assert.Nil(t, parse.Data)

	invalid := execute(engine, context.Background(), `{ nope }`, nil)
	require.NotEmpty(t, invalid.Errors)
	assert.Equal(t, errcode.ValidationFailed, invalid.Errors[0].Extensions["code"])

	vars := execute(engine, context.Background(), `query($id: ID!) { item(id: $id) { id } }`, nil)
	require.NotEmpty(t, vars.Errors)
	assert.Equal(t, errcode.ValidationFailed, vars.Errors[0].Extensions["code"])

	empty := engine.Execute(context.Background(), &graphql.RawParams{})
	require.NotEmpty(t, empty.Errors)

	ambiguous := execute(engine, context.Background(), `query A { hello } query B { hello }`, nil)
	require.NotEmpty(t, ambiguous.Errors)
	assert.Contains(t, ambiguous.Errors[0].Message, "operation name")

	assert.Zero(t, backend.resolverCalls.Load())
}

func TestEngine_SelectsNamedOperation(t *testing.T) {
	engine, _ := newTestEngine(t)

	resp := engine.Execute(context.Background(), &graphql.RawParams{
		Query:         `query A { hello } query B { items { id } }`,
		OperationName: "A",
	})
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"hello":"world"}`, string(resp.Data))
}

func TestEngine_MutationsRunSerially(t *testing.T) {
	engine, backend := newTestEngine(t)

	resp := execute(engine, context.Background(), `mutation {
		a: push(value: "a")
		b: push(value: "b")
		c: push(value: "c")
	}`, nil)
	require.Empty(t, resp.Errors)
	assert.False(t, backend.overlapped.Load())
	assert.JSONEq(t, `{"a":["a"],"b":["a","b"],"c":["a","b","c"]}`, string(resp.Data))
}

func TestEngine_FailedMutationStopsLaterMutations(t *testing.T) {
	engine, backend := newTestEngine(t)

	resp := execute(engine, context.Background(), `mutation {
		a: push(value: "")
		b: push(value: "b")
	}`, nil)
	require.NotEmpty(t, resp.Errors)
	assert.Equal(t, "a", resp.Errors[0].Path.String())
	assert.Equal(t, CodeValidation, resp.Errors[0].Extensions["code"])
	for _, err := range resp.Errors[1:] {
		assert.Equal(t, "b", err.Path.String())
		assert.Equal(t, CodeCancelled, err.Extensions["code"])
		assert.Equal(t, MessageSkipped, err.Message)
	}
	assert.JSONEq(t, `null`, string(resp.Data))
	assert.Empty(t, backend.pushed)
}

func TestEngine_NullableMutationFailureKeepsGoing(t *testing.T) {
	engine, backend := newTestEngine(t)

	resp := execute(engine, context.Background(), `mutation {
		a: tryPush(value: "")
		b: push(value: "b")
	}`, nil)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "a", resp.Errors[0].Path.String())
	assert.JSONEq(t, `{"a":null,"b":["b"]}`, string(resp.Data))
	assert.Equal(t, []string{"b"}, backend.pushed)
}

func TestEngine_RuleStateReachesResolver(t *testing.T) {
	engine, _ := newTestEngine(t)

	resp := execute(engine, asSubject("alice"), `{ handoff }`, nil)
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"handoff":"checked alice"}`, string(resp.Data))
}

func TestEngine_NumericIDArguments(t *testing.T) {
	engine, _ := newTestEngine(t)

	resp := execute(engine, context.Background(), `{ item(id: 2) { name } }`, nil)
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"item":{"name":"two"}}`, string(resp.Data))

	resp = execute(engine, context.Background(), `query($id: ID!) { item(id: $id) { name } }`,
		map[string]any{"id": json.Number("1")})
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"item":{"name":"one"}}`, string(resp.Data))
}

func TestEngine_ExplicitNullArguments(t *testing.T) {
	engine, _ := newTestEngine(t)
	query := `query($v: String) { optional(value: $v) }`

	resp := execute(engine, context.Background(), query, map[string]any{"v": nil})
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"optional":"null"}`, string(resp.Data))

	resp = execute(engine, context.Background(), query, nil)
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"optional":"absent"}`, string(resp.Data))

	resp = execute(engine, context.Background(), `{ optional(value: "x") }`, nil)
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"optional":"x"}`, string(resp.Data))
}

func TestEngine_QuerySiblingsRunConcurrently(t *testing.T) {
	engine, backend := newTestEngine(t, WithMaxConcurrency(2))
	backend.barrier.Add(2)

	resp := execute(engine, context.Background(), `{ left right }`, nil)
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"left":"met","right":"met"}`, string(resp.Data))
}

func TestEngine_CancelledContextStopsResolvers(t *testing.T) {
	engine, backend := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp := execute(engine, ctx, `{ hello items { id } }`, nil)
	require.NotEmpty(t, resp.Errors)
	assert.Equal(t, CodeCancelled, resp.Errors[0].Extensions["code"])
	assert.Zero(t, backend.resolverCalls.Load())
}

func TestEngine_OperationKind(t *testing.T) {
	engine, _ := newTestEngine(t)

	kind, err := engine.OperationKind(`mutation { push(value: "x") }`, "")
	require.NoError(t, err)
	assert.Equal(t, ast.Mutation, kind)

	kind, err = engine.OperationKind(`query Q { hello } mutation M { push(value: "x") }`, "Q")
	require.NoError(t, err)
	assert.Equal(t, ast.Query, kind)

	_, err = engine.OperationKind(`{`, "")
	assert.Error(t, err)
}

func TestNewEngine_RequiresRegistry(t *testing.T) {
	_, err := NewEngine(nil)
	assert.Error(t, err)
}
