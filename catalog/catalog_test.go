package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/99designs/gqlgen/graphql"
	"github.com/goliatone/go-kino"
	"github.com/goliatone/go-kino/auth"
	"github.com/goliatone/go-kino/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// spyStore counts write calls and profile lookups while delegating to a
// real store.
type spyStore struct {
	store.Store
	writes       atomic.Int32
	profileReads atomic.Int32
}

func (s *spyStore) ProfileByID(ctx context.Context, id uuid.UUID) (*store.Profile, error) {
	s.profileReads.Add(1)
	return s.Store.ProfileByID(ctx, id)
}

func (s *spyStore) CreateUser(ctx context.Context, user *store.User) (*store.User, error) {
	s.writes.Add(1)
	return s.Store.CreateUser(ctx, user)
}

func (s *spyStore) CreateProfile(ctx context.Context, profile *store.Profile) (*store.Profile, error) {
	s.writes.Add(1)
	return s.Store.CreateProfile(ctx, profile)
}

func (s *spyStore) UpdateProfile(ctx context.Context, profile *store.Profile) (*store.Profile, error) {
	s.writes.Add(1)
	return s.Store.UpdateProfile(ctx, profile)
}

func (s *spyStore) CreateFilm(ctx context.Context, film *store.Film) (*store.Film, error) {
	s.writes.Add(1)
	return s.Store.CreateFilm(ctx, film)
}

func (s *spyStore) CreateComment(ctx context.Context, comment *store.Comment) (*store.Comment, error) {
	s.writes.Add(1)
	return s.Store.CreateComment(ctx, comment)
}

type fixture struct {
	t        *testing.T
	db       store.Store
	spy      *spyStore
	auth     *auth.Service
	engine   *kino.Engine
	provider *kino.Provider[store.Store]
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	database, err := store.Open(ctx, store.Options{
		DSN: fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", uuid.NewString()),
	})
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	authService, err := auth.New(auth.Config{
		Secret:   auth.Secret("catalog-test-secret"),
		HashCost: bcrypt.MinCost,
	})
	require.NoError(t, err)

	registry, err := New(authService).Registry()
	require.NoError(t, err)

	engine, err := kino.NewEngine(registry)
	require.NoError(t, err)

	spy := &spyStore{Store: database.Store()}
	return &fixture{
		t:        t,
		db:       database.Store(),
		spy:      spy,
		auth:     authService,
		engine:   engine,
		provider: NewProvider(authService, spy),
	}
}

func (f *fixture) exec(token, query string, vars map[string]any) *graphql.Response {
	f.t.Helper()
	header := ""
	if token != "" {
		header = "Bearer " + token
	}
	ctx := f.provider.Attach(context.Background(), header)
	return f.engine.Execute(ctx, &graphql.RawParams{Query: query, Variables: vars})
}

func (f *fixture) signup(email, password string) (string, string) {
	f.t.Helper()
	resp := f.exec("", `mutation($e: String!, $p: String!) {
		signup(email: $e, password: $p) { token user { id } }
	}`, map[string]any{"e": email, "p": password})
	require.Empty(f.t, resp.Errors)

	data := decode(f.t, resp)
	payload := data["signup"].(map[string]any)
	return payload["token"].(string), payload["user"].(map[string]any)["id"].(string)
}

func (f *fixture) film(title string) *store.Film {
	f.t.Helper()
	film, err := f.db.CreateFilm(context.Background(), &store.Film{
		Title:     title,
		Country:   store.MustDocument(map[string]any{"name": "USSR"}),
		Directors: store.MustDocument([]string{"Tarkovsky"}),
		Genres:    store.MustDocument([]string{"drama"}),
		Cast:      store.MustDocument([]string{}),
		Kino:      store.MustDocument(map[string]any{}),
	})
	require.NoError(f.t, err)
	return film
}

func decode(t *testing.T, resp *graphql.Response) map[string]any {
	t.Helper()
	var data map[string]any
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	return data
}

func firstCode(t *testing.T, resp *graphql.Response) string {
	t.Helper()
	require.NotEmpty(t, resp.Errors)
	c, _ := resp.Errors[0].Extensions["code"].(string)
	return c
}

func TestLogin_UnknownEmailAndWrongPasswordLookAlike(t *testing.T) {
	f := newFixture(t)
	f.signup("a@x.com", "pw")

	const login = `mutation($e: String!, $p: String!) { login(email: $e, password: $p) { token } }`
	unknown := f.exec("", login, map[string]any{"e": "nobody@x.com", "p": "pw"})
	wrong := f.exec("", login, map[string]any{"e": "a@x.com", "p": "wrong"})

	require.Len(t, unknown.Errors, 1)
	require.Len(t, wrong.Errors, 1)
	assert.Equal(t, kino.MessageAuthentication, unknown.Errors[0].Message)
	assert.Equal(t, unknown.Errors[0].Message, wrong.Errors[0].Message)
	assert.Equal(t, unknown.Errors[0].Extensions, wrong.Errors[0].Extensions)
	assert.Equal(t, kino.CodeUnauthenticated, firstCode(t, wrong))
	assert.JSONEq(t, `null`, string(unknown.Data))
	assert.JSONEq(t, string(unknown.Data), string(wrong.Data))
}

func TestMutations_WithoutValidTokenWriteNothing(t *testing.T) {
	f := newFixture(t)
	film := f.film("Stalker")

	for _, token := range []string{"", "not-a-token"} {
		profile := f.exec(token, `mutation { createProfile(info: "hi") { id } }`, nil)
		assert.Equal(t, kino.CodeForbidden, firstCode(t, profile))
		assert.Equal(t, kino.MessageAuthorization, profile.Errors[0].Message)

		comment := f.exec(token, `mutation($id: ID!) { createComment(id: $id, content: "great") { id } }`,
			map[string]any{"id": film.ID.String()})
		assert.Equal(t, kino.CodeForbidden, firstCode(t, comment))
		assert.Equal(t, "createComment", comment.Errors[0].Path.String())
	}

	assert.Zero(t, f.spy.writes.Load())
}

func TestMe(t *testing.T) {
	f := newFixture(t)
	token, id := f.signup("me@x.com", "pw")

	resp := f.exec(token, `{ me { id email } }`, nil)
	require.Empty(t, resp.Errors)
	me := decode(t, resp)["me"].(map[string]any)
	assert.Equal(t, id, me["id"])
	assert.Equal(t, "me@x.com", me["email"])

	anonymous := f.exec("", `{ me { id } }`, nil)
	assert.Empty(t, anonymous.Errors)
	assert.JSONEq(t, `{"me":null}`, string(anonymous.Data))
}

func TestSignupThenLogin(t *testing.T) {
	f := newFixture(t)

	resp := f.exec("", `mutation { signup(email: "A@x.com ", password: "pw") { token user { email } } }`, nil)
	require.Empty(t, resp.Errors)
	payload := decode(t, resp)["signup"].(map[string]any)
	assert.NotEmpty(t, payload["token"])
	assert.Equal(t, "a@x.com", payload["user"].(map[string]any)["email"])

	subject, err := f.auth.VerifyToken(payload["token"].(string))
	require.NoError(t, err)
	_, err = uuid.Parse(subject)
	require.NoError(t, err)

	ok := f.exec("", `mutation { login(email: "a@x.com", password: "pw") { token user { email } } }`, nil)
	require.Empty(t, ok.Errors)
	assert.NotEmpty(t, decode(t, ok)["login"].(map[string]any)["token"])

	bad := f.exec("", `mutation { login(email: "a@x.com", password: "wrong") { token } }`, nil)
	assert.Equal(t, kino.CodeUnauthenticated, firstCode(t, bad))
}

func TestSignup_Validation(t *testing.T) {
	f := newFixture(t)

	resp := f.exec("", `mutation { signup(email: "not-an-email", password: "pw") { token } }`, nil)
	assert.Equal(t, kino.CodeValidation, firstCode(t, resp))
	assert.Equal(t, "email", resp.Errors[0].Extensions["field"])

	resp = f.exec("", `mutation { signup(email: "b@x.com", password: "") { token } }`, nil)
	assert.Equal(t, kino.CodeValidation, firstCode(t, resp))
	assert.Equal(t, "password", resp.Errors[0].Extensions["field"])

	f.signup("b@x.com", "pw")
	dup := f.exec("", `mutation { signup(email: "B@X.com", password: "pw") { token } }`, nil)
	assert.Equal(t, kino.CodeDuplicate, firstCode(t, dup))
}

func TestCreateComment_MissingFilmWritesNoRow(t *testing.T) {
	f := newFixture(t)
	token, userID := f.signup("c@x.com", "pw")

	resp := f.exec(token, `mutation($id: ID!) { createComment(id: $id, content: "hello") { id } }`,
		map[string]any{"id": uuid.NewString()})
	assert.Equal(t, kino.CodeNotFound, firstCode(t, resp))
	assert.Equal(t, "film not found", resp.Errors[0].Message)

	comments, err := f.db.CommentsByUser(context.Background(), uuid.MustParse(userID))
	require.NoError(t, err)
	assert.Empty(t, comments)
}

func TestCreateComment_NumericFilmIDIsNotFound(t *testing.T) {
	f := newFixture(t)
	token, _ := f.signup("n@x.com", "pw")
	writes := f.spy.writes.Load()

	resp := f.exec(token, `mutation { createComment(id: 42, content: "great") { id } }`, nil)
	assert.Equal(t, kino.CodeNotFound, firstCode(t, resp))
	assert.Equal(t, "film not found", resp.Errors[0].Message)
	assert.JSONEq(t, `null`, string(resp.Data))

	resp = f.exec(token, `mutation($id: ID!) { createComment(id: $id, content: "great") { id } }`,
		map[string]any{"id": json.Number("42")})
	assert.Equal(t, kino.CodeNotFound, firstCode(t, resp))

	assert.Equal(t, writes, f.spy.writes.Load())
}

func TestMutations_StopAfterFailedMutation(t *testing.T) {
	f := newFixture(t)
	token, userID := f.signup("s@x.com", "pw")

	resp := f.exec(token, `mutation($id: ID!) {
		a: createComment(id: $id, content: "x") { id }
		b: createProfile(info: "written") { id }
	}`, map[string]any{"id": uuid.NewString()})
	assert.Equal(t, kino.CodeNotFound, firstCode(t, resp))
	assert.Equal(t, "a", resp.Errors[0].Path.String())
	assert.JSONEq(t, `null`, string(resp.Data))

	_, err := f.db.ProfileByUser(context.Background(), uuid.MustParse(userID))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateComment_ListedOnFilm(t *testing.T) {
	f := newFixture(t)
	film := f.film("Solaris")
	token, _ := f.signup("d@x.com", "pw")

	resp := f.exec(token, `mutation($id: ID!) { createComment(id: $id, content: "  calm  ") { content film { title } } }`,
		map[string]any{"id": film.ID.String()})
	require.Empty(t, resp.Errors)
	comment := decode(t, resp)["createComment"].(map[string]any)
	assert.Equal(t, "calm", comment["content"])
	assert.Equal(t, "Solaris", comment["film"].(map[string]any)["title"])

	empty := f.exec(token, `mutation($id: ID!) { createComment(id: $id, content: "   ") { id } }`,
		map[string]any{"id": film.ID.String()})
	assert.Equal(t, kino.CodeValidation, firstCode(t, empty))

	list := f.exec("", `query($id: ID!) { film(id: $id) { comments { content User { name } } } }`,
		map[string]any{"id": film.ID.String()})
	require.Empty(t, list.Errors)
	comments := decode(t, list)["film"].(map[string]any)["comments"].([]any)
	require.Len(t, comments, 1)
	assert.Equal(t, "calm", comments[0].(map[string]any)["content"])
}

func TestUserEmail_OnlyVisibleToOwner(t *testing.T) {
	f := newFixture(t)
	film := f.film("Brother")
	author, _ := f.signup("author@x.com", "pw")
	reader, _ := f.signup("reader@x.com", "pw")

	created := f.exec(author, `mutation($id: ID!) { createComment(id: $id, content: "mine") { id } }`,
		map[string]any{"id": film.ID.String()})
	require.Empty(t, created.Errors)

	const query = `query($id: ID!) { film(id: $id) { title comments { User { email } } } }`
	own := f.exec(author, query, map[string]any{"id": film.ID.String()})
	require.Empty(t, own.Errors)

	other := f.exec(reader, query, map[string]any{"id": film.ID.String()})
	assert.Equal(t, kino.CodeForbidden, firstCode(t, other))
	assert.Equal(t, "film.comments[0].User.email", other.Errors[0].Path.String())

	data := decode(t, other)["film"].(map[string]any)
	assert.Equal(t, "Brother", data["title"])
	assert.Nil(t, data["comments"].([]any)[0].(map[string]any)["User"])
}

func TestProfiles(t *testing.T) {
	f := newFixture(t)
	owner, _ := f.signup("owner@x.com", "pw")
	intruder, _ := f.signup("intruder@x.com", "pw")

	created := f.exec(owner, `mutation { createProfile(info: "cinephile", subscribeType: "pro") { id info subscribeType } }`, nil)
	require.Empty(t, created.Errors)
	profile := decode(t, created)["createProfile"].(map[string]any)
	assert.Equal(t, "cinephile", profile["info"])

	again := f.exec(owner, `mutation { createProfile(info: "twice") { id } }`, nil)
	assert.Equal(t, kino.CodeDuplicate, firstCode(t, again))

	const update = `mutation($id: ID!, $info: String) { updateProfile(id: $id, info: $info) { info subscribeType } }`
	denied := f.exec(intruder, update, map[string]any{"id": profile["id"], "info": "hacked"})
	assert.Equal(t, kino.CodeForbidden, firstCode(t, denied))

	missing := f.exec(owner, update, map[string]any{"id": uuid.NewString(), "info": "x"})
	assert.Equal(t, kino.CodeForbidden, firstCode(t, missing))
	assert.Equal(t, denied.Errors[0].Message, missing.Errors[0].Message)

	reads := f.spy.profileReads.Load()
	updated := f.exec(owner, update, map[string]any{"id": profile["id"], "info": "critic"})
	require.Empty(t, updated.Errors)
	assert.Equal(t, reads+1, f.spy.profileReads.Load(), "rule and resolver share one lookup")
	result := decode(t, updated)["updateProfile"].(map[string]any)
	assert.Equal(t, "critic", result["info"])
	assert.Equal(t, "pro", result["subscribeType"])

	me := f.exec(owner, `{ me { Profile { info } } }`, nil)
	require.Empty(t, me.Errors)
	assert.JSONEq(t, `{"me":{"Profile":{"info":"critic"}}}`, string(me.Data))
}

func TestFilms_SeededCatalog(t *testing.T) {
	f := newFixture(t)
	n, err := store.SeedFilms(context.Background(), f.db)
	require.NoError(t, err)
	require.Positive(t, n)

	resp := f.exec("", `{ films { __typename title geners country added comments { id } } }`, nil)
	require.Empty(t, resp.Errors)
	films := decode(t, resp)["films"].([]any)
	require.Len(t, films, n)

	first := films[0].(map[string]any)
	assert.Equal(t, "Film", first["__typename"])
	assert.IsType(t, []any{}, first["geners"])
	assert.IsType(t, map[string]any{}, first["country"])
	assert.NotEmpty(t, first["added"])
	assert.Empty(t, first["comments"])
}

func TestFilm_BadAndUnknownIDs(t *testing.T) {
	f := newFixture(t)

	for _, query := range []string{`{ film(id: "42") { title } }`, `{ film(id: 42) { title } }`} {
		bad := f.exec("", query, nil)
		assert.Equal(t, kino.CodeNotFound, firstCode(t, bad), query)
		assert.Equal(t, "film not found", bad.Errors[0].Message)
		assert.JSONEq(t, `{"film":null}`, string(bad.Data))
	}

	blank := f.exec("", `{ film(id: " ") { title } }`, nil)
	assert.Equal(t, kino.CodeValidation, firstCode(t, blank))

	unknown := f.exec("", fmt.Sprintf(`{ film(id: %q) { title } }`, uuid.NewString()), nil)
	assert.Equal(t, kino.CodeNotFound, firstCode(t, unknown))
	assert.JSONEq(t, `{"film":null}`, string(unknown.Data))
}

func TestRegistry_Schema(t *testing.T) {
	registry, err := New(nil).Registry()
	require.NoError(t, err)

	schema := registry.Schema()
	createComment := schema.Mutation.Fields.ForName("createComment")
	require.NotNil(t, createComment)
	assert.Equal(t, "Comment!", createComment.Type.String())
	assert.Equal(t, "ID!", createComment.Arguments.ForName("id").Type.String())

	assert.Equal(t, "JSONObject!", schema.Types["Film"].Fields.ForName("geners").Type.String())
	assert.Nil(t, schema.Types["Film"].Fields.ForName("genres"))
	assert.Nil(t, schema.Types["User"].Fields.ForName("password"))
	assert.Contains(t, registry.SDL(), "scalar DateTime")
}
