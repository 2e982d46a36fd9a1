// Package catalog declares the film catalog schema: its types, resolvers
// and the permission table guarding them.
package catalog

//go:generate go run ../cmd/schemagen -out ../schema.graphql

import (
	"context"
	"errors"

	"github.com/goliatone/go-kino"
	"github.com/goliatone/go-kino/auth"
	"github.com/goliatone/go-kino/store"
	"github.com/google/uuid"
)

// Session is the per-request session resolvers read their store from.
type Session = kino.Session[store.Store]

// Catalog owns the collaborators resolvers need beyond the session.
type Catalog struct {
	auth   *auth.Service
	logger kino.Logger
}

type Option func(*Catalog)

func WithLogger(logger kino.Logger) Option {
	return func(c *Catalog) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New returns a catalog issuing tokens with authService. A nil service is
// enough to render the schema; signup and login then fail internally.
func New(authService *auth.Service, opts ...Option) *Catalog {
	c := &Catalog{auth: authService, logger: kino.DefaultLogger()}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Config returns the registry configuration for the catalog.
func (c *Catalog) Config() kino.RegistryConfig {
	return kino.RegistryConfig{
		Types:       c.Types(),
		Scalars:     []kino.ScalarDescriptor{kino.DateTimeScalar(), kino.JSONObjectScalar()},
		Permissions: Permissions(),
	}
}

// Registry builds the validated registry.
func (c *Catalog) Registry() (*kino.Registry, error) {
	return kino.NewRegistry(c.Config())
}

// NewProvider returns the session provider handing st to every request.
func NewProvider(verifier kino.TokenVerifier, st store.Store, opts ...kino.ProviderOption) *kino.Provider[store.Store] {
	return kino.NewProvider[store.Store](verifier, st, opts...)
}

func session(ctx context.Context) (*Session, store.Store, error) {
	s, ok := kino.SessionFromContext[store.Store](ctx)
	if !ok || s.Data() == nil {
		return nil, nil, kino.NewInternalError(errors.New("no session on context"))
	}
	return s, s.Data(), nil
}

// currentUserID returns the acting user's id. Rules reject anonymous
// callers before resolvers run, so a missing subject is an authorization
// failure here as well.
func currentUserID(s *Session) (uuid.UUID, error) {
	subject, ok := s.CurrentUserID()
	if !ok {
		return uuid.Nil, kino.NewAuthorizationError(kino.ErrUnauthenticated)
	}
	id, err := uuid.Parse(subject)
	if err != nil {
		return uuid.Nil, kino.NewAuthorizationError(err)
	}
	return id, nil
}

// translate converts store failures into the client-facing error kinds.
func translate(err error, resource string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return kino.NewNotFoundError(resource)
	case errors.Is(err, store.ErrDuplicate):
		return kino.NewDuplicateError(resource + " already exists")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return kino.NewInternalError(err)
}
