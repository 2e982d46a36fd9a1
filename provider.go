package kino

import (
	"context"
	"strings"
)

// TokenVerifier validates a bearer token and returns its subject.
type TokenVerifier interface {
	VerifyToken(token string) (string, error)
}

// Session is the read-only per-request context handed to resolvers.
type Session[D any] struct {
	identity  Identity
	data      D
	requestID string
}

// Identity returns the acting identity; anonymous when no valid token was sent.
func (s *Session[D]) Identity() Identity {
	if s == nil {
		return Anonymous()
	}
	return s.identity.Clone()
}

// CurrentUserID returns the verified subject, if any.
func (s *Session[D]) CurrentUserID() (string, bool) {
	if s == nil || !s.identity.Authenticated() {
		return "", false
	}
	return s.identity.Subject, true
}

// Data returns the shared data-access handle.
func (s *Session[D]) Data() D {
	var zero D
	if s == nil {
		return zero
	}
	return s.data
}

func (s *Session[D]) RequestID() string {
	if s == nil {
		return ""
	}
	return s.requestID
}

type providerConfig struct {
	logger Logger
}

// ProviderOption customizes a Provider.
type ProviderOption func(*providerConfig)

// WithProviderLogger sets the logger used to report rejected tokens.
func WithProviderLogger(logger Logger) ProviderOption {
	return func(cfg *providerConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// Provider builds one Session per inbound request. It holds only shared,
// immutable collaborators.
type Provider[D any] struct {
	verifier TokenVerifier
	data     D
	logger   Logger
}

// NewProvider returns a provider that verifies tokens with verifier and
// exposes data to every session.
func NewProvider[D any](verifier TokenVerifier, data D, opts ...ProviderOption) *Provider[D] {
	cfg := providerConfig{logger: &defaultLogger{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Provider[D]{verifier: verifier, data: data, logger: cfg.logger}
}

// Provide resolves the identity carried by the authorization header value.
// Absent, malformed or invalid tokens yield an anonymous session; rejecting
// anonymous access is left to permission rules.
func (p *Provider[D]) Provide(ctx context.Context, authorization string) *Session[D] {
	session := &Session[D]{
		identity:  Anonymous(),
		data:      p.data,
		requestID: RequestIDFromContext(ctx),
	}

	token, ok := ParseBearer(authorization)
	if !ok {
		if strings.TrimSpace(authorization) != "" {
			p.logger.Debug("ignoring malformed authorization header")
		}
		return session
	}

	if p.verifier == nil {
		return session
	}

	subject, err := p.verifier.VerifyToken(token)
	if err != nil {
		WithFields(p.logger, Fields{"request_id": session.requestID}).
			Debug("token rejected: %v", err)
		return session
	}

	session.identity = Identity{Subject: subject}
	return session
}

// Attach builds the session for authorization and stores it on ctx.
func (p *Provider[D]) Attach(ctx context.Context, authorization string) context.Context {
	return ContextWithSession(ctx, p.Provide(ctx, authorization))
}

// ParseBearer extracts the token from a "Bearer <token>" header value. The
// scheme is matched case-insensitively.
func ParseBearer(header string) (string, bool) {
	header = strings.TrimSpace(header)
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}
