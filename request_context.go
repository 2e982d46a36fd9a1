package kino

import (
	"context"
	"strings"
)

type requestContextKey string

const (
	ctxKeyIdentity    requestContextKey = "kino.identity"
	ctxKeySession     requestContextKey = "kino.session"
	ctxKeyRequestID   requestContextKey = "kino.request_id"
	ctxKeyCorrelation requestContextKey = "kino.correlation_id"
)

const (
	HeaderRequestID     = "X-Request-ID"
	HeaderCorrelationID = "X-Correlation-ID"
	HeaderAuthorization = "Authorization"
)

// ContextWithIdentity stores the acting identity on the standard context.
func ContextWithIdentity(ctx context.Context, identity Identity) context.Context {
	if ctx == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyIdentity, identity.Clone())
}

// IdentityFromContext returns the identity stored on ctx, or the anonymous
// identity.
func IdentityFromContext(ctx context.Context) Identity {
	if ctx == nil {
		return Anonymous()
	}
	if identity, ok := ctx.Value(ctxKeyIdentity).(Identity); ok {
		return identity
	}
	return Anonymous()
}

// ContextWithSession stores session and its identity on ctx.
func ContextWithSession[D any](ctx context.Context, session *Session[D]) context.Context {
	if ctx == nil || session == nil {
		return ctx
	}
	ctx = ContextWithIdentity(ctx, session.identity)
	return context.WithValue(ctx, ctxKeySession, session)
}

// SessionFromContext retrieves the session attached by a Provider.
func SessionFromContext[D any](ctx context.Context) (*Session[D], bool) {
	if ctx == nil {
		return nil, false
	}
	session, ok := ctx.Value(ctxKeySession).(*Session[D])
	return session, ok && session != nil
}

// ContextWithRequestID stores the current request identifier on the context.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || strings.TrimSpace(requestID) == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyRequestID, strings.TrimSpace(requestID))
}

// RequestIDFromContext returns the request identifier stored in the context.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if requestID, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return strings.TrimSpace(requestID)
	}
	return ""
}

// ContextWithCorrelationID stores the correlation ID on the context.
func ContextWithCorrelationID(ctx context.Context, correlationID string) context.Context {
	if ctx == nil || strings.TrimSpace(correlationID) == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyCorrelation, strings.TrimSpace(correlationID))
}

// CorrelationIDFromContext extracts the stored correlation ID.
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if correlationID, ok := ctx.Value(ctxKeyCorrelation).(string); ok {
		return strings.TrimSpace(correlationID)
	}
	return ""
}

func resolveRequestID(ctx Context) string {
	if ctx == nil {
		return ""
	}
	if reqID := RequestIDFromContext(ctx.UserContext()); reqID != "" {
		return reqID
	}
	if header := strings.TrimSpace(ctx.Header(HeaderRequestID)); header != "" {
		return header
	}
	return strings.TrimSpace(ctx.Header("Request-ID"))
}

func resolveCorrelationID(ctx Context) string {
	if ctx == nil {
		return ""
	}
	if correlationID := CorrelationIDFromContext(ctx.UserContext()); correlationID != "" {
		return correlationID
	}
	return strings.TrimSpace(ctx.Header(HeaderCorrelationID))
}
