package kino

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/99designs/gqlgen/graphql/errcode"
	goerrors "github.com/goliatone/go-errors"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// Text codes reported in extensions.code.
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeDuplicate       = "DUPLICATE"
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeForbidden       = "FORBIDDEN"
	CodeInternal        = "INTERNAL"
	CodeCancelled       = "CANCELLED"
)

// Public messages for kinds whose detail must not reach clients.
const (
	MessageAuthentication = "invalid email or password"
	MessageAuthorization  = "not authorized"
	MessageInternal       = "internal error"
	MessageCancelled      = "request cancelled"
	MessageSkipped        = "not executed: an earlier mutation failed"
)

// ErrMutationSkipped marks a mutation root field that did not run because an
// earlier non-null sibling failed.
var ErrMutationSkipped = stdErrors.New("mutation skipped")

// ValidationError reports a malformed or missing argument.
type ValidationError struct {
	error
	Field string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{error: stdErrors.New(message), Field: field}
}

func (e *ValidationError) Unwrap() error { return e.error }

// NotFoundError reports a referenced entity that does not exist.
type NotFoundError struct{ error }

func NewNotFoundError(resource string) *NotFoundError {
	return &NotFoundError{fmt.Errorf("%s not found", resource)}
}

func (e *NotFoundError) Unwrap() error { return e.error }

// DuplicateError reports a uniqueness violation.
type DuplicateError struct{ error }

func NewDuplicateError(message string) *DuplicateError {
	return &DuplicateError{stdErrors.New(message)}
}

func (e *DuplicateError) Unwrap() error { return e.error }

// AuthenticationError wraps the internal reason a credential check failed.
// Clients only ever see MessageAuthentication.
type AuthenticationError struct{ error }

func NewAuthenticationError(reason error) *AuthenticationError {
	if reason == nil {
		reason = stdErrors.New("authentication failed")
	}
	return &AuthenticationError{reason}
}

func (e *AuthenticationError) Unwrap() error { return e.error }

// AuthorizationError wraps the reason a permission rule rejected access.
// Clients only ever see MessageAuthorization.
type AuthorizationError struct{ error }

func NewAuthorizationError(reason error) *AuthorizationError {
	if reason == nil {
		reason = stdErrors.New("access denied")
	}
	return &AuthorizationError{reason}
}

func (e *AuthorizationError) Unwrap() error { return e.error }

// InternalError hides an unexpected failure behind MessageInternal.
type InternalError struct{ error }

func NewInternalError(err error) *InternalError {
	if err == nil {
		err = stdErrors.New("unknown error")
	}
	return &InternalError{err}
}

func (e *InternalError) Unwrap() error { return e.error }

// IsAuthorizationError reports whether err is, or wraps, an AuthorizationError.
func IsAuthorizationError(err error) bool {
	var target *AuthorizationError
	return stdErrors.As(err, &target)
}

// PresentError converts a resolver or rule error into the client-facing
// GraphQL error. Only messages owned by this package's error kinds are
// surfaced; anything else becomes an internal error.
func PresentError(ctx context.Context, err error, path ast.Path) *gqlerror.Error {
	mapped := goerrors.MapToError(err, presentMappers())
	if mapped == nil {
		mapped = internalProblem()
	}

	ext := map[string]any{"code": mapped.TextCode}
	if validation := new(ValidationError); stdErrors.As(err, &validation) && validation.Field != "" {
		ext["field"] = validation.Field
	}
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		ext["request_id"] = requestID
	}

	return &gqlerror.Error{
		Message:    mapped.Message,
		Path:       path,
		Extensions: ext,
	}
}

func presentMappers() []goerrors.ErrorMapper {
	return []goerrors.ErrorMapper{mapKinoErrors}
}

// mapKinoErrors maps the package error kinds onto go-errors categories with
// public messages. Unknown errors map to an internal problem.
func mapKinoErrors(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var validation *ValidationError
	if stdErrors.As(err, &validation) {
		message := strings.TrimSpace(validation.Error())
		if message == "" {
			message = "validation failed"
		}
		return goerrors.New(message, goerrors.CategoryValidation).
			WithCode(http.StatusUnprocessableEntity).
			WithTextCode(CodeValidation)
	}

	var notFound *NotFoundError
	if stdErrors.As(err, &notFound) {
		message := strings.TrimSpace(notFound.Error())
		if message == "" {
			message = "resource not found"
		}
		return goerrors.New(message, goerrors.CategoryNotFound).
			WithCode(http.StatusNotFound).
			WithTextCode(CodeNotFound)
	}

	var duplicate *DuplicateError
	if stdErrors.As(err, &duplicate) {
		message := strings.TrimSpace(duplicate.Error())
		if message == "" {
			message = "resource already exists"
		}
		return goerrors.New(message, goerrors.CategoryConflict).
			WithCode(http.StatusConflict).
			WithTextCode(CodeDuplicate)
	}

	var authn *AuthenticationError
	if stdErrors.As(err, &authn) {
		return goerrors.New(MessageAuthentication, goerrors.CategoryAuth).
			WithCode(http.StatusUnauthorized).
			WithTextCode(CodeUnauthenticated)
	}

	var authz *AuthorizationError
	if stdErrors.As(err, &authz) {
		return goerrors.New(MessageAuthorization, goerrors.CategoryAuthz).
			WithCode(http.StatusForbidden).
			WithTextCode(CodeForbidden)
	}

	if stdErrors.Is(err, ErrMutationSkipped) {
		return goerrors.New(MessageSkipped, goerrors.CategoryOperation).
			WithCode(http.StatusConflict).
			WithTextCode(CodeCancelled)
	}

	if stdErrors.Is(err, context.Canceled) || stdErrors.Is(err, context.DeadlineExceeded) {
		return goerrors.New(MessageCancelled, goerrors.CategoryOperation).
			WithCode(http.StatusServiceUnavailable).
			WithTextCode(CodeCancelled)
	}

	return internalProblem()
}

func internalProblem() *goerrors.Error {
	return goerrors.New(MessageInternal, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(CodeInternal)
}

func requestError(code, message string) *gqlerror.Error {
	return &gqlerror.Error{
		Message:    message,
		Extensions: map[string]any{"code": code},
	}
}

// requestErrors tags gqlparser errors with the gqlgen parse or validation
// code. Errors raised by a validation rule carry the rule name.
func requestErrors(list gqlerror.List) gqlerror.List {
	out := make(gqlerror.List, 0, len(list))
	for _, err := range list {
		if err == nil {
			continue
		}
		code := errcode.ParseFailed
		if err.Rule != "" {
			code = errcode.ValidationFailed
		}
		if err.Extensions == nil {
			err.Extensions = map[string]any{}
		}
		if _, ok := err.Extensions["code"]; !ok {
			err.Extensions["code"] = code
		}
		out = append(out, err)
	}
	return out
}
