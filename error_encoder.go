package kino

import (
	stdErrors "errors"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// ErrorEncoder writes transport-level failures, the ones raised before an
// operation reaches the engine.
type ErrorEncoder func(ctx Context, err error, operation string) error

// ErrorStatusResolver resolves the HTTP status code for a go-errors error.
type ErrorStatusResolver func(err *goerrors.Error, operation string) int

type problemJSONEncoderOption func(*problemJSONEncoderConfig)

type problemJSONEncoderConfig struct {
	includeStack   bool
	errorMappers   []goerrors.ErrorMapper
	statusResolver ErrorStatusResolver
	contentType    string
}

// ProblemJSONErrorEncoder returns an encoder that emits go-errors compatible
// RFC-7807/problem+json responses.
func ProblemJSONErrorEncoder(opts ...problemJSONEncoderOption) ErrorEncoder {
	cfg := defaultProblemJSONEncoderConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(ctx Context, err error, operation string) error {
		if err == nil {
			err = stdErrors.New("unknown error")
		}

		mapped := goerrors.MapToError(err, cfg.errorMappers)
		if mapped == nil {
			mapped = internalProblem()
		}

		status := cfg.statusResolver(mapped, operation)
		if status <= 0 {
			status = http.StatusInternalServerError
		}

		mapped.WithCode(status)
		if strings.TrimSpace(mapped.TextCode) == "" {
			mapped.WithTextCode(goerrors.HTTPStatusToTextCode(status))
		}

		if mapped.Timestamp.IsZero() {
			mapped.Timestamp = time.Now().UTC()
		}

		includeStack := cfg.includeStack || goerrors.IsDevelopment
		if includeStack && len(mapped.StackTrace) == 0 {
			mapped.WithStackTrace()
		}

		attachErrorRequestMetadata(ctx, mapped, operation)

		response := mapped.ToErrorResponse(includeStack, mapped.StackTrace)
		return ctx.Status(status).JSON(response, cfg.contentType)
	}
}

// WithProblemJSONIncludeStack configures whether stack traces should be serialized.
func WithProblemJSONIncludeStack(include bool) problemJSONEncoderOption {
	return func(cfg *problemJSONEncoderConfig) {
		cfg.includeStack = include
	}
}

// WithProblemJSONStatusResolver overrides the status resolver used by the encoder.
func WithProblemJSONStatusResolver(resolver ErrorStatusResolver) problemJSONEncoderOption {
	return func(cfg *problemJSONEncoderConfig) {
		if resolver != nil {
			cfg.statusResolver = resolver
		}
	}
}

func defaultProblemJSONEncoderConfig() problemJSONEncoderConfig {
	return problemJSONEncoderConfig{
		includeStack:   goerrors.IsDevelopment,
		errorMappers:   []goerrors.ErrorMapper{mapTransportErrors, mapKinoErrors},
		statusResolver: defaultErrorStatusResolver,
		contentType:    "application/problem+json",
	}
}

// mapTransportErrors passes through errors the handler already categorized.
func mapTransportErrors(err error) *goerrors.Error {
	var categorized *goerrors.Error
	if stdErrors.As(err, &categorized) {
		return categorized
	}
	return nil
}

func badRequest(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode("BAD_REQUEST")
}

func defaultErrorStatusResolver(err *goerrors.Error, _ string) int {
	if err == nil {
		return http.StatusInternalServerError
	}

	if err.Code > 0 {
		return err.Code
	}

	switch err.Category {
	case goerrors.CategoryValidation:
		return http.StatusUnprocessableEntity
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryMethodNotAllowed:
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}

func attachErrorRequestMetadata(ctx Context, err *goerrors.Error, operation string) {
	if ctx == nil || err == nil {
		return
	}

	requestID := RequestIDFromContext(ctx.UserContext())
	if requestID != "" {
		err.WithRequestID(requestID)
	}

	correlationID := CorrelationIDFromContext(ctx.UserContext())
	if correlationID != "" {
		err.WithMetadata(map[string]any{
			"correlation_id": correlationID,
		})
	}

	if operation != "" {
		err.WithMetadata(map[string]any{
			"operation": operation,
		})
	}
}
