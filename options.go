package kino

import "time"

// DefaultMaxConcurrency bounds how many sibling fields resolve at once.
const DefaultMaxConcurrency = 16

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

func WithLogger(logger Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithMetrics(metrics Metrics) EngineOption {
	return func(e *Engine) {
		if metrics != nil {
			e.metrics = metrics
		}
	}
}

// WithMaxConcurrency sets the sibling field limit. Values below one keep the
// default.
func WithMaxConcurrency(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxConcurrency = n
		}
	}
}

// HandlerOption customizes a Handler.
type HandlerOption func(*Handler)

func WithHandlerLogger(logger Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithErrorEncoder overrides how transport-level failures are written.
func WithErrorEncoder(encoder ErrorEncoder) HandlerOption {
	return func(h *Handler) {
		if encoder != nil {
			h.encodeError = encoder
		}
	}
}

// WithMaxBodySize caps the accepted request body in bytes.
func WithMaxBodySize(n int) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxBodySize = n
		}
	}
}

// WithRequestTimeout bounds how long one GraphQL request may run. Resolvers
// observe the deadline through their context.
func WithRequestTimeout(d time.Duration) HandlerOption {
	return func(h *Handler) {
		if d > 0 {
			h.timeout = d
		}
	}
}
