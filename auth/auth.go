// Package auth hashes credentials and issues and verifies bearer tokens.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrMissingSecret   = errors.New("auth: signing secret is required")
	ErrInvalidHashCost = errors.New("auth: invalid bcrypt cost")
	ErrInvalidToken    = errors.New("invalid token")
	ErrExpiredToken    = errors.New("token expired")
	ErrEmptySubject    = errors.New("token subject is required")
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")
	ErrEmptyPassword   = errors.New("password is required")
)

// Config holds the values the service needs. It is read once at construction.
type Config struct {
	Secret Secret `json:"secret"`
	// TokenTTL bounds token lifetime. Zero issues tokens without expiry.
	TokenTTL time.Duration `json:"token_ttl"`
	Issuer   string        `json:"issuer"`
	HashCost int           `json:"hash_cost"`
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source used to stamp and check tokens.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service bundles password hashing and token handling. It is safe for
// concurrent use and holds no per-request state.
type Service struct {
	secret Secret
	ttl    time.Duration
	issuer string
	cost   int
	now    func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

// New validates cfg and returns a ready Service.
func New(cfg Config, opts ...Option) (*Service, error) {
	if cfg.Secret.IsZero() {
		return nil, ErrMissingSecret
	}

	cost := cfg.HashCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHashCost, cost)
	}

	if cfg.TokenTTL < 0 {
		return nil, fmt.Errorf("auth: token ttl must not be negative")
	}

	s := &Service{
		secret: cfg.Secret,
		ttl:    cfg.TokenTTL,
		issuer: strings.TrimSpace(cfg.Issuer),
		cost:   cost,
		now:    time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s, nil
}
