package auth

import (
	"errors"
	"time"
)

const defaultResetTTL = 20 * time.Minute

// Service ties the credential codec and the store together into the
// authentication, authorization, and secret-lifecycle operations.
type Service struct {
	store       Store
	codec       *Codec
	now         func() time.Time
	resetTTL    time.Duration
	secretBytes int
	deliver     ResetDeliverer
}

// ResetDeliverer hands a freshly issued password-reset secret to an
// out-of-band channel (mail, console). Delivery failures are logged, never
// surfaced to the caller.
type ResetDeliverer func(email, secret string, expiration time.Time)

// Option configures Service behavior.
type Option func(*Service) error

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// WithResetTTL configures the password-reset token lifetime.
func WithResetTTL(ttl time.Duration) Option {
	return func(s *Service) error {
		if ttl > 0 {
			s.resetTTL = ttl
		}
		return nil
	}
}

// WithSecretBytes configures the entropy of generated opaque secrets.
func WithSecretBytes(n int) Option {
	return func(s *Service) error {
		if n > 0 {
			s.secretBytes = n
		}
		return nil
	}
}

// WithResetDeliverer installs the out-of-band delivery channel for reset
// secrets.
func WithResetDeliverer(fn ResetDeliverer) Option {
	return func(s *Service) error {
		if fn != nil {
			s.deliver = fn
		}
		return nil
	}
}

// NewService constructs a Service around a store and a codec.
func NewService(store Store, codec *Codec, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if codec == nil {
		return nil, errors.New("auth: codec is required")
	}
	s := &Service{
		store:       store,
		codec:       codec,
		now:         time.Now,
		resetTTL:    defaultResetTTL,
		secretBytes: DefaultSecretBytes,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}
