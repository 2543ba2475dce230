package dbretry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Policy controls the exponential backoff used for an operation.
type Policy struct {
	MaxElapsedTime  time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxRetries      uint64
}

// DefaultPolicy is used for connection checks at startup.
var DefaultPolicy = Policy{ //nolint:gochecknoglobals // -
	MaxElapsedTime:  30 * time.Second,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     5 * time.Second,
	MaxRetries:      5,
}

// retryableClasses are SQLSTATE classes that indicate the server could not
// serve the request right now.
var retryableClasses = []string{ //nolint:gochecknoglobals // -
	"08",  // connection_exception
	"53",  // insufficient_resources
	"57P", // admin_shutdown, crash_shutdown, cannot_connect_now
}

// IsRetryableError checks if the given error is worth retrying.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var pgerr *pgdriver.Error
	if errors.As(err, &pgerr) {
		code := pgerr.Field('C')
		for _, class := range retryableClasses {
			if strings.HasPrefix(code, class) {
				return true
			}
		}
		return false
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// Drivers do not always wrap the syscall error
	errMsg := err.Error()
	return strings.Contains(errMsg, "connection refused") ||
		strings.Contains(errMsg, "connection reset by peer") ||
		strings.Contains(errMsg, "i/o timeout")
}

// NoResult runs operation with DefaultPolicy.
func NoResult(ctx context.Context, operation func(context.Context) error) error {
	return WithPolicy(ctx, DefaultPolicy, operation)
}

// WithPolicy runs operation until it succeeds, fails with a non-retryable
// error, or the policy is exhausted.
func WithPolicy(ctx context.Context, policy Policy, operation func(context.Context) error) error {
	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(policy.MaxElapsedTime),
		backoff.WithInitialInterval(policy.InitialInterval),
		backoff.WithMaxInterval(policy.MaxInterval),
	), policy.MaxRetries)

	err := backoff.Retry(func() error {
		err := operation(ctx)
		if err != nil {
			if !IsRetryableError(err) {
				return backoff.Permanent(fmt.Errorf("non-retryable error: %w", err))
			}
			return err
		}
		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return fmt.Errorf("database operation failed: %w", err)
	}

	return nil
}
