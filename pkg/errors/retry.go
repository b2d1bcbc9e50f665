package errors

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig holds configuration for retry logic
type RetryConfig struct {
	MaxRetries     int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	RetryableError func(error) bool
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:   3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		RetryableError: func(err error) bool {
			if IsRecoverable(err) {
				return true
			}
			switch GetErrorCode(err) {
			case ErrCodeConnectionTimeout,
				ErrCodeNetworkUnavailable,
				ErrCodeTimeout,
				ErrCodeServiceUnavailable:
				return true
			default:
				return false
			}
		},
	}
}

// RetryableFunc represents a function that can be retried
type RetryableFunc func(ctx context.Context) error

// Retry executes fn with exponential backoff per config. Non-retryable errors
// abort immediately.
func Retry(ctx context.Context, config *RetryConfig, fn RetryableFunc) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = config.InitialDelay
	bo.MaxInterval = config.MaxDelay

	policy := backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(config.MaxRetries)), ctx)

	var retryable bool
	err := backoff.Retry(func() error {
		if err := fn(ctx); err != nil {
			if !config.RetryableError(err) {
				retryable = false
				return backoff.Permanent(err)
			}
			retryable = true
			return err
		}
		return nil
	}, policy)

	if err != nil {
		// backoff unwraps Permanent errors; only retryable failures get the
		// exhaustion wrapper.
		if retryable {
			return Wrap(err, ErrCodeResourceExhausted, "operation failed after retries")
		}
		return err
	}
	return nil
}

// RetryWithBackoff executes fn with the default retry configuration
func RetryWithBackoff(ctx context.Context, fn RetryableFunc) error {
	return Retry(ctx, DefaultRetryConfig(), fn)
}
