package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorFormatting(t *testing.T) {
	err := New(ErrCodeRefreshFailed, "refresh of enriched_orders failed").
		WithContext("table", "enriched_orders").
		WithSuggestions("Check upstream stream offsets")

	msg := err.Error()
	assert.Contains(t, msg, "SLH4004")
	assert.Contains(t, msg, "refresh of enriched_orders failed")
	assert.Contains(t, msg, "Check upstream stream offsets")
}

func TestWrapInheritsContext(t *testing.T) {
	inner := New(ErrCodeTableNotFound, "no such table").
		WithContext("table", "orders")
	outer := Wrap(inner, ErrCodeRefreshFailed, "refresh failed")

	assert.Equal(t, "orders", outer.Context["table"])
	assert.True(t, errors.Is(outer, &AppError{Code: ErrCodeRefreshFailed}))
	assert.Equal(t, inner, errors.Unwrap(outer))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "should be nil"))
}

func TestIsRecoverable(t *testing.T) {
	assert.True(t, IsRecoverable(ConnectionError("down", fmt.Errorf("refused"))))
	assert.False(t, IsRecoverable(ValidationError("bad rating")))
	assert.False(t, IsRecoverable(fmt.Errorf("plain")))
}

func TestGetErrorCode(t *testing.T) {
	assert.Equal(t, ErrCodeValidationFailed, GetErrorCode(ValidationError("x")))
	assert.Equal(t, ErrCodeInternal, GetErrorCode(fmt.Errorf("plain")))
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), &RetryConfig{
		MaxRetries:     5,
		InitialDelay:   time.Millisecond,
		MaxDelay:       time.Millisecond,
		RetryableError: DefaultRetryConfig().RetryableError,
	}, func(ctx context.Context) error {
		calls++
		return ValidationError("not retryable")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, ErrCodeValidationFailed, GetErrorCode(err))
}

func TestRetryExhaustsRecoverableError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), &RetryConfig{
		MaxRetries:     2,
		InitialDelay:   time.Millisecond,
		MaxDelay:       time.Millisecond,
		RetryableError: DefaultRetryConfig().RetryableError,
	}, func(ctx context.Context) error {
		calls++
		return ConnectionError("flaky", fmt.Errorf("refused"))
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, ErrCodeResourceExhausted, GetErrorCode(err))
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), &RetryConfig{
		MaxRetries:     3,
		InitialDelay:   time.Millisecond,
		MaxDelay:       time.Millisecond,
		RetryableError: DefaultRetryConfig().RetryableError,
	}, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return ConnectionError("flaky", fmt.Errorf("refused"))
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}
