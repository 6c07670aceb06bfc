package camunda

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veripass/internal/common/errors"
)

func testClient(maxRetries int) *Client {
	return &Client{config: &ClientConfig{
		RequestTimeout: time.Second,
		RetryConfig:    &RetryConfig{MaxRetries: maxRetries, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	}}
}

func TestIsRetryableZeebeError(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"rpc error: code = Unavailable desc = connection refused", true},
		{"context deadline exceeded", true},
		{"rpc error: code = RESOURCE_EXHAUSTED", true},
		{"NOT_FOUND: process instance 42", false},
		{"invalid argument", false},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableZeebeError(stderrors.New(tt.msg)))
		})
	}
}

func TestMapZeebeError(t *testing.T) {
	tests := []struct {
		msg  string
		want errors.ErrorCode
	}{
		{"unavailable", errors.ErrCodeExternalService},
		{"deadline exceeded", errors.ErrCodeTimeout},
		{"job not found", errors.ErrCodeNotFound},
		{"unauthorized", errors.ErrCodeUnauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.CodeOf(mapZeebeError(stderrors.New(tt.msg), "publish", 0)))
		})
	}
}

func TestRetry(t *testing.T) {
	t.Run("transient then success", func(t *testing.T) {
		calls := 0
		err := testClient(2).Retry(context.Background(), "publish", func(ctx context.Context) error {
			calls++
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline, "each attempt is bounded by RequestTimeout")
			if calls < 2 {
				return stderrors.New("connection reset by peer")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("permanent error stops immediately", func(t *testing.T) {
		calls := 0
		err := testClient(2).Retry(context.Background(), "publish", func(context.Context) error {
			calls++
			return stderrors.New("invalid argument")
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
		assert.Equal(t, errors.ErrCodeExternalService, errors.CodeOf(err))
	})

	t.Run("budget spent", func(t *testing.T) {
		calls := 0
		err := testClient(2).Retry(context.Background(), "publish", func(context.Context) error {
			calls++
			return stderrors.New("unavailable")
		})
		require.Error(t, err)
		assert.Equal(t, 3, calls)
		std, ok := errors.AsStandard(err)
		require.True(t, ok)
		assert.True(t, std.Retryable)
	})

	t.Run("cancelled between attempts", func(t *testing.T) {
		c := testClient(5)
		c.config.RetryConfig.BaseDelay = time.Hour
		c.config.RetryConfig.MaxDelay = time.Hour
		ctx, cancel := context.WithCancel(context.Background())
		err := c.Retry(ctx, "publish", func(context.Context) error {
			cancel()
			return stderrors.New("unavailable")
		})
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeTimeout, errors.CodeOf(err))
	})
}

func TestStatusVariables(t *testing.T) {
	vars := statusVariables(7, 1001, "initial approval")
	assert.Equal(t, int64(7), vars["registrationId"])
	assert.Equal(t, int64(1001), vars["registrationNumber"])
	assert.Equal(t, "initial approval", vars["registrationStatus"])
}

func TestNewStatusPublisher_DefaultTTL(t *testing.T) {
	p := NewStatusPublisher(testClient(0), 0)
	assert.Equal(t, DefaultMessageTTL, p.ttl)
}
