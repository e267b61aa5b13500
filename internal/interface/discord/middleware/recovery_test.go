package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecoveryPassesThroughSuccess(t *testing.T) {
	m := NewRecoveryMiddleware(DefaultRecoveryConfig())

	result := m.Run(context.Background(), 42, "profile", func() error { return nil })
	assert.False(t, result.Recovered)
	assert.NoError(t, result.Err)
	assert.Equal(t, "", result.UserMessage)
}

func TestRecoveryPassesThroughHandlerErrors(t *testing.T) {
	m := NewRecoveryMiddleware(DefaultRecoveryConfig())
	errBoom := errors.New("boom")

	result := m.Run(context.Background(), 42, "profile", func() error { return errBoom })
	assert.False(t, result.Recovered)
	assert.ErrorIs(t, result.Err, errBoom)
}

func TestRecoveryCapturesPanic(t *testing.T) {
	var captured *PanicInfo
	config := DefaultRecoveryConfig()
	config.OnPanic = func(ctx context.Context, info *PanicInfo) { captured = info }
	m := NewRecoveryMiddleware(config)

	result := m.Run(context.Background(), 42, "profile", func() error {
		panic("handler exploded")
	})

	assert.True(t, result.Recovered)
	assert.NoError(t, result.Err)
	assert.Equal(t, config.UserErrorMessage, result.UserMessage)

	assert.NotNil(t, captured)
	assert.EqualError(t, captured.Error, "handler exploded")
	assert.Equal(t, int64(42), captured.UserID)
	assert.Equal(t, "profile", captured.Command)
	assert.NotEmpty(t, captured.StackTrace)
}

func TestRecoveryConvertsPanicValues(t *testing.T) {
	m := NewRecoveryMiddleware(DefaultRecoveryConfig())

	errBoom := errors.New("boom")
	result := m.Run(context.Background(), 42, "profile", func() error { panic(errBoom) })
	assert.ErrorIs(t, result.PanicInfo.Error, errBoom)

	result = m.Run(context.Background(), 42, "profile", func() error { panic(7) })
	assert.EqualError(t, result.PanicInfo.Error, "panic: 7")
	assert.Equal(t, 7, result.PanicInfo.PanicValue)
}

func TestRecoverySkipsStackTraceWhenDisabled(t *testing.T) {
	config := DefaultRecoveryConfig()
	config.EnableStackTrace = false
	m := NewRecoveryMiddleware(config)

	result := m.Run(context.Background(), 42, "profile", func() error { panic("boom") })
	assert.True(t, result.Recovered)
	assert.Equal(t, "", result.PanicInfo.StackTrace)
}

func TestRecoveryRateLimitsPanicProcessing(t *testing.T) {
	var calls int
	config := DefaultRecoveryConfig()
	config.MaxPanicsPerMinute = 2
	config.OnPanic = func(ctx context.Context, info *PanicInfo) { calls++ }
	m := NewRecoveryMiddleware(config)

	for i := 0; i < 5; i++ {
		result := m.Run(context.Background(), 42, "profile", func() error { panic("boom") })
		// Past the limit panics are still contained, just not processed.
		assert.True(t, result.Recovered)
		assert.Equal(t, config.UserErrorMessage, result.UserMessage)
	}

	assert.Equal(t, 2, calls)
}
