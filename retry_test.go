package fsxpath

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// mockNetError implements netError interface for testing.
type mockNetError struct {
	error
	temporary bool
	timeout   bool
}

func (e *mockNetError) Temporary() bool { return e.temporary }
func (e *mockNetError) Timeout() bool   { return e.timeout }

func retryClient(policy *RetryPolicy) (*Client, *observer.ObservedLogs) {
	core, logs := observer.New(zap.WarnLevel)
	cfg := testConfig()
	cfg.RetryPolicy = policy
	cfg.Logger = zap.New(core)
	cfg.setDefaults()
	return &Client{config: cfg, logger: cfg.Logger}, logs
}

func fastPolicy(attempts int) *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:  attempts,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     50 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestWithRetry_Success(t *testing.T) {
	c, _ := retryClient(fastPolicy(3))

	callCount := 0
	err := c.withRetry(context.Background(), "test", func() error {
		callCount++
		return nil
	})

	if err != nil {
		t.Errorf("withRetry() error = %v, want nil", err)
	}
	if callCount != 1 {
		t.Errorf("operation called %d times, want 1", callCount)
	}
}

func TestWithRetry_SuccessAfterRetries(t *testing.T) {
	c, logs := retryClient(fastPolicy(3))

	callCount := 0
	err := c.withRetry(context.Background(), "connect", func() error {
		callCount++
		if callCount < 3 {
			return &mockNetError{error: errors.New("temp error"), temporary: true}
		}
		return nil
	})

	if err != nil {
		t.Errorf("withRetry() error = %v, want nil", err)
	}
	if callCount != 3 {
		t.Errorf("operation called %d times, want 3", callCount)
	}

	entries := logs.FilterMessage("operation failed, retrying").All()
	if len(entries) != 2 {
		t.Fatalf("retry log entries = %d, want 2", len(entries))
	}
	if op := entries[0].ContextMap()["op"]; op != "connect" {
		t.Errorf("op field = %v, want connect", op)
	}
	if attempt := entries[1].ContextMap()["attempt"]; attempt != int64(2) {
		t.Errorf("attempt field = %v, want 2", attempt)
	}
}

func TestWithRetry_MaxAttemptsExceeded(t *testing.T) {
	c, _ := retryClient(fastPolicy(3))

	callCount := 0
	tempErr := &mockNetError{error: errors.New("temp error"), temporary: true}
	err := c.withRetry(context.Background(), "test", func() error {
		callCount++
		return tempErr
	})

	if !errors.Is(err, tempErr) {
		t.Errorf("withRetry() error = %v, want %v", err, tempErr)
	}
	if callCount != 3 {
		t.Errorf("operation called %d times, want 3", callCount)
	}
}

func TestWithRetry_NonRetryableError(t *testing.T) {
	c, logs := retryClient(fastPolicy(3))

	callCount := 0
	err := c.withRetry(context.Background(), "test", func() error {
		callCount++
		return ErrAuthenticationFailed
	})

	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("withRetry() error = %v, want ErrAuthenticationFailed", err)
	}
	if callCount != 1 {
		t.Errorf("operation called %d times, want 1", callCount)
	}
	if logs.Len() != 0 {
		t.Errorf("logged %d entries for a non-retryable error", logs.Len())
	}
}

func TestWithRetry_NoPolicy(t *testing.T) {
	c, _ := retryClient(nil)

	callCount := 0
	err := c.withRetry(context.Background(), "test", func() error {
		callCount++
		return &mockNetError{error: errors.New("temp error"), temporary: true}
	})

	if err == nil {
		t.Error("withRetry() error = nil, want error")
	}
	if callCount != 1 {
		t.Errorf("operation called %d times, want 1", callCount)
	}
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	c, _ := retryClient(&RetryPolicy{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		MaxDelay:     time.Second,
		Multiplier:   1.0,
	})

	ctx, cancel := context.WithCancel(context.Background())

	callCount := 0
	start := time.Now()
	err := c.withRetry(ctx, "test", func() error {
		callCount++
		cancel()
		return &mockNetError{error: errors.New("temp error"), timeout: true}
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("withRetry() error = %v, want context.Canceled", err)
	}
	if callCount != 1 {
		t.Errorf("operation called %d times, want 1", callCount)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("withRetry() kept sleeping after cancellation")
	}
}

func TestWithRetry_BackoffCapped(t *testing.T) {
	c, logs := retryClient(&RetryPolicy{
		MaxAttempts:  4,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     15 * time.Millisecond,
		Multiplier:   3.0,
	})

	_ = c.withRetry(context.Background(), "test", func() error {
		return &mockNetError{error: errors.New("temp error"), temporary: true}
	})

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("retry log entries = %d, want 3", len(entries))
	}
	want := []time.Duration{10 * time.Millisecond, 15 * time.Millisecond, 15 * time.Millisecond}
	for i, e := range entries {
		if got := e.ContextMap()["delay"]; got != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, got, want[i])
		}
	}
}

func TestClient_ConnectRetries(t *testing.T) {
	factory := NewMockConnectionFactory(NewMockSMBBackend())
	factory.DialErrors = []error{
		&mockNetError{error: errors.New("connection reset"), temporary: true},
		&mockNetError{error: errors.New("i/o timeout"), timeout: true},
	}

	cfg := testConfig()
	cfg.RetryPolicy = fastPolicy(3)
	c, err := NewWithFactory(context.Background(), cfg, testDescriber(), factory)
	if err != nil {
		t.Fatalf("NewWithFactory() error = %v", err)
	}
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Close()

	if factory.ConnectAttempts() != 3 {
		t.Errorf("ConnectAttempts() = %d, want 3", factory.ConnectAttempts())
	}
	if factory.ConnectionsMade() != 1 {
		t.Errorf("ConnectionsMade() = %d, want 1", factory.ConnectionsMade())
	}
}
