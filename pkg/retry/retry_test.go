package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

// ============================================================
// Backoff tests
// ============================================================

// Для baseDelay=1s, jitter=0.2, attempt=3 задержка должна лежать
// в [8.0, 9.6) секунд до применения MaxDelay
func TestCalculateDelayBounds(t *testing.T) {
	cfg := Config{
		MaxAttempts: 5,
		BaseDelay:   1 * time.Second,
		MaxDelay:    time.Hour,
		Jitter:      0.2,
	}
	cfg.validate()

	lower := 8 * time.Second
	upper := 9600 * time.Millisecond

	for i := 0; i < 1000; i++ {
		d := cfg.calculateDelay(3)
		if d < lower || d >= upper {
			t.Fatalf("delay %v out of [%v, %v)", d, lower, upper)
		}
	}
}

func TestCalculateDelayCappedByMaxDelay(t *testing.T) {
	cfg := Config{
		MaxAttempts: 10,
		BaseDelay:   1 * time.Second,
		MaxDelay:    2 * time.Second,
		Jitter:      0.2,
	}
	cfg.validate()

	if d := cfg.calculateDelay(5); d != 2*time.Second {
		t.Errorf("expected cap at 2s, got %v", d)
	}
}

func TestCalculateDelayNoJitter(t *testing.T) {
	cfg := Config{
		MaxAttempts: 5,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    time.Hour,
	}
	cfg.validate()

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
	}

	for _, tt := range tests {
		if d := cfg.calculateDelay(tt.attempt); d != tt.expected {
			t.Errorf("attempt %d: expected %v, got %v", tt.attempt, tt.expected, d)
		}
	}
}

// ============================================================
// Do tests
// ============================================================

func fastConfig(maxAttempts int) Config {
	return Config{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return nil
	}, fastConfig(4))

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, fastConfig(4))

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	wantErr := errors.New("always fails")
	err := Do(context.Background(), func() error {
		calls++
		return wantErr
	}, fastConfig(4))

	if !errors.Is(err, wantErr) {
		t.Errorf("expected last error, got %v", err)
	}
	if calls != 4 {
		t.Errorf("expected 4 calls, got %d", calls)
	}
}

func TestDoPermanentAbortsImmediately(t *testing.T) {
	calls := 0
	cfg := fastConfig(4)
	cfg.RetryIf = IsRetryable

	err := Do(context.Background(), func() error {
		calls++
		return Permanent(errors.New("bad request"))
	}, cfg)

	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("permanent error must not be retried, got %d calls", calls)
	}
}

func TestDoContextCancelStopsNewAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	cfg := Config{
		MaxAttempts: 10,
		BaseDelay:   50 * time.Millisecond,
		MaxDelay:    time.Second,
	}

	err := Do(ctx, func() error {
		calls++
		cancel() // отменяем во время первой попытки
		return errors.New("transient")
	}, cfg)

	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call after cancel, got %d", calls)
	}
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	result, err := DoWithResult(context.Background(), func() (string, error) {
		calls++
		if calls < 2 {
			return "", errors.New("transient")
		}
		return "order-123", nil
	}, fastConfig(4))

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if result != "order-123" {
		t.Errorf("expected order-123, got %q", result)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), true},
		{"permanent", Permanent(errors.New("boom")), false},
		{"wrapped permanent", wrapErr(Permanent(errors.New("boom"))), false},
		{"context canceled", context.Canceled, false},
		{"deadline exceeded", context.DeadlineExceeded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

type wrapped struct{ err error }

func (w *wrapped) Error() string { return "wrapped: " + w.err.Error() }
func (w *wrapped) Unwrap() error { return w.err }

func wrapErr(err error) error { return &wrapped{err: err} }

func TestOnRetryCallback(t *testing.T) {
	cfg := fastConfig(3)
	attempts := []int{}
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		attempts = append(attempts, attempt)
	}

	_ = Do(context.Background(), func() error {
		return errors.New("transient")
	}, cfg)

	if len(attempts) != 2 {
		t.Fatalf("expected 2 retries, got %d", len(attempts))
	}
	if attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("unexpected attempt numbers: %v", attempts)
	}
}
