package http

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func fastConfig(max int) Config {
	return Config{
		MaxRetries:   max,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"nil", nil, ErrorTypeSuccess},
		{"forbidden link", &StatusError{StatusCode: 403}, ErrorTypeCredential},
		{"unauthorized", fmt.Errorf("wrapped: %w", &StatusError{StatusCode: 401}), ErrorTypeCredential},
		{"throttled", &StatusError{StatusCode: 429}, ErrorTypeRetryable},
		{"bad gateway", &StatusError{StatusCode: 502}, ErrorTypeRetryable},
		{"not found", &StatusError{StatusCode: 404}, ErrorTypeFatal},
		{"reset", errors.New("read tcp: connection reset by peer"), ErrorTypeNetwork},
		{"cancelled", context.Canceled, ErrorTypeFatal},
		{"unknown", errors.New("disk full"), ErrorTypeFatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError(%v) = %s, want %s", tt.err, ErrorTypeName(got), ErrorTypeName(tt.want))
			}
		})
	}
}

func TestStatusErrorRedactsQuery(t *testing.T) {
	err := &StatusError{StatusCode: 403, URL: "https://bucket.s3.amazonaws.com/a.pdf?X-Amz-Signature=abc"}
	if got := err.Error(); got != "GET https://bucket.s3.amazonaws.com/a.pdf: unexpected status 403" {
		t.Errorf("unexpected message: %s", got)
	}
}

func TestExecuteWithRetry_Success(t *testing.T) {
	calls := 0
	err := ExecuteWithRetry(context.Background(), fastConfig(3), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestExecuteWithRetry_FatalError(t *testing.T) {
	calls := 0
	err := ExecuteWithRetry(context.Background(), fastConfig(5), func() error {
		calls++
		return &StatusError{StatusCode: 404}
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if calls != 1 {
		t.Errorf("expected 1 call (no retry on fatal), got %d", calls)
	}
}

func TestExecuteWithRetry_RetriesServerErrors(t *testing.T) {
	calls := 0
	retries := 0
	cfg := fastConfig(4)
	cfg.OnRetry = func(int, error, ErrorType) { retries++ }

	err := ExecuteWithRetry(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return &StatusError{StatusCode: 503}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 || retries != 2 {
		t.Errorf("expected 3 calls and 2 retries, got %d and %d", calls, retries)
	}
}

func TestExecuteWithRetry_Exhausted(t *testing.T) {
	calls := 0
	err := ExecuteWithRetry(context.Background(), fastConfig(3), func() error {
		calls++
		return &StatusError{StatusCode: 500}
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var se *StatusError
	if !errors.As(err, &se) {
		t.Errorf("expected wrapped StatusError, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestExecuteWithRetry_CredentialRefresh(t *testing.T) {
	refreshed := 0
	calls := 0
	cfg := fastConfig(3)
	cfg.CredentialRefresh = func(context.Context) error {
		refreshed++
		return nil
	}

	err := ExecuteWithRetry(context.Background(), cfg, func() error {
		calls++
		if refreshed == 0 {
			return &StatusError{StatusCode: 403}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after refresh, got %v", err)
	}
	if refreshed != 1 || calls != 2 {
		t.Errorf("expected 1 refresh and 2 calls, got %d and %d", refreshed, calls)
	}
}

func TestExecuteWithRetry_CredentialWithoutRefresh(t *testing.T) {
	calls := 0
	err := ExecuteWithRetry(context.Background(), fastConfig(3), func() error {
		calls++
		return &StatusError{StatusCode: 403}
	})
	if err == nil || calls != 1 {
		t.Errorf("expected immediate failure, got err=%v calls=%d", err, calls)
	}
}

// TestExecuteWithRetry_ContextCancelledDuringSleep verifies retry returns quickly when context cancelled.
func TestExecuteWithRetry_ContextCancelledDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{
		MaxRetries:   5,
		InitialDelay: 5 * time.Second,
		MaxDelay:     30 * time.Second,
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	calls := 0
	start := time.Now()
	err := ExecuteWithRetry(ctx, cfg, func() error {
		calls++
		return fmt.Errorf("connection reset")
	})
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if elapsed > 1*time.Second {
		t.Errorf("expected quick return after context cancel, but took %v", elapsed)
	}
	if calls < 1 {
		t.Errorf("expected at least 1 call, got %d", calls)
	}
}

func TestCalculateBackoff(t *testing.T) {
	if d := CalculateBackoff(0, time.Second, time.Minute); d != 0 {
		t.Errorf("expected 0 for attempt 0, got %v", d)
	}
	for i := 0; i < 50; i++ {
		if d := CalculateBackoff(10, time.Second, 2*time.Second); d < 0 || d >= 2*time.Second {
			t.Fatalf("backoff %v outside [0, 2s)", d)
		}
	}
}
