package httpclient

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestRetryStopsOnNonRetriableError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), Policy{Attempts: 5, BaseDelay: time.Millisecond}, func() error {
		calls++
		return &StatusError{URL: "http://x", StatusCode: http.StatusBadRequest}
	})
	if err == nil || calls != 1 {
		t.Fatalf("expected one call and an error, got %d calls, err=%v", calls, err)
	}
}

func TestRetryRecoversFromServerErrors(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), Policy{Attempts: 3, BaseDelay: time.Millisecond}, func() error {
		calls++
		if calls < 3 {
			return &StatusError{URL: "http://x", StatusCode: http.StatusServiceUnavailable}
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("expected success on third call, got %d calls, err=%v", calls, err)
	}
}

func TestIsRetriable(t *testing.T) {
	if !IsRetriable(context.DeadlineExceeded) {
		t.Fatalf("deadline should be retriable")
	}
	if IsRetriable(errors.New("boom")) {
		t.Fatalf("plain errors are not retriable")
	}
	if !IsRetriable(&StatusError{StatusCode: http.StatusTooManyRequests}) {
		t.Fatalf("429 should be retriable")
	}
}
