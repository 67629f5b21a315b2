package core

import (
	"testing"
	"time"
)

func TestCalculateBackoff_NilPolicyUsesFetchSchedule(t *testing.T) {
	if got := CalculateBackoff(nil, 1); got != time.Second {
		t.Errorf("CalculateBackoff(nil, 1) = %v, want 1s", got)
	}
}

func TestCalculateBackoff_FetchSchedule(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second}, // 16s capped
		{9, 10 * time.Second},
	}

	for _, tt := range tests {
		got := CalculateBackoff(&FetchRetryPolicy, tt.attempt)
		if got != tt.want {
			t.Errorf("CalculateBackoff(fetch, %d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestCalculateBackoff_AttemptBelowOneClamped(t *testing.T) {
	if got := CalculateBackoff(&FetchRetryPolicy, 0); got != time.Second {
		t.Errorf("CalculateBackoff(fetch, 0) = %v, want 1s", got)
	}
}

func TestCalculateBackoff_CustomPolicy(t *testing.T) {
	policy := &RetryPolicy{
		InitialInterval:    500 * time.Millisecond,
		BackoffCoefficient: 3,
		MaxInterval:        5 * time.Second,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 500 * time.Millisecond},
		{2, 1500 * time.Millisecond},
		{3, 4500 * time.Millisecond},
		{4, 5 * time.Second},
	}

	for _, tt := range tests {
		got := CalculateBackoff(policy, tt.attempt)
		if got != tt.want {
			t.Errorf("CalculateBackoff(custom, %d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestCalculateBackoff_ZeroValueDefaults(t *testing.T) {
	if got := CalculateBackoff(&RetryPolicy{}, 3); got != 4*time.Second {
		t.Errorf("CalculateBackoff(zero, 3) = %v, want 4s", got)
	}
}
