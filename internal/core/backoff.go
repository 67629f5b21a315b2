package core

import (
	"math"
	"time"
)

// RetryPolicy is an exponential delay schedule between attempts of one
// logical call.
type RetryPolicy struct {
	InitialInterval    time.Duration
	BackoffCoefficient float64
	MaxInterval        time.Duration
}

// FetchRetryPolicy is the schedule used by the API client:
// min(1000 * 2^(n-1), 10000) ms before attempt n.
var FetchRetryPolicy = RetryPolicy{
	InitialInterval:    time.Second,
	BackoffCoefficient: 2.0,
	MaxInterval:        10 * time.Second,
}

// CalculateBackoff computes the delay before retry attempt n (n >= 1).
func CalculateBackoff(policy *RetryPolicy, attempt int) time.Duration {
	if policy == nil {
		policy = &FetchRetryPolicy
	}
	if attempt < 1 {
		attempt = 1
	}

	initialInterval := policy.InitialInterval
	if initialInterval <= 0 {
		initialInterval = time.Second
	}

	coefficient := policy.BackoffCoefficient
	if coefficient <= 0 {
		coefficient = 2.0
	}

	delay := float64(initialInterval) * math.Pow(coefficient, float64(attempt-1))
	if policy.MaxInterval > 0 && delay > float64(policy.MaxInterval) {
		delay = float64(policy.MaxInterval)
	}
	return time.Duration(delay)
}
