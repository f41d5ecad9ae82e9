package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerConfig configures a BreakerClient.
type BreakerConfig struct {
	// ConsecutiveFailures trips the breaker. 0 disables it.
	ConsecutiveFailures uint32

	// OpenTimeout is how long the breaker stays open before letting a probe through.
	OpenTimeout time.Duration
}

// ErrModelUnavailable is returned without calling the model while the breaker is open.
var ErrModelUnavailable = errors.New("model unavailable")

// BreakerClient stops calling the model after repeated failures so that a
// batch does not spend its time waiting on an outage. Context cancellation
// does not count as a failure.
type BreakerClient struct {
	next Client
	cb   *gobreaker.CircuitBreaker[string]
}

// NewBreakerClient wraps next. With ConsecutiveFailures == 0 it returns next unchanged.
func NewBreakerClient(next Client, cfg BreakerConfig) Client {
	if cfg.ConsecutiveFailures == 0 {
		return next
	}

	settings := gobreaker.Settings{
		Name:        "model",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}

	return &BreakerClient{
		next: next,
		cb:   gobreaker.NewCircuitBreaker[string](settings),
	}
}

// Complete forwards req unless the breaker is open.
func (c *BreakerClient) Complete(ctx context.Context, req Request) (string, error) {
	text, err := c.cb.Execute(func() (string, error) {
		return c.next.Complete(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("Complete: %w", ErrModelUnavailable)
	}
	return text, err
}
