package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	calls int
	err   error
}

func (s *stubClient) Complete(ctx context.Context, req Request) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "{}", nil
}

func TestNewBreakerClient_Disabled(t *testing.T) {
	next := &stubClient{}
	assert.Same(t, Client(next), NewBreakerClient(next, BreakerConfig{}))
}

func TestBreakerClient_OpensAfterConsecutiveFailures(t *testing.T) {
	next := &stubClient{err: errors.New("503 from model")}
	c := NewBreakerClient(next, BreakerConfig{ConsecutiveFailures: 2, OpenTimeout: time.Hour})

	for i := 0; i < 2; i++ {
		_, err := c.Complete(context.Background(), Request{})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrModelUnavailable)
	}

	_, err := c.Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.Equal(t, 2, next.calls)
}

func TestBreakerClient_SuccessResets(t *testing.T) {
	next := &stubClient{err: errors.New("boom")}
	c := NewBreakerClient(next, BreakerConfig{ConsecutiveFailures: 2, OpenTimeout: time.Hour})

	_, _ = c.Complete(context.Background(), Request{})
	next.err = nil
	text, err := c.Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "{}", text)

	next.err = errors.New("boom")
	_, err = c.Complete(context.Background(), Request{})
	assert.NotErrorIs(t, err, ErrModelUnavailable)
}

func TestBreakerClient_CancellationIsNotAFailure(t *testing.T) {
	next := &stubClient{err: context.Canceled}
	c := NewBreakerClient(next, BreakerConfig{ConsecutiveFailures: 1, OpenTimeout: time.Hour})

	for i := 0; i < 3; i++ {
		_, err := c.Complete(context.Background(), Request{})
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, 3, next.calls)
}
