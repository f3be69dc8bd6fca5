package streamproc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/neuroflux/engine/internal/circuitbreaker"
)

type fakeServerStream struct {
	grpc.ServerStream
}

func (fakeServerStream) Context() context.Context { return context.Background() }

func tripAfterTwo() *circuitbreaker.CircuitBreaker {
	cfg := &circuitbreaker.Config{
		Name:        "test-device-link",
		MaxRequests: 1,
		Timeout:     time.Minute,
		ReadyToTrip: func(c circuitbreaker.Counts) bool {
			return c.ConsecutiveFailures >= 2
		},
	}
	return circuitbreaker.New(cfg)
}

func TestStreamBreakerInterceptorPassesThroughWhileClosed(t *testing.T) {
	cb := tripAfterTwo()
	interceptor := StreamBreakerInterceptor(cb)

	called := false
	err := interceptor(nil, fakeServerStream{}, &grpc.StreamServerInfo{}, func(srv interface{}, ss grpc.ServerStream) error {
		called = true
		return nil
	})

	require.NoError(t, err)
	require.True(t, called)
}

func TestStreamBreakerInterceptorRejectsWhileOpen(t *testing.T) {
	cb := tripAfterTwo()
	interceptor := StreamBreakerInterceptor(cb)

	failing := func(srv interface{}, ss grpc.ServerStream) error {
		return errors.New("device unreachable")
	}
	for i := 0; i < 2; i++ {
		_ = interceptor(nil, fakeServerStream{}, &grpc.StreamServerInfo{}, failing)
	}
	require.Equal(t, circuitbreaker.StateOpen, cb.State())

	called := false
	err := interceptor(nil, fakeServerStream{}, &grpc.StreamServerInfo{}, func(srv interface{}, ss grpc.ServerStream) error {
		called = true
		return nil
	})

	require.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	require.False(t, called)
}
