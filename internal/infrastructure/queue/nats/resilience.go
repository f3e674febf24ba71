package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/study-vault/internal/infrastructure/resilience"
)

// classifyNATSError separates transport hiccups worth retrying from caller
// cancellation and everything else.
func classifyNATSError(err error) resilience.Verdict {
	switch {
	case err == nil:
		return resilience.Verdict{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.Verdict{}
	case resilience.IsCircuitOpen(err):
		return resilience.Verdict{Retry: true, TripsBreaker: true}
	case errors.Is(err, nats.ErrNoServers),
		errors.Is(err, nats.ErrTimeout),
		errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrDisconnected):
		return resilience.Verdict{Retry: true, TripsBreaker: true}
	default:
		return resilience.Verdict{TripsBreaker: true}
	}
}
