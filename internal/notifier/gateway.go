// Package notifier delivers best-effort messages about moderation decisions,
// registrations and upcoming sessions.
package notifier

import (
	"context"
	"log"
)

// Gateway sends one message. Implementations may be slow or fail; callers go
// through a Dispatcher so neither ever reaches the request that triggered it.
type Gateway interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogGateway writes messages to the log. Used when no delivery channel is configured.
type LogGateway struct{}

func (LogGateway) Send(_ context.Context, to, subject, body string) error {
	log.Printf("notification to=%s subject=%q body=%q", to, subject, body)
	return nil
}

// GatewayFunc adapts a function into a Gateway.
type GatewayFunc func(ctx context.Context, to, subject, body string) error

func (f GatewayFunc) Send(ctx context.Context, to, subject, body string) error {
	return f(ctx, to, subject, body)
}
