// Package notifier delivers operator alerts.
package notifier

import "context"

// Notifier sends a human-readable message tagged with the cycle's
// correlation id.
type Notifier interface {
	Send(ctx context.Context, message, correlationID string) error
}

// Nop discards messages; used when no channel is configured.
type Nop struct{}

func (Nop) Send(context.Context, string, string) error { return nil }
