// Package notify delivers the final digest. The pipeline only depends on the
// Notifier interface; delivery transport is glue.
package notify

import "context"

// Notifier sends a digest to a recipient set.
type Notifier interface {
	Send(ctx context.Context, subject, body string) error
}
