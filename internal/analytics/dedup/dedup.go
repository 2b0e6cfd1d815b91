// Package dedup tracks which event ids have already been processed so the
// analytics consumer stays idempotent under at-least-once delivery.
package dedup

import "context"

// Tracker records processed event ids. MarkProcessed returns true only the
// first time an id is seen; the claim and the check are one atomic step so
// concurrent deliveries of the same event cannot both win.
type Tracker interface {
	MarkProcessed(ctx context.Context, eventID string) (bool, error)
}
