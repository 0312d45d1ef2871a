// Package genstore keeps per-key generation markers in the shared backing
// store. Local (in-process) copies of a value are framed with the generation
// they were loaded under; a copy is valid only while the marker still holds
// that generation. Deleting the marker (prefix or dependency reset) therefore
// invalidates the copy on every instance without any broadcast.
package genstore

import (
	"context"
	"time"
)

// GenStore abstracts where generations live.
type GenStore interface {
	// Snapshot returns the current generation; missing => 0.
	Snapshot(ctx context.Context, markerKey string) (uint64, error)
	// Bump assigns a fresh generation to markerKey and returns it.
	// Generations are never reused within a namespace, so a marker that was
	// deleted and recreated never validates an older copy.
	Bump(ctx context.Context, markerKey string, ttl time.Duration) (uint64, error)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}
