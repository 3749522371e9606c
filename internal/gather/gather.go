// Package gather defines the data gathering jobs that keep the local bar
// and instrument stores current.
package gather

import "context"

// Gatherer is the interface for all data gathering jobs.
type Gatherer interface {
	// Name returns the gatherer identifier.
	Name() string
	// Run executes one gathering pass. It returns when the pass completes or
	// ctx is cancelled.
	Run(ctx context.Context) error
}
