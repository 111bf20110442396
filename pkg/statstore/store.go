// Package statstore persists the registry's live-statistics map across
// process restarts. The schema is plain numeric fields keyed by
// backend and query type; unknown extra fields and missing query types
// are tolerated for forward compatibility.
package statstore

import "github.com/zen-systems/quorum/pkg/registry"

// Store loads and saves registry snapshots.
type Store interface {
	// Load returns the persisted snapshot, or an empty one when
	// nothing has been saved yet.
	Load() (registry.Snapshot, error)

	// Save persists the snapshot, replacing any previous one.
	Save(snap registry.Snapshot) error

	// Close releases store resources.
	Close() error
}
