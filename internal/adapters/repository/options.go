// Package repository provides the durable SQLite store for the event
// log and the game/pick state the scheduler reconciles.
package repository

// Default store configuration constants.
const (
	defaultPurgeEvery = 10 // ~1-in-10 inserts sweep expired events
)

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithPurgeEvery sets the average number of event inserts between
// opportunistic expiry sweeps. Values below 1 disable the sweep.
func WithPurgeEvery(n int) Option {
	return func(s *Store) {
		s.purgeEvery = n
	}
}
