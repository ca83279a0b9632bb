package cache

import (
	"fmt"
	"sync"

	"github.com/taskmaster/client/internal/domain/entities"
)

// MutationState is the lifecycle of an optimistic update
type MutationState int

const (
	MutationPending MutationState = iota
	MutationCommitted
	MutationRolledBack
)

func (s MutationState) String() string {
	switch s {
	case MutationPending:
		return "pending"
	case MutationCommitted:
		return "committed"
	case MutationRolledBack:
		return "rolled_back"
	default:
		return fmt.Sprintf("MutationState(%d)", int(s))
	}
}

// Optimistic is one optimistic patch of the cache. Its snapshot belongs to
// this attempt only, so concurrent attempts never share rollback state.
type Optimistic struct {
	cache    *Cache
	prefix   Key
	snapshot Snapshot

	mu    sync.Mutex
	state MutationState
}

// BeginOptimistic supersedes in-flight fetches under prefix, snapshots the
// entries and applies update, in one atomic step.
func (c *Cache) BeginOptimistic(prefix Key, update Updater) *Optimistic {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelLocked(prefix)
	snap := c.snapshotLocked(prefix)
	c.patchLocked(prefix, update)

	return &Optimistic{cache: c, prefix: prefix, snapshot: snap}
}

// State returns the current state
func (o *Optimistic) State() MutationState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Commit keeps the optimistic patch
func (o *Optimistic) Commit() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != MutationPending {
		return fmt.Errorf("%w: %s", entities.ErrMutationSettled, o.state)
	}
	o.state = MutationCommitted
	return nil
}

// Rollback restores every snapshotted entry verbatim
func (o *Optimistic) Rollback() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != MutationPending {
		return fmt.Errorf("%w: %s", entities.ErrMutationSettled, o.state)
	}
	o.cache.Restore(o.snapshot)
	o.cache.metrics.CacheRollback()
	o.cache.logger.Debugw("Rolled back optimistic update", "prefix", o.prefix, "entries", o.snapshot.Len())
	o.state = MutationRolledBack
	return nil
}
