package engine

import "sync"

// replicatorHandle is what the registry needs from either concrete
// replicator kind (Direct or RS) to manage duplicate suppression and
// cancellation without depending on their internals.
type replicatorHandle interface {
	chunkID() int64
	cancel()
	ref()
	unref()
}

// Registry is the InFlight Registry (spec §4.1): a mapping from chunk id to
// the currently running replicator for that chunk, enforcing at most one
// concurrent replicator per chunk.
type Registry struct {
	mu       sync.Mutex
	byChunk  map[int64]replicatorHandle
	counters *Counters
}

// NewRegistry builds an empty registry wired to counters.
func NewRegistry(counters *Counters) *Registry {
	return &Registry{byChunk: make(map[int64]replicatorHandle), counters: counters}
}

// insert registers r for its chunk id, canceling and replacing any prior
// occupant. Always succeeds; the self-replacement case described in spec
// §4.1 is instead caught by the caller's isCanceled() check right after
// Run() calls insert.
func (reg *Registry) insert(r replicatorHandle) bool {
	chunkID := r.chunkID()

	reg.mu.Lock()
	prev, exists := reg.byChunk[chunkID]
	if !exists {
		reg.byChunk[chunkID] = r
		reg.counters.incReplicatorCount(1)
		reg.mu.Unlock()
		return true
	}
	if prev == r {
		reg.mu.Unlock()
		return true
	}
	reg.mu.Unlock()

	// Cancellation may synchronously destroy prev (e.g. it was only
	// waiting on buffers), which calls back into reg.remove. Do this
	// outside the lock so that reentrant call can take it.
	prev.cancel()

	// Second insert pass: re-assert r as the occupant now that prev has
	// been asked to leave (destruction may or may not have already
	// removed it from the map).
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, stillThere := reg.byChunk[chunkID]; !stillThere {
		reg.counters.incReplicatorCount(1)
	}
	reg.byChunk[chunkID] = r
	return true
}

// remove unregisters r only if it is still the currently registered
// occupant for its chunk id -- a duplicate-suppression cancel of a
// superseded replicator must not clobber the replacement's bookkeeping.
func (reg *Registry) remove(r replicatorHandle) (wasOwner bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	chunkID := r.chunkID()
	if cur, ok := reg.byChunk[chunkID]; ok && cur == r {
		delete(reg.byChunk, chunkID)
		reg.counters.incReplicatorCount(-1)
		return true
	}
	return false
}

// isOwner reports whether r is still the registered occupant of its chunk.
func (reg *Registry) isOwner(r replicatorHandle) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	cur, ok := reg.byChunk[r.chunkID()]
	return ok && cur == r
}

// CancelAll cancels every currently registered replicator (spec §4.4). The
// active count is implicitly reset to zero as each one unregisters itself.
func (reg *Registry) CancelAll() {
	reg.mu.Lock()
	handles := make([]replicatorHandle, 0, len(reg.byChunk))
	for _, r := range reg.byChunk {
		handles = append(handles, r)
	}
	reg.mu.Unlock()

	for _, r := range handles {
		r.cancel()
	}
}

// GetNumReplications returns the number of currently-registered
// replicators. With an empty registry this is always zero (spec §8).
func (reg *Registry) GetNumReplications() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.byChunk)
}
