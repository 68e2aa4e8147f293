package engine

import "sync"

// Counters accumulates the process-wide observable counters from spec §6.
// It is mutated only from callback/state-transition code, guarded by a
// mutex the same way the teacher guards ChunkServer bookkeeping fields.
type Counters struct {
	mu sync.Mutex

	replicatorCount          int64
	replicationCount         int64
	recoveryCount            int64
	replicationErrorCount    int64
	replicationCanceledCount int64
	recoveryErrorCount       int64
	recoveryCanceledCount    int64
}

func (c *Counters) incReplicatorCount(delta int64) {
	c.mu.Lock()
	c.replicatorCount += delta
	c.mu.Unlock()
}

func (c *Counters) recordReplicationSuccess() {
	c.mu.Lock()
	c.replicationCount++
	c.mu.Unlock()
}

func (c *Counters) recordRecoverySuccess() {
	c.mu.Lock()
	c.recoveryCount++
	c.mu.Unlock()
}

func (c *Counters) recordReplicationError() {
	c.mu.Lock()
	c.replicationErrorCount++
	c.mu.Unlock()
}

func (c *Counters) recordReplicationCanceled() {
	c.mu.Lock()
	c.replicationCanceledCount++
	c.mu.Unlock()
}

func (c *Counters) recordRecoveryError() {
	c.mu.Lock()
	c.recoveryErrorCount++
	c.mu.Unlock()
}

func (c *Counters) recordRecoveryCanceled() {
	c.mu.Lock()
	c.recoveryCanceledCount++
	c.mu.Unlock()
}

// Snapshot returns a consistent point-in-time read of every counter.
func (c *Counters) Snapshot() CountersSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CountersSnapshot{
		ReplicatorCount:          c.replicatorCount,
		ReplicationCount:         c.replicationCount,
		RecoveryCount:            c.recoveryCount,
		ReplicationErrorCount:    c.replicationErrorCount,
		ReplicationCanceledCount: c.replicationCanceledCount,
		RecoveryErrorCount:       c.recoveryErrorCount,
		RecoveryCanceledCount:    c.recoveryCanceledCount,
	}
}
