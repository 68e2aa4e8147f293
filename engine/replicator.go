package engine

import "sync"

// core is the shared state and bookkeeping behind both the Direct
// Replicator and the RS Recovery Replicator (spec §3 "Replicator" data
// model). The strategy-specific state machines (direct.go, rs.go) embed a
// *core and drive it through requestBuffer / splitForWrite / finish; core
// itself never decides what state to go to next.
type core struct {
	mu sync.Mutex

	eng      *Engine
	reg      *Registry
	counters *Counters
	store    ChunkStore
	bufMgr   BufferManager
	reqSrc   RequestSource
	logger   Logger

	op       *ReplicateChunkOp
	fileID   int64
	cid      int64
	offset   int64
	chunkSize int64

	refCount      int32
	ownerReleased bool
	destroyed     bool
	canceled      bool
	finished      bool
	waitingOnBuf  bool
	bufReserved   int64

	phase phase

	buf *doubleBuffer

	// kind is "replication" (direct) or "recovery" (RS), selecting which
	// counter bucket finishReplication increments into.
	kind string

	// onDestroy is invoked at most once, when refCount has decayed to
	// zero and ownership of the op has been handed back.
	onDestroy func()
}

func newCore(eng *Engine, op *ReplicateChunkOp, kind string) *core {
	return &core{
		eng:      eng,
		reg:      eng.registry,
		counters: eng.counters,
		store:    eng.store,
		bufMgr:   eng.bufMgr,
		reqSrc:   eng.reqSrc,
		logger:   eng.logger,
		op:       op,
		fileID:   op.FileID,
		cid:      op.ChunkID,
		refCount: 1,
		buf:      newDoubleBuffer(),
		kind:     kind,
	}
}

func (c *core) chunkID() int64 { return c.cid }

func (c *core) ref() {
	c.mu.Lock()
	c.refCount++
	c.mu.Unlock()
}

func (c *core) unref() {
	c.mu.Lock()
	c.refCount--
	fire := c.refCount <= 0 && c.ownerReleased && !c.destroyed
	if fire {
		c.destroyed = true
	}
	c.mu.Unlock()
	if fire && c.onDestroy != nil {
		c.onDestroy()
	}
}

// releaseOwner drops the Request Source's logical reference once the op
// has been handed back (spec §3 invariant: destroyed only when refCount==0
// AND owner op has been returned).
func (c *core) releaseOwner() {
	c.mu.Lock()
	c.ownerReleased = true
	fire := c.refCount <= 0 && !c.destroyed
	if fire {
		c.destroyed = true
	}
	c.mu.Unlock()
	if fire && c.onDestroy != nil {
		c.onDestroy()
	}
}

// requestBuffer asks the Buffer Manager for bytes, tracking
// waiting-on-buffer status so Cancel can fail it synchronously.
func (c *core) requestBuffer(bytes int64, onResult func(ok bool)) {
	c.mu.Lock()
	c.waitingOnBuf = true
	c.mu.Unlock()
	c.bufMgr.Reserve(bytes, func(ok bool) {
		c.mu.Lock()
		c.waitingOnBuf = false
		alreadyFinished := c.finished
		if ok && !alreadyFinished {
			c.bufReserved = bytes
		}
		c.mu.Unlock()
		if ok && alreadyFinished {
			// The replicator terminated synchronously (buffer-wait
			// cancellation) before this grant arrived; nobody will ever
			// call releaseReservedBuffer for it, so release right away.
			c.bufMgr.Release(bytes)
			return
		}
		onResult(ok)
	})
}

// setPhase/getPhase track the tagged-enum Phase spec.md §9 recommends in
// place of raw callback aliasing; shared by Direct and RS since both are
// driven by the same kind of single-threaded, re-entrant callback pattern.
func (c *core) setPhase(p phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
}

func (c *core) getPhase() phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *core) releaseReservedBuffer() {
	c.mu.Lock()
	n := c.bufReserved
	c.bufReserved = 0
	c.mu.Unlock()
	if n > 0 {
		c.bufMgr.Release(n)
	}
}

// markCanceled flips the cancel flag and reports whether the replicator
// was, at that instant, waiting on a buffer grant -- the one case Cancel
// must resolve synchronously (spec §4.4).
func (c *core) markCanceled() (wasWaitingOnBuffer bool) {
	c.mu.Lock()
	c.canceled = true
	wasWaitingOnBuffer = c.waitingOnBuf
	c.mu.Unlock()
	return wasWaitingOnBuffer
}

func (c *core) isCanceled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canceled
}

// splitForWrite splits newly-read bytes into an aligned prefix to write now
// and a remainder to stash as tail. A non-empty remainder is only legal
// when the data's end position equals the learned chunk size -- otherwise
// it signals a protocol error (spec §4.2 "Checksum-block alignment").
func splitForWrite(offsetBefore int64, data []byte, chunkSize, cbs int64) (aligned, remainder []byte, err error) {
	end := offsetBefore + int64(len(data))
	aligned, remainder = splitAtChecksumBoundary(data, cbs)
	if len(remainder) > 0 && end != chunkSize {
		return nil, nil, ErrShortRead
	}
	return aligned, remainder, nil
}

// finishReplication implements the common Terminate -> HandleReplicationDone
// propagation policy from spec §7: it fills in the op's outcome, reports
// ReplicationDone only if still the registered owner, bumps the right
// counter bucket, unregisters, releases the buffer reservation, hands the
// op back to the Request Source, and finally drops the owner reference.
func finishReplication(c *core, handle replicatorHandle, status int, achievedVersion int64, canceled bool) {
	c.mu.Lock()
	if c.finished {
		c.mu.Unlock()
		return
	}
	c.finished = true
	c.mu.Unlock()

	wasOwner := c.reg.isOwner(handle)

	c.op.Status = status
	c.op.ChunkVersion = achievedVersion

	if wasOwner {
		c.store.ReplicationDone(c.cid, status)
	}

	switch {
	case canceled:
		if c.kind == "recovery" {
			c.counters.recordRecoveryCanceled()
		} else {
			c.counters.recordReplicationCanceled()
		}
	case status != 0:
		if c.kind == "recovery" {
			c.counters.recordRecoveryError()
		} else {
			c.counters.recordReplicationError()
		}
	default:
		if c.kind == "recovery" {
			c.counters.recordRecoverySuccess()
		} else {
			c.counters.recordReplicationSuccess()
		}
	}

	c.reg.remove(handle)
	c.releaseReservedBuffer()
	c.reqSrc.Respond(c.op)
	c.releaseOwner()
}
