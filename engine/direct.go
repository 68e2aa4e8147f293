package engine

// DirectReplicator implements §4.2 "Direct Replicator": it streams a chunk
// from a peer storage node that already holds a healthy replica.
type DirectReplicator struct {
	*core
	peer PeerClient
}

// NewDirectReplicator builds a replicator for op, talking to peer.
func NewDirectReplicator(eng *Engine, op *ReplicateChunkOp, peer PeerClient) *DirectReplicator {
	c := newCore(eng, op, "replication")
	return &DirectReplicator{core: c, peer: peer}
}

func (d *DirectReplicator) chunkID() int64 { return d.core.chunkID() }
func (d *DirectReplicator) ref()           { d.core.ref() }
func (d *DirectReplicator) unref()         { d.core.unref() }

// Run registers the replicator and starts the Init state (spec §4.2 table).
func (d *DirectReplicator) Run() {
	d.reg.insert(d)
	if d.isCanceled() {
		finishReplication(d.core, d, -1, -1, true)
		return
	}

	d.setPhase(phaseInit)
	need := maxInt64(chunkHeaderSize, defaultReadSize)
	d.requestBuffer(need, func(ok bool) {
		if !ok {
			d.terminate(-1)
			return
		}
		if d.isCanceled() {
			d.terminate(-1)
			return
		}
		d.startGetMeta()
	})
}

// Cancel requests teardown (spec §4.4).
func (d *DirectReplicator) cancel() {
	wasWaiting := d.markCanceled()
	if wasWaiting {
		d.terminate(-1)
	}
}

// Cancel is the exported entry point external callers use.
func (d *DirectReplicator) Cancel() { d.cancel() }

func (d *DirectReplicator) startGetMeta() {
	d.setPhase(phaseGetMeta)
	d.peer.GetChunkMetadata(d.cid, d.afterMeta)
}

func (d *DirectReplicator) afterMeta(chunkSize, chunkVersion int64, status int) {
	if d.isCanceled() {
		d.terminate(-1)
		return
	}
	if status < 0 {
		d.logger.Warningf("GetChunkMetadata(chunk=%d) failed from %s: status=%d", d.cid, d.peer.GetLocation(), status)
		d.terminate(-1)
		return
	}
	if chunkSize < 0 || chunkSize > CHUNKSIZE {
		d.logger.Errorf("chunk %d: learned size %d out of [0, CHUNKSIZE]", d.cid, chunkSize)
		d.terminate(-1)
		return
	}

	d.mu.Lock()
	d.chunkSize = chunkSize
	d.offset = 0
	d.mu.Unlock()
	d.op.ChunkVersion = chunkVersion

	if _, exists := d.store.GetChunkInfo(d.cid); exists {
		d.store.StaleChunk(d.cid, true)
	}
	if err := d.store.AllocChunk(d.fileID, d.cid, 0, true); err != nil {
		d.logger.Errorf("AllocChunk(chunk=%d) failed: %v", d.cid, err)
		d.terminate(-1)
		return
	}

	d.advance(chunkVersion)
}

// advance is the shared decision point: either we're done (Commit) or there
// are more bytes to pull (Read). Sampled at every state transition so a
// cancel observed mid-flight routes straight to Terminate.
func (d *DirectReplicator) advance(learnedVersion int64) {
	if d.isCanceled() {
		d.terminate(-1)
		return
	}
	if d.offset == d.chunkSize {
		d.commit(learnedVersion)
		return
	}
	d.read(learnedVersion)
}

func (d *DirectReplicator) read(learnedVersion int64) {
	d.setPhase(phaseRead)
	readSize := int64(defaultReadSize)
	remaining := d.chunkSize - d.offset
	if remaining < readSize {
		readSize = remaining
	}
	offset := d.offset
	d.peer.Read(d.cid, learnedVersion, offset, readSize, func(data []byte, status int) {
		d.afterRead(learnedVersion, offset, readSize, data, status)
	})
}

func (d *DirectReplicator) afterRead(learnedVersion, offset, requested int64, data []byte, status int) {
	if d.isCanceled() {
		d.terminate(-1)
		return
	}
	if status < 0 {
		d.logger.Warningf("peer read(chunk=%d, off=%d) failed: status=%d", d.cid, offset, status)
		d.terminate(-1)
		return
	}
	n := int64(len(data))
	if n < requested && offset+n < d.chunkSize {
		d.logger.Errorf("chunk %d: short read at %d: got %d want %d, eoc at %d", d.cid, offset, n, requested, d.chunkSize)
		d.terminate(-1)
		return
	}

	d.buf.swap()
	aligned, remainder, err := splitForWrite(offset, data, d.chunkSize, ChecksumBlockSize)
	if err != nil {
		d.logger.Errorf("chunk %d: %v", d.cid, err)
		d.terminate(-1)
		return
	}
	d.setPhase(phaseAfterRead)
	d.writeAlignedThenTail(learnedVersion, offset, aligned, remainder)
}

func (d *DirectReplicator) writeAlignedThenTail(learnedVersion, offset int64, aligned, remainder []byte) {
	if len(aligned) == 0 {
		d.writeTailOrAdvance(learnedVersion, offset, remainder)
		return
	}
	d.issueWrite(aligned, offset, learnedVersion, func(written int64) {
		newOffset := offset + written
		d.mu.Lock()
		d.offset = newOffset
		d.mu.Unlock()
		d.writeTailOrAdvance(learnedVersion, newOffset, remainder)
	})
}

func (d *DirectReplicator) writeTailOrAdvance(learnedVersion, offset int64, remainder []byte) {
	if len(remainder) == 0 {
		d.advance(learnedVersion)
		return
	}
	// Final short write at end-of-chunk (the one exception the chunk
	// store's checksum-block alignment allows).
	d.issueWrite(remainder, offset, learnedVersion, func(written int64) {
		newOffset := offset + written
		d.mu.Lock()
		d.offset = newOffset
		d.mu.Unlock()
		d.advance(learnedVersion)
	})
}

func (d *DirectReplicator) issueWrite(data []byte, offset, chunkVersion int64, onDone func(written int64)) {
	d.store.WriteChunk(&WriteOp{ChunkID: d.cid, ChunkVersion: chunkVersion, Offset: offset, Data: data}, func(numBytesIO int64, err error) {
		if d.isCanceled() {
			d.terminate(-1)
			return
		}
		if err != nil {
			d.logger.Errorf("WriteChunk(chunk=%d, off=%d) failed: %v", d.cid, offset, err)
			d.terminate(-1)
			return
		}
		if numBytesIO != int64(len(data)) {
			d.logger.Errorf("WriteChunk(chunk=%d, off=%d) short write: %d of %d", d.cid, offset, numBytesIO, len(data))
			d.terminate(-1)
			return
		}
		onDone(numBytesIO)
	})
}

func (d *DirectReplicator) commit(learnedVersion int64) {
	if d.isCanceled() {
		d.terminate(-1)
		return
	}
	d.setPhase(phaseCommit)
	d.store.ChangeChunkVers(d.cid, learnedVersion, true, func(err error) {
		if err != nil {
			d.logger.Errorf("ChangeChunkVers(chunk=%d, v=%d) failed: %v", d.cid, learnedVersion, err)
			d.terminate(-1)
			return
		}
		d.setPhase(phaseTerminal)
		finishReplication(d.core, d, 0, learnedVersion, false)
	})
}

func (d *DirectReplicator) terminate(status int) {
	d.setPhase(phaseTerminal)
	canceled := d.isCanceled()
	finishReplication(d.core, d, status, -1, canceled)
}
