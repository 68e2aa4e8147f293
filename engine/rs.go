package engine

import "time"

// statusTimedOut is the synthetic status code used when Cancel must
// manufacture a read completion because the Stripe Reader was shut down
// mid-flight and will never call back (spec §4.4).
const statusTimedOut = -110

// RSReplicator implements §4.3 "RS Recovery Replicator": it reconstructs a
// chunk from surviving data/parity stripes via a Stripe Reader in place of
// a peer connection.
type RSReplicator struct {
	*core

	reader StripeReader

	readSize      int64
	nextRequestID int64
	closedReader  bool
}

// NewRSReplicator builds a recovery replicator for op, driven by reader.
// bufCeiling is the Buffer Manager's current ceiling, used to size reads
// per spec §4.3 "Read size selection".
func NewRSReplicator(eng *Engine, op *ReplicateChunkOp, reader StripeReader, bufCeiling int64) *RSReplicator {
	c := newCore(eng, op, "recovery")
	r := &RSReplicator{core: c, reader: reader}
	r.readSize = computeRSReadSize(bufCeiling, int64(op.NumStripes), op.StripeSize)
	return r
}

func (r *RSReplicator) chunkID() int64 { return r.core.chunkID() }
func (r *RSReplicator) ref()           { r.core.ref() }
func (r *RSReplicator) unref()         { r.core.unref() }
func (r *RSReplicator) Cancel()        { r.cancel() }

// computeRSReadSize picks the per-read byte count as the quota ceiling
// divided across (dataStripes+1) outstanding stripe-width buffers, rounded
// down to a checksum-block multiple and, where it fits under that
// ceiling, further aligned to LCM(ChecksumBlockSize, stripeSize) to avoid
// cross-stripe reads on the hot path; otherwise LCM(defaultReadSize,
// stripeSize) is used instead (spec §4.3).
func computeRSReadSize(bufCeiling, dataStripes, stripeSize int64) int64 {
	if dataStripes < 1 {
		dataStripes = 1
	}
	quotaShare := bufCeiling / (dataStripes + 1)
	quotaShare = quotaShare / ChecksumBlockSize * ChecksumBlockSize
	if quotaShare < ChecksumBlockSize {
		quotaShare = ChecksumBlockSize
	}
	if stripeSize <= 0 {
		return quotaShare
	}
	aligned := lcm(ChecksumBlockSize, stripeSize)
	if aligned <= quotaShare {
		return aligned
	}
	return lcm(defaultReadSize, stripeSize)
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	return a / gcd(a, b) * b
}

// Run registers the replicator and opens the Stripe Reader (spec §4.3
// "Start").
func (r *RSReplicator) Run() {
	r.reg.insert(r)
	if r.isCanceled() {
		finishReplication(r.core, r, -1, -1, true)
		return
	}

	r.setPhase(phaseInit)
	need := maxInt64(chunkHeaderSize, r.readSize*(int64(r.op.NumStripes)+1))
	r.requestBuffer(need, func(ok bool) {
		if !ok {
			r.terminate(-1)
			return
		}
		if r.isCanceled() {
			r.terminate(-1)
			return
		}
		r.startOpen()
	})
}

func (r *RSReplicator) startOpen() {
	r.mu.Lock()
	r.chunkSize = CHUNKSIZE
	r.offset = r.op.ChunkOffset
	r.mu.Unlock()

	if err := r.reader.Open(r.fileID, r.op.Path, r.op.FileSize, r.op.StriperType,
		r.op.StripeSize, r.op.NumStripes, r.op.NumRecoveryStripes,
		true, true, r.op.ChunkOffset); err != nil {
		r.logger.Errorf("stripe reader Open(chunk=%d) failed: %v", r.cid, err)
		r.terminate(-1)
		return
	}
	r.reader.Register(r.onReadDone)

	if _, exists := r.store.GetChunkInfo(r.cid); exists {
		r.store.StaleChunk(r.cid, true)
	}
	if err := r.store.AllocChunk(r.fileID, r.cid, 0, true); err != nil {
		r.logger.Errorf("AllocChunk(chunk=%d) failed: %v", r.cid, err)
		r.terminate(-1)
		return
	}

	r.advance()
}

func (r *RSReplicator) advance() {
	if r.isCanceled() {
		r.terminate(-1)
		return
	}
	if r.offset-r.op.ChunkOffset == r.chunkSize {
		r.commit()
		return
	}
	r.readNext()
}

func (r *RSReplicator) readNext() {
	r.setPhase(phaseRead)
	reqID := r.nextRequestID
	r.nextRequestID++
	buf := make([]byte, r.readSize)
	if err := r.reader.Read(buf, len(buf), r.offset, reqID); err != nil {
		r.logger.Errorf("stripe reader Read(chunk=%d, off=%d) failed: %v", r.cid, r.offset, err)
		r.terminate(-1)
	}
	// completion arrives asynchronously via onReadDone
}

func (r *RSReplicator) onReadDone(statusCode int, offset, size int64, buf []byte, requestID int64) {
	if r.isCanceled() {
		r.terminate(-1)
		return
	}
	if statusCode < 0 {
		if len(buf) > 0 {
			invalid, err := DecodeInvalidStripes(buf, r.op.NumStripes+r.op.NumRecoveryStripes)
			assertOrPanic(err == nil, "chunk %d: malformed or oversized invalid-stripe report: %v", r.cid, err)
			r.op.InvalidStripeIdx = FormatInvalidStripes(invalid)
		}
		r.logger.Warningf("stripe read(chunk=%d, off=%d) failed: status=%d", r.cid, offset, statusCode)
		r.terminate(-1)
		return
	}

	startOffset := r.offset
	n := int64(len(buf))
	requested := r.readSize

	r.mu.Lock()
	if n < requested {
		r.chunkSize = (startOffset - r.op.ChunkOffset) + n
	}
	learnedEnd := r.chunkSize
	r.mu.Unlock()

	r.buf.swap()
	aligned, remainder, err := splitForWrite(startOffset, buf, r.op.ChunkOffset+learnedEnd, ChecksumBlockSize)
	if err != nil {
		r.logger.Errorf("chunk %d: %v", r.cid, err)
		r.terminate(-1)
		return
	}
	r.setPhase(phaseAfterRead)
	r.writeAlignedThenTail(startOffset, aligned, remainder)
}

func (r *RSReplicator) writeAlignedThenTail(offset int64, aligned, remainder []byte) {
	if len(aligned) == 0 {
		r.writeTailOrAdvance(offset, remainder)
		return
	}
	r.issueWrite(aligned, offset, func(written int64) {
		newOffset := offset + written
		r.mu.Lock()
		r.offset = newOffset
		r.mu.Unlock()
		r.writeTailOrAdvance(newOffset, remainder)
	})
}

func (r *RSReplicator) writeTailOrAdvance(offset int64, remainder []byte) {
	if len(remainder) == 0 {
		r.advance()
		return
	}
	r.issueWrite(remainder, offset, func(written int64) {
		newOffset := offset + written
		r.mu.Lock()
		r.offset = newOffset
		r.mu.Unlock()
		r.advance()
	})
}

func (r *RSReplicator) issueWrite(data []byte, offset int64, onDone func(written int64)) {
	r.store.WriteChunk(&WriteOp{ChunkID: r.cid, ChunkVersion: r.op.ChunkVersion, Offset: offset - r.op.ChunkOffset, Data: data}, func(numBytesIO int64, err error) {
		if r.isCanceled() {
			r.terminate(-1)
			return
		}
		if err != nil {
			r.logger.Errorf("WriteChunk(chunk=%d, off=%d) failed: %v", r.cid, offset, err)
			r.terminate(-1)
			return
		}
		if numBytesIO != int64(len(data)) {
			r.logger.Errorf("WriteChunk(chunk=%d, off=%d) short write: %d of %d", r.cid, offset, numBytesIO, len(data))
			r.terminate(-1)
			return
		}
		onDone(numBytesIO)
	})
}

func (r *RSReplicator) commit() {
	if r.isCanceled() {
		r.terminate(-1)
		return
	}
	r.setPhase(phaseCommit)
	r.closeReaderOnce()
	version := r.op.ChunkVersion
	r.store.ChangeChunkVers(r.cid, version, true, func(err error) {
		if err != nil {
			r.logger.Errorf("ChangeChunkVers(chunk=%d, v=%d) failed: %v", r.cid, version, err)
			r.terminate(-1)
			return
		}
		r.setPhase(phaseTerminal)
		finishReplication(r.core, r, 0, version, false)
	})
}

func (r *RSReplicator) terminate(status int) {
	r.setPhase(phaseTerminal)
	r.closeReaderOnce()
	canceled := r.isCanceled()
	finishReplication(r.core, r, status, -1, canceled)
}

// closeReaderOnce shuts down the Stripe Reader exactly once. If the reader
// is still active afterward (in-flight cleanup), self-destruction is
// deferred behind an extra reference until it reports inactive (spec
// §4.3 "Deferred close").
func (r *RSReplicator) closeReaderOnce() {
	r.mu.Lock()
	if r.closedReader {
		r.mu.Unlock()
		return
	}
	r.closedReader = true
	r.mu.Unlock()

	r.reader.Unregister()
	r.reader.Close()
	if r.reader.IsActive() {
		r.ref()
		go func() {
			for r.reader.IsActive() {
				time.Sleep(5 * time.Millisecond)
			}
			r.unref()
		}()
	}
}

// cancel requests teardown (spec §4.4). Unregistering and shutting down
// the reader aborts any outstanding read; if one was in flight, it will
// never call back, so a synthetic timed-out completion is synthesized to
// let the state machine reach Terminate.
func (r *RSReplicator) cancel() {
	wasWaiting := r.markCanceled()
	if wasWaiting {
		r.terminate(-1)
		return
	}
	inFlight := r.getPhase() == phaseRead
	r.reader.Unregister()
	r.reader.Shutdown()
	if inFlight {
		r.onReadDone(statusTimedOut, r.offset, 0, nil, -1)
	}
}
