package engine

// statusEINVAL mirrors POSIX EINVAL, returned (negated) by the Factory on
// a malformed recovery request (spec §4.5, §7 "Validation").
const statusEINVAL = -22

// Dispatch is the Factory/Dispatcher (spec §4.5): it validates req,
// selects Direct vs. RS recovery, and either launches the chosen
// Replicator or responds immediately with a failure.
func (e *Engine) Dispatch(op *ReplicateChunkOp) {
	if op.Location.IsValid() {
		e.dispatchDirect(op)
		return
	}
	e.dispatchRecovery(op)
}

func (e *Engine) dispatchDirect(op *ReplicateChunkOp) {
	peer, err := e.obtainPeer(op.Location)
	if err != nil {
		op.Status = -1
		op.ChunkVersion = -1
		e.counters.recordReplicationError()
		e.reqSrc.Respond(op)
		return
	}
	// NewDirectReplicator already seeds refCount=1 for the Request
	// Source's logical ownership; the Factory just starts it running.
	r := NewDirectReplicator(e, op, peer)
	r.Run()
}

func (e *Engine) obtainPeer(loc Location) (PeerClient, error) {
	cfg := e.config.Get()
	if cfg.UseConnectionPool && e.poolPeer != nil {
		if p, err := e.poolPeer(loc); err == nil {
			return p, nil
		}
	}
	if e.dialPeer == nil {
		return nil, ErrPeerUnreachable
	}
	return e.dialPeer(loc)
}

func (e *Engine) dispatchRecovery(op *ReplicateChunkOp) {
	if !validRecoveryOp(op) {
		op.Status = statusEINVAL
		op.ChunkVersion = -1
		e.counters.recordRecoveryError()
		e.reqSrc.Respond(op)
		return
	}
	if e.newReader == nil {
		op.Status = -1
		op.ChunkVersion = -1
		e.counters.recordRecoveryError()
		e.reqSrc.Respond(op)
		return
	}
	meta, err := e.metaHolder.getOrCreate(op.Location.Host, op.Location.Port)
	if err != nil {
		op.Status = -1
		op.ChunkVersion = -1
		e.counters.recordRecoveryError()
		e.reqSrc.Respond(op)
		return
	}
	reader := e.newReader(meta)
	r := NewRSReplicator(e, op, reader, e.bufferCeiling())
	r.Run()
}

func validRecoveryOp(op *ReplicateChunkOp) bool {
	return op.ChunkOffset >= 0 &&
		op.ChunkOffset%CHUNKSIZE == 0 &&
		op.StriperType == StriperRS &&
		op.NumStripes > 0 &&
		op.NumRecoveryStripes > 0 &&
		op.StripeSize >= KFSMinStripeSize &&
		op.StripeSize <= KFSMaxStripeSize &&
		CHUNKSIZE%op.StripeSize == 0 &&
		op.StripeSize%KFSStripeAlignment == 0 &&
		op.Location.Port > 0
}
