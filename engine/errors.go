package engine

import (
	"errors"
	"fmt"
)

// Sentinel errors, grouped the way common/errors.go groups the chunk
// server's error values.
var (
	ErrInvalidRequest      = errors.New("engine: malformed replicate-chunk request")
	ErrBufferQuotaExceeded = errors.New("engine: buffer quota exceeded")
	ErrPeerUnreachable     = errors.New("engine: unable to obtain a peer connection")
	ErrShortRead           = errors.New("engine: peer or stripe reader returned a short read before end of chunk")
	ErrChunkSizeOutOfRange = errors.New("engine: learned chunk size outside [0, CHUNKSIZE]")
	ErrPeerIO              = errors.New("engine: peer read or metadata fetch failed")
	ErrStripeIO            = errors.New("engine: stripe reader read failed")
	ErrLocalDisk           = errors.New("engine: local chunk store operation failed")
	ErrCanceled            = errors.New("engine: replicator canceled")
	ErrTooManyInvalidStripes = errors.New("engine: invalid-stripe report exceeds numStripes+numRecoveryStripes")
	ErrSelfReplaced        = errors.New("engine: replicator observed its own cancel flag during registry insert")
)

// assertOrPanic aborts the process on an integrity violation that spec.md
// classifies as an impossible state (the source's die(...) calls). These
// are not recoverable errors: they indicate the state machine reached a
// place the invariants say it cannot reach.
func assertOrPanic(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(fmt.Sprintf("engine: assertion failed: "+format, args...))
	}
}
